package archive

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"maexport/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// Line-up categories, matching the site's typeId parameter.
type lineupType int

const (
	lineupMain  lineupType = 1
	lineupGuest lineupType = 2
	lineupLive  lineupType = 3
	lineupMisc  lineupType = 4
)

func (t lineupType) String() string {
	switch t {
	case lineupMain:
		return "main members"
	case lineupGuest:
		return "guest/session"
	case lineupLive:
		return "live members"
	case lineupMisc:
		return "misc staff"
	}
	return "unknown"
}

// Member ties an artist to a band or release line-up, with the roles they
// held there. Unlike most entities, members are usually parsed from chunks
// of a line-up edit form already in hand; fetching their own edit page is
// the fallback for members discovered in isolation.
type Member struct {
	resource
	arch *Archive

	subject    Credit // the band or release whose line-up this is
	artist     *Artist
	alias      string
	memberType string
	active     bool
	haveActive bool
	band       string // split releases assign each member to one of the bands
	roles      map[string]*Role
}

func (a *Archive) Member(id string) *Member {
	e, _ := a.registry.getOrCreate(KindMember, id, func(id string) Entity {
		return &Member{
			resource: resource{kind: KindMember, id: id},
			arch:     a,
			roles:    map[string]*Role{},
		}
	})
	return e.(*Member)
}

// presetSubject records which line-up the member was discovered in. First
// writer wins; a member reached twice keeps its original subject.
func (m *Member) presetSubject(subject Credit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subject.isZero() {
		m.subject = subject
	}
}

func (m *Member) subjectKnown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.subject.isZero()
}

// LoadChunks ingests the member's data from line-up form fragments the
// caller already fetched. Counts as the member's one load.
func (m *Member) LoadChunks(ctx context.Context, artist, roles, bands *goquery.Selection) error {
	if !m.beginLoad() {
		m.log("already loaded")
		return nil
	}
	return m.parseChunks(ctx, artist, roles, bands)
}

func (m *Member) Load(ctx context.Context) error {
	return m.runPipeline(ctx, []step{
		m.loadRemote,
	})
}

var hrefTrailingId = regexp.MustCompile(`href="[^"]+/(\d+)"`)

// loadRemote fetches the member's standalone role-edit form, working out the
// line-up's subject along the way.
func (m *Member) loadRemote(ctx context.Context) error {
	m.log("no lineup form in hand, loading remotely")

	page := "/lineup/edit-roles/id/" + m.Id()
	doc, err := m.arch.site.FetchPage(ctx, page)
	if err != nil {
		return err
	}

	if unlisted := htmlutil.InputValue(doc.Find("input[name^='unlistedBand']")); unlisted != "" {
		m.presetSubject(Credit{Unlisted: unlisted})
	} else if !m.subjectKnown() {
		bandName := doc.Find(".band_name")
		albumName := doc.Find(".album_name")

		if albumName.Length() > 0 {
			html, _ := albumName.Html()
			idm := hrefTrailingId.FindStringSubmatch(html)
			if idm == nil {
				return fmt.Errorf("%s: album link has no id", page)
			}
			album := m.arch.Release(idm[1])
			album.presetName(strings.TrimSpace(albumName.Text()))
			album.presetBands(m.arch.bandsInTitle(bandName))
			m.presetSubject(Credit{Entity: album})
		} else {
			html, _ := bandName.Html()
			idm := hrefTrailingId.FindStringSubmatch(html)
			if idm == nil {
				return fmt.Errorf("%s: band link has no id", page)
			}
			band := m.arch.Band(idm[1])
			band.presetName(strings.TrimSpace(bandName.Text()))
			m.presetSubject(Credit{Entity: band})
		}
	}

	return m.parseChunks(ctx,
		doc.Find("tr[id^='artist_']").First(),
		doc.Find("tr[id^='roleList_'], [id^='roleList_']").First(),
		nil,
	)
}

var artistEditId = regexp.MustCompile(`artist/edit/id/(\d+)`)

// parseChunks extracts the member's data from the three fragments of a
// line-up edit form: the artist row, their role list, and (for splits) the
// band-assignment cell.
func (m *Member) parseChunks(ctx context.Context, artist, roles, bands *goquery.Selection) error {
	html, err := artist.Html()
	if err != nil {
		return err
	}
	idm := artistEditId.FindStringSubmatch(html)
	if idm == nil {
		return fmt.Errorf("member %s: artist row carries no artist id", m.Id())
	}
	entity := m.arch.Artist(idm[1])

	var memberRoles []*Role
	if roles != nil && roles.Length() > 0 {
		var roleErr error
		roles.Find("tr[id^='role_']").EachWithBreak(func(_ int, row *goquery.Selection) bool {
			role, err := newRole(row)
			if err != nil {
				roleErr = err
				return false
			}
			memberRoles = append(memberRoles, role)
			return true
		})
		if roleErr != nil {
			return roleErr
		}
	}

	band := ""
	if bands != nil && bands.Length() > 0 {
		bandId := bands.Find(".trackSplitBands > option[selected]").AttrOr("value", "")
		if bandId != "" {
			// unlisted assignments survive from before the site revoked
			// them; they arrive prefixed with @
			band = strings.TrimPrefix(bandId, "@")
		} else {
			m.log("split row carries no band assignment")
		}
	}

	// presetSubject can run concurrently, so the field writes hold the
	// entity lock
	m.mu.Lock()
	m.artist = entity
	m.alias = htmlutil.InputValue(artist.Find("input[name^='alias']"))
	m.memberType = htmlutil.SelectedOptionValue(artist.Find("select[name^='type']"))
	if active := artist.Find("input[type='checkbox'][id^='status_']"); active.Length() > 0 {
		m.active = htmlutil.Checked(active)
		m.haveActive = true
	}
	for _, role := range memberRoles {
		m.roles[role.id] = role
	}
	m.band = band
	m.mu.Unlock()

	return entity.Load(ctx)
}

func (m *Member) project() any {
	f := fields{}
	if !m.subject.isZero() {
		f.set("for", m.subject.ref())
	}
	if m.artist != nil {
		f.set("entity", m.artist.ref())
	}
	f.set("band", idValue(m.band))
	f.set("type", m.memberType)
	f.set("alias", m.alias)
	if m.haveActive {
		f.setAlways("active", m.active)
	}
	roles := fields{}
	for id, r := range m.roles {
		roles[id] = r.project()
	}
	f["roles"] = roles
	return f
}

func (m *Member) ref() any {
	return idValue(m.Id())
}

// loadLineup fetches one category of a band's or release's line-up form and
// spawns a member load per row.
func (a *Archive) loadLineup(ctx context.Context, owner Entity, typ lineupType) error {
	slog.DebugContext(ctx, "loading lineup", "kind", owner.Kind(), "id", owner.Id(), "lineup", typ)

	bandId, releaseId := "_", "0"
	switch o := owner.(type) {
	case *Band:
		bandId = o.Id()
	case *Release:
		releaseId = o.Id()
	}

	page := fmt.Sprintf("/lineup/edit-artists/bandId/%s/typeId/%d/releaseId/%s", bandId, typ, releaseId)
	doc, err := a.site.FetchPage(ctx, page)
	if err != nil {
		return err
	}

	g := &group{}
	doc.Find("tr[id^='artist_']").Each(func(_ int, row *goquery.Selection) {
		idm := rowIdSuffix.FindStringSubmatch(row.AttrOr("id", ""))
		if idm == nil {
			return
		}
		id := idm[1]
		roles := doc.Find("#roleList_" + id)
		bands := doc.Find("#artistBands_" + id)

		member := a.Member(id)
		member.presetSubject(Credit{Entity: owner})
		g.Go(func() error { return member.LoadChunks(ctx, row, roles, bands) })
	})
	return g.Wait()
}
