package archive

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"maexport/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// activityPeriod is one span in a band's history: active years, plus the
// name the band went by if it differed, or the prior band it grew out of.
type activityPeriod struct {
	from string
	to   string
	as   string
	band string
}

func (p *activityPeriod) project() any {
	f := fields{}
	f.set("from", p.from)
	f.set("to", p.to)
	f.set("as", p.as)
	f.set("band", idValue(p.band))
	return f
}

type Band struct {
	submission

	name      string
	genre     string
	status    string
	country   string
	location  string
	aka       string
	themes    string
	formed    string
	activity  map[string]*activityPeriod
	unsigned  bool
	logo      string
	photo     string
	notes     string
	evidence  string
	warning   string
	modNotes  string
	modStatus string
	rejection string
	digital   bool
	locked    bool
	labels    []*Label
}

func (a *Archive) Band(id string) *Band {
	e, _ := a.registry.getOrCreate(KindBand, id, func(id string) Entity {
		b := &Band{submission: submission{
			resource: resource{kind: KindBand, id: id},
			arch:     a,
		}}
		b.owner = b
		return b
	})
	return e.(*Band)
}

// presetName seeds the name on a placeholder band created from a bare
// line-up link. First writer wins; a real load overwrites it anyway.
func (b *Band) presetName(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.name == "" {
		b.name = name
	}
}

func (b *Band) Load(ctx context.Context) error {
	return b.runPipeline(ctx, []step{
		b.loadCore,
		b.loadPeripherals,
		b.loadMembers,
		b.loadReports,
		b.loadDiscography,
		b.loadHistory,
		b.loadLinks,
		b.loadRecommendations,
	})
}

// loadCore scrapes the band's edit form, which exposes every field in raw
// input elements instead of rendered markup.
func (b *Band) loadCore(ctx context.Context) error {
	b.log("loading: main data")

	page := "/band/edit/id/" + b.Id()
	doc, err := b.arch.site.FetchPage(ctx, page)
	if err != nil {
		return err
	}
	if _, err := requireSel(doc, "#bandName", page); err != nil {
		return err
	}

	// a placeholder discovered elsewhere can presetName concurrently, so
	// the field writes hold the entity lock
	b.mu.Lock()
	b.name = htmlutil.InputValue(doc.Find("#bandName"))
	b.genre = htmlutil.InputValue(doc.Find("#genre"))
	b.status = htmlutil.SelectedOptionText(doc.Find("#status"))
	b.country = htmlutil.SelectedOptionValue(doc.Find("#country"))
	b.location = htmlutil.InputValue(doc.Find("#location"))
	b.aka = htmlutil.InputValue(doc.Find("#altSpell"))
	b.themes = htmlutil.InputValue(doc.Find("#themes"))
	b.formed = htmlutil.InputValue(doc.Find("#yearCreation"))
	b.activity = parseActivityPeriods(doc)
	b.unsigned = htmlutil.Checked(doc.Find("#indieLabel_1"))
	b.logo = doc.Find(".band_name_img > a#logo").AttrOr("href", "")
	b.photo = doc.Find(".band_img > #photo").AttrOr("href", "")
	b.notes = htmlutil.TextareaValue(doc.Find("textarea[name=notes]"))
	b.evidence = htmlutil.TextareaValue(doc.Find("textarea[name=notesPending]"))
	b.warning = htmlutil.TextareaValue(doc.Find("textarea[name=notesWarning]"))
	b.modNotes = htmlutil.TextareaValue(doc.Find("textarea[name=notesModeration]"))
	// a band reachable through its edit page was necessarily accepted
	b.modStatus = "accepted"
	b.digital = htmlutil.Checked(doc.Find("#acceptedAsDigital_1"))
	b.locked = htmlutil.Checked(doc.Find("#lockedDisco_1"))
	b.mu.Unlock()

	// only one label slot exists today, but nothing says that must hold
	g := &group{}
	if labelId := htmlutil.InputValue(doc.Find("#labelId")); labelId != "" && labelId != "0" {
		label := b.arch.Label(labelId)
		b.mu.Lock()
		b.labels = append(b.labels, label)
		b.mu.Unlock()
		g.Go(func() error { return label.Load(ctx) })
	}
	return g.Wait()
}

// loadPeripherals pulls data only visible on the public band page, which for
// bands is just the audit trail.
func (b *Band) loadPeripherals(ctx context.Context) error {
	b.log("loading: peripherals")

	page := "/band/view/id/" + b.Id()
	doc, err := b.arch.site.FetchPage(ctx, page)
	if err != nil {
		return err
	}

	g := &group{}
	if err := b.parseAuditTrail(ctx, doc, page, g); err != nil {
		return err
	}
	return g.Wait()
}

func (b *Band) loadMembers(ctx context.Context) error {
	g := &group{}
	g.Go(func() error { return b.arch.loadLineup(ctx, b, lineupMain) })
	g.Go(func() error { return b.arch.loadLineup(ctx, b, lineupLive) })
	return g.Wait()
}

var trailingId = regexp.MustCompile(`/(\d+)(?:#[^/]*)?$`)

// loadDiscography walks the band's full release list and loads each release.
func (b *Band) loadDiscography(ctx context.Context) error {
	b.log("loading: discography")

	page := fmt.Sprintf("/band/discography/id/%s/tab/all", b.Id())
	doc, err := b.arch.site.FetchPage(ctx, page)
	if err != nil {
		return err
	}

	g := &group{}
	doc.Find("table.discog tbody tr, table.display tbody tr").Each(func(_ int, row *goquery.Selection) {
		href := row.Find("td a").First().AttrOr("href", "")
		m := trailingId.FindStringSubmatch(href)
		if m == nil {
			// bands with no releases render a single placeholder row
			return
		}
		release := b.arch.Release(m[1])
		g.Go(func() error { return release.Load(ctx) })
	})
	return g.Wait()
}

// loadRecommendations resolves the band's similarity list, then the
// individual user votes behind each similar band.
func (b *Band) loadRecommendations(ctx context.Context) error {
	b.log("loading: recommendations")

	page := fmt.Sprintf("/band/ajax-recommendations/id/%s/showMoreSimilar/1", b.Id())
	doc, err := b.arch.site.FetchPage(ctx, page)
	if err != nil {
		return err
	}

	g := &group{}
	doc.Find("#artist_list tbody tr").Each(func(_ int, row *goquery.Selection) {
		href := row.Find("td a").First().AttrOr("href", "")
		m := trailingId.FindStringSubmatch(href)
		if m == nil {
			return
		}
		other := m[1]
		g.Go(func() error { return b.loadVotes(ctx, other) })
	})
	return g.Wait()
}

var voteScore = regexp.MustCompile(`[-+]\s*1`)

// loadVotes pulls the per-user votes for one band-similarity pairing.
func (b *Band) loadVotes(ctx context.Context, otherId string) error {
	page := fmt.Sprintf("/recommendation/view-votes/bandId/%s/similarBandId/%s", b.Id(), otherId)
	doc, err := b.arch.site.FetchPage(ctx, page)
	if err != nil {
		return err
	}

	g := &group{}
	doc.Find("table tbody tr").Each(func(_ int, row *goquery.Selection) {
		name := htmlutil.CleanText(row.Find(`a[href*="/users/"]`).First().Text())
		if name == "" {
			return
		}
		score := 0
		if m := voteScore.FindString(row.Text()); m != "" {
			if strings.HasPrefix(m, "-") {
				score = -1
			} else {
				score = 1
			}
		}
		if score == 0 {
			return
		}
		user := b.arch.UserByName(name)
		b.arch.Vote(user, []string{b.Id(), otherId}, score)
		g.Go(func() error { return user.Load(ctx) })
	})
	return g.Wait()
}

var activityId = regexp.MustCompile(`^bandActivity_(\d+)$`)

func parseActivityPeriods(doc *goquery.Document) map[string]*activityPeriod {
	out := map[string]*activityPeriod{}
	doc.Find(`span[id^="bandActivity_"]`).Each(func(_ int, el *goquery.Selection) {
		m := activityId.FindStringSubmatch(el.AttrOr("id", ""))
		if m == nil {
			return
		}
		id := m[1]
		out[id] = &activityPeriod{
			from: htmlutil.InputValue(el.Find(`input[name^="yearFrom"]`)),
			to:   htmlutil.InputValue(el.Find(`input[name^="yearTo"]`)),
			as:   htmlutil.InputValue(el.Find("#asBandName_" + id)),
			band: htmlutil.InputValue(el.Find("#asBandId_" + id)),
		}
	})
	return out
}

func (b *Band) project() any {
	f := fields{}
	f.set("name", b.name)
	f.set("genre", b.genre)
	f.set("status", b.status)
	f.set("country", b.country)
	f.set("location", b.location)
	f.set("aka", b.aka)
	f.set("themes", b.themes)
	f.set("formed", b.formed)
	if len(b.activity) > 0 {
		periods := fields{}
		for id, p := range b.activity {
			periods[id] = p.project()
		}
		f["activity"] = periods
	}
	f.set("unsigned", b.unsigned)
	f.set("logo", b.logo)
	f.set("photo", b.photo)
	f.set("notes", b.notes)
	f.set("evidence", b.evidence)
	f.set("warning", b.warning)
	f.set("modNotes", b.modNotes)
	f.set("modStatus", b.modStatus)
	f.set("rejection", b.rejection)
	f.set("digital", b.digital)
	f.set("locked", b.locked)
	if len(b.labels) > 0 {
		labels := make([]any, len(b.labels))
		for i, l := range b.labels {
			labels[i] = l.ref()
		}
		f["labels"] = labels
	}
	b.auditFields(f)
	return f
}
