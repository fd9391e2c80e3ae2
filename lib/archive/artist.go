package archive

import (
	"context"
	"fmt"
	"regexp"

	"maexport/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// Artist is a person: one artist page can sit behind many members across
// bands and releases.
type Artist struct {
	submission

	// when true, involvement in listed bands is loaded too, not just
	// unlisted projects; set for artists that are the export root
	saveListedBands bool

	alias    string
	name     string
	born     string
	died     string
	diedOf   string
	country  string
	location string
	gender   string
	photo    string
	bio      string
	notes    string
	warning  string
}

func (a *Archive) Artist(id string) *Artist {
	e, _ := a.registry.getOrCreate(KindArtist, id, func(id string) Entity {
		art := &Artist{submission: submission{
			resource: resource{kind: KindArtist, id: id},
			arch:     a,
		}}
		art.owner = art
		return art
	})
	return e.(*Artist)
}

func (r *Artist) Load(ctx context.Context) error {
	return r.runPipeline(ctx, []step{
		r.loadCore,
		r.loadPeripherals,
		r.loadReports,
		r.loadHistory,
	})
}

func (r *Artist) loadCore(ctx context.Context) error {
	r.log("loading: main data")

	page := "/artist/edit/id/" + r.Id()
	doc, err := r.arch.site.FetchPage(ctx, page)
	if err != nil {
		return err
	}
	if _, err := requireSel(doc, "#fullName", page); err != nil {
		return err
	}

	r.alias = htmlutil.InputValue(doc.Find("#alias"))
	r.name = htmlutil.InputValue(doc.Find("#fullName"))
	r.born = parseDateSelects(doc, "#birthDateDay", "#birthDateMonth", "#birthDateYear")
	if htmlutil.Checked(doc.Find("#deathDateUnknown")) {
		r.died = "Unknown"
	} else {
		r.died = parseDateSelects(doc, "#deathDateDay", "#deathDateMonth", "#deathDateYear")
	}
	r.diedOf = htmlutil.InputValue(doc.Find("#deathCause"))
	r.country = htmlutil.SelectedOptionValue(doc.Find("#country"))
	r.location = htmlutil.InputValue(doc.Find("#location"))
	r.gender = doc.Find("input[name='gender']:checked").AttrOr("value", "")
	r.photo = doc.Find("#artist").AttrOr("href", "")
	r.bio = htmlutil.TextareaValue(doc.Find("textarea[name='biography']"))
	r.notes = htmlutil.TextareaValue(doc.Find("textarea[name='trivia']"))
	r.warning = htmlutil.TextareaValue(doc.Find("textarea[name='notesWarning']"))
	return nil
}

func (r *Artist) loadPeripherals(ctx context.Context) error {
	r.log("loading: peripherals")

	page := "/artist/view/id/" + r.Id()
	doc, err := r.arch.site.FetchPage(ctx, page)
	if err != nil {
		return err
	}

	g := &group{}
	g.Go(func() error { return r.loadBands(ctx, doc, r.saveListedBands) })
	if err := r.parseAuditTrail(ctx, doc, page, g); err != nil {
		return err
	}
	return g.Wait()
}

var (
	deleteMemberCall = regexp.MustCompile(`return deleteMember\((\d+)\)`)
	editRolesId      = regexp.MustCompile(`(?i)/lineup/edit-roles/id/(\d+)`)
)

// loadBands resolves the artist's involvement in other bands and recordings.
// By default only unlisted bands and projects are followed; saveAll follows
// the listed ones too.
func (r *Artist) loadBands(ctx context.Context, doc *goquery.Document, saveAll bool) error {
	g := &group{}

	loadReleases := func(block *goquery.Selection) error {
		var parseErr error
		block.Find("tr[id^='memberInAlbum_']").EachWithBreak(func(_ int, row *goquery.Selection) bool {
			html, err := row.Html()
			if err != nil {
				parseErr = err
				return false
			}
			m := deleteMemberCall.FindStringSubmatch(html)
			if m == nil {
				return true
			}
			member := r.arch.Member(m[1])
			g.Go(func() error { return member.Load(ctx) })
			return true
		})
		return parseErr
	}

	var parseErr error
	doc.Find(".member_in_band").EachWithBreak(func(_ int, block *goquery.Selection) bool {
		bandName := block.Find(".member_in_band_name")
		bandLink := bandName.Find("a")
		html, err := block.Html()
		if err != nil {
			parseErr = err
			return false
		}

		// unlisted band: no encyclopaedia page to link to
		if bandLink.Length() == 0 {
			if m := editRolesId.FindStringSubmatch(html); m != nil {
				member := r.arch.Member(m[1])
				g.Go(func() error { return member.Load(ctx) })
			}
			parseErr = loadReleases(block)
			return parseErr == nil
		}

		if !saveAll {
			return true
		}

		idm := trailingId.FindStringSubmatch(bandLink.First().AttrOr("href", ""))
		if idm == nil {
			parseErr = fmt.Errorf("artist %s: band link has no id", r.Id())
			return false
		}
		band := r.arch.Band(idm[1])
		band.presetName(htmlutil.CleanText(bandLink.First().Text()))

		// a tool strip means the artist sits in the band's main line-up
		if toolStrip := block.Find(".tool_strip"); toolStrip.Length() > 0 {
			stripHtml, err := toolStrip.Html()
			if err != nil {
				parseErr = err
				return false
			}
			if m := deleteMemberCall.FindStringSubmatch(stripHtml); m != nil {
				member := r.arch.Member(m[1])
				member.presetSubject(Credit{Entity: band})
				g.Go(func() error { return member.Load(ctx) })
			} else {
				// the involvement id is only visible on the full line-up form
				g.Go(func() error { return r.loadLineupMembership(ctx, band) })
			}
		}

		parseErr = loadReleases(block)
		return parseErr == nil
	})
	if parseErr != nil {
		return parseErr
	}
	return g.Wait()
}

// loadLineupMembership scrapes a band's line-up edit form for this artist's
// row, used when the profile page hides the member id.
func (r *Artist) loadLineupMembership(ctx context.Context, band *Band) error {
	r.log("loading full line-up data for band " + band.Id())

	page := fmt.Sprintf("/lineup/edit-artists/bandId/%s/typeId/1/releaseId/0", band.Id())
	doc, err := r.arch.site.FetchPage(ctx, page)
	if err != nil {
		return err
	}

	selfLink := fmt.Sprintf(`a[href$="/artist/edit/id/%s"]`, r.Id())
	var found *goquery.Selection
	doc.Find("tr[id^='artist_']").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		if row.Find(selfLink).Length() > 0 {
			found = row
			return false
		}
		return true
	})
	if found == nil {
		return nil
	}

	idm := rowIdSuffix.FindStringSubmatch(found.AttrOr("id", ""))
	if idm == nil {
		return fmt.Errorf("%s: artist row has no member id", page)
	}
	member := r.arch.Member(idm[1])
	member.presetSubject(Credit{Entity: band})
	return member.LoadChunks(ctx, found, doc.Find("#roleList_"+idm[1]), nil)
}

func (r *Artist) project() any {
	f := fields{}
	f.set("alias", r.alias)
	f.set("name", r.name)
	if r.born != bogusDate {
		f.set("born", r.born)
	}
	if r.died != bogusDate {
		f.set("died", r.died)
	}
	f.set("diedOf", r.diedOf)
	f.set("country", r.country)
	f.set("location", r.location)
	f.set("gender", r.gender)
	f.set("photo", r.photo)
	f.set("bio", r.bio)
	f.set("notes", r.notes)
	f.set("warning", r.warning)
	r.auditFields(f)
	return f
}
