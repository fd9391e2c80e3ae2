package archive

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"maexport/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// component is one physical piece of a release: a disc, a tape, a side of
// vinyl grouping.
type component struct {
	title       string
	format      string
	rpm         string
	size        string
	titles      []string
	hasSides    bool
	doubleSided bool
	singleSided bool
}

func (c *component) project() any {
	f := fields{}
	f.set("title", c.title)
	f.set("format", c.format)
	f.set("rpm", c.rpm)
	f.set("size", c.size)
	if len(c.titles) > 0 {
		f["titles"] = c.titles
	}
	if c.hasSides {
		f.setAlways("doubleSided", c.doubleSided)
		f.setAlways("singleSided", c.singleSided)
	}
	return f
}

type Release struct {
	submission

	parent        *Release
	overrideSongs bool
	name          string
	releaseType   string
	date          string
	catId         string
	limitation    string
	cover         string
	description   string
	authenticity  string
	separate      bool
	locked        bool
	notes         string
	recordingInfo string
	identifiers   string
	warning       string
	labels        []*Label
	bands         []Credit
	components    []*component
	tracks        []*Track
}

func (a *Archive) Release(id string) *Release {
	e, _ := a.registry.getOrCreate(KindRelease, id, func(id string) Entity {
		rel := &Release{submission: submission{
			resource: resource{kind: KindRelease, id: id},
			arch:     a,
		}}
		rel.owner = rel
		return rel
	})
	return e.(*Release)
}

// presetName seeds the title on a placeholder release created from a bare
// line-up link.
func (rel *Release) presetName(name string) {
	rel.mu.Lock()
	defer rel.mu.Unlock()
	if rel.name == "" {
		rel.name = name
	}
}

// presetBands seeds the credited bands on a placeholder release.
func (rel *Release) presetBands(bands []Credit) {
	rel.mu.Lock()
	defer rel.mu.Unlock()
	if len(rel.bands) == 0 {
		rel.bands = bands
	}
}

// presetParent marks the release as a reissue of another version.
func (rel *Release) presetParent(parent *Release) {
	rel.mu.Lock()
	defer rel.mu.Unlock()
	if rel.parent == nil {
		rel.parent = parent
	}
}

func (rel *Release) Load(ctx context.Context) error {
	return rel.runPipeline(ctx, []step{
		rel.loadCore,
		rel.loadPeripherals,
		rel.loadMembers,
		rel.loadReports,
		rel.loadReviews,
		rel.loadCollectors,
		rel.loadHistory,
		rel.loadVersions,
	})
}

var sideHeader = regexp.MustCompile(`(?i)^\s*Side\s+(\w+)`)

func (rel *Release) loadCore(ctx context.Context) error {
	rel.log("loading: main data")

	page := "/release/edit/id/" + rel.Id()
	doc, err := rel.arch.site.FetchPage(ctx, page)
	if err != nil {
		return err
	}
	typeSelect, err := requireSel(doc, "#typeId", page)
	if err != nil {
		return err
	}

	g := &group{}

	// reissues inherit unedited fields from a parent version; inherited
	// inputs are tagged with a class and must not be stored again
	if parentId := htmlutil.InputValue(doc.Find("input[name='parentId']")); parentId != "" {
		parent := rel.arch.Release(parentId)
		rel.presetParent(parent)
		n, _ := strconv.Atoi(htmlutil.InputValue(doc.Find("#override_songs")))
		rel.mu.Lock()
		rel.overrideSongs = n != 0
		rel.mu.Unlock()
		// safe even when the parent discovered us: the load-once guard
		// stops the ping-pong
		g.Go(func() error { return parent.Load(ctx) })
	}

	releaseType := typeSelect.Find("option[selected]")
	if releaseType.Length() == 0 {
		releaseType = typeSelect.Find("option").First()
	}
	bandsPerTrack := releaseType.AttrOr("data-band-per-track", "") == "1"

	// line-up loaders can presetName/presetBands this release concurrently,
	// so the field writes hold the entity lock
	rel.mu.Lock()
	rel.name = htmlutil.InputValue(doc.Find("#releaseName:not(.inheritedField)"))
	if !typeSelect.HasClass("inheritedField") {
		rel.releaseType = htmlutil.CleanText(releaseType.Text())
	}
	if doc.Find("select[name^='releaseDate'].inheritedField").Length() == 0 {
		rel.date = parseDateSelects(doc, "#releaseDateDay", "#releaseDateMonth", "#releaseDateYear")
	}
	rel.catId = htmlutil.InputValue(doc.Find("#catalogNumber:not(.inheritedField)"))
	rel.limitation = htmlutil.InputValue(doc.Find("#nbCopies:not(.inheritedField)"))
	if doc.Find("#cover.inheritedField").Length() == 0 {
		rel.cover = doc.Find(".album_img > #cover").AttrOr("href", "")
	}
	rel.description = htmlutil.InputValue(doc.Find("#versionDescription:not(.inheritedField)"))
	rel.authenticity = htmlutil.SelectedOptionText(doc.Find("#authenticityId"))
	rel.separate = htmlutil.Checked(doc.Find("#separateListing_1"))
	rel.locked = htmlutil.Checked(doc.Find("#lockUpdates_1"))
	rel.notes = htmlutil.TextareaValue(doc.Find("textarea[name=notes]:not(.inheritedField)"))
	rel.recordingInfo = htmlutil.TextareaValue(doc.Find("textarea[name=recordingInfo]:not(.inheritedField)"))
	rel.identifiers = htmlutil.TextareaValue(doc.Find("textarea[name=identifiers]:not(.inheritedField)"))
	rel.warning = htmlutil.TextareaValue(doc.Find("textarea[name=notesWarning]:not(.inheritedField)"))
	rel.mu.Unlock()

	labelId := htmlutil.InputValue(doc.Find("#labelId"))
	selfReleased := htmlutil.Checked(doc.Find("#indieLabel_1"))
	if labelId != "" && labelId != "0" && !selfReleased {
		label := rel.arch.Label(labelId)
		rel.mu.Lock()
		rel.labels = []*Label{label}
		rel.mu.Unlock()
		g.Go(func() error { return label.Load(ctx) })
	}

	// bands credited on the release; split releases list several, and
	// unlisted entries come through with an @-prefixed option value
	var bands []Credit
	doc.Find(".trackSplitBands").First().Children().Each(func(_ int, opt *goquery.Selection) {
		value := opt.AttrOr("value", "")
		text := htmlutil.CleanText(opt.Text())
		if strings.HasPrefix(value, "@") {
			bands = append(bands, Credit{Unlisted: text})
			return
		}
		band := rel.arch.Band(value)
		band.presetName(text)
		bands = append(bands, Credit{Entity: band})
	})
	rel.mu.Lock()
	rel.bands = bands
	rel.mu.Unlock()

	var comps []*component
	var tracks []*Track
	doc.Find("#tracklist > tbody").Each(func(disc int, fieldset *goquery.Selection) {
		comp := &component{
			title: htmlutil.InputValue(fieldset.Find(".componentTitle")),
		}

		format := fieldset.Find("select[name^=formats]")
		activeFormat := format.Find("option[selected]")
		if activeFormat.Length() == 0 {
			activeFormat = format.Find("option").First()
		}
		comp.hasSides = activeFormat.AttrOr("data-sides", "") == "1"
		hasRPM := activeFormat.AttrOr("data-rpm", "") == "1"
		hasSizes := activeFormat.AttrOr("data-sizes", "") == "1"
		if v := activeFormat.AttrOr("value", ""); v != "" && v != "0" {
			comp.format = htmlutil.CleanText(activeFormat.Text())
		}
		if hasRPM {
			comp.rpm = htmlutil.SelectedOptionValue(fieldset.Find("select[name^=rpm]"))
		}
		if hasSizes {
			comp.size = htmlutil.SelectedOptionValue(fieldset.Find("select[name^=size]"))
		}
		if comp.hasSides {
			blank := true
			fieldset.Find("input[name^=sideTitle]").Each(func(_ int, el *goquery.Selection) {
				v := htmlutil.InputValue(el)
				comp.titles = append(comp.titles, v)
				if v != "" {
					blank = false
				}
			})
			if blank {
				comp.titles = nil
			}
			comp.doubleSided = htmlutil.Checked(fieldset.Find("input[name^=chkSameSongs]"))
			comp.singleSided = htmlutil.Checked(fieldset.Find("input[name^=chkOnlySideA]"))
		}
		comps = append(comps, comp)

		// walk the rows in order so side headers apply to the tracks below
		side := ""
		headerIndex := 0
		fieldset.Find("tr").Each(func(_ int, row *goquery.Selection) {
			if comp.hasSides && row.HasClass("sideHeader") {
				if m := sideHeader.FindStringSubmatch(row.Text()); m != nil {
					side = m[1]
				} else if headerIndex < len("ABCDEFGH") {
					side = string("ABCDEFGH"[headerIndex])
				}
				headerIndex++
				return
			}
			if !row.HasClass("track") {
				return
			}
			idm := rowIdSuffix.FindStringSubmatch(row.AttrOr("id", ""))
			if idm == nil {
				return
			}
			id := idm[1]

			trackBand := ""
			if bandsPerTrack {
				trackBand = strings.TrimPrefix(
					htmlutil.SelectedOptionValue(row.Find(".trackSplitBands")), "@")
			}
			index, _ := strconv.Atoi(htmlutil.InputValue(row.Find(".trackNumberField")))

			track := rel.arch.Track(id)
			track.LoadData(trackData{
				name:         htmlutil.InputValue(row.Find(".trackTitleField")),
				length:       htmlutil.InputValue(row.Find("#length_" + id)),
				lyrics:       htmlutil.TextareaValue(fieldset.Find("#lyricsBox_" + id)),
				instrumental: htmlutil.Checked(row.Find("#isInstrumental_" + id)),
				bonus:        htmlutil.Checked(row.Find("#isBonus_" + id)),
				release:      rel.Id(),
				index:        index,
				disc:         disc + 1,
				band:         trackBand,
				side:         side,
			})
			tracks = append(tracks, track)
		})
	})
	rel.mu.Lock()
	rel.components = comps
	rel.tracks = tracks
	rel.mu.Unlock()

	if err := g.Wait(); err != nil {
		return err
	}

	// reissues that merely repeat the parent's bands or component layout
	// should not duplicate them in output
	if parent := rel.parentRef(); parent != nil {
		parentBands, parentComps := parent.inheritKeys()
		rel.mu.Lock()
		if creditsKey(rel.bands) == parentBands {
			rel.bands = nil
		}
		if reflect.DeepEqual(projectComponents(rel.components), parentComps) {
			rel.components = nil
		}
		rel.mu.Unlock()
	}
	return nil
}

// parentRef reads the parent pointer under the lock; presetParent can fill
// it in from another goroutine mid-load.
func (rel *Release) parentRef() *Release {
	rel.mu.Lock()
	defer rel.mu.Unlock()
	return rel.parent
}

// inheritKeys returns the comparison forms of the fields a reissue may
// inherit, read under the lock so an in-flight load cannot tear them.
func (rel *Release) inheritKeys() (string, []any) {
	rel.mu.Lock()
	defer rel.mu.Unlock()
	return creditsKey(rel.bands), projectComponents(rel.components)
}

// creditsKey flattens a credit list for cheap equality checks.
func creditsKey(credits []Credit) string {
	parts := make([]string, len(credits))
	for i, c := range credits {
		if c.Entity != nil {
			parts[i] = c.Entity.Id()
		} else {
			parts[i] = "@" + c.Unlisted
		}
	}
	return strings.Join(parts, "|")
}

func projectComponents(comps []*component) []any {
	if comps == nil {
		return nil
	}
	out := make([]any, len(comps))
	for i, c := range comps {
		out[i] = c.project()
	}
	return out
}

func (rel *Release) loadPeripherals(ctx context.Context) error {
	rel.log("loading: peripherals")

	page := "/release/view/id/" + rel.Id()
	doc, err := rel.arch.site.FetchPage(ctx, page)
	if err != nil {
		return err
	}

	g := &group{}
	if err := rel.parseAuditTrail(ctx, doc, page, g); err != nil {
		return err
	}
	return g.Wait()
}

func (rel *Release) loadMembers(ctx context.Context) error {
	g := &group{}
	g.Go(func() error { return rel.arch.loadLineup(ctx, rel, lineupMain) })
	g.Go(func() error { return rel.arch.loadLineup(ctx, rel, lineupGuest) })
	g.Go(func() error { return rel.arch.loadLineup(ctx, rel, lineupMisc) })
	return g.Wait()
}

func (rel *Release) loadReviews(ctx context.Context) error {
	rel.log("loading: reviews")

	page := fmt.Sprintf("/reviews/_/_/%s/", rel.Id())
	doc, err := rel.arch.site.FetchPage(ctx, page)
	if err != nil {
		return err
	}

	g := &group{}
	var parseErr error
	doc.Find(".reviewBox").EachWithBreak(func(_ int, box *goquery.Selection) bool {
		review, err := rel.arch.reviewFromBox(box, rel)
		if err != nil {
			parseErr = err
			return false
		}
		g.Go(func() error { return review.Load(ctx) })
		return true
	})
	if parseErr != nil {
		return parseErr
	}
	return g.Wait()
}

// Collection list type ids, matching the site's query parameter.
const (
	collectorsOwners  = 1
	collectorsTraders = 2
	collectorsWanters = 3
)

var collectorListNames = map[int]string{
	collectorsOwners:  ListCollection,
	collectorsTraders: ListTrade,
	collectorsWanters: ListWish,
}

var collectorName = regexp.MustCompile(`(?i)>([^<]+)</a>\s*$`)

func (rel *Release) loadCollectors(ctx context.Context) error {
	rel.log("loading: collectors")

	g := &group{}
	for typ := range collectorListNames {
		g.Go(func() error { return rel.loadCollectorList(ctx, typ) })
	}
	return g.Wait()
}

// loadCollectorList applies one ownership list onto the users it names.
// Owners of this specific version record it under the base release; owners
// of an unspecified version only count when this release is the base.
func (rel *Release) loadCollectorList(ctx context.Context, typ int) error {
	endpoint := fmt.Sprintf("/collection/ajax-owners/id/%s/type/%d/json/1", rel.Id(), typ)
	rows, err := rel.arch.fetchAllRows(ctx, endpoint, 200, collectorsListQuery)
	if err != nil {
		return err
	}

	listName := collectorListNames[typ]
	for _, row := range rows {
		if len(row) < 4 {
			return fmt.Errorf("%s: collector row has %d cells, expected 4", endpoint, len(row))
		}
		groupId, version, notes := row[0], row[2], row[3]
		m := collectorName.FindStringSubmatch(row[1])
		if m == nil {
			return fmt.Errorf("%s: collector row missing user link: %q", endpoint, row[1])
		}
		user := rel.arch.UserByName(m[1])

		switch {
		case groupId == "0":
			user.addVersionedCollection(listName, rel.getParent(false).Id(), rel.Id(), notes)
		case version == "Unspecified" && rel.parentRef() == nil:
			user.addUnversionedCollection(listName, rel.Id(), notes)
		}
	}
	return nil
}

// loadVersions discovers the release's reissues. Reissues themselves skip
// this step or the ping-pong would never settle.
func (rel *Release) loadVersions(ctx context.Context) error {
	if rel.parentRef() != nil {
		return nil
	}
	rel.log("loading: other versions")

	page := fmt.Sprintf("/release/ajax-versions/current/%s/parent/%s", rel.Id(), rel.Id())
	doc, err := rel.arch.site.FetchPage(ctx, page)
	if err != nil {
		return err
	}

	g := &group{}
	doc.Find("table.display > tbody > tr:not(.priorityReport)").Each(func(_ int, row *goquery.Selection) {
		editBtn := row.Find(".ui-icon-pencil").Parent()
		m := trailingId.FindStringSubmatch(editBtn.AttrOr("href", ""))
		if m == nil {
			return
		}
		if m[1] == rel.Id() {
			return
		}
		reissue := rel.arch.Release(m[1])
		reissue.presetParent(rel)
		g.Go(func() error { return reissue.Load(ctx) })
	})
	return g.Wait()
}

// bandsInTitle lists the bands named in a release's title element. Listed
// bands arrive as links; unlisted ones are bare text between separators.
func (a *Archive) bandsInTitle(el *goquery.Selection) []Credit {
	var bands []Credit
	el.Contents().Each(func(_ int, node *goquery.Selection) {
		if goquery.NodeName(node) == "#text" {
			for _, part := range strings.Split(node.Text(), "/") {
				if part = strings.TrimSpace(part); part != "" {
					bands = append(bands, Credit{Unlisted: part})
				}
			}
			return
		}
		if goquery.NodeName(node) != "a" {
			return
		}
		m := trailingId.FindStringSubmatch(node.AttrOr("href", ""))
		if m == nil {
			return
		}
		band := a.Band(m[1])
		band.presetName(htmlutil.CleanText(node.Text()))
		bands = append(bands, Credit{Entity: band})
	})
	return bands
}

// getParent returns the release's parent version, or the release itself when
// it has none. topMost walks to the oldest ancestor; the visited guard keeps
// a malformed parent cycle from hanging the walk.
func (rel *Release) getParent(topMost bool) *Release {
	parent := rel.parentRef()
	if parent == nil {
		return rel
	}
	if !topMost {
		return parent
	}
	seen := map[*Release]bool{rel: true}
	for {
		next := parent.parentRef()
		if next == nil || seen[parent] {
			return parent
		}
		seen[parent] = true
		parent = next
	}
}

func (rel *Release) project() any {
	f := fields{}
	// the parent pointer is a bare id, unlike other nested submission
	// references
	if rel.parent != nil {
		f.set("parent", idValue(rel.parent.Id()))
	}
	f.set("overrideSongs", rel.overrideSongs)
	f.set("name", rel.name)
	f.set("type", rel.releaseType)
	if rel.date != bogusDate {
		f.set("date", rel.date)
	}
	if len(rel.labels) > 0 {
		labels := make([]any, len(rel.labels))
		for i, l := range rel.labels {
			labels[i] = l.ref()
		}
		f["labels"] = labels
	}
	f.set("catId", rel.catId)
	f.set("limitation", rel.limitation)
	f.set("cover", rel.cover)
	f.set("description", rel.description)
	f.set("authenticity", rel.authenticity)
	f.set("separate", rel.separate)
	f.set("locked", rel.locked)
	f.set("notes", rel.notes)
	f.set("recordingInfo", rel.recordingInfo)
	f.set("identifiers", rel.identifiers)
	f.set("warning", rel.warning)
	switch len(rel.bands) {
	case 0:
	case 1:
		f.set("for", rel.bands[0].ref())
	default:
		bands := make([]any, len(rel.bands))
		for i, c := range rel.bands {
			bands[i] = c.ref()
		}
		f["for"] = bands
	}
	if comps := projectComponents(rel.components); comps != nil {
		f["components"] = comps
	}
	rel.auditFields(f)
	return f
}
