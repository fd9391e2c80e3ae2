package archive

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"maexport/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// auditStamp records who touched a submission and when.
type auditStamp struct {
	by *User
	on string
}

func (s *auditStamp) project() any {
	f := fields{}
	if s.by != nil {
		f.set("by", s.by.ref())
	}
	f.set("on", s.on)
	return f
}

// submission is the shared half of user-editable content types: bands,
// artists, labels and releases. It carries the audit trail plus the loaders
// for the satellite objects every submission has (reports, modification
// history, related links).
type submission struct {
	resource
	arch *Archive

	// the outer entity, needed when satellites point back at their subject
	owner Entity

	added        *auditStamp
	modified     *auditStamp
	haveReports  bool
	reportsKnown bool
}

// ref is the nested form shared by the submission types: the id plus the
// site's object-type code, enough to find the full dump in the entity's own
// top-level table.
func (s *submission) ref() any {
	return fields{"id": idValue(s.Id()), "type": s.kind.objectTypeID()}
}

// auditFields merges the audit trail into a projection.
func (s *submission) auditFields(f fields) {
	if s.added != nil {
		f.set("added", s.added.project())
	}
	if s.modified != nil {
		f.set("modified", s.modified.project())
	}
}

var timestampLabel = regexp.MustCompile(`(?i)(^((?:Last\s*)?Modified|Added)\s+on:\s*|N/A\s*$)`)

// parseAuditTrail pulls creation/modification times from the page's footer
// table, scheduling loads for the users it names.
func (s *submission) parseAuditTrail(ctx context.Context, doc *goquery.Document, page string, g *group) error {
	trail, err := requireSel(doc, "#auditTrail", page)
	if err != nil {
		return err
	}
	rows := trail.Find("tr")
	if rows.Length() < 2 {
		return fmt.Errorf("%s: audit trail has %d rows, expected 2", page, rows.Length())
	}
	names := rows.Eq(0).Find("td")
	times := rows.Eq(1).Find("td")

	stampAt := func(col int) *auditStamp {
		by := htmlutil.CleanText(names.Eq(col).Find("a.profileMenu").Text())
		on := strings.TrimSpace(timestampLabel.ReplaceAllString(times.Eq(col).Text(), ""))
		if by == "" && on == "" {
			return nil
		}
		stamp := &auditStamp{on: on}
		if by != "" {
			u := s.arch.UserByName(by)
			stamp.by = u
			g.Go(func() error { return u.Load(ctx) })
		}
		return stamp
	}

	s.added = stampAt(0)
	s.modified = stampAt(1)

	s.haveReports = trail.Find(`a[href*="/report/by-object/"]`).Length() > 0
	s.reportsKnown = true
	return nil
}

var (
	hrefId     = regexp.MustCompile(`href='[^']*?(\d+)'`)
	anchorText = regexp.MustCompile(`>([^<]+)</a>`)
)

// loadReports pulls the submission's report history. Skipped when the audit
// trail already told us there are no reports.
func (s *submission) loadReports(ctx context.Context) error {
	if s.reportsKnown && !s.haveReports {
		s.log("skipping: reports")
		return nil
	}
	s.log("loading: reports")

	endpoint := fmt.Sprintf(
		"/report/ajax-by-object/type/%d/id/%s/mode/page/json/1",
		s.kind.objectTypeID(), s.Id(),
	)
	rows, err := s.arch.fetchAllRows(ctx, endpoint, defaultPageSize, reportListQuery)
	if err != nil {
		return err
	}

	g := &group{}
	for _, row := range rows {
		if len(row) < 4 {
			return fmt.Errorf("%s: report row has %d cells, expected 4+", endpoint, len(row))
		}
		m := hrefId.FindStringSubmatch(row[0])
		if m == nil {
			return fmt.Errorf("%s: report row missing id link: %q", endpoint, row[0])
		}
		report := s.arch.Report(m[1])
		report.presetListing(s.owner, row[1], reportStatusByName(row[2]))

		// reports filed by anonymous visitors carry no submitter link
		if by := anchorText.FindStringSubmatch(row[3]); by != nil {
			report.presetBy(s.arch.UserByName(by[1]))
		}
		g.Go(func() error { return report.Load(ctx) })
	}
	return g.Wait()
}

// loadHistory pulls the submission's modification history. One edit event
// can cover several subjects, so edits register this submission alongside
// whatever else they already cover.
func (s *submission) loadHistory(ctx context.Context) error {
	s.log("loading: history")

	endpoint := fmt.Sprintf(
		"/history/ajax-view/id/%s/type/%s/mode/page/filter/all",
		s.Id(), s.kind,
	)
	rows, err := s.arch.fetchAllRows(ctx, endpoint, defaultPageSize, historyListQuery)
	if err != nil {
		return err
	}

	g := &group{}
	for _, row := range rows {
		edit, err := s.arch.editFromRow(row)
		if err != nil {
			return fmt.Errorf("%s: %w", endpoint, err)
		}
		edit.addSubject(s.owner)
		g.Go(func() error { return edit.Load(ctx) })
	}
	return g.Wait()
}

var (
	fragmentRef  = regexp.MustCompile(`#(.+)$`)
	linkFormCall = regexp.MustCompile(`loadLinkForm\((\d+)\)`)
)

// loadLinks pulls the submission's "Related Links" tab, one table per
// category.
func (s *submission) loadLinks(ctx context.Context) error {
	s.log("loading: links")

	page := fmt.Sprintf("/link/ajax-list/type/%s/id/%s", s.kind, s.Id())
	doc, err := s.arch.site.FetchPage(ctx, page)
	if err != nil {
		return err
	}

	categories := htmlutil.GetAnchors(doc.Find(fmt.Sprintf("#%s_links > ul a", s.kind)))
	for _, category := range categories {
		frag := fragmentRef.FindStringSubmatch(category.Href)
		if frag == nil {
			return fmt.Errorf("%s: link category %q has no fragment href", page, category.Name)
		}

		block := doc.Find("#" + frag[1])
		block.Find("table[id^='linksTable'] tr").Each(func(_ int, row *goquery.Selection) {
			html, _ := row.Html()
			m := linkFormCall.FindStringSubmatch(html)
			if m == nil {
				return
			}
			anchor := doc.Find("#link" + m[1])
			s.arch.Link(m[1], linkArgs{
				name:    htmlutil.CleanText(anchor.Text()),
				url:     anchor.AttrOr("href", ""),
				typ:     category.Name,
				subject: s.owner,
			})
		})
	}
	return nil
}

// parseDateSelects assembles YYYY-MM-DD from the three dropdowns the site
// uses for every date field. Unset components render as zeros; a fully unset
// date comes out as the bogus 0000-00-00 and is dropped at projection time.
func parseDateSelects(doc *goquery.Document, daySel, monthSel, yearSel string) string {
	num := func(sel string) int {
		v := htmlutil.SelectedOptionValue(doc.Find(sel))
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0
		}
		return n
	}
	return fmt.Sprintf("%04d-%02d-%02d", num(yearSel), num(monthSel), num(daySel))
}

const bogusDate = "0000-00-00"
