package archive

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"maexport/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// Report status codes, matching the site's status select values.
const (
	reportStatusUnassigned = 1
	reportStatusAssigned   = 2
	reportStatusResolved   = 3
	reportStatusClosed     = 4
)

var reportStatusLabels = map[int]string{
	reportStatusUnassigned: "Unassigned",
	reportStatusAssigned:   "Assigned",
	reportStatusResolved:   "Resolved",
	reportStatusClosed:     "Closed",
}

// reportStatusByName maps a status label to its code, case-insensitively.
// Unknown labels map to zero.
func reportStatusByName(name string) int {
	for code, label := range reportStatusLabels {
		if strings.EqualFold(name, label) {
			return code
		}
	}
	return 0
}

// reportComment is one message in a report's discussion thread.
type reportComment struct {
	text         string
	evidence     string
	haveEvidence bool
	by           *User
	on           string
	ip           string
}

func (c *reportComment) project() any {
	f := fields{}
	f.set("text", c.text)
	if c.haveEvidence {
		f.setAlways("evidence", c.evidence)
	}
	if c.by != nil {
		f.set("by", c.by.ref())
	}
	f.set("on", c.on)
	f.set("ip", c.ip)
	return f
}

// Report is a correction filed against a submission.
type Report struct {
	resource
	arch *Archive

	subject    Entity
	reportType string
	status     int
	haveStatus bool
	by         *User
	assignee   *User
	comments   map[string]*reportComment
}

func (a *Archive) Report(id string) *Report {
	e, _ := a.registry.getOrCreate(KindReport, id, func(id string) Entity {
		return &Report{
			resource: resource{kind: KindReport, id: id},
			arch:     a,
			comments: map[string]*reportComment{},
		}
	})
	return e.(*Report)
}

// presetListing seeds fields already visible in the report list a submission
// enumerates, sparing the report page a second scrape of them.
func (r *Report) presetListing(subject Entity, reportType string, status int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.subject == nil {
		r.subject = subject
	}
	if r.reportType == "" {
		r.reportType = reportType
	}
	if !r.haveStatus && status != 0 {
		r.status = status
		r.haveStatus = true
	}
}

func (r *Report) presetBy(by *User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.by == nil {
		r.by = by
	}
}

func (r *Report) Load(ctx context.Context) error {
	return r.runPipeline(ctx, []step{
		r.loadCore,
	})
}

var (
	assignedToLabel = regexp.MustCompile(`(?i)^\s*Assigned to\s+`)
	givePointCall   = regexp.MustCompile(`(?i)javascript:\s*givePoint\(\w+,\s*(\d+),`)
	approvedByLabel = regexp.MustCompile(`(?i)^\s*Approved by (.*)$`)
)

func (r *Report) loadCore(ctx context.Context) error {
	r.log("loading: main data")

	page := "/report/view/id/" + r.Id()
	doc, err := r.arch.site.FetchPage(ctx, page)
	if err != nil {
		return err
	}
	statusSel, err := requireSel(doc, "#report_status_id", page)
	if err != nil {
		return err
	}

	// the submissions enumerating this report can preset fields from other
	// goroutines, so parse into locals and commit under the lock
	r.mu.Lock()
	reportType := r.reportType
	status, haveStatus := r.status, r.haveStatus
	haveAssignee := r.assignee != nil
	r.mu.Unlock()

	if reportType == "" {
		r.log("category not preset, scraping from page")
		reportType = htmlutil.SelectedOptionText(doc.Find("#report_category_id"))
	}

	if !haveStatus {
		r.log("status not preset, scraping from page")
		status, _ = strconv.Atoi(htmlutil.SelectedOptionValue(statusSel))
	}

	var assignee *User
	if status == reportStatusAssigned && !haveAssignee {
		// a -2 option ("assign to me") means someone else holds the
		// assignment and their name sits in the selected option's label;
		// its absence means the logged-in moderator is the assignee
		if statusSel.Find("option[value='-2']").Length() > 0 {
			label := htmlutil.SelectedOptionText(statusSel)
			name := strings.TrimSpace(assignedToLabel.ReplaceAllString(label, ""))
			if name != "" {
				assignee = r.arch.UserByName(name)
			}
		} else {
			name := htmlutil.CleanText(doc.Find(".member_name").First().Text())
			if name != "" {
				assignee = r.arch.UserByName(name)
			}
		}
	}

	comments := map[string]*reportComment{}
	doc.Find(".commentBox").Each(func(_ int, box *goquery.Selection) {
		idm := rowIdSuffix.FindStringSubmatch(box.AttrOr("id", ""))
		if idm == nil {
			return
		}
		id := idm[1]

		comment := &reportComment{
			text: strings.TrimSpace(doc.Find("#commentText_" + id).Text()),
			on:   box.Find(".comment-datetime").AttrOr("data-datetime", ""),
			ip:   htmlutil.CleanText(box.Find(`a[href*='/tools/ip-cross-ref']`).First().Text()),
		}

		// evidence follows a bold marker inside the comment body
		if marker := box.Find(".commentContent > strong"); marker.Length() > 0 {
			comment.haveEvidence = true
			var b strings.Builder
			for n := marker.Nodes[0].NextSibling; n != nil; n = n.NextSibling {
				b.WriteString(htmlutil.GetText(n))
			}
			comment.evidence = strings.TrimSpace(b.String())
		}

		if userLink := box.Find(".profileMenu").First(); userLink.Length() > 0 {
			by := r.arch.UserByName(htmlutil.CleanText(userLink.Text()))
			// the comment's give-a-point button leaks the commenter's
			// numeric id; adopt it so a later profile load is spared
			if !by.named() {
				buttons, _ := box.Find(".commentButtons").Html()
				if m := givePointCall.FindStringSubmatch(buttons); m != nil {
					by.adoptNumericId(m[1])
				}
			}
			comment.by = by
		}

		comments[id] = comment
	})

	r.mu.Lock()
	r.reportType = reportType
	r.status = status
	r.haveStatus = true
	if r.assignee == nil {
		r.assignee = assignee
	}
	for id, c := range comments {
		r.comments[id] = c
	}
	r.mu.Unlock()
	return nil
}

func (r *Report) project() any {
	f := fields{}
	if r.subject != nil {
		f.set("for", r.subject.ref())
	}
	f.set("type", r.reportType)
	f.set("status", r.status)
	if r.assignee != nil {
		f.set("assignee", r.assignee.ref())
	}
	if len(r.comments) > 0 {
		comments := fields{}
		for id, c := range r.comments {
			comments[id] = c.project()
		}
		f["comments"] = comments
	}
	return f
}

func (r *Report) ref() any {
	return idValue(r.Id())
}
