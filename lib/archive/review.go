package archive

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"maexport/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Review is a user-written album review, always discovered from a release's
// review listing and attributed to the top-most version of the release.
type Review struct {
	resource
	arch *Archive

	title    string
	rating   int
	subject  *Release
	version  *Release
	by       *User
	on       string
	ip       string
	approver *User
	body     string
}

var (
	reviewHeading   = regexp.MustCompile(`(?s)^\s*(.*?)(?: - )(\d+)%\s*$`)
	reviewDateText  = regexp.MustCompile(`^\s*,\s*(.*?)(?:\s*~)?\s*$`)
	ordinalSuffix   = regexp.MustCompile(`(\d+)(?:th|st|nd|rd)`)
	writtenForLabel = regexp.MustCompile(`Written based on this version:`)
	brTag           = regexp.MustCompile(`(?i)<br(?:\s*/)?>`)
)

// reviewFromBox registers the review held in one .reviewBox block of a
// release's review page.
func (a *Archive) reviewFromBox(box *goquery.Selection, release *Release) (*Review, error) {
	idm := rowIdSuffix.FindStringSubmatch(box.AttrOr("id", ""))
	if idm == nil {
		return nil, fmt.Errorf("review box has no id: %q", box.AttrOr("id", ""))
	}
	id := idm[1]

	e, created := a.registry.getOrCreate(KindReview, id, func(id string) Entity {
		return &Review{
			resource: resource{kind: KindReview, id: id},
			arch:     a,
			subject:  release.getParent(true),
		}
	})
	rev := e.(*Review)
	if !created {
		return rev, nil
	}

	heading := box.Find(".reviewTitle").First()
	hm := reviewHeading.FindStringSubmatch(heading.Text())
	if hm == nil {
		return nil, fmt.Errorf("review %s: malformed heading %q", id, heading.Text())
	}
	rev.title = strings.TrimSpace(hm[1])
	rev.rating, _ = strconv.Atoi(hm[2])

	metadata := heading.Next()
	username := metadata.Find("a.profileMenu").First()
	if username.Length() == 0 {
		return nil, fmt.Errorf("review %s: no author link", id)
	}
	rev.by = a.UserByName(htmlutil.CleanText(username.Text()))

	// the move button leaks the author's numeric id
	if userId, ok := box.Find(".reviewMove").Attr("data-user"); ok {
		rev.by.adoptNumericId(userId)
	}

	// the publication date is the text node right after the author link
	if next := username.Nodes[0].NextSibling; next != nil && next.Type == html.TextNode {
		if dm := reviewDateText.FindStringSubmatch(next.Data); dm != nil {
			rev.on = parseReviewDate(dm[1])
		}
	}

	rev.ip = htmlutil.CleanText(metadata.Find(`a[href*='/tools/ip-cross-ref']`).First().Text())

	// reviews of a specific reissue carry a version link
	metadata.Contents().EachWithBreak(func(_ int, node *goquery.Selection) bool {
		if goquery.NodeName(node) != "#text" || !writtenForLabel.MatchString(node.Text()) {
			return true
		}
		if link := node.Nodes[0].NextSibling; link != nil && link.Type == html.ElementNode {
			for _, attr := range link.Attr {
				if attr.Key == "href" {
					if vm := trailingId.FindStringSubmatch(attr.Val); vm != nil {
						rev.version = a.Release(vm[1])
					}
				}
			}
		}
		return false
	})

	if approver := box.Find(".approver").First(); approver.Length() > 0 {
		if am := approvedByLabel.FindStringSubmatch(htmlutil.CleanText(approver.Text())); am != nil {
			rev.approver = a.UserByName(am[1])
		}
	}

	bodyHtml, err := box.Find("#reviewText_" + id).Html()
	if err != nil {
		return nil, err
	}
	rev.body = strings.TrimSpace(brTag.ReplaceAllString(bodyHtml, ""))

	return rev, nil
}

// Load resolves the approving moderator's profile; everything else was
// already parsed from the review box.
func (rev *Review) Load(ctx context.Context) error {
	return rev.runPipeline(ctx, []step{
		func(ctx context.Context) error {
			if rev.approver == nil {
				return nil
			}
			return rev.approver.Load(ctx)
		},
	})
}

// parseReviewDate normalises the site's "January 2nd, 2006" date strings.
// Unparseable input is kept as-is.
func parseReviewDate(raw string) string {
	cleaned := ordinalSuffix.ReplaceAllString(raw, "$1")
	t, err := time.Parse("January 2, 2006", cleaned)
	if err != nil {
		return strings.TrimSpace(raw)
	}
	return t.Format("2006-01-02 15:04:05")
}

func (rev *Review) project() any {
	f := fields{}
	f.set("title", rev.title)
	f.setAlways("rating", rev.rating)
	if rev.subject != nil {
		f.set("for", rev.subject.ref())
	}
	if rev.version != nil {
		f.set("version", rev.version.ref())
	}
	added := fields{}
	if rev.by != nil {
		added.set("by", rev.by.ref())
	}
	added.set("on", rev.on)
	added.set("ip", rev.ip)
	if len(added) > 0 {
		f["added"] = added
	}
	if rev.approver != nil {
		f.set("approver", rev.approver.ref())
	}
	f.set("body", rev.body)
	return f
}

func (rev *Review) ref() any {
	return idValue(rev.Id())
}
