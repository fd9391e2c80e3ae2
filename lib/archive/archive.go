package archive

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"maexport/lib/scrapers/metalarchives"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("archive")

// Site is the transport the graph loader pulls pages through. The concrete
// implementation owns authentication, retry and backoff.
type Site interface {
	FetchPage(ctx context.Context, endpoint string) (*goquery.Document, error)
	FetchPagedRows(ctx context.Context, endpoint string, query url.Values) (metalarchives.PagedRows, error)
}

// Archive is the context-scoped store for one export run: the identity
// registry, the transport, and the lazily-filled country table. Every entity
// factory hangs off it, so tests get a fresh graph by creating a fresh
// Archive.
type Archive struct {
	site      Site
	registry  *Registry
	countries *countryTable
}

func New(site Site) *Archive {
	return &Archive{
		site:      site,
		registry:  NewRegistry(),
		countries: newCountryTable(),
	}
}

func (a *Archive) Registry() *Registry {
	return a.registry
}

// RootEntity constructs the root entity for an export by kind name. Only
// independently-addressable kinds can act as roots.
func (a *Archive) RootEntity(kind, id string) (Entity, error) {
	switch Kind(kind) {
	case KindBand:
		return a.Band(id), nil
	case KindArtist:
		art := a.Artist(id)
		// a root artist gets their listed involvements followed too
		art.saveListedBands = true
		return art, nil
	case KindLabel:
		return a.Label(id), nil
	case KindRelease:
		return a.Release(id), nil
	case KindReport:
		return a.Report(id), nil
	case KindUser:
		return a.UserByName(id), nil
	}
	return nil, fmt.Errorf("%q is not an exportable resource type", kind)
}

// requireSel finds an element the page schema guarantees; its absence is a
// structural parse failure, surfaced with enough context to diagnose a
// site-markup change.
func requireSel(doc *goquery.Document, selector, page string) (*goquery.Selection, error) {
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil, fmt.Errorf("%s: missing expected element %q", page, selector)
	}
	return sel, nil
}

var digitsOnly = regexp.MustCompile(`^\d+$`)

// idValue renders an identifier as a JSON number when it is numeric, keeping
// provisional string ids (user display names, synthesized vote ids) as-is.
func idValue(id string) any {
	if digitsOnly.MatchString(id) && len(id) < 19 {
		n, err := strconv.ParseInt(id, 10, 64)
		if err == nil {
			return n
		}
	}
	return id
}

// compareIds orders ids numerically when both sides are numeric, falling
// back to lexical order.
func compareIds(a, b string) int {
	an, aerr := strconv.ParseInt(a, 10, 64)
	bn, berr := strconv.ParseInt(b, 10, 64)
	if aerr == nil && berr == nil {
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		}
		return 0
	}
	return strings.Compare(a, b)
}

// Credit names an act credited on a release or line-up: either a registered
// entity or the free-text name of an unlisted band.
type Credit struct {
	Entity   Entity
	Unlisted string
}

func (c Credit) isZero() bool {
	return c.Entity == nil && c.Unlisted == ""
}

func (c Credit) ref() any {
	if c.Entity != nil {
		return c.Entity.ref()
	}
	return c.Unlisted
}
