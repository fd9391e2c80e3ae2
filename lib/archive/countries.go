package archive

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"maexport/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// countryTable maps country display names to their ISO 3166-1 alpha-2 codes
// and back. The site exposes the mapping on its submission forms, so the
// table is scraped lazily the first time someone needs it. Concurrent
// callers coalesce onto one in-flight fetch instead of each issuing their
// own.
type countryTable struct {
	mu      sync.Mutex
	cond    *sync.Cond
	loaded  bool
	filling bool
	byName  map[string]string
	byCode  map[string]string
}

func newCountryTable() *countryTable {
	t := &countryTable{
		byName: map[string]string{},
		byCode: map[string]string{},
	}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// seed fills the table from any page that happens to carry a country
// <select>. Idempotent: once loaded, later seeds are ignored.
func (t *countryTable) seed(sel *goquery.Selection) {
	entries := map[string]string{}
	sel.Find("option").Each(func(_ int, opt *goquery.Selection) {
		code := opt.AttrOr("value", "")
		if code == "" {
			return
		}
		entries[code] = htmlutil.CleanText(opt.Text())
	})
	if len(entries) == 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.loaded {
		return
	}
	for code, name := range entries {
		t.byCode[code] = name
		t.byName[name] = code
	}
	t.loaded = true
	t.cond.Broadcast()
	slog.Debug("country codes populated", "count", len(entries))
}

// ensure loads the table from the band submission form if nothing has seeded
// it yet. Only one fetch goes out; everyone else waits for it.
func (t *countryTable) ensure(ctx context.Context, site Site) error {
	t.mu.Lock()
	for t.filling {
		t.cond.Wait()
	}
	if t.loaded {
		t.mu.Unlock()
		return nil
	}
	t.filling = true
	t.mu.Unlock()

	err := t.fill(ctx, site)

	t.mu.Lock()
	t.filling = false
	t.cond.Broadcast()
	t.mu.Unlock()

	return err
}

func (t *countryTable) fill(ctx context.Context, site Site) error {
	doc, err := site.FetchPage(ctx, "/band/add")
	if err != nil {
		return fmt.Errorf("loading country table: %w", err)
	}
	sel, err := requireSel(doc, "#country", "/band/add")
	if err != nil {
		return err
	}
	t.seed(sel)
	return nil
}

// codeFor translates a country display name to its ISO code. Unknown names
// pass through unchanged.
func (t *countryTable) codeFor(name string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if code, ok := t.byName[name]; ok {
		return code
	}
	return name
}
