package archive

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

const countrySelect = `<html><body><form>
<select id="country" name="country">
<option value="">--</option>
<option value="SE">Sweden</option>
<option value="NO"> Norway </option>
<option value="US">United States</option>
</select>
</form></body></html>`

func TestCountryTableEnsureCoalesces(t *testing.T) {
	site := newFakeSite()
	site.pages["/band/add"] = countrySelect
	a := New(site)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, a.countries.ensure(context.Background(), site))
		}()
	}
	wg.Wait()

	require.Equal(t, 1, site.fetchCount("/band/add"))
	require.Equal(t, "SE", a.countries.codeFor("Sweden"))
	require.Equal(t, "NO", a.countries.codeFor("Norway"))
}

func TestCountryTableUnknownNamePassesThrough(t *testing.T) {
	site := newFakeSite()
	site.pages["/band/add"] = countrySelect
	a := New(site)
	require.NoError(t, a.countries.ensure(context.Background(), site))

	require.Equal(t, "Atlantis", a.countries.codeFor("Atlantis"))
}

func TestCountryTableSeedFromAnyPage(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(countrySelect))
	require.NoError(t, err)

	site := newFakeSite()
	a := New(site)
	a.countries.seed(doc.Find("#country"))

	// already seeded, ensure must not hit the site
	require.NoError(t, a.countries.ensure(context.Background(), site))
	require.Equal(t, 0, site.fetchCount("/band/add"))
	require.Equal(t, "United States", a.countries.byCode["US"])
}
