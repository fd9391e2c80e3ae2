package archive

import (
	"context"
	"net/url"
	"testing"

	"maexport/lib/scrapers/metalarchives"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestLoadBlacklist(t *testing.T) {
	site := newFakeSite()
	site.rows = func(endpoint string, query url.Values) (metalarchives.PagedRows, error) {
		return metalarchives.PagedRows{
			Total: 2,
			Rows: [][]string{
				{
					`<a href='https://www.metal-archives.com/blacklist/entry/441'>Stillborn</a>`,
					"Poland",
					"NSBM side-project",
					`<a href='https://www.metal-archives.com/users/Alturiak'>Alturiak</a>, 2019-04-01`,
				},
				{
					"Nameless Horde",
					"",
					"hoax",
					"2011-11-11",
				},
			},
		}, nil
	}
	a := New(site)

	entries, err := a.LoadBlacklist(context.Background())
	require.NoError(t, err)

	diff := cmp.Diff(map[string]any{
		"441": fields{
			"name":    "Stillborn",
			"country": "Poland",
			"reason":  "NSBM side-project",
			"by":      "Alturiak",
			"on":      "2019-04-01",
		},
		// entries without a detail link fall back to their row index
		"1": fields{
			"name":   "Nameless Horde",
			"reason": "hoax",
			"on":     "2011-11-11",
		},
	}, entries)
	if diff != "" {
		t.Fatal(diff)
	}

	// the moderator ends up registered for the users table
	require.Contains(t, a.registry.AllOf(KindUser), "Alturiak")
}
