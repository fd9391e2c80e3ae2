package archive

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"testing"

	"maexport/lib/scrapers/metalarchives"

	"github.com/stretchr/testify/require"
)

func scriptedRows(total, pageSize int) func(string, url.Values) (metalarchives.PagedRows, error) {
	return func(endpoint string, query url.Values) (metalarchives.PagedRows, error) {
		start, err := strconv.Atoi(query.Get("iDisplayStart"))
		if err != nil {
			return metalarchives.PagedRows{}, err
		}
		page := metalarchives.PagedRows{Total: total}
		for i := start; i < total && i < start+pageSize; i++ {
			page.Rows = append(page.Rows, []string{strconv.Itoa(i)})
		}
		return page, nil
	}
}

func TestFetchAllRowsPaginates(t *testing.T) {
	site := newFakeSite()
	site.rows = scriptedRows(450, 200)
	a := New(site)

	rows, err := a.fetchAllRows(context.Background(), "/blacklist/ajax-list", 200, blacklistQuery)
	require.NoError(t, err)
	require.Len(t, rows, 450)
	require.Equal(t, []string{"0"}, rows[0])
	require.Equal(t, []string{"449"}, rows[449])
	require.Equal(t, 3, site.fetchCount("/blacklist/ajax-list"))
}

func TestFetchAllRowsSinglePage(t *testing.T) {
	site := newFakeSite()
	site.rows = scriptedRows(7, 200)
	a := New(site)

	rows, err := a.fetchAllRows(context.Background(), "/report/ajax-by-object", 200, reportListQuery)
	require.NoError(t, err)
	require.Len(t, rows, 7)
	require.Equal(t, 1, site.fetchCount("/report/ajax-by-object"))
}

func TestFetchAllRowsShortfallIsAnError(t *testing.T) {
	site := newFakeSite()
	site.rows = func(endpoint string, query url.Values) (metalarchives.PagedRows, error) {
		// declares five rows but only ever hands out three
		page := metalarchives.PagedRows{Total: 5}
		if query.Get("iDisplayStart") == "0" {
			page.Rows = [][]string{{"a"}, {"b"}, {"c"}}
		}
		return page, nil
	}
	a := New(site)

	_, err := a.fetchAllRows(context.Background(), "/history/ajax-view", 200, historyListQuery)
	require.ErrorContains(t, err, "row count mismatch")
	require.ErrorContains(t, err, "declared 5")
}

func TestFetchRowsRetryingRecovers(t *testing.T) {
	site := newFakeSite()
	calls := 0
	site.rows = func(endpoint string, query url.Values) (metalarchives.PagedRows, error) {
		calls++
		if calls == 1 {
			return metalarchives.PagedRows{}, fmt.Errorf("fetch %s: status 520", endpoint)
		}
		return metalarchives.PagedRows{
			Total: 1,
			Rows:  [][]string{{"ok"}},
		}, nil
	}
	a := New(site)

	rows, err := a.fetchAllRows(context.Background(), "/collection/ajax-owners", 200, collectorsListQuery)
	require.NoError(t, err)
	require.Equal(t, [][]string{{"ok"}}, rows)
	require.Equal(t, 2, calls)
}

func TestFetchRowsRetryingGivesUp(t *testing.T) {
	site := newFakeSite()
	a := New(site)

	_, err := a.fetchAllRows(context.Background(), "/collection/ajax-owners", 200, collectorsListQuery)
	require.ErrorContains(t, err, "status 500")
	require.Equal(t, listFetchAttempts, site.fetchCount("/collection/ajax-owners"))
}
