package archive

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"maexport/lib/scrapers/metalarchives"
)

const defaultPageSize = 500

// pageQuery produces the query parameters for one page request.
type pageQuery func(start, length int) url.Values

// fetchAllRows repeatedly fetches a table-backed endpoint until the
// accumulated row count reaches the server-reported total, concatenating
// rows in arrival order. A transient failure re-issues the same page rather
// than restarting from zero. The accumulated count must equal the declared
// total; a mismatch is a reportable failure, not something to ignore.
func (a *Archive) fetchAllRows(ctx context.Context, endpoint string, pageSize int, query pageQuery) ([][]string, error) {
	ctx, span := tracer.Start(ctx, "fetchAllRows")
	defer span.End()

	var rows [][]string
	total := -1
	start := 0

	for {
		page, err := a.fetchRowsRetrying(ctx, endpoint, query(start, pageSize))
		if err != nil {
			return nil, err
		}

		if total < 0 {
			total = page.Total
		}
		rows = append(rows, page.Rows...)
		start += pageSize

		if len(rows) >= total {
			break
		}
		if len(page.Rows) == 0 {
			// the server claims more rows exist but returns none,
			// bail instead of spinning
			break
		}
	}

	if total != len(rows) {
		return nil, fmt.Errorf(
			"%s: row count mismatch: declared %d, accumulated %d",
			endpoint, total, len(rows),
		)
	}
	return rows, nil
}

const listFetchAttempts = 3

func (a *Archive) fetchRowsRetrying(ctx context.Context, endpoint string, query url.Values) (metalarchives.PagedRows, error) {
	var err error
	for attempt := 0; attempt < listFetchAttempts; attempt++ {
		if attempt > 0 {
			slog.WarnContext(ctx, "re-issuing list page request",
				"endpoint", endpoint, "attempt", attempt, "err", err)
			select {
			case <-time.After(time.Second * time.Duration(attempt)):
			case <-ctx.Done():
				return metalarchives.PagedRows{}, ctx.Err()
			}
		}
		fetched, ferr := a.site.FetchPagedRows(ctx, endpoint, query)
		if ferr == nil {
			return fetched, nil
		}
		err = ferr
	}
	return metalarchives.PagedRows{}, err
}

func baseListQuery(start, length, columns int) url.Values {
	q := url.Values{}
	q.Set("sEcho", "1")
	q.Set("iColumns", strconv.Itoa(columns))
	q.Set("sColumns", "")
	q.Set("iDisplayStart", strconv.Itoa(start))
	q.Set("iDisplayLength", strconv.Itoa(length))
	for i := 0; i < columns; i++ {
		q.Set(fmt.Sprintf("mDataProp_%d", i), strconv.Itoa(i))
	}
	q.Set("_", strconv.FormatInt(time.Now().UnixMilli(), 10))
	return q
}

func historyListQuery(start, length int) url.Values {
	q := baseListQuery(start, length, 5)
	q.Set("iSortCol_0", "0")
	q.Set("sSortDir_0", "desc")
	q.Set("iSortingCols", "1")
	q.Set("bSortable_0", "true")
	q.Set("bSortable_1", "true")
	q.Set("bSortable_2", "false")
	q.Set("bSortable_3", "false")
	q.Set("bSortable_4", "true")
	return q
}

func reportListQuery(start, length int) url.Values {
	q := baseListQuery(start, length, 5)
	q.Set("iSortCol_0", "4")
	q.Set("sSortDir_0", "asc")
	q.Set("iSortingCols", "1")
	q.Set("bSortable_0", "false")
	q.Set("bSortable_1", "true")
	q.Set("bSortable_2", "true")
	q.Set("bSortable_3", "true")
	q.Set("bSortable_4", "true")
	return q
}

func collectorsListQuery(start, length int) url.Values {
	return baseListQuery(start, length, 4)
}

func blacklistQuery(start, length int) url.Values {
	q := baseListQuery(start, length, 4)
	q.Set("sSearch", "")
	q.Set("bRegex", "false")
	for i := 0; i < 4; i++ {
		q.Set(fmt.Sprintf("sSearch_%d", i), "")
		q.Set(fmt.Sprintf("bRegex_%d", i), "false")
		q.Set(fmt.Sprintf("bSearchable_%d", i), "true")
	}
	q.Set("iSortCol_0", "0")
	q.Set("sSortDir_0", "asc")
	q.Set("iSortingCols", "1")
	q.Set("bSortable_0", "true")
	q.Set("bSortable_1", "true")
	q.Set("bSortable_2", "false")
	q.Set("bSortable_3", "false")
	return q
}
