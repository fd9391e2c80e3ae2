package metalarchives

import (
	"encoding/json"
	"fmt"
)

type listResponse struct {
	TotalRecords int                 `json:"iTotalRecords"`
	Rows         [][]json.RawMessage `json:"aaData"`
}

func decodeRows(body []byte) (PagedRows, error) {
	var decoded listResponse
	err := json.Unmarshal(body, &decoded)
	if err != nil {
		return PagedRows{}, err
	}

	rows := make([][]string, len(decoded.Rows))
	for i, raw := range decoded.Rows {
		cells := make([]string, len(raw))
		for j, cell := range raw {
			var s string
			if err := json.Unmarshal(cell, &s); err == nil {
				cells[j] = s
				continue
			}
			// numeric and null cells show up in a few listings
			var v any
			if err := json.Unmarshal(cell, &v); err != nil {
				return PagedRows{}, fmt.Errorf("row %d cell %d: %w", i, j, err)
			}
			if v == nil {
				cells[j] = ""
			} else {
				cells[j] = fmt.Sprint(v)
			}
		}
		rows[i] = cells
	}

	return PagedRows{Rows: rows, Total: decoded.TotalRecords}, nil
}
