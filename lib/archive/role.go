package archive

import (
	"fmt"
	"regexp"
	"strconv"

	"maexport/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// Role is a single duty in a line-up listing ("Guitars", "Vocals (live)"),
// optionally bounded by years. Roles never appear as a top-level table; they
// only exist inline inside the member that holds them, so they bypass the
// registry entirely.
type Role struct {
	id   string
	name string
	from string
	to   string
}

var rowIdSuffix = regexp.MustCompile(`_(\d+)$`)

// newRole parses one role row from a line-up edit form.
func newRole(row *goquery.Selection) (*Role, error) {
	m := rowIdSuffix.FindStringSubmatch(row.AttrOr("id", ""))
	if m == nil {
		return nil, fmt.Errorf("role row has no numeric id: %q", row.AttrOr("id", ""))
	}
	r := &Role{
		id:   m[1],
		name: htmlutil.InputValue(row.Find(".roleDesc")),
	}
	if from := row.Find("input[name^=dateFrom]"); from.Length() > 0 {
		r.from = htmlutil.InputValue(from)
		r.to = htmlutil.InputValue(row.Find("input[name^=dateTo]"))
	}
	return r, nil
}

func (r *Role) project() any {
	f := fields{}
	f.set("name", r.name)
	if n, err := strconv.Atoi(r.from); err == nil {
		f.set("from", n)
	}
	if n, err := strconv.Atoi(r.to); err == nil {
		f.set("to", n)
	}
	return f
}
