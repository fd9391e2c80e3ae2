package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// blacklistEntry is one banned band on the site's blacklist.
type blacklistEntry struct {
	name    string
	country string
	reason  string
	by      *User
	on      string
}

func (b *blacklistEntry) project() any {
	f := fields{}
	f.set("name", b.name)
	f.set("country", b.country)
	f.set("reason", b.reason)
	if b.by != nil {
		f.set("by", b.by.ref())
	}
	f.set("on", b.on)
	return f
}

// LoadBlacklist pulls the site's blacklist of banned bands. Separate from a
// regular export; moderators use it on its own.
func (a *Archive) LoadBlacklist(ctx context.Context) (map[string]any, error) {
	ctx, span := tracer.Start(ctx, "LoadBlacklist")
	defer span.End()

	rows, err := a.fetchAllRows(ctx, "/blacklist/ajax-list", 200, blacklistQuery)
	if err != nil {
		return nil, err
	}

	entries := map[string]any{}
	for i, row := range rows {
		if len(row) < 4 {
			return nil, fmt.Errorf("blacklist row has %d cells, expected 4", len(row))
		}
		entry := &blacklistEntry{
			country: strings.TrimSpace(row[1]),
			reason:  strings.TrimSpace(row[2]),
		}

		// the name cell carries the entry's internal id in its markup
		id := strconv.Itoa(i)
		if m := hrefId.FindStringSubmatch(row[0]); m != nil {
			id = m[1]
		}
		if m := anchorText.FindStringSubmatch(row[0]); m != nil {
			entry.name = strings.TrimSpace(m[1])
		} else {
			entry.name = strings.TrimSpace(row[0])
		}

		// the final cell names the responsible moderator and the date
		if m := anchorText.FindStringSubmatch(row[3]); m != nil {
			entry.by = a.UserByName(strings.TrimSpace(m[1]))
			if idx := strings.LastIndex(row[3], "</a>"); idx >= 0 {
				entry.on = strings.Trim(strings.TrimSpace(row[3][idx+len("</a>"):]), ", ")
			}
		} else {
			entry.on = strings.TrimSpace(row[3])
		}

		entries[id] = entry.project()
	}
	return entries, nil
}

// BlacklistJSON loads the blacklist, resolves the moderators it names, and
// serializes the result alongside their user records.
func (a *Archive) BlacklistJSON(ctx context.Context, pretty bool) ([]byte, error) {
	entries, err := a.LoadBlacklist(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.ValidateUsers(ctx); err != nil {
		return nil, err
	}

	doc := map[string]any{"blacklist": entries}
	users := map[string]any{}
	for _, e := range a.registry.AllOf(KindUser) {
		u := e.(*User)
		users[u.exportKey()] = u.project()
	}
	if len(users) > 0 {
		doc["users"] = users
	}

	if pretty {
		return json.MarshalIndent(doc, "", "\t")
	}
	return json.Marshal(doc)
}
