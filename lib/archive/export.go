package archive

import (
	"context"
	"encoding/json"
)

// fields builds a sparse projection: optional values that are empty stay
// absent rather than serializing as "", null, false or 0.
type fields map[string]any

func (f fields) set(key string, v any) {
	switch t := v.(type) {
	case nil:
		return
	case string:
		if t == "" {
			return
		}
	case bool:
		if !t {
			return
		}
	case int:
		if t == 0 {
			return
		}
	case int64:
		if t == 0 {
			return
		}
	}
	f[key] = v
}

// setAlways keeps zero values that are meaningful (a user with 0 points).
func (f fields) setAlways(key string, v any) {
	f[key] = v
}

var exportTables = []struct {
	key  string
	kind Kind
}{
	{"bands", KindBand},
	{"artists", KindArtist},
	{"members", KindMember},
	{"releases", KindRelease},
	{"tracks", KindTrack},
	{"links", KindLink},
	{"labels", KindLabel},
	{"users", KindUser},
	{"reviews", KindReview},
	{"reports", KindReport},
	{"history", KindEdit},
	{"recs", KindVote},
}

// ExportKinds lists the kinds that get a top-level table, in table order.
func ExportKinds() []Kind {
	out := make([]Kind, len(exportTables))
	for i, t := range exportTables {
		out[i] = t.kind
	}
	return out
}

// Export flattens every registered entity into one de-duplicated document:
// a table per exportable kind mapping id to full projection. Roles never get
// a table of their own, they are always inlined inside members. Cross-table
// references use the lightweight form, so cycles in the graph cannot recurse.
// Collections that ended up empty are dropped from the document entirely.
func (a *Archive) Export() map[string]any {
	doc := map[string]any{}
	for _, t := range exportTables {
		table := map[string]any{}
		for id, e := range a.registry.AllOf(t.kind) {
			key := id
			if u, ok := e.(*User); ok {
				key = u.exportKey()
			}
			table[key] = e.project()
		}
		if len(table) > 0 {
			doc[t.key] = table
		}
	}
	return doc
}

func (a *Archive) ExportJSON(ctx context.Context, pretty bool) ([]byte, error) {
	_, span := tracer.Start(ctx, "Export")
	defer span.End()

	doc := a.Export()
	if pretty {
		return json.MarshalIndent(doc, "", "\t")
	}
	return json.Marshal(doc)
}
