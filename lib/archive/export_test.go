package archive

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func exportDocument(t *testing.T, a *Archive) map[string]any {
	t.Helper()
	raw, err := a.ExportJSON(context.Background(), false)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	return doc
}

func TestExportFlattensCyclesToRefs(t *testing.T) {
	a := New(newFakeSite())

	band := a.Band("19282")
	band.name = "Mayhem"
	band.labels = []*Label{a.Label("22")}

	artist := a.Artist("7")
	member := a.Member("5")
	member.subject = Credit{Entity: band}
	member.artist = artist
	member.memberType = "main members"

	doc := exportDocument(t, a)

	bands, ok := doc["bands"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "Mayhem", bands["19282"].(map[string]any)["name"])
	require.Equal(t,
		[]any{map[string]any{"id": float64(22), "type": float64(2)}},
		bands["19282"].(map[string]any)["labels"])

	members, ok := doc["members"].(map[string]any)
	require.True(t, ok)
	m := members["5"].(map[string]any)
	// nested submissions collapse to an id-plus-type reference, so the
	// band/member/artist cycle cannot recurse
	require.Equal(t, map[string]any{"id": float64(19282), "type": float64(1)}, m["for"])
	require.Equal(t, map[string]any{"id": float64(7), "type": float64(3)}, m["entity"])
	require.Equal(t, "main members", m["type"])
}

func TestExportReissueParentIsBareId(t *testing.T) {
	a := New(newFakeSite())
	parent := a.Release("61")
	parent.name = "De Mysteriis Dom Sathanas"
	reissue := a.Release("4914")
	reissue.presetParent(parent)

	doc := exportDocument(t, a)
	releases := doc["releases"].(map[string]any)
	require.Equal(t, float64(61), releases["4914"].(map[string]any)["parent"])
}

func TestExportDropsEmptyFields(t *testing.T) {
	a := New(newFakeSite())
	band := a.Band("3540260262")
	band.name = "Urfaust"

	doc := exportDocument(t, a)
	b := doc["bands"].(map[string]any)["3540260262"].(map[string]any)
	require.Equal(t, map[string]any{"name": "Urfaust"}, b)

	// tables with nothing in them disappear from the document
	require.NotContains(t, doc, "reviews")
	require.NotContains(t, doc, "labels")
}

func TestExportKeysUsersByName(t *testing.T) {
	a := New(newFakeSite())
	u := a.UserByName("Alturiak")

	doc := exportDocument(t, a)
	users := doc["users"].(map[string]any)
	require.Contains(t, users, "Alturiak")
	// a user whose internal id never surfaced exports their display name only
	require.Equal(t, map[string]any{"name": "Alturiak"}, users["Alturiak"])

	// once the internal id is known the projection carries both, still
	// keyed by the display name
	u.adoptNumericId("96248")
	doc = exportDocument(t, a)
	users = doc["users"].(map[string]any)
	require.Equal(t, map[string]any{
		"id":   float64(96248),
		"name": "Alturiak",
	}, users["Alturiak"])
}

func TestExportVotesAsBareScores(t *testing.T) {
	a := New(newFakeSite())
	u := a.UserByName("Alturiak")
	a.Vote(u, []string{"3540260262", "19282"}, 1)
	a.Vote(u, []string{"19282", "141"}, -1)

	doc := exportDocument(t, a)
	recs := doc["recs"].(map[string]any)
	require.Equal(t, map[string]any{
		"Alturiak: 19282, 3540260262": float64(1),
		"Alturiak: 141, 19282":        float64(-1),
	}, recs)
}
