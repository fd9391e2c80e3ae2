package archive

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func TestBandsInTitle(t *testing.T) {
	a := New(newFakeSite())
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<h1><a href="https://www.metal-archives.com/bands/Mayhem/19282">Mayhem</a> / Unknown Act / <a href="/bands/Urfaust/3540260262#band">Urfaust</a></h1>`))
	require.NoError(t, err)

	bands := a.bandsInTitle(doc.Find("h1"))
	require.Len(t, bands, 3)
	require.Equal(t, "19282", bands[0].Entity.Id())
	require.Equal(t, "Mayhem", bands[0].Entity.(*Band).name)
	require.Equal(t, Credit{Unlisted: "Unknown Act"}, bands[1])
	require.Equal(t, "3540260262", bands[2].Entity.Id())
}

func TestGetParent(t *testing.T) {
	a := New(newFakeSite())
	first := a.Release("1")
	reissue := a.Release("2")
	boxset := a.Release("3")
	reissue.parent = first
	boxset.parent = reissue

	require.Same(t, first, first.getParent(true))
	require.Same(t, reissue, boxset.getParent(false))
	require.Same(t, first, boxset.getParent(true))

	// a malformed parent loop must not hang the walk
	first.parent = boxset
	require.NotNil(t, boxset.getParent(true))
}

// Discovery through another release's line-up can preset fields while the
// full load is writing them; the loaded values must win and the writes must
// not tear.
func TestReleaseLoadCoreConcurrentPresets(t *testing.T) {
	site := newFakeSite()
	site.pages["/release/edit/id/61"] = `<html><body><form>
<select id="typeId" name="typeId"><option value="1" selected="selected">Full-length</option></select>
<input id="releaseName" name="releaseName" value="De Mysteriis Dom Sathanas" />
<input id="labelId" name="labelId" value="0" />
</form></body></html>`
	a := New(site)

	rel := a.Release("61")
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			rel.presetName("stub title")
			rel.presetBands([]Credit{{Unlisted: "Mayhem"}})
		}
	}()
	require.NoError(t, rel.loadCore(context.Background()))
	wg.Wait()

	require.Equal(t, "De Mysteriis Dom Sathanas", rel.name)
}

func TestComponentProjectionKeepsSideFlags(t *testing.T) {
	plain := &component{title: "Disc 1", format: "CD"}
	require.Equal(t, fields{"title": "Disc 1", "format": "CD"}, plain.project())

	tape := &component{format: "Cassette", hasSides: true}
	require.Equal(t, fields{
		"format":      "Cassette",
		"doubleSided": false,
		"singleSided": false,
	}, tape.project())
}
