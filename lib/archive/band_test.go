package archive

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

const bandEditForm = `<html><body><form>
<input id="bandName" name="bandName" value="Mayhem" />
<input id="genre" name="genre" value="Black Metal" />
<select id="status" name="status">
<option value="1">Active</option>
<option value="2" selected="selected">On hold</option>
</select>
<select id="country" name="country">
<option value="SE">Sweden</option>
<option value="NO" selected="selected">Norway</option>
</select>
<input id="location" name="location" value="Oslo" />
<input id="altSpell" name="altSpell" value="" />
<input id="themes" name="themes" value="Death, Darkness" />
<input id="yearCreation" name="yearCreation" value="1984" />
<span id="bandActivity_1">
  <input name="yearFrom_1" value="1984" />
  <input name="yearTo_1" value="1993" />
  <input id="asBandName_1" name="asBandName_1" value="" />
  <input id="asBandId_1" name="asBandId_1" value="" />
</span>
<span id="bandActivity_2">
  <input name="yearFrom_2" value="1995" />
  <input name="yearTo_2" value="" />
  <input id="asBandName_2" name="asBandName_2" value="The True Mayhem" />
  <input id="asBandId_2" name="asBandId_2" value="" />
</span>
<input type="checkbox" id="indieLabel_1" name="indieLabel" />
<input type="checkbox" id="lockedDisco_1" name="lockedDisco" checked="checked" />
<textarea name="notes">Formed in 1984.</textarea>
<textarea name="notesPending"></textarea>
<textarea name="notesWarning"></textarea>
<textarea name="notesModeration">watch edits</textarea>
<input id="labelId" name="labelId" value="0" />
</form></body></html>`

func TestBandLoadCore(t *testing.T) {
	site := newFakeSite()
	site.pages["/band/edit/id/19282"] = bandEditForm
	a := New(site)

	b := a.Band("19282")
	require.NoError(t, b.loadCore(context.Background()))

	require.Equal(t, "Mayhem", b.name)
	require.Equal(t, "Black Metal", b.genre)
	require.Equal(t, "On hold", b.status)
	require.Equal(t, "NO", b.country)
	require.Equal(t, "Oslo", b.location)
	require.Empty(t, b.aka)
	require.Equal(t, "1984", b.formed)
	require.False(t, b.unsigned)
	require.True(t, b.locked)
	require.Equal(t, "Formed in 1984.", b.notes)
	require.Equal(t, "watch edits", b.modNotes)
	require.Equal(t, "accepted", b.modStatus)
	require.Empty(t, b.labels)

	require.Len(t, b.activity, 2)
	require.Equal(t, "1984", b.activity["1"].from)
	require.Equal(t, "1993", b.activity["1"].to)
	require.Equal(t, "1995", b.activity["2"].from)
	require.Empty(t, b.activity["2"].to)
	require.Equal(t, "The True Mayhem", b.activity["2"].as)
}

// A placeholder name can arrive from a line-up loader while the full load is
// writing the same fields; the real name must win and the writes must not
// tear.
func TestBandLoadCoreConcurrentPresetName(t *testing.T) {
	site := newFakeSite()
	site.pages["/band/edit/id/19282"] = bandEditForm
	a := New(site)

	b := a.Band("19282")
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			b.presetName("Mayhem (stub)")
		}
	}()
	require.NoError(t, b.loadCore(context.Background()))
	wg.Wait()

	require.Equal(t, "Mayhem", b.name)
}

func TestBandLoadCoreMissingForm(t *testing.T) {
	site := newFakeSite()
	site.pages["/band/edit/id/1"] = `<html><body><p>Access denied</p></body></html>`
	a := New(site)

	err := a.Band("1").loadCore(context.Background())
	require.ErrorContains(t, err, "#bandName")
}

func TestBandLoadVotes(t *testing.T) {
	site := newFakeSite()
	site.pages["/recommendation/view-votes/bandId/19282/similarBandId/141"] = `<html><body>
<table><tbody>
<tr><td><a href="https://www.metal-archives.com/users/Alturiak">Alturiak</a></td><td>+1</td></tr>
<tr><td><a href="https://www.metal-archives.com/users/grimdoom">grimdoom</a></td><td>- 1</td></tr>
<tr><td>anonymous</td><td>+1</td></tr>
</tbody></table>
</body></html>`
	// the voters' profile pages are unavailable; their loads fail but the
	// votes themselves are already registered
	a := New(site)

	b := a.Band("19282")
	err := b.loadVotes(context.Background(), "141")
	require.Error(t, err)

	votes := a.registry.AllOf(KindVote)
	require.Len(t, votes, 2)
	require.Equal(t, 1, votes["Alturiak: 141, 19282"].(*Vote).score)
	require.Equal(t, -1, votes["grimdoom: 141, 19282"].(*Vote).score)
}
