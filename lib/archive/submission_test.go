package archive

import (
	"context"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

const auditTrailPage = `<html><body>
<table id="auditTrail">
<tr>
<td>Added by: <a class="profileMenu" href="/users/Alturiak">Alturiak</a></td>
<td>Modified by: <a class="profileMenu" href="/users/grimdoom">grimdoom</a></td>
</tr>
<tr>
<td>Added on: 2006-07-15 04:56:43</td>
<td>Last modified on: 2020-01-02 11:22:33</td>
</tr>
<tr>
<td><a href="/report/by-object/type/1/id/19282">2 reports</a></td>
<td></td>
</tr>
</table>
</body></html>`

func TestParseAuditTrail(t *testing.T) {
	site := newFakeSite()
	a := New(site)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(auditTrailPage))
	require.NoError(t, err)

	s := &submission{resource: resource{kind: KindBand, id: "19282"}, arch: a}
	g := &group{}
	require.NoError(t, s.parseAuditTrail(context.Background(), doc, "/band/view/id/19282", g))
	// the stamp users load in the background; their profile pages are not
	// canned here, so ignore the join result
	_ = g.Wait()

	require.NotNil(t, s.added)
	require.Equal(t, "2006-07-15 04:56:43", s.added.on)
	require.Equal(t, "Alturiak", s.added.by.exportKey())
	require.NotNil(t, s.modified)
	require.Equal(t, "2020-01-02 11:22:33", s.modified.on)
	require.Equal(t, "grimdoom", s.modified.by.exportKey())
	require.True(t, s.reportsKnown)
	require.True(t, s.haveReports)
}

func TestParseAuditTrailBlankColumns(t *testing.T) {
	site := newFakeSite()
	a := New(site)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<html><body>
<table id="auditTrail">
<tr><td>Added by: (Unknown user)</td><td></td></tr>
<tr><td>Added on: N/A</td><td>Last modified on: N/A</td></tr>
</table>
</body></html>`))
	require.NoError(t, err)

	s := &submission{resource: resource{kind: KindLabel, id: "22"}, arch: a}
	g := &group{}
	require.NoError(t, s.parseAuditTrail(context.Background(), doc, "/label/edit/id/22", g))
	require.NoError(t, g.Wait())

	require.Nil(t, s.added)
	require.Nil(t, s.modified)
	require.True(t, s.reportsKnown)
	require.False(t, s.haveReports)
}

func TestLoadReportsSkippedWhenTrailSaysNone(t *testing.T) {
	site := newFakeSite()
	a := New(site)

	s := &submission{resource: resource{kind: KindBand, id: "1"}, arch: a}
	s.reportsKnown = true
	s.haveReports = false

	// no canned list response: any fetch would fail
	require.NoError(t, s.loadReports(context.Background()))
	require.Empty(t, site.fetched)
}

func TestLoadLinksRegistersByCategory(t *testing.T) {
	site := newFakeSite()
	site.pages["/link/ajax-list/type/band/id/19282"] = `<html><body>
<div id="band_links">
<ul><li><a href="/link/tab#band_links_Official">Official</a></li></ul>
</div>
<div id="band_links_Official">
<table id="linksTableOfficial">
<tr><td><a onclick="loadLinkForm(101)">edit</a></td></tr>
</table>
</div>
<a id="link101" href="https://mayhem.example/">Homepage</a>
</body></html>`
	a := New(site)

	b := a.Band("19282")
	require.NoError(t, b.loadLinks(context.Background()))

	links := a.registry.AllOf(KindLink)
	require.Len(t, links, 1)
	l := links["101"].(*Link)
	require.Equal(t, "Homepage", l.args.name)
	require.Equal(t, "https://mayhem.example/", l.args.url)
	require.Equal(t, "Official", l.args.typ)
	require.Same(t, b, l.args.subject)
}

func dateSelectDoc(t *testing.T, day, month, year string) *goquery.Document {
	t.Helper()
	page := `<html><body><form>
<select id="d"><option value="0">--</option><option value="` + day + `" selected="selected">x</option></select>
<select id="m"><option value="0">--</option><option value="` + month + `" selected="selected">x</option></select>
<select id="y"><option value="0">--</option><option value="` + year + `" selected="selected">x</option></select>
</form></body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)
	return doc
}

func TestParseDateSelects(t *testing.T) {
	doc := dateSelectDoc(t, "5", "11", "1992")
	require.Equal(t, "1992-11-05", parseDateSelects(doc, "#d", "#m", "#y"))

	// partially-known dates keep zero components
	doc = dateSelectDoc(t, "0", "0", "1992")
	require.Equal(t, "1992-00-00", parseDateSelects(doc, "#d", "#m", "#y"))

	doc = dateSelectDoc(t, "0", "0", "0")
	require.Equal(t, bogusDate, parseDateSelects(doc, "#d", "#m", "#y"))
}
