package htmlutil

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestCleanText(t *testing.T) {
	require.Equal(t, "a b c", CleanText("  a \n b\t\tc  "))
	require.Equal(t, "", CleanText(" \n\t "))
}

func TestSelectedOption(t *testing.T) {
	doc := parse(t, `<select id="s">
<option value="1">One</option>
<option value="2" selected="selected">Two</option>
</select>`)
	require.Equal(t, "Two", SelectedOptionText(doc.Find("#s")))
	require.Equal(t, "2", SelectedOptionValue(doc.Find("#s")))

	// browsers treat the first option as selected when none is marked
	doc = parse(t, `<select id="s"><option value="1">One</option><option value="2">Two</option></select>`)
	require.Equal(t, "One", SelectedOptionText(doc.Find("#s")))
	require.Equal(t, "1", SelectedOptionValue(doc.Find("#s")))
}

func TestChecked(t *testing.T) {
	doc := parse(t, `<input type="checkbox" id="a" checked="checked" /><input type="checkbox" id="b" />`)
	require.True(t, Checked(doc.Find("#a")))
	require.False(t, Checked(doc.Find("#b")))
}

func TestGetAnchors(t *testing.T) {
	doc := parse(t, `<ul>
<li><a href="#official">  Official </a></li>
<li><a href="#unofficial">Unofficial</a></li>
<li><a>bare</a></li>
</ul>`)
	require.Equal(t, []Anchor{
		{Name: "Official", Href: "#official"},
		{Name: "Unofficial", Href: "#unofficial"},
		{Name: "bare", Href: ""},
	}, GetAnchors(doc.Find("ul a")))
}

func TestGetText(t *testing.T) {
	doc := parse(t, `<p id="p">one <b>two</b> three</p>`)
	require.Equal(t, "one two three", GetText(doc.Find("#p").Nodes[0]))
}
