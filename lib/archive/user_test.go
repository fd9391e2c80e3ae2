package archive

import (
	"context"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

const userProfile = `<html><head><title>Alturiak's profile</title></head><body>
<script>var tabUrl = "https://www.metal-archives.com/user/tab-bands/id/96248/";</script>
<div id="user_info">
<dl class="float_left">
<dt>Rank:</dt><dd>Metal lord</dd>
<dt>Points:</dt><dd>0</dd>
<dt>Email address:</dt><dd><a rel="moc/elpmaxe//latem" href="#">show</a></dd>
<dt>Full name:</dt><dd>N/A</dd>
<dt>Gender:</dt><dd>Male</dd>
<dt>Age:</dt><dd>33</dd>
<dt>Country:</dt><dd>Norway</dd>
<dt>Joining/last used IP:</dt><dd><a href="/ip/127.0.0.1">127.0.0.1</a></dd>
<dt>Comments:</dt><dd></dd><dd>first line<br/>second line</dd>
<dt>Registration date:</dt><dd>2005-03-12</dd>
</dl>
</div>
<textarea name="mod_notes">keeps reporting the same band</textarea>
</body></html>`

func TestUserLoadCoreParsesProfile(t *testing.T) {
	site := newFakeSite()
	site.pages["/users/Alturiak"] = userProfile
	a := New(site)

	u := a.UserByName("Alturiak")
	require.NoError(t, u.loadCore(context.Background()))

	// the numeric id surfaced on the profile, so the user got reindexed
	require.Equal(t, "96248", u.Id())
	require.Equal(t, "Alturiak", u.exportKey())
	require.Same(t, u, a.UserByName("Alturiak"))

	require.Equal(t, "Metal lord", u.rank)
	require.Equal(t, RoleMod, u.role)
	require.True(t, u.havePoints)
	require.Zero(t, u.points)
	require.Equal(t, "metal@example.com", u.email)
	require.Empty(t, u.fullName) // N/A collapses to unset
	require.Equal(t, "M", u.gender)
	require.Equal(t, 33, u.age)
	require.Equal(t, "Norway", u.country)
	require.Equal(t, "127.0.0.1", u.ip)
	require.Equal(t, "first line\nsecond line", u.comments)
	require.Equal(t, "2005-03-12", u.registered)
	require.Equal(t, "keeps reporting the same band", u.modNotes)
	require.False(t, u.deactivated)
}

func TestUserLoadCoreDeactivated(t *testing.T) {
	site := newFakeSite()
	site.pages["/users/gone"] = `<html><head><title>Error 404 - Page not found</title></head><body></body></html>`
	a := New(site)

	u := a.UserByName("gone")
	require.NoError(t, u.loadCore(context.Background()))
	require.True(t, u.deactivated)
	require.Equal(t, userLoadAttempts, site.fetchCount("/users/gone"))
}

func TestReverseString(t *testing.T) {
	require.Equal(t, "", reverseString(""))
	require.Equal(t, "cba", reverseString("abc"))
	require.Equal(t, "ed.cø@ba", reverseString("ab@øc.de"))
}

func TestTextWithBreaks(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<div id="c">one<br/>two<p>three</p></div>`))
	require.NoError(t, err)
	require.Equal(t, "one\ntwothree", textWithBreaks(doc.Find("#c")))
}

func TestCollectionListsDeduplicate(t *testing.T) {
	a := New(newFakeSite())
	u := a.UserByName("Alturiak")

	u.addVersionedCollection(ListCollection, "1", "10", "")
	u.addVersionedCollection(ListCollection, "1", "10", "signed copy")
	u.addVersionedCollection(ListCollection, "1", "11", "")
	u.addUnversionedCollection(ListTrade, "2", "")
	u.addUnversionedCollection(ListTrade, "2", "")

	require.Len(t, u.lists[ListCollection], 2)
	require.Len(t, u.lists[ListTrade], 1)
}
