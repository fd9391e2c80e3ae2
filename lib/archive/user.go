package archive

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"maexport/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Role-type constants, mapped from the site's rank titles.
const (
	RoleBanned    = "banned"
	RoleMember    = "member"
	RoleVeteran   = "veteran"
	RoleTrusted   = "trusted"
	RoleSuperuser = "superuser"
	RoleMod       = "mod"
)

var rankRoles = map[string]string{
	"Dishonourably Discharged": RoleBanned,
	"Fred Durst":               RoleBanned,
	"Mallcore kid":             RoleMember,
	"Metal newbie":             RoleMember,
	"Metalhead":                RoleMember,
	"Veteran":                  RoleVeteran,
	"Metal freak":              RoleTrusted,
	"Metal demon":              RoleTrusted,
	"Metal knight":             RoleSuperuser,
	"Metal lord":               RoleMod,
	"Webmaster":                RoleMod,
}

// Collection list names. The site tracks three per user.
const (
	ListCollection = "collection"
	ListTrade      = "trade"
	ListWish       = "wish"
)

// collectionEntry is one release in a user's collection list. A user can own
// a specific version of a release, or the release in the abstract.
type collectionEntry struct {
	id      string // base release
	version string // specific version, when the user named one
	notes   string
}

func (e *collectionEntry) project() any {
	if e.version == "" && e.notes == "" {
		return idValue(e.id)
	}
	f := fields{}
	f.set("id", idValue(e.id))
	f.set("version", idValue(e.version))
	f.set("notes", e.notes)
	return f
}

// User is a registered account on the site. Users are almost always
// discovered by display name; the numeric internal id only becomes known
// once the profile page has been loaded, at which point the user is
// reindexed under it.
type User struct {
	resource
	arch *Archive

	// display name; empty while the id slot still holds the name
	name        string
	deactivated bool

	rank       string
	points     int
	havePoints bool
	email      string
	fullName   string
	gender     string
	age        int
	country    string
	url        string
	icq        string
	aim        string
	yahoo      string
	msn        string
	gtalk      string
	favGenres  string
	comments   string
	registered string
	ip         string
	modNotes   string
	role       string

	listsMu sync.Mutex
	lists   map[string][]*collectionEntry
}

// UserByName returns the user registered under the given display name,
// creating one if needed. Display names double as provisional ids.
func (a *Archive) UserByName(name string) *User {
	e, _ := a.registry.getOrCreate(KindUser, name, func(id string) Entity {
		return &User{
			resource: resource{kind: KindUser, id: id},
			arch:     a,
			lists:    map[string][]*collectionEntry{},
		}
	})
	return e.(*User)
}

func (u *User) Load(ctx context.Context) error {
	return u.runPipeline(ctx, []step{
		u.loadCore,
	})
}

// named returns true once the numeric id has been resolved.
func (u *User) named() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.name != ""
}

// exportKey is the key the user appears under in export output: the display
// name when known, the provisional id otherwise.
func (u *User) exportKey() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.name != "" {
		return u.name
	}
	return u.id
}

// adoptNumericId upgrades a name-keyed user to their numeric internal id.
// The registry entry moves to the new id, leaving an alias behind so later
// name-based lookups still land on this instance. No-op once named, or for
// junk input.
func (u *User) adoptNumericId(id string) {
	if id == "" || id == "0" {
		u.log("ignoring attempt to set invalid id")
		return
	}
	u.mu.Lock()
	if u.name != "" {
		u.mu.Unlock()
		u.log("internal id already known")
		return
	}
	name := u.id
	u.mu.Unlock()

	if !u.arch.registry.Reindex(KindUser, name, id) {
		return
	}
	u.mu.Lock()
	u.name = name
	u.id = id
	u.mu.Unlock()
	u.log("internal id adopted")
}

const userLoadAttempts = 3

var userTabId = regexp.MustCompile(`(?i)"https?://www\.metal-archives\.com/user/tab-bands/id/(\d+)/?"`)

func (u *User) loadCore(ctx context.Context) error {
	u.log("loading: main data")

	page := "/users/" + url.PathEscape(u.exportKey())
	var doc *goquery.Document

	// deactivated profiles render as an error page, but so do flaky loads;
	// retry a couple of times before trusting the 404
	for attempt := 1; ; attempt++ {
		var err error
		doc, err = u.arch.site.FetchPage(ctx, page)
		if err != nil {
			return err
		}
		if !strings.HasPrefix(strings.TrimSpace(doc.Find("title").Text()), "Error 404") {
			break
		}
		if attempt >= userLoadAttempts {
			u.log("profile unavailable, marking deactivated")
			u.deactivated = true
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}

	// first successful load of a name-addressed user reveals the numeric id
	if !u.named() {
		source, err := doc.Html()
		if err != nil {
			return err
		}
		m := userTabId.FindStringSubmatch(source)
		if m == nil {
			return fmt.Errorf("%s: could not locate user's numeric id", page)
		}
		u.adoptNumericId(m[1])
	}

	infoList, err := requireSel(doc, "#user_info > dl.float_left", page)
	if err != nil {
		return err
	}

	info := map[string]string{}
	infoList.Children().Each(func(_ int, el *goquery.Selection) {
		if !el.Is("dt") {
			return
		}
		name := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(el.Text()), ":"))
		dd := el.Next()
		var value string

		switch name {
		case "Email address":
			// addresses are obfuscated: reversed, with @ and dots encoded
			// as slashes in a rel attribute
			rel := dd.Children().First().AttrOr("rel", "")
			rel = strings.Replace(rel, "//", "@", 1)
			rel = strings.ReplaceAll(rel, "/", ".")
			value = reverseString(rel)
		case "Comments":
			value = textWithBreaks(dd.Next())
		case "Joining/last used IP":
			value = htmlutil.CleanText(dd.Children().First().Text())
		default:
			value = strings.TrimSpace(dd.Text())
		}

		// blank fields display as "N/A"
		if value != "" && value != "N/A" {
			info[name] = value
		}
	})

	u.rank = info["Rank"]
	if p, ok := info["Points"]; ok {
		u.points, _ = strconv.Atoi(p)
		u.havePoints = true
	}
	u.email = info["Email address"]
	u.fullName = info["Full name"]
	if g := info["Gender"]; g != "" {
		u.gender = g[:1]
	}
	u.age, _ = strconv.Atoi(info["Age"])
	u.country = info["Country"]
	u.url = info["Homepage"]
	u.icq = info["ICQ"]
	u.aim = info["AIM"]
	u.yahoo = info["Yahoo! ID"]
	u.msn = info["MSN"]
	u.gtalk = info["Gtalk"]
	u.favGenres = info["Favourite metal genre(s)"]
	u.comments = info["Comments"]
	u.registered = info["Registration date"]
	u.ip = info["Joining/last used IP"]
	u.modNotes = htmlutil.TextareaValue(doc.Find(`textarea[name="mod_notes"]`))
	u.role = rankRoles[u.rank]
	return nil
}

// addVersionedCollection records that the user owns a specific version of a
// release. No-op when that version is already listed.
func (u *User) addVersionedCollection(list, baseId, versionId, notes string) {
	u.listsMu.Lock()
	defer u.listsMu.Unlock()
	for _, e := range u.lists[list] {
		if e.version == versionId {
			return
		}
	}
	u.lists[list] = append(u.lists[list], &collectionEntry{
		id:      baseId,
		version: versionId,
		notes:   notes,
	})
}

// addUnversionedCollection records a release the user owns without naming a
// version. No-op when the release is already listed.
func (u *User) addUnversionedCollection(list, releaseId, notes string) {
	u.listsMu.Lock()
	defer u.listsMu.Unlock()
	for _, e := range u.lists[list] {
		if e.id == releaseId && e.version == "" {
			return
		}
	}
	u.lists[list] = append(u.lists[list], &collectionEntry{
		id:    releaseId,
		notes: notes,
	})
}

func (u *User) project() any {
	f := fields{}
	// an unresolved user is keyed by display name; emitting that as the
	// name beats repeating it as a fake id
	if u.named() {
		f.set("id", idValue(u.Id()))
		f.set("name", u.name)
	} else {
		f.set("name", u.Id())
	}
	f.set("rank", u.rank)
	if u.havePoints {
		f.setAlways("points", u.points)
	}
	f.set("email", u.email)
	f.set("fullName", u.fullName)
	f.set("gender", u.gender)
	f.set("age", u.age)
	f.set("country", u.country)
	f.set("url", u.url)
	f.set("icq", u.icq)
	f.set("aim", u.aim)
	f.set("yahoo", u.yahoo)
	f.set("msn", u.msn)
	f.set("gtalk", u.gtalk)
	f.set("favGenres", u.favGenres)
	f.set("comments", u.comments)
	f.set("registered", u.registered)
	f.set("ip", u.ip)
	f.set("modNotes", u.modNotes)
	f.set("role", u.role)
	f.set("deactivated", u.deactivated)

	u.listsMu.Lock()
	defer u.listsMu.Unlock()
	lists := fields{}
	for _, name := range []string{ListCollection, ListTrade, ListWish} {
		entries := u.lists[name]
		if len(entries) == 0 {
			continue
		}
		sorted := make([]*collectionEntry, len(entries))
		copy(sorted, entries)
		sort.Slice(sorted, func(i, j int) bool {
			a, b := sorted[i], sorted[j]
			an, _ := strconv.ParseInt(a.id, 10, 64)
			bn, _ := strconv.ParseInt(b.id, 10, 64)
			if an != bn {
				return an < bn
			}
			av, _ := strconv.ParseInt(a.version, 10, 64)
			bv, _ := strconv.ParseInt(b.version, 10, 64)
			return av < bv
		})
		out := make([]any, len(sorted))
		for i, e := range sorted {
			out[i] = e.project()
		}
		lists[name] = out
	}
	if len(lists) > 0 {
		f["lists"] = lists
	}
	return f
}

func (u *User) ref() any {
	return idValue(u.Id())
}

// ValidateUsers backfills numeric ids for users that were only ever seen by
// name, then normalises country names to ISO codes. Runs after collection,
// before export.
func (a *Archive) ValidateUsers(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "ValidateUsers")
	defer span.End()

	if err := a.countries.ensure(ctx, a.site); err != nil {
		return err
	}

	g := &group{}
	for _, e := range a.registry.AllOf(KindUser) {
		u := e.(*User)
		if !u.named() && !u.deactivated {
			g.Go(func() error { return u.Load(ctx) })
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, e := range a.registry.AllOf(KindUser) {
		u := e.(*User)
		if u.country != "" {
			u.country = a.countries.codeFor(u.country)
		}
	}
	return nil
}

func reverseString(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}

// textWithBreaks extracts an element's text with <br> tags kept as newlines.
func textWithBreaks(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
		case n.Type == html.ElementNode && n.Data == "br":
			b.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return strings.TrimSpace(b.String())
}
