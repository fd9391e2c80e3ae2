package htmlutil

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanText trims a scraped string down to a single line of printable text.
func CleanText(s string) string {
	s = removeNonPrintable(s)
	s = strings.Trim(s, " \t\n")
	return innerWhitespace.ReplaceAllString(s, " ")
}

type Anchor struct {
	Name string
	Href string
}

func GetAnchors(sel *goquery.Selection) []Anchor {
	anchors := []Anchor{}
	sel.Each(func(_ int, a *goquery.Selection) {
		anchors = append(anchors, Anchor{
			Name: CleanText(a.Text()),
			Href: a.AttrOr("href", ""),
		})
	})
	return anchors
}

// InputValue returns the "value" attribute of the first matched element.
func InputValue(sel *goquery.Selection) string {
	return sel.AttrOr("value", "")
}

// TextareaValue returns the text content of the first matched textarea.
func TextareaValue(sel *goquery.Selection) string {
	return strings.TrimSpace(sel.Text())
}

// Checked reports whether the first matched checkbox carries a checked
// attribute.
func Checked(sel *goquery.Selection) bool {
	_, ok := sel.Attr("checked")
	return ok
}

// SelectedOptionText returns the display text of the selected option in a
// <select> element, falling back to the first option when the markup marks
// nothing as selected.
func SelectedOptionText(sel *goquery.Selection) string {
	opt := sel.Find("option[selected]").First()
	if opt.Length() == 0 {
		opt = sel.Find("option").First()
	}
	return CleanText(opt.Text())
}

// SelectedOptionValue returns the value of the selected option in a
// <select> element.
func SelectedOptionValue(sel *goquery.Selection) string {
	opt := sel.Find("option[selected]").First()
	if opt.Length() == 0 {
		opt = sel.Find("option").First()
	}
	return opt.AttrOr("value", "")
}
