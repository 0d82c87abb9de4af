// Package knackfield reads Knack record fields. Knack returns the same field
// in several shapes (plain value, rendered HTML, a "_raw" twin holding the
// structured value), and these helpers collapse them into plain Go values.
package knackfield

import (
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// RawSuffix is appended to a field key for its structured twin.
const RawSuffix = "_raw"

// minIDLength separates record ids embedded in class attributes from
// ordinary CSS classes. Knack ids are 24 hex characters.
const minIDLength = 20

// Get returns field from rec.
func Get(rec gjson.Result, field string) gjson.Result {
	if field == "" {
		return gjson.Result{}
	}
	return rec.Get(field)
}

// GetRaw returns the "_raw" twin of field when it carries a value, else the
// field itself.
func GetRaw(rec gjson.Result, field string) gjson.Result {
	if field == "" {
		return gjson.Result{}
	}
	if raw := rec.Get(field + RawSuffix); IsPresent(raw) {
		return raw
	}
	return Get(rec, field)
}

// IsPresent reports whether v carries a value: a non-blank string, a
// non-empty array, an object, true, or a non-zero number.
func IsPresent(v gjson.Result) bool {
	switch v.Type {
	case gjson.String:
		return strings.TrimSpace(v.Str) != ""
	case gjson.Number:
		return v.Num != 0
	case gjson.True:
		return true
	case gjson.JSON:
		if v.IsArray() {
			return len(v.Array()) > 0
		}
		return v.IsObject()
	default:
		return false
	}
}

// ConnectionID normalizes a connection value to a single record id. The value
// may be a plain string, an object with an id, rendered markup carrying the id
// in a class attribute, or an array whose first element is any of these.
func ConnectionID(v gjson.Result) string {
	switch {
	case v.IsArray():
		items := v.Array()
		if len(items) == 0 {
			return ""
		}
		return ConnectionID(items[0])
	case v.IsObject():
		return strings.TrimSpace(v.Get("id").String())
	case v.Type == gjson.String:
		s := strings.TrimSpace(v.Str)
		if strings.Contains(s, "<") {
			return ClassID(s)
		}
		return s
	default:
		return ""
	}
}

// Text renders v as display text. Name objects are joined, markup is
// stripped and arrays use their first element.
func Text(v gjson.Result) string {
	switch {
	case v.IsArray():
		items := v.Array()
		if len(items) == 0 {
			return ""
		}
		return Text(items[0])
	case v.IsObject():
		if full := v.Get("full"); full.Exists() && strings.TrimSpace(full.String()) != "" {
			return strings.TrimSpace(full.String())
		}
		if id := v.Get("identifier"); id.Exists() {
			return strings.TrimSpace(id.String())
		}
		parts := make([]string, 0, 3)
		for _, key := range []string{"title", "first", "middle", "last"} {
			if p := strings.TrimSpace(v.Get(key).String()); p != "" {
				parts = append(parts, p)
			}
		}
		return strings.Join(parts, " ")
	case v.Type == gjson.String:
		return StripMarkup(v.Str)
	case v.Type == gjson.Number:
		return v.Raw
	default:
		return ""
	}
}

// Email renders an email field. Knack renders emails as mailto anchors; the
// address is taken from the href when present.
func Email(v gjson.Result) string {
	if v.IsObject() {
		if e := v.Get("email"); e.Exists() {
			return strings.TrimSpace(e.String())
		}
	}
	if v.Type != gjson.String {
		return Text(v)
	}

	s := strings.TrimSpace(v.Str)
	if !strings.Contains(s, "<") {
		return s
	}

	var addr string
	walk(s, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, a := range n.Attr {
				if a.Key == "href" && strings.HasPrefix(strings.ToLower(a.Val), "mailto:") {
					addr = strings.TrimSpace(a.Val[len("mailto:"):])
					return false
				}
			}
		}
		return true
	})
	if addr != "" {
		return addr
	}
	return StripMarkup(s)
}

// StripMarkup returns the text content of s with whitespace collapsed.
// Strings without markup are only trimmed.
func StripMarkup(s string) string {
	if !strings.Contains(s, "<") {
		return strings.TrimSpace(s)
	}
	return strings.Join(strings.Fields(strings.Join(TextNodes(s), " ")), " ")
}

// TextNodes returns the trimmed, non-empty text nodes of a markup fragment in
// document order.
func TextNodes(s string) []string {
	var out []string
	walk(s, func(n *html.Node) bool {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				out = append(out, t)
			}
		}
		return true
	})
	return out
}

// ClassID returns the first class token longer than a CSS class would be,
// which Knack uses to embed connected record ids in rendered markup.
func ClassID(s string) string {
	var id string
	walk(s, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		for _, a := range n.Attr {
			if a.Key != "class" {
				continue
			}
			for _, token := range strings.Fields(a.Val) {
				if len(token) > minIDLength {
					id = token
					return false
				}
			}
		}
		return true
	})
	return id
}

// walk parses s as a body fragment and visits nodes depth-first until fn
// returns false. Malformed markup is parsed leniently.
func walk(s string, fn func(*html.Node) bool) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(s), body)
	if err != nil {
		return
	}

	var visit func(*html.Node) bool
	visit = func(n *html.Node) bool {
		if !fn(n) {
			return false
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !visit(c) {
				return false
			}
		}
		return true
	}
	for _, n := range nodes {
		if !visit(n) {
			return
		}
	}
}
