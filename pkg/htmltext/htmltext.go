// Package htmltext reduces HTML fragments found in feed entries to plain,
// single-line text suitable for a headline or summary.
package htmltext

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var skipTags = map[string]bool{
	"script": true, "style": true, "nav": true, "footer": true,
	"noscript": true, "svg": true, "iframe": true, "figure": true,
}

// Plain strips markup from an HTML fragment and collapses whitespace.
// Entities are decoded. Input without markup is returned normalized.
func Plain(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return Collapse(fragment)
	}

	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return Collapse(fragment)
	}

	var sb strings.Builder
	for _, n := range nodes {
		extractText(n, &sb)
	}
	return Collapse(sb.String())
}

func extractText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.ElementNode {
		if skipTags[n.Data] {
			return
		}
		switch n.Data {
		case "br", "p", "div", "li", "tr", "h1", "h2", "h3", "h4":
			sb.WriteString(" ")
		}
	}

	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractText(c, sb)
	}
}

// Collapse trims s and replaces every whitespace run with a single space.
func Collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate shortens s to at most max runes, cutting at a word boundary when
// one is near and appending an ellipsis.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	cut := string(runes[:max])
	if i := strings.LastIndex(cut, " "); i > len(cut)/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:-") + "…"
}
