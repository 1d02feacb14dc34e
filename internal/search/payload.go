// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"encoding/json"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/pdiddy/agentlens/internal/fetch"
)

const ddgRedirectPrefix = "//duckduckgo.com/l/?uddg="

// ParsePayload turns a free-text provider payload into results. It accepts
// a JSON array of results, a JSON object with a "results" array, or
// DuckDuckGo result markup. Anything else becomes a single URL-less result
// titled with the query and carrying the text as its snippet; such a
// result never becomes a Document.
func ParsePayload(query, payload string) []RawResult {
	text := strings.TrimSpace(payload)
	if text == "" {
		return nil
	}
	if results, ok := parseJSONPayload(text); ok {
		return results
	}
	if strings.HasPrefix(text, "<") {
		if results := parseDuckDuckGoHTML(text); len(results) > 0 {
			return results
		}
		if visible, err := fetch.ExtractText(strings.NewReader(text)); err == nil {
			text = visible
		}
	}
	return []RawResult{{Title: query, Snippet: text}}
}

func parseJSONPayload(text string) ([]RawResult, bool) {
	switch text[0] {
	case '[':
		var results []RawResult
		if err := json.Unmarshal([]byte(text), &results); err != nil {
			return nil, false
		}
		return results, true
	case '{':
		var wrapped struct {
			Results []RawResult `json:"results"`
		}
		if err := json.Unmarshal([]byte(text), &wrapped); err != nil || wrapped.Results == nil {
			return nil, false
		}
		return wrapped.Results, true
	}
	return nil, false
}

// parseDuckDuckGoHTML extracts results from the DuckDuckGo HTML interface.
// Each result is a div whose class includes "result" and "results_links".
func parseDuckDuckGoHTML(markup string) []RawResult {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil
	}

	var results []RawResult
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "div" {
			class := attr(n, "class")
			if strings.Contains(class, "result") && strings.Contains(class, "results_links") {
				if r := ddgResult(n); r.URL != "" && r.Title != "" {
					results = append(results, r)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results
}

func ddgResult(n *html.Node) RawResult {
	var r RawResult
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			class := attr(n, "class")
			switch {
			case n.Data == "a" && strings.Contains(class, "result__a"):
				r.URL = unwrapRedirect(attr(n, "href"))
				r.Title = nodeText(n)
			case strings.Contains(class, "result__snippet"):
				r.Snippet = nodeText(n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return r
}

// unwrapRedirect returns the target of a DuckDuckGo redirect link, or href
// unchanged.
func unwrapRedirect(href string) string {
	rest, ok := strings.CutPrefix(href, ddgRedirectPrefix)
	if !ok {
		return href
	}
	if i := strings.IndexByte(rest, '&'); i >= 0 {
		rest = rest[:i]
	}
	target, err := url.QueryUnescape(rest)
	if err != nil {
		return href
	}
	return target
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
