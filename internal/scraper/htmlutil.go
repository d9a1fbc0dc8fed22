package scraper

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// hasClass reports whether n carries the given CSS class.
func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

// getAttr returns the value of an attribute, or "" if absent.
func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// extractText concatenates all text node descendants of n.
func extractText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}

// selector is a single CSS-subset step: an optional tag name and an
// optional class, e.g. "div.job-card" or ".title" or "a".
type selector struct {
	tag   string
	class string
}

// parseSelector parses a single-step CSS-subset selector string.
func parseSelector(s string) selector {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, "."); idx >= 0 {
		return selector{tag: s[:idx], class: s[idx+1:]}
	}
	return selector{tag: s}
}

func (sel selector) matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if sel.tag != "" && n.Data != sel.tag {
		return false
	}
	if sel.class != "" && !hasClass(n, sel.class) {
		return false
	}
	return true
}

// matchesSelector reports whether n matches a given single-step
// selector string.
func matchesSelector(n *html.Node, sel string) bool {
	return parseSelector(sel).matches(n)
}

// findAll walks the tree rooted at n and returns every node matching
// sel, in document order.
func findAll(n *html.Node, sel string) []*html.Node {
	parsed := parseSelector(sel)
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if parsed.matches(node) {
			out = append(out, node)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

// findBySelector tries each selector in order against n and returns
// the first node to match any of them. Scraper card-field extraction
// is written against a ranked list of candidate selectors because
// site markup shifts without notice; first hit wins.
func findBySelector(n *html.Node, selectors ...string) *html.Node {
	for _, sel := range selectors {
		if found := findAll(n, sel); len(found) > 0 {
			return found[0]
		}
	}
	return nil
}

// resolveURL joins a possibly-relative href against a base URL.
func resolveURL(base, href string) string {
	if href == "" {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}

// parseLocation normalizes a free-text location string, collapsing
// "Remote" variants and trimming whitespace.
func parseLocation(raw string) string {
	raw = strings.TrimSpace(raw)
	lower := strings.ToLower(raw)
	if strings.Contains(lower, "remote") || strings.Contains(lower, "anywhere") || strings.Contains(lower, "worldwide") {
		return "Remote"
	}
	return raw
}

// parseHTML parses an HTML document body into a node tree.
func parseHTML(body string) (*html.Node, error) {
	return html.Parse(strings.NewReader(body))
}
