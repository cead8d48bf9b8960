package anchor

import (
	"io"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Link is a same-page link found in a document.
type Link struct {
	Href   string `json:"href"`
	Text   string `json:"text"`
	Target bool   `json:"target_found"`
}

// Report lists a document's hash links and the ids they can reach.
type Report struct {
	Links   []Link   `json:"links"`
	IDs     []string `json:"ids"`
	Missing []string `json:"missing,omitempty"`
}

// OK reports whether every hash link has a target.
func (r Report) OK() bool {
	return len(r.Missing) == 0
}

// Scan parses an HTML document and checks its same-page links.
func Scan(r io.Reader) (Report, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return Report{}, err
	}

	ids := make(map[string]bool)
	var links []Link

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if id := attr(n, "id"); id != "" {
				ids[id] = true
			}
			if n.DataAtom == atom.A {
				if href := attr(n, "href"); IsHashLink(href) {
					links = append(links, Link{Href: href, Text: text(n)})
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	report := Report{Links: links}
	missing := make(map[string]bool)
	for i := range report.Links {
		id := strings.TrimPrefix(report.Links[i].Href, "#")
		report.Links[i].Target = ids[id]
		if !ids[id] && !missing[report.Links[i].Href] {
			missing[report.Links[i].Href] = true
			report.Missing = append(report.Missing, report.Links[i].Href)
		}
	}
	for id := range ids {
		report.IDs = append(report.IDs, id)
	}
	sort.Strings(report.IDs)

	return report, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func text(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
