package website

import (
	"net/url"
	"slices"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	metaDescriptionPrefix = "META:Description:"
	metaKeywordsPrefix    = "META:Keywords:"
)

// allowedTags are kept with their allowed attributes. Unknown tags are
// unwrapped so their text survives.
var allowedTags = map[string][]string{
	"p": nil, "br": nil, "hr": nil, "span": nil, "div": nil,
	"h1": nil, "h2": nil, "h3": nil, "h4": nil, "h5": nil, "h6": nil,
	"strong": nil, "b": nil, "em": nil, "i": nil, "u": nil,
	"ul": nil, "ol": nil, "li": nil, "blockquote": nil, "code": nil, "pre": nil,
	"table": nil, "thead": nil, "tbody": nil, "tr": nil, "th": nil, "td": nil,
	"figure": nil, "figcaption": nil,
	"a":   {"href", "title"},
	"img": {"src", "alt", "title"},
}

// droppedTags are removed together with everything inside them.
var droppedTags = map[string]bool{
	"script": true, "style": true, "iframe": true, "object": true, "embed": true,
	"form": true, "input": true, "button": true, "textarea": true, "select": true,
	"noscript": true, "link": true, "meta": true, "base": true, "svg": true,
	"math": true, "template": true, "title": true, "head": true,
}

// Document is generated HTML after sanitizing, with what was extracted from it.
type Document struct {
	HTML            string
	Title           string
	MetaDescription string
	MetaKeywords    string
	WordCount       int
}

// Inspect sanitizes raw and extracts the first <h1> text, the META comments a
// generated article carries, and the word count of the visible text.
func Inspect(raw string) (Document, error) {
	root, err := parseFragment(raw)
	if err != nil {
		return Document{}, err
	}

	var doc Document
	walk(root, func(n *html.Node) bool {
		switch {
		case n.Type == html.CommentNode:
			c := strings.TrimSpace(n.Data)
			if v, ok := strings.CutPrefix(c, metaDescriptionPrefix); ok && doc.MetaDescription == "" {
				doc.MetaDescription = strings.TrimSpace(v)
			}
			if v, ok := strings.CutPrefix(c, metaKeywordsPrefix); ok && doc.MetaKeywords == "" {
				doc.MetaKeywords = strings.TrimSpace(v)
			}
		case n.Type == html.ElementNode && n.DataAtom == atom.H1 && doc.Title == "":
			doc.Title = strings.Join(strings.Fields(textOf(n)), " ")
		}
		return true
	})

	clean(root)
	doc.HTML, err = render(root)
	if err != nil {
		return Document{}, err
	}
	doc.WordCount = len(strings.Fields(textOf(root)))
	return doc, nil
}

// Sanitize strips scripts, event handlers, unsafe URLs and comments from raw.
func Sanitize(raw string) (string, error) {
	root, err := parseFragment(raw)
	if err != nil {
		return "", err
	}
	clean(root)
	return render(root)
}

// Markdown converts sanitized post HTML to GitHub-flavored markdown.
func Markdown(content string) (string, error) {
	conv := md.NewConverter("", true, nil)
	conv.Use(plugin.GitHubFlavored())
	out, err := conv.ConvertString(content)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func parseFragment(raw string) (*html.Node, error) {
	root := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(raw), root)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	return root, nil
}

func render(root *html.Node) (string, error) {
	var b strings.Builder
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return "", err
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// walk visits n and its descendants depth-first until fn returns false.
func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

// inlineTags do not separate words in the text around them.
var inlineTags = map[string]bool{
	"a": true, "b": true, "strong": true, "em": true, "i": true, "u": true, "span": true, "code": true,
}

func textOf(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		switch {
		case c.Type == html.TextNode:
			b.WriteString(c.Data)
		case c.Type == html.ElementNode && !inlineTags[c.Data]:
			b.WriteByte(' ')
		}
		return true
	})
	return b.String()
}

func clean(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		switch c.Type {
		case html.CommentNode, html.DoctypeNode:
			n.RemoveChild(c)
		case html.ElementNode:
			attrs, allowed := allowedTags[c.Data]
			switch {
			case droppedTags[c.Data]:
				n.RemoveChild(c)
			case !allowed:
				clean(c)
				for gc := c.FirstChild; gc != nil; {
					gnext := gc.NextSibling
					c.RemoveChild(gc)
					n.InsertBefore(gc, c)
					gc = gnext
				}
				n.RemoveChild(c)
			default:
				c.Attr = cleanAttrs(c.Attr, attrs)
				clean(c)
			}
		}
		c = next
	}
}

func cleanAttrs(in []html.Attribute, allowed []string) []html.Attribute {
	var out []html.Attribute
	for _, a := range in {
		if a.Namespace != "" || !slices.Contains(allowed, a.Key) {
			continue
		}
		if (a.Key == "href" || a.Key == "src") && !safeURL(a.Val) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// safeURL accepts relative URLs and http, https and mailto links.
func safeURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "", "http", "https", "mailto":
		return true
	}
	return false
}
