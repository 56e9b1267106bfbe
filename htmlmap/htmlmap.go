// Package htmlmap renders CMS HTML with selected elements swapped for
// components. Rules are tried in declaration order and the first match wins;
// everything else is written back unchanged.
package htmlmap

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/a-h/templ"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Props is what a substituted component receives: the element name, the
// rule's declared attributes that were present on the node, and the node's
// children (themselves mapped).
type Props struct {
	Tag      string
	Attrs    map[string]string
	Children templ.Component
}

// Attr returns the named attribute or "".
func (p Props) Attr(name string) string {
	return p.Attrs[name]
}

// Component builds the replacement for a matched element.
type Component func(Props) templ.Component

// Rule maps a selector (".class", a tag name, or any CSS selector) to a
// component, forwarding only Attrs.
type Rule struct {
	Selector  string
	Attrs     []string
	Component Component
}

type compiledRule struct {
	Rule
	matcher goquery.Matcher
}

// Mapper applies an ordered rule list to HTML fragments.
type Mapper struct {
	rules []compiledRule
}

// New compiles rules. An invalid selector is an error.
func New(rules ...Rule) (*Mapper, error) {
	m := &Mapper{rules: make([]compiledRule, 0, len(rules))}
	for _, r := range rules {
		sel, err := cascadia.Compile(r.Selector)
		if err != nil {
			return nil, fmt.Errorf("htmlmap: selector %q: %w", r.Selector, err)
		}
		m.rules = append(m.rules, compiledRule{Rule: r, matcher: sel})
	}
	return m, nil
}

// Render returns a component that writes fragment with rules applied.
func (m *Mapper) Render(fragment string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		nodes, err := parseFragment(fragment)
		if err != nil {
			return err
		}
		for _, n := range nodes {
			if err := m.renderNode(ctx, w, n); err != nil {
				return err
			}
		}
		return nil
	})
}

// parseFragment parses fragment as <body> content, so leading <style> or
// <script> blocks stay in place instead of moving to <head>.
func parseFragment(fragment string) ([]*html.Node, error) {
	return html.ParseFragment(strings.NewReader(fragment), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
}

func (m *Mapper) renderNode(ctx context.Context, w io.Writer, n *html.Node) error {
	if n.Type != html.ElementNode {
		return html.Render(w, n)
	}
	if r, ok := m.match(n); ok {
		return r.Component(Props{
			Tag:      n.Data,
			Attrs:    pick(n, r.Attrs),
			Children: m.children(n),
		}).Render(ctx, w)
	}
	if rawText[n.Data] {
		return html.Render(w, n)
	}

	if _, err := io.WriteString(w, "<"+n.Data); err != nil {
		return err
	}
	for _, a := range n.Attr {
		key := a.Key
		if a.Namespace != "" {
			key = a.Namespace + ":" + key
		}
		if _, err := fmt.Fprintf(w, ` %s="%s"`, key, html.EscapeString(a.Val)); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w, ">"); err != nil {
		return err
	}
	if void[n.Data] {
		return nil
	}
	if err := m.children(n).Render(ctx, w); err != nil {
		return err
	}
	_, err := io.WriteString(w, "</"+n.Data+">")
	return err
}

func (m *Mapper) children(n *html.Node) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if err := m.renderNode(ctx, w, c); err != nil {
				return err
			}
		}
		return nil
	})
}

func (m *Mapper) match(n *html.Node) (compiledRule, bool) {
	for _, r := range m.rules {
		if r.matcher.Match(n) {
			return r, true
		}
	}
	return compiledRule{}, false
}

func pick(n *html.Node, names []string) map[string]string {
	attrs := make(map[string]string, len(names))
	for _, name := range names {
		for _, a := range n.Attr {
			if a.Namespace == "" && a.Key == name {
				attrs[name] = a.Val
				break
			}
		}
	}
	return attrs
}

var void = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// Elements whose text children must not be escaped.
var rawText = map[string]bool{
	"script": true, "style": true, "textarea": true, "title": true,
	"xmp": true, "iframe": true, "noembed": true, "noframes": true, "plaintext": true,
}

// FirstImage returns the src of the first <img> in fragment, or "".
func FirstImage(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	src, _ := doc.Find("img[src]").First().Attr("src")
	return src
}
