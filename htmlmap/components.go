package htmlmap

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/eringen/headpress/wordpress"
)

// DefaultRules maps anchors, images and iframes from CMS content. Links into
// the CMS origin are rewritten to site-relative paths.
func DefaultRules(cmsBase string) []Rule {
	return []Rule{
		{Selector: "a", Attrs: []string{"href", "title", "target", "rel"}, Component: Link(cmsBase)},
		{Selector: "img", Attrs: []string{"src", "alt", "width", "height", "srcset", "sizes"}, Component: Image},
		{Selector: "iframe", Attrs: []string{"src", "title", "width", "height"}, Component: Embed},
	}
}

// Link renders an anchor, keeping internal CMS links on the frontend.
func Link(cmsBase string) Component {
	return func(p Props) templ.Component {
		return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
			href := wordpress.RelativeURL(cmsBase, p.Attr("href"))
			var b strings.Builder
			b.WriteString(`<a href="`)
			b.WriteString(templ.EscapeString(string(templ.URL(href))))
			b.WriteString(`"`)
			writeAttr(&b, "title", p.Attr("title"))
			if target := p.Attr("target"); target != "" {
				writeAttr(&b, "target", target)
				rel := p.Attr("rel")
				if target == "_blank" && !strings.Contains(rel, "noopener") {
					rel = strings.TrimSpace(rel + " noopener noreferrer")
				}
				writeAttr(&b, "rel", rel)
			} else {
				writeAttr(&b, "rel", p.Attr("rel"))
			}
			b.WriteString(">")
			if _, err := io.WriteString(w, b.String()); err != nil {
				return err
			}
			if err := p.Children.Render(ctx, w); err != nil {
				return err
			}
			_, err := io.WriteString(w, "</a>")
			return err
		})
	}
}

// Image renders a lazily loaded image.
func Image(p Props) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		fmt.Fprintf(&b, `<img src="%s" alt="%s"`,
			templ.EscapeString(string(templ.URL(p.Attr("src")))), templ.EscapeString(p.Attr("alt")))
		for _, name := range []string{"width", "height", "srcset", "sizes"} {
			writeAttr(&b, name, p.Attr(name))
		}
		b.WriteString(` loading="lazy" decoding="async">`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// Embed wraps an iframe in a responsive container.
func Embed(p Props) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		fmt.Fprintf(&b, `<div class="embed"><iframe src="%s"`, templ.EscapeString(string(templ.URL(p.Attr("src")))))
		for _, name := range []string{"title", "width", "height"} {
			writeAttr(&b, name, p.Attr(name))
		}
		b.WriteString(` loading="lazy" allowfullscreen></iframe></div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func writeAttr(b *strings.Builder, name, val string) {
	if val == "" {
		return
	}
	fmt.Fprintf(b, ` %s="%s"`, name, templ.EscapeString(val))
}
