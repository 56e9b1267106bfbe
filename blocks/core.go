package blocks

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/eringen/headpress/htmlmap"
	"github.com/eringen/headpress/wordpress"
)

// Default returns a registry with the core Gutenberg and Elementor renderers.
func Default(mapper *htmlmap.Mapper) *Registry {
	r := NewRegistry(mapper, nil)

	// Leaf blocks save complete markup; render it through the mapper.
	for _, name := range []string{
		"core/paragraph", "core/heading", "core/list", "core/list-item",
		"core/image", "core/quote", "core/button", "core/code",
		"core/preformatted", "core/table", "core/html",
	} {
		r.Register(name, r.saved)
	}

	r.Register("core/group", container("div", "wp-block-group"))
	r.Register("core/columns", container("div", "wp-block-columns"))
	r.Register("core/column", column)
	r.Register("core/buttons", container("div", "wp-block-buttons"))
	r.Register("core/separator", separator)
	r.Register("core/spacer", spacer)

	registerElementor(r)
	return r
}

// saved renders a block from its saved HTML, with inner blocks after it for
// blocks (like quote or list) that nest.
func (r *Registry) saved(b wordpress.Block, children templ.Component) templ.Component {
	if len(b.InnerBlocks) > 0 && b.Rendered == "" {
		return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
			tag, class := wrapperFor(b.Name)
			if _, err := fmt.Fprintf(w, `<%s class="%s">`, tag, templ.EscapeString(classes(b, class))); err != nil {
				return err
			}
			if err := children.Render(ctx, w); err != nil {
				return err
			}
			_, err := fmt.Fprintf(w, "</%s>", tag)
			return err
		})
	}
	if b.Rendered != "" {
		return r.HTML(b.Rendered)
	}
	return r.HTML(b.InnerHTML)
}

func wrapperFor(name string) (tag, class string) {
	switch name {
	case "core/list":
		return "ul", "wp-block-list"
	case "core/quote":
		return "blockquote", "wp-block-quote"
	}
	return "div", "wp-block"
}

func container(tag, base string) Renderer {
	return func(b wordpress.Block, children templ.Component) templ.Component {
		return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
			if _, err := fmt.Fprintf(w, `<%s class="%s">`, tag, templ.EscapeString(classes(b, base))); err != nil {
				return err
			}
			if err := children.Render(ctx, w); err != nil {
				return err
			}
			_, err := fmt.Fprintf(w, "</%s>", tag)
			return err
		})
	}
}

func column(b wordpress.Block, children templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		style := ""
		if width := attrString(b, "width"); width != "" {
			style = fmt.Sprintf(` style="flex-basis:%s"`, templ.EscapeString(width))
		}
		if _, err := fmt.Fprintf(w, `<div class="%s"%s>`, templ.EscapeString(classes(b, "wp-block-column")), style); err != nil {
			return err
		}
		if err := children.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</div>")
		return err
	})
}

func separator(b wordpress.Block, _ templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<hr class="%s">`, templ.EscapeString(classes(b, "wp-block-separator")))
		return err
	})
}

func spacer(b wordpress.Block, _ templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		height := attrString(b, "height")
		if height == "" {
			height = fmt.Sprintf("%dpx", attrInt(b, "height", 100))
		}
		_, err := fmt.Fprintf(w, `<div class="wp-block-spacer" style="height:%s" aria-hidden="true"></div>`, templ.EscapeString(height))
		return err
	})
}
