package blocks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/eringen/headpress/htmlmap"
	"github.com/eringen/headpress/wordpress"
)

type elementorElement struct {
	ID         string             `json:"id"`
	ElType     string             `json:"elType"`
	WidgetType string             `json:"widgetType"`
	Settings   json.RawMessage    `json:"settings"`
	Elements   []elementorElement `json:"elements"`
}

// FromElementor converts Elementor's element tree into blocks named
// "elementor/{elType}" for layout elements and "elementor/{widgetType}" for
// widgets, with the element settings as attrs. The data may arrive as JSON or
// as a JSON string holding JSON, which is how the post meta stores it.
func FromElementor(raw []byte) ([]wordpress.Block, error) {
	raw = []byte(strings.TrimSpace(string(raw)))
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("elementor: %w", err)
		}
		raw = []byte(inner)
	}
	var elements []elementorElement
	if err := json.Unmarshal(raw, &elements); err != nil {
		return nil, fmt.Errorf("elementor: %w", err)
	}
	return convertElements(elements), nil
}

func convertElements(elements []elementorElement) []wordpress.Block {
	out := make([]wordpress.Block, 0, len(elements))
	for _, el := range elements {
		name := el.ElType
		if el.ElType == "widget" && el.WidgetType != "" {
			name = el.WidgetType
		}
		attrs := map[string]any{}
		// Elementor saves empty settings as [] rather than {}.
		if len(el.Settings) > 0 && el.Settings[0] == '{' {
			_ = json.Unmarshal(el.Settings, &attrs)
		}
		if el.ID != "" {
			attrs["_id"] = el.ID
		}
		out = append(out, wordpress.Block{
			Name:        "elementor/" + name,
			Attrs:       attrs,
			InnerBlocks: convertElements(el.Elements),
		})
	}
	return out
}

func registerElementor(r *Registry) {
	r.Register("elementor/section", container("section", "elementor-section"))
	r.Register("elementor/container", container("div", "elementor-container"))
	r.Register("elementor/column", elementorColumn)
	r.Register("elementor/heading", elementorHeading)
	r.Register("elementor/text-editor", func(b wordpress.Block, _ templ.Component) templ.Component {
		return r.HTML(attrString(b, "editor"))
	})
	r.Register("elementor/html", func(b wordpress.Block, _ templ.Component) templ.Component {
		return r.HTML(attrString(b, "html"))
	})
	r.Register("elementor/image", elementorImage)
	r.Register("elementor/button", elementorButton)
	r.Register("elementor/divider", func(b wordpress.Block, _ templ.Component) templ.Component {
		return templ.Raw(`<hr class="elementor-divider">`)
	})
	r.Register("elementor/spacer", func(b wordpress.Block, _ templ.Component) templ.Component {
		return templ.Raw(fmt.Sprintf(`<div class="elementor-spacer" style="height:%dpx" aria-hidden="true"></div>`, sizeOf(b, "space", 50)))
	})
	// Unknown widgets render their children, if any.
	r.Register("elementor/*", func(b wordpress.Block, children templ.Component) templ.Component {
		return children
	})
}

// sizeOf reads Elementor's {"unit":"px","size":N} settings.
func sizeOf(b wordpress.Block, key string, fallback int) int {
	m := attrMap(b, key)
	if size, ok := m["size"].(float64); ok {
		return int(size)
	}
	return fallback
}

func elementorColumn(b wordpress.Block, children templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		style := ""
		if size := attrInt(b, "_column_size", 0); size > 0 {
			style = fmt.Sprintf(` style="flex-basis:%d%%"`, size)
		}
		if _, err := fmt.Fprintf(w, `<div class="elementor-column"%s>`, style); err != nil {
			return err
		}
		if err := children.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</div>")
		return err
	})
}

func elementorHeading(b wordpress.Block, _ templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		tag := attrString(b, "header_size")
		switch tag {
		case "h1", "h2", "h3", "h4", "h5", "h6", "p", "div", "span":
		default:
			tag = "h2"
		}
		_, err := fmt.Fprintf(w, `<%s class="elementor-heading-title">%s</%s>`, tag, templ.EscapeString(attrString(b, "title")), tag)
		return err
	})
}

func elementorImage(b wordpress.Block, _ templ.Component) templ.Component {
	img := attrMap(b, "image")
	src, _ := img["url"].(string)
	alt, _ := img["alt"].(string)
	if src == "" {
		return templ.NopComponent
	}
	return htmlmap.Image(htmlmap.Props{Tag: "img", Attrs: map[string]string{"src": src, "alt": alt}})
}

func elementorButton(b wordpress.Block, _ templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		link := attrMap(b, "link")
		href, _ := link["url"].(string)
		if href == "" {
			href = "#"
		}
		_, err := fmt.Fprintf(w, `<a class="elementor-button" href="%s">%s</a>`,
			templ.EscapeString(string(templ.URL(href))), templ.EscapeString(attrString(b, "text")))
		return err
	})
}
