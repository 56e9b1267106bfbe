// Package blocks renders Gutenberg and Elementor block trees by looking up
// each block name in an ordered registry of components. Blocks without a
// registered component fall back to their saved HTML.
package blocks

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/a-h/templ"

	"github.com/eringen/headpress/htmlmap"
	"github.com/eringen/headpress/wordpress"
)

// Renderer builds the component for one block. children is the block's
// inner blocks, already rendered.
type Renderer func(b wordpress.Block, children templ.Component) templ.Component

type entry struct {
	pattern string
	render  Renderer
}

// Registry maps block names to renderers. Patterns are exact names or a
// namespace wildcard ("core/*"); the first registered match wins.
type Registry struct {
	entries []entry
	mapper  *htmlmap.Mapper
	logger  *slog.Logger
}

// NewRegistry creates an empty registry. mapper renders the HTML of blocks
// that have no renderer.
func NewRegistry(mapper *htmlmap.Mapper, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{mapper: mapper, logger: logger}
}

// Register adds a renderer for pattern, replacing an earlier one in place.
func (r *Registry) Register(pattern string, fn Renderer) {
	for i := range r.entries {
		if r.entries[i].pattern == pattern {
			r.entries[i].render = fn
			return
		}
	}
	r.entries = append(r.entries, entry{pattern: pattern, render: fn})
}

// Lookup returns the renderer for a block name.
func (r *Registry) Lookup(name string) (Renderer, bool) {
	for _, e := range r.entries {
		if e.pattern == name {
			return e.render, true
		}
		if ns, ok := strings.CutSuffix(e.pattern, "/*"); ok && strings.HasPrefix(name, ns+"/") {
			return e.render, true
		}
	}
	return nil, false
}

// HTML renders a raw HTML fragment through the mapper.
func (r *Registry) HTML(fragment string) templ.Component {
	if r.mapper == nil {
		return templ.Raw(fragment)
	}
	return r.mapper.Render(fragment)
}

// Render renders a block list in order.
func (r *Registry) Render(list []wordpress.Block) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		for _, b := range list {
			if err := r.block(b).Render(ctx, w); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Registry) block(b wordpress.Block) templ.Component {
	children := r.Render(b.InnerBlocks)
	if fn, ok := r.Lookup(b.Name); ok {
		return fn(b, children)
	}
	switch {
	case b.Name == "" && strings.TrimSpace(b.InnerHTML) == "":
		return templ.NopComponent
	case b.Rendered != "":
		return r.HTML(b.Rendered)
	case len(b.InnerBlocks) > 0:
		return children
	}
	return r.HTML(b.InnerHTML)
}

// Body picks the richest representation a post carries: Elementor data,
// then Gutenberg blocks, then the rendered content HTML.
func (r *Registry) Body(blockList []wordpress.Block, elementor []byte, content string) templ.Component {
	if len(elementor) > 0 {
		converted, err := FromElementor(elementor)
		if err != nil {
			r.logger.Warn("blocks: unreadable elementor data, using content", "error", err)
		} else if len(converted) > 0 {
			return r.Render(converted)
		}
	}
	if len(blockList) > 0 {
		return r.Render(blockList)
	}
	return r.HTML(content)
}

func attrString(b wordpress.Block, key string) string {
	s, _ := b.Attrs[key].(string)
	return s
}

func attrInt(b wordpress.Block, key string, fallback int) int {
	switch v := b.Attrs[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return fallback
}

func attrMap(b wordpress.Block, key string) map[string]any {
	m, _ := b.Attrs[key].(map[string]any)
	return m
}

// classes joins the base class with the block's className and align attrs.
func classes(b wordpress.Block, base string) string {
	out := []string{base}
	if align := attrString(b, "align"); align != "" {
		out = append(out, "align"+align)
	}
	if extra := attrString(b, "className"); extra != "" {
		out = append(out, extra)
	}
	return strings.Join(out, " ")
}
