package views

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// printer writes markup and keeps the first error.
type printer struct {
	ctx context.Context
	w   io.Writer
	err error
}

func (p *printer) raw(s string) {
	if p.err == nil {
		_, p.err = io.WriteString(p.w, s)
	}
}

func (p *printer) rawf(format string, args ...any) {
	if p.err == nil {
		_, p.err = fmt.Fprintf(p.w, format, args...)
	}
}

func (p *printer) text(s string) { p.raw(templ.EscapeString(s)) }

func (p *printer) href(u string) { p.raw(templ.EscapeString(string(templ.URL(u)))) }

func (p *printer) render(c templ.Component) {
	if p.err == nil && c != nil {
		p.err = c.Render(p.ctx, p.w)
	}
}

func component(fn func(p *printer)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{ctx: ctx, w: w}
		fn(p)
		return p.err
	})
}
