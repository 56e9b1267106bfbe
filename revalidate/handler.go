package revalidate

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eringen/headpress/cache"
	"github.com/eringen/headpress/metrics"
)

// SecretHeader carries the shared webhook secret.
const SecretHeader = "x-webhook-secret"

const maxBodyBytes = 1 << 20

// Invalidator drops cached content. *cache.TagCache implements it.
type Invalidator interface {
	RevalidateTag(ctx context.Context, tag string) error
	RevalidatePath(ctx context.Context, path string, kind cache.PathKind) error
}

// Limiter tracks callers that keep failing authentication.
type Limiter interface {
	Check(ip string) bool
	Record(ip string)
}

// Response is the JSON body of every webhook answer. Failures only set
// Message.
type Response struct {
	Revalidated bool     `json:"revalidated,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Message     string   `json:"message"`
}

// Handler serves POST /api/revalidate.
type Handler struct {
	secret  string
	inv     Invalidator
	limiter Limiter
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Handler.
type Option func(*Handler)

func WithLimiter(l Limiter) Option {
	return func(h *Handler) { h.limiter = l }
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// NewHandler creates the webhook handler. An empty secret disables
// authentication.
func NewHandler(secret string, inv Invalidator, opts ...Option) *Handler {
	h := &Handler{
		secret: secret,
		inv:    inv,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle authenticates the call, derives the cache tags for the changed
// entity and drops them along with the root layout.
func (h *Handler) Handle(c echo.Context) error {
	if !h.authorized(c.Request().Header.Get(SecretHeader)) {
		h.rejected(c.RealIP())
		return h.respond(c, http.StatusUnauthorized, Response{Message: "Invalid webhook secret"})
	}

	var p Payload
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
	if err == nil {
		err = json.Unmarshal(body, &p)
	}
	if err != nil {
		h.logger.Error("revalidate: read payload", "error", err)
		return h.fail(c)
	}

	kind := p.Kind()
	if kind == "" {
		return h.respond(c, http.StatusBadRequest, Response{Message: "Missing content type"})
	}

	ctx := c.Request().Context()
	tags := DeriveTags(p)
	failed := 0
	for _, tag := range tags {
		if err := h.inv.RevalidateTag(ctx, tag); err != nil {
			h.logger.Error("revalidate: drop tag", "tag", tag, "error", err)
			failed++
		}
	}
	if err := h.inv.RevalidatePath(ctx, "/", cache.PathLayout); err != nil {
		h.logger.Error("revalidate: drop root layout", "error", err)
		failed++
	}
	if failed > 0 {
		return h.fail(c)
	}

	h.logger.Info("revalidated", "type", kind, "subtype", p.Subtype, "tags", tags)
	return h.respond(c, http.StatusOK, Response{
		Revalidated: true,
		Tags:        tags,
		Message:     summary(kind, p),
	})
}

func (h *Handler) authorized(got string) bool {
	if h.secret == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) == 1
}

// rejected records a failed authentication. An IP already over the limit is
// neither recorded nor logged again, so a flood of bad calls stays cheap. The
// answer is 401 either way and a correct secret is never refused.
func (h *Handler) rejected(ip string) {
	if h.limiter == nil {
		h.logger.Warn("revalidate: invalid webhook secret", "ip", ip)
		return
	}
	if !h.limiter.Check(ip) {
		h.logger.Debug("revalidate: invalid webhook secret, ip over limit", "ip", ip)
		return
	}
	h.limiter.Record(ip)
	h.logger.Warn("revalidate: invalid webhook secret", "ip", ip)
}

func (h *Handler) fail(c echo.Context) error {
	return h.respond(c, http.StatusInternalServerError, Response{Message: "Error revalidating content"})
}

func (h *Handler) respond(c echo.Context, status int, r Response) error {
	h.metrics.Revalidated(status, len(r.Tags))
	return c.JSON(status, r)
}

func summary(kind string, p Payload) string {
	if id, ok := p.EntityID(); ok {
		return fmt.Sprintf("Revalidated %s (ID: %d) and related content", kind, id)
	}
	return fmt.Sprintf("Revalidated %s and related content", kind)
}
