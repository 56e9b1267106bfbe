package revalidate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/headpress/cache"
)

type recordingInvalidator struct {
	tags    []string
	paths   []string
	failTag string
}

func (r *recordingInvalidator) RevalidateTag(_ context.Context, tag string) error {
	r.tags = append(r.tags, tag)
	if tag == r.failTag {
		return errors.New("store down")
	}
	return nil
}

func (r *recordingInvalidator) RevalidatePath(_ context.Context, path string, kind cache.PathKind) error {
	r.paths = append(r.paths, path+"|"+string(kind))
	return nil
}

type countingLimiter struct {
	blocked  bool
	recorded int
}

func (l *countingLimiter) Check(string) bool { return !l.blocked }
func (l *countingLimiter) Record(string)     { l.recorded++ }

func call(t *testing.T, h *Handler, secret, body string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/revalidate", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if secret != "" {
		req.Header.Set(SecretHeader, secret)
	}
	rec := httptest.NewRecorder()
	require.NoError(t, h.Handle(e.NewContext(req, rec)))

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestHandleRejectsBadSecret(t *testing.T) {
	for _, secret := range []string{"", "wrong", "s3cret-but-longer"} {
		inv := &recordingInvalidator{}
		lim := &countingLimiter{}
		h := NewHandler("s3cret", inv, WithLimiter(lim))

		rec, resp := call(t, h, secret, `{"type":"post","id":42}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, secret)
		assert.NotEmpty(t, resp.Message)
		assert.Empty(t, inv.tags)
		assert.Empty(t, inv.paths)
		assert.Equal(t, 1, lim.recorded)
	}
}

func TestHandleRejectsBadSecretBeforeParsing(t *testing.T) {
	inv := &recordingInvalidator{}
	rec, _ := call(t, NewHandler("s3cret", inv), "wrong", `{not json`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleMissingType(t *testing.T) {
	inv := &recordingInvalidator{}
	rec, resp := call(t, NewHandler("s3cret", inv), "s3cret", `{"id":42}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing content type", resp.Message)
	assert.Empty(t, inv.tags)
}

func TestHandleRevalidatesPost(t *testing.T) {
	inv := &recordingInvalidator{}
	rec, resp := call(t, NewHandler("s3cret", inv), "s3cret", `{"type":"post","id":42}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Revalidated)
	assert.Equal(t, []string{"wordpress", "posts", "post-42"}, resp.Tags)
	assert.Equal(t, resp.Tags, inv.tags)
	assert.Equal(t, []string{"/|layout"}, inv.paths)
	assert.Equal(t, "Revalidated post (ID: 42) and related content", resp.Message)
}

func TestHandleRevalidatesTerm(t *testing.T) {
	inv := &recordingInvalidator{}
	rec, resp := call(t, NewHandler("", inv), "", `{"type":"term","subtype":"category","id":5}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.ElementsMatch(t, []string{"wordpress", "terms", "term-5", "categories", "category-5"}, resp.Tags)
	assert.Equal(t, []string{"/|layout"}, inv.paths)
}

func TestHandleMalformedBody(t *testing.T) {
	inv := &recordingInvalidator{}
	rec, resp := call(t, NewHandler("", inv), "", `{"type":`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Error revalidating content", resp.Message)
}

func TestHandleDropsEveryTagEvenWhenOneFails(t *testing.T) {
	inv := &recordingInvalidator{failTag: "posts"}
	rec, resp := call(t, NewHandler("", inv), "", `{"type":"post","id":1}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, resp.Message, "store down")
	assert.Equal(t, []string{"wordpress", "posts", "post-1"}, inv.tags)
	assert.Equal(t, []string{"/|layout"}, inv.paths)
}

func TestHandleOverLimit(t *testing.T) {
	inv := &recordingInvalidator{}
	lim := &countingLimiter{blocked: true}
	h := NewHandler("s3cret", inv, WithLimiter(lim))

	rec, _ := call(t, h, "wrong", `{"type":"post"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, lim.recorded, "attempts over the limit are not stored")
	assert.Empty(t, inv.tags)

	rec, resp := call(t, h, "s3cret", `{"type":"post","id":3}`)
	assert.Equal(t, http.StatusOK, rec.Code, "a correct secret is never refused")
	assert.Equal(t, []string{"wordpress", "posts", "post-3"}, resp.Tags)
}
