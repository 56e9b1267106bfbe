// Package revalidate implements the CMS webhook that turns a "content
// changed" notification into cache tag invalidations.
package revalidate

import (
	"math"
	"strconv"
	"strings"

	"github.com/eringen/headpress/wordpress"
)

// ID is a webhook entity id. The CMS sends numbers, some plugins send numeric
// strings; anything else is treated as absent.
type ID struct {
	Value int64
	Valid bool
}

func (id *ID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		id.Value, id.Valid = n, true
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) {
		id.Value, id.Valid = int64(f), true
	}
	return nil
}

// Payload is the webhook body. ContentType and ContentID are the legacy names
// of Type and ID and are only consulted when the new ones are missing.
type Payload struct {
	Type        string `json:"type"`
	Subtype     string `json:"subtype"`
	ID          *ID    `json:"id"`
	ContentType string `json:"contentType"`
	ContentID   *ID    `json:"contentId"`
}

// Kind returns the changed content type, e.g. "post" or "term".
func (p Payload) Kind() string {
	if t := strings.TrimSpace(p.Type); t != "" {
		return t
	}
	return strings.TrimSpace(p.ContentType)
}

// EntityID returns the changed entity's id when one was sent.
func (p Payload) EntityID() (int64, bool) {
	for _, id := range []*ID{p.ID, p.ContentID} {
		if id != nil && id.Valid && id.Value > 0 {
			return id.Value, true
		}
	}
	return 0, false
}

// DeriveTags returns the cache tags to drop for p, in order: the global tag,
// the type's collection tag, the entity tag, then for taxonomy terms the
// subtype's collection and entity tags.
func DeriveTags(p Payload) []string {
	tags := []string{wordpress.GlobalTag}
	kind := p.Kind()
	if kind == "" {
		return tags
	}
	id, hasID := p.EntityID()

	tags = append(tags, wordpress.Plural(kind))
	if hasID {
		tags = append(tags, wordpress.ItemTag(kind, id))
	}
	if sub := strings.TrimSpace(p.Subtype); kind == "term" && sub != "" {
		tags = append(tags, wordpress.Plural(sub))
		if hasID {
			tags = append(tags, wordpress.ItemTag(sub, id))
		}
	}
	return tags
}
