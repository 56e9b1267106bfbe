package wordpress

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is returned when the CMS answers a required single-entity fetch with
// a non-success status.
type Error struct {
	Status   int
	Endpoint string
}

func (e *Error) Error() string {
	return fmt.Sprintf("wordpress: %s returned %d %s", e.Endpoint, e.Status, http.StatusText(e.Status))
}

// IsNotFound reports whether err is an *Error with status 404.
func IsNotFound(err error) bool {
	var we *Error
	return errors.As(err, &we) && we.Status == http.StatusNotFound
}
