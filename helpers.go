package headpress

import (
	"crypto/subtle"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// pageParam reads ?page=, defaulting to 1 for missing or invalid values.
func pageParam(c echo.Context) int {
	n, err := strconv.Atoi(c.QueryParam("page"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func secretsEqual(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// safeRedirect keeps redirects on this site: only absolute paths are allowed,
// and protocol-relative "//host" paths are rejected.
func safeRedirect(path string) string {
	if path == "" || !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") || strings.HasPrefix(path, "/\\") {
		return "/"
	}
	return path
}
