package hubapi

import (
	"fmt"
	"net/http"
)

// Error is returned for any non-2xx hub response.  The body is kept
// verbatim for diagnostics.
type Error struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("hub %s %s: HTTP %d (%s): %s",
		e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}
