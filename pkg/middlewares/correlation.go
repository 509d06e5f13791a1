package middlewares

import (
	"net/http"
	"regexp"

	"github.com/gorilla/mux"
)

const DefaultCorrelationHeader = "X-Correlation-ID"

var correlationIDRegexp = regexp.MustCompile(`^[\w-]{3,64}$`)

// ValidCorrelationID reports whether a client supplied ID is safe to echo
// and log
func ValidCorrelationID(id string) bool {
	return correlationIDRegexp.MatchString(id)
}

type CorrelationMw struct {
	headerName string
	next       http.Handler
}

func NewCorrelationMw(headerName string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return NewCorrelation(headerName, next)
	}
}

func NewCorrelation(headerName string, next http.Handler) *CorrelationMw {
	return &CorrelationMw{headerName: headerName, next: next}
}

// Echo the caller's correlation header so the dashboard can match
// responses to the commands it sent
func (mw *CorrelationMw) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if id, ok := correlationID(r, mw.headerName); ok {
		rw.Header().Set(mw.headerName, id)
	}

	mw.next.ServeHTTP(rw, r)
}

func correlationID(r *http.Request, headerName string) (string, bool) {
	if headerName == "" {
		return "", false
	}

	id := r.Header.Get(headerName)
	if id == "" {
		return "", false
	}
	if !ValidCorrelationID(id) {
		return "<Bad_Correlation_Id>", true
	}
	return id, true
}
