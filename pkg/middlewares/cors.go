package middlewares

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// ProxyCorsOptions allows browsers served from origin to read devices and
// send patches
func ProxyCorsOptions(origin string) cors.Options {
	if origin == "" {
		origin = "*"
	}

	return cors.Options{
		AllowedOrigins: []string{origin},
		AllowedMethods: []string{http.MethodGet, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", DefaultCorrelationHeader},
		ExposedHeaders: []string{"X-Txn-ID", DefaultCorrelationHeader},
		MaxAge:         600,
	}
}

type CorsMw struct {
	h http.Handler
}

func NewCorsMw(opts cors.Options) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return NewCors(opts, next)
	}
}

func NewCors(opts cors.Options, next http.Handler) *CorsMw {
	c := cors.New(opts)

	return &CorsMw{
		h: c.Handler(next),
	}
}

// Wrap the whole router rather than using r.Use: mux does not run
// middlewares for preflight requests that match no route
func (mw *CorsMw) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	mw.h.ServeHTTP(rw, r)
}
