package pkgrouter

import (
	"net/http"

	"github.com/shandysiswandi/csvpass/internal/pkg/pkgerror"
)

// Middleware wraps an http.Handler, typically to add cross-cutting behavior.
type Middleware func(http.Handler) http.Handler

// Chain applies middleware in order, returning the final wrapped handler.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// MaxBodyBytes rejects requests whose declared Content-Length exceeds limit
// before the handler runs, and caps the body reader at limit for the rest.
// A non-positive limit disables the check.
func MaxBodyBytes(limit int64, msg string) Middleware {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				gerr, _ := pkgerror.NewTooLarge(msg).(*pkgerror.Error)
				writeJSON(w, errorResponse{Message: gerr.Msg()}, gerr.StatusCode())
				return
			}

			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
