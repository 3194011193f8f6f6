package pkgrouter

import (
	"net/http"
	"strings"

	"github.com/shandysiswandi/csvpass/internal/pkg/pkglog"
)

// Generator generates a unique string (used for correlation/request IDs).
type Generator interface {
	Generate() string
}

const (
	// HeaderCorrelationID is the canonical header used to track requests end-to-end.
	HeaderCorrelationID = "X-Correlation-ID"
	// HeaderRequestID is an accepted alternative header name used by some proxies.
	HeaderRequestID = "X-Request-ID"

	maxCorrelationIDLen = 128
)

// normalizeCID trims v and truncates it to maxCorrelationIDLen. Values with
// anything other than visible ASCII are dropped, since the id is echoed in a
// response header and written to every log line of the request.
func normalizeCID(v string) string {
	v = strings.TrimSpace(v)
	if len(v) > maxCorrelationIDLen {
		v = v[:maxCorrelationIDLen]
	}
	for i := 0; i < len(v); i++ {
		if v[i] < '!' || v[i] > '~' {
			return ""
		}
	}
	return v
}

// requestCID returns the first usable id the client sent, if any.
func requestCID(r *http.Request) string {
	for _, header := range []string{HeaderCorrelationID, HeaderRequestID} {
		if cid := normalizeCID(r.Header.Get(header)); cid != "" {
			return cid
		}
	}
	return ""
}

func middlewareCorrelationID(gen Generator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cid := requestCID(r)
			if cid == "" && gen != nil {
				cid = gen.Generate()
			}
			if cid == "" {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set(HeaderCorrelationID, cid)
			next.ServeHTTP(w, r.WithContext(pkglog.SetCorrelationID(r.Context(), cid)))
		})
	}
}
