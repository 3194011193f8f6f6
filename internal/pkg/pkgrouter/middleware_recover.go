package pkgrouter

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
)

// middlewareRecoverer turns a handler panic into a 500 envelope and logs the
// route it happened on together with the frames from this module.
//
//nolint:contextcheck // the request context carries the correlation id
func middlewareRecoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}
			//nolint:err113,errorlint // this must compare directly
			if rvr == http.ErrAbortHandler {
				panic(rvr)
			}

			slog.ErrorContext(r.Context(), "panic on the server",
				"because", rvr,
				"method", r.Method,
				"route", matchedRoutePath(r),
				"stack", internalFrames(string(debug.Stack())),
			)

			if r.Header.Get("Connection") == "Upgrade" {
				return
			}
			writeJSON(w, map[string]string{"message": "Internal server error"}, http.StatusInternalServerError)
		}()

		next.ServeHTTP(w, r)
	})
}

// internalFrames keeps the "internal/<pkg>/<file>.go:<line>" locations of a
// stack dump, dropping runtime and third-party frames.
func internalFrames(stack string) []string {
	var frames []string
	for _, line := range strings.Split(stack, "\n") {
		line = strings.TrimSpace(line)
		idx := strings.Index(line, "/internal/")
		if idx == -1 || !strings.Contains(line, ".go:") {
			continue
		}

		frame := line[idx+1:]
		if end := strings.IndexByte(frame, ' '); end != -1 {
			frame = frame[:end]
		}
		frames = append(frames, frame)
	}
	return frames
}
