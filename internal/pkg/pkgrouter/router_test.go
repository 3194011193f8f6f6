package pkgrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shandysiswandi/csvpass/internal/pkg/pkgerror"
)

type csvStreamer struct {
	body string
}

func (s csvStreamer) Stream(w http.ResponseWriter, _ *http.Request) error {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="out.csv"`)
	w.WriteHeader(http.StatusOK)
	_, err := io.WriteString(w, s.body)
	return err
}

type createdResponse struct {
	ID string `json:"id"`
}

func (createdResponse) StatusCode() int { return http.StatusCreated }
func (createdResponse) Message() string { return "created" }

func serve(t *testing.T, router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestRouterStreamsRawBody(t *testing.T) {
	router := NewRouter(&staticGenerator{value: "cid"})
	router.GET("/file", func(ctx context.Context, r *http.Request) (any, error) {
		return csvStreamer{body: "a,b\n1,2\n"}, nil
	})

	rec := serve(t, router, httptest.NewRequest(http.MethodGet, "/file", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/csv" {
		t.Fatalf("unexpected content type: %q", got)
	}
	if got := rec.Body.String(); got != "a,b\n1,2\n" {
		t.Fatalf("unexpected body: %q", got)
	}
}

func TestRouterEncodesEnvelope(t *testing.T) {
	router := NewRouter(&staticGenerator{value: "cid"})
	router.POST("/things", func(ctx context.Context, r *http.Request) (any, error) {
		return createdResponse{ID: "t-1"}, nil
	})

	rec := serve(t, router, httptest.NewRequest(http.MethodPost, "/things", nil))

	if rec.Code != http.StatusCreated {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["message"] != "created" {
		t.Fatalf("unexpected message: %v", body["message"])
	}
	data, ok := body["data"].(map[string]any)
	if !ok || data["id"] != "t-1" {
		t.Fatalf("unexpected data: %v", body["data"])
	}
	if got := rec.Header().Get(HeaderCorrelationID); got != "cid" {
		t.Fatalf("expected correlation id header, got %q", got)
	}
}

type flatResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

func (flatResponse) Flat() bool { return true }

func TestRouterEncodesFlatPayload(t *testing.T) {
	router := NewRouter(&staticGenerator{value: "cid"})
	router.POST("/flat", func(ctx context.Context, r *http.Request) (any, error) {
		return flatResponse{Message: "done", ID: "t-2"}, nil
	})

	rec := serve(t, router, httptest.NewRequest(http.MethodPost, "/flat", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["message"] != "done" || body["id"] != "t-2" {
		t.Fatalf("unexpected body: %v", body)
	}
	if _, ok := body["data"]; ok {
		t.Fatalf("flat payload must not be enveloped: %v", body)
	}
}

func TestRouterMapsErrors(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"validation", pkgerror.NewValidation("Only CSV files are allowed"), http.StatusBadRequest, "Only CSV files are allowed"},
		{"not found", pkgerror.NewNotFound("Task not found"), http.StatusNotFound, "Task not found"},
		{"io failure", pkgerror.NewIOFailure(errors.New("disk full")), http.StatusInternalServerError, "disk full"},
		{"untyped", errors.New("boom"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := NewRouter(&staticGenerator{value: "cid"})
			router.GET("/fail", func(ctx context.Context, r *http.Request) (any, error) {
				return nil, tc.err
			})

			rec := serve(t, router, httptest.NewRequest(http.MethodGet, "/fail", nil))
			if rec.Code != tc.status {
				t.Fatalf("unexpected status: %d", rec.Code)
			}
			if got := decodeBody(t, rec)["message"]; got != tc.message {
				t.Fatalf("unexpected message: %v", got)
			}
		})
	}
}

func TestMaxBodyBytesRejectsDeclaredLength(t *testing.T) {
	router := NewRouter(&staticGenerator{value: "cid"})
	called := false
	router.POST("/upload", func(ctx context.Context, r *http.Request) (any, error) {
		called = true
		return nil, nil
	}, MaxBodyBytes(8, "too big"))

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("0123456789"))
	rec := serve(t, router, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if called {
		t.Fatal("handler must not run")
	}
	if got := decodeBody(t, rec)["message"]; got != "too big" {
		t.Fatalf("unexpected message: %v", got)
	}
}

func TestMaxBodyBytesCapsUndeclaredLength(t *testing.T) {
	var readErr error
	h := MaxBodyBytes(4, "too big")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))

	req := httptest.NewRequest(http.MethodPost, "/upload", io.NopCloser(bytes.NewBufferString("0123456789")))
	req.ContentLength = -1
	h.ServeHTTP(httptest.NewRecorder(), req)

	var maxErr *http.MaxBytesError
	if !errors.As(readErr, &maxErr) {
		t.Fatalf("expected MaxBytesError, got %v", readErr)
	}
}

func TestMaxBodyBytesDisabled(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	if got := MaxBodyBytes(0, "")(next); got == nil {
		t.Fatal("expected handler")
	}
}

func TestLoggingLeavesMultipartBodyUnread(t *testing.T) {
	body := "--x\r\nContent-Disposition: form-data; name=\"file\"; filename=\"a.csv\"\r\n\r\na,b\r\n--x--\r\n"
	var got string
	h := middlewareLogging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got = string(b)
	}))

	reader := &countingReader{r: strings.NewReader(body)}
	req := httptest.NewRequest(http.MethodPost, "/upload", reader)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	req.ContentLength = int64(len(body))
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got != body {
		t.Fatalf("handler saw %q", got)
	}
	if reader.reads == 0 {
		t.Fatal("expected handler to read the original body")
	}
	if !shouldCaptureBody(httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"a":1}`))) {
		t.Fatal("expected small json body to be captured")
	}
}

type countingReader struct {
	r     io.Reader
	reads int
}

func (c *countingReader) Read(p []byte) (int, error) {
	c.reads++
	return c.r.Read(p)
}
