package entity

import (
	"io"
	"time"
)

// Upload is a client file as received over HTTP. Filename is untrusted.
type Upload struct {
	Filename string
	Content  io.Reader
}

// Task maps an opaque identifier to a processed file on disk.
type Task struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the task has a deadline that is not after now.
func (t Task) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

// Processed describes the output of one pipeline run.
type Processed struct {
	// Name is the sanitized client filename.
	Name string
	// RawPath is where the uploaded bytes were staged.
	RawPath string
	// Path is the absolute path of the rewritten file.
	Path string
	// Rows is the number of data rows, excluding the header.
	Rows int
}

// ExpiredFileEvent asks the cleanup consumer to remove a staged file.
type ExpiredFileEvent struct {
	EventID string
	Path    string
	ModTime time.Time
}
