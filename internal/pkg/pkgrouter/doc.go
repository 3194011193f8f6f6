// Package pkgrouter wraps HTTP routing and common middleware used by the API.
//
// It provides a small router abstraction over httprouter plus shared concerns
// like JSON encoding, error mapping, request logging, recovery, body size
// limits, and correlation ID propagation. Handlers may return a Streamer to
// send a raw body such as a file attachment.
package pkgrouter
