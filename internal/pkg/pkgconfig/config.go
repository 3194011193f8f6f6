package pkgconfig

import "time"

// Config is the view of application configuration used by modules.
type Config interface {
	GetInt(key string) int64
	GetBool(key string) bool
	GetString(key string) string
	GetDuration(key string) time.Duration
	GetArray(key string) []string
	Set(key string, value any)
	Close() error
}
