package pkguid

import "github.com/google/uuid"

// UUID generates version 7 UUID strings. Their leading timestamp makes task
// ids sort by submission time, which keeps Redis key scans and log searches
// in upload order.
type UUID struct{}

func NewUUID() *UUID {
	return &UUID{}
}

// Generate panics only when the system random source fails.
func (u *UUID) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
