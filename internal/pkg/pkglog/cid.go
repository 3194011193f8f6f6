package pkglog

import "context"

type correlationIDKey struct{}

// GetCorrelationID returns the correlation id the router attached to ctx, or
// "" for work that did not start from a request (janitor scans, cleanup
// workers).
func GetCorrelationID(ctx context.Context) string {
	cid, _ := ctx.Value(correlationIDKey{}).(string)
	return cid
}

// SetCorrelationID stores a correlation ID into the context.
func SetCorrelationID(ctx context.Context, cid string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, cid)
}
