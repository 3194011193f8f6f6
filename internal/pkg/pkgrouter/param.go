package pkgrouter

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

type routeContextKey struct{}

// GetParam reads a path parameter from the request context (as stored by httprouter).
func GetParam(ctx context.Context, key string) string {
	return httprouter.ParamsFromContext(ctx).ByName(key)
}

// RoutePath returns the registered route pattern (for example
// "/download/:task_id") of the request being served, or "" outside a route.
func RoutePath(ctx context.Context) string {
	route, _ := ctx.Value(routeContextKey{}).(string)
	return route
}

func withRoute(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), routeContextKey{}, path)))
	})
}
