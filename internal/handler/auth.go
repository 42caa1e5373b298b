package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
)

type callerKey struct{}

// Caller is the authenticated principal forwarded by the auth layer. A
// single role-tagged shape replaces per-role principal types.
type Caller struct {
	ID    uint64
	Roles []string
}

// HasRole reports whether the caller carries the given role.
func (c Caller) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// CallerFromContext returns the authenticated caller, if any.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(callerKey{}).(Caller)
	return caller, ok
}

// AuthMiddleware extracts the caller identity forwarded by the upstream
// auth gateway (X-User-Id and X-User-Roles headers). Requests without the
// headers pass through unauthenticated; role checks happen per endpoint.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idHeader := r.Header.Get("X-User-Id")
		if idHeader == "" {
			next.ServeHTTP(w, r)
			return
		}

		id, err := strconv.ParseUint(idHeader, 10, 64)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		caller := Caller{ID: id}
		if roles := r.Header.Get("X-User-Roles"); roles != "" {
			for _, role := range strings.Split(roles, ",") {
				caller.Roles = append(caller.Roles, strings.TrimSpace(role))
			}
		}

		ctx := context.WithValue(r.Context(), callerKey{}, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
