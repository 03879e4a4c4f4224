package httputil

import (
	"context"
	"net/http"

	"infostore/internal/domain/models/infostore"
)

// Context key type to avoid collisions
type contextKey string

const (
	callerKey contextKey = "caller"
)

// WithCaller adds the authenticated caller to the request context
func WithCaller(r *http.Request, caller infostore.Caller) *http.Request {
	ctx := context.WithValue(r.Context(), callerKey, caller)
	return r.WithContext(ctx)
}

// GetCaller retrieves the caller from context; ok is false when the request
// was not authenticated.
func GetCaller(r *http.Request) (infostore.Caller, bool) {
	caller, ok := r.Context().Value(callerKey).(infostore.Caller)
	return caller, ok && caller.ContextID > 0
}
