// Package middleware provides HTTP middleware for the metrics API.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request ID on requests and responses.
const RequestIDHeader = "X-Request-ID"

type ctxKeyRequestID struct{}

// RequestID tags every request with an ID and echoes it on the response.
// An incoming header from an upstream proxy is kept as-is so one ID can be
// traced across services; otherwise a fresh UUID is minted. The query
// service reads the ID back out of the context when it stamps audit records,
// which is what ties a history row to the request that produced it.
func RequestID(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		id := requestID(r)
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(
			context.WithValue(r.Context(), ctxKeyRequestID{}, id)))
	}
	return http.HandlerFunc(fn)
}

func requestID(r *http.Request) string {
	if id := r.Header.Get(RequestIDHeader); id != "" {
		return id
	}
	return uuid.NewString()
}

// RequestIDFromContext returns the request's ID, or "" outside a request
// handled by RequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID{}).(string)
	return id
}
