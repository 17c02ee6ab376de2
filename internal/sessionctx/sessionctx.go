// Package sessionctx carries the request session and customer identity in a context.
package sessionctx

import (
	"context"

	"github.com/shestoi/paygate/internal/session"
)

type ctxKeySession struct{}

type ctxKeyCustomerID struct{}

// WithSession stores the opened session of the request.
func WithSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, ctxKeySession{}, s)
}

// SessionFromContext returns the session set by WithSession.
func SessionFromContext(ctx context.Context) (*session.Session, bool) {
	s, ok := ctx.Value(ctxKeySession{}).(*session.Session)
	return s, ok && s != nil
}

// WithCustomerID stores the authenticated customer id.
func WithCustomerID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyCustomerID{}, id)
}

// CustomerIDFromContext returns the customer id, or "" for anonymous requests.
func CustomerIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyCustomerID{}).(string)
	return id
}
