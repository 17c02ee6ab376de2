// Package middleware holds the HTTP middleware of the payments routes.
package middleware

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/shestoi/paygate/internal/session"
	"github.com/shestoi/paygate/internal/sessionctx"
	"github.com/shestoi/paygate/platform/observability"
)

const (
	SessionHeader  = "x-session-id"
	CustomerHeader = "x-customer-id"
)

var validate = validator.New()

// WithSession opens the session named by x-session-id and stores it in the context with the
// x-customer-id identity. A missing or malformed id is rejected with 401. Changes left pending by
// the handler are saved after it returns.
func WithSession(store session.Store, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sid := r.Header.Get(SessionHeader)
			if err := validate.Var(sid, "required,max=128,printascii"); err != nil {
				http.Error(w, "session_id is required", http.StatusUnauthorized)
				return
			}

			sess, err := session.Open(ctx, store, sid)
			if err != nil {
				observability.L(ctx, logger).Error("failed to open session", zap.Error(err))
				http.Error(w, "session unavailable", http.StatusServiceUnavailable)
				return
			}

			ctx = sessionctx.WithSession(ctx, sess)
			if customer := r.Header.Get(CustomerHeader); customer != "" {
				ctx = sessionctx.WithCustomerID(ctx, customer)
			}

			next.ServeHTTP(w, r.WithContext(ctx))

			if err := sess.Save(ctx); err != nil {
				observability.L(ctx, logger).Error("failed to save session", zap.Error(err))
			}
		})
	}
}
