package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInit_Disabled(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{Enabled: false, ServiceName: "paygate"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestHTTPMiddleware_StoresLogger(t *testing.T) {
	logger := zap.NewNop()
	var got *zap.Logger
	h := HTTPMiddleware("paygate", logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = LoggerFromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/payments/dummy/purchase", nil))

	require.Equal(t, http.StatusTeapot, rec.Code)
	require.NotNil(t, got)
}

func TestL_WithoutSpan(t *testing.T) {
	base := zap.NewNop()
	require.Nil(t, TraceFields(context.Background()))
	require.Same(t, base, L(context.Background(), base))
}

func TestSplitFullMethod(t *testing.T) {
	svc, m := splitFullMethod("/grpc.health.v1.Health/Check")
	require.Equal(t, "grpc.health.v1.Health", svc)
	require.Equal(t, "Check", m)

	svc, m = splitFullMethod("bare")
	require.Equal(t, "bare", svc)
	require.Equal(t, "bare", m)
}
