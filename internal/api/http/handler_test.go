package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shestoi/paygate/internal/gateway"
	"github.com/shestoi/paygate/internal/gateway/dummy"
	"github.com/shestoi/paygate/internal/metrics"
	"github.com/shestoi/paygate/internal/records"
	"github.com/shestoi/paygate/internal/repository"
	"github.com/shestoi/paygate/internal/repository/memory"
	"github.com/shestoi/paygate/internal/service"
	sessionmemory "github.com/shestoi/paygate/internal/session/memory"
	"github.com/shestoi/paygate/internal/transaction"
)

const baseURL = "https://shop.example"

type testServer struct {
	router   http.Handler
	payments *memory.PaymentRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	registry := gateway.NewRegistry()
	dummy.Register(registry)
	providers := gateway.DefaultProviders()
	payments := memory.NewPaymentRepository()
	recs := records.New(payments, memory.NewAuditRepository(), zap.NewNop())

	ids := 0
	txs := transaction.NewManager(func() string {
		ids++
		return fmt.Sprintf("tx-%d", ids)
	})
	m := metrics.New(prometheus.NewRegistry())
	processor := service.NewProcessor(providers, txs, recs, nil, m, zap.NewNop(), baseURL+"/payments")
	handler := NewHandler(processor, providers, registry, baseURL, zap.NewNop())

	router := NewRouter(handler, RouterConfig{
		Mountpoint: "/payments",
		Sessions:   sessionmemory.NewStore(),
		Metrics:    m,
		Logger:     zap.NewNop(),
	})
	return &testServer{router: router, payments: payments}
}

func (s *testServer) do(t *testing.T, method, target, customer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("x-session-id", "sess-1")
	if customer != "" {
		req.Header.Set("x-customer-id", customer)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func card(number string) map[string]any {
	return map[string]any{
		"firstName":   "Ada",
		"number":      number,
		"expiryMonth": 12,
		"expiryYear":  2099,
		"cvv":         "123",
	}
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) ResultResponse {
	t.Helper()
	var out ResultResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestRouter_SessionRequired(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/payments/dummy/purchase", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouter_PrepareAndSubmitPurchase(t *testing.T) {
	// Arrange
	s := newTestServer(t)

	// Act
	prepared := s.do(t, http.MethodGet, "/payments/dummy/purchase", "c1", nil)
	submitted := s.do(t, http.MethodPost, "/payments/dummy/purchase", "c1", PaymentRequest{
		Params: map[string]any{"amount": "10.00", "currency": "EUR"},
		Card:   card("4242424242424242"),
	})

	// Assert
	require.Equal(t, http.StatusOK, prepared.Code)
	p := decodeResult(t, prepared)
	require.NotNil(t, p.Transaction)
	assert.Equal(t, "tx-1", p.Transaction.TransactionID)
	assert.Equal(t, baseURL+"/payments/dummy/completePurchase", p.Transaction.ReturnURL)
	assert.Equal(t, baseURL+"/payments/dummy/purchase", p.Transaction.CancelURL)

	require.Equal(t, http.StatusOK, submitted.Code, submitted.Body.String())
	r := decodeResult(t, submitted)
	assert.Equal(t, "success", r.Outcome)
	assert.Equal(t, "Dummy", r.Gateway)
	require.NotNil(t, r.Transaction)
	assert.Equal(t, "tx-1", r.Transaction.TransactionID)
	require.NotNil(t, r.Transaction.Card)
	assert.Empty(t, r.Transaction.Card.CVV)
	assert.NotContains(t, r.Card, "cvv")
	require.NotNil(t, r.Response)
	assert.Equal(t, "Success", r.Response.Message)

	listed := s.do(t, http.MethodGet, "/payments/customer/payments", "c1", nil)
	require.Equal(t, http.StatusOK, listed.Code)
	var payments []PaymentResponse
	require.NoError(t, json.NewDecoder(listed.Body).Decode(&payments))
	require.Len(t, payments, 1)
	assert.Equal(t, "tx-1", payments[0].TransactionID)
	assert.Equal(t, repository.StatusNew, payments[0].Status)

	audit := s.do(t, http.MethodGet, "/payments/transactions/tx-1/audit", "c1", nil)
	require.Equal(t, http.StatusOK, audit.Code)
	var entries []AuditEntryResponse
	require.NoError(t, json.NewDecoder(audit.Body).Decode(&entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "set purchase: success", entries[0].Description)

	// The settled purchase is retired, so the next one gets its own id.
	again := s.do(t, http.MethodGet, "/payments/dummy/purchase", "c1", nil)
	require.Equal(t, http.StatusOK, again.Code)
	next := decodeResult(t, again)
	require.NotNil(t, next.Transaction)
	assert.Equal(t, "tx-2", next.Transaction.TransactionID)
	assert.Nil(t, next.Transaction.Card)
}

func TestRouter_AuditTrailOwnership(t *testing.T) {
	s := newTestServer(t)
	submitted := s.do(t, http.MethodPost, "/payments/dummy/purchase", "c1", PaymentRequest{
		Params: map[string]any{"amount": "10.00", "currency": "EUR"},
		Card:   card("4242424242424242"),
	})
	require.Equal(t, http.StatusOK, submitted.Code, submitted.Body.String())

	tests := []struct {
		name       string
		customer   string
		wantStatus int
	}{
		{name: "owner", customer: "c1", wantStatus: http.StatusOK},
		{name: "no customer", customer: "", wantStatus: http.StatusUnauthorized},
		{name: "other customer", customer: "c2", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, "/payments/transactions/tx-1/audit", tt.customer, nil)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus != http.StatusOK {
				assert.NotContains(t, rec.Body.String(), "set purchase")
			}
		})
	}
}

func TestRouter_CreateTransaction(t *testing.T) {
	// Arrange
	s := newTestServer(t)
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(PaymentRequest{
		Params: map[string]any{"amount": 19.9, "currency": "EUR", "description": "order 42"},
	}))
	req := httptest.NewRequest(http.MethodPost, "/payments/dummy/purchase/transaction", &buf)
	req.Header.Set("x-session-id", "sess-1")
	req.Header.Set("x-customer-id", "c1")
	req.Header.Set("Referer", baseURL+"/checkout")
	rec := httptest.NewRecorder()

	// Act
	s.router.ServeHTTP(rec, req)

	// Assert
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decodeResult(t, rec)
	require.NotNil(t, created.Transaction)
	assert.Equal(t, "tx-1", created.Transaction.TransactionID)
	assert.Equal(t, "19.90", created.Transaction.Amount)
	assert.Equal(t, baseURL+"/checkout", created.Transaction.FinalURL)

	prepared := s.do(t, http.MethodGet, "/payments/dummy/purchase", "c1", nil)
	require.Equal(t, http.StatusOK, prepared.Code)
	p := decodeResult(t, prepared)
	require.NotNil(t, p.Transaction)
	assert.Equal(t, "tx-1", p.Transaction.TransactionID)
	assert.Equal(t, "order 42", p.Transaction.Description)
	assert.Equal(t, baseURL+"/checkout", p.Transaction.FinalURL)

	invalid := s.do(t, http.MethodPost, "/payments/dummy/purchase/transaction", "c1", PaymentRequest{
		Params: map[string]any{"amount": "10.999"},
	})
	assert.Equal(t, http.StatusBadRequest, invalid.Code)
}

func TestRouter_SubmitErrors(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		customer   string
		body       PaymentRequest
		wantStatus int
		wantError  string
	}{
		{
			name:       "declined",
			target:     "/payments/dummy/purchase",
			customer:   "c1",
			body:       PaymentRequest{Params: map[string]any{"amount": "10.00"}, Card: card("4111111111111111")},
			wantStatus: http.StatusPaymentRequired,
			wantError:  "Failure",
		},
		{
			name:       "customer required",
			target:     "/payments/dummy/purchase",
			body:       PaymentRequest{Params: map[string]any{"amount": "10.00"}, Card: card("4242424242424242")},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unknown gateway",
			target:     "/payments/nosuch/purchase",
			customer:   "c1",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "unknown method",
			target:     "/payments/dummy/refund",
			customer:   "c1",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "sub-cent amount",
			target:     "/payments/dummy/purchase",
			customer:   "c1",
			body:       PaymentRequest{Params: map[string]any{"amount": 10.999}, Card: card("4242424242424242")},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid card",
			target:     "/payments/dummy/purchase",
			customer:   "c1",
			body:       PaymentRequest{Params: map[string]any{"amount": "10.00"}, Card: card("42")},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "gateway error",
			target:     "/payments/dummy/capture",
			customer:   "c1",
			wantStatus: http.StatusBadGateway,
			wantError:  service.CommunicationFailureMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)

			rec := s.do(t, http.MethodPost, tt.target, tt.customer, tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantError != "" {
				var body map[string]string
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				assert.Equal(t, tt.wantError, body["error"])
			}
		})
	}
}

func TestRouter_OffsitePurchase(t *testing.T) {
	// Arrange
	s := newTestServer(t)
	settings := s.do(t, http.MethodPost, "/payments/dummy/settings", "", PaymentRequest{
		Gateway: map[string]any{"offsite": true},
	})
	require.Equal(t, http.StatusOK, settings.Code, settings.Body.String())
	assert.Equal(t, true, decodeResult(t, settings).Settings["offsite"])

	// Act
	submitted := s.do(t, http.MethodPost, "/payments/dummy/purchase", "c1", PaymentRequest{
		Params: map[string]any{"amount": "25.00", "currency": "EUR"},
		Card:   card("4242424242424242"),
	})

	// Assert
	require.Equal(t, http.StatusFound, submitted.Code, submitted.Body.String())
	location, err := url.Parse(submitted.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/payments/dummy/completePurchase", location.Path)
	ref := location.Query().Get("transactionReference")
	require.NotEmpty(t, ref)

	completed := s.do(t, http.MethodGet, location.RequestURI(), "c1", nil)
	require.Equal(t, http.StatusOK, completed.Code, completed.Body.String())
	r := decodeResult(t, completed)
	assert.Equal(t, "success", r.Outcome)
	assert.Equal(t, string(gateway.OpPurchase), r.Method)

	payment, err := s.payments.GetByCustomerTransaction(t.Context(), "c1", "Dummy", "tx-1")
	require.NoError(t, err)
	assert.Equal(t, repository.StatusPaid, payment.Status)
	assert.Equal(t, ref, payment.TransactionReference)
}

func TestRouter_GetSettings(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/payments/dummy/settings", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	r := decodeResult(t, rec)
	assert.Equal(t, "Dummy", r.Gateway)
	assert.Equal(t, true, r.Settings["testMode"])
	assert.Nil(t, r.Transaction)
}

func TestRouter_Metrics(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodGet, "/payments/dummy/settings", "", nil)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "paygate_http_requests_total")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"unknown provider", &gateway.UnknownProviderError{Key: "x"}, http.StatusNotFound, "invalid provider: x"},
		{"unknown method", fmt.Errorf("%w: refund", service.ErrUnknownMethod), http.StatusNotFound, ""},
		{"unsupported", &service.UnsupportedOperationError{Gateway: "dummy", Operation: gateway.OpCapture}, http.StatusMethodNotAllowed, ""},
		{"invalid", fmt.Errorf("%w: amount", transaction.ErrInvalid), http.StatusBadRequest, ""},
		{"customer", service.ErrCustomerRequired, http.StatusUnauthorized, ""},
		{"communication", &service.GatewayCommunicationError{Err: errors.New("dial tcp: refused")}, http.StatusBadGateway, service.CommunicationFailureMessage},
		{"declined", &service.ProcessorError{Message: "Card declined"}, http.StatusPaymentRequired, "Card declined"},
		{"missing payment", &service.MissingPaymentError{CustomerID: "c1"}, http.StatusConflict, ""},
		{"duplicate payment", &service.DuplicatePaymentError{CustomerID: "c1", Status: repository.StatusPaid}, http.StatusConflict, ""},
		{"audit trail not found", service.ErrAuditTrailNotFound, http.StatusNotFound, ""},
		{"other", errors.New("boom"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := statusFor(tt.err)

			assert.Equal(t, tt.wantStatus, status)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, msg)
			}
		})
	}
}

func TestResponseRedirector_PostForm(t *testing.T) {
	rec := httptest.NewRecorder()
	rr := &responseRedirector{w: rec, r: httptest.NewRequest(http.MethodPost, "/", nil)}

	err := rr.Redirect(t.Context(), gateway.StaticResponse{
		Redirect:       true,
		URL:            "https://acs.example/3ds",
		Method:         "POST",
		RedirectFields: map[string]string{"PaReq": "abc<def"},
	})

	require.NoError(t, err)
	assert.True(t, rr.done)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `action="https://acs.example/3ds"`)
	assert.Contains(t, body, `name="PaReq"`)
	assert.True(t, strings.Contains(body, "abc&lt;def"))
}
