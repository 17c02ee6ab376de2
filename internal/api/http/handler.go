// Package httpapi exposes the payment request processor over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/shestoi/paygate/internal/gateway"
	"github.com/shestoi/paygate/internal/repository"
	"github.com/shestoi/paygate/internal/service"
	"github.com/shestoi/paygate/internal/sessionctx"
	"github.com/shestoi/paygate/internal/transaction"
	"github.com/shestoi/paygate/platform/observability"
)

const maxBodyBytes = 1 << 20

// Handler serves the payment routes. A gateway.Manager is built per request over the request session.
type Handler struct {
	processor *service.Processor
	providers gateway.ProviderResolver
	factory   gateway.Factory
	baseURL   string
	logger    *zap.Logger
	validate  *validator.Validate
}

// NewHandler creates a Handler. baseURL is the public scheme and host used to build absolute request URIs.
func NewHandler(processor *service.Processor, providers gateway.ProviderResolver, factory gateway.Factory, baseURL string, logger *zap.Logger) *Handler {
	return &Handler{
		processor: processor,
		providers: providers,
		factory:   factory,
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    logger,
		validate:  validator.New(),
	}
}

// PaymentRequest is the JSON body of submit and settings requests.
type PaymentRequest struct {
	Params  map[string]any `json:"params"`
	Card    map[string]any `json:"card"`
	Gateway map[string]any `json:"gateway"`
}

type routeParams struct {
	Gateway string `validate:"required,max=64,printascii,excludesall=/?#"`
	Method  string `validate:"omitempty,max=32,alpha"`
}

// ResultResponse is the rendered processor result.
type ResultResponse struct {
	Method      string                   `json:"method,omitempty"`
	Outcome     string                   `json:"outcome,omitempty"`
	Gateway     string                   `json:"gateway"`
	Settings    map[string]any           `json:"settings,omitempty"`
	Transaction *transaction.Transaction `json:"transaction,omitempty"`
	Card        map[string]any           `json:"card,omitempty"`
	Response    *GatewayResponse         `json:"response,omitempty"`
}

// GatewayResponse is the part of a gateway answer that is safe to show.
type GatewayResponse struct {
	Message              string         `json:"message,omitempty"`
	TransactionReference string         `json:"transactionReference,omitempty"`
	Data                 map[string]any `json:"data,omitempty"`
}

// PaymentResponse is one row of the customer payments listing.
type PaymentResponse struct {
	ID                   string `json:"id"`
	Date                 string `json:"date"`
	Gateway              string `json:"gateway"`
	TransactionID        string `json:"transactionId"`
	TransactionReference string `json:"transactionReference,omitempty"`
	Amount               string `json:"amount,omitempty"`
	Currency             string `json:"currency,omitempty"`
	Status               string `json:"status"`
	Description          string `json:"description,omitempty"`
}

// AuditEntryResponse is one row of a transaction audit trail.
type AuditEntryResponse struct {
	ID                   string         `json:"id"`
	Date                 string         `json:"date"`
	CustomerID           string         `json:"customerId,omitempty"`
	TransactionID        string         `json:"transactionId"`
	TransactionReference string         `json:"transactionReference,omitempty"`
	Description          string         `json:"description"`
	Data                 map[string]any `json:"data,omitempty"`
}

// GetSettings handles GET /{gateway}/settings.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	req, ok := h.request(w, r, "")
	if !ok {
		return
	}
	result, err := h.processor.Settings(r.Context(), req)
	h.respond(w, r, req, result, err)
}

// PostSettings handles POST /{gateway}/settings.
func (h *Handler) PostSettings(w http.ResponseWriter, r *http.Request) {
	req, ok := h.request(w, r, "")
	if !ok {
		return
	}
	body, ok := h.decode(w, r)
	if !ok {
		return
	}
	req.Settings = gateway.Params(body.Gateway)
	result, err := h.processor.SaveSettings(r.Context(), req)
	h.respond(w, r, req, result, err)
}

// Prepare handles GET /{gateway}/{method}.
func (h *Handler) Prepare(w http.ResponseWriter, r *http.Request) {
	method := chi.URLParam(r, "method")
	req, ok := h.request(w, r, method)
	if !ok {
		return
	}
	result, err := h.processor.Prepare(r.Context(), gateway.Operation(method), req)
	h.respond(w, r, req, result, err)
}

// CreateTransaction handles POST /{gateway}/{method}/transaction. The page that seeds the
// transaction, taken from the Referer header, is where the customer ends up afterwards.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	method := chi.URLParam(r, "method")
	req, ok := h.request(w, r, method)
	if !ok {
		return
	}
	body, ok := h.decode(w, r)
	if !ok {
		return
	}
	req.Params = body.Params
	req.URI = r.Referer()
	result, err := h.processor.CreateTransaction(r.Context(), gateway.Operation(method), req)
	h.respond(w, r, req, result, err)
}

// Submit handles POST /{gateway}/{method}.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	method := chi.URLParam(r, "method")
	req, ok := h.request(w, r, method)
	if !ok {
		return
	}
	body, ok := h.decode(w, r)
	if !ok {
		return
	}
	req.Params = body.Params
	if body.Card != nil {
		card := transaction.CardFromMap(body.Card)
		req.Card = &card
	}

	redirector := &responseRedirector{w: w, r: r}
	req.Redirector = redirector
	result, err := h.processor.Submit(r.Context(), gateway.Operation(method), req)
	if err == nil && redirector.done {
		return
	}
	h.respond(w, r, req, result, err)
}

// Complete returns a handler for the off-site return of method, on GET and POST alike.
func (h *Handler) Complete(method gateway.Operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := h.request(w, r, string(method))
		if !ok {
			return
		}
		if err := r.ParseForm(); err != nil {
			h.fail(w, r, req, transaction.ErrInvalid)
			return
		}
		req.Params = callbackParams(r)

		redirector := &responseRedirector{w: w, r: r}
		req.Redirector = redirector
		result, err := h.processor.Complete(r.Context(), method, req)
		if err == nil && redirector.done {
			return
		}
		h.respond(w, r, req, result, err)
	}
}

// Payments handles GET /customer/payments.
func (h *Handler) Payments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.processor.Payments(r.Context(), sessionctx.CustomerIDFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, service.Request{}, err)
		return
	}
	out := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, paymentResponse(p))
	}
	h.writeJSON(w, r, http.StatusOK, out)
}

// AuditTrail handles GET /transactions/{id}/audit. Only the entries of the session customer are listed.
func (h *Handler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.validate.Var(id, "required,max=64"); err != nil {
		http.Error(w, "transaction id is required", http.StatusBadRequest)
		return
	}
	entries, err := h.processor.AuditTrail(r.Context(), sessionctx.CustomerIDFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, r, service.Request{}, err)
		return
	}
	out := make([]AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditEntryResponse(e))
	}
	h.writeJSON(w, r, http.StatusOK, out)
}

// request builds the processor request from the route, the headers and the session in the context.
func (h *Handler) request(w http.ResponseWriter, r *http.Request, method string) (service.Request, bool) {
	params := routeParams{Gateway: chi.URLParam(r, "gateway"), Method: method}
	if err := h.validate.Struct(params); err != nil {
		http.Error(w, "invalid route", http.StatusNotFound)
		return service.Request{}, false
	}

	sess, ok := sessionctx.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, "session_id is required", http.StatusUnauthorized)
		return service.Request{}, false
	}

	return service.Request{
		Gateway:    params.Gateway,
		Gateways:   gateway.NewManager(h.providers, h.factory, sess, h.logger),
		Session:    sess,
		URI:        h.baseURL + r.URL.RequestURI(),
		ClientIP:   clientIP(r),
		CustomerID: sessionctx.CustomerIDFromContext(r.Context()),
	}, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (PaymentRequest, bool) {
	var body PaymentRequest
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&body)
	if err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return PaymentRequest{}, false
	}
	return body, true
}

// respond flushes the session and renders result, or the error when err is set.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, req service.Request, result *service.Result, err error) {
	if err != nil {
		h.fail(w, r, req, err)
		return
	}
	if !h.flush(w, r, req) {
		return
	}
	h.writeJSON(w, r, http.StatusOK, resultResponse(result))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, req service.Request, err error) {
	status, message := statusFor(err)
	logger := observability.L(r.Context(), h.logger).With(zap.String("gateway", req.Gateway), zap.Int("status", status))
	if status >= http.StatusInternalServerError {
		logger.Error("payment request failed", zap.Error(err))
	} else {
		logger.Info("payment request rejected", zap.Error(err))
	}
	// Session changes made before the failure still count.
	if !h.flush(w, r, req) {
		return
	}
	h.writeJSON(w, r, status, map[string]string{"error": message})
}

func (h *Handler) flush(w http.ResponseWriter, r *http.Request, req service.Request) bool {
	if req.Session == nil {
		return true
	}
	if err := req.Session.Save(r.Context()); err != nil {
		observability.L(r.Context(), h.logger).Error("failed to save session", zap.Error(err))
		http.Error(w, "session unavailable", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		observability.L(r.Context(), h.logger).Warn("failed to encode response", zap.Error(err))
	}
}

func resultResponse(result *service.Result) ResultResponse {
	out := ResultResponse{
		Method:   string(result.Method),
		Outcome:  string(result.Outcome),
		Gateway:  result.Gateway,
		Settings: result.Settings,
		Card:     result.Card,
	}
	if result.Method != "" {
		tx := result.Transaction
		if tx.Card != nil {
			card := tx.Card.WithoutCVV()
			tx.Card = &card
		}
		out.Transaction = &tx
	}
	if result.Response != nil {
		out.Response = &GatewayResponse{
			Message:              result.Response.Message(),
			TransactionReference: result.Response.TransactionReference(),
			Data:                 result.Response.Data(),
		}
	}
	return out
}

func paymentResponse(p repository.Payment) PaymentResponse {
	return PaymentResponse{
		ID:                   p.ID,
		Date:                 p.Date.UTC().Format(timeLayout),
		Gateway:              p.Gateway,
		TransactionID:        p.TransactionID,
		TransactionReference: p.TransactionReference,
		Amount:               p.Amount,
		Currency:             p.Currency,
		Status:               p.Status,
		Description:          p.Description,
	}
}

func auditEntryResponse(e repository.PaymentAuditEntry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:                   e.ID,
		Date:                 e.Date.UTC().Format(timeLayout),
		CustomerID:           e.CustomerID,
		TransactionID:        e.TransactionID,
		TransactionReference: e.TransactionReference,
		Description:          e.Description,
		Data:                 e.Data,
	}
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// callbackParams flattens the query string and form body of a gateway callback.
func callbackParams(r *http.Request) map[string]any {
	if len(r.Form) == 0 {
		return nil
	}
	out := make(map[string]any, len(r.Form))
	for k, v := range r.Form {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
