package service

import (
	"context"
	"time"

	"github.com/shestoi/paygate/internal/gateway"
	"github.com/shestoi/paygate/internal/repository"
)

// Gateways is the per-request gateway manager bound to the caller's session.
type Gateways interface {
	InitializeSessionGateway(ctx context.Context, name string) (gateway.Gateway, error)
	InitializeRequestGateway(ctx context.Context, name string, settings gateway.Params) (gateway.Gateway, error)
	GetSessionValue(name, typ string, dst any) (bool, error)
	SetSessionValue(name, typ string, value any) error
	RemoveSessionValue(name, typ string)
	SetSessionSettings(name string, settings gateway.Params) error
}

// SessionFlusher writes pending session changes to the store.
type SessionFlusher interface {
	Save(ctx context.Context) error
}

// Redirector sends the customer to the gateway. It is called at most once per request,
// after the session has been flushed.
type Redirector interface {
	Redirect(ctx context.Context, resp gateway.Response) error
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=PaymentRecords --dir=. --output=./mocks --outpkg=mocks

// PaymentRecords persists payments and their audit trail.
type PaymentRecords interface {
	Payment(ctx context.Context, customerID, gateway, transactionID string) (repository.Payment, error)
	CreatePayment(ctx context.Context, payment repository.Payment) (repository.Payment, error)
	SavePayment(ctx context.Context, payment repository.Payment) (repository.Payment, error)
	Payments(ctx context.Context, customerID string) ([]repository.Payment, error)
	CreateAuditEntry(ctx context.Context, customerID, transactionID, transactionReference, description string, data map[string]any) (repository.PaymentAuditEntry, error)
	AuditTrail(ctx context.Context, transactionID string) ([]repository.PaymentAuditEntry, error)
}

// Metrics records processor outcomes and gateway latency.
type Metrics interface {
	ObserveOutcome(method, outcome string)
	ObserveGatewayCall(method string, d time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) ObserveOutcome(string, string)            {}
func (noopMetrics) ObserveGatewayCall(string, time.Duration) {}
