// Package records is the processor's view of payment persistence.
package records

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/shestoi/paygate/internal/repository"
)

// Records manages payments and appends audit entries.
type Records struct {
	payments repository.PaymentRepository
	audit    repository.AuditRepository
	logger   *zap.Logger
}

func New(payments repository.PaymentRepository, audit repository.AuditRepository, logger *zap.Logger) *Records {
	return &Records{payments: payments, audit: audit, logger: logger}
}

// Payments lists the payments of a customer, newest first.
func (r *Records) Payments(ctx context.Context, customerID string) ([]repository.Payment, error) {
	payments, err := r.payments.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list customer payments: %w", err)
	}
	return payments, nil
}

// Payment returns the payment for (customerID, gateway, transactionID).
// The error wraps repository.ErrPaymentNotFound on a miss.
func (r *Records) Payment(ctx context.Context, customerID, gateway, transactionID string) (repository.Payment, error) {
	return r.payments.GetByCustomerTransaction(ctx, customerID, gateway, transactionID)
}

// CreatePayment inserts a payment. The error wraps repository.ErrDuplicatePayment when the key is taken.
func (r *Records) CreatePayment(ctx context.Context, payment repository.Payment) (repository.Payment, error) {
	created, err := r.payments.Create(ctx, payment)
	if err != nil {
		return repository.Payment{}, err
	}
	r.logger.Debug("payment created",
		zap.String("payment_id", created.ID),
		zap.String("transaction_id", created.TransactionID),
	)
	return created, nil
}

func (r *Records) SavePayment(ctx context.Context, payment repository.Payment) (repository.Payment, error) {
	saved, err := r.payments.Save(ctx, payment)
	if err != nil {
		return repository.Payment{}, err
	}
	r.logger.Debug("payment saved",
		zap.String("payment_id", saved.ID),
		zap.String("transaction_id", saved.TransactionID),
		zap.String("status", saved.Status),
	)
	return saved, nil
}

// CreateAuditEntry appends one entry describing a gateway interaction.
func (r *Records) CreateAuditEntry(ctx context.Context, customerID, transactionID, transactionReference, description string, data map[string]any) (repository.PaymentAuditEntry, error) {
	entry, err := r.audit.Append(ctx, repository.PaymentAuditEntry{
		CustomerID:           customerID,
		TransactionID:        transactionID,
		TransactionReference: transactionReference,
		Description:          description,
		Data:                 data,
	})
	if err != nil {
		return repository.PaymentAuditEntry{}, err
	}
	r.logger.Debug("audit entry appended",
		zap.String("transaction_id", transactionID),
		zap.String("description", description),
	)
	return entry, nil
}

// AuditTrail lists the audit entries of a transaction, oldest first.
func (r *Records) AuditTrail(ctx context.Context, transactionID string) ([]repository.PaymentAuditEntry, error) {
	entries, err := r.audit.ListByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit trail: %w", err)
	}
	return entries, nil
}
