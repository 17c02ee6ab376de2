// Package repository defines the durable payment records and their storage contracts.
package repository

import (
	"context"
	"errors"
	"time"
)

// Payment status values.
const (
	StatusNew       = "new"
	StatusPaid      = "paid"
	StatusCancelled = "cancelled"
)

// Payment is one purchase of a customer through a gateway.
// (CustomerID, Gateway, TransactionID) is unique.
type Payment struct {
	ID                   string
	Date                 time.Time
	CustomerID           string
	Gateway              string
	TransactionID        string
	TransactionReference string
	Amount               string
	Currency             string
	Status               string
	Description          string
}

// PaymentAuditEntry records one gateway interaction. Entries are never changed once written.
type PaymentAuditEntry struct {
	ID                   string
	Date                 time.Time
	CustomerID           string
	TransactionID        string
	TransactionReference string
	Description          string
	Data                 map[string]any
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=PaymentRepository --dir=. --output=./mocks --outpkg=mocks

// PaymentRepository stores payments.
type PaymentRepository interface {
	// Save inserts or updates the payment identified by (CustomerID, Gateway, TransactionID).
	Save(ctx context.Context, payment Payment) (Payment, error)

	// Create inserts a new payment. Returns ErrDuplicatePayment if the key is taken.
	Create(ctx context.Context, payment Payment) (Payment, error)

	// GetByCustomerTransaction returns ErrPaymentNotFound if there is no match.
	GetByCustomerTransaction(ctx context.Context, customerID, gateway, transactionID string) (Payment, error)

	// ListByCustomer returns the customer's payments, newest first.
	ListByCustomer(ctx context.Context, customerID string) ([]Payment, error)
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=AuditRepository --dir=. --output=./mocks --outpkg=mocks

// AuditRepository is the append-only payment history.
type AuditRepository interface {
	Append(ctx context.Context, entry PaymentAuditEntry) (PaymentAuditEntry, error)

	// ListByTransactionID returns the entries of a transaction, oldest first.
	ListByTransactionID(ctx context.Context, transactionID string) ([]PaymentAuditEntry, error)
}

var (
	// ErrPaymentNotFound is returned when no payment matches a lookup.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrDuplicatePayment is returned by Create when the payment key already exists.
	ErrDuplicatePayment = errors.New("payment already exists")
)
