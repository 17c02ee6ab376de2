package service

import (
	"errors"
	"fmt"

	"github.com/shestoi/paygate/internal/gateway"
	"github.com/shestoi/paygate/internal/repository"
)

// CommunicationFailureMessage is the only text a caller sees when a gateway call fails.
const CommunicationFailureMessage = "Sorry, there was an error. Please try again later."

var (
	// ErrCustomerRequired is returned when purchase flows run without a customer identity.
	ErrCustomerRequired = errors.New("customer identity required")
	// ErrUnknownMethod is returned for a method outside the supported operations.
	ErrUnknownMethod = errors.New("unknown payment method")
	// ErrAuditTrailNotFound is returned when the caller owns no audit entries of a transaction.
	ErrAuditTrailNotFound = errors.New("audit trail not found")
)

// UnsupportedOperationError reports a gateway lacking a capability.
type UnsupportedOperationError struct {
	Gateway   string
	Operation gateway.Operation
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("gateway %s does not support %q", e.Gateway, e.Operation)
}

// GatewayCommunicationError wraps a failed gateway call. Error returns the user-safe message only.
type GatewayCommunicationError struct {
	Code string
	Err  error
}

func (e *GatewayCommunicationError) Error() string { return CommunicationFailureMessage }

func (e *GatewayCommunicationError) Unwrap() error { return e.Err }

// coder is implemented by adapter errors that carry a provider error code.
type coder interface {
	Code() string
}

func newCommunicationError(err error) *GatewayCommunicationError {
	ce := &GatewayCommunicationError{Err: err}
	var c coder
	if errors.As(err, &c) {
		ce.Code = c.Code()
	}
	return ce
}

// ProcessorError is a gateway response reporting failure. Message is the gateway's own text.
type ProcessorError struct {
	Message string
}

func (e *ProcessorError) Error() string { return e.Message }

// MissingPaymentError is returned when a completion callback has no payment row to update.
type MissingPaymentError struct {
	CustomerID    string
	Gateway       string
	TransactionID string
}

func (e *MissingPaymentError) Error() string {
	return fmt.Sprintf("no payment for customer %s on gateway %s with transaction %s",
		e.CustomerID, e.Gateway, e.TransactionID)
}

// DuplicatePaymentError is returned when a purchase reuses the transaction id of a settled payment.
type DuplicatePaymentError struct {
	CustomerID    string
	Gateway       string
	TransactionID string
	Status        string
}

func (e *DuplicatePaymentError) Error() string {
	return fmt.Sprintf("payment for customer %s on gateway %s with transaction %s is already %s",
		e.CustomerID, e.Gateway, e.TransactionID, e.Status)
}

func duplicatePayment(p repository.Payment) *DuplicatePaymentError {
	return &DuplicatePaymentError{
		CustomerID:    p.CustomerID,
		Gateway:       p.Gateway,
		TransactionID: p.TransactionID,
		Status:        p.Status,
	}
}
