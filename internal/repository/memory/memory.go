// Package memory keeps payments and audit entries in process memory.
// Used for local runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shestoi/paygate/internal/repository"
)

type paymentKey struct {
	customerID, gateway, transactionID string
}

// PaymentRepository implements repository.PaymentRepository.
type PaymentRepository struct {
	mu       sync.RWMutex
	payments map[string]repository.Payment
	byKey    map[paymentKey]string
	now      func() time.Time
}

func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{
		payments: make(map[string]repository.Payment),
		byKey:    make(map[paymentKey]string),
		now:      time.Now,
	}
}

func keyOf(p repository.Payment) paymentKey {
	return paymentKey{p.CustomerID, p.Gateway, p.TransactionID}
}

func (r *PaymentRepository) Save(ctx context.Context, payment repository.Payment) (repository.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byKey[keyOf(payment)]; ok {
		existing := r.payments[id]
		payment.ID = existing.ID
		payment.Date = existing.Date
	}
	return r.put(payment), nil
}

func (r *PaymentRepository) Create(ctx context.Context, payment repository.Payment) (repository.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byKey[keyOf(payment)]; ok {
		return repository.Payment{}, repository.ErrDuplicatePayment
	}
	payment.ID = ""
	return r.put(payment), nil
}

// put must be called with mu held.
func (r *PaymentRepository) put(payment repository.Payment) repository.Payment {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.Date.IsZero() {
		payment.Date = r.now().UTC()
	}
	if payment.Status == "" {
		payment.Status = repository.StatusNew
	}
	r.payments[payment.ID] = payment
	r.byKey[keyOf(payment)] = payment.ID
	return payment
}

func (r *PaymentRepository) GetByCustomerTransaction(ctx context.Context, customerID, gateway, transactionID string) (repository.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byKey[paymentKey{customerID, gateway, transactionID}]
	if !ok {
		return repository.Payment{}, repository.ErrPaymentNotFound
	}
	return r.payments[id], nil
}

func (r *PaymentRepository) ListByCustomer(ctx context.Context, customerID string) ([]repository.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]repository.Payment, 0)
	for _, p := range r.payments {
		if p.CustomerID == customerID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID > out[j].ID
		}
		return out[i].Date.After(out[j].Date)
	})
	return out, nil
}

// AuditRepository implements repository.AuditRepository.
type AuditRepository struct {
	mu      sync.RWMutex
	entries []repository.PaymentAuditEntry
	now     func() time.Time
}

func NewAuditRepository() *AuditRepository {
	return &AuditRepository{now: time.Now}
}

func (r *AuditRepository) Append(ctx context.Context, entry repository.PaymentAuditEntry) (repository.PaymentAuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Date.IsZero() {
		entry.Date = r.now().UTC()
	}
	r.entries = append(r.entries, entry)
	return entry, nil
}

// ListByTransactionID returns entries in append order.
func (r *AuditRepository) ListByTransactionID(ctx context.Context, transactionID string) ([]repository.PaymentAuditEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]repository.PaymentAuditEntry, 0)
	for _, e := range r.entries {
		if e.TransactionID == transactionID {
			out = append(out, e)
		}
	}
	return out, nil
}
