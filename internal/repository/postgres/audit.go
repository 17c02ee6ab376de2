package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shestoi/paygate/internal/repository"
)

// AuditRepository implements repository.AuditRepository on payment_audit_entries. It only inserts.
type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) Append(ctx context.Context, e repository.PaymentAuditEntry) (repository.PaymentAuditEntry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Data == nil {
		e.Data = map[string]any{}
	}

	err := r.pool.QueryRow(ctx,
		`INSERT INTO payment_audit_entries (id, customer_id, transaction_id, transaction_reference, description, data)
		 VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6)
		 RETURNING date`,
		e.ID, e.CustomerID, e.TransactionID, e.TransactionReference, e.Description, e.Data).Scan(&e.Date)
	if err != nil {
		return repository.PaymentAuditEntry{}, fmt.Errorf("failed to append audit entry: %w", err)
	}
	return e, nil
}

func (r *AuditRepository) ListByTransactionID(ctx context.Context, transactionID string) ([]repository.PaymentAuditEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id::text, date, COALESCE(customer_id, ''), transaction_id, transaction_reference, description, data
		 FROM payment_audit_entries
		 WHERE transaction_id = $1
		 ORDER BY date, id`,
		transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]repository.PaymentAuditEntry, 0)
	for rows.Next() {
		var e repository.PaymentAuditEntry
		if err := rows.Scan(&e.ID, &e.Date, &e.CustomerID, &e.TransactionID, &e.TransactionReference, &e.Description, &e.Data); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, nil
}
