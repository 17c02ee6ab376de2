// Package postgres stores payments and audit entries in PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shestoi/paygate/internal/repository"
)

const uniqueViolation = "23505"

const paymentColumns = `id::text, date, customer_id, gateway, transaction_id, transaction_reference,
	COALESCE(amount::text, ''), currency, status, description`

// PaymentRepository implements repository.PaymentRepository on the payments table.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// Save upserts on the (customer_id, gateway, transaction_id) key. The id and date of an existing row are kept.
func (r *PaymentRepository) Save(ctx context.Context, p repository.Payment) (repository.Payment, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = repository.StatusNew
	}

	row := r.pool.QueryRow(ctx,
		`INSERT INTO payments (id, customer_id, gateway, transaction_id, transaction_reference, amount, currency, status, description)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, '')::numeric, $7, $8, $9)
		 ON CONFLICT (customer_id, gateway, transaction_id) DO UPDATE SET
		   transaction_reference = EXCLUDED.transaction_reference,
		   amount = EXCLUDED.amount,
		   currency = EXCLUDED.currency,
		   status = EXCLUDED.status,
		   description = EXCLUDED.description
		 RETURNING `+paymentColumns,
		p.ID, p.CustomerID, p.Gateway, p.TransactionID, p.TransactionReference, p.Amount, p.Currency, p.Status, p.Description)

	saved, err := scanPayment(row)
	if err != nil {
		return repository.Payment{}, fmt.Errorf("failed to save payment: %w", err)
	}
	return saved, nil
}

func (r *PaymentRepository) Create(ctx context.Context, p repository.Payment) (repository.Payment, error) {
	if p.Status == "" {
		p.Status = repository.StatusNew
	}

	row := r.pool.QueryRow(ctx,
		`INSERT INTO payments (id, customer_id, gateway, transaction_id, transaction_reference, amount, currency, status, description)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, '')::numeric, $7, $8, $9)
		 RETURNING `+paymentColumns,
		uuid.NewString(), p.CustomerID, p.Gateway, p.TransactionID, p.TransactionReference, p.Amount, p.Currency, p.Status, p.Description)

	created, err := scanPayment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return repository.Payment{}, repository.ErrDuplicatePayment
		}
		return repository.Payment{}, fmt.Errorf("failed to create payment: %w", err)
	}
	return created, nil
}

func (r *PaymentRepository) GetByCustomerTransaction(ctx context.Context, customerID, gateway, transactionID string) (repository.Payment, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+`
		 FROM payments
		 WHERE customer_id = $1 AND gateway = $2 AND transaction_id = $3`,
		customerID, gateway, transactionID)
	return r.get(row)
}

func (r *PaymentRepository) get(row pgx.Row) (repository.Payment, error) {
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.Payment{}, repository.ErrPaymentNotFound
		}
		return repository.Payment{}, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

func (r *PaymentRepository) ListByCustomer(ctx context.Context, customerID string) ([]repository.Payment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+paymentColumns+`
		 FROM payments
		 WHERE customer_id = $1
		 ORDER BY date DESC, id DESC`,
		customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	payments := make([]repository.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

func scanPayment(row pgx.Row) (repository.Payment, error) {
	var p repository.Payment
	err := row.Scan(&p.ID, &p.Date, &p.CustomerID, &p.Gateway, &p.TransactionID, &p.TransactionReference,
		&p.Amount, &p.Currency, &p.Status, &p.Description)
	return p, err
}
