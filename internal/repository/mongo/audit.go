// Package mongo keeps the payment audit trail in MongoDB.
package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/shestoi/paygate/internal/repository"
)

const collectionName = "payment_audit_entries"

// AuditDocument is the stored form of a PaymentAuditEntry.
type AuditDocument struct {
	ID                   string         `bson:"_id"`
	Date                 time.Time      `bson:"date"`
	CustomerID           string         `bson:"customer_id,omitempty"`
	TransactionID        string         `bson:"transaction_id"`
	TransactionReference string         `bson:"transaction_reference"`
	Description          string         `bson:"description"`
	Data                 map[string]any `bson:"data"`
}

// AuditRepository implements repository.AuditRepository. Documents are only ever inserted.
type AuditRepository struct {
	col *mongo.Collection
	now func() time.Time
}

// NewAuditRepository creates the transaction_id index if it is missing.
func NewAuditRepository(ctx context.Context, client *mongo.Client, dbName string) (*AuditRepository, error) {
	col := client.Database(dbName).Collection(collectionName)

	index := mongo.IndexModel{
		Keys: bson.D{{Key: "transaction_id", Value: 1}, {Key: "date", Value: 1}},
	}
	if _, err := col.Indexes().CreateOne(ctx, index); err != nil {
		return nil, fmt.Errorf("failed to create audit index: %w", err)
	}

	return &AuditRepository{col: col, now: time.Now}, nil
}

func (r *AuditRepository) Append(ctx context.Context, e repository.PaymentAuditEntry) (repository.PaymentAuditEntry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Date.IsZero() {
		// Mongo stores milliseconds.
		e.Date = r.now().UTC().Truncate(time.Millisecond)
	}
	if e.Data == nil {
		e.Data = map[string]any{}
	}

	doc := AuditDocument{
		ID:                   e.ID,
		Date:                 e.Date,
		CustomerID:           e.CustomerID,
		TransactionID:        e.TransactionID,
		TransactionReference: e.TransactionReference,
		Description:          e.Description,
		Data:                 e.Data,
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return repository.PaymentAuditEntry{}, fmt.Errorf("failed to append audit entry: %w", err)
	}
	return e, nil
}

func (r *AuditRepository) ListByTransactionID(ctx context.Context, transactionID string) ([]repository.PaymentAuditEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "_id", Value: 1}})

	cur, err := r.col.Find(ctx, bson.M{"transaction_id": transactionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer cur.Close(ctx)

	entries := make([]repository.PaymentAuditEntry, 0)
	for cur.Next(ctx) {
		var doc AuditDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode audit entry: %w", err)
		}
		entries = append(entries, repository.PaymentAuditEntry{
			ID:                   doc.ID,
			Date:                 doc.Date.UTC(),
			CustomerID:           doc.CustomerID,
			TransactionID:        doc.TransactionID,
			TransactionReference: doc.TransactionReference,
			Description:          doc.Description,
			Data:                 doc.Data,
		})
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, nil
}
