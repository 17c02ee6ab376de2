package records

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shestoi/paygate/internal/repository"
	"github.com/shestoi/paygate/internal/repository/memory"
)

type mockAuditRepository struct {
	mock.Mock
}

func (m *mockAuditRepository) Append(ctx context.Context, e repository.PaymentAuditEntry) (repository.PaymentAuditEntry, error) {
	args := m.Called(ctx, e)
	return args.Get(0).(repository.PaymentAuditEntry), args.Error(1)
}

func (m *mockAuditRepository) ListByTransactionID(ctx context.Context, transactionID string) ([]repository.PaymentAuditEntry, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.PaymentAuditEntry), args.Error(1)
}

func TestRecords_Payments(t *testing.T) {
	ctx := context.Background()
	r := New(memory.NewPaymentRepository(), memory.NewAuditRepository(), zap.NewNop())

	saved, err := r.SavePayment(ctx, repository.Payment{CustomerID: "c1", Gateway: "Dummy", TransactionID: "t1"})
	require.NoError(t, err)

	list, err := r.Payments(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, saved.ID, list[0].ID)

	got, err := r.Payment(ctx, "c1", "Dummy", "t1")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, got.ID)

	_, err = r.Payment(ctx, "c1", "Dummy", "t2")
	assert.True(t, errors.Is(err, repository.ErrPaymentNotFound))
}

func TestRecords_CreatePayment(t *testing.T) {
	ctx := context.Background()
	r := New(memory.NewPaymentRepository(), memory.NewAuditRepository(), zap.NewNop())
	p := repository.Payment{CustomerID: "c1", Gateway: "Dummy", TransactionID: "t1", Amount: "5.00"}

	created, err := r.CreatePayment(ctx, p)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, repository.StatusNew, created.Status)

	_, err = r.CreatePayment(ctx, p)
	assert.True(t, errors.Is(err, repository.ErrDuplicatePayment))
}

func TestRecords_CreateAuditEntry(t *testing.T) {
	t.Run("appends entry", func(t *testing.T) {
		// Arrange
		ctx := context.Background()
		audit := &mockAuditRepository{}
		want := repository.PaymentAuditEntry{
			CustomerID: "c1", TransactionID: "t1", Description: "set purchase: success",
			Data: map[string]any{"result": "success"},
		}
		audit.On("Append", ctx, want).Return(want, nil).Once()
		r := New(memory.NewPaymentRepository(), audit, zap.NewNop())

		// Act
		_, err := r.CreateAuditEntry(ctx, "c1", "t1", "", "set purchase: success", map[string]any{"result": "success"})

		// Assert
		require.NoError(t, err)
		audit.AssertExpectations(t)
	})

	t.Run("propagates store error", func(t *testing.T) {
		ctx := context.Background()
		audit := &mockAuditRepository{}
		audit.On("Append", ctx, mock.Anything).Return(repository.PaymentAuditEntry{}, errors.New("disk full"))
		r := New(memory.NewPaymentRepository(), audit, zap.NewNop())

		_, err := r.CreateAuditEntry(ctx, "", "t1", "", "set purchase: failure", nil)

		assert.EqualError(t, err, "disk full")
	})
}

func TestRecords_AuditTrail(t *testing.T) {
	ctx := context.Background()
	audit := &mockAuditRepository{}
	audit.On("ListByTransactionID", ctx, "t1").Return(nil, errors.New("timeout"))
	r := New(memory.NewPaymentRepository(), audit, zap.NewNop())

	_, err := r.AuditTrail(ctx, "t1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list audit trail")
}
