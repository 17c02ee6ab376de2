package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type codedError struct{ code string }

func (e codedError) Error() string { return "provider error " + e.code }
func (e codedError) Code() string  { return e.code }

func TestNewCommunicationError(t *testing.T) {
	t.Run("keeps provider code", func(t *testing.T) {
		cause := fmt.Errorf("send: %w", codedError{code: "E1001"})

		err := newCommunicationError(cause)

		assert.Equal(t, "E1001", err.Code)
		assert.Equal(t, CommunicationFailureMessage, err.Error())
		assert.True(t, errors.Is(err, cause))
	})

	t.Run("plain errors have no code", func(t *testing.T) {
		err := newCommunicationError(errors.New("timeout"))

		assert.Empty(t, err.Code)
		assert.NotContains(t, err.Error(), "timeout")
	})
}

func TestMissingPaymentError(t *testing.T) {
	err := &MissingPaymentError{CustomerID: "c1", Gateway: "Stripe", TransactionID: "t1"}

	assert.Equal(t, "no payment for customer c1 on gateway Stripe with transaction t1", err.Error())
}
