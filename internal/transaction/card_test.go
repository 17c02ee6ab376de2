package transaction

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCard_Validate(t *testing.T) {
	now := time.Date(2025, time.October, 11, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		card    Card
		wantErr bool
	}{
		{name: "valid", card: Card{Number: "4242424242424242", ExpiryMonth: 12, ExpiryYear: 2030, CVV: "123"}},
		{name: "valid through end of expiry month", card: Card{Number: "4242424242424242", ExpiryMonth: 10, ExpiryYear: 2025}},
		{name: "expired last month", card: Card{Number: "4242424242424242", ExpiryMonth: 9, ExpiryYear: 2025}, wantErr: true},
		{name: "missing number", card: Card{ExpiryMonth: 12, ExpiryYear: 2030}, wantErr: true},
		{name: "non numeric number", card: Card{Number: "4242-4242-4242", ExpiryMonth: 12, ExpiryYear: 2030}, wantErr: true},
		{name: "month out of range", card: Card{Number: "4242424242424242", ExpiryMonth: 13, ExpiryYear: 2030}, wantErr: true},
		{name: "two digit year", card: Card{Number: "4242424242424242", ExpiryMonth: 12, ExpiryYear: 30}, wantErr: true},
		{name: "bad cvv", card: Card{Number: "4242424242424242", ExpiryMonth: 12, ExpiryYear: 2030, CVV: "12"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.card.Validate(now)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalid), "got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCard_ExpiresAt(t *testing.T) {
	c := Card{ExpiryMonth: 2, ExpiryYear: 2024}

	end := c.ExpiresAt(time.UTC)

	assert.Equal(t, time.Date(2024, time.February, 29, 23, 59, 59, 999999999, time.UTC), end)
}

func TestCard_WithoutCVV(t *testing.T) {
	c := Card{Number: "4242424242424242", CVV: "123"}

	stripped := c.WithoutCVV()

	assert.Empty(t, stripped.CVV)
	assert.Equal(t, "123", c.CVV)
	assert.NotContains(t, stripped.Parameters(), "cvv")
}
