package dummy

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shestoi/paygate/internal/gateway"
)

func cardParams(number string) gateway.Params {
	return gateway.Params{
		"amount":        "10.00",
		"currency":      "USD",
		"transactionId": "tx-1",
		"card":          map[string]any{"number": number, "expiryMonth": 12, "expiryYear": 2030},
	}
}

func TestGateway_Purchase(t *testing.T) {
	tests := []struct {
		name        string
		params      gateway.Params
		wantSuccess bool
		wantMsg     string
		wantErr     error
	}{
		{name: "even card approved", params: cardParams("4242424242424242"), wantSuccess: true, wantMsg: "Success"},
		{name: "odd card declined", params: cardParams("4111111111111111"), wantMsg: "Failure"},
		{name: "missing card", params: gateway.Params{"amount": "1.00"}, wantErr: ErrInvalidRequest},
		{name: "missing amount", params: gateway.Params{"card": map[string]any{"number": "4242424242424242"}}, wantErr: ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := New()
			gw.Initialize(gateway.Params{"testMode": true})

			resp, err := gw.Send(context.Background(), gateway.OpPurchase, tt.params)

			if tt.wantErr != nil {
				require.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSuccess, resp.IsSuccessful())
			assert.False(t, resp.IsRedirect())
			assert.Equal(t, tt.wantMsg, resp.Message())
			if tt.wantSuccess {
				assert.NotEmpty(t, resp.TransactionReference())
			}
		})
	}
}

func TestGateway_OffsiteRedirect(t *testing.T) {
	gw := New()
	gw.Initialize(gateway.Params{"offsite": true})

	params := cardParams("4242424242424242")
	params["returnUrl"] = "https://shop.example/payments/dummy/completePurchase"

	resp, err := gw.Send(context.Background(), gateway.OpPurchase, params)

	require.NoError(t, err)
	assert.True(t, resp.IsRedirect())
	assert.False(t, resp.IsSuccessful())
	assert.Equal(t, "GET", resp.RedirectMethod())

	target, err := url.Parse(resp.RedirectURL())
	require.NoError(t, err)
	assert.Equal(t, "/payments/dummy/completePurchase", target.Path)
	assert.Equal(t, resp.TransactionReference(), target.Query().Get("transactionReference"))
}

func TestGateway_CompleteAndCapture(t *testing.T) {
	gw := New()

	resp, err := gw.Send(context.Background(), gateway.OpCompletePurchase, gateway.Params{"transactionReference": "ref-1"})
	require.NoError(t, err)
	assert.True(t, resp.IsSuccessful())
	assert.Equal(t, "ref-1", resp.TransactionReference())

	_, err = gw.Send(context.Background(), gateway.OpCapture, gateway.Params{})
	assert.True(t, errors.Is(err, ErrInvalidRequest))
}

func TestGateway_Cards(t *testing.T) {
	gw := New()

	created, err := gw.Send(context.Background(), gateway.OpCreateCard, cardParams("4242424242424242"))
	require.NoError(t, err)
	require.True(t, created.IsSuccessful())
	ref, _ := created.Data()["cardReference"].(string)
	require.NotEmpty(t, ref)

	deleted, err := gw.Send(context.Background(), gateway.OpDeleteCard, gateway.Params{"cardReference": ref})
	require.NoError(t, err)
	assert.True(t, deleted.IsSuccessful())

	_, err = gw.Send(context.Background(), gateway.OpUpdateCard, gateway.Params{})
	assert.True(t, errors.Is(err, ErrInvalidRequest))
}

func TestGateway_Supports(t *testing.T) {
	gw := New()
	assert.True(t, gw.Supports(gateway.OpAuthorize))
	assert.True(t, gw.Supports(gateway.OpDeleteCard))
	assert.False(t, gw.Supports(gateway.Operation("refund")))
}
