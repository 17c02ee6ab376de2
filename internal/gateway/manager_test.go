package gateway_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shestoi/paygate/internal/gateway"
	"github.com/shestoi/paygate/internal/session"
	"github.com/shestoi/paygate/internal/session/memory"
)

type fakeGateway struct {
	name        string
	initialized gateway.Params
	inits       int
}

func (g *fakeGateway) Name() string                       { return g.name }
func (g *fakeGateway) Initialize(p gateway.Params)        { g.initialized = p.Clone(); g.inits++ }
func (g *fakeGateway) Parameters() gateway.Params         { return g.initialized.Clone() }
func (g *fakeGateway) Supports(op gateway.Operation) bool { return true }
func (g *fakeGateway) Send(ctx context.Context, op gateway.Operation, params gateway.Params) (gateway.Response, error) {
	return gateway.StaticResponse{Successful: true}, nil
}

type fakeFactory struct {
	created []string
}

func (f *fakeFactory) Create(name string) (gateway.Gateway, error) {
	f.created = append(f.created, name)
	return &fakeGateway{name: name}, nil
}

func newManager(t *testing.T) (*gateway.Manager, *fakeFactory, *session.Session) {
	t.Helper()

	providers := gateway.NewProviders(map[string]gateway.ProviderSettings{
		"stripe": {Default: gateway.Params{"apiKey": "", "testMode": true}},
		"paypal": {
			Default:  gateway.Params{"username": "", "testMode": true},
			Submodes: map[string]gateway.Params{"express": {"brandName": "shop"}},
		},
	})
	factory := &fakeFactory{}
	sess := session.New(memory.NewStore(), "sess-1")

	return gateway.NewManager(providers, factory, sess, zap.NewNop()), factory, sess
}

func TestManager_InitializeSessionGateway(t *testing.T) {
	t.Run("merges session settings over provider defaults", func(t *testing.T) {
		// Arrange
		m, factory, sess := newManager(t)
		require.NoError(t, sess.Set("payments.stripe", gateway.Params{"apiKey": "sk_test"}))

		// Act
		gw, err := m.InitializeSessionGateway(context.Background(), "Stripe")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, []string{"Stripe"}, factory.created)
		assert.Equal(t, "sk_test", gw.Parameters()["apiKey"])
		assert.Equal(t, true, gw.Parameters()["testMode"])
	})

	t.Run("returns cached handle on repeated calls", func(t *testing.T) {
		m, factory, _ := newManager(t)

		first, err := m.InitializeSessionGateway(context.Background(), "stripe")
		require.NoError(t, err)
		second, err := m.InitializeSessionGateway(context.Background(), "STRIPE")
		require.NoError(t, err)

		assert.Same(t, first, second)
		assert.Len(t, factory.created, 1)
		assert.Equal(t, 1, first.(*fakeGateway).inits)
	})

	t.Run("applies submode overlay", func(t *testing.T) {
		m, factory, _ := newManager(t)

		gw, err := m.InitializeSessionGateway(context.Background(), "paypal_express")

		require.NoError(t, err)
		assert.Equal(t, []string{"PayPal_Express"}, factory.created)
		assert.Equal(t, "shop", gw.Parameters()["brandName"])
	})

	t.Run("unknown gateway fails before factory", func(t *testing.T) {
		m, factory, _ := newManager(t)

		_, err := m.InitializeSessionGateway(context.Background(), "nope")

		var unknown *gateway.UnknownProviderError
		require.True(t, errors.As(err, &unknown))
		assert.Empty(t, factory.created)
	})

	t.Run("name known but not configured", func(t *testing.T) {
		m, factory, _ := newManager(t)

		_, err := m.InitializeSessionGateway(context.Background(), "mollie")

		var unknown *gateway.UnknownProviderError
		require.True(t, errors.As(err, &unknown))
		assert.Empty(t, factory.created)
	})
}

func TestManager_InitializeRequestGateway(t *testing.T) {
	// Arrange
	m, factory, sess := newManager(t)
	require.NoError(t, sess.Set("payments.stripe", gateway.Params{"apiKey": "from-session"}))

	cached, err := m.InitializeSessionGateway(context.Background(), "stripe")
	require.NoError(t, err)

	// Act
	fresh, err := m.InitializeRequestGateway(context.Background(), "stripe", gateway.Params{"apiKey": "submitted"})

	// Assert
	require.NoError(t, err)
	assert.NotSame(t, cached, fresh)
	assert.Len(t, factory.created, 2)
	assert.Equal(t, "submitted", fresh.Parameters()["apiKey"])

	got, ok := m.Gateway("stripe")
	require.True(t, ok)
	assert.Same(t, fresh, got)
}

func TestManager_SessionValues(t *testing.T) {
	m, _, sess := newManager(t)

	require.NoError(t, m.SetSessionValue("Stripe", "purchase", map[string]string{"transactionId": "t-1"}))
	require.NoError(t, m.SetSessionSettings("Stripe", gateway.Params{"apiKey": "k"}))

	assert.Equal(t, []string{"payments.stripe", "payments.stripe.purchase"}, sess.Keys())

	var got map[string]string
	found, err := m.GetSessionValue("stripe", "purchase", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "t-1", got["transactionId"])

	m.RemoveSessionValue("stripe", "purchase")
	found, err = m.GetSessionValue("stripe", "purchase", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSessionName(t *testing.T) {
	assert.Equal(t, "payments.paypal_express", gateway.SessionPrefix("PayPal_Express"))
	assert.Equal(t, "payments.paypal_express.card", gateway.SessionName("PayPal_Express", "card"))
}
