package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/shestoi/paygate/platform/observability"
)

const sessionRoot = "payments"

// SessionValues is the part of a session the manager reads and writes.
type SessionValues interface {
	Get(key string, dst any) (bool, error)
	Set(key string, value any) error
	Remove(key string)
}

// ProviderResolver returns the configured settings for a gateway key.
type ProviderResolver interface {
	Get(key string) (Params, error)
}

// SessionPrefix is the session namespace of a gateway: "payments.<name>".
func SessionPrefix(name string) string {
	return sessionRoot + "." + strings.ToLower(name)
}

// SessionName is the session key of a value stored for a gateway: "payments.<name>.<type>".
func SessionName(name, typ string) string {
	return SessionPrefix(name) + "." + typ
}

// Manager hands out initialised gateways for one request and owns the session key layout.
// A Manager must not outlive its request.
type Manager struct {
	providers ProviderResolver
	factory   Factory
	session   SessionValues
	logger    *zap.Logger

	// handles caches initialised gateways by lowercase name for the life of the request.
	handles *cache.Cache
}

func NewManager(providers ProviderResolver, factory Factory, session SessionValues, logger *zap.Logger) *Manager {
	return &Manager{
		providers: providers,
		factory:   factory,
		session:   session,
		logger:    logger,
		handles:   cache.New(cache.NoExpiration, 0),
	}
}

// InitializeSessionGateway returns the gateway for name, configured from the provider settings
// overlaid with the settings saved in session. Repeated calls return the cached handle.
func (m *Manager) InitializeSessionGateway(ctx context.Context, name string) (Gateway, error) {
	key := strings.ToLower(name)
	if gw, ok := m.Gateway(key); ok {
		return gw, nil
	}

	var stored Params
	if _, err := m.session.Get(SessionPrefix(key), &stored); err != nil {
		return nil, fmt.Errorf("failed to read gateway settings from session: %w", err)
	}

	return m.initialize(ctx, key, stored)
}

// InitializeRequestGateway returns the gateway for name, configured from the provider settings
// overlaid with submitted settings. It replaces any cached handle.
func (m *Manager) InitializeRequestGateway(ctx context.Context, name string, submitted Params) (Gateway, error) {
	return m.initialize(ctx, strings.ToLower(name), submitted)
}

// Gateway returns the handle initialised earlier in this request.
func (m *Manager) Gateway(name string) (Gateway, bool) {
	v, ok := m.handles.Get(strings.ToLower(name))
	if !ok {
		return nil, false
	}
	return v.(Gateway), true
}

func (m *Manager) initialize(ctx context.Context, key string, overlay Params) (Gateway, error) {
	canonical, err := ResolveName(key)
	if err != nil {
		return nil, err
	}
	settings, err := m.providers.Get(key)
	if err != nil {
		return nil, err
	}
	gw, err := m.factory.Create(canonical)
	if err != nil {
		return nil, err
	}

	gw.Initialize(settings.Merge(overlay))
	m.handles.Set(key, gw, cache.NoExpiration)

	observability.L(ctx, m.logger).Debug("gateway initialised",
		zap.String("gateway", key),
		zap.String("canonical", canonical),
		zap.Int("overlay_keys", len(overlay)),
	)
	return gw, nil
}

// GetSessionValue decodes payments.<name>.<typ> into dst and reports whether it was present.
func (m *Manager) GetSessionValue(name, typ string, dst any) (bool, error) {
	return m.session.Get(SessionName(name, typ), dst)
}

// SetSessionValue stores value under payments.<name>.<typ>.
func (m *Manager) SetSessionValue(name, typ string, value any) error {
	return m.session.Set(SessionName(name, typ), value)
}

// RemoveSessionValue clears payments.<name>.<typ>.
func (m *Manager) RemoveSessionValue(name, typ string) {
	m.session.Remove(SessionName(name, typ))
}

// SetSessionSettings stores gateway settings under payments.<name>, where
// InitializeSessionGateway picks them up.
func (m *Manager) SetSessionSettings(name string, settings Params) error {
	return m.session.Set(SessionPrefix(name), settings)
}
