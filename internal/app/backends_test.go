package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shestoi/paygate/internal/config"
	"github.com/shestoi/paygate/internal/repository/memory"
	sessionmemory "github.com/shestoi/paygate/internal/session/memory"
	platformshutdown "github.com/shestoi/paygate/platform/shutdown"
)

func TestOpenBackends_Memory(t *testing.T) {
	cfg := config.Config{
		SessionBackend: config.BackendMemory,
		StorageBackend: config.BackendMemory,
		AuditBackend:   config.BackendStorage,
	}

	b, err := openBackends(context.Background(), cfg, zap.NewNop(), platformshutdown.New(time.Second, zap.NewNop()))
	require.NoError(t, err)

	assert.IsType(t, &sessionmemory.Store{}, b.sessions)
	assert.IsType(t, &memory.PaymentRepository{}, b.payments)
	assert.IsType(t, &memory.AuditRepository{}, b.audit)
	assert.True(t, b.ready(time.Second))
}

func TestBackends_Ready(t *testing.T) {
	b := &backends{pings: []func(context.Context) error{
		func(context.Context) error { return nil },
		func(context.Context) error { return errors.New("connection refused") },
	}}

	assert.False(t, b.ready(time.Second))
}
