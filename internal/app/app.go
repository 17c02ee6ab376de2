// Package app wires the paygate process together.
package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"

	httpapi "github.com/shestoi/paygate/internal/api/http"
	"github.com/shestoi/paygate/internal/config"
	"github.com/shestoi/paygate/internal/event"
	eventkafka "github.com/shestoi/paygate/internal/event/kafka"
	"github.com/shestoi/paygate/internal/gateway"
	"github.com/shestoi/paygate/internal/gateway/dummy"
	"github.com/shestoi/paygate/internal/metrics"
	"github.com/shestoi/paygate/internal/records"
	"github.com/shestoi/paygate/internal/service"
	"github.com/shestoi/paygate/internal/transaction"
	platformhealth "github.com/shestoi/paygate/platform/health/grpc"
	platformlogging "github.com/shestoi/paygate/platform/logging"
	platformobservability "github.com/shestoi/paygate/platform/observability"
	platformshutdown "github.com/shestoi/paygate/platform/shutdown"
)

const serviceName = "paygate"

// App holds the servers and the shutdown sequence of the process.
type App struct {
	logger       *zap.Logger
	httpServer   *http.Server
	grpcServer   *grpc.Server
	grpcListener net.Listener
	health       *platformhealth.Health
	shutdownMgr  *platformshutdown.Manager
	wg           sync.WaitGroup
}

// Build creates every dependency. On failure the resources opened so far are released.
func Build(cfg config.Config) (*App, error) {
	ctx := context.Background()

	logger, err := platformlogging.New(platformlogging.Config{
		ServiceName: serviceName,
		Env:         string(cfg.AppEnv),
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
	})
	if err != nil {
		return nil, err
	}
	cfg.Log(logger)

	shutdownMgr := platformshutdown.New(cfg.ShutdownTimeout, logger)
	app, err := build(ctx, cfg, logger, shutdownMgr)
	if err != nil {
		shutdownMgr.Shutdown()
		return nil, err
	}
	return app, nil
}

func build(ctx context.Context, cfg config.Config, logger *zap.Logger, shutdownMgr *platformshutdown.Manager) (*App, error) {
	// Shutdown runs in reverse order of registration.
	otelShutdown, err := platformobservability.Init(ctx, platformobservability.Config{
		Enabled:               cfg.OTelEnabled,
		OTLPEndpoint:          cfg.OTelEndpoint,
		SamplingRatio:         cfg.OTelSamplingRatio,
		ServiceName:           serviceName,
		DeploymentEnvironment: string(cfg.AppEnv),
	})
	if err != nil {
		return nil, err
	}
	shutdownMgr.Add("otel", otelShutdown)

	b, err := openBackends(ctx, cfg, logger, shutdownMgr)
	if err != nil {
		return nil, err
	}

	dispatcher := event.NewDispatcher()
	dispatcher.ListenAll(event.ListenerFunc(func(ctx context.Context, e event.Event) {
		platformobservability.L(ctx, logger).Debug("payment event",
			zap.String("event", e.Name),
			zap.String("gateway", e.Gateway),
			zap.String("transaction_id", e.TransactionID),
		)
	}))
	if cfg.Kafka.Enabled {
		publisher := eventkafka.NewPublisher(logger, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		dispatcher.ListenAll(publisher)
		shutdownMgr.Add("kafka_writer", platformshutdown.Close(publisher))
		logger.Info("Kafka event publisher configured",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}

	providers, err := gateway.LoadProviders(cfg.ProvidersFile)
	if err != nil {
		return nil, err
	}
	registry := gateway.NewRegistry()
	dummy.Register(registry)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	processor := service.NewProcessor(
		providers,
		transaction.NewManager(nil),
		records.New(b.payments, b.audit, logger),
		dispatcher,
		m,
		logger,
		cfg.CallbackBase(),
	)
	handler := httpapi.NewHandler(processor, providers, registry, cfg.BaseURL, logger)
	router := httpapi.NewRouter(handler, httpapi.RouterConfig{
		Mountpoint: cfg.Mountpoint,
		Sessions:   b.sessions,
		Metrics:    m,
		Readiness:  func() bool { return b.ready(time.Second) },
		Logger:     logger,
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	shutdownMgr.Add("http_server", platformshutdown.ShutdownHTTPServer(httpServer))

	grpcListener, err := net.Listen("tcp", cfg.GRPCHealthAddr)
	if err != nil {
		return nil, err
	}
	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(platformobservability.GRPCUnaryServerInterceptor(serviceName)),
	)
	health := platformhealth.New(grpc_health_v1.HealthCheckResponse_SERVING)
	health.Register(grpcServer)
	shutdownMgr.Add("grpc_server", platformshutdown.ShutdownGRPCServer(grpcServer))
	shutdownMgr.Add("health_readiness", platformshutdown.SetHealthNotServing(health))

	logger.Info("Paygate configured",
		zap.String("http_addr", cfg.HTTPAddr),
		zap.String("grpc_health_addr", cfg.GRPCHealthAddr),
		zap.String("mountpoint", cfg.Mountpoint),
	)

	return &App{
		logger:       logger,
		httpServer:   httpServer,
		grpcServer:   grpcServer,
		grpcListener: grpcListener,
		health:       health,
		shutdownMgr:  shutdownMgr,
	}, nil
}

// Run serves HTTP and gRPC health and blocks until a shutdown signal has been handled.
func (a *App) Run() error {
	defer platformlogging.Sync(a.logger)

	a.logger.Info("Starting paygate", zap.String("http_addr", a.httpServer.Addr))

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.grpcServer.Serve(a.grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			a.logger.Error("gRPC health server error", zap.Error(err))
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	a.shutdownMgr.Wait()

	a.wg.Wait()
	a.logger.Info("Paygate stopped")
	return nil
}
