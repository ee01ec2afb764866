package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/nkiryanov/authkeeper/internal/db"
	"github.com/nkiryanov/authkeeper/internal/events"
	"github.com/nkiryanov/authkeeper/internal/handlers"
	"github.com/nkiryanov/authkeeper/internal/logger"
	"github.com/nkiryanov/authkeeper/internal/notify"
	"github.com/nkiryanov/authkeeper/internal/repository/postgres"
	"github.com/nkiryanov/authkeeper/internal/service/auth"
	"github.com/nkiryanov/authkeeper/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/authkeeper/internal/service/captcha"
	"github.com/nkiryanov/authkeeper/internal/service/denylist"
	"github.com/nkiryanov/authkeeper/internal/service/emailchange"
	"github.com/nkiryanov/authkeeper/internal/service/maintenance"
	"github.com/nkiryanov/authkeeper/internal/service/password"
	"github.com/nkiryanov/authkeeper/internal/service/recovery"
	"github.com/nkiryanov/authkeeper/internal/service/refresh"
	"github.com/nkiryanov/authkeeper/internal/telemetry"
	"github.com/nkiryanov/authkeeper/internal/ttlstore"
)

const shutdownTimeout = 5 * time.Second

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger  logger.Logger
	sweeper *maintenance.Sweeper

	// Called in reverse order on Close
	closers []func()
}

func NewServerApp(ctx context.Context, c *Config) (_ *ServerApp, err error) {
	app := &ServerApp{ListenAddr: c.ListenAddr}
	defer func() {
		// Release what was opened before failure
		if err != nil {
			app.Close()
		}
	}()

	// Initialize logger
	l, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}
	app.logger = l

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}
	app.closers = append(app.closers, pool.Close)
	storage := postgres.NewStorage(pool)

	// Metrics are pushed to OTLP collector if configured
	meterProvider, shutdownMetrics, err := telemetry.Setup(ctx, telemetry.ExportConfig{
		Endpoint:    c.OtelEndpoint,
		ServiceName: "authkeeper",
	})
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownMetrics(ctx); err != nil {
			l.Warn("Failed to flush metrics", "error", err)
		}
	})
	otel.SetMeterProvider(meterProvider)

	metrics, err := telemetry.New(otel.Meter(telemetry.MeterName))
	if err != nil {
		return nil, err
	}

	// Keyed TTL store and event publisher: redis if configured, in-process otherwise
	var store ttlstore.Store
	var publisher events.Publisher
	if c.RedisURL != "" {
		opts, err := redis.ParseURL(c.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("error while parsing redis url. Err: %w", err)
		}
		client := redis.NewClient(opts)
		app.closers = append(app.closers, func() { _ = client.Close() })

		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis is not reachable. Err: %w", err)
		}
		if store, err = ttlstore.NewRedis(client); err != nil {
			return nil, err
		}
		if publisher, err = events.NewRedisStream(events.RedisStreamConfig{}, client); err != nil {
			return nil, err
		}
	} else {
		l.Warn("Redis is not configured: denylist and captcha are kept in process, events are only logged")
		store = ttlstore.NewMemory()
		publisher = events.NewLogPublisher(l)
	}

	dispatcher := events.NewDispatcher(events.DispatcherConfig{
		OnDrop: func(e events.Event) { metrics.EventDropped(context.Background(), e.Topic) },
	}, publisher, l)
	app.closers = append(app.closers, dispatcher.Close)

	// Initialize services
	hasher, err := password.New(c.PasswordHasher)
	if err != nil {
		return nil, err
	}
	tokens, err := tokenmanager.New(tokenmanager.Config{
		SecretKey:  c.SecretKey,
		Alg:        c.TokenAlgorithm,
		AccessTTL:  c.AccessTTL,
		RefreshTTL: c.RefreshTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}
	ledger := refresh.NewLedger(storage, tokens)
	recoveryManager := recovery.New(recovery.Config{TTL: c.ConfirmationTTL}, storage, hasher)
	emailChangeManager := emailchange.New(emailchange.Config{TTL: c.ConfirmationTTL}, storage)

	var notifier notify.Sender = notify.NewLogSender(l)
	if c.NotifyURL != "" {
		notifier = notify.NewHTTPSender(c.NotifyURL, l)
	} else {
		l.Warn("Mail gateway is not configured: notifications are only logged")
	}

	authService, err := auth.NewService(auth.Config{BaseURL: c.BaseURL}, auth.Deps{
		Storage:     storage,
		Hasher:      hasher,
		Tokens:      tokens,
		Ledger:      ledger,
		Denylist:    denylist.New(store),
		Recovery:    recoveryManager,
		EmailChange: emailChangeManager,
		Captcha:     captcha.New(captcha.Config{TTL: c.CaptchaTTL}, store),
		Notifier:    notifier,
		Events:      dispatcher,
		Metrics:     metrics,
		Logger:      l,
	})
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	app.sweeper = maintenance.NewSweeper(c.PurgeInterval, l,
		maintenance.Target{Name: "refresh_tokens", Purger: ledger},
		maintenance.Target{Name: "password_reset_tokens", Purger: recoveryManager},
		maintenance.Target{Name: "email_change_tokens", Purger: emailChangeManager},
	)

	app.Handler = handlers.NewRouter(handlers.RouterConfig{
		RequestTimeout:      c.RequestTimeout,
		TrustIdentityHeader: c.TrustIdentityHeader,
	}, authService, l)

	return app, nil
}

// Run starts http server and purge sweeper and stops them gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: shutdownTimeout,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	sweeperStopped := s.sweeper.Run(srvCtx)

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-sweeperStopped

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close releases app resources: pending events are published first
func (s *ServerApp) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
