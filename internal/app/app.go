package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/unseenwear/checkout/internal/domain/discount"
	"github.com/unseenwear/checkout/internal/domain/order"
	"github.com/unseenwear/checkout/internal/domain/payment"
	"github.com/unseenwear/checkout/internal/notify"
	"github.com/unseenwear/checkout/internal/storage/postgres"
	"github.com/unseenwear/checkout/pkg/health"
	"github.com/unseenwear/checkout/pkg/httpmiddleware"
)

// Core bundles the wired checkout components. The storefront edge embeds it
// and exposes whatever transport it wants; this module deliberately serves
// only health probes itself.
type Core struct {
	Pool     *pgxpool.Pool
	Codes    discount.Store
	Orders   order.Repository
	Engine   *discount.Engine
	Gateway  *payment.Client
	Checkout *order.Service
}

// Build constructs the full dependency graph: database pool, migrations,
// stores, discount engine, gateway client, mailer, and checkout service.
// Closing the returned Core's Pool is the caller's responsibility.
func Build(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) (*Core, error) {
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}

	codes := postgres.NewDiscountStore(pool)
	orders := postgres.NewOrderRepository(pool)

	// Gateway client with an instrumented transport and the provider's
	// 30-second ceiling.
	gateway := payment.NewClient(cfg.PaymentConfig(), lg.Named("hyp"),
		payment.WithHTTPClient(&http.Client{
			Timeout: payment.DefaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithTracerProvider(m.TracerProvider()),
				otelhttp.WithMeterProvider(m.MeterProvider()),
			),
		}))

	engine := discount.NewEngine(codes, lg.Named("discount"))
	mailer := notify.NewMailer(notify.Config{
		Host:       cfg.SMTP.Host,
		Port:       cfg.SMTP.Port,
		Username:   cfg.SMTP.Username,
		Password:   cfg.SMTP.Password,
		FromEmail:  cfg.SMTP.FromEmail,
		OwnerEmail: cfg.SMTP.OwnerEmail,
	}, lg.Named("mail"))

	checkout := order.NewService(orders, engine, codes, gateway, mailer, lg.Named("checkout"))

	return &Core{
		Pool:     pool,
		Codes:    codes,
		Orders:   orders,
		Engine:   engine,
		Gateway:  gateway,
		Checkout: checkout,
	}, nil
}

// Run builds the core and serves the health probes until the context is
// cancelled, with a readiness drain before shutdown.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	core, err := Build(ctx, lg, m, cfg)
	if err != nil {
		return err
	}
	defer core.Pool.Close()

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return core.Pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.InjectLogger(lg.Named("http")),
			httpmiddleware.Recovery(),
			httpmiddleware.RequestID(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
