package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appcheckout "github.com/Zhima-Mochi/minishop-checkout/internal/application/checkout"
	"github.com/Zhima-Mochi/minishop-checkout/internal/config"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/backend"
	checkoutworker "github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/checkout/worker"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/id"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/memory"
	infraobs "github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/stripe"
	"github.com/Zhima-Mochi/minishop-checkout/internal/pkg/logging"
	httppresentation "github.com/Zhima-Mochi/minishop-checkout/internal/presentation/http"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	baseLogger := logging.MustNewLogger(logging.Options{
		Service: cfg.ServiceName,
		Env:     cfg.Env,
		LogFile: cfg.LogFile,
		Level:   cfg.LogLevel,
	})
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	systemLogger := logging.WithTrace(baseLogger, logging.SystemTraceID, logging.SystemSpanID)
	if !cfg.DotEnvLoaded {
		systemLogger.Info("dotenv_not_found")
	}
	if cfg.StripeSecretKey == "" {
		systemLogger.Warn("stripe_secret_key_missing")
	}

	tp := oteltrace.NewProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	counters, histograms := prometrics.Standard(prometrics.New(reg, "", ""))
	tracer := oteltrace.New(cfg.ServiceName, attribute.String("deployment.environment", cfg.Env))
	tel := infraobs.New(tracer, zaplogger.New(baseLogger), counters, histograms)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// In-memory event bus carrying checkout outcomes to workers
	bus := outbox.NewBus(tel.Logger())
	bus.Start(ctx)
	checkoutworker.New(bus, tel).Start()

	orderBackend := backend.New(cfg.OrderBackendURL, cfg.OrderBackendTimeout,
		backend.WithBreaker(cfg.BreakerFailures, cfg.BreakerCooldown),
		backend.OnBreakerStateChange(func(from, to gobreaker.State) {
			systemLogger.Warn("order_backend_breaker_state_change",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		}),
	)

	ledger := memory.NewOrderLedger()
	sessions := memory.NewSessionStore(
		memory.WithIdleTTL(cfg.SessionIdleTTL),
		memory.OnEvict(func(id string) {
			systemLogger.Info("checkout_session_expired", zap.String("session_id", id))
		}),
	)
	checkoutService := appcheckout.NewService(sessions, appcheckout.Dependencies{
		Backend:   orderBackend,
		Gateway:   stripe.New(cfg.StripeSecretKey),
		Ledger:    ledger,
		IDs:       id.NewUUIDGenerator(),
		Publisher: bus,
		Tel:       tel,
	})

	handler := httppresentation.NewHandler(checkoutService, ledger, tel,
		httppresentation.WithRateLimit(cfg.RatePerMinute, cfg.RateBurst),
	)
	root := chi.NewRouter()
	root.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	root.Mount("/", handler.Router())

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           root,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		systemLogger.Info("http_server_start",
			zap.String("addr", server.Addr),
			zap.String("order_backend", cfg.OrderBackendURL),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			systemLogger.Error("http_server_error",
				zap.Error(err),
			)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error",
			zap.Error(err),
		)
	} else {
		systemLogger.Info("http_server_stopped")
	}
	bus.Stop(shutdownCtx)
}
