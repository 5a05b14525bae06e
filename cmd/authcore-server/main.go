// Command authcore-server runs the authentication HTTP API.
//
// Configuration comes from the environment and an optional .env file; see
// internal/envconfig for the variable names. With DATABASE_URL unset the
// server keeps accounts in memory, which is only suitable for development.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/sentinelgrid/authcore"
	"github.com/sentinelgrid/authcore/httpapi"
	"github.com/sentinelgrid/authcore/internal/envconfig"
	promexport "github.com/sentinelgrid/authcore/metrics/export/prometheus"
	"github.com/sentinelgrid/authcore/store/memory"
	"github.com/sentinelgrid/authcore/store/postgres"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logger := log.New(os.Stderr, "authcore: ", log.LstdFlags)

	if err := run(logger); err != nil {
		logger.Fatalf("fatal: %v", err)
	}
}

func run(logger *log.Logger) error {
	env, err := envconfig.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		store authcore.CredentialStore
		sinks authcore.MultiSink
		db    *sql.DB
	)
	if env.DatabaseURL != "" {
		if env.MigrateOnBoot {
			if err := postgres.Migrate(env.DatabaseURL, "up"); err != nil {
				return err
			}
			logger.Printf("migrations applied")
		}
		db, err = postgres.Open(ctx, env.DatabaseURL, postgres.DefaultPoolConfig())
		if err != nil {
			return err
		}
		defer db.Close()
		store = postgres.NewStore(db, nil)
		sinks = append(sinks, postgres.NewAuditSink(db))
	} else {
		logger.Printf("DATABASE_URL not set; using in-memory credential store")
		store = memory.New()
	}
	if env.AuditStdout {
		sinks = append(sinks, authcore.NewJSONWriterSink(os.Stdout))
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     env.RedisAddr,
		Password: env.RedisPassword,
		DB:       env.RedisDB,
	})
	defer rdb.Close()

	builder := authcore.New().
		WithConfig(env.AuthConfig()).
		WithRedis(rdb).
		WithCredentialStore(store).
		WithResetNotifier(logNotifier(logger)).
		WithLogger(logger)
	if len(sinks) > 0 {
		builder = builder.WithAuditSink(sinks)
	}
	engine, err := builder.Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		promexport.NewCollector(engine),
	)
	if db != nil {
		reg.MustRegister(collectors.NewDBStatsCollector(db, "authcore"))
	}
	httpMetrics, err := httpapi.NewHTTPMetrics(reg)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr: env.HTTPAddr,
		Handler: httpapi.NewHandler(engine, httpapi.Options{
			Logger:         logger,
			CookieSecure:   env.CookieSecure,
			RateLimitRPS:   env.HTTPRateLimitRPS,
			RateLimitBurst: env.HTTPRateLimitBurst,
			Metrics:        httpMetrics,
			MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s", env.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// logNotifier stands in for a mail integration. It records that a reset was
// requested without the token.
func logNotifier(logger *log.Logger) authcore.ResetNotifier {
	return authcore.NotifierFunc(func(_ context.Context, email, _ string) error {
		logger.Printf("password reset requested for %s", email)
		return nil
	})
}
