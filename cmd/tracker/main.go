// Command tracker watches Model Health trial and analysis jobs and publishes their state changes.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/model-health/modelhealth-go/internal/api"
	"github.com/model-health/modelhealth-go/internal/auth"
	"github.com/model-health/modelhealth-go/internal/config"
	"github.com/model-health/modelhealth-go/internal/events"
	"github.com/model-health/modelhealth-go/internal/ledger"
	ledgerpg "github.com/model-health/modelhealth-go/internal/ledger/postgres"
	"github.com/model-health/modelhealth-go/internal/tracker"
	httptransport "github.com/model-health/modelhealth-go/internal/transport/http"
	"github.com/model-health/modelhealth-go/pkg/modelhealth"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()
	cfg := config.Load()
	logger := log.New(os.Stderr, "[tracker] ", log.LstdFlags|log.Lshortfile)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := modelhealth.New(cfg.APIKey,
		modelhealth.WithBaseURL(cfg.BaseURL),
		modelhealth.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
		modelhealth.WithLogger(logger),
		modelhealth.WithUserAgent("modelhealth-tracker"),
	)
	if err != nil {
		logger.Fatalf("failed to create client: %v", err)
	}
	defer client.Close()

	var store ledger.Store = ledger.NewMemory()
	if cfg.PostgresURL != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			logger.Fatalf("failed to connect to postgres: %v", err)
		}
		defer pool.Close()
		store = ledgerpg.NewStore(pool)
	} else {
		logger.Printf("TRACKER_POSTGRES_URL not set; jobs are kept in memory")
	}

	var publisher events.Publisher = events.LogPublisher{Logger: logger}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.Topic)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	t := tracker.New(store, client, publisher, cfg.PollInterval, cfg.BatchSize, tracker.WithLogger(logger))
	go t.Start(ctx)

	mux := http.NewServeMux()
	api.NewHandler(tracker.NewService(store)).RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:         cfg.HTTPAddress,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, httptransport.LogRequests(logger, authMiddleware.Wrap(mux)), logger)

	if err := server.ListenAndServe(ctx); err != nil {
		logger.Printf("server error: %v", err)
		stop()
	}

	t.Wait()
}
