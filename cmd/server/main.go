package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"custodia/internal/platform/config"
	"custodia/internal/platform/httpserver"
	"custodia/internal/platform/logger"
	"custodia/internal/platform/middleware"
	"custodia/internal/platform/postgres"
	platformredis "custodia/internal/platform/redis"
	"custodia/internal/treasury"
	"custodia/internal/vault/handler"
	vaultmetrics "custodia/internal/vault/metrics"
	"custodia/internal/vault/service"
	"custodia/internal/vault/store"
	ledgerstore "custodia/internal/vault/store/ledger"
	registrystore "custodia/internal/vault/store/registry"
	audit "custodia/pkg/platform/audit"
	"custodia/pkg/platform/audit/publisher"
	kafkasink "custodia/pkg/platform/audit/sink/kafka"
	auditmemory "custodia/pkg/platform/audit/store/memory"
	auditpostgres "custodia/pkg/platform/audit/store/postgres"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	// Durable stores when Postgres is configured, in-memory twins otherwise.
	var (
		db            *sql.DB
		registry      service.RegistryStore
		ledger        service.LedgerStore
		auditStore    audit.Store
		healthChecker func(context.Context) error
	)
	if cfg.PostgresURL != "" {
		var err error
		db, err = postgres.Open(ctx, cfg.PostgresURL)
		if err != nil {
			log.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Error("failed to migrate schema", "error", err)
			os.Exit(1)
		}
		registry = registrystore.NewPostgres(db)
		ledger = ledgerstore.NewPostgres(db)
		auditStore = auditpostgres.New(db)
		healthChecker = db.PingContext
	} else {
		registry = registrystore.NewInMemory()
		ledger = ledgerstore.NewInMemory()
		auditStore = auditmemory.NewInMemoryStore()
		healthChecker = func(context.Context) error { return nil }
	}

	// Treasury: Redis-backed balance when configured, in-memory otherwise.
	var funds treasury.Treasury
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		funds = treasury.NewRedis(redisClient.Client)
	} else {
		funds = treasury.NewInMemory(cfg.DevBalance)
	}

	// Audit pipeline: buffered publisher over the store, fanning out to Kafka
	// when brokers are configured.
	pubOpts := []publisher.Option{
		publisher.WithLogger(log),
		publisher.WithAsyncBuffer(256),
	}
	var kafka *kafkasink.Sink
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err = kafkasink.New(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Error("failed to connect to kafka", "error", err)
			os.Exit(1)
		}
		defer kafka.Close()
		pubOpts = append(pubOpts, publisher.WithFanout(kafka))
	}
	events := publisher.NewPublisher(auditStore, pubOpts...)
	defer events.Close()

	vault, err := service.New(registry, ledger, funds,
		service.WithLogger(log),
		service.WithAuditPublisher(events),
		service.WithMetrics(vaultmetrics.New(prometheus.DefaultRegisterer)),
	)
	if err != nil {
		log.Error("failed to build vault service", "error", err)
		os.Exit(1)
	}

	// Install the bootstrap signer set unless a registry already exists.
	signers, quorum, err := store.SeedSigners(cfg.DevSigners, cfg.DevQuorum)
	if err != nil {
		log.Error("invalid dev signers", "error", err)
		os.Exit(1)
	}
	if err := vault.Bootstrap(ctx, signers, quorum); err != nil {
		log.Error("failed to bootstrap registry", "error", err)
		os.Exit(1)
	}
	for _, signer := range signers {
		log.Info("bootstrap signer", "principal", signer)
	}

	validator := middleware.NewHS256Validator(cfg.JWTSigningKey)

	router := chi.NewRouter()
	handler.New(vault, log, validator).Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := healthChecker(r.Context()); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting custodia", "addr", cfg.Addr)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		select {
		case <-quit:
		case <-groupCtx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
