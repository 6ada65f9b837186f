package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"identity-proxy/internal/audit"
	identityhandler "identity-proxy/internal/identity/handler"
	identityservice "identity-proxy/internal/identity/service"
	identitystore "identity-proxy/internal/identity/store"
	identitymemory "identity-proxy/internal/identity/store/memory"
	identitypostgres "identity-proxy/internal/identity/store/postgres"
	"identity-proxy/internal/notification"
	"identity-proxy/internal/platform/config"
	"identity-proxy/internal/platform/httpserver"
	"identity-proxy/internal/platform/logger"
	platformpostgres "identity-proxy/internal/platform/postgres"
	platformredis "identity-proxy/internal/platform/redis"
	proxyhandler "identity-proxy/internal/proxy/handler"
	proxymetrics "identity-proxy/internal/proxy/metrics"
	proxyservice "identity-proxy/internal/proxy/service"
	proxystore "identity-proxy/internal/proxy/store"
	proxymemory "identity-proxy/internal/proxy/store/memory"
	proxypostgres "identity-proxy/internal/proxy/store/postgres"
	proxyredis "identity-proxy/internal/proxy/store/redis"
	"identity-proxy/internal/records"
	"identity-proxy/internal/session"
	httptransport "identity-proxy/internal/transport/http"
	"identity-proxy/pkg/platform/middleware/auth"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal service
// packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]httptransport.HealthChecker{}

	// Store selection: Postgres when configured, then Redis, then in-memory
	// for local runs.
	var (
		proxies    proxystore.Store
		identities identitystore.Store
	)
	db, err := platformpostgres.Open(ctx, cfg.Postgres)
	if err != nil {
		log.Error("postgres unavailable", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
		if err := platformpostgres.Migrate(ctx, db); err != nil {
			log.Error("schema migration failed", "error", err)
			os.Exit(1)
		}
		proxies = proxypostgres.New(db)
		identities = identitypostgres.New(db)
		checks["postgres"] = db.PingContext
		log.Info("using postgres stores")
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		checks["redis"] = redisClient.Health
		if proxies == nil {
			proxies = proxyredis.New(redisClient.Client)
			log.Info("using redis proxy store")
		}
	}

	if proxies == nil {
		proxies = proxymemory.New()
		log.Warn("using in-memory proxy store, state will not survive restarts")
	}
	if identities == nil {
		identities = identitymemory.New()
	}

	// Audit sink: Kafka when brokers are configured, in-process otherwise.
	// Either way a worker keeps appends off the request path.
	var sink audit.Store = audit.NewInMemoryStore()
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaStore, err := audit.NewKafkaStore(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			log.Error("kafka unavailable", "error", err)
			os.Exit(1)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := kafkaStore.Close(flushCtx); err != nil {
				log.Warn("audit flush on shutdown failed", "error", err)
			}
		}()
		sink = kafkaStore
		log.Info("audit events published to kafka", "topic", cfg.Kafka.Topic)
	}
	worker := audit.NewWorker(sink, cfg.AuditBuffer, log)
	go worker.Run(ctx)
	publisher := audit.NewPublisher(worker.Inbox(), log)

	metrics := proxymetrics.New()
	recordStore := records.NewInMemoryStore()

	proxySvc := proxyservice.New(proxies,
		proxyservice.WithMetrics(metrics),
		proxyservice.WithAuditPublisher(publisher),
		proxyservice.WithLogger(log),
	)
	identitySvc := identityservice.New(identities, proxySvc,
		identityservice.WithRecords(recordStore),
		identityservice.WithNotifier(notification.NewLogNotifier(log)),
		identityservice.WithAuditPublisher(publisher),
		identityservice.WithLogger(log),
	)

	resolver, err := session.NewResolver(proxies)
	if err != nil {
		log.Error("failed to build session resolver", "error", err)
		os.Exit(1)
	}
	defer resolver.Close()

	router := httptransport.NewRouter(checks,
		proxyhandler.New(proxySvc, log),
		identityhandler.New(identitySvc, recordStore,
			auth.RequireAuth(resolver, log), log),
	)

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting identity-proxy", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	worker.Wait()
}
