package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/radieske/freelance-wallet-payments/internal/payments-service/dedup"
	"github.com/radieske/freelance-wallet-payments/internal/payments-service/gateway"
	phttp "github.com/radieske/freelance-wallet-payments/internal/payments-service/http"
	"github.com/radieske/freelance-wallet-payments/internal/payments-service/intent"
	"github.com/radieske/freelance-wallet-payments/internal/payments-service/producer"
	"github.com/radieske/freelance-wallet-payments/internal/payments-service/repo"
	"github.com/radieske/freelance-wallet-payments/internal/payments-service/settlement"
	"github.com/radieske/freelance-wallet-payments/internal/payments-service/webhook"
	sharedcache "github.com/radieske/freelance-wallet-payments/internal/shared/cache"
	"github.com/radieske/freelance-wallet-payments/internal/shared/config"
	"github.com/radieske/freelance-wallet-payments/internal/shared/db"
	"github.com/radieske/freelance-wallet-payments/internal/shared/kafka"
	"github.com/radieske/freelance-wallet-payments/internal/shared/logger"
	"github.com/radieske/freelance-wallet-payments/internal/shared/metrics"
)

func main() {
	cfg := config.LoadService(config.ServicePayments)

	// Inicializa logger estruturado
	log, err := logger.New(config.ServicePayments, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Segredo ausente aborta o processo antes de aceitar qualquer request
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}
	log.Info("starting service", zap.String("service", config.ServicePayments), zap.String("env", cfg.Env))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Store: Postgres em produção, memória para execução local
	var store repo.Store
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pg, err := db.ConnectPostgres(cfg.PostgresDSN)
		if err != nil {
			log.Fatal("postgres connect", zap.Error(err))
		}
		defer pg.Close()
		if err := db.Migrate(ctx, pg); err != nil {
			log.Fatal("postgres migrate", zap.Error(err))
		}
		store = repo.NewPostgres(pg)
	default:
		log.Warn("using in-memory store, state is lost on restart")
		store = repo.NewMemory()
	}

	gw, err := gateway.NewStripe(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	if err != nil {
		log.Fatal("stripe gateway", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewPayments(reg)

	// Kafka: deposit_settled e pedidos de reparo de ledger
	var pub settlement.Publisher
	if cfg.KafkaBrokers != "" {
		settledWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicDepositSettled)
		defer settledWriter.Close()
		repairWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicLedgerRepair)
		defer repairWriter.Close()
		pub = producer.NewKafkaPublisher(settledWriter, repairWriter)
	}

	// Redis é opcional: sem ele, só os guards do store deduplicam webhooks
	var dd webhook.Dedup
	rdb, err := sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
	switch {
	case err != nil:
		log.Warn("redis unavailable, webhook dedup cache disabled", zap.Error(err))
	case rdb != nil:
		defer rdb.Close()
		dd = dedup.NewRedisCache(rdb, cfg.WebhookDedupTTL)
	}

	orch, err := intent.New(intent.Config{PublishableKey: cfg.StripePublishableKey, TTL: cfg.DepositTTL}, store, gw, log)
	if err != nil {
		log.Fatal("intent orchestrator", zap.Error(err))
	}
	orch.OnIntent = func(outcome string) { m.Intents.WithLabelValues(outcome).Inc() }

	engine := settlement.New(store, pub, log)
	engine.OnAnomaly = m.Anomalies.Inc
	engine.OnLedgerFailure = m.LedgerFailures.Inc

	proc := webhook.New(gw, engine, dd, log)
	proc.OnEvent = func(eventType string, outcome webhook.Outcome) {
		m.WebhookEvents.WithLabelValues(eventType, string(outcome)).Inc()
	}

	api := phttp.NewServer(log, orch, proc, store, phttp.Options{
		MaxWebhookBytes: cfg.WebhookMaxBodyBytes,
		AllowedOrigins:  cfg.CORSAllowedOrigins,
	})

	// Servidor de métricas e health check
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, reg, store.Ping, func(err error) {
		log.Error("metrics srv", zap.Error(err))
	})
	log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))

	// Servidor HTTP público (depósitos + webhook)
	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("api listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("api srv", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	_ = apiSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("payments-service stopped")
}
