package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/freelance-wallet-payments/internal/ledger-repair/consumer"
	"github.com/radieske/freelance-wallet-payments/internal/payments-service/repo"
	"github.com/radieske/freelance-wallet-payments/internal/payments-service/settlement"
	"github.com/radieske/freelance-wallet-payments/internal/shared/config"
	"github.com/radieske/freelance-wallet-payments/internal/shared/db"
	"github.com/radieske/freelance-wallet-payments/internal/shared/kafka"
	"github.com/radieske/freelance-wallet-payments/internal/shared/logger"
	"github.com/radieske/freelance-wallet-payments/internal/shared/metrics"
)

func main() {
	cfg := config.LoadService(config.ServiceLedgerRepair)

	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Conexão com Postgres onde o ledger é regravado
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()
	if err := db.Migrate(ctx, pg); err != nil {
		log.Fatal("pg migrate", zap.Error(err))
	}
	store := repo.NewPostgres(pg)

	// Kafka consumer (commit manual) e DLQ
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicLedgerRepair, cfg.LedgerRepairGroupID)
	defer reader.Close()

	var dlq kafka.MessageWriter
	if cfg.TopicLedgerRepairDLQ != "" {
		w := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicLedgerRepairDLQ)
		defer w.Close()
		dlq = w
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewLedgerRepair(reg)
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, reg, store.Ping, func(err error) {
		log.Error("metrics srv", zap.Error(err))
	})
	log.Info("metrics/health", zap.String("addr", metricsSrv.Addr))

	proc := &consumer.Processor{
		Log:        log,
		Reader:     reader,
		Repairer:   settlement.New(store, nil, log),
		DLQ:        dlq,
		Retries:    cfg.LedgerRepairRetries,
		Backoff:    cfg.LedgerRepairBackoff,
		OnConsumed: m.Consumed.Inc,
		OnRepaired: m.Repaired.Inc,
		OnError:    func(stage string) { m.Errors.WithLabelValues(stage).Inc() },
	}

	log.Info("ledger-repair-worker started",
		zap.String("consume", cfg.TopicLedgerRepair),
		zap.String("dlq", cfg.TopicLedgerRepairDLQ),
	)
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("processor stopped with error", zap.Error(err))
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("ledger-repair-worker stopped")
}
