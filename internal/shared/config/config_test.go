package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/radieske/freelance-wallet-payments/internal/payments-service/domain"
	"github.com/radieske/freelance-wallet-payments/internal/shared/config"
)

func setupEnviron(t *testing.T, env map[string]string) {
	t.Helper()
	for k, v := range env {
		t.Setenv(k, v)
	}
}

func TestLoad(t *testing.T) {
	t.Run("ok, payments defaults", func(t *testing.T) {
		setupEnviron(t, map[string]string{
			"SERVICE_NAME":           config.ServicePayments,
			"STRIPE_SECRET_KEY":      "sk_test_1",
			"STRIPE_PUBLISHABLE_KEY": "pk_test_1",
			"STRIPE_WEBHOOK_SECRET":  "whsec_1",
			"DEPOSIT_TTL":            "15m",
			"CORS_ALLOWED_ORIGINS":   "https://a.example, https://b.example",
		})

		cfg := config.Load()
		require.NoError(t, cfg.Validate())
		require.Equal(t, "8084", cfg.HTTPPort)
		require.Equal(t, "9100", cfg.MetricsPort)
		require.Equal(t, 15*time.Minute, cfg.DepositTTL)
		require.Equal(t, 72*time.Hour, cfg.WebhookDedupTTL)
		require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
		require.Equal(t, "deposit_settled", cfg.TopicDepositSettled)
	})

	t.Run("ok, invalid numeric values fall back to defaults", func(t *testing.T) {
		setupEnviron(t, map[string]string{
			"LEDGER_REPAIR_RETRIES": "many",
			"DEPOSIT_TTL":           "soon",
		})

		cfg := config.Load()
		require.Equal(t, 3, cfg.LedgerRepairRetries)
		require.Equal(t, 20*time.Minute, cfg.DepositTTL)
	})

	t.Run("ok, worker ports ignore SERVICE_NAME", func(t *testing.T) {
		setupEnviron(t, map[string]string{"SERVICE_NAME": config.ServicePayments})

		cfg := config.LoadService(config.ServiceLedgerRepair)
		require.Equal(t, config.ServiceLedgerRepair, cfg.ServiceName)
		require.Equal(t, "9101", cfg.MetricsPort)
		require.Empty(t, cfg.HTTPPort)
		require.Equal(t, "ledger-repair", cfg.LedgerRepairGroupID)
	})
}

func TestValidate(t *testing.T) {
	valid := func() config.Config {
		return config.Config{
			ServiceName:          config.ServicePayments,
			StoreDriver:          config.StorePostgres,
			PostgresDSN:          "postgres://localhost/db",
			StripeSecretKey:      "sk_test_1",
			StripePublishableKey: "pk_test_1",
			StripeWebhookSecret:  "whsec_1",
			DepositTTL:           20 * time.Minute,
		}
	}

	t.Run("ok", func(t *testing.T) {
		require.NoError(t, valid().Validate())
	})

	t.Run("fail, missing gateway secrets", func(t *testing.T) {
		cfg := valid()
		cfg.StripeSecretKey = ""
		cfg.StripeWebhookSecret = " "

		err := cfg.Validate()
		require.ErrorIs(t, err, domain.ErrConfiguration)
		require.ErrorContains(t, err, "STRIPE_SECRET_KEY")
		require.ErrorContains(t, err, "STRIPE_WEBHOOK_SECRET")
	})

	t.Run("fail, unknown store driver", func(t *testing.T) {
		cfg := valid()
		cfg.StoreDriver = "mongo"
		require.ErrorIs(t, cfg.Validate(), domain.ErrConfiguration)
	})

	t.Run("fail, worker on memory store", func(t *testing.T) {
		cfg := valid()
		cfg.ServiceName = config.ServiceLedgerRepair
		cfg.StoreDriver = config.StoreMemory
		require.ErrorIs(t, cfg.Validate(), domain.ErrConfiguration)
	})

	t.Run("ok, worker does not need gateway keys", func(t *testing.T) {
		cfg := config.Config{
			ServiceName:       config.ServiceLedgerRepair,
			StoreDriver:       config.StorePostgres,
			PostgresDSN:       "postgres://localhost/db",
			KafkaBrokers:      "localhost:9092",
			TopicLedgerRepair: "ledger_repair_requested",
		}
		require.NoError(t, cfg.Validate())
	})
}
