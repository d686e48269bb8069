package domain_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/radieske/freelance-wallet-payments/internal/payments-service/domain"
)

func TestToMinor(t *testing.T) {
	t.Run("ok, two decimal currency", func(t *testing.T) {
		minor, cur, err := domain.ToMinor(decimal.RequireFromString("50.00"), "usd")
		require.NoError(t, err)
		require.Equal(t, int64(5000), minor)
		require.Equal(t, "USD", cur)
	})

	t.Run("ok, zero decimal currency", func(t *testing.T) {
		minor, cur, err := domain.ToMinor(decimal.RequireFromString("1500"), "JPY")
		require.NoError(t, err)
		require.Equal(t, int64(1500), minor)
		require.Equal(t, "JPY", cur)
	})

	t.Run("fail, too many decimal places", func(t *testing.T) {
		_, _, err := domain.ToMinor(decimal.RequireFromString("10.005"), "USD")
		require.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("fail, non positive", func(t *testing.T) {
		for _, v := range []string{"0", "-1.00"} {
			_, _, err := domain.ToMinor(decimal.RequireFromString(v), "USD")
			require.ErrorIs(t, err, domain.ErrValidation)
		}
	})

	t.Run("fail, unknown currency", func(t *testing.T) {
		_, _, err := domain.ToMinor(decimal.RequireFromString("1"), "ZZZ")
		require.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("fail, above maximum", func(t *testing.T) {
		_, _, err := domain.ToMinor(decimal.RequireFromString("1000000.00"), "USD")
		require.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("fail, huge exponent returns promptly", func(t *testing.T) {
		for _, v := range []string{"1e2000000000", "1e-2000000000", "1e19"} {
			done := make(chan error, 1)
			go func() {
				_, _, err := domain.ToMinor(decimal.RequireFromString(v), "USD")
				done <- err
			}()
			select {
			case err := <-done:
				require.ErrorIs(t, err, domain.ErrValidation, v)
			case <-time.After(2 * time.Second):
				t.Fatalf("ToMinor(%s) did not return", v)
			}
		}
	})
}

func TestDisplayAmount(t *testing.T) {
	require.Equal(t, "50.00", domain.DisplayAmount(5000, "USD"))
	require.Equal(t, "1500", domain.DisplayAmount(1500, "JPY"))
	require.True(t, decimal.RequireFromString("12.34").Equal(domain.FromMinor(1234, "EUR")))
}
