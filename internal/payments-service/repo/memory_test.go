package repo_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/radieske/freelance-wallet-payments/internal/payments-service/domain"
	"github.com/radieske/freelance-wallet-payments/internal/payments-service/repo"
)

func pendingDeposit(walletID, key string, amount int64) domain.Transaction {
	return domain.Transaction{
		ID:             uuid.NewString(),
		WalletID:       walletID,
		Kind:           domain.KindDeposit,
		Status:         domain.StatusPending,
		AmountMinor:    amount,
		Currency:       "USD",
		IdempotencyKey: key,
	}
}

func TestMemoryCreateTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("ok, concurrent creators with same key get the same row", func(t *testing.T) {
		m := repo.NewMemory()
		w, err := m.GetOrCreateWallet(ctx, "user-1", "USD")
		require.NoError(t, err)

		const n = 16
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			ids     = map[string]struct{}{}
			created int
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				stored, ok, err := m.CreateTransaction(ctx, pendingDeposit(w.ID, "abc", 5000))
				require.NoError(t, err)
				mu.Lock()
				defer mu.Unlock()
				ids[stored.ID] = struct{}{}
				if ok {
					created++
				}
			}()
		}
		wg.Wait()

		require.Len(t, ids, 1)
		require.Equal(t, 1, created)
	})

	t.Run("fail, unknown wallet", func(t *testing.T) {
		m := repo.NewMemory()
		_, _, err := m.CreateTransaction(ctx, pendingDeposit("nope", "k", 1))
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestMemoryCompleteDeposit(t *testing.T) {
	ctx := context.Background()
	m := repo.NewMemory()
	w, err := m.GetOrCreateWallet(ctx, "user-1", "USD")
	require.NoError(t, err)
	tx, _, err := m.CreateTransaction(ctx, pendingDeposit(w.ID, "abc", 5000))
	require.NoError(t, err)

	got, applied, err := m.CompleteDeposit(ctx, tx.ID, "succeeded")
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, domain.StatusCompleted, got.Status)

	_, applied, err = m.CompleteDeposit(ctx, tx.ID, "succeeded")
	require.NoError(t, err)
	require.False(t, applied)

	w, err = m.GetWallet(ctx, w.ID)
	require.NoError(t, err)
	require.Equal(t, int64(5000), w.BalanceMinor)
	require.Equal(t, int64(5000), w.TotalEarnedMinor)

	failed, _, err := m.CreateTransaction(ctx, pendingDeposit(w.ID, "def", 700))
	require.NoError(t, err)
	ok, err := m.TransitionStatus(ctx, failed.ID, domain.StatusFailed, "payment_failed", domain.StatusPending)
	require.NoError(t, err)
	require.True(t, ok)

	_, applied, err = m.CompleteDeposit(ctx, failed.ID, "succeeded")
	require.ErrorIs(t, err, domain.ErrStateAnomaly)
	require.False(t, applied)
}

func TestMemoryTransitionAndDispute(t *testing.T) {
	ctx := context.Background()
	m := repo.NewMemory()
	w, err := m.GetOrCreateWallet(ctx, "user-1", "USD")
	require.NoError(t, err)
	tx, _, err := m.CreateTransaction(ctx, pendingDeposit(w.ID, "abc", 5000))
	require.NoError(t, err)
	require.NoError(t, m.AttachExternalRef(ctx, tx.ID, "pi_1", "requires_payment_method"))
	require.ErrorIs(t, m.AttachExternalRef(ctx, tx.ID, "pi_2", "requires_payment_method"), domain.ErrConflict)

	_, _, err = m.CompleteDeposit(ctx, tx.ID, "")
	require.NoError(t, err)

	ok, err := m.TransitionStatus(ctx, tx.ID, domain.StatusExpired, "expired", domain.StatusPending)
	require.NoError(t, err)
	require.False(t, ok)

	n, err := m.MarkDisputedByExternalRef(ctx, []string{"ch_1", "pi_1"}, "dispute_created")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	got, err := m.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusDisputed, got.Status)

	n, err = m.MarkDisputedByExternalRef(ctx, []string{"pi_1"}, "dispute_created")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestMemoryAppendLedger(t *testing.T) {
	ctx := context.Background()
	m := repo.NewMemory()
	entry := domain.LedgerEntry{
		UserID:      "user-1",
		Kind:        domain.LedgerDeposit,
		Status:      domain.LedgerCompleted,
		AmountMinor: 5000,
		Currency:    "USD",
		ExternalRef: "pi_1",
	}

	inserted, err := m.AppendLedger(ctx, entry)
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = m.AppendLedger(ctx, entry)
	require.NoError(t, err)
	require.False(t, inserted)
	require.Len(t, m.Ledger(), 1)

	m.SetLedgerErr(errors.New("disk full"))
	_, err = m.AppendLedger(ctx, domain.LedgerEntry{ExternalRef: "pi_2", Kind: domain.LedgerDeposit, Status: domain.LedgerCompleted})
	require.ErrorIs(t, err, domain.ErrDependency)
}
