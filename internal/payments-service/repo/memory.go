package repo

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/freelance-wallet-payments/internal/payments-service/domain"
)

// Memory implementa o Store em memória, com o mesmo contrato do Postgres.
// Usado em testes e em execução local com STORE_DRIVER=memory.
type Memory struct {
	mu sync.Mutex

	wallets      map[string]domain.Wallet // por id
	walletByUser map[string]string
	txs          map[string]domain.Transaction // por id
	txByKey      map[string]string
	ledger       []domain.LedgerEntry

	ledgerErr error // força falha no AppendLedger

	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		wallets:      map[string]domain.Wallet{},
		walletByUser: map[string]string{},
		txs:          map[string]domain.Transaction{},
		txByKey:      map[string]string{},
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) GetWallet(_ context.Context, id string) (domain.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[id]
	if !ok {
		return domain.Wallet{}, fmt.Errorf("get wallet: %w", domain.ErrNotFound)
	}
	return w, nil
}

func (m *Memory) GetWalletByUserID(_ context.Context, userID string) (domain.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.walletByUser[userID]
	if !ok {
		return domain.Wallet{}, fmt.Errorf("get wallet by user: %w", domain.ErrNotFound)
	}
	return m.wallets[id], nil
}

func (m *Memory) GetOrCreateWallet(_ context.Context, userID, currency string) (domain.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.walletByUser[userID]; ok {
		return m.wallets[id], nil
	}
	w := domain.NewWallet(uuid.NewString(), userID, currency, m.now())
	m.wallets[w.ID] = w
	m.walletByUser[userID] = w.ID
	return w, nil
}

func (m *Memory) GetTransaction(_ context.Context, id string) (domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txs[id]
	if !ok {
		return domain.Transaction{}, fmt.Errorf("get transaction: %w", domain.ErrNotFound)
	}
	return t, nil
}

func (m *Memory) GetTransactionByIdempotencyKey(_ context.Context, key string) (domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.txByKey[key]
	if !ok {
		return domain.Transaction{}, fmt.Errorf("get transaction by key: %w", domain.ErrNotFound)
	}
	return m.txs[id], nil
}

func (m *Memory) CreateTransaction(_ context.Context, t domain.Transaction) (domain.Transaction, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.txByKey[t.IdempotencyKey]; ok {
		return m.txs[id], false, nil
	}
	if _, ok := m.wallets[t.WalletID]; !ok {
		return domain.Transaction{}, false, fmt.Errorf("create transaction: wallet %s: %w", t.WalletID, domain.ErrNotFound)
	}
	now := m.now()
	t.CreatedAt, t.UpdatedAt = now, now
	m.txs[t.ID] = t
	m.txByKey[t.IdempotencyKey] = t.ID
	return t, true, nil
}

func (m *Memory) AttachExternalRef(_ context.Context, id, externalRef, externalStatus string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txs[id]
	if !ok || (t.ExternalRef != "" && t.ExternalRef != externalRef) {
		return fmt.Errorf("attach external ref %s: %w", id, domain.ErrConflict)
	}
	t.ExternalRef, t.ExternalStatus, t.UpdatedAt = externalRef, externalStatus, m.now()
	m.txs[id] = t
	return nil
}

func (m *Memory) CompleteDeposit(_ context.Context, id, externalStatus string) (domain.Transaction, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.txs[id]
	if !ok {
		return domain.Transaction{}, false, fmt.Errorf("complete deposit: %w", domain.ErrNotFound)
	}
	switch {
	case t.Status.IsSettled():
		return t, false, nil
	case t.Status.IsRejected():
		return t, false, fmt.Errorf("complete deposit %s in status %s: %w", t.ID, t.Status, domain.ErrStateAnomaly)
	case t.Kind != domain.KindDeposit:
		return t, false, fmt.Errorf("complete deposit %s of kind %s: %w", t.ID, t.Kind, domain.ErrStateAnomaly)
	}
	w, ok := m.wallets[t.WalletID]
	if !ok {
		return domain.Transaction{}, false, fmt.Errorf("complete deposit: wallet %s: %w", t.WalletID, domain.ErrNotFound)
	}

	now := m.now()
	w.BalanceMinor += t.AmountMinor
	w.TotalEarnedMinor += t.AmountMinor
	w.UpdatedAt = now
	t.Status = domain.StatusCompleted
	if externalStatus != "" {
		t.ExternalStatus = externalStatus
	}
	t.UpdatedAt = now

	m.wallets[w.ID] = w
	m.txs[t.ID] = t
	return t, true, nil
}

func (m *Memory) TransitionStatus(_ context.Context, id string, to domain.Status, externalStatus string, from ...domain.Status) (bool, error) {
	if len(from) == 0 {
		return false, domain.Invalid("transition to %s without source status", to)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txs[id]
	if !ok || !slices.Contains(from, t.Status) {
		return false, nil
	}
	t.Status = to
	if externalStatus != "" {
		t.ExternalStatus = externalStatus
	}
	t.UpdatedAt = m.now()
	m.txs[id] = t
	return true, nil
}

func (m *Memory) MarkDisputedByExternalRef(_ context.Context, refs []string, externalStatus string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, t := range m.txs {
		if t.ExternalRef == "" || !slices.Contains(refs, t.ExternalRef) || !slices.Contains(disputable, t.Status) {
			continue
		}
		t.Status = domain.StatusDisputed
		t.ExternalStatus = externalStatus
		t.UpdatedAt = m.now()
		m.txs[id] = t
		n++
	}
	return n, nil
}

func (m *Memory) AppendLedger(_ context.Context, e domain.LedgerEntry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ledgerErr != nil {
		return false, domain.Dependency("append ledger", m.ledgerErr)
	}
	if e.Kind == domain.LedgerDeposit && e.Status == domain.LedgerCompleted {
		for _, existing := range m.ledger {
			if existing.Kind == e.Kind && existing.Status == e.Status && existing.ExternalRef == e.ExternalRef {
				return false, nil
			}
		}
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = m.now()
	m.ledger = append(m.ledger, e)
	return true, nil
}

// Ledger devolve uma cópia das entradas gravadas.
func (m *Memory) Ledger() []domain.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.ledger)
}

// SetLedgerErr força (ou limpa, com nil) a falha do AppendLedger.
func (m *Memory) SetLedgerErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledgerErr = err
}
