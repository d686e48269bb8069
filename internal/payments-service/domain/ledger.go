package domain

import "time"

type LedgerKind string

const LedgerDeposit LedgerKind = "deposit"

type LedgerStatus string

const LedgerCompleted LedgerStatus = "completed"

// LedgerEntry é append-only; nunca é alterada nem apagada.
// Para (ExternalRef, deposit, completed) existe no máximo uma entrada.
type LedgerEntry struct {
	ID          string
	UserID      string
	Kind        LedgerKind
	Status      LedgerStatus
	AmountMinor int64
	Currency    string
	ExternalRef string
	Metadata    map[string]string
	CreatedAt   time.Time
}
