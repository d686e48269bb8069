package domain

import "time"

// Wallet é a carteira do usuário; saldos em unidades menores da moeda.
type Wallet struct {
	ID                  string
	UserID              string
	BalanceMinor        int64
	PendingMinor        int64
	TotalEarnedMinor    int64
	TotalWithdrawnMinor int64
	Currency            string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NewWallet cria uma carteira zerada na moeda pedida.
func NewWallet(id, userID, currency string, now time.Time) Wallet {
	return Wallet{
		ID:        id,
		UserID:    userID,
		Currency:  currency,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
