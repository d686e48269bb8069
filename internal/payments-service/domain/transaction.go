package domain

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusExpired    Status = "expired"
	StatusDisputed   Status = "disputed"
)

// IsTerminal indica se o fluxo de depósito terminou para este status.
// completed ainda aceita a transição para disputed.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusExpired, StatusDisputed:
		return true
	}
	return false
}

// IsSettled indica que o efeito econômico já foi aplicado à carteira.
func (s Status) IsSettled() bool {
	return s == StatusCompleted || s == StatusDisputed
}

// IsRejected indica um terminal negativo que nunca pode virar sucesso.
func (s Status) IsRejected() bool {
	return s == StatusFailed || s == StatusCancelled
}

type Kind string

const (
	KindDeposit    Kind = "deposit"
	KindWithdrawal Kind = "withdrawal"
)

const ProviderStripe = "stripe"

// Transaction é uma tentativa de depósito, única por IdempotencyKey.
type Transaction struct {
	ID             string
	WalletID       string
	Kind           Kind
	Status         Status
	AmountMinor    int64
	Currency       string
	Description    string
	ReferenceType  string
	Provider       string
	ExternalRef    string // id do payment intent; vazio até o gateway responder
	ExternalStatus string
	IdempotencyKey string
	ExpiresAt      time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (t Transaction) HasExternalRef() bool { return t.ExternalRef != "" }

// SameRequest compara os parâmetros econômicos de duas tentativas com a mesma chave.
func (t Transaction) SameRequest(walletID string, amountMinor int64, currency string) bool {
	return t.WalletID == walletID && t.AmountMinor == amountMinor && t.Currency == currency
}
