package events

import "time"

// Evento emitido pelo payments-service quando um depósito é liquidado pela primeira vez.
type DepositSettled struct {
	TransactionID string    `json:"transaction_id"`
	WalletID      string    `json:"wallet_id"`
	UserID        string    `json:"user_id"`
	AmountMinor   int64     `json:"amount_minor"`
	Currency      string    `json:"currency"`
	ExternalRef   string    `json:"external_ref"` // payment intent no gateway
	EventID       string    `json:"event_id"`     // evento de webhook que liquidou
	SettledAt     time.Time `json:"settled_at"`
}
