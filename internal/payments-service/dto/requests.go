package dto

import "github.com/shopspring/decimal"

// DepositIntentRequest aceita amount como número (50.00) ou string ("50.00").
type DepositIntentRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	IdempotencyKey string          `json:"idempotency_key"`
}
