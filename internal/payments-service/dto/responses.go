package dto

type DepositIntentResponse struct {
	ClientSecret    string `json:"client_secret"`
	PaymentIntentID string `json:"payment_intent_id"`
	PublishableKey  string `json:"publishable_key"`
}

type WalletResponse struct {
	UserID              string `json:"user_id"`
	WalletID            string `json:"wallet_id"`
	Currency            string `json:"currency"`
	Balance             string `json:"balance"` // decimal para exibição
	BalanceMinor        int64  `json:"balance_minor"`
	PendingMinor        int64  `json:"pending_balance_minor"`
	TotalEarnedMinor    int64  `json:"total_earned_minor"`
	TotalWithdrawnMinor int64  `json:"total_withdrawn_minor"`
}

type WebhookAck struct {
	Received bool `json:"received"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
