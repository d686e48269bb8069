package events

// LedgerRepairRequested é publicado quando a carteira foi liquidada mas a
// entrada de ledger não pôde ser gravada. Consumido pelo ledger-repair-worker.
type LedgerRepairRequested struct {
	TransactionID string            `json:"transaction_id"`
	UserID        string            `json:"user_id"`
	Kind          string            `json:"kind"`
	Status        string            `json:"status"`
	AmountMinor   int64             `json:"amount_minor"`
	Currency      string            `json:"currency"`
	ExternalRef   string            `json:"external_ref"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Reason        string            `json:"reason,omitempty"`
	TsUnixMs      int64             `json:"ts_unix_ms"`
}
