package topics

const (
	// Depósitos
	DepositSettled = "deposit_settled"

	// Ledger
	LedgerRepairRequested = "ledger_repair_requested"

	// DLQs
	LedgerRepairRequestedDLQ = "ledger_repair_requested_dlq"
)
