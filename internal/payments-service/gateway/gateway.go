package gateway

import "context"

// IntentParams descreve o intent a criar; IdempotencyKey é repassada ao
// gateway como chave de deduplicação própria dele.
type IntentParams struct {
	AmountMinor    int64
	Currency       string
	Description    string
	IdempotencyKey string
	Metadata       map[string]string
}

// Intent traz as credenciais que o cliente usa para concluir o pagamento.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
}

// Gateway é a capacidade síncrona consumida do provedor de pagamentos.
type Gateway interface {
	CreateOrRetrieveIntent(ctx context.Context, p IntentParams) (Intent, error)
	RetrieveIntent(ctx context.Context, id string) (Intent, error)
	// VerifySignature valida o corpo bruto antes de qualquer parsing de campos.
	VerifySignature(payload []byte, header string) (Event, error)
}
