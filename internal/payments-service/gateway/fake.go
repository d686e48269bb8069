package gateway

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/radieske/freelance-wallet-payments/internal/payments-service/domain"
)

// Fake é um gateway em memória que deduplica por idempotency key como o
// Stripe e verifica assinaturas no mesmo formato do header Stripe-Signature.
type Fake struct {
	mu      sync.Mutex
	secret  string
	intents map[string]Intent
	byKey   map[string]string
	params  map[string]IntentParams
	created int

	// CreateErr, quando definido, é devolvido por CreateOrRetrieveIntent.
	CreateErr error
}

func NewFake(webhookSecret string) *Fake {
	return &Fake{
		secret:  webhookSecret,
		intents: map[string]Intent{},
		byKey:   map[string]string{},
		params:  map[string]IntentParams{},
	}
}

func (f *Fake) CreateOrRetrieveIntent(_ context.Context, p IntentParams) (Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return Intent{}, f.CreateErr
	}
	if id, ok := f.byKey[p.IdempotencyKey]; ok {
		prev := f.params[id]
		if prev.AmountMinor != p.AmountMinor || prev.Currency != p.Currency {
			return Intent{}, fmt.Errorf("create payment intent: %w: idempotency key reused", domain.ErrGatewayRejected)
		}
		return f.intents[id], nil
	}

	f.created++
	id := fmt.Sprintf("pi_fake_%d", f.created)
	in := Intent{ID: id, ClientSecret: id + "_secret_" + strconv.Itoa(f.created), Status: "requires_payment_method"}
	f.intents[id] = in
	f.byKey[p.IdempotencyKey] = id
	f.params[id] = p
	return in, nil
}

func (f *Fake) RetrieveIntent(_ context.Context, id string) (Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	in, ok := f.intents[id]
	if !ok {
		return Intent{}, fmt.Errorf("retrieve payment intent %s: %w", id, domain.ErrGatewayRejected)
	}
	return in, nil
}

func (f *Fake) VerifySignature(payload []byte, header string) (Event, error) {
	return verify(payload, header, f.secret, webhook.DefaultTolerance)
}

// IntentsCreated conta intents realmente criados (replays não contam).
func (f *Fake) IntentsCreated() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

// Metadata devolve os metadados enviados na criação do intent.
func (f *Fake) Metadata(intentID string) map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.params[intentID].Metadata
}

// SetStatus simula o avanço do intent no gateway.
func (f *Fake) SetStatus(intentID, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	in := f.intents[intentID]
	in.Status = status
	f.intents[intentID] = in
}

// Sign gera um header Stripe-Signature válido para o payload.
func (f *Fake) Sign(payload []byte) string {
	return SignPayload(payload, f.secret, time.Now())
}

// SignPayload monta o header Stripe-Signature (esquema v1) para o instante ts.
func SignPayload(payload []byte, secret string, ts time.Time) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: ts,
	}).Header
}
