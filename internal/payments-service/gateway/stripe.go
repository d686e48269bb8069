package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/radieske/freelance-wallet-payments/internal/payments-service/domain"
)

// SignatureHeader é o header em que o Stripe envia a assinatura do webhook.
const SignatureHeader = "Stripe-Signature"

// Stripe implementa Gateway sobre o SDK oficial.
type Stripe struct {
	api           *client.API
	webhookSecret string
	tolerance     time.Duration
}

// NewStripe falha com ErrConfiguration se faltar chave ou segredo de webhook.
func NewStripe(secretKey, webhookSecret string) (*Stripe, error) {
	if strings.TrimSpace(secretKey) == "" {
		return nil, fmt.Errorf("%w: stripe secret key is empty", domain.ErrConfiguration)
	}
	if strings.TrimSpace(webhookSecret) == "" {
		return nil, fmt.Errorf("%w: stripe webhook secret is empty", domain.ErrConfiguration)
	}
	return &Stripe{
		api:           client.New(secretKey, nil),
		webhookSecret: webhookSecret,
		tolerance:     webhook.DefaultTolerance,
	}, nil
}

func (s *Stripe) CreateOrRetrieveIntent(ctx context.Context, p IntentParams) (Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(p.AmountMinor),
		Currency: stripe.String(strings.ToLower(p.Currency)),
	}
	if p.Description != "" {
		params.Description = stripe.String(p.Description)
	}
	params.Context = ctx
	params.SetIdempotencyKey(p.IdempotencyKey)
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return Intent{}, classify("create payment intent", err)
	}
	return toIntent(pi), nil
}

func (s *Stripe) RetrieveIntent(ctx context.Context, id string) (Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := s.api.PaymentIntents.Get(id, params)
	if err != nil {
		return Intent{}, classify("retrieve payment intent", err)
	}
	return toIntent(pi), nil
}

func (s *Stripe) VerifySignature(payload []byte, header string) (Event, error) {
	return verify(payload, header, s.webhookSecret, s.tolerance)
}

func toIntent(pi *stripe.PaymentIntent) Intent {
	return Intent{ID: pi.ID, ClientSecret: pi.ClientSecret, Status: string(pi.Status)}
}

// classify separa recusa do gateway (erro de cliente) de indisponibilidade.
func classify(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		switch se.Type {
		case stripe.ErrorTypeCard, stripe.ErrorTypeInvalidRequest, stripe.ErrorTypeIdempotency:
			return fmt.Errorf("%s: %w: %s", op, domain.ErrGatewayRejected, se.Msg)
		}
	}
	return domain.Dependency(op, err)
}

// verify autentica o corpo bruto e só então decodifica o evento.
func verify(payload []byte, header, secret string, tolerance time.Duration) (Event, error) {
	if strings.TrimSpace(header) == "" {
		return Event{}, fmt.Errorf("%w: missing %s header", domain.ErrAuthentication, SignatureHeader)
	}

	ev, err := webhook.ConstructEventWithOptions(payload, header, secret, webhook.ConstructEventOptions{
		Tolerance:                tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		switch {
		case errors.Is(err, webhook.ErrNotSigned),
			errors.Is(err, webhook.ErrInvalidHeader),
			errors.Is(err, webhook.ErrNoValidSignature),
			errors.Is(err, webhook.ErrTooOld):
			return Event{}, fmt.Errorf("%w: %v", domain.ErrAuthentication, err)
		}
		// assinatura válida, corpo malformado
		return Event{}, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	if ev.Data == nil {
		return Event{ID: ev.ID, Type: string(ev.Type)}, fmt.Errorf("%w: event %s without data", domain.ErrValidation, ev.ID)
	}
	return decodeEvent(ev.ID, string(ev.Type), ev.Data.Raw)
}
