package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/freelance-wallet-payments/internal/payments-service/domain"
	"github.com/radieske/freelance-wallet-payments/internal/payments-service/gateway"
)

// Store é o subconjunto do repo usado na emissão de intents.
type Store interface {
	GetOrCreateWallet(ctx context.Context, userID, currency string) (domain.Wallet, error)
	GetTransaction(ctx context.Context, id string) (domain.Transaction, error)
	GetTransactionByIdempotencyKey(ctx context.Context, key string) (domain.Transaction, error)
	CreateTransaction(ctx context.Context, t domain.Transaction) (domain.Transaction, bool, error)
	AttachExternalRef(ctx context.Context, id, externalRef, externalStatus string) error
}

type Config struct {
	PublishableKey string
	TTL            time.Duration
}

// Request chega já em unidades menores; a conversão decimal fica no HTTP.
type Request struct {
	UserID         string
	AmountMinor    int64
	Currency       string
	IdempotencyKey string
}

// Credentials é o que o cliente precisa para concluir o pagamento.
type Credentials struct {
	ClientSecret    string
	PaymentIntentID string
	PublishableKey  string
	TransactionID   string
}

const (
	OutcomeCreated  = "created"
	OutcomeReplayed = "replayed"
	OutcomeRejected = "rejected"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

const maxIdempotencyKeyLen = 255

type Orchestrator struct {
	cfg   Config
	store Store
	gw    gateway.Gateway
	log   *zap.Logger
	now   func() time.Time

	OnIntent func(outcome string) // métricas
}

// New valida a configuração antes de qualquer request.
func New(cfg Config, store Store, gw gateway.Gateway, log *zap.Logger) (*Orchestrator, error) {
	if strings.TrimSpace(cfg.PublishableKey) == "" {
		return nil, fmt.Errorf("%w: publishable key is empty", domain.ErrConfiguration)
	}
	if gw == nil || store == nil {
		return nil, fmt.Errorf("%w: gateway and store are required", domain.ErrConfiguration)
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 20 * time.Minute
	}
	return &Orchestrator{
		cfg:   cfg,
		store: store,
		gw:    gw,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

// RequestDeposit emite (ou recupera) o payment intent de um depósito.
//
// A Transaction é criada como pending antes de falar com o gateway, e a mesma
// idempotency key vai para o gateway: N chamadas concorrentes com a mesma
// chave resultam em uma linha e um intent.
func (o *Orchestrator) RequestDeposit(ctx context.Context, req Request) (Credentials, error) {
	creds, replayed, err := o.requestDeposit(ctx, req)
	o.observe(replayed, err)
	return creds, err
}

func (o *Orchestrator) requestDeposit(ctx context.Context, req Request) (Credentials, bool, error) {
	cur, err := validate(&req)
	if err != nil {
		return Credentials{}, false, err
	}

	w, err := o.store.GetOrCreateWallet(ctx, req.UserID, cur)
	if err != nil {
		return Credentials{}, false, err
	}
	if w.Currency != cur {
		return Credentials{}, false, domain.Invalid("wallet currency is %s", w.Currency)
	}

	t, err := o.store.GetTransactionByIdempotencyKey(ctx, req.IdempotencyKey)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		t, _, err = o.store.CreateTransaction(ctx, o.newDeposit(w, req.AmountMinor, cur, req.IdempotencyKey))
		if err != nil {
			return Credentials{}, false, err
		}
	case err != nil:
		return Credentials{}, false, err
	}

	if !t.SameRequest(w.ID, req.AmountMinor, cur) {
		return Credentials{}, false, domain.Invalid("idempotency key reused with different parameters")
	}

	if t.HasExternalRef() {
		in, err := o.gw.RetrieveIntent(ctx, t.ExternalRef)
		if err != nil {
			return Credentials{}, false, err
		}
		return o.credentials(t, in), true, nil
	}

	in, err := o.gw.CreateOrRetrieveIntent(ctx, gateway.IntentParams{
		AmountMinor:    t.AmountMinor,
		Currency:       t.Currency,
		Description:    t.Description,
		IdempotencyKey: t.IdempotencyKey,
		Metadata: map[string]string{
			"user_id":        req.UserID,
			"wallet_id":      w.ID,
			"transaction_id": t.ID,
			"currency":       t.Currency,
		},
	})
	if err != nil {
		// a Transaction fica pending até expirar
		o.log.Warn("gateway create intent",
			zap.String("transactionId", t.ID),
			zap.String("idempotencyKey", t.IdempotencyKey),
			zap.Error(err),
		)
		return Credentials{}, false, err
	}

	if err := o.store.AttachExternalRef(ctx, t.ID, in.ID, in.Status); err != nil {
		if !errors.Is(err, domain.ErrConflict) {
			return Credentials{}, false, err
		}
		// outra chamada gravou antes; vale o que está no store
		stored, gerr := o.store.GetTransaction(ctx, t.ID)
		if gerr != nil {
			return Credentials{}, false, gerr
		}
		if stored.ExternalRef != in.ID {
			o.log.Warn("external ref differs from stored",
				zap.String("transactionId", t.ID),
				zap.String("stored", stored.ExternalRef),
				zap.String("gateway", in.ID),
			)
			if in, err = o.gw.RetrieveIntent(ctx, stored.ExternalRef); err != nil {
				return Credentials{}, false, err
			}
		}
		return o.credentials(stored, in), true, nil
	}

	o.log.Info("deposit intent issued",
		zap.String("transactionId", t.ID),
		zap.String("paymentIntentId", in.ID),
		zap.Int64("amountMinor", t.AmountMinor),
		zap.String("currency", t.Currency),
	)
	return o.credentials(t, in), false, nil
}

func (o *Orchestrator) newDeposit(w domain.Wallet, amountMinor int64, cur, key string) domain.Transaction {
	return domain.Transaction{
		ID:             uuid.NewString(),
		WalletID:       w.ID,
		Kind:           domain.KindDeposit,
		Status:         domain.StatusPending,
		AmountMinor:    amountMinor,
		Currency:       cur,
		Description:    fmt.Sprintf("Wallet deposit %s %s", domain.DisplayAmount(amountMinor, cur), cur),
		ReferenceType:  string(domain.KindDeposit),
		Provider:       domain.ProviderStripe,
		IdempotencyKey: key,
		ExpiresAt:      o.now().Add(o.cfg.TTL),
	}
}

func (o *Orchestrator) credentials(t domain.Transaction, in gateway.Intent) Credentials {
	return Credentials{
		ClientSecret:    in.ClientSecret,
		PaymentIntentID: in.ID,
		PublishableKey:  o.cfg.PublishableKey,
		TransactionID:   t.ID,
	}
}

func (o *Orchestrator) observe(replayed bool, err error) {
	if o.OnIntent == nil {
		return
	}
	switch {
	case err == nil && replayed:
		o.OnIntent(OutcomeReplayed)
	case err == nil:
		o.OnIntent(OutcomeCreated)
	case errors.Is(err, domain.ErrGatewayRejected):
		o.OnIntent(OutcomeRejected)
	case errors.Is(err, domain.ErrValidation):
		o.OnIntent(OutcomeInvalid)
	default:
		o.OnIntent(OutcomeError)
	}
}

func validate(req *Request) (string, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return "", domain.Invalid("user id is required")
	}
	// a chave é opaca: validada, nunca normalizada
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		return "", domain.Invalid("idempotency_key is required")
	}
	if len(req.IdempotencyKey) > maxIdempotencyKeyLen {
		return "", domain.Invalid("idempotency_key longer than %d characters", maxIdempotencyKeyLen)
	}
	if req.AmountMinor <= 0 {
		return "", domain.Invalid("amount must be positive")
	}
	if req.AmountMinor > domain.MaxAmountMinor {
		return "", domain.Invalid("amount exceeds maximum")
	}
	cur, _, err := domain.ParseCurrency(req.Currency)
	return cur, err
}
