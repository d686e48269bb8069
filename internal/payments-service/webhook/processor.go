package webhook

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/radieske/freelance-wallet-payments/internal/payments-service/domain"
	"github.com/radieske/freelance-wallet-payments/internal/payments-service/gateway"
	"github.com/radieske/freelance-wallet-payments/internal/payments-service/settlement"
	"github.com/radieske/freelance-wallet-payments/internal/shared/logger"
)

type Verifier interface {
	VerifySignature(payload []byte, header string) (gateway.Event, error)
}

// Settler aplica as transições de estado; implementado por settlement.Engine.
type Settler interface {
	CompleteDeposit(ctx context.Context, p settlement.CompletedPayment) (settlement.Outcome, error)
	MarkExpired(ctx context.Context, txID string) (settlement.Outcome, error)
	MarkFailed(ctx context.Context, txID string) (settlement.Outcome, error)
	MarkDisputed(ctx context.Context, refs ...string) (settlement.Outcome, error)
	MarkTransferFailed(ctx context.Context, txID, failureCode string) (settlement.Outcome, error)
}

// Dedup lembra eventos já processados (Redis). Opcional.
type Dedup interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Remember(ctx context.Context, eventID string) (bool, error)
}

type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate" // já visto pelo cache
	OutcomeNoop      Outcome = "noop"      // guard de status barrou
	OutcomeIgnored   Outcome = "ignored"   // tipo não tratado
	OutcomeAnomaly   Outcome = "anomaly"
	OutcomeRejected  Outcome = "rejected" // assinatura ou payload inválido
	OutcomeError     Outcome = "error"
)

// Result é devolvido para todo evento autenticado, tratado ou não.
type Result struct {
	EventID string
	Type    string
	Outcome Outcome
}

type Processor struct {
	verifier Verifier
	settler  Settler
	dedup    Dedup
	log      *zap.Logger
	security *zap.Logger

	OnEvent func(eventType string, outcome Outcome) // métricas
}

func New(v Verifier, s Settler, d Dedup, log *zap.Logger) *Processor {
	return &Processor{
		verifier: v,
		settler:  s,
		dedup:    d,
		log:      log,
		security: logger.Security(log),
	}
}

// HandleWebhook autentica o corpo bruto antes de qualquer parsing e só então
// despacha pelo tipo do evento. Erro só quando o gateway deve reenviar
// (dependência) ou quando o pedido é inválido; no-ops e anomalias são ack.
func (p *Processor) HandleWebhook(ctx context.Context, raw []byte, signature string) (Result, error) {
	ev, err := p.verifier.VerifySignature(raw, signature)
	if err != nil {
		if errors.Is(err, domain.ErrAuthentication) {
			p.security.Warn("webhook signature rejected",
				zap.Int("bodyBytes", len(raw)),
				zap.Bool("headerPresent", signature != ""),
				zap.Error(err),
			)
		} else {
			p.log.Warn("webhook payload rejected", zap.String("eventId", ev.ID), zap.Error(err))
		}
		p.observe("unverified", OutcomeRejected)
		return Result{EventID: ev.ID, Type: ev.Type, Outcome: OutcomeRejected}, err
	}

	res := Result{EventID: ev.ID, Type: ev.Type}
	if p.seen(ctx, ev.ID) {
		res.Outcome = OutcomeDuplicate
		p.log.Info("webhook event already processed", zap.String("eventId", ev.ID), zap.String("type", ev.Type))
		p.observe(ev.Type, res.Outcome)
		return res, nil
	}

	res.Outcome, err = p.dispatch(ctx, ev)
	if err != nil {
		res.Outcome = OutcomeError
		p.log.Error("webhook event failed",
			zap.String("eventId", ev.ID),
			zap.String("type", ev.Type),
			zap.Error(err),
		)
		p.observe(ev.Type, res.Outcome)
		return res, err
	}

	p.remember(ctx, ev.ID)
	p.log.Info("webhook event handled",
		zap.String("eventId", ev.ID),
		zap.String("type", ev.Type),
		zap.String("outcome", string(res.Outcome)),
	)
	p.observe(ev.Type, res.Outcome)
	return res, nil
}

func (p *Processor) dispatch(ctx context.Context, ev gateway.Event) (Outcome, error) {
	txID := ev.MetadataValue("transaction_id")

	switch ev.Type {
	case gateway.EventCheckoutCompleted, gateway.EventPaymentSucceeded:
		if txID == "" {
			return "", domain.Invalid("event %s without transaction_id metadata", ev.ID)
		}
		pay := settlement.CompletedPayment{
			TransactionID:  txID,
			UserID:         ev.MetadataValue("user_id"),
			WalletID:       ev.MetadataValue("wallet_id"),
			ExternalRef:    ev.PaymentIntentID,
			EventID:        ev.ID,
			ExternalStatus: ev.Status,
		}
		if ev.Type == gateway.EventCheckoutCompleted {
			pay.SessionID = ev.ObjectID
		}
		out, err := p.settler.CompleteDeposit(ctx, pay)
		if errors.Is(err, domain.ErrStateAnomaly) {
			return OutcomeAnomaly, nil
		}
		return fromSettlement(out), err

	case gateway.EventCheckoutExpired:
		return p.byTransaction(ctx, txID, p.settler.MarkExpired)

	case gateway.EventPaymentFailed:
		return p.byTransaction(ctx, txID, p.settler.MarkFailed)

	case gateway.EventChargeDisputeCreated:
		out, err := p.settler.MarkDisputed(ctx, ev.ChargeID, ev.PaymentIntentID)
		return fromSettlement(out), err

	case gateway.EventTransferFailed:
		return p.byTransaction(ctx, txID, func(ctx context.Context, id string) (settlement.Outcome, error) {
			return p.settler.MarkTransferFailed(ctx, id, ev.FailureCode)
		})
	}

	return OutcomeIgnored, nil
}

// byTransaction trata eventos sem transaction_id como no-op.
func (p *Processor) byTransaction(ctx context.Context, txID string, fn func(context.Context, string) (settlement.Outcome, error)) (Outcome, error) {
	if txID == "" {
		return OutcomeNoop, nil
	}
	out, err := fn(ctx, txID)
	return fromSettlement(out), err
}

func fromSettlement(o settlement.Outcome) Outcome {
	if o == settlement.OutcomeApplied {
		return OutcomeApplied
	}
	return OutcomeNoop
}

// seen e remember nunca falham o webhook: Redis fora do ar só desliga o atalho.
func (p *Processor) seen(ctx context.Context, eventID string) bool {
	if p.dedup == nil || eventID == "" {
		return false
	}
	ok, err := p.dedup.Seen(ctx, eventID)
	if err != nil {
		p.log.Warn("dedup lookup failed", zap.String("eventId", eventID), zap.Error(err))
		return false
	}
	return ok
}

func (p *Processor) remember(ctx context.Context, eventID string) {
	if p.dedup == nil || eventID == "" {
		return
	}
	if _, err := p.dedup.Remember(ctx, eventID); err != nil {
		p.log.Warn("dedup remember failed", zap.String("eventId", eventID), zap.Error(err))
	}
}

func (p *Processor) observe(eventType string, outcome Outcome) {
	if p.OnEvent == nil {
		return
	}
	if outcome == OutcomeIgnored {
		eventType = "other" // tipos desconhecidos não viram label
	}
	p.OnEvent(eventType, outcome)
}
