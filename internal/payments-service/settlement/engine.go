package settlement

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/freelance-wallet-payments/internal/payments-service/domain"
	"github.com/radieske/freelance-wallet-payments/pkg/contracts/events"
)

// Store é o subconjunto do repo usado na liquidação.
type Store interface {
	GetWallet(ctx context.Context, id string) (domain.Wallet, error)
	CompleteDeposit(ctx context.Context, id, externalStatus string) (domain.Transaction, bool, error)
	TransitionStatus(ctx context.Context, id string, to domain.Status, externalStatus string, from ...domain.Status) (bool, error)
	MarkDisputedByExternalRef(ctx context.Context, refs []string, externalStatus string) (int64, error)
	AppendLedger(ctx context.Context, e domain.LedgerEntry) (bool, error)
}

// Publisher publica os eventos de saída da liquidação. Pode ser nil.
type Publisher interface {
	PublishDepositSettled(ctx context.Context, e events.DepositSettled) error
	PublishLedgerRepair(ctx context.Context, e events.LedgerRepairRequested) error
}

type Outcome string

const (
	OutcomeApplied        Outcome = "applied"
	OutcomeAlreadySettled Outcome = "already_settled"
	OutcomeNoop           Outcome = "noop"
)

// Status externos gravados em provider_status.
const (
	ExternalSucceeded      = "succeeded"
	ExternalExpired        = "expired"
	ExternalPaymentFailed  = "payment_failed"
	ExternalDisputeCreated = "dispute_created"
	ExternalTransferFailed = "transfer_failed"
)

// CompletedPayment é a correlação extraída de um evento de pagamento concluído.
type CompletedPayment struct {
	TransactionID  string
	UserID         string
	WalletID       string
	ExternalRef    string // payment intent
	SessionID      string
	EventID        string
	ExternalStatus string
}

// Engine aplica as transições da máquina de estados da Transaction.
type Engine struct {
	store Store
	pub   Publisher
	log   *zap.Logger
	now   func() time.Time

	OnAnomaly       func() // métricas
	OnLedgerFailure func() // métricas
}

func New(store Store, pub Publisher, log *zap.Logger) *Engine {
	return &Engine{
		store: store,
		pub:   pub,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// CompleteDeposit liquida o depósito uma única vez.
//
// O passo atômico (status + saldo) fica no store; o ledger é gravado depois,
// em separado. Falha no ledger não desfaz a liquidação: vai para o reparo.
func (e *Engine) CompleteDeposit(ctx context.Context, p CompletedPayment) (Outcome, error) {
	if p.TransactionID == "" {
		return "", domain.Invalid("completed payment without transaction_id")
	}
	status := p.ExternalStatus
	if status == "" {
		status = ExternalSucceeded
	}

	t, applied, err := e.store.CompleteDeposit(ctx, p.TransactionID, status)
	if err != nil {
		if errors.Is(err, domain.ErrStateAnomaly) {
			e.log.Error("late success for rejected transaction",
				zap.String("transactionId", p.TransactionID),
				zap.String("status", string(t.Status)),
				zap.String("eventId", p.EventID),
				zap.Error(err),
			)
			if e.OnAnomaly != nil {
				e.OnAnomaly()
			}
		}
		return "", err
	}

	// replay também garante o ledger: cobre uma gravação que falhou antes
	e.appendLedger(ctx, t, p)

	if !applied {
		e.log.Info("deposit already settled",
			zap.String("transactionId", t.ID),
			zap.String("status", string(t.Status)),
			zap.String("eventId", p.EventID),
		)
		return OutcomeAlreadySettled, nil
	}

	e.log.Info("deposit settled",
		zap.String("transactionId", t.ID),
		zap.String("walletId", t.WalletID),
		zap.Int64("amountMinor", t.AmountMinor),
		zap.String("currency", t.Currency),
	)
	e.publishSettled(ctx, t, p)
	return OutcomeApplied, nil
}

func (e *Engine) appendLedger(ctx context.Context, t domain.Transaction, p CompletedPayment) {
	entry := domain.LedgerEntry{
		UserID:      e.userID(ctx, t, p),
		Kind:        domain.LedgerDeposit,
		Status:      domain.LedgerCompleted,
		AmountMinor: t.AmountMinor,
		Currency:    ledgerCurrency(t.Currency),
		ExternalRef: ledgerRef(t, p),
		Metadata: map[string]string{
			"transaction_id": t.ID,
			"session_id":     p.SessionID,
			"completed_at":   e.now().Format(time.RFC3339),
		},
	}

	inserted, err := e.store.AppendLedger(ctx, entry)
	if err != nil {
		e.log.Error("ledger append failed, requesting repair",
			zap.String("transactionId", t.ID),
			zap.String("externalRef", entry.ExternalRef),
			zap.Error(err),
		)
		if e.OnLedgerFailure != nil {
			e.OnLedgerFailure()
		}
		e.requestRepair(ctx, entry, t.ID, err)
		return
	}
	if inserted {
		e.log.Debug("ledger entry created", zap.String("externalRef", entry.ExternalRef))
	}
}

// userID prefere os metadados do evento; sem eles, usa o dono da carteira.
func (e *Engine) userID(ctx context.Context, t domain.Transaction, p CompletedPayment) string {
	if p.UserID != "" {
		return p.UserID
	}
	w, err := e.store.GetWallet(ctx, t.WalletID)
	if err != nil {
		e.log.Warn("wallet lookup for ledger", zap.String("walletId", t.WalletID), zap.Error(err))
		return ""
	}
	return w.UserID
}

func (e *Engine) requestRepair(ctx context.Context, entry domain.LedgerEntry, txID string, cause error) {
	if e.pub == nil {
		return
	}
	msg := events.LedgerRepairRequested{
		TransactionID: txID,
		UserID:        entry.UserID,
		Kind:          string(entry.Kind),
		Status:        string(entry.Status),
		AmountMinor:   entry.AmountMinor,
		Currency:      entry.Currency,
		ExternalRef:   entry.ExternalRef,
		Metadata:      entry.Metadata,
		Reason:        cause.Error(),
	}
	if err := e.pub.PublishLedgerRepair(ctx, msg); err != nil {
		e.log.Error("publish ledger repair", zap.String("transactionId", txID), zap.Error(err))
	}
}

func (e *Engine) publishSettled(ctx context.Context, t domain.Transaction, p CompletedPayment) {
	if e.pub == nil {
		return
	}
	err := e.pub.PublishDepositSettled(ctx, events.DepositSettled{
		TransactionID: t.ID,
		WalletID:      t.WalletID,
		UserID:        p.UserID,
		AmountMinor:   t.AmountMinor,
		Currency:      t.Currency,
		ExternalRef:   ledgerRef(t, p),
		EventID:       p.EventID,
		SettledAt:     t.UpdatedAt,
	})
	if err != nil {
		e.log.Warn("publish deposit_settled", zap.String("transactionId", t.ID), zap.Error(err))
	}
}

// MarkExpired só age sobre transações pendentes.
func (e *Engine) MarkExpired(ctx context.Context, txID string) (Outcome, error) {
	return e.transition(ctx, txID, domain.StatusExpired, ExternalExpired, domain.StatusPending)
}

// MarkFailed só age sobre transações pendentes.
func (e *Engine) MarkFailed(ctx context.Context, txID string) (Outcome, error) {
	return e.transition(ctx, txID, domain.StatusFailed, ExternalPaymentFailed, domain.StatusPending)
}

// MarkTransferFailed falha um saque ainda em curso.
func (e *Engine) MarkTransferFailed(ctx context.Context, txID, failureCode string) (Outcome, error) {
	status := failureCode
	if status == "" {
		status = ExternalTransferFailed
	}
	return e.transition(ctx, txID, domain.StatusFailed, status, domain.StatusPending, domain.StatusProcessing)
}

// MarkDisputed marca as transações ligadas à cobrança (ou ao intent) como disputadas.
func (e *Engine) MarkDisputed(ctx context.Context, refs ...string) (Outcome, error) {
	var nonEmpty []string
	for _, r := range refs {
		if r != "" {
			nonEmpty = append(nonEmpty, r)
		}
	}
	if len(nonEmpty) == 0 {
		return OutcomeNoop, nil
	}

	n, err := e.store.MarkDisputedByExternalRef(ctx, nonEmpty, ExternalDisputeCreated)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return OutcomeNoop, nil
	}
	e.log.Warn("transactions disputed", zap.Strings("refs", nonEmpty), zap.Int64("count", n))
	return OutcomeApplied, nil
}

func (e *Engine) transition(ctx context.Context, txID string, to domain.Status, externalStatus string, from ...domain.Status) (Outcome, error) {
	if txID == "" {
		return OutcomeNoop, nil
	}
	ok, err := e.store.TransitionStatus(ctx, txID, to, externalStatus, from...)
	if err != nil {
		return "", err
	}
	if !ok {
		return OutcomeNoop, nil
	}
	e.log.Info("transaction transitioned", zap.String("transactionId", txID), zap.String("to", string(to)))
	return OutcomeApplied, nil
}

// RepairLedger regrava uma entrada de ledger pedida via Kafka.
// Idempotente: uma entrada já existente conta como reparada.
func (e *Engine) RepairLedger(ctx context.Context, req events.LedgerRepairRequested) error {
	if req.ExternalRef == "" || req.AmountMinor <= 0 {
		return domain.Invalid("ledger repair without external_ref or amount")
	}
	kind := domain.LedgerKind(req.Kind)
	if kind == "" {
		kind = domain.LedgerDeposit
	}
	status := domain.LedgerStatus(req.Status)
	if status == "" {
		status = domain.LedgerCompleted
	}

	inserted, err := e.store.AppendLedger(ctx, domain.LedgerEntry{
		UserID:      req.UserID,
		Kind:        kind,
		Status:      status,
		AmountMinor: req.AmountMinor,
		Currency:    ledgerCurrency(req.Currency),
		ExternalRef: req.ExternalRef,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return err
	}
	e.log.Info("ledger repaired",
		zap.String("transactionId", req.TransactionID),
		zap.String("externalRef", req.ExternalRef),
		zap.Bool("inserted", inserted),
	)
	return nil
}

func ledgerRef(t domain.Transaction, p CompletedPayment) string {
	switch {
	case t.ExternalRef != "":
		return t.ExternalRef
	case p.ExternalRef != "":
		return p.ExternalRef
	}
	return "txn:" + t.ID
}

func ledgerCurrency(c string) string {
	if c == "" {
		return "USD"
	}
	return strings.ToUpper(c)
}
