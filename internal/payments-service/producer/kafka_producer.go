package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/radieske/freelance-wallet-payments/internal/payments-service/domain"
	"github.com/radieske/freelance-wallet-payments/internal/shared/kafka"
	"github.com/radieske/freelance-wallet-payments/pkg/contracts/events"
)

// KafkaPublisher publica os eventos de saída do payments-service.
// A chave da mensagem é o id da transação: mesma partição, ordem preservada.
type KafkaPublisher struct {
	Settled kafka.MessageWriter
	Repair  kafka.MessageWriter
}

func NewKafkaPublisher(settled, repair kafka.MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{Settled: settled, Repair: repair}
}

func (p *KafkaPublisher) PublishDepositSettled(ctx context.Context, e events.DepositSettled) error {
	if e.SettledAt.IsZero() {
		e.SettledAt = time.Now().UTC()
	}
	return p.publish(ctx, p.Settled, "publish deposit_settled", e.TransactionID, e)
}

func (p *KafkaPublisher) PublishLedgerRepair(ctx context.Context, e events.LedgerRepairRequested) error {
	e.TsUnixMs = time.Now().UnixMilli()
	return p.publish(ctx, p.Repair, "publish ledger_repair_requested", e.TransactionID, e)
}

func (p *KafkaPublisher) publish(ctx context.Context, w kafka.MessageWriter, op, key string, v any) error {
	if w == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := kafka.WriteJSON(ctx, w, key, b); err != nil {
		return domain.Dependency(op, err)
	}
	return nil
}
