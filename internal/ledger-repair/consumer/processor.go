package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/freelance-wallet-payments/internal/payments-service/domain"
	"github.com/radieske/freelance-wallet-payments/internal/shared/kafka"
	"github.com/radieske/freelance-wallet-payments/pkg/contracts/events"
)

// Reader é o subconjunto de *kafka.Reader usado pelo worker (commit manual).
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Repairer interface {
	RepairLedger(ctx context.Context, req events.LedgerRepairRequested) error
}

// Processor consome pedidos de reparo de ledger e regrava as entradas.
// Falhas persistentes vão para a DLQ; o offset só é commitado depois disso.
type Processor struct {
	Log      *zap.Logger
	Reader   Reader
	Repairer Repairer
	DLQ      kafka.MessageWriter // opcional

	Retries int
	Backoff time.Duration

	OnConsumed func()       // métricas
	OnRepaired func()       // métricas
	OnError    func(string) // métricas por fase
}

// Run roda até o contexto ser cancelado.
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka fetch failed", zap.Error(err))
			p.fail("read")
			if !sleep(ctx, 500*time.Millisecond) {
				return ctx.Err()
			}
			continue
		}

		if p.OnConsumed != nil {
			p.OnConsumed()
		}

		p.handle(ctx, m)

		if err := p.Reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
			p.fail("commit")
		}
	}
}

func (p *Processor) handle(ctx context.Context, m kafka.Message) {
	var req events.LedgerRepairRequested
	if err := json.Unmarshal(m.Value, &req); err != nil {
		p.Log.Warn("invalid message", zap.Error(err))
		p.fail("decode")
		p.deadLetter(ctx, m)
		return
	}

	err := p.Repairer.RepairLedger(ctx, req)
	for i := 0; err != nil && i < p.Retries && !errors.Is(err, domain.ErrValidation); i++ {
		if !sleep(ctx, p.Backoff*time.Duration(i+1)) {
			return
		}
		err = p.Repairer.RepairLedger(ctx, req)
	}
	if err != nil {
		p.Log.Error("ledger repair failed",
			zap.String("transactionId", req.TransactionID),
			zap.String("externalRef", req.ExternalRef),
			zap.Error(err),
		)
		p.fail("repair")
		p.deadLetter(ctx, m)
		return
	}

	if p.OnRepaired != nil {
		p.OnRepaired()
	}
}

func (p *Processor) deadLetter(ctx context.Context, m kafka.Message) {
	if p.DLQ == nil {
		return
	}
	if err := kafka.WriteJSON(ctx, p.DLQ, string(m.Key), m.Value); err != nil {
		p.Log.Error("dlq write failed", zap.Error(err))
		p.fail("dlq")
	}
}

func (p *Processor) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
