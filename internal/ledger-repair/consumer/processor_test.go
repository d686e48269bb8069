package consumer_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/freelance-wallet-payments/internal/ledger-repair/consumer"
	"github.com/radieske/freelance-wallet-payments/internal/payments-service/domain"
	"github.com/radieske/freelance-wallet-payments/internal/payments-service/repo"
	"github.com/radieske/freelance-wallet-payments/internal/payments-service/settlement"
	"github.com/radieske/freelance-wallet-payments/pkg/contracts/events"
)

// sliceReader entrega as mensagens e cancela o contexto quando acabam.
type sliceReader struct {
	msgs      []kafkago.Message
	committed []kafkago.Message
	cancel    context.CancelFunc
}

func (r *sliceReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	if len(r.msgs) == 0 {
		r.cancel()
		return kafkago.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *sliceReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

type captureWriter struct{ msgs []kafkago.Message }

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

type flakyRepairer struct {
	failures int
	calls    int
	err      error
}

func (f *flakyRepairer) RepairLedger(context.Context, events.LedgerRepairRequested) error {
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	return nil
}

func message(t *testing.T, req events.LedgerRepairRequested) kafkago.Message {
	t.Helper()
	b, err := json.Marshal(req)
	require.NoError(t, err)
	return kafkago.Message{Key: []byte(req.TransactionID), Value: b}
}

func run(t *testing.T, p *consumer.Processor, msgs ...kafkago.Message) *sliceReader {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &sliceReader{msgs: msgs, cancel: cancel}
	p.Reader = r
	err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	return r
}

func TestProcessorRepairsLedger(t *testing.T) {
	store := repo.NewMemory()
	engine := settlement.New(store, nil, zap.NewNop())

	var consumed, repaired int
	p := &consumer.Processor{
		Log:        zap.NewNop(),
		Repairer:   engine,
		Retries:    3,
		OnConsumed: func() { consumed++ },
		OnRepaired: func() { repaired++ },
	}

	req := events.LedgerRepairRequested{TransactionID: "t1", UserID: "user-1", AmountMinor: 5000, Currency: "USD", ExternalRef: "pi_1"}
	r := run(t, p, message(t, req), message(t, req))

	require.Len(t, r.committed, 2)
	require.Equal(t, 2, consumed)
	require.Equal(t, 2, repaired)
	require.Len(t, store.Ledger(), 1)
}

func TestProcessorRetriesThenDeadLetters(t *testing.T) {
	req := events.LedgerRepairRequested{TransactionID: "t1", AmountMinor: 5000, ExternalRef: "pi_1"}

	t.Run("ok, transient failure recovers", func(t *testing.T) {
		rep := &flakyRepairer{failures: 2, err: domain.Dependency("append ledger", errors.New("db down"))}
		dlq := &captureWriter{}
		p := &consumer.Processor{Log: zap.NewNop(), Repairer: rep, DLQ: dlq, Retries: 3}

		r := run(t, p, message(t, req))
		require.Equal(t, 3, rep.calls)
		require.Empty(t, dlq.msgs)
		require.Len(t, r.committed, 1)
	})

	t.Run("fail, persistent failure goes to dlq", func(t *testing.T) {
		rep := &flakyRepairer{failures: 100, err: domain.Dependency("append ledger", errors.New("db down"))}
		dlq := &captureWriter{}
		var stages []string
		p := &consumer.Processor{Log: zap.NewNop(), Repairer: rep, DLQ: dlq, Retries: 3, OnError: func(s string) { stages = append(stages, s) }}

		r := run(t, p, message(t, req))
		require.Equal(t, 4, rep.calls)
		require.Len(t, dlq.msgs, 1)
		require.Equal(t, "t1", string(dlq.msgs[0].Key))
		require.Len(t, r.committed, 1)
		require.Equal(t, []string{"repair"}, stages)
	})

	t.Run("fail, invalid request is not retried", func(t *testing.T) {
		rep := &flakyRepairer{failures: 100, err: domain.Invalid("missing external_ref")}
		dlq := &captureWriter{}
		p := &consumer.Processor{Log: zap.NewNop(), Repairer: rep, DLQ: dlq, Retries: 3}

		run(t, p, message(t, req))
		require.Equal(t, 1, rep.calls)
		require.Len(t, dlq.msgs, 1)
	})

	t.Run("fail, undecodable message", func(t *testing.T) {
		rep := &flakyRepairer{}
		dlq := &captureWriter{}
		p := &consumer.Processor{Log: zap.NewNop(), Repairer: rep, DLQ: dlq}

		r := run(t, p, kafkago.Message{Value: []byte("{")})
		require.Zero(t, rep.calls)
		require.Len(t, dlq.msgs, 1)
		require.Len(t, r.committed, 1)
	})
}
