package producer_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/radieske/freelance-wallet-payments/internal/payments-service/domain"
	"github.com/radieske/freelance-wallet-payments/internal/payments-service/producer"
	"github.com/radieske/freelance-wallet-payments/pkg/contracts/events"
)

type fakeWriter struct {
	msgs []kafkago.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestPublishDepositSettled(t *testing.T) {
	settled, repair := &fakeWriter{}, &fakeWriter{}
	p := producer.NewKafkaPublisher(settled, repair)

	err := p.PublishDepositSettled(context.Background(), events.DepositSettled{TransactionID: "t1", AmountMinor: 5000, Currency: "USD"})
	require.NoError(t, err)
	require.Len(t, settled.msgs, 1)
	require.Empty(t, repair.msgs)
	require.Equal(t, "t1", string(settled.msgs[0].Key))

	var got events.DepositSettled
	require.NoError(t, json.Unmarshal(settled.msgs[0].Value, &got))
	require.Equal(t, int64(5000), got.AmountMinor)
	require.False(t, got.SettledAt.IsZero())
}

func TestPublishLedgerRepair(t *testing.T) {
	t.Run("ok, stamps time", func(t *testing.T) {
		repair := &fakeWriter{}
		p := producer.NewKafkaPublisher(nil, repair)

		require.NoError(t, p.PublishLedgerRepair(context.Background(), events.LedgerRepairRequested{TransactionID: "t1", ExternalRef: "pi_1"}))
		require.Len(t, repair.msgs, 1)

		var got events.LedgerRepairRequested
		require.NoError(t, json.Unmarshal(repair.msgs[0].Value, &got))
		require.Equal(t, "pi_1", got.ExternalRef)
		require.NotZero(t, got.TsUnixMs)
	})

	t.Run("fail, broker down is a dependency error", func(t *testing.T) {
		p := producer.NewKafkaPublisher(nil, &fakeWriter{err: errors.New("no brokers")})
		err := p.PublishLedgerRepair(context.Background(), events.LedgerRepairRequested{TransactionID: "t1"})
		require.ErrorIs(t, err, domain.ErrDependency)
	})

	t.Run("ok, writer not configured", func(t *testing.T) {
		p := producer.NewKafkaPublisher(nil, nil)
		require.NoError(t, p.PublishLedgerRepair(context.Background(), events.LedgerRepairRequested{}))
	})
}
