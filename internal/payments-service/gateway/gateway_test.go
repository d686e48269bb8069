package gateway_test

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/radieske/freelance-wallet-payments/internal/payments-service/domain"
	"github.com/radieske/freelance-wallet-payments/internal/payments-service/gateway"
)

const secret = "whsec_test"

func TestNewStripe(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		s, err := gateway.NewStripe("sk_test_1", secret)
		require.NoError(t, err)
		require.NotNil(t, s)
	})

	t.Run("fail, missing keys", func(t *testing.T) {
		_, err := gateway.NewStripe("", secret)
		require.ErrorIs(t, err, domain.ErrConfiguration)
		_, err = gateway.NewStripe("sk_test_1", "")
		require.ErrorIs(t, err, domain.ErrConfiguration)
	})
}

func TestStripeVerifySignature(t *testing.T) {
	s, err := gateway.NewStripe("sk_test_1", secret)
	require.NoError(t, err)

	payload := []byte(`{"id":"evt_1","object":"event","api_version":"2023-10-16","type":"checkout.session.completed",
		"data":{"object":{"id":"cs_1","object":"checkout.session","payment_intent":"pi_1",
		"metadata":{"transaction_id":"t1","user_id":"u1","wallet_id":"w1"}}}}`)

	t.Run("ok, decodes correlation fields", func(t *testing.T) {
		ev, err := s.VerifySignature(payload, gateway.SignPayload(payload, secret, time.Now()))
		require.NoError(t, err)
		require.Equal(t, "evt_1", ev.ID)
		require.Equal(t, gateway.EventCheckoutCompleted, ev.Type)
		require.Equal(t, "cs_1", ev.ObjectID)
		require.Equal(t, "pi_1", ev.PaymentIntentID)
		require.Equal(t, "t1", ev.MetadataValue("transaction_id"))
	})

	t.Run("ok, header carries the signing timestamp", func(t *testing.T) {
		ts := time.Now().Add(-time.Minute)
		header := gateway.SignPayload(payload, secret, ts)
		require.True(t, strings.HasPrefix(header, "t="+strconv.FormatInt(ts.Unix(), 10)+",v1="), header)
		_, err := s.VerifySignature(payload, header)
		require.NoError(t, err)
	})

	t.Run("fail, wrong secret", func(t *testing.T) {
		_, err := s.VerifySignature(payload, gateway.SignPayload(payload, "whsec_other", time.Now()))
		require.ErrorIs(t, err, domain.ErrAuthentication)
	})

	t.Run("fail, tampered body", func(t *testing.T) {
		header := gateway.SignPayload(payload, secret, time.Now())
		tampered := append([]byte{}, payload...)
		tampered[len(tampered)-3] = ' '
		_, err := s.VerifySignature(tampered, header)
		require.ErrorIs(t, err, domain.ErrAuthentication)
	})

	t.Run("fail, stale timestamp", func(t *testing.T) {
		_, err := s.VerifySignature(payload, gateway.SignPayload(payload, secret, time.Now().Add(-time.Hour)))
		require.ErrorIs(t, err, domain.ErrAuthentication)
	})

	t.Run("fail, missing header", func(t *testing.T) {
		_, err := s.VerifySignature(payload, "")
		require.ErrorIs(t, err, domain.ErrAuthentication)
	})

	t.Run("fail, signed but malformed", func(t *testing.T) {
		bad := []byte(`{"id":`)
		_, err := s.VerifySignature(bad, gateway.SignPayload(bad, secret, time.Now()))
		require.ErrorIs(t, err, domain.ErrValidation)
		require.False(t, errors.Is(err, domain.ErrAuthentication))
	})
}

func TestVerifyExpandedObjects(t *testing.T) {
	f := gateway.NewFake(secret)

	t.Run("dispute with expanded charge", func(t *testing.T) {
		payload := []byte(`{"id":"evt_2","object":"event","type":"charge.dispute.created",
			"data":{"object":{"id":"dp_1","object":"dispute","charge":{"id":"ch_1","object":"charge"},"payment_intent":"pi_1"}}}`)
		ev, err := f.VerifySignature(payload, f.Sign(payload))
		require.NoError(t, err)
		require.Equal(t, "ch_1", ev.ChargeID)
		require.Equal(t, "pi_1", ev.PaymentIntentID)
	})

	t.Run("payment intent carries its own id and failure code", func(t *testing.T) {
		payload := []byte(`{"id":"evt_3","object":"event","type":"payment_intent.payment_failed",
			"data":{"object":{"id":"pi_9","object":"payment_intent","metadata":{"transaction_id":"t9"},
			"last_payment_error":{"code":"card_declined"}}}}`)
		ev, err := f.VerifySignature(payload, f.Sign(payload))
		require.NoError(t, err)
		require.Equal(t, "pi_9", ev.PaymentIntentID)
		require.Equal(t, "card_declined", ev.FailureCode)
		require.Equal(t, "t9", ev.MetadataValue("transaction_id"))
	})

	t.Run("null payment intent", func(t *testing.T) {
		payload := []byte(`{"id":"evt_4","object":"event","type":"checkout.session.expired",
			"data":{"object":{"id":"cs_2","object":"checkout.session","payment_intent":null}}}`)
		ev, err := f.VerifySignature(payload, f.Sign(payload))
		require.NoError(t, err)
		require.Empty(t, ev.PaymentIntentID)
		require.Empty(t, ev.MetadataValue("transaction_id"))
	})
}

func TestFakeIdempotency(t *testing.T) {
	f := gateway.NewFake(secret)
	p := gateway.IntentParams{AmountMinor: 5000, Currency: "USD", IdempotencyKey: "abc"}

	var wg sync.WaitGroup
	ids := make([]string, 10)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in, err := f.CreateOrRetrieveIntent(context.Background(), p)
			require.NoError(t, err)
			ids[i] = in.ID
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, f.IntentsCreated())
	for _, id := range ids {
		require.Equal(t, ids[0], id)
	}

	p.AmountMinor = 6000
	_, err := f.CreateOrRetrieveIntent(context.Background(), p)
	require.ErrorIs(t, err, domain.ErrGatewayRejected)
}
