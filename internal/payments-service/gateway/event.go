package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/radieske/freelance-wallet-payments/internal/payments-service/domain"
)

// Tipos de evento tratados pelo processador de webhooks.
const (
	EventCheckoutCompleted    = "checkout.session.completed"
	EventCheckoutExpired      = "checkout.session.expired"
	EventPaymentSucceeded     = "payment_intent.succeeded"
	EventPaymentFailed        = "payment_intent.payment_failed"
	EventChargeDisputeCreated = "charge.dispute.created"
	EventTransferFailed       = "transfer.failed"
)

// Event é a forma normalizada de um evento autenticado do gateway.
type Event struct {
	ID   string
	Type string

	ObjectID        string
	Metadata        map[string]string
	PaymentIntentID string // intent ligado ao objeto (sessão, disputa)
	ChargeID        string // disputas
	Status          string
	FailureCode     string
}

// MetadataValue devolve a chave dos metadados ou "".
func (e Event) MetadataValue(key string) string {
	if e.Metadata == nil {
		return ""
	}
	return e.Metadata[key]
}

// expandable aceita tanto o id ("pi_123") quanto o objeto expandido ({"id": "pi_123"}).
type expandable struct{ ID string }

func (e *expandable) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &e.ID)
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	e.ID = obj.ID
	return nil
}

type eventObject struct {
	ID               string            `json:"id"`
	Object           string            `json:"object"`
	Metadata         map[string]string `json:"metadata"`
	PaymentIntent    expandable        `json:"payment_intent"`
	Charge           expandable        `json:"charge"`
	Status           string            `json:"status"`
	FailureCode      string            `json:"failure_code"`
	LastPaymentError *struct {
		Code string `json:"code"`
	} `json:"last_payment_error"`
}

// decodeEvent extrai os campos de correlação de data.object.
func decodeEvent(id, typ string, raw json.RawMessage) (Event, error) {
	ev := Event{ID: id, Type: typ}
	if len(raw) == 0 {
		return ev, fmt.Errorf("%w: event %s without data.object", domain.ErrValidation, id)
	}

	var obj eventObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ev, fmt.Errorf("%w: event %s: %v", domain.ErrValidation, id, err)
	}

	ev.ObjectID = obj.ID
	ev.Metadata = obj.Metadata
	ev.Status = obj.Status
	ev.ChargeID = obj.Charge.ID
	ev.PaymentIntentID = obj.PaymentIntent.ID
	ev.FailureCode = obj.FailureCode
	if obj.LastPaymentError != nil && ev.FailureCode == "" {
		ev.FailureCode = obj.LastPaymentError.Code
	}
	if obj.Object == "payment_intent" {
		ev.PaymentIntentID = obj.ID
	}
	return ev, nil
}
