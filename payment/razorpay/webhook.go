package razorpay

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const EventPaymentLinkPaid = "payment_link.paid"

// Notes is the free-form metadata attached to links and payments. The gateway
// sends an empty JSON array instead of an object when there are no notes.
type Notes map[string]string

func (n *Notes) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) || bytes.HasPrefix(trimmed, []byte("[")) {
		*n = Notes{}
		return nil
	}
	raw := map[string]any{}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return err
	}
	out := make(Notes, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		case nil:
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	*n = out
	return nil
}

type PaymentEntity struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Email    string `json:"email"`
	Notes    Notes  `json:"notes"`
}

type LinkEntity struct {
	ID          string `json:"id"`
	ReferenceID string `json:"reference_id"`
	Status      string `json:"status"`
	ShortURL    string `json:"short_url"`
	Notes       Notes  `json:"notes"`
}

// WebhookEvent is the envelope of every webhook delivery.
type WebhookEvent struct {
	Entity    string `json:"entity"`
	AccountID string `json:"account_id"`
	Event     string `json:"event"`
	CreatedAt int64  `json:"created_at"`
	Payload   struct {
		Payment struct {
			Entity PaymentEntity `json:"entity"`
		} `json:"payment"`
		PaymentLink *struct {
			Entity LinkEntity `json:"entity"`
		} `json:"payment_link,omitempty"`
	} `json:"payload"`
}

func ParseWebhookEvent(body []byte) (WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return WebhookEvent{}, err
	}
	return ev, nil
}

// Note returns key from the payment notes, falling back to the link notes.
func (ev WebhookEvent) Note(key string) string {
	if v := ev.Payload.Payment.Entity.Notes[key]; v != "" {
		return v
	}
	if ev.Payload.PaymentLink != nil {
		return ev.Payload.PaymentLink.Entity.Notes[key]
	}
	return ""
}

func (ev WebhookEvent) LinkID() string {
	if ev.Payload.PaymentLink != nil {
		return ev.Payload.PaymentLink.Entity.ID
	}
	return ""
}
