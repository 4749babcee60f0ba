package razorpay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyWebhookSignature(t *testing.T) {
	body := []byte(`{"event":"payment_link.paid"}`)
	sig := Sign("whsec", body)

	assert.True(t, VerifyWebhookSignature(body, sig, "whsec"))
	assert.True(t, VerifyWebhookSignature(body, " "+strings.ToUpper(sig)+" ", "whsec"))
	assert.False(t, VerifyWebhookSignature(body, sig, "other"))
	assert.False(t, VerifyWebhookSignature([]byte(`{"event":"payment_link.paid" }`), sig, "whsec"))
	assert.False(t, VerifyWebhookSignature(body, "", "whsec"))
	assert.False(t, VerifyWebhookSignature(body, sig, ""))
}

func TestSignKnownVector(t *testing.T) {
	// HMAC-SHA256("key", "The quick brown fox jumps over the lazy dog")
	assert.Equal(t,
		"f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8",
		Sign("key", []byte("The quick brown fox jumps over the lazy dog")))
}

func TestVerifyPaymentLinkSignature(t *testing.T) {
	sig := Sign("keysecret", []byte("plink_1|pay_1"))

	assert.True(t, VerifyPaymentLinkSignature("plink_1", "pay_1", sig, "keysecret"))
	assert.False(t, VerifyPaymentLinkSignature("plink_1", "pay_2", sig, "keysecret"))
	assert.False(t, VerifyPaymentLinkSignature("plink_1", "pay_1", sig, "whsec"))
	assert.False(t, VerifyPaymentLinkSignature("", "", Sign("keysecret", []byte("|")), "keysecret"))
}

func TestParseWebhookEventNotes(t *testing.T) {
	ev, err := ParseWebhookEvent([]byte(`{
		"event": "payment_link.paid",
		"payload": {
			"payment": {"entity": {"id": "pay_9", "amount": 99900, "notes": []}},
			"payment_link": {"entity": {"id": "plink_9", "notes": {"plan": "recruiter", "userId": "u-1", "attempt": 2}}}
		}
	}`))
	require.NoError(t, err)
	assert.Equal(t, EventPaymentLinkPaid, ev.Event)
	assert.Equal(t, "pay_9", ev.Payload.Payment.Entity.ID)
	assert.Empty(t, ev.Payload.Payment.Entity.Notes)
	assert.Equal(t, "recruiter", ev.Note("plan"))
	assert.Equal(t, "u-1", ev.Note("userId"))
	assert.Equal(t, "2", ev.Note("attempt"))
	assert.Equal(t, "plink_9", ev.LinkID())

	_, err = ParseWebhookEvent([]byte(`{"event":`))
	assert.Error(t, err)
}

func TestCreatePaymentLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payment_links", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_test", user)
		assert.Equal(t, "secret", pass)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(29900), body["amount"])
		assert.Equal(t, map[string]any{"plan": "pro", "userId": "u-1"}, body["notes"])
		assert.Equal(t, "get", body["callback_method"])

		w.Write([]byte(`{"id":"plink_1","short_url":"https://rzp.io/i/abc","status":"created","amount":29900,"currency":"INR"}`))
	}))
	defer srv.Close()

	c := NewClient("rzp_test", "secret", srv.URL+"/v1/")
	link, err := c.CreatePaymentLink(context.Background(), LinkRequest{
		AmountPaise: 29900,
		Currency:    "INR",
		Notes:       map[string]string{"plan": "pro", "userId": "u-1"},
		CallbackURL: "https://app.example.com/payment/callback",
	})
	require.NoError(t, err)
	assert.Equal(t, "plink_1", link.ID)
	assert.Equal(t, "https://rzp.io/i/abc", link.ShortURL)
}

func TestCreatePaymentLinkErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"amount too small"}}`))
	}))
	defer srv.Close()

	_, err := NewClient("k", "s", srv.URL).CreatePaymentLink(context.Background(), LinkRequest{AmountPaise: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "amount too small")

	_, err = NewClient("", "", srv.URL).CreatePaymentLink(context.Background(), LinkRequest{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
