package reconcile

import (
	"context"
	"fmt"
	"net/url"
	"testing"

	"go-careerdesk/admins"
	"go-careerdesk/entitlement"
	"go-careerdesk/payment/razorpay"
	"go-careerdesk/plan"
	"go-careerdesk/web/db"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	webhookSecret = "whsec_test"
	keySecret     = "key_secret_test"
)

type harness struct {
	engine *entitlement.Engine
	links  *MemoryLinkStore
	rec    *Reconciler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	engine := entitlement.NewEngine(entitlement.NewMemoryStore(), entitlement.NewHub(),
		admins.New("admin@example.com"), entitlement.Options{FreeCredits: 2})
	for id, email := range map[string]string{"u1": "u1@example.com", "u2": "u2@example.com", "adm": "admin@example.com"} {
		_, err := engine.Provision(context.Background(), id, email)
		require.NoError(t, err)
	}
	links := NewMemoryLinkStore()
	require.NoError(t, links.SaveLink(context.Background(), db.PaymentLink{ID: "plink_1", UserID: "u1", Plan: plan.Pro, Status: "created"}))
	return &harness{
		engine: engine,
		links:  links,
		rec:    New(engine, links, Secrets{KeySecret: keySecret, WebhookSecret: webhookSecret}),
	}
}

func (h *harness) get(t *testing.T, userID string) db.Entitlement {
	t.Helper()
	rec, err := h.engine.Get(context.Background(), userID)
	require.NoError(t, err)
	return rec
}

func paidBody(paymentID, userID, p string) []byte {
	return []byte(fmt.Sprintf(`{"entity":"event","event":"payment_link.paid","payload":{`+
		`"payment":{"entity":{"id":%q,"amount":99900,"status":"captured","notes":{"plan":%q,"userId":%q}}},`+
		`"payment_link":{"entity":{"id":"plink_1","status":"paid","notes":[]}}}}`, paymentID, p, userID))
}

func TestWebhookAppliesOnceAndAcksRedelivery(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	body := paidBody("pay_1", "u1", "recruiter")
	sig := razorpay.Sign(webhookSecret, body)

	res, err := h.rec.HandleWebhook(ctx, body, sig)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.False(t, res.Duplicate())

	first := h.get(t, "u1")
	assert.Equal(t, plan.Recruiter, first.Plan)
	assert.True(t, first.WebhookVerified)
	assert.Equal(t, "pay_1", first.PaymentID)

	res, err = h.rec.HandleWebhook(ctx, body, sig)
	require.NoError(t, err)
	assert.True(t, res.Duplicate())
	assert.Equal(t, first, h.get(t, "u1"))

	link, err := h.links.FindLink(ctx, "plink_1")
	require.NoError(t, err)
	assert.Equal(t, "paid", link.Status)
}

func TestWebhookRejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	body := paidBody("pay_2", "u1", "pro")
	before := h.get(t, "u1")

	_, err := h.rec.HandleWebhook(ctx, body, "")
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = h.rec.HandleWebhook(ctx, body, razorpay.Sign("wrong", body))
	assert.ErrorIs(t, err, ErrSignature)

	garbage := []byte("{not json")
	_, err = h.rec.HandleWebhook(ctx, garbage, razorpay.Sign(webhookSecret, garbage))
	assert.ErrorIs(t, err, ErrMalformed)

	for _, b := range [][]byte{
		paidBody("pay_3", "", "pro"),
		paidBody("pay_3", "u1", ""),
		paidBody("pay_3", "u1", "pending"),
		paidBody("", "u1", "pro"),
		paidBody("pay_3", "ghost", "pro"),
	} {
		_, err = h.rec.HandleWebhook(ctx, b, razorpay.Sign(webhookSecret, b))
		assert.ErrorIs(t, err, ErrData, string(b))
	}

	unconfigured := New(h.engine, h.links, Secrets{})
	_, err = unconfigured.HandleWebhook(ctx, body, razorpay.Sign(webhookSecret, body))
	assert.ErrorIs(t, err, ErrConfiguration)

	if diff := cmp.Diff(before, h.get(t, "u1")); diff != "" {
		t.Errorf("rejected webhooks changed the record (-before +after):\n%s", diff)
	}
}

func TestWebhookIgnoresOtherEventsAndAdmins(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	other := []byte(`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_f"}}}}`)
	res, err := h.rec.HandleWebhook(ctx, other, razorpay.Sign(webhookSecret, other))
	require.NoError(t, err)
	assert.True(t, res.Ignored)

	adminBefore := h.get(t, "adm")
	body := paidBody("pay_adm", "adm", "essentials")
	res, err = h.rec.HandleWebhook(ctx, body, razorpay.Sign(webhookSecret, body))
	require.NoError(t, err)
	assert.True(t, res.Ignored)
	if diff := cmp.Diff(adminBefore, h.get(t, "adm")); diff != "" {
		t.Errorf("admin record changed (-before +after):\n%s", diff)
	}
}

func redirectQuery(linkID, paymentID, status, sig, p, userID string) url.Values {
	q := url.Values{}
	q.Set("razorpay_payment_link_id", linkID)
	q.Set("razorpay_payment_id", paymentID)
	q.Set("razorpay_payment_link_status", status)
	q.Set("razorpay_signature", sig)
	q.Set("plan", p)
	q.Set("userId", userID)
	return q
}

func TestRedirectPaid(t *testing.T) {
	h := newHarness(t)
	sig := razorpay.Sign(keySecret, []byte("plink_1|pay_9"))

	out, err := h.rec.HandleRedirect(context.Background(), ParseRedirect(redirectQuery("plink_1", "pay_9", "PAID", sig, "pro", "u1")))
	require.NoError(t, err)
	assert.Equal(t, OutcomePaid, out.Kind)
	assert.True(t, out.Applied)
	assert.Equal(t, plan.Pro, out.Plan)

	rec := h.get(t, "u1")
	assert.Equal(t, plan.Pro, rec.Plan)
	assert.True(t, rec.WebhookVerified)
}

func TestRedirectTerminalStatusesLeaveStateAlone(t *testing.T) {
	h := newHarness(t)
	before := h.get(t, "u1")

	for status, want := range map[string]OutcomeKind{
		"cancelled": OutcomeCancelled,
		"failed":    OutcomeFailed,
		"expired":   OutcomeFailed,
		"":          OutcomeFailed,
	} {
		out, err := h.rec.HandleRedirect(context.Background(), ParseRedirect(redirectQuery("plink_1", "pay_9", status, "bogus", "pro", "u1")))
		require.NoError(t, err)
		assert.Equal(t, want, out.Kind, "status %q", status)
	}
	assert.Equal(t, before, h.get(t, "u1"))
}

func TestRedirectTamperedSignature(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	before := h.get(t, "u1")
	linkBefore, err := h.links.FindLink(ctx, "plink_1")
	require.NoError(t, err)
	sig := razorpay.Sign(keySecret, []byte("plink_1|pay_9"))

	out, err := h.rec.HandleRedirect(ctx, ParseRedirect(redirectQuery("plink_1", "pay_10", "paid", sig, "pro", "u1")))
	require.NoError(t, err)
	assert.Equal(t, OutcomeVerificationFailed, out.Kind)

	if diff := cmp.Diff(before, h.get(t, "u1")); diff != "" {
		t.Errorf("tampered redirect changed the record (-before +after):\n%s", diff)
	}
	linkAfter, err := h.links.FindLink(ctx, "plink_1")
	require.NoError(t, err)
	if diff := cmp.Diff(linkBefore, linkAfter); diff != "" {
		t.Errorf("tampered redirect changed the link (-before +after):\n%s", diff)
	}
}

func TestRedirectEchoMustMatchLink(t *testing.T) {
	h := newHarness(t)
	sig := razorpay.Sign(keySecret, []byte("plink_1|pay_9"))

	out, err := h.rec.HandleRedirect(context.Background(), ParseRedirect(redirectQuery("plink_1", "pay_9", "paid", sig, "recruiter", "u1")))
	require.NoError(t, err)
	assert.Equal(t, OutcomeInvalid, out.Kind)

	out, err = h.rec.HandleRedirect(context.Background(), ParseRedirect(redirectQuery("plink_1", "pay_9", "paid", sig, "pro", "u2")))
	require.NoError(t, err)
	assert.Equal(t, OutcomeInvalid, out.Kind)

	unknown := razorpay.Sign(keySecret, []byte("plink_x|pay_9"))
	out, err = h.rec.HandleRedirect(context.Background(), ParseRedirect(redirectQuery("plink_x", "pay_9", "paid", unknown, "pro", "u1")))
	require.NoError(t, err)
	assert.Equal(t, OutcomeInvalid, out.Kind)

	assert.Equal(t, plan.Free, h.get(t, "u1").Plan)
	assert.Equal(t, plan.Free, h.get(t, "u2").Plan)
}

func TestRedirectRequiresKeySecret(t *testing.T) {
	h := newHarness(t)
	r := New(h.engine, h.links, Secrets{WebhookSecret: webhookSecret})

	_, err := r.HandleRedirect(context.Background(), ParseRedirect(redirectQuery("plink_1", "pay_9", "paid", "x", "pro", "u1")))
	assert.ErrorIs(t, err, ErrConfiguration)

	out, err := r.HandleRedirect(context.Background(), ParseRedirect(redirectQuery("plink_1", "pay_9", "cancelled", "", "", "")))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, out.Kind)
}

func TestRedirectThenWebhookConverge(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	sig := razorpay.Sign(keySecret, []byte("plink_1|pay_c"))
	out, err := h.rec.HandleRedirect(ctx, ParseRedirect(redirectQuery("plink_1", "pay_c", "paid", sig, "pro", "u1")))
	require.NoError(t, err)
	require.True(t, out.Applied)
	afterRedirect := h.get(t, "u1")

	body := paidBody("pay_c", "u1", "pro")
	res, err := h.rec.HandleWebhook(ctx, body, razorpay.Sign(webhookSecret, body))
	require.NoError(t, err)
	assert.True(t, res.Duplicate())
	assert.Equal(t, afterRedirect, h.get(t, "u1"))
}
