// Package reconcile turns verified gateway notifications into plan changes.
// The webhook and the browser redirect both end in Engine.ApplyPayment, so a
// payment is applied once no matter which path arrives first.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go-careerdesk/entitlement"
	"go-careerdesk/metrics"
	"go-careerdesk/payment/razorpay"
	"go-careerdesk/plan"
	"go-careerdesk/web/db"

	"github.com/rs/zerolog/log"
)

var (
	ErrConfiguration = errors.New("payment gateway secret not configured")
	ErrMalformed     = errors.New("malformed payment notification")
	ErrSignature     = errors.New("payment signature mismatch")
	ErrData          = errors.New("payment notification missing correlation data")
)

const (
	SourceWebhook  = "webhook"
	SourceRedirect = "redirect"

	noteUserID = "userId"
	notePlan   = "plan"

	maxLoggedPayload = 2048
)

type Secrets struct {
	KeySecret     string // signs redirect parameters
	WebhookSecret string // signs webhook bodies
}

type Reconciler struct {
	engine  *entitlement.Engine
	links   LinkStore
	secrets Secrets
}

func New(engine *entitlement.Engine, links LinkStore, secrets Secrets) *Reconciler {
	return &Reconciler{engine: engine, links: links, secrets: secrets}
}

// WebhookResult describes what a delivery did.
type WebhookResult struct {
	Event     string
	PaymentID string
	UserID    string
	Plan      plan.Plan
	Applied   bool // false for duplicates and ignored events
	Ignored   bool // event type not handled, or admin target
}

func (r WebhookResult) Duplicate() bool { return !r.Applied && !r.Ignored }

// HandleWebhook verifies and applies one webhook delivery. The returned error
// wraps one of the package sentinels, or a store error.
func (r *Reconciler) HandleWebhook(ctx context.Context, body []byte, signature string) (WebhookResult, error) {
	if r.secrets.WebhookSecret == "" {
		log.Error().Msg("Webhook received but RAZORPAY_WEBHOOK_SECRET is not set")
		return WebhookResult{}, ErrConfiguration
	}
	if strings.TrimSpace(signature) == "" {
		return WebhookResult{}, fmt.Errorf("%w: missing %s header", ErrMalformed, razorpay.SignatureHeader)
	}
	if !razorpay.VerifyWebhookSignature(body, signature, r.secrets.WebhookSecret) {
		metrics.SignatureFailures.WithLabelValues(SourceWebhook).Inc()
		log.Warn().Bool("audit", true).Int("body_bytes", len(body)).Msg("Webhook signature verification failed")
		return WebhookResult{}, ErrSignature
	}

	ev, err := razorpay.ParseWebhookEvent(body)
	if err != nil {
		return WebhookResult{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	res := WebhookResult{Event: ev.Event, PaymentID: ev.Payload.Payment.Entity.ID}
	if ev.Event != razorpay.EventPaymentLinkPaid {
		log.Debug().Str("event", ev.Event).Msg("Ignoring webhook event")
		res.Ignored = true
		return res, nil
	}

	res.UserID = strings.TrimSpace(ev.Note(noteUserID))
	p, perr := plan.Parse(ev.Note(notePlan))
	if res.PaymentID == "" || res.UserID == "" || perr != nil || !p.IsPaid() {
		log.Warn().
			Str("event", ev.Event).
			Str("payment_id", res.PaymentID).
			Str("payload", truncate(body, maxLoggedPayload)).
			Msg("Webhook payload missing plan or user metadata")
		return res, fmt.Errorf("%w: notes must carry a paid plan and userId", ErrData)
	}
	res.Plan = p

	_, applied, err := r.engine.ApplyPayment(ctx, entitlement.PaymentConfirmation{
		PaymentID: res.PaymentID,
		UserID:    res.UserID,
		Plan:      p,
		Source:    SourceWebhook,
		LinkID:    ev.LinkID(),
	})
	switch {
	case errors.Is(err, entitlement.ErrAdminExempt):
		log.Info().Str("user_id", res.UserID).Str("payment_id", res.PaymentID).Msg("Payment for admin-designated account acknowledged without change")
		res.Ignored = true
		return res, nil
	case errors.Is(err, entitlement.ErrNotFound):
		log.Warn().Str("user_id", res.UserID).Str("payment_id", res.PaymentID).Msg("Webhook references unknown user")
		return res, fmt.Errorf("%w: unknown user %q", ErrData, res.UserID)
	case err != nil:
		return res, err
	}
	res.Applied = applied

	if linkID := ev.LinkID(); linkID != "" && r.links != nil {
		if err := r.links.MarkLink(ctx, linkID, "paid"); err != nil && !errors.Is(err, ErrLinkNotFound) {
			log.Warn().Err(err).Str("link_id", linkID).Msg("Failed to mark payment link paid")
		}
	}
	return res, nil
}

type OutcomeKind string

const (
	OutcomePaid               OutcomeKind = "paid"
	OutcomeCancelled          OutcomeKind = "cancelled"
	OutcomeFailed             OutcomeKind = "failed"
	OutcomeVerificationFailed OutcomeKind = "verification_failed"
	OutcomeInvalid            OutcomeKind = "invalid"
)

// RedirectParams are the query parameters on the browser redirect.
type RedirectParams struct {
	LinkID    string
	PaymentID string
	Signature string
	Status    string
	Plan      string // echoed from the callback URL
	UserID    string // echoed from the callback URL
}

func ParseRedirect(q url.Values) RedirectParams {
	return RedirectParams{
		LinkID:    strings.TrimSpace(q.Get("razorpay_payment_link_id")),
		PaymentID: strings.TrimSpace(q.Get("razorpay_payment_id")),
		Signature: strings.TrimSpace(q.Get("razorpay_signature")),
		Status:    strings.ToLower(strings.TrimSpace(q.Get("razorpay_payment_link_status"))),
		Plan:      strings.TrimSpace(q.Get("plan")),
		UserID:    strings.TrimSpace(q.Get("userId")),
	}
}

type Outcome struct {
	Kind        OutcomeKind
	Plan        plan.Plan
	PaymentID   string
	Applied     bool
	Entitlement db.Entitlement
}

// HandleRedirect classifies a redirect and applies it when the signature
// holds. Only configuration and store failures are returned as errors; every
// user-facing result is an Outcome.
func (r *Reconciler) HandleRedirect(ctx context.Context, p RedirectParams) (Outcome, error) {
	out, err := r.handleRedirect(ctx, p)
	if err == nil {
		metrics.RedirectOutcomes.WithLabelValues(string(out.Kind)).Inc()
	}
	return out, err
}

func (r *Reconciler) handleRedirect(ctx context.Context, p RedirectParams) (Outcome, error) {
	switch p.Status {
	case "cancelled":
		return Outcome{Kind: OutcomeCancelled}, nil
	case "paid":
	default:
		return Outcome{Kind: OutcomeFailed}, nil
	}

	if r.secrets.KeySecret == "" {
		log.Error().Msg("Payment redirect received but RAZORPAY_KEY_SECRET is not set")
		return Outcome{}, ErrConfiguration
	}
	if p.LinkID == "" || p.PaymentID == "" || p.Signature == "" {
		return Outcome{Kind: OutcomeInvalid}, nil
	}
	if !razorpay.VerifyPaymentLinkSignature(p.LinkID, p.PaymentID, p.Signature, r.secrets.KeySecret) {
		metrics.SignatureFailures.WithLabelValues(SourceRedirect).Inc()
		log.Warn().Bool("audit", true).
			Str("link_id", p.LinkID).
			Str("payment_id", p.PaymentID).
			Msg("Payment redirect signature verification failed")
		return Outcome{Kind: OutcomeVerificationFailed}, nil
	}

	link, err := r.links.FindLink(ctx, p.LinkID)
	if errors.Is(err, ErrLinkNotFound) {
		log.Warn().Str("link_id", p.LinkID).Msg("Signed redirect for unknown payment link")
		return Outcome{Kind: OutcomeInvalid}, nil
	}
	if err != nil {
		return Outcome{}, err
	}
	if (p.UserID != "" && p.UserID != link.UserID) || (p.Plan != "" && !strings.EqualFold(p.Plan, string(link.Plan))) {
		log.Warn().Bool("audit", true).
			Str("link_id", link.ID).
			Str("echoed_user_id", p.UserID).
			Str("echoed_plan", p.Plan).
			Msg("Redirect parameters do not match payment link")
		return Outcome{Kind: OutcomeInvalid}, nil
	}

	rec, applied, err := r.engine.ApplyPayment(ctx, entitlement.PaymentConfirmation{
		PaymentID: p.PaymentID,
		UserID:    link.UserID,
		Plan:      link.Plan,
		Source:    SourceRedirect,
		LinkID:    link.ID,
	})
	switch {
	case errors.Is(err, entitlement.ErrAdminExempt):
		return Outcome{Kind: OutcomePaid, Plan: link.Plan, PaymentID: p.PaymentID}, nil
	case errors.Is(err, entitlement.ErrNotFound), errors.Is(err, entitlement.ErrInvalidPlan):
		return Outcome{Kind: OutcomeInvalid}, nil
	case err != nil:
		return Outcome{}, err
	}

	if err := r.links.MarkLink(ctx, link.ID, "paid"); err != nil {
		log.Warn().Err(err).Str("link_id", link.ID).Msg("Failed to mark payment link paid")
	}
	return Outcome{
		Kind:        OutcomePaid,
		Plan:        link.Plan,
		PaymentID:   p.PaymentID,
		Applied:     applied,
		Entitlement: rec,
	}, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
