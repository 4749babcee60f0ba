package entitlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-careerdesk/admins"
	"go-careerdesk/metrics"
	"go-careerdesk/plan"
	"go-careerdesk/web/db"

	"github.com/rs/zerolog/log"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID string
	Email  string
}

type Decision string

const (
	Approve Decision = "approve"
	Reject  Decision = "reject"
)

func ParseDecision(s string) (Decision, error) {
	switch d := Decision(strings.ToLower(strings.TrimSpace(s))); d {
	case Approve, Reject:
		return d, nil
	}
	return "", ErrInvalidDecision
}

// PaymentConfirmation is a verified gateway payment ready to be applied.
type PaymentConfirmation struct {
	PaymentID string
	UserID    string
	Plan      plan.Plan
	Source    string // "webhook" or "redirect"
	LinkID    string
}

type Options struct {
	FreeCredits int64
	Validity    time.Duration
	Now         func() time.Time
}

// Engine is the only writer of plan state. Every operation is a single
// Store.Update so the plan, requested plan, timestamp and payment fields
// change together.
type Engine struct {
	store       Store
	hub         *Hub
	admins      *admins.Allowlist
	freeCredits int64
	validity    time.Duration
	now         func() time.Time
}

func NewEngine(store Store, hub *Hub, allow *admins.Allowlist, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Validity <= 0 {
		opts.Validity = 30 * 24 * time.Hour
	}
	if opts.FreeCredits < 0 {
		opts.FreeCredits = 0
	}
	return &Engine{
		store:       store,
		hub:         hub,
		admins:      allow,
		freeCredits: opts.FreeCredits,
		validity:    opts.Validity,
		now:         opts.Now,
	}
}

func (e *Engine) IsAdmin(email string) bool { return e.admins.Contains(email) }

func (e *Engine) Validity() time.Duration { return e.validity }

func (e *Engine) Get(ctx context.Context, userID string) (db.Entitlement, error) {
	return e.store.Get(ctx, userID)
}

// Provision returns the user's entitlement, creating it on first use. Admins
// start on the top tier, everyone else on free with the starting allotment.
func (e *Engine) Provision(ctx context.Context, userID, email string) (db.Entitlement, error) {
	rec, err := e.store.Get(ctx, userID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return db.Entitlement{}, err
	}

	now := e.now()
	rec = db.Entitlement{
		UserID:    userID,
		Email:     strings.ToLower(strings.TrimSpace(email)),
		Plan:      plan.Free,
		Credits:   e.freeCredits,
		CreatedAt: now,
	}
	if e.IsAdmin(email) {
		rec.Plan = plan.Top()
		rec.Credits = 0
		rec.PlanUpdatedAt = &now
	}

	if err := e.store.Create(ctx, rec); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return e.store.Get(ctx, userID)
		}
		return db.Entitlement{}, err
	}
	rec, err = e.store.Get(ctx, userID)
	if err != nil {
		return db.Entitlement{}, err
	}
	log.Info().Str("user_id", userID).Str("plan", rec.Plan.String()).Msg("Entitlement provisioned")
	e.hub.Publish(rec)
	return rec, nil
}

func (e *Engine) transition(ctx context.Context, op, userID string, fn func(*db.Entitlement) error) (db.Entitlement, error) {
	rec, err := e.store.Update(ctx, userID, func(r *db.Entitlement) error {
		if err := fn(r); err != nil {
			return err
		}
		return checkConsistency(r)
	})
	metrics.TransitionsTotal.WithLabelValues(op, resultLabel(err)).Inc()
	if err != nil {
		log.Debug().Err(err).Str("op", op).Str("user_id", userID).Msg("Entitlement transition refused")
		return db.Entitlement{}, err
	}
	log.Info().
		Str("op", op).
		Str("user_id", userID).
		Str("plan", rec.Plan.String()).
		Int64("version", rec.Version).
		Msg("Entitlement transition applied")
	e.hub.Publish(rec)
	return rec, nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAdminExempt):
		return "admin_exempt"
	case errors.Is(err, ErrPrecondition), errors.Is(err, ErrInvalidPlan), errors.Is(err, ErrForbidden):
		return "rejected"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// checkConsistency enforces the field relationships every stored record must satisfy.
func checkConsistency(r *db.Entitlement) error {
	if !r.Plan.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPlan, r.Plan)
	}
	if (r.Plan == plan.Pending) != (r.RequestedPlan != nil) {
		return fmt.Errorf("%w: requested plan must be set exactly while pending", ErrPrecondition)
	}
	if r.RequestedPlan != nil && !r.RequestedPlan.IsPaid() {
		return fmt.Errorf("%w: requested plan %q is not a paid tier", ErrInvalidPlan, *r.RequestedPlan)
	}
	if r.PreviousPlan != nil && r.Plan != plan.CancellationRequested {
		return fmt.Errorf("%w: previous plan only kept during cancellation", ErrPrecondition)
	}
	if r.Credits < 0 {
		return fmt.Errorf("%w: negative credits", ErrPrecondition)
	}
	return nil
}

func (e *Engine) requireAdmin(actor Actor) error {
	if !e.IsAdmin(actor.Email) {
		return ErrForbidden
	}
	return nil
}

// RequestUpgrade moves the caller to pending with target recorded for admin
// review. Only free and pending users may request; paid users would lose
// access while waiting.
func (e *Engine) RequestUpgrade(ctx context.Context, actor Actor, target plan.Plan, proofURL string) (db.Entitlement, error) {
	if !target.IsRequestable() {
		return db.Entitlement{}, fmt.Errorf("%w: %q cannot be requested", ErrInvalidPlan, target)
	}
	if e.IsAdmin(actor.Email) {
		return db.Entitlement{}, ErrAdminExempt
	}
	return e.transition(ctx, "request_upgrade", actor.UserID, func(r *db.Entitlement) error {
		if e.IsAdmin(r.Email) {
			return ErrAdminExempt
		}
		if r.Plan != plan.Free && r.Plan != plan.Pending {
			return fmt.Errorf("%w: upgrade requests start from free, current plan is %s", ErrPrecondition, r.Plan)
		}
		now := e.now()
		t := target
		r.Plan = plan.Pending
		r.RequestedPlan = &t
		r.PreviousPlan = nil
		r.PlanUpdatedAt = &now
		r.PaymentProofURL = strings.TrimSpace(proofURL)
		return nil
	})
}

// ResolvePendingUpgrade approves or rejects a pending request. The payment
// proof reference is kept for audit.
func (e *Engine) ResolvePendingUpgrade(ctx context.Context, admin Actor, userID string, d Decision) (db.Entitlement, error) {
	if err := e.requireAdmin(admin); err != nil {
		return db.Entitlement{}, err
	}
	if d != Approve && d != Reject {
		return db.Entitlement{}, ErrInvalidDecision
	}
	return e.transition(ctx, "resolve_upgrade_"+string(d), userID, func(r *db.Entitlement) error {
		if e.IsAdmin(r.Email) {
			return ErrAdminExempt
		}
		if r.Plan != plan.Pending || r.RequestedPlan == nil {
			return fmt.Errorf("%w: no pending upgrade", ErrPrecondition)
		}
		if d == Approve {
			now := e.now()
			r.Plan = *r.RequestedPlan
			r.PlanUpdatedAt = &now
		} else {
			r.Plan = plan.Free
			r.PlanUpdatedAt = nil
		}
		r.RequestedPlan = nil
		return nil
	})
}

// RequestCancellation marks a paid plan for cancellation. Access continues on
// the previous plan until an admin resolves it.
func (e *Engine) RequestCancellation(ctx context.Context, actor Actor) (db.Entitlement, error) {
	if e.IsAdmin(actor.Email) {
		return db.Entitlement{}, ErrAdminExempt
	}
	return e.transition(ctx, "request_cancellation", actor.UserID, func(r *db.Entitlement) error {
		if e.IsAdmin(r.Email) {
			return ErrAdminExempt
		}
		if !r.Plan.IsPaid() {
			return fmt.Errorf("%w: no paid plan to cancel", ErrPrecondition)
		}
		now := e.now()
		prev := r.Plan
		r.Plan = plan.CancellationRequested
		r.PreviousPlan = &prev
		r.PlanUpdatedAt = &now
		return nil
	})
}

func (e *Engine) ResolveCancellation(ctx context.Context, admin Actor, userID string) (db.Entitlement, error) {
	if err := e.requireAdmin(admin); err != nil {
		return db.Entitlement{}, err
	}
	return e.transition(ctx, "resolve_cancellation", userID, func(r *db.Entitlement) error {
		if e.IsAdmin(r.Email) {
			return ErrAdminExempt
		}
		if r.Plan != plan.CancellationRequested {
			return fmt.Errorf("%w: no cancellation requested", ErrPrecondition)
		}
		r.Plan = plan.Free
		r.PlanUpdatedAt = nil
		r.RequestedPlan = nil
		r.PreviousPlan = nil
		return nil
	})
}

// SetPlan is the admin override. Any plan may be set; pending requires a
// paid requested plan. Admins cannot override their own record.
func (e *Engine) SetPlan(ctx context.Context, admin Actor, userID string, target plan.Plan, requested *plan.Plan) (db.Entitlement, error) {
	if err := e.requireAdmin(admin); err != nil {
		return db.Entitlement{}, err
	}
	if !target.Valid() {
		return db.Entitlement{}, fmt.Errorf("%w: %q", ErrInvalidPlan, target)
	}
	if admin.UserID == userID {
		return db.Entitlement{}, fmt.Errorf("%w: admins cannot override their own plan", ErrPrecondition)
	}
	if target == plan.Pending && (requested == nil || !requested.IsPaid()) {
		return db.Entitlement{}, fmt.Errorf("%w: pending requires a paid requested plan", ErrInvalidPlan)
	}

	return e.transition(ctx, "set_plan", userID, func(r *db.Entitlement) error {
		now := e.now()
		old := r.Plan

		r.Plan = target
		r.RequestedPlan = nil
		r.PreviousPlan = nil
		if target == plan.Pending {
			rp := *requested
			r.RequestedPlan = &rp
		}
		if target == plan.CancellationRequested && old.IsPaid() {
			r.PreviousPlan = &old
		}
		if target == plan.Free {
			r.PlanUpdatedAt = nil
		} else {
			r.PlanUpdatedAt = &now
		}
		return nil
	})
}

// ApplyPayment grants a verified paid plan. It is idempotent per payment id:
// a repeated confirmation returns applied=false and writes nothing.
func (e *Engine) ApplyPayment(ctx context.Context, c PaymentConfirmation) (db.Entitlement, bool, error) {
	if !c.Plan.IsPaid() {
		return db.Entitlement{}, false, fmt.Errorf("%w: %q is not a paid plan", ErrInvalidPlan, c.Plan)
	}
	if c.PaymentID == "" || c.UserID == "" {
		return db.Entitlement{}, false, fmt.Errorf("%w: payment id and user id are required", ErrPrecondition)
	}

	now := e.now()
	ev := db.PaymentEvent{
		PaymentID: c.PaymentID,
		UserID:    c.UserID,
		Plan:      c.Plan,
		Source:    c.Source,
		LinkID:    c.LinkID,
		AppliedAt: now,
	}
	rec, applied, err := e.store.ApplyPayment(ctx, ev, func(r *db.Entitlement) error {
		if e.IsAdmin(r.Email) {
			return ErrAdminExempt
		}
		p := c.Plan
		r.Plan = p
		r.RequestedPlan = nil
		r.PreviousPlan = nil
		r.PlanUpdatedAt = &now
		r.PaymentID = c.PaymentID
		r.WebhookVerified = true
		return checkConsistency(r)
	})
	metrics.TransitionsTotal.WithLabelValues("apply_payment", resultLabel(err)).Inc()
	if err != nil {
		return db.Entitlement{}, false, err
	}

	metrics.PaymentsApplied.WithLabelValues(c.Source, fmt.Sprint(!applied)).Inc()
	logger := log.With().Str("user_id", c.UserID).Str("payment_id", c.PaymentID).Str("source", c.Source).Logger()
	if !applied {
		logger.Info().Msg("Payment already applied, skipping")
		return rec, false, nil
	}
	logger.Info().Str("plan", rec.Plan.String()).Msg("Payment applied")
	e.hub.Publish(rec)
	return rec, true, nil
}

// Expire returns a paid plan to free once its validity window has passed.
func (e *Engine) Expire(ctx context.Context, userID string) (db.Entitlement, error) {
	return e.transition(ctx, "expire", userID, func(r *db.Entitlement) error {
		if e.IsAdmin(r.Email) {
			return ErrAdminExempt
		}
		if !r.Plan.IsPaid() || r.PlanUpdatedAt == nil {
			return fmt.Errorf("%w: no paid plan", ErrPrecondition)
		}
		if e.now().Before(r.PlanUpdatedAt.Add(e.validity)) {
			return fmt.Errorf("%w: plan still valid", ErrPrecondition)
		}
		r.Plan = plan.Free
		r.PlanUpdatedAt = nil
		r.RequestedPlan = nil
		return nil
	})
}

// Effective is the tier the user is entitled to right now.
func (e *Engine) Effective(rec db.Entitlement) plan.Plan {
	if e.IsAdmin(rec.Email) {
		return plan.Top()
	}
	switch rec.Plan {
	case plan.CancellationRequested:
		if rec.PreviousPlan != nil && rec.PreviousPlan.IsPaid() {
			return *rec.PreviousPlan
		}
		return plan.Free
	case plan.Pending:
		return plan.Free
	}
	return rec.Plan
}

// ExpiresAt is when a paid plan lapses, or nil when nothing expires.
func (e *Engine) ExpiresAt(rec db.Entitlement) *time.Time {
	if e.IsAdmin(rec.Email) || !rec.Plan.IsPaid() || rec.PlanUpdatedAt == nil {
		return nil
	}
	t := rec.PlanUpdatedAt.Add(e.validity)
	return &t
}

// Access summarises what a record may do.
type Access struct {
	Tier      plan.Plan      `json:"tier"`
	Metered   bool           `json:"metered"`
	Credits   int64          `json:"credits"`
	Admin     bool           `json:"admin"`
	Features  []plan.Feature `json:"features"`
	CanUseAny bool           `json:"can_use_any"`
}

// Access reports the effective tier and whether usage draws on credits. Only
// the stored free plan is metered.
func (e *Engine) Access(rec db.Entitlement) Access {
	admin := e.IsAdmin(rec.Email)
	tier := e.Effective(rec)
	metered := !admin && rec.Plan == plan.Free
	return Access{
		Tier:      tier,
		Metered:   metered,
		Credits:   rec.Credits,
		Admin:     admin,
		Features:  plan.Features(tier),
		CanUseAny: !metered || rec.Credits > 0,
	}
}
