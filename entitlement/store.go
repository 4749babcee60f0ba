// Package entitlement owns the per-user plan record, the transitions between
// plans and the change notifications published after every write.
package entitlement

import (
	"context"
	"time"

	"go-careerdesk/plan"
	"go-careerdesk/web/db"
)

// ListFilter selects entitlements for the admin views. An empty Plan matches all.
type ListFilter struct {
	Plan   plan.Plan
	Limit  int
	Offset int
}

// Store persists entitlements. Update and ApplyPayment are atomic per record:
// the mutation function sees the current value under a lock and either every
// field it changed is written or nothing is.
type Store interface {
	Get(ctx context.Context, userID string) (db.Entitlement, error)
	Create(ctx context.Context, e db.Entitlement) error
	Update(ctx context.Context, userID string, fn func(*db.Entitlement) error) (db.Entitlement, error)
	// ApplyPayment runs fn and records ev in one unit. When ev.PaymentID was
	// already recorded it returns the current record and applied=false.
	ApplyPayment(ctx context.Context, ev db.PaymentEvent, fn func(*db.Entitlement) error) (rec db.Entitlement, applied bool, err error)
	// DecrementCredit takes one credit when the plan is free and the balance is positive.
	DecrementCredit(ctx context.Context, userID string) (rec db.Entitlement, taken bool, err error)
	// RefundCredit returns one credit while the plan is still free.
	RefundCredit(ctx context.Context, userID string) (db.Entitlement, error)
	List(ctx context.Context, f ListFilter) ([]db.Entitlement, int64, error)
	CountByPlan(ctx context.Context) (map[plan.Plan]int64, error)
	RecentSignups(ctx context.Context, limit int) ([]db.Entitlement, error)
	// ListExpiring returns paid records whose PlanUpdatedAt is before the cutoff.
	ListExpiring(ctx context.Context, before time.Time) ([]db.Entitlement, error)
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func clampLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}
