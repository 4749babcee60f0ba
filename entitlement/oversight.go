package entitlement

import (
	"context"

	"go-careerdesk/plan"
	"go-careerdesk/web/db"
)

// Overview is the admin dashboard summary.
type Overview struct {
	Counts        map[plan.Plan]int64 `json:"counts"`
	Total         int64               `json:"total"`
	PendingCount  int64               `json:"pending"`
	RecentSignups []db.Entitlement    `json:"recent_signups"`
}

func (e *Engine) Overview(ctx context.Context, admin Actor, recent int) (Overview, error) {
	if err := e.requireAdmin(admin); err != nil {
		return Overview{}, err
	}
	counts, err := e.store.CountByPlan(ctx)
	if err != nil {
		return Overview{}, err
	}
	signups, err := e.store.RecentSignups(ctx, recent)
	if err != nil {
		return Overview{}, err
	}

	ov := Overview{Counts: counts, RecentSignups: signups, PendingCount: counts[plan.Pending]}
	for _, n := range counts {
		ov.Total += n
	}
	return ov, nil
}

func (e *Engine) List(ctx context.Context, admin Actor, f ListFilter) ([]db.Entitlement, int64, error) {
	if err := e.requireAdmin(admin); err != nil {
		return nil, 0, err
	}
	return e.store.List(ctx, f)
}

func (e *Engine) Lookup(ctx context.Context, admin Actor, userID string) (db.Entitlement, error) {
	if err := e.requireAdmin(admin); err != nil {
		return db.Entitlement{}, err
	}
	return e.store.Get(ctx, userID)
}
