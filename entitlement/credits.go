package entitlement

import (
	"context"

	"go-careerdesk/metrics"
	"go-careerdesk/web/db"

	"github.com/rs/zerolog/log"
)

// ConsumeCredit records one unit of AI usage. It never fails on an empty
// balance and never touches admin or paid accounts; only store errors are
// returned.
func (e *Engine) ConsumeCredit(ctx context.Context, actor Actor) (db.Entitlement, error) {
	rec, _, err := e.ReserveCredit(ctx, actor)
	return rec, err
}

// ReserveCredit is ConsumeCredit that also reports whether a credit was taken.
func (e *Engine) ReserveCredit(ctx context.Context, actor Actor) (db.Entitlement, bool, error) {
	rec, err := e.store.Get(ctx, actor.UserID)
	if err != nil {
		return db.Entitlement{}, false, err
	}
	if e.IsAdmin(actor.Email) || e.IsAdmin(rec.Email) {
		return rec, false, nil
	}

	rec, taken, err := e.store.DecrementCredit(ctx, actor.UserID)
	if err != nil {
		return db.Entitlement{}, false, err
	}
	if taken {
		metrics.CreditsConsumed.Inc()
		log.Debug().Str("user_id", actor.UserID).Int64("credits", rec.Credits).Msg("Credit consumed")
		e.hub.Publish(rec)
	}
	return rec, taken, nil
}

// RefundCredit returns a reserved credit after the metered call failed.
func (e *Engine) RefundCredit(ctx context.Context, userID string) (db.Entitlement, error) {
	rec, err := e.store.RefundCredit(ctx, userID)
	if err != nil {
		return db.Entitlement{}, err
	}
	metrics.CreditsRefunded.Inc()
	e.hub.Publish(rec)
	return rec, nil
}
