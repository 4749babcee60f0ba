package entitlement

import (
	"context"
	"errors"
	"time"

	"go-careerdesk/metrics"
	"go-careerdesk/web/db"

	"github.com/rs/zerolog/log"
)

// SweepExpired moves every paid plan past its validity window back to free
// and calls onExpired for each record it changed.
func (e *Engine) SweepExpired(ctx context.Context, onExpired func(db.Entitlement)) (int, error) {
	cutoff := e.now().Add(-e.validity)
	due, err := e.store.ListExpiring(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, rec := range due {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}
		updated, err := e.Expire(ctx, rec.UserID)
		if errors.Is(err, ErrPrecondition) || errors.Is(err, ErrAdminExempt) {
			continue
		}
		if err != nil {
			log.Warn().Err(err).Str("user_id", rec.UserID).Msg("Failed to expire plan")
			continue
		}
		expired++
		metrics.PlansExpired.Inc()
		if onExpired != nil {
			onExpired(updated)
		}
	}
	return expired, nil
}

// PlanMonitor runs SweepExpired every interval until ctx is done.
func (e *Engine) PlanMonitor(ctx context.Context, interval time.Duration, onExpired func(db.Entitlement)) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n, err := e.SweepExpired(ctx, onExpired)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Plan expiry sweep failed")
		} else if n > 0 {
			log.Info().Int("expired", n).Msg("Plan expiry sweep finished")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
