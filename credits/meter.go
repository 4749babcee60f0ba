// Package credits gates AI flows on the caller's plan and credit balance.
package credits

import (
	"context"
	"errors"
	"fmt"

	"go-careerdesk/entitlement"
	"go-careerdesk/metrics"
	"go-careerdesk/plan"

	"github.com/rs/zerolog/log"
)

var (
	ErrNoCredits     = errors.New("no credits left on the free plan")
	ErrFeatureLocked = errors.New("feature not available on the current plan")
)

// Meter reserves a credit before a metered call and refunds it when the call
// fails.
type Meter struct {
	engine *entitlement.Engine
}

func NewMeter(engine *entitlement.Engine) *Meter {
	return &Meter{engine: engine}
}

func (m *Meter) Run(ctx context.Context, actor entitlement.Actor, f plan.Feature, call func(context.Context) error) error {
	rec, err := m.engine.Get(ctx, actor.UserID)
	if err != nil {
		return err
	}

	access := m.engine.Access(rec)
	if !plan.Allows(access.Tier, f) {
		metrics.AIRequests.WithLabelValues(string(f), "locked").Inc()
		return fmt.Errorf("%w: %s requires %s", ErrFeatureLocked, f, f.MinTier())
	}

	reserved := false
	if access.Metered {
		latest, taken, err := m.engine.ReserveCredit(ctx, actor)
		if err != nil {
			return err
		}
		reserved = taken
		if !taken {
			// The plan may have changed since the first read.
			access = m.engine.Access(latest)
			if !plan.Allows(access.Tier, f) {
				metrics.AIRequests.WithLabelValues(string(f), "locked").Inc()
				return fmt.Errorf("%w: %s requires %s", ErrFeatureLocked, f, f.MinTier())
			}
			if access.Metered {
				metrics.AIRequests.WithLabelValues(string(f), "no_credits").Inc()
				return ErrNoCredits
			}
		}
	}

	if err := call(ctx); err != nil {
		metrics.AIRequests.WithLabelValues(string(f), "failed").Inc()
		if reserved {
			// Refund on a fresh context; the request context may be what failed.
			if _, rerr := m.engine.RefundCredit(context.WithoutCancel(ctx), actor.UserID); rerr != nil {
				log.Error().Err(rerr).Str("user_id", actor.UserID).Str("feature", string(f)).Msg("Failed to refund reserved credit")
			}
		}
		return err
	}

	metrics.AIRequests.WithLabelValues(string(f), "ok").Inc()
	return nil
}
