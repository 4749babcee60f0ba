package controllers

import (
	"context"
	"time"

	"go-careerdesk/web/db"

	"github.com/rs/zerolog/log"
)

// PlanMonitor sweeps lapsed paid plans back to free until ctx is done.
func (h *Handler) PlanMonitor(ctx context.Context, interval time.Duration) {
	log.Info().Dur("interval", interval).Dur("validity", h.Engine.Validity()).Msg("Plan monitor started")
	h.Engine.PlanMonitor(ctx, interval, h.planExpired)
	log.Info().Msg("Plan monitor stopped")
}

func (h *Handler) planExpired(rec db.Entitlement) {
	log.Info().Str("user_id", rec.UserID).Msg("Paid plan expired")
	h.notify(rec)
}
