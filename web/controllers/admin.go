package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"go-careerdesk/entitlement"
	"go-careerdesk/plan"
	"go-careerdesk/web/middleware"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func queryInt(c *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n < 0 {
		return def
	}
	return n
}

func (h *Handler) AdminOverview(c *gin.Context) {
	ov, err := h.Engine.Overview(c.Request.Context(), middleware.ActorFrom(c), queryInt(c, "recent", 10))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"overview": ov, "stream_subscribers": h.Hub.Subscribers()})
}

func (h *Handler) AdminListUsers(c *gin.Context) {
	f := entitlement.ListFilter{
		Limit:  queryInt(c, "limit", 0),
		Offset: queryInt(c, "offset", 0),
	}
	if raw := c.Query("plan"); raw != "" {
		p, err := plan.Parse(raw)
		if err != nil {
			respondError(c, err)
			return
		}
		f.Plan = p
	}

	users, total, err := h.Engine.List(c.Request.Context(), middleware.ActorFrom(c), f)
	if err != nil {
		respondError(c, err)
		return
	}
	views := make([]entitlementView, 0, len(users))
	for _, u := range users {
		views = append(views, h.view(u))
	}
	c.JSON(http.StatusOK, gin.H{"users": views, "total": total, "offset": f.Offset})
}

func (h *Handler) AdminGetUser(c *gin.Context) {
	rec, err := h.Engine.Lookup(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	resp := gin.H{"user": h.view(rec)}
	if rec.PaymentProofURL != "" && h.Proofs != nil {
		if u, err := h.Proofs.PresignView(c.Request.Context(), rec.PaymentProofURL); err == nil {
			resp["proof_view_url"] = u
		} else {
			log.Debug().Err(err).Str("user_id", rec.UserID).Msg("Proof reference not viewable")
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) AdminResolveUpgrade(c *gin.Context) {
	var body struct {
		Decision string `json:"decision"`
	}
	if c.ShouldBindJSON(&body) != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	d, err := entitlement.ParseDecision(body.Decision)
	if err != nil {
		respondError(c, err)
		return
	}
	rec, err := h.Engine.ResolvePendingUpgrade(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), d)
	if err != nil {
		respondError(c, err)
		return
	}
	h.notify(rec)
	c.JSON(http.StatusOK, h.view(rec))
}

func (h *Handler) AdminResolveCancellation(c *gin.Context) {
	rec, err := h.Engine.ResolveCancellation(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	h.notify(rec)
	c.JSON(http.StatusOK, h.view(rec))
}

// AdminSetPlan is the manual override. requested_plan is only read when the
// target is pending.
func (h *Handler) AdminSetPlan(c *gin.Context) {
	var body struct {
		Plan          string `json:"plan"`
		RequestedPlan string `json:"requested_plan"`
	}
	if c.ShouldBindJSON(&body) != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	target, err := plan.Parse(body.Plan)
	if err != nil {
		respondError(c, err)
		return
	}
	var requested *plan.Plan
	if strings.TrimSpace(body.RequestedPlan) != "" {
		rp, err := plan.Parse(body.RequestedPlan)
		if err != nil {
			respondError(c, err)
			return
		}
		requested = &rp
	}

	rec, err := h.Engine.SetPlan(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), target, requested)
	if err != nil {
		respondError(c, err)
		return
	}
	h.notify(rec)
	c.JSON(http.StatusOK, h.view(rec))
}

func (h *Handler) AdminListTickets(c *gin.Context) {
	tickets, err := h.Tickets.List(c.Request.Context(), queryInt(c, "limit", 50))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}
