package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"go-careerdesk/ai"
	"go-careerdesk/plan"
	"go-careerdesk/support"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const maxAIInputBytes = 1 << 20

func (h *Handler) RequestUpgrade(c *gin.Context) {
	var body struct {
		Plan            string `json:"plan"`
		PaymentProofURL string `json:"payment_proof_url"`
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

	actor, _, ok := h.current(c)
	if !ok {
		return
	}
	rec, err := h.Engine.RequestUpgrade(c.Request.Context(), actor, target, strings.TrimSpace(body.PaymentProofURL))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.view(rec))
}

// ProofUpload returns a presigned PUT for the payment screenshot. The client
// uploads directly and then sends proof_url with its upgrade request.
func (h *Handler) ProofUpload(c *gin.Context) {
	if h.Proofs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Proof uploads are not configured"})
		return
	}
	var body struct {
		ContentType string `json:"content_type"`
	}
	if err := decodeOptional(c, &body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	ct := strings.ToLower(strings.TrimSpace(body.ContentType))
	switch ct {
	case "":
		ct = "image/png"
	case "image/png", "image/jpeg", "image/webp", "application/pdf":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported content type"})
		return
	}

	actor, _, ok := h.current(c)
	if !ok {
		return
	}
	up, err := h.Proofs.PresignUpload(c.Request.Context(), actor.UserID, ct)
	if err != nil {
		log.Error().Err(err).Str("user_id", actor.UserID).Msg("Failed to presign proof upload")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to prepare upload, please retry"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"upload_url":   up.UploadURL,
		"proof_url":    up.ProofURL,
		"content_type": ct,
		"expires_at":   up.ExpiresAt,
	})
}

func (h *Handler) RequestCancellation(c *gin.Context) {
	actor, _, ok := h.current(c)
	if !ok {
		return
	}
	rec, err := h.Engine.RequestCancellation(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.view(rec))
}

// ConsumeCredit records one use by a client that ran a flow itself. It never
// fails for an exhausted balance.
func (h *Handler) ConsumeCredit(c *gin.Context) {
	actor, _, ok := h.current(c)
	if !ok {
		return
	}
	rec, err := h.Engine.ConsumeCredit(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"credits": rec.Credits, "access": h.Engine.Access(rec)})
}

func (h *Handler) RunAI(c *gin.Context) {
	f, err := plan.ParseFeature(c.Param("feature"))
	if err != nil {
		respondError(c, err)
		return
	}
	if h.Runner == nil {
		respondError(c, ai.ErrNotConfigured)
		return
	}
	input, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxAIInputBytes))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
		return
	}
	if len(input) > 0 && !json.Valid(input) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Body must be JSON"})
		return
	}

	actor, _, ok := h.current(c)
	if !ok {
		return
	}
	var out json.RawMessage
	err = h.Meter.Run(c.Request.Context(), actor, f, func(ctx context.Context) error {
		var rerr error
		out, rerr = h.Runner.Run(ctx, f, input)
		return rerr
	})
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{"feature": f, "result": out}
	if rec, err := h.Engine.Get(c.Request.Context(), actor.UserID); err == nil {
		resp["credits"] = rec.Credits
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Support(c *gin.Context) {
	var body struct {
		Subject string `json:"subject"`
		Message string `json:"message"`
	}
	if c.ShouldBindJSON(&body) != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	actor, _, ok := h.current(c)
	if !ok {
		return
	}
	t, err := support.NewTicket(actor.UserID, actor.Email, body.Subject, body.Message, h.now())
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.Tickets.Create(c.Request.Context(), t); err != nil {
		respondError(c, err)
		return
	}
	log.Info().Str("user_id", actor.UserID).Str("ticket_id", t.ID).Msg("Support ticket created")
	c.JSON(http.StatusCreated, gin.H{"id": t.ID})
}
