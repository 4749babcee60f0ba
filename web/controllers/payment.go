package controllers

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go-careerdesk/metrics"
	"go-careerdesk/payment/qrcode"
	"go-careerdesk/payment/razorpay"
	"go-careerdesk/payment/reconcile"
	"go-careerdesk/plan"
	"go-careerdesk/web/db"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const webhookBodyLimit = 1 << 20

func (h *Handler) callbackURL(p plan.Plan, userID string) string {
	q := url.Values{}
	q.Set("plan", string(p))
	q.Set("userId", userID)
	return strings.TrimRight(h.PublicURL, "/") + "/payment/callback?" + q.Encode()
}

// CreatePaymentLink opens a hosted checkout for a paid plan. The user and plan
// travel in the link notes so the webhook can attribute the payment.
func (h *Handler) CreatePaymentLink(c *gin.Context) {
	var body struct {
		Plan string `json:"plan"`
	}
	if c.ShouldBindJSON(&body) != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	p, err := plan.Parse(body.Plan)
	if err != nil {
		respondError(c, err)
		return
	}
	offer, ok := plan.OfferFor(p)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Plan is not purchasable"})
		return
	}

	actor, _, ok := h.current(c)
	if !ok {
		return
	}
	if h.Engine.IsAdmin(actor.Email) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin accounts already have full access"})
		return
	}
	if h.Gateway == nil {
		respondError(c, razorpay.ErrNotConfigured)
		return
	}

	ref := uuid.New().String()
	pl, err := h.Gateway.CreatePaymentLink(c.Request.Context(), razorpay.LinkRequest{
		AmountPaise:   offer.AmountPaise(),
		Currency:      plan.Currency,
		Description:   "CareerDesk " + offer.Name + " plan",
		CustomerEmail: actor.Email,
		ReferenceID:   ref,
		CallbackURL:   h.callbackURL(p, actor.UserID),
		Notes:         map[string]string{"plan": string(p), "userId": actor.UserID},
	})
	if errors.Is(err, razorpay.ErrNotConfigured) {
		respondError(c, err)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("user_id", actor.UserID).Str("plan", string(p)).Msg("Failed to create payment link")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Payment gateway unavailable, please retry"})
		return
	}

	link := db.PaymentLink{
		ID:          pl.ID,
		UserID:      actor.UserID,
		Plan:        p,
		AmountPaise: offer.AmountPaise(),
		Currency:    plan.Currency,
		ShortURL:    pl.ShortURL,
		ReferenceID: ref,
		Status:      "created",
	}
	if err := h.Links.SaveLink(c.Request.Context(), link); err != nil {
		respondError(c, err)
		return
	}
	log.Info().Str("user_id", actor.UserID).Str("link_id", link.ID).Str("plan", string(p)).Msg("Payment link created")

	c.JSON(http.StatusCreated, gin.H{
		"id":           link.ID,
		"short_url":    link.ShortURL,
		"plan":         link.Plan,
		"amount_paise": link.AmountPaise,
		"currency":     link.Currency,
		"qr_url":       "/payment/link/" + link.ID + "/qr",
	})
}

func (h *Handler) ListPaymentLinks(c *gin.Context) {
	actor, _, ok := h.current(c)
	if !ok {
		return
	}
	links, err := h.Links.ListLinks(c.Request.Context(), actor.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"links": links})
}

func (h *Handler) PaymentLinkQR(c *gin.Context) {
	actor, _, ok := h.current(c)
	if !ok {
		return
	}
	link, err := h.Links.FindLink(c.Request.Context(), c.Param("id"))
	if errors.Is(err, reconcile.ErrLinkNotFound) || (err == nil && link.UserID != actor.UserID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Payment link not found"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	size := qrcode.DefaultSize
	if s, err := strconv.Atoi(c.Query("size")); err == nil && s >= 128 && s <= 1024 {
		size = s
	}
	png, err := qrcode.PaymentLinkPNG(link.ShortURL, size)
	if err != nil {
		log.Error().Err(err).Str("link_id", link.ID).Msg("Failed to render payment QR code")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render QR code"})
		return
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.Data(http.StatusOK, "image/png", png)
}

// PaymentWebhook is authenticated by the body signature alone.
func (h *Handler) PaymentWebhook(c *gin.Context) {
	start := time.Now()
	event := "unknown"
	status := http.StatusOK
	defer func() {
		metrics.WebhookRequestsTotal.WithLabelValues(event, strconv.Itoa(status)).Inc()
		metrics.WebhookDuration.WithLabelValues(event).Observe(time.Since(start).Seconds())
	}()

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, webhookBodyLimit))
	if err != nil {
		status = http.StatusBadRequest
		c.JSON(status, gin.H{"error": "Failed to read body"})
		return
	}

	res, err := h.Reconciler.HandleWebhook(c.Request.Context(), body, c.GetHeader(razorpay.SignatureHeader))
	if res.Event != "" {
		event = res.Event
	}
	switch {
	case errors.Is(err, reconcile.ErrConfiguration):
		status = http.StatusInternalServerError
		c.JSON(status, gin.H{"error": "Webhook secret not configured"})
		return
	case errors.Is(err, reconcile.ErrSignature):
		status = http.StatusForbidden
		c.JSON(status, gin.H{"error": "Invalid signature"})
		return
	case errors.Is(err, reconcile.ErrMalformed), errors.Is(err, reconcile.ErrData):
		status = http.StatusBadRequest
		c.JSON(status, gin.H{"error": err.Error()})
		return
	case err != nil:
		status = http.StatusInternalServerError
		log.Error().Err(err).Str("payment_id", res.PaymentID).Msg("Webhook processing failed")
		c.JSON(status, gin.H{"error": "Internal error, please retry"})
		return
	}

	resp := gin.H{"ok": true}
	switch {
	case res.Ignored:
		resp["ignored"] = true
	case res.Duplicate():
		resp["duplicate"] = true
	default:
		if rec, err := h.Engine.Get(c.Request.Context(), res.UserID); err == nil {
			h.notify(rec)
		}
	}
	c.JSON(status, resp)
}

// PaymentCallback is where the gateway sends the browser after checkout.
func (h *Handler) PaymentCallback(c *gin.Context) {
	out, err := h.Reconciler.HandleRedirect(c.Request.Context(), reconcile.ParseRedirect(c.Request.URL.Query()))
	if errors.Is(err, reconcile.ErrConfiguration) {
		renderPage(c, http.StatusInternalServerError, configErrorPage)
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Payment redirect processing failed")
		renderPage(c, http.StatusServiceUnavailable, retryPage)
		return
	}
	if out.Applied {
		h.notify(out.Entitlement)
	}
	renderOutcome(c, out)
}
