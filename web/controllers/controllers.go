package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go-careerdesk/accounts"
	"go-careerdesk/ai"
	"go-careerdesk/credits"
	"go-careerdesk/entitlement"
	"go-careerdesk/payment/razorpay"
	"go-careerdesk/payment/reconcile"
	"go-careerdesk/plan"
	"go-careerdesk/proof"
	"go-careerdesk/support"
	"go-careerdesk/web/db"
	"go-careerdesk/web/middleware"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// PaymentGateway creates hosted payment links.
type PaymentGateway interface {
	CreatePaymentLink(ctx context.Context, lr razorpay.LinkRequest) (razorpay.PaymentLink, error)
}

// ProofStore hands out presigned URLs for payment proof uploads.
type ProofStore interface {
	PresignUpload(ctx context.Context, userID, contentType string) (proof.Upload, error)
	PresignView(ctx context.Context, proofURL string) (string, error)
}

type Mailer interface {
	SendVerification(to, link string) error
	SendPlanChanged(to string, p plan.Plan, expiresAt *time.Time) error
}

// Handler holds everything the HTTP surface talks to.
type Handler struct {
	Engine     *entitlement.Engine
	Hub        *entitlement.Hub
	Meter      *credits.Meter
	Runner     ai.Runner
	Reconciler *reconcile.Reconciler
	Links      reconcile.LinkStore
	Gateway    PaymentGateway
	Proofs     ProofStore
	Tickets    support.Repository
	Accounts   *accounts.Service
	Mailer     Mailer

	Secret    string
	TokenTTL  time.Duration
	PublicURL string
	Version   string
	Now       func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Signup(c *gin.Context) {
	var body credentials
	if c.ShouldBindJSON(&body) != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	user, err := h.Accounts.Register(c.Request.Context(), body.Email, body.Password)
	switch {
	case errors.Is(err, accounts.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "A valid email and a password of at least 8 characters are required"})
		return
	case errors.Is(err, accounts.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
		return
	case err != nil:
		log.Error().Err(err).Msg("Signup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	h.sendVerification(user)
	c.JSON(http.StatusCreated, gin.H{
		"email":   user.Email,
		"message": "Check your inbox for a verification link",
	})
}

func (h *Handler) Login(c *gin.Context) {
	var body credentials
	if c.ShouldBindJSON(&body) != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	user, err := h.Accounts.Authenticate(c.Request.Context(), body.Email, body.Password)
	if errors.Is(err, accounts.ErrInvalidCredentials) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email or password"})
		return
	}
	if errors.Is(err, accounts.ErrNotVerified) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Email not verified, please click the link in the verification email"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Login failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Please retry"})
		return
	}

	h.issueSession(c, http.StatusOK, user)
}

// issueSession provisions the entitlement on first authentication and
// returns a signed token.
func (h *Handler) issueSession(c *gin.Context, status int, user db.User) {
	rec, err := h.Engine.Provision(c.Request.Context(), user.UUID, user.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	token, err := middleware.IssueToken(h.Secret, user.UUID, user.Email, h.TokenTTL, h.now())
	if err != nil {
		log.Error().Err(err).Msg("Failed to sign token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
		return
	}
	c.JSON(status, gin.H{
		"token": token,
		"user":  h.view(rec),
	})
}

// entitlementView is the user-facing shape of a record.
type entitlementView struct {
	db.Entitlement
	EffectivePlan plan.Plan          `json:"effective_plan"`
	ExpiresAt     *time.Time         `json:"expires_at,omitempty"`
	Access        entitlement.Access `json:"access"`
}

func (h *Handler) view(rec db.Entitlement) entitlementView {
	return entitlementView{
		Entitlement:   rec,
		EffectivePlan: h.Engine.Effective(rec),
		ExpiresAt:     h.Engine.ExpiresAt(rec),
		Access:        h.Engine.Access(rec),
	}
}

// current loads the caller's record, creating it when the token was minted
// by an identity provider this service has not seen yet.
func (h *Handler) current(c *gin.Context) (entitlement.Actor, db.Entitlement, bool) {
	actor := middleware.ActorFrom(c)
	rec, err := h.Engine.Provision(c.Request.Context(), actor.UserID, actor.Email)
	if err != nil {
		respondError(c, err)
		return actor, db.Entitlement{}, false
	}
	return actor, rec, true
}

func (h *Handler) User(c *gin.Context) {
	_, rec, ok := h.current(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.view(rec))
}

func (h *Handler) Plans(c *gin.Context) {
	type offer struct {
		Plan        plan.Plan      `json:"plan"`
		Name        string         `json:"name"`
		Price       string         `json:"price"`
		Currency    string         `json:"currency"`
		AmountPaise int64          `json:"amount_paise"`
		Features    []plan.Feature `json:"features"`
	}
	out := []offer{}
	for _, o := range plan.Offers() {
		out = append(out, offer{
			Plan:        o.Plan,
			Name:        o.Name,
			Price:       o.PriceINR.StringFixed(2),
			Currency:    plan.Currency,
			AmountPaise: o.AmountPaise(),
			Features:    plan.Features(o.Plan),
		})
	}
	c.JSON(http.StatusOK, gin.H{"plans": out})
}

// statusFor maps domain errors onto HTTP statuses. Anything unrecognised is a
// store or dependency failure the client may retry.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, entitlement.ErrNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, entitlement.ErrForbidden):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, entitlement.ErrAdminExempt):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, entitlement.ErrPrecondition):
		return http.StatusConflict, err.Error()
	case errors.Is(err, entitlement.ErrInvalidPlan),
		errors.Is(err, entitlement.ErrInvalidDecision),
		errors.Is(err, plan.ErrUnknown),
		errors.Is(err, support.ErrInvalidTicket):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, plan.ErrUnknownFeature):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, credits.ErrNoCredits):
		return http.StatusPaymentRequired, err.Error()
	case errors.Is(err, credits.ErrFeatureLocked):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, ai.ErrNotConfigured),
		errors.Is(err, razorpay.ErrNotConfigured):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Request timed out, please retry"
	}
	return http.StatusServiceUnavailable, "Service temporarily unavailable, please retry"
}

func respondError(c *gin.Context, err error) {
	status, msg := statusFor(err)
	if status >= 500 {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	}
	c.JSON(status, gin.H{"error": msg})
}

// notify emails the owner of rec about a plan change without holding up the request.
func (h *Handler) notify(rec db.Entitlement) {
	if h.Mailer == nil || rec.Email == "" {
		return
	}
	p, expires := h.Engine.Effective(rec), h.Engine.ExpiresAt(rec)
	go func() {
		if err := h.Mailer.SendPlanChanged(rec.Email, p, expires); err != nil {
			log.Debug().Err(err).Str("user_id", rec.UserID).Msg("Plan change email not sent")
		}
	}()
}

// decodeOptional binds a JSON body when one was sent.
func decodeOptional(c *gin.Context, dst any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	return json.NewDecoder(c.Request.Body).Decode(dst)
}
