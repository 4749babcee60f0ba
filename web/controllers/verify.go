package controllers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"go-careerdesk/accounts"
	"go-careerdesk/web/db"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

var (
	verifiedPage = page{
		Title:    "Email Verified",
		Heading:  "Email Verified!",
		Message:  "Your email has been successfully verified. You can now log in.",
		Success:  true,
		Link:     "/login",
		LinkText: "Log in",
	}
	verifyMissingPage = page{
		Title:   "Verification Error",
		Heading: "Token is required",
		Message: "Please check your email link and try again.",
	}
	verifyInvalidPage = page{
		Title:   "Verification Error",
		Heading: "Invalid token",
		Message: "The verification link is invalid. Please sign up again.",
	}
	verifyExpiredPage = page{
		Title:   "Token Expired",
		Heading: "Verification link expired",
		Message: "Your verification link has expired. Please sign up again.",
	}
	verifyRetryPage = page{
		Title:   "Verification Error",
		Heading: "Something went wrong",
		Message: "We could not verify your email right now. Please try the link again in a moment.",
	}
)

func (h *Handler) verifyLink(token string) string {
	return strings.TrimRight(h.PublicURL, "/") + "/verify?token=" + url.QueryEscape(token)
}

// sendVerification mails the confirmation link in the background. Without
// SMTP the link is only logged, which is enough for local development.
func (h *Handler) sendVerification(user db.User) {
	link := h.verifyLink(user.VerifyToken)
	if h.Mailer == nil {
		log.Warn().Str("email", user.Email).Str("link", link).Msg("SMTP not configured; verification link not sent")
		return
	}
	go func() {
		if err := h.Mailer.SendVerification(user.Email, link); err != nil {
			log.Error().Err(err).Str("email", user.Email).Msg("Failed to send verification email")
		}
	}()
}

func (h *Handler) VerifyEmail(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		renderPage(c, http.StatusBadRequest, verifyMissingPage)
		return
	}

	user, err := h.Accounts.Verify(c.Request.Context(), token)
	switch {
	case errors.Is(err, accounts.ErrVerifyToken):
		renderPage(c, http.StatusBadRequest, verifyInvalidPage)
		return
	case errors.Is(err, accounts.ErrVerifyExpired):
		renderPage(c, http.StatusBadRequest, verifyExpiredPage)
		return
	case err != nil:
		log.Error().Err(err).Msg("Email verification failed")
		renderPage(c, http.StatusServiceUnavailable, verifyRetryPage)
		return
	}

	log.Info().Str("user_id", user.UUID).Msg("Email verified")
	renderPage(c, http.StatusOK, verifiedPage)
}
