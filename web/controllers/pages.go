package controllers

import (
	"bytes"
	"html/template"
	"net/http"

	"go-careerdesk/payment/reconcile"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type page struct {
	Title    string
	Heading  string
	Message  string
	Success  bool
	Link     string
	LinkText string
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>{{.Title}}</title>
<style>
    body { font-family: Arial, sans-serif; background: #f2f2f2; display: flex; justify-content: center; align-items: center; height: 100vh; }
    .container { background: #fff; padding: 40px; border-radius: 10px; box-shadow: 0 4px 10px rgba(0,0,0,0.1); text-align: center; max-width: 400px; }
    h2 { color: {{if .Success}}#2ecc71{{else}}#e74c3c{{end}}; }
    p { color: #333; }
    a { display: inline-block; margin-top: 20px; padding: 10px 20px; color: #fff; background: #3498db; border-radius: 5px; text-decoration: none; }
    a:hover { background: #2980b9; }
</style>
</head>
<body>
<div class="container">
<h2>{{.Heading}}</h2>
<p>{{.Message}}</p>
{{if .Link}}<a href="{{.Link}}">{{.LinkText}}</a>{{end}}
</div>
</body>
</html>
`))

var (
	paidPage = page{
		Title:    "Payment Successful",
		Heading:  "Payment received!",
		Success:  true,
		Link:     "/account",
		LinkText: "Go to your account",
	}
	cancelledPage = page{
		Title:    "Payment Cancelled",
		Heading:  "Payment cancelled",
		Message:  "You cancelled the checkout. Your plan has not changed.",
		Link:     "/pricing",
		LinkText: "Back to plans",
	}
	failedPage = page{
		Title:    "Payment Failed",
		Heading:  "Payment failed",
		Message:  "The payment did not go through and your plan has not changed. Please try again.",
		Link:     "/pricing",
		LinkText: "Try again",
	}
	verificationFailedPage = page{
		Title:    "Verification Failed",
		Heading:  "We could not verify this payment",
		Message:  "The payment confirmation could not be verified. If you were charged, your plan will update once the gateway notifies us, or contact support.",
		Link:     "/support",
		LinkText: "Contact support",
	}
	invalidPage = page{
		Title:    "Invalid Payment Link",
		Heading:  "Invalid payment confirmation",
		Message:  "This confirmation link is incomplete or does not match your order.",
		Link:     "/support",
		LinkText: "Contact support",
	}
	configErrorPage = page{
		Title:   "Payment Error",
		Heading: "Payments are temporarily unavailable",
		Message: "We could not confirm your payment right now. Your payment is safe and will be applied automatically.",
	}
	retryPage = page{
		Title:   "Payment Pending",
		Heading: "Still confirming your payment",
		Message: "Please refresh this page in a moment.",
	}
)

func renderPage(c *gin.Context, status int, p page) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, p); err != nil {
		log.Error().Err(err).Msg("Failed to render page")
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}

func renderOutcome(c *gin.Context, out reconcile.Outcome) {
	switch out.Kind {
	case reconcile.OutcomePaid:
		p := paidPage
		p.Message = "Your " + string(out.Plan) + " plan is now active."
		renderPage(c, http.StatusOK, p)
	case reconcile.OutcomeCancelled:
		renderPage(c, http.StatusOK, cancelledPage)
	case reconcile.OutcomeVerificationFailed:
		renderPage(c, http.StatusBadRequest, verificationFailedPage)
	case reconcile.OutcomeInvalid:
		renderPage(c, http.StatusBadRequest, invalidPage)
	default:
		renderPage(c, http.StatusOK, failedPage)
	}
}
