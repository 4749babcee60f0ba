// Package web assembles the HTTP surface.
package web

import (
	"time"

	"go-careerdesk/admins"
	"go-careerdesk/web/controllers"
	"go-careerdesk/web/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterOptions struct {
	Secret  string
	Admins  *admins.Allowlist
	Limiter *middleware.RateLimiter
}

func corsConfig() cors.Config {
	return cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type", "Content-Length", "Accept-Encoding", "X-CSRF-Token",
			"Authorization", "Accept", "Origin", "Cache-Control", "X-Requested-With",
		},
		MaxAge: 12 * time.Hour,
	}
}

func NewRouter(h *controllers.Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(), cors.New(corsConfig()))

	limit := func(c *gin.Context) { c.Next() }
	if opts.Limiter != nil {
		limit = opts.Limiter.Middleware()
	}
	auth := middleware.RequireAuth(opts.Secret)

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/plans", limit, h.Plans)

	r.POST("/signup", limit, h.Signup)
	r.POST("/login", limit, h.Login)
	r.GET("/verify", limit, h.VerifyEmail)

	// Gateway callbacks carry their own signatures and are retried by the
	// gateway, so they are not rate limited.
	r.POST("/payment/webhook", h.PaymentWebhook)
	r.GET("/payment/callback", h.PaymentCallback)

	user := r.Group("/", limit, auth)
	user.GET("/user", h.User)
	user.POST("/upgrade/request", h.RequestUpgrade)
	user.POST("/upgrade/proof-upload", h.ProofUpload)
	user.POST("/cancel/request", h.RequestCancellation)
	user.POST("/credits/consume", h.ConsumeCredit)
	user.POST("/ai/:feature", h.RunAI)
	user.POST("/payment/link", h.CreatePaymentLink)
	user.GET("/payment/links", h.ListPaymentLinks)
	user.GET("/payment/link/:id/qr", h.PaymentLinkQR)
	user.POST("/support", h.Support)

	r.GET("/ws/entitlement", auth, h.EntitlementStream)

	admin := r.Group("/admin", middleware.AdminAuth(opts.Secret, opts.Admins))
	admin.GET("/overview", h.AdminOverview)
	admin.GET("/users", h.AdminListUsers)
	admin.GET("/users/:id", h.AdminGetUser)
	admin.POST("/users/:id/upgrade", h.AdminResolveUpgrade)
	admin.POST("/users/:id/cancellation", h.AdminResolveCancellation)
	admin.POST("/users/:id/plan", h.AdminSetPlan)
	admin.GET("/tickets", h.AdminListTickets)
	admin.GET("/ws", h.AdminStream)

	return r
}
