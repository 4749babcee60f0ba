package main

import (
	"context"
	"fmt"
	"strings"

	"go-careerdesk/accounts"
	"go-careerdesk/admins"
	"go-careerdesk/ai"
	"go-careerdesk/config"
	"go-careerdesk/credits"
	"go-careerdesk/entitlement"
	"go-careerdesk/payment/razorpay"
	"go-careerdesk/payment/reconcile"
	"go-careerdesk/proof"
	"go-careerdesk/support"
	"go-careerdesk/web/controllers"
	"go-careerdesk/web/db"
	"go-careerdesk/web/email"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// app is the wired service.
type app struct {
	cfg     *config.Config
	conn    *gorm.DB // nil for the memory driver
	admins  *admins.Allowlist
	engine  *entitlement.Engine
	handler *controllers.Handler
}

type stores struct {
	entitlements entitlement.Store
	links        reconcile.LinkStore
	tickets      support.Repository
	users        accounts.Store
}

func openStores(cfg *config.Config) (stores, *gorm.DB, error) {
	if strings.EqualFold(cfg.DBDriver, "memory") {
		log.Warn().Msg("Using in-memory storage; all data is lost on restart")
		return stores{
			entitlements: entitlement.NewMemoryStore(),
			links:        reconcile.NewMemoryLinkStore(),
			tickets:      support.NewMemoryRepository(),
			users:        accounts.NewMemoryStore(),
		}, nil, nil
	}

	conn, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return stores{}, nil, err
	}
	return stores{
		entitlements: entitlement.NewGormStore(conn),
		links:        reconcile.NewGormLinkStore(conn),
		tickets:      support.NewGormRepository(conn),
		users:        accounts.NewGormStore(conn),
	}, conn, nil
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("SECRET must be set")
	}

	allow := admins.New(cfg.AdminEmails...)
	if cfg.AdminEmailsFile != "" {
		if err := allow.Load(cfg.AdminEmailsFile); err != nil {
			log.Warn().Err(err).Msg("Admin list file not loaded")
		}
	}
	if allow.Len() == 0 {
		log.Warn().Msg("No admin accounts configured")
	}

	st, conn, err := openStores(cfg)
	if err != nil {
		return nil, err
	}

	hub := entitlement.NewHub()
	engine := entitlement.NewEngine(st.entitlements, hub, allow, entitlement.Options{
		FreeCredits: cfg.FreeCredits,
		Validity:    cfg.PlanValidity,
	})

	h := &controllers.Handler{
		Engine: engine,
		Hub:    hub,
		Meter:  credits.NewMeter(engine),
		Runner: ai.NewHTTPRunner(cfg.AIRunnerURL),
		Reconciler: reconcile.New(engine, st.links, reconcile.Secrets{
			KeySecret:     cfg.Razorpay.KeySecret,
			WebhookSecret: cfg.Razorpay.WebhookSecret,
		}),
		Links:     st.links,
		Gateway:   razorpay.NewClient(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret, cfg.Razorpay.BaseURL),
		Tickets:   st.tickets,
		Accounts:  accounts.NewService(st.users),
		Secret:    cfg.JWTSecret,
		TokenTTL:  cfg.TokenTTL,
		PublicURL: cfg.PublicURL,
		Version:   Version,
	}

	if cfg.S3.Bucket != "" {
		p, err := proof.NewPresigner(ctx, proof.Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Payment proof uploads disabled")
		} else {
			h.Proofs = p
		}
	}
	if sender := email.NewSender(cfg.SMTP); sender.Enabled() {
		h.Mailer = sender
	} else {
		log.Warn().Msg("SMTP not configured; verification links are logged and plan change emails are disabled")
	}

	if cfg.AIRunnerURL == "" {
		log.Warn().Msg("AI_RUNNER_URL not set; AI features will return 503")
	}
	if cfg.Razorpay.KeySecret == "" || cfg.Razorpay.WebhookSecret == "" {
		log.Warn().Msg("Razorpay secrets incomplete; payment confirmation will fail closed")
	}

	return &app{cfg: cfg, conn: conn, admins: allow, engine: engine, handler: h}, nil
}
