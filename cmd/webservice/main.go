package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-careerdesk/config"
	"go-careerdesk/logging"
	"go-careerdesk/service"
	"go-careerdesk/web"
	"go-careerdesk/web/db"
	"go-careerdesk/web/middleware"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// Version information (set at build time with -ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:           "careerdesk",
	Short:         "CareerDesk entitlement and billing service",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the plan monitor",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := setup()
		conn, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
		if err != nil {
			return err
		}
		if err := db.Sync(conn); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info().Str("driver", cfg.DBDriver).Msg("Schema up to date")
		return nil
	},
}

var expireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Run one plan expiry sweep and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := setup()
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		n, err := a.engine.SweepExpired(cmd.Context(), nil)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "expired %d plan(s)\n", n)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "careerdesk %s\n", Version)
		if BuildTime != "unknown" {
			fmt.Fprintf(cmd.OutOrStdout(), "Built: %s\n", BuildTime)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, expireCmd, versionCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads configuration and initialises logging from it.
func setup() *config.Config {
	cfg := config.Load()
	logging.Init(logging.Config{
		Format:    cfg.LogFormat,
		Level:     cfg.LogLevel,
		Component: "webservice",
	})
	return cfg
}

func runServer(ctx context.Context) error {
	cfg := setup()
	gin.SetMode(gin.ReleaseMode)

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	if a.conn != nil {
		if err := db.Sync(a.conn); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit, time.Minute)
	router := web.NewRouter(a.handler, web.RouterOptions{
		Secret:  cfg.JWTSecret,
		Admins:  a.admins,
		Limiter: limiter,
	})

	g, ctx := errgroup.WithContext(ctx)
	limiter.StartCleanup(ctx, 10*time.Minute)

	g.Go(func() error {
		return service.Start(ctx, "webservice", ":"+cfg.Port, router)
	})
	g.Go(func() error {
		a.handler.PlanMonitor(ctx, cfg.PlanCheckInterval)
		return nil
	})
	if cfg.AdminEmailsFile != "" {
		g.Go(func() error {
			if err := a.admins.Watch(ctx, cfg.AdminEmailsFile); err != nil {
				log.Warn().Err(err).Msg("Admin list watcher stopped")
			}
			return nil
		})
	}

	return g.Wait()
}
