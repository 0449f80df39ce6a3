package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"quoteflow/internal/audit"
	"quoteflow/internal/auth"
	"quoteflow/internal/catalog"
	"quoteflow/internal/config"
	"quoteflow/internal/handlers/admin"
	"quoteflow/internal/handlers/procurement"
	"quoteflow/internal/logging"
	"quoteflow/internal/numbering"
	"quoteflow/internal/rfq"
	"quoteflow/internal/server"
	"quoteflow/internal/websocket"
)

var version = "dev"

func main() {
	configFile := flag.String("config", "", "Path to a YAML config file (default ./quoteflow.yaml if present)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(logging.Config{
		Level:       cfg.Log.Level,
		Environment: cfg.Log.Environment,
		ServiceName: "quoteflow",
		Version:     version,
	})

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("quoteflow stopped")
	}
	log.Info().Msg("server stopped")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, ping, err := openStore(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	if err := seedDB(ctx, s, cfg.Seed.File, log); err != nil {
		return err
	}

	tokens, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	gate := auth.NewGate()
	hub := websocket.NewHub(gate, log)
	numbers := numbering.New(s, log)
	rfqs := rfq.NewService(s, numbers, gate, hub, log)
	cat := catalog.NewService(s, gate, hub, log)
	authn := auth.NewAuthenticator(s, tokens, auth.NewLockout(), log)

	app := &server.App{
		Log:         log,
		Hub:         hub,
		Authn:       authn,
		Procurement: &procurement.Handler{RFQs: rfqs, Catalog: cat},
		Admin:       &admin.Handler{Auth: authn, Catalog: cat, Gate: gate, Store: s},
		Ping:        ping,
		Version:     version,
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           app.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	c := cron.New(cron.WithLogger(cronLogger{log}), cron.WithChain(cron.SkipIfStillRunning(cronLogger{log})))
	if _, err := c.AddFunc(cfg.Audit.CleanupSchedule, func() {
		jobCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		if _, err := audit.Cleanup(jobCtx, s, cfg.Audit.RetentionDays, log); err != nil {
			log.Error().Err(err).Msg("audit cleanup failed")
		}
	}); err != nil {
		return fmt.Errorf("audit.cleanup_schedule: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Int("port", cfg.Server.Port).Str("version", version).Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		c.Start()
		<-gctx.Done()
		<-c.Stop().Done()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// cronLogger adapts zerolog to cron's logger.
type cronLogger struct{ log zerolog.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
