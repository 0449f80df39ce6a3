package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"quoteflow/internal/config"
	"quoteflow/internal/seed"
	"quoteflow/internal/store"
)

// openStore opens the configured backend and brings its schema up to date.
// The returned ping reports backend health.
func openStore(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (store.Store, func(context.Context) error, error) {
	if cfg.Driver == "memory" {
		log.Warn().Msg("using in-memory store; data is lost on exit")
		mem := store.NewMemory()
		return mem, func(ctx context.Context) error {
			return mem.InTx(ctx, func(store.Tx) error { return nil })
		}, nil
	}

	s, err := store.OpenSQL(store.Dialect(cfg.Driver), cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info().Str("driver", cfg.Driver).Msg("database ready")
	return s, func(ctx context.Context) error { return s.DB().PingContext(ctx) }, nil
}

// seedDB applies the seed file when one is configured.
func seedDB(ctx context.Context, s store.Store, path string, log zerolog.Logger) error {
	if path == "" {
		return nil
	}
	f, err := seed.Load(path)
	if err != nil {
		return err
	}
	res, err := seed.Apply(ctx, s, f, log)
	if err != nil {
		return fmt.Errorf("seed %s: %w", path, err)
	}
	log.Info().
		Int("sites", res.Sites).
		Int("suppliers", res.Suppliers).
		Int("users", res.Users).
		Int("erp_items", res.ERPItems).
		Msg("seed applied")
	return nil
}
