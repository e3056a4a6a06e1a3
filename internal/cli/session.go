package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/potionshop/internal/cache"
	"github.com/roach88/potionshop/internal/config"
	"github.com/roach88/potionshop/internal/engine"
	"github.com/roach88/potionshop/internal/notify"
	"github.com/roach88/potionshop/internal/policy"
	"github.com/roach88/potionshop/internal/store"
)

// session is one command's view of the shop: configuration, the open
// database and an engine wired to the configured cache and publisher.
type session struct {
	cfg     *config.Config
	store   *store.Store
	engine  *engine.Engine
	log     *slog.Logger
	out     *OutputFormatter
	closers []io.Closer
}

// openSession loads configuration and opens the shop. Opening a fresh
// database writes genesis.
func openSession(cmd *cobra.Command, opts *RootOptions) (*session, error) {
	ctx := cmd.Context()

	cfg, err := config.Load(opts.EnvFiles...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if opts.Database != "" {
		cfg.DBPath = opts.Database
	}

	level := cfg.Level()
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	s := &session{cfg: cfg, log: logger, out: newFormatter(cmd, opts)}

	engineOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithRetryBudget(cfg.RetryBudget),
		engine.WithCheckoutLease(cfg.CheckoutLease),
	}
	if cfg.PricingFile != "" {
		p, err := policy.Load(cfg.PricingFile)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid pricing policy", err)
		}
		engineOpts = append(engineOpts, engine.WithPricing(p))
	}

	c, err := openCache(ctx, cfg)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open catalog cache", err)
	}
	if c != nil {
		s.closers = append(s.closers, c)
		engineOpts = append(engineOpts, engine.WithCatalogCache(c, cfg.CatalogTTL))
	}

	if cfg.AMQPURL != "" {
		pub := notify.NewAMQP(cfg.AMQPURL, cfg.EventsQueue)
		s.closers = append(s.closers, pub)
		engineOpts = append(engineOpts, engine.WithPublisher(pub))
	}

	logger.Debug("opening database", "path", cfg.DBPath)
	s.store, err = store.Open(cfg.DBPath)
	if err != nil {
		s.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	s.engine, err = engine.Open(ctx, s.store, engineOpts...)
	if err != nil {
		s.Close()
		return nil, s.out.Fail("open shop", err)
	}
	return s, nil
}

type closingCache interface {
	cache.Cache
	io.Closer
}

// openCache returns nil when caching is off.
func openCache(ctx context.Context, cfg *config.Config) (closingCache, error) {
	switch cfg.CatalogCache {
	case config.CacheOff:
		return nil, nil
	case config.CacheRedis:
		return cache.NewRedis(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	default:
		return cache.NewMemory(cfg.CatalogTTL), nil
	}
}

// Close releases the database and every wired client.
func (s *session) Close() {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.log.Error("error closing database", "error", err)
		}
	}
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			s.log.Warn("error closing client", "error", err)
		}
	}
}

// withSession opens the shop, runs fn and closes the shop.
func withSession(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, s *session) error) error {
	s, err := openSession(cmd, opts)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(cmd.Context(), s)
}

func parseID(name, arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("%s must be a positive integer, got %q", name, arg))
	}
	return id, nil
}

func parseCount(name, arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("%s must be an integer, got %q", name, arg))
	}
	return n, nil
}
