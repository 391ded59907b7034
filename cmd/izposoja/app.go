package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/erazemk/izposoja/internal/api"
	"github.com/erazemk/izposoja/internal/catalog"
	"github.com/erazemk/izposoja/internal/config"
	"github.com/erazemk/izposoja/internal/db"
	"github.com/erazemk/izposoja/internal/errmsg"
	"github.com/erazemk/izposoja/internal/guard"
	"github.com/erazemk/izposoja/internal/tokenstore"
)

// app holds the wired client for one invocation.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	out        io.Writer
	tokens     tokenstore.Store
	normalizer *errmsg.Normalizer
	validate   *validator.Validate
	client     *api.Client
	store      *catalog.Store
	guard      *guard.Guard
	metrics    *prometheus.Registry
	closers    []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) (*app, error) {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		out:     out,
		metrics: prometheus.NewRegistry(),
	}
	a.validate = validator.New()

	tokens, err := a.openTokenStore(ctx)
	if err != nil {
		a.close()
		return nil, err
	}
	a.tokens = tokens

	client, err := api.New(cfg.APIBaseURL, tokens,
		api.WithTimeout(cfg.RequestTimeout),
		api.WithLogger(logger),
		api.WithMetrics(a.metrics),
	)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("creating API client: %w", err)
	}
	a.client = client

	a.normalizer = errmsg.New(cfg.Locale)
	a.store = catalog.New(client,
		catalog.WithItemsPerPage(cfg.ItemsPerPage),
		catalog.WithNormalizer(a.normalizer),
		catalog.WithLogger(logger),
	)
	a.guard = guard.New(a.store,
		guard.WithExpiryPolicy(cfg.SessionExpiry, tokens),
		guard.WithLogger(logger),
	)
	return a, nil
}

func (a *app) openTokenStore(ctx context.Context) (tokenstore.Store, error) {
	switch a.cfg.TokenStore {
	case config.TokenStoreRedis:
		rdb := redis.NewClient(&redis.Options{Addr: a.cfg.RedisAddr})
		a.closers = append(a.closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connecting to redis at %s: %w", a.cfg.RedisAddr, err)
		}
		return tokenstore.NewRedis(rdb, a.cfg.TokenKey, a.logger), nil
	default:
		database, err := db.Open(a.cfg.TokenDB)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, database.Close)
		if err := db.EnsureSchema(database); err != nil {
			return nil, fmt.Errorf("ensuring schema: %w", err)
		}
		return tokenstore.NewSQLite(database, a.cfg.TokenKey), nil
	}
}

// navigate runs the guard for path and reports a redirect as an error.
func (a *app) navigate(ctx context.Context, path string) error {
	d, err := a.guard.Before(ctx, path)
	if err != nil {
		return err
	}
	if d.Allowed() {
		return nil
	}
	target, _ := a.guard.Router().PathOf(d.Redirect)
	switch d.Redirect {
	case guard.Login:
		return fmt.Errorf("%w: not logged in (redirected to %s)", errDenied, target)
	default:
		return fmt.Errorf("%w: insufficient permissions (redirected to %s)", errDenied, target)
	}
}

// logMetrics writes a debug summary of the request counters.
func (a *app) logMetrics(ctx context.Context) {
	families, err := a.metrics.Gather()
	if err != nil {
		a.logger.WarnContext(ctx, "gathering metrics", "error", err)
		return
	}
	for _, mf := range families {
		if mf.GetName() != api.MetricNameRequestsTotal {
			continue
		}
		for _, m := range mf.GetMetric() {
			attrs := []any{"requests", m.GetCounter().GetValue()}
			for _, l := range m.GetLabel() {
				attrs = append(attrs, l.GetName(), l.GetValue())
			}
			a.logger.DebugContext(ctx, "api requests", attrs...)
		}
	}
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("closing resource", "error", err)
		}
	}
}
