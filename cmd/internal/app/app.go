// Package app wires the porchlight server runtime: config, logging,
// metrics, the account store, and the HTTP auth surface.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"porchlight/cmd/account"
	authapi "porchlight/cmd/internal/auth/api"
	"porchlight/cmd/internal/referral"
	"porchlight/cmd/security/password"
	"porchlight/cmd/security/token"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const (
	storeKindREST     = "rest"
	storeKindPostgres = "postgres"
	storeKindMemory   = "memory"
)

// Store is a small app-level lifecycle abstraction so backing
// resources can be closed gracefully.
type Store interface {
	Close(ctx context.Context) error
}

// nopStore is used for in-memory store mode.
type nopStore struct{}

func (nopStore) Close(_ context.Context) error { return nil }

// App is the porchlight server runtime.
type App struct {
	cfg Config
	log Logger

	store     Store
	storeKind string
	dbPool    *pgxpool.Pool

	metrics *Metrics
	auth    *authapi.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	tokens, err := token.NewService([]byte(cfg.SessionSecret))
	if err != nil {
		return nil, err
	}

	hasher, err := password.FromEnv()
	if err != nil {
		return nil, err
	}

	accounts, refStore, st, dbPool, storeKind, err := newStores(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	metrics := NewMetrics()

	referrals, err := referral.NewService(refStore, accounts)
	if err != nil {
		closeErr := st.Close(context.Background())
		return nil, errors.Join(err, closeErr)
	}

	authOpts := []authapi.HandlerOption{
		authapi.WithMetrics(authapi.NewMetrics(metrics.Registerer())),
		authapi.WithReferrals(referrals),
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		st = redisStore{inner: st, rdb: rdb}
		authOpts = append(authOpts, authapi.WithLoginLimiter(authapi.NewLoginLimiter(rdb)))
		log.Info("rate_limit.enabled.redis", "addr", cfg.RedisAddr)
	} else {
		log.Info("rate_limit.disabled")
	}

	authCfg := authapi.LoadConfigFromEnv()
	auth, err := authapi.NewHandler(log, authCfg, accounts, hasher, tokens, authOpts...)
	if err != nil {
		closeErr := st.Close(context.Background())
		return nil, errors.Join(err, closeErr)
	}

	return &App{
		cfg:       cfg,
		log:       log,
		store:     st,
		storeKind: storeKind,
		dbPool:    dbPool,
		metrics:   metrics,
		auth:      auth,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.storeKind, a.metrics, a.auth)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithSecurityHeaders(WithRequestLogging(mux, a.log, a.metrics)),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "store", a.storeKind)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if err := a.store.Close(shutdownCtx); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// newStores selects the account and referral backends: a hosted REST
// store wins, then Postgres, then the in-memory dev store. Referral
// bookkeeping is Postgres-backed only when a pool exists; in REST and
// memory modes it lives in process memory.
func newStores(ctx context.Context, cfg Config, log Logger) (account.Store, referral.Store, Store, *pgxpool.Pool, string, error) {
	if cfg.RESTURL != "" {
		accounts, err := account.NewRESTStore(cfg.RESTURL, cfg.RESTAPIKey)
		if err != nil {
			return nil, nil, nil, nil, "", err
		}
		log.Info("store.rest", "url", cfg.RESTURL)
		return accounts, referral.NewMemoryStore(), nopStore{}, nil, storeKindREST, nil
	}

	if cfg.DatabaseURL != "" {
		pool, err := NewDBPool(ctx, cfg)
		if err != nil {
			return nil, nil, nil, nil, "", err
		}
		accounts, err := account.NewPostgresStore(pool)
		if err != nil {
			pool.Close()
			return nil, nil, nil, nil, "", err
		}
		refStore, err := referral.NewPostgresStore(pool)
		if err != nil {
			pool.Close()
			return nil, nil, nil, nil, "", err
		}
		log.Info("store.postgres")
		return accounts, refStore, dbStore{pool: pool}, pool, storeKindPostgres, nil
	}

	log.Info("store.memory.dev_mode")
	return account.NewMemoryStore(), referral.NewMemoryStore(), nopStore{}, nil, storeKindMemory, nil
}

type dbStore struct {
	pool *pgxpool.Pool
}

func (s dbStore) Close(_ context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

type redisStore struct {
	inner Store
	rdb   *redis.Client
}

func (s redisStore) Close(ctx context.Context) error {
	var errs []error
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.inner != nil {
		if err := s.inner.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
