// Package app wires the vidtube server runtime: config, logging, persistence,
// the session service and the HTTP surface.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"vidtube/internal/auth/api"
	"vidtube/internal/auth/credential"
	"vidtube/internal/auth/session"
	"vidtube/internal/identity"
	"vidtube/internal/projection"
)

// App is the vidtube server runtime.
type App struct {
	cfg Config
	log Logger

	dbPool    *pgxpool.Pool
	dbEnabled bool

	auth    *api.Handler
	metrics *prometheus.Registry
}

// New constructs a fully wired App instance from config and logger.
//
// With VIDTUBE_DATABASE_URL unset the app runs on in-memory stores; state
// does not survive a restart, which is only acceptable for development.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel)
	}

	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	credCfg, err := credential.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	hasher, err := identity.NewPasswordHasherFromEnv()
	if err != nil {
		return nil, err
	}

	var (
		ids       identity.Store
		proj      projection.Store
		pool      *pgxpool.Pool
		dbEnabled bool
		audit     *api.AuditRecorder
	)
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		mem := identity.NewMemoryStore(hasher)
		ids = mem
		proj = projection.NewMemoryStore(mem)
	} else {
		pool, err = NewDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		log.Info("db.enabled.postgres_store")

		pg, err := identity.NewPostgresStore(pool,
			identity.WithSchema(cfg.DBSchema),
			identity.WithPasswordHasher(hasher),
		)
		if err != nil {
			pool.Close()
			return nil, err
		}
		pgProj, err := projection.NewPostgresStore(pool, projection.WithSchema(cfg.DBSchema))
		if err != nil {
			pool.Close()
			return nil, err
		}
		ids = pg
		proj = pgProj
		audit = api.NewAuditRecorder(log, pool, cfg.DBSchema)
		dbEnabled = true
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sessions, err := session.NewService(credCfg, ids, ids, hasher,
		session.WithLogger(log),
		session.WithMetrics(session.NewMetrics(reg)),
	)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, err
	}

	var opts []api.HandlerOption
	if audit != nil {
		opts = append(opts, api.WithAuditRecorder(audit))
	}
	authHandler, err := api.NewHandler(log, api.LoadConfigFromEnv(), ids, sessions, proj, hasher, opts...)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, err
	}

	return &App{
		cfg:       cfg,
		log:       log,
		dbPool:    pool,
		dbEnabled: dbEnabled,
		auth:      authHandler,
		metrics:   reg,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal
// server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.auth, a.metrics)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(mux, a.log),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

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

	if a.dbPool != nil {
		a.dbPool.Close()
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
