// Package app cablea config, stores, providers y router en un servidor HTTP.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/authority/internal/bootstrap"
	"github.com/dropDatabas3/authority/internal/cache"
	"github.com/dropDatabas3/authority/internal/config"
	"github.com/dropDatabas3/authority/internal/http/controllers"
	"github.com/dropDatabas3/authority/internal/http/router"
	jwtx "github.com/dropDatabas3/authority/internal/jwt"
	"github.com/dropDatabas3/authority/internal/metrics"
	"github.com/dropDatabas3/authority/internal/oauth"
	"github.com/dropDatabas3/authority/internal/observability/logger"
	"github.com/dropDatabas3/authority/internal/providers"
	"github.com/dropDatabas3/authority/internal/providers/google"
	"github.com/dropDatabas3/authority/internal/providers/stub"
	"github.com/dropDatabas3/authority/internal/rate"
	"github.com/dropDatabas3/authority/internal/security/password"
	"github.com/dropDatabas3/authority/internal/store"
	"github.com/dropDatabas3/authority/internal/store/pg"
	migrations "github.com/dropDatabas3/authority/migrations/postgres"
)

// App es la aplicación cableada.
type App struct {
	Config  *config.Config
	Handler http.Handler
	Tokens  *jwtx.Service
	Store   *store.Handle
	Cache   cache.Client
	Metrics *metrics.Metrics

	closers []func() error
}

// New construye todo a partir de cfg. Ante error libera lo ya abierto.
func New(ctx context.Context, cfg *config.Config) (a *App, err error) {
	log := logger.From(ctx).With(logger.Component("app"))
	a = &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = a.Close()
			a = nil
		}
	}()

	a.Tokens, err = jwtx.NewService(jwtx.Config{
		SigningKey: []byte(cfg.JWT.SigningKey),
		Issuer:     cfg.JWT.Issuer,
		Audience:   cfg.JWT.Audience,
	})
	if err != nil {
		return a, fmt.Errorf("app: jwt: %w", err)
	}

	if a.Metrics, err = metrics.New(nil); err != nil {
		return a, fmt.Errorf("app: metrics: %w", err)
	}

	if cfg.Storage.Driver == "postgres" && cfg.Storage.Postgres.AutoMigrate {
		applied, err := pg.Migrate(ctx, cfg.Storage.DSN, migrations.FS, "up", 0)
		if err != nil {
			return a, fmt.Errorf("app: migrate: %w", err)
		}
		log.Info("migrations up to date", logger.Int("applied", len(applied)))
	}

	a.Store, err = store.Open(ctx, store.Config{
		Driver: cfg.Storage.Driver,
		DSN:    cfg.Storage.DSN,
		Postgres: store.PostgresOptions(
			cfg.Storage.Postgres.MaxOpenConns,
			cfg.Storage.Postgres.MaxIdleConns,
			cfg.Storage.Postgres.ConnMaxLifetime,
		),
	})
	if err != nil {
		return a, fmt.Errorf("app: store: %w", err)
	}
	a.closers = append(a.closers, a.Store.Close)
	if err := a.Metrics.RegisterDB(a.Store.DB); err != nil {
		return a, fmt.Errorf("app: metrics db: %w", err)
	}

	a.Cache, err = cache.New(ctx, cache.Config{
		Driver:     cfg.Cache.Kind,
		Addr:       cfg.Cache.Redis.Addr,
		Password:   cfg.Cache.Redis.Password,
		DB:         cfg.Cache.Redis.DB,
		Prefix:     cfg.Cache.Redis.Prefix,
		DefaultTTL: config.Dur(cfg.Cache.Memory.DefaultTTL),
	})
	if err != nil {
		return a, fmt.Errorf("app: cache: %w", err)
	}
	a.closers = append(a.closers, a.Cache.Close)
	if err := a.Metrics.RegisterCache(a.Cache); err != nil {
		return a, fmt.Errorf("app: metrics cache: %w", err)
	}

	hasher := password.NewHasher(password.Params{
		Memory:      cfg.Password.Argon2.Memory,
		Time:        cfg.Password.Argon2.Iterations,
		Parallelism: cfg.Password.Argon2.Parallelism,
	})
	dummy, err := hasher.Hash("authority-timing-equalizer")
	if err != nil {
		return a, fmt.Errorf("app: dummy hash: %w", err)
	}

	if err := seed(ctx, cfg, a.Store, hasher); err != nil {
		return a, err
	}

	var ledger oauth.Ledger
	if cfg.OAuth.SingleUseCodes || cfg.OAuth.StrictRefreshRotation {
		ledger = oauth.NewCacheLedger(a.Cache)
		log.Info("single-use ledger enabled",
			logger.Bool("single_use_codes", cfg.OAuth.SingleUseCodes),
			logger.Bool("strict_refresh_rotation", cfg.OAuth.StrictRefreshRotation),
			logger.String("cache", cfg.Cache.Kind))
	}

	svc, err := oauth.NewService(oauth.Deps{
		Tokens:                a.Tokens,
		Users:                 a.Store.Users,
		Passwords:             hasher,
		Providers:             BuildRegistry(cfg),
		Ledger:                ledger,
		Metrics:               a.Metrics,
		AccessTTL:             config.Dur(cfg.JWT.AccessTTL),
		RefreshTTL:            config.Dur(cfg.JWT.RefreshTTL),
		AuthCodeTTL:           config.Dur(cfg.JWT.AuthCodeTTL),
		ProviderTimeout:       config.Dur(cfg.Providers.Timeout),
		Scope:                 cfg.OAuth.Scope,
		SingleUseCodes:        cfg.OAuth.SingleUseCodes,
		StrictRefreshRotation: cfg.OAuth.StrictRefreshRotation,
		DummyHash:             dummy,
	})
	if err != nil {
		return a, fmt.Errorf("app: oauth: %w", err)
	}

	var authorizeLimit, tokenLimit rate.Limiter
	if rl := cfg.RateLimit; rl.Enabled {
		authorizeLimit = rate.NewCacheLimiter(a.Cache, "rl:", rl.Authorize.Limit, config.Dur(rl.Authorize.Window))
		tokenLimit = rate.NewCacheLimiter(a.Cache, "rl:", rl.Token.Limit, config.Dur(rl.Token.Window))
	}

	a.Handler = router.New(router.Deps{
		OAuth:   svc,
		Tokens:  a.Tokens,
		Users:   a.Store.Users,
		Metrics: a.Metrics,
		Checks: map[string]controllers.Check{
			"store": a.Store.Ping,
			"cache": a.Cache.Ping,
		},
		Version:        cfg.App.Version,
		AuthorizeLimit: authorizeLimit,
		TokenLimit:     tokenLimit,
		TrustProxy:     cfg.Server.TrustProxy,
	})
	return a, nil
}

// BuildRegistry registra google (si está habilitado) y los providers pendientes.
func BuildRegistry(cfg *config.Config) *providers.Registry {
	reg := providers.NewRegistry()
	for _, name := range cfg.Providers.Pending {
		reg.Register(name, stub.Factory(name))
	}
	if g := cfg.Providers.Google; g.Enabled {
		reg.Register(google.ProviderName, google.Factory(google.Config{
			ClientID:     g.ClientID,
			ClientSecret: g.ClientSecret,
			RedirectURL:  g.RedirectURL,
			Scopes:       g.Scopes,
			Issuer:       g.Issuer,
			Timeout:      config.Dur(cfg.Providers.Timeout),
		}))
	}
	return reg
}

func seed(ctx context.Context, cfg *config.Config, h *store.Handle, hasher bootstrap.Hasher) error {
	if h.Memory != nil {
		bootstrap.EnsureRoles(h.Memory)
	}
	if cfg.Bootstrap.AdminEmail == "" {
		return nil
	}
	admins, ok := h.Users.(bootstrap.AdminStore)
	if !ok {
		return errors.New("app: store does not support admin bootstrap")
	}
	_, err := bootstrap.EnsureAdmin(ctx, admins, hasher, bootstrap.AdminConfig{
		Email:    cfg.Bootstrap.AdminEmail,
		Password: cfg.Bootstrap.AdminPassword,
	})
	return err
}

// Run sirve HTTP hasta que ctx se cancele y luego apaga con gracia.
func (a *App) Run(ctx context.Context) error {
	cfg := a.Config
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           a.Handler,
		ReadTimeout:       config.Dur(cfg.Server.ReadTimeout),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      config.Dur(cfg.Server.WriteTimeout),
		ErrorLog:          zap.NewStdLog(logger.L().Named("http")),
	}
	log := logger.From(ctx).With(logger.Component("app"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", logger.String("addr", srv.Addr), logger.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), config.Dur(cfg.Server.ShutdownTimeout))
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// Close libera store y cache en orden inverso de apertura.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
