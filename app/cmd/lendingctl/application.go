package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/library-lending-go/app/lendingservice"
	"github.com/AntonStoeckl/library-lending-go/app/shared/shell/config"
	"github.com/AntonStoeckl/library-lending-go/app/shared/shell/identity"
	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/memengine"
	"github.com/AntonStoeckl/library-lending-go/lending/oteladapters"
	"github.com/AntonStoeckl/library-lending-go/lending/postgresengine"
)

// application holds everything a subcommand needs.
type application struct {
	cfg      config.Config
	logger   *slog.Logger
	store    lending.Store
	postgres *postgresengine.Store
	service  *lendingservice.Service
	out      io.Writer
	errOut   io.Writer
	closers  []func() error
}

// userRegistry is implemented by both storage engines.
type userRegistry interface {
	SaveUser(ctx context.Context, user lending.UserSummary) error
}

func newApplication(ctx context.Context, getenv func(string) string, engine string, stdout, stderr io.Writer) (*application, error) {
	cfg, err := config.Load(getenv)
	if err != nil {
		return nil, err
	}

	app := &application{
		cfg:    cfg,
		logger: config.NewLogger(stderr, cfg.LogLevel),
		out:    stdout,
		errOut: stderr,
	}

	var storeOptions []postgresengine.Option
	serviceOptions := []lendingservice.Option{
		lendingservice.WithLoanPeriod(cfg.LoanPeriod),
		lendingservice.WithLogger(app.logger),
	}

	if cfg.OTelEndpoint != "" {
		providers, providerErr := config.NewObservabilityProviders(ctx, cfg.OTelEndpoint, serviceVersion)
		if providerErr != nil {
			return nil, fmt.Errorf("observability: %w", providerErr)
		}
		app.closers = append(app.closers, providers.Shutdown)

		metrics := oteladapters.NewMetricsCollector(providers.MeterProvider.Meter(config.ServiceName))
		tracing := oteladapters.NewTracingCollector(providers.TracerProvider.Tracer(config.ServiceName))
		contextual := oteladapters.NewSlogBridgeLogger(config.ServiceName)

		serviceOptions = append(serviceOptions,
			lendingservice.WithMetrics(metrics),
			lendingservice.WithTracing(tracing),
			lendingservice.WithContextualLogger(contextual),
		)
		storeOptions = append(storeOptions,
			postgresengine.WithMetrics(metrics),
			postgresengine.WithTracing(tracing),
			postgresengine.WithContextualLogger(contextual),
		)
	} else {
		serviceOptions = append(serviceOptions,
			lendingservice.WithContextualLogger(oteladapters.NewSlogBridgeLoggerWithHandler(app.logger.Handler())),
		)
	}

	if engine == "" {
		engine = enginePostgres
	}

	switch engine {
	case engineNone:
		return app, nil
	case engineMemory:
		app.store = memengine.NewStore(memengine.WithLogger(app.logger))
	case enginePostgres:
		if !cfg.UsesPostgres() {
			app.Close()
			return nil, fmt.Errorf("%w: the postgres engine needs %s, or pass -engine=memory for a throwaway store",
				errUsage, config.EnvDatabaseURL)
		}

		storeOptions = append(storeOptions, postgresengine.WithLogger(app.logger))
		pg, pgErr := app.openPostgres(ctx, storeOptions)
		if pgErr != nil {
			app.Close()
			return nil, pgErr
		}
		app.postgres = &pg
		app.store = pg
	default:
		app.Close()
		return nil, fmt.Errorf("%w: unknown engine %q", errUsage, engine)
	}

	if app.service, err = lendingservice.New(app.store, serviceOptions...); err != nil {
		app.Close()
		return nil, err
	}

	return app, nil
}

func (a *application) openPostgres(ctx context.Context, options []postgresengine.Option) (postgresengine.Store, error) {
	primaryURL, replicaURL := a.cfg.DatabaseURL, a.cfg.ReplicaDatabaseURL

	switch a.cfg.DBAdapter {
	case config.AdapterSQL:
		db, err := config.OpenSQLDB(ctx, primaryURL)
		if err != nil {
			return postgresengine.Store{}, err
		}
		a.closers = append(a.closers, db.Close)

		if replicaURL == "" {
			return postgresengine.NewStoreFromSQLDB(db, options...)
		}

		replica, err := config.OpenSQLDB(ctx, replicaURL)
		if err != nil {
			return postgresengine.Store{}, err
		}
		a.closers = append(a.closers, replica.Close)

		return postgresengine.NewStoreFromSQLDBWithReplica(db, replica, options...)

	case config.AdapterSQLX:
		db, err := config.OpenSQLX(ctx, primaryURL)
		if err != nil {
			return postgresengine.Store{}, err
		}
		a.closers = append(a.closers, db.Close)

		if replicaURL == "" {
			return postgresengine.NewStoreFromSQLX(db, options...)
		}

		var replica *sqlx.DB
		if replica, err = config.OpenSQLX(ctx, replicaURL); err != nil {
			return postgresengine.Store{}, err
		}
		a.closers = append(a.closers, replica.Close)

		return postgresengine.NewStoreFromSQLXWithReplica(db, replica, options...)

	default:
		pool, err := config.OpenPGXPool(ctx, primaryURL)
		if err != nil {
			return postgresengine.Store{}, err
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })

		if replicaURL == "" {
			return postgresengine.NewStoreFromPGXPool(pool, options...)
		}

		replica, err := config.OpenPGXPool(ctx, replicaURL)
		if err != nil {
			return postgresengine.Store{}, err
		}
		a.closers = append(a.closers, func() error { replica.Close(); return nil })

		return postgresengine.NewStoreFromPGXPoolWithReplica(pool, replica, options...)
	}
}

// identify attaches the caller of the token to ctx. Without a token the context stays anonymous
// and every operation except issue-token and a scheduled sweep is rejected as forbidden.
func (a *application) identify(ctx context.Context, token string) (context.Context, error) {
	if strings.TrimSpace(token) == "" {
		return ctx, nil
	}

	verifier, err := a.verifier()
	if err != nil {
		return ctx, err
	}

	caller, err := verifier.Verify(token)
	if err != nil {
		return ctx, err
	}

	return lending.WithCaller(ctx, caller), nil
}

func (a *application) verifier() (identity.TokenVerifier, error) {
	verifier, err := identity.NewTokenVerifier(a.cfg.JWTSecret)
	if err != nil {
		return identity.TokenVerifier{}, fmt.Errorf("%s: %w", config.EnvJWTSecret, err)
	}

	return verifier, nil
}

// Close releases the pools and flushes the telemetry providers, in reverse order of creation.
func (a *application) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil

	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("closing resources failed", "error", err.Error())
	}
}
