// Package cli implements peictl, the command line front end of PEI Hub.
//
// Every invocation loads configuration, opens the configured plan store,
// wires the facade and exits. Plan-scoped commands load the plan named by
// --pei before they run.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/educa-hub/pei-hub/config"
	"github.com/educa-hub/pei-hub/internal/application/facade"
	"github.com/educa-hub/pei-hub/internal/application/query"
	"github.com/educa-hub/pei-hub/internal/domain/pei"
	"github.com/educa-hub/pei-hub/internal/domain/shared"
	"github.com/educa-hub/pei-hub/internal/infrastructure/messaging"
	"github.com/educa-hub/pei-hub/internal/infrastructure/persistence/kv"
	"github.com/educa-hub/pei-hub/internal/infrastructure/persistence/postgres"
	"github.com/educa-hub/pei-hub/internal/infrastructure/persistence/redis"
	"github.com/educa-hub/pei-hub/internal/infrastructure/persistence/sqlite"
	"github.com/educa-hub/pei-hub/internal/infrastructure/service"
	"github.com/educa-hub/pei-hub/internal/infrastructure/telemetry"
	"github.com/educa-hub/pei-hub/pkg/circuitbreaker"
	"github.com/educa-hub/pei-hub/pkg/logger"
)

// Options customizes Execute. Zero values select production behavior.
type Options struct {
	Version string
	Args    []string
	Stdout  io.Writer
	Stderr  io.Writer

	// Store replaces the configured backend.
	Store kv.Store

	// Clock and IDs override time and id generation.
	Clock pei.Clock
	IDs   pei.IDGenerator
}

// globalFlags are the persistent flags of the root command.
type globalFlags struct {
	peiID    string
	storage  string
	logLevel string
	json     bool
	metrics  bool
}

// app holds everything one invocation needs.
type app struct {
	opts  Options
	flags globalFlags

	cfg     *config.Config
	log     *slog.Logger
	metrics *telemetry.Metrics
	bus     *messaging.InMemoryEventBus
	repo    pei.Repository
	facade  *facade.PEIFacade
	health  *HealthChecker

	dashboards *query.GetPEIDashboardHandler
	plans      *query.GetStudentPEIsHandler

	closers []func() error
}

func newApp(opts Options) *app {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Clock == nil {
		opts.Clock = pei.SystemClock
	}
	if opts.IDs == nil {
		opts.IDs = service.NewIDGenerator()
	}
	return &app{opts: opts}
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRING
// ══════════════════════════════════════════════════════════════════════════════

func (a *app) init(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. Configuration, flags win over the environment
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.flags.storage != "" {
		cfg.Storage.Backend = a.flags.storage
	}
	if a.flags.logLevel != "" {
		cfg.Observability.LogLevel = a.flags.logLevel
	}
	if a.opts.Store == nil {
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	a.cfg = cfg

	// ─────────────────────────────────────────────────────────────────────────
	// 2. Logging and metrics
	// ─────────────────────────────────────────────────────────────────────────
	a.log = logger.New(logger.Options{
		Level:  cfg.Observability.LogLevel,
		Format: logger.Format(cfg.Observability.LogFormat),
		Output: a.opts.Stderr,
		Attrs: []slog.Attr{
			slog.String("app", cfg.App.Name),
			slog.String("version", a.opts.Version),
		},
	})
	metricsCfg := telemetry.DefaultMetricsConfig()
	metricsCfg.Enabled = cfg.Observability.MetricsEnabled || a.flags.metrics
	metricsCfg.Namespace = cfg.Observability.MetricsNamespace
	a.metrics = telemetry.NewMetrics(metricsCfg)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. Storage
	// ─────────────────────────────────────────────────────────────────────────
	a.health = NewHealthChecker(a.opts.Version)

	raw := a.opts.Store
	if raw == nil {
		raw, err = a.openBackend(ctx)
		if err != nil {
			return err
		}
	}
	store := a.decorate(raw)
	a.repo = kv.NewGateway(store, kv.GatewayConfig{KeyPrefix: cfg.Storage.KeyPrefix, Logger: a.log})
	a.log.Debug("storage ready", logger.Backend(kv.BackendName(raw)))

	// ─────────────────────────────────────────────────────────────────────────
	// 4. Events and notifications
	// ─────────────────────────────────────────────────────────────────────────
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = a.log
	busCfg.Metrics = a.metrics
	a.bus = messaging.NewInMemoryEventBus(busCfg)
	a.closers = append(a.closers, a.bus.Close)

	if err := a.bus.SubscribeAll(func(e shared.Event) error {
		a.log.Debug("event", "type", string(e.EventType()), "aggregate_id", e.AggregateID())
		return nil
	}); err != nil {
		return err
	}

	notifier := service.MultiNotifier{
		service.NewConsoleNotifier(a.opts.Stderr),
		service.NewLogNotifier(a.log, a.metrics),
		service.NewEventNotifier(a.bus, "peictl", a.log),
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. Application layer
	// ─────────────────────────────────────────────────────────────────────────
	a.facade, err = facade.New(facade.Config{
		Repository: a.repo,
		IDs:        a.opts.IDs,
		Clock:      a.opts.Clock,
		Notifier:   notifier,
		Events:     a.bus,
		Metrics:    a.metrics,
		Logger:     a.log,
	})
	if err != nil {
		return err
	}
	a.dashboards = query.NewGetPEIDashboardHandler(a.repo)
	a.plans = query.NewGetStudentPEIsHandler(a.repo)
	return nil
}

// openBackend connects the store selected by configuration and registers
// its health check and closer.
func (a *app) openBackend(ctx context.Context) (kv.Store, error) {
	cfg := a.cfg
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return kv.NewMemoryStore(), nil

	case config.BackendRedis:
		s, err := redis.NewStore(ctx, redis.Config{
			URL:          cfg.Redis.URL,
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			return nil, err
		}
		a.health.AddCheck("redis", PingCheck(s))
		a.closers = append(a.closers, s.Close)
		return s, nil

	case config.BackendPostgres:
		conn, err := postgres.NewConnection(ctx, postgres.Config{
			URL:             cfg.Database.URL,
			MaxConns:        int32(cfg.Database.MaxConns),
			MinConns:        int32(cfg.Database.MinConns),
			MaxConnLifetime: cfg.Database.ConnMaxLifetime,
			MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
			QueryTimeout:    cfg.Database.QueryTimeout,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { conn.Close(); return nil })
		if cfg.Database.AutoMigrate {
			if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		s := postgres.NewKVStore(conn)
		a.health.AddCheck("postgres", PingCheck(s))
		return s, nil

	case config.BackendSQLite:
		s, err := sqlite.NewStore(sqlite.Config{Path: cfg.SQLite.Path, BusyTimeout: cfg.SQLite.BusyTimeout})
		if err != nil {
			return nil, err
		}
		if err := s.Init(ctx); err != nil {
			return nil, err
		}
		a.health.AddCheck("sqlite", PingCheck(s))
		a.closers = append(a.closers, s.Close)
		return s, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// decorate wraps raw as breaker(retry(instrumented(raw))), so an open
// circuit short-circuits the retry loop.
func (a *app) decorate(raw kv.Store) kv.Store {
	cfg := a.cfg.Storage
	var s kv.Store = kv.NewInstrumentedStore(raw, a.metrics)
	s = kv.NewRetryStore(s, kv.RetryConfig{
		Attempts:     cfg.RetryAttempts,
		InitialDelay: cfg.RetryDelay,
		Metrics:      a.metrics,
		Logger:       a.log,
	})
	breaker := kv.NewBreakerStore(s, kv.BreakerConfig{
		FailureThreshold: cfg.BreakerThreshold,
		Cooldown:         cfg.BreakerCooldown,
		Logger:           a.log,
	})
	a.health.AddCheck("circuit", func(context.Context) error {
		if st := breaker.State(); st != circuitbreaker.StateClosed {
			return fmt.Errorf("storage circuit is %s", st)
		}
		return nil
	})
	return breaker
}

// close releases resources in reverse order and dumps metrics if asked.
func (a *app) close() error {
	var errs []error
	if a.flags.metrics && a.metrics != nil {
		if err := a.metrics.WriteText(a.opts.Stderr); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

var errNoPEI = errors.New("--pei is required for this command")

// loadPlan makes the plan selected by --pei current.
func (a *app) loadPlan(ctx context.Context) (pei.PEI, error) {
	if a.flags.peiID == "" {
		return pei.PEI{}, errNoPEI
	}
	return a.facade.LoadPEI(ctx, a.flags.peiID)
}

func (a *app) now() time.Time {
	return a.opts.Clock()
}
