package kv

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/educa-hub/pei-hub/internal/infrastructure/telemetry"
	"github.com/educa-hub/pei-hub/pkg/circuitbreaker"
	"github.com/educa-hub/pei-hub/pkg/logger"
	"github.com/educa-hub/pei-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// RETRY
// ══════════════════════════════════════════════════════════════════════════════

// RetryStore retries transient failures of the wrapped store.
// A missing key, context cancellation and errors marked with
// retry.Permanent are never retried.
type RetryStore struct {
	next   Store
	cfg    RetryConfig
	logger *slog.Logger
}

// RetryConfig configures a RetryStore.
type RetryConfig struct {
	Attempts     int
	InitialDelay time.Duration
	Metrics      *telemetry.Metrics
	Logger       *slog.Logger
}

// NewRetryStore wraps next with retries.
func NewRetryStore(next Store, cfg RetryConfig) *RetryStore {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &RetryStore{
		next:   next,
		cfg:    cfg,
		logger: cfg.Logger.With(logger.Component("kv_retry"), logger.Backend(BackendName(next))),
	}
}

func isTransient(err error) bool {
	return !retry.IsPermanent(err) &&
		!errors.Is(err, ErrKeyNotFound) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

func (s *RetryStore) retrier(op string) *retry.Retrier {
	return retry.StorageRetrier(s.cfg.Attempts, s.cfg.InitialDelay,
		retry.WithRetryIf(isTransient),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			s.logger.Warn("store call failed, retrying", "op", op, "attempt", attempt, "delay", delay, "error", err)
			s.cfg.Metrics.RecordStoreRetry(op)
		}),
	)
}

// Backend implements Named.
func (s *RetryStore) Backend() string { return BackendName(s.next) }

// Get implements Store.
func (s *RetryStore) Get(ctx context.Context, key string) ([]byte, error) {
	return retry.DoWithData(ctx, s.retrier("get"), func(ctx context.Context) ([]byte, error) {
		return s.next.Get(ctx, key)
	})
}

// Set implements Store.
func (s *RetryStore) Set(ctx context.Context, key string, value []byte) error {
	return s.retrier("set").Do(ctx, func(ctx context.Context) error {
		return s.next.Set(ctx, key, value)
	})
}

// ScanPrefix implements Store.
func (s *RetryStore) ScanPrefix(ctx context.Context, prefix string) ([]Entry, error) {
	return retry.DoWithData(ctx, s.retrier("scan"), func(ctx context.Context) ([]Entry, error) {
		return s.next.ScanPrefix(ctx, prefix)
	})
}

// Delete implements Store.
func (s *RetryStore) Delete(ctx context.Context, key string) error {
	return s.retrier("delete").Do(ctx, func(ctx context.Context) error {
		return s.next.Delete(ctx, key)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// InstrumentedStore records call counts and latency of the wrapped store.
type InstrumentedStore struct {
	next    Store
	backend string
	metrics *telemetry.Metrics
}

// NewInstrumentedStore wraps next with metrics.
func NewInstrumentedStore(next Store, metrics *telemetry.Metrics) *InstrumentedStore {
	return &InstrumentedStore{next: next, backend: BackendName(next), metrics: metrics}
}

// Backend implements Named.
func (s *InstrumentedStore) Backend() string { return s.backend }

func (s *InstrumentedStore) observe(op string, start time.Time, err error) {
	outcome := telemetry.OutcomeSuccess
	switch {
	case errors.Is(err, ErrKeyNotFound):
		outcome = telemetry.OutcomeNotFound
	case err != nil:
		outcome = telemetry.OutcomeError
	}
	s.metrics.ObserveStoreOp(s.backend, op, outcome, time.Since(start))
}

// Get implements Store.
func (s *InstrumentedStore) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	v, err := s.next.Get(ctx, key)
	s.observe("get", start, err)
	return v, err
}

// Set implements Store.
func (s *InstrumentedStore) Set(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	err := s.next.Set(ctx, key, value)
	s.observe("set", start, err)
	return err
}

// ScanPrefix implements Store.
func (s *InstrumentedStore) ScanPrefix(ctx context.Context, prefix string) ([]Entry, error) {
	start := time.Now()
	entries, err := s.next.ScanPrefix(ctx, prefix)
	s.observe("scan", start, err)
	return entries, err
}

// Delete implements Store.
func (s *InstrumentedStore) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.next.Delete(ctx, key)
	s.observe("delete", start, err)
	return err
}

// ══════════════════════════════════════════════════════════════════════════════
// CIRCUIT BREAKER
// ══════════════════════════════════════════════════════════════════════════════

// BreakerStore fails fast with circuitbreaker.ErrCircuitOpen while the
// wrapped backend keeps failing. Missing keys and canceled contexts do not
// count as failures.
type BreakerStore struct {
	next    Store
	breaker *circuitbreaker.CircuitBreaker
}

// BreakerConfig configures a BreakerStore. Zero values take the
// circuitbreaker defaults.
type BreakerConfig struct {
	FailureThreshold int
	Cooldown         time.Duration
	Logger           *slog.Logger

	// Now overrides the breaker clock in tests.
	Now func() time.Time
}

// NewBreakerStore wraps next with a circuit breaker named after its backend.
func NewBreakerStore(next Store, cfg BreakerConfig) *BreakerStore {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	backend := BackendName(next)
	log := cfg.Logger.With(logger.Component("kv_breaker"), logger.Backend(backend))

	cb := circuitbreaker.New(backend,
		circuitbreaker.WithFailureThreshold(cfg.FailureThreshold),
		circuitbreaker.WithCooldown(cfg.Cooldown),
		circuitbreaker.WithClock(cfg.Now),
		circuitbreaker.WithIsFailure(isTransient),
		circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
			log.Warn("store circuit changed state", "from", from.String(), "to", to.String())
		}),
	)
	return &BreakerStore{next: next, breaker: cb}
}

// Backend implements Named.
func (s *BreakerStore) Backend() string { return BackendName(s.next) }

// State reports the breaker state.
func (s *BreakerStore) State() circuitbreaker.State { return s.breaker.State() }

// Get implements Store.
func (s *BreakerStore) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		v, err = s.next.Get(ctx, key)
		return err
	})
	return v, err
}

// Set implements Store.
func (s *BreakerStore) Set(ctx context.Context, key string, value []byte) error {
	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.next.Set(ctx, key, value)
	})
}

// ScanPrefix implements Store.
func (s *BreakerStore) ScanPrefix(ctx context.Context, prefix string) ([]Entry, error) {
	var entries []Entry
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		entries, err = s.next.ScanPrefix(ctx, prefix)
		return err
	})
	return entries, err
}

// Delete implements Store.
func (s *BreakerStore) Delete(ctx context.Context, key string) error {
	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.next.Delete(ctx, key)
	})
}
