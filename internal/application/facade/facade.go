// Package facade is the single entry point callers use to edit a plan.
//
// PEIFacade holds the live snapshot of one plan, runs goal, strategy and
// progress operations against it, and writes every resulting snapshot
// through the repository. Analytics read the held snapshot.
package facade

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/educa-hub/pei-hub/internal/domain/pei"
	"github.com/educa-hub/pei-hub/internal/domain/shared"
	"github.com/educa-hub/pei-hub/internal/infrastructure/telemetry"
	"github.com/educa-hub/pei-hub/pkg/logger"
)

// ErrNoActivePEI is returned by operations that need a current plan when
// none has been loaded or created.
var ErrNoActivePEI = shared.NewDomainError("facade", "Current", shared.ErrInvalidState, "no active pei")

// errUnchanged tells mutate that fn resolved nothing and there is nothing
// to write.
var errUnchanged = errors.New("snapshot unchanged")

// Notification kinds passed to Notifier.
const (
	NotifySuccess = "success"
	NotifyError   = "error"
	NotifyInfo    = "info"
)

// User-facing messages.
const (
	msgCreated    = "PEI criado com sucesso"
	msgSaved      = "PEI salvo com sucesso"
	msgSaveFailed = "Erro ao salvar PEI"
	msgLoadFailed = "Erro ao carregar PEI"
	msgDeleted    = "PEI excluído"
)

// Notifier receives user-facing messages. Delivery is fire-and-forget.
type Notifier interface {
	Notify(message, kind string)
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, string) {}

// ══════════════════════════════════════════════════════════════════════════════
// CONSTRUCTION
// ══════════════════════════════════════════════════════════════════════════════

// Config wires a PEIFacade. Repository and IDs are required.
type Config struct {
	Repository pei.Repository
	IDs        pei.IDGenerator
	Clock      pei.Clock

	// Optional collaborators.
	Notifier Notifier
	Events   shared.EventPublisher
	Metrics  *telemetry.Metrics
	Logger   *slog.Logger
}

// PEIFacade owns the current plan snapshot.
//
// Writers are serialized so snapshots reach the repository in the order they
// were produced. Events are published after the writer lock is released, so
// handlers may call back into the facade.
type PEIFacade struct {
	repo     pei.Repository
	ids      pei.IDGenerator
	clock    pei.Clock
	notifier Notifier
	events   shared.EventPublisher
	metrics  *telemetry.Metrics
	logger   *slog.Logger

	goals      *pei.GoalManager
	strategies *pei.StrategyManager
	progress   *pei.ProgressManager

	write   sync.Mutex
	mu      sync.RWMutex
	current *pei.PEI
}

// New creates a facade with no current plan.
func New(cfg Config) (*PEIFacade, error) {
	if cfg.Repository == nil {
		return nil, errors.New("facade: repository is required")
	}
	if cfg.IDs == nil {
		return nil, errors.New("facade: id generator is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = pei.SystemClock
	}
	if cfg.Notifier == nil {
		cfg.Notifier = nopNotifier{}
	}
	if cfg.Events == nil {
		cfg.Events = shared.NopPublisher{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &PEIFacade{
		repo:       cfg.Repository,
		ids:        cfg.IDs,
		clock:      cfg.Clock,
		notifier:   cfg.Notifier,
		events:     cfg.Events,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger.With(logger.Component("pei_facade")),
		goals:      pei.NewGoalManager(cfg.IDs),
		strategies: pei.NewStrategyManager(cfg.IDs),
		progress:   pei.NewProgressManager(cfg.IDs, cfg.Clock),
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// outbox collects events raised while the writer lock is held.
type outbox []shared.Event

func (o *outbox) add(e shared.Event) { *o = append(*o, e) }

func (f *PEIFacade) flush(o *outbox) {
	for _, e := range *o {
		if err := f.events.Publish(e); err != nil {
			f.logger.Warn("failed to publish event", "event_type", e.EventType(), "error", err)
		}
	}
}

// Current returns a copy of the held plan.
func (f *PEIFacade) Current() (pei.PEI, bool) {
	p, ok := f.snapshot()
	if !ok {
		return pei.PEI{}, false
	}
	return p.Clone(), true
}

// snapshot returns the held plan without copying. Snapshots are never
// modified in place, so sharing is safe for readers.
func (f *PEIFacade) snapshot() (pei.PEI, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.current == nil {
		return pei.PEI{}, false
	}
	return *f.current, true
}

func (f *PEIFacade) setCurrent(p *pei.PEI) {
	f.mu.Lock()
	f.current = p
	f.mu.Unlock()

	if p == nil {
		f.metrics.SetGoalsTracked(0)
		return
	}
	f.metrics.SetGoalsTracked(len(p.Goals))
}

// persist writes p. On failure the held snapshot stays as it is and the
// caller retries with SavePEI.
func (f *PEIFacade) persist(ctx context.Context, op string, p pei.PEI, out *outbox) error {
	if err := f.repo.Save(ctx, p); err != nil {
		f.logger.Error("failed to save pei", "op", op, logger.PEIID(p.ID), "error", err)
		f.notifier.Notify(msgSaveFailed, NotifyError)
		return shared.WrapError("facade", op, shared.ErrStorage, "save failed", err)
	}
	out.add(shared.NewPEISavedEvent(p.ID, p.StudentID, len(p.Goals)))
	return nil
}

// mutate applies fn to the held plan, makes the result current and
// persists it. fn returns errUnchanged when it resolved nothing.
func (f *PEIFacade) mutate(ctx context.Context, op string, fn func(pei.PEI, *outbox) (pei.PEI, error)) (err error) {
	defer func() { f.metrics.RecordOperation(op, err) }()

	var out outbox
	defer f.flush(&out)

	f.write.Lock()
	defer f.write.Unlock()

	cur, ok := f.snapshot()
	if !ok {
		return ErrNoActivePEI
	}
	next, err := fn(cur, &out)
	if errors.Is(err, errUnchanged) {
		return nil
	}
	if err != nil {
		return err
	}
	f.setCurrent(&next)
	return f.persist(ctx, op, next, &out)
}

// ══════════════════════════════════════════════════════════════════════════════
// PLAN LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// LoadPEI makes the stored plan current. A missing plan returns
// pei.ErrPEINotFound and leaves the current plan untouched.
func (f *PEIFacade) LoadPEI(ctx context.Context, id string) (_ pei.PEI, err error) {
	defer func() { f.metrics.RecordOperation("load", err) }()

	f.write.Lock()
	defer f.write.Unlock()

	p, err := f.repo.Load(ctx, id)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			f.logger.Error("failed to load pei", logger.PEIID(id), "error", err)
			f.notifier.Notify(msgLoadFailed, NotifyError)
		}
		return pei.PEI{}, err
	}

	f.setCurrent(&p)
	return p.Clone(), nil
}

// CreatePEI builds a new plan, makes it current and saves it. The id is
// returned even when the save fails.
func (f *PEIFacade) CreatePEI(ctx context.Context, params pei.NewPEIParams) (string, error) {
	p, err := pei.NewPEI(params, f.ids, f.clock())
	if err != nil {
		f.metrics.RecordOperation("create", err)
		return "", err
	}
	return p.ID, f.install(ctx, "create", p)
}

// CreatePEIFromAssessment derives a plan from an assessment.
func (f *PEIFacade) CreatePEIFromAssessment(ctx context.Context, a pei.Assessment) (string, error) {
	p, err := pei.NewPEIFromAssessment(a, f.ids, f.clock())
	if err != nil {
		f.metrics.RecordOperation("create_from_assessment", err)
		return "", err
	}
	return p.ID, f.install(ctx, "create_from_assessment", p)
}

func (f *PEIFacade) install(ctx context.Context, op string, p pei.PEI) (err error) {
	defer func() { f.metrics.RecordOperation(op, err) }()

	var out outbox
	defer f.flush(&out)

	f.write.Lock()
	defer f.write.Unlock()

	f.setCurrent(&p)
	out.add(shared.NewPEICreatedEvent(p.ID, p.StudentID, p.AssessmentID))
	if err := f.persist(ctx, op, p, &out); err != nil {
		return err
	}
	f.logger.Info("pei created", logger.PEIID(p.ID), logger.StudentID(p.StudentID))
	f.notifier.Notify(msgCreated, NotifySuccess)
	return nil
}

// SavePEI writes the current plan again.
func (f *PEIFacade) SavePEI(ctx context.Context) (err error) {
	defer func() { f.metrics.RecordOperation("save", err) }()

	var out outbox
	defer f.flush(&out)

	f.write.Lock()
	defer f.write.Unlock()

	p, ok := f.snapshot()
	if !ok {
		return ErrNoActivePEI
	}
	if err := f.persist(ctx, "save", p, &out); err != nil {
		return err
	}
	f.notifier.Notify(msgSaved, NotifySuccess)
	return nil
}

// UpdatePEI merges top-level fields onto the current plan.
func (f *PEIFacade) UpdatePEI(ctx context.Context, upd pei.PEIUpdate) error {
	return f.mutate(ctx, "update", func(p pei.PEI, _ *outbox) (pei.PEI, error) {
		return pei.ApplyPEIUpdate(p, upd, f.clock())
	})
}

// GetStudentPEIs lists every stored plan of a student, newest first.
func (f *PEIFacade) GetStudentPEIs(ctx context.Context, studentID string) (list []pei.PEI, err error) {
	defer func() { f.metrics.RecordOperation("list", err) }()
	return f.repo.ListByStudent(ctx, studentID)
}

// DeletePEI removes a stored plan. Deleting the current plan clears it.
func (f *PEIFacade) DeletePEI(ctx context.Context, id string) (err error) {
	defer func() { f.metrics.RecordOperation("delete", err) }()

	var out outbox
	defer f.flush(&out)

	f.write.Lock()
	defer f.write.Unlock()

	if err := f.repo.Delete(ctx, id); err != nil {
		return err
	}
	if cur, ok := f.snapshot(); ok && cur.ID == id {
		f.setCurrent(nil)
	}

	out.add(shared.NewPEIDeletedEvent(id))
	f.notifier.Notify(msgDeleted, NotifyInfo)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GOALS
// ══════════════════════════════════════════════════════════════════════════════

// AddGoal appends a goal to the current plan.
func (f *PEIFacade) AddGoal(ctx context.Context, in pei.GoalInput) (string, error) {
	var id string
	err := f.mutate(ctx, "add_goal", func(p pei.PEI, _ *outbox) (pei.PEI, error) {
		next, goalID, err := f.goals.AddGoal(p, in)
		id = goalID
		return next, err
	})
	return id, err
}

// UpdateGoal merges upd onto a goal. Unknown ids change nothing.
func (f *PEIFacade) UpdateGoal(ctx context.Context, goalID string, upd pei.GoalUpdate) error {
	return f.mutate(ctx, "update_goal", func(p pei.PEI, out *outbox) (pei.PEI, error) {
		before, found := pei.GoalByID(p, goalID)
		next, err := f.goals.UpdateGoal(p, goalID, upd)
		if err != nil {
			return next, err
		}
		if !found {
			return p, errUnchanged
		}
		if upd.Status == nil || *upd.Status == before.Status {
			return next, nil
		}
		out.add(shared.NewGoalStatusChangedEvent(p.ID, goalID, string(before.Status), string(*upd.Status), false))
		return next, nil
	})
}

// DeleteGoal removes a goal with its strategies and progress.
func (f *PEIFacade) DeleteGoal(ctx context.Context, goalID string) error {
	return f.mutate(ctx, "delete_goal", func(p pei.PEI, _ *outbox) (pei.PEI, error) {
		if _, ok := pei.GoalByID(p, goalID); !ok {
			return p, errUnchanged
		}
		return f.goals.DeleteGoal(p, goalID), nil
	})
}

// GetGoal looks a goal up in the current plan.
func (f *PEIFacade) GetGoal(goalID string) (pei.Goal, bool) {
	p, ok := f.snapshot()
	if !ok {
		return pei.Goal{}, false
	}
	return pei.GoalByID(p, goalID)
}

// ══════════════════════════════════════════════════════════════════════════════
// STRATEGIES
// ══════════════════════════════════════════════════════════════════════════════

// AddStrategy appends a strategy to a goal. An unknown goal returns an empty
// id and writes nothing.
func (f *PEIFacade) AddStrategy(ctx context.Context, goalID string, in pei.StrategyInput) (string, error) {
	var id string
	err := f.mutate(ctx, "add_strategy", func(p pei.PEI, _ *outbox) (pei.PEI, error) {
		next, strategyID, ok := f.strategies.AddStrategy(p, goalID, in)
		if !ok {
			return p, errUnchanged
		}
		id = strategyID
		return next, nil
	})
	return id, err
}

// UpdateStrategy merges upd onto a strategy.
func (f *PEIFacade) UpdateStrategy(ctx context.Context, goalID, strategyID string, upd pei.StrategyUpdate) error {
	return f.mutate(ctx, "update_strategy", func(p pei.PEI, _ *outbox) (pei.PEI, error) {
		if _, ok := pei.StrategyByID(p, goalID, strategyID); !ok {
			return p, errUnchanged
		}
		return f.strategies.UpdateStrategy(p, goalID, strategyID, upd), nil
	})
}

// DeleteStrategy removes a strategy from a goal.
func (f *PEIFacade) DeleteStrategy(ctx context.Context, goalID, strategyID string) error {
	return f.mutate(ctx, "delete_strategy", func(p pei.PEI, _ *outbox) (pei.PEI, error) {
		if _, ok := pei.StrategyByID(p, goalID, strategyID); !ok {
			return p, errUnchanged
		}
		return f.strategies.DeleteStrategy(p, goalID, strategyID), nil
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// AddProgressRecord appends a record and applies goal status propagation.
// An unknown goal returns an empty id and writes nothing.
func (f *PEIFacade) AddProgressRecord(ctx context.Context, goalID string, in pei.ProgressInput) (string, error) {
	var id string
	err := f.mutate(ctx, "add_progress", func(p pei.PEI, out *outbox) (pei.PEI, error) {
		before, _ := pei.GoalByID(p, goalID)
		next, recID, err := f.progress.AddProgressRecord(p, goalID, in)
		if err != nil {
			return next, err
		}
		if recID == "" {
			return p, errUnchanged
		}
		id = recID

		out.add(shared.NewProgressRecordedEvent(p.ID, goalID, recID, string(in.Status)))
		if after, _ := pei.GoalByID(next, goalID); after.Status != before.Status {
			out.add(shared.NewGoalStatusChangedEvent(p.ID, goalID, string(before.Status), string(after.Status), true))
		}
		return next, nil
	})
	return id, err
}

// UpdateProgressRecord merges upd onto a record. Goal status is untouched.
func (f *PEIFacade) UpdateProgressRecord(ctx context.Context, goalID, progressID string, upd pei.ProgressUpdate) error {
	return f.mutate(ctx, "update_progress", func(p pei.PEI, _ *outbox) (pei.PEI, error) {
		next, err := f.progress.UpdateProgressRecord(p, goalID, progressID, upd)
		if err != nil {
			return next, err
		}
		if _, ok := pei.ProgressRecordByID(p, goalID, progressID); !ok {
			return p, errUnchanged
		}
		return next, nil
	})
}

// DeleteProgressRecord removes a record. Goal status is untouched.
func (f *PEIFacade) DeleteProgressRecord(ctx context.Context, goalID, progressID string) error {
	return f.mutate(ctx, "delete_progress", func(p pei.PEI, _ *outbox) (pei.PEI, error) {
		if _, ok := pei.ProgressRecordByID(p, goalID, progressID); !ok {
			return p, errUnchanged
		}
		return f.progress.DeleteProgressRecord(p, goalID, progressID), nil
	})
}

// GetProgressAnalytics summarizes one goal's log. Returns false when there
// is no current plan or the goal does not exist.
func (f *PEIFacade) GetProgressAnalytics(goalID string) (*pei.GoalProgressSummary, bool) {
	p, ok := f.snapshot()
	if !ok {
		return nil, false
	}
	return pei.GoalProgressAnalytics(p, goalID)
}

// ══════════════════════════════════════════════════════════════════════════════
// ANALYTICS
// ══════════════════════════════════════════════════════════════════════════════

// OverallProgress is pei.OverallProgress of the current plan, or 0.
func (f *PEIFacade) OverallProgress() int {
	p, _ := f.snapshot()
	return pei.OverallProgress(p)
}

// ProgressTrends is pei.ProgressTrends of the current plan.
func (f *PEIFacade) ProgressTrends() []pei.TrendPoint {
	p, _ := f.snapshot()
	return pei.ProgressTrends(p)
}

// GoalsByDomain is pei.GoalsByDomain of the current plan.
func (f *PEIFacade) GoalsByDomain() []pei.DomainSummary {
	p, _ := f.snapshot()
	return pei.GoalsByDomain(p)
}

// ProgressDistribution is pei.ProgressDistribution of the current plan.
func (f *PEIFacade) ProgressDistribution() []pei.DistributionEntry {
	p, _ := f.snapshot()
	return pei.ProgressDistribution(p)
}
