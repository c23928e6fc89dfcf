package facade

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/educa-hub/pei-hub/internal/domain/pei"
	"github.com/educa-hub/pei-hub/internal/domain/shared"
	"github.com/educa-hub/pei-hub/internal/infrastructure/messaging"
	"github.com/educa-hub/pei-hub/internal/infrastructure/persistence/kv"
	"github.com/educa-hub/pei-hub/internal/infrastructure/telemetry"
)

// ══════════════════════════════════════════════════════════════════════════════
// TEST DOUBLES
// ══════════════════════════════════════════════════════════════════════════════

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *seqIDs) GenerateID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("id-%d", s.n)
}

var fixedNow = time.Date(2024, time.March, 10, 9, 30, 0, 0, time.UTC)

type notification struct{ message, kind string }

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *recordingNotifier) Notify(message, kind string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{message, kind})
}

func (n *recordingNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.sent))
	for i, s := range n.sent {
		out[i] = s.kind
	}
	return out
}

// switchableRepo fails Save while failing is set.
type switchableRepo struct {
	pei.Repository
	failing bool
}

var errDiskFull = errors.New("disk full")

func (r *switchableRepo) Save(ctx context.Context, p pei.PEI) error {
	if r.failing {
		return errDiskFull
	}
	return r.Repository.Save(ctx, p)
}

type harness struct {
	facade   *PEIFacade
	repo     *switchableRepo
	store    *kv.MemoryStore
	notifier *recordingNotifier
	events   []shared.Event
	metrics  *telemetry.Metrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		store:    kv.NewMemoryStore(),
		notifier: &recordingNotifier{},
		metrics:  telemetry.NewMetrics(telemetry.DefaultMetricsConfig()),
	}
	h.repo = &switchableRepo{Repository: kv.NewGateway(h.store, kv.GatewayConfig{})}

	bus := messaging.NewInMemoryEventBus(messaging.DefaultInMemoryEventBusConfig())
	t.Cleanup(func() { _ = bus.Close() })
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		h.events = append(h.events, e)
		return nil
	}))

	f, err := New(Config{
		Repository: h.repo,
		IDs:        &seqIDs{},
		Clock:      func() time.Time { return fixedNow },
		Notifier:   h.notifier,
		Events:     bus,
		Metrics:    h.metrics,
	})
	require.NoError(t, err)
	h.facade = f
	return h
}

func (h *harness) eventTypes() []shared.EventType {
	out := make([]shared.EventType, len(h.events))
	for i, e := range h.events {
		out[i] = e.EventType()
	}
	return out
}

func (h *harness) create(t *testing.T) string {
	t.Helper()
	id, err := h.facade.CreatePEI(context.Background(), pei.NewPEIParams{
		StudentID:   "student-1",
		StudentName: "Ana",
		Title:       "PEI 2024",
	})
	require.NoError(t, err)
	return id
}

func (h *harness) stored(t *testing.T, id string) pei.PEI {
	t.Helper()
	p, err := h.repo.Load(context.Background(), id)
	require.NoError(t, err)
	return p
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{IDs: &seqIDs{}})
	assert.Error(t, err)
	_, err = New(Config{Repository: kv.NewGateway(kv.NewMemoryStore(), kv.GatewayConfig{})})
	assert.Error(t, err)
}

func TestCreatePEI(t *testing.T) {
	h := newHarness(t)
	id := h.create(t)

	cur, ok := h.facade.Current()
	require.True(t, ok)
	assert.Equal(t, id, cur.ID)
	assert.Equal(t, pei.StatusDraft, cur.Status)
	assert.Equal(t, fixedNow, cur.CreatedDate)

	assert.Equal(t, cur, h.stored(t, id))
	assert.Equal(t, []string{NotifySuccess}, h.notifier.kinds())
	assert.Equal(t, []shared.EventType{shared.EventPEICreated, shared.EventPEISaved}, h.eventTypes())
}

func TestCreatePEI_MissingStudent(t *testing.T) {
	h := newHarness(t)
	id, err := h.facade.CreatePEI(context.Background(), pei.NewPEIParams{})
	assert.ErrorIs(t, err, pei.ErrMissingStudent)
	assert.Empty(t, id)

	_, ok := h.facade.Current()
	assert.False(t, ok)
	assert.Zero(t, h.store.Len())
}

func TestCreatePEIFromAssessment(t *testing.T) {
	h := newHarness(t)
	id, err := h.facade.CreatePEIFromAssessment(context.Background(), pei.Assessment{
		ID:          "assess-9",
		StudentID:   "student-2",
		StudentName: "Bruno",
	})
	require.NoError(t, err)

	p := h.stored(t, id)
	assert.Equal(t, "assess-9", p.AssessmentID)
	assert.Equal(t, "Bruno", p.StudentName)
	assert.Equal(t, "PEI - Bruno", p.Title)
	assert.Empty(t, p.Goals)

	created, ok := h.events[0].(shared.PEICreatedEvent)
	require.True(t, ok)
	assert.Equal(t, "assess-9", created.AssessmentID)
}

func TestLoadPEI(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.create(t)

	other := newHarness(t)
	other.repo = h.repo
	other.facade.repo = h.repo

	_, err := other.facade.LoadPEI(ctx, "missing")
	assert.ErrorIs(t, err, pei.ErrPEINotFound)
	assert.True(t, shared.IsNotFound(err))
	_, ok := other.facade.Current()
	assert.False(t, ok)
	assert.Empty(t, other.notifier.kinds(), "not found is not an error for the user")

	p, err := other.facade.LoadPEI(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, p.ID)
	cur, ok := other.facade.Current()
	require.True(t, ok)
	assert.Equal(t, p, cur)
}

func TestLoadPEI_ReturnsDetachedCopy(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.create(t)
	goalID, err := h.facade.AddGoal(ctx, pei.GoalInput{Domain: "motor", Title: "Subir escadas"})
	require.NoError(t, err)
	_, err = h.facade.AddStrategy(ctx, goalID, pei.StrategyInput{Description: "Circuito"})
	require.NoError(t, err)

	loaded, err := h.facade.LoadPEI(ctx, id)
	require.NoError(t, err)
	loaded.Goals[0].Title = "mutated"
	loaded.Goals[0].Strategies[0].Description = "mutated"
	loaded.TeamMembers = append(loaded.TeamMembers, "intruder")

	cur, ok := h.facade.Current()
	require.True(t, ok)
	assert.Equal(t, "Subir escadas", cur.Goals[0].Title)
	assert.Equal(t, "Circuito", cur.Goals[0].Strategies[0].Description)
	assert.Empty(t, cur.TeamMembers)

	require.NoError(t, h.facade.SavePEI(ctx))
	assert.Equal(t, "Subir escadas", h.stored(t, id).Goals[0].Title)
}

func TestMutationsRequireCurrentPEI(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.facade.AddGoal(ctx, pei.GoalInput{Domain: "motor"})
	assert.ErrorIs(t, err, ErrNoActivePEI)
	assert.ErrorIs(t, h.facade.SavePEI(ctx), ErrNoActivePEI)
	assert.ErrorIs(t, h.facade.UpdatePEI(ctx, pei.PEIUpdate{}), ErrNoActivePEI)

	assert.Equal(t, 0, h.facade.OverallProgress())
	assert.Empty(t, h.facade.ProgressTrends())
	assert.Empty(t, h.facade.GoalsByDomain())
	assert.Empty(t, h.facade.ProgressDistribution())
	_, ok := h.facade.GetProgressAnalytics("g")
	assert.False(t, ok)
}

func TestUpdatePEI(t *testing.T) {
	h := newHarness(t)
	id := h.create(t)

	title := "PEI revisado"
	freq := pei.ReviewMonthly
	require.NoError(t, h.facade.UpdatePEI(context.Background(), pei.PEIUpdate{
		Title:           &title,
		ReviewFrequency: &freq,
	}))

	p := h.stored(t, id)
	assert.Equal(t, title, p.Title)
	assert.Equal(t, time.Date(2024, time.April, 10, 9, 30, 0, 0, time.UTC), p.NextReviewDate)

	bad := pei.Status("deleted")
	err := h.facade.UpdatePEI(context.Background(), pei.PEIUpdate{Status: &bad})
	assert.ErrorIs(t, err, pei.ErrInvalidPEIStatus)
	assert.Equal(t, p, h.stored(t, id))
}

func TestGetStudentPEIsAndDelete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.create(t)
	second := h.create(t)

	list, err := h.facade.GetStudentPEIs(ctx, "student-1")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, h.facade.DeletePEI(ctx, first))
	cur, ok := h.facade.Current()
	require.True(t, ok, "deleting another plan keeps the current one")
	assert.Equal(t, second, cur.ID)

	require.NoError(t, h.facade.DeletePEI(ctx, second))
	_, ok = h.facade.Current()
	assert.False(t, ok)

	list, err = h.facade.GetStudentPEIs(ctx, "student-1")
	require.NoError(t, err)
	assert.Empty(t, list)

	assert.ErrorIs(t, h.facade.DeletePEI(ctx, second), pei.ErrPEINotFound)
	assert.Contains(t, h.eventTypes(), shared.EventPEIDeleted)
}

// ══════════════════════════════════════════════════════════════════════════════
// GOALS, STRATEGIES, PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

func TestGoalFlow_PersistsEveryMutation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.create(t)

	goalID, err := h.facade.AddGoal(ctx, pei.GoalInput{Domain: "motor", Title: "Segurar o lápis"})
	require.NoError(t, err)
	require.Len(t, h.stored(t, id).Goals, 1)

	sid, err := h.facade.AddStrategy(ctx, goalID, pei.StrategyInput{Description: "Pinça fina"})
	require.NoError(t, err)
	require.NotEmpty(t, sid)

	desc := "Pinça com massinha"
	require.NoError(t, h.facade.UpdateStrategy(ctx, goalID, sid, pei.StrategyUpdate{Description: &desc}))
	assert.Equal(t, desc, h.stored(t, id).Goals[0].Strategies[0].Description)

	g, ok := h.facade.GetGoal(goalID)
	require.True(t, ok)
	assert.Equal(t, "Segurar o lápis", g.Title)

	require.NoError(t, h.facade.DeleteStrategy(ctx, goalID, sid))
	assert.Empty(t, h.stored(t, id).Goals[0].Strategies)

	require.NoError(t, h.facade.DeleteGoal(ctx, goalID))
	assert.Empty(t, h.stored(t, id).Goals)
	_, ok = h.facade.GetGoal(goalID)
	assert.False(t, ok)
}

func TestUnknownIDs_WriteNothing(t *testing.T) {
	ctx := context.Background()
	title := "x"
	notes := "y"
	desc := "z"

	tests := []struct {
		name string
		run  func(f *PEIFacade, goalID string) error
	}{
		{"update goal", func(f *PEIFacade, _ string) error {
			return f.UpdateGoal(ctx, "nope", pei.GoalUpdate{Title: &title})
		}},
		{"delete goal", func(f *PEIFacade, _ string) error {
			return f.DeleteGoal(ctx, "nope")
		}},
		{"add strategy", func(f *PEIFacade, _ string) error {
			id, err := f.AddStrategy(ctx, "nope", pei.StrategyInput{Description: desc})
			assert.Empty(t, id)
			return err
		}},
		{"update strategy", func(f *PEIFacade, goalID string) error {
			return f.UpdateStrategy(ctx, goalID, "nope", pei.StrategyUpdate{Description: &desc})
		}},
		{"delete strategy", func(f *PEIFacade, goalID string) error {
			return f.DeleteStrategy(ctx, goalID, "nope")
		}},
		{"add progress", func(f *PEIFacade, _ string) error {
			id, err := f.AddProgressRecord(ctx, "nope", pei.ProgressInput{Status: pei.ProgressAchieved})
			assert.Empty(t, id)
			return err
		}},
		{"update progress", func(f *PEIFacade, goalID string) error {
			return f.UpdateProgressRecord(ctx, goalID, "nope", pei.ProgressUpdate{Notes: &notes})
		}},
		{"delete progress", func(f *PEIFacade, goalID string) error {
			return f.DeleteProgressRecord(ctx, goalID, "nope")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.create(t)
			goalID, err := h.facade.AddGoal(ctx, pei.GoalInput{Domain: "motor", Title: "Subir escadas"})
			require.NoError(t, err)

			before, _ := h.facade.Current()
			events := len(h.events)
			notified := len(h.notifier.kinds())
			h.repo.failing = true

			require.NoError(t, tt.run(h.facade, goalID))

			after, _ := h.facade.Current()
			assert.Equal(t, before, after)
			assert.Len(t, h.events, events)
			assert.Len(t, h.notifier.kinds(), notified)
		})
	}
}

func TestUpdateGoal_StatusEvents(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.create(t)
	goalID, err := h.facade.AddGoal(ctx, pei.GoalInput{Domain: "motor"})
	require.NoError(t, err)

	canceled := pei.GoalCanceled
	require.NoError(t, h.facade.UpdateGoal(ctx, goalID, pei.GoalUpdate{Status: &canceled}))

	var changed []shared.GoalStatusChangedEvent
	for _, e := range h.events {
		if c, ok := e.(shared.GoalStatusChangedEvent); ok {
			changed = append(changed, c)
		}
	}
	require.Len(t, changed, 1)
	assert.Equal(t, "not_started", changed[0].OldStatus)
	assert.Equal(t, "canceled", changed[0].NewStatus)
	assert.False(t, changed[0].Automatic)

	notStarted := pei.GoalNotStarted
	err = h.facade.UpdateGoal(ctx, goalID, pei.GoalUpdate{Status: &notStarted})
	assert.ErrorIs(t, err, shared.ErrStateTransition)

	bogus := pei.GoalStatus("paused")
	err = h.facade.UpdateGoal(ctx, goalID, pei.GoalUpdate{Status: &bogus})
	assert.True(t, shared.IsInvalidStatus(err))
}

func TestProgressFlow_PropagatesStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.create(t)
	goalID, err := h.facade.AddGoal(ctx, pei.GoalInput{Domain: "comunicação"})
	require.NoError(t, err)

	_, err = h.facade.AddProgressRecord(ctx, goalID, pei.ProgressInput{Status: pei.ProgressSignificant})
	require.NoError(t, err)
	g, _ := h.facade.GetGoal(goalID)
	assert.Equal(t, pei.GoalInProgress, g.Status)

	achievedID, err := h.facade.AddProgressRecord(ctx, goalID, pei.ProgressInput{Status: pei.ProgressAchieved})
	require.NoError(t, err)
	_, err = h.facade.AddProgressRecord(ctx, goalID, pei.ProgressInput{Status: pei.ProgressRegression})
	require.NoError(t, err)

	stored := h.stored(t, id)
	require.Len(t, stored.Goals[0].Progress, 3)
	assert.Equal(t, pei.GoalAchieved, stored.Goals[0].Status)
	assert.Equal(t, fixedNow, stored.Goals[0].Progress[0].Date)
	assert.Equal(t, pei.DefaultAuthor, stored.Goals[0].Progress[0].Author)

	summary, ok := h.facade.GetProgressAnalytics(goalID)
	require.True(t, ok)
	assert.Equal(t, 3, summary.TotalRecords)
	assert.Equal(t, 2, summary.SignificantProgress)
	assert.Equal(t, 1, summary.Regressions)

	// Editing or deleting records never touches the goal status.
	minor := pei.ProgressMinor
	require.NoError(t, h.facade.UpdateProgressRecord(ctx, goalID, achievedID, pei.ProgressUpdate{Status: &minor}))
	require.NoError(t, h.facade.DeleteProgressRecord(ctx, goalID, achievedID))
	g, _ = h.facade.GetGoal(goalID)
	assert.Equal(t, pei.GoalAchieved, g.Status)
	assert.Len(t, g.Progress, 2)

	var automatic int
	for _, e := range h.events {
		if c, ok := e.(shared.GoalStatusChangedEvent); ok && c.Automatic {
			automatic++
		}
	}
	assert.Equal(t, 2, automatic)
}

func TestAddProgressRecord_Rejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.create(t)
	goalID, err := h.facade.AddGoal(ctx, pei.GoalInput{Domain: "motor"})
	require.NoError(t, err)
	before, _ := h.facade.Current()

	_, err = h.facade.AddProgressRecord(ctx, goalID, pei.ProgressInput{Status: "better"})
	assert.ErrorIs(t, err, pei.ErrInvalidProgressStatus)

	rid, err := h.facade.AddProgressRecord(ctx, "unknown", pei.ProgressInput{Status: pei.ProgressMinor})
	require.NoError(t, err)
	assert.Empty(t, rid)

	after, _ := h.facade.Current()
	assert.Equal(t, before, after)
}

// ══════════════════════════════════════════════════════════════════════════════
// FAILURES
// ══════════════════════════════════════════════════════════════════════════════

func TestSaveFailure_KeepsMutation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.create(t)

	h.repo.failing = true
	goalID, err := h.facade.AddGoal(ctx, pei.GoalInput{Domain: "motor", Title: "Pular"})
	require.Error(t, err)
	assert.True(t, shared.IsStorage(err))
	assert.ErrorIs(t, err, errDiskFull)
	assert.NotEmpty(t, goalID)

	_, ok := h.facade.GetGoal(goalID)
	assert.True(t, ok, "in-memory snapshot keeps the new goal")
	assert.Empty(t, h.stored(t, id).Goals)
	assert.Equal(t, []string{NotifySuccess, NotifyError}, h.notifier.kinds())

	h.repo.failing = false
	require.NoError(t, h.facade.SavePEI(ctx))
	assert.Len(t, h.stored(t, id).Goals, 1)
	assert.Equal(t, []string{NotifySuccess, NotifyError, NotifySuccess}, h.notifier.kinds())
}

func TestCreateFailure_ReturnsID(t *testing.T) {
	h := newHarness(t)
	h.repo.failing = true

	id, err := h.facade.CreatePEI(context.Background(), pei.NewPEIParams{StudentID: "s"})
	assert.True(t, shared.IsStorage(err))
	assert.NotEmpty(t, id)

	cur, ok := h.facade.Current()
	require.True(t, ok)
	assert.Equal(t, id, cur.ID)
	assert.Equal(t, []string{NotifyError}, h.notifier.kinds())
}

// ══════════════════════════════════════════════════════════════════════════════
// ANALYTICS
// ══════════════════════════════════════════════════════════════════════════════

func TestAnalyticsFollowCurrentSnapshot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.create(t)

	for _, st := range []pei.GoalStatus{pei.GoalAchieved, pei.GoalAchieved, pei.GoalInProgress, pei.GoalNotStarted} {
		_, err := h.facade.AddGoal(ctx, pei.GoalInput{Domain: "motor", Status: st})
		require.NoError(t, err)
	}

	assert.Equal(t, 63, h.facade.OverallProgress())

	domains := h.facade.GoalsByDomain()
	require.Len(t, domains, 1)
	assert.Equal(t, pei.DomainSummary{Domain: "motor", Total: 4, Achieved: 2, InProgress: 1, NotStarted: 1}, domains[0])

	dist := h.facade.ProgressDistribution()
	total := 0
	for _, d := range dist {
		total += d.Count
	}
	assert.Equal(t, 4, total)
	assert.Empty(t, h.facade.ProgressTrends())
}

func TestMetricsRecorded(t *testing.T) {
	h := newHarness(t)
	h.create(t)
	_, err := h.facade.AddGoal(context.Background(), pei.GoalInput{Domain: "motor"})
	require.NoError(t, err)

	families, err := h.metrics.Registry().Gather()
	require.NoError(t, err)

	found := map[string]float64{}
	for _, f := range families {
		switch f.GetName() {
		case "pei_active_plan_goals":
			found[f.GetName()] = f.GetMetric()[0].GetGauge().GetValue()
		case "pei_operations_total":
			for _, m := range f.GetMetric() {
				found[f.GetName()] += m.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 1.0, found["pei_active_plan_goals"])
	assert.Equal(t, 2.0, found["pei_operations_total"])
}
