package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/educa-hub/pei-hub/internal/application/query"
	"github.com/educa-hub/pei-hub/internal/domain/pei"
	"github.com/educa-hub/pei-hub/internal/infrastructure/persistence/kv"
)

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

// harness runs peictl invocations against one shared in-memory store, the
// way separate processes would share a real backend.
type harness struct {
	t     *testing.T
	store *kv.MemoryStore
	ids   *seqIDs
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("PEI_ENV_FILE", filepath.Join(t.TempDir(), "none.env"))
	t.Setenv("PEI_STORAGE", "")
	t.Setenv("LOG_LEVEL", "error")
	return &harness{t: t, store: kv.NewMemoryStore(), ids: &seqIDs{}}
}

func (h *harness) run(args ...string) (stdout, stderr string, err error) {
	h.t.Helper()
	var out, errOut bytes.Buffer
	err = Execute(context.Background(), Options{
		Version: "test",
		Args:    args,
		Stdout:  &out,
		Stderr:  &errOut,
		Store:   h.store,
		Clock:   func() time.Time { return fixedNow },
		IDs:     h.ids,
	})
	return out.String(), errOut.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, stderr, err := h.run(args...)
	require.NoError(h.t, err, "peictl %s\nstderr: %s", strings.Join(args, " "), stderr)
	return strings.TrimSpace(out)
}

// seed creates a plan with an achieved motor goal and an in-progress
// cognitive goal.
func (h *harness) seed() (planID, motorID, cognitiveID string) {
	planID = h.mustRun("pei", "create", "--student", "s-1", "--student-name", "Ana",
		"--title", "PEI 2024", "--start", "2024-02-01", "--review", "monthly")
	motorID = h.mustRun("goal", "add", "--pei", planID, "--domain", "motor", "--title", "Subir escadas")
	cognitiveID = h.mustRun("goal", "add", "--pei", planID, "--domain", "cognitive", "--title", "Contar até 10",
		"--target", "2024-03-01")

	h.mustRun("progress", "add", motorID, "--pei", planID, "--status", "achieved", "--date", "2024-02-15")
	h.mustRun("progress", "add", cognitiveID, "--pei", planID, "--status", "minor_progress", "--date", "01/03/2024")
	return planID, motorID, cognitiveID
}

func TestCLI_CreateAndShow(t *testing.T) {
	h := newHarness(t)

	id, stderr, err := h.run("pei", "create", "--student", "s-1", "--title", "PEI 2024")
	require.NoError(t, err)
	assert.Equal(t, "id-1\n", id)
	assert.Contains(t, stderr, "✓ PEI criado com sucesso")

	out := h.mustRun("pei", "show", "--pei", "id-1", "--json")
	var res query.GetPEIDashboardResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "s-1", res.StudentID)
	assert.Equal(t, pei.DefaultStudentName, res.StudentName)
	assert.Equal(t, "draft", res.Status)
	assert.Equal(t, "10/03/2024", res.CreatedDate)
}

func TestCLI_GoalsStrategiesAndProgress(t *testing.T) {
	h := newHarness(t)
	planID, motorID, cognitiveID := h.seed()

	strategyID := h.mustRun("strategy", "add", motorID, "--pei", planID,
		"--description", "Circuito motor", "--responsible", "Fisioterapeuta")
	assert.Equal(t, "id-6", strategyID)

	stored, err := kv.NewGateway(h.store, kv.GatewayConfig{}).Load(context.Background(), planID)
	require.NoError(t, err)
	require.Len(t, stored.Goals, 2)
	assert.Equal(t, pei.GoalAchieved, stored.Goals[0].Status)
	assert.Equal(t, pei.GoalInProgress, stored.Goals[1].Status)
	require.Len(t, stored.Goals[0].Strategies, 1)
	assert.Equal(t, "Fisioterapeuta", stored.Goals[0].Strategies[0].Responsible)

	out := h.mustRun("goal", "show", cognitiveID, "--pei", planID)
	assert.Contains(t, out, "Contar até 10")
	assert.Contains(t, out, "Em andamento")
	assert.Contains(t, out, "01/03/2024")
}

func TestCLI_UnknownGoalWritesNothing(t *testing.T) {
	h := newHarness(t)
	planID := h.mustRun("pei", "create", "--student", "s-1")

	out := h.mustRun("strategy", "add", "missing", "--pei", planID, "--description", "x")
	assert.Empty(t, out)
}

func TestCLI_Analytics(t *testing.T) {
	h := newHarness(t)
	planID, _, _ := h.seed()

	out := h.mustRun("analytics", "--pei", planID, "--json")
	var report analyticsReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))

	assert.Equal(t, 75, report.Overall)
	require.Len(t, report.Trends, 2)
	assert.Equal(t, "fev. 2024", report.Trends[0].Month)
	assert.Equal(t, "mar. 2024", report.Trends[1].Month)
	require.Len(t, report.Domains, 2)
	assert.Equal(t, "motor", report.Domains[0].Domain)
	assert.Equal(t, 1, report.Domains[0].Achieved)
	require.Len(t, report.Distribution, 2)
	assert.InDelta(t, 50.0, report.Distribution[0].Percentage, 0.001)

	text := h.mustRun("analytics", "--pei", planID)
	assert.Contains(t, text, "overall progress: 75%")
	assert.Contains(t, text, "fev. 2024")
}

func TestCLI_ShowFlagsOverdueGoals(t *testing.T) {
	h := newHarness(t)
	planID, _, _ := h.seed()

	out := h.mustRun("pei", "show", "--pei", planID, "--json")
	var res query.GetPEIDashboardResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 75, res.OverallProgress)
	assert.Equal(t, 2, res.RecordCount)
	assert.Equal(t, 1, res.OverdueGoals)
}

func TestCLI_UpdatePlan(t *testing.T) {
	h := newHarness(t)
	planID := h.mustRun("pei", "create", "--student", "s-1", "--title", "old")

	h.mustRun("pei", "update", "--pei", planID, "--title", "new", "--status", "active",
		"--review", "monthly", "--team", "Prof. Lima, Dra. Souza")

	p, err := kv.NewGateway(h.store, kv.GatewayConfig{}).Load(context.Background(), planID)
	require.NoError(t, err)
	assert.Equal(t, "new", p.Title)
	assert.Equal(t, pei.StatusActive, p.Status)
	assert.Equal(t, []string{"Prof. Lima", "Dra. Souza"}, p.TeamMembers)
	assert.Equal(t, time.Date(2024, time.April, 10, 9, 30, 0, 0, time.UTC), p.NextReviewDate)
}

func TestCLI_ListAndDelete(t *testing.T) {
	h := newHarness(t)
	first := h.mustRun("pei", "create", "--student", "s-1", "--title", "A")
	h.mustRun("pei", "create", "--student", "s-1", "--title", "B", "--status", "active")
	h.mustRun("pei", "create", "--student", "s-2", "--title", "C")

	out := h.mustRun("pei", "list", "--student", "s-1", "--json")
	var res query.GetStudentPEIsResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 2, res.Total)

	out = h.mustRun("pei", "list", "--student", "s-1", "--status", "active", "--json")
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 1, res.Total)

	_, stderr, err := h.run("pei", "delete", first)
	require.NoError(t, err)
	assert.Contains(t, stderr, "· PEI excluído")

	_, _, err = h.run("pei", "show", "--pei", first)
	assert.ErrorIs(t, err, pei.ErrPEINotFound)
}

func TestCLI_Errors(t *testing.T) {
	h := newHarness(t)
	planID, motorID, _ := h.seed()

	_, _, err := h.run("analytics")
	assert.ErrorIs(t, err, errNoPEI)

	_, _, err = h.run("goal", "update", motorID, "--pei", planID, "--status", "not_started")
	assert.ErrorIs(t, err, pei.ErrGoalStatusRegression)

	_, _, err = h.run("progress", "add", motorID, "--pei", planID, "--status", "great")
	assert.ErrorIs(t, err, pei.ErrInvalidProgressStatus)

	_, _, err = h.run("goal", "add", "--pei", "nope", "--domain", "motor", "--title", "x")
	assert.ErrorIs(t, err, pei.ErrPEINotFound)

	_, _, err = h.run("pei", "create", "--student", "s-1", "--start", "yesterday")
	assert.Error(t, err)
}

func TestCLI_DoctorAndMetrics(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("doctor", "--json")
	var status HealthStatus
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.True(t, status.Healthy)

	names := make([]string, 0, len(status.Checks))
	for _, c := range status.Checks {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"circuit", "repository"}, names)

	_, stderr, err := h.run("pei", "create", "--student", "s-1", "--metrics")
	require.NoError(t, err)
	assert.Contains(t, stderr, `pei_operations_total{op="create",outcome="success"} 1`)
	assert.Contains(t, stderr, "pei_store_operations_total")
}
