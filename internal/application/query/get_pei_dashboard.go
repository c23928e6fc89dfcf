// Package query contains read operations over stored plans.
package query

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/educa-hub/pei-hub/internal/domain/pei"
	"github.com/educa-hub/pei-hub/internal/domain/shared"
	"github.com/educa-hub/pei-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PEI DASHBOARD QUERY
// Everything a progress report page needs about one plan in a single read:
// header, overall score, per-domain and per-status breakdowns, the monthly
// trend, per-goal summaries and the goals that are past their target date.
// ══════════════════════════════════════════════════════════════════════════════

// GetPEIDashboardQuery selects the plan to summarize.
type GetPEIDashboardQuery struct {
	// PEIID is the plan to read.
	PEIID string

	// Now is the reference time for review and overdue checks (zero = now).
	Now time.Time

	// IncludeTrends adds the monthly progress trend.
	IncludeTrends bool

	// IncludeGoals adds one summary row per goal.
	IncludeGoals bool
}

// Validate checks the query and fills defaults.
func (q *GetPEIDashboardQuery) Validate() error {
	q.PEIID = strings.TrimSpace(q.PEIID)
	if q.PEIID == "" {
		return errors.New("pei_id is required")
	}
	if q.Now.IsZero() {
		q.Now = time.Now().UTC()
	}
	return nil
}

// GoalRowDTO is one line of the per-goal table.
type GoalRowDTO struct {
	ID             string `json:"id"`
	Domain         string `json:"domain"`
	Title          string `json:"title"`
	Status         string `json:"status"`
	StatusLabel    string `json:"statusLabel"`
	TargetDate     string `json:"targetDate"`
	Strategies     int    `json:"strategies"`
	Records        int    `json:"records"`
	Significant    int    `json:"significantProgress"`
	Regressions    int    `json:"regressions"`
	LastRecordDate string `json:"lastRecordDate"`
	Overdue        bool   `json:"overdue"`
}

// GetPEIDashboardResult is the dashboard read model.
type GetPEIDashboardResult struct {
	// ─────────────────────────────────────────────────────────────────────────
	// Header
	// ─────────────────────────────────────────────────────────────────────────

	PEIID       string `json:"peiId"`
	StudentID   string `json:"studentId"`
	StudentName string `json:"studentName"`
	Title       string `json:"title"`
	Status      string `json:"status"`
	CreatedDate string `json:"createdDate"`

	// NextReview is the formatted next review date, "-" when unscheduled.
	NextReview string `json:"nextReview"`
	ReviewDue  bool   `json:"reviewDue"`

	// ─────────────────────────────────────────────────────────────────────────
	// Analytics
	// ─────────────────────────────────────────────────────────────────────────

	OverallProgress int                     `json:"overallProgress"`
	GoalCount       int                     `json:"goalCount"`
	RecordCount     int                     `json:"recordCount"`
	Domains         []pei.DomainSummary     `json:"domains"`
	Distribution    []pei.DistributionEntry `json:"distribution"`
	Trends          []pei.TrendPoint        `json:"trends,omitempty"`
	Goals           []GoalRowDTO            `json:"goals,omitempty"`
	OverdueGoals    int                     `json:"overdueGoals"`

	GeneratedAt time.Time `json:"generatedAt"`
}

// GetPEIDashboardHandler answers GetPEIDashboardQuery.
type GetPEIDashboardHandler struct {
	repo pei.Repository
}

// NewGetPEIDashboardHandler creates a handler reading through repo.
func NewGetPEIDashboardHandler(repo pei.Repository) *GetPEIDashboardHandler {
	return &GetPEIDashboardHandler{repo: repo}
}

// Handle executes the query.
func (h *GetPEIDashboardHandler) Handle(ctx context.Context, query GetPEIDashboardQuery) (*GetPEIDashboardResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetPEIDashboard", shared.ErrValidation, err.Error(), err)
	}

	p, err := h.repo.Load(ctx, query.PEIID)
	if err != nil {
		return nil, err
	}
	return BuildDashboard(p, query), nil
}

// BuildDashboard computes the dashboard of an in-memory snapshot. The CLI
// uses it on the facade's current plan.
func BuildDashboard(p pei.PEI, query GetPEIDashboardQuery) *GetPEIDashboardResult {
	now := query.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	result := &GetPEIDashboardResult{
		PEIID:           p.ID,
		StudentID:       p.StudentID,
		StudentName:     p.StudentName,
		Title:           p.Title,
		Status:          string(p.Status),
		CreatedDate:     timeutil.FormatBR(p.CreatedDate),
		NextReview:      timeutil.FormatBR(p.NextReviewDate),
		ReviewDue:       p.ReviewDue(now),
		OverallProgress: pei.OverallProgress(p),
		GoalCount:       len(p.Goals),
		Domains:         pei.GoalsByDomain(p),
		Distribution:    pei.ProgressDistribution(p),
		OverdueGoals:    len(pei.OverdueGoals(p, now)),
		GeneratedAt:     now,
	}

	for _, g := range p.Goals {
		result.RecordCount += len(g.Progress)
	}
	if query.IncludeTrends {
		result.Trends = pei.ProgressTrends(p)
	}
	if query.IncludeGoals {
		result.Goals = buildGoalRows(p, now)
	}
	return result
}

func buildGoalRows(p pei.PEI, now time.Time) []GoalRowDTO {
	overdue := make(map[string]bool)
	for _, g := range pei.OverdueGoals(p, now) {
		overdue[g.ID] = true
	}

	rows := make([]GoalRowDTO, 0, len(p.Goals))
	for _, g := range p.Goals {
		row := GoalRowDTO{
			ID:          g.ID,
			Domain:      g.Domain,
			Title:       g.Title,
			Status:      string(g.Status),
			StatusLabel: g.Status.Label(),
			TargetDate:  timeutil.FormatBR(g.TargetDate),
			Strategies:  len(g.Strategies),
			Overdue:     overdue[g.ID],
		}
		if s, ok := pei.GoalProgressAnalytics(p, g.ID); ok {
			row.Records = s.TotalRecords
			row.Significant = s.SignificantProgress
			row.Regressions = s.Regressions
		}

		var last time.Time
		for _, r := range g.Progress {
			if r.Date.After(last) {
				last = r.Date
			}
		}
		row.LastRecordDate = timeutil.FormatBR(last)
		rows = append(rows, row)
	}
	return rows
}
