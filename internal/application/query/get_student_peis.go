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
// GET STUDENT PEIS QUERY
// One row per plan of a student, newest first, for plan pickers.
// ══════════════════════════════════════════════════════════════════════════════

// GetStudentPEIsQuery selects the student.
type GetStudentPEIsQuery struct {
	StudentID string

	// Status keeps only plans in this status when set.
	Status pei.Status

	// Now is the reference time for review checks (zero = now).
	Now time.Time
}

// Validate checks the query and fills defaults.
func (q *GetStudentPEIsQuery) Validate() error {
	q.StudentID = strings.TrimSpace(q.StudentID)
	if q.StudentID == "" {
		return errors.New("student_id is required")
	}
	if q.Status != "" && !q.Status.IsValid() {
		return pei.ErrInvalidPEIStatus
	}
	if q.Now.IsZero() {
		q.Now = time.Now().UTC()
	}
	return nil
}

// PEIRowDTO summarizes one plan.
type PEIRowDTO struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Status          string `json:"status"`
	CreatedDate     string `json:"createdDate"`
	Goals           int    `json:"goals"`
	OverallProgress int    `json:"overallProgress"`
	ReviewDue       bool   `json:"reviewDue"`
}

// GetStudentPEIsResult lists plan rows.
type GetStudentPEIsResult struct {
	StudentID string      `json:"studentId"`
	Plans     []PEIRowDTO `json:"plans"`
	Total     int         `json:"total"`
}

// GetStudentPEIsHandler answers GetStudentPEIsQuery.
type GetStudentPEIsHandler struct {
	repo pei.Repository
}

// NewGetStudentPEIsHandler creates a handler reading through repo.
func NewGetStudentPEIsHandler(repo pei.Repository) *GetStudentPEIsHandler {
	return &GetStudentPEIsHandler{repo: repo}
}

// Handle executes the query.
func (h *GetStudentPEIsHandler) Handle(ctx context.Context, query GetStudentPEIsQuery) (*GetStudentPEIsResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetStudentPEIs", shared.ErrValidation, err.Error(), err)
	}

	plans, err := h.repo.ListByStudent(ctx, query.StudentID)
	if err != nil {
		return nil, err
	}

	result := &GetStudentPEIsResult{StudentID: query.StudentID, Plans: []PEIRowDTO{}}
	for _, p := range plans {
		if query.Status != "" && p.Status != query.Status {
			continue
		}
		result.Plans = append(result.Plans, PEIRowDTO{
			ID:              p.ID,
			Title:           p.Title,
			Status:          string(p.Status),
			CreatedDate:     timeutil.FormatBR(p.CreatedDate),
			Goals:           len(p.Goals),
			OverallProgress: pei.OverallProgress(p),
			ReviewDue:       p.ReviewDue(query.Now),
		})
	}
	result.Total = len(result.Plans)
	return result, nil
}
