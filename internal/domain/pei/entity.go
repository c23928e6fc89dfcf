package pei

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/educa-hub/pei-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Status is the lifecycle status of a whole plan.
type Status string

const (
	// StatusDraft - plan is being written and not yet applied.
	StatusDraft Status = "draft"
	// StatusActive - plan is in effect.
	StatusActive Status = "active"
	// StatusCompleted - plan period finished.
	StatusCompleted Status = "completed"
	// StatusArchived - plan kept for history only.
	StatusArchived Status = "archived"
)

// IsValid checks that the status belongs to the closed set.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusCompleted, StatusArchived:
		return true
	default:
		return false
	}
}

// ParseStatus converts a raw value into a plan Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.TrimSpace(raw))
	if !s.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPEIStatus, raw)
	}
	return s, nil
}

// GoalStatus is the status of a single development goal.
type GoalStatus string

const (
	// GoalNotStarted - no progress has been observed yet.
	GoalNotStarted GoalStatus = "not_started"
	// GoalInProgress - at least one positive observation.
	GoalInProgress GoalStatus = "in_progress"
	// GoalAchieved - goal reached.
	GoalAchieved GoalStatus = "achieved"
	// GoalCanceled - goal dropped by the team.
	GoalCanceled GoalStatus = "canceled"
)

// GoalStatuses lists goal statuses in presentation order.
var GoalStatuses = []GoalStatus{GoalNotStarted, GoalInProgress, GoalAchieved, GoalCanceled}

// IsValid checks that the status belongs to the closed set.
func (s GoalStatus) IsValid() bool {
	return slices.Contains(GoalStatuses, s)
}

// Label returns the user-facing (pt-BR) label of the status.
func (s GoalStatus) Label() string {
	switch s {
	case GoalNotStarted:
		return "Não iniciado"
	case GoalInProgress:
		return "Em andamento"
	case GoalAchieved:
		return "Alcançado"
	case GoalCanceled:
		return "Cancelado"
	default:
		return string(s)
	}
}

// ParseGoalStatus converts a raw value into a GoalStatus.
func ParseGoalStatus(raw string) (GoalStatus, error) {
	s := GoalStatus(strings.TrimSpace(raw))
	if !s.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidGoalStatus, raw)
	}
	return s, nil
}

// ProgressStatus classifies a single progress observation.
type ProgressStatus string

const (
	ProgressRegression  ProgressStatus = "regression"
	ProgressNoChange    ProgressStatus = "no_change"
	ProgressMinor       ProgressStatus = "minor_progress"
	ProgressSignificant ProgressStatus = "significant_progress"
	ProgressAchieved    ProgressStatus = "achieved"
)

// IsValid checks that the status belongs to the closed set.
func (s ProgressStatus) IsValid() bool {
	switch s {
	case ProgressRegression, ProgressNoChange, ProgressMinor, ProgressSignificant, ProgressAchieved:
		return true
	default:
		return false
	}
}

// IsImprovement reports whether the observation counts as an improvement in trends.
func (s ProgressStatus) IsImprovement() bool {
	return s == ProgressMinor || s == ProgressSignificant || s == ProgressAchieved
}

// ParseProgressStatus converts a raw value into a ProgressStatus.
func ParseProgressStatus(raw string) (ProgressStatus, error) {
	s := ProgressStatus(strings.TrimSpace(raw))
	if !s.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidProgressStatus, raw)
	}
	return s, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATE: PEI
// ══════════════════════════════════════════════════════════════════════════════

// DefaultStudentName is used when a plan is created without a student name.
const DefaultStudentName = "Estudante"

// DefaultAuthor tags progress records created without an explicit author.
const DefaultAuthor = "user"

// PEI is the aggregate root: one student's plan with its goals.
type PEI struct {
	ID              string          `json:"id"`
	StudentID       string          `json:"studentId"`
	StudentName     string          `json:"studentName"`
	Title           string          `json:"title"`
	CreatedDate     time.Time       `json:"createdDate"`
	StartDate       time.Time       `json:"startDate,omitzero"`
	EndDate         time.Time       `json:"endDate,omitzero"`
	AssessmentID    string          `json:"assessmentId,omitempty"`
	TeamMembers     []string        `json:"teamMembers"`
	ReviewFrequency ReviewFrequency `json:"reviewFrequency,omitempty"`
	NextReviewDate  time.Time       `json:"nextReviewDate,omitzero"`
	Status          Status          `json:"status"`
	Notes           string          `json:"notes,omitempty"`
	Goals           []Goal          `json:"goals"`
}

// Goal is a development objective owned by exactly one PEI.
type Goal struct {
	ID               string           `json:"id"`
	Domain           string           `json:"domain"`
	Title            string           `json:"title"`
	Description      string           `json:"description,omitempty"`
	TargetDate       time.Time        `json:"targetDate,omitzero"`
	Status           GoalStatus       `json:"status"`
	EvaluationMethod string           `json:"evaluationMethod,omitempty"`
	Strategies       []Strategy       `json:"strategies"`
	Progress         []ProgressRecord `json:"progress"`
}

// Strategy is a planned intervention attached to a goal.
type Strategy struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Resources   string `json:"resources,omitempty"`
	Responsible string `json:"responsible,omitempty"`
	Frequency   string `json:"frequency,omitempty"`
}

// ProgressRecord is a dated observation against a goal.
type ProgressRecord struct {
	ID       string         `json:"id"`
	Date     time.Time      `json:"date"`
	Notes    string         `json:"notes,omitempty"`
	Evidence string         `json:"evidence,omitempty"`
	Status   ProgressStatus `json:"status"`
	Author   string         `json:"author,omitempty"`
}

// Assessment is the subset of an external assessment a plan can be derived from.
type Assessment struct {
	ID          string
	StudentID   string
	StudentName string
	Title       string
}

// IDGenerator produces fresh identifiers for plans and their children.
type IDGenerator interface {
	GenerateID() string
}

// Clock returns the current time.
type Clock func() time.Time

// SystemClock is the default Clock.
func SystemClock() time.Time {
	return time.Now().UTC()
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrPEINotFound - no stored plan under the requested id.
	ErrPEINotFound = shared.NewDomainError("pei", "Load", shared.ErrNotFound, "pei not found")

	// ErrInvalidPEIStatus - plan status outside the closed set.
	ErrInvalidPEIStatus = shared.NewDomainError("pei", "Validate", shared.ErrInvalidStatus, "invalid pei status")

	// ErrInvalidGoalStatus - goal status outside the closed set.
	ErrInvalidGoalStatus = shared.NewDomainError("goal", "Validate", shared.ErrInvalidStatus, "invalid goal status")

	// ErrInvalidProgressStatus - progress status outside the closed set.
	ErrInvalidProgressStatus = shared.NewDomainError("progress", "Validate", shared.ErrInvalidStatus, "invalid progress status")

	// ErrInvalidReviewFrequency - review frequency outside the closed set.
	ErrInvalidReviewFrequency = shared.NewDomainError("pei", "ScheduleReview", shared.ErrInvalidStatus, "invalid review frequency")

	// ErrGoalStatusRegression - a goal that has advanced cannot go back to not_started.
	ErrGoalStatusRegression = shared.NewDomainError("goal", "UpdateGoal", shared.ErrStateTransition, "goal cannot return to not_started")

	// ErrMissingStudent - plan creation without a student id.
	ErrMissingStudent = shared.NewDomainError("pei", "Create", shared.ErrEmptyValue, "student id is required")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY
// ══════════════════════════════════════════════════════════════════════════════

// NewPEIParams contains the fields a caller may provide when creating a plan.
type NewPEIParams struct {
	StudentID       string
	StudentName     string
	Title           string
	StartDate       time.Time
	EndDate         time.Time
	AssessmentID    string
	TeamMembers     []string
	ReviewFrequency ReviewFrequency
	Status          Status
	Notes           string
}

// NewPEI creates a plan with a fresh id and all defaults filled in.
func NewPEI(params NewPEIParams, ids IDGenerator, now time.Time) (PEI, error) {
	if strings.TrimSpace(params.StudentID) == "" {
		return PEI{}, ErrMissingStudent
	}

	status := params.Status
	if status == "" {
		status = StatusDraft
	}
	if !status.IsValid() {
		return PEI{}, fmt.Errorf("%w: %q", ErrInvalidPEIStatus, status)
	}

	name := strings.TrimSpace(params.StudentName)
	if name == "" {
		name = DefaultStudentName
	}

	p := PEI{
		ID:              ids.GenerateID(),
		StudentID:       params.StudentID,
		StudentName:     name,
		Title:           params.Title,
		CreatedDate:     now,
		StartDate:       params.StartDate,
		EndDate:         params.EndDate,
		AssessmentID:    params.AssessmentID,
		TeamMembers:     slices.Clone(params.TeamMembers),
		ReviewFrequency: params.ReviewFrequency,
		Status:          status,
		Notes:           params.Notes,
		Goals:           []Goal{},
	}
	if p.TeamMembers == nil {
		p.TeamMembers = []string{}
	}

	if p.ReviewFrequency != "" {
		from := p.StartDate
		if from.IsZero() {
			from = now
		}
		next, err := NextReviewAfter(from, p.ReviewFrequency)
		if err != nil {
			return PEI{}, err
		}
		p.NextReviewDate = next
	}

	return p, nil
}

// NewPEIFromAssessment derives an empty plan from an assessment.
func NewPEIFromAssessment(a Assessment, ids IDGenerator, now time.Time) (PEI, error) {
	title := a.Title
	if title == "" {
		title = "PEI - " + a.StudentName
	}
	return NewPEI(NewPEIParams{
		StudentID:    a.StudentID,
		StudentName:  a.StudentName,
		Title:        title,
		AssessmentID: a.ID,
	}, ids, now)
}

// ══════════════════════════════════════════════════════════════════════════════
// COPYING
// ══════════════════════════════════════════════════════════════════════════════

// Clone creates a deep copy of the plan. Nil slices stay nil.
func (p PEI) Clone() PEI {
	clone := p
	clone.TeamMembers = slices.Clone(p.TeamMembers)
	if p.Goals != nil {
		clone.Goals = make([]Goal, len(p.Goals))
		for i, g := range p.Goals {
			clone.Goals[i] = g.Clone()
		}
	}
	return clone
}

// Clone creates a deep copy of the goal.
func (g Goal) Clone() Goal {
	clone := g
	clone.Strategies = slices.Clone(g.Strategies)
	clone.Progress = slices.Clone(g.Progress)
	return clone
}

// Normalize restores the non-nil list invariants and the creation
// defaults of missing statuses, e.g. after decoding a snapshot written by
// an older client.
func (p PEI) Normalize() PEI {
	if p.StudentName == "" {
		p.StudentName = DefaultStudentName
	}
	if p.Status == "" {
		p.Status = StatusDraft
	}
	if p.TeamMembers == nil {
		p.TeamMembers = []string{}
	}
	if p.Goals == nil {
		p.Goals = []Goal{}
	}
	for i := range p.Goals {
		if p.Goals[i].Status == "" {
			p.Goals[i].Status = GoalNotStarted
		}
		if p.Goals[i].Strategies == nil {
			p.Goals[i].Strategies = []Strategy{}
		}
		if p.Goals[i].Progress == nil {
			p.Goals[i].Progress = []ProgressRecord{}
		}
	}
	return p
}

// Validate checks that every status of the plan, its goals and their
// progress records is in its closed set. Snapshots from storage pass
// through it before they are used.
func (p PEI) Validate() error {
	if !p.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidPEIStatus, p.Status)
	}
	if p.ReviewFrequency != "" && !p.ReviewFrequency.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidReviewFrequency, p.ReviewFrequency)
	}
	for _, g := range p.Goals {
		if !g.Status.IsValid() {
			return fmt.Errorf("goal %s: %w: %q", g.ID, ErrInvalidGoalStatus, g.Status)
		}
		for _, r := range g.Progress {
			if !r.Status.IsValid() {
				return fmt.Errorf("progress %s: %w: %q", r.ID, ErrInvalidProgressStatus, r.Status)
			}
		}
	}
	return nil
}

// goalIndex returns the position of the goal or -1.
func (p PEI) goalIndex(goalID string) int {
	return slices.IndexFunc(p.Goals, func(g Goal) bool { return g.ID == goalID })
}

// String returns a short representation for logging.
func (p PEI) String() string {
	return fmt.Sprintf("PEI{ID: %s, Student: %s, Goals: %d, Status: %s}",
		p.ID, p.StudentID, len(p.Goals), p.Status)
}
