package pei

import (
	"fmt"
	"slices"
	"time"
)

// ProgressInput contains the fields accepted when a record is added.
type ProgressInput struct {
	Date     time.Time // zero means "now"
	Notes    string
	Evidence string
	Status   ProgressStatus
	Author   string // empty means DefaultAuthor
}

// ProgressUpdate is a partial update: nil fields are left untouched.
// The record id cannot be changed.
type ProgressUpdate struct {
	Date     *time.Time
	Notes    *string
	Evidence *string
	Status   *ProgressStatus
	Author   *string
}

// GoalProgressSummary aggregates the progress log of one goal.
type GoalProgressSummary struct {
	GoalID              string `json:"goalId"`
	TotalRecords        int    `json:"totalRecords"`
	SignificantProgress int    `json:"significantProgress"`
	Regressions         int    `json:"regressions"`
}

// ProgressManager appends and edits progress records.
//
// Goal status propagation happens only when a record is created:
//   - an achieved record moves the goal to achieved from any status;
//   - minor or significant progress moves a not_started goal to in_progress.
//
// Editing or deleting records never changes the goal status.
type ProgressManager struct {
	ids   IDGenerator
	clock Clock
}

// NewProgressManager creates a ProgressManager. A nil clock means SystemClock.
func NewProgressManager(ids IDGenerator, clock Clock) *ProgressManager {
	if clock == nil {
		clock = SystemClock
	}
	return &ProgressManager{ids: ids, clock: clock}
}

// AddProgressRecord appends a record to the goal and applies status
// propagation. An unknown goal returns the snapshot unchanged and an empty id.
func (m *ProgressManager) AddProgressRecord(p PEI, goalID string, in ProgressInput) (PEI, string, error) {
	if !in.Status.IsValid() {
		return p, "", fmt.Errorf("%w: %q", ErrInvalidProgressStatus, in.Status)
	}

	idx := p.goalIndex(goalID)
	if idx < 0 {
		return p, "", nil
	}

	rec := ProgressRecord{
		ID:       m.ids.GenerateID(),
		Date:     in.Date,
		Notes:    in.Notes,
		Evidence: in.Evidence,
		Status:   in.Status,
		Author:   in.Author,
	}
	if rec.Date.IsZero() {
		rec.Date = m.clock()
	}
	if rec.Author == "" {
		rec.Author = DefaultAuthor
	}

	next := p.Clone()
	g := &next.Goals[idx]
	g.Progress = append(g.Progress, rec)
	g.Status = PropagateStatus(g.Status, rec.Status)
	return next, rec.ID, nil
}

// PropagateStatus returns the goal status after a new record with the given
// status has been appended.
func PropagateStatus(current GoalStatus, recorded ProgressStatus) GoalStatus {
	switch {
	case recorded == ProgressAchieved:
		return GoalAchieved
	case current == GoalNotStarted && (recorded == ProgressMinor || recorded == ProgressSignificant):
		return GoalInProgress
	default:
		return current
	}
}

// UpdateProgressRecord merges the non-nil fields of upd onto the record.
func (m *ProgressManager) UpdateProgressRecord(p PEI, goalID, progressID string, upd ProgressUpdate) (PEI, error) {
	if upd.Status != nil && !upd.Status.IsValid() {
		return p, fmt.Errorf("%w: %q", ErrInvalidProgressStatus, *upd.Status)
	}

	gi, ri := p.progressIndex(goalID, progressID)
	if ri < 0 {
		return p, nil
	}

	next := p.Clone()
	r := &next.Goals[gi].Progress[ri]
	if upd.Date != nil {
		r.Date = *upd.Date
	}
	if upd.Notes != nil {
		r.Notes = *upd.Notes
	}
	if upd.Evidence != nil {
		r.Evidence = *upd.Evidence
	}
	if upd.Status != nil {
		r.Status = *upd.Status
	}
	if upd.Author != nil {
		r.Author = *upd.Author
	}
	return next, nil
}

// DeleteProgressRecord removes a record. The goal status is not rolled back.
func (m *ProgressManager) DeleteProgressRecord(p PEI, goalID, progressID string) PEI {
	gi, ri := p.progressIndex(goalID, progressID)
	if ri < 0 {
		return p
	}
	next := p.Clone()
	next.Goals[gi].Progress = slices.Delete(next.Goals[gi].Progress, ri, ri+1)
	return next
}

// GoalProgressAnalytics summarizes the progress log of one goal.
// Returns false when the goal does not exist.
func GoalProgressAnalytics(p PEI, goalID string) (*GoalProgressSummary, bool) {
	idx := p.goalIndex(goalID)
	if idx < 0 {
		return nil, false
	}

	records := p.Goals[idx].Progress
	summary := &GoalProgressSummary{GoalID: goalID, TotalRecords: len(records)}
	for _, r := range records {
		switch r.Status {
		case ProgressSignificant, ProgressAchieved:
			summary.SignificantProgress++
		case ProgressRegression:
			summary.Regressions++
		}
	}
	return summary, true
}

// ProgressRecordByID looks a progress record up under its goal.
func ProgressRecordByID(p PEI, goalID, progressID string) (ProgressRecord, bool) {
	gi, ri := p.progressIndex(goalID, progressID)
	if ri < 0 {
		return ProgressRecord{}, false
	}
	return p.Goals[gi].Progress[ri], true
}

func (p PEI) progressIndex(goalID, progressID string) (int, int) {
	gi := p.goalIndex(goalID)
	if gi < 0 {
		return -1, -1
	}
	ri := slices.IndexFunc(p.Goals[gi].Progress, func(r ProgressRecord) bool { return r.ID == progressID })
	return gi, ri
}
