package pei

import (
	"fmt"
	"slices"
	"time"
)

// GoalInput contains the fields accepted when a goal is added.
type GoalInput struct {
	Domain           string
	Title            string
	Description      string
	TargetDate       time.Time
	Status           GoalStatus
	EvaluationMethod string
}

// GoalUpdate is a partial update: nil fields are left untouched.
// Strategies and progress are managed by their own operations.
type GoalUpdate struct {
	Domain           *string
	Title            *string
	Description      *string
	TargetDate       *time.Time
	Status           *GoalStatus
	EvaluationMethod *string
}

// GoalManager adds, edits and removes goals on a plan snapshot.
// Every operation returns a new snapshot and never mutates its input.
type GoalManager struct {
	ids IDGenerator
}

// NewGoalManager creates a GoalManager.
func NewGoalManager(ids IDGenerator) *GoalManager {
	return &GoalManager{ids: ids}
}

// AddGoal appends a new goal with empty strategies and progress.
func (m *GoalManager) AddGoal(p PEI, in GoalInput) (PEI, string, error) {
	status := in.Status
	if status == "" {
		status = GoalNotStarted
	}
	if !status.IsValid() {
		return p, "", fmt.Errorf("%w: %q", ErrInvalidGoalStatus, status)
	}

	goal := Goal{
		ID:               m.ids.GenerateID(),
		Domain:           in.Domain,
		Title:            in.Title,
		Description:      in.Description,
		TargetDate:       in.TargetDate,
		Status:           status,
		EvaluationMethod: in.EvaluationMethod,
		Strategies:       []Strategy{},
		Progress:         []ProgressRecord{},
	}

	next := p.Clone()
	next.Goals = append(next.Goals, goal)
	return next, goal.ID, nil
}

// UpdateGoal merges the non-nil fields of upd onto the goal.
// An unknown goal id leaves the snapshot unchanged.
func (m *GoalManager) UpdateGoal(p PEI, goalID string, upd GoalUpdate) (PEI, error) {
	if upd.Status != nil && !upd.Status.IsValid() {
		return p, fmt.Errorf("%w: %q", ErrInvalidGoalStatus, *upd.Status)
	}

	idx := p.goalIndex(goalID)
	if idx < 0 {
		return p, nil
	}

	current := p.Goals[idx]
	if upd.Status != nil && *upd.Status == GoalNotStarted && current.Status != GoalNotStarted {
		return p, ErrGoalStatusRegression
	}

	next := p.Clone()
	g := &next.Goals[idx]
	if upd.Domain != nil {
		g.Domain = *upd.Domain
	}
	if upd.Title != nil {
		g.Title = *upd.Title
	}
	if upd.Description != nil {
		g.Description = *upd.Description
	}
	if upd.TargetDate != nil {
		g.TargetDate = *upd.TargetDate
	}
	if upd.Status != nil {
		g.Status = *upd.Status
	}
	if upd.EvaluationMethod != nil {
		g.EvaluationMethod = *upd.EvaluationMethod
	}
	return next, nil
}

// DeleteGoal removes the goal together with its strategies and progress.
func (m *GoalManager) DeleteGoal(p PEI, goalID string) PEI {
	idx := p.goalIndex(goalID)
	if idx < 0 {
		return p
	}
	next := p.Clone()
	next.Goals = slices.Delete(next.Goals, idx, idx+1)
	return next
}

// GoalByID looks a goal up by id.
func GoalByID(p PEI, goalID string) (Goal, bool) {
	idx := p.goalIndex(goalID)
	if idx < 0 {
		return Goal{}, false
	}
	return p.Goals[idx].Clone(), true
}
