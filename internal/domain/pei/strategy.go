package pei

import "slices"

// StrategyInput contains the fields accepted when a strategy is added.
type StrategyInput struct {
	Description string
	Resources   string
	Responsible string
	Frequency   string
}

// StrategyUpdate is a partial update: nil fields are left untouched.
type StrategyUpdate struct {
	Description *string
	Resources   *string
	Responsible *string
	Frequency   *string
}

// StrategyManager edits the strategies of a goal. Unresolved goal or
// strategy ids are silent no-ops.
type StrategyManager struct {
	ids IDGenerator
}

// NewStrategyManager creates a StrategyManager.
func NewStrategyManager(ids IDGenerator) *StrategyManager {
	return &StrategyManager{ids: ids}
}

// AddStrategy appends a strategy to the goal. The bool is false when the
// goal does not exist, in which case the snapshot is returned unchanged.
func (m *StrategyManager) AddStrategy(p PEI, goalID string, in StrategyInput) (PEI, string, bool) {
	idx := p.goalIndex(goalID)
	if idx < 0 {
		return p, "", false
	}

	s := Strategy{
		ID:          m.ids.GenerateID(),
		Description: in.Description,
		Resources:   in.Resources,
		Responsible: in.Responsible,
		Frequency:   in.Frequency,
	}

	next := p.Clone()
	next.Goals[idx].Strategies = append(next.Goals[idx].Strategies, s)
	return next, s.ID, true
}

// UpdateStrategy merges the non-nil fields of upd onto the strategy.
func (m *StrategyManager) UpdateStrategy(p PEI, goalID, strategyID string, upd StrategyUpdate) PEI {
	gi, si := p.strategyIndex(goalID, strategyID)
	if si < 0 {
		return p
	}

	next := p.Clone()
	s := &next.Goals[gi].Strategies[si]
	if upd.Description != nil {
		s.Description = *upd.Description
	}
	if upd.Resources != nil {
		s.Resources = *upd.Resources
	}
	if upd.Responsible != nil {
		s.Responsible = *upd.Responsible
	}
	if upd.Frequency != nil {
		s.Frequency = *upd.Frequency
	}
	return next
}

// DeleteStrategy removes the strategy from the goal.
func (m *StrategyManager) DeleteStrategy(p PEI, goalID, strategyID string) PEI {
	gi, si := p.strategyIndex(goalID, strategyID)
	if si < 0 {
		return p
	}
	next := p.Clone()
	next.Goals[gi].Strategies = slices.Delete(next.Goals[gi].Strategies, si, si+1)
	return next
}

// StrategyByID looks a strategy up under its goal.
func StrategyByID(p PEI, goalID, strategyID string) (Strategy, bool) {
	gi, si := p.strategyIndex(goalID, strategyID)
	if si < 0 {
		return Strategy{}, false
	}
	return p.Goals[gi].Strategies[si], true
}

func (p PEI) strategyIndex(goalID, strategyID string) (int, int) {
	gi := p.goalIndex(goalID)
	if gi < 0 {
		return -1, -1
	}
	si := slices.IndexFunc(p.Goals[gi].Strategies, func(s Strategy) bool { return s.ID == strategyID })
	return gi, si
}
