package pei

import (
	"math"
	"sort"
	"time"

	"github.com/educa-hub/pei-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ANALYTICS RESULT TYPES
// ══════════════════════════════════════════════════════════════════════════════

// TrendPoint aggregates progress records of one calendar month.
type TrendPoint struct {
	Month     string `json:"month"` // e.g. "jan. 2024"
	Count     int    `json:"count"`
	Improved  int    `json:"improved"`
	Same      int    `json:"same"`
	Regressed int    `json:"regressed"`
}

// DomainSummary counts goals of one development domain.
// Canceled goals are counted as NotStarted.
type DomainSummary struct {
	Domain     string `json:"domain"`
	Total      int    `json:"total"`
	Achieved   int    `json:"achieved"`
	InProgress int    `json:"inProgress"`
	NotStarted int    `json:"notStarted"`
}

// DistributionEntry is the share of goals in one status.
type DistributionEntry struct {
	Status     GoalStatus `json:"status"`
	Label      string     `json:"label"`
	Count      int        `json:"count"`
	Percentage float64    `json:"percentage"`
}

// ══════════════════════════════════════════════════════════════════════════════
// ANALYTICS
// ══════════════════════════════════════════════════════════════════════════════

// OverallProgress returns a 0..100 completion score where an achieved goal
// weighs 1 and an in-progress goal weighs 0.5.
func OverallProgress(p PEI) int {
	total := len(p.Goals)
	if total == 0 {
		return 0
	}

	var achieved, inProgress int
	for _, g := range p.Goals {
		switch g.Status {
		case GoalAchieved:
			achieved++
		case GoalInProgress:
			inProgress++
		}
	}

	score := (float64(achieved) + 0.5*float64(inProgress)) / float64(total) * 100
	return int(math.Round(score))
}

// ProgressTrends buckets every progress record of the plan by calendar month.
// Records are ordered by date (stable); buckets appear in first-seen order.
func ProgressTrends(p PEI) []TrendPoint {
	var records []ProgressRecord
	for _, g := range p.Goals {
		records = append(records, g.Progress...)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})

	points := []TrendPoint{}
	index := make(map[string]int)
	for _, r := range records {
		key := timeutil.MonthKey(r.Date)
		i, ok := index[key]
		if !ok {
			points = append(points, TrendPoint{Month: timeutil.MonthLabel(r.Date)})
			i = len(points) - 1
			index[key] = i
		}

		pt := &points[i]
		pt.Count++
		switch {
		case r.Status.IsImprovement():
			pt.Improved++
		case r.Status == ProgressNoChange:
			pt.Same++
		case r.Status == ProgressRegression:
			pt.Regressed++
		}
	}
	return points
}

// GoalsByDomain groups goals by domain in first-seen order.
func GoalsByDomain(p PEI) []DomainSummary {
	summaries := []DomainSummary{}
	index := make(map[string]int)
	for _, g := range p.Goals {
		i, ok := index[g.Domain]
		if !ok {
			summaries = append(summaries, DomainSummary{Domain: g.Domain})
			i = len(summaries) - 1
			index[g.Domain] = i
		}

		s := &summaries[i]
		s.Total++
		switch g.Status {
		case GoalAchieved:
			s.Achieved++
		case GoalInProgress:
			s.InProgress++
		default:
			s.NotStarted++
		}
	}
	return summaries
}

// ProgressDistribution returns the share of goals per status in enum order.
// Statuses with no goals are omitted.
func ProgressDistribution(p PEI) []DistributionEntry {
	entries := []DistributionEntry{}
	total := len(p.Goals)
	if total == 0 {
		return entries
	}

	counts := make(map[GoalStatus]int, len(GoalStatuses))
	for _, g := range p.Goals {
		counts[g.Status]++
	}

	for _, status := range GoalStatuses {
		n := counts[status]
		if n == 0 {
			continue
		}
		entries = append(entries, DistributionEntry{
			Status:     status,
			Label:      status.Label(),
			Count:      n,
			Percentage: float64(n) / float64(total) * 100,
		})
	}
	return entries
}

// OverdueGoals returns open goals whose target date has passed.
func OverdueGoals(p PEI, now time.Time) []Goal {
	overdue := []Goal{}
	for _, g := range p.Goals {
		if g.TargetDate.IsZero() || !g.TargetDate.Before(now) {
			continue
		}
		if g.Status == GoalNotStarted || g.Status == GoalInProgress {
			overdue = append(overdue, g.Clone())
		}
	}
	return overdue
}
