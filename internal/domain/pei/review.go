package pei

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/educa-hub/pei-hub/pkg/timeutil"
)

// ReviewFrequency is how often the team revisits the plan.
// The empty value means no review is scheduled.
type ReviewFrequency string

const (
	ReviewWeekly     ReviewFrequency = "weekly"
	ReviewBiweekly   ReviewFrequency = "biweekly"
	ReviewMonthly    ReviewFrequency = "monthly"
	ReviewBimonthly  ReviewFrequency = "bimonthly"
	ReviewQuarterly  ReviewFrequency = "quarterly"
	ReviewSemiannual ReviewFrequency = "semiannual"
)

// ReviewFrequencies lists every accepted frequency.
var ReviewFrequencies = []ReviewFrequency{
	ReviewWeekly, ReviewBiweekly, ReviewMonthly, ReviewBimonthly, ReviewQuarterly, ReviewSemiannual,
}

// IsValid checks that the frequency belongs to the closed set.
func (f ReviewFrequency) IsValid() bool {
	return slices.Contains(ReviewFrequencies, f)
}

// ParseReviewFrequency converts a raw value into a ReviewFrequency.
// An empty value is accepted and means "not scheduled".
func ParseReviewFrequency(raw string) (ReviewFrequency, error) {
	f := ReviewFrequency(strings.TrimSpace(raw))
	if f == "" || f.IsValid() {
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidReviewFrequency, raw)
}

// NextReviewAfter returns the review date that follows from.
func NextReviewAfter(from time.Time, freq ReviewFrequency) (time.Time, error) {
	switch freq {
	case ReviewWeekly:
		return from.AddDate(0, 0, 7), nil
	case ReviewBiweekly:
		return from.AddDate(0, 0, 14), nil
	case ReviewMonthly:
		return timeutil.AddMonths(from, 1), nil
	case ReviewBimonthly:
		return timeutil.AddMonths(from, 2), nil
	case ReviewQuarterly:
		return timeutil.AddMonths(from, 3), nil
	case ReviewSemiannual:
		return timeutil.AddMonths(from, 6), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidReviewFrequency, freq)
	}
}

// ReviewDue reports whether a scheduled review date has been reached.
func (p PEI) ReviewDue(now time.Time) bool {
	return !p.NextReviewDate.IsZero() && !now.Before(p.NextReviewDate)
}

// PEIUpdate is a partial update of the plan header. Goals are never touched.
type PEIUpdate struct {
	Title           *string
	StudentName     *string
	StartDate       *time.Time
	EndDate         *time.Time
	TeamMembers     *[]string
	ReviewFrequency *ReviewFrequency
	NextReviewDate  *time.Time
	Status          *Status
	Notes           *string
}

// ApplyPEIUpdate merges the non-nil fields of upd onto the plan header.
// When the review frequency changes without an explicit next review date,
// the date is recomputed from now.
func ApplyPEIUpdate(p PEI, upd PEIUpdate, now time.Time) (PEI, error) {
	if upd.Status != nil && !upd.Status.IsValid() {
		return p, fmt.Errorf("%w: %q", ErrInvalidPEIStatus, *upd.Status)
	}
	if upd.ReviewFrequency != nil && *upd.ReviewFrequency != "" && !upd.ReviewFrequency.IsValid() {
		return p, fmt.Errorf("%w: %q", ErrInvalidReviewFrequency, *upd.ReviewFrequency)
	}

	next := p.Clone()
	if upd.Title != nil {
		next.Title = *upd.Title
	}
	if upd.StudentName != nil && strings.TrimSpace(*upd.StudentName) != "" {
		next.StudentName = strings.TrimSpace(*upd.StudentName)
	}
	if upd.StartDate != nil {
		next.StartDate = *upd.StartDate
	}
	if upd.EndDate != nil {
		next.EndDate = *upd.EndDate
	}
	if upd.TeamMembers != nil {
		next.TeamMembers = slices.Clone(*upd.TeamMembers)
		if next.TeamMembers == nil {
			next.TeamMembers = []string{}
		}
	}
	if upd.Status != nil {
		next.Status = *upd.Status
	}
	if upd.Notes != nil {
		next.Notes = *upd.Notes
	}

	if upd.ReviewFrequency != nil && *upd.ReviewFrequency != p.ReviewFrequency {
		next.ReviewFrequency = *upd.ReviewFrequency
		if next.ReviewFrequency == "" {
			next.NextReviewDate = time.Time{}
		} else if upd.NextReviewDate == nil {
			due, err := NextReviewAfter(now, next.ReviewFrequency)
			if err != nil {
				return p, err
			}
			next.NextReviewDate = due
		}
	}
	if upd.NextReviewDate != nil {
		next.NextReviewDate = *upd.NextReviewDate
	}

	return next, nil
}
