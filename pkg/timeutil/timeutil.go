// Package timeutil provides calendar helpers for PEI Hub.
// Month labels follow the Brazilian Portuguese convention used by schools
// ("jan. 2024", "fev. 2024"). No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// Common date/time formats.
const (
	// FormatDate is the standard date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatDateTime is the standard datetime format.
	FormatDateTime = "2006-01-02 15:04"
	// FormatBrazilianDate is the Brazilian date format (DD/MM/YYYY).
	FormatBrazilianDate = "02/01/2006"
)

// monthAbbrevPT holds pt-BR month abbreviations, 1-indexed.
var monthAbbrevPT = [...]string{
	"", "jan.", "fev.", "mar.", "abr.", "mai.", "jun.",
	"jul.", "ago.", "set.", "out.", "nov.", "dez.",
}

// monthNamesPT holds full pt-BR month names, 1-indexed.
var monthNamesPT = [...]string{
	"", "janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// MonthAbbrevPT returns the pt-BR abbreviation for a month ("jan.").
func MonthAbbrevPT(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return monthAbbrevPT[m]
}

// MonthNamePT returns the full pt-BR name for a month ("janeiro").
func MonthNamePT(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return monthNamesPT[m]
}

// MonthLabel formats the calendar month of t as "jan. 2024".
// The month is taken in t's own location.
func MonthLabel(t time.Time) string {
	return fmt.Sprintf("%s %d", MonthAbbrevPT(t.Month()), t.Year())
}

// MonthKey identifies the calendar month of t ("2024-01"), suitable for bucketing.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// StartOfDay returns midnight of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// StartOfMonth returns the first instant of t's month in t's location.
func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// AddMonths adds n calendar months, clamping the day to the last day of the
// target month (31 jan + 1 month = 29 fev in a leap year).
func AddMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	lastDay := first.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > lastDay {
		day = lastDay
	}
	return first.AddDate(0, 0, day-1)
}

// DaysBetween calculates the number of whole days between two times.
func DaysBetween(t1, t2 time.Time) int {
	a1 := StartOfDay(t1)
	a2 := StartOfDay(t2.In(t1.Location()))
	days := int(a2.Sub(a1).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}

// FormatBR formats a time as DD/MM/YYYY.
func FormatBR(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(FormatBrazilianDate)
}

// ParseDate accepts RFC 3339, YYYY-MM-DD, "YYYY-MM-DD HH:MM" and DD/MM/YYYY.
// Date-only values are interpreted in UTC. An empty string yields the zero time.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, FormatDate, FormatDateTime, FormatBrazilianDate} {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}
