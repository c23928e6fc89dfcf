package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/educa-hub/pei-hub/internal/domain/pei"
	"github.com/educa-hub/pei-hub/pkg/timeutil"
)

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.opts.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.opts.Stdout, format, args...)
}

func (a *app) table() *tabwriter.Writer {
	return tabwriter.NewWriter(a.opts.Stdout, 0, 0, 2, ' ', 0)
}

// printID prints the id of a created entity, as {"id": ...} under --json.
func (a *app) printID(id string) error {
	if a.flags.json {
		return a.printJSON(map[string]string{"id": id})
	}
	a.printf("%s\n", id)
	return nil
}

func (a *app) printGoal(g pei.Goal, summary *pei.GoalProgressSummary) error {
	if a.flags.json {
		return a.printJSON(struct {
			pei.Goal
			Summary *pei.GoalProgressSummary `json:"summary,omitempty"`
		}{g, summary})
	}

	a.printf("%s  [%s] %s\n", g.ID, g.Domain, g.Title)
	a.printf("status: %s  target: %s\n", g.Status.Label(), timeutil.FormatBR(g.TargetDate))
	if g.Description != "" {
		a.printf("%s\n", g.Description)
	}
	if summary != nil {
		a.printf("records: %d  significant: %d  regressions: %d\n",
			summary.TotalRecords, summary.SignificantProgress, summary.Regressions)
	}

	if len(g.Strategies) > 0 {
		a.printf("\nstrategies:\n")
		w := a.table()
		for _, s := range g.Strategies {
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", s.ID, s.Description, s.Responsible, s.Frequency)
		}
		_ = w.Flush()
	}
	if len(g.Progress) > 0 {
		a.printf("\nprogress:\n")
		w := a.table()
		for _, r := range g.Progress {
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\n", r.ID, timeutil.FormatBR(r.Date), r.Status, r.Author, oneLine(r.Notes))
		}
		_ = w.Flush()
	}
	return nil
}

// oneLine collapses whitespace so free text fits a table cell.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// parseDateFlag parses a date flag; empty means zero time.
func parseDateFlag(name, value string) (time.Time, error) {
	t, err := timeutil.ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: %w", name, err)
	}
	return t, nil
}
