package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/educa-hub/pei-hub/internal/domain/pei"
)

// analyticsReport is the --json shape of the analytics command.
type analyticsReport struct {
	PEIID        string                  `json:"peiId"`
	Overall      int                     `json:"overallProgress"`
	Trends       []pei.TrendPoint        `json:"trends"`
	Domains      []pei.DomainSummary     `json:"domains"`
	Distribution []pei.DistributionEntry `json:"distribution"`
}

func newAnalyticsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "analytics",
		Short: "Overall progress, monthly trends, goals by domain and status distribution",
		Args:  cobra.NoArgs,
		RunE: withPlan(a, func(cmd *cobra.Command, args []string) error {
			report := analyticsReport{
				PEIID:        a.flags.peiID,
				Overall:      a.facade.OverallProgress(),
				Trends:       a.facade.ProgressTrends(),
				Domains:      a.facade.GoalsByDomain(),
				Distribution: a.facade.ProgressDistribution(),
			}
			if a.flags.json {
				return a.printJSON(report)
			}

			a.printf("overall progress: %d%%\n", report.Overall)

			if len(report.Trends) > 0 {
				a.printf("\n")
				a.printTrends(report.Trends)
			}

			if len(report.Domains) > 0 {
				a.printf("\n")
				w := a.table()
				fmt.Fprintln(w, "DOMAIN\tTOTAL\tACHIEVED\tIN PROGRESS\tNOT STARTED")
				for _, d := range report.Domains {
					fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n", d.Domain, d.Total, d.Achieved, d.InProgress, d.NotStarted)
				}
				if err := w.Flush(); err != nil {
					return err
				}
			}

			if len(report.Distribution) > 0 {
				a.printf("\n")
				w := a.table()
				fmt.Fprintln(w, "STATUS\tGOALS\tSHARE")
				for _, e := range report.Distribution {
					fmt.Fprintf(w, "%s\t%d\t%.1f%%\n", e.Label, e.Count, e.Percentage)
				}
				return w.Flush()
			}
			return nil
		}),
	}
}

func (a *app) printTrends(trends []pei.TrendPoint) {
	w := a.table()
	fmt.Fprintln(w, "MONTH\tRECORDS\tIMPROVED\tSAME\tREGRESSED")
	for _, t := range trends {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n", t.Month, t.Count, t.Improved, t.Same, t.Regressed)
	}
	_ = w.Flush()
}
