package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/educa-hub/pei-hub/internal/application/query"
	"github.com/educa-hub/pei-hub/internal/domain/pei"
)

func newPEICommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pei",
		Short: "Create, inspect and edit plans",
	}
	cmd.AddCommand(
		newPEICreateCommand(a),
		newPEICreateFromAssessmentCommand(a),
		newPEIShowCommand(a),
		newPEIListCommand(a),
		newPEIUpdateCommand(a),
		newPEISaveCommand(a),
		newPEIDeleteCommand(a),
	)
	return cmd
}

// peiFields are the header flags shared by create and update.
type peiFields struct {
	studentName string
	title       string
	start       string
	end         string
	team        []string
	review      string
	status      string
	notes       string
}

func (f *peiFields) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.studentName, "student-name", "", "student display name")
	cmd.Flags().StringVar(&f.title, "title", "", "plan title")
	cmd.Flags().StringVar(&f.start, "start", "", "start date (YYYY-MM-DD or DD/MM/YYYY)")
	cmd.Flags().StringVar(&f.end, "end", "", "end date (YYYY-MM-DD or DD/MM/YYYY)")
	cmd.Flags().StringSliceVar(&f.team, "team", nil, "team members, comma separated")
	cmd.Flags().StringVar(&f.review, "review", "", "review frequency (weekly, biweekly, monthly, bimonthly, quarterly, semiannual)")
	cmd.Flags().StringVar(&f.status, "status", "", "plan status (draft, active, completed, archived)")
	cmd.Flags().StringVar(&f.notes, "notes", "", "free-form notes")
}

func newPEICreateCommand(a *app) *cobra.Command {
	var (
		studentID    string
		assessmentID string
		fields       peiFields
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a plan and print its id",
		Example: `  peictl pei create --student s-42 --student-name "Ana" --title "PEI 2024" \
    --start 2024-02-01 --review monthly --team "Prof. Lima,Dra. Souza"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseDateFlag("start", fields.start)
			if err != nil {
				return err
			}
			end, err := parseDateFlag("end", fields.end)
			if err != nil {
				return err
			}
			review, err := pei.ParseReviewFrequency(fields.review)
			if err != nil {
				return err
			}

			id, err := a.facade.CreatePEI(cmd.Context(), pei.NewPEIParams{
				StudentID:       studentID,
				StudentName:     fields.studentName,
				Title:           fields.title,
				StartDate:       start,
				EndDate:         end,
				AssessmentID:    assessmentID,
				TeamMembers:     fields.team,
				ReviewFrequency: review,
				Status:          pei.Status(fields.status),
				Notes:           fields.notes,
			})
			if err != nil {
				return err
			}
			return a.printID(id)
		},
	}
	cmd.Flags().StringVar(&studentID, "student", "", "student id (required)")
	cmd.Flags().StringVar(&assessmentID, "assessment", "", "assessment the plan is based on")
	fields.register(cmd)
	_ = cmd.MarkFlagRequired("student")
	return cmd
}

func newPEICreateFromAssessmentCommand(a *app) *cobra.Command {
	var in pei.Assessment

	cmd := &cobra.Command{
		Use:   "create-from-assessment",
		Short: "Create a plan from an assessment and print its id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.facade.CreatePEIFromAssessment(cmd.Context(), in)
			if err != nil {
				return err
			}
			return a.printID(id)
		},
	}
	cmd.Flags().StringVar(&in.ID, "assessment", "", "assessment id (required)")
	cmd.Flags().StringVar(&in.StudentID, "student", "", "student id (required)")
	cmd.Flags().StringVar(&in.StudentName, "student-name", "", "student display name")
	cmd.Flags().StringVar(&in.Title, "title", "", "assessment title")
	_ = cmd.MarkFlagRequired("assessment")
	_ = cmd.MarkFlagRequired("student")
	return cmd
}

func newPEIShowCommand(a *app) *cobra.Command {
	var goals, trends bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the dashboard of the --pei plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.flags.peiID == "" {
				return errNoPEI
			}
			res, err := a.dashboards.Handle(cmd.Context(), query.GetPEIDashboardQuery{
				PEIID:         a.flags.peiID,
				Now:           a.now(),
				IncludeTrends: trends,
				IncludeGoals:  goals,
			})
			if err != nil {
				return err
			}
			if a.flags.json {
				return a.printJSON(res)
			}
			a.printDashboard(res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&goals, "goals", true, "include one row per goal")
	cmd.Flags().BoolVar(&trends, "trends", false, "include the monthly trend")
	return cmd
}

func (a *app) printDashboard(d *query.GetPEIDashboardResult) {
	a.printf("%s  %s\n", d.PEIID, d.Title)
	a.printf("student: %s (%s)  status: %s  created: %s\n", d.StudentName, d.StudentID, d.Status, d.CreatedDate)
	review := d.NextReview
	if d.ReviewDue {
		review += " (due)"
	}
	a.printf("next review: %s\n", review)
	a.printf("overall progress: %d%%  goals: %d  records: %d  overdue: %d\n",
		d.OverallProgress, d.GoalCount, d.RecordCount, d.OverdueGoals)

	if len(d.Goals) > 0 {
		a.printf("\n")
		w := a.table()
		fmt.Fprintln(w, "GOAL\tDOMAIN\tSTATUS\tTARGET\tSTRATEGIES\tRECORDS\tLAST")
		for _, g := range d.Goals {
			target := g.TargetDate
			if g.Overdue {
				target += " !"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
				g.ID, g.Domain, g.StatusLabel, target, g.Strategies, g.Records, g.LastRecordDate)
		}
		_ = w.Flush()
	}
	if len(d.Trends) > 0 {
		a.printf("\n")
		a.printTrends(d.Trends)
	}
}

func newPEIListCommand(a *app) *cobra.Command {
	var studentID, status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the plans of a student, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.plans.Handle(cmd.Context(), query.GetStudentPEIsQuery{
				StudentID: studentID,
				Status:    pei.Status(status),
				Now:       a.now(),
			})
			if err != nil {
				return err
			}
			if a.flags.json {
				return a.printJSON(res)
			}

			w := a.table()
			fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tCREATED\tGOALS\tPROGRESS\tREVIEW")
			for _, p := range res.Plans {
				review := ""
				if p.ReviewDue {
					review = "due"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d%%\t%s\n",
					p.ID, p.Title, p.Status, p.CreatedDate, p.Goals, p.OverallProgress, review)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&studentID, "student", "", "student id (required)")
	cmd.Flags().StringVar(&status, "status", "", "only plans in this status")
	_ = cmd.MarkFlagRequired("student")
	return cmd
}

func newPEIUpdateCommand(a *app) *cobra.Command {
	var (
		fields     peiFields
		nextReview string
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update header fields of the --pei plan",
		Long: `Only the flags given are changed. Goals are never touched.
Changing --review without --next-review recomputes the next review date from now.`,
		Args: cobra.NoArgs,
		RunE: withPlan(a, func(cmd *cobra.Command, args []string) error {
			upd, err := fields.update(cmd, nextReview)
			if err != nil {
				return err
			}
			if err := a.facade.UpdatePEI(cmd.Context(), upd); err != nil {
				return err
			}
			p, _ := a.facade.Current()
			if a.flags.json {
				return a.printJSON(p)
			}
			a.printf("%s\n", p)
			return nil
		}),
	}
	fields.register(cmd)
	cmd.Flags().StringVar(&nextReview, "next-review", "", "explicit next review date")
	return cmd
}

// update builds a PEIUpdate from the flags the user actually set.
func (f *peiFields) update(cmd *cobra.Command, nextReview string) (pei.PEIUpdate, error) {
	var upd pei.PEIUpdate
	changed := cmd.Flags().Changed

	if changed("title") {
		upd.Title = &f.title
	}
	if changed("student-name") {
		upd.StudentName = &f.studentName
	}
	if changed("notes") {
		upd.Notes = &f.notes
	}
	if changed("team") {
		team := make([]string, 0, len(f.team))
		for _, m := range f.team {
			if m = strings.TrimSpace(m); m != "" {
				team = append(team, m)
			}
		}
		upd.TeamMembers = &team
	}
	if changed("status") {
		s, err := pei.ParseStatus(f.status)
		if err != nil {
			return upd, err
		}
		upd.Status = &s
	}
	if changed("review") {
		r, err := pei.ParseReviewFrequency(f.review)
		if err != nil {
			return upd, err
		}
		upd.ReviewFrequency = &r
	}

	dates := []struct {
		flag  string
		value string
		dst   **time.Time
	}{
		{"start", f.start, &upd.StartDate},
		{"end", f.end, &upd.EndDate},
		{"next-review", nextReview, &upd.NextReviewDate},
	}
	for _, d := range dates {
		if !changed(d.flag) {
			continue
		}
		t, err := parseDateFlag(d.flag, d.value)
		if err != nil {
			return upd, err
		}
		*d.dst = &t
	}
	return upd, nil
}

func newPEISaveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Write the --pei plan back to storage",
		Args:  cobra.NoArgs,
		RunE: withPlan(a, func(cmd *cobra.Command, args []string) error {
			return a.facade.SavePEI(cmd.Context())
		}),
	}
}

func newPEIDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a stored plan (defaults to --pei)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := a.flags.peiID
			if len(args) == 1 {
				id = args[0]
			}
			if id == "" {
				return errNoPEI
			}
			return a.facade.DeletePEI(cmd.Context(), id)
		},
	}
}
