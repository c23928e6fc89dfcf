package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/educa-hub/pei-hub/internal/domain/pei"
)

func newGoalCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goal",
		Short: "Manage the goals of the --pei plan",
	}
	cmd.AddCommand(
		newGoalAddCommand(a),
		newGoalShowCommand(a),
		newGoalUpdateCommand(a),
		newGoalDeleteCommand(a),
	)
	return cmd
}

type goalFields struct {
	domain      string
	title       string
	description string
	target      string
	status      string
	evaluation  string
}

func (f *goalFields) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.domain, "domain", "", "development domain, e.g. motor, cognitive, social")
	cmd.Flags().StringVar(&f.title, "title", "", "goal title")
	cmd.Flags().StringVar(&f.description, "description", "", "goal description")
	cmd.Flags().StringVar(&f.target, "target", "", "target date")
	cmd.Flags().StringVar(&f.status, "status", "", "goal status (not_started, in_progress, achieved, canceled)")
	cmd.Flags().StringVar(&f.evaluation, "evaluation", "", "how the goal is evaluated")
}

func newGoalAddCommand(a *app) *cobra.Command {
	var f goalFields

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a goal and print its id",
		Args:  cobra.NoArgs,
		RunE: withPlan(a, func(cmd *cobra.Command, args []string) error {
			target, err := parseDateFlag("target", f.target)
			if err != nil {
				return err
			}
			id, err := a.facade.AddGoal(cmd.Context(), pei.GoalInput{
				Domain:           f.domain,
				Title:            f.title,
				Description:      f.description,
				TargetDate:       target,
				Status:           pei.GoalStatus(f.status),
				EvaluationMethod: f.evaluation,
			})
			if err != nil {
				return err
			}
			return a.printID(id)
		}),
	}
	f.register(cmd)
	_ = cmd.MarkFlagRequired("domain")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newGoalShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <goal-id>",
		Short: "Show a goal with its strategies and progress log",
		Args:  cobra.ExactArgs(1),
		RunE: withPlan(a, func(cmd *cobra.Command, args []string) error {
			g, ok := a.facade.GetGoal(args[0])
			if !ok {
				return fmt.Errorf("goal %q not found", args[0])
			}
			summary, _ := a.facade.GetProgressAnalytics(g.ID)
			return a.printGoal(g, summary)
		}),
	}
}

func newGoalUpdateCommand(a *app) *cobra.Command {
	var f goalFields

	cmd := &cobra.Command{
		Use:   "update <goal-id>",
		Short: "Update fields of a goal",
		Long:  "Only the flags given are changed. A goal that has advanced cannot go back to not_started.",
		Args:  cobra.ExactArgs(1),
		RunE: withPlan(a, func(cmd *cobra.Command, args []string) error {
			var upd pei.GoalUpdate
			changed := cmd.Flags().Changed

			if changed("domain") {
				upd.Domain = &f.domain
			}
			if changed("title") {
				upd.Title = &f.title
			}
			if changed("description") {
				upd.Description = &f.description
			}
			if changed("evaluation") {
				upd.EvaluationMethod = &f.evaluation
			}
			if changed("target") {
				t, err := parseDateFlag("target", f.target)
				if err != nil {
					return err
				}
				upd.TargetDate = &t
			}
			if changed("status") {
				s, err := pei.ParseGoalStatus(f.status)
				if err != nil {
					return err
				}
				upd.Status = &s
			}

			if err := a.facade.UpdateGoal(cmd.Context(), args[0], upd); err != nil {
				return err
			}
			if g, ok := a.facade.GetGoal(args[0]); ok && a.flags.json {
				return a.printJSON(g)
			}
			return nil
		}),
	}
	f.register(cmd)
	return cmd
}

func newGoalDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <goal-id>",
		Short: "Delete a goal with its strategies and progress",
		Args:  cobra.ExactArgs(1),
		RunE: withPlan(a, func(cmd *cobra.Command, args []string) error {
			return a.facade.DeleteGoal(cmd.Context(), args[0])
		}),
	}
}
