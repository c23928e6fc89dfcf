package cli

import (
	"github.com/spf13/cobra"

	"github.com/educa-hub/pei-hub/internal/domain/pei"
)

func newProgressCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Record and edit progress observations of a goal",
		Long: `An achieved record marks its goal achieved. Minor or significant progress
moves a not_started goal to in_progress. Editing or deleting records never
changes the goal status.`,
	}
	cmd.AddCommand(
		newProgressAddCommand(a),
		newProgressUpdateCommand(a),
		newProgressDeleteCommand(a),
	)
	return cmd
}

type progressFields struct {
	date     string
	notes    string
	evidence string
	status   string
	author   string
}

func (f *progressFields) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.date, "date", "", "observation date, defaults to now")
	cmd.Flags().StringVar(&f.notes, "notes", "", "what was observed")
	cmd.Flags().StringVar(&f.evidence, "evidence", "", "evidence such as a file or link")
	cmd.Flags().StringVar(&f.status, "status", "", "regression, no_change, minor_progress, significant_progress or achieved")
	cmd.Flags().StringVar(&f.author, "author", "", "who recorded the observation")
}

func newProgressAddCommand(a *app) *cobra.Command {
	var f progressFields

	cmd := &cobra.Command{
		Use:   "add <goal-id>",
		Short: "Add a progress record and print its id",
		Args:  cobra.ExactArgs(1),
		RunE: withPlan(a, func(cmd *cobra.Command, args []string) error {
			date, err := parseDateFlag("date", f.date)
			if err != nil {
				return err
			}
			status, err := pei.ParseProgressStatus(f.status)
			if err != nil {
				return err
			}
			id, err := a.facade.AddProgressRecord(cmd.Context(), args[0], pei.ProgressInput{
				Date:     date,
				Notes:    f.notes,
				Evidence: f.evidence,
				Status:   status,
				Author:   f.author,
			})
			if err != nil || id == "" {
				return err
			}
			return a.printID(id)
		}),
	}
	f.register(cmd)
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func newProgressUpdateCommand(a *app) *cobra.Command {
	var f progressFields

	cmd := &cobra.Command{
		Use:   "update <goal-id> <progress-id>",
		Short: "Update fields of a progress record",
		Args:  cobra.ExactArgs(2),
		RunE: withPlan(a, func(cmd *cobra.Command, args []string) error {
			var upd pei.ProgressUpdate
			changed := cmd.Flags().Changed

			if changed("notes") {
				upd.Notes = &f.notes
			}
			if changed("evidence") {
				upd.Evidence = &f.evidence
			}
			if changed("author") {
				upd.Author = &f.author
			}
			if changed("date") {
				d, err := parseDateFlag("date", f.date)
				if err != nil {
					return err
				}
				upd.Date = &d
			}
			if changed("status") {
				s, err := pei.ParseProgressStatus(f.status)
				if err != nil {
					return err
				}
				upd.Status = &s
			}
			return a.facade.UpdateProgressRecord(cmd.Context(), args[0], args[1], upd)
		}),
	}
	f.register(cmd)
	return cmd
}

func newProgressDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <goal-id> <progress-id>",
		Short: "Delete a progress record",
		Args:  cobra.ExactArgs(2),
		RunE: withPlan(a, func(cmd *cobra.Command, args []string) error {
			return a.facade.DeleteProgressRecord(cmd.Context(), args[0], args[1])
		}),
	}
}
