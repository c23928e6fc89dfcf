package cli

import (
	"github.com/spf13/cobra"

	"github.com/educa-hub/pei-hub/internal/domain/pei"
)

func newStrategyCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "strategy",
		Short: "Manage the strategies of a goal",
		Long:  "Unknown goal or strategy ids are ignored and nothing is written.",
	}
	cmd.AddCommand(
		newStrategyAddCommand(a),
		newStrategyUpdateCommand(a),
		newStrategyDeleteCommand(a),
	)
	return cmd
}

type strategyFields struct {
	description string
	resources   string
	responsible string
	frequency   string
}

func (f *strategyFields) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.description, "description", "", "what will be done")
	cmd.Flags().StringVar(&f.resources, "resources", "", "materials or resources needed")
	cmd.Flags().StringVar(&f.responsible, "responsible", "", "who applies the strategy")
	cmd.Flags().StringVar(&f.frequency, "frequency", "", "how often, e.g. 2x por semana")
}

func newStrategyAddCommand(a *app) *cobra.Command {
	var f strategyFields

	cmd := &cobra.Command{
		Use:   "add <goal-id>",
		Short: "Add a strategy to a goal and print its id",
		Args:  cobra.ExactArgs(1),
		RunE: withPlan(a, func(cmd *cobra.Command, args []string) error {
			id, err := a.facade.AddStrategy(cmd.Context(), args[0], pei.StrategyInput{
				Description: f.description,
				Resources:   f.resources,
				Responsible: f.responsible,
				Frequency:   f.frequency,
			})
			if err != nil || id == "" {
				return err
			}
			return a.printID(id)
		}),
	}
	f.register(cmd)
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func newStrategyUpdateCommand(a *app) *cobra.Command {
	var f strategyFields

	cmd := &cobra.Command{
		Use:   "update <goal-id> <strategy-id>",
		Short: "Update fields of a strategy",
		Args:  cobra.ExactArgs(2),
		RunE: withPlan(a, func(cmd *cobra.Command, args []string) error {
			var upd pei.StrategyUpdate
			changed := cmd.Flags().Changed

			if changed("description") {
				upd.Description = &f.description
			}
			if changed("resources") {
				upd.Resources = &f.resources
			}
			if changed("responsible") {
				upd.Responsible = &f.responsible
			}
			if changed("frequency") {
				upd.Frequency = &f.frequency
			}
			return a.facade.UpdateStrategy(cmd.Context(), args[0], args[1], upd)
		}),
	}
	f.register(cmd)
	return cmd
}

func newStrategyDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <goal-id> <strategy-id>",
		Short: "Delete a strategy",
		Args:  cobra.ExactArgs(2),
		RunE: withPlan(a, func(cmd *cobra.Command, args []string) error {
			return a.facade.DeleteStrategy(cmd.Context(), args[0], args[1])
		}),
	}
}
