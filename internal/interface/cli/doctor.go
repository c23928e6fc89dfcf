package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/educa-hub/pei-hub/internal/domain/pei"
	"github.com/educa-hub/pei-hub/internal/domain/shared"
)

var errUnhealthy = errors.New("health checks failed")

func newDoctorCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that the configured storage is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// A read of a key that cannot exist exercises the whole
			// decorator chain without writing anything.
			a.health.AddCheck("repository", func(ctx context.Context) error {
				_, err := a.repo.Load(ctx, "doctor-check")
				if err == nil || errors.Is(err, shared.ErrNotFound) || errors.Is(err, pei.ErrPEINotFound) {
					return nil
				}
				return err
			})

			status := a.health.Check(cmd.Context())
			if a.flags.json {
				if err := a.printJSON(status); err != nil {
					return err
				}
			} else {
				w := a.table()
				for _, c := range status.Checks {
					mark := "ok"
					if !c.Healthy {
						mark = "FAIL"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Name, mark, c.Duration, c.Message)
				}
				_ = w.Flush()
				a.printf("backend: %s  %s\n", a.cfg.Storage.Backend, status.Message)
			}
			if !status.Healthy {
				return errUnhealthy
			}
			return nil
		},
	}
}
