package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/shift-selector/pkg/core/directory"
	"github.com/jakechorley/shift-selector/pkg/core/services"
)

// RecountCmd creates the recount command
func RecountCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "recount [userId]",
		Short: "Recompute shift counts for one user, or for every active user",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				counts, err := services.RecountAll(app.Ctx, app.SheetsClient, app.Directory, app.Cfg, app.Logger)
				if err != nil {
					return err
				}

				ids := make([]string, 0, len(counts))
				for id := range counts {
					ids = append(ids, id)
				}
				sort.Strings(ids)

				fmt.Printf("\nUpdated %d shift counts:\n\n", len(ids))
				for _, id := range ids {
					fmt.Printf("  %-20s %d\n", id, counts[id])
				}
				fmt.Println()
				return nil
			}

			userID := args[0]
			app.Logger.Debug("recount command", zap.String("user", userID))

			dir, err := app.Directory.Load(app.Ctx)
			if err != nil {
				return err
			}
			user, ok := dir.ByID[userID]
			if !ok {
				return fmt.Errorf("no user with Reg ID %q", userID)
			}
			target, err := directory.CountTarget(dir, user)
			if err != nil {
				return err
			}

			count, err := services.RecomputeShiftCount(app.Ctx, app.SheetsClient, app.Cfg, app.Logger, target)
			if err != nil {
				return err
			}

			fmt.Printf("%s holds %d shifts\n", userID, count)
			return nil
		},
	}
}
