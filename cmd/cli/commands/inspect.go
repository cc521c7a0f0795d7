package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jakechorley/shift-selector/pkg/core/services"
)

// WhoamiCmd creates the whoami command
func WhoamiCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami <token>",
		Short: "Show the user a bearer key or user:password token belongs to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			auth, err := services.Authenticate(app.Ctx, app.Directory, app.Logger, "Bearer "+args[0])
			if err != nil {
				return err
			}

			u := auth.User
			fmt.Printf("\nReg ID:   %s\n", u.ID)
			fmt.Printf("Name:     %s %s\n", u.FirstName, u.LastName)
			fmt.Printf("Team:     %s\n", u.TeamID())
			fmt.Printf("Captain:  %t\n", u.IsCaptain)
			fmt.Printf("Canceled: %t\n\n", u.IsCanceled)
			return nil
		},
	}
}

// CheckShiftCmd creates the checkShift command
func CheckShiftCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "checkShift <shiftId>",
		Short: "Report whether a schedule cell can be claimed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			availability, cell, err := app.Engine.CheckClaimable(app.Ctx, args[0])
			if err != nil {
				return err
			}

			background := "none"
			if cell.Background != nil {
				background = cell.Background.Hex()
			}
			fmt.Printf("%s: %s (value %q, background %s)\n", cell.ID, availability, cell.Value, background)
			return nil
		},
	}
}

// HistoryCmd creates the history command
func HistoryCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "history <shiftId>",
		Short: "List recorded claims and releases of a shift",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := services.ValidateShiftID(args[0]); err != nil {
				return err
			}

			events, err := app.Journal.ListClaimEvents(app.Ctx, args[0])
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Printf("No recorded events for %s (journal backend: %s)\n", args[0], app.Cfg.Journal.Backend)
				return nil
			}

			fmt.Printf("\n%d events for %s:\n\n", len(events), args[0])
			for _, e := range events {
				fmt.Printf("  %s  %-8s %s\n", e.At, e.Action, e.UserID)
			}
			fmt.Println()
			return nil
		},
	}
}
