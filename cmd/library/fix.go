package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Astemirdum/library-ledger/library/app"
)

var fixCmd = &cobra.Command{
	Use:   "fix-availability",
	Short: "Recompute available copies of every book from the active loans",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		n, err := app.FixAvailability(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Book availability recalculated for all books (%d changed)\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fixCmd)
}
