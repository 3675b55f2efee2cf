package main

import (
	"github.com/spf13/cobra"

	"github.com/Astemirdum/library-ledger/library/app"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return app.Migrate(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
