package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/Astemirdum/library-ledger/library/app"
	"github.com/Astemirdum/library-ledger/library/config"
)

var (
	servePort      string
	repairSchedule string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (default command)",
	Long: `Serve applies pending migrations and starts the HTTP API under /api.

When KAFKA_ENABLE is set, loan events are published to library-loans and
availability repair requests are consumed from library-availability.

Examples:
  library serve --port 8080
  library serve --repair-schedule "@every 1h"`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	for _, c := range []*cobra.Command{rootCmd, serveCmd} {
		c.Flags().StringVarP(&servePort, "port", "p", "", "override LIBRARY_HTTP_PORT")
		c.Flags().StringVar(&repairSchedule, "repair-schedule", "", "override AVAILABILITY_REPAIR_SCHEDULE (cron spec)")
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(
		config.WithWriteTimeout(time.Minute),
		config.WithPort(servePort),
		config.WithRepairSchedule(repairSchedule),
	)
	if err != nil {
		return err
	}
	return app.Run(cfg)
}
