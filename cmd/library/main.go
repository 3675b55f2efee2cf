package main

import (
	stdLog "log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/Astemirdum/library-ledger/library/config"
)

var (
	envFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "library",
	Short: "Library ledger: books, students, loans, returns and fines",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	},
	RunE:          runServe,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")
}

// loadConfig applies command line overrides on top of the environment.
func loadConfig(extra ...config.Option) (*config.Config, error) {
	ops := extra
	if logLevel != "" {
		lvl, err := zapcore.ParseLevel(logLevel)
		if err != nil {
			return nil, err
		}
		ops = append(ops, config.WithLogLevel(lvl))
	}
	return config.NewConfig(ops...), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		stdLog.Fatal(err)
	}
}
