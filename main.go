package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"tosgamelogs/internal/config"
	"tosgamelogs/internal/log"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	flagConfig   string
	flagDotenv   string
	flagDatabase string
	flagLogLevel string

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:           "gamelogs",
	Short:         "Analyse Town of Salem 2 gamelogs",
	Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(flagConfig, flagDotenv)
		if err != nil {
			return err
		}
		if flagDatabase != "" {
			cfg.Database = flagDatabase
		}
		if flagLogLevel != "" {
			cfg.Log.Level = flagLogLevel
		}
		if err := log.SetLevel(cfg.Log.Level); err != nil {
			return err
		}
		if cfg.Log.File != "" {
			if err := log.SetFileOutput(cfg.Log.File); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: could not log to %s: %v\n", cfg.Log.File, err)
			}
		}
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagConfig, "config", "", "YAML config file")
	flags.StringVar(&flagDotenv, "env", ".env", "dotenv file (ignored when missing)")
	flags.StringVar(&flagDatabase, "db", "", "database path (overrides config)")
	flags.StringVar(&flagLogLevel, "log-level", "", "debug, info, warn or error (overrides config)")

	rootCmd.AddCommand(parseCmd(), transcriptCmd(), ingestCmd(), reanalyzeCmd(), gamesCmd(), serveCmd())
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			log.Error("GLOBAL PANIC recovered", "error", r, "stack", string(debug.Stack()))
			fmt.Fprintln(os.Stderr, "gamelogs crashed; see the log for details")
			os.Exit(2)
		}
	}()
	defer log.Close()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		log.Close()
		os.Exit(1)
	}
}
