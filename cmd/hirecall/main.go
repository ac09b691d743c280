// Command hirecall runs the hiring-inquiry call system: a webhook server
// that drives automated phone conversations, plus helper commands to place
// calls and discover businesses.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/outreachlabs/hirecall"
	"github.com/outreachlabs/hirecall/internal/config"
)

var (
	cfgPath string
	cfg     *config.Config
	logger  *slog.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hirecall",
		Short: "Automated hiring-inquiry phone calls",
		Long: `hirecall places automated phone calls to businesses, converses to find
out whether they are hiring, and reports a structured outcome.`,
		Version:       hirecall.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(cfgPath)
			if err != nil {
				return err
			}
			logger = newLogger(cfg.Logging)
			slog.SetDefault(logger)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newCallCmd())
	rootCmd.AddCommand(newPlacesCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newLogger builds the process logger from config.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
