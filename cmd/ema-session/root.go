package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/koscakluka/ema-playback/internal/config"
	"github.com/koscakluka/ema-playback/internal/telemetry"
)

type app struct {
	configPath string
	logFile    string

	cfg     config.Config
	logger  *slog.Logger
	logSink io.Closer
}

func rootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "ema-session",
		Short:         "Generate and play narrated sessions",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logSink != nil {
				a.logSink.Close()
			}
		},
	}
	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", os.Getenv("EMA_CONFIG"), "path to a YAML configuration file")
	cmd.PersistentFlags().StringVar(&a.logFile, "log-file", "", "write logs to this file instead of stderr")

	cmd.AddCommand(playCmd(a))
	cmd.AddCommand(scriptCmd(a))
	cmd.AddCommand(voicesCmd(a))
	return cmd
}

func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	var out io.Writer = os.Stderr
	if a.logFile != "" {
		f, err := os.OpenFile(a.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		out = f
		a.logSink = f
	}
	a.logger = telemetry.NewLogger(cfg.Telemetry, out)
	slog.SetDefault(a.logger)
	return nil
}
