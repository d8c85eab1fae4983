// Package commands implements the cellstore subcommands.
package commands

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/vogtb/go-spreadsheet/packages/config"
)

const (
	configFlag   = "config"
	verboseFlag  = "verbose"
	verboseShort = "v"
)

// State is shared by every subcommand. it is filled in before a
// subcommand runs.
type State struct {
	ConfigPath string
	Verbose    bool

	Config *config.Config
	Logger *slog.Logger
}

// NewRootCommand creates the cellstore command with all subcommands.
func NewRootCommand() *cobra.Command {
	state := &State{}

	rootCmd := &cobra.Command{
		Use:   "cellstore",
		Short: "Inspect, convert and benchmark spreadsheet workbooks",
		Long: `cellstore loads xlsx workbooks and snapshots into the sparse cell store.

Commands:
  inspect   Show what a workbook stores
  convert   Convert between xlsx and snapshot files
  snapshot  Write a verified snapshot of a workbook
  bench     Time cell storage operations on a generated workbook`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return state.init(cmd.ErrOrStderr())
		},
	}

	rootCmd.PersistentFlags().StringVar(&state.ConfigPath, configFlag, "", "config file (default: ./cellstore.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&state.Verbose, verboseFlag, verboseShort, false, "debug logging")

	rootCmd.AddCommand(NewInspectCommand(state))
	rootCmd.AddCommand(NewConvertCommand(state))
	rootCmd.AddCommand(NewSnapshotCommand(state))
	rootCmd.AddCommand(NewBenchCommand(state))

	return rootCmd
}

func (s *State) init(logOut io.Writer) error {
	cfg, err := config.LoadConfig(s.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	s.Config = cfg
	s.Logger = buildLogger(cfg.Logging, s.Verbose, logOut)

	return nil
}

func buildLogger(cfg config.LoggingConfig, verbose bool, out io.Writer) *slog.Logger {
	level := cfg.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.JSON() {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}

	return slog.New(handler)
}
