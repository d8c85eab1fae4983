package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

const (
	convertCmdUse   = "convert <input> <output>"
	convertCmdShort = "Convert between xlsx and snapshot files"
	convertArgCount = 2

	snapshotCmdUse   = "snapshot <input> <output.snap>"
	snapshotCmdShort = "Write a verified snapshot of a workbook"
	snapshotArgCount = 2
)

// NewConvertCommand creates the convert subcommand. formats follow the
// file extensions.
func NewConvertCommand(state *State) *cobra.Command {
	return &cobra.Command{
		Use:   convertCmdUse,
		Short: convertCmdShort,
		Args:  cobra.ExactArgs(convertArgCount),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(state, args[0], args[1], cmd.OutOrStdout())
		},
	}
}

// NewSnapshotCommand creates the snapshot subcommand. the snapshot is
// always read back after writing.
func NewSnapshotCommand(state *State) *cobra.Command {
	return &cobra.Command{
		Use:   snapshotCmdUse,
		Short: snapshotCmdShort,
		Args:  cobra.ExactArgs(snapshotArgCount),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := args[1]
			format, err := formatOf(output)
			if err != nil {
				return err
			}
			if format != formatSnapshot {
				return fmt.Errorf("%w: %s is not a snapshot", ErrUnknownFormat, output)
			}
			state.Config.Snapshot.Verify = true

			return runConvert(state, args[0], output, cmd.OutOrStdout())
		},
	}
}

func runConvert(state *State, input, output string, out io.Writer) error {
	wb, err := state.openWorkbook(input)
	if err != nil {
		return fmt.Errorf("open %s: %w", input, err)
	}

	if err := state.saveWorkbook(wb, output); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}

	info, err := os.Stat(output)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s (%s)\n", output, humanize.Bytes(uint64(info.Size())))

	return nil
}
