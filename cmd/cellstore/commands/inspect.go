package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
)

const (
	inspectCmdUse   = "inspect <file>"
	inspectCmdShort = "Show what a workbook stores"
	inspectArgCount = 1
)

// NewInspectCommand creates the inspect subcommand.
func NewInspectCommand(state *State) *cobra.Command {
	return &cobra.Command{
		Use:   inspectCmdUse,
		Short: inspectCmdShort,
		Args:  cobra.ExactArgs(inspectArgCount),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(state, args[0], cmd.OutOrStdout())
		},
	}
}

func runInspect(state *State, path string, out io.Writer) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	wb, err := state.openWorkbook(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	formulas, trees := wb.Engine().FormulaCount()
	summary := newReport()
	summary.AppendRow(table.Row{"file", path})
	summary.AppendRow(table.Row{"size", humanize.Bytes(uint64(info.Size()))})
	summary.AppendRow(table.Row{"worksheets", len(wb.Worksheets())})
	summary.AppendRow(table.Row{"shared texts", fmt.Sprintf("%s (%s references)",
		humanize.Comma(int64(wb.Text().Len())), humanize.Comma(int64(wb.Text().TotalReferences())))})
	summary.AppendRow(table.Row{"styles", wb.Styles().Len()})
	summary.AppendRow(table.Row{"formulas", fmt.Sprintf("%s (%s distinct)",
		humanize.Comma(int64(formulas)), humanize.Comma(int64(trees)))})
	summary.AppendRow(table.Row{"defined names", len(wb.Names())})
	printReport(out, summary)

	sheets := newReport()
	sheets.AppendHeader(table.Row{"Worksheet", "Used range", "Values", "Formulas", "Arrays", "Styled", "Metadata"})
	for _, ws := range wb.Worksheets() {
		sheets.AppendRow(worksheetRow(ws))
	}
	fmt.Fprintln(out)
	printReport(out, sheets)

	return nil
}

func worksheetRow(ws *spreadsheet.Worksheet) table.Row {
	used := "empty"
	if rect, ok := ws.UsedRange(); ok {
		used = rect.String()
	}

	stats := ws.Stats()
	return table.Row{
		ws.Name(),
		used,
		humanize.Comma(int64(stats.Values)),
		humanize.Comma(int64(stats.Formulas)),
		stats.Arrays,
		humanize.Comma(int64(stats.Styles)),
		humanize.Comma(int64(stats.Misc)),
	}
}
