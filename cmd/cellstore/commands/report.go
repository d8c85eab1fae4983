package commands

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

// newReport returns a borderless table for command output
func newReport() table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateHeader = false
	return tbl
}

func printReport(out io.Writer, tbl table.Writer) {
	fmt.Fprintln(out, tbl.Render())
}
