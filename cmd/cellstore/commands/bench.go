package commands

import (
	"fmt"
	"io"
	"math/rand/v2"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/vogtb/go-spreadsheet/packages/cells"
	"github.com/vogtb/go-spreadsheet/packages/grid"
	"github.com/vogtb/go-spreadsheet/packages/snapshot"
	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
)

const (
	benchCmdUse   = "bench"
	benchCmdShort = "Time cell storage operations on a generated workbook"

	benchRowsFlag    = "rows"
	benchColumnsFlag = "columns"
	benchSeedFlag    = "seed"
)

// NewBenchCommand creates the bench subcommand.
func NewBenchCommand(state *State) *cobra.Command {
	var (
		rows, columns int
		seed          uint64
	)

	cmd := &cobra.Command{
		Use:   benchCmdUse,
		Short: benchCmdShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := state.Config.Bench
			if cmd.Flags().Changed(benchRowsFlag) {
				cfg.Rows = rows
			}
			if cmd.Flags().Changed(benchColumnsFlag) {
				cfg.Columns = columns
			}
			if cmd.Flags().Changed(benchSeedFlag) {
				cfg.Seed = seed
			}
			if cfg.Rows < 1 || cfg.Columns < 2 || cfg.Columns > grid.MaxColumn {
				return fmt.Errorf("bench needs at least 1 row and 2 columns, got %dx%d", cfg.Rows, cfg.Columns)
			}

			return runBench(state, cfg.Rows, cfg.Columns, cfg.Seed, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&rows, benchRowsFlag, 0, "rows to generate (default from config)")
	cmd.Flags().IntVar(&columns, benchColumnsFlag, 0, "columns to generate, the last one holds formulas")
	cmd.Flags().Uint64Var(&seed, benchSeedFlag, 0, "random seed")

	return cmd
}

type countingWriter struct{ n int64 }

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}

type benchReport struct {
	timings table.Writer
	err     error
}

// step times fn and adds one row. after the first failure the remaining
// steps are skipped.
func (r *benchReport) step(name string, fn func() error) {
	if r.err != nil {
		return
	}
	start := time.Now()
	if err := fn(); err != nil {
		r.err = fmt.Errorf("%s: %w", name, err)
		return
	}
	r.timings.AppendRow(table.Row{name, time.Since(start).Round(time.Microsecond)})
}

func runBench(state *State, rows, columns int, seed uint64, out io.Writer) error {
	rng := rand.New(rand.NewPCG(seed, seed))
	wb := spreadsheet.New(spreadsheet.WithLogger(state.Logger))
	ws, err := wb.AddWorksheet("Bench")
	if err != nil {
		return err
	}

	total := int64(rows) * int64(columns)
	fmt.Fprintf(out, "bench %s rows x %d columns (%s cells)\n",
		humanize.Comma(int64(rows)), columns, humanize.Comma(total))

	last := grid.ColumnName(columns - 1)
	report := &benchReport{timings: newReport()}
	report.timings.AppendHeader(table.Row{"Step", "Time"})

	report.step("fill", func() error {
		for row := 1; row <= rows; row++ {
			for col := 1; col < columns; col++ {
				if err := ws.CellAt(grid.Point{Row: row, Column: col}).SetValue(numberOrText(rng)); err != nil {
					return err
				}
			}
			formula := fmt.Sprintf("=SUM(A%d:%s%d)", row, last, row)
			if err := ws.CellAt(grid.Point{Row: row, Column: columns}).SetFormula(formula); err != nil {
				return err
			}
		}
		return nil
	})
	report.step("calculate", wb.Calculate)
	report.step("insert rows", func() error { return ws.InsertRows(rows/2+1, 10) })
	report.step("delete rows", func() error { return ws.DeleteRows(rows/2+1, 10) })
	report.step("sort", func() error {
		rect := grid.Rect{Top: 1, Left: 1, Bottom: rows, Right: columns}
		return ws.SortRows(rect, 1, true)
	})
	report.step("recalculate", wb.Calculate)

	var snap countingWriter
	report.step("snapshot", func() error { return snapshot.Encode(wb, &snap) })
	if report.err != nil {
		return report.err
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	report.timings.AppendSeparator()
	report.timings.AppendRow(table.Row{"snapshot size", humanize.Bytes(uint64(snap.n))})
	report.timings.AppendRow(table.Row{"heap in use", humanize.Bytes(mem.HeapInuse)})
	report.timings.AppendRow(table.Row{"shared texts", humanize.Comma(int64(wb.Text().Len()))})
	printReport(out, report.timings)

	return nil
}

// numberOrText yields mostly numbers with some repeated text, so the shared
// text table sees reuse.
func numberOrText(rng *rand.Rand) cells.Value {
	if rng.IntN(8) == 0 {
		return cells.Text(fmt.Sprintf("label %d", rng.IntN(64)))
	}
	return cells.Number(float64(rng.IntN(1_000_000)) / 100)
}
