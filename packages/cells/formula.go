package cells

import (
	"github.com/vogtb/go-spreadsheet/packages/grid"
)

// FormulaKind discriminates formula records.
type FormulaKind uint8

const (
	NormalFormula FormulaKind = iota
	ArrayFormula
	DataTableFormula
)

func (k FormulaKind) String() string {
	switch k {
	case ArrayFormula:
		return "array"
	case DataTableFormula:
		return "datatable"
	}
	return "normal"
}

// Formula is the record stored for a formula cell. array and data table
// formulas cover Range and share one record across all of its cells; the
// top-left cell is the master.
type Formula struct {
	Text  string // without the leading '='
	Kind  FormulaKind
	Range grid.Rect

	// data table inputs
	Input1   grid.Point
	Input2   grid.Point
	Is2D     bool
	RowInput bool

	Recalc RecalcState
}

// NewFormula returns a normal formula record.
func NewFormula(text string) *Formula {
	return &Formula{Text: text}
}

// NewArrayFormula returns an array formula covering rect.
func NewArrayFormula(text string, rect grid.Rect) *Formula {
	return &Formula{Text: text, Kind: ArrayFormula, Range: rect}
}

// NewDataTable returns a one or two input data table covering rect.
func NewDataTable(rect grid.Rect, input1, input2 grid.Point, is2D, rowInput bool) *Formula {
	return &Formula{
		Kind:     DataTableFormula,
		Range:    rect,
		Input1:   input1,
		Input2:   input2,
		Is2D:     is2D,
		RowInput: rowInput,
	}
}

// IsRange reports whether f spans a range instead of a single cell.
func (f *Formula) IsRange() bool { return f.Kind != NormalFormula }

// Master returns the anchor cell of a range formula.
func (f *Formula) Master() grid.Point { return f.Range.TopLeft() }

// RecalcState carries the version stamps of a formula. stamps are values of
// the workbook recalculation counter, which starts at 1, so 0 means never.
type RecalcState struct {
	ModifiedAt  uint64
	EvaluatedAt uint64

	// Results holds the cached result, one per cell of Range in row-major
	// order for range formulas.
	Results []Value

	memoAt     uint64
	memo       bool
	evaluating bool
}

// Memo returns the needs-recalculation verdict remembered for counter.
func (r *RecalcState) Memo(counter uint64) (dirty, ok bool) {
	if r.memoAt == 0 || r.memoAt != counter {
		return false, false
	}
	return r.memo, true
}

// Remember stores a verdict valid until the counter moves.
func (r *RecalcState) Remember(counter uint64, dirty bool) {
	r.memoAt = counter
	r.memo = dirty
}

// Forget drops the remembered verdict.
func (r *RecalcState) Forget() { r.memoAt = 0 }

// Enter marks the formula as being evaluated. it returns false when an
// evaluation of it is already in progress.
func (r *RecalcState) Enter() bool {
	if r.evaluating {
		return false
	}
	r.evaluating = true
	return true
}

// Leave clears the mark set by Enter.
func (r *RecalcState) Leave() { r.evaluating = false }

// Evaluating reports whether an evaluation is in progress.
func (r *RecalcState) Evaluating() bool { return r.evaluating }

// Result returns the cached result for p. normal formulas have a single
// result; range formulas index Results by p's row-major offset in rng.
func (r *RecalcState) Result(p grid.Point, rng grid.Rect, kind FormulaKind) Value {
	i := 0
	if kind != NormalFormula {
		i = (p.Row-rng.Top)*rng.Width() + (p.Column - rng.Left)
	}
	if i < 0 || i >= len(r.Results) {
		return Blank()
	}
	return r.Results[i]
}
