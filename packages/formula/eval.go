package formula

import (
	"iter"

	"github.com/vogtb/go-spreadsheet/packages/cells"
	"github.com/vogtb/go-spreadsheet/packages/grid"
)

// Source gives the engine read access to the workbook without depending
// on it.
type Source interface {
	// Value returns the value at at, evaluating a stale formula there.
	Value(at grid.BookPoint) (cells.Value, error)
	// Values yields the values of the used cells of rect in row-major
	// order. a yielded error ends the sequence.
	Values(sheet uint32, rect grid.Rect) iter.Seq2[cells.Value, error]
	SheetID(name string) (uint32, bool)
	SheetName(id uint32) (string, bool)
	// Name resolves a defined name to the area it covers.
	Name(name string) (sheet uint32, rect grid.Rect, ok bool)
}

// evalContext carries the cell being evaluated. for array formulas elem is
// the offset of the element being computed inside array.
type evalContext struct {
	src       Source
	functions *Functions
	sheet     uint32
	at        grid.Point
	array     bool
	elem      grid.Point
}

func (ctx *evalContext) sheetID(name string) (uint32, error) {
	if name == "" {
		return ctx.sheet, nil
	}
	id, ok := ctx.src.SheetID(name)
	if !ok {
		return 0, newError(cells.ErrorCodeRef, "worksheet %q not found", name)
	}
	return id, nil
}

// evalScalar evaluates n down to a single value. spreadsheet errors become
// error values; any other error is returned.
func (ctx *evalContext) evalScalar(n Node) (cells.Value, error) {
	op, err := n.Eval(ctx)
	if err != nil {
		return asValue(err)
	}
	return ctx.scalarOf(op)
}

// scalarOf reduces an operand to one value. an area is reduced to the
// element matching the array position, or by implicit intersection with the
// formula's row or column.
func (ctx *evalContext) scalarOf(op operand) (cells.Value, error) {
	if op.area == nil {
		return op.value, nil
	}
	r := op.area.rect
	p, ok := grid.Point{}, false
	switch {
	case r.Width() == 1 && r.Height() == 1:
		p, ok = r.TopLeft(), true
	case ctx.array:
		p = grid.Point{Row: r.Top + ctx.elem.Row, Column: r.Left + ctx.elem.Column}
		if r.Height() == 1 {
			p.Row = r.Top
		}
		if r.Width() == 1 {
			p.Column = r.Left
		}
		ok = r.Contains(p)
		if !ok {
			return cells.ErrorValue(cells.ErrorCodeNA), nil
		}
	case r.Width() == 1 && ctx.at.Row >= r.Top && ctx.at.Row <= r.Bottom:
		p, ok = grid.Point{Row: ctx.at.Row, Column: r.Left}, true
	case r.Height() == 1 && ctx.at.Column >= r.Left && ctx.at.Column <= r.Right:
		p, ok = grid.Point{Row: r.Top, Column: ctx.at.Column}, true
	}
	if !ok {
		return cells.ErrorValue(cells.ErrorCodeValue), nil
	}
	return ctx.src.Value(grid.BookPoint{Sheet: op.area.sheet, Point: p})
}

// each calls fn for every value of args. area arguments contribute the
// values of their used cells with fromArea set.
func (ctx *evalContext) each(args []operand, fn func(v cells.Value, fromArea bool) error) error {
	for _, arg := range args {
		if arg.area == nil {
			if err := fn(arg.value, false); err != nil {
				return err
			}
			continue
		}
		for v, err := range ctx.src.Values(arg.area.sheet, arg.area.rect) {
			if err != nil {
				return err
			}
			if err := fn(v, true); err != nil {
				return err
			}
		}
	}
	return nil
}

// scalars reduces every argument to a single value
func (ctx *evalContext) scalars(args []operand) ([]cells.Value, error) {
	out := make([]cells.Value, len(args))
	for i, arg := range args {
		v, err := ctx.scalarOf(arg)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
