package cells

import (
	"errors"
	"fmt"
	"iter"

	"github.com/vogtb/go-spreadsheet/packages/grid"
	"github.com/vogtb/go-spreadsheet/packages/sparse"
)

// ErrArrayFragment is returned by edits that would split an array or data
// table formula.
var ErrArrayFragment = errors.New("cannot change part of an array")

// Engine is the calculation engine as seen by the formula slice.
type Engine interface {
	AddFormula(at grid.BookPoint, f *Formula) error
	RemoveFormula(at grid.BookPoint, f *Formula)
	AddArrayFormula(sheet uint32, rect grid.Rect, f *Formula) error
	TranslateFormula(text string, from, to grid.Point) (string, error)
}

type nopEngine struct{}

func (nopEngine) AddFormula(grid.BookPoint, *Formula) error { return nil }

func (nopEngine) RemoveFormula(grid.BookPoint, *Formula) {}

func (nopEngine) AddArrayFormula(uint32, grid.Rect, *Formula) error { return nil }

func (nopEngine) TranslateFormula(text string, _, _ grid.Point) (string, error) { return text, nil }

// FormulaSlice is a content slice of formula records kept registered with a
// calculation engine. a range formula is stored in every cell it covers and
// registered once, at its master.
type FormulaSlice struct {
	records *sparse.Slice[*Formula]
	engine  Engine
	sheet   uint32
	arrays  map[*Formula]struct{}
}

// NewFormulaSlice creates an empty slice for worksheet sheet. a nil engine
// stores formulas without registering them.
func NewFormulaSlice(sheet uint32, engine Engine) *FormulaSlice {
	if engine == nil {
		engine = nopEngine{}
	}
	return &FormulaSlice{
		records: sparse.New[*Formula](),
		engine:  engine,
		sheet:   sheet,
		arrays:  make(map[*Formula]struct{}),
	}
}

func (fs *FormulaSlice) at(p grid.Point) grid.BookPoint {
	return grid.BookPoint{Sheet: fs.sheet, Point: p}
}

// Get returns the formula at p, or nil.
func (fs *FormulaSlice) Get(p grid.Point) *Formula { return fs.records.Get(p) }

func (fs *FormulaSlice) IsUsed(p grid.Point) bool { return fs.records.IsUsed(p) }

func (fs *FormulaSlice) IsEmpty() bool { return fs.records.IsEmpty() }

func (fs *FormulaSlice) Len() int { return fs.records.Len() }

func (fs *FormulaSlice) MaxRow() int { return fs.records.MaxRow() }

func (fs *FormulaSlice) MaxColumn() int { return fs.records.MaxColumn() }

func (fs *FormulaSlice) UsedRows() iter.Seq[int] { return fs.records.UsedRows() }

func (fs *FormulaSlice) UsedColumns() []int { return fs.records.UsedColumns() }

// Ascend yields the formula cells of rect in row-major order. every cell of
// a range formula is yielded with the shared record.
func (fs *FormulaSlice) Ascend(rect grid.Rect) iter.Seq2[grid.Point, *Formula] {
	return fs.records.Ascend(rect)
}

// Descend is the reverse of Ascend.
func (fs *FormulaSlice) Descend(rect grid.Rect) iter.Seq2[grid.Point, *Formula] {
	return fs.records.Descend(rect)
}

// Arrays yields the range formulas of the slice.
func (fs *FormulaSlice) Arrays() iter.Seq[*Formula] {
	return func(yield func(*Formula) bool) {
		for f := range fs.arrays {
			if !yield(f) {
				return
			}
		}
	}
}

// Set replaces the formula at p with f, or clears it when f is nil. the old
// formula leaves the engine before the new one is added. a cell of a multi
// cell range formula cannot be overwritten on its own.
func (fs *FormulaSlice) Set(p grid.Point, f *Formula) error {
	if f != nil && f.IsRange() {
		return fmt.Errorf("%w: use SetArray for %s formulas", ErrArrayFragment, f.Kind)
	}
	if old := fs.records.Get(p); old != nil {
		if old.IsRange() {
			if old.Range != grid.CellRect(p) {
				return fmt.Errorf("%w: %s is inside %s", ErrArrayFragment, p, old.Range)
			}
			fs.removeArray(old)
		} else {
			fs.engine.RemoveFormula(fs.at(p), old)
			fs.records.Set(p, nil)
		}
	}
	if f == nil {
		return nil
	}
	if err := fs.engine.AddFormula(fs.at(p), f); err != nil {
		return fmt.Errorf("add formula at %s: %w", p, err)
	}
	fs.records.Set(p, f)
	return nil
}

// SetArray installs a range formula over rect. per-cell formulas inside rect
// are removed first; a range formula that only partly overlaps rect is an
// error and leaves the slice untouched.
func (fs *FormulaSlice) SetArray(rect grid.Rect, f *Formula) error {
	if !f.IsRange() {
		return fmt.Errorf("SetArray requires a range formula, have %s", f.Kind)
	}
	for a := range fs.arrays {
		if a.Range.Intersects(rect) && !rect.ContainsRect(a.Range) {
			return fmt.Errorf("%w: %s overlaps %s", ErrArrayFragment, rect, a.Range)
		}
	}
	fs.Clear(rect)

	f.Range = rect
	if err := fs.engine.AddArrayFormula(fs.sheet, rect, f); err != nil {
		return fmt.Errorf("add array formula at %s: %w", rect, err)
	}
	for r := rect.Top; r <= rect.Bottom; r++ {
		for c := rect.Left; c <= rect.Right; c++ {
			fs.records.Set(grid.Point{Row: r, Column: c}, f)
		}
	}
	fs.arrays[f] = struct{}{}
	return nil
}

func (fs *FormulaSlice) removeArray(f *Formula) {
	fs.engine.RemoveFormula(fs.at(f.Master()), f)
	for p, g := range fs.records.Ascend(f.Range) {
		if g == f {
			fs.records.Set(p, nil)
		}
	}
	delete(fs.arrays, f)
}

// Clear removes every formula in rect. a range formula touched anywhere is
// removed as a whole.
func (fs *FormulaSlice) Clear(rect grid.Rect) {
	type cell struct {
		p grid.Point
		f *Formula
	}
	var found []cell
	for p, f := range fs.records.Ascend(rect) {
		found = append(found, cell{p, f})
	}
	for _, c := range found {
		switch {
		case c.f.IsRange():
			if _, live := fs.arrays[c.f]; live {
				fs.removeArray(c.f)
			}
		default:
			fs.engine.RemoveFormula(fs.at(c.p), c.f)
			fs.records.Set(c.p, nil)
		}
	}
}

// checkShift verifies that every range formula reached by a shift of rect
// either moves whole or is deleted whole.
func (fs *FormulaSlice) checkShift(rect grid.Rect, vertical, insert bool) error {
	region := grid.Rect{Top: rect.Top, Left: rect.Left, Bottom: rect.Bottom, Right: grid.MaxColumn}
	if vertical {
		region = grid.Rect{Top: rect.Top, Left: rect.Left, Bottom: grid.MaxRow, Right: rect.Right}
	}
	for f := range fs.arrays {
		a := f.Range
		if !a.Intersects(region) {
			continue
		}
		straddles := a.Top < rect.Top || a.Bottom > rect.Bottom
		if vertical {
			straddles = a.Left < rect.Left || a.Right > rect.Right
		}
		if insert {
			// the insertion edge may not cut through the array
			if vertical && a.Top < rect.Top || !vertical && a.Left < rect.Left {
				straddles = true
			}
		} else if a.Intersects(rect) && !rect.ContainsRect(a) {
			straddles = true
		}
		if straddles {
			return fmt.Errorf("%w: shifting %s would split %s", ErrArrayFragment, rect, a)
		}
	}
	return nil
}

// shift unregisters everything in moving, runs the underlying shift and
// registers the moved formulas at their new points.
func (fs *FormulaSlice) shift(moving grid.Rect, rows, cols int, run func()) error {
	type cell struct {
		p grid.Point
		f *Formula
	}
	var normal []cell
	var arrays []*Formula
	seen := map[*Formula]bool{}
	for p, f := range fs.records.Ascend(moving) {
		if !f.IsRange() {
			normal = append(normal, cell{p, f})
			fs.engine.RemoveFormula(fs.at(p), f)
			continue
		}
		if !seen[f] {
			seen[f] = true
			arrays = append(arrays, f)
			fs.engine.RemoveFormula(fs.at(f.Master()), f)
		}
	}

	run()

	var errs []error
	for _, c := range normal {
		if err := fs.engine.AddFormula(fs.at(c.p.Offset(rows, cols)), c.f); err != nil {
			errs = append(errs, err)
		}
	}
	for _, f := range arrays {
		f.Range = f.Range.Offset(rows, cols)
		if err := fs.engine.AddArrayFormula(fs.sheet, f.Range, f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DeleteAndShiftLeft removes the formulas of rect and moves the ones to its
// right left by rect's width.
func (fs *FormulaSlice) DeleteAndShiftLeft(rect grid.Rect) error {
	if err := fs.checkShift(rect, false, false); err != nil {
		return err
	}
	fs.Clear(rect)
	if rect.Right == grid.MaxColumn {
		return nil
	}
	moving := grid.Rect{Top: rect.Top, Left: rect.Right + 1, Bottom: rect.Bottom, Right: grid.MaxColumn}
	return fs.shift(moving, 0, -rect.Width(), func() { fs.records.DeleteAndShiftLeft(rect) })
}

// DeleteAndShiftUp removes the formulas of rect and moves the ones below it
// up by rect's height.
func (fs *FormulaSlice) DeleteAndShiftUp(rect grid.Rect) error {
	if err := fs.checkShift(rect, true, false); err != nil {
		return err
	}
	fs.Clear(rect)
	if rect.Bottom == grid.MaxRow {
		return nil
	}
	moving := grid.Rect{Top: rect.Bottom + 1, Left: rect.Left, Bottom: grid.MaxRow, Right: rect.Right}
	return fs.shift(moving, -rect.Height(), 0, func() { fs.records.DeleteAndShiftUp(rect) })
}

// InsertAndShiftRight moves the formulas at and right of rect right by its
// width. formulas pushed past the last column are removed.
func (fs *FormulaSlice) InsertAndShiftRight(rect grid.Rect) error {
	if err := fs.checkShift(rect, false, true); err != nil {
		return err
	}
	fs.Clear(sparse.PushedOutRight(rect))
	moving := grid.Rect{Top: rect.Top, Left: rect.Left, Bottom: rect.Bottom, Right: grid.MaxColumn}
	return fs.shift(moving, 0, rect.Width(), func() { fs.records.InsertAndShiftRight(rect) })
}

// InsertAndShiftDown moves the formulas at and below rect down by its
// height. formulas pushed past the last row are removed.
func (fs *FormulaSlice) InsertAndShiftDown(rect grid.Rect) error {
	if err := fs.checkShift(rect, true, true); err != nil {
		return err
	}
	fs.Clear(sparse.PushedOutDown(rect))
	moving := grid.Rect{Top: rect.Top, Left: rect.Left, Bottom: grid.MaxRow, Right: rect.Right}
	return fs.shift(moving, rect.Height(), 0, func() { fs.records.InsertAndShiftDown(rect) })
}

// Swap exchanges the formulas of two cells, translating their relative
// references to the new positions. range formulas cannot be swapped.
func (fs *FormulaSlice) Swap(p1, p2 grid.Point) error {
	if p1 == p2 {
		return nil
	}
	f1, f2 := fs.records.Get(p1), fs.records.Get(p2)
	if f1 == nil && f2 == nil {
		return nil
	}
	if f1 != nil && f1.IsRange() || f2 != nil && f2.IsRange() {
		return fmt.Errorf("%w: cannot swap %s and %s", ErrArrayFragment, p1, p2)
	}

	var moved1, moved2 *Formula
	if f1 != nil {
		text, err := fs.engine.TranslateFormula(f1.Text, p1, p2)
		if err != nil {
			return fmt.Errorf("translate %s: %w", p1, err)
		}
		moved1 = NewFormula(text)
	}
	if f2 != nil {
		text, err := fs.engine.TranslateFormula(f2.Text, p2, p1)
		if err != nil {
			return fmt.Errorf("translate %s: %w", p2, err)
		}
		moved2 = NewFormula(text)
	}

	if f1 != nil {
		fs.engine.RemoveFormula(fs.at(p1), f1)
	}
	if f2 != nil {
		fs.engine.RemoveFormula(fs.at(p2), f2)
	}
	fs.records.Set(p1, moved2)
	fs.records.Set(p2, moved1)

	var errs []error
	if moved1 != nil {
		errs = append(errs, fs.engine.AddFormula(fs.at(p2), moved1))
	}
	if moved2 != nil {
		errs = append(errs, fs.engine.AddFormula(fs.at(p1), moved2))
	}
	return errors.Join(errs...)
}
