package spreadsheet

import (
	"cmp"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/vogtb/go-spreadsheet/packages/cells"
	"github.com/vogtb/go-spreadsheet/packages/grid"
)

// Worksheet is one named grid of a workbook
type Worksheet struct {
	wb    *Workbook
	id    uint32
	cells *cells.Collection
}

// ID returns the worksheet's ID. IDs are never reused within a workbook.
func (ws *Worksheet) ID() uint32 { return ws.id }

// Name returns the worksheet's current name
func (ws *Worksheet) Name() string {
	name, _ := ws.wb.worksheets.Name(ws.id)
	return name
}

// Workbook returns the workbook the worksheet belongs to
func (ws *Worksheet) Workbook() *Workbook { return ws.wb }

// Cells returns the worksheet's cell storage
func (ws *Worksheet) Cells() *cells.Collection { return ws.cells }

// Cell returns the cell at an A1 address such as B2
func (ws *Worksheet) Cell(a1 string) (*Cell, error) {
	p, err := grid.ParsePoint(a1)
	if err != nil {
		return nil, err
	}
	return ws.CellAt(p), nil
}

// CellAt returns the cell at p
func (ws *Worksheet) CellAt(p grid.Point) *Cell {
	return &Cell{ws: ws, at: p}
}

// Range returns the range at an A1 address such as A1:C4
func (ws *Worksheet) Range(a1 string) (*Range, error) {
	rect, err := grid.ParseRect(a1)
	if err != nil {
		return nil, err
	}
	return &Range{ws: ws, rect: rect}, nil
}

// UsedRange returns the smallest rectangle holding every used cell
func (ws *Worksheet) UsedRange() (grid.Rect, bool) {
	top, ok := ws.cells.FirstRowUsed(grid.Sheet())
	if !ok {
		return grid.Rect{}, false
	}
	bottom, _ := ws.cells.LastRowUsed(grid.Sheet())
	left, _ := ws.cells.FirstColumnUsed(grid.Sheet())
	right, _ := ws.cells.LastColumnUsed(grid.Sheet())
	return grid.Rect{Top: top, Left: left, Bottom: bottom, Right: right}, true
}

// structural runs edit and records that every cell of the worksheet may
// have moved.
func (ws *Worksheet) structural(op string, rect grid.Rect, edit func(grid.Rect) error) error {
	if !rect.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidAddress, rect)
	}
	if err := edit(rect); err != nil {
		return fmt.Errorf("%s %s: %w", op, rect, err)
	}
	ws.wb.engine.TouchSheet(ws.id)
	ws.wb.logger.Debug("structural edit", "worksheet", ws.Name(), "op", op, "rect", rect.String())
	return nil
}

func span(first, count, limit int) (int, int, error) {
	if first < 1 || first > limit || count < 1 {
		return 0, 0, fmt.Errorf("%w: %d rows or columns at %d", ErrInvalidAddress, count, first)
	}
	return first, min(first+count-1, limit), nil
}

// InsertRows inserts count empty rows before row. cells pushed past the
// last row are dropped.
func (ws *Worksheet) InsertRows(row, count int) error {
	top, bottom, err := span(row, count, grid.MaxRow)
	if err != nil {
		return err
	}
	return ws.structural("insert rows", grid.RowsRect(top, bottom), ws.cells.InsertAndShiftDown)
}

// DeleteRows deletes count rows starting at row
func (ws *Worksheet) DeleteRows(row, count int) error {
	top, bottom, err := span(row, count, grid.MaxRow)
	if err != nil {
		return err
	}
	return ws.structural("delete rows", grid.RowsRect(top, bottom), ws.cells.DeleteAndShiftUp)
}

// InsertColumns inserts count empty columns before column
func (ws *Worksheet) InsertColumns(column, count int) error {
	left, right, err := span(column, count, grid.MaxColumn)
	if err != nil {
		return err
	}
	return ws.structural("insert columns", grid.ColumnsRect(left, right), ws.cells.InsertAndShiftRight)
}

// DeleteColumns deletes count columns starting at column
func (ws *Worksheet) DeleteColumns(column, count int) error {
	left, right, err := span(column, count, grid.MaxColumn)
	if err != nil {
		return err
	}
	return ws.structural("delete columns", grid.ColumnsRect(left, right), ws.cells.DeleteAndShiftLeft)
}

// InsertCellsShiftDown inserts empty cells at rect, moving the cells below
// down by its height.
func (ws *Worksheet) InsertCellsShiftDown(rect grid.Rect) error {
	return ws.structural("insert cells down", rect, ws.cells.InsertAndShiftDown)
}

// InsertCellsShiftRight inserts empty cells at rect, moving the cells to
// its right by its width.
func (ws *Worksheet) InsertCellsShiftRight(rect grid.Rect) error {
	return ws.structural("insert cells right", rect, ws.cells.InsertAndShiftRight)
}

// DeleteCellsShiftUp deletes rect, moving the cells below up
func (ws *Worksheet) DeleteCellsShiftUp(rect grid.Rect) error {
	return ws.structural("delete cells up", rect, ws.cells.DeleteAndShiftUp)
}

// DeleteCellsShiftLeft deletes rect, moving the cells to its right left
func (ws *Worksheet) DeleteCellsShiftLeft(rect grid.Rect) error {
	return ws.structural("delete cells left", rect, ws.cells.DeleteAndShiftLeft)
}

// ClearRange empties every cell of rect. range formulas touching rect are
// removed as a whole.
func (ws *Worksheet) ClearRange(rect grid.Rect) {
	used := slices.Collect(ws.cells.UsedPoints(rect))
	ws.cells.Clear(rect)
	for _, p := range used {
		ws.wb.engine.Touch(grid.BookPoint{Sheet: ws.id, Point: p})
	}
}

// checkNoRanges fails when a range formula has a cell inside rect
func (ws *Worksheet) checkNoRanges(rect grid.Rect) error {
	for p, f := range ws.cells.Formulas.Ascend(rect) {
		if f.IsRange() {
			return fmt.Errorf("%w: %s belongs to %s", ErrArrayFragment, p, f.Range)
		}
	}
	return nil
}

// swapRows exchanges the cells of rows r1 and r2 between left and right
func (ws *Worksheet) swapRows(r1, r2, left, right int) error {
	var cols []int
	for _, r := range []int{r1, r2} {
		for p := range ws.cells.UsedPoints(grid.Rect{Top: r, Left: left, Bottom: r, Right: right}) {
			cols = append(cols, p.Column)
		}
	}
	slices.Sort(cols)
	for _, c := range slices.Compact(cols) {
		err := ws.cells.SwapCellContent(grid.Point{Row: r1, Column: c}, grid.Point{Row: r2, Column: c})
		if err != nil {
			return err
		}
	}
	return nil
}

// SwapRows exchanges two whole rows. rows holding part of a range formula
// can not be swapped.
func (ws *Worksheet) SwapRows(r1, r2 int) error {
	if r1 < 1 || r1 > grid.MaxRow || r2 < 1 || r2 > grid.MaxRow {
		return fmt.Errorf("%w: rows %d and %d", ErrInvalidAddress, r1, r2)
	}
	if r1 == r2 {
		return nil
	}
	for _, r := range []int{r1, r2} {
		if err := ws.checkNoRanges(grid.RowsRect(r, r)); err != nil {
			return err
		}
	}
	if err := ws.swapRows(r1, r2, 1, grid.MaxColumn); err != nil {
		return err
	}
	ws.wb.engine.TouchSheet(ws.id)
	return nil
}

// sortRank orders the kinds of sort keys: numbers, text, booleans, errors.
// blanks are handled separately since they sort last either way.
func sortRank(v cells.Value) int {
	switch v.Kind() {
	case cells.KindNumber, cells.KindDateTime, cells.KindTimeSpan:
		return 0
	case cells.KindText:
		return 1
	case cells.KindBoolean:
		return 2
	}
	return 3
}

func compareSortKeys(a, b cells.Value) int {
	if c := cmp.Compare(sortRank(a), sortRank(b)); c != 0 {
		return c
	}
	switch sortRank(a) {
	case 0:
		x, _ := a.AsNumber()
		y, _ := b.AsNumber()
		return cmp.Compare(x, y)
	case 1:
		x, _ := a.AsText()
		y, _ := b.AsText()
		return strings.Compare(strings.ToLower(x), strings.ToLower(y))
	case 2:
		x, _ := a.AsBool()
		y, _ := b.AsBool()
		return cmp.Compare(boolRank(x), boolRank(y))
	}
	x, _ := a.AsError()
	y, _ := b.AsError()
	return cmp.Compare(x, y)
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

// SortRows reorders the rows of rect by the values in column. the sort is
// stable and blanks go last in both directions. only the cells inside rect
// move.
func (ws *Worksheet) SortRows(rect grid.Rect, column int, ascending bool) error {
	if !rect.IsValid() || column < rect.Left || column > rect.Right {
		return fmt.Errorf("%w: sort %s by column %d", ErrInvalidAddress, rect, column)
	}
	if err := ws.checkNoRanges(rect); err != nil {
		return err
	}
	last, ok := ws.cells.LastRowUsed(rect)
	if !ok {
		return nil
	}
	rect.Bottom = last

	n := rect.Height()
	keys := make([]cells.Value, n)
	for i := range n {
		v, err := ws.valueAt(grid.Point{Row: rect.Top + i, Column: column})
		if err != nil {
			return fmt.Errorf("sort %s: %w", rect, err)
		}
		keys[i] = v
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		ka, kb := keys[a], keys[b]
		if ka.IsBlank() || kb.IsBlank() {
			return cmp.Compare(boolRank(ka.IsBlank()), boolRank(kb.IsBlank()))
		}
		if ascending {
			return compareSortKeys(ka, kb)
		}
		return compareSortKeys(kb, ka)
	})

	// at[i] is the original row now at position i, where is its inverse
	at := make([]int, n)
	where := make([]int, n)
	for i := range n {
		at[i], where[i] = i, i
	}
	for i, want := range order {
		j := where[want]
		if j == i {
			continue
		}
		if err := ws.swapRows(rect.Top+i, rect.Top+j, rect.Left, rect.Right); err != nil {
			return fmt.Errorf("sort %s: %w", rect, err)
		}
		at[i], at[j] = at[j], at[i]
		where[at[i]], where[at[j]] = i, j
	}
	ws.wb.engine.TouchSheet(ws.id)
	ws.wb.logger.Debug("sorted rows", "worksheet", ws.Name(), "rect", rect.String(), "column", column)
	return nil
}

// SetArrayFormula installs an array formula over rect. each cell shows the
// matching element of the result.
func (ws *Worksheet) SetArrayFormula(rect grid.Rect, text string) error {
	if !rect.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidAddress, rect)
	}
	f := cells.NewArrayFormula(strings.TrimPrefix(text, "="), rect)
	if err := ws.cells.Formulas.SetArray(rect, f); err != nil {
		return err
	}
	ws.cells.Values.Clear(rect)
	return nil
}

// SetDataTable installs a data table over rect with precomputed results in
// row-major order. data tables are never recomputed; their results are
// served as given.
func (ws *Worksheet) SetDataTable(rect grid.Rect, input1, input2 grid.Point, is2D, rowInput bool, results []cells.Value) error {
	if !rect.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidAddress, rect)
	}
	f := cells.NewDataTable(rect, input1, input2, is2D, rowInput)
	f.Recalc.Results = slices.Clone(results)
	if err := ws.cells.Formulas.SetArray(rect, f); err != nil {
		return err
	}
	ws.cells.Values.Clear(rect)
	return nil
}

// Stats counts what the worksheet stores
func (ws *Worksheet) Stats() cells.Stats { return ws.cells.Stats() }

// Range is a rectangle of cells on one worksheet
type Range struct {
	ws   *Worksheet
	rect grid.Rect
}

// Rect returns the range's rectangle
func (r *Range) Rect() grid.Rect { return r.rect }

// Cells yields the used cells of the range in row-major order
func (r *Range) Cells() iter.Seq[*Cell] {
	return func(yield func(*Cell) bool) {
		for p := range r.ws.cells.UsedPoints(r.rect) {
			if !yield(r.ws.CellAt(p)) {
				return
			}
		}
	}
}

// Values yields the values of the used cells, evaluating stale formulas.
// cells that are only formatted are skipped.
func (r *Range) Values() iter.Seq2[grid.Point, cells.Value] {
	return func(yield func(grid.Point, cells.Value) bool) {
		for p := range r.ws.cells.UsedPoints(r.rect) {
			if !r.ws.cells.Values.IsUsed(p) && !r.ws.cells.Formulas.IsUsed(p) {
				continue
			}
			// a circular reference leaves #REF! behind, which is the value
			v, _ := r.ws.valueAt(p)
			if !yield(p, v) {
				return
			}
		}
	}
}

// Clear empties the range
func (r *Range) Clear() { r.ws.ClearRange(r.rect) }
