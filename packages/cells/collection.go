package cells

import (
	"iter"
	"slices"

	"github.com/vogtb/go-spreadsheet/packages/grid"
	"github.com/vogtb/go-spreadsheet/packages/sparse"
	"github.com/vogtb/go-spreadsheet/packages/sst"
	"github.com/vogtb/go-spreadsheet/packages/styles"
)

// Misc carries per-cell metadata that is neither value, formula nor style.
type Misc struct {
	Comment        string
	Hyperlink      string
	DataValidation bool
	Phonetic       bool
}

// Collection owns the slices of one worksheet and keeps them in step: a
// structural edit either reaches every slice or none of them.
type Collection struct {
	Values   *ValueSlice
	Formulas *FormulaSlice
	Styles   *sparse.Slice[*styles.Style]
	Misc     *sparse.Slice[Misc]
}

// NewCollection creates the slices of worksheet sheet. text is the
// workbook's shared text table.
func NewCollection(sheet uint32, text *sst.Table, engine Engine) *Collection {
	return &Collection{
		Values:   NewValueSlice(text),
		Formulas: NewFormulaSlice(sheet, engine),
		Styles:   sparse.New[*styles.Style](),
		Misc:     sparse.New[Misc](),
	}
}

// MaxRow is the highest row used by any slice, 0 when empty.
func (c *Collection) MaxRow() int {
	return max(c.Values.MaxRow(), c.Formulas.MaxRow(), c.Styles.MaxRow(), c.Misc.MaxRow())
}

// MaxColumn is the highest column used by any slice, 0 when empty.
func (c *Collection) MaxColumn() int {
	return max(c.Values.MaxColumn(), c.Formulas.MaxColumn(), c.Styles.MaxColumn(), c.Misc.MaxColumn())
}

// IsUsed reports whether any slice uses p. a cell that is only formatted is
// used.
func (c *Collection) IsUsed(p grid.Point) bool {
	return c.Values.IsUsed(p) || c.Formulas.IsUsed(p) || c.Styles.IsUsed(p) || c.Misc.IsUsed(p)
}

// IsEmpty reports whether no slice uses any point.
func (c *Collection) IsEmpty() bool {
	return c.Values.IsEmpty() && c.Formulas.IsEmpty() && c.Styles.IsEmpty() && c.Misc.IsEmpty()
}

// UsedRows yields the union of used rows in increasing order.
func (c *Collection) UsedRows() iter.Seq[int] {
	return c.rowsIn(1, grid.MaxRow, false)
}

// rowsIn merges the used rows of every slice within [top, bottom]. each
// slice is walked over the requested rows only.
func (c *Collection) rowsIn(top, bottom int, reverse bool) iter.Seq[int] {
	if reverse {
		return mergeRows(true,
			c.Values.slots.RowsInReverse(top, bottom),
			c.Formulas.records.RowsInReverse(top, bottom),
			c.Styles.RowsInReverse(top, bottom),
			c.Misc.RowsInReverse(top, bottom))
	}
	return mergeRows(false,
		c.Values.slots.RowsIn(top, bottom),
		c.Formulas.records.RowsIn(top, bottom),
		c.Styles.RowsIn(top, bottom),
		c.Misc.RowsIn(top, bottom))
}

// mergeRows yields the distinct rows of sorted streams in the streams'
// order.
func mergeRows(reverse bool, seqs ...iter.Seq[int]) iter.Seq[int] {
	return func(yield func(int) bool) {
		type head struct {
			next func() (int, bool)
			row  int
			ok   bool
		}
		heads := make([]head, len(seqs))
		for i, seq := range seqs {
			next, stop := iter.Pull(seq)
			defer stop()
			row, ok := next()
			heads[i] = head{next: next, row: row, ok: ok}
		}
		for {
			best, found := 0, false
			for _, h := range heads {
				if h.ok && (!found || (reverse && h.row > best) || (!reverse && h.row < best)) {
					best, found = h.row, true
				}
			}
			if !found || !yield(best) {
				return
			}
			for i := range heads {
				if heads[i].ok && heads[i].row == best {
					heads[i].row, heads[i].ok = heads[i].next()
				}
			}
		}
	}
}

// UsedColumns returns the union of used columns in increasing order.
func (c *Collection) UsedColumns() []int {
	cols := slices.Concat(c.Values.UsedColumns(), c.Formulas.UsedColumns(), c.Styles.UsedColumns(), c.Misc.UsedColumns())
	slices.Sort(cols)
	return slices.Compact(cols)
}

// rowColumns returns the sorted union of used columns of row within
// [left, right].
func (c *Collection) rowColumns(row, left, right int) []int {
	var cols []int
	strip := grid.Rect{Top: row, Left: left, Bottom: row, Right: right}
	for p := range c.Values.slots.Ascend(strip) {
		cols = append(cols, p.Column)
	}
	for p := range c.Formulas.records.Ascend(strip) {
		cols = append(cols, p.Column)
	}
	for col := range c.Styles.RowColumns(row, left, right) {
		cols = append(cols, col)
	}
	for col := range c.Misc.RowColumns(row, left, right) {
		cols = append(cols, col)
	}
	slices.Sort(cols)
	return slices.Compact(cols)
}

// UsedPoints yields every point of rect used by any slice, in row-major
// order.
func (c *Collection) UsedPoints(rect grid.Rect) iter.Seq[grid.Point] {
	return func(yield func(grid.Point) bool) {
		for r := range c.rowsIn(rect.Top, rect.Bottom, false) {
			for _, col := range c.rowColumns(r, rect.Left, rect.Right) {
				if !yield(grid.Point{Row: r, Column: col}) {
					return
				}
			}
		}
	}
}

// UsedPointsReverse yields the points of UsedPoints in reverse order.
func (c *Collection) UsedPointsReverse(rect grid.Rect) iter.Seq[grid.Point] {
	return func(yield func(grid.Point) bool) {
		for r := range c.rowsIn(rect.Top, rect.Bottom, true) {
			cols := c.rowColumns(r, rect.Left, rect.Right)
			for j := len(cols) - 1; j >= 0; j-- {
				if !yield(grid.Point{Row: r, Column: cols[j]}) {
					return
				}
			}
		}
	}
}

// clamp limits rect to the used area. ok is false when nothing of rect can
// be used.
func (c *Collection) clamp(rect grid.Rect) (grid.Rect, bool) {
	maxRow, maxCol := c.MaxRow(), c.MaxColumn()
	if maxRow == 0 {
		return grid.Rect{}, false
	}
	return rect.Intersection(grid.Rect{Top: 1, Left: 1, Bottom: maxRow, Right: maxCol})
}

// FirstRowUsed returns the first row of rect holding a used point.
func (c *Collection) FirstRowUsed(rect grid.Rect) (int, bool) {
	rect, ok := c.clamp(rect)
	if !ok {
		return 0, false
	}
	for p := range c.UsedPoints(rect) {
		return p.Row, true
	}
	return 0, false
}

// LastRowUsed returns the last row of rect holding a used point.
func (c *Collection) LastRowUsed(rect grid.Rect) (int, bool) {
	rect, ok := c.clamp(rect)
	if !ok {
		return 0, false
	}
	for p := range c.UsedPointsReverse(rect) {
		return p.Row, true
	}
	return 0, false
}

// FirstColumnUsed returns the first column of rect holding a used point.
func (c *Collection) FirstColumnUsed(rect grid.Rect) (int, bool) {
	rect, ok := c.clamp(rect)
	if !ok {
		return 0, false
	}
	first, found := 0, false
	for p := range c.UsedPoints(rect) {
		if !found || p.Column < first {
			first, found = p.Column, true
		}
	}
	return first, found
}

// LastColumnUsed returns the last column of rect holding a used point.
func (c *Collection) LastColumnUsed(rect grid.Rect) (int, bool) {
	rect, ok := c.clamp(rect)
	if !ok {
		return 0, false
	}
	last, found := 0, false
	for p := range c.UsedPoints(rect) {
		if p.Column > last {
			last, found = p.Column, true
		}
	}
	return last, found
}

// Clear empties rect in every slice.
func (c *Collection) Clear(rect grid.Rect) {
	c.Formulas.Clear(rect)
	c.Values.Clear(rect)
	c.Styles.Clear(rect)
	c.Misc.Clear(rect)
}

// the formula slice validates before it mutates, so it goes first: when it
// refuses the edit no slice has changed.

func (c *Collection) DeleteAndShiftLeft(rect grid.Rect) error {
	if err := c.Formulas.DeleteAndShiftLeft(rect); err != nil {
		return err
	}
	c.Values.DeleteAndShiftLeft(rect)
	c.Styles.DeleteAndShiftLeft(rect)
	c.Misc.DeleteAndShiftLeft(rect)
	return nil
}

func (c *Collection) DeleteAndShiftUp(rect grid.Rect) error {
	if err := c.Formulas.DeleteAndShiftUp(rect); err != nil {
		return err
	}
	c.Values.DeleteAndShiftUp(rect)
	c.Styles.DeleteAndShiftUp(rect)
	c.Misc.DeleteAndShiftUp(rect)
	return nil
}

func (c *Collection) InsertAndShiftRight(rect grid.Rect) error {
	if err := c.Formulas.InsertAndShiftRight(rect); err != nil {
		return err
	}
	c.Values.InsertAndShiftRight(rect)
	c.Styles.InsertAndShiftRight(rect)
	c.Misc.InsertAndShiftRight(rect)
	return nil
}

func (c *Collection) InsertAndShiftDown(rect grid.Rect) error {
	if err := c.Formulas.InsertAndShiftDown(rect); err != nil {
		return err
	}
	c.Values.InsertAndShiftDown(rect)
	c.Styles.InsertAndShiftDown(rect)
	c.Misc.InsertAndShiftDown(rect)
	return nil
}

// SwapCellContent exchanges everything stored at p1 and p2. formulas have
// their relative references translated.
func (c *Collection) SwapCellContent(p1, p2 grid.Point) error {
	if p1 == p2 {
		return nil
	}
	if err := c.Formulas.Swap(p1, p2); err != nil {
		return err
	}
	c.Values.Swap(p1, p2)
	c.Styles.Swap(p1, p2)
	c.Misc.Swap(p1, p2)
	return nil
}

// Stats counts the used points of each slice.
type Stats struct {
	Values   int
	Formulas int
	Styles   int
	Misc     int
	Arrays   int
}

func (c *Collection) Stats() Stats {
	return Stats{
		Values:   c.Values.Len(),
		Formulas: c.Formulas.Len(),
		Styles:   c.Styles.Len(),
		Misc:     c.Misc.Len(),
		Arrays:   len(c.Formulas.arrays),
	}
}
