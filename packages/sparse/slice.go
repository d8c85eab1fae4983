// Package sparse implements the content slice: a two-dimensional sparse grid
// over worksheet coordinates, built as a lookup table of rows whose entries
// are lookup tables of columns.
//
// One slice exists per kind of per-cell content. A slice supports point
// access, range clearing, the four insert/delete shifts and point swaps,
// and keeps its maximum used row and column exact across all of them.
package sparse

import (
	"iter"
	"maps"
	"slices"

	"github.com/vogtb/go-spreadsheet/packages/grid"
	"github.com/vogtb/go-spreadsheet/packages/lut"
)

// Slice is a sparse grid of T. a point is used iff a non-zero value is
// stored there.
type Slice[T comparable] struct {
	rows         lut.LUT[*lut.LUT[T]] // row-1 -> columns, column-1 -> value
	maxColumn    int                  // 0 when empty
	columnCounts map[int]int          // column -> used cells in that column
	count        int
}

// New returns an empty slice.
func New[T comparable]() *Slice[T] {
	return &Slice[T]{columnCounts: make(map[int]int)}
}

// Get returns the value at p, or the zero value when p is unused.
func (s *Slice[T]) Get(p grid.Point) T {
	row := s.rows.Get(p.Row - 1)
	if row == nil {
		var zero T
		return zero
	}
	return row.Get(p.Column - 1)
}

// IsUsed reports whether p holds a non-zero value.
func (s *Slice[T]) IsUsed(p grid.Point) bool {
	row := s.rows.Get(p.Row - 1)
	return row != nil && row.IsUsed(p.Column-1)
}

// Set stores v at p. storing the zero value clears the point.
func (s *Slice[T]) Set(p grid.Point, v T) {
	var zero T
	row := s.rows.Get(p.Row - 1)
	if v == zero {
		if row == nil || !row.IsUsed(p.Column-1) {
			return
		}
		row.Set(p.Column-1, zero)
		if row.IsEmpty() {
			s.rows.Set(p.Row-1, nil)
		}
		s.release(p.Column)
		return
	}
	if row == nil {
		row = lut.New[T]()
		s.rows.Set(p.Row-1, row)
	}
	if !row.IsUsed(p.Column - 1) {
		s.acquire(p.Column)
	}
	row.Set(p.Column-1, v)
}

func (s *Slice[T]) acquire(column int) {
	if s.columnCounts == nil {
		s.columnCounts = make(map[int]int)
	}
	s.columnCounts[column]++
	s.count++
	if column > s.maxColumn {
		s.maxColumn = column
	}
}

func (s *Slice[T]) release(column int) {
	s.count--
	if n := s.columnCounts[column] - 1; n > 0 {
		s.columnCounts[column] = n
		return
	}
	delete(s.columnCounts, column)
	if column == s.maxColumn {
		s.recomputeMaxColumn()
	}
}

// recomputeMaxColumn scans every row. it only runs when the maximum column
// loses its last used cell.
func (s *Slice[T]) recomputeMaxColumn() {
	s.maxColumn = 0
	for _, row := range s.rows.All() {
		s.maxColumn = max(s.maxColumn, row.MaxUsedIndex()+1)
	}
}

// IsEmpty reports whether no point is used.
func (s *Slice[T]) IsEmpty() bool { return s.count == 0 }

// Len returns the number of used points.
func (s *Slice[T]) Len() int { return s.count }

// MaxRow returns the highest used row, or 0 when empty.
func (s *Slice[T]) MaxRow() int { return s.rows.MaxUsedIndex() + 1 }

// MaxColumn returns the highest used column, or 0 when empty.
func (s *Slice[T]) MaxColumn() int { return s.maxColumn }

// UsedColumns returns the columns holding at least one used point, in
// increasing order.
func (s *Slice[T]) UsedColumns() []int {
	return slices.Sorted(maps.Keys(s.columnCounts))
}

// UsedRows yields the rows holding at least one used point, in increasing
// order.
func (s *Slice[T]) UsedRows() iter.Seq[int] {
	return func(yield func(int) bool) {
		for i := range s.rows.All() {
			if !yield(i + 1) {
				return
			}
		}
	}
}

// RowsIn yields the used rows within [top, bottom] in increasing order. the
// cost follows the rows of the range, not of the slice.
func (s *Slice[T]) RowsIn(top, bottom int) iter.Seq[int] {
	return func(yield func(int) bool) {
		for i := range s.rows.Ascend(top-1, bottom-1) {
			if !yield(i + 1) {
				return
			}
		}
	}
}

// RowsInReverse yields the rows of RowsIn in decreasing order.
func (s *Slice[T]) RowsInReverse(top, bottom int) iter.Seq[int] {
	return func(yield func(int) bool) {
		for i := range s.rows.Descend(top-1, bottom-1) {
			if !yield(i + 1) {
				return
			}
		}
	}
}

// RowColumns yields the used columns of row within [left, right] with their
// values.
func (s *Slice[T]) RowColumns(row, left, right int) iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		cols := s.rows.Get(row - 1)
		if cols == nil {
			return
		}
		for i, v := range cols.Ascend(left-1, right-1) {
			if !yield(i+1, v) {
				return
			}
		}
	}
}

// Ascend yields the used points of rect in row-major order. the slice may be
// modified at or before the yielded point while iterating.
func (s *Slice[T]) Ascend(rect grid.Rect) iter.Seq2[grid.Point, T] {
	return func(yield func(grid.Point, T) bool) {
		for r, cols := range s.rows.Ascend(rect.Top-1, rect.Bottom-1) {
			for c, v := range cols.Ascend(rect.Left-1, rect.Right-1) {
				if !yield(grid.Point{Row: r + 1, Column: c + 1}, v) {
					return
				}
			}
		}
	}
}

// Descend yields the used points of rect in the exact reverse of Ascend. the
// slice may be modified at or after the yielded point while iterating.
func (s *Slice[T]) Descend(rect grid.Rect) iter.Seq2[grid.Point, T] {
	return func(yield func(grid.Point, T) bool) {
		for r, cols := range s.rows.Descend(rect.Top-1, rect.Bottom-1) {
			for c, v := range cols.Descend(rect.Left-1, rect.Right-1) {
				if !yield(grid.Point{Row: r + 1, Column: c + 1}, v) {
					return
				}
			}
		}
	}
}

// Swap exchanges the content of two points.
func (s *Slice[T]) Swap(p1, p2 grid.Point) {
	v1, v2 := s.Get(p1), s.Get(p2)
	s.Set(p1, v2)
	s.Set(p2, v1)
}
