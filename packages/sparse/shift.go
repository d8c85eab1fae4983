package sparse

import (
	"github.com/vogtb/go-spreadsheet/packages/grid"
)

// Clear sets every point of rect to the zero value.
func (s *Slice[T]) Clear(rect grid.Rect) {
	var zero T
	for p := range s.Ascend(rect) {
		s.Set(p, zero)
	}
}

// DeleteAndShiftLeft clears rect and moves the content to its right, in the
// same rows, left by rect's width.
//
// sources move to lower columns, so the walk is forward: a destination is
// always behind the cursor and can never be a source that was not read yet.
func (s *Slice[T]) DeleteAndShiftLeft(rect grid.Rect) {
	s.Clear(rect)
	if rect.Right == grid.MaxColumn {
		return
	}
	width := rect.Width()
	tail := grid.Rect{Top: rect.Top, Left: rect.Right + 1, Bottom: rect.Bottom, Right: grid.MaxColumn}
	for p, v := range s.Ascend(tail) {
		s.move(p, p.Offset(0, -width), v)
	}
}

// DeleteAndShiftUp clears rect and moves the content below it, in the same
// columns, up by rect's height. the walk is forward for the same reason as
// DeleteAndShiftLeft.
func (s *Slice[T]) DeleteAndShiftUp(rect grid.Rect) {
	s.Clear(rect)
	if rect.Bottom == grid.MaxRow {
		return
	}
	height := rect.Height()
	if rect.IsFullWidth() {
		for r, cols := range s.rows.Ascend(rect.Bottom, grid.MaxRow-1) {
			s.rows.Set(r-height, cols)
			s.rows.Set(r, nil)
		}
		return
	}
	tail := grid.Rect{Top: rect.Bottom + 1, Left: rect.Left, Bottom: grid.MaxRow, Right: rect.Right}
	for p, v := range s.Ascend(tail) {
		s.move(p, p.Offset(-height, 0), v)
	}
}

// PushedOutRight returns the region an InsertAndShiftRight over rect pushes
// past the last column.
func PushedOutRight(rect grid.Rect) grid.Rect {
	return grid.Rect{Top: rect.Top, Left: grid.MaxColumn - rect.Width() + 1, Bottom: rect.Bottom, Right: grid.MaxColumn}
}

// PushedOutDown returns the region an InsertAndShiftDown over rect pushes
// past the last row.
func PushedOutDown(rect grid.Rect) grid.Rect {
	return grid.Rect{Top: grid.MaxRow - rect.Height() + 1, Left: rect.Left, Bottom: grid.MaxRow, Right: rect.Right}
}

// InsertAndShiftRight moves the content at and right of rect, in the same
// rows, right by rect's width and leaves rect empty. content pushed past the
// last column is discarded.
//
// sources move to higher columns, so the walk is reverse: a destination is
// always behind the cursor.
func (s *Slice[T]) InsertAndShiftRight(rect grid.Rect) {
	width := rect.Width()
	s.Clear(PushedOutRight(rect))
	moving := grid.Rect{Top: rect.Top, Left: rect.Left, Bottom: rect.Bottom, Right: grid.MaxColumn - width}
	for p, v := range s.Descend(moving) {
		s.move(p, p.Offset(0, width), v)
	}
	s.Clear(rect)
}

// InsertAndShiftDown moves the content at and below rect, in the same
// columns, down by rect's height and leaves rect empty. content pushed past
// the last row is discarded. the walk is reverse for the same reason as
// InsertAndShiftRight.
func (s *Slice[T]) InsertAndShiftDown(rect grid.Rect) {
	height := rect.Height()
	s.Clear(PushedOutDown(rect))
	if rect.IsFullWidth() {
		for r, cols := range s.rows.Descend(rect.Top-1, grid.MaxRow-height-1) {
			s.rows.Set(r+height, cols)
			s.rows.Set(r, nil)
		}
		return
	}
	moving := grid.Rect{Top: rect.Top, Left: rect.Left, Bottom: grid.MaxRow - height, Right: rect.Right}
	for p, v := range s.Descend(moving) {
		s.move(p, p.Offset(height, 0), v)
	}
	s.Clear(rect)
}

// move writes the destination before clearing the source.
func (s *Slice[T]) move(from, to grid.Point, v T) {
	var zero T
	s.Set(to, v)
	s.Set(from, zero)
}
