package grid

import (
	"fmt"
	"strings"
)

// Rect is a rectangle of cells, always normalized so that Top <= Bottom and
// Left <= Right.
type Rect struct {
	Top    int
	Left   int
	Bottom int
	Right  int
}

// NewRect returns the normalized rectangle spanned by two corners.
func NewRect(a, b Point) Rect {
	return Rect{
		Top:    min(a.Row, b.Row),
		Left:   min(a.Column, b.Column),
		Bottom: max(a.Row, b.Row),
		Right:  max(a.Column, b.Column),
	}
}

// CellRect returns the single-cell rectangle at p.
func CellRect(p Point) Rect {
	return Rect{Top: p.Row, Left: p.Column, Bottom: p.Row, Right: p.Column}
}

// RowsRect returns the full-width rectangle covering rows top..bottom.
func RowsRect(top, bottom int) Rect {
	return Rect{Top: min(top, bottom), Left: 1, Bottom: max(top, bottom), Right: MaxColumn}
}

// ColumnsRect returns the full-height rectangle covering columns left..right.
func ColumnsRect(left, right int) Rect {
	return Rect{Top: 1, Left: min(left, right), Bottom: MaxRow, Right: max(left, right)}
}

// Sheet returns the rectangle covering the whole worksheet.
func Sheet() Rect {
	return Rect{Top: 1, Left: 1, Bottom: MaxRow, Right: MaxColumn}
}

// TopLeft returns the top-left corner.
func (r Rect) TopLeft() Point { return Point{Row: r.Top, Column: r.Left} }

// BottomRight returns the bottom-right corner.
func (r Rect) BottomRight() Point { return Point{Row: r.Bottom, Column: r.Right} }

// Width returns the number of columns in the rectangle.
func (r Rect) Width() int { return r.Right - r.Left + 1 }

// Height returns the number of rows in the rectangle.
func (r Rect) Height() int { return r.Bottom - r.Top + 1 }

// IsValid reports whether the rectangle is normalized and inside the
// worksheet.
func (r Rect) IsValid() bool {
	return r.Top <= r.Bottom && r.Left <= r.Right && r.TopLeft().IsValid() && r.BottomRight().IsValid()
}

// IsFullWidth reports whether the rectangle spans every column.
func (r Rect) IsFullWidth() bool { return r.Left == 1 && r.Right == MaxColumn }

// IsFullHeight reports whether the rectangle spans every row.
func (r Rect) IsFullHeight() bool { return r.Top == 1 && r.Bottom == MaxRow }

// Contains reports whether p lies inside the rectangle.
func (r Rect) Contains(p Point) bool {
	return p.Row >= r.Top && p.Row <= r.Bottom && p.Column >= r.Left && p.Column <= r.Right
}

// ContainsRect reports whether o lies entirely inside the rectangle.
func (r Rect) ContainsRect(o Rect) bool {
	return o.Top >= r.Top && o.Bottom <= r.Bottom && o.Left >= r.Left && o.Right <= r.Right
}

// Intersects reports whether the two rectangles share at least one cell.
func (r Rect) Intersects(o Rect) bool {
	return r.Top <= o.Bottom && o.Top <= r.Bottom && r.Left <= o.Right && o.Left <= r.Right
}

// Intersection returns the cells shared by both rectangles.
func (r Rect) Intersection(o Rect) (Rect, bool) {
	if !r.Intersects(o) {
		return Rect{}, false
	}
	return Rect{
		Top:    max(r.Top, o.Top),
		Left:   max(r.Left, o.Left),
		Bottom: min(r.Bottom, o.Bottom),
		Right:  min(r.Right, o.Right),
	}, true
}

// Offset returns the rectangle moved by the given deltas.
func (r Rect) Offset(rows, columns int) Rect {
	return Rect{Top: r.Top + rows, Left: r.Left + columns, Bottom: r.Bottom + rows, Right: r.Right + columns}
}

// String formats the rectangle as A1:B2, or A1 for a single cell.
func (r Rect) String() string {
	if r.Top == r.Bottom && r.Left == r.Right {
		return r.TopLeft().String()
	}
	return r.TopLeft().String() + ":" + r.BottomRight().String()
}

// ParseRect parses A1:B2 or a single A1 reference.
func ParseRect(s string) (Rect, error) {
	first, second, found := strings.Cut(s, ":")
	a, ok := parsePoint(first)
	if !ok {
		return Rect{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	if !found {
		return CellRect(a), nil
	}
	b, ok := parsePoint(second)
	if !ok {
		return Rect{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return NewRect(a, b), nil
}
