// Package grid defines worksheet coordinates: points, rectangles and book
// points, together with A1 notation parsing and formatting.
package grid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// worksheet bounds. every persisted format and the calculation engine assume
// exactly this addressable range.
const (
	MaxRow    = 1_048_576
	MaxColumn = 16_384
)

// maxColumnLetters is the width of the largest column name, XFD.
const maxColumnLetters = 3

// ErrInvalidAddress is returned when A1 text cannot be parsed into a point or
// a rectangle inside the worksheet bounds.
var ErrInvalidAddress = errors.New("invalid cell address")

// Point is a 1-based (row, column) coordinate.
type Point struct {
	Row    int
	Column int
}

// NewPoint returns the point at row and column. a point outside the
// worksheet is a programming error, so NewPoint panics instead of returning
// an error.
func NewPoint(row, column int) Point {
	p := Point{Row: row, Column: column}
	if !p.IsValid() {
		panic(fmt.Sprintf("grid: point (%d, %d) is outside the worksheet", row, column))
	}
	return p
}

// IsValid reports whether the point lies inside the worksheet.
func (p Point) IsValid() bool {
	return p.Row >= 1 && p.Row <= MaxRow && p.Column >= 1 && p.Column <= MaxColumn
}

// Offset returns the point moved by the given deltas. the result is not
// validated.
func (p Point) Offset(rows, columns int) Point {
	return Point{Row: p.Row + rows, Column: p.Column + columns}
}

// String formats the point in A1 notation.
func (p Point) String() string {
	return ColumnName(p.Column) + strconv.Itoa(p.Row)
}

// ParsePoint parses A1 notation. absolute markers ($A$1) are accepted and
// ignored.
func ParsePoint(s string) (Point, error) {
	p, ok := parsePoint(s)
	if !ok {
		return Point{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return p, nil
}

func parsePoint(s string) (Point, bool) {
	s = strings.TrimPrefix(s, "$")
	letters := 0
	for letters < len(s) && isLetter(s[letters]) {
		letters++
	}
	if letters == 0 || letters > maxColumnLetters {
		return Point{}, false
	}
	digits := strings.TrimPrefix(s[letters:], "$")
	if digits == "" || digits[0] == '0' {
		return Point{}, false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return Point{}, false
		}
	}
	row, err := strconv.Atoi(digits)
	if err != nil {
		return Point{}, false
	}
	col, err := ColumnNumber(s[:letters])
	if err != nil {
		return Point{}, false
	}
	p := Point{Row: row, Column: col}
	return p, p.IsValid()
}

func isLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

// ColumnName converts a 1-based column number to letters (1 -> A, 27 -> AA).
func ColumnName(column int) string {
	if column < 1 {
		return ""
	}
	var buf [maxColumnLetters + 4]byte
	i := len(buf)
	for column > 0 {
		column--
		i--
		buf[i] = byte('A' + column%26)
		column /= 26
	}
	return string(buf[i:])
}

// ColumnNumber converts column letters to a 1-based column number.
func ColumnNumber(name string) (int, error) {
	if name == "" || len(name) > maxColumnLetters {
		return 0, fmt.Errorf("%w: column %q", ErrInvalidAddress, name)
	}
	n := 0
	for i := 0; i < len(name); i++ {
		c := name[i]
		if !isLetter(c) {
			return 0, fmt.Errorf("%w: column %q", ErrInvalidAddress, name)
		}
		if c >= 'a' {
			c -= 'a' - 'A'
		}
		n = n*26 + int(c-'A') + 1
	}
	if n > MaxColumn {
		return 0, fmt.Errorf("%w: column %q", ErrInvalidAddress, name)
	}
	return n, nil
}

// BookPoint addresses a cell across the worksheets of a workbook.
type BookPoint struct {
	Sheet uint32
	Point
}

// String formats the book point as sheet-id!A1.
func (bp BookPoint) String() string {
	return strconv.FormatUint(uint64(bp.Sheet), 10) + "!" + bp.Point.String()
}
