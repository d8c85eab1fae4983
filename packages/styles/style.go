// Package styles holds immutable cell style values and the repository that
// interns them, so every structurally equal style is one shared pointer.
package styles

import (
	"strconv"
	"strings"
)

// Font describes the text font of a cell.
type Font struct {
	Name      string
	Size      float64
	Bold      bool
	Italic    bool
	Underline string // "", "single", "double"
	Strike    bool
	Color     string
}

// Fill is the background of a cell.
type Fill struct {
	Pattern string // "", "solid", ...
	Color   string
}

// BorderSide is one edge of a cell border.
type BorderSide struct {
	Style int // excelize border style index, 0 for none
	Color string
}

// Border holds the four cell edges.
type Border struct {
	Left, Right, Top, Bottom BorderSide
}

// Alignment controls text placement inside a cell.
type Alignment struct {
	Horizontal string
	Vertical   string
	WrapText   bool
	Indent     int
	Rotation   int
}

// NumberFormat is either a builtin format id or a custom format code. a
// non-empty Code takes precedence over ID.
type NumberFormat struct {
	ID   int
	Code string
}

// Protection flags of a cell.
type Protection struct {
	Locked bool
	Hidden bool
}

// Style is an immutable, comparable cell style. values obtained from a
// Repository must not be modified.
type Style struct {
	Font         Font
	Fill         Fill
	Border       Border
	Alignment    Alignment
	NumberFormat NumberFormat
	Protection   Protection
}

// Default is the style of an unformatted cell.
var Default = Style{
	Font:       Font{Name: "Calibri", Size: 11},
	Protection: Protection{Locked: true},
}

// FormatCode returns the number format code of s, resolving builtin ids.
func (s *Style) FormatCode() string {
	if s.NumberFormat.Code != "" {
		return s.NumberFormat.Code
	}
	return builtinFormats[s.NumberFormat.ID]
}

// IsDate reports whether the number format of s renders dates or times.
func (s *Style) IsDate() bool {
	return IsDateFormat(s.FormatCode())
}

// canonical writes every field in declaration order. strings are length
// prefixed so adjacent fields never run together.
func (s *Style) canonical() []byte {
	var b strings.Builder
	str := func(v string) {
		b.WriteString(strconv.Itoa(len(v)))
		b.WriteByte(':')
		b.WriteString(v)
	}
	num := func(v float64) {
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		b.WriteByte(';')
	}
	flag := func(v bool) {
		if v {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	side := func(v BorderSide) {
		num(float64(v.Style))
		str(v.Color)
	}

	str(s.Font.Name)
	num(s.Font.Size)
	flag(s.Font.Bold)
	flag(s.Font.Italic)
	str(s.Font.Underline)
	flag(s.Font.Strike)
	str(s.Font.Color)
	str(s.Fill.Pattern)
	str(s.Fill.Color)
	side(s.Border.Left)
	side(s.Border.Right)
	side(s.Border.Top)
	side(s.Border.Bottom)
	str(s.Alignment.Horizontal)
	str(s.Alignment.Vertical)
	flag(s.Alignment.WrapText)
	num(float64(s.Alignment.Indent))
	num(float64(s.Alignment.Rotation))
	num(float64(s.NumberFormat.ID))
	str(s.NumberFormat.Code)
	flag(s.Protection.Locked)
	flag(s.Protection.Hidden)
	return []byte(b.String())
}
