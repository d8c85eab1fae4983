package spreadsheet

import (
	"fmt"
	"strings"
	"time"

	"github.com/vogtb/go-spreadsheet/packages/cells"
	"github.com/vogtb/go-spreadsheet/packages/grid"
	"github.com/vogtb/go-spreadsheet/packages/sst"
	"github.com/vogtb/go-spreadsheet/packages/styles"
)

// ToValue converts a Go value to a cell value.
// types:
//   - float64, float32 and the integer types: numbers
//   - string: text, never a formula
//   - bool: booleans
//   - nil: blank
//   - time.Time: date-times, time.Duration: time spans
//   - *sst.RichText: rich text
//   - cells.Value and cells.ErrorCode: as they are
func ToValue(v any) (cells.Value, error) {
	switch v := v.(type) {
	case nil:
		return cells.Blank(), nil
	case cells.Value:
		return v, nil
	case cells.ErrorCode:
		return cells.ErrorValue(v), nil
	case float64:
		return cells.Number(v), nil
	case float32:
		return cells.Number(float64(v)), nil
	case int:
		return cells.Number(float64(v)), nil
	case int32:
		return cells.Number(float64(v)), nil
	case int64:
		return cells.Number(float64(v)), nil
	case uint32:
		return cells.Number(float64(v)), nil
	case string:
		return cells.Text(v), nil
	case bool:
		return cells.Bool(v), nil
	case time.Time:
		return cells.DateTime(v), nil
	case time.Duration:
		return cells.TimeSpan(v), nil
	case *sst.RichText:
		return cells.Rich(v), nil
	}
	return cells.Value{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
}

// Cell is a handle on one point of a worksheet. it holds no content of
// its own; every call reads or writes the worksheet.
type Cell struct {
	ws *Worksheet
	at grid.Point
}

// Point returns the cell's position
func (c *Cell) Point() grid.Point { return c.at }

// Worksheet returns the cell's worksheet
func (c *Cell) Worksheet() *Worksheet { return c.ws }

func (c *Cell) bookPoint() grid.BookPoint {
	return grid.BookPoint{Sheet: c.ws.id, Point: c.at}
}

// String renders the cell as Sheet!A1
func (c *Cell) String() string { return c.ws.wb.describe(c.bookPoint()) }

// SetValue stores v, replacing any formula. a cell inside a multi cell
// range formula can not be overwritten on its own.
func (c *Cell) SetValue(v cells.Value) error {
	if c.ws.cells.Formulas.IsUsed(c.at) {
		if err := c.ws.cells.Formulas.Set(c.at, nil); err != nil {
			return err
		}
	}
	c.ws.cells.Values.Set(c.at, v)
	c.ws.wb.engine.Touch(c.bookPoint())
	return nil
}

// SetFormula stores a formula, with or without the leading '='. when the
// text does not parse the cell is left without a formula and the error
// wraps formula.ErrParse.
func (c *Cell) SetFormula(text string) error {
	f := cells.NewFormula(strings.TrimPrefix(text, "="))
	if err := c.ws.cells.Formulas.Set(c.at, f); err != nil {
		return err
	}
	c.ws.cells.Values.Set(c.at, cells.Blank())
	return nil
}

// SetArrayFormula installs an array formula of the given size with this
// cell as its top-left corner
func (c *Cell) SetArrayFormula(text string, height, width int) error {
	if height < 1 || width < 1 {
		return fmt.Errorf("%w: array of %dx%d", ErrInvalidAddress, height, width)
	}
	rect := grid.Rect{Top: c.at.Row, Left: c.at.Column, Bottom: c.at.Row + height - 1, Right: c.at.Column + width - 1}
	return c.ws.SetArrayFormula(rect, text)
}

// Value returns the cell's value, evaluating its formula first when it is
// stale. a circular reference yields #REF! together with an error wrapping
// ErrCircularReference.
func (c *Cell) Value() (cells.Value, error) {
	return c.ws.valueAt(c.at)
}

// CachedValue returns the value without evaluating anything. a formula
// that was never evaluated reads as blank.
func (c *Cell) CachedValue() cells.Value {
	f := c.ws.cells.Formulas.Get(c.at)
	if f == nil {
		return c.ws.cells.Values.Get(c.at)
	}
	return f.Recalc.Result(c.at, f.Range, f.Kind)
}

// Formula returns the formula text with its leading '='. data tables have
// no text.
func (c *Cell) Formula() (string, bool) {
	f := c.ws.cells.Formulas.Get(c.at)
	if f == nil {
		return "", false
	}
	if f.Kind == cells.DataTableFormula {
		return "", true
	}
	return "=" + f.Text, true
}

// FormulaRecord returns the stored formula record, nil when there is none
func (c *Cell) FormulaRecord() *cells.Formula {
	return c.ws.cells.Formulas.Get(c.at)
}

// NeedsRecalculation reports whether reading the cell would evaluate its
// formula
func (c *Cell) NeedsRecalculation() bool {
	f := c.ws.cells.Formulas.Get(c.at)
	if f == nil {
		return false
	}
	return c.ws.wb.needsRecalc(c.ws.anchor(c.at, f), f)
}

// SetStyle formats the cell. the default style clears the formatting.
func (c *Cell) SetStyle(s styles.Style) {
	if s == styles.Default {
		c.ws.cells.Styles.Set(c.at, nil)
		return
	}
	c.ws.cells.Styles.Set(c.at, c.ws.wb.styles.Intern(s))
}

// Style returns the cell's style
func (c *Cell) Style() *styles.Style {
	if s := c.ws.cells.Styles.Get(c.at); s != nil {
		return s
	}
	return c.ws.wb.styles.Default()
}

func (c *Cell) Misc() cells.Misc { return c.ws.cells.Misc.Get(c.at) }

func (c *Cell) SetMisc(m cells.Misc) { c.ws.cells.Misc.Set(c.at, m) }

// IsUsed reports whether the cell holds anything, formatting included
func (c *Cell) IsUsed() bool { return c.ws.cells.IsUsed(c.at) }

// Clear empties the cell. a cell of a range formula removes the whole
// range formula.
func (c *Cell) Clear() {
	c.ws.ClearRange(grid.CellRect(c.at))
}
