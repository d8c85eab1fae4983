// Package cells stores the content of one worksheet: a value slice wired to
// the shared text table, a formula slice wired to the calculation engine,
// a style slice, a misc slice, and the collection that keeps them in step.
package cells

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/vogtb/go-spreadsheet/packages/sst"
)

// ErrTypeMismatch is returned when a value is read as a kind it does not
// hold.
var ErrTypeMismatch = errors.New("cell value type mismatch")

// Kind discriminates the cell value union.
type Kind uint8

const (
	KindBlank Kind = iota
	KindBoolean
	KindNumber
	KindText
	KindError
	KindDateTime
	KindTimeSpan
)

var kindNames = [...]string{"blank", "boolean", "number", "text", "error", "datetime", "timespan"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// ErrorCode represents standard spreadsheet error codes following Excel
// conventions
type ErrorCode uint8

const (
	ErrorCodeNull  ErrorCode = 1 // #NULL! - no cells in common between ranges
	ErrorCodeDiv0  ErrorCode = 2 // #DIV/0! - division by zero
	ErrorCodeValue ErrorCode = 3 // #VALUE! - wrong type of argument or operand
	ErrorCodeRef   ErrorCode = 4 // #REF! - invalid cell reference
	ErrorCodeName  ErrorCode = 5 // #NAME? - unrecognized function name
	ErrorCodeNum   ErrorCode = 6 // #NUM! - number too large or small to be represented
	ErrorCodeNA    ErrorCode = 7 // #N/A - value not available
)

var errorNames = map[ErrorCode]string{
	ErrorCodeNull:  "#NULL!",
	ErrorCodeDiv0:  "#DIV/0!",
	ErrorCodeValue: "#VALUE!",
	ErrorCodeRef:   "#REF!",
	ErrorCodeName:  "#NAME?",
	ErrorCodeNum:   "#NUM!",
	ErrorCodeNA:    "#N/A",
}

func (c ErrorCode) String() string {
	if s, ok := errorNames[c]; ok {
		return s
	}
	return "#ERROR!"
}

// ParseErrorCode maps "#DIV/0!" and friends back to their code.
func ParseErrorCode(s string) (ErrorCode, bool) {
	for code, name := range errorNames {
		if name == s {
			return code, true
		}
	}
	return 0, false
}

// epoch is day zero of the serial date system.
var epoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

// Value is the cell value union. the zero Value is blank. text lives either
// in Str or, for rich text, in Rich; numbers, date-times and time spans
// share Num (serial days for the latter two).
type Value struct {
	kind   Kind
	num    float64
	str    string
	rich   *sst.RichText
	inline bool
}

func Blank() Value { return Value{} }

func Bool(b bool) Value {
	v := Value{kind: KindBoolean}
	if b {
		v.num = 1
	}
	return v
}

// Number returns a number value. NaN and infinities are not representable
// and become #NUM!.
func Number(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ErrorValue(ErrorCodeNum)
	}
	return Value{kind: KindNumber, num: f}
}

// Text returns a shared text value.
func Text(s string) Value { return Value{kind: KindText, str: s} }

// InlineText returns a text value that is interned apart from shared text
// with the same content.
func InlineText(s string) Value { return Value{kind: KindText, str: s, inline: true} }

// Rich returns a rich text value. a nil r is blank.
func Rich(r *sst.RichText) Value {
	if r == nil {
		return Blank()
	}
	return Value{kind: KindText, rich: r, str: r.String()}
}

func ErrorValue(code ErrorCode) Value { return Value{kind: KindError, num: float64(code)} }

// DateTime returns a date-time value as serial days since 1899-12-30.
func DateTime(t time.Time) Value {
	return DateTimeSerial(float64(t.Sub(epoch)) / float64(day))
}

func DateTimeSerial(serial float64) Value {
	if math.IsNaN(serial) || math.IsInf(serial, 0) {
		return ErrorValue(ErrorCodeNum)
	}
	return Value{kind: KindDateTime, num: serial}
}

// TimeSpan returns a duration as fractional days.
func TimeSpan(d time.Duration) Value {
	return TimeSpanSerial(float64(d) / float64(day))
}

func TimeSpanSerial(days float64) Value {
	if math.IsNaN(days) || math.IsInf(days, 0) {
		return ErrorValue(ErrorCodeNum)
	}
	return Value{kind: KindTimeSpan, num: days}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsBlank() bool { return v.kind == KindBlank }

func (v Value) IsText() bool { return v.kind == KindText }

func (v Value) IsError() bool { return v.kind == KindError }

// IsNumeric reports whether v carries a number payload.
func (v Value) IsNumeric() bool {
	return v.kind == KindNumber || v.kind == KindDateTime || v.kind == KindTimeSpan
}

// IsInline reports whether a text value is inline text.
func (v Value) IsInline() bool { return v.inline }

func (v Value) mismatch(want Kind) error {
	return fmt.Errorf("%w: have %s, want %s", ErrTypeMismatch, v.kind, want)
}

func (v Value) AsBool() (bool, error) {
	if v.kind != KindBoolean {
		return false, v.mismatch(KindBoolean)
	}
	return v.num != 0, nil
}

// AsNumber returns the payload of a number, date-time or time span.
func (v Value) AsNumber() (float64, error) {
	if !v.IsNumeric() {
		return 0, v.mismatch(KindNumber)
	}
	return v.num, nil
}

func (v Value) AsText() (string, error) {
	if v.kind != KindText {
		return "", v.mismatch(KindText)
	}
	return v.str, nil
}

// AsRichText returns the rich text of a text value, nil for plain text.
func (v Value) AsRichText() (*sst.RichText, error) {
	if v.kind != KindText {
		return nil, v.mismatch(KindText)
	}
	return v.rich, nil
}

func (v Value) AsError() (ErrorCode, error) {
	if v.kind != KindError {
		return 0, v.mismatch(KindError)
	}
	return ErrorCode(v.num), nil
}

func (v Value) AsDateTime() (time.Time, error) {
	if v.kind != KindDateTime {
		return time.Time{}, v.mismatch(KindDateTime)
	}
	return epoch.Add(serialDuration(v.num)), nil
}

func (v Value) AsTimeSpan() (time.Duration, error) {
	if v.kind != KindTimeSpan {
		return 0, v.mismatch(KindTimeSpan)
	}
	return serialDuration(v.num), nil
}

// serialDuration converts serial days to a duration rounded to the
// millisecond, the resolution of the serial format.
func serialDuration(days float64) time.Duration {
	return time.Duration(math.Round(days*float64(day/time.Millisecond))) * time.Millisecond
}

// Equal compares kind and payload. rich text compares by its runs.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind || v.num != o.num || v.str != o.str || v.inline != o.inline {
		return false
	}
	if (v.rich == nil) != (o.rich == nil) {
		return false
	}
	if v.rich == nil {
		return true
	}
	if len(v.rich.Runs) != len(o.rich.Runs) {
		return false
	}
	for i := range v.rich.Runs {
		if v.rich.Runs[i] != o.rich.Runs[i] {
			return false
		}
	}
	return true
}

// String renders v the way a cell displays it without number formatting.
func (v Value) String() string {
	switch v.kind {
	case KindBoolean:
		if v.num != 0 {
			return "TRUE"
		}
		return "FALSE"
	case KindNumber, KindDateTime, KindTimeSpan:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindText:
		return v.str
	case KindError:
		return ErrorCode(v.num).String()
	}
	return ""
}

func (v Value) text() sst.Text {
	if v.rich != nil {
		return sst.Text{Rich: v.rich}
	}
	return sst.Plain(v.str)
}
