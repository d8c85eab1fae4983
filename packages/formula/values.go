package formula

import (
	"cmp"
	"strconv"
	"strings"

	"github.com/vogtb/go-spreadsheet/packages/cells"
)

// toNumber converts value to number, returning ok=false if conversion fails
func toNumber(v cells.Value) (float64, bool) {
	switch v.Kind() {
	case cells.KindNumber, cells.KindDateTime, cells.KindTimeSpan:
		n, _ := v.AsNumber()
		return n, true
	case cells.KindBoolean:
		if b, _ := v.AsBool(); b {
			return 1, true
		}
		return 0, true
	case cells.KindBlank:
		return 0, true
	case cells.KindText:
		s, _ := v.AsText()
		n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return n, err == nil
	}
	return 0, false
}

// toText converts value to the text it concatenates as
func toText(v cells.Value) string {
	return v.String()
}

// isTruthy checks if value is truthy
func isTruthy(v cells.Value) bool {
	switch v.Kind() {
	case cells.KindBoolean:
		b, _ := v.AsBool()
		return b
	case cells.KindText:
		s, _ := v.AsText()
		return s != ""
	case cells.KindBlank:
		return false
	}
	n, _ := v.AsNumber()
	return n != 0
}

// typeRank orders values of different kinds: numbers sort before text,
// text before booleans
func typeRank(v cells.Value) int {
	switch v.Kind() {
	case cells.KindText:
		return 1
	case cells.KindBoolean:
		return 2
	}
	return 0
}

// compareValues compares two values. returns -1 if left < right, 0 if
// equal, 1 if left > right. text compares case-insensitively and a blank
// compares as the zero value of the other side.
func compareValues(left, right cells.Value) int {
	if left.IsBlank() && right.IsBlank() {
		return 0
	}
	if left.IsBlank() {
		left = zeroOf(right)
	}
	if right.IsBlank() {
		right = zeroOf(left)
	}
	if lr, rr := typeRank(left), typeRank(right); lr != rr {
		return cmp.Compare(lr, rr)
	}
	switch typeRank(left) {
	case 1:
		l, _ := left.AsText()
		r, _ := right.AsText()
		return strings.Compare(strings.ToLower(l), strings.ToLower(r))
	case 2:
		l, _ := left.AsBool()
		r, _ := right.AsBool()
		return cmp.Compare(boolInt(l), boolInt(r))
	}
	l, _ := left.AsNumber()
	r, _ := right.AsNumber()
	switch {
	case l < r:
		return -1
	case l > r:
		return 1
	}
	return 0
}

func zeroOf(v cells.Value) cells.Value {
	switch v.Kind() {
	case cells.KindText:
		return cells.Text("")
	case cells.KindBoolean:
		return cells.Bool(false)
	}
	return cells.Number(0)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
