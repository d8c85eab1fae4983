package formula

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogtb/go-spreadsheet/packages/cells"
)

func TestBuiltinFunctions(t *testing.T) {
	s := newTestSource()
	s.set("A1", cells.Number(1))
	s.set("A2", cells.Number(2))
	s.set("A3", cells.Number(2))
	s.set("A4", cells.Text("skip"))
	s.set("A5", cells.Bool(true))
	s.set("B1", cells.ErrorValue(cells.ErrorCodeNA))
	s.set("C1", cells.Text("  Hello   World "))

	errValue := cells.ErrorValue(cells.ErrorCodeValue)
	tests := []struct {
		formula string
		want    cells.Value
	}{
		{"SUM(A1:A5)", cells.Number(5)},
		{"SUM(0.1,0.2)", cells.Number(0.3)},
		{`SUM(1,"2")`, cells.Number(3)},
		{`SUM(1,"x")`, errValue},
		{"SUM(A1,B1)", cells.ErrorValue(cells.ErrorCodeNA)},
		{"AVERAGE(A1:A5)", cells.Number(5.0 / 3)},
		{"AVERAGE(D1:D5)", cells.ErrorValue(cells.ErrorCodeDiv0)},
		{"AVERAGEA(A1:A5)", cells.Number(6.0 / 5)},
		{"COUNT(A1:A5,B1:B1)", cells.Number(3)},
		{"COUNTA(A1:A5,B1:B1)", cells.Number(6)},
		{"MAX(A1:A5)", cells.Number(2)},
		{"MIN(A1:A5,-4)", cells.Number(-4)},
		{"MAX(D1:D9)", cells.Number(0)},
		{"MEDIAN(A1:A3,10)", cells.Number(2)},
		{"MEDIAN(1,2,3,4)", cells.Number(2.5)},
		{"MODE(A1:A3,1)", cells.Number(1)},
		{"MODE(1,2,3)", cells.ErrorValue(cells.ErrorCodeNA)},
		{"IF(A1=1,\"yes\",\"no\")", cells.Text("yes")},
		{"IF(0,1)", cells.Bool(false)},
		{"IF(B1,1,2)", cells.ErrorValue(cells.ErrorCodeNA)},
		{"AND(A1,A5)", cells.Bool(true)},
		{"AND(A1,0)", cells.Bool(false)},
		{"OR(0,FALSE)", cells.Bool(false)},
		{"OR(0,A5)", cells.Bool(true)},
		{"NOT(A5)", cells.Bool(false)},
		{`CONCATENATE("a",A1,TRUE)`, cells.Text("a1TRUE")},
		{`LEN("héllo")`, cells.Number(5)},
		{`UPPER("abc")`, cells.Text("ABC")},
		{`LOWER("ABC")`, cells.Text("abc")},
		{"TRIM(C1)", cells.Text("Hello World")},
		{"ABS(-3)", cells.Number(3)},
		{"FLOOR(2.7)", cells.Number(2)},
		{"CEILING(2.1)", cells.Number(3)},
		{"SQRT(16)", cells.Number(4)},
		{"SQRT(-1)", cells.ErrorValue(cells.ErrorCodeNum)},
		{"ROUND(2.346,2)", cells.Number(2.35)},
		{"ROUND(2.5)", cells.Number(3)},
		{"POWER(2,10)", cells.Number(1024)},
		{"MOD(-7,3)", cells.Number(2)},
		{"MOD(7,-3)", cells.Number(-2)},
		{"MOD(1,0)", cells.ErrorValue(cells.ErrorCodeDiv0)},
		{"PI()", cells.Number(math.Pi)},
		{"PI(1)", cells.ErrorValue(cells.ErrorCodeNA)},
		{"RAND()", cells.Number(0.25)},
		{"NOW()", cells.DateTime(time.Date(2024, 3, 15, 13, 30, 0, 0, time.UTC))},
		{"TODAY()", cells.DateTime(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))},
		{"sum(1,2)", cells.Number(3)},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			s.setFormula(t, "Z1", tt.formula)
			got := s.eval(t, "Z1")
			assert.True(t, tt.want.Equal(got), "want %v, got %v", tt.want, got)
		})
	}
}

func TestIsVolatile(t *testing.T) {
	for _, name := range []string{"NOW", "today", "Rand"} {
		assert.True(t, IsVolatile(name), name)
	}
	for _, name := range []string{"SUM", "PI", "IF"} {
		assert.False(t, IsVolatile(name), name)
	}
}

func TestCompareValues(t *testing.T) {
	tests := []struct {
		name        string
		left, right cells.Value
		want        int
	}{
		{"numbers", cells.Number(1), cells.Number(2), -1},
		{"text ignores case", cells.Text("abc"), cells.Text("ABC"), 0},
		{"number before text", cells.Number(99), cells.Text("1"), -1},
		{"text before bool", cells.Text("z"), cells.Bool(false), -1},
		{"blank is zero", cells.Blank(), cells.Number(0), 0},
		{"blank is empty text", cells.Text(""), cells.Blank(), 0},
		{"bools", cells.Bool(true), cells.Bool(false), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, compareValues(tt.left, tt.right))
		})
	}
}

func TestToNumber(t *testing.T) {
	n, ok := toNumber(cells.Text(" 42.5 "))
	require.True(t, ok)
	assert.InDelta(t, 42.5, n, 1e-12)

	_, ok = toNumber(cells.Text("4x"))
	assert.False(t, ok)

	n, ok = toNumber(cells.Bool(true))
	require.True(t, ok)
	assert.Equal(t, 1.0, n)

	_, ok = toNumber(cells.ErrorValue(cells.ErrorCodeNA))
	assert.False(t, ok)
}
