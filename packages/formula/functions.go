package formula

import (
	"math"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/vogtb/go-spreadsheet/packages/cells"
)

// Clock interface provides time functionality for testing
type Clock interface {
	Now() time.Time
}

// WallClock is the default implementation using system time
type WallClock struct{}

func (WallClock) Now() time.Time { return time.Now() }

// RandomGenerator interface provides random number generation for testing
type RandomGenerator interface {
	Float64() float64
}

// DefaultRandomGenerator uses the standard library's rand package
type DefaultRandomGenerator struct{}

func (DefaultRandomGenerator) Float64() float64 { return rand.Float64() }

// Functions contains all built-in functions
type Functions struct {
	clock Clock
	rng   RandomGenerator
}

// NewFunctions creates the built-in function set. nil arguments select the
// wall clock and the default random generator.
func NewFunctions(clock Clock, rng RandomGenerator) *Functions {
	if clock == nil {
		clock = WallClock{}
	}
	if rng == nil {
		rng = DefaultRandomGenerator{}
	}
	return &Functions{clock: clock, rng: rng}
}

// IsVolatile reports whether a function must be recalculated whenever the
// workbook recalculates.
func IsVolatile(name string) bool {
	switch strings.ToUpper(name) {
	case "NOW", "TODAY", "RAND":
		return true
	}
	return false
}

// Call invokes a built-in function by name
func (bf *Functions) Call(ctx *evalContext, name string, args []operand) (cells.Value, error) {
	switch strings.ToUpper(name) {
	case "SUM":
		return bf.SUM(ctx, args)
	case "AVERAGE":
		return bf.AVERAGE(ctx, args)
	case "AVERAGEA":
		return bf.AVERAGEA(ctx, args)
	case "COUNT":
		return bf.COUNT(ctx, args)
	case "COUNTA":
		return bf.COUNTA(ctx, args)
	case "MAX":
		return bf.MAX(ctx, args)
	case "MIN":
		return bf.MIN(ctx, args)
	case "MEDIAN":
		return bf.MEDIAN(ctx, args)
	case "MODE":
		return bf.MODE(ctx, args)
	}

	// the remaining functions take scalar arguments
	values, err := ctx.scalars(args)
	if err != nil {
		return cells.Value{}, err
	}
	switch strings.ToUpper(name) {
	case "IF":
		return bf.IF(values)
	case "AND":
		return bf.AND(values)
	case "OR":
		return bf.OR(values)
	case "NOT":
		return unary(name, values, func(v cells.Value) (cells.Value, error) { return cells.Bool(!isTruthy(v)), nil })
	case "CONCATENATE":
		return bf.CONCATENATE(values)
	case "LEN":
		return unary(name, values, func(v cells.Value) (cells.Value, error) {
			return cells.Number(float64(utf8.RuneCountInString(toText(v)))), nil
		})
	case "UPPER":
		return unary(name, values, func(v cells.Value) (cells.Value, error) { return cells.Text(strings.ToUpper(toText(v))), nil })
	case "LOWER":
		return unary(name, values, func(v cells.Value) (cells.Value, error) { return cells.Text(strings.ToLower(toText(v))), nil })
	case "TRIM":
		// inner runs of spaces collapse to one
		return unary(name, values, func(v cells.Value) (cells.Value, error) {
			return cells.Text(strings.Join(strings.Fields(toText(v)), " ")), nil
		})
	case "ABS":
		return numeric(name, values, math.Abs)
	case "FLOOR":
		return numeric(name, values, math.Floor)
	case "CEILING":
		return numeric(name, values, math.Ceil)
	case "SQRT":
		return numeric(name, values, func(n float64) float64 {
			if n < 0 {
				return math.NaN()
			}
			return math.Sqrt(n)
		})
	case "ROUND":
		return bf.ROUND(values)
	case "POWER":
		return binary(name, values, math.Pow)
	case "MOD":
		return bf.MOD(values)
	case "PI":
		return nullary(name, values, func() cells.Value { return cells.Number(math.Pi) })
	case "NOW":
		return nullary(name, values, func() cells.Value { return cells.DateTime(bf.clock.Now()) })
	case "TODAY":
		return nullary(name, values, func() cells.Value {
			y, m, d := bf.clock.Now().Date()
			return cells.DateTime(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
		})
	case "RAND":
		return nullary(name, values, func() cells.Value { return cells.Number(bf.rng.Float64()) })
	}
	return cells.Value{}, newError(cells.ErrorCodeName, "unknown function: %s", name)
}

// firstError returns the first error value in values
func firstError(values []cells.Value) (cells.Value, bool) {
	for _, v := range values {
		if v.IsError() {
			return v, true
		}
	}
	return cells.Value{}, false
}

func nullary(name string, values []cells.Value, fn func() cells.Value) (cells.Value, error) {
	if len(values) != 0 {
		return cells.Value{}, newError(cells.ErrorCodeNA, "%s takes no arguments", name)
	}
	return fn(), nil
}

func unary(name string, values []cells.Value, fn func(cells.Value) (cells.Value, error)) (cells.Value, error) {
	if len(values) != 1 {
		return cells.Value{}, newError(cells.ErrorCodeNA, "%s requires exactly 1 argument", name)
	}
	if values[0].IsError() {
		return values[0], nil
	}
	return fn(values[0])
}

func numeric(name string, values []cells.Value, fn func(float64) float64) (cells.Value, error) {
	return unary(name, values, func(v cells.Value) (cells.Value, error) {
		n, ok := toNumber(v)
		if !ok {
			return cells.Value{}, newError(cells.ErrorCodeValue, "%s requires a numeric argument", name)
		}
		return cells.Number(fn(n)), nil
	})
}

func binary(name string, values []cells.Value, fn func(a, b float64) float64) (cells.Value, error) {
	if len(values) != 2 {
		return cells.Value{}, newError(cells.ErrorCodeNA, "%s requires exactly 2 arguments", name)
	}
	if v, ok := firstError(values); ok {
		return v, nil
	}
	a, ok1 := toNumber(values[0])
	b, ok2 := toNumber(values[1])
	if !ok1 || !ok2 {
		return cells.Value{}, newError(cells.ErrorCodeValue, "%s requires numeric arguments", name)
	}
	return cells.Number(fn(a, b)), nil
}

// numbers collects the numeric arguments of an aggregate. direct arguments
// are converted, area values count only when they hold a number. error
// values propagate either way.
func numbers(ctx *evalContext, args []operand) ([]float64, error) {
	var out []float64
	err := ctx.each(args, func(v cells.Value, fromArea bool) error {
		if code, err := v.AsError(); err == nil {
			return &Error{Code: code}
		}
		if fromArea {
			if n, err := v.AsNumber(); err == nil {
				out = append(out, n)
			}
			return nil
		}
		n, ok := toNumber(v)
		if !ok {
			return newError(cells.ErrorCodeValue, "%q is not a number", v.String())
		}
		out = append(out, n)
		return nil
	})
	return out, err
}

func (bf *Functions) SUM(ctx *evalContext, args []operand) (cells.Value, error) {
	nums, err := numbers(ctx, args)
	if err != nil {
		return cells.Value{}, err
	}
	sum := 0.0
	for _, n := range nums {
		sum += n
	}
	// trim binary noise such as 0.1+0.2
	rounded, _ := strconv.ParseFloat(strconv.FormatFloat(sum, 'f', 15, 64), 64)
	return cells.Number(rounded), nil
}

func (bf *Functions) AVERAGE(ctx *evalContext, args []operand) (cells.Value, error) {
	nums, err := numbers(ctx, args)
	if err != nil {
		return cells.Value{}, err
	}
	if len(nums) == 0 {
		return cells.Value{}, newError(cells.ErrorCodeDiv0, "AVERAGE has no values")
	}
	sum := 0.0
	for _, n := range nums {
		sum += n
	}
	return cells.Number(sum / float64(len(nums))), nil
}

// AVERAGEA counts every non-empty value; text counts as 0 and TRUE as 1
func (bf *Functions) AVERAGEA(ctx *evalContext, args []operand) (cells.Value, error) {
	sum, count := 0.0, 0
	err := ctx.each(args, func(v cells.Value, _ bool) error {
		switch v.Kind() {
		case cells.KindBlank:
			return nil
		case cells.KindError:
			code, _ := v.AsError()
			return &Error{Code: code}
		case cells.KindText:
		default:
			n, _ := toNumber(v)
			sum += n
		}
		count++
		return nil
	})
	if err != nil {
		return cells.Value{}, err
	}
	if count == 0 {
		return cells.Value{}, newError(cells.ErrorCodeDiv0, "AVERAGEA has no values")
	}
	return cells.Number(sum / float64(count)), nil
}

// COUNT counts numbers. error values inside areas are skipped, direct error
// arguments propagate
func (bf *Functions) COUNT(ctx *evalContext, args []operand) (cells.Value, error) {
	count := 0
	err := ctx.each(args, func(v cells.Value, fromArea bool) error {
		if code, err := v.AsError(); err == nil && !fromArea {
			return &Error{Code: code}
		}
		if v.IsNumeric() {
			count++
		}
		return nil
	})
	if err != nil {
		return cells.Value{}, err
	}
	return cells.Number(float64(count)), nil
}

// COUNTA counts all non-empty values regardless of type, errors included
func (bf *Functions) COUNTA(ctx *evalContext, args []operand) (cells.Value, error) {
	count := 0
	err := ctx.each(args, func(v cells.Value, fromArea bool) error {
		if code, err := v.AsError(); err == nil && !fromArea {
			return &Error{Code: code}
		}
		if !v.IsBlank() {
			count++
		}
		return nil
	})
	if err != nil {
		return cells.Value{}, err
	}
	return cells.Number(float64(count)), nil
}

func (bf *Functions) MAX(ctx *evalContext, args []operand) (cells.Value, error) {
	nums, err := numbers(ctx, args)
	if err != nil || len(nums) == 0 {
		return cells.Number(0), err
	}
	return cells.Number(slices.Max(nums)), nil
}

func (bf *Functions) MIN(ctx *evalContext, args []operand) (cells.Value, error) {
	nums, err := numbers(ctx, args)
	if err != nil || len(nums) == 0 {
		return cells.Number(0), err
	}
	return cells.Number(slices.Min(nums)), nil
}

func (bf *Functions) MEDIAN(ctx *evalContext, args []operand) (cells.Value, error) {
	nums, err := numbers(ctx, args)
	if err != nil {
		return cells.Value{}, err
	}
	if len(nums) == 0 {
		return cells.Value{}, newError(cells.ErrorCodeNum, "MEDIAN has no numeric values")
	}
	slices.Sort(nums)
	mid := len(nums) / 2
	if len(nums)%2 == 0 {
		return cells.Number((nums[mid-1] + nums[mid]) / 2), nil
	}
	return cells.Number(nums[mid]), nil
}

// MODE returns the most frequent number, the smallest one on ties
func (bf *Functions) MODE(ctx *evalContext, args []operand) (cells.Value, error) {
	nums, err := numbers(ctx, args)
	if err != nil {
		return cells.Value{}, err
	}
	if len(nums) == 0 {
		return cells.Value{}, newError(cells.ErrorCodeNum, "MODE has no numeric values")
	}
	freq := make(map[float64]int, len(nums))
	for _, n := range nums {
		freq[n]++
	}
	best, bestCount := 0.0, 0
	for n, c := range freq {
		if c > bestCount || (c == bestCount && n < best) {
			best, bestCount = n, c
		}
	}
	if bestCount == 1 {
		return cells.Value{}, newError(cells.ErrorCodeNA, "MODE: no value appears more than once")
	}
	return cells.Number(best), nil
}

func (bf *Functions) IF(values []cells.Value) (cells.Value, error) {
	if len(values) < 2 || len(values) > 3 {
		return cells.Value{}, newError(cells.ErrorCodeNA, "IF requires 2 or 3 arguments")
	}
	if values[0].IsError() {
		return values[0], nil
	}
	if isTruthy(values[0]) {
		return values[1], nil
	}
	if len(values) == 3 {
		return values[2], nil
	}
	return cells.Bool(false), nil
}

func (bf *Functions) AND(values []cells.Value) (cells.Value, error) {
	if v, ok := firstError(values); ok {
		return v, nil
	}
	for _, v := range values {
		if !isTruthy(v) {
			return cells.Bool(false), nil
		}
	}
	return cells.Bool(true), nil
}

func (bf *Functions) OR(values []cells.Value) (cells.Value, error) {
	if v, ok := firstError(values); ok {
		return v, nil
	}
	for _, v := range values {
		if isTruthy(v) {
			return cells.Bool(true), nil
		}
	}
	return cells.Bool(false), nil
}

func (bf *Functions) CONCATENATE(values []cells.Value) (cells.Value, error) {
	if v, ok := firstError(values); ok {
		return v, nil
	}
	var b strings.Builder
	for _, v := range values {
		b.WriteString(toText(v))
	}
	return cells.Text(b.String()), nil
}

func (bf *Functions) ROUND(values []cells.Value) (cells.Value, error) {
	if len(values) == 1 {
		values = append(values, cells.Number(0))
	}
	return binary("ROUND", values, func(n, places float64) float64 {
		multiplier := math.Pow(10, math.Trunc(places))
		return math.Round(n*multiplier) / multiplier
	})
}

// MOD takes the sign of the divisor
func (bf *Functions) MOD(values []cells.Value) (cells.Value, error) {
	if len(values) == 2 {
		if d, ok := toNumber(values[1]); ok && d == 0 && !values[0].IsError() {
			return cells.Value{}, newError(cells.ErrorCodeDiv0, "division by zero")
		}
	}
	return binary("MOD", values, func(n, d float64) float64 {
		return n - d*math.Floor(n/d)
	})
}
