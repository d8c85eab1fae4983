package formula

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/vogtb/go-spreadsheet/packages/cells"
	"github.com/vogtb/go-spreadsheet/packages/grid"
)

// Node is a parsed formula. references are stored relative to the cell the
// formula was parsed at, so one tree serves every cell holding the same
// relative formula.
type Node interface {
	Eval(ctx *evalContext) (operand, error)
	// Render returns the formula text as it reads at the given cell.
	Render(at grid.Point) string
	// Key returns an anchor independent normalized form of the tree.
	Key() string
}

// operand is what a node evaluates to: a scalar value or, for references,
// an area of cells.
type operand struct {
	value cells.Value
	area  *area
}

type area struct {
	sheet uint32
	rect  grid.Rect
}

func scalar(v cells.Value) operand { return operand{value: v} }

// reference is one end of a cell reference. relative parts hold the offset
// from the formula's cell, absolute parts hold the 1-based index.
type reference struct {
	Row, Column       int
	RowAbs, ColumnAbs bool
}

// parseReference parses "B3", "$B$3", "B$3" relative to at.
func parseReference(s string, at grid.Point) (reference, error) {
	var r reference
	i := 0
	if i < len(s) && s[i] == '$' {
		r.ColumnAbs = true
		i++
	}
	start := i
	for i < len(s) && isAlpha(rune(s[i])) {
		i++
	}
	col, err := grid.ColumnNumber(s[start:i])
	if err != nil {
		return r, err
	}
	if i < len(s) && s[i] == '$' {
		r.RowAbs = true
		i++
	}
	row, err := strconv.Atoi(s[i:])
	if err != nil || row < 1 || row > grid.MaxRow {
		return r, fmt.Errorf("%w: %s", grid.ErrInvalidAddress, s)
	}
	r.Row, r.Column = row, col
	if !r.RowAbs {
		r.Row -= at.Row
	}
	if !r.ColumnAbs {
		r.Column -= at.Column
	}
	return r, nil
}

// resolve returns the point referenced from at. ok is false when the
// reference falls off the grid.
func (r reference) resolve(at grid.Point) (grid.Point, bool) {
	p := grid.Point{Row: r.Row, Column: r.Column}
	if !r.RowAbs {
		p.Row += at.Row
	}
	if !r.ColumnAbs {
		p.Column += at.Column
	}
	return p, p.IsValid()
}

func (r reference) render(at grid.Point) (string, bool) {
	p, ok := r.resolve(at)
	if !ok {
		return cells.ErrorCodeRef.String(), false
	}
	var b strings.Builder
	if r.ColumnAbs {
		b.WriteByte('$')
	}
	b.WriteString(grid.ColumnName(p.Column))
	if r.RowAbs {
		b.WriteByte('$')
	}
	b.WriteString(strconv.Itoa(p.Row))
	return b.String(), true
}

// key renders the reference in R1C1 notation
func (r reference) key() string {
	part := func(prefix string, n int, abs bool) string {
		if abs {
			return prefix + strconv.Itoa(n)
		}
		return prefix + "[" + strconv.Itoa(n) + "]"
	}
	return part("R", r.Row, r.RowAbs) + part("C", r.Column, r.ColumnAbs)
}

// quoteSheet renders a sheet name as a formula prefix
func quoteSheet(name string) string {
	if name == "" {
		return ""
	}
	plain := !isCell(name) && !isDigit(rune(name[0]))
	for _, ch := range name {
		if !isAlpha(ch) && !isDigit(ch) && ch != charUnderscore && ch != charPeriod {
			plain = false
			break
		}
	}
	if plain {
		return name + "!"
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'!"
}

// StringNode represents a string literal
type StringNode struct {
	Value string
}

func (n *StringNode) Eval(*evalContext) (operand, error) { return scalar(cells.Text(n.Value)), nil }

func (n *StringNode) Render(grid.Point) string {
	return `"` + strings.ReplaceAll(n.Value, `"`, `""`) + `"`
}

func (n *StringNode) Key() string { return n.Render(grid.Point{}) }

// NumberNode represents a numeric literal
type NumberNode struct {
	Value float64
}

func (n *NumberNode) Eval(*evalContext) (operand, error) { return scalar(cells.Number(n.Value)), nil }

func (n *NumberNode) Render(grid.Point) string {
	return strconv.FormatFloat(n.Value, 'g', -1, 64)
}

func (n *NumberNode) Key() string { return n.Render(grid.Point{}) }

// BooleanNode represents TRUE or FALSE
type BooleanNode struct {
	Value bool
}

func (n *BooleanNode) Eval(*evalContext) (operand, error) { return scalar(cells.Bool(n.Value)), nil }

func (n *BooleanNode) Render(grid.Point) string {
	if n.Value {
		return "TRUE"
	}
	return "FALSE"
}

func (n *BooleanNode) Key() string { return n.Render(grid.Point{}) }

// ErrorNode represents an error literal such as #N/A
type ErrorNode struct {
	Code cells.ErrorCode
}

func (n *ErrorNode) Eval(*evalContext) (operand, error) { return scalar(cells.ErrorValue(n.Code)), nil }

func (n *ErrorNode) Render(grid.Point) string { return n.Code.String() }

func (n *ErrorNode) Key() string { return n.Code.String() }

// CellRefNode represents a single cell reference. Sheet is empty for the
// formula's own sheet.
type CellRefNode struct {
	Sheet string
	Ref   reference
}

func (n *CellRefNode) Eval(ctx *evalContext) (operand, error) {
	sheet, err := ctx.sheetID(n.Sheet)
	if err != nil {
		return operand{}, err
	}
	p, ok := n.Ref.resolve(ctx.at)
	if !ok {
		return operand{}, newError(cells.ErrorCodeRef, "reference off the grid")
	}
	return operand{area: &area{sheet: sheet, rect: grid.CellRect(p)}}, nil
}

func (n *CellRefNode) Render(at grid.Point) string {
	s, _ := n.Ref.render(at)
	return quoteSheet(n.Sheet) + s
}

func (n *CellRefNode) Key() string { return strings.ToUpper(quoteSheet(n.Sheet)) + n.Ref.key() }

// RangeNode represents a rectangular range of cells
type RangeNode struct {
	Sheet    string
	From, To reference
}

func (n *RangeNode) rect(at grid.Point) (grid.Rect, bool) {
	a, ok1 := n.From.resolve(at)
	b, ok2 := n.To.resolve(at)
	if !ok1 || !ok2 {
		return grid.Rect{}, false
	}
	return grid.NewRect(a, b), true
}

func (n *RangeNode) Eval(ctx *evalContext) (operand, error) {
	sheet, err := ctx.sheetID(n.Sheet)
	if err != nil {
		return operand{}, err
	}
	rect, ok := n.rect(ctx.at)
	if !ok {
		return operand{}, newError(cells.ErrorCodeRef, "range off the grid")
	}
	return operand{area: &area{sheet: sheet, rect: rect}}, nil
}

func (n *RangeNode) Render(at grid.Point) string {
	from, ok := n.From.render(at)
	if !ok {
		return from
	}
	to, ok := n.To.render(at)
	if !ok {
		return to
	}
	return quoteSheet(n.Sheet) + from + ":" + to
}

func (n *RangeNode) Key() string {
	return strings.ToUpper(quoteSheet(n.Sheet)) + n.From.key() + ":" + n.To.key()
}

// NameNode represents a defined name
type NameNode struct {
	Name string
}

func (n *NameNode) Eval(ctx *evalContext) (operand, error) {
	sheet, rect, ok := ctx.src.Name(n.Name)
	if !ok {
		return operand{}, newError(cells.ErrorCodeName, "name %q is not defined", n.Name)
	}
	return operand{area: &area{sheet: sheet, rect: rect}}, nil
}

func (n *NameNode) Render(grid.Point) string { return n.Name }

func (n *NameNode) Key() string { return strings.ToUpper(n.Name) }

// BinaryOp represents binary operators in AST nodes
type BinaryOp int

const (
	BinOpAdd BinaryOp = iota
	BinOpSubtract
	BinOpMultiply
	BinOpDivide
	BinOpPower
	BinOpConcat
	BinOpEqual
	BinOpNotEqual
	BinOpLess
	BinOpLessEqual
	BinOpGreater
	BinOpGreaterEqual
)

var binaryOpText = [...]string{"+", "-", "*", "/", "^", "&", "=", "<>", "<", "<=", ">", ">="}

func (op BinaryOp) String() string { return binaryOpText[op] }

// BinaryOpNode represents a binary operation
type BinaryOpNode struct {
	Op          BinaryOp
	Left, Right Node
}

func (n *BinaryOpNode) Eval(ctx *evalContext) (operand, error) {
	left, err := ctx.evalScalar(n.Left)
	if err != nil {
		return operand{}, err
	}
	right, err := ctx.evalScalar(n.Right)
	if err != nil {
		return operand{}, err
	}

	// propagate errors
	if left.IsError() {
		return scalar(left), nil
	}
	if right.IsError() {
		return scalar(right), nil
	}

	switch n.Op {
	case BinOpConcat:
		return scalar(cells.Text(toText(left) + toText(right))), nil
	case BinOpEqual:
		return scalar(cells.Bool(compareValues(left, right) == 0)), nil
	case BinOpNotEqual:
		return scalar(cells.Bool(compareValues(left, right) != 0)), nil
	case BinOpLess:
		return scalar(cells.Bool(compareValues(left, right) < 0)), nil
	case BinOpLessEqual:
		return scalar(cells.Bool(compareValues(left, right) <= 0)), nil
	case BinOpGreater:
		return scalar(cells.Bool(compareValues(left, right) > 0)), nil
	case BinOpGreaterEqual:
		return scalar(cells.Bool(compareValues(left, right) >= 0)), nil
	}

	l, lok := toNumber(left)
	r, rok := toNumber(right)
	if !lok || !rok {
		return operand{}, newError(cells.ErrorCodeValue, "%s requires numeric values", n.Op)
	}
	switch n.Op {
	case BinOpAdd:
		return scalar(cells.Number(l + r)), nil
	case BinOpSubtract:
		return scalar(cells.Number(l - r)), nil
	case BinOpMultiply:
		return scalar(cells.Number(l * r)), nil
	case BinOpDivide:
		if r == 0 {
			return operand{}, newError(cells.ErrorCodeDiv0, "division by zero")
		}
		return scalar(cells.Number(l / r)), nil
	case BinOpPower:
		return scalar(cells.Number(math.Pow(l, r))), nil
	}
	return operand{}, newError(cells.ErrorCodeValue, "unknown operator")
}

func (n *BinaryOpNode) Render(at grid.Point) string {
	return n.Left.Render(at) + n.Op.String() + n.Right.Render(at)
}

func (n *BinaryOpNode) Key() string {
	return "(" + n.Left.Key() + n.Op.String() + n.Right.Key() + ")"
}

// UnaryOp represents unary operators in AST nodes
type UnaryOp int

const (
	UnaryOpPlus UnaryOp = iota
	UnaryOpMinus
	UnaryOpPercent
)

// UnaryOpNode represents a unary operation
type UnaryOpNode struct {
	Op      UnaryOp
	Operand Node
}

func (n *UnaryOpNode) Eval(ctx *evalContext) (operand, error) {
	v, err := ctx.evalScalar(n.Operand)
	if err != nil {
		return operand{}, err
	}
	if v.IsError() {
		return scalar(v), nil
	}
	num, ok := toNumber(v)
	if !ok {
		return operand{}, newError(cells.ErrorCodeValue, "unary operator requires a numeric value")
	}
	switch n.Op {
	case UnaryOpMinus:
		num = -num
	case UnaryOpPercent:
		num /= 100
	}
	return scalar(cells.Number(num)), nil
}

func (n *UnaryOpNode) Render(at grid.Point) string {
	switch n.Op {
	case UnaryOpMinus:
		return "-" + n.Operand.Render(at)
	case UnaryOpPercent:
		return n.Operand.Render(at) + "%"
	}
	return "+" + n.Operand.Render(at)
}

func (n *UnaryOpNode) Key() string {
	switch n.Op {
	case UnaryOpMinus:
		return "-" + n.Operand.Key()
	case UnaryOpPercent:
		return "(" + n.Operand.Key() + "%)"
	}
	return "+" + n.Operand.Key()
}

// ParenNode keeps explicit parentheses so that rendering round trips.
type ParenNode struct {
	Inner Node
}

func (n *ParenNode) Eval(ctx *evalContext) (operand, error) { return n.Inner.Eval(ctx) }

func (n *ParenNode) Render(at grid.Point) string { return "(" + n.Inner.Render(at) + ")" }

func (n *ParenNode) Key() string { return n.Inner.Key() }

// FunctionCallNode represents a function call
type FunctionCallNode struct {
	Name string
	Args []Node
}

func (n *FunctionCallNode) Eval(ctx *evalContext) (operand, error) {
	args := make([]operand, len(n.Args))
	for i, argNode := range n.Args {
		arg, err := argNode.Eval(ctx)
		if err != nil {
			// spreadsheet errors are passed to the function as values,
			// functions decide how to handle them
			v, err := asValue(err)
			if err != nil {
				return operand{}, err
			}
			arg = scalar(v)
		}
		args[i] = arg
	}
	v, err := ctx.functions.Call(ctx, n.Name, args)
	if err != nil {
		return operand{}, err
	}
	return scalar(v), nil
}

func (n *FunctionCallNode) renderArgs(fn func(Node) string) string {
	args := make([]string, len(n.Args))
	for i, arg := range n.Args {
		args[i] = fn(arg)
	}
	return n.Name + "(" + strings.Join(args, ",") + ")"
}

func (n *FunctionCallNode) Render(at grid.Point) string {
	return n.renderArgs(func(arg Node) string { return arg.Render(at) })
}

func (n *FunctionCallNode) Key() string {
	return n.renderArgs(Node.Key)
}

// Walk calls fn for n and every node below it, depth first.
func Walk(n Node, fn func(Node)) {
	fn(n)
	switch n := n.(type) {
	case *BinaryOpNode:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *UnaryOpNode:
		Walk(n.Operand, fn)
	case *ParenNode:
		Walk(n.Inner, fn)
	case *FunctionCallNode:
		for _, arg := range n.Args {
			Walk(arg, fn)
		}
	}
}
