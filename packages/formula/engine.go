package formula

import (
	"fmt"
	"maps"
	"slices"

	"github.com/vogtb/go-spreadsheet/packages/cells"
	"github.com/vogtb/go-spreadsheet/packages/grid"
)

// binding is a formula registered with the engine at its anchor cell. data
// tables have no tree and id 0.
type binding struct {
	id uint32
	f  *cells.Formula
}

// Engine parses, registers and evaluates formulas for a workbook. it owns
// the workbook's recalculation counter, which starts at 1 and only grows.
type Engine struct {
	src       Source
	functions *Functions
	graph     *DependencyGraph
	table     *FormulaTable
	bindings  map[grid.BookPoint]*binding
	counter   uint64
}

var _ cells.Engine = (*Engine)(nil)

// NewEngine creates an engine reading cells through src. a nil functions
// selects the default builtins.
func NewEngine(src Source, functions *Functions) *Engine {
	if functions == nil {
		functions = NewFunctions(nil, nil)
	}
	return &Engine{
		src:       src,
		functions: functions,
		graph:     NewDependencyGraph(),
		table:     NewFormulaTable(),
		bindings:  make(map[grid.BookPoint]*binding),
		counter:   1,
	}
}

// Counter returns the current recalculation counter
func (e *Engine) Counter() uint64 { return e.counter }

// Bump advances the recalculation counter and returns the new value
func (e *Engine) Bump() uint64 {
	e.counter++
	return e.counter
}

// AddFormula parses f at at and registers its dependencies.
func (e *Engine) AddFormula(at grid.BookPoint, f *cells.Formula) error {
	ast, err := Parse(f.Text, at.Point)
	if err != nil {
		return err
	}
	e.bind(at, &binding{id: e.table.Intern(ast, at), f: f})
	return nil
}

// AddArrayFormula registers a range formula once, at the top-left cell of
// rect. data tables are registered without a tree; their results are
// computed elsewhere and served from the cache.
func (e *Engine) AddArrayFormula(sheet uint32, rect grid.Rect, f *cells.Formula) error {
	at := grid.BookPoint{Sheet: sheet, Point: rect.TopLeft()}
	if f.Kind == cells.DataTableFormula {
		e.bind(at, &binding{f: f})
		return nil
	}
	return e.AddFormula(at, f)
}

func (e *Engine) bind(at grid.BookPoint, b *binding) {
	if old, exists := e.bindings[at]; exists {
		e.unbind(at, old)
	}
	e.bindings[at] = b
	e.graph.SetFormula(at, true)
	e.register(at, b)

	b.f.Recalc.ModifiedAt = e.Bump()
	b.f.Recalc.Forget()
	e.stamp(at, b.f)
}

// stamp records a change of the cells the formula at at shows. a range
// formula shows its whole range.
func (e *Engine) stamp(at grid.BookPoint, f *cells.Formula) {
	if f.IsRange() {
		e.graph.StampArea(Area{Sheet: at.Sheet, Rect: f.Range}, e.counter)
		return
	}
	e.graph.Stamp(at, e.counter)
}

// register records the cells, areas and volatile functions the formula at
// at reads. references to worksheets that do not exist are skipped.
func (e *Engine) register(at grid.BookPoint, b *binding) {
	ast, ok := e.table.AST(b.id)
	if !ok {
		return
	}
	Walk(ast, func(n Node) {
		switch n := n.(type) {
		case *CellRefNode:
			sheet, ok := e.resolveSheet(at.Sheet, n.Sheet)
			p, valid := n.Ref.resolve(at.Point)
			if ok && valid {
				e.graph.AddCellDependency(at, grid.BookPoint{Sheet: sheet, Point: p})
			}
		case *RangeNode:
			sheet, ok := e.resolveSheet(at.Sheet, n.Sheet)
			rect, valid := n.rect(at.Point)
			if ok && valid {
				e.graph.AddRangeDependency(at, Area{Sheet: sheet, Rect: rect})
			}
		case *NameNode:
			if e.src == nil {
				return
			}
			if sheet, rect, ok := e.src.Name(n.Name); ok {
				e.graph.AddRangeDependency(at, Area{Sheet: sheet, Rect: rect})
			}
		case *FunctionCallNode:
			if IsVolatile(n.Name) {
				e.graph.MarkVolatile(at, true)
			}
		}
	})
}

func (e *Engine) resolveSheet(own uint32, name string) (uint32, bool) {
	if name == "" {
		return own, true
	}
	if e.src == nil {
		return 0, false
	}
	return e.src.SheetID(name)
}

func (e *Engine) unbind(at grid.BookPoint, b *binding) {
	if b.id != 0 {
		e.table.Release(b.id, at)
	}
	e.graph.ClearDependencies(at)
	e.graph.MarkVolatile(at, false)
	delete(e.bindings, at)
}

// RemoveFormula unregisters the formula at at. dependents of the cell see
// the change.
func (e *Engine) RemoveFormula(at grid.BookPoint, f *cells.Formula) {
	b, exists := e.bindings[at]
	if !exists || b.f != f {
		return
	}
	e.unbind(at, b)
	e.graph.SetFormula(at, false)
	e.Bump()
	e.stamp(at, f)
}

// TranslateFormula renders text, read at from, as it reads at to. relative
// references move with the cell, $ references stay. references pushed off
// the grid render as #REF!.
func (e *Engine) TranslateFormula(text string, from, to grid.Point) (string, error) {
	ast, err := Parse(text, from)
	if err != nil {
		return "", err
	}
	return ast.Render(to), nil
}

// Touch records a change of the content of bp and returns the new counter.
func (e *Engine) Touch(bp grid.BookPoint) uint64 {
	v := e.Bump()
	e.graph.Stamp(bp, v)
	return v
}

// TouchSheet records a change of every cell of sheet, as after a structural
// edit.
func (e *Engine) TouchSheet(sheet uint32) uint64 {
	v := e.Bump()
	e.graph.StampSheet(sheet, v)
	return v
}

// TouchName re-registers the formulas using a defined name after the name
// was defined, changed or removed.
func (e *Engine) TouchName(name string) {
	for _, at := range e.table.CellsUsingName(name) {
		e.rebind(at)
	}
}

// Rebind re-registers every formula, as after worksheets were added,
// renamed or removed.
func (e *Engine) Rebind() {
	for _, at := range slices.SortedFunc(maps.Keys(e.bindings), comparePoints) {
		e.rebind(at)
	}
}

func (e *Engine) rebind(at grid.BookPoint) {
	b, exists := e.bindings[at]
	if !exists {
		return
	}
	e.graph.ClearDependencies(at)
	e.graph.MarkVolatile(at, false)
	e.graph.SetFormula(at, true)
	e.register(at, b)
	b.f.Recalc.ModifiedAt = e.Bump()
	b.f.Recalc.Forget()
}

// Version returns the counter value of the last recorded change of bp
func (e *Engine) Version(bp grid.BookPoint) uint64 { return e.graph.Version(bp) }

// AreaVersion returns the counter value of the last change inside area
func (e *Engine) AreaVersion(area Area) uint64 { return e.graph.AreaVersion(area) }

// Precedents returns the cells the formula at at reads
func (e *Engine) Precedents(at grid.BookPoint) []grid.BookPoint {
	return e.graph.DirectPrecedents(at)
}

// Dependents returns the formula cells reading at directly
func (e *Engine) Dependents(at grid.BookPoint) []grid.BookPoint {
	return e.graph.DirectDependents(at)
}

// RangePrecedents returns the areas the formula at at reads
func (e *Engine) RangePrecedents(at grid.BookPoint) []Area {
	return e.graph.RangePrecedents(at)
}

// AffectedCells returns every formula cell that reads bp directly or
// indirectly
func (e *Engine) AffectedCells(bp grid.BookPoint) []grid.BookPoint {
	return e.graph.AffectedCells(bp)
}

// IsVolatile reports whether the formula at at calls a volatile function
func (e *Engine) IsVolatile(at grid.BookPoint) bool { return e.graph.IsVolatile(at) }

// CalculationOrder returns the registered formula anchors ordered so that
// precedents come first.
func (e *Engine) CalculationOrder() ([]grid.BookPoint, bool) {
	return e.graph.CalculationOrder()
}

// FormulaCount returns the number of registered formulas and the number of
// distinct parsed trees they share.
func (e *Engine) FormulaCount() (formulas, trees int) {
	return len(e.bindings), e.table.Len()
}

func (e *Engine) lookup(at grid.BookPoint, f *cells.Formula) (Node, error) {
	b, exists := e.bindings[at]
	if !exists || b.f != f {
		return nil, fmt.Errorf("no formula registered at %s", at)
	}
	ast, ok := e.table.AST(b.id)
	if !ok {
		return nil, fmt.Errorf("formula at %s has no expression", at)
	}
	return ast, nil
}

// Evaluate computes the formula f registered at at. an area result is
// reduced by implicit intersection with the formula's cell.
func (e *Engine) Evaluate(at grid.BookPoint, f *cells.Formula) (cells.Value, error) {
	ast, err := e.lookup(at, f)
	if err != nil {
		return cells.Value{}, err
	}
	ctx := &evalContext{src: e.src, functions: e.functions, sheet: at.Sheet, at: at.Point}
	return ctx.evalScalar(ast)
}

// EvaluateArray computes every element of the range formula f on sheet,
// in row-major order. data tables return their cached results.
func (e *Engine) EvaluateArray(sheet uint32, f *cells.Formula) ([]cells.Value, error) {
	rect := f.Range
	if f.Kind == cells.DataTableFormula {
		out := make([]cells.Value, rect.Width()*rect.Height())
		copy(out, f.Recalc.Results)
		return out, nil
	}
	at := grid.BookPoint{Sheet: sheet, Point: rect.TopLeft()}
	ast, err := e.lookup(at, f)
	if err != nil {
		return nil, err
	}
	out := make([]cells.Value, 0, rect.Width()*rect.Height())
	for r := 0; r < rect.Height(); r++ {
		for c := 0; c < rect.Width(); c++ {
			ctx := &evalContext{
				src:       e.src,
				functions: e.functions,
				sheet:     sheet,
				at:        at.Point,
				array:     true,
				elem:      grid.Point{Row: r, Column: c},
			}
			v, err := ctx.evalScalar(ast)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
	}
	return out, nil
}

// PrecedentCells parses text at at on sheet and returns the single cells it
// refers to, sorted. ranges and names are not expanded.
func (e *Engine) PrecedentCells(sheet uint32, at grid.Point, text string) ([]grid.BookPoint, error) {
	ast, err := Parse(text, at)
	if err != nil {
		return nil, err
	}
	seen := map[grid.BookPoint]struct{}{}
	var refErr error
	Walk(ast, func(n Node) {
		ref, ok := n.(*CellRefNode)
		if !ok || refErr != nil {
			return
		}
		id, ok := e.resolveSheet(sheet, ref.Sheet)
		if !ok {
			refErr = fmt.Errorf("worksheet %q not found", ref.Sheet)
			return
		}
		if p, valid := ref.Ref.resolve(at); valid {
			seen[grid.BookPoint{Sheet: id, Point: p}] = struct{}{}
		}
	})
	if refErr != nil {
		return nil, refErr
	}
	return sortedPoints(maps.Keys(seen)), nil
}
