package spreadsheet

import (
	"errors"

	"github.com/vogtb/go-spreadsheet/packages/cells"
	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/grid"
)

// needsRecalc reports whether the cached result of the formula f, anchored
// at at, may be out of date. the verdict is remembered until the counter
// moves. a provisional clean verdict is stored while the precedents are
// walked so that a cycle ends the walk.
func (wb *Workbook) needsRecalc(at grid.BookPoint, f *cells.Formula) bool {
	counter := wb.engine.Counter()
	r := &f.Recalc
	if dirty, ok := r.Memo(counter); ok {
		return dirty
	}
	if r.EvaluatedAt == 0 || r.ModifiedAt > r.EvaluatedAt {
		r.Remember(counter, true)
		return true
	}
	if f.Kind == cells.DataTableFormula {
		r.Remember(counter, false)
		return false
	}
	if wb.engine.IsVolatile(at) && r.EvaluatedAt < counter {
		r.Remember(counter, true)
		return true
	}

	r.Remember(counter, false)
	dirty := wb.precedentsChanged(at, r.EvaluatedAt)
	r.Remember(counter, dirty)
	return dirty
}

// precedentsChanged reports whether anything the formula at at reads
// changed after since.
func (wb *Workbook) precedentsChanged(at grid.BookPoint, since uint64) bool {
	for _, p := range wb.engine.Precedents(at) {
		if wb.engine.Version(p) > since {
			return true
		}
		ws, ok := wb.worksheets.Get(p.Sheet)
		if !ok {
			// the worksheet went away
			return true
		}
		if g := ws.cells.Formulas.Get(p.Point); g != nil && wb.formulaChanged(ws, p.Point, g, since) {
			return true
		}
	}
	for _, area := range wb.engine.RangePrecedents(at) {
		if wb.engine.AreaVersion(area) > since {
			return true
		}
		ws, ok := wb.worksheets.Get(area.Sheet)
		if !ok {
			return true
		}
		seen := map[*cells.Formula]struct{}{}
		for p, g := range ws.cells.Formulas.Ascend(area.Rect) {
			if _, done := seen[g]; done {
				continue
			}
			seen[g] = struct{}{}
			if wb.formulaChanged(ws, p, g, since) {
				return true
			}
		}
	}
	return false
}

// formulaChanged reports whether the formula g at p produced a result after
// since or is about to.
func (wb *Workbook) formulaChanged(ws *Worksheet, p grid.Point, g *cells.Formula, since uint64) bool {
	if g.Recalc.EvaluatedAt > since {
		return true
	}
	return wb.needsRecalc(ws.anchor(p, g), g)
}

// evaluate computes f, anchored at at, and caches its results. evaluation
// does not move the counter. a formula reached again while it is being
// evaluated closes a cycle: every formula on it caches #REF! and the
// returned error carries the path.
func (wb *Workbook) evaluate(at grid.BookPoint, f *cells.Formula) error {
	r := &f.Recalc
	if !r.Enter() {
		return &formula.CircularReferenceError{Path: []grid.BookPoint{at}}
	}
	defer r.Leave()

	var results []cells.Value
	var err error
	if f.IsRange() {
		results, err = wb.engine.EvaluateArray(at.Sheet, f)
	} else {
		var v cells.Value
		v, err = wb.engine.Evaluate(at, f)
		results = []cells.Value{v}
	}

	counter := wb.engine.Counter()
	if err != nil {
		var cycle *formula.CircularReferenceError
		if !errors.As(err, &cycle) {
			return err
		}
		cycle.Path = append([]grid.BookPoint{at}, cycle.Path...)
		n := 1
		if f.IsRange() {
			n = f.Range.Width() * f.Range.Height()
		}
		results = make([]cells.Value, n)
		for i := range results {
			results[i] = cells.ErrorValue(cells.ErrorCodeRef)
		}
		r.Results = results
		r.EvaluatedAt = counter
		r.Remember(counter, false)
		return cycle
	}

	r.Results = results
	r.EvaluatedAt = counter
	r.Remember(counter, false)
	return nil
}

// anchor returns the book point a formula found at p is registered at
func (ws *Worksheet) anchor(p grid.Point, f *cells.Formula) grid.BookPoint {
	if f.IsRange() {
		p = f.Master()
	}
	return grid.BookPoint{Sheet: ws.id, Point: p}
}

// valueAt returns the value at p, evaluating a stale formula first
func (ws *Worksheet) valueAt(p grid.Point) (cells.Value, error) {
	f := ws.cells.Formulas.Get(p)
	if f == nil {
		return ws.cells.Values.Get(p), nil
	}
	var err error
	at := ws.anchor(p, f)
	if f.Recalc.Evaluating() || ws.wb.needsRecalc(at, f) {
		err = ws.wb.evaluate(at, f)
	}
	return f.Recalc.Result(p, f.Range, f.Kind), err
}
