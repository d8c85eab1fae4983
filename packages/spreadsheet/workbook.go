// Package spreadsheet ties worksheets, their cell storage and the
// calculation engine together into a workbook.
package spreadsheet

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"

	"github.com/vogtb/go-spreadsheet/packages/cells"
	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/grid"
	"github.com/vogtb/go-spreadsheet/packages/sst"
	"github.com/vogtb/go-spreadsheet/packages/styles"
)

// Workbook owns the state shared by its worksheets: the text table, the
// style repository, the calculation engine and the recalculation counter
// kept by it. a workbook is not safe for concurrent use.
type Workbook struct {
	logger     *slog.Logger
	text       *sst.Table
	styles     *styles.Repository
	engine     *formula.Engine
	worksheets *WorksheetTable
	names      *NameTable
}

type options struct {
	logger *slog.Logger
	clock  formula.Clock
	rng    formula.RandomGenerator
}

// Option configures a workbook
type Option func(*options)

// WithLogger sets the logger. the default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithClock sets the clock read by NOW and TODAY
func WithClock(clock formula.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithRandom sets the generator read by RAND
func WithRandom(rng formula.RandomGenerator) Option {
	return func(o *options) { o.rng = rng }
}

// New creates an empty workbook
func New(opts ...Option) *Workbook {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	wb := &Workbook{
		logger:     o.logger,
		text:       sst.New(),
		styles:     styles.NewRepository(),
		worksheets: NewWorksheetTable(),
		names:      NewNameTable(),
	}
	wb.engine = formula.NewEngine(wb, formula.NewFunctions(o.clock, o.rng))
	return wb
}

// Logger returns the workbook's logger
func (wb *Workbook) Logger() *slog.Logger { return wb.logger }

// Text returns the shared text table
func (wb *Workbook) Text() *sst.Table { return wb.text }

// Styles returns the style repository
func (wb *Workbook) Styles() *styles.Repository { return wb.styles }

// Engine returns the calculation engine
func (wb *Workbook) Engine() *formula.Engine { return wb.engine }

// Counter returns the recalculation counter
func (wb *Workbook) Counter() uint64 { return wb.engine.Counter() }

func validName(name string) error {
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, "[]:*?/\\") || len([]rune(name)) > 31 {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// AddWorksheet appends a worksheet called name
func (wb *Workbook) AddWorksheet(name string) (*Worksheet, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	if wb.worksheets.Contains(name) {
		return nil, fmt.Errorf("%w: %s", ErrWorksheetExists, name)
	}
	ws := &Worksheet{wb: wb}
	ws.id = wb.worksheets.Define(name, ws)
	ws.cells = cells.NewCollection(ws.id, wb.text, wb.engine)

	// formulas naming the new worksheet can now resolve it
	wb.engine.Rebind()
	wb.logger.Debug("added worksheet", "name", name, "id", ws.id)
	return ws, nil
}

// Worksheet returns the worksheet called name
func (wb *Workbook) Worksheet(name string) (*Worksheet, error) {
	ws, ok := wb.worksheets.GetByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorksheetNotFound, name)
	}
	return ws, nil
}

// WorksheetByID returns the worksheet with the given ID
func (wb *Workbook) WorksheetByID(id uint32) (*Worksheet, bool) {
	return wb.worksheets.Get(id)
}

// Worksheets returns the worksheets in creation order
func (wb *Workbook) Worksheets() []*Worksheet { return wb.worksheets.All() }

// RenameWorksheet renames a worksheet. formulas keep their text, so
// references through the old name stop resolving.
func (wb *Workbook) RenameWorksheet(oldName, newName string) error {
	if err := validName(newName); err != nil {
		return err
	}
	if !wb.worksheets.Contains(oldName) {
		return fmt.Errorf("%w: %s", ErrWorksheetNotFound, oldName)
	}
	if wb.worksheets.Contains(newName) && fold(oldName) != fold(newName) {
		return fmt.Errorf("%w: %s", ErrWorksheetExists, newName)
	}
	wb.worksheets.Rename(oldName, newName)
	wb.engine.Rebind()
	wb.logger.Debug("renamed worksheet", "from", oldName, "to", newName)
	return nil
}

// RemoveWorksheet deletes a worksheet and everything on it. names defined
// over it are removed too.
func (wb *Workbook) RemoveWorksheet(name string) error {
	ws, ok := wb.worksheets.GetByName(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrWorksheetNotFound, name)
	}
	// releases the text references and unregisters the formulas
	ws.cells.Clear(grid.Sheet())
	for _, n := range wb.names.OnSheet(ws.id) {
		wb.names.Undefine(n)
		wb.engine.TouchName(n)
	}
	wb.engine.TouchSheet(ws.id)
	wb.worksheets.Undefine(name)
	wb.engine.Rebind()
	wb.logger.Debug("removed worksheet", "name", name, "id", ws.id)
	return nil
}

// DefineName defines name over ref, a sheet qualified reference such as
// Sheet1!$A$1:$B$4
func (wb *Workbook) DefineName(name, ref string) error {
	if err := validName(name); err != nil {
		return err
	}
	// a name that reads as a cell address would shadow the cell
	if _, err := grid.ParsePoint(name); err == nil {
		return fmt.Errorf("%w: %q is a cell address", ErrInvalidName, name)
	}
	sheetName, rect, err := formula.ParseReference(ref)
	if err != nil {
		return err
	}
	if sheetName == "" {
		return fmt.Errorf("%w: %q needs a worksheet", ErrInvalidAddress, ref)
	}
	ws, err := wb.Worksheet(sheetName)
	if err != nil {
		return err
	}
	wb.names.Define(name, ws.id, rect)
	wb.engine.TouchName(name)
	return nil
}

// RemoveName removes a defined name
func (wb *Workbook) RemoveName(name string) error {
	if !wb.names.Undefine(name) {
		return fmt.Errorf("%w: %s", ErrNameNotFound, name)
	}
	wb.engine.TouchName(name)
	return nil
}

// Names returns every defined name
func (wb *Workbook) Names() []DefinedName { return wb.names.All() }

// resolve turns a possibly sheet qualified A1 reference into a worksheet
// and a point. an unqualified reference reads the first worksheet.
func (wb *Workbook) resolve(ref string) (*Worksheet, grid.Point, error) {
	sheetName, rect, err := formula.ParseReference(ref)
	if err != nil {
		return nil, grid.Point{}, fmt.Errorf("%w: %s", ErrInvalidAddress, ref)
	}
	if rect.Width() != 1 || rect.Height() != 1 {
		return nil, grid.Point{}, fmt.Errorf("%w: %s is not a single cell", ErrInvalidAddress, ref)
	}
	if sheetName == "" {
		all := wb.worksheets.All()
		if len(all) == 0 {
			return nil, grid.Point{}, fmt.Errorf("%w: workbook is empty", ErrWorksheetNotFound)
		}
		return all[0], rect.TopLeft(), nil
	}
	ws, err := wb.Worksheet(sheetName)
	if err != nil {
		return nil, grid.Point{}, err
	}
	return ws, rect.TopLeft(), nil
}

// Cell returns the cell at ref, such as Sheet1!B2
func (wb *Workbook) Cell(ref string) (*Cell, error) {
	ws, p, err := wb.resolve(ref)
	if err != nil {
		return nil, err
	}
	return ws.CellAt(p), nil
}

// Set writes value at ref. strings starting with '=' are formulas; see
// ToValue for the other accepted types.
func (wb *Workbook) Set(ref string, value any) error {
	c, err := wb.Cell(ref)
	if err != nil {
		return err
	}
	if s, ok := value.(string); ok && strings.HasPrefix(s, "=") {
		return c.SetFormula(s)
	}
	v, err := ToValue(value)
	if err != nil {
		return err
	}
	return c.SetValue(v)
}

// Get reads the value at ref, evaluating a stale formula
func (wb *Workbook) Get(ref string) (cells.Value, error) {
	c, err := wb.Cell(ref)
	if err != nil {
		return cells.Value{}, err
	}
	return c.Value()
}

// Remove clears the cell at ref
func (wb *Workbook) Remove(ref string) error {
	c, err := wb.Cell(ref)
	if err != nil {
		return err
	}
	c.Clear()
	return nil
}

// Calculate evaluates every stale formula in dependency order. circular
// references leave #REF! in the cells involved and are logged, not
// returned.
func (wb *Workbook) Calculate() error {
	order, hasCycle := wb.engine.CalculationOrder()
	if hasCycle {
		wb.logger.Warn("workbook contains circular references")
	}
	var errs []error
	evaluated := 0
	for _, at := range order {
		ws, ok := wb.worksheets.Get(at.Sheet)
		if !ok {
			continue
		}
		f := ws.cells.Formulas.Get(at.Point)
		if f == nil || !wb.needsRecalc(at, f) {
			continue
		}
		evaluated++
		if err := wb.evaluate(at, f); err != nil {
			if errors.Is(err, ErrCircularReference) {
				wb.logger.Warn("circular reference", "cell", wb.describe(at), "err", err)
				continue
			}
			errs = append(errs, fmt.Errorf("calculate %s: %w", wb.describe(at), err))
		}
	}
	wb.logger.Debug("calculated workbook", "formulas", len(order), "evaluated", evaluated)
	return errors.Join(errs...)
}

// describe renders bp with the worksheet name
func (wb *Workbook) describe(bp grid.BookPoint) string {
	if name, ok := wb.worksheets.Name(bp.Sheet); ok {
		return name + "!" + bp.Point.String()
	}
	return bp.String()
}

// Value reads one cell for the engine. cells on removed worksheets read as
// #REF!.
func (wb *Workbook) Value(at grid.BookPoint) (cells.Value, error) {
	ws, ok := wb.worksheets.Get(at.Sheet)
	if !ok {
		return cells.ErrorValue(cells.ErrorCodeRef), nil
	}
	return ws.valueAt(at.Point)
}

// Values yields the values of the used cells of rect for the engine
func (wb *Workbook) Values(sheet uint32, rect grid.Rect) iter.Seq2[cells.Value, error] {
	return func(yield func(cells.Value, error) bool) {
		ws, ok := wb.worksheets.Get(sheet)
		if !ok {
			yield(cells.ErrorValue(cells.ErrorCodeRef), nil)
			return
		}
		for p := range ws.cells.UsedPoints(rect) {
			if !ws.cells.Values.IsUsed(p) && !ws.cells.Formulas.IsUsed(p) {
				continue
			}
			if !yield(ws.valueAt(p)) {
				return
			}
		}
	}
}

// SheetID resolves a worksheet name for the engine
func (wb *Workbook) SheetID(name string) (uint32, bool) { return wb.worksheets.ID(name) }

// SheetName resolves a worksheet ID for the engine
func (wb *Workbook) SheetName(id uint32) (string, bool) { return wb.worksheets.Name(id) }

// Name resolves a defined name for the engine
func (wb *Workbook) Name(name string) (uint32, grid.Rect, bool) {
	d, ok := wb.names.Lookup(name)
	return d.Sheet, d.Rect, ok
}

var _ formula.Source = (*Workbook)(nil)
