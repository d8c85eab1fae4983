package spreadsheet

import (
	"maps"
	"slices"

	"github.com/vogtb/go-spreadsheet/packages/cells"
)

// RunnableWorkbook provides a chainable API over a workbook. the first
// error stops every later step and is kept for Run or Error.
type RunnableWorkbook struct {
	wb  *Workbook
	err error
}

// NewRunnableWorkbook creates a RunnableWorkbook over a new workbook
func NewRunnableWorkbook(opts ...Option) *RunnableWorkbook {
	return &RunnableWorkbook{wb: New(opts...)}
}

// Set writes a cell (chainable)
func (r *RunnableWorkbook) Set(ref string, value any) *RunnableWorkbook {
	if r.err != nil {
		return r
	}
	r.err = r.wb.Set(ref, value)
	return r
}

// SetBatch writes several cells in address order (chainable)
func (r *RunnableWorkbook) SetBatch(values map[string]any) *RunnableWorkbook {
	for _, ref := range slices.Sorted(maps.Keys(values)) {
		if r.Set(ref, values[ref]); r.err != nil {
			break
		}
	}
	return r
}

// Remove clears a cell (chainable)
func (r *RunnableWorkbook) Remove(ref string) *RunnableWorkbook {
	if r.err != nil {
		return r
	}
	r.err = r.wb.Remove(ref)
	return r
}

// AddWorksheet adds a worksheet (chainable)
func (r *RunnableWorkbook) AddWorksheet(name string) *RunnableWorkbook {
	if r.err != nil {
		return r
	}
	_, r.err = r.wb.AddWorksheet(name)
	return r
}

// RemoveWorksheet removes a worksheet (chainable)
func (r *RunnableWorkbook) RemoveWorksheet(name string) *RunnableWorkbook {
	if r.err != nil {
		return r
	}
	r.err = r.wb.RemoveWorksheet(name)
	return r
}

// RenameWorksheet renames a worksheet (chainable)
func (r *RunnableWorkbook) RenameWorksheet(oldName, newName string) *RunnableWorkbook {
	if r.err != nil {
		return r
	}
	r.err = r.wb.RenameWorksheet(oldName, newName)
	return r
}

// DefineName defines a name (chainable)
func (r *RunnableWorkbook) DefineName(name, ref string) *RunnableWorkbook {
	if r.err != nil {
		return r
	}
	r.err = r.wb.DefineName(name, ref)
	return r
}

// Calculate recalculates stale formulas (chainable)
func (r *RunnableWorkbook) Calculate() *RunnableWorkbook {
	if r.err != nil {
		return r
	}
	r.err = r.wb.Calculate()
	return r
}

// Then runs fn unless an error is pending
func (r *RunnableWorkbook) Then(fn func(*RunnableWorkbook) *RunnableWorkbook) *RunnableWorkbook {
	if r.err != nil {
		return r
	}
	return fn(r)
}

// Must panics if an error is pending (chainable)
func (r *RunnableWorkbook) Must() *RunnableWorkbook {
	if r.err != nil {
		panic(r.err)
	}
	return r
}

// Value reads a cell. it returns a blank value once an error is pending.
func (r *RunnableWorkbook) Value(ref string) cells.Value {
	if r.err != nil {
		return cells.Blank()
	}
	v, err := r.wb.Get(ref)
	if err != nil {
		r.err = err
	}
	return v
}

// Log writes the value of a cell to the workbook's logger (chainable)
func (r *RunnableWorkbook) Log(ref string) *RunnableWorkbook {
	if v := r.Value(ref); r.err == nil {
		r.wb.logger.Info("cell", "ref", ref, "kind", v.Kind().String(), "value", v.String())
	}
	return r
}

// Error returns the pending error
func (r *RunnableWorkbook) Error() error { return r.err }

// Workbook returns the workbook without checking the error state
func (r *RunnableWorkbook) Workbook() *Workbook { return r.wb }

// Run calculates once more and returns the workbook, or the pending error.
// it is typically the last call of a chain.
func (r *RunnableWorkbook) Run() (*Workbook, error) {
	if r.Calculate(); r.err != nil {
		return nil, r.err
	}
	return r.wb, nil
}

// RunOrPanic is Run for examples and tests that should fail fast
func (r *RunnableWorkbook) RunOrPanic() *Workbook {
	wb, err := r.Run()
	if err != nil {
		panic(err)
	}
	return wb
}
