package spreadsheet

import (
	"maps"
	"slices"

	"github.com/vogtb/go-spreadsheet/packages/grid"
)

// DefinedName is a workbook level name for a range of cells.
type DefinedName struct {
	Name  string
	Sheet uint32
	Rect  grid.Rect
}

// NameTable manages defined names. lookups are case insensitive.
type NameTable struct {
	defined map[string]DefinedName // folded name -> definition
}

// NewNameTable creates a new name table
func NewNameTable() *NameTable {
	return &NameTable{defined: make(map[string]DefinedName)}
}

// Define defines or redefines a name
func (nt *NameTable) Define(name string, sheet uint32, rect grid.Rect) {
	nt.defined[fold(name)] = DefinedName{Name: name, Sheet: sheet, Rect: rect}
}

// Undefine removes a name. returns false if it was not defined.
func (nt *NameTable) Undefine(name string) bool {
	if _, exists := nt.defined[fold(name)]; !exists {
		return false
	}
	delete(nt.defined, fold(name))
	return true
}

// Lookup returns the definition of name
func (nt *NameTable) Lookup(name string) (DefinedName, bool) {
	d, exists := nt.defined[fold(name)]
	return d, exists
}

// OnSheet returns the names defined over sheet
func (nt *NameTable) OnSheet(sheet uint32) []string {
	var out []string
	for _, d := range nt.defined {
		if d.Sheet == sheet {
			out = append(out, d.Name)
		}
	}
	slices.Sort(out)
	return out
}

// All returns every definition sorted by folded name
func (nt *NameTable) All() []DefinedName {
	out := make([]DefinedName, 0, len(nt.defined))
	for _, key := range slices.Sorted(maps.Keys(nt.defined)) {
		out = append(out, nt.defined[key])
	}
	return out
}

// Count returns the number of defined names
func (nt *NameTable) Count() int { return len(nt.defined) }
