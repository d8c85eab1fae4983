package formula

import (
	"maps"
	"slices"
	"strings"

	"github.com/vogtb/go-spreadsheet/packages/grid"
)

// FormulaTable stores parsed formulas once per normalized tree. cells holding
// the same relative formula, such as a column of =A1*2 filled down, share
// one tree.
type FormulaTable struct {
	astIndex  map[string]uint32 // normalized AST -> formula ID
	astCache  map[uint32]Node   // formula ID -> parsed AST
	refCounts map[uint32]int

	cellsUsingFormula map[uint32]map[grid.BookPoint]struct{}
	formulaAtCell     map[grid.BookPoint]uint32

	// defined names used by each formula and the reverse index
	namesUsed         map[uint32][]string
	formulasUsingName map[string]map[uint32]struct{}

	nextID uint32
}

// NewFormulaTable creates a new formula table
func NewFormulaTable() *FormulaTable {
	return &FormulaTable{
		astIndex:          make(map[string]uint32),
		astCache:          make(map[uint32]Node),
		refCounts:         make(map[uint32]int),
		cellsUsingFormula: make(map[uint32]map[grid.BookPoint]struct{}),
		formulaAtCell:     make(map[grid.BookPoint]uint32),
		namesUsed:         make(map[uint32][]string),
		formulasUsingName: make(map[string]map[uint32]struct{}),
		nextID:            1, // 0 means no formula
	}
}

// Intern adds ast or increments the reference count of an equal tree, and
// records that the formula at cell uses it. it returns the formula ID.
func (ft *FormulaTable) Intern(ast Node, cell grid.BookPoint) uint32 {
	if old, exists := ft.formulaAtCell[cell]; exists {
		ft.Release(old, cell)
	}

	key := ast.Key()
	id, exists := ft.astIndex[key]
	if !exists {
		id = ft.nextID
		ft.nextID++
		ft.astIndex[key] = id
		ft.astCache[id] = ast
		ft.trackNames(id, ast)
	}
	ft.refCounts[id]++
	if ft.cellsUsingFormula[id] == nil {
		ft.cellsUsingFormula[id] = make(map[grid.BookPoint]struct{})
	}
	ft.cellsUsingFormula[id][cell] = struct{}{}
	ft.formulaAtCell[cell] = id
	return id
}

// Release drops the use of formula id by cell. it returns true when the
// formula was removed because nothing uses it anymore.
func (ft *FormulaTable) Release(id uint32, cell grid.BookPoint) bool {
	if ft.formulaAtCell[cell] != id {
		return false
	}
	delete(ft.formulaAtCell, cell)
	if cells, exists := ft.cellsUsingFormula[id]; exists {
		delete(cells, cell)
		if len(cells) == 0 {
			delete(ft.cellsUsingFormula, id)
		}
	}

	ft.refCounts[id]--
	if ft.refCounts[id] > 0 {
		return false
	}
	ast := ft.astCache[id]
	delete(ft.astIndex, ast.Key())
	delete(ft.astCache, id)
	delete(ft.refCounts, id)
	for _, name := range ft.namesUsed[id] {
		if ids := ft.formulasUsingName[name]; ids != nil {
			delete(ids, id)
			if len(ids) == 0 {
				delete(ft.formulasUsingName, name)
			}
		}
	}
	delete(ft.namesUsed, id)
	return true
}

func (ft *FormulaTable) trackNames(id uint32, ast Node) {
	seen := map[string]bool{}
	Walk(ast, func(n Node) {
		if name, ok := n.(*NameNode); ok {
			key := strings.ToUpper(name.Name)
			if seen[key] {
				return
			}
			seen[key] = true
			ft.namesUsed[id] = append(ft.namesUsed[id], key)
			if ft.formulasUsingName[key] == nil {
				ft.formulasUsingName[key] = make(map[uint32]struct{})
			}
			ft.formulasUsingName[key][id] = struct{}{}
		}
	})
}

// AST retrieves the parsed tree of a formula ID
func (ft *FormulaTable) AST(id uint32) (Node, bool) {
	ast, exists := ft.astCache[id]
	return ast, exists
}

// FormulaAt returns the formula ID used by cell
func (ft *FormulaTable) FormulaAt(cell grid.BookPoint) (uint32, bool) {
	id, exists := ft.formulaAtCell[cell]
	return id, exists
}

// RefCount returns the number of cells using formula id
func (ft *FormulaTable) RefCount(id uint32) int { return ft.refCounts[id] }

// CellsUsing returns the cells using formula id, sorted
func (ft *FormulaTable) CellsUsing(id uint32) []grid.BookPoint {
	return sortedPoints(maps.Keys(ft.cellsUsingFormula[id]))
}

// CellsUsingName returns every cell whose formula refers to the defined
// name, sorted
func (ft *FormulaTable) CellsUsingName(name string) []grid.BookPoint {
	var out []grid.BookPoint
	for id := range ft.formulasUsingName[strings.ToUpper(name)] {
		out = append(out, slices.Collect(maps.Keys(ft.cellsUsingFormula[id]))...)
	}
	slices.SortFunc(out, comparePoints)
	return out
}

// Len returns the number of distinct formulas
func (ft *FormulaTable) Len() int { return len(ft.astCache) }
