package formula

import (
	"cmp"
	"iter"
	"maps"
	"slices"

	"github.com/vogtb/go-spreadsheet/packages/grid"
)

// Area is a rectangle on one worksheet.
type Area struct {
	Sheet uint32
	Rect  grid.Rect
}

// Contains reports whether bp lies inside the area.
func (a Area) Contains(bp grid.BookPoint) bool {
	return a.Sheet == bp.Sheet && a.Rect.Contains(bp.Point)
}

// DependencyNode represents a cell in the dependency graph
type DependencyNode struct {
	At grid.BookPoint

	// cell-to-cell dependencies
	CellPrecedents map[grid.BookPoint]*DependencyNode // cells this cell depends on
	CellDependents map[grid.BookPoint]*DependencyNode // cells that depend on this cell

	// areas this cell depends on
	RangePrecedents map[Area]struct{}

	// HasFormula keeps a node alive while a formula is registered there
	HasFormula bool

	// Version is the recalculation counter value of the last change to
	// the cell
	Version uint64
}

// DependencyGraph tracks which cells each formula reads. it only records
// edges; staleness is decided from version stamps.
type DependencyGraph struct {
	nodes          map[grid.BookPoint]*DependencyNode
	rangeObservers map[Area]map[grid.BookPoint]struct{} // area -> cells that depend on it
	areaVersions   map[Area]uint64                      // area -> last change inside it
	volatileCells  map[grid.BookPoint]struct{}
}

// NewDependencyGraph creates a new dependency graph
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes:          make(map[grid.BookPoint]*DependencyNode),
		rangeObservers: make(map[Area]map[grid.BookPoint]struct{}),
		areaVersions:   make(map[Area]uint64),
		volatileCells:  make(map[grid.BookPoint]struct{}),
	}
}

// GetOrCreateNode gets an existing node or creates a new one
func (dg *DependencyGraph) GetOrCreateNode(at grid.BookPoint) *DependencyNode {
	if node, exists := dg.nodes[at]; exists {
		return node
	}
	node := &DependencyNode{
		At:              at,
		CellPrecedents:  make(map[grid.BookPoint]*DependencyNode),
		CellDependents:  make(map[grid.BookPoint]*DependencyNode),
		RangePrecedents: make(map[Area]struct{}),
	}
	dg.nodes[at] = node
	return node
}

// GetNode retrieves a node if it exists
func (dg *DependencyGraph) GetNode(at grid.BookPoint) (*DependencyNode, bool) {
	node, exists := dg.nodes[at]
	return node, exists
}

// cleanupNodeIfEmpty removes a node that holds no formula and no edges
func (dg *DependencyGraph) cleanupNodeIfEmpty(at grid.BookPoint) {
	node, exists := dg.nodes[at]
	if !exists {
		return
	}
	if node.HasFormula ||
		len(node.CellPrecedents) > 0 ||
		len(node.CellDependents) > 0 ||
		len(node.RangePrecedents) > 0 {
		return
	}
	delete(dg.nodes, at)
}

// AddCellDependency records that from reads to
func (dg *DependencyGraph) AddCellDependency(from, to grid.BookPoint) {
	fromNode := dg.GetOrCreateNode(from)
	toNode := dg.GetOrCreateNode(to)
	fromNode.CellPrecedents[to] = toNode
	toNode.CellDependents[from] = fromNode
}

// AddRangeDependency records that from reads every cell of area
func (dg *DependencyGraph) AddRangeDependency(from grid.BookPoint, area Area) {
	node := dg.GetOrCreateNode(from)
	node.RangePrecedents[area] = struct{}{}
	if dg.rangeObservers[area] == nil {
		dg.rangeObservers[area] = make(map[grid.BookPoint]struct{})
	}
	dg.rangeObservers[area][from] = struct{}{}
}

// ClearDependencies drops every edge leaving at
func (dg *DependencyGraph) ClearDependencies(at grid.BookPoint) {
	node, exists := dg.nodes[at]
	if !exists {
		return
	}
	for precedent, precedentNode := range node.CellPrecedents {
		delete(precedentNode.CellDependents, at)
		delete(node.CellPrecedents, precedent)
		dg.cleanupNodeIfEmpty(precedent)
	}
	for area := range node.RangePrecedents {
		if observers, exists := dg.rangeObservers[area]; exists {
			delete(observers, at)
			if len(observers) == 0 {
				delete(dg.rangeObservers, area)
			}
		}
		delete(node.RangePrecedents, area)
	}
	dg.cleanupNodeIfEmpty(at)
}

// SetFormula marks whether a formula is registered at at
func (dg *DependencyGraph) SetFormula(at grid.BookPoint, has bool) {
	if has {
		dg.GetOrCreateNode(at).HasFormula = true
		return
	}
	if node, exists := dg.nodes[at]; exists {
		node.HasFormula = false
		dg.cleanupNodeIfEmpty(at)
	}
}

// DirectPrecedents returns the cells at directly depends on, sorted
func (dg *DependencyGraph) DirectPrecedents(at grid.BookPoint) []grid.BookPoint {
	node, exists := dg.nodes[at]
	if !exists {
		return nil
	}
	return sortedPoints(maps.Keys(node.CellPrecedents))
}

// RangePrecedents returns the areas at depends on
func (dg *DependencyGraph) RangePrecedents(at grid.BookPoint) []Area {
	node, exists := dg.nodes[at]
	if !exists {
		return nil
	}
	return slices.SortedFunc(maps.Keys(node.RangePrecedents), compareAreas)
}

// DirectDependents returns the cells directly depending on at, sorted
func (dg *DependencyGraph) DirectDependents(at grid.BookPoint) []grid.BookPoint {
	node, exists := dg.nodes[at]
	if !exists {
		return nil
	}
	return sortedPoints(maps.Keys(node.CellDependents))
}

// ObservedAreas returns the observed areas that contain bp
func (dg *DependencyGraph) ObservedAreas(bp grid.BookPoint) []Area {
	var out []Area
	for area := range dg.rangeObservers {
		if area.Contains(bp) {
			out = append(out, area)
		}
	}
	return out
}

// AffectedCells returns every cell whose formula reads bp directly or
// through other formulas, sorted
func (dg *DependencyGraph) AffectedCells(bp grid.BookPoint) []grid.BookPoint {
	affected := make(map[grid.BookPoint]struct{})
	var visit func(at grid.BookPoint)
	visit = func(at grid.BookPoint) {
		var next []grid.BookPoint
		if node, exists := dg.nodes[at]; exists {
			next = append(next, slices.Collect(maps.Keys(node.CellDependents))...)
		}
		for _, area := range dg.ObservedAreas(at) {
			next = append(next, slices.Collect(maps.Keys(dg.rangeObservers[area]))...)
		}
		for _, dep := range next {
			if _, seen := affected[dep]; !seen {
				affected[dep] = struct{}{}
				visit(dep)
			}
		}
	}
	visit(bp)
	return sortedPoints(maps.Keys(affected))
}

// CalculationOrder returns the formula cells ordered so that every cell
// comes after its cell precedents. hasCycle reports a circular reference.
func (dg *DependencyGraph) CalculationOrder() (order []grid.BookPoint, hasCycle bool) {
	// three states: unvisited (not in map), visiting (false), visited (true)
	state := make(map[grid.BookPoint]bool)
	var visit func(at grid.BookPoint)
	visit = func(at grid.BookPoint) {
		if completed, exists := state[at]; exists {
			if !completed {
				hasCycle = true
			}
			return
		}
		state[at] = false
		node := dg.nodes[at]
		for _, precedent := range sortedPoints(maps.Keys(node.CellPrecedents)) {
			if _, exists := dg.nodes[precedent]; exists {
				visit(precedent)
			}
		}
		state[at] = true
		if node.HasFormula {
			order = append(order, at)
		}
	}
	for _, at := range sortedPoints(maps.Keys(dg.nodes)) {
		if _, visited := state[at]; !visited {
			visit(at)
		}
	}
	return order, hasCycle
}

// Stamp records a change of bp at version. only cells somebody depends on
// and observed areas containing bp keep the stamp.
func (dg *DependencyGraph) Stamp(bp grid.BookPoint, version uint64) {
	if node, exists := dg.nodes[bp]; exists {
		node.Version = version
	}
	for _, area := range dg.ObservedAreas(bp) {
		dg.areaVersions[area] = version
	}
}

// StampArea records a change of every tracked cell and area inside area, as
// when a range formula appears or goes away.
func (dg *DependencyGraph) StampArea(area Area, version uint64) {
	if area.Rect.Width()*area.Rect.Height() <= len(dg.nodes) {
		for r := area.Rect.Top; r <= area.Rect.Bottom; r++ {
			for c := area.Rect.Left; c <= area.Rect.Right; c++ {
				if node, exists := dg.nodes[grid.BookPoint{Sheet: area.Sheet, Point: grid.Point{Row: r, Column: c}}]; exists {
					node.Version = version
				}
			}
		}
	} else {
		for at, node := range dg.nodes {
			if area.Contains(at) {
				node.Version = version
			}
		}
	}
	for observed := range dg.rangeObservers {
		if observed.Sheet == area.Sheet && observed.Rect.Intersects(area.Rect) {
			dg.areaVersions[observed] = version
		}
	}
}

// StampSheet records a change of every tracked cell and area on sheet
func (dg *DependencyGraph) StampSheet(sheet uint32, version uint64) {
	for at, node := range dg.nodes {
		if at.Sheet == sheet {
			node.Version = version
		}
	}
	for area := range dg.rangeObservers {
		if area.Sheet == sheet {
			dg.areaVersions[area] = version
		}
	}
}

// Version returns the stamp of the last change of bp, 0 if untracked
func (dg *DependencyGraph) Version(bp grid.BookPoint) uint64 {
	if node, exists := dg.nodes[bp]; exists {
		return node.Version
	}
	return 0
}

// AreaVersion returns the stamp of the last change inside area
func (dg *DependencyGraph) AreaVersion(area Area) uint64 {
	return dg.areaVersions[area]
}

// NodeCount returns the number of nodes in the graph
func (dg *DependencyGraph) NodeCount() int { return len(dg.nodes) }

// RangeObserverCount returns the number of observed areas
func (dg *DependencyGraph) RangeObserverCount() int { return len(dg.rangeObservers) }

// MarkVolatile marks whether the formula at at calls a volatile function
func (dg *DependencyGraph) MarkVolatile(at grid.BookPoint, volatile bool) {
	if volatile {
		dg.volatileCells[at] = struct{}{}
	} else {
		delete(dg.volatileCells, at)
	}
}

// IsVolatile checks if a cell contains volatile functions
func (dg *DependencyGraph) IsVolatile(at grid.BookPoint) bool {
	_, isVolatile := dg.volatileCells[at]
	return isVolatile
}

// VolatileCells returns all cells marked as volatile, sorted
func (dg *DependencyGraph) VolatileCells() []grid.BookPoint {
	return sortedPoints(maps.Keys(dg.volatileCells))
}

func comparePoints(a, b grid.BookPoint) int {
	return cmp.Or(
		cmp.Compare(a.Sheet, b.Sheet),
		cmp.Compare(a.Row, b.Row),
		cmp.Compare(a.Column, b.Column),
	)
}

func compareAreas(a, b Area) int {
	return cmp.Or(
		cmp.Compare(a.Sheet, b.Sheet),
		cmp.Compare(a.Rect.Top, b.Rect.Top),
		cmp.Compare(a.Rect.Left, b.Rect.Left),
		cmp.Compare(a.Rect.Bottom, b.Rect.Bottom),
		cmp.Compare(a.Rect.Right, b.Rect.Right),
	)
}

func sortedPoints(seq iter.Seq[grid.BookPoint]) []grid.BookPoint {
	return slices.SortedFunc(seq, comparePoints)
}
