package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vogtb/go-spreadsheet/packages/grid"
)

func TestDependencyGraphAffectedCells(t *testing.T) {
	dg := NewDependencyGraph()
	dg.SetFormula(bp("B1"), true)
	dg.AddCellDependency(bp("B1"), bp("A1"))
	dg.SetFormula(bp("C1"), true)
	dg.AddCellDependency(bp("C1"), bp("B1"))
	dg.SetFormula(bp("D1"), true)
	dg.AddRangeDependency(bp("D1"), Area{Sheet: 1, Rect: grid.NewRect(bp("C1").Point, bp("C9").Point)})
	dg.SetFormula(bp("E1"), true)
	dg.AddCellDependency(bp("E1"), bp("Z1"))

	assert.Equal(t, []grid.BookPoint{bp("B1"), bp("C1"), bp("D1")}, dg.AffectedCells(bp("A1")))
	assert.Equal(t, []grid.BookPoint{bp("D1")}, dg.AffectedCells(bp("C5")))
	assert.Empty(t, dg.AffectedCells(bp("Q1")))
}

func TestDependencyGraphStamps(t *testing.T) {
	dg := NewDependencyGraph()
	area := Area{Sheet: 1, Rect: grid.NewRect(bp("A1").Point, bp("A3").Point)}
	dg.SetFormula(bp("B1"), true)
	dg.AddRangeDependency(bp("B1"), area)
	dg.AddCellDependency(bp("B1"), bp("C1"))

	dg.Stamp(bp("A2"), 7)
	assert.Equal(t, uint64(7), dg.AreaVersion(area))
	assert.Zero(t, dg.Version(bp("A2")))

	dg.Stamp(bp("C1"), 8)
	assert.Equal(t, uint64(8), dg.Version(bp("C1")))
	assert.Equal(t, uint64(7), dg.AreaVersion(area))

	// another sheet is untouched
	dg.StampSheet(2, 9)
	assert.Equal(t, uint64(8), dg.Version(bp("C1")))
	dg.StampSheet(1, 10)
	assert.Equal(t, uint64(10), dg.Version(bp("C1")))
	assert.Equal(t, uint64(10), dg.AreaVersion(area))

	dg.ClearDependencies(bp("B1"))
	assert.Zero(t, dg.AreaVersion(area))
	assert.Equal(t, 1, dg.NodeCount())
	dg.SetFormula(bp("B1"), false)
	assert.Zero(t, dg.NodeCount())
}
