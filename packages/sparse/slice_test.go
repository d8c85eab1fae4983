package sparse_test

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogtb/go-spreadsheet/packages/grid"
	"github.com/vogtb/go-spreadsheet/packages/sparse"
)

func pt(row, col int) grid.Point { return grid.Point{Row: row, Column: col} }

// oracle is a dense model of the bounded test grid.
type oracle struct {
	size  int
	cells map[grid.Point]int
}

func newOracle(size int) *oracle {
	return &oracle{size: size, cells: map[grid.Point]int{}}
}

func (o *oracle) set(p grid.Point, v int) {
	if v == 0 {
		delete(o.cells, p)
		return
	}
	o.cells[p] = v
}

func (o *oracle) maxRowColumn() (int, int) {
	maxRow, maxCol := 0, 0
	for p := range o.cells {
		maxRow = max(maxRow, p.Row)
		maxCol = max(maxCol, p.Column)
	}
	return maxRow, maxCol
}

func (o *oracle) points() []grid.Point {
	var out []grid.Point
	for r := 1; r <= o.size; r++ {
		for c := 1; c <= o.size; c++ {
			if _, ok := o.cells[pt(r, c)]; ok {
				out = append(out, pt(r, c))
			}
		}
	}
	return out
}

func collect[T comparable](s *sparse.Slice[T], rect grid.Rect) []grid.Point {
	var out []grid.Point
	for p := range s.Ascend(rect) {
		out = append(out, p)
	}
	return out
}

func TestSetGet(t *testing.T) {
	t.Parallel()

	s := sparse.New[int]()
	assert.True(t, s.IsEmpty())
	assert.Equal(t, 0, s.MaxRow())
	assert.Equal(t, 0, s.MaxColumn())
	assert.Equal(t, 0, s.Get(pt(grid.MaxRow, grid.MaxColumn)))

	s.Set(pt(3, 7), 1)
	s.Set(pt(10, 2), 2)
	assert.Equal(t, 10, s.MaxRow())
	assert.Equal(t, 7, s.MaxColumn())
	assert.Equal(t, []int{2, 7}, s.UsedColumns())
	assert.Equal(t, []int{3, 10}, slices.Collect(s.UsedRows()))

	s.Set(pt(3, 7), 0)
	assert.Equal(t, 2, s.MaxColumn())
	assert.Equal(t, 1, s.Len())
	assert.False(t, s.IsUsed(pt(3, 7)))
}

func TestScenarioInsertShiftDown(t *testing.T) {
	t.Parallel()

	s := sparse.New[string]()
	s.Set(pt(11, 3), "x")

	s.InsertAndShiftDown(grid.Rect{Top: 5, Left: 3, Bottom: 10, Right: 3})

	assert.Equal(t, "x", s.Get(pt(17, 3)))
	assert.False(t, s.IsUsed(pt(11, 3)))
	assert.Equal(t, 17, s.MaxRow())
}

func TestScenarioDeleteShiftLeft(t *testing.T) {
	t.Parallel()

	s := sparse.New[string]()
	s.Set(pt(1, 5), "x")

	s.DeleteAndShiftLeft(grid.Rect{Top: 1, Left: 2, Bottom: 1, Right: 3})

	assert.Equal(t, "x", s.Get(pt(1, 3)))
	assert.False(t, s.IsUsed(pt(1, 5)))
	assert.Equal(t, 3, s.MaxColumn())
}

func TestShiftsOnlyTouchTheirStrip(t *testing.T) {
	t.Parallel()

	s := sparse.New[int]()
	s.Set(pt(2, 1), 1) // left of the strip
	s.Set(pt(2, 2), 2) // in the strip
	s.Set(pt(2, 4), 3) // right of the strip

	s.InsertAndShiftDown(grid.Rect{Top: 1, Left: 2, Bottom: 3, Right: 3})
	assert.Equal(t, 1, s.Get(pt(2, 1)))
	assert.Equal(t, 2, s.Get(pt(5, 2)))
	assert.Equal(t, 3, s.Get(pt(2, 4)))
	assert.Equal(t, 3, s.Len())

	s.DeleteAndShiftUp(grid.Rect{Top: 1, Left: 2, Bottom: 3, Right: 3})
	assert.Equal(t, 2, s.Get(pt(2, 2)))
	assert.Equal(t, 3, s.Len())
}

func TestDeleteDiscardsRect(t *testing.T) {
	t.Parallel()

	s := sparse.New[int]()
	s.Set(pt(4, 4), 1)
	s.Set(pt(5, 4), 2)
	s.DeleteAndShiftUp(grid.RowsRect(4, 4))
	assert.Equal(t, 2, s.Get(pt(4, 4)))
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 4, s.MaxRow())
}

func TestInsertPushesContentOffTheGrid(t *testing.T) {
	t.Parallel()

	s := sparse.New[int]()
	s.Set(pt(grid.MaxRow, 1), 1)
	s.Set(pt(grid.MaxRow-2, 1), 2)
	s.Set(pt(1, grid.MaxColumn), 3)

	s.InsertAndShiftDown(grid.RowsRect(1, 2))
	assert.Equal(t, 2, s.Get(pt(grid.MaxRow, 1)))
	assert.Equal(t, 3, s.Get(pt(3, grid.MaxColumn)))
	assert.Equal(t, 2, s.Len())

	s.InsertAndShiftRight(grid.Rect{Top: 3, Left: 5, Bottom: 3, Right: 5})
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, s.MaxColumn())
}

func TestShiftRoundTrip(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(7, 8))
	s := sparse.New[int]()
	want := map[grid.Point]int{}
	for range 400 {
		p := pt(rng.IntN(60)+1, rng.IntN(40)+1)
		v := rng.IntN(1000) + 1
		s.Set(p, v)
		want[p] = v
	}

	cases := []grid.Rect{
		grid.RowsRect(10, 14),
		grid.Rect{Top: 7, Left: 3, Bottom: 9, Right: 12},
		grid.Rect{Top: 1, Left: 1, Bottom: 60, Right: 1},
	}
	for _, rect := range cases {
		s.InsertAndShiftDown(rect)
		s.DeleteAndShiftUp(rect)
		for p, v := range want {
			require.Equal(t, v, s.Get(p), "rows %v point %v", rect, p)
		}
		require.Equal(t, len(want), s.Len())

		s.InsertAndShiftRight(rect)
		s.DeleteAndShiftLeft(rect)
		for p, v := range want {
			require.Equal(t, v, s.Get(p), "columns %v point %v", rect, p)
		}
		require.Equal(t, len(want), s.Len())
	}
}

// shiftOracle moves the oracle's cells the way an insert or delete shift of
// rect moves them. points leaving the grid are dropped.
func shiftOracle(o *oracle, rect grid.Rect, vertical, insert bool) {
	next := map[grid.Point]int{}
	for p, v := range o.cells {
		inStrip := p.Column >= rect.Left && p.Column <= rect.Right
		if !vertical {
			inStrip = p.Row >= rect.Top && p.Row <= rect.Bottom
		}
		switch {
		case !inStrip:
			next[p] = v
		case insert && vertical && p.Row >= rect.Top:
			if q := p.Offset(rect.Height(), 0); q.Row <= grid.MaxRow {
				next[q] = v
			}
		case insert && !vertical && p.Column >= rect.Left:
			if q := p.Offset(0, rect.Width()); q.Column <= grid.MaxColumn {
				next[q] = v
			}
		case insert:
			next[p] = v
		case rect.Contains(p):
		case vertical && p.Row > rect.Bottom:
			next[p.Offset(-rect.Height(), 0)] = v
		case !vertical && p.Column > rect.Right:
			next[p.Offset(0, -rect.Width())] = v
		default:
			next[p] = v
		}
	}
	o.cells = next
}

func TestMaxFidelity(t *testing.T) {
	t.Parallel()

	const size = 64
	rng := rand.New(rand.NewPCG(11, 12))
	s := sparse.New[int]()
	o := newOracle(size)

	randRect := func() grid.Rect {
		a := pt(rng.IntN(size)+1, rng.IntN(size)+1)
		b := pt(min(a.Row+rng.IntN(4), size), min(a.Column+rng.IntN(4), size))
		switch rng.IntN(5) {
		case 0:
			return grid.RowsRect(a.Row, b.Row)
		case 1:
			return grid.ColumnsRect(a.Column, b.Column)
		}
		return grid.NewRect(a, b)
	}

	for step := range 4000 {
		switch rng.IntN(8) {
		case 0, 1, 2:
			p := pt(rng.IntN(size)+1, rng.IntN(size)+1)
			v := rng.IntN(50)
			s.Set(p, v)
			o.set(p, v)
		case 3:
			rect := randRect()
			s.Clear(rect)
			for p := range o.cells {
				if rect.Contains(p) {
					delete(o.cells, p)
				}
			}
		case 4:
			rect := randRect()
			s.DeleteAndShiftUp(rect)
			shiftOracle(o, rect, true, false)
		case 5:
			rect := randRect()
			s.DeleteAndShiftLeft(rect)
			shiftOracle(o, rect, false, false)
		case 6:
			rect := randRect()
			s.InsertAndShiftDown(rect)
			shiftOracle(o, rect, true, true)
		case 7:
			rect := randRect()
			s.InsertAndShiftRight(rect)
			shiftOracle(o, rect, false, true)
		}

		maxRow, maxCol := o.maxRowColumn()
		require.Equal(t, maxRow, s.MaxRow(), "step %d", step)
		require.Equal(t, maxCol, s.MaxColumn(), "step %d", step)
		require.Equal(t, len(o.cells), s.Len(), "step %d", step)
	}

	got := map[grid.Point]int{}
	for p, v := range s.Ascend(grid.Sheet()) {
		got[p] = v
	}
	assert.Equal(t, o.cells, got)

	rows := map[int]bool{}
	for p := range o.cells {
		if p.Row >= 10 && p.Row <= 40 {
			rows[p.Row] = true
		}
	}
	inRange := slices.Collect(s.RowsIn(10, 40))
	assert.Len(t, inRange, len(rows))
	assert.True(t, slices.IsSorted(inRange))
	reversed := slices.Collect(s.RowsInReverse(10, 40))
	slices.Reverse(reversed)
	assert.Equal(t, inRange, reversed)
}

func TestEnumerationOrder(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(5, 6))
	s := sparse.New[int]()
	for range 300 {
		s.Set(pt(rng.IntN(100)+1, rng.IntN(100)+1), 1)
	}

	rect := grid.Rect{Top: 10, Left: 20, Bottom: 90, Right: 80}
	forward := collect(s, rect)
	for i := 1; i < len(forward); i++ {
		prev, cur := forward[i-1], forward[i]
		assert.True(t, prev.Row < cur.Row || (prev.Row == cur.Row && prev.Column < cur.Column))
	}

	var backward []grid.Point
	for p := range s.Descend(rect) {
		backward = append(backward, p)
	}
	slices.Reverse(backward)
	assert.Equal(t, forward, backward)
}

func TestRandomWritesMatchLinearScan(t *testing.T) {
	t.Parallel()

	const size = 200
	rng := rand.New(rand.NewPCG(13, 14))
	s := sparse.New[int]()
	o := newOracle(size)
	var written []grid.Point

	for range 10_000 {
		p := pt(rng.IntN(size)+1, rng.IntN(size)+1)
		v := rng.IntN(1000) + 1
		s.Set(p, v)
		o.set(p, v)
		written = append(written, p)

		if rng.IntN(10) == 0 {
			victim := written[rng.IntN(len(written))]
			s.Set(victim, 0)
			o.set(victim, 0)
		}
	}

	got := collect(s, grid.Rect{Top: 1, Left: 1, Bottom: size, Right: size})
	assert.Equal(t, o.points(), got)
	for _, p := range got {
		assert.Equal(t, o.cells[p], s.Get(p))
	}
}

func TestSwap(t *testing.T) {
	t.Parallel()

	s := sparse.New[int]()
	s.Set(pt(1, 1), 5)
	s.Swap(pt(1, 1), pt(9, 9))
	assert.False(t, s.IsUsed(pt(1, 1)))
	assert.Equal(t, 5, s.Get(pt(9, 9)))
	assert.Equal(t, 9, s.MaxColumn())
	assert.Equal(t, 9, s.MaxRow())
}
