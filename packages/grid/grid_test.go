package grid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogtb/go-spreadsheet/packages/grid"
)

func TestColumnNames(t *testing.T) {
	t.Parallel()

	cases := map[int]string{
		1:     "A",
		26:    "Z",
		27:    "AA",
		52:    "AZ",
		702:   "ZZ",
		703:   "AAA",
		16384: "XFD",
	}
	for number, name := range cases {
		assert.Equal(t, name, grid.ColumnName(number))

		got, err := grid.ColumnNumber(name)
		require.NoError(t, err)
		assert.Equal(t, number, got)
	}

	_, err := grid.ColumnNumber("XFE")
	require.ErrorIs(t, err, grid.ErrInvalidAddress)
}

func TestParsePoint(t *testing.T) {
	t.Parallel()

	p, err := grid.ParsePoint("B7")
	require.NoError(t, err)
	assert.Equal(t, grid.Point{Row: 7, Column: 2}, p)

	p, err = grid.ParsePoint("$c$12")
	require.NoError(t, err)
	assert.Equal(t, grid.Point{Row: 12, Column: 3}, p)
	assert.Equal(t, "C12", p.String())

	for _, bad := range []string{"", "A", "7", "A0", "A01", "XFE1", "A1048577", "A1B", "ABCD1"} {
		_, err := grid.ParsePoint(bad)
		assert.ErrorIs(t, err, grid.ErrInvalidAddress, bad)
	}
}

func TestNewPointPanicsOutOfBounds(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() { grid.NewPoint(grid.MaxRow, grid.MaxColumn) })
	assert.Panics(t, func() { grid.NewPoint(0, 1) })
	assert.Panics(t, func() { grid.NewPoint(1, grid.MaxColumn+1) })
}

func TestRect(t *testing.T) {
	t.Parallel()

	r := grid.NewRect(grid.Point{Row: 5, Column: 4}, grid.Point{Row: 2, Column: 1})
	assert.Equal(t, grid.Rect{Top: 2, Left: 1, Bottom: 5, Right: 4}, r)
	assert.Equal(t, 4, r.Width())
	assert.Equal(t, 4, r.Height())
	assert.Equal(t, "A2:D5", r.String())
	assert.True(t, r.Contains(grid.Point{Row: 3, Column: 3}))
	assert.False(t, r.Contains(grid.Point{Row: 6, Column: 3}))

	inter, ok := r.Intersection(grid.Rect{Top: 4, Left: 3, Bottom: 9, Right: 9})
	require.True(t, ok)
	assert.Equal(t, grid.Rect{Top: 4, Left: 3, Bottom: 5, Right: 4}, inter)

	_, ok = r.Intersection(grid.Rect{Top: 6, Left: 1, Bottom: 6, Right: 1})
	assert.False(t, ok)

	parsed, err := grid.ParseRect("D5:A2")
	require.NoError(t, err)
	assert.Equal(t, r, parsed)

	single, err := grid.ParseRect("C3")
	require.NoError(t, err)
	assert.Equal(t, "C3", single.String())

	assert.True(t, grid.RowsRect(3, 1).IsFullWidth())
	assert.True(t, grid.ColumnsRect(2, 2).IsFullHeight())
}
