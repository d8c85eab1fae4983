package snapshot

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/vogtb/go-spreadsheet/packages/cells"
	"github.com/vogtb/go-spreadsheet/packages/grid"
	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
	"github.com/vogtb/go-spreadsheet/packages/sst"
	"github.com/vogtb/go-spreadsheet/packages/styles"
)

func sampleWorkbook(t *testing.T) *spreadsheet.Workbook {
	t.Helper()

	wb, err := spreadsheet.NewRunnableWorkbook().
		AddWorksheet("Inputs").
		AddWorksheet("Bob's").
		SetBatch(map[string]any{
			"Inputs!A1": 2.5,
			"Inputs!A2": true,
			"Inputs!A3": cells.ErrorCodeNA,
			"Inputs!A4": time.Date(2023, 7, 1, 6, 0, 0, 0, time.UTC),
			"Inputs!A5": 36 * time.Hour,
			"Inputs!A6": "shared",
			"Inputs!A7": cells.InlineText("inline"),
			"Inputs!A8": &sst.RichText{Runs: []sst.Run{{Text: "a", Italic: true}, {Text: "b"}}},
			"Inputs!B1": 1,
			"Inputs!B2": 2,
			"Inputs!B3": 3,
			"Inputs!C1": "=A1*4",
		}).
		DefineName("Series", "Inputs!$B$1:$B$3").
		Set("'Bob''s'!A1", "=SUM(Series)+Inputs!C1").
		Run()
	require.NoError(t, err)

	ws, err := wb.Worksheet("Inputs")
	require.NoError(t, err)
	require.NoError(t, ws.SetArrayFormula(grid.Rect{Top: 1, Left: 4, Bottom: 3, Right: 4}, "=B1:B3*2"))
	require.NoError(t, ws.SetDataTable(grid.Rect{Top: 1, Left: 6, Bottom: 2, Right: 6},
		grid.Point{Row: 1, Column: 1}, grid.Point{}, false, true,
		[]cells.Value{cells.Number(7), cells.Text("dt")}))

	red := styles.Default
	red.Fill = styles.Fill{Pattern: "solid", Color: "FFFF0000"}
	ws.CellAt(grid.Point{Row: 1, Column: 1}).SetStyle(red)
	ws.CellAt(grid.Point{Row: 9, Column: 9}).SetStyle(red)
	ws.CellAt(grid.Point{Row: 2, Column: 1}).SetMisc(cells.Misc{Comment: "flag", Hyperlink: "Bob's!A1"})
	return wb
}

func roundTrip(t *testing.T, wb *spreadsheet.Workbook) *spreadsheet.Workbook {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, Encode(wb, &buf))
	decoded, err := Decode(&buf)
	require.NoError(t, err)
	return decoded
}

func TestRoundTrip(t *testing.T) {
	wb := sampleWorkbook(t)
	decoded := roundTrip(t, wb)

	require.Len(t, decoded.Worksheets(), 2)
	assert.Equal(t, "Inputs", decoded.Worksheets()[0].Name())
	assert.Equal(t, "Bob's", decoded.Worksheets()[1].Name())

	for _, ref := range []string{
		"Inputs!A1", "Inputs!A2", "Inputs!A3", "Inputs!A4", "Inputs!A5",
		"Inputs!A6", "Inputs!A7", "Inputs!A8", "Inputs!C1", "Inputs!D2",
		"Inputs!F1", "Inputs!F2", "'Bob''s'!A1",
	} {
		want, err := wb.Get(ref)
		require.NoError(t, err, ref)
		got, err := decoded.Get(ref)
		require.NoError(t, err, ref)
		assert.True(t, want.Equal(got), "%s: want %s, got %s", ref, want, got)
	}

	got, err := decoded.Get("'Bob''s'!A1")
	require.NoError(t, err)
	n, err := got.AsNumber()
	require.NoError(t, err)
	assert.InDelta(t, 16.0, n, 1e-9)

	c, err := decoded.Cell("Inputs!C1")
	require.NoError(t, err)
	text, ok := c.Formula()
	assert.True(t, ok)
	assert.Equal(t, "=A1*4", text)

	c, err = decoded.Cell("Inputs!A1")
	require.NoError(t, err)
	assert.Equal(t, "FFFF0000", c.Style().Fill.Color)
	c, err = decoded.Cell("Inputs!I9")
	require.NoError(t, err)
	assert.True(t, c.IsUsed())
	assert.Same(t, decoded.Worksheets()[0].CellAt(grid.Point{Row: 1, Column: 1}).Style(), c.Style())

	c, err = decoded.Cell("Inputs!A2")
	require.NoError(t, err)
	assert.Equal(t, cells.Misc{Comment: "flag", Hyperlink: "Bob's!A1"}, c.Misc())

	c, err = decoded.Cell("Inputs!A7")
	require.NoError(t, err)
	v, err := c.Value()
	require.NoError(t, err)
	assert.True(t, v.IsInline())

	ws, err := decoded.Worksheet("Inputs")
	require.NoError(t, err)
	assert.Equal(t, wb.Worksheets()[0].Stats(), ws.Stats())

	require.Len(t, decoded.Names(), 1)
	assert.Equal(t, "Series", decoded.Names()[0].Name)
}

func TestEncode_CompactsSharedText(t *testing.T) {
	wb, err := spreadsheet.NewRunnableWorkbook().
		AddWorksheet("Sheet1").
		Set("A1", "one").
		Set("A2", "two").
		Set("A3", "three").
		Set("A4", "one").
		Remove("A2").
		Run()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(wb, &buf))

	var env envelope
	require.NoError(t, msgpack.Unmarshal(buf.Bytes(), &env))
	var doc document
	require.NoError(t, msgpack.Unmarshal(env.Body, &doc))
	require.Len(t, doc.Text, 2)
	assert.Equal(t, "one", doc.Text[0].Plain)
	assert.Equal(t, "three", doc.Text[1].Plain)

	decoded, err := Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 2, decoded.Text().Len())
	assert.Equal(t, 3, decoded.Text().TotalReferences())

	v, err := decoded.Get("A3")
	require.NoError(t, err)
	s, err := v.AsText()
	require.NoError(t, err)
	assert.Equal(t, "three", s)
}

func TestDecode_FormulasAreStale(t *testing.T) {
	wb, err := spreadsheet.NewRunnableWorkbook().
		AddWorksheet("Sheet1").
		Set("A1", 3).
		Set("A2", "=A1+1").
		Calculate().
		Run()
	require.NoError(t, err)

	decoded := roundTrip(t, wb)
	c, err := decoded.Cell("A2")
	require.NoError(t, err)
	assert.True(t, c.NeedsRecalculation())
	assert.True(t, c.CachedValue().IsBlank())

	v, err := c.Value()
	require.NoError(t, err)
	assert.True(t, cells.Number(4).Equal(v))
}

func tamper(t *testing.T, edit func(*envelope)) *bytes.Reader {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, Encode(sampleWorkbook(t), &buf))
	var env envelope
	require.NoError(t, msgpack.Unmarshal(buf.Bytes(), &env))
	edit(&env)
	out, err := msgpack.Marshal(&env)
	require.NoError(t, err)
	return bytes.NewReader(out)
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name string
		edit func(*envelope)
		want error
	}{
		{"flipped body byte", func(e *envelope) { e.Body[len(e.Body)/2] ^= 0xff }, ErrCorrupt},
		{"wrong checksum", func(e *envelope) { e.Checksum++ }, ErrCorrupt},
		{"wrong magic", func(e *envelope) { e.Magic = "NOTSNAP" }, ErrCorrupt},
		{"newer version", func(e *envelope) { e.Version = Version + 1 }, ErrUnsupportedVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tamper(t, tt.edit))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecode_Truncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(sampleWorkbook(t), &buf))

	_, err := Decode(bytes.NewReader(buf.Bytes()[:buf.Len()/2]))
	require.ErrorIs(t, err, ErrCorrupt)
}
