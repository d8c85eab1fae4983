package xlsxio

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/vogtb/go-spreadsheet/packages/cells"
	"github.com/vogtb/go-spreadsheet/packages/grid"
	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
	"github.com/vogtb/go-spreadsheet/packages/sst"
	"github.com/vogtb/go-spreadsheet/packages/styles"
)

func value(t *testing.T, wb *spreadsheet.Workbook, ref string) cells.Value {
	t.Helper()
	v, err := wb.Get(ref)
	require.NoError(t, err)
	return v
}

func number(t *testing.T, wb *spreadsheet.Workbook, ref string) float64 {
	t.Helper()
	n, err := value(t, wb, ref).AsNumber()
	require.NoError(t, err, ref)
	return n
}

func saveExcelize(t *testing.T, f *excelize.File) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func TestSaveLoadRoundTrip(t *testing.T) {
	when := time.Date(2024, 3, 15, 12, 30, 0, 0, time.UTC)
	rich := &sst.RichText{Runs: []sst.Run{{Text: "bold", Bold: true}, {Text: "plain"}}}

	wb, err := spreadsheet.NewRunnableWorkbook().
		AddWorksheet("Data").
		AddWorksheet("Other Sheet").
		SetBatch(map[string]any{
			"Data!A1": 1.5,
			"Data!A2": "hello",
			"Data!A3": true,
			"Data!A4": "=A1*2",
			"Data!B1": cells.ErrorCodeDiv0,
			"Data!B2": when,
			"Data!B3": 90 * time.Minute,
			"Data!C1": rich,
			"Data!E1": 1,
			"Data!E2": 2,
			"Data!E3": 3,
		}).
		DefineName("Total", "Data!$E$1:$E$3").
		Set("'Other Sheet'!A1", "=Data!A1+1").
		Set("'Other Sheet'!A2", "=SUM(Total)").
		Run()
	require.NoError(t, err)

	data, err := wb.Worksheet("Data")
	require.NoError(t, err)
	require.NoError(t, data.SetArrayFormula(grid.Rect{Top: 1, Left: 6, Bottom: 3, Right: 6}, "=E1:E3*10"))

	a2 := data.CellAt(grid.Point{Row: 2, Column: 1})
	bold := styles.Default
	bold.Font.Bold = true
	a2.SetStyle(bold)

	a1 := data.CellAt(grid.Point{Row: 1, Column: 1})
	a1.SetMisc(cells.Misc{Comment: "input", Hyperlink: "https://example.com"})

	path := filepath.Join(t.TempDir(), "book.xlsx")
	require.NoError(t, Save(wb, path))

	loaded, err := Load(path, Options{Calculate: true, Styles: true})
	require.NoError(t, err)

	names := []string{}
	for _, ws := range loaded.Worksheets() {
		names = append(names, ws.Name())
	}
	assert.Equal(t, []string{"Data", "Other Sheet"}, names)

	assert.InDelta(t, 1.5, number(t, loaded, "Data!A1"), 1e-9)
	text, err := value(t, loaded, "Data!A2").AsText()
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	b, err := value(t, loaded, "Data!A3").AsBool()
	require.NoError(t, err)
	assert.True(t, b)
	assert.InDelta(t, 3.0, number(t, loaded, "Data!A4"), 1e-9)

	code, err := value(t, loaded, "Data!B1").AsError()
	require.NoError(t, err)
	assert.Equal(t, cells.ErrorCodeDiv0, code)

	dt, err := value(t, loaded, "Data!B2").AsDateTime()
	require.NoError(t, err)
	assert.True(t, when.Equal(dt), "got %s", dt)

	span, err := value(t, loaded, "Data!B3").AsTimeSpan()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, span)

	gotRich, err := value(t, loaded, "Data!C1").AsRichText()
	require.NoError(t, err)
	require.NotNil(t, gotRich)
	assert.Equal(t, "boldplain", gotRich.String())
	require.Len(t, gotRich.Runs, 2)
	assert.True(t, gotRich.Runs[0].Bold)

	assert.InDelta(t, 20.0, number(t, loaded, "Data!F2"), 1e-9)
	f2, err := loaded.Cell("Data!F2")
	require.NoError(t, err)
	require.NotNil(t, f2.FormulaRecord())
	assert.Equal(t, cells.ArrayFormula, f2.FormulaRecord().Kind)

	assert.InDelta(t, 2.5, number(t, loaded, "'Other Sheet'!A1"), 1e-9)
	assert.InDelta(t, 6.0, number(t, loaded, "'Other Sheet'!A2"), 1e-9)
	require.Len(t, loaded.Names(), 1)
	assert.Equal(t, "Total", loaded.Names()[0].Name)

	c, err := loaded.Cell("Data!A2")
	require.NoError(t, err)
	assert.True(t, c.Style().Font.Bold)

	c, err = loaded.Cell("Data!A1")
	require.NoError(t, err)
	assert.Contains(t, c.Misc().Comment, "input")
	assert.Equal(t, "https://example.com", c.Misc().Hyperlink)
}

func TestLoad_SharedFormulas(t *testing.T) {
	f := excelize.NewFile()
	for row, v := range []int{1, 2, 3} {
		name, err := excelize.CoordinatesToCellName(1, row+1)
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue("Sheet1", name, v))
	}
	typ, ref := excelize.STCellFormulaTypeShared, "B1:B3"
	require.NoError(t, f.SetCellFormula("Sheet1", "B1", "A1*2", excelize.FormulaOpts{Type: &typ, Ref: &ref}))
	path := saveExcelize(t, f)

	wb, err := Load(path, Options{Calculate: true})
	require.NoError(t, err)

	assert.InDelta(t, 2.0, number(t, wb, "B1"), 1e-9)
	assert.InDelta(t, 6.0, number(t, wb, "B3"), 1e-9)
	c, err := wb.Cell("B3")
	require.NoError(t, err)
	formulaText, ok := c.Formula()
	assert.True(t, ok)
	assert.Equal(t, "=A3*2", formulaText)
}

func TestLoad_ArrayFormulaIgnoresCachedFragments(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", 4))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", 5))
	typ, ref := excelize.STCellFormulaTypeArray, "B1:B2"
	require.NoError(t, f.SetCellFormula("Sheet1", "B1", "A1:A2+1", excelize.FormulaOpts{Type: &typ, Ref: &ref}))
	// stale cached result of the second element
	require.NoError(t, f.SetCellValue("Sheet1", "B2", 99))
	path := saveExcelize(t, f)

	formulas, err := scanFormulas(path)
	require.NoError(t, err)
	require.Len(t, formulas["Sheet1"], 1)
	assert.Equal(t, formulaArray, formulas["Sheet1"][0].Type)
	assert.Equal(t, "B1:B2", formulas["Sheet1"][0].Ref)

	wb, err := Load(path, Options{})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, number(t, wb, "B1"), 1e-9)
	assert.InDelta(t, 6.0, number(t, wb, "B2"), 1e-9)
}

func TestLoad_NumberFormatsDecideKind(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellFloat("Sheet1", "A1", 45366.5, -1, 64))
	require.NoError(t, f.SetCellFloat("Sheet1", "A2", 45366.5, -1, 64))
	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle("Sheet1", "A2", "A2", dateStyle))
	path := saveExcelize(t, f)

	wb, err := Load(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, cells.KindNumber, value(t, wb, "A1").Kind())
	assert.Equal(t, cells.KindDateTime, value(t, wb, "A2").Kind())

	// formatting is only kept when asked for
	c, err := wb.Cell("A2")
	require.NoError(t, err)
	assert.Equal(t, styles.Default, *c.Style())
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "absent.xlsx"), Options{})
	require.ErrorIs(t, err, os.ErrNotExist)

	garbage := filepath.Join(dir, "garbage.xlsx")
	require.NoError(t, os.WriteFile(garbage, []byte("not a zip archive"), 0o600))
	_, err = Load(garbage, Options{})
	require.ErrorIs(t, err, ErrInvalidFormat)

	path := saveExcelize(t, excelize.NewFile())
	_, err = Load(path, Options{MaxFileSize: 10})
	require.ErrorIs(t, err, ErrFileTooLarge)
}

func TestSave_EmptyWorkbook(t *testing.T) {
	err := Save(spreadsheet.New(), filepath.Join(t.TempDir(), "empty.xlsx"))
	require.ErrorIs(t, err, ErrEmptyWorkbook)
}

func TestAbsolute(t *testing.T) {
	assert.Equal(t, "$A$1", absolute(grid.Rect{Top: 1, Left: 1, Bottom: 1, Right: 1}))
	assert.Equal(t, "$B$2:$AA$10", absolute(grid.Rect{Top: 2, Left: 2, Bottom: 10, Right: 27}))
	assert.Equal(t, "'it''s'", quoteSheet("it's"))
}
