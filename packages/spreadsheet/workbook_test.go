package spreadsheet

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogtb/go-spreadsheet/packages/cells"
	"github.com/vogtb/go-spreadsheet/packages/formula"
)

type fixedClock struct{}

func (fixedClock) Now() time.Time { return time.Date(2024, 3, 15, 13, 30, 0, 0, time.UTC) }

type fixedRandom float64

func (r fixedRandom) Float64() float64 { return float64(r) }

// workbookTestCase is a chainable test helper over a workbook with one
// worksheet called Sheet1
type workbookTestCase struct {
	t  *testing.T
	wb *Workbook
}

func newWorkbookTestCase(t *testing.T, opts ...Option) *workbookTestCase {
	t.Helper()
	opts = append([]Option{WithClock(fixedClock{}), WithRandom(fixedRandom(0.25))}, opts...)
	wb := New(opts...)
	_, err := wb.AddWorksheet("Sheet1")
	require.NoError(t, err)
	return &workbookTestCase{t: t, wb: wb}
}

func (tc *workbookTestCase) AddWorksheet(name string) *workbookTestCase {
	tc.t.Helper()
	_, err := tc.wb.AddWorksheet(name)
	require.NoError(tc.t, err)
	return tc
}

func (tc *workbookTestCase) Set(ref string, value any) *workbookTestCase {
	tc.t.Helper()
	require.NoError(tc.t, tc.wb.Set(ref, value), "Set(%s)", ref)
	return tc
}

func (tc *workbookTestCase) Remove(ref string) *workbookTestCase {
	tc.t.Helper()
	require.NoError(tc.t, tc.wb.Remove(ref), "Remove(%s)", ref)
	return tc
}

func (tc *workbookTestCase) Calculate() *workbookTestCase {
	tc.t.Helper()
	require.NoError(tc.t, tc.wb.Calculate())
	return tc
}

func (tc *workbookTestCase) get(ref string) cells.Value {
	tc.t.Helper()
	v, err := tc.wb.Get(ref)
	require.NoError(tc.t, err, "Get(%s)", ref)
	return v
}

func (tc *workbookTestCase) AssertNumber(ref string, want float64) *workbookTestCase {
	tc.t.Helper()
	v := tc.get(ref)
	n, err := v.AsNumber()
	require.NoError(tc.t, err, "%s = %s", ref, v)
	assert.InDelta(tc.t, want, n, 1e-9, ref)
	return tc
}

func (tc *workbookTestCase) AssertText(ref, want string) *workbookTestCase {
	tc.t.Helper()
	v := tc.get(ref)
	s, err := v.AsText()
	require.NoError(tc.t, err, "%s = %s", ref, v)
	assert.Equal(tc.t, want, s, ref)
	return tc
}

func (tc *workbookTestCase) AssertError(ref string, want cells.ErrorCode) *workbookTestCase {
	tc.t.Helper()
	v := tc.get(ref)
	code, err := v.AsError()
	require.NoError(tc.t, err, "%s = %s", ref, v)
	assert.Equal(tc.t, want, code, ref)
	return tc
}

func (tc *workbookTestCase) AssertBlank(ref string) *workbookTestCase {
	tc.t.Helper()
	assert.True(tc.t, tc.get(ref).IsBlank(), ref)
	return tc
}

func (tc *workbookTestCase) cell(ref string) *Cell {
	tc.t.Helper()
	c, err := tc.wb.Cell(ref)
	require.NoError(tc.t, err)
	return c
}

func TestLazyRecalculation(t *testing.T) {
	tc := newWorkbookTestCase(t).
		Set("Sheet1!B1", "=A1+1").
		Set("Sheet1!A1", 5.0).
		AssertNumber("Sheet1!B1", 6)

	b1 := tc.cell("Sheet1!B1")
	assert.False(t, b1.NeedsRecalculation())

	tc.Set("Sheet1!A1", 7.0)
	assert.True(t, b1.NeedsRecalculation())
	cached, err := b1.CachedValue().AsNumber()
	require.NoError(t, err)
	assert.Equal(t, 6.0, cached)

	v, err := b1.Value()
	require.NoError(t, err)
	assert.Equal(t, cells.Number(8), v)
	assert.False(t, b1.NeedsRecalculation())
}

func TestUpdateAndRecalculation(t *testing.T) {
	t.Run("CellUpdates", func(t *testing.T) {
		newWorkbookTestCase(t).
			Set("Sheet1!A1", 10.0).
			Set("Sheet1!B1", "=A1*2").
			Calculate().
			AssertNumber("Sheet1!B1", 20).
			Set("Sheet1!A1", 15.0).
			Calculate().
			AssertNumber("Sheet1!B1", 30)
	})

	t.Run("FormulaChanges", func(t *testing.T) {
		newWorkbookTestCase(t).
			Set("Sheet1!A1", 10.0).
			Set("Sheet1!B1", "=A1*2").
			AssertNumber("Sheet1!B1", 20).
			Set("Sheet1!B1", "=A1+5").
			AssertNumber("Sheet1!B1", 15)
	})

	t.Run("RemoveAndRecalculate", func(t *testing.T) {
		newWorkbookTestCase(t).
			Set("Sheet1!A1", 10.0).
			Set("Sheet1!B1", "=A1*2").
			AssertNumber("Sheet1!B1", 20).
			Remove("Sheet1!A1").
			AssertNumber("Sheet1!B1", 0)
	})

	t.Run("Chain", func(t *testing.T) {
		tc := newWorkbookTestCase(t).
			Set("A1", 1).
			Set("A2", "=A1+1").
			Set("A3", "=A2+1").
			Set("A4", "=SUM(A1:A3)").
			AssertNumber("A4", 6).
			Set("A1", 10).
			AssertNumber("A4", 33)

		// reading the end of the chain brought every link up to date
		assert.False(t, tc.cell("A2").NeedsRecalculation())
		assert.False(t, tc.cell("A3").NeedsRecalculation())
	})

	t.Run("ValueReplacesFormula", func(t *testing.T) {
		tc := newWorkbookTestCase(t).
			Set("A1", "=1+1").
			Set("A1", "text").
			AssertText("A1", "text")
		_, ok := tc.cell("A1").Formula()
		assert.False(t, ok)
	})
}

func TestCalculateSkipsFreshFormulas(t *testing.T) {
	tc := newWorkbookTestCase(t).
		Set("A1", 1).
		Set("B1", "=A1*2").
		Set("C1", "=7").
		Calculate()

	c1 := tc.cell("C1").FormulaRecord()
	evaluatedAt := c1.Recalc.EvaluatedAt
	tc.Set("A1", 2).Calculate()
	assert.Equal(t, evaluatedAt, c1.Recalc.EvaluatedAt)
	assert.Equal(t, cells.Number(4), tc.cell("B1").CachedValue())
}

func TestCircularReferences(t *testing.T) {
	t.Run("ThreeCellCircular", func(t *testing.T) {
		newWorkbookTestCase(t).
			Set("Sheet1!A1", "=C1").
			Set("Sheet1!B1", "=A1").
			Set("Sheet1!C1", "=B1").
			Calculate().
			AssertError("Sheet1!A1", cells.ErrorCodeRef).
			AssertError("Sheet1!B1", cells.ErrorCodeRef).
			AssertError("Sheet1!C1", cells.ErrorCodeRef)
	})

	t.Run("CircularThroughRange", func(t *testing.T) {
		newWorkbookTestCase(t).
			Set("Sheet1!A1", "=SUM(A1:A3)").
			Calculate().
			AssertError("Sheet1!A1", cells.ErrorCodeRef)
	})

	t.Run("DeepCircularChain", func(t *testing.T) {
		newWorkbookTestCase(t).
			Set("Sheet1!A1", "=A2").
			Set("Sheet1!A2", "=A3").
			Set("Sheet1!A3", "=A4").
			Set("Sheet1!A4", "=A5").
			Set("Sheet1!A5", "=A1").
			Calculate().
			AssertError("Sheet1!A1", cells.ErrorCodeRef).
			AssertError("Sheet1!A5", cells.ErrorCodeRef)
	})

	t.Run("ReadReportsPath", func(t *testing.T) {
		tc := newWorkbookTestCase(t).
			Set("A1", "=B1").
			Set("B1", "=A1")

		v, err := tc.wb.Get("A1")
		require.ErrorIs(t, err, ErrCircularReference)
		var cycle *formula.CircularReferenceError
		require.ErrorAs(t, err, &cycle)
		assert.Len(t, cycle.Path, 3)
		assert.Equal(t, cells.ErrorValue(cells.ErrorCodeRef), v)

		// the cached #REF! is served without another error
		tc.AssertError("A1", cells.ErrorCodeRef).
			AssertError("B1", cells.ErrorCodeRef)
		assert.False(t, tc.cell("A1").FormulaRecord().Recalc.Evaluating())
	})

	t.Run("BreakingTheCycle", func(t *testing.T) {
		newWorkbookTestCase(t).
			Set("A1", "=C1").
			Set("B1", "=A1").
			Set("C1", "=B1").
			Calculate().
			Set("C1", 3).
			AssertNumber("A1", 3).
			AssertNumber("B1", 3)
	})

	t.Run("Logged", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		newWorkbookTestCase(t, WithLogger(logger)).
			Set("A1", "=A1+1").
			Calculate()
		assert.Contains(t, buf.String(), "circular reference")
	})
}

func TestWorksheetOperations(t *testing.T) {
	t.Run("AddAndLookup", func(t *testing.T) {
		wb := New()
		ws, err := wb.AddWorksheet("Sales")
		require.NoError(t, err)

		_, err = wb.AddWorksheet("SALES")
		assert.ErrorIs(t, err, ErrWorksheetExists)
		_, err = wb.AddWorksheet("  ")
		assert.ErrorIs(t, err, ErrInvalidName)
		_, err = wb.AddWorksheet("a/b")
		assert.ErrorIs(t, err, ErrInvalidName)

		got, err := wb.Worksheet("sales")
		require.NoError(t, err)
		assert.Same(t, ws, got)
		assert.Equal(t, "Sales", got.Name())
		_, err = wb.Worksheet("Missing")
		assert.ErrorIs(t, err, ErrWorksheetNotFound)
	})

	t.Run("CrossWorksheetReferences", func(t *testing.T) {
		tc := newWorkbookTestCase(t).
			Set("Sheet1!B1", "=Sheet2!A1*2").
			AssertError("Sheet1!B1", cells.ErrorCodeRef).
			AddWorksheet("Sheet2").
			Set("Sheet2!A1", 4).
			AssertNumber("Sheet1!B1", 8)

		require.NoError(t, tc.wb.RenameWorksheet("Sheet2", "Data"))
		tc.AssertError("Sheet1!B1", cells.ErrorCodeRef).
			Set("Sheet1!C1", "=Data!A1+1").
			AssertNumber("Sheet1!C1", 5)

		require.NoError(t, tc.wb.RemoveWorksheet("data"))
		tc.AssertError("Sheet1!C1", cells.ErrorCodeRef)
		assert.Len(t, tc.wb.Worksheets(), 1)
	})

	t.Run("IDsAreNotReused", func(t *testing.T) {
		wb := New()
		a, err := wb.AddWorksheet("A")
		require.NoError(t, err)
		require.NoError(t, wb.RemoveWorksheet("A"))
		b, err := wb.AddWorksheet("A")
		require.NoError(t, err)
		assert.Greater(t, b.ID(), a.ID())
	})

	t.Run("RemoveReleasesText", func(t *testing.T) {
		tc := newWorkbookTestCase(t).
			AddWorksheet("Other").
			Set("Other!A1", "shared").
			Set("Sheet1!A1", "shared")
		assert.Equal(t, 1, tc.wb.Text().Len())
		require.NoError(t, tc.wb.RemoveWorksheet("Other"))
		assert.Equal(t, 1, tc.wb.Text().Len())
		tc.Remove("Sheet1!A1")
		assert.Zero(t, tc.wb.Text().Len())
	})

	t.Run("RenameConflicts", func(t *testing.T) {
		tc := newWorkbookTestCase(t).AddWorksheet("Sheet2")
		assert.ErrorIs(t, tc.wb.RenameWorksheet("Sheet1", "sheet2"), ErrWorksheetExists)
		assert.ErrorIs(t, tc.wb.RenameWorksheet("Nope", "Other"), ErrWorksheetNotFound)
		// changing only the case is allowed
		assert.NoError(t, tc.wb.RenameWorksheet("Sheet1", "SHEET1"))
	})
}

func TestDefinedNames(t *testing.T) {
	tc := newWorkbookTestCase(t).
		Set("A1", 10).
		Set("A2", 20).
		Set("A3", 30)
	require.NoError(t, tc.wb.DefineName("Data", "Sheet1!$A$1:$A$3"))

	tc.Set("B1", "=SUM(Data)").
		AssertNumber("B1", 60).
		Set("A2", 25).
		AssertNumber("B1", 65).
		Set("B2", "=SUM(Later)").
		AssertError("B2", cells.ErrorCodeName)

	require.NoError(t, tc.wb.DefineName("later", "Sheet1!A1:A2"))
	tc.AssertNumber("B2", 35)

	require.NoError(t, tc.wb.RemoveName("DATA"))
	tc.AssertError("B1", cells.ErrorCodeName)
	assert.ErrorIs(t, tc.wb.RemoveName("Data"), ErrNameNotFound)

	assert.ErrorIs(t, tc.wb.DefineName("Loose", "A1:A2"), ErrInvalidAddress)
	assert.ErrorIs(t, tc.wb.DefineName("B7", "Sheet1!A1"), ErrInvalidName)
	assert.ErrorIs(t, tc.wb.DefineName("Far", "Nowhere!A1"), ErrWorksheetNotFound)

	names := tc.wb.Names()
	require.Len(t, names, 1)
	assert.Equal(t, "later", names[0].Name)
}

func TestVolatileFunctions(t *testing.T) {
	tc := newWorkbookTestCase(t).
		Set("A1", "=RAND()").
		AssertNumber("A1", 0.25)

	a1 := tc.cell("A1")
	assert.False(t, a1.NeedsRecalculation())
	tc.Set("C9", 1)
	assert.True(t, a1.NeedsRecalculation())
}

func TestSetValueTypes(t *testing.T) {
	tc := newWorkbookTestCase(t).
		Set("A1", 3).
		Set("A2", true).
		Set("A3", "plain").
		Set("A4", nil)

	tc.AssertNumber("A1", 3).AssertBlank("A4").AssertText("A3", "plain")
	assert.Equal(t, cells.Bool(true), tc.get("A2"))

	assert.Error(t, tc.wb.Set("A3", "=1+"))
	_, ok := tc.cell("A3").Formula()
	assert.False(t, ok)
	assert.ErrorIs(t, tc.wb.Set("A5", struct{}{}), ErrUnsupportedValue)
	assert.ErrorIs(t, tc.wb.Set("NOT A CELL", 1), ErrInvalidAddress)
	assert.ErrorIs(t, tc.wb.Set("Missing!A1", 1), ErrWorksheetNotFound)

	when := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	tc.Set("A6", when)
	got, err := tc.get("A6").AsDateTime()
	require.NoError(t, err)
	assert.True(t, when.Equal(got))
}

func TestRunnableWorkbook(t *testing.T) {
	r := NewRunnableWorkbook().
		AddWorksheet("Sheet1").
		SetBatch(map[string]any{"A1": 10, "A2": "=A1*2"}).
		Calculate()
	assert.Equal(t, cells.Number(20), r.Value("A2"))
	require.NoError(t, r.Error())

	r.Set("Nowhere!A1", 1).Set("A3", 5)
	assert.ErrorIs(t, r.Error(), ErrWorksheetNotFound)
	assert.True(t, r.Value("A1").IsBlank())
	_, err := r.Run()
	assert.Error(t, err)
	assert.Panics(t, func() { r.Must() })

	wb := NewRunnableWorkbook().AddWorksheet("S").Set("A1", 1).RunOrPanic()
	v, err := wb.Get("S!A1")
	require.NoError(t, err)
	assert.Equal(t, cells.Number(1), v)
}
