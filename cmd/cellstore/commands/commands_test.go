package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogtb/go-spreadsheet/packages/config"
	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
	"github.com/vogtb/go-spreadsheet/packages/xlsxio"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "cellstore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", writeTestConfig(t, "")}, args...))
	err := root.Execute()

	return out.String(), err
}

func writeSampleXLSX(t *testing.T) string {
	t.Helper()

	wb, err := spreadsheet.NewRunnableWorkbook().
		AddWorksheet("Prices").
		Set("A1", "widget").
		Set("B1", 2.5).
		Set("B2", 4).
		Set("B3", "=SUM(B1:B2)").
		Run()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "prices.xlsx")
	require.NoError(t, xlsxio.Save(wb, path))

	return path
}

func TestBench(t *testing.T) {
	out, err := execute(t, "bench", "--rows", "25", "--columns", "4", "--seed", "7")
	require.NoError(t, err)

	assert.Contains(t, out, "bench 25 rows x 4 columns (100 cells)")
	for _, step := range []string{"fill", "calculate", "insert rows", "delete rows", "sort", "recalculate", "snapshot"} {
		assert.Regexp(t, step+`\s+\d`, out)
	}
	assert.Contains(t, out, "heap in use")
}

func TestBench_RejectsTooFewColumns(t *testing.T) {
	_, err := execute(t, "bench", "--rows", "5", "--columns", "1")
	require.Error(t, err)
}

func TestConvertAndInspect(t *testing.T) {
	input := writeSampleXLSX(t)
	dir := t.TempDir()
	snap := filepath.Join(dir, "prices.snap")
	back := filepath.Join(dir, "back.xlsx")

	out, err := execute(t, "convert", input, snap)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+snap)

	out, err = execute(t, "inspect", snap)
	require.NoError(t, err)
	assert.Regexp(t, `worksheets\s+1\s`, out)
	assert.Regexp(t, `Prices\s+A1:B3\s`, out)

	_, err = execute(t, "convert", snap, back)
	require.NoError(t, err)

	wb, err := xlsxio.Load(back, xlsxio.Options{Calculate: true})
	require.NoError(t, err)
	v, err := wb.Get("Prices!B3")
	require.NoError(t, err)
	n, err := v.AsNumber()
	require.NoError(t, err)
	assert.InDelta(t, 6.5, n, 1e-9)
}

func TestSnapshotCommand(t *testing.T) {
	input := writeSampleXLSX(t)

	_, err := execute(t, "snapshot", input, filepath.Join(t.TempDir(), "out.xlsx"))
	require.ErrorIs(t, err, ErrUnknownFormat)

	out := filepath.Join(t.TempDir(), "out.snap")
	_, err = execute(t, "snapshot", input, out)
	require.NoError(t, err)
	assert.FileExists(t, out)
}

func TestUnknownFormat(t *testing.T) {
	_, err := execute(t, "inspect", writeTestConfig(t, ""))
	require.ErrorIs(t, err, ErrUnknownFormat)
}

func TestInvalidConfig(t *testing.T) {
	root := NewRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", writeTestConfig(t, "logging:\n  format: xml\n"), "bench"})

	err := root.Execute()
	require.ErrorIs(t, err, config.ErrInvalidLogFormat)
}
