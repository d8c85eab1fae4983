// Package xlsxio reads and writes workbooks as xlsx files through excelize.
package xlsxio

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/vogtb/go-spreadsheet/packages/cells"
	"github.com/vogtb/go-spreadsheet/packages/grid"
	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
	"github.com/vogtb/go-spreadsheet/packages/sst"
	"github.com/vogtb/go-spreadsheet/packages/styles"
)

// Options controls Load.
type Options struct {
	// MaxFileSize rejects larger inputs. zero means no limit.
	MaxFileSize uint64
	// Calculate evaluates every formula once the workbook is read.
	Calculate bool
	// Styles imports cell formatting. number formats still decide between
	// numbers and dates when it is off.
	Styles bool
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.Logger
}

// Load reads the xlsx file at path into a new workbook. formulas that do
// not parse are skipped with a warning and their cached values are kept.
func Load(path string, opts Options) (*spreadsheet.Workbook, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if opts.MaxFileSize > 0 && uint64(info.Size()) > opts.MaxFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrFileTooLarge, path, info.Size())
	}

	formulas, err := scanFormulas(path)
	if err != nil {
		return nil, err
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}
	defer f.Close()

	logger := opts.logger()
	wb := spreadsheet.New(spreadsheet.WithLogger(logger))
	l := &loader{f: f, wb: wb, opts: opts, logger: logger, styleCache: map[int]styles.Style{}}

	for _, name := range f.GetSheetList() {
		ws, err := wb.AddWorksheet(name)
		if err != nil {
			return nil, &SheetError{Sheet: name, Err: err}
		}
		if err := l.loadSheet(ws, formulas[name]); err != nil {
			return nil, err
		}
	}
	l.loadNames()

	if opts.Calculate {
		if err := wb.Calculate(); err != nil {
			return nil, fmt.Errorf("calculate %s: %w", path, err)
		}
	}
	formulaCount, _ := wb.Engine().FormulaCount()
	logger.Debug("loaded workbook", "path", path, "worksheets", len(wb.Worksheets()), "formulas", formulaCount)
	return wb, nil
}

type loader struct {
	f          *excelize.File
	wb         *spreadsheet.Workbook
	opts       Options
	logger     *slog.Logger
	styleCache map[int]styles.Style
}

func (l *loader) loadSheet(ws *spreadsheet.Worksheet, formulas []formulaCell) error {
	sheet := ws.Name()

	// cells whose content comes from a formula rather than a stored value
	skip := make(map[grid.Point]bool, len(formulas))
	var arrays []grid.Rect
	for _, fc := range formulas {
		switch fc.Type {
		case formulaArray:
			rect, err := grid.ParseRect(fc.Ref)
			if err != nil {
				rect = grid.CellRect(fc.At)
			}
			arrays = append(arrays, rect)
			skip[fc.At] = true
		case formulaDataTable:
			// cached results are loaded as plain values
		default:
			skip[fc.At] = true
		}
	}

	rows, err := l.f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return &SheetError{Sheet: sheet, Err: err}
	}
	for rowIdx, row := range rows {
		for colIdx, raw := range row {
			p := grid.Point{Row: rowIdx + 1, Column: colIdx + 1}
			if raw == "" || skip[p] || inAny(arrays, p) {
				continue
			}
			if err := l.loadCell(ws, p, raw); err != nil {
				return &SheetError{Sheet: sheet, Cell: p.String(), Err: err}
			}
		}
	}

	for _, fc := range formulas {
		if err := l.loadFormula(ws, fc); err != nil {
			l.logger.Warn("skipping formula", "sheet", sheet, "cell", fc.At.String(), "err", err)
		}
	}

	if err := l.loadComments(ws); err != nil {
		return &SheetError{Sheet: sheet, Err: err}
	}
	return nil
}

func inAny(rects []grid.Rect, p grid.Point) bool {
	for _, r := range rects {
		if r.Contains(p) {
			return true
		}
	}
	return false
}

func (l *loader) loadCell(ws *spreadsheet.Worksheet, p grid.Point, raw string) error {
	sheet, name := ws.Name(), p.String()
	c := ws.CellAt(p)

	style, err := l.cellStyle(sheet, name)
	if err != nil {
		return err
	}
	typ, err := l.f.GetCellType(sheet, name)
	if err != nil {
		return err
	}

	var v cells.Value
	switch typ {
	case excelize.CellTypeBool:
		v = cells.Bool(raw == "1" || strings.EqualFold(raw, "true"))
	case excelize.CellTypeError:
		code, ok := cells.ParseErrorCode(raw)
		if !ok {
			code = cells.ErrorCodeValue
		}
		v = cells.ErrorValue(code)
	case excelize.CellTypeSharedString:
		v = l.textValue(sheet, name, raw, false)
	case excelize.CellTypeInlineString:
		v = l.textValue(sheet, name, raw, true)
	case excelize.CellTypeDate:
		v = dateValue(raw)
	default:
		v = numberValue(raw, &style)
	}
	if err := c.SetValue(v); err != nil {
		return err
	}

	if l.opts.Styles {
		c.SetStyle(style)
	}
	if ok, target, err := l.f.GetCellHyperLink(sheet, name); err == nil && ok && target != "" {
		m := c.Misc()
		m.Hyperlink = target
		c.SetMisc(m)
	}
	return nil
}

// numberValue reads a stored number. the number format decides whether it
// is a date-time or a time span.
func numberValue(raw string, style *styles.Style) cells.Value {
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return cells.Text(raw)
	}
	code := style.FormatCode()
	switch {
	case styles.IsElapsedFormat(code):
		return cells.TimeSpanSerial(n)
	case styles.IsDateFormat(code):
		return cells.DateTimeSerial(n)
	}
	return cells.Number(n)
}

func dateValue(raw string) cells.Value {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return cells.DateTime(t)
		}
	}
	return cells.Text(raw)
}

func (l *loader) textValue(sheet, name, raw string, inline bool) cells.Value {
	runs, err := l.f.GetCellRichText(sheet, name)
	if err == nil && isRich(runs) {
		rich := &sst.RichText{Runs: make([]sst.Run, 0, len(runs))}
		for _, r := range runs {
			run := sst.Run{Text: r.Text}
			if r.Font != nil {
				run.Bold = r.Font.Bold
				run.Italic = r.Font.Italic
				run.Underline = r.Font.Underline != "" && r.Font.Underline != "none"
				run.Color = r.Font.Color
				run.Size = r.Font.Size
				run.FontName = r.Font.Family
			}
			rich.Runs = append(rich.Runs, run)
		}
		return cells.Rich(rich)
	}
	if inline {
		return cells.InlineText(raw)
	}
	return cells.Text(raw)
}

func isRich(runs []excelize.RichTextRun) bool {
	if len(runs) > 1 {
		return true
	}
	return len(runs) == 1 && runs[0].Font != nil
}

func (l *loader) loadFormula(ws *spreadsheet.Worksheet, fc formulaCell) error {
	switch fc.Type {
	case formulaDataTable:
		return nil
	case formulaArray:
		text, err := l.f.GetCellFormula(ws.Name(), fc.At.String())
		if err != nil {
			return err
		}
		rect, err := grid.ParseRect(fc.Ref)
		if err != nil {
			rect = grid.CellRect(fc.At)
		}
		return ws.SetArrayFormula(rect, text)
	}
	text, err := l.f.GetCellFormula(ws.Name(), fc.At.String())
	if err != nil || text == "" {
		return err
	}
	c := ws.CellAt(fc.At)
	if err := c.SetFormula(text); err != nil {
		return err
	}
	if l.opts.Styles {
		style, err := l.cellStyle(ws.Name(), fc.At.String())
		if err != nil {
			return err
		}
		c.SetStyle(style)
	}
	return nil
}

func (l *loader) loadComments(ws *spreadsheet.Worksheet) error {
	comments, err := l.f.GetComments(ws.Name())
	if err != nil {
		return err
	}
	for _, cm := range comments {
		p, err := grid.ParsePoint(cm.Cell)
		if err != nil {
			continue
		}
		text := cm.Text
		if text == "" {
			var b strings.Builder
			for _, r := range cm.Paragraph {
				b.WriteString(r.Text)
			}
			text = b.String()
		}
		c := ws.CellAt(p)
		m := c.Misc()
		m.Comment = text
		c.SetMisc(m)
	}
	return nil
}

// loadNames defines the workbook scoped names. names over anything but a
// plain range are skipped.
func (l *loader) loadNames() {
	for _, dn := range l.f.GetDefinedName() {
		if dn.Scope != "" && dn.Scope != "Workbook" {
			continue
		}
		ref := strings.TrimPrefix(dn.RefersTo, "=")
		if err := l.wb.DefineName(dn.Name, ref); err != nil {
			l.logger.Warn("skipping defined name", "name", dn.Name, "refers_to", dn.RefersTo, "err", err)
		}
	}
}

// cellStyle converts the excelize style of a cell. results are cached by
// style index since most cells share a handful of styles.
func (l *loader) cellStyle(sheet, name string) (styles.Style, error) {
	idx, err := l.f.GetCellStyle(sheet, name)
	if err != nil {
		return styles.Default, err
	}
	if s, ok := l.styleCache[idx]; ok {
		return s, nil
	}
	xs, err := l.f.GetStyle(idx)
	if err != nil {
		return styles.Default, err
	}
	s := fromExcelize(xs)
	l.styleCache[idx] = s
	return s, nil
}

func fromExcelize(xs *excelize.Style) styles.Style {
	s := styles.Default
	if xs == nil {
		return s
	}
	s.NumberFormat.ID = xs.NumFmt
	if xs.CustomNumFmt != nil {
		s.NumberFormat.Code = *xs.CustomNumFmt
	}
	if xs.Font != nil {
		s.Font = styles.Font{
			Name:      xs.Font.Family,
			Size:      xs.Font.Size,
			Bold:      xs.Font.Bold,
			Italic:    xs.Font.Italic,
			Underline: xs.Font.Underline,
			Strike:    xs.Font.Strike,
			Color:     xs.Font.Color,
		}
		if s.Font.Name == "" {
			s.Font.Name = styles.Default.Font.Name
		}
		if s.Font.Size == 0 {
			s.Font.Size = styles.Default.Font.Size
		}
	}
	if xs.Fill.Pattern == 1 && len(xs.Fill.Color) > 0 {
		s.Fill = styles.Fill{Pattern: "solid", Color: xs.Fill.Color[0]}
	}
	for _, b := range xs.Border {
		side := styles.BorderSide{Style: b.Style, Color: b.Color}
		switch b.Type {
		case "left":
			s.Border.Left = side
		case "right":
			s.Border.Right = side
		case "top":
			s.Border.Top = side
		case "bottom":
			s.Border.Bottom = side
		}
	}
	if xs.Alignment != nil {
		s.Alignment = styles.Alignment{
			Horizontal: xs.Alignment.Horizontal,
			Vertical:   xs.Alignment.Vertical,
			WrapText:   xs.Alignment.WrapText,
			Indent:     xs.Alignment.Indent,
			Rotation:   xs.Alignment.TextRotation,
		}
	}
	if xs.Protection != nil {
		s.Protection = styles.Protection{Locked: xs.Protection.Locked, Hidden: xs.Protection.Hidden}
	}
	return s
}
