package xlsxio

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/vogtb/go-spreadsheet/packages/cells"
	"github.com/vogtb/go-spreadsheet/packages/grid"
	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
	"github.com/vogtb/go-spreadsheet/packages/sst"
	"github.com/vogtb/go-spreadsheet/packages/styles"
)

// number formats given to date-times and time spans whose cell style has
// none of its own
const (
	dateTimeFormatID = 22 // m/d/yy h:mm
	timeSpanFormatID = 46 // [h]:mm:ss
)

const commentAuthor = "cellstore"

// Save writes wb to path. formulas are stored without cached results and
// data tables as their cached values.
func Save(wb *spreadsheet.Workbook, path string) error {
	sheets := wb.Worksheets()
	if len(sheets) == 0 {
		return ErrEmptyWorkbook
	}

	f := excelize.NewFile()
	defer f.Close()

	s := &saver{f: f, styleIDs: map[styles.Style]int{}}
	for i, ws := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), ws.Name()); err != nil {
				return &SheetError{Sheet: ws.Name(), Err: err}
			}
		} else if _, err := f.NewSheet(ws.Name()); err != nil {
			return &SheetError{Sheet: ws.Name(), Err: err}
		}
		if err := s.saveSheet(ws); err != nil {
			return err
		}
	}

	for _, dn := range wb.Names() {
		ws, ok := wb.WorksheetByID(dn.Sheet)
		if !ok {
			continue
		}
		err := f.SetDefinedName(&excelize.DefinedName{
			Name:     dn.Name,
			RefersTo: quoteSheet(ws.Name()) + "!" + absolute(dn.Rect),
		})
		if err != nil {
			return fmt.Errorf("define name %s: %w", dn.Name, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	wb.Logger().Debug("saved workbook", "path", path, "worksheets", len(sheets))
	return nil
}

type saver struct {
	f        *excelize.File
	styleIDs map[styles.Style]int
}

func (s *saver) saveSheet(ws *spreadsheet.Worksheet) error {
	sheet := ws.Name()
	for p := range ws.Cells().UsedPoints(grid.Sheet()) {
		if err := s.saveCell(ws.CellAt(p)); err != nil {
			return &SheetError{Sheet: sheet, Cell: p.String(), Err: err}
		}
	}
	return nil
}

func (s *saver) saveCell(c *spreadsheet.Cell) error {
	sheet, name := c.Worksheet().Name(), c.Point().String()

	var v cells.Value
	if f := c.FormulaRecord(); f != nil {
		switch f.Kind {
		case cells.NormalFormula:
			if err := s.f.SetCellFormula(sheet, name, f.Text); err != nil {
				return err
			}
		case cells.ArrayFormula:
			if c.Point() == f.Master() {
				typ, ref := excelize.STCellFormulaTypeArray, f.Range.String()
				if err := s.f.SetCellFormula(sheet, name, f.Text, excelize.FormulaOpts{Type: &typ, Ref: &ref}); err != nil {
					return err
				}
			}
		case cells.DataTableFormula:
			v = c.CachedValue()
		}
	} else {
		var err error
		if v, err = c.Value(); err != nil {
			return err
		}
	}

	if err := s.writeValue(sheet, name, v); err != nil {
		return err
	}
	if err := s.writeStyle(sheet, name, c.Style(), v.Kind()); err != nil {
		return err
	}
	return s.writeMisc(sheet, name, c.Misc())
}

func (s *saver) writeValue(sheet, name string, v cells.Value) error {
	switch v.Kind() {
	case cells.KindBlank:
		return nil
	case cells.KindBoolean:
		b, _ := v.AsBool()
		return s.f.SetCellBool(sheet, name, b)
	case cells.KindNumber, cells.KindDateTime, cells.KindTimeSpan:
		n, _ := v.AsNumber()
		return s.f.SetCellFloat(sheet, name, n, -1, 64)
	case cells.KindText:
		if rich, _ := v.AsRichText(); rich != nil {
			return s.f.SetCellRichText(sheet, name, toRuns(rich))
		}
		text, _ := v.AsText()
		return s.f.SetCellStr(sheet, name, text)
	case cells.KindError:
		// xlsx has no way to store a bare error value outside a formula
		code, _ := v.AsError()
		return s.f.SetCellFormula(sheet, name, code.String())
	}
	return nil
}

func toRuns(rich *sst.RichText) []excelize.RichTextRun {
	runs := make([]excelize.RichTextRun, 0, len(rich.Runs))
	for _, r := range rich.Runs {
		font := &excelize.Font{
			Bold:   r.Bold,
			Italic: r.Italic,
			Color:  r.Color,
			Size:   r.Size,
			Family: r.FontName,
		}
		if r.Underline {
			font.Underline = "single"
		}
		runs = append(runs, excelize.RichTextRun{Text: r.Text, Font: font})
	}
	return runs
}

// writeStyle formats the cell. date-times and time spans always get a
// matching number format so they load back with their kind.
func (s *saver) writeStyle(sheet, name string, style *styles.Style, kind cells.Kind) error {
	st := *style
	switch kind {
	case cells.KindDateTime:
		if !st.IsDate() || styles.IsElapsedFormat(st.FormatCode()) {
			st.NumberFormat = styles.NumberFormat{ID: dateTimeFormatID}
		}
	case cells.KindTimeSpan:
		if !styles.IsElapsedFormat(st.FormatCode()) {
			st.NumberFormat = styles.NumberFormat{ID: timeSpanFormatID}
		}
	}
	if st == styles.Default {
		return nil
	}
	id, ok := s.styleIDs[st]
	if !ok {
		var err error
		if id, err = s.f.NewStyle(toExcelize(&st)); err != nil {
			return err
		}
		s.styleIDs[st] = id
	}
	return s.f.SetCellStyle(sheet, name, name, id)
}

func toExcelize(s *styles.Style) *excelize.Style {
	xs := &excelize.Style{
		NumFmt: s.NumberFormat.ID,
		Font: &excelize.Font{
			Family:    s.Font.Name,
			Size:      s.Font.Size,
			Bold:      s.Font.Bold,
			Italic:    s.Font.Italic,
			Underline: s.Font.Underline,
			Strike:    s.Font.Strike,
			Color:     s.Font.Color,
		},
		Alignment: &excelize.Alignment{
			Horizontal:   s.Alignment.Horizontal,
			Vertical:     s.Alignment.Vertical,
			WrapText:     s.Alignment.WrapText,
			Indent:       s.Alignment.Indent,
			TextRotation: s.Alignment.Rotation,
		},
		Protection: &excelize.Protection{Locked: s.Protection.Locked, Hidden: s.Protection.Hidden},
	}
	if s.NumberFormat.Code != "" {
		code := s.NumberFormat.Code
		xs.CustomNumFmt = &code
	}
	if s.Fill.Pattern == "solid" && s.Fill.Color != "" {
		xs.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{s.Fill.Color}}
	}
	sides := []struct {
		typ  string
		side styles.BorderSide
	}{
		{"left", s.Border.Left},
		{"right", s.Border.Right},
		{"top", s.Border.Top},
		{"bottom", s.Border.Bottom},
	}
	for _, b := range sides {
		if b.side.Style != 0 {
			xs.Border = append(xs.Border, excelize.Border{Type: b.typ, Color: b.side.Color, Style: b.side.Style})
		}
	}
	return xs
}

func (s *saver) writeMisc(sheet, name string, m cells.Misc) error {
	if m.Comment != "" {
		if err := s.f.AddComment(sheet, excelize.Comment{
			Cell:      name,
			Author:    commentAuthor,
			Paragraph: []excelize.RichTextRun{{Text: m.Comment}},
		}); err != nil {
			return err
		}
	}
	if m.Hyperlink != "" {
		linkType := "Location"
		if strings.Contains(m.Hyperlink, "://") || strings.HasPrefix(m.Hyperlink, "mailto:") {
			linkType = "External"
		}
		if err := s.f.SetCellHyperLink(sheet, name, m.Hyperlink, linkType); err != nil {
			return err
		}
	}
	return nil
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// absolute renders rect as $A$1:$B$2, or $A$1 for a single cell
func absolute(rect grid.Rect) string {
	point := func(p grid.Point) string {
		return fmt.Sprintf("$%s$%d", grid.ColumnName(p.Column), p.Row)
	}
	if rect.Width() == 1 && rect.Height() == 1 {
		return point(rect.TopLeft())
	}
	return point(rect.TopLeft()) + ":" + point(rect.BottomRight())
}
