package snapshot

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/vogtb/go-spreadsheet/packages/cells"
	"github.com/vogtb/go-spreadsheet/packages/grid"
	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
	"github.com/vogtb/go-spreadsheet/packages/sst"
)

// Decode reads a snapshot written by Encode into a new workbook created
// with opts.
func Decode(r io.Reader, opts ...spreadsheet.Option) (*spreadsheet.Workbook, error) {
	var env envelope
	if err := msgpack.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if env.Magic != magic {
		return nil, fmt.Errorf("%w: not a snapshot", ErrCorrupt)
	}
	if env.Version > Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, env.Version)
	}
	if sum := xxhash.Sum64(env.Body); sum != env.Checksum {
		return nil, fmt.Errorf("%w: checksum %016x, want %016x", ErrCorrupt, sum, env.Checksum)
	}

	var doc document
	dec := msgpack.GetDecoder()
	dec.Reset(bytes.NewReader(env.Body))
	err := dec.Decode(&doc)
	msgpack.PutDecoder(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	wb := spreadsheet.New(opts...)
	d := &decoder{wb: wb, doc: &doc}
	for _, sd := range doc.Worksheets {
		if err := d.sheet(sd); err != nil {
			return nil, err
		}
	}
	for _, nd := range doc.Names {
		ref := "'" + strings.ReplaceAll(nd.Sheet, "'", "''") + "'!" + nd.Rect.String()
		if err := wb.DefineName(nd.Name, ref); err != nil {
			return nil, fmt.Errorf("define name %s: %w", nd.Name, err)
		}
	}
	return wb, nil
}

type decoder struct {
	wb  *spreadsheet.Workbook
	doc *document
}

func (d *decoder) sheet(sd sheetDoc) error {
	ws, err := d.wb.AddWorksheet(sd.Name)
	if err != nil {
		return err
	}
	for _, cd := range sd.Cells {
		p := grid.Point{Row: cd.Row, Column: cd.Column}
		if !p.IsValid() {
			return fmt.Errorf("%w: cell %d,%d", ErrCorrupt, cd.Row, cd.Column)
		}
		c := ws.CellAt(p)
		if cd.Value != nil {
			v, err := d.value(*cd.Value)
			if err != nil {
				return err
			}
			if err := c.SetValue(v); err != nil {
				return err
			}
		}
		if cd.Formula != "" {
			if err := c.SetFormula(cd.Formula); err != nil {
				return fmt.Errorf("%s!%s: %w", sd.Name, p, err)
			}
		}
		if cd.Style > 0 {
			if cd.Style > len(d.doc.Styles) {
				return fmt.Errorf("%w: style %d", ErrCorrupt, cd.Style)
			}
			c.SetStyle(d.doc.Styles[cd.Style-1])
		}
		if cd.Misc != nil {
			c.SetMisc(*cd.Misc)
		}
	}

	for _, rd := range sd.Ranges {
		if err := d.rangeFormula(ws, rd); err != nil {
			return fmt.Errorf("%s!%s: %w", sd.Name, rd.Rect, err)
		}
	}
	return nil
}

func (d *decoder) rangeFormula(ws *spreadsheet.Worksheet, rd rangeDoc) error {
	switch rd.Kind {
	case cells.ArrayFormula:
		return ws.SetArrayFormula(rd.Rect, rd.Text)
	case cells.DataTableFormula:
		results := make([]cells.Value, 0, len(rd.Results))
		for _, vd := range rd.Results {
			v, err := d.value(vd)
			if err != nil {
				return err
			}
			results = append(results, v)
		}
		return ws.SetDataTable(rd.Rect, rd.Input1, rd.Input2, rd.Is2D, rd.RowInput, results)
	}
	return fmt.Errorf("%w: range formula kind %d", ErrCorrupt, rd.Kind)
}

func (d *decoder) value(vd valueDoc) (cells.Value, error) {
	switch vd.Kind {
	case cells.KindBlank:
		return cells.Blank(), nil
	case cells.KindBoolean:
		return cells.Bool(vd.Num != 0), nil
	case cells.KindNumber:
		return cells.Number(vd.Num), nil
	case cells.KindDateTime:
		return cells.DateTimeSerial(vd.Num), nil
	case cells.KindTimeSpan:
		return cells.TimeSpanSerial(vd.Num), nil
	case cells.KindError:
		return cells.ErrorValue(cells.ErrorCode(vd.Num)), nil
	case cells.KindText:
		if vd.Shared > 0 {
			if vd.Shared > len(d.doc.Text) {
				return cells.Value{}, fmt.Errorf("%w: text %d", ErrCorrupt, vd.Shared)
			}
			return textValue(d.doc.Text[vd.Shared-1], false), nil
		}
		if vd.Inline != nil {
			return textValue(*vd.Inline, vd.InlineText), nil
		}
	}
	return cells.Value{}, fmt.Errorf("%w: value kind %d", ErrCorrupt, vd.Kind)
}

func textValue(td textDoc, inline bool) cells.Value {
	switch {
	case len(td.Runs) > 0:
		return cells.Rich(&sst.RichText{Runs: td.Runs})
	case inline:
		return cells.InlineText(td.Plain)
	}
	return cells.Text(td.Plain)
}
