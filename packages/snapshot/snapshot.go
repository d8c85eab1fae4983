// Package snapshot stores a workbook as a checksummed msgpack document.
//
// A snapshot keeps what the workbook stores: values, formula text, range
// formulas, styles, cell metadata and defined names. formula results are
// not kept, so every formula is stale after Decode and is evaluated when
// first read.
package snapshot

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/vogtb/go-spreadsheet/packages/cells"
	"github.com/vogtb/go-spreadsheet/packages/grid"
	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
	"github.com/vogtb/go-spreadsheet/packages/sst"
	"github.com/vogtb/go-spreadsheet/packages/styles"
)

const (
	magic = "CELLSNAP"

	// Version is the document version written by Encode.
	Version = 1
)

var (
	// ErrCorrupt is returned when a snapshot fails its checksum or can not
	// be decoded.
	ErrCorrupt = errors.New("corrupt snapshot")

	// ErrUnsupportedVersion is returned for snapshots written by a newer
	// version.
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")
)

// envelope frames the body. the checksum covers the encoded body bytes.
type envelope struct {
	Magic    string `msgpack:"magic"`
	Version  int    `msgpack:"version"`
	Checksum uint64 `msgpack:"checksum"`
	Body     []byte `msgpack:"body"`
}

type document struct {
	// shared texts in consecutive id order
	Text       []textDoc      `msgpack:"text"`
	Styles     []styles.Style `msgpack:"styles"`
	Worksheets []sheetDoc     `msgpack:"worksheets"`
	Names      []nameDoc      `msgpack:"names,omitempty"`
}

type textDoc struct {
	Plain string    `msgpack:"p,omitempty"`
	Runs  []sst.Run `msgpack:"r,omitempty"`
}

type valueDoc struct {
	Kind cells.Kind `msgpack:"k"`
	Num  float64    `msgpack:"n,omitempty"`
	// Shared is the consecutive text id plus one, zero for none
	Shared int      `msgpack:"s,omitempty"`
	Inline *textDoc `msgpack:"i,omitempty"`
	// InlineText marks text kept out of the shared table
	InlineText bool `msgpack:"it,omitempty"`
}

type cellDoc struct {
	Row     int         `msgpack:"r"`
	Column  int         `msgpack:"c"`
	Value   *valueDoc   `msgpack:"v,omitempty"`
	Formula string      `msgpack:"f,omitempty"`
	Style   int         `msgpack:"s,omitempty"` // style index plus one
	Misc    *cells.Misc `msgpack:"m,omitempty"`
}

type rangeDoc struct {
	Kind     cells.FormulaKind `msgpack:"k"`
	Rect     grid.Rect         `msgpack:"rect"`
	Text     string            `msgpack:"text,omitempty"`
	Input1   grid.Point        `msgpack:"in1,omitempty"`
	Input2   grid.Point        `msgpack:"in2,omitempty"`
	Is2D     bool              `msgpack:"is2d,omitempty"`
	RowInput bool              `msgpack:"row_input,omitempty"`
	Results  []valueDoc        `msgpack:"results,omitempty"`
}

type sheetDoc struct {
	Name   string     `msgpack:"name"`
	Cells  []cellDoc  `msgpack:"cells"`
	Ranges []rangeDoc `msgpack:"ranges,omitempty"`
}

type nameDoc struct {
	Name  string    `msgpack:"name"`
	Sheet string    `msgpack:"sheet"`
	Rect  grid.Rect `msgpack:"rect"`
}

// Encode writes a snapshot of wb to w.
func Encode(wb *spreadsheet.Workbook, w io.Writer) error {
	doc := newEncoder(wb).document()

	var body bytes.Buffer
	enc := msgpack.GetEncoder()
	enc.Reset(&body)
	enc.SetSortMapKeys(true)
	err := enc.Encode(doc)
	msgpack.PutEncoder(enc)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	env := envelope{
		Magic:    magic,
		Version:  Version,
		Checksum: xxhash.Sum64(body.Bytes()),
		Body:     body.Bytes(),
	}
	if err := msgpack.NewEncoder(w).Encode(&env); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	wb.Logger().Debug("encoded snapshot", "bytes", body.Len(), "worksheets", len(doc.Worksheets), "texts", len(doc.Text))
	return nil
}

type encoder struct {
	wb      *spreadsheet.Workbook
	textIDs []int
	styles  map[*styles.Style]int
	doc     document
}

func newEncoder(wb *spreadsheet.Workbook) *encoder {
	return &encoder{
		wb:      wb,
		textIDs: wb.Text().ConsecutiveIDMap(),
		styles:  map[*styles.Style]int{},
	}
}

func (e *encoder) document() *document {
	for _, text := range e.wb.Text().All() {
		e.doc.Text = append(e.doc.Text, toTextDoc(text))
	}
	for _, ws := range e.wb.Worksheets() {
		e.doc.Worksheets = append(e.doc.Worksheets, e.sheet(ws))
	}
	for _, dn := range e.wb.Names() {
		ws, ok := e.wb.WorksheetByID(dn.Sheet)
		if !ok {
			continue
		}
		e.doc.Names = append(e.doc.Names, nameDoc{Name: dn.Name, Sheet: ws.Name(), Rect: dn.Rect})
	}
	return &e.doc
}

func toTextDoc(t sst.Text) textDoc {
	if t.Rich != nil {
		return textDoc{Runs: t.Rich.Runs}
	}
	return textDoc{Plain: t.Plain}
}

func (e *encoder) sheet(ws *spreadsheet.Worksheet) sheetDoc {
	sd := sheetDoc{Name: ws.Name()}
	c := ws.Cells()
	for p := range c.UsedPoints(grid.Sheet()) {
		cd := cellDoc{Row: p.Row, Column: p.Column}
		if c.Values.IsUsed(p) {
			cd.Value = e.value(c, p)
		}
		if f := c.Formulas.Get(p); f != nil && !f.IsRange() {
			cd.Formula = f.Text
		}
		if s := c.Styles.Get(p); s != nil {
			cd.Style = e.style(s)
		}
		if c.Misc.IsUsed(p) {
			m := c.Misc.Get(p)
			cd.Misc = &m
		}
		sd.Cells = append(sd.Cells, cd)
	}

	ranges := slices.Collect(c.Formulas.Arrays())
	slices.SortFunc(ranges, func(a, b *cells.Formula) int {
		return cmp.Or(cmp.Compare(a.Range.Top, b.Range.Top), cmp.Compare(a.Range.Left, b.Range.Left))
	})
	for _, f := range ranges {
		rd := rangeDoc{Kind: f.Kind, Rect: f.Range, Text: f.Text}
		if f.Kind == cells.DataTableFormula {
			rd.Input1, rd.Input2, rd.Is2D, rd.RowInput = f.Input1, f.Input2, f.Is2D, f.RowInput
			for _, v := range f.Recalc.Results {
				rd.Results = append(rd.Results, *inlineValue(v))
			}
		}
		sd.Ranges = append(sd.Ranges, rd)
	}
	return sd
}

// value encodes a stored value. shared text is referenced by its position
// in the compacted text list.
func (e *encoder) value(c *cells.Collection, p grid.Point) *valueDoc {
	v := c.Values.Get(p)
	if id, ok := c.Values.TextID(p); ok && !v.IsInline() {
		if n := e.textIDs[id]; n >= 0 {
			return &valueDoc{Kind: cells.KindText, Shared: n + 1}
		}
	}
	return inlineValue(v)
}

func inlineValue(v cells.Value) *valueDoc {
	vd := &valueDoc{Kind: v.Kind(), InlineText: v.IsInline()}
	switch v.Kind() {
	case cells.KindBoolean:
		if b, _ := v.AsBool(); b {
			vd.Num = 1
		}
	case cells.KindNumber, cells.KindDateTime, cells.KindTimeSpan:
		vd.Num, _ = v.AsNumber()
	case cells.KindError:
		code, _ := v.AsError()
		vd.Num = float64(code)
	case cells.KindText:
		s, _ := v.AsText()
		td := textDoc{Plain: s}
		if rich, _ := v.AsRichText(); rich != nil {
			td = textDoc{Runs: rich.Runs}
		}
		vd.Inline = &td
	}
	return vd
}

func (e *encoder) style(s *styles.Style) int {
	if i, ok := e.styles[s]; ok {
		return i + 1
	}
	e.styles[s] = len(e.doc.Styles)
	e.doc.Styles = append(e.doc.Styles, *s)
	return len(e.doc.Styles)
}
