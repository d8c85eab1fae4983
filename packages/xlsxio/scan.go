package xlsxio

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/vogtb/go-spreadsheet/packages/grid"
)

// formula types of the <f t="..."> attribute
const (
	formulaNormal    = "normal"
	formulaShared    = "shared"
	formulaArray     = "array"
	formulaDataTable = "dataTable"
)

// formulaCell is one <f> element of a worksheet
type formulaCell struct {
	At   grid.Point
	Type string
	Ref  string // covered range of array and data table formulas
}

type workbookXML struct {
	Sheets []struct {
		Name string `xml:"name,attr"`
		RID  string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
	} `xml:"sheets>sheet"`
}

type relationshipsXML struct {
	Relationships []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

// scanFormulas lists the formula cells of every worksheet in the package.
// excelize expands shared formulas for us but does not expose the range of
// an array formula, so the worksheet parts are read directly.
func scanFormulas(xlsxPath string) (map[string][]formulaCell, error) {
	r, err := zip.OpenReader(xlsxPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}
	defer r.Close()

	parts, err := sheetParts(&r.Reader)
	if err != nil {
		return nil, err
	}

	result := make(map[string][]formulaCell, len(parts))
	for name, part := range parts {
		cells, err := scanSheet(&r.Reader, part)
		if err != nil {
			return nil, &SheetError{Sheet: name, Err: err}
		}
		result[name] = cells
	}
	return result, nil
}

// sheetParts maps worksheet names to their part names
func sheetParts(r *zip.Reader) (map[string]string, error) {
	var wb workbookXML
	if err := decodePart(r, "xl/workbook.xml", &wb); err != nil {
		return nil, err
	}
	var rels relationshipsXML
	if err := decodePart(r, "xl/_rels/workbook.xml.rels", &rels); err != nil {
		return nil, err
	}

	targets := make(map[string]string, len(rels.Relationships))
	for _, rel := range rels.Relationships {
		target := rel.Target
		if strings.HasPrefix(target, "/") {
			target = strings.TrimPrefix(target, "/")
		} else {
			target = path.Join("xl", target)
		}
		targets[rel.ID] = target
	}

	parts := make(map[string]string, len(wb.Sheets))
	for _, s := range wb.Sheets {
		if target, ok := targets[s.RID]; ok {
			parts[s.Name] = target
		}
	}
	return parts, nil
}

func openPart(r *zip.Reader, name string) (io.ReadCloser, error) {
	for _, f := range r.File {
		if f.Name == name {
			return f.Open()
		}
	}
	return nil, fmt.Errorf("%w: missing part %s", ErrInvalidFormat, name)
}

func decodePart(r *zip.Reader, name string, v any) error {
	rc, err := openPart(r, name)
	if err != nil {
		return err
	}
	defer rc.Close()
	if err := xml.NewDecoder(rc).Decode(v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidFormat, name, err)
	}
	return nil
}

// scanSheet streams a worksheet part, so large sheets are never held in
// memory as a tree
func scanSheet(r *zip.Reader, part string) ([]formulaCell, error) {
	rc, err := openPart(r, part)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var out []formulaCell
	var current string
	dec := xml.NewDecoder(rc)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidFormat, part, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "c":
			current = attr(start, "r")
		case "f":
			if current == "" {
				continue
			}
			p, err := grid.ParsePoint(current)
			if err != nil {
				return nil, err
			}
			typ := attr(start, "t")
			if typ == "" {
				typ = formulaNormal
			}
			out = append(out, formulaCell{At: p, Type: typ, Ref: attr(start, "ref")})
		}
	}
}

func attr(e xml.StartElement, name string) string {
	for _, a := range e.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
