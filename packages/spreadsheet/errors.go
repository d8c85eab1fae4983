package spreadsheet

import (
	"errors"

	"github.com/vogtb/go-spreadsheet/packages/cells"
	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/grid"
)

var (
	ErrWorksheetExists   = errors.New("worksheet already exists")
	ErrWorksheetNotFound = errors.New("worksheet not found")
	ErrInvalidName       = errors.New("invalid name")
	ErrNameNotFound      = errors.New("name not found")
	ErrUnsupportedValue  = errors.New("unsupported cell value type")

	// re-exported so callers need not import the lower packages
	ErrCircularReference = formula.ErrCircularReference
	ErrInvalidAddress    = grid.ErrInvalidAddress
	ErrArrayFragment     = cells.ErrArrayFragment
)
