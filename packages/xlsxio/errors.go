package xlsxio

import (
	"errors"
	"fmt"
)

var (
	// ErrFileTooLarge is returned when the input exceeds Options.MaxFileSize.
	ErrFileTooLarge = errors.New("xlsx file too large")

	// ErrInvalidFormat indicates the input is not a readable xlsx package.
	ErrInvalidFormat = errors.New("invalid xlsx format")

	// ErrEmptyWorkbook is returned when saving a workbook without worksheets.
	ErrEmptyWorkbook = errors.New("workbook has no worksheets")
)

// SheetError reports a failure while converting one worksheet.
type SheetError struct {
	Sheet string
	Cell  string // empty when the failure is not tied to a cell
	Err   error
}

func (e *SheetError) Error() string {
	if e.Cell == "" {
		return fmt.Sprintf("sheet %q: %v", e.Sheet, e.Err)
	}
	return fmt.Sprintf("sheet %q cell %s: %v", e.Sheet, e.Cell, e.Err)
}

func (e *SheetError) Unwrap() error { return e.Err }
