package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vogtb/go-spreadsheet/packages/snapshot"
	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
	"github.com/vogtb/go-spreadsheet/packages/xlsxio"
)

const filePerm = 0o644

// ErrUnknownFormat is returned for files that are neither xlsx nor snapshots.
var ErrUnknownFormat = errors.New("unknown file format (want .xlsx or .snap)")

type fileFormat int

const (
	formatXLSX fileFormat = iota
	formatSnapshot
)

func formatOf(path string) (fileFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return formatXLSX, nil
	case ".snap":
		return formatSnapshot, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

// openWorkbook reads an xlsx file or a snapshot
func (s *State) openWorkbook(path string) (*spreadsheet.Workbook, error) {
	format, err := formatOf(path)
	if err != nil {
		return nil, err
	}

	if format == formatXLSX {
		return xlsxio.Load(path, xlsxio.Options{
			MaxFileSize: s.Config.Import.MaxFileSizeBytes(),
			Calculate:   s.Config.Import.Calculate,
			Styles:      s.Config.Import.Styles,
			Logger:      s.Logger,
		})
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return snapshot.Decode(f, spreadsheet.WithLogger(s.Logger))
}

// saveWorkbook writes wb in the format chosen by the extension of path
func (s *State) saveWorkbook(wb *spreadsheet.Workbook, path string) error {
	format, err := formatOf(path)
	if err != nil {
		return err
	}

	if format == formatXLSX {
		return xlsxio.Save(wb, path)
	}

	return s.writeSnapshot(wb, path)
}

func (s *State) writeSnapshot(wb *spreadsheet.Workbook, path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePerm)
	if err != nil {
		return err
	}

	encodeErr := snapshot.Encode(wb, f)
	closeErr := f.Close()
	if err := errors.Join(encodeErr, closeErr); err != nil {
		return err
	}

	if !s.Config.Snapshot.Verify {
		return nil
	}

	check, err := os.Open(path)
	if err != nil {
		return err
	}
	defer check.Close()

	if _, err := snapshot.Decode(check); err != nil {
		return fmt.Errorf("verify %s: %w", path, err)
	}
	s.Logger.Debug("verified snapshot", "path", path)

	return nil
}
