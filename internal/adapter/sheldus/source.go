// Package sheldus reads SHELDUS county-level claim exports from disk.
package sheldus

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/storm-claims-risk/internal/domain"
)

// Column names as they appear in a SHELDUS export header, after trimming.
const (
	colHazard       = "Hazard"
	colYear         = "Year"
	colEventName    = "EventName"
	colCountyName   = "CountyName"
	colCountyFIPS   = "County_FIPS"
	colPropertyDmg  = "PropertyDmg(ADJ)"
	colDmgPerCapita = "PropertyDmgPerCapita"
)

var requiredColumns = []string{colHazard, colYear, colEventName, colPropertyDmg}

// ErrMissingColumn is returned when a required column is absent from the
// header row.
var ErrMissingColumn = errors.New("missing column")

// Source loads claims from a .csv or .xlsx export.
// It implements pipeline.Extractor.
type Source struct {
	path   string
	sheet  string
	logger *slog.Logger
}

// NewSource creates a file source. sheet selects the worksheet of an .xlsx
// export; empty means the first sheet. It is ignored for CSV files.
func NewSource(path, sheet string, logger *slog.Logger) *Source {
	return &Source{path: path, sheet: sheet, logger: logger}
}

// Extract reads the whole export and returns one record per data row.
// Rows with no cells are skipped.
func (s *Source) Extract(ctx context.Context) ([]domain.RawClaimRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		rows [][]string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(s.path)); ext {
	case ".csv":
		rows, err = readCSV(s.path)
	case ".xlsx":
		rows, err = readXLSX(s.path, s.sheet)
	default:
		return nil, fmt.Errorf("unsupported claims file type %q", ext)
	}
	if err != nil {
		return nil, err
	}

	records, err := mapRows(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	s.logger.Debug("claims file read", "path", s.path, "rows", len(rows), "records", len(records))
	return records, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open claims csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read claims csv: %w", err)
	}
	return rows, nil
}

func readXLSX(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open claims workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("claims workbook has no sheets")
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

// mapRows turns a header row plus data rows into records. Header names are
// trimmed because SHELDUS exports pad them with a leading space.
func mapRows(rows [][]string) ([]domain.RawClaimRecord, error) {
	if len(rows) == 0 {
		return nil, errors.New("claims file is empty")
	}

	index := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("%w %q", ErrMissingColumn, name)
		}
	}

	cell := func(row []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	records := make([]domain.RawClaimRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		records = append(records, domain.RawClaimRecord{
			Hazard:               cell(row, colHazard),
			Year:                 cell(row, colYear),
			EventName:            cell(row, colEventName),
			CountyName:           cell(row, colCountyName),
			CountyFIPS:           cell(row, colCountyFIPS),
			PropertyDmgAdj:       cell(row, colPropertyDmg),
			PropertyDmgPerCapita: cell(row, colDmgPerCapita),
		})
	}
	return records, nil
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
