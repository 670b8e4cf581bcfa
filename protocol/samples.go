package protocol

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// Sample sheet column names. The base four are required by both workflow
// variants; dilution is assay-only, the volume pair is normalizer-only.
const (
	ColSampleName = "sample name"
	ColTray       = "aspirate tray"
	ColSource     = "aspirate location"
	ColDest       = "dispense location"
	ColDilution   = "dilution"
	ColSampleVol  = "sample volume"
	ColDiluentVol = "diluent volume"
)

// SampleSheet is the raw tabular sample sheet: one row per sample, all
// string fields trimmed of surrounding whitespace on load. Typing and
// validation happen in BuildPlan.
type SampleSheet struct {
	Columns []string
	Rows    []map[string]string
}

// HasColumn reports whether the sheet declared the named column.
func (s *SampleSheet) HasColumn(name string) bool {
	for _, c := range s.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// LoadSampleSheet reads a sample sheet CSV. Short rows are padded with empty
// fields; every cell is whitespace-trimmed.
func LoadSampleSheet(path string) (*SampleSheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening sample sheet: %w", err)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	raw, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading sample sheet: %w", err)
	}
	if len(raw) == 0 {
		return nil, validationErrorf(KindMissingColumn, "sample sheet %s is empty", path)
	}

	header := raw[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}
	columns := make([]string, len(header))
	for i, c := range header {
		columns[i] = strings.TrimSpace(c)
	}

	sheet := &SampleSheet{Columns: columns}
	for _, row := range raw[1:] {
		m := make(map[string]string, len(columns))
		for i, col := range columns {
			if i < len(row) {
				m[col] = strings.TrimSpace(row[i])
			} else {
				m[col] = ""
			}
		}
		sheet.Rows = append(sheet.Rows, m)
	}
	return sheet, nil
}
