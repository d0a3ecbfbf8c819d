// Package csvimport parses delimited fixture schedules into raw
// fixture records using a caller-supplied column mapping and a
// pluggable fixture-ID strategy.
package csvimport

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/patchlink/patchlink-go/internal/fixture"
)

// Logical fields a column mapping can bind.
const (
	FieldName        = "name"
	FieldSpace       = "space"
	FieldDescription = "description"
	FieldZone        = "arch_zone"
	FieldDeskChannel = "desk_channel"
	FieldUniverse    = "universe"
	FieldAddress     = "address"
	FieldType        = "type"
	FieldMode        = "mode"
	FieldFixtureID   = "fixture_id"
	FieldNote        = "note"
)

// ColumnMapping binds logical fields to 0-based column indices. Fields
// absent from the mapping fall back to their documented defaults.
type ColumnMapping map[string]int

func (m ColumnMapping) cell(row []string, field string) (string, bool) {
	idx, ok := m[field]
	if !ok || idx < 0 || idx >= len(row) {
		return "", false
	}
	return strings.TrimSpace(row[idx]), true
}

// Result is the outcome of one CSV import.
type Result struct {
	Fixtures    []fixture.RawFixture `json:"fixtures"`
	Headers     []string             `json:"headers"`
	SkippedRows int                  `json:"skippedRows"`
}

// Parse reads a delimited table. The first record is the header row.
// Rows without a usable name are excluded (counted in SkippedRows);
// every other field-level defect resolves to a default so one bad cell
// never loses the batch.
func Parse(data []byte, mapping ColumnMapping, ids IDStrategy) (*Result, error) {
	delimiter := sniffDelimiter(data)
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv file is empty")
	}

	headers := records[0]
	rows := records[1:]

	if ids == nil {
		ids = Sequential{}
	}
	fixtureIDs := ids.Generate(rows, mapping)

	result := &Result{Headers: headers}
	for i, row := range rows {
		name := rowName(row, mapping, fixtureIDs[i])
		if name == "" {
			result.SkippedRows++
			continue
		}
		result.Fixtures = append(result.Fixtures, fixture.RawFixture{
			Name:         name,
			UUID:         uuid.NewString(),
			DeclaredType: cellOr(row, mapping, FieldType, "Unknown"),
			DeclaredMode: cellOr(row, mapping, FieldMode, "Standard"),
			BaseAddress:  rowBaseAddress(row, mapping),
			FixtureID:    fixtureIDs[i],
		})
	}
	return result, nil
}

// rowName combines the space/description/zone columns when mapped,
// else falls back to the name column. An empty result marks the row
// unusable.
func rowName(row []string, mapping ColumnMapping, fixtureID int) string {
	var parts []string
	for _, field := range []string{FieldSpace, FieldDescription, FieldZone} {
		if v, ok := mapping.cell(row, field); ok && v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " - ")
	}
	if v, ok := mapping.cell(row, FieldName); ok && v != "" {
		return v
	}
	return ""
}

// rowBaseAddress computes base = (universe-1)*512 + address. Universe
// below 1 or address outside 1..512 (or unparseable) defaults to
// universe 1, address 1 rather than failing the row. An unmapped
// universe means the address is already an in-universe channel of
// universe 1.
func rowBaseAddress(row []string, mapping ColumnMapping) int {
	universe := 1
	if v, ok := mapping.cell(row, FieldUniverse); ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			universe = n
		}
	}
	address := 1
	if v, ok := mapping.cell(row, FieldAddress); ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 && n <= fixture.UniverseSize {
			address = n
		} else {
			// Out-of-range address voids the universe too.
			universe = 1
		}
	}
	return fixture.AbsoluteAddress(universe, address)
}

func cellOr(row []string, mapping ColumnMapping, field, def string) string {
	if v, ok := mapping.cell(row, field); ok && v != "" {
		return v
	}
	return def
}

// sniffDelimiter picks the delimiter that splits the sample into the
// most columns, among comma, semicolon, tab and pipe.
func sniffDelimiter(data []byte) rune {
	sample := data
	if len(sample) > 1024 {
		sample = sample[:1024]
	}
	line := string(sample)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}

	best, bestCount := ',', 0
	for _, d := range []rune{',', ';', '\t', '|'} {
		if n := strings.Count(line, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}
