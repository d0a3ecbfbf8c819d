package csvimport

import (
	"strconv"
	"strings"
)

// IDStrategy produces one fixture id per data row. Strategies always
// return len(rows) ids; per-row failures fall back to the row's
// 1-based position.
type IDStrategy interface {
	Generate(rows [][]string, mapping ColumnMapping) []int
}

// Sequential numbers rows 1, 2, 3, ...
type Sequential struct{}

func (Sequential) Generate(rows [][]string, _ ColumnMapping) []int {
	ids := make([]int, len(rows))
	for i := range rows {
		ids[i] = i + 1
	}
	return ids
}

// CustomStart numbers rows sequentially from Start.
type CustomStart struct {
	Start int
}

func (s CustomStart) Generate(rows [][]string, _ ColumnMapping) []int {
	ids := make([]int, len(rows))
	for i := range rows {
		ids[i] = s.Start + i
	}
	return ids
}

// FromDeskChannel derives ids from the desk-channel column, keeping
// only digits ("Ch 12" becomes 12).
type FromDeskChannel struct{}

func (FromDeskChannel) Generate(rows [][]string, mapping ColumnMapping) []int {
	ids := make([]int, 0, len(rows))
	for _, row := range rows {
		id := 0
		if v, ok := mapping.cell(row, FieldDeskChannel); ok {
			if n, err := strconv.Atoi(digitsOnly(v)); err == nil {
				id = n
			}
		}
		if id == 0 {
			id = len(ids) + 1
		}
		ids = append(ids, id)
	}
	return ids
}

// FromAddress uses the DMX address column directly as the fixture id.
type FromAddress struct{}

func (FromAddress) Generate(rows [][]string, mapping ColumnMapping) []int {
	ids := make([]int, 0, len(rows))
	for _, row := range rows {
		id := 0
		if v, ok := mapping.cell(row, FieldAddress); ok {
			if n, err := strconv.Atoi(v); err == nil {
				id = n
			}
		}
		if id == 0 {
			id = len(ids) + 1
		}
		ids = append(ids, id)
	}
	return ids
}

// StrategyFor resolves a strategy by its wire name. Unknown names get
// the sequential default.
func StrategyFor(method string, startNumber int) IDStrategy {
	switch method {
	case "custom_start":
		if startNumber < 1 {
			startNumber = 1
		}
		return CustomStart{Start: startNumber}
	case "desk_channel":
		return FromDeskChannel{}
	case "dmx_address":
		return FromAddress{}
	default:
		return Sequential{}
	}
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
