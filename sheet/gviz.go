/*
gviz.go - Google Visualization table decoding

PURPOSE:
  The fetch endpoint returns Google Visualization JSON:

    { "table": { "cols": [...], "rows": [ { "c": [ {"v": ...}, ... ] } ] } }

  Row 0 of the sheet is a header row and must be skipped by consumers;
  DataRows does that once so no caller repeats the off-by-one.

SEE ALSO:
  - schema.go: Maps positional columns onto named domain structs
  - dates.go: Cell date normalization
*/
package sheet

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/checkboard/delegation-engine/schedule"
)

// Table is the decoded visualization table.
type Table struct {
	Cols []Col `json:"cols"`
	Rows []Row `json:"rows"`
}

// Col describes one column of the table.
type Col struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Type  string `json:"type"`
}

// Row holds one sheet row's cells. Missing cells decode as nil.
type Row struct {
	C []*Cell `json:"c"`
}

// Cell is a single value with its optional formatted rendering.
type Cell struct {
	V any    `json:"v"`
	F string `json:"f,omitempty"`
}

type document struct {
	Table Table `json:"table"`
}

// DecodeTable reads a visualization JSON document.
func DecodeTable(r io.Reader) (*Table, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode visualization table: %w", err)
	}
	return &doc.Table, nil
}

// DataRows returns the rows with the sheet's header row stripped.
func (t *Table) DataRows() []Row {
	if len(t.Rows) <= 1 {
		return nil
	}
	return t.Rows[1:]
}

// Str returns cell i as a trimmed string; missing or null cells yield "".
// Numeric cells render via the formatted value when present.
func (r Row) Str(i int) string {
	c := r.cell(i)
	if c == nil || c.V == nil {
		return ""
	}
	switch v := c.V.(type) {
	case string:
		return trim(v)
	case float64:
		if c.F != "" {
			return trim(c.F)
		}
		return trimFloat(v)
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// Day returns cell i normalized to a calendar day.
func (r Row) Day(i int) (schedule.Day, bool) {
	c := r.cell(i)
	if c == nil {
		return schedule.Day{}, false
	}
	return ParseCellDate(c.V)
}

// Bool interprets cell i as a flag: true, "true", "yes", "1", or a done
// status all count.
func (r Row) Bool(i int) bool {
	c := r.cell(i)
	if c == nil || c.V == nil {
		return false
	}
	if b, ok := c.V.(bool); ok {
		return b
	}
	switch trimLower(r.Str(i)) {
	case "true", "yes", "1", "y", "done":
		return true
	}
	return false
}

func (r Row) cell(i int) *Cell {
	if i < 0 || i >= len(r.C) {
		return nil
	}
	return r.C[i]
}

func trim(s string) string      { return strings.TrimSpace(s) }
func trimLower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
