// Package fieldmap derives template field values from one input row.
package fieldmap

import (
	"strings"

	"github.com/a3tai/pdf-batch-fill/internal/tabular"
)

// Template field names filled by the mapper.
const (
	FieldClient        = "Client"
	FieldProSystem     = "ProSystem's #"
	FieldTaxYear       = "Tax Year"
	FieldReturnType    = "Return Type"
	FieldFileDirectory = "File Directory"
	FieldStates        = "States"
)

// StatesMarker selects the columns aggregated into the States field
const StatesMarker = "States"

// StatesSeparator joins the aggregated States values
const StatesSeparator = ", "

// Correspondence pairs an input column with the template field it fills
type Correspondence struct {
	Column string
	Field  string
}

// Correspondences is the static column to field table, in output order
var Correspondences = []Correspondence{
	{Column: "Client", Field: FieldClient},
	{Column: "Prosystems #", Field: FieldProSystem},
	{Column: "Tax Year", Field: FieldTaxYear},
	{Column: "Return Type", Field: FieldReturnType},
	{Column: "File Directory", Field: FieldFileDirectory},
}

// TemplateFields lists every field a FieldValueMap carries, in order
func TemplateFields() []string {
	fields := make([]string, 0, len(Correspondences)+1)
	for _, c := range Correspondences {
		fields = append(fields, c.Field)
	}
	return append(fields, FieldStates)
}

// FieldValue is one template field assignment
type FieldValue struct {
	Name  string
	Value string
}

// FieldValueMap is the ordered set of assignments for one row
type FieldValueMap []FieldValue

// Get returns the value assigned to a field
func (m FieldValueMap) Get(name string) (string, bool) {
	for _, fv := range m {
		if fv.Name == name {
			return fv.Value, true
		}
	}
	return "", false
}

// Names returns the field names in order
func (m FieldValueMap) Names() []string {
	names := make([]string, len(m))
	for i, fv := range m {
		names[i] = fv.Name
	}
	return names
}

// Mapper maps rows of one table. The States source columns are resolved
// once from the table header.
type Mapper struct {
	statesColumns []string
}

// NewMapper builds a mapper for a table with the given header
func NewMapper(columns []string) *Mapper {
	var states []string
	for _, col := range columns {
		if IsStatesColumn(col) {
			states = append(states, col)
		}
	}
	return &Mapper{statesColumns: states}
}

// NewMapperForTable builds a mapper from a parsed table
func NewMapperForTable(table *tabular.Table) *Mapper {
	return &Mapper{statesColumns: table.ColumnsMatching(IsStatesColumn)}
}

// IsStatesColumn reports whether a column contributes to the States field
func IsStatesColumn(column string) bool {
	return strings.Contains(column, StatesMarker)
}

// StatesColumns returns the resolved States source columns, in header order
func (m *Mapper) StatesColumns() []string {
	return append([]string(nil), m.statesColumns...)
}

// Map produces the six field assignments for one row. It never fails:
// absent columns and empty values become empty strings.
func (m *Mapper) Map(row tabular.Row) FieldValueMap {
	values := make(FieldValueMap, 0, len(Correspondences)+1)
	for _, c := range Correspondences {
		values = append(values, FieldValue{Name: c.Field, Value: row.Get(c.Column)})
	}
	return append(values, FieldValue{Name: FieldStates, Value: m.states(row)})
}

func (m *Mapper) states(row tabular.Row) string {
	var kept []string
	for _, col := range m.statesColumns {
		// blank cells are dropped; kept cells join unmodified
		v := row.Get(col)
		if strings.TrimSpace(v) != "" {
			kept = append(kept, v)
		}
	}
	return strings.Join(kept, StatesSeparator)
}
