package fieldmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/pdf-batch-fill/internal/tabular"
)

func TestMapper_MissingColumnsBecomeBlank(t *testing.T) {
	tests := []struct {
		name string
		row  tabular.Row
		want map[string]string
	}{
		{
			name: "empty row",
			row:  tabular.Row{},
			want: map[string]string{
				FieldClient: "", FieldProSystem: "", FieldTaxYear: "",
				FieldReturnType: "", FieldFileDirectory: "", FieldStates: "",
			},
		},
		{
			name: "partial row",
			row:  tabular.Row{"Client": "Acme", "Prosystems #": "1040-77"},
			want: map[string]string{
				FieldClient: "Acme", FieldProSystem: "1040-77", FieldTaxYear: "",
				FieldReturnType: "", FieldFileDirectory: "", FieldStates: "",
			},
		},
		{
			name: "all columns",
			row: tabular.Row{
				"Client": "Acme", "Prosystems #": "1040-77", "Tax Year": "2023",
				"Return Type": "1040", "File Directory": `\\share\acme`,
			},
			want: map[string]string{
				FieldClient: "Acme", FieldProSystem: "1040-77", FieldTaxYear: "2023",
				FieldReturnType: "1040", FieldFileDirectory: `\\share\acme`, FieldStates: "",
			},
		},
	}

	mapper := NewMapper([]string{"Client", "Prosystems #", "Tax Year", "Return Type", "File Directory"})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapper.Map(tt.row)
			require.Len(t, got, 6)
			assert.Equal(t, TemplateFields(), got.Names())
			for field, want := range tt.want {
				v, ok := got.Get(field)
				assert.True(t, ok, "field %s missing", field)
				assert.Equal(t, want, v, "field %s", field)
			}
		})
	}
}

func TestMapper_States(t *testing.T) {
	columns := []string{"Client", "States_A", "Tax Year", "States_B", "Resident States", "states_lower"}
	mapper := NewMapper(columns)
	assert.Equal(t, []string{"States_A", "States_B", "Resident States"}, mapper.StatesColumns())

	tests := []struct {
		name string
		row  tabular.Row
		want string
	}{
		{name: "no states populated", row: tabular.Row{"States_A": "", "States_B": "  "}, want: ""},
		{name: "one state", row: tabular.Row{"States_A": "CA"}, want: "CA"},
		{name: "skips blanks between", row: tabular.Row{"States_A": "CA", "States_B": "", "Resident States": "OR"}, want: "CA, OR"},
		{name: "column order", row: tabular.Row{"Resident States": "WA", "States_A": "NV", "States_B": "AZ"}, want: "NV, AZ, WA"},
		{name: "kept values not trimmed", row: tabular.Row{"States_A": " CA ", "States_B": "NY"}, want: " CA , NY"},
		{name: "whitespace only dropped", row: tabular.Row{"States_A": "\t", "States_B": "NY, TX"}, want: "NY, TX"},
		{name: "case sensitive marker", row: tabular.Row{"states_lower": "ZZ"}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := mapper.Map(tt.row).Get(FieldStates)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMapper_Example(t *testing.T) {
	table, err := tabular.ParseString(
		"Client,Tax Year,States_A,States_B\nAcme,2023,CA,\nGlobex,2022,,\"NY, TX\"\n",
		tabular.Options{},
	)
	require.NoError(t, err)

	mapper := NewMapperForTable(table)

	first := mapper.Map(table.Rows[0])
	states, _ := first.Get(FieldStates)
	assert.Equal(t, "CA", states)
	client, _ := first.Get(FieldClient)
	assert.Equal(t, "Acme", client)

	second := mapper.Map(table.Rows[1])
	states, _ = second.Get(FieldStates)
	assert.Equal(t, "NY, TX", states)
}

func TestMapper_Deterministic(t *testing.T) {
	mapper := NewMapper([]string{"Client", "States_A", "States_B"})
	row := tabular.Row{"Client": "Acme", "States_A": "CA", "States_B": "NV"}
	assert.Equal(t, mapper.Map(row), mapper.Map(row))
}

func TestMapper_StatesColumnsAreCopied(t *testing.T) {
	mapper := NewMapper([]string{"States_A"})
	cols := mapper.StatesColumns()
	cols[0] = "tampered"
	assert.Equal(t, []string{"States_A"}, mapper.StatesColumns())
}

func TestFieldValueMap_GetMissing(t *testing.T) {
	_, ok := FieldValueMap{{Name: "Client", Value: "Acme"}}.Get("Nope")
	assert.False(t, ok)
}
