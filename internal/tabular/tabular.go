// Package tabular turns delimited text into ordered row records.
//
// The first record is the header; every following record becomes a Row keyed
// by header name. Column order is preserved on the Table so that consumers can
// resolve columns once per batch instead of scanning each row.
package tabular

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	pdferrors "github.com/a3tai/pdf-batch-fill/internal/pdf/errors"
)

// utf8BOM is stripped from the start of the input before the header is read.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Row is one parsed input record: column name to value
type Row map[string]string

// Get returns the value of a column, or "" when the column is absent
func (r Row) Get(column string) string {
	return r[column]
}

// Table is the parsed input in original order
type Table struct {
	Columns []string
	Rows    []Row
}

// Len returns the number of data rows
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Options control parsing
type Options struct {
	// Comma is the field delimiter. Zero means ','.
	Comma rune
	// AllowEmpty accepts a header with no data rows.
	AllowEmpty bool
}

// Parse reads all of r and returns the table. Any structural problem is an
// input format error; the batch never starts on one.
func Parse(r io.Reader, opts Options) (*Table, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	if opts.Comma != 0 {
		reader.Comma = opts.Comma
	}
	// Short or long records are tolerated; missing cells read as "".
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, pdferrors.NewInputFormatError("input is empty", nil)
	}
	if err != nil {
		return nil, pdferrors.NewInputFormatError("cannot read header row", err)
	}

	// columns is positional; a repeated name keeps the value of its last
	// position while Table.Columns lists it once, at its first.
	columns := make([]string, len(header))
	unique := make([]string, 0, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		columns[i] = name
		if !seen[name] {
			seen[name] = true
			unique = append(unique, name)
		}
	}

	table := &Table{Columns: unique}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, pdferrors.NewInputFormatError("malformed record", err)
		}
		if isBlank(record) {
			continue
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			if col == "" || i >= len(record) {
				continue
			}
			row[col] = record[i]
		}
		table.Rows = append(table.Rows, row)
	}

	if len(table.Rows) == 0 && !opts.AllowEmpty {
		return nil, pdferrors.NewInputFormatError("input has a header but no data rows", nil)
	}

	return table, nil
}

// ParseString is a convenience for in-memory input
func ParseString(s string, opts Options) (*Table, error) {
	return Parse(strings.NewReader(s), opts)
}

// ColumnsMatching returns, in header order, the columns accepted by match
func (t *Table) ColumnsMatching(match func(column string) bool) []string {
	var out []string
	for _, col := range t.Columns {
		if col != "" && match(col) {
			out = append(out, col)
		}
	}
	return out
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
