package batch

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/a3tai/pdf-batch-fill/internal/pdf/form"
)

// MergedOutput accumulates per-row documents in row order and concatenates
// them once. After Finalize it accepts no further documents.
type MergedOutput struct {
	docs      [][]byte
	rows      int
	pages     []int
	total     int
	data      []byte
	finalized bool
}

// NewMergedOutput returns an empty output
func NewMergedOutput() *MergedOutput {
	return &MergedOutput{}
}

// Append adds a document and its page count after every earlier one
func (m *MergedOutput) Append(doc []byte, pages int) error {
	if m.finalized {
		return fmt.Errorf("merged output is finalized")
	}
	if len(doc) == 0 || pages < 1 {
		return fmt.Errorf("document has no pages")
	}
	m.docs = append(m.docs, doc)
	m.rows++
	m.pages = append(m.pages, pages)
	m.total += pages
	return nil
}

// Len returns the number of documents appended, before or after Finalize
func (m *MergedOutput) Len() int {
	return m.rows
}

// PageCount returns the total number of pages appended
func (m *MergedOutput) PageCount() int {
	return m.total
}

// PageCounts returns the page count of each appended document, in order
func (m *MergedOutput) PageCounts() []int {
	return append([]int(nil), m.pages...)
}

// Finalized reports whether Finalize has succeeded
func (m *MergedOutput) Finalized() bool {
	return m.finalized
}

// Bytes returns the merged document, or nil before Finalize
func (m *MergedOutput) Bytes() []byte {
	return m.data
}

// Finalize concatenates every appended document into one PDF and checks
// that its page count is the sum of the parts. Calling it again returns
// the same bytes.
func (m *MergedOutput) Finalize() ([]byte, error) {
	if m.finalized {
		return m.data, nil
	}
	if len(m.docs) == 0 {
		return nil, fmt.Errorf("nothing to merge")
	}

	var data []byte
	if len(m.docs) == 1 {
		data = m.docs[0]
	} else {
		rsc := make([]io.ReadSeeker, len(m.docs))
		for i, doc := range m.docs {
			rsc[i] = bytes.NewReader(doc)
		}
		var buf bytes.Buffer
		if err := api.MergeRaw(rsc, &buf, false, form.NewConfiguration()); err != nil {
			return nil, fmt.Errorf("failed to merge %d documents: %w", len(m.docs), err)
		}
		data = buf.Bytes()
	}

	pages, err := api.PageCount(bytes.NewReader(data), form.NewConfiguration())
	if err != nil {
		return nil, fmt.Errorf("failed to read merged document: %w", err)
	}
	if pages != m.total {
		return nil, fmt.Errorf("merged document has %d pages, expected %d", pages, m.total)
	}

	m.data = data
	m.finalized = true
	m.docs = nil
	return m.data, nil
}
