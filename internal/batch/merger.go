// Package batch drives the per-row fill pipeline and merges the results.
//
// Rows are processed strictly in input order, one at a time. The first
// failure aborts the run: no artifact is produced and the progress count
// stays at the number of rows merged before the failing one.
package batch

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog"

	"github.com/a3tai/pdf-batch-fill/internal/fieldmap"
	pdferrors "github.com/a3tai/pdf-batch-fill/internal/pdf/errors"
	"github.com/a3tai/pdf-batch-fill/internal/pdf/form"
	"github.com/a3tai/pdf-batch-fill/internal/tabular"
)

// DocumentFiller produces one flattened document from mapped values
type DocumentFiller interface {
	Fill(ctx context.Context, values fieldmap.FieldValueMap) (*form.Instance, error)
}

// Result is a completed batch
type Result struct {
	Artifact   []byte
	Rows       int
	Pages      int
	PageCounts []int
	Warnings   []*pdferrors.PDFError
	Duration   time.Duration
}

// Merger runs batches against one filler
type Merger struct {
	filler     DocumentFiller
	logger     zerolog.Logger
	progress   *Progress
	onProgress func(Snapshot)
	verify     func(data []byte, pages int) error
}

// MergerOption configures a Merger
type MergerOption func(*Merger)

// WithLogger sets the logger for per-row events
func WithLogger(logger zerolog.Logger) MergerOption {
	return func(m *Merger) {
		m.logger = logger
	}
}

// WithProgress receives a snapshot after every state change and merged row
func WithProgress(fn func(Snapshot)) MergerOption {
	return func(m *Merger) {
		m.onProgress = fn
	}
}

// WithVerifier checks the merged artifact before the run is reported complete.
// A verifier error aborts the run like any other failure.
func WithVerifier(fn func(data []byte, pages int) error) MergerOption {
	return func(m *Merger) {
		m.verify = fn
	}
}

// NewMerger creates a merger that fills rows with filler
func NewMerger(filler DocumentFiller, opts ...MergerOption) *Merger {
	m := &Merger{
		filler:   filler,
		logger:   zerolog.Nop(),
		progress: NewProgress(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Progress returns the tracker for the current or last run
func (m *Merger) Progress() *Progress {
	return m.progress
}

// Run fills every row of table and merges the documents in row order.
// An empty table is an input error and leaves the merger idle.
func (m *Merger) Run(ctx context.Context, table *tabular.Table) (*Result, error) {
	if table == nil || table.Len() == 0 {
		return nil, pdferrors.NewInputFormatError("input has no data rows", nil)
	}

	started := time.Now()
	mapper := fieldmap.NewMapperForTable(table)
	output := NewMergedOutput()
	warnings := pdferrors.NewErrorCollection("")

	m.logger.Info().
		Int("rows", table.Len()).
		Strs("states_columns", mapper.StatesColumns()).
		Msg("batch started")
	m.notify(m.progress.start(table.Len()))

	for i, row := range table.Rows {
		rowNr := i + 1
		m.notify(m.progress.begin(rowNr))

		if err := ctx.Err(); err != nil {
			return nil, m.abort(pdferrors.NewBatchError(rowNr, "", err))
		}

		values := mapper.Map(row)
		inst, err := m.filler.Fill(ctx, values)
		if err != nil {
			return nil, m.abort(pdferrors.NewBatchError(rowNr, "", err))
		}
		if inst == nil {
			return nil, m.abort(pdferrors.NewBatchError(rowNr, pdferrors.StageFill, fmt.Errorf("filler returned no document")))
		}

		pages, err := api.PageCount(bytes.NewReader(inst.Data), form.NewConfiguration())
		if err != nil {
			return nil, m.abort(pdferrors.NewBatchError(rowNr, pdferrors.StageReload, err))
		}
		if err := output.Append(inst.Data, pages); err != nil {
			return nil, m.abort(pdferrors.NewBatchError(rowNr, pdferrors.StageMerge, err))
		}

		for _, w := range inst.Warnings() {
			warnings.AddRow(rowNr, w)
		}

		m.logger.Debug().
			Int("row", rowNr).
			Int("pages", pages).
			Int("warnings", len(inst.Warnings())).
			Msg("row merged")
		m.notify(m.progress.advance())
	}

	data, err := output.Finalize()
	if err != nil {
		return nil, m.abort(pdferrors.NewBatchError(0, pdferrors.StageMerge, err))
	}
	if m.verify != nil {
		if err := m.verify(data, output.PageCount()); err != nil {
			return nil, m.abort(pdferrors.NewBatchError(0, pdferrors.StageVerify, err))
		}
	}

	result := &Result{
		Artifact:   data,
		Rows:       output.Len(),
		Pages:      output.PageCount(),
		PageCounts: output.PageCounts(),
		Warnings:   warnings.WarningList(),
		Duration:   time.Since(started),
	}
	m.notify(m.progress.complete())

	m.logger.Info().
		Int("rows", result.Rows).
		Int("pages", result.Pages).
		Int("warnings", len(result.Warnings)).
		Dur("duration", result.Duration).
		Msg("batch completed")
	return result, nil
}

func (m *Merger) abort(err *pdferrors.PDFError) error {
	m.notify(m.progress.fail(err))
	m.logger.Error().
		Err(err).
		Int("row", err.Row).
		Str("stage", err.Stage).
		Int("merged", m.progress.Rows()).
		Msg("batch aborted")
	return err
}

func (m *Merger) notify(s Snapshot) {
	if m.onProgress != nil {
		m.onProgress(s)
	}
}
