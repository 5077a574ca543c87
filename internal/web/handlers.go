package web

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/a3tai/pdf-batch-fill/internal/config"
	"github.com/a3tai/pdf-batch-fill/internal/logging"
	"github.com/a3tai/pdf-batch-fill/internal/pdf"
)

// Response headers describing a merged batch.
const (
	HeaderRunID    = "X-Run-ID"
	HeaderRows     = "X-Batch-Rows"
	HeaderPages    = "X-Batch-Pages"
	HeaderWarnings = "X-Batch-Warnings"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"template": s.template.Name(),
	})
}

func (s *Server) handleTemplateFields(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, pdf.DescribeTemplate(s.template))
}

// handleCreateBatch fills the template once per row of the uploaded file and
// streams back the merged PDF.
func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	maxSize := s.service.GetMaxFileSize()
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		s.badRequest(w, "file too large or invalid form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("file")
	if err != nil {
		s.badRequest(w, "no file provided")
		return
	}
	defer file.Close()

	delimiter := s.cfg.Delimiter
	if d := r.FormValue("delimiter"); d != "" {
		delimiter = d
	}
	comma, err := config.ParseDelimiter(delimiter)
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}

	table, err := s.service.ParseInput(file, comma)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	runID := logging.NewRunID()
	ctx := logging.ContextWithRunID(r.Context(), runID)
	result, artifact, err := s.service.Run(ctx, s.template, table, pdf.RunOptions{})
	if err != nil {
		w.Header().Set(HeaderRunID, runID)
		s.respondError(w, r, err)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "application/pdf")
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": s.cfg.OutputName,
	}))
	h.Set("Content-Length", strconv.Itoa(len(artifact)))
	h.Set(HeaderRunID, result.RunID)
	h.Set(HeaderRows, strconv.Itoa(result.Rows))
	h.Set(HeaderPages, strconv.Itoa(result.Pages))
	h.Set(HeaderWarnings, strconv.Itoa(len(result.Warnings)))
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(artifact); err != nil {
		s.logger.Error().Err(err).Str("run_id", runID).Msg("failed to write merged PDF")
	}
}
