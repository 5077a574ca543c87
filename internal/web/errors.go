package web

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	pdferrors "github.com/a3tai/pdf-batch-fill/internal/pdf/errors"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest   = "bad_request"
	CodeInputFormat  = "input_format"
	CodeTemplateLoad = "template_load"
	CodeBatchFailed  = "batch_failed"
	CodeInternal     = "internal"
)

// ErrorResponse represents the JSON structure for API error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Row     int    `json:"row,omitempty"` // failing input row of an aborted batch
}

// respondError logs err with the request ID and writes it as JSON with the
// status derived from its type.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, summary := classify(err)

	s.logger.Error().
		Err(err).
		Str("request_id", middleware.GetReqID(r.Context())).
		Str("path", r.URL.Path).
		Int("status", status).
		Str("code", code).
		Msg("request error")

	s.writeJSON(w, status, ErrorResponse{
		Error:   summary,
		Message: err.Error(),
		Code:    code,
		Row:     pdferrors.RowOf(err),
	})
}

// badRequest writes a 400 for malformed requests that never reach the pipeline.
func (s *Server) badRequest(w http.ResponseWriter, message string) {
	s.writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   "bad request",
		Message: message,
		Code:    CodeBadRequest,
	})
}

func classify(err error) (status int, code, summary string) {
	var pe *pdferrors.PDFError
	if !errors.As(err, &pe) {
		return http.StatusInternalServerError, CodeInternal, "internal error"
	}

	switch pe.Type {
	case pdferrors.ErrorTypeInputFormat:
		return http.StatusBadRequest, CodeInputFormat, "input could not be parsed"
	case pdferrors.ErrorTypeTemplateLoad:
		return http.StatusInternalServerError, CodeTemplateLoad, "template could not be loaded"
	case pdferrors.ErrorTypeBatch, pdferrors.ErrorTypeFill:
		return http.StatusUnprocessableEntity, CodeBatchFailed, "batch aborted"
	default:
		return http.StatusInternalServerError, CodeInternal, "internal error"
	}
}
