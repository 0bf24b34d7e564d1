package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/iam-hbk/accounting-on-the-go/internal/api/middleware"
	"github.com/iam-hbk/accounting-on-the-go/internal/ingest"
)

// StatementsHandler handles statement upload and listing endpoints.
type StatementsHandler struct {
	ingest *ingest.Service
	log    zerolog.Logger
}

// NewStatementsHandler creates a new statements handler.
func NewStatementsHandler(ingestService *ingest.Service, log zerolog.Logger) *StatementsHandler {
	return &StatementsHandler{ingest: ingestService, log: log}
}

// ListStatements handles GET /api/statements
func (h *StatementsHandler) ListStatements(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		middleware.WriteError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	statements, err := h.ingest.ListStatements(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list statements")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list statements")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"statements": statements,
		"count":      len(statements),
	})
}

// UploadStatement handles POST /api/statements. The statement file comes
// in as the "file" part of a multipart form; the whole ingestion workflow
// runs synchronously within the request.
func (h *StatementsHandler) UploadStatement(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		middleware.WriteError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	// One extra byte past the cap turns an oversized upload into a
	// clean 400 instead of an unbounded read.
	r.Body = http.MaxBytesReader(w, r.Body, ingest.MaxUploadSize+1)
	if err := r.ParseMultipartForm(ingest.MaxUploadSize); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "A statement file is required")
		return
	}
	defer file.Close()

	fileName := filepath.Base(header.Filename)
	if err := ingest.ValidateUpload(fileName, header.Size); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read uploaded file")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to read uploaded file")
		return
	}

	result, err := h.ingest.ProcessStatement(r.Context(), userID, fileName, contentType(header), data)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrUnsupportedFileType), errors.Is(err, ingest.ErrFileTooLarge):
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ingest.ErrNoTransactions):
			middleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			h.log.Error().Err(err).Str("file_name", fileName).Msg("Statement ingestion failed")
			middleware.WriteError(w, http.StatusUnprocessableEntity, "Statement processing failed: "+err.Error())
		}
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}

func contentType(header *multipart.FileHeader) string {
	ct := header.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	return ct
}
