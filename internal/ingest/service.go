// Package ingest runs the statement ingestion workflow: persist a
// processing statement, call the external extraction model, bulk-insert
// the returned transactions and advance the statement to its terminal
// status. The workflow is deliberately best-effort sequential: no
// retries, no idempotency key, no cross-step transaction. Uploading the
// same file twice produces two statements and duplicate transactions.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iam-hbk/accounting-on-the-go/internal/analytics"
	"github.com/iam-hbk/accounting-on-the-go/internal/archive"
	"github.com/iam-hbk/accounting-on-the-go/internal/domain"
	"github.com/iam-hbk/accounting-on-the-go/internal/extract"
	"github.com/iam-hbk/accounting-on-the-go/internal/store"
)

// MaxUploadSize is the ceiling on statement file size. The browser
// enforces the same limit before transmission; this is the server-side
// backstop.
const MaxUploadSize = 10 << 20

var allowedExtensions = map[string]bool{
	".csv":  true,
	".pdf":  true,
	".xlsx": true,
	".xls":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

var (
	// ErrNoTransactions is returned when extraction succeeds but yields
	// zero records; the statement is marked failed as if the call errored.
	ErrNoTransactions = errors.New("no transactions parsed from the file")

	// ErrFileTooLarge is returned for uploads beyond MaxUploadSize.
	ErrFileTooLarge = fmt.Errorf("file exceeds the %d MB upload limit", MaxUploadSize>>20)

	// ErrUnsupportedFileType is returned for extensions outside the
	// accepted statement formats.
	ErrUnsupportedFileType = errors.New("unsupported file type")
)

// Result reports a completed ingestion.
type Result struct {
	StatementID      string `json:"statementId"`
	TransactionCount int    `json:"transactionCount"`
}

// Service orchestrates the workflow. Archiver and analytics sink are
// optional; when nil the corresponding step is skipped.
type Service struct {
	store     store.Store
	extractor extract.Extractor
	archiver  archive.Archiver
	sink      analytics.Sink
	log       zerolog.Logger
}

// NewService wires the workflow dependencies.
func NewService(st store.Store, extractor extract.Extractor, archiver archive.Archiver, sink analytics.Sink, log zerolog.Logger) *Service {
	return &Service{
		store:     st,
		extractor: extractor,
		archiver:  archiver,
		sink:      sink,
		log:       log,
	}
}

// ValidateUpload checks filename extension and size before any record is
// created. It is exposed so the HTTP layer can reject before reading the
// whole body into memory.
func ValidateUpload(fileName string, size int64) error {
	ext := strings.ToLower(filepath.Ext(fileName))
	if !allowedExtensions[ext] {
		return fmt.Errorf("%w: %s", ErrUnsupportedFileType, ext)
	}
	if size > MaxUploadSize {
		return ErrFileTooLarge
	}
	return nil
}

// ProcessStatement runs the full workflow for one uploaded file. The
// statement record is created before extraction is attempted, so a crash
// mid-extraction still leaves a discoverable processing record. On any
// extraction failure, or an empty result, the statement is marked failed
// and the error is propagated to the caller.
func (s *Service) ProcessStatement(ctx context.Context, userID, fileName, mimeType string, data []byte) (*Result, error) {
	if err := ValidateUpload(fileName, int64(len(data))); err != nil {
		return nil, err
	}

	statement := &domain.Statement{
		ID:         uuid.New().String(),
		FileName:   fileName,
		UploadedAt: time.Now().UTC(),
		Status:     domain.StatementProcessing,
		UserID:     userID,
	}
	if err := s.store.CreateStatement(ctx, statement); err != nil {
		return nil, fmt.Errorf("ingest: create statement: %w", err)
	}

	log := s.log.With().
		Str("statement_id", statement.ID).
		Str("file_name", fileName).
		Str("mime_type", mimeType).
		Logger()

	if s.archiver != nil {
		uri, err := s.archiver.Put(ctx, fileName, mimeType, data)
		if err != nil {
			log.Warn().Err(err).Msg("Statement archival failed, continuing")
		} else {
			log.Info().Str("uri", uri).Msg("Statement archived")
		}
	}

	records, err := s.extractor.Extract(ctx, data, mimeType)
	if err == nil && len(records) == 0 {
		err = ErrNoTransactions
	}
	if err != nil {
		s.markFailed(ctx, log, statement.ID)
		return nil, err
	}

	txs := make([]*domain.Transaction, 0, len(records))
	now := time.Now().UTC()
	for _, r := range records {
		txs = append(txs, &domain.Transaction{
			ID:          uuid.New().String(),
			Date:        r.Date,
			Description: r.Description,
			Amount:      r.Amount,
			Direction:   r.Direction,
			UserID:      userID,
			StatementID: statement.ID,
			CreatedAt:   now,
		})
	}
	if err := s.store.InsertTransactions(ctx, txs); err != nil {
		s.markFailed(ctx, log, statement.ID)
		return nil, fmt.Errorf("ingest: insert transactions: %w", err)
	}

	count := len(txs)
	if err := s.store.UpdateStatementStatus(ctx, statement.ID, domain.StatementCompleted, &count); err != nil {
		return nil, fmt.Errorf("ingest: complete statement: %w", err)
	}

	if s.sink != nil {
		if err := s.sink.ExportTransactions(ctx, statement, txs); err != nil {
			log.Warn().Err(err).Msg("Analytics export failed, continuing")
		}
	}

	log.Info().Int("transaction_count", count).Msg("Statement ingested")
	return &Result{StatementID: statement.ID, TransactionCount: count}, nil
}

// ListStatements returns the caller's statements, newest upload first.
func (s *Service) ListStatements(ctx context.Context, userID string) ([]*domain.Statement, error) {
	return s.store.ListStatementsByUser(ctx, userID)
}

func (s *Service) markFailed(ctx context.Context, log zerolog.Logger, statementID string) {
	if err := s.store.UpdateStatementStatus(ctx, statementID, domain.StatementFailed, nil); err != nil {
		log.Error().Err(err).Msg("Failed to mark statement as failed")
	}
}
