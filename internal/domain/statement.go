package domain

import "time"

// StatementStatus tracks the processing outcome of an uploaded statement
// file. Transitions only move forward: processing -> completed or
// processing -> failed, never backward.
type StatementStatus string

const (
	StatementProcessing StatementStatus = "processing"
	StatementCompleted  StatementStatus = "completed"
	StatementFailed     StatementStatus = "failed"
)

// Statement is one uploaded bank-statement file and its processing
// outcome. TransactionCount is set only when the statement reaches
// completed status.
type Statement struct {
	ID               string          `json:"id"`
	FileName         string          `json:"fileName"`
	UploadedAt       time.Time       `json:"uploadedAt"`
	Status           StatementStatus `json:"status"`
	TransactionCount *int            `json:"transactionCount,omitempty"`
	UserID           string          `json:"userId"`
}
