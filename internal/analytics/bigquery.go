// Package analytics streams ingested transactions into a BigQuery table
// for offline analysis. The sink is optional and strictly fire-and-forget:
// the ingestion workflow logs export failures and never propagates them.
package analytics

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/iam-hbk/accounting-on-the-go/internal/domain"
)

// Sink receives the transactions of a completed statement.
type Sink interface {
	ExportTransactions(ctx context.Context, statement *domain.Statement, txs []*domain.Transaction) error
}

// transactionRow is the warehouse schema for one exported transaction.
type transactionRow struct {
	TransactionID string    `bigquery:"transaction_id"`
	StatementID   string    `bigquery:"statement_id"`
	UserID        string    `bigquery:"user_id"`
	Date          string    `bigquery:"date"`
	Description   string    `bigquery:"description"`
	Amount        float64   `bigquery:"amount"`
	Direction     string    `bigquery:"direction"`
	FileName      string    `bigquery:"file_name"`
	ExportedTS    time.Time `bigquery:"exported_ts"`
}

// BigQuerySink appends rows via the streaming inserter.
type BigQuerySink struct {
	project string
	dataset string
	table   string
}

// NewBigQuerySink configures a sink for project.dataset.table.
func NewBigQuerySink(project, dataset, table string) *BigQuerySink {
	return &BigQuerySink{project: project, dataset: dataset, table: table}
}

// ExportTransactions implements Sink.
func (s *BigQuerySink) ExportTransactions(ctx context.Context, statement *domain.Statement, txs []*domain.Transaction) error {
	client, err := bigquery.NewClient(ctx, s.project)
	if err != nil {
		return fmt.Errorf("analytics: create bigquery client: %w", err)
	}
	defer client.Close()

	now := time.Now().UTC()
	rows := make([]*transactionRow, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, &transactionRow{
			TransactionID: tx.ID,
			StatementID:   statement.ID,
			UserID:        tx.UserID,
			Date:          tx.Date,
			Description:   tx.Description,
			Amount:        tx.Amount.InexactFloat64(),
			Direction:     string(tx.Direction),
			FileName:      statement.FileName,
			ExportedTS:    now,
		})
	}

	inserter := client.Dataset(s.dataset).Table(s.table).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("analytics: insert rows: %w", err)
	}
	return nil
}
