// Package export pushes a user's transactions into a Notion database,
// one page per transaction. Driven from the admin CLI; the API surface
// never touches it.
package export

import (
	"context"
	"fmt"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rs/zerolog"

	"github.com/iam-hbk/accounting-on-the-go/internal/domain"
)

// NotionExporter writes transaction pages through the official Notion SDK.
type NotionExporter struct {
	client     *notionapi.Client
	databaseID string
	log        zerolog.Logger
}

// NewNotionExporter creates an exporter for the given integration token
// and target database.
func NewNotionExporter(token, databaseID string, log zerolog.Logger) *NotionExporter {
	return &NotionExporter{
		client:     notionapi.NewClient(notionapi.Token(token)),
		databaseID: databaseID,
		log:        log,
	}
}

// ExportTransactions creates one Notion page per transaction and returns
// the number of pages created. categories maps category id to name for
// the Category select; dangling references export without one.
func (e *NotionExporter) ExportTransactions(ctx context.Context, txs []*domain.Transaction, categories map[string]string) (int, error) {
	created := 0
	for _, tx := range txs {
		req := &notionapi.PageCreateRequest{
			Parent: notionapi.Parent{
				Type:       notionapi.ParentTypeDatabaseID,
				DatabaseID: notionapi.DatabaseID(e.databaseID),
			},
			Properties: transactionToProperties(tx, categories),
		}
		if _, err := e.client.Page.Create(ctx, req); err != nil {
			return created, fmt.Errorf("export: create page for transaction %s: %w", tx.ID, err)
		}
		created++
	}
	e.log.Info().Int("pages", created).Msg("Transactions exported to Notion")
	return created, nil
}

// transactionToProperties maps one transaction onto the Notion database
// schema: Description (title), Date, Amount (signed number), Direction
// (select), Category (select) and Note (rich text).
func transactionToProperties(tx *domain.Transaction, categories map[string]string) notionapi.Properties {
	props := notionapi.Properties{
		"Description": notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: tx.Description,
					},
				},
			},
		},
		"Date": notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: parseNotionDate(tx.Date),
			},
		},
		"Amount": notionapi.NumberProperty{
			Number: tx.SignedAmount().InexactFloat64(),
		},
		"Direction": notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: string(tx.Direction),
			},
		},
	}

	if tx.CategoryID != nil {
		if name, ok := categories[*tx.CategoryID]; ok {
			props["Category"] = notionapi.SelectProperty{
				Select: notionapi.Option{
					Name: name,
				},
			}
		}
	}

	if tx.CategoryNote != nil && *tx.CategoryNote != "" {
		props["Note"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: *tx.CategoryNote,
					},
				},
			},
		}
	}

	return props
}

func parseNotionDate(date string) *notionapi.Date {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil
	}
	d := notionapi.Date(t)
	return &d
}
