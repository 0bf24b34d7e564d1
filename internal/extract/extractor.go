// Package extract defines the statement extraction boundary. The
// application performs no parsing itself; it hands the raw file bytes to
// an external model and receives back a normalized transaction list. The
// narrow Extractor interface keeps the workflow testable and leaves room
// to add retry policy without touching callers.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/iam-hbk/accounting-on-the-go/internal/domain"
)

// Record is one transaction as returned by the model: a canonical
// "YYYY-MM-DD" date, a cleaned description, a positive magnitude and an
// explicit direction.
type Record struct {
	Date        string
	Description string
	Amount      decimal.Decimal
	Direction   domain.Direction
}

// Extractor turns raw statement bytes into transaction records. Any
// failure of the external call is surfaced verbatim.
type Extractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) ([]Record, error)
}

// ErrEmptyResponse is returned when the model produces no output at all.
var ErrEmptyResponse = errors.New("extract: empty response from model")

// wire shapes of the schema-constrained model output.
type wirePayload struct {
	Transactions []wireRecord `json:"transactions"`
}

type wireRecord struct {
	Date        string      `json:"date"`
	Description string      `json:"description"`
	Amount      json.Number `json:"amount"`
	Direction   string      `json:"direction"`
}

// decodeRecords parses and checks the model's JSON output. The response
// schema already constrains the shape, so this is a belt-and-braces
// decode: it rejects anything the schema should have made impossible
// rather than trying to repair it.
func decodeRecords(raw []byte) ([]Record, error) {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()

	var payload wirePayload
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode model output: %w", err)
	}

	records := make([]Record, 0, len(payload.Transactions))
	for i, w := range payload.Transactions {
		if _, err := civil.ParseDate(w.Date); err != nil {
			return nil, fmt.Errorf("transaction %d: invalid date %q: %w", i, w.Date, err)
		}
		desc := normalizeWhitespace(w.Description)
		if desc == "" {
			return nil, fmt.Errorf("transaction %d: empty description", i)
		}
		amount, err := decimal.NewFromString(w.Amount.String())
		if err != nil {
			return nil, fmt.Errorf("transaction %d: invalid amount %q: %w", i, w.Amount.String(), err)
		}
		if amount.Sign() <= 0 {
			return nil, fmt.Errorf("transaction %d: amount %s is not positive", i, amount)
		}
		direction := domain.Direction(w.Direction)
		if !direction.Valid() {
			return nil, fmt.Errorf("transaction %d: invalid direction %q", i, w.Direction)
		}
		records = append(records, Record{
			Date:        w.Date,
			Description: desc,
			Amount:      amount,
			Direction:   direction,
		})
	}
	return records, nil
}

// normalizeWhitespace collapses runs of whitespace into single spaces.
// The model is instructed to do this already; statements scanned from
// images still slip through with doubled spaces occasionally.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
