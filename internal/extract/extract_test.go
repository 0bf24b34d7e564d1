package extract

import (
	"strings"
	"testing"

	"github.com/iam-hbk/accounting-on-the-go/internal/domain"
)

func TestDecodeRecords(t *testing.T) {
	valid := `{"transactions": [
		{"date": "2024-03-15", "description": "COFFEE SHOP", "amount": 4.50, "direction": "debit"},
		{"date": "2024-03-16", "description": "SALARY", "amount": 2500, "direction": "credit"}
	]}`

	records, err := decodeRecords([]byte(valid))
	if err != nil {
		t.Fatalf("decodeRecords failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Amount.String() != "4.5" {
		t.Errorf("amount = %s, want 4.5", records[0].Amount.String())
	}
	if records[1].Direction != domain.DirectionCredit {
		t.Errorf("direction = %s, want credit", records[1].Direction)
	}
}

func TestDecodeRecordsRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr string
	}{
		{
			name:    "not json",
			payload: `here are your transactions`,
			wantErr: "decode model output",
		},
		{
			name:    "bad date format",
			payload: `{"transactions": [{"date": "15/03/2024", "description": "X", "amount": 1, "direction": "debit"}]}`,
			wantErr: "invalid date",
		},
		{
			name:    "empty description",
			payload: `{"transactions": [{"date": "2024-03-15", "description": "   ", "amount": 1, "direction": "debit"}]}`,
			wantErr: "empty description",
		},
		{
			name:    "negative amount",
			payload: `{"transactions": [{"date": "2024-03-15", "description": "X", "amount": -4.50, "direction": "debit"}]}`,
			wantErr: "not positive",
		},
		{
			name:    "zero amount",
			payload: `{"transactions": [{"date": "2024-03-15", "description": "X", "amount": 0, "direction": "debit"}]}`,
			wantErr: "not positive",
		},
		{
			name:    "unknown direction",
			payload: `{"transactions": [{"date": "2024-03-15", "description": "X", "amount": 1, "direction": "transfer"}]}`,
			wantErr: "invalid direction",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeRecords([]byte(tt.payload))
			if err == nil {
				t.Fatal("decodeRecords succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestDecodeRecordsEmptyList(t *testing.T) {
	records, err := decodeRecords([]byte(`{"transactions": []}`))
	if err != nil {
		t.Fatalf("decodeRecords failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records, want 0", len(records))
	}
}

func TestDecodeRecordsPreservesDecimalPrecision(t *testing.T) {
	// json.Number keeps the literal digits, so a float64 round trip can
	// never corrupt an amount.
	payload := `{"transactions": [{"date": "2024-01-01", "description": "X", "amount": 1234567.89, "direction": "credit"}]}`
	records, err := decodeRecords([]byte(payload))
	if err != nil {
		t.Fatalf("decodeRecords failed: %v", err)
	}
	if records[0].Amount.String() != "1234567.89" {
		t.Errorf("amount = %s, want 1234567.89", records[0].Amount.String())
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"COFFEE  SHOP", "COFFEE SHOP"},
		{"  leading and trailing  ", "leading and trailing"},
		{"tabs\tand\nnewlines", "tabs and newlines"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := normalizeWhitespace(tt.input); got != tt.want {
			t.Errorf("normalizeWhitespace(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestCleanModelJSON(t *testing.T) {
	want := `{"transactions": []}`
	tests := []struct {
		name string
		raw  string
	}{
		{"plain json", `{"transactions": []}`},
		{"fenced", "```json\n{\"transactions\": []}\n```"},
		{"fenced without language", "```\n{\"transactions\": []}\n```"},
		{"prose around the object", "Here is the result:\n{\"transactions\": []}\nLet me know if you need more."},
		{"whitespace padding", "\n\n  {\"transactions\": []}  \n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanModelJSON(tt.raw); got != want {
				t.Errorf("cleanModelJSON = %q, want %q", got, want)
			}
		})
	}
}
