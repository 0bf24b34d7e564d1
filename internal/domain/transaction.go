package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction says whether a transaction moves money into or out of the
// user's account. The stored amount is always a positive magnitude; the
// sign lives here.
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// Valid reports whether d is one of the two known directions.
func (d Direction) Valid() bool {
	return d == DirectionCredit || d == DirectionDebit
}

// Transaction is one financial movement extracted from an uploaded
// statement. Date is kept as the canonical "YYYY-MM-DD" string produced
// by the extraction step; ISO date strings order correctly under plain
// lexicographic comparison, which the stores rely on.
type Transaction struct {
	ID           string          `json:"id"`
	Date         string          `json:"date"`
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	Direction    Direction       `json:"direction"`
	CategoryID   *string         `json:"categoryId,omitempty"`
	CategoryNote *string         `json:"categoryNote,omitempty"`
	UserID       string          `json:"userId"`
	StatementID  string          `json:"statementId"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// SignedAmount returns the amount with the direction applied: positive
// for credits, negative for debits. Used by the exporters only; the
// stores never persist a signed value.
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.Direction == DirectionDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}
