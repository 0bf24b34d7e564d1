package store

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Cursor marks the last row of a served page as a (sort value, id) pair.
// Both implementations resume strictly after this position, so the pair
// must use the same ordering semantics as the index traversal.
type Cursor struct {
	Value string `json:"v"`
	ID    string `json:"id"`
}

// EncodeCursor serializes a cursor into an opaque URL-safe token.
func EncodeCursor(c Cursor) string {
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor parses a token previously produced by EncodeCursor.
func DecodeCursor(token string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("decode cursor: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, fmt.Errorf("decode cursor: %w", err)
	}
	if c.ID == "" {
		return Cursor{}, fmt.Errorf("decode cursor: missing id")
	}
	return c, nil
}

// SortValue extracts the cursor sort value of a transaction for the given
// field. Amounts use their canonical decimal string so the value survives
// the round trip through the token without precision loss.
func SortValue(field SortField, date, description, amount string) string {
	switch field {
	case SortByAmount:
		return amount
	case SortByDescription:
		return description
	default:
		return date
	}
}
