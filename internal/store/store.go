// Package store defines the persistence boundary for the application's
// four record collections plus auth sessions. Two implementations exist:
// a Postgres store used in production and an in-memory store used by
// tests and local development.
package store

import (
	"context"
	"errors"

	"github.com/iam-hbk/accounting-on-the-go/internal/domain"
)

var (
	// ErrNotFound is returned when a record does not exist. Ownership
	// misses are reported with the same error so callers cannot tell a
	// foreign record apart from an absent one.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a write would violate a state
	// invariant, e.g. advancing a statement that already left the
	// processing state.
	ErrConflict = errors.New("conflicting record state")
)

// SortField selects the transaction column used for ordering.
type SortField string

const (
	SortByDate        SortField = "date"
	SortByAmount      SortField = "amount"
	SortByDescription SortField = "description"
)

// Valid reports whether f is one of the sortable columns.
func (f SortField) Valid() bool {
	switch f {
	case SortByDate, SortByAmount, SortByDescription:
		return true
	}
	return false
}

// SortOrder is the traversal direction of the ordered index.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// TransactionFilter narrows a transaction listing. UserID is mandatory;
// at most one of CategoryID, Uncategorized and StatementID is usually
// set, matching the indexes the store maintains.
type TransactionFilter struct {
	UserID        string
	CategoryID    *string
	StatementID   *string
	Uncategorized bool
}

// PageOptions carries cursor pagination state. An empty Cursor starts
// from the beginning of the ordered index.
type PageOptions struct {
	NumItems int
	Cursor   string
}

// TransactionPage is one page of an ordered traversal. ContinueCursor is
// only meaningful when IsDone is false.
type TransactionPage struct {
	Items          []*domain.Transaction
	ContinueCursor string
	IsDone         bool
}

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateUser(ctx context.Context, u *domain.User) error
}

// SessionStore persists issued bearer tokens.
type SessionStore interface {
	CreateSession(ctx context.Context, s *domain.Session) error
	GetSession(ctx context.Context, token string) (*domain.Session, error)
	DeleteSession(ctx context.Context, token string) error
}

// CategoryStore persists user-owned categories. DeleteCategory never
// touches transactions referencing the deleted category; dangling
// references are resolved to a null category at query time.
type CategoryStore interface {
	CreateCategory(ctx context.Context, c *domain.Category) error
	GetCategory(ctx context.Context, id string) (*domain.Category, error)
	ListCategoriesByUser(ctx context.Context, userID string) ([]*domain.Category, error)
	UpdateCategory(ctx context.Context, c *domain.Category) error
	DeleteCategory(ctx context.Context, id string) error
}

// StatementStore persists uploaded statement records. UpdateStatementStatus
// enforces the forward-only lifecycle: it returns ErrConflict when the
// statement is no longer in the processing state, and ErrNotFound when
// the statement does not exist.
type StatementStore interface {
	CreateStatement(ctx context.Context, s *domain.Statement) error
	GetStatement(ctx context.Context, id string) (*domain.Statement, error)
	ListStatementsByUser(ctx context.Context, userID string) ([]*domain.Statement, error)
	UpdateStatementStatus(ctx context.Context, id string, status domain.StatementStatus, transactionCount *int) error
}

// TransactionStore persists extracted transactions. ListTransactions
// traverses the store's own ordered index in the requested direction; no
// implementation may sort a full result set in memory on the query path.
type TransactionStore interface {
	InsertTransactions(ctx context.Context, txs []*domain.Transaction) error
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, filter TransactionFilter, field SortField, order SortOrder, page PageOptions) (*TransactionPage, error)
	CountTransactions(ctx context.Context, filter TransactionFilter) (int, error)
	UpdateTransactionCategorization(ctx context.Context, id string, categoryID, categoryNote *string) error
}

// Store aggregates every collection behind one handle.
type Store interface {
	UserStore
	SessionStore
	CategoryStore
	StatementStore
	TransactionStore
}
