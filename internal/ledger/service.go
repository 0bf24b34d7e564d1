// Package ledger serves the read and categorization paths: paginated
// transaction listings joined with their resolved categories, counts,
// per-transaction category assignment and category CRUD. Every operation
// is scoped to the calling user; a record owned by someone else reads as
// not found.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iam-hbk/accounting-on-the-go/internal/domain"
	"github.com/iam-hbk/accounting-on-the-go/internal/store"
)

// TransactionWithCategory is a transaction joined with its resolved
// category. Category is null for uncategorized transactions and for
// dangling references left behind by a category deletion.
type TransactionWithCategory struct {
	domain.Transaction
	Category *domain.Category `json:"category"`
}

// Page is one page of joined transactions plus continuation state.
type Page struct {
	Items          []*TransactionWithCategory `json:"page"`
	ContinueCursor string                     `json:"continueCursor,omitempty"`
	IsDone         bool                       `json:"isDone"`
}

// ListOptions carries the query surface of a transaction listing.
type ListOptions struct {
	CategoryID *string
	SortField  store.SortField
	SortOrder  store.SortOrder
	NumItems   int
	Cursor     string
}

// Service implements the query and categorization operations.
type Service struct {
	store store.Store
	log   zerolog.Logger
}

// NewService creates a ledger service.
func NewService(st store.Store, log zerolog.Logger) *Service {
	return &Service{store: st, log: log}
}

// ListTransactions returns one page of the caller's transactions. The
// index is selected by whether a category filter is present; ordering is
// the store's native index traversal.
func (s *Service) ListTransactions(ctx context.Context, userID string, opts ListOptions) (*Page, error) {
	filter := store.TransactionFilter{UserID: userID, CategoryID: opts.CategoryID}
	page, err := s.store.ListTransactions(ctx, filter, normalizeField(opts.SortField), normalizeOrder(opts.SortOrder), store.PageOptions{
		NumItems: opts.NumItems,
		Cursor:   opts.Cursor,
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: list transactions: %w", err)
	}
	return s.joinCategories(ctx, page)
}

// ListUncategorized returns one page of transactions with no category
// assigned. The joined category is null by definition.
func (s *Service) ListUncategorized(ctx context.Context, userID string, opts ListOptions) (*Page, error) {
	filter := store.TransactionFilter{UserID: userID, Uncategorized: true}
	page, err := s.store.ListTransactions(ctx, filter, normalizeField(opts.SortField), normalizeOrder(opts.SortOrder), store.PageOptions{
		NumItems: opts.NumItems,
		Cursor:   opts.Cursor,
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: list uncategorized: %w", err)
	}

	items := make([]*TransactionWithCategory, 0, len(page.Items))
	for _, tx := range page.Items {
		items = append(items, &TransactionWithCategory{Transaction: *tx, Category: nil})
	}
	return &Page{Items: items, ContinueCursor: page.ContinueCursor, IsDone: page.IsDone}, nil
}

// CountTransactions returns the size of the filtered set. The count is
// recomputed on every call; no running counter is maintained.
func (s *Service) CountTransactions(ctx context.Context, userID string, categoryID *string) (int, error) {
	return s.store.CountTransactions(ctx, store.TransactionFilter{UserID: userID, CategoryID: categoryID})
}

// UpdateTransactionCategory overwrites a transaction's category and note,
// clearing whichever is omitted. The transaction must belong to the
// caller, and so must the category when one is supplied; either miss
// reads as not found.
func (s *Service) UpdateTransactionCategory(ctx context.Context, userID, transactionID string, categoryID, categoryNote *string) error {
	tx, err := s.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return fmt.Errorf("ledger: transaction %s: %w", transactionID, err)
	}
	if tx.UserID != userID {
		return fmt.Errorf("ledger: transaction %s: %w", transactionID, store.ErrNotFound)
	}
	if categoryID != nil {
		cat, err := s.store.GetCategory(ctx, *categoryID)
		if err != nil {
			return fmt.Errorf("ledger: category %s: %w", *categoryID, err)
		}
		if cat.UserID != userID {
			return fmt.Errorf("ledger: category %s: %w", *categoryID, store.ErrNotFound)
		}
	}
	if err := s.store.UpdateTransactionCategorization(ctx, transactionID, categoryID, categoryNote); err != nil {
		return fmt.Errorf("ledger: update categorization: %w", err)
	}
	return nil
}

// ListCategories returns the caller's categories.
func (s *Service) ListCategories(ctx context.Context, userID string) ([]*domain.Category, error) {
	return s.store.ListCategoriesByUser(ctx, userID)
}

// CreateCategory creates a category owned by the caller. Name and color
// are free-form; uniqueness is not enforced.
func (s *Service) CreateCategory(ctx context.Context, userID, name, color string) (*domain.Category, error) {
	c := &domain.Category{
		ID:        uuid.New().String(),
		Name:      name,
		Color:     color,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return nil, fmt.Errorf("ledger: create category: %w", err)
	}
	return c, nil
}

// UpdateCategory renames/recolors a category the caller owns.
func (s *Service) UpdateCategory(ctx context.Context, userID, categoryID, name, color string) (*domain.Category, error) {
	c, err := s.ownedCategory(ctx, userID, categoryID)
	if err != nil {
		return nil, err
	}
	c.Name = name
	c.Color = color
	if err := s.store.UpdateCategory(ctx, c); err != nil {
		return nil, fmt.Errorf("ledger: update category: %w", err)
	}
	return c, nil
}

// DeleteCategory removes a category the caller owns. Transactions
// referencing it are left untouched; their category ids become dangling
// references that resolve to a null category at query time.
func (s *Service) DeleteCategory(ctx context.Context, userID, categoryID string) error {
	if _, err := s.ownedCategory(ctx, userID, categoryID); err != nil {
		return err
	}
	if err := s.store.DeleteCategory(ctx, categoryID); err != nil {
		return fmt.Errorf("ledger: delete category: %w", err)
	}
	return nil
}

func (s *Service) ownedCategory(ctx context.Context, userID, categoryID string) (*domain.Category, error) {
	c, err := s.store.GetCategory(ctx, categoryID)
	if err != nil {
		return nil, fmt.Errorf("ledger: category %s: %w", categoryID, err)
	}
	if c.UserID != userID {
		return nil, fmt.Errorf("ledger: category %s: %w", categoryID, store.ErrNotFound)
	}
	return c, nil
}

// joinCategories resolves each transaction's category reference. A
// missing category (deleted since assignment) joins as null rather than
// failing the page.
func (s *Service) joinCategories(ctx context.Context, page *store.TransactionPage) (*Page, error) {
	cache := make(map[string]*domain.Category)
	items := make([]*TransactionWithCategory, 0, len(page.Items))
	for _, tx := range page.Items {
		item := &TransactionWithCategory{Transaction: *tx}
		if tx.CategoryID != nil {
			cat, ok := cache[*tx.CategoryID]
			if !ok {
				var err error
				cat, err = s.store.GetCategory(ctx, *tx.CategoryID)
				if errors.Is(err, store.ErrNotFound) {
					cat = nil
				} else if err != nil {
					return nil, fmt.Errorf("ledger: resolve category: %w", err)
				}
				cache[*tx.CategoryID] = cat
			}
			item.Category = cat
		}
		items = append(items, item)
	}
	return &Page{Items: items, ContinueCursor: page.ContinueCursor, IsDone: page.IsDone}, nil
}

func normalizeField(f store.SortField) store.SortField {
	if !f.Valid() {
		return store.SortByDate
	}
	return f
}

func normalizeOrder(o store.SortOrder) store.SortOrder {
	if o == store.SortDesc {
		return store.SortDesc
	}
	return store.SortAsc
}
