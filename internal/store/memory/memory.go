// Package memory provides an in-memory Store implementation. It is safe
// for concurrent use and is the backing store for tests and local
// development. Data is lost on process exit.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/iam-hbk/accounting-on-the-go/internal/domain"
	"github.com/iam-hbk/accounting-on-the-go/internal/store"
)

// Store keeps every collection in maps guarded by a single RWMutex.
// Reads and writes copy records at the boundary so callers can never
// mutate shared state through a returned pointer.
type Store struct {
	mu           sync.RWMutex
	users        map[string]*domain.User
	sessions     map[string]*domain.Session
	categories   map[string]*domain.Category
	statements   map[string]*domain.Statement
	transactions map[string]*domain.Transaction
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		users:        make(map[string]*domain.User),
		sessions:     make(map[string]*domain.Session),
		categories:   make(map[string]*domain.Category),
		statements:   make(map[string]*domain.Statement),
		transactions: make(map[string]*domain.Transaction),
	}
}

var _ store.Store = (*Store)(nil)

// ---- users ----

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email != "" && strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) UpdateUser(ctx context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

// ---- sessions ----

func (s *Store) CreateSession(ctx context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *sess
	s.sessions[sess.Token] = &cp
	return nil
}

func (s *Store) GetSession(ctx context.Context, token string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *Store) DeleteSession(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, token)
	return nil
}

// ---- categories ----

func (s *Store) CreateCategory(ctx context.Context, c *domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *c
	s.categories[c.ID] = &cp
	return nil
}

func (s *Store) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Store) ListCategoriesByUser(ctx context.Context, userID string) ([]*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Category
	for _, c := range s.categories {
		if c.UserID == userID {
			cp := *c
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Store) UpdateCategory(ctx context.Context, c *domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[c.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *c
	s.categories[c.ID] = &cp
	return nil
}

// DeleteCategory removes the category record only. Transactions holding
// the deleted id keep it as a dangling reference.
func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.categories, id)
	return nil
}

// ---- statements ----

func (s *Store) CreateStatement(ctx context.Context, st *domain.Statement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *st
	s.statements[st.ID] = &cp
	return nil
}

func (s *Store) GetStatement(ctx context.Context, id string) (*domain.Statement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.statements[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *st
	return &cp, nil
}

func (s *Store) ListStatementsByUser(ctx context.Context, userID string) ([]*domain.Statement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Statement
	for _, st := range s.statements {
		if st.UserID == userID {
			cp := *st
			result = append(result, &cp)
		}
	}
	// Newest upload first, matching the Postgres ORDER BY.
	sort.Slice(result, func(i, j int) bool {
		if result[i].UploadedAt.Equal(result[j].UploadedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].UploadedAt.After(result[j].UploadedAt)
	})
	return result, nil
}

func (s *Store) UpdateStatementStatus(ctx context.Context, id string, status domain.StatementStatus, transactionCount *int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.statements[id]
	if !ok {
		return store.ErrNotFound
	}
	if st.Status != domain.StatementProcessing {
		return store.ErrConflict
	}
	st.Status = status
	if transactionCount != nil {
		n := *transactionCount
		st.TransactionCount = &n
	}
	return nil
}

// ---- transactions ----

func (s *Store) InsertTransactions(ctx context.Context, txs []*domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tx := range txs {
		cp := *tx
		s.transactions[tx.ID] = &cp
	}
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *tx
	return &cp, nil
}

func (s *Store) ListTransactions(ctx context.Context, filter store.TransactionFilter, field store.SortField, order store.SortOrder, page store.PageOptions) (*store.TransactionPage, error) {
	s.mu.RLock()
	matched := s.collect(filter)
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return compareTx(field, order, matched[i], matched[j]) < 0
	})

	start := 0
	if page.Cursor != "" {
		cur, err := store.DecodeCursor(page.Cursor)
		if err != nil {
			return nil, err
		}
		// Resume strictly after the cursor position.
		start = sort.Search(len(matched), func(i int) bool {
			return compareToCursor(field, order, matched[i], cur) > 0
		})
	}

	n := page.NumItems
	if n <= 0 {
		n = len(matched) - start
	}
	end := start + n
	if end >= len(matched) {
		end = len(matched)
	}

	result := &store.TransactionPage{
		Items:  matched[start:end],
		IsDone: end >= len(matched),
	}
	if !result.IsDone && len(result.Items) > 0 {
		last := result.Items[len(result.Items)-1]
		result.ContinueCursor = store.EncodeCursor(store.Cursor{
			Value: store.SortValue(field, last.Date, last.Description, last.Amount.String()),
			ID:    last.ID,
		})
	}
	return result, nil
}

func (s *Store) CountTransactions(ctx context.Context, filter store.TransactionFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.collect(filter)), nil
}

// UpdateTransactionCategorization overwrites both categorization fields,
// clearing whichever is nil.
func (s *Store) UpdateTransactionCategorization(ctx context.Context, id string, categoryID, categoryNote *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[id]
	if !ok {
		return store.ErrNotFound
	}
	tx.CategoryID = cloneString(categoryID)
	tx.CategoryNote = cloneString(categoryNote)
	return nil
}

// collect copies every transaction matching the filter. Callers must hold
// at least the read lock.
func (s *Store) collect(filter store.TransactionFilter) []*domain.Transaction {
	var matched []*domain.Transaction
	for _, tx := range s.transactions {
		if tx.UserID != filter.UserID {
			continue
		}
		if filter.CategoryID != nil && (tx.CategoryID == nil || *tx.CategoryID != *filter.CategoryID) {
			continue
		}
		if filter.Uncategorized && tx.CategoryID != nil {
			continue
		}
		if filter.StatementID != nil && tx.StatementID != *filter.StatementID {
			continue
		}
		cp := *tx
		matched = append(matched, &cp)
	}
	return matched
}

func compareTx(field store.SortField, order store.SortOrder, a, b *domain.Transaction) int {
	var c int
	switch field {
	case store.SortByAmount:
		c = a.Amount.Cmp(b.Amount)
	case store.SortByDescription:
		c = strings.Compare(a.Description, b.Description)
	default:
		c = strings.Compare(a.Date, b.Date)
	}
	if c == 0 {
		c = strings.Compare(a.ID, b.ID)
	}
	if order == store.SortDesc {
		c = -c
	}
	return c
}

func compareToCursor(field store.SortField, order store.SortOrder, tx *domain.Transaction, cur store.Cursor) int {
	var c int
	switch field {
	case store.SortByAmount:
		cv, err := decimal.NewFromString(cur.Value)
		if err != nil {
			// Treat an unparseable amount cursor as the beginning.
			return 1
		}
		c = tx.Amount.Cmp(cv)
	case store.SortByDescription:
		c = strings.Compare(tx.Description, cur.Value)
	default:
		c = strings.Compare(tx.Date, cur.Value)
	}
	if c == 0 {
		c = strings.Compare(tx.ID, cur.ID)
	}
	if order == store.SortDesc {
		c = -c
	}
	return c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
