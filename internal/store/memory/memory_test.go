package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iam-hbk/accounting-on-the-go/internal/domain"
	"github.com/iam-hbk/accounting-on-the-go/internal/store"
)

func testTransaction(i int, userID, statementID string) *domain.Transaction {
	// Dates cycle so several transactions share a date and the id
	// tiebreak actually matters; amounts repeat every 10 for the same
	// reason.
	return &domain.Transaction{
		ID:          fmt.Sprintf("tx-%03d", i),
		Date:        fmt.Sprintf("2024-03-%02d", i%28+1),
		Description: fmt.Sprintf("MERCHANT %03d", i),
		Amount:      decimal.NewFromInt(int64(i%10 + 1)).Add(decimal.NewFromFloat(0.50)),
		Direction:   domain.DirectionDebit,
		UserID:      userID,
		StatementID: statementID,
		CreatedAt:   time.Now().UTC(),
	}
}

func seedTransactions(t *testing.T, s *Store, n int, userID, statementID string) {
	t.Helper()
	txs := make([]*domain.Transaction, 0, n)
	for i := 0; i < n; i++ {
		txs = append(txs, testTransaction(i, userID, statementID))
	}
	require.NoError(t, s.InsertTransactions(context.Background(), txs))
}

func TestUserCRUD(t *testing.T) {
	s := New()
	ctx := context.Background()

	u := &domain.User{ID: "u1", Email: "alice@example.com", Name: "Alice", CreatedAt: time.Now()}
	require.NoError(t, s.CreateUser(ctx, u))

	got, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", got.Email)

	// Email lookup is case-insensitive.
	got, err = s.GetUserByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	require.Equal(t, "u1", got.ID)

	// Returned records are copies; mutating them must not leak back.
	got.Name = "Mallory"
	again, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "Alice", again.Name)

	_, err = s.GetUser(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	u.Name = "Alice B"
	require.NoError(t, s.UpdateUser(ctx, u))
	got, err = s.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "Alice B", got.Name)

	require.ErrorIs(t, s.UpdateUser(ctx, &domain.User{ID: "missing"}), store.ErrNotFound)
}

func TestAnonymousUserHasNoEmailMatch(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, &domain.User{ID: "anon", Anonymous: true}))
	_, err := s.GetUserByEmail(ctx, "")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSessionLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()

	sess := &domain.Session{Token: "tok", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, s.CreateSession(ctx, sess))

	got, err := s.GetSession(ctx, "tok")
	require.NoError(t, err)
	require.Equal(t, "u1", got.UserID)

	require.NoError(t, s.DeleteSession(ctx, "tok"))
	_, err = s.GetSession(ctx, "tok")
	require.ErrorIs(t, err, store.ErrNotFound)

	// Deleting an unknown token is a no-op.
	require.NoError(t, s.DeleteSession(ctx, "never-existed"))
}

func TestCategoryDeleteLeavesDanglingReferences(t *testing.T) {
	s := New()
	ctx := context.Background()

	catID := "cat1"
	require.NoError(t, s.CreateCategory(ctx, &domain.Category{ID: catID, Name: "Food", UserID: "u1"}))

	tx := testTransaction(0, "u1", "st1")
	tx.CategoryID = &catID
	require.NoError(t, s.InsertTransactions(ctx, []*domain.Transaction{tx}))

	require.NoError(t, s.DeleteCategory(ctx, catID))
	require.ErrorIs(t, s.DeleteCategory(ctx, catID), store.ErrNotFound)

	// The transaction keeps the dangling id.
	got, err := s.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CategoryID)
	require.Equal(t, catID, *got.CategoryID)
}

func TestListCategoriesByUserScoping(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Now().UTC()

	require.NoError(t, s.CreateCategory(ctx, &domain.Category{ID: "c2", Name: "Later", UserID: "u1", CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, s.CreateCategory(ctx, &domain.Category{ID: "c1", Name: "Earlier", UserID: "u1", CreatedAt: base}))
	require.NoError(t, s.CreateCategory(ctx, &domain.Category{ID: "c3", Name: "Other", UserID: "u2", CreatedAt: base}))

	cats, err := s.ListCategoriesByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, cats, 2)
	require.Equal(t, "c1", cats[0].ID)
	require.Equal(t, "c2", cats[1].ID)
}

func TestStatementStatusTransitions(t *testing.T) {
	s := New()
	ctx := context.Background()

	st := &domain.Statement{ID: "st1", FileName: "jan.csv", UploadedAt: time.Now(), Status: domain.StatementProcessing, UserID: "u1"}
	require.NoError(t, s.CreateStatement(ctx, st))

	count := 12
	require.NoError(t, s.UpdateStatementStatus(ctx, "st1", domain.StatementCompleted, &count))

	got, err := s.GetStatement(ctx, "st1")
	require.NoError(t, err)
	require.Equal(t, domain.StatementCompleted, got.Status)
	require.NotNil(t, got.TransactionCount)
	require.Equal(t, 12, *got.TransactionCount)

	// Terminal states never move again.
	err = s.UpdateStatementStatus(ctx, "st1", domain.StatementFailed, nil)
	require.ErrorIs(t, err, store.ErrConflict)

	err = s.UpdateStatementStatus(ctx, "missing", domain.StatementFailed, nil)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestListStatementsNewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Now().UTC()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.CreateStatement(ctx, &domain.Statement{
			ID:         fmt.Sprintf("st%d", i),
			FileName:   fmt.Sprintf("file%d.csv", i),
			UploadedAt: base.Add(time.Duration(i) * time.Minute),
			Status:     domain.StatementProcessing,
			UserID:     "u1",
		}))
	}
	require.NoError(t, s.CreateStatement(ctx, &domain.Statement{ID: "other", UploadedAt: base, Status: domain.StatementProcessing, UserID: "u2"}))

	got, err := s.ListStatementsByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "st2", got[0].ID)
	require.Equal(t, "st0", got[2].ID)
}

func TestTransactionFilters(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedTransactions(t, s, 10, "u1", "st1")
	seedTransactions(t, s, 5, "u2", "st2")

	catID := "cat1"
	require.NoError(t, s.UpdateTransactionCategorization(ctx, "tx-003", &catID, nil))
	require.NoError(t, s.UpdateTransactionCategorization(ctx, "tx-007", &catID, nil))

	n, err := s.CountTransactions(ctx, store.TransactionFilter{UserID: "u1"})
	require.NoError(t, err)
	require.Equal(t, 10, n)

	n, err = s.CountTransactions(ctx, store.TransactionFilter{UserID: "u1", CategoryID: &catID})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = s.CountTransactions(ctx, store.TransactionFilter{UserID: "u1", Uncategorized: true})
	require.NoError(t, err)
	require.Equal(t, 8, n)

	stID := "st1"
	n, err = s.CountTransactions(ctx, store.TransactionFilter{UserID: "u1", StatementID: &stID})
	require.NoError(t, err)
	require.Equal(t, 10, n)

	n, err = s.CountTransactions(ctx, store.TransactionFilter{UserID: "nobody"})
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestUpdateTransactionCategorizationClearsOmittedFields(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedTransactions(t, s, 1, "u1", "st1")

	catID, note := "cat1", "split with roommate"
	require.NoError(t, s.UpdateTransactionCategorization(ctx, "tx-000", &catID, &note))

	got, err := s.GetTransaction(ctx, "tx-000")
	require.NoError(t, err)
	require.Equal(t, catID, *got.CategoryID)
	require.Equal(t, note, *got.CategoryNote)

	// Passing nil clears both fields.
	require.NoError(t, s.UpdateTransactionCategorization(ctx, "tx-000", nil, nil))
	got, err = s.GetTransaction(ctx, "tx-000")
	require.NoError(t, err)
	require.Nil(t, got.CategoryID)
	require.Nil(t, got.CategoryNote)

	err = s.UpdateTransactionCategorization(ctx, "missing", nil, nil)
	require.ErrorIs(t, err, store.ErrNotFound)
}

// TestPaginationRoundTrip walks 57 transactions in pages of 20 for every
// sort field and order, checking page sizes, no duplicates and no losses.
func TestPaginationRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()
	const total = 57
	seedTransactions(t, s, total, "u1", "st1")

	fields := []store.SortField{store.SortByDate, store.SortByAmount, store.SortByDescription}
	orders := []store.SortOrder{store.SortAsc, store.SortDesc}

	for _, field := range fields {
		for _, order := range orders {
			t.Run(fmt.Sprintf("%s_%s", field, order), func(t *testing.T) {
				seen := make(map[string]bool)
				var pages []int
				cursor := ""
				var prev *domain.Transaction

				for {
					page, err := s.ListTransactions(ctx, store.TransactionFilter{UserID: "u1"}, field, order, store.PageOptions{NumItems: 20, Cursor: cursor})
					require.NoError(t, err)
					pages = append(pages, len(page.Items))

					for _, tx := range page.Items {
						require.False(t, seen[tx.ID], "transaction %s served twice", tx.ID)
						seen[tx.ID] = true
						if prev != nil {
							require.LessOrEqual(t, compareTx(field, order, prev, tx), 0,
								"ordering violated between %s and %s", prev.ID, tx.ID)
						}
						prev = tx
					}

					if page.IsDone {
						require.Empty(t, page.ContinueCursor)
						break
					}
					require.NotEmpty(t, page.ContinueCursor)
					cursor = page.ContinueCursor
				}

				require.Equal(t, []int{20, 20, 17}, pages)
				require.Len(t, seen, total)
			})
		}
	}
}

func TestListTransactionsRejectsBadCursor(t *testing.T) {
	s := New()
	seedTransactions(t, s, 3, "u1", "st1")

	_, err := s.ListTransactions(context.Background(), store.TransactionFilter{UserID: "u1"},
		store.SortByDate, store.SortAsc, store.PageOptions{NumItems: 10, Cursor: "not-a-cursor"})
	require.Error(t, err)
}

func TestListTransactionsUnlimitedPage(t *testing.T) {
	s := New()
	seedTransactions(t, s, 5, "u1", "st1")

	page, err := s.ListTransactions(context.Background(), store.TransactionFilter{UserID: "u1"},
		store.SortByDate, store.SortAsc, store.PageOptions{})
	require.NoError(t, err)
	require.Len(t, page.Items, 5)
	require.True(t, page.IsDone)
}
