// Package postgres implements the store interfaces on top of a pgx
// connection pool. Sorting and filtering happen in SQL against the
// indexes created by the migrations; pagination is keyset-based so deep
// pages stay cheap.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/iam-hbk/accounting-on-the-go/internal/domain"
	"github.com/iam-hbk/accounting-on-the-go/internal/store"
)

// Store wraps a pgx pool. It is safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// Connect opens a connection pool against the given database URL and
// verifies it with a ping.
func Connect(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool wraps an existing pool. The caller keeps ownership of the
// pool's lifecycle.
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// ---- users ----

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, email, name, password_hash, anonymous, created_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.Anonymous, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: create user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, COALESCE(email, ''), name, password_hash, anonymous, created_at
		FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, COALESCE(email, ''), name, password_hash, anonymous, created_at
		FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

func (s *Store) UpdateUser(ctx context.Context, u *domain.User) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET email = NULLIF($2, ''), name = $3, password_hash = $4, anonymous = $5
		WHERE id = $1`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.Anonymous)
	if err != nil {
		return fmt.Errorf("postgres: update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Anonymous, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: scan user: %w", err)
	}
	return &u, nil
}

// ---- sessions ----

func (s *Store) CreateSession(ctx context.Context, sess *domain.Session) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (token, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)`,
		sess.Token, sess.UserID, sess.ExpiresAt, sess.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: create session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, token string) (*domain.Session, error) {
	var sess domain.Session
	err := s.pool.QueryRow(ctx, `
		SELECT token, user_id, expires_at, created_at
		FROM sessions WHERE token = $1`, token).
		Scan(&sess.Token, &sess.UserID, &sess.ExpiresAt, &sess.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get session: %w", err)
	}
	return &sess, nil
}

func (s *Store) DeleteSession(ctx context.Context, token string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token); err != nil {
		return fmt.Errorf("postgres: delete session: %w", err)
	}
	return nil
}

// ---- categories ----

func (s *Store) CreateCategory(ctx context.Context, c *domain.Category) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO categories (id, name, color, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.Name, c.Color, c.UserID, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: create category: %w", err)
	}
	return nil
}

func (s *Store) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	var c domain.Category
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, color, user_id, created_at
		FROM categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Color, &c.UserID, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get category: %w", err)
	}
	return &c, nil
}

func (s *Store) ListCategoriesByUser(ctx context.Context, userID string) ([]*domain.Category, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, color, user_id, created_at
		FROM categories WHERE user_id = $1
		ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list categories: %w", err)
	}
	defer rows.Close()

	var result []*domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Color, &c.UserID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan category: %w", err)
		}
		result = append(result, &c)
	}
	return result, rows.Err()
}

func (s *Store) UpdateCategory(ctx context.Context, c *domain.Category) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE categories SET name = $2, color = $3 WHERE id = $1`,
		c.ID, c.Name, c.Color)
	if err != nil {
		return fmt.Errorf("postgres: update category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteCategory removes only the category row. transactions.category_id
// deliberately has no foreign key, so existing references stay dangling.
func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ---- statements ----

func (s *Store) CreateStatement(ctx context.Context, st *domain.Statement) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO statements (id, file_name, uploaded_at, status, transaction_count, user_id)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		st.ID, st.FileName, st.UploadedAt, st.Status, st.TransactionCount, st.UserID)
	if err != nil {
		return fmt.Errorf("postgres: create statement: %w", err)
	}
	return nil
}

func (s *Store) GetStatement(ctx context.Context, id string) (*domain.Statement, error) {
	var st domain.Statement
	err := s.pool.QueryRow(ctx, `
		SELECT id, file_name, uploaded_at, status, transaction_count, user_id
		FROM statements WHERE id = $1`, id).
		Scan(&st.ID, &st.FileName, &st.UploadedAt, &st.Status, &st.TransactionCount, &st.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get statement: %w", err)
	}
	return &st, nil
}

func (s *Store) ListStatementsByUser(ctx context.Context, userID string) ([]*domain.Statement, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, file_name, uploaded_at, status, transaction_count, user_id
		FROM statements WHERE user_id = $1
		ORDER BY uploaded_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list statements: %w", err)
	}
	defer rows.Close()

	var result []*domain.Statement
	for rows.Next() {
		var st domain.Statement
		if err := rows.Scan(&st.ID, &st.FileName, &st.UploadedAt, &st.Status, &st.TransactionCount, &st.UserID); err != nil {
			return nil, fmt.Errorf("postgres: scan statement: %w", err)
		}
		result = append(result, &st)
	}
	return result, rows.Err()
}

// UpdateStatementStatus advances a statement out of the processing state.
// The WHERE clause is the forward-only guard: a statement that already
// completed or failed is never rewritten.
func (s *Store) UpdateStatementStatus(ctx context.Context, id string, status domain.StatementStatus, transactionCount *int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE statements
		SET status = $2, transaction_count = COALESCE($3, transaction_count)
		WHERE id = $1 AND status = 'processing'`,
		id, status, transactionCount)
	if err != nil {
		return fmt.Errorf("postgres: update statement status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM statements WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("postgres: update statement status: %w", err)
		}
		if exists {
			return store.ErrConflict
		}
		return store.ErrNotFound
	}
	return nil
}

// ---- transactions ----

const transactionColumns = `id, date, description, amount::text, direction, category_id, category_note, user_id, statement_id, created_at`

func (s *Store) InsertTransactions(ctx context.Context, txs []*domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, tx := range txs {
		batch.Queue(`
			INSERT INTO transactions (id, date, description, amount, direction, category_id, category_note, user_id, statement_id, created_at)
			VALUES ($1, $2, $3, ($4)::numeric, $5, $6, $7, $8, $9, $10)`,
			tx.ID, tx.Date, tx.Description, tx.Amount.String(), tx.Direction,
			tx.CategoryID, tx.CategoryNote, tx.UserID, tx.StatementID, tx.CreatedAt)
	}
	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range txs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("postgres: insert transactions: %w", err)
		}
	}
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	tx, err := scanTransaction(row)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *Store) ListTransactions(ctx context.Context, filter store.TransactionFilter, field store.SortField, order store.SortOrder, page store.PageOptions) (*store.TransactionPage, error) {
	if !field.Valid() {
		field = store.SortByDate
	}
	col := sortColumn(field)
	cmp, dir := ">", "ASC"
	if order == store.SortDesc {
		cmp, dir = "<", "DESC"
	}

	where, args := buildFilter(filter)

	if page.Cursor != "" {
		cur, err := store.DecodeCursor(page.Cursor)
		if err != nil {
			return nil, err
		}
		args = append(args, cur.Value)
		valParam := fmt.Sprintf("$%d", len(args))
		if field == store.SortByAmount {
			valParam = fmt.Sprintf("($%d)::numeric", len(args))
		}
		args = append(args, cur.ID)
		idParam := fmt.Sprintf("$%d", len(args))
		where = append(where, fmt.Sprintf("(%s %s %s OR (%s = %s AND id %s %s))",
			col, cmp, valParam, col, valParam, cmp, idParam))
	}

	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE %s ORDER BY %s %s, id %s`,
		transactionColumns, strings.Join(where, " AND "), col, dir, dir)
	if page.NumItems > 0 {
		// One extra row decides whether the traversal is exhausted.
		query += fmt.Sprintf(" LIMIT %d", page.NumItems+1)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions: %w", err)
	}
	defer rows.Close()

	var items []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list transactions: %w", err)
	}

	result := &store.TransactionPage{Items: items, IsDone: true}
	if page.NumItems > 0 && len(items) > page.NumItems {
		result.Items = items[:page.NumItems]
		result.IsDone = false
		last := result.Items[len(result.Items)-1]
		result.ContinueCursor = store.EncodeCursor(store.Cursor{
			Value: store.SortValue(field, last.Date, last.Description, last.Amount.String()),
			ID:    last.ID,
		})
	}
	return result, nil
}

func (s *Store) CountTransactions(ctx context.Context, filter store.TransactionFilter) (int, error) {
	where, args := buildFilter(filter)
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM transactions WHERE `+strings.Join(where, " AND "), args...).
		Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count transactions: %w", err)
	}
	return count, nil
}

func (s *Store) UpdateTransactionCategorization(ctx context.Context, id string, categoryID, categoryNote *string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE transactions SET category_id = $2, category_note = $3 WHERE id = $1`,
		id, categoryID, categoryNote)
	if err != nil {
		return fmt.Errorf("postgres: update transaction categorization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func buildFilter(filter store.TransactionFilter) ([]string, []any) {
	where := []string{"user_id = $1"}
	args := []any{filter.UserID}
	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		where = append(where, fmt.Sprintf("category_id = $%d", len(args)))
	}
	if filter.Uncategorized {
		where = append(where, "category_id IS NULL")
	}
	if filter.StatementID != nil {
		args = append(args, *filter.StatementID)
		where = append(where, fmt.Sprintf("statement_id = $%d", len(args)))
	}
	return where, args
}

func sortColumn(field store.SortField) string {
	switch field {
	case store.SortByAmount:
		return "amount"
	case store.SortByDescription:
		return "description"
	default:
		return "date"
	}
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		tx     domain.Transaction
		amount string
	)
	err := row.Scan(&tx.ID, &tx.Date, &tx.Description, &amount, &tx.Direction,
		&tx.CategoryID, &tx.CategoryNote, &tx.UserID, &tx.StatementID, &tx.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: scan transaction: %w", err)
	}
	tx.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse amount %q: %w", amount, err)
	}
	return &tx, nil
}
