package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iam-hbk/accounting-on-the-go/internal/auth"
	"github.com/iam-hbk/accounting-on-the-go/internal/domain"
	"github.com/iam-hbk/accounting-on-the-go/internal/extract"
	"github.com/iam-hbk/accounting-on-the-go/internal/ingest"
	"github.com/iam-hbk/accounting-on-the-go/internal/ledger"
	"github.com/iam-hbk/accounting-on-the-go/internal/store/memory"
)

type stubExtractor struct {
	records []extract.Record
	err     error
}

func (s *stubExtractor) Extract(ctx context.Context, data []byte, mimeType string) ([]extract.Record, error) {
	return s.records, s.err
}

func newTestServer(t *testing.T, ex extract.Extractor) *httptest.Server {
	t.Helper()
	st := memory.New()
	log := zerolog.Nop()
	handler := NewRouter(Deps{
		Auth:   auth.NewService(st, 0, log),
		Ledger: ledger.NewService(st, log),
		Ingest: ingest.NewService(st, ex, nil, nil, log),
		Log:    log,
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, srv *httptest.Server, method, path, token string, body interface{}, out interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func signUpUser(t *testing.T, srv *httptest.Server, email string) string {
	t.Helper()
	var session struct {
		Token string       `json:"token"`
		User  *domain.User `json:"user"`
	}
	resp := doJSON(t, srv, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email":    email,
		"password": "secret123",
		"name":     "Test User",
	}, &session)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, session.Token)
	return session.Token
}

func uploadStatement(t *testing.T, srv *httptest.Server, token, fileName string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write([]byte("date,description,amount\n2024-03-15,COFFEE,-4.50\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/statements", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func sampleRecords() []extract.Record {
	return []extract.Record{
		{Date: "2024-03-15", Description: "COFFEE SHOP", Amount: decimal.NewFromFloat(4.50), Direction: domain.DirectionDebit},
		{Date: "2024-03-16", Description: "SALARY", Amount: decimal.NewFromInt(2500), Direction: domain.DirectionCredit},
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubExtractor{})

	var body map[string]string
	resp := doJSON(t, srv, http.MethodGet, "/health", "", nil, &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "healthy", body["status"])
}

func TestAuthFlow(t *testing.T) {
	srv := newTestServer(t, &stubExtractor{})

	token := signUpUser(t, srv, "alice@example.com")

	// Me resolves the session.
	var me domain.User
	resp := doJSON(t, srv, http.MethodGet, "/api/auth/me", token, nil, &me)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "alice@example.com", me.Email)

	// Me without a token is 200 with a null body.
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/auth/me", nil)
	require.NoError(t, err)
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer raw.Body.Close()
	require.Equal(t, http.StatusOK, raw.StatusCode)
	body, err := io.ReadAll(raw.Body)
	require.NoError(t, err)
	require.JSONEq(t, "null", string(body))

	// Duplicate sign-up conflicts.
	resp = doJSON(t, srv, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email": "alice@example.com", "password": "other",
	}, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	// Wrong password is a 401.
	resp = doJSON(t, srv, http.MethodPost, "/api/auth/signin", "", map[string]string{
		"email": "alice@example.com", "password": "wrong",
	}, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Sign-out invalidates the token.
	resp = doJSON(t, srv, http.MethodPost, "/api/auth/signout", token, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = doJSON(t, srv, http.MethodGet, "/api/transactions", token, nil, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestProtectedEndpointsRequireAuth(t *testing.T) {
	srv := newTestServer(t, &stubExtractor{})

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/transactions"},
		{http.MethodGet, "/api/transactions/count"},
		{http.MethodGet, "/api/transactions/uncategorized"},
		{http.MethodGet, "/api/categories"},
		{http.MethodGet, "/api/statements"},
	}
	for _, p := range paths {
		resp := doJSON(t, srv, p.method, p.path, "", nil, nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "%s %s", p.method, p.path)
	}
}

func TestUploadAndBrowseFlow(t *testing.T) {
	srv := newTestServer(t, &stubExtractor{records: sampleRecords()})
	token := signUpUser(t, srv, "bob@example.com")

	resp := uploadStatement(t, srv, token, "jan.csv")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result ingest.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.Equal(t, 2, result.TransactionCount)
	require.NotEmpty(t, result.StatementID)

	// Statement shows up completed.
	var stmts struct {
		Statements []*domain.Statement `json:"statements"`
		Count      int                 `json:"count"`
	}
	r := doJSON(t, srv, http.MethodGet, "/api/statements", token, nil, &stmts)
	require.Equal(t, http.StatusOK, r.StatusCode)
	require.Equal(t, 1, stmts.Count)
	require.Equal(t, domain.StatementCompleted, stmts.Statements[0].Status)

	// Transactions list in date order.
	var page ledger.Page
	r = doJSON(t, srv, http.MethodGet, "/api/transactions?sort_by=date&sort_order=asc", token, nil, &page)
	require.Equal(t, r.StatusCode, http.StatusOK)
	require.Len(t, page.Items, 2)
	require.True(t, page.IsDone)
	require.Equal(t, "COFFEE SHOP", page.Items[0].Description)

	// Count matches.
	var count map[string]int
	r = doJSON(t, srv, http.MethodGet, "/api/transactions/count", token, nil, &count)
	require.Equal(t, http.StatusOK, r.StatusCode)
	require.Equal(t, 2, count["count"])

	// Another user sees none of it.
	otherToken := signUpUser(t, srv, "eve@example.com")
	r = doJSON(t, srv, http.MethodGet, "/api/transactions/count", otherToken, nil, &count)
	require.Equal(t, http.StatusOK, r.StatusCode)
	require.Equal(t, 0, count["count"])
}

func TestUploadRejectsUnsupportedFile(t *testing.T) {
	srv := newTestServer(t, &stubExtractor{records: sampleRecords()})
	token := signUpUser(t, srv, "bob@example.com")

	resp := uploadStatement(t, srv, token, "report.docx")
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadEmptyExtraction(t *testing.T) {
	srv := newTestServer(t, &stubExtractor{records: nil})
	token := signUpUser(t, srv, "bob@example.com")

	resp := uploadStatement(t, srv, token, "jan.csv")
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	// The failed statement is still listed.
	var stmts struct {
		Statements []*domain.Statement `json:"statements"`
	}
	r := doJSON(t, srv, http.MethodGet, "/api/statements", token, nil, &stmts)
	require.Equal(t, http.StatusOK, r.StatusCode)
	require.Len(t, stmts.Statements, 1)
	require.Equal(t, domain.StatementFailed, stmts.Statements[0].Status)
}

func TestCategoryEndpoints(t *testing.T) {
	srv := newTestServer(t, &stubExtractor{records: sampleRecords()})
	token := signUpUser(t, srv, "bob@example.com")

	// Create.
	var cat domain.Category
	resp := doJSON(t, srv, http.MethodPost, "/api/categories", token, map[string]string{
		"name": "Food", "color": "#ff0000",
	}, &cat)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, cat.ID)

	// Missing name is rejected.
	resp = doJSON(t, srv, http.MethodPost, "/api/categories", token, map[string]string{"color": "#fff"}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Update.
	var updated domain.Category
	resp = doJSON(t, srv, http.MethodPut, "/api/categories/"+cat.ID, token, map[string]string{
		"name": "Groceries", "color": "#00ff00",
	}, &updated)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Groceries", updated.Name)

	// Assign to a transaction.
	r := uploadStatement(t, srv, token, "jan.csv")
	defer r.Body.Close()
	var result ingest.Result
	require.NoError(t, json.NewDecoder(r.Body).Decode(&result))

	var page ledger.Page
	resp = doJSON(t, srv, http.MethodGet, "/api/transactions", token, nil, &page)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, page.Items)
	txID := page.Items[0].ID

	resp = doJSON(t, srv, http.MethodPatch, fmt.Sprintf("/api/transactions/%s/category", txID), token, map[string]string{
		"categoryId": cat.ID,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The joined listing resolves the category.
	resp = doJSON(t, srv, http.MethodGet, "/api/transactions?category_id="+cat.ID, token, nil, &page)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, page.Items, 1)
	require.NotNil(t, page.Items[0].Category)
	require.Equal(t, "Groceries", page.Items[0].Category.Name)

	// Delete leaves the transaction pointing at a null category.
	resp = doJSON(t, srv, http.MethodDelete, "/api/categories/"+cat.ID, token, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, srv, http.MethodGet, "/api/transactions", token, nil, &page)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	found := false
	for _, item := range page.Items {
		if item.ID == txID {
			found = true
			require.Nil(t, item.Category)
		}
	}
	require.True(t, found)

	// Operations on a deleted category are 404s.
	resp = doJSON(t, srv, http.MethodDelete, "/api/categories/"+cat.ID, token, nil, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAnonymousUploadThenSignUpKeepsData(t *testing.T) {
	srv := newTestServer(t, &stubExtractor{records: sampleRecords()})

	var session struct {
		Token string       `json:"token"`
		User  *domain.User `json:"user"`
	}
	resp := doJSON(t, srv, http.MethodPost, "/api/auth/anonymous", "", nil, &session)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, session.User.Anonymous)
	anonID := session.User.ID

	r := uploadStatement(t, srv, session.Token, "jan.csv")
	r.Body.Close()
	require.Equal(t, http.StatusOK, r.StatusCode)

	// Converting to a permanent account keeps the same user and data.
	var converted struct {
		Token string       `json:"token"`
		User  *domain.User `json:"user"`
	}
	resp = doJSON(t, srv, http.MethodPost, "/api/auth/signup", session.Token, map[string]string{
		"email": "dana@example.com", "password": "pw123456",
	}, &converted)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, anonID, converted.User.ID)
	require.Equal(t, session.Token, converted.Token)

	var count map[string]int
	resp = doJSON(t, srv, http.MethodGet, "/api/transactions/count", converted.Token, nil, &count)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 2, count["count"])
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &stubExtractor{})
	token := signUpUser(t, srv, "bob@example.com")

	resp := doJSON(t, srv, http.MethodDelete, "/api/transactions", token, nil, nil)
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp = doJSON(t, srv, http.MethodGet, "/api/auth/signup", "", nil, nil)
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, &stubExtractor{})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/transactions", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
