// Package auth issues and resolves bearer-token sessions. Accounts are
// either permanent (email + bcrypt password hash) or anonymous; an
// anonymous account is converted in place when its owner signs up, so
// records created before sign-up stay attached to the same user id.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/iam-hbk/accounting-on-the-go/internal/domain"
	"github.com/iam-hbk/accounting-on-the-go/internal/store"
)

// DefaultSessionTTL bounds how long an issued token stays valid.
const DefaultSessionTTL = 30 * 24 * time.Hour

var (
	// ErrNotAuthenticated is returned when no valid session resolves.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrInvalidCredentials is returned for a bad email/password pair.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrEmailTaken is returned when signing up with a known email.
	ErrEmailTaken = errors.New("email already registered")
)

// Service implements sign-up, sign-in and session resolution.
type Service struct {
	store      store.Store
	sessionTTL time.Duration
	log        zerolog.Logger
}

// NewService creates an auth service. A zero ttl falls back to
// DefaultSessionTTL.
func NewService(st store.Store, ttl time.Duration, log zerolog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Service{store: st, sessionTTL: ttl, log: log}
}

// SignUp registers a permanent account. When currentToken resolves to an
// anonymous user, that user is converted in place and keeps its id,
// records and session; otherwise a fresh user and session are created.
func (s *Service) SignUp(ctx context.Context, currentToken, email, password, name string) (*domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, "", ErrInvalidCredentials
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, "", ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, "", fmt.Errorf("auth: lookup email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("auth: hash password: %w", err)
	}

	if currentToken != "" {
		if u, err := s.UserFromToken(ctx, currentToken); err == nil && u.Anonymous {
			u.Email = email
			u.Name = name
			u.PasswordHash = string(hash)
			u.Anonymous = false
			if err := s.store.UpdateUser(ctx, u); err != nil {
				return nil, "", fmt.Errorf("auth: convert anonymous user: %w", err)
			}
			s.log.Info().Str("user_id", u.ID).Msg("Anonymous user converted to permanent account")
			return u, currentToken, nil
		}
	}

	u := &domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, "", fmt.Errorf("auth: create user: %w", err)
	}
	token, err := s.issueSession(ctx, u.ID)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// SignIn authenticates a permanent account and issues a new session.
func (s *Service) SignIn(ctx context.Context, email, password string) (*domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	u, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", fmt.Errorf("auth: lookup email: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}
	token, err := s.issueSession(ctx, u.ID)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// SignInAnonymous creates an anonymous user and a session for it.
func (s *Service) SignInAnonymous(ctx context.Context) (*domain.User, string, error) {
	u := &domain.User{
		ID:        uuid.New().String(),
		Anonymous: true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, "", fmt.Errorf("auth: create anonymous user: %w", err)
	}
	token, err := s.issueSession(ctx, u.ID)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// SignOut invalidates the session token. Unknown tokens are a no-op.
func (s *Service) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.store.DeleteSession(ctx, token)
}

// UserFromToken resolves a bearer token to its user. Expired sessions are
// deleted lazily and read as not authenticated.
func (s *Service) UserFromToken(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, ErrNotAuthenticated
	}
	sess, err := s.store.GetSession(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("auth: get session: %w", err)
	}
	if time.Now().After(sess.ExpiresAt) {
		_ = s.store.DeleteSession(ctx, token)
		return nil, ErrNotAuthenticated
	}
	u, err := s.store.GetUser(ctx, sess.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("auth: get user: %w", err)
	}
	return u, nil
}

func (s *Service) issueSession(ctx context.Context, userID string) (string, error) {
	token, err := newSessionToken()
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	sess := &domain.Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: now.Add(s.sessionTTL),
		CreatedAt: now,
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return "", fmt.Errorf("auth: create session: %w", err)
	}
	return token, nil
}

func newSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
