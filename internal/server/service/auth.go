package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"docshare/internal/server/database"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidSession     = errors.New("invalid or expired session")
)

// UserStore is the credential persistence capability consumed by AuthService.
type UserStore interface {
	Create(ctx context.Context, user *database.User) error
	GetByUsername(ctx context.Context, username string) (*database.User, error)
}

// SessionStore is the session registry persistence capability.
type SessionStore interface {
	Create(ctx context.Context, session *database.Session) error
	GetByToken(ctx context.Context, token string) (*database.Session, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

// AuthService implements signup, login and session resolution.
type AuthService struct {
	users    UserStore
	sessions SessionStore
	ttl      time.Duration
}

// NewAuthService creates a new auth service. Sessions issued at login
// are valid for ttl.
func NewAuthService(users UserStore, sessions SessionStore, ttl time.Duration) *AuthService {
	return &AuthService{users: users, sessions: sessions, ttl: ttl}
}

// Signup registers a new user. All fields are required; usernames are
// unique across the collection.
func (s *AuthService) Signup(ctx context.Context, name, username, email, password string) error {
	if name == "" || username == "" || email == "" || password == "" {
		return ErrValidation
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user := &database.User{
		Username:     username,
		DisplayName:  name,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, database.ErrUserExists) {
			return ErrUsernameTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user registered", "username", username)
	return nil
}

// Login verifies credentials and issues a session token.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", ErrValidation
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token, err := generateSecureToken(32)
	if err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}

	now := time.Now().UTC()
	session := &database.Session{
		Token:     token,
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user logged in", "username", username)
	return token, nil
}

// Resolve maps a session token to its authenticated username.
// Unknown and expired tokens are both ErrInvalidSession.
func (s *AuthService) Resolve(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrInvalidSession
	}

	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, database.ErrSessionNotFound) {
			return "", ErrInvalidSession
		}
		return "", fmt.Errorf("failed to look up session: %w", err)
	}

	if time.Now().After(session.ExpiresAt) {
		return "", ErrInvalidSession
	}

	return session.Username, nil
}

// generateSecureToken produces a cryptographically secure, URL-safe random string.
func generateSecureToken(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", fmt.Errorf("crypto/rand failure: %w", err)
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
