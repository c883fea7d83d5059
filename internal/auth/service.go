// ABOUTME: Account service handling registration, login, and token lifecycle
// ABOUTME: Backed by the user store; issues HS256 JWTs on successful login

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fabworks/iqc-gateway/internal/store"
)

// ErrBadCredentials is returned when the user does not exist or the password
// does not match. Callers must not distinguish the two cases.
var ErrBadCredentials = errors.New("invalid credentials")

// UserStore defines what the account service needs from storage.
type UserStore interface {
	CreateUser(ctx context.Context, user *store.User) error
	GetUser(ctx context.Context, id string) (*store.User, error)
}

// Session describes an issued token.
type Session struct {
	Token       string    `json:"token"`
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Service handles account registration and login.
type Service struct {
	users    UserStore
	verifier *JWTVerifier
	logger   *slog.Logger
}

func NewService(users UserStore, verifier *JWTVerifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:    users,
		verifier: verifier,
		logger:   logger.With("component", "auth"),
	}
}

// Register creates a new account with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, userID, displayName, password string) error {
	if userID == "" || password == "" {
		return fmt.Errorf("user id and password are required")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.users.CreateUser(ctx, &store.User{
		ID:           userID,
		DisplayName:  displayName,
		PasswordHash: hash,
	}); err != nil {
		return err
	}
	s.logger.Info("user registered", "user_id", userID)
	return nil
}

// Login checks the credentials and issues a token. Unknown users and wrong
// passwords both come back as ErrBadCredentials.
func (s *Service) Login(ctx context.Context, userID, password string) (*Session, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrBadCredentials
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}
	if err := CheckPassword(user.PasswordHash, password); err != nil {
		return nil, ErrBadCredentials
	}

	token, err := s.verifier.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	return &Session{
		Token:       token,
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		ExpiresAt:   s.verifier.ExpiresAt(time.Now()),
	}, nil
}

// VerifyToken validates a token and returns the account it belongs to.
func (s *Service) VerifyToken(ctx context.Context, token string) (*store.User, error) {
	userID, err := s.verifier.Verify(token)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}
	return user, nil
}

// RefreshToken exchanges a valid token for a fresh one.
func (s *Service) RefreshToken(ctx context.Context, token string) (*Session, error) {
	user, err := s.VerifyToken(ctx, token)
	if err != nil {
		return nil, err
	}
	fresh, err := s.verifier.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}
	return &Session{
		Token:       fresh,
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		ExpiresAt:   s.verifier.ExpiresAt(time.Now()),
	}, nil
}
