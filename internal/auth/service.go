package auth

import (
	"context"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/harborlight-hq/harborlight/internal/directory"
	"github.com/harborlight-hq/harborlight/internal/shared"
)

// UserSource looks up staff accounts for token verification.
type UserSource interface {
	FindUser(ctx context.Context, id int64) (directory.User, error)
}

// Service verifies API tokens. A token is "<user id>.<secret>"; the
// secret is bcrypt-compared against the stored hash so a database read
// never yields a usable credential.
type Service struct {
	users UserSource
}

// NewService constructs a Service.
func NewService(users UserSource) *Service {
	return &Service{users: users}
}

// Authenticate resolves a bearer token to an actor. Every failure mode
// collapses to ErrInvalidCredentials; callers learn nothing about
// which part was wrong.
func (s *Service) Authenticate(ctx context.Context, token string) (*shared.Actor, error) {
	id, secret, ok := splitToken(token)
	if !ok {
		return nil, shared.ErrInvalidCredentials
	}
	user, err := s.users.FindUser(ctx, id)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive || user.TokenHash == "" {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.TokenHash), []byte(secret)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return &shared.Actor{ID: user.ID, Email: user.Email, SystemAdmin: user.SystemAdmin}, nil
}

// HashToken derives the stored hash for a token secret. Used by
// provisioning tooling, never on the request path.
func HashToken(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func splitToken(token string) (int64, string, bool) {
	token = strings.TrimSpace(token)
	idPart, secret, ok := strings.Cut(token, ".")
	if !ok || secret == "" {
		return 0, "", false
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	return id, secret, true
}
