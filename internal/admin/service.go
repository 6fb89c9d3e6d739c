// Package admin authenticates the single administrator of the booking service.
package admin

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/nekogravitycat/massage-booking-backend/internal/auth"
	"github.com/nekogravitycat/massage-booking-backend/internal/pkg/apperror"
)

var (
	ErrInvalidCredentials = apperror.New(http.StatusUnauthorized, "invalid password")
	ErrLoginDisabled      = apperror.New(http.StatusNotFound, "admin login is not configured")
)

type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

type Service interface {
	Enabled() bool
	Login(ctx context.Context, password string) (*Token, error)
}

type service struct {
	passwordHash string
	hasher       auth.PasswordHasher
	jwtManager   *auth.JWTManager
}

// NewService builds the login service. An empty passwordHash disables login.
func NewService(passwordHash string, hasher auth.PasswordHasher, jwtManager *auth.JWTManager) Service {
	return &service{
		passwordHash: passwordHash,
		hasher:       hasher,
		jwtManager:   jwtManager,
	}
}

func (s *service) Enabled() bool {
	return s.passwordHash != ""
}

func (s *service) Login(_ context.Context, password string) (*Token, error) {
	if !s.Enabled() {
		return nil, ErrLoginDisabled
	}
	if password == "" {
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(s.passwordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, ErrInvalidCredentials
		}
		return nil, apperror.Wrap(err, http.StatusInternalServerError, "admin password hash is invalid")
	}

	token, expires, err := s.jwtManager.GenerateAccessToken(auth.AdminSubject, auth.AdminSubject)
	if err != nil {
		return nil, apperror.Wrap(err, http.StatusInternalServerError, "failed to generate token")
	}
	return &Token{AccessToken: token, ExpiresAt: expires}, nil
}
