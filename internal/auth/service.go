package auth

import (
	"context"
	"time"

	"github.com/medicura/medicura-backend/internal/users"
	"github.com/medicura/medicura-backend/pkg/auth"
	"github.com/medicura/medicura-backend/pkg/config"
	pkgerrors "github.com/medicura/medicura-backend/pkg/errors"
	"github.com/medicura/medicura-backend/pkg/logger"
	"github.com/medicura/medicura-backend/pkg/security"
)

// LoginResult carries the signed token plus enough profile for the client to
// route the user without a second request.
type LoginResult struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	Role        string `json:"role"`
}

// Service authenticates credentials and issues access tokens.
type Service interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
}

type service struct {
	users users.Repository
	jwt   config.JWTConfig
	log   *logger.Logger
	now   func() time.Time
}

// NewService wires the auth service.
func NewService(repo users.Repository, jwt config.JWTConfig, log *logger.Logger) Service {
	return &service{users: repo, jwt: jwt, log: log, now: time.Now}
}

// Login verifies the password and mints an HS256 access token. Unknown email
// and wrong password answer identically so the endpoint does not leak which
// accounts exist.
func (s *service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	invalid := pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, invalid
		}
		return nil, err
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		return nil, invalid
	}

	token, err := auth.MintAccessToken(s.jwt, s.now(), auth.AccessTokenPayload{
		UserID: user.ID,
		Role:   user.Role,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}

	logCtx := s.log.WithUserID(ctx, user.ID.String())
	s.log.Info(logCtx, "login succeeded")

	return &LoginResult{
		AccessToken: token,
		UserID:      user.ID.String(),
		Username:    user.Username,
		Role:        user.Role.String(),
	}, nil
}
