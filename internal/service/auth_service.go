package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sekolah/school-api/internal/apperr"
	"github.com/sekolah/school-api/internal/auth"
	"github.com/sekolah/school-api/internal/model"
)

const msgBadCredentials = "invalid username or password"

// UserStore is the persistence used by AuthService
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
	Create(ctx context.Context, u *model.User) (*model.User, error)
	UpdatePassword(ctx context.Context, id int64, hash string) (bool, error)
}

// AuthService handles login, token verification and password changes
type AuthService struct {
	users    UserStore
	tokens   *auth.TokenManager
	validate *validator.Validate
	logger   *slog.Logger
}

func NewAuthService(users UserStore, tokens *auth.TokenManager, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:    users,
		tokens:   tokens,
		validate: newValidator(),
		logger:   logger,
	}
}

// Login checks credentials and issues a token. Unknown users and wrong
// passwords fail the same way.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (*model.LoginResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := validateStruct(s.validate, req); err != nil {
		return nil, err
	}

	user, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil || !auth.CheckPassword(req.Password, user.PasswordHash) {
		s.logger.Warn("failed login attempt", "username", req.Username)
		return nil, apperr.Unauthorized(msgBadCredentials)
	}

	info := model.UserInfo{ID: user.ID, Username: user.Username, Email: user.Email}
	token, err := s.tokens.Issue(info)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	return &model.LoginResponse{Token: token, User: info}, nil
}

// Verify parses a bearer token
func (s *AuthService) Verify(token string) (*model.UserInfo, error) {
	user, err := s.tokens.Parse(token)
	if errors.Is(err, auth.ErrTokenExpired) {
		return nil, apperr.Unauthorized("token expired")
	}
	if err != nil {
		return nil, apperr.Forbidden("invalid token")
	}
	return user, nil
}

// ChangePassword replaces the password of userID after checking the current one
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, req model.ChangePasswordRequest) error {
	if err := validateStruct(s.validate, req); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return apperr.NotFound("user not found")
	}
	if !auth.CheckPassword(req.CurrentPassword, user.PasswordHash) {
		return apperr.Unauthorized("current password is incorrect")
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	ok, err := s.users.UpdatePassword(ctx, userID, hash)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if !ok {
		return apperr.NotFound("user not found")
	}
	s.logger.Info("password changed", "user_id", userID)
	return nil
}

// EnsureAdmin creates the bootstrap administrator if no user with that name exists
func (s *AuthService) EnsureAdmin(ctx context.Context, username, email, password string) error {
	existing, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("failed to look up admin: %w", err)
	}
	if existing != nil {
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if _, err := s.users.Create(ctx, &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         "admin",
	}); err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	s.logger.Info("default admin user created", "username", username)
	return nil
}
