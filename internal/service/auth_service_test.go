package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekolah/school-api/internal/apperr"
	"github.com/sekolah/school-api/internal/auth"
	"github.com/sekolah/school-api/internal/model"
	"github.com/sekolah/school-api/internal/service/servicetest"
)

func newAuthService(t *testing.T, ttl time.Duration) (*AuthService, *servicetest.UserStore) {
	t.Helper()
	users := servicetest.NewUserStore()
	svc := NewAuthService(users, auth.NewTokenManager("test-secret", ttl), discardLogger())
	require.NoError(t, svc.EnsureAdmin(context.Background(), "admin", "admin@school.local", "admin123"))
	return svc, users
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	svc, users := newAuthService(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, svc.EnsureAdmin(ctx, "admin", "admin@school.local", "other-password"))

	u, err := users.GetByUsername(ctx, "admin")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "admin", u.Role)
	assert.True(t, auth.CheckPassword("admin123", u.PasswordHash))
}

func TestLogin(t *testing.T) {
	svc, _ := newAuthService(t, time.Hour)
	ctx := context.Background()

	resp, err := svc.Login(ctx, model.LoginRequest{Username: " admin ", Password: "admin123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "admin", resp.User.Username)
	assert.Equal(t, "admin@school.local", resp.User.Email)

	user, err := svc.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User, *user)
}

func TestLoginFailures(t *testing.T) {
	svc, _ := newAuthService(t, time.Hour)
	ctx := context.Background()

	_, err := svc.Login(ctx, model.LoginRequest{Username: "admin", Password: "wrong"})
	e := requireKind(t, err, apperr.KindUnauthorized)
	assert.Equal(t, msgBadCredentials, e.Message)

	_, err = svc.Login(ctx, model.LoginRequest{Username: "ghost", Password: "admin123"})
	e = requireKind(t, err, apperr.KindUnauthorized)
	assert.Equal(t, msgBadCredentials, e.Message)

	_, err = svc.Login(ctx, model.LoginRequest{Username: "admin"})
	e = requireKind(t, err, apperr.KindValidation)
	assert.Contains(t, e.Fields, "password")
}

func TestVerify(t *testing.T) {
	svc, _ := newAuthService(t, time.Hour)

	_, err := svc.Verify("not-a-token")
	requireKind(t, err, apperr.KindForbidden)

	expired, _ := newAuthService(t, -time.Minute)
	resp, err := expired.Login(context.Background(), model.LoginRequest{Username: "admin", Password: "admin123"})
	require.NoError(t, err)

	_, err = expired.Verify(resp.Token)
	requireKind(t, err, apperr.KindUnauthorized)

	valid, err := svc.Login(context.Background(), model.LoginRequest{Username: "admin", Password: "admin123"})
	require.NoError(t, err)
	other := NewAuthService(servicetest.NewUserStore(), auth.NewTokenManager("other-secret", time.Hour), discardLogger())
	_, err = other.Verify(valid.Token)
	requireKind(t, err, apperr.KindForbidden)
}

func TestChangePassword(t *testing.T) {
	svc, users := newAuthService(t, time.Hour)
	ctx := context.Background()

	admin, err := users.GetByUsername(ctx, "admin")
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, admin.ID, model.ChangePasswordRequest{CurrentPassword: "wrong", NewPassword: "newsecret"})
	requireKind(t, err, apperr.KindUnauthorized)

	err = svc.ChangePassword(ctx, admin.ID, model.ChangePasswordRequest{CurrentPassword: "admin123", NewPassword: "short"})
	e := requireKind(t, err, apperr.KindValidation)
	assert.Contains(t, e.Fields, "newPassword")

	err = svc.ChangePassword(ctx, 999, model.ChangePasswordRequest{CurrentPassword: "admin123", NewPassword: "newsecret"})
	requireKind(t, err, apperr.KindNotFound)

	require.NoError(t, svc.ChangePassword(ctx, admin.ID, model.ChangePasswordRequest{CurrentPassword: "admin123", NewPassword: "newsecret"}))

	_, err = svc.Login(ctx, model.LoginRequest{Username: "admin", Password: "admin123"})
	requireKind(t, err, apperr.KindUnauthorized)
	_, err = svc.Login(ctx, model.LoginRequest{Username: "admin", Password: "newsecret"})
	require.NoError(t, err)
}
