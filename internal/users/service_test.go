package users

import (
	"context"
	"testing"

	"github.com/fedtaxi/hojaruta/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestService() (*Service, *MemoryUserRepository) {
	repo := NewMemoryUserRepository()
	return NewServiceWithCost(repo, bcrypt.MinCost), repo
}

func TestRegisterCreatesPendingDriver(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	u, err := svc.Register(ctx, models.RegisterRequest{Identifier: " Ana@Fed.ES ", Name: "Ana", Password: "secret-pw"})
	require.NoError(t, err)
	assert.Equal(t, "ana@fed.es", u.Identifier)
	assert.Equal(t, models.RoleDriver, u.Role)
	assert.False(t, u.Approved)
	assert.NotEqual(t, "secret-pw", u.PasswordHash)

	stored, err := repo.GetByIdentifier(ctx, "ana@fed.es")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, u.ID, stored.ID)

	_, err = svc.Register(ctx, models.RegisterRequest{Identifier: "ana@fed.es", Name: "Other", Password: "secret-pw"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Register(context.Background(), models.RegisterRequest{Identifier: "x", Name: "x", Password: "short"})
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	u, err := svc.Register(ctx, models.RegisterRequest{Identifier: "lic-4411", Name: "Luis", Password: "secret-pw"})
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "lic-4411", "secret-pw")
	assert.ErrorIs(t, err, ErrPendingApproval)

	_, err = svc.Approve(ctx, u.ID)
	require.NoError(t, err)

	got, err := svc.Authenticate(ctx, "LIC-4411", "secret-pw")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = svc.Authenticate(ctx, "lic-4411", "wrong-pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody", "secret-pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestApproveUnknown(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Approve(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEnsureAdminAndChangePassword(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	admin, err := svc.EnsureAdmin(ctx, "admin@fed.es", "initial-pw")
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin())
	assert.True(t, admin.Approved)
	assert.True(t, admin.MustChangePassword)

	again, err := svc.EnsureAdmin(ctx, "admin@fed.es", "ignored-pw")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, again.ID)

	err = svc.ChangePassword(ctx, admin.ID, "not-it", "next-password")
	assert.ErrorIs(t, err, ErrWrongPassword)

	require.NoError(t, svc.ChangePassword(ctx, admin.ID, "initial-pw", "next-password"))
	got, err := svc.Authenticate(ctx, "admin@fed.es", "next-password")
	require.NoError(t, err)
	assert.False(t, got.MustChangePassword)
}
