package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servus-backend/internal/apperr"
	"servus-backend/internal/auth"
	"servus-backend/internal/config"
	"servus-backend/internal/models"
)

func newAuthService(t *testing.T) (*world, *AuthService) {
	t.Helper()
	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.ExpirationHours = 1
	cfg.JWT.Issuer = "servus-test"
	cfg.JWT.Audience = "servus-clients"
	w := newWorld()
	return w, NewAuthService(userStore{w}, auth.NewJWTManager(cfg), testRecorder())
}

func TestLogin(t *testing.T) {
	w, svc := newAuthService(t)
	ctx := context.Background()
	require.NoError(t, svc.BootstrapOwner(ctx, "Olivia Owner", "owner@servus.test", "s3cret-pass"))

	resp, err := svc.Login(ctx, &models.LoginRequest{Email: "OWNER@servus.test", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, models.RoleOwner, resp.Role)
	assert.Equal(t, "Olivia Owner", resp.FullName)

	claims, err := svc.JWT.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, claims.Role)

	_, wrongPassword := svc.Login(ctx, &models.LoginRequest{Email: "owner@servus.test", Password: "nope-nope"})
	_, unknownEmail := svc.Login(ctx, &models.LoginRequest{Email: "ghost@servus.test", Password: "s3cret-pass"})
	assert.Equal(t, apperr.KindUnauthorized, kindOf(t, wrongPassword))
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error(), "failures are indistinguishable")

	owner, _ := userStore{w}.GetByEmail(ctx, "owner@servus.test")
	require.NoError(t, userStore{w}.Deactivate(ctx, owner.ID, models.Lifecycle{}))
	_, err = svc.Login(ctx, &models.LoginRequest{Email: "owner@servus.test", Password: "s3cret-pass"})
	assert.Equal(t, apperr.KindUnauthorized, kindOf(t, err))
}

func TestBootstrapOwnerOnlyOnEmptyTable(t *testing.T) {
	w, svc := newAuthService(t)
	ctx := context.Background()

	require.NoError(t, svc.BootstrapOwner(ctx, "Owner", "", ""), "missing credentials only warn")
	assert.Empty(t, w.users)

	require.NoError(t, svc.BootstrapOwner(ctx, "Owner", "owner@servus.test", "s3cret-pass"))
	require.NoError(t, svc.BootstrapOwner(ctx, "Owner", "second@servus.test", "s3cret-pass"))
	assert.Len(t, w.users, 1)
}

func TestChangePassword(t *testing.T) {
	w, svc := newAuthService(t)
	ctx := context.Background()
	require.NoError(t, svc.BootstrapOwner(ctx, "Olivia Owner", "owner@servus.test", "s3cret-pass"))
	owner, _ := userStore{w}.GetByEmail(ctx, "owner@servus.test")
	actor := owner.Actor()

	err := svc.ChangePassword(ctx, actor, &models.ChangePasswordRequest{CurrentPassword: "s3cret-pass", NewPassword: "short"})
	assert.Equal(t, apperr.KindValidation, kindOf(t, err))
	assert.Contains(t, fieldsOf(t, err), "newPassword")

	err = svc.ChangePassword(ctx, actor, &models.ChangePasswordRequest{CurrentPassword: "guess-again", NewPassword: "n3w-password"})
	assert.Equal(t, apperr.KindUnauthorized, kindOf(t, err))

	require.NoError(t, svc.ChangePassword(ctx, actor, &models.ChangePasswordRequest{CurrentPassword: "s3cret-pass", NewPassword: "n3w-password"}))
	_, err = svc.Login(ctx, &models.LoginRequest{Email: "owner@servus.test", Password: "n3w-password"})
	assert.NoError(t, err)
}

func TestActiveUser(t *testing.T) {
	w, svc := newAuthService(t)
	ctx := context.Background()
	_, techAct := w.addTechnician("Alice Tech")

	_, err := svc.ActiveUser(ctx, techAct.UserID)
	require.NoError(t, err)

	require.NoError(t, userStore{w}.Deactivate(ctx, techAct.UserID, models.Lifecycle{}))
	_, err = svc.ActiveUser(ctx, techAct.UserID)
	assert.Equal(t, apperr.KindForbidden, kindOf(t, err))

	_, err = svc.ActiveUser(ctx, ownerActor.UserID)
	assert.Equal(t, apperr.KindUnauthorized, kindOf(t, err))
}

func TestCreateUserRoleGrants(t *testing.T) {
	w := newWorld()
	svc := NewUserService(userStore{w}, testRecorder())
	ctx := context.Background()

	_, err := svc.Create(ctx, dispatcherActor, &models.CreateUserRequest{
		FullName: "New Admin", Email: "admin@servus.test", Role: models.RoleAdmin, Password: "s3cret-pass",
	})
	assert.Equal(t, apperr.KindForbidden, kindOf(t, err))

	tech, err := svc.Create(ctx, dispatcherActor, &models.CreateUserRequest{
		FullName: "Terry Tech", Email: "terry@servus.test", Role: models.RoleTechnician, Password: "s3cret-pass",
	})
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", tech.PasswordHash)

	profile, err := techStore{w}.GetByUserID(ctx, tech.ID)
	require.NoError(t, err)
	assert.True(t, profile.IsAvailable)

	_, err = svc.Create(ctx, ownerActor, &models.CreateUserRequest{
		FullName: "Terry Again", Email: "terry@servus.test", Role: models.RoleDispatcher, Password: "s3cret-pass",
	})
	assert.Equal(t, apperr.KindConflict, kindOf(t, err))
}

func TestUserCannotDeactivateThemselves(t *testing.T) {
	w := newWorld()
	svc := NewUserService(userStore{w}, testRecorder())
	ctx := context.Background()
	_, techAct := w.addTechnician("Alice Tech")

	assert.Equal(t, apperr.KindConflict, kindOf(t, svc.Deactivate(ctx, techAct, techAct.UserID)))

	_, err := svc.Update(ctx, techAct, techAct.UserID, &models.UpdateUserRequest{
		FullName: "Alice Tech", Email: "alice@servus.test", Role: models.RoleTechnician, IsActive: false,
	})
	assert.Equal(t, apperr.KindConflict, kindOf(t, err))

	require.NoError(t, svc.Deactivate(ctx, ownerActor, techAct.UserID))
	u, _ := svc.Get(ctx, techAct.UserID)
	assert.False(t, u.IsActive)
}

func TestPromotingToTechnicianCreatesProfile(t *testing.T) {
	w := newWorld()
	svc := NewUserService(userStore{w}, testRecorder())
	ctx := context.Background()

	u, err := svc.Create(ctx, ownerActor, &models.CreateUserRequest{
		FullName: "Pat Dispatch", Email: "pat@servus.test", Role: models.RoleDispatcher, Password: "s3cret-pass",
	})
	require.NoError(t, err)
	_, err = techStore{w}.GetByUserID(ctx, u.ID)
	assert.Equal(t, apperr.KindNotFound, kindOf(t, err))

	_, err = svc.Update(ctx, ownerActor, u.ID, &models.UpdateUserRequest{
		FullName: "Pat Dispatch", Email: "pat@servus.test", Role: models.RoleTechnician, IsActive: true,
	})
	require.NoError(t, err)
	_, err = techStore{w}.GetByUserID(ctx, u.ID)
	assert.NoError(t, err)

	_, err = svc.List(ctx, models.UserFilter{Role: "Janitor"})
	assert.Equal(t, apperr.KindValidation, kindOf(t, err))
}
