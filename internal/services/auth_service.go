package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"servus-backend/internal/apperr"
	"servus-backend/internal/audit"
	"servus-backend/internal/auth"
	"servus-backend/internal/models"
	"servus-backend/internal/validation"
)

// errInvalidCredentials is returned for every login failure so callers cannot
// tell an unknown email from a wrong password.
var errInvalidCredentials = apperr.Unauthorized("invalid email or password")

type AuthService struct {
	Users UserStore
	JWT   *auth.JWTManager
	rec   *audit.Recorder
}

func NewAuthService(users UserStore, jwt *auth.JWTManager, rec *audit.Recorder) *AuthService {
	return &AuthService{Users: users, JWT: jwt, rec: rec}
}

// Login verifies credentials of an active user and issues a session token.
func (s *AuthService) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return nil, errInvalidCredentials
	}

	user, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive || !auth.VerifyPassword(user.PasswordHash, req.Password) {
		return nil, errInvalidCredentials
	}

	token, err := s.JWT.GenerateToken(user)
	if err != nil {
		return nil, err
	}

	log.Printf("[Auth] User %s signed in", user.ID)
	return &models.LoginResponse{Token: token, FullName: user.FullName, Role: user.Role}, nil
}

// ChangePassword replaces the caller's password after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, actor models.ActorIdentity, req *models.ChangePasswordRequest) error {
	if err := validation.Struct(req); err != nil {
		return err
	}

	user, err := s.Users.Get(ctx, actor.UserID)
	if err != nil {
		return err
	}
	if !auth.VerifyPassword(user.PasswordHash, req.CurrentPassword) {
		return apperr.Unauthorized("current password is incorrect")
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	s.rec.Modified(&user.Lifecycle, actor)
	return s.Users.UpdatePassword(ctx, user.ID, hash, user.Lifecycle)
}

// Me returns the caller's own profile.
func (s *AuthService) Me(ctx context.Context, actor models.ActorIdentity) (*models.User, error) {
	return s.Users.Get(ctx, actor.UserID)
}

// BootstrapOwner creates the first Owner account when no user exists yet.
func (s *AuthService) BootstrapOwner(ctx context.Context, name, email, password string) error {
	n, err := s.Users.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if email == "" || password == "" {
		log.Warnf("[Auth] No users exist and OWNER_EMAIL/OWNER_PASSWORD are not set; nobody can sign in")
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	owner := &models.User{
		ID:           uuid.New(),
		FullName:     name,
		Email:        strings.TrimSpace(email),
		Role:         models.RoleOwner,
		PasswordHash: hash,
		Lifecycle:    s.rec.Created(models.ActorIdentity{DisplayName: "System"}),
	}
	if err := s.Users.Create(ctx, owner, nil); err != nil {
		return err
	}
	log.Printf("[Auth] Created initial owner account %s", owner.Email)
	return nil
}

// ActiveUser loads the user behind a token and rejects deactivated accounts.
func (s *AuthService) ActiveUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.Users.Get(ctx, id)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Unauthorized("user not found")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, apperr.Forbidden("account is deactivated")
	}
	return user, nil
}
