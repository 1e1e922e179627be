package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"servus-backend/internal/apperr"
	"servus-backend/internal/audit"
	"servus-backend/internal/auth"
	"servus-backend/internal/models"
	"servus-backend/internal/validation"
)

type UserService struct {
	Users UserStore
	rec   *audit.Recorder
}

func NewUserService(users UserStore, rec *audit.Recorder) *UserService {
	return &UserService{Users: users, rec: rec}
}

// canGrant reports whether actor may create or promote a user to role.
// Only owners hand out the Owner and Admin roles.
func canGrant(actor models.ActorIdentity, role models.Role) bool {
	if role == models.RoleOwner || role == models.RoleAdmin {
		return actor.Role == models.RoleOwner
	}
	return true
}

// Create adds a user; technicians get their field profile in the same transaction.
func (s *UserService) Create(ctx context.Context, actor models.ActorIdentity, req *models.CreateUserRequest) (*models.User, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if !canGrant(actor, req.Role) {
		return nil, apperr.Forbidden("only an owner can create " + string(req.Role) + " users")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.New(),
		FullName:     strings.TrimSpace(req.FullName),
		Email:        strings.TrimSpace(req.Email),
		PhoneNumber:  strings.TrimSpace(req.PhoneNumber),
		Role:         req.Role,
		PasswordHash: hash,
		Lifecycle:    s.rec.Created(actor),
	}

	var tech *models.Technician
	if user.Role == models.RoleTechnician {
		tech = s.newTechnician(user, actor)
	}

	if err := s.Users.Create(ctx, user, tech); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) newTechnician(u *models.User, actor models.ActorIdentity) *models.Technician {
	return &models.Technician{
		ID:          uuid.New(),
		UserID:      u.ID,
		FullName:    u.FullName,
		Email:       u.Email,
		IsAvailable: true,
		Lifecycle:   s.rec.Created(actor),
	}
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.Users.Get(ctx, id)
}

func (s *UserService) Update(ctx context.Context, actor models.ActorIdentity, id uuid.UUID, req *models.UpdateUserRequest) (*models.User, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	user, err := s.Users.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role != req.Role && !canGrant(actor, req.Role) {
		return nil, apperr.Forbidden("only an owner can grant the " + string(req.Role) + " role")
	}
	if user.ID == actor.UserID && !req.IsActive {
		return nil, apperr.Conflict("you cannot deactivate your own account")
	}

	user.FullName = strings.TrimSpace(req.FullName)
	user.Email = strings.TrimSpace(req.Email)
	user.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	becameTechnician := req.Role == models.RoleTechnician && user.Role != models.RoleTechnician
	user.Role = req.Role
	user.IsActive = req.IsActive
	s.rec.Modified(&user.Lifecycle, actor)

	var tech *models.Technician
	if becameTechnician {
		tech = s.newTechnician(user, actor)
	}
	if err := s.Users.Update(ctx, user, tech); err != nil {
		return nil, err
	}
	return user, nil
}

// Deactivate blocks sign-in for a user; their history stays intact.
func (s *UserService) Deactivate(ctx context.Context, actor models.ActorIdentity, id uuid.UUID) error {
	if id == actor.UserID {
		return apperr.Conflict("you cannot deactivate your own account")
	}
	var stamp models.Lifecycle
	s.rec.Modified(&stamp, actor)
	return s.Users.Deactivate(ctx, id, stamp)
}

func (s *UserService) List(ctx context.Context, f models.UserFilter) (models.Page[models.User], error) {
	if f.Role != "" && !f.Role.Valid() {
		return models.Page[models.User]{}, apperr.ValidationFields("invalid filter", map[string]string{
			"role": "unknown role " + string(f.Role),
		})
	}
	return s.Users.List(ctx, f)
}
