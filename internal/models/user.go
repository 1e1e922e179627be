package models

import (
	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	FullName     string    `json:"fullName"`
	Email        string    `json:"email"`
	PhoneNumber  string    `json:"phoneNumber,omitempty"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	Lifecycle
}

// Actor returns the identity used to stamp rows this user writes.
func (u *User) Actor() ActorIdentity {
	return ActorIdentity{UserID: u.ID, DisplayName: u.FullName, Role: u.Role}
}

// Technician is the field profile of a user with role Technician.
type Technician struct {
	ID               uuid.UUID `json:"id"`
	UserID           uuid.UUID `json:"userId"`
	FullName         string    `json:"fullName"`
	Email            string    `json:"email"`
	PhoneNumber      string    `json:"phoneNumber,omitempty"`
	CurrentLatitude  *float64  `json:"currentLatitude,omitempty"`
	CurrentLongitude *float64  `json:"currentLongitude,omitempty"`
	IsAvailable      bool      `json:"isAvailable"`
	Lifecycle
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token    string `json:"token"`
	FullName string `json:"fullName"`
	Role     Role   `json:"role"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=72"`
}

type CreateUserRequest struct {
	FullName    string `json:"fullName" validate:"required,max=100"`
	Email       string `json:"email" validate:"required,email,max=150"`
	PhoneNumber string `json:"phoneNumber" validate:"omitempty,max=20"`
	Role        Role   `json:"role" validate:"required,oneof=Owner Dispatcher Technician Admin Customer"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
}

type UpdateUserRequest struct {
	FullName    string `json:"fullName" validate:"required,max=100"`
	Email       string `json:"email" validate:"required,email,max=150"`
	PhoneNumber string `json:"phoneNumber" validate:"omitempty,max=20"`
	Role        Role   `json:"role" validate:"required,oneof=Owner Dispatcher Technician Admin Customer"`
	IsActive    bool   `json:"isActive"`
}

type UserFilter struct {
	Role    Role
	Keyword string
	Page    PageRequest
}

type TechnicianLocationRequest struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

type TechnicianAvailabilityRequest struct {
	IsAvailable bool `json:"isAvailable"`
}
