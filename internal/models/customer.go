package models

import (
	"time"

	"github.com/google/uuid"
)

type Customer struct {
	ID          uuid.UUID  `json:"id"`
	UserID      *uuid.UUID `json:"userId,omitempty"`
	FullName    string     `json:"fullName"`
	Email       string     `json:"email,omitempty"`
	PhoneNumber string     `json:"phoneNumber,omitempty"`
	Address     string     `json:"address,omitempty"`
	Latitude    *float64   `json:"latitude,omitempty"`
	Longitude   *float64   `json:"longitude,omitempty"`
	Lifecycle
}

type CustomerRequest struct {
	FullName    string     `json:"fullName" validate:"required,max=100"`
	Email       string     `json:"email" validate:"omitempty,email,max=150"`
	PhoneNumber string     `json:"phoneNumber" validate:"omitempty,max=20"`
	Address     string     `json:"address" validate:"max=250"`
	Latitude    *float64   `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude   *float64   `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	UserID      *uuid.UUID `json:"userId"`
}

// GuestJobRequest is submitted by an unauthenticated visitor asking for service.
type GuestJobRequest struct {
	FullName    string    `json:"fullName" validate:"required,max=100"`
	Email       string    `json:"email" validate:"omitempty,email,max=150"`
	PhoneNumber string    `json:"phoneNumber" validate:"omitempty,max=20"`
	Address     string    `json:"address" validate:"max=250"`
	Latitude    *float64  `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude   *float64  `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description" validate:"max=2000"`
	ScheduledAt time.Time `json:"scheduledAt" validate:"required"`
}

type GuestJobResponse struct {
	CustomerID uuid.UUID `json:"customerId"`
	JobID      uuid.UUID `json:"jobId"`
}

type CustomerFilter struct {
	Query string
	Page  PageRequest
}
