package models

import (
	"math"
	"slices"
	"time"

	"github.com/google/uuid"

	"servus-backend/internal/apperr"
)

type Role string

const (
	RoleOwner      Role = "Owner"
	RoleDispatcher Role = "Dispatcher"
	RoleTechnician Role = "Technician"
	RoleAdmin      Role = "Admin"
	RoleCustomer   Role = "Customer"
)

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleDispatcher, RoleTechnician, RoleAdmin, RoleCustomer:
		return true
	}
	return false
}

// Staff roles manage jobs on behalf of the business.
var StaffRoles = []Role{RoleOwner, RoleDispatcher, RoleAdmin}

// ActorIdentity is the caller on whose behalf a service operation runs.
type ActorIdentity struct {
	UserID      uuid.UUID `json:"userId"`
	DisplayName string    `json:"displayName"`
	Role        Role      `json:"role"`
}

func (a ActorIdentity) HasRole(roles ...Role) bool {
	return slices.Contains(roles, a.Role)
}

// IsAnonymous is true for requests without a signed-in user (guest requests).
func (a ActorIdentity) IsAnonymous() bool {
	return a.UserID == uuid.Nil
}

// GuestActor stamps rows created through the public guest request form.
var GuestActor = ActorIdentity{DisplayName: "Guest"}

// Lifecycle is the audit block shared by every mutable entity.
type Lifecycle struct {
	IsActive       bool       `json:"isActive"`
	IsDeleted      bool       `json:"isDeleted"`
	CreatedAt      time.Time  `json:"createdAt"`
	CreatedBy      *uuid.UUID `json:"createdBy,omitempty"`
	CreatedByName  string     `json:"createdByName,omitempty"`
	ModifiedAt     *time.Time `json:"modifiedAt,omitempty"`
	ModifiedBy     *uuid.UUID `json:"modifiedBy,omitempty"`
	ModifiedByName string     `json:"modifiedByName,omitempty"`
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// PageRequest carries paging and sorting for list queries.
type PageRequest struct {
	Page     int
	PageSize int
	SortBy   SortField
	Desc     bool
}

// Offset is the number of rows skipped before the current page.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// NewPageRequest validates raw paging input. Page sizes above MaxPageSize
// are clamped; pages whose offset would overflow are rejected.
func NewPageRequest(page, pageSize int) (PageRequest, error) {
	fe := apperr.FieldErrors{}
	if pageSize < 1 {
		fe.Add("pageSize", "pageSize must be 1 or greater")
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	switch {
	case page < 1:
		fe.Add("page", "page must be 1 or greater")
	case pageSize >= 1 && page > math.MaxInt32/pageSize:
		fe.Add("page", "page is out of range")
	}
	if err := fe.Err(); err != nil {
		return PageRequest{}, err
	}
	return PageRequest{Page: page, PageSize: pageSize}, nil
}

// Page is one window of a paginated listing.
type Page[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"totalCount"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
}

func NewPage[T any](items []T, total int, req PageRequest) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, TotalCount: total, Page: req.Page, PageSize: req.PageSize}
}

// SortField names a sortable attribute of a resource listing.
type SortField string

// SortSet is the closed list of fields a listing may be ordered by.
type SortSet struct {
	Default SortField
	Allowed []SortField
}

// Parse resolves a raw sortBy value; empty selects the default.
func (s SortSet) Parse(raw string) (SortField, error) {
	if raw == "" {
		return s.Default, nil
	}
	for _, f := range s.Allowed {
		if string(f) == raw {
			return f, nil
		}
	}
	return "", apperr.ValidationFields("unsupported sort field", map[string]string{
		"sortBy": "cannot sort by " + raw,
	})
}

const (
	SortScheduledAt    SortField = "scheduledAt"
	SortCreatedAt      SortField = "createdAt"
	SortTitle          SortField = "title"
	SortStatus         SortField = "status"
	SortCustomerName   SortField = "customerName"
	SortTechnicianName SortField = "technicianName"
	SortAmount         SortField = "amount"
	SortFullName       SortField = "fullName"
	SortEmail          SortField = "email"
	SortRole           SortField = "role"
	SortSubmittedAt    SortField = "submittedAt"
	SortName           SortField = "name"
)

var (
	JobSorts = SortSet{
		Default: SortScheduledAt,
		Allowed: []SortField{SortScheduledAt, SortCreatedAt, SortTitle, SortStatus, SortCustomerName, SortTechnicianName},
	}
	InvoiceSorts = SortSet{
		Default: SortCreatedAt,
		Allowed: []SortField{SortCreatedAt, SortAmount, SortCustomerName},
	}
	UserSorts = SortSet{
		Default: SortFullName,
		Allowed: []SortField{SortFullName, SortEmail, SortRole, SortCreatedAt},
	}
	FeedbackSorts = SortSet{
		Default: SortSubmittedAt,
		Allowed: []SortField{SortSubmittedAt},
	}
	CustomerSorts = SortSet{
		Default: SortFullName,
		Allowed: []SortField{SortFullName, SortCreatedAt},
	}
	MaterialSorts = SortSet{
		Default: SortName,
		Allowed: []SortField{SortName, SortCreatedAt},
	}
)
