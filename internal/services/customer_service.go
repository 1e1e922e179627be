package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"servus-backend/internal/apperr"
	"servus-backend/internal/audit"
	"servus-backend/internal/models"
	"servus-backend/internal/validation"
)

type CustomerService struct {
	Customers CustomerStore
	rec       *audit.Recorder
}

func NewCustomerService(customers CustomerStore, rec *audit.Recorder) *CustomerService {
	return &CustomerService{Customers: customers, rec: rec}
}

func (s *CustomerService) Create(ctx context.Context, actor models.ActorIdentity, req *models.CustomerRequest) (*models.Customer, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	c := &models.Customer{ID: uuid.New(), Lifecycle: s.rec.Created(actor)}
	applyCustomerRequest(c, req)

	if err := s.Customers.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func applyCustomerRequest(c *models.Customer, req *models.CustomerRequest) {
	c.UserID = req.UserID
	c.FullName = strings.TrimSpace(req.FullName)
	c.Email = strings.TrimSpace(req.Email)
	c.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	c.Address = strings.TrimSpace(req.Address)
	c.Latitude = req.Latitude
	c.Longitude = req.Longitude
}

// Get returns archived customers too so historical invoices and feedback resolve.
func (s *CustomerService) Get(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	return s.Customers.Get(ctx, id)
}

func (s *CustomerService) Update(ctx context.Context, actor models.ActorIdentity, id uuid.UUID, req *models.CustomerRequest) (*models.Customer, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	c, err := s.Customers.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.IsDeleted {
		return nil, apperr.Conflict("customer is archived")
	}

	applyCustomerRequest(c, req)
	s.rec.Modified(&c.Lifecycle, actor)
	if err := s.Customers.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CustomerService) Archive(ctx context.Context, actor models.ActorIdentity, id uuid.UUID) error {
	var stamp models.Lifecycle
	s.rec.Modified(&stamp, actor)
	return s.Customers.SetArchived(ctx, id, true, stamp)
}

func (s *CustomerService) Restore(ctx context.Context, actor models.ActorIdentity, id uuid.UUID) error {
	var stamp models.Lifecycle
	s.rec.Modified(&stamp, actor)
	return s.Customers.SetArchived(ctx, id, false, stamp)
}

func (s *CustomerService) Search(ctx context.Context, f models.CustomerFilter) (models.Page[models.Customer], error) {
	return s.Customers.Search(ctx, f)
}
