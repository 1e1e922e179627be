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

type MaterialService struct {
	Materials MaterialStore
	rec       *audit.Recorder
}

func NewMaterialService(materials MaterialStore, rec *audit.Recorder) *MaterialService {
	return &MaterialService{Materials: materials, rec: rec}
}

func validateMaterial(req *models.MaterialRequest) error {
	if err := validation.Struct(req); err != nil {
		return err
	}
	if msg := models.CheckUnitPrice(req.UnitPrice); msg != "" {
		return apperr.ValidationFields("invalid material", map[string]string{"unitPrice": msg})
	}
	return nil
}

func (s *MaterialService) Create(ctx context.Context, actor models.ActorIdentity, req *models.MaterialRequest) (*models.Material, error) {
	if err := validateMaterial(req); err != nil {
		return nil, err
	}

	m := &models.Material{
		ID:            uuid.New(),
		Name:          strings.TrimSpace(req.Name),
		Unit:          strings.TrimSpace(req.Unit),
		UnitPrice:     req.UnitPrice.Round(2),
		StockQuantity: req.StockQuantity,
		Lifecycle:     s.rec.Created(actor),
	}
	if req.IsActive != nil {
		m.IsActive = *req.IsActive
	}

	if err := s.Materials.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *MaterialService) Get(ctx context.Context, id uuid.UUID) (*models.Material, error) {
	return s.Materials.Get(ctx, id)
}

// Update edits catalog fields. Prices already copied onto jobs are unaffected.
func (s *MaterialService) Update(ctx context.Context, actor models.ActorIdentity, id uuid.UUID, req *models.MaterialRequest) (*models.Material, error) {
	if err := validateMaterial(req); err != nil {
		return nil, err
	}

	m, err := s.Materials.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.IsDeleted {
		return nil, apperr.NotFound("material")
	}

	m.Name = strings.TrimSpace(req.Name)
	m.Unit = strings.TrimSpace(req.Unit)
	m.UnitPrice = req.UnitPrice.Round(2)
	m.StockQuantity = req.StockQuantity
	if req.IsActive != nil {
		m.IsActive = *req.IsActive
	}
	s.rec.Modified(&m.Lifecycle, actor)

	if err := s.Materials.Update(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Refill adds stock and returns the new quantity on hand.
func (s *MaterialService) Refill(ctx context.Context, actor models.ActorIdentity, id uuid.UUID, req *models.RefillMaterialRequest) (int, error) {
	if err := validation.Struct(req); err != nil {
		return 0, err
	}
	var stamp models.Lifecycle
	s.rec.Modified(&stamp, actor)
	return s.Materials.Refill(ctx, id, req.QuantityToAdd, stamp)
}

func (s *MaterialService) Delete(ctx context.Context, actor models.ActorIdentity, id uuid.UUID) error {
	var stamp models.Lifecycle
	s.rec.Modified(&stamp, actor)
	return s.Materials.SoftDelete(ctx, id, stamp)
}

func (s *MaterialService) List(ctx context.Context, f models.MaterialFilter) (models.Page[models.Material], error) {
	return s.Materials.List(ctx, f)
}
