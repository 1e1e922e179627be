package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"servus-backend/internal/config"
	"servus-backend/internal/models"
)

func TestDisabledCacheMissesAndIgnoresWrites(t *testing.T) {
	cfg := &config.Config{}
	c := New(cfg)
	ctx := context.Background()
	id := uuid.New()

	assert.False(t, c.Enabled())
	assert.False(t, c.IsHealthy(ctx))

	c.SetRatingSummary(ctx, &models.RatingSummary{TechnicianID: id, AverageRating: 4.5})
	_, ok := c.GetRatingSummary(ctx, id)
	assert.False(t, ok)

	c.InvalidateRatingSummary(ctx, id)
	assert.NoError(t, c.Close())
}

func TestNilClientCache(t *testing.T) {
	c := NewWithClient(nil, time.Minute)
	_, ok := c.GetRatingSummary(context.Background(), uuid.New())
	assert.False(t, ok)
}

func TestRatingKey(t *testing.T) {
	id := uuid.MustParse("6f1c2d3e-0000-4000-8000-000000000001")
	assert.Equal(t, "ratings:technician:6f1c2d3e-0000-4000-8000-000000000001", ratingKey(id))
}
