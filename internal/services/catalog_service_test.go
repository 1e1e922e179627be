package services

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servus-backend/internal/apperr"
	"servus-backend/internal/models"
)

func TestCustomerArchiveAndRestore(t *testing.T) {
	w := newWorld()
	svc := NewCustomerService(customerStore{w}, testRecorder())
	ctx := context.Background()

	c, err := svc.Create(ctx, dispatcherActor, &models.CustomerRequest{FullName: " Harbor Cafe ", Email: "hello@harbor.test"})
	require.NoError(t, err)
	assert.Equal(t, "Harbor Cafe", c.FullName)
	assert.True(t, c.IsActive)

	require.NoError(t, svc.Archive(ctx, dispatcherActor, c.ID))
	found, err := svc.Search(ctx, models.CustomerFilter{Query: "harbor"})
	require.NoError(t, err)
	assert.Zero(t, found.TotalCount, "archived customers are hidden from search")

	got, err := svc.Get(ctx, c.ID)
	require.NoError(t, err, "but still addressable by id")
	assert.True(t, got.IsDeleted)

	_, err = svc.Update(ctx, dispatcherActor, c.ID, &models.CustomerRequest{FullName: "Harbor Cafe"})
	assert.Equal(t, apperr.KindConflict, kindOf(t, err))

	require.NoError(t, svc.Restore(ctx, dispatcherActor, c.ID))
	found, _ = svc.Search(ctx, models.CustomerFilter{Query: "harbor"})
	assert.Equal(t, 1, found.TotalCount)
}

func TestCustomerValidation(t *testing.T) {
	svc := NewCustomerService(customerStore{newWorld()}, testRecorder())
	lat := 123.0
	_, err := svc.Create(context.Background(), dispatcherActor, &models.CustomerRequest{FullName: "X", Email: "nope", Latitude: &lat})
	fields := fieldsOf(t, err)
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "latitude")
}

func TestMaterialLifecycle(t *testing.T) {
	w := newWorld()
	svc := NewMaterialService(materialStore{w}, testRecorder())
	ctx := context.Background()

	_, err := svc.Create(ctx, ownerActor, &models.MaterialRequest{Name: "Valve", Unit: "pcs", UnitPrice: decimal.NewFromInt(-1)})
	assert.Contains(t, fieldsOf(t, err), "unitPrice")

	m, err := svc.Create(ctx, ownerActor, &models.MaterialRequest{Name: "Valve", Unit: "pcs", UnitPrice: decimal.RequireFromString("12.345"), StockQuantity: 4})
	require.NoError(t, err)
	assert.Equal(t, "12.35", m.UnitPrice.StringFixed(2))
	assert.True(t, m.IsActive)

	stock, err := svc.Refill(ctx, ownerActor, m.ID, &models.RefillMaterialRequest{QuantityToAdd: 6})
	require.NoError(t, err)
	assert.Equal(t, 10, stock)

	_, err = svc.Refill(ctx, ownerActor, m.ID, &models.RefillMaterialRequest{QuantityToAdd: 0})
	assert.Equal(t, apperr.KindValidation, kindOf(t, err))

	require.NoError(t, svc.Delete(ctx, ownerActor, m.ID))
	_, err = svc.Update(ctx, ownerActor, m.ID, &models.MaterialRequest{Name: "Valve", Unit: "pcs"})
	assert.Equal(t, apperr.KindNotFound, kindOf(t, err))
	assert.Equal(t, apperr.KindNotFound, kindOf(t, svc.Delete(ctx, ownerActor, m.ID)))
}

func TestMaterialBounds(t *testing.T) {
	w := newWorld()
	svc := NewMaterialService(materialStore{w}, testRecorder())
	ctx := context.Background()

	_, err := svc.Create(ctx, ownerActor, &models.MaterialRequest{Name: "Boiler", Unit: "pcs", UnitPrice: decimal.RequireFromString("99999999999.99")})
	assert.Equal(t, "must be at most 999999.99", fieldsOf(t, err)["unitPrice"])

	_, err = svc.Create(ctx, ownerActor, &models.MaterialRequest{Name: "Washer", Unit: "pcs", StockQuantity: 3_000_000_000})
	assert.Contains(t, fieldsOf(t, err), "stockQuantity")

	m, err := svc.Create(ctx, ownerActor, &models.MaterialRequest{Name: "Washer", Unit: "pcs", UnitPrice: models.MaxUnitPrice, StockQuantity: models.MaxStockQuantity})
	require.NoError(t, err)

	_, err = svc.Refill(ctx, ownerActor, m.ID, &models.RefillMaterialRequest{QuantityToAdd: math.MaxInt32})
	assert.Contains(t, fieldsOf(t, err), "quantityToAdd")
}

type fakeStats struct {
	summary     models.DashboardSummary
	statuses    []models.StatusCount
	timestamps  []models.JobTimestamps
	completions []time.Time
	ratings     []models.RatingCount
	since       time.Time
}

func (s *fakeStats) Summary(context.Context, int) (*models.DashboardSummary, error) {
	out := s.summary
	return &out, nil
}
func (s *fakeStats) JobStatusCounts(context.Context) ([]models.StatusCount, error) {
	return s.statuses, nil
}
func (s *fakeStats) MonthlyRevenue(context.Context) ([]models.MonthlyRevenue, error) {
	return nil, nil
}
func (s *fakeStats) TechnicianActivity(context.Context) ([]models.TechnicianActivity, error) {
	return nil, nil
}
func (s *fakeStats) JobTimestampsSince(_ context.Context, since time.Time) ([]models.JobTimestamps, error) {
	s.since = since
	return s.timestamps, nil
}
func (s *fakeStats) CompletionsSince(_ context.Context, _ uuid.UUID, since time.Time) ([]time.Time, error) {
	s.since = since
	return s.completions, nil
}
func (s *fakeStats) RatingCounts(context.Context) ([]models.RatingCount, error) {
	return s.ratings, nil
}
func (s *fakeStats) TechnicianPerformance(context.Context) ([]models.TechnicianPerformance, error) {
	return nil, nil
}

func TestDashboardFillsEmptyBuckets(t *testing.T) {
	stats := &fakeStats{
		statuses: []models.StatusCount{{Status: models.JobStarted, Count: 4}},
		ratings:  []models.RatingCount{{Rating: 5, Count: 2}},
	}
	svc := NewDashboardService(stats, testRecorder())
	ctx := context.Background()

	summary, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.NotNil(t, summary.LowStockMaterials)

	counts, err := svc.JobSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.StatusCount{
		{Status: models.JobScheduled, Count: 0},
		{Status: models.JobStarted, Count: 4},
		{Status: models.JobCompleted, Count: 0},
	}, counts)

	sat, err := svc.CustomerSatisfaction(ctx)
	require.NoError(t, err)
	require.Len(t, sat, 5)
	assert.Equal(t, models.RatingCount{Rating: 5, Count: 2}, sat[4])
	assert.Equal(t, 0, sat[0].Count)
}

func TestJobTrends(t *testing.T) {
	yesterday := testNow.Add(-24 * time.Hour)
	today := testNow.Add(-time.Hour)
	stats := &fakeStats{timestamps: []models.JobTimestamps{
		{ScheduledAt: yesterday, StartedAt: &yesterday, CompletedAt: &today},
		{ScheduledAt: today},
		{ScheduledAt: testNow.Add(-6 * 24 * time.Hour)},
	}}
	svc := NewDashboardService(stats, testRecorder())

	trends, err := svc.JobTrends(context.Background())
	require.NoError(t, err)
	require.Len(t, trends, TrendWindowDays)
	assert.Equal(t, time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), stats.since)

	assert.Equal(t, models.JobTrend{Date: trends[0].Date, Scheduled: 1}, trends[0])
	assert.Equal(t, models.JobTrend{Date: trends[5].Date, Scheduled: 1, Started: 1}, trends[5])
	assert.Equal(t, models.JobTrend{Date: trends[6].Date, Scheduled: 1, Completed: 1}, trends[6])
}

func TestTechnicianSelfService(t *testing.T) {
	w := newWorld()
	completedToday := testNow.Add(-time.Hour)
	stats := &fakeStats{completions: []time.Time{completedToday, completedToday.Add(-30 * time.Minute)}}
	svc := NewTechnicianService(techStore{w}, stats, testRecorder())
	ctx := context.Background()
	tech, techAct := w.addTechnician("Alice Tech")

	require.NoError(t, svc.UpdateLocation(ctx, techAct, &models.TechnicianLocationRequest{Latitude: 51.5, Longitude: -0.12}))
	got, _ := techStore{w}.Get(ctx, tech.ID)
	require.NotNil(t, got.CurrentLatitude)
	assert.Equal(t, 51.5, *got.CurrentLatitude)

	err := svc.UpdateLocation(ctx, techAct, &models.TechnicianLocationRequest{Latitude: 100})
	assert.Equal(t, apperr.KindValidation, kindOf(t, err))

	require.NoError(t, svc.UpdateAvailability(ctx, techAct, &models.TechnicianAvailabilityRequest{IsAvailable: false}))
	got, _ = techStore{w}.Get(ctx, tech.ID)
	assert.False(t, got.IsAvailable)

	perf, err := svc.JobPerformance(ctx, techAct)
	require.NoError(t, err)
	require.Len(t, perf, PerformanceWindowDays)
	assert.Equal(t, 2, perf[6].JobsCompleted)
	assert.Equal(t, 0, perf[0].JobsCompleted)

	_, err = svc.JobPerformance(ctx, dispatcherActor)
	assert.Equal(t, apperr.KindForbidden, kindOf(t, err))
}
