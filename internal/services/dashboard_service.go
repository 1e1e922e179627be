package services

import (
	"context"
	"time"

	"servus-backend/internal/audit"
	"servus-backend/internal/models"
	"servus-backend/internal/timeutil"
)

// TrendWindowDays is the span of the job trend chart.
const TrendWindowDays = 7

type DashboardService struct {
	Stats DashboardStore
	rec   *audit.Recorder
}

func NewDashboardService(stats DashboardStore, rec *audit.Recorder) *DashboardService {
	return &DashboardService{Stats: stats, rec: rec}
}

func (s *DashboardService) Summary(ctx context.Context) (*models.DashboardSummary, error) {
	summary, err := s.Stats.Summary(ctx, models.LowStockThreshold)
	if err != nil {
		return nil, err
	}
	if summary.LowStockMaterials == nil {
		summary.LowStockMaterials = []models.LowStockMaterial{}
	}
	return summary, nil
}

// JobSummary reports a count for every status, including those with no jobs.
func (s *DashboardService) JobSummary(ctx context.Context) ([]models.StatusCount, error) {
	counts, err := s.Stats.JobStatusCounts(ctx)
	if err != nil {
		return nil, err
	}
	byStatus := make(map[models.JobStatus]int, len(counts))
	for _, c := range counts {
		byStatus[c.Status] = c.Count
	}
	out := make([]models.StatusCount, 0, 3)
	for _, st := range []models.JobStatus{models.JobScheduled, models.JobStarted, models.JobCompleted} {
		out = append(out, models.StatusCount{Status: st, Count: byStatus[st]})
	}
	return out, nil
}

func (s *DashboardService) Revenue(ctx context.Context) ([]models.MonthlyRevenue, error) {
	return s.Stats.MonthlyRevenue(ctx)
}

func (s *DashboardService) TechnicianActivity(ctx context.Context) ([]models.TechnicianActivity, error) {
	return s.Stats.TechnicianActivity(ctx)
}

// JobTrends buckets the last week's jobs by the day each reached a status.
func (s *DashboardService) JobTrends(ctx context.Context) ([]models.JobTrend, error) {
	days := timeutil.LastNDays(s.rec.Now(), TrendWindowDays)
	rows, err := s.Stats.JobTimestampsSince(ctx, days[0])
	if err != nil {
		return nil, err
	}
	return BucketJobTrends(days, rows), nil
}

// BucketJobTrends counts, per day, jobs scheduled, started and completed on it.
func BucketJobTrends(days []time.Time, rows []models.JobTimestamps) []models.JobTrend {
	out := make([]models.JobTrend, len(days))
	for i, day := range days {
		out[i].Date = day
		for _, r := range rows {
			if timeutil.SameDay(day, r.ScheduledAt) {
				out[i].Scheduled++
			}
			if r.StartedAt != nil && timeutil.SameDay(day, *r.StartedAt) {
				out[i].Started++
			}
			if r.CompletedAt != nil && timeutil.SameDay(day, *r.CompletedAt) {
				out[i].Completed++
			}
		}
	}
	return out
}

// CustomerSatisfaction reports how many ratings of each value (1 to 5) were given.
func (s *DashboardService) CustomerSatisfaction(ctx context.Context) ([]models.RatingCount, error) {
	counts, err := s.Stats.RatingCounts(ctx)
	if err != nil {
		return nil, err
	}
	byRating := make(map[int]int, len(counts))
	for _, c := range counts {
		byRating[c.Rating] = c.Count
	}
	out := make([]models.RatingCount, 0, 5)
	for r := 1; r <= 5; r++ {
		out = append(out, models.RatingCount{Rating: r, Count: byRating[r]})
	}
	return out, nil
}

func (s *DashboardService) TechnicianPerformance(ctx context.Context) ([]models.TechnicianPerformance, error) {
	return s.Stats.TechnicianPerformance(ctx)
}
