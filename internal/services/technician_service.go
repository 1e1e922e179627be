package services

import (
	"context"

	"servus-backend/internal/audit"
	"servus-backend/internal/models"
	"servus-backend/internal/timeutil"
	"servus-backend/internal/validation"
)

// PerformanceWindowDays is the span of the technician's own completion chart.
const PerformanceWindowDays = 7

type TechnicianService struct {
	Technicians TechnicianStore
	Stats       DashboardStore
	rec         *audit.Recorder
}

func NewTechnicianService(technicians TechnicianStore, stats DashboardStore, rec *audit.Recorder) *TechnicianService {
	return &TechnicianService{Technicians: technicians, Stats: stats, rec: rec}
}

func (s *TechnicianService) List(ctx context.Context) ([]models.Technician, error) {
	return s.Technicians.List(ctx)
}

func (s *TechnicianService) self(ctx context.Context, actor models.ActorIdentity) (*models.Technician, error) {
	tech, err := s.Technicians.GetByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, forbiddenIfMissing(err, "you are not registered as a technician")
	}
	return tech, nil
}

// UpdateLocation stores the calling technician's current position.
func (s *TechnicianService) UpdateLocation(ctx context.Context, actor models.ActorIdentity, req *models.TechnicianLocationRequest) error {
	if err := validation.Struct(req); err != nil {
		return err
	}
	tech, err := s.self(ctx, actor)
	if err != nil {
		return err
	}
	return s.Technicians.UpdateLocation(ctx, tech.ID, req.Latitude, req.Longitude, s.rec.Now())
}

func (s *TechnicianService) UpdateAvailability(ctx context.Context, actor models.ActorIdentity, req *models.TechnicianAvailabilityRequest) error {
	tech, err := s.self(ctx, actor)
	if err != nil {
		return err
	}
	var stamp models.Lifecycle
	s.rec.Modified(&stamp, actor)
	return s.Technicians.UpdateAvailability(ctx, tech.ID, req.IsAvailable, stamp)
}

// JobPerformance counts the calling technician's completions per day over the
// last week, oldest first, with zero days included.
func (s *TechnicianService) JobPerformance(ctx context.Context, actor models.ActorIdentity) ([]models.DailyCompletion, error) {
	tech, err := s.self(ctx, actor)
	if err != nil {
		return nil, err
	}

	days := timeutil.LastNDays(s.rec.Now(), PerformanceWindowDays)
	completions, err := s.Stats.CompletionsSince(ctx, tech.ID, days[0])
	if err != nil {
		return nil, err
	}

	out := make([]models.DailyCompletion, len(days))
	for i, day := range days {
		out[i].Date = day
		for _, at := range completions {
			if timeutil.SameDay(day, at) {
				out[i].JobsCompleted++
			}
		}
	}
	return out, nil
}
