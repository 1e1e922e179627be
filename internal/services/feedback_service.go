package services

import (
	"context"
	"math"
	"strings"

	"github.com/google/uuid"

	"servus-backend/internal/apperr"
	"servus-backend/internal/audit"
	"servus-backend/internal/models"
	"servus-backend/internal/validation"
)

type FeedbackService struct {
	Feedback    FeedbackStore
	Jobs        JobStore
	Customers   CustomerStore
	Technicians TechnicianStore
	Cache       RatingCache
	rec         *audit.Recorder
}

func NewFeedbackService(feedback FeedbackStore, jobs JobStore, customers CustomerStore, technicians TechnicianStore, cache RatingCache, rec *audit.Recorder) *FeedbackService {
	return &FeedbackService{
		Feedback:    feedback,
		Jobs:        jobs,
		Customers:   customers,
		Technicians: technicians,
		Cache:       cache,
		rec:         rec,
	}
}

// Submit records the calling customer's feedback on one of their jobs.
// A customer gets exactly one feedback per job.
func (s *FeedbackService) Submit(ctx context.Context, actor models.ActorIdentity, req *models.SubmitFeedbackRequest) (*models.JobFeedback, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	customer, err := s.Customers.GetByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, forbiddenIfMissing(err, "no customer record is linked to your account")
	}
	job, err := s.Jobs.Get(ctx, req.JobID)
	if err != nil {
		return nil, err
	}
	if job.CustomerID != customer.ID {
		return nil, apperr.Forbidden("you can only leave feedback on your own jobs")
	}

	fb := &models.JobFeedback{
		ID:             uuid.New(),
		JobID:          job.ID,
		CustomerID:     customer.ID,
		IsSatisfied:    req.IsSatisfied,
		Rating:         req.Rating,
		Comment:        strings.TrimSpace(req.Comment),
		SubmittedAt:    s.rec.Now(),
		JobTitle:       job.Title,
		TechnicianName: job.TechnicianName,
	}
	if err := s.Feedback.Create(ctx, fb); err != nil {
		return nil, err
	}

	if s.Cache != nil && job.TechnicianID != nil {
		s.Cache.InvalidateRatingSummary(ctx, *job.TechnicianID)
	}
	return fb, nil
}

// AggregateRatings computes the mean of the ratings given (2 decimals) and
// the percentage of satisfied feedback (1 decimal). Both are 0 without data;
// rated is 0 when feedback exists but none carries a rating.
func AggregateRatings(feedbacks []models.JobFeedback) (average, satisfaction float64, rated int) {
	if len(feedbacks) == 0 {
		return 0, 0, 0
	}

	var sum, satisfied int
	for _, f := range feedbacks {
		if f.Rating != nil {
			sum += *f.Rating
			rated++
		}
		if f.IsSatisfied {
			satisfied++
		}
	}

	satisfaction = round(float64(satisfied)*100/float64(len(feedbacks)), 1)
	if rated == 0 {
		return 0, satisfaction, 0
	}
	return round(float64(sum)/float64(rated), 2), satisfaction, rated
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// TechnicianRatings returns a technician's rating summary, served from the
// cache when it is warm.
func (s *FeedbackService) TechnicianRatings(ctx context.Context, technicianID uuid.UUID) (*models.RatingSummary, error) {
	if s.Cache != nil {
		if summary, ok := s.Cache.GetRatingSummary(ctx, technicianID); ok {
			return summary, nil
		}
	}

	tech, err := s.Technicians.Get(ctx, technicianID)
	if err != nil {
		return nil, err
	}
	feedbacks, err := s.Feedback.ListByTechnician(ctx, tech.ID)
	if err != nil {
		return nil, err
	}

	avg, rate, rated := AggregateRatings(feedbacks)
	summary := &models.RatingSummary{
		TechnicianID:     tech.ID,
		TechnicianName:   tech.FullName,
		AverageRating:    avg,
		TotalFeedbacks:   len(feedbacks),
		RatedFeedbacks:   rated,
		SatisfactionRate: rate,
	}
	if s.Cache != nil {
		s.Cache.SetRatingSummary(ctx, summary)
	}
	return summary, nil
}

// ByJob lists feedback on a job. Customers only see feedback on their own jobs.
func (s *FeedbackService) ByJob(ctx context.Context, actor models.ActorIdentity, jobID uuid.UUID) ([]models.JobFeedback, error) {
	job, err := s.Jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleCustomer {
		customer, err := s.Customers.GetByUserID(ctx, actor.UserID)
		if err != nil {
			return nil, forbiddenIfMissing(err, "no customer record is linked to your account")
		}
		if job.CustomerID != customer.ID {
			return nil, apperr.Forbidden("job does not belong to you")
		}
	}
	return s.Feedback.ListByJob(ctx, job.ID)
}

func (s *FeedbackService) List(ctx context.Context, f models.FeedbackFilter) (models.Page[models.JobFeedback], error) {
	return s.Feedback.List(ctx, f)
}

// Mine lists the feedback left on the calling technician's jobs.
func (s *FeedbackService) Mine(ctx context.Context, actor models.ActorIdentity) ([]models.JobFeedback, error) {
	tech, err := s.Technicians.GetByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, forbiddenIfMissing(err, "you are not registered as a technician")
	}
	return s.Feedback.ListByTechnician(ctx, tech.ID)
}
