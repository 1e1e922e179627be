package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"servus-backend/internal/apperr"
	"servus-backend/internal/audit"
	"servus-backend/internal/events"
	"servus-backend/internal/metrics"
	"servus-backend/internal/models"
	"servus-backend/internal/validation"
)

// MaxScheduleAhead bounds how far in the future a job may be scheduled.
const MaxScheduleAhead = 30 * 24 * time.Hour

// jobAccess resolves a job for the caller and enforces who may see or touch it.
type jobAccess struct {
	Jobs        JobStore
	Technicians TechnicianStore
	Customers   CustomerStore
}

// view loads a job the actor may read. Technicians see only their own jobs
// and portal customers only jobs placed for them.
func (g jobAccess) view(ctx context.Context, actor models.ActorIdentity, jobID uuid.UUID) (*models.Job, error) {
	job, err := g.Jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	switch actor.Role {
	case models.RoleTechnician:
		tech, err := g.Technicians.GetByUserID(ctx, actor.UserID)
		if err != nil {
			return nil, forbiddenIfMissing(err, "you are not registered as a technician")
		}
		if !job.AssignedTo(tech.ID) {
			return nil, apperr.Forbidden("job is not assigned to you")
		}
	case models.RoleCustomer:
		c, err := g.Customers.GetByUserID(ctx, actor.UserID)
		if err != nil {
			return nil, forbiddenIfMissing(err, "no customer record is linked to your account")
		}
		if job.CustomerID != c.ID {
			return nil, apperr.Forbidden("job does not belong to you")
		}
	}
	return job, nil
}

// modify is view plus the archive guard used by every mutating operation.
func (g jobAccess) modify(ctx context.Context, actor models.ActorIdentity, jobID uuid.UUID) (*models.Job, error) {
	job, err := g.view(ctx, actor, jobID)
	if err != nil {
		return nil, err
	}
	if job.Archived() {
		return nil, apperr.Conflict("job is archived")
	}
	return job, nil
}

func forbiddenIfMissing(err error, msg string) error {
	if apperr.Is(err, apperr.KindNotFound) {
		return apperr.Forbidden(msg)
	}
	return err
}

type JobService struct {
	jobAccess
	Events Publisher
	rec    *audit.Recorder
}

func NewJobService(jobs JobStore, technicians TechnicianStore, customers CustomerStore, bus Publisher, rec *audit.Recorder) *JobService {
	return &JobService{
		jobAccess: jobAccess{Jobs: jobs, Technicians: technicians, Customers: customers},
		Events:    bus,
		rec:       rec,
	}
}

// checkSchedule rejects times in the past or beyond MaxScheduleAhead.
func checkSchedule(scheduledAt, now time.Time) error {
	switch {
	case scheduledAt.Before(now):
		return apperr.ValidationFields("invalid schedule", map[string]string{
			"scheduledAt": "cannot be in the past",
		})
	case scheduledAt.After(now.Add(MaxScheduleAhead)):
		return apperr.ValidationFields("invalid schedule", map[string]string{
			"scheduledAt": "cannot be more than 30 days ahead",
		})
	}
	return nil
}

func (s *JobService) publish(ctx context.Context, kind events.Kind, job *models.Job, from models.JobStatus, actor models.ActorIdentity, at time.Time) {
	if s.Events == nil {
		return
	}
	s.Events.Publish(ctx, events.JobEvent{
		Kind:            kind,
		JobID:           job.ID,
		JobTitle:        job.Title,
		ScheduledAt:     job.ScheduledAt,
		OldStatus:       from,
		NewStatus:       job.Status,
		TechnicianName:  job.TechnicianName,
		TechnicianEmail: job.TechnicianEmail,
		CustomerName:    job.CustomerName,
		CustomerEmail:   job.CustomerEmail,
		Actor:           actor.DisplayName,
		OccurredAt:      at,
	})
}

// Create schedules a job for a customer with an assigned technician.
func (s *JobService) Create(ctx context.Context, actor models.ActorIdentity, req *models.CreateJobRequest) (*models.Job, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	now := s.rec.Now()
	if err := checkSchedule(req.ScheduledAt, now); err != nil {
		return nil, err
	}

	customer, err := s.Customers.Get(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if customer.IsDeleted {
		return nil, apperr.NotFound("customer")
	}
	tech, err := s.Technicians.Get(ctx, req.TechnicianID)
	if err != nil {
		return nil, err
	}

	techID := tech.ID
	job := &models.Job{
		ID:              uuid.New(),
		CustomerID:      customer.ID,
		TechnicianID:    &techID,
		Title:           strings.TrimSpace(req.Title),
		Description:     strings.TrimSpace(req.Description),
		Status:          models.JobScheduled,
		IsAssigned:      true,
		ScheduledAt:     req.ScheduledAt.UTC(),
		CustomerName:    customer.FullName,
		CustomerEmail:   customer.Email,
		TechnicianName:  tech.FullName,
		TechnicianEmail: tech.Email,
		Lifecycle:       s.rec.Created(actor),
	}
	a := s.rec.Activity(job.ID, actor, models.ActivityJobCreated,
		"Job '%s' created and assigned to %s", job.Title, tech.FullName)

	if err := s.Jobs.Create(ctx, job, a); err != nil {
		return nil, err
	}

	log.Printf("[Jobs] Job %s created by %s", job.ID, actor.DisplayName)
	s.publish(ctx, events.JobCreated, job, "", actor, a.PerformedAt)
	return job, nil
}

// RequestAsGuest registers a customer and an unassigned job from the public form.
func (s *JobService) RequestAsGuest(ctx context.Context, req *models.GuestJobRequest) (*models.GuestJobResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Email) == "" && strings.TrimSpace(req.PhoneNumber) == "" {
		return nil, apperr.ValidationFields("contact details required", map[string]string{
			"email":       "email or phone number is required",
			"phoneNumber": "email or phone number is required",
		})
	}
	now := s.rec.Now()
	if err := checkSchedule(req.ScheduledAt, now); err != nil {
		return nil, err
	}

	actor := models.GuestActor
	customer := &models.Customer{
		ID:          uuid.New(),
		FullName:    strings.TrimSpace(req.FullName),
		Email:       strings.TrimSpace(req.Email),
		PhoneNumber: strings.TrimSpace(req.PhoneNumber),
		Address:     strings.TrimSpace(req.Address),
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Lifecycle:   s.rec.Created(actor),
	}
	job := &models.Job{
		ID:            uuid.New(),
		CustomerID:    customer.ID,
		Title:         strings.TrimSpace(req.Title),
		Description:   strings.TrimSpace(req.Description),
		Status:        models.JobScheduled,
		ScheduledAt:   req.ScheduledAt.UTC(),
		CustomerName:  customer.FullName,
		CustomerEmail: customer.Email,
		Lifecycle:     s.rec.Created(actor),
	}
	a := s.rec.Activity(job.ID, actor, models.ActivityJobRequested,
		"Service requested by %s", customer.FullName)

	if err := s.Jobs.CreateGuestRequest(ctx, customer, job, a); err != nil {
		return nil, err
	}

	log.Printf("[Jobs] Guest request %s received from %s", job.ID, customer.FullName)
	s.publish(ctx, events.JobRequested, job, "", actor, a.PerformedAt)
	return &models.GuestJobResponse{CustomerID: customer.ID, JobID: job.ID}, nil
}

// Reassign hands a scheduled job to another technician, or assigns an
// unassigned one.
func (s *JobService) Reassign(ctx context.Context, actor models.ActorIdentity, req *models.ReassignJobRequest) (*models.ReassignJobResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	job, err := s.modify(ctx, actor, req.JobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobScheduled {
		return nil, apperr.Conflict(fmt.Sprintf("only scheduled jobs can be reassigned; job is %s", job.Status))
	}
	if job.AssignedTo(req.NewTechnicianID) {
		return nil, apperr.ValidationFields("job is already assigned to this technician", map[string]string{
			"newTechnicianId": "must differ from the current technician",
		})
	}

	tech, err := s.Technicians.Get(ctx, req.NewTechnicianID)
	if err != nil {
		return nil, err
	}

	from := "unassigned"
	if job.TechnicianID != nil {
		from = job.TechnicianName
	}
	a := s.rec.Activity(job.ID, actor, models.ActivityReassigned, "From %s to %s", from, tech.FullName)

	if err := s.Jobs.Reassign(ctx, job.ID, job.TechnicianID, tech.ID, a); err != nil {
		return nil, err
	}

	techID := tech.ID
	job.TechnicianID = &techID
	job.IsAssigned = true
	job.TechnicianName = tech.FullName
	job.TechnicianEmail = tech.Email

	log.Printf("[Jobs] Job %s reassigned from %s to %s", job.ID, from, tech.FullName)
	s.publish(ctx, events.JobReassigned, job, "", actor, a.PerformedAt)
	return &models.ReassignJobResponse{JobID: job.ID, TechnicianName: tech.FullName}, nil
}

// checkTransition enforces Scheduled -> Started -> Completed.
func checkTransition(job *models.Job, to models.JobStatus, now time.Time) error {
	if job.Status == to {
		return apperr.Conflict(fmt.Sprintf("job is already %s", to))
	}
	switch {
	case job.Status == models.JobCompleted:
		return apperr.Conflict("completed jobs cannot change status")
	case to == models.JobScheduled:
		return apperr.Conflict("a started job cannot return to scheduled")
	case to == models.JobCompleted && job.Status != models.JobStarted:
		return apperr.Conflict("job must be started before it can be completed")
	case to == models.JobStarted && job.TechnicianID == nil:
		return apperr.Conflict("job has no technician assigned")
	case to == models.JobStarted && now.Before(job.ScheduledAt):
		return apperr.Conflict("job cannot be started before its scheduled time")
	}
	return nil
}

// UpdateStatus moves a job along its lifecycle and stamps started/completed times.
func (s *JobService) UpdateStatus(ctx context.Context, actor models.ActorIdentity, jobID uuid.UUID, req *models.UpdateJobStatusRequest) (*models.Job, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	to, ok := models.ParseJobStatus(req.Status)
	if !ok {
		return nil, apperr.ValidationFields("invalid status", map[string]string{"status": "unknown status " + req.Status})
	}

	job, err := s.modify(ctx, actor, jobID)
	if err != nil {
		return nil, err
	}
	now := s.rec.Now()
	if err := checkTransition(job, to, now); err != nil {
		return nil, err
	}

	from := job.Status
	a := s.rec.Activity(job.ID, actor, models.ActivityStatusChanged, "From %s to %s", from, to)
	change := models.StatusChange{JobID: job.ID, From: from, To: to, At: a.PerformedAt, Actor: actor}
	if err := s.Jobs.ChangeStatus(ctx, change, a); err != nil {
		return nil, err
	}
	metrics.JobTransitions.WithLabelValues(string(to)).Inc()

	job.Status = to
	at := a.PerformedAt
	switch to {
	case models.JobStarted:
		job.StartedAt = &at
	case models.JobCompleted:
		job.CompletedAt = &at
	}

	log.Printf("[Jobs] Job %s moved from %s to %s by %s", job.ID, from, to, actor.DisplayName)
	s.publish(ctx, events.JobStatusChanged, job, from, actor, at)
	return job, nil
}

// Archive soft-deletes a scheduled or started job.
func (s *JobService) Archive(ctx context.Context, actor models.ActorIdentity, jobID uuid.UUID) error {
	job, err := s.Jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Archived() {
		return apperr.Conflict("job is already archived")
	}
	if job.Status == models.JobCompleted {
		return apperr.Conflict("completed jobs cannot be archived")
	}

	a := s.rec.Activity(job.ID, actor, models.ActivityArchived, "Job archived by %s", actor.DisplayName)
	if err := s.Jobs.Archive(ctx, job.ID, a); err != nil {
		return err
	}

	log.Printf("[Jobs] Job %s archived by %s", job.ID, actor.DisplayName)
	s.publish(ctx, events.JobArchived, job, "", actor, a.PerformedAt)
	return nil
}

func (s *JobService) Get(ctx context.Context, actor models.ActorIdentity, jobID uuid.UUID) (*models.Job, error) {
	return s.view(ctx, actor, jobID)
}

// ListMine lists the calling technician's jobs.
func (s *JobService) ListMine(ctx context.Context, actor models.ActorIdentity, f models.JobFilter) (models.Page[models.Job], error) {
	tech, err := s.Technicians.GetByUserID(ctx, actor.UserID)
	if err != nil {
		return models.Page[models.Job]{}, forbiddenIfMissing(err, "you are not registered as a technician")
	}
	f.TechnicianID = &tech.ID
	f.Unassigned = false
	return s.Jobs.List(ctx, f)
}

func (s *JobService) List(ctx context.Context, f models.JobFilter) (models.Page[models.Job], error) {
	return s.Jobs.List(ctx, f)
}

// ListUnassigned lists jobs waiting for a technician, such as guest requests.
func (s *JobService) ListUnassigned(ctx context.Context, f models.JobFilter) (models.Page[models.Job], error) {
	f.TechnicianID = nil
	f.TechnicianName = ""
	f.Unassigned = true
	return s.Jobs.List(ctx, f)
}

func (s *JobService) Activities(ctx context.Context, actor models.ActorIdentity, jobID uuid.UUID) ([]models.JobActivity, error) {
	if _, err := s.view(ctx, actor, jobID); err != nil {
		return nil, err
	}
	return s.Jobs.Activities(ctx, jobID)
}
