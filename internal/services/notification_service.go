package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"servus-backend/internal/events"
	"servus-backend/internal/models"
	"servus-backend/internal/timeutil"
)

// NotificationService turns job events into queued emails. It subscribes to
// the event bus so a mail problem never affects the request that caused it.
type NotificationService struct {
	Emails EmailStore
	now    timeutil.Clock
}

func NewNotificationService(emails EmailStore, clock timeutil.Clock) *NotificationService {
	if clock == nil {
		clock = timeutil.Now
	}
	return &NotificationService{Emails: emails, now: clock}
}

// Compose returns the email for ev, or nil when nobody is notified.
func Compose(ev events.JobEvent) *models.QueuedEmail {
	when := ev.ScheduledAt.Format(timeutil.DisplayLayout)
	var to, subject, body string

	switch ev.Kind {
	case events.JobCreated:
		to = ev.TechnicianEmail
		subject = "New Job Assigned"
		body = fmt.Sprintf("You have been assigned a new job: %s scheduled at %s", ev.JobTitle, when)
	case events.JobReassigned:
		to = ev.TechnicianEmail
		subject = "Job Reassigned"
		body = fmt.Sprintf("You have been reassigned to job: %s scheduled at %s", ev.JobTitle, when)
	case events.JobStatusChanged:
		if ev.NewStatus != models.JobCompleted {
			return nil
		}
		to = ev.CustomerEmail
		subject = fmt.Sprintf("Job Status Updated: %s", ev.JobTitle)
		body = fmt.Sprintf("The status of your job '%s' has changed from %s to %s.", ev.JobTitle, ev.OldStatus, ev.NewStatus)
	default:
		return nil
	}

	if strings.TrimSpace(to) == "" {
		return nil
	}
	return &models.QueuedEmail{To: to, Subject: subject, Body: body}
}

// Handle is registered on the event bus.
func (s *NotificationService) Handle(ctx context.Context, ev events.JobEvent) {
	email := Compose(ev)
	if email == nil {
		return
	}
	email.ID = uuid.New()
	email.CreatedAt = s.now()

	if err := s.Emails.Enqueue(context.WithoutCancel(ctx), email); err != nil {
		log.WithFields(log.Fields{"job_id": ev.JobID, "kind": ev.Kind}).
			WithError(err).Error("[Notifications] Failed to queue email")
		return
	}
	log.Debugf("[Notifications] Queued %q for job %s", email.Subject, ev.JobID)
}

// ListFailed returns emails that exhausted their retries.
func (s *NotificationService) ListFailed(ctx context.Context, p models.PageRequest) (models.Page[models.QueuedEmail], error) {
	return s.Emails.ListDeadLettered(ctx, p)
}

// Retry puts a dead-lettered email back in the queue with fresh attempts.
func (s *NotificationService) Retry(ctx context.Context, id uuid.UUID) error {
	return s.Emails.Requeue(ctx, id)
}
