// Package audit builds the activity entries and audit stamps written
// alongside every mutation.
package audit

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"servus-backend/internal/models"
	"servus-backend/internal/timeutil"
)

type Recorder struct {
	now timeutil.Clock
}

func NewRecorder(clock timeutil.Clock) *Recorder {
	if clock == nil {
		clock = timeutil.Now
	}
	return &Recorder{now: clock}
}

// Now exposes the recorder's clock so entity timestamps match their activity.
func (r *Recorder) Now() time.Time {
	return r.now()
}

// Activity builds a job activity performed by actor at the current time.
func (r *Recorder) Activity(jobID uuid.UUID, actor models.ActorIdentity, kind models.ActivityType, format string, args ...any) models.JobActivity {
	a := models.JobActivity{
		ID:              uuid.New(),
		JobID:           jobID,
		ActivityType:    kind,
		Details:         fmt.Sprintf(format, args...),
		PerformedByName: actor.DisplayName,
		PerformedAt:     r.now(),
	}
	if !actor.IsAnonymous() {
		id := actor.UserID
		a.PerformedBy = &id
	}
	return a
}

// Created stamps a new row.
func (r *Recorder) Created(actor models.ActorIdentity) models.Lifecycle {
	l := models.Lifecycle{
		IsActive:      true,
		CreatedAt:     r.now(),
		CreatedByName: actor.DisplayName,
	}
	if !actor.IsAnonymous() {
		id := actor.UserID
		l.CreatedBy = &id
	}
	return l
}

// Modified stamps an update onto an existing lifecycle.
func (r *Recorder) Modified(l *models.Lifecycle, actor models.ActorIdentity) {
	now := r.now()
	l.ModifiedAt = &now
	l.ModifiedByName = actor.DisplayName
	l.ModifiedBy = nil
	if !actor.IsAnonymous() {
		id := actor.UserID
		l.ModifiedBy = &id
	}
}
