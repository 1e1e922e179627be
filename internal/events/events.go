// Package events carries job domain events from services to subscribers
// once the originating transaction has committed.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"servus-backend/internal/models"
)

type Kind string

const (
	JobCreated       Kind = "JobCreated"
	JobRequested     Kind = "JobRequested"
	JobReassigned    Kind = "JobReassigned"
	JobStatusChanged Kind = "JobStatusChanged"
	JobArchived      Kind = "JobArchived"
)

// JobEvent describes a committed change to a job. Email addresses are for
// subscribers that notify people and are never serialised to clients.
type JobEvent struct {
	Kind            Kind             `json:"kind"`
	JobID           uuid.UUID        `json:"jobId"`
	JobTitle        string           `json:"jobTitle"`
	ScheduledAt     time.Time        `json:"scheduledAt"`
	OldStatus       models.JobStatus `json:"oldStatus,omitempty"`
	NewStatus       models.JobStatus `json:"newStatus,omitempty"`
	TechnicianName  string           `json:"technicianName,omitempty"`
	TechnicianEmail string           `json:"-"`
	CustomerName    string           `json:"customerName,omitempty"`
	CustomerEmail   string           `json:"-"`
	Actor           string           `json:"actor"`
	OccurredAt      time.Time        `json:"occurredAt"`
}

type Handler func(ctx context.Context, ev JobEvent)

// Bus fans events out to subscribers in registration order.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish delivers ev to every subscriber. A panicking subscriber is logged
// and does not stop delivery to the others.
func (b *Bus) Publish(ctx context.Context, ev JobEvent) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers...)
	b.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					log.WithFields(log.Fields{"kind": ev.Kind, "job_id": ev.JobID}).
						Errorf("[Events] subscriber panicked: %v", rec)
				}
			}()
			h(ctx, ev)
		}()
	}
}
