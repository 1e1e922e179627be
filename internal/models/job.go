package models

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobScheduled JobStatus = "Scheduled"
	JobStarted   JobStatus = "Started"
	JobCompleted JobStatus = "Completed"
)

// ParseJobStatus accepts only the three lifecycle states.
func ParseJobStatus(s string) (JobStatus, bool) {
	switch JobStatus(s) {
	case JobScheduled, JobStarted, JobCompleted:
		return JobStatus(s), true
	}
	return "", false
}

// Job is the unit of billable field work.
type Job struct {
	ID              uuid.UUID  `json:"id"`
	CustomerID      uuid.UUID  `json:"customerId"`
	TechnicianID    *uuid.UUID `json:"technicianId,omitempty"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Status          JobStatus  `json:"status"`
	IsAssigned      bool       `json:"isAssigned"`
	ScheduledAt     time.Time  `json:"scheduledAt"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	CustomerName    string     `json:"customerName,omitempty"`
	CustomerEmail   string     `json:"-"`
	TechnicianName  string     `json:"technicianName,omitempty"`
	TechnicianEmail string     `json:"-"`
	Lifecycle
}

// Archived jobs are soft-deleted and accept no further mutations.
func (j *Job) Archived() bool {
	return j.IsDeleted
}

// AssignedTo reports whether the job is assigned to the technician.
func (j *Job) AssignedTo(technicianID uuid.UUID) bool {
	return j.TechnicianID != nil && *j.TechnicianID == technicianID
}

type ActivityType string

const (
	ActivityJobCreated       ActivityType = "JobCreated"
	ActivityJobRequested     ActivityType = "JobRequested"
	ActivityReassigned       ActivityType = "Reassigned"
	ActivityStatusChanged    ActivityType = "StatusChanged"
	ActivityMaterialAssigned ActivityType = "MaterialAssigned"
	ActivityMaterialUpdated  ActivityType = "MaterialUpdated"
	ActivityMaterialRemoved  ActivityType = "MaterialRemoved"
	ActivityNoteAdded        ActivityType = "NoteAdded"
	ActivityNoteEdited       ActivityType = "NoteEdited"
	ActivityNoteDeleted      ActivityType = "NoteDeleted"
	ActivityPhotoUploaded    ActivityType = "PhotoUploaded"
	ActivityPhotoDeleted     ActivityType = "PhotoDeleted"
	ActivityArchived         ActivityType = "Archived"
	ActivityInvoiceCreated   ActivityType = "InvoiceCreated"
	ActivityInvoicePaid      ActivityType = "InvoicePaid"
)

// JobActivity is an append-only audit entry for one change to a job.
type JobActivity struct {
	ID              uuid.UUID    `json:"id"`
	JobID           uuid.UUID    `json:"jobId"`
	ActivityType    ActivityType `json:"activityType"`
	Details         string       `json:"details"`
	PerformedBy     *uuid.UUID   `json:"performedBy,omitempty"`
	PerformedByName string       `json:"performedByName"`
	PerformedAt     time.Time    `json:"performedAt"`
}

type JobNote struct {
	ID    uuid.UUID `json:"id"`
	JobID uuid.UUID `json:"jobId"`
	Note  string    `json:"note"`
	Lifecycle
}

type JobPhoto struct {
	ID       uuid.UUID `json:"id"`
	JobID    uuid.UUID `json:"jobId"`
	PhotoURL string    `json:"photoUrl"`
	Lifecycle
}

type CreateJobRequest struct {
	CustomerID   uuid.UUID `json:"customerId" validate:"required"`
	TechnicianID uuid.UUID `json:"technicianId" validate:"required"`
	Title        string    `json:"title" validate:"required,max=200"`
	Description  string    `json:"description" validate:"max=2000"`
	ScheduledAt  time.Time `json:"scheduledAt" validate:"required"`
}

type ReassignJobRequest struct {
	JobID           uuid.UUID `json:"jobId" validate:"required"`
	NewTechnicianID uuid.UUID `json:"newTechnicianId" validate:"required"`
}

type ReassignJobResponse struct {
	JobID          uuid.UUID `json:"jobId"`
	TechnicianName string    `json:"technicianName"`
}

type UpdateJobStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=Scheduled Started Completed"`
}

type BatchDeletePhotosRequest struct {
	PhotoIDs []uuid.UUID `json:"photoIds"`
}

type NoteRequest struct {
	Note string `json:"note" validate:"required,max=2000"`
}

// JobFilter narrows job listings. Zero values mean "no filter".
type JobFilter struct {
	Status         JobStatus
	TechnicianID   *uuid.UUID
	TechnicianName string
	CustomerName   string
	Keyword        string
	Date           *time.Time
	Unassigned     bool
	Page           PageRequest
}

// StatusChange describes a guarded transition for the store to apply.
type StatusChange struct {
	JobID uuid.UUID
	From  JobStatus
	To    JobStatus
	At    time.Time
	Actor ActorIdentity
}
