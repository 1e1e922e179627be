package models

import (
	"time"

	"github.com/google/uuid"
)

// JobFeedback is the single review a customer leaves on a job.
type JobFeedback struct {
	ID             uuid.UUID `json:"id"`
	JobID          uuid.UUID `json:"jobId"`
	CustomerID     uuid.UUID `json:"customerId"`
	IsSatisfied    bool      `json:"isSatisfied"`
	Rating         *int      `json:"rating,omitempty"`
	Comment        string    `json:"comment,omitempty"`
	SubmittedAt    time.Time `json:"submittedAt"`
	JobTitle       string    `json:"jobTitle,omitempty"`
	TechnicianName string    `json:"technicianName,omitempty"`
}

type SubmitFeedbackRequest struct {
	JobID       uuid.UUID `json:"jobId" validate:"required"`
	IsSatisfied bool      `json:"isSatisfied"`
	Rating      *int      `json:"rating" validate:"omitempty,min=1,max=5"`
	Comment     string    `json:"comment" validate:"max=1000"`
}

type FeedbackFilter struct {
	TechnicianID   *uuid.UUID
	TechnicianName string
	JobTitle       string
	Page           PageRequest
}

// RatingSummary aggregates the feedback left on a technician's jobs.
type RatingSummary struct {
	TechnicianID     uuid.UUID `json:"technicianId"`
	TechnicianName   string    `json:"technicianName"`
	AverageRating    float64   `json:"averageRating"`
	TotalFeedbacks   int       `json:"totalFeedbacks"`
	RatedFeedbacks   int       `json:"ratedFeedbacks"`
	SatisfactionRate float64   `json:"satisfactionRate"`
}
