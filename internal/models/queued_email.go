package models

import (
	"time"

	"github.com/google/uuid"
)

// QueuedEmail is an outbound message waiting for the drain worker.
type QueuedEmail struct {
	ID             uuid.UUID  `json:"id"`
	To             string     `json:"to"`
	Subject        string     `json:"subject"`
	Body           string     `json:"body"`
	IsSent         bool       `json:"isSent"`
	SentAt         *time.Time `json:"sentAt,omitempty"`
	RetryCount     int        `json:"retryCount"`
	LastError      string     `json:"lastError,omitempty"`
	ClaimedBy      string     `json:"claimedBy,omitempty"`
	ClaimedAt      *time.Time `json:"claimedAt,omitempty"`
	DeadLetteredAt *time.Time `json:"deadLetteredAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}
