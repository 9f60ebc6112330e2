package models

import (
	"time"
)

// CheckoutStatus represents the state of a checkout record
type CheckoutStatus string

const (
	CheckoutStatusOpen      CheckoutStatus = "open"
	CheckoutStatusCompleted CheckoutStatus = "completed"
)

// CheckoutRecord binds a payment processor session to the caller that created it.
// Confirmation derives the participant identity from this record, not from
// processor metadata.
type CheckoutRecord struct {
	SessionID        string         `json:"sessionId" db:"session_id"`
	ContestID        string         `json:"contestId" db:"contest_id"`
	ParticipantEmail string         `json:"participantEmail" db:"participant_email"`
	ParticipantName  string         `json:"participantName" db:"participant_name"`
	ParticipantPhoto string         `json:"participantPhoto" db:"participant_photo"`
	AmountMinor      int64          `json:"amountMinor" db:"amount_minor"`
	Currency         string         `json:"currency" db:"currency"`
	Status           CheckoutStatus `json:"status" db:"status"`
	CreatedAt        time.Time      `json:"createdAt" db:"created_at"`
	CompletedAt      *time.Time     `json:"completedAt,omitempty" db:"completed_at"`
}
