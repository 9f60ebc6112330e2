package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ContestStatus represents the review status of a contest
type ContestStatus string

const (
	ContestStatusPending  ContestStatus = "pending"
	ContestStatusApproved ContestStatus = "Approved"
	ContestStatusRejected ContestStatus = "Rejected"
)

// Valid reports whether s is one of the known contest states
func (s ContestStatus) Valid() bool {
	switch s {
	case ContestStatusPending, ContestStatusApproved, ContestStatusRejected:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether an admin may move a contest from s to next.
// Approved and Rejected are terminal.
func (s ContestStatus) CanTransitionTo(next ContestStatus) bool {
	switch s {
	case ContestStatusPending:
		return next == ContestStatusApproved || next == ContestStatusRejected
	case ContestStatusApproved, ContestStatusRejected:
		return false
	default:
		return false
	}
}

// PaymentStatusPaid is the only payment status a participant can hold
const PaymentStatusPaid = "paid"

// Contest represents a creator-owned competition
type Contest struct {
	ID              string          `json:"id" db:"id"`
	CreatorEmail    string          `json:"creatorEmail" db:"creator_email"`
	CreatorName     string          `json:"creatorName" db:"creator_name"`
	CreatorPhoto    string          `json:"creatorPhoto" db:"creator_photo"`
	Name            string          `json:"contestName" db:"name"`
	Image           string          `json:"image" db:"image"`
	Description     string          `json:"description" db:"description"`
	ContestType     string          `json:"contestType" db:"contest_type"`
	TaskInstruction string          `json:"taskInstruction" db:"task_instruction"`
	PrizeMoney      decimal.Decimal `json:"prizeMoney" db:"prize_money"`
	Price           decimal.Decimal `json:"price" db:"price"`
	Deadline        time.Time       `json:"deadline" db:"deadline"`
	Status          ContestStatus   `json:"status" db:"status"`
	Participants    []Participant   `json:"participants"`
	Winner          *string         `json:"winner,omitempty" db:"winner"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time       `json:"updatedAt" db:"updated_at"`
}

// HasParticipant reports whether email is enrolled in the contest
func (c *Contest) HasParticipant(email string) bool {
	for _, p := range c.Participants {
		if p.Email == email {
			return true
		}
	}
	return false
}

// OwnedBy reports whether the contest was created by email
func (c *Contest) OwnedBy(email string) bool {
	return email != "" && c.CreatorEmail == email
}

// Participant is a confirmed, paying entrant embedded in a contest
type Participant struct {
	Email         string       `json:"participantEmail" db:"participant_email"`
	Name          string       `json:"participantName" db:"participant_name"`
	Photo         string       `json:"participantPhoto" db:"participant_photo"`
	TransactionID string       `json:"transactionId" db:"transaction_id"`
	PaymentStatus string       `json:"paymentStatus" db:"payment_status"`
	TaskInfo      []Submission `json:"taskInfo" db:"task_info"`
	EnrolledAt    time.Time    `json:"enrolledAt" db:"enrolled_at"`
}

// Submission is a piece of task evidence submitted by a participant
type Submission struct {
	Content     string    `json:"content" bson:"content"`
	SubmittedAt time.Time `json:"submittedAt" bson:"submittedAt"`
}

// MaxAmount is the largest price or prize a contest may carry. It fits the
// NUMERIC(12,2) columns and Stripe's eight digit unit_amount.
var MaxAmount = decimal.RequireFromString("999999.99")

// AmountInRange reports whether d is a non-negative amount no larger than
// MaxAmount with at most two decimal places
func AmountInRange(d decimal.Decimal) bool {
	return !d.IsNegative() && !d.GreaterThan(MaxAmount) && d.Equal(d.Truncate(2))
}

// ContestPatch holds the editable contest fields; nil fields are left unchanged
type ContestPatch struct {
	Name            *string          `json:"contestName"`
	Image           *string          `json:"image"`
	Description     *string          `json:"description"`
	ContestType     *string          `json:"contestType"`
	TaskInstruction *string          `json:"taskInstruction"`
	PrizeMoney      *decimal.Decimal `json:"prizeMoney"`
	Price           *decimal.Decimal `json:"price"`
	Deadline        *time.Time       `json:"deadline"`
}

// Empty reports whether the patch changes nothing
func (p ContestPatch) Empty() bool {
	return p.Name == nil && p.Image == nil && p.Description == nil && p.ContestType == nil &&
		p.TaskInstruction == nil && p.PrizeMoney == nil && p.Price == nil && p.Deadline == nil
}

// Apply merges the patch into c
func (p ContestPatch) Apply(c *Contest) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Image != nil {
		c.Image = *p.Image
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.ContestType != nil {
		c.ContestType = *p.ContestType
	}
	if p.TaskInstruction != nil {
		c.TaskInstruction = *p.TaskInstruction
	}
	if p.PrizeMoney != nil {
		c.PrizeMoney = *p.PrizeMoney
	}
	if p.Price != nil {
		c.Price = *p.Price
	}
	if p.Deadline != nil {
		c.Deadline = *p.Deadline
	}
}

// ContestFilter selects contests for listing. Zero values mean "any".
type ContestFilter struct {
	Status           ContestStatus
	CreatorEmail     string
	ParticipantEmail string
	WinnerEmail      string
	// WithoutWinner restricts the result to contests with no declared winner
	WithoutWinner bool
	// OrderByDeadline sorts ascending by deadline instead of newest first
	OrderByDeadline bool
}
