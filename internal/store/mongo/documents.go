package mongo

import (
	"fmt"
	"time"

	"github.com/aimerfeng/ChallengeHive/internal/models"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type userDoc struct {
	Email       string    `bson:"_id"`
	Role        string    `bson:"role"`
	DisplayName string    `bson:"displayName"`
	PhotoURL    string    `bson:"photoURL"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

func toUserDoc(u *models.User) userDoc {
	return userDoc{
		Email:       u.Email,
		Role:        string(u.Role),
		DisplayName: u.DisplayName,
		PhotoURL:    u.PhotoURL,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func (d *userDoc) model() *models.User {
	return &models.User{
		Email:       d.Email,
		Role:        models.Role(d.Role),
		DisplayName: d.DisplayName,
		PhotoURL:    d.PhotoURL,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type requestDoc struct {
	ID          string     `bson:"_id"`
	Email       string     `bson:"email"`
	DisplayName string     `bson:"displayName"`
	PhotoURL    string     `bson:"photoURL"`
	Status      string     `bson:"status"`
	CreatedAt   time.Time  `bson:"createdAt"`
	DecidedAt   *time.Time `bson:"decidedAt,omitempty"`
}

func toRequestDoc(r *models.CreatorRequest) requestDoc {
	return requestDoc{
		ID:          r.ID,
		Email:       r.Email,
		DisplayName: r.DisplayName,
		PhotoURL:    r.PhotoURL,
		Status:      string(r.Status),
		CreatedAt:   r.CreatedAt,
		DecidedAt:   r.DecidedAt,
	}
}

func (d *requestDoc) model() *models.CreatorRequest {
	return &models.CreatorRequest{
		ID:          d.ID,
		Email:       d.Email,
		DisplayName: d.DisplayName,
		PhotoURL:    d.PhotoURL,
		Status:      models.CreatorRequestStatus(d.Status),
		CreatedAt:   d.CreatedAt,
		DecidedAt:   d.DecidedAt,
	}
}

type participantDoc struct {
	Email         string              `bson:"participantEmail"`
	Name          string              `bson:"participantName"`
	Photo         string              `bson:"participantPhoto"`
	TransactionID string              `bson:"transactionId"`
	PaymentStatus string              `bson:"paymentStatus"`
	TaskInfo      []models.Submission `bson:"taskInfo"`
	EnrolledAt    time.Time           `bson:"enrolledAt"`
}

func toParticipantDoc(p models.Participant) participantDoc {
	taskInfo := p.TaskInfo
	if taskInfo == nil {
		taskInfo = []models.Submission{}
	}
	return participantDoc{
		Email:         p.Email,
		Name:          p.Name,
		Photo:         p.Photo,
		TransactionID: p.TransactionID,
		PaymentStatus: p.PaymentStatus,
		TaskInfo:      taskInfo,
		EnrolledAt:    p.EnrolledAt,
	}
}

type contestDoc struct {
	ID              string               `bson:"_id"`
	CreatorEmail    string               `bson:"creatorEmail"`
	CreatorName     string               `bson:"creatorName"`
	CreatorPhoto    string               `bson:"creatorPhoto"`
	Name            string               `bson:"contestName"`
	Image           string               `bson:"image"`
	Description     string               `bson:"description"`
	ContestType     string               `bson:"contestType"`
	TaskInstruction string               `bson:"taskInstruction"`
	PrizeMoney      primitive.Decimal128 `bson:"prizeMoney"`
	Price           primitive.Decimal128 `bson:"price"`
	Deadline        time.Time            `bson:"deadline"`
	Status          string               `bson:"status"`
	Participants    []participantDoc     `bson:"participants"`
	Winner          *string              `bson:"winner"`
	CreatedAt       time.Time            `bson:"createdAt"`
	UpdatedAt       time.Time            `bson:"updatedAt"`
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("invalid amount %s: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid stored amount %s: %w", v, err)
	}
	return d, nil
}

func toContestDoc(c *models.Contest) (*contestDoc, error) {
	prize, err := toDecimal128(c.PrizeMoney)
	if err != nil {
		return nil, err
	}
	price, err := toDecimal128(c.Price)
	if err != nil {
		return nil, err
	}

	participants := make([]participantDoc, len(c.Participants))
	for i, p := range c.Participants {
		participants[i] = toParticipantDoc(p)
	}

	return &contestDoc{
		ID:              c.ID,
		CreatorEmail:    c.CreatorEmail,
		CreatorName:     c.CreatorName,
		CreatorPhoto:    c.CreatorPhoto,
		Name:            c.Name,
		Image:           c.Image,
		Description:     c.Description,
		ContestType:     c.ContestType,
		TaskInstruction: c.TaskInstruction,
		PrizeMoney:      prize,
		Price:           price,
		Deadline:        c.Deadline,
		Status:          string(c.Status),
		Participants:    participants,
		Winner:          c.Winner,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}, nil
}

func (d *contestDoc) model() (*models.Contest, error) {
	prize, err := fromDecimal128(d.PrizeMoney)
	if err != nil {
		return nil, err
	}
	price, err := fromDecimal128(d.Price)
	if err != nil {
		return nil, err
	}

	participants := make([]models.Participant, len(d.Participants))
	for i, p := range d.Participants {
		taskInfo := p.TaskInfo
		if taskInfo == nil {
			taskInfo = []models.Submission{}
		}
		participants[i] = models.Participant{
			Email:         p.Email,
			Name:          p.Name,
			Photo:         p.Photo,
			TransactionID: p.TransactionID,
			PaymentStatus: p.PaymentStatus,
			TaskInfo:      taskInfo,
			EnrolledAt:    p.EnrolledAt,
		}
	}

	return &models.Contest{
		ID:              d.ID,
		CreatorEmail:    d.CreatorEmail,
		CreatorName:     d.CreatorName,
		CreatorPhoto:    d.CreatorPhoto,
		Name:            d.Name,
		Image:           d.Image,
		Description:     d.Description,
		ContestType:     d.ContestType,
		TaskInstruction: d.TaskInstruction,
		PrizeMoney:      prize,
		Price:           price,
		Deadline:        d.Deadline,
		Status:          models.ContestStatus(d.Status),
		Participants:    participants,
		Winner:          d.Winner,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}, nil
}

// patchDoc translates a contest patch into a $set document
func patchDoc(p models.ContestPatch) (bson.M, error) {
	set := bson.M{}
	if p.Name != nil {
		set["contestName"] = *p.Name
	}
	if p.Image != nil {
		set["image"] = *p.Image
	}
	if p.Description != nil {
		set["description"] = *p.Description
	}
	if p.ContestType != nil {
		set["contestType"] = *p.ContestType
	}
	if p.TaskInstruction != nil {
		set["taskInstruction"] = *p.TaskInstruction
	}
	if p.PrizeMoney != nil {
		v, err := toDecimal128(*p.PrizeMoney)
		if err != nil {
			return nil, err
		}
		set["prizeMoney"] = v
	}
	if p.Price != nil {
		v, err := toDecimal128(*p.Price)
		if err != nil {
			return nil, err
		}
		set["price"] = v
	}
	if p.Deadline != nil {
		set["deadline"] = *p.Deadline
	}
	return set, nil
}

type checkoutDoc struct {
	SessionID        string     `bson:"_id"`
	ContestID        string     `bson:"contestId"`
	ParticipantEmail string     `bson:"participantEmail"`
	ParticipantName  string     `bson:"participantName"`
	ParticipantPhoto string     `bson:"participantPhoto"`
	AmountMinor      int64      `bson:"amountMinor"`
	Currency         string     `bson:"currency"`
	Status           string     `bson:"status"`
	CreatedAt        time.Time  `bson:"createdAt"`
	CompletedAt      *time.Time `bson:"completedAt,omitempty"`
}

func toCheckoutDoc(r *models.CheckoutRecord) checkoutDoc {
	return checkoutDoc{
		SessionID:        r.SessionID,
		ContestID:        r.ContestID,
		ParticipantEmail: r.ParticipantEmail,
		ParticipantName:  r.ParticipantName,
		ParticipantPhoto: r.ParticipantPhoto,
		AmountMinor:      r.AmountMinor,
		Currency:         r.Currency,
		Status:           string(r.Status),
		CreatedAt:        r.CreatedAt,
		CompletedAt:      r.CompletedAt,
	}
}

func (d *checkoutDoc) model() *models.CheckoutRecord {
	return &models.CheckoutRecord{
		SessionID:        d.SessionID,
		ContestID:        d.ContestID,
		ParticipantEmail: d.ParticipantEmail,
		ParticipantName:  d.ParticipantName,
		ParticipantPhoto: d.ParticipantPhoto,
		AmountMinor:      d.AmountMinor,
		Currency:         d.Currency,
		Status:           models.CheckoutStatus(d.Status),
		CreatedAt:        d.CreatedAt,
		CompletedAt:      d.CompletedAt,
	}
}
