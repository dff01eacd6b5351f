package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus tracks the lifecycle of an entry-fee payment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// Participation records that a user paid (or attempted to pay) the
// entry fee for a specific round. A completed participation never
// transitions back; a failed one may be retried via upsert.
type Participation struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	AuctionID     uuid.UUID
	RoundID       uuid.UUID
	FeePaid       decimal.Decimal
	PaymentStatus PaymentStatus
	PaidAt        *time.Time
	CreatedAt     time.Time
}

func NewParticipation(id, userID, auctionID, roundID uuid.UUID, feePaid decimal.Decimal) *Participation {
	return &Participation{
		ID:            id,
		UserID:        userID,
		AuctionID:     auctionID,
		RoundID:       roundID,
		FeePaid:       feePaid,
		PaymentStatus: PaymentPending,
	}
}

// Complete marks the fee as confirmed paid.
func (p *Participation) Complete(paidAt time.Time) {
	p.PaymentStatus = PaymentCompleted
	p.PaidAt = &paidAt
}

// Fail marks the attempt failed unless the payment already completed.
func (p *Participation) Fail() {
	if p.PaymentStatus == PaymentCompleted {
		return
	}
	p.PaymentStatus = PaymentFailed
}
