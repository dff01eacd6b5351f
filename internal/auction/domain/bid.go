package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Bid is a user's pledge within a round. At most one valid bid exists
// per (user, round); resubmissions update that bid in place. Rows are
// never deleted, invalidation flips IsValid only.
type Bid struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	AuctionID    uuid.UUID
	RoundID      uuid.UUID
	PledgeAmount decimal.Decimal
	IsValid      bool
	IsWinner     bool
	SubmittedAt  time.Time
	CreatedAt    time.Time
}

// NewBid creates a new valid Bid instance.
func NewBid(id, userID, auctionID, roundID uuid.UUID, amount decimal.Decimal, submittedAt time.Time) *Bid {
	return &Bid{
		ID:           id,
		UserID:       userID,
		AuctionID:    auctionID,
		RoundID:      roundID,
		PledgeAmount: amount,
		IsValid:      true,
		SubmittedAt:  submittedAt,
	}
}
