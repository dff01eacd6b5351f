package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Round is one time-boxed bidding contest within an auction.
type Round struct {
	ID               uuid.UUID
	AuctionID        uuid.UUID
	RoundNumber      int
	BasePrice        decimal.Decimal
	MinPledge        decimal.Decimal
	MaxPledge        decimal.Decimal
	ParticipationFee decimal.Decimal
	StartTime        time.Time
	EndTime          time.Time
	IsActive         bool
	CreatedAt        time.Time
}

// RoundParams carries the admin-supplied settings for a new round.
type RoundParams struct {
	BasePrice        decimal.Decimal
	MinPledge        decimal.Decimal
	MaxPledge        decimal.Decimal
	ParticipationFee decimal.Decimal
	Duration         time.Duration
}

// Validate checks the internal ordering of the params and, when prev is
// not nil, that the base price does not regress from the previous round.
func (p RoundParams) Validate(prev *Round) error {
	if prev != nil && p.BasePrice.LessThan(prev.BasePrice) {
		return fmt.Errorf("%w: new base price %s cannot be lower than previous round's %s",
			ErrInvalidBounds, p.BasePrice, prev.BasePrice)
	}
	if p.MinPledge.LessThan(p.BasePrice) {
		return fmt.Errorf("%w: min_pledge %s cannot be lower than base_price %s",
			ErrInvalidBounds, p.MinPledge, p.BasePrice)
	}
	if !p.MaxPledge.GreaterThan(p.MinPledge) {
		return fmt.Errorf("%w: max_pledge %s must be greater than min_pledge %s",
			ErrInvalidBounds, p.MaxPledge, p.MinPledge)
	}
	return nil
}

// NewRound builds an active round from validated params. The caller is
// responsible for having validated params against the previous round.
func NewRound(id, auctionID uuid.UUID, roundNumber int, params RoundParams, now time.Time) *Round {
	return &Round{
		ID:               id,
		AuctionID:        auctionID,
		RoundNumber:      roundNumber,
		BasePrice:        params.BasePrice,
		MinPledge:        params.MinPledge,
		MaxPledge:        params.MaxPledge,
		ParticipationFee: params.ParticipationFee,
		StartTime:        now,
		EndTime:          now.Add(params.Duration),
		IsActive:         true,
	}
}

// ValidatePledge enforces the ordering required of any pledge submitted
// to this round. Activity of the round is checked separately.
func (r *Round) ValidatePledge(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if amount.LessThan(r.MinPledge) {
		return fmt.Errorf("%w: minimum pledge is %s", ErrOutOfBounds, r.MinPledge)
	}
	if amount.GreaterThan(r.MaxPledge) {
		return fmt.Errorf("%w: maximum pledge is %s", ErrOutOfBounds, r.MaxPledge)
	}
	return nil
}
