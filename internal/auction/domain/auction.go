package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuctionStatus represents the lifecycle state of an auction.
type AuctionStatus string

const (
	StatusDraft  AuctionStatus = "draft"
	StatusActive AuctionStatus = "active"
	StatusClosed AuctionStatus = "closed"
)

// Auction is one item/lot under round-based bidding.
// Winner and WinningAmount are set together, only when Status is closed.
type Auction struct {
	ID               uuid.UUID
	Title            string
	BasePrice        decimal.Decimal
	ParticipationFee decimal.Decimal
	MinPledge        *decimal.Decimal
	MaxPledge        *decimal.Decimal
	Status           AuctionStatus
	WinnerID         *uuid.UUID
	WinningAmount    *decimal.Decimal
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func NewAuction(id uuid.UUID, title string, basePrice, participationFee decimal.Decimal) *Auction {
	return &Auction{
		ID:               id,
		Title:            title,
		BasePrice:        basePrice,
		ParticipationFee: participationFee,
		Status:           StatusDraft,
	}
}

// Activate moves a draft auction to active. The pledge range must be
// configured on the auction and consistent with its base price; Round 1
// is created from these bounds by the lifecycle use case.
func (a *Auction) Activate() error {
	if a.Status == StatusActive {
		return ErrAlreadyActive
	}
	if a.Status != StatusDraft {
		return fmt.Errorf("%w: cannot activate from status %q", ErrAuctionNotActive, a.Status)
	}
	if a.MinPledge == nil || a.MaxPledge == nil {
		return ErrMissingPledgeBounds
	}
	if a.MinPledge.LessThan(a.BasePrice) {
		return fmt.Errorf("%w: min_pledge %s is below base price %s",
			ErrInvalidBounds, a.MinPledge, a.BasePrice)
	}
	if !a.MaxPledge.GreaterThan(*a.MinPledge) {
		return fmt.Errorf("%w: max_pledge %s must be greater than min_pledge %s",
			ErrInvalidBounds, a.MaxPledge, a.MinPledge)
	}
	a.Status = StatusActive
	return nil
}

// Close records the resolved winner on the auction. Both winner fields
// are written together; callers must have computed the result first.
func (a *Auction) Close(winnerID uuid.UUID, winningAmount decimal.Decimal) error {
	if a.Status != StatusActive {
		return fmt.Errorf("%w: cannot close from status %q", ErrAuctionNotActive, a.Status)
	}
	a.Status = StatusClosed
	a.WinnerID = &winnerID
	a.WinningAmount = &winningAmount
	return nil
}
