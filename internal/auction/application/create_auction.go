package application

import (
	"context"
	"fmt"
	"strings"

	"pledgeboard/internal/auction/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateAuctionDTO carries the seller/admin input for a new draft auction.
type CreateAuctionDTO struct {
	Title            string
	BasePrice        decimal.Decimal
	ParticipationFee decimal.Decimal
	MinPledge        *decimal.Decimal
	MaxPledge        *decimal.Decimal
}

// CreateAuction stores a new auction in draft. Pledge bounds may be set
// now or later, but must be present before activation.
func (s *auctionService) CreateAuction(ctx context.Context, cmd CreateAuctionDTO) (*domain.Auction, error) {
	if strings.TrimSpace(cmd.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrInvalidBounds)
	}
	if cmd.BasePrice.IsNegative() || cmd.ParticipationFee.IsNegative() {
		return nil, fmt.Errorf("%w: base price and participation fee cannot be negative", domain.ErrInvalidBounds)
	}

	auction := domain.NewAuction(uuid.New(), cmd.Title, cmd.BasePrice, cmd.ParticipationFee)
	auction.MinPledge = cmd.MinPledge
	auction.MaxPledge = cmd.MaxPledge

	if err := s.store.Auctions().Save(ctx, auction); err != nil {
		return nil, fmt.Errorf("create auction: failed to save: %w", err)
	}

	log.Info("Auction created",
		zap.String("auctionID", auction.ID.String()),
		zap.String("title", auction.Title),
		zap.String("basePrice", auction.BasePrice.String()),
	)
	return auction, nil
}
