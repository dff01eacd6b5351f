package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pledgeboard/internal/auction/domain"
	"pledgeboard/internal/shared/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// SubmitPledgeDTO carries the data needed to place or update a pledge.
type SubmitPledgeDTO struct {
	UserID    uuid.UUID
	AuctionID uuid.UUID
	RoundID   uuid.UUID
	Amount    decimal.Decimal
}

// SubmitPledgeResult pairs the accepted bid with the leaderboard it produced.
type SubmitPledgeResult struct {
	Bid         *domain.Bid        `json:"bid"`
	Leaderboard domain.Leaderboard `json:"leaderboard"`
}

// SubmitPledge runs the full pledge path: eligibility gate, round bounds,
// atomic bid upsert, then leaderboard recompute and broadcast after the
// transaction commits.
func (s *auctionService) SubmitPledge(ctx context.Context, cmd SubmitPledgeDTO) (*SubmitPledgeResult, error) {
	if !cmd.Amount.IsPositive() {
		log.Warn("SubmitPledge: invalid amount",
			zap.String("auctionID", cmd.AuctionID.String()),
			zap.String("userID", cmd.UserID.String()),
			zap.String("amount", cmd.Amount.String()),
		)
		return nil, domain.ErrInvalidAmount
	}

	var stored *domain.Bid
	err := s.store.RunInTx(ctx, func(tx domain.Store) error {
		// Shared lock on the auction row: the round-activity check below
		// must not race a transition that deactivates the round and
		// invalidates its bids under an exclusive lock.
		auction, err := tx.Auctions().GetByIDForShare(ctx, cmd.AuctionID)
		if err != nil {
			return fmt.Errorf("submit pledge: failed to get auction %s: %w", cmd.AuctionID, err)
		}
		if auction.Status != domain.StatusActive {
			return domain.ErrAuctionNotActive
		}

		round, err := tx.Rounds().GetByID(ctx, cmd.RoundID)
		if err != nil {
			return fmt.Errorf("submit pledge: failed to get round %s: %w", cmd.RoundID, err)
		}
		if round.AuctionID != cmd.AuctionID {
			return fmt.Errorf("%w: round %s does not belong to auction %s",
				domain.ErrRoundNotFound, cmd.RoundID, cmd.AuctionID)
		}
		if !round.IsActive {
			return domain.ErrRoundClosed
		}

		// Eligibility gate: fails closed, an infrastructure error denies.
		eligible, err := tx.Participations().HasCompleted(ctx, cmd.UserID, round.ID)
		if err != nil {
			log.Error("SubmitPledge: eligibility check failed, denying",
				zap.String("userID", cmd.UserID.String()),
				zap.String("roundID", round.ID.String()),
				zap.Error(err),
			)
			return fmt.Errorf("%w: eligibility check error", domain.ErrNotEligible)
		}
		if !eligible {
			return domain.ErrNotEligible
		}

		if err := round.ValidatePledge(cmd.Amount); err != nil {
			return err
		}

		bid := domain.NewBid(uuid.New(), cmd.UserID, cmd.AuctionID, round.ID, cmd.Amount, time.Now().UTC())
		stored, err = tx.Bids().UpsertValid(ctx, bid)
		if err != nil {
			return fmt.Errorf("submit pledge: failed to upsert bid for round %s: %w", round.ID, err)
		}
		return nil
	})
	if err != nil {
		if !isBusinessError(err) {
			log.Error("SubmitPledge: transaction failed",
				zap.String("auctionID", cmd.AuctionID.String()),
				zap.String("userID", cmd.UserID.String()),
				zap.Error(err),
			)
		}
		return nil, err
	}

	log.Info("Pledge accepted",
		zap.String("auctionID", cmd.AuctionID.String()),
		zap.String("roundID", cmd.RoundID.String()),
		zap.String("userID", cmd.UserID.String()),
		zap.String("amount", cmd.Amount.String()),
	)

	lb, lbErr := s.GetLeaderboard(ctx, cmd.AuctionID, cmd.UserID)
	if lbErr != nil {
		// The bid is committed; a leaderboard read failure degrades the
		// response but must not fail the submission.
		log.Warn("SubmitPledge: leaderboard recompute failed after commit",
			zap.String("auctionID", cmd.AuctionID.String()),
			zap.Error(lbErr),
		)
		lb = domain.EmptyLeaderboard()
	} else {
		s.broadcaster.BroadcastLeaderboard(cmd.AuctionID, anonymized(lb))
	}

	return &SubmitPledgeResult{Bid: stored, Leaderboard: lb}, nil
}

// GetLeaderboard ranks the current active round. No active round, or a
// round with zero valid bids, yields the empty leaderboard without error.
func (s *auctionService) GetLeaderboard(ctx context.Context, auctionID, viewerID uuid.UUID) (domain.Leaderboard, error) {
	round, err := s.store.Rounds().GetActiveByAuction(ctx, auctionID)
	if err != nil {
		if errors.Is(err, domain.ErrRoundNotFound) {
			return domain.EmptyLeaderboard(), nil
		}
		return domain.Leaderboard{}, fmt.Errorf("get leaderboard: failed to get active round for auction %s: %w", auctionID, err)
	}

	bids, err := s.store.Bids().ListValidByRound(ctx, round.ID)
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("get leaderboard: failed to list bids for round %s: %w", round.ID, err)
	}

	return domain.Rank(round, bids, s.topK, viewerID), nil
}

// anonymized strips viewer-private fields before fan-out; each observer's
// own standing is disclosed only on their direct reads.
func anonymized(lb domain.Leaderboard) domain.Leaderboard {
	lb.ViewerPosition = 0
	lb.ViewerInTopK = false
	lb.ViewerBid = nil
	entries := make([]domain.LeaderboardEntry, len(lb.TopBids))
	copy(entries, lb.TopBids)
	for i := range entries {
		entries[i].IsCurrentViewer = false
	}
	lb.TopBids = entries
	return lb
}

// isBusinessError reports whether err is an expected business-rule
// rejection rather than an infrastructure failure.
func isBusinessError(err error) bool {
	for _, sentinel := range []error{
		domain.ErrNotEligible,
		domain.ErrRoundClosed,
		domain.ErrOutOfBounds,
		domain.ErrInvalidAmount,
		domain.ErrAuctionNotActive,
		domain.ErrAlreadyActive,
		domain.ErrMissingPledgeBounds,
		domain.ErrInvalidBounds,
		domain.ErrNoBids,
		domain.ErrAuctionNotFound,
		domain.ErrRoundNotFound,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
