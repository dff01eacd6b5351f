package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pledgeboard/internal/auction/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// firstRoundDuration is how long Round 1 stays open when created on
// activation; subsequent rounds carry an explicit duration.
const firstRoundDuration = 365 * 24 * time.Hour

// RoundSummary reports a round's standing at the moment it was closed.
type RoundSummary struct {
	RoundID       uuid.UUID       `json:"round_id"`
	RoundNumber   int             `json:"round_number"`
	ValidBidCount int             `json:"valid_bid_count"`
	HighestAmount decimal.Decimal `json:"highest_amount"`
	ClosedAt      time.Time       `json:"closed_at"`
}

// ActivateAuction moves a draft auction to active and creates Round 1
// from the auction's configured pledge bounds if no round exists yet.
func (s *auctionService) ActivateAuction(ctx context.Context, auctionID uuid.UUID) (*domain.Auction, error) {
	var (
		auction  *domain.Auction
		newRound *domain.Round
	)
	err := s.store.RunInTx(ctx, func(tx domain.Store) error {
		var err error
		auction, err = tx.Auctions().GetByIDForUpdate(ctx, auctionID)
		if err != nil {
			return fmt.Errorf("activate auction: failed to get auction %s: %w", auctionID, err)
		}
		if err = auction.Activate(); err != nil {
			return err
		}
		if err = tx.Auctions().Save(ctx, auction); err != nil {
			return fmt.Errorf("activate auction: failed to save auction %s: %w", auctionID, err)
		}

		_, err = tx.Rounds().GetLastByAuction(ctx, auctionID)
		if err == nil {
			return nil // a round already exists, nothing more to do
		}
		if !errors.Is(err, domain.ErrRoundNotFound) {
			return fmt.Errorf("activate auction: failed to check rounds for auction %s: %w", auctionID, err)
		}

		newRound = domain.NewRound(uuid.New(), auctionID, 1, domain.RoundParams{
			BasePrice:        auction.BasePrice,
			MinPledge:        *auction.MinPledge,
			MaxPledge:        *auction.MaxPledge,
			ParticipationFee: auction.ParticipationFee,
			Duration:         firstRoundDuration,
		}, time.Now().UTC())
		if err = tx.Rounds().Save(ctx, newRound); err != nil {
			return fmt.Errorf("activate auction: failed to create round 1 for auction %s: %w", auctionID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("Auction activated",
		zap.String("auctionID", auctionID.String()),
		zap.Bool("roundCreated", newRound != nil),
	)
	if newRound != nil {
		s.broadcaster.BroadcastRoundChanged(auctionID, newRound)
	}
	return auction, nil
}

// CreateNextRound closes all prior rounds, invalidates every bid of the
// auction, and opens round N+1, as one atomic unit. Each round is an
// independent contest; stale validity would corrupt the per-round ranking.
func (s *auctionService) CreateNextRound(ctx context.Context, auctionID uuid.UUID, params domain.RoundParams) (*domain.Round, error) {
	var newRound *domain.Round
	err := s.store.RunInTx(ctx, func(tx domain.Store) error {
		auction, err := tx.Auctions().GetByIDForUpdate(ctx, auctionID)
		if err != nil {
			return fmt.Errorf("create next round: failed to get auction %s: %w", auctionID, err)
		}
		if auction.Status != domain.StatusActive {
			return domain.ErrAuctionNotActive
		}

		lastRound, err := tx.Rounds().GetLastByAuction(ctx, auctionID)
		if err != nil && !errors.Is(err, domain.ErrRoundNotFound) {
			return fmt.Errorf("create next round: failed to get last round for auction %s: %w", auctionID, err)
		}
		if err = params.Validate(lastRound); err != nil {
			return err
		}
		nextNumber := 1
		if lastRound != nil {
			nextNumber = lastRound.RoundNumber + 1
		}

		if err = tx.Rounds().DeactivateAllForAuction(ctx, auctionID); err != nil {
			return fmt.Errorf("create next round: failed to deactivate rounds for auction %s: %w", auctionID, err)
		}
		if err = tx.Bids().InvalidateAllForAuction(ctx, auctionID); err != nil {
			return fmt.Errorf("create next round: failed to invalidate bids for auction %s: %w", auctionID, err)
		}

		newRound = domain.NewRound(uuid.New(), auctionID, nextNumber, params, time.Now().UTC())
		if err = tx.Rounds().Save(ctx, newRound); err != nil {
			return fmt.Errorf("create next round: failed to save round %d for auction %s: %w", nextNumber, auctionID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("Round created",
		zap.String("auctionID", auctionID.String()),
		zap.Int("roundNumber", newRound.RoundNumber),
		zap.String("basePrice", newRound.BasePrice.String()),
	)
	s.broadcaster.BroadcastRoundChanged(auctionID, newRound)
	// Fresh round means a reset board for every observer.
	lb := domain.EmptyLeaderboard()
	lb.RoundNumber = newRound.RoundNumber
	lb.RoundBasePrice = newRound.BasePrice
	s.broadcaster.BroadcastLeaderboard(auctionID, lb)
	return newRound, nil
}

// CloseRound deactivates the round without creating a successor and
// without invalidating bids: the historical pledge values stay intact
// for winner averaging.
func (s *auctionService) CloseRound(ctx context.Context, roundID uuid.UUID) (*RoundSummary, error) {
	var (
		summary *RoundSummary
		round   *domain.Round
	)
	err := s.store.RunInTx(ctx, func(tx domain.Store) error {
		var err error
		round, err = tx.Rounds().GetByID(ctx, roundID)
		if err != nil {
			return fmt.Errorf("close round: failed to get round %s: %w", roundID, err)
		}
		// Lock the auction row so the close cannot interleave with a
		// concurrent create_next_round or close_auction.
		if _, err = tx.Auctions().GetByIDForUpdate(ctx, round.AuctionID); err != nil {
			return fmt.Errorf("close round: failed to lock auction %s: %w", round.AuctionID, err)
		}
		if !round.IsActive {
			return domain.ErrRoundClosed
		}

		bids, err := tx.Bids().ListValidByRound(ctx, round.ID)
		if err != nil {
			return fmt.Errorf("close round: failed to list bids for round %s: %w", round.ID, err)
		}
		highest := decimal.Zero
		for _, b := range bids {
			if b.PledgeAmount.GreaterThan(highest) {
				highest = b.PledgeAmount
			}
		}

		round.IsActive = false
		if err = tx.Rounds().Save(ctx, round); err != nil {
			return fmt.Errorf("close round: failed to save round %s: %w", round.ID, err)
		}

		summary = &RoundSummary{
			RoundID:       round.ID,
			RoundNumber:   round.RoundNumber,
			ValidBidCount: len(bids),
			HighestAmount: highest,
			ClosedAt:      time.Now().UTC(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("Round closed",
		zap.String("roundID", roundID.String()),
		zap.Int("roundNumber", summary.RoundNumber),
		zap.Int("validBids", summary.ValidBidCount),
	)
	s.broadcaster.BroadcastRoundChanged(round.AuctionID, round)
	return summary, nil
}

// CloseAuction resolves the winner over every round's pledge history,
// persists winner and winning_amount, and becomes a no-op returning the
// persisted result on repeat invocations.
func (s *auctionService) CloseAuction(ctx context.Context, auctionID uuid.UUID) (*domain.WinnerResult, error) {
	var (
		result        *domain.WinnerResult
		alreadyClosed bool
	)
	err := s.store.RunInTx(ctx, func(tx domain.Store) error {
		auction, err := tx.Auctions().GetByIDForUpdate(ctx, auctionID)
		if err != nil {
			return fmt.Errorf("close auction: failed to get auction %s: %w", auctionID, err)
		}
		if auction.Status == domain.StatusClosed {
			// Resolution happened at close time; return the same full
			// breakdown, with the persisted winner staying authoritative.
			alreadyClosed = true
			result = s.reclosedResult(ctx, tx, auction)
			return nil
		}
		if auction.Status != domain.StatusActive {
			return domain.ErrAuctionNotActive
		}

		result, err = s.resolve(ctx, tx, auction)
		if err != nil {
			return err
		}

		if err = auction.Close(result.Winner.UserID, result.Winner.AveragePledge); err != nil {
			return err
		}
		if err = tx.Auctions().Save(ctx, auction); err != nil {
			return fmt.Errorf("close auction: failed to save auction %s: %w", auctionID, err)
		}

		if winningBid := latestBidOf(ctx, tx, auctionID, result.Winner.UserID); winningBid != nil {
			if err = tx.Bids().MarkWinner(ctx, winningBid.ID); err != nil {
				return fmt.Errorf("close auction: failed to mark winning bid %s: %w", winningBid.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if alreadyClosed {
		return result, nil
	}

	log.Info("Auction closed",
		zap.String("auctionID", auctionID.String()),
		zap.String("winnerID", result.Winner.UserID.String()),
		zap.String("winningAmount", result.Winner.AveragePledge.String()),
	)
	s.broadcaster.BroadcastWinner(auctionID, result)
	return result, nil
}

// WinnerPreview computes the full cross-round breakdown without closing
// the auction or persisting anything.
func (s *auctionService) WinnerPreview(ctx context.Context, auctionID uuid.UUID) (*domain.WinnerResult, error) {
	auction, err := s.store.Auctions().GetByID(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("winner preview: failed to get auction %s: %w", auctionID, err)
	}
	return s.resolve(ctx, s.store, auction)
}

func (s *auctionService) resolve(ctx context.Context, tx domain.Store, auction *domain.Auction) (*domain.WinnerResult, error) {
	rounds, err := tx.Rounds().ListByAuction(ctx, auction.ID)
	if err != nil {
		return nil, fmt.Errorf("winner resolution: failed to list rounds for auction %s: %w", auction.ID, err)
	}
	bids, err := tx.Bids().ListByAuction(ctx, auction.ID)
	if err != nil {
		return nil, fmt.Errorf("winner resolution: failed to list bids for auction %s: %w", auction.ID, err)
	}
	participations, err := tx.Participations().ListCompletedByAuction(ctx, auction.ID)
	if err != nil {
		return nil, fmt.Errorf("winner resolution: failed to list participants for auction %s: %w", auction.ID, err)
	}
	participantIDs := make([]uuid.UUID, 0, len(participations))
	for _, p := range participations {
		participantIDs = append(participantIDs, p.UserID)
	}
	return domain.ResolveWinner(auction.ID, rounds, bids, participantIDs)
}

func latestBidOf(ctx context.Context, tx domain.Store, auctionID, userID uuid.UUID) *domain.Bid {
	bids, err := tx.Bids().ListByAuction(ctx, auctionID)
	if err != nil {
		log.Warn("close auction: could not load bids to mark winner", zap.Error(err))
		return nil
	}
	var latest *domain.Bid
	for _, b := range bids {
		if b.UserID != userID {
			continue
		}
		if latest == nil || b.SubmittedAt.After(latest.SubmittedAt) {
			latest = b
		}
	}
	return latest
}

// reclosedResult rebuilds the full per-round breakdown for a repeat
// close call. The bid history is immutable once the auction is closed,
// so re-deriving yields the close-time candidates; the persisted winner
// and amount override whatever the re-derivation ranks first.
func (s *auctionService) reclosedResult(ctx context.Context, tx domain.Store, auction *domain.Auction) *domain.WinnerResult {
	result, err := s.resolve(ctx, tx, auction)
	if err != nil {
		log.Warn("close auction: breakdown re-derivation failed, returning persisted winner only",
			zap.String("auctionID", auction.ID.String()),
			zap.Error(err),
		)
		return persistedResult(auction)
	}
	if auction.WinnerID != nil {
		for i := range result.Candidates {
			if result.Candidates[i].UserID == *auction.WinnerID {
				if auction.WinningAmount != nil {
					result.Candidates[i].AveragePledge = *auction.WinningAmount
				}
				result.Winner = &result.Candidates[i]
				break
			}
		}
	}
	return result
}

// persistedResult reconstructs the winner fields recorded at close time,
// used when the bid history cannot be read.
func persistedResult(auction *domain.Auction) *domain.WinnerResult {
	result := &domain.WinnerResult{AuctionID: auction.ID}
	if auction.WinnerID != nil && auction.WinningAmount != nil {
		result.Winner = &domain.WinnerCandidate{
			UserID:        *auction.WinnerID,
			AveragePledge: *auction.WinningAmount,
		}
	}
	return result
}

// ListRounds returns every round of the auction ordered by round number.
func (s *auctionService) ListRounds(ctx context.Context, auctionID uuid.UUID) ([]*domain.Round, error) {
	rounds, err := s.store.Rounds().ListByAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("list rounds: failed for auction %s: %w", auctionID, err)
	}
	return rounds, nil
}

// ListParticipants returns the completed participations of the auction.
func (s *auctionService) ListParticipants(ctx context.Context, auctionID uuid.UUID) ([]*domain.Participation, error) {
	participations, err := s.store.Participations().ListCompletedByAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("list participants: failed for auction %s: %w", auctionID, err)
	}
	return participations, nil
}
