package memory

import (
	"context"
	"testing"
	"time"

	"pledgeboard/internal/auction/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestBidUpsertValid(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	userID := uuid.New()
	auctionID := uuid.New()
	roundID := uuid.New()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first, err := store.Bids().UpsertValid(ctx,
		domain.NewBid(uuid.New(), userID, auctionID, roundID, decimal.NewFromInt(200), at))
	require.NoError(t, err)

	second, err := store.Bids().UpsertValid(ctx,
		domain.NewBid(uuid.New(), userID, auctionID, roundID, decimal.NewFromInt(150), at.Add(time.Minute)))
	require.NoError(t, err)

	// The resubmission lands on the existing row.
	require.Equal(t, first.ID, second.ID)
	require.True(t, second.PledgeAmount.Equal(decimal.NewFromInt(150)))
	require.True(t, second.SubmittedAt.Equal(at.Add(time.Minute)))

	bids, err := store.Bids().ListValidByRound(ctx, roundID)
	require.NoError(t, err)
	require.Len(t, bids, 1)

	// An invalidated bid does not absorb a new submission.
	require.NoError(t, store.Bids().InvalidateAllForAuction(ctx, auctionID))
	third, err := store.Bids().UpsertValid(ctx,
		domain.NewBid(uuid.New(), userID, auctionID, roundID, decimal.NewFromInt(300), at.Add(2*time.Minute)))
	require.NoError(t, err)
	require.NotEqual(t, first.ID, third.ID)

	all, err := store.Bids().ListByAuction(ctx, auctionID)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestParticipationUpsertNeverDowngrades(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	userID := uuid.New()
	auctionID := uuid.New()
	roundID := uuid.New()

	completed := domain.NewParticipation(uuid.New(), userID, auctionID, roundID, decimal.NewFromInt(10))
	completed.Complete(time.Now().UTC())
	require.NoError(t, store.Participations().Upsert(ctx, completed))

	failed := domain.NewParticipation(uuid.New(), userID, auctionID, roundID, decimal.NewFromInt(10))
	failed.Fail()
	require.NoError(t, store.Participations().Upsert(ctx, failed))

	ok, err := store.Participations().HasCompleted(ctx, userID, roundID)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRunInTxJoinsNestedCalls(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	auctionID := uuid.New()

	err := store.RunInTx(ctx, func(tx domain.Store) error {
		a := domain.NewAuction(auctionID, "nested", decimal.NewFromInt(100), decimal.NewFromInt(10))
		if err := tx.Auctions().Save(ctx, a); err != nil {
			return err
		}
		// A nested transaction must not deadlock against the outer one.
		return tx.RunInTx(ctx, func(inner domain.Store) error {
			_, err := inner.Auctions().GetByID(ctx, auctionID)
			return err
		})
	})
	require.NoError(t, err)
}

func TestRoundQueries(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	auctionID := uuid.New()
	now := time.Now().UTC()

	params := domain.RoundParams{
		BasePrice: decimal.NewFromInt(100),
		MinPledge: decimal.NewFromInt(100),
		MaxPledge: decimal.NewFromInt(500),
		Duration:  time.Hour,
	}
	r1 := domain.NewRound(uuid.New(), auctionID, 1, params, now)
	r1.IsActive = false
	r2 := domain.NewRound(uuid.New(), auctionID, 2, params, now)
	require.NoError(t, store.Rounds().Save(ctx, r1))
	require.NoError(t, store.Rounds().Save(ctx, r2))

	active, err := store.Rounds().GetActiveByAuction(ctx, auctionID)
	require.NoError(t, err)
	require.Equal(t, r2.ID, active.ID)

	last, err := store.Rounds().GetLastByAuction(ctx, auctionID)
	require.NoError(t, err)
	require.Equal(t, 2, last.RoundNumber)

	rounds, err := store.Rounds().ListByAuction(ctx, auctionID)
	require.NoError(t, err)
	require.Len(t, rounds, 2)
	require.Equal(t, 1, rounds[0].RoundNumber)

	_, err = store.Rounds().GetActiveByAuction(ctx, uuid.New())
	require.ErrorIs(t, err, domain.ErrRoundNotFound)
}
