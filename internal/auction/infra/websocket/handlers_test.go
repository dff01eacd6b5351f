package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"pledgeboard/internal/auction/application"
	"pledgeboard/internal/auction/domain"
	"pledgeboard/internal/auction/infra/repository/memory"
	sharedws "pledgeboard/internal/shared/websocket"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func seedActiveAuction(t *testing.T) (*memory.Store, application.AuctionService, uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	store := memory.NewStore()
	service := application.NewAuctionService(store, nil, 10)

	min := decimal.NewFromInt(100)
	max := decimal.NewFromInt(500)
	auction, err := service.CreateAuction(ctx, application.CreateAuctionDTO{
		Title:            "art print",
		BasePrice:        decimal.NewFromInt(100),
		ParticipationFee: decimal.NewFromInt(10),
		MinPledge:        &min,
		MaxPledge:        &max,
	})
	require.NoError(t, err)
	_, err = service.ActivateAuction(ctx, auction.ID)
	require.NoError(t, err)

	return store, service, auction.ID
}

func TestLeaderboardSnapshot(t *testing.T) {
	ctx := context.Background()
	store, service, auctionID := seedActiveAuction(t)
	handler := NewAuctionWSHandler(service, sharedws.NewHub())

	round, err := store.Rounds().GetActiveByAuction(ctx, auctionID)
	require.NoError(t, err)

	user := uuid.New()
	p := domain.NewParticipation(uuid.New(), user, auctionID, round.ID, decimal.NewFromInt(10))
	p.Complete(time.Now().UTC())
	require.NoError(t, store.Participations().Upsert(ctx, p))

	_, err = service.SubmitPledge(ctx, application.SubmitPledgeDTO{
		UserID: user, AuctionID: auctionID, RoundID: round.ID,
		Amount: decimal.NewFromInt(250),
	})
	require.NoError(t, err)

	data, err := handler.leaderboardSnapshot(auctionID.String())
	require.NoError(t, err)

	var envelope Envelope
	require.NoError(t, json.Unmarshal(data, &envelope))
	require.Equal(t, MessageTypeLeaderboardUpdate, envelope.Type)

	var lb domain.Leaderboard
	require.NoError(t, json.Unmarshal(envelope.Data, &lb))
	require.Equal(t, 1, lb.TotalParticipants)
	require.Len(t, lb.TopBids, 1)
	require.True(t, lb.TopBids[0].PledgeAmount.Equal(decimal.NewFromInt(250)))
	// The snapshot is the anonymous view.
	require.False(t, lb.ViewerInTopK)
	require.Nil(t, lb.ViewerBid)
	require.False(t, lb.TopBids[0].IsCurrentViewer)
}

func TestLeaderboardSnapshot_InvalidAuctionID(t *testing.T) {
	_, service, _ := seedActiveAuction(t)
	handler := NewAuctionWSHandler(service, sharedws.NewHub())

	_, err := handler.leaderboardSnapshot("not-a-uuid")
	require.Error(t, err)
}

func TestEncodeEnvelope(t *testing.T) {
	payload := ErrorPayload{Error: "unknown message type"}
	data, err := encodeEnvelope(MessageTypeServerError, payload)
	require.NoError(t, err)

	var envelope Envelope
	require.NoError(t, json.Unmarshal(data, &envelope))
	require.Equal(t, MessageTypeServerError, envelope.Type)

	var decoded ErrorPayload
	require.NoError(t, json.Unmarshal(envelope.Data, &decoded))
	require.Equal(t, payload.Error, decoded.Error)
}
