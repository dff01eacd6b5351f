package websocket

import (
	"pledgeboard/internal/auction/domain"
	sharedws "pledgeboard/internal/shared/websocket"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HubBroadcaster implements application.Broadcaster over the shared hub.
// Every method is fire-and-forget: the hub queues are non-blocking and a
// serialization failure is logged, never returned.
type HubBroadcaster struct {
	hub *sharedws.Hub
}

func NewHubBroadcaster(hub *sharedws.Hub) *HubBroadcaster {
	return &HubBroadcaster{hub: hub}
}

func (b *HubBroadcaster) BroadcastLeaderboard(auctionID uuid.UUID, lb domain.Leaderboard) {
	data, err := encodeEnvelope(MessageTypeLeaderboardUpdate, lb)
	if err != nil {
		log.Error("failed to marshal leaderboard update", zap.Error(err))
		return
	}
	b.hub.BroadcastToAuction(auctionID.String(), data)
}

func (b *HubBroadcaster) BroadcastRoundChanged(auctionID uuid.UUID, round *domain.Round) {
	data, err := encodeEnvelope(MessageTypeRoundUpdate, RoundUpdatePayload{
		RoundID:          round.ID,
		RoundNumber:      round.RoundNumber,
		BasePrice:        round.BasePrice,
		MinPledge:        round.MinPledge,
		MaxPledge:        round.MaxPledge,
		ParticipationFee: round.ParticipationFee,
		StartTime:        round.StartTime,
		EndTime:          round.EndTime,
		IsActive:         round.IsActive,
	})
	if err != nil {
		log.Error("failed to marshal round update", zap.Error(err))
		return
	}
	b.hub.BroadcastToAuction(auctionID.String(), data)
}

func (b *HubBroadcaster) BroadcastWinner(auctionID uuid.UUID, result *domain.WinnerResult) {
	data, err := encodeEnvelope(MessageTypeWinnerUpdate, result)
	if err != nil {
		log.Error("failed to marshal winner update", zap.Error(err))
		return
	}
	b.hub.BroadcastToAuction(auctionID.String(), data)
}
