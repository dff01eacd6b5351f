package application

import (
	"context"

	"pledgeboard/internal/auction/domain"

	"github.com/google/uuid"
)

// Broadcaster pushes engine state to live observers. Implementations
// must be fire-and-forget: a slow or failed delivery never surfaces
// back into the bidding critical path.
type Broadcaster interface {
	BroadcastLeaderboard(auctionID uuid.UUID, lb domain.Leaderboard)
	BroadcastRoundChanged(auctionID uuid.UUID, round *domain.Round)
	BroadcastWinner(auctionID uuid.UUID, result *domain.WinnerResult)
}

// NopBroadcaster is used where no live observers exist (tests, tooling).
type NopBroadcaster struct{}

func (NopBroadcaster) BroadcastLeaderboard(uuid.UUID, domain.Leaderboard) {}
func (NopBroadcaster) BroadcastRoundChanged(uuid.UUID, *domain.Round)    {}
func (NopBroadcaster) BroadcastWinner(uuid.UUID, *domain.WinnerResult)   {}

// AuctionService exposes the bidding engine's boundary operations to the
// infra layer (HTTP handlers, websocket handlers).
type AuctionService interface {
	CreateAuction(ctx context.Context, cmd CreateAuctionDTO) (*domain.Auction, error)
	SubmitPledge(ctx context.Context, cmd SubmitPledgeDTO) (*SubmitPledgeResult, error)
	GetLeaderboard(ctx context.Context, auctionID, viewerID uuid.UUID) (domain.Leaderboard, error)
	ActivateAuction(ctx context.Context, auctionID uuid.UUID) (*domain.Auction, error)
	CreateNextRound(ctx context.Context, auctionID uuid.UUID, params domain.RoundParams) (*domain.Round, error)
	CloseRound(ctx context.Context, roundID uuid.UUID) (*RoundSummary, error)
	CloseAuction(ctx context.Context, auctionID uuid.UUID) (*domain.WinnerResult, error)
	WinnerPreview(ctx context.Context, auctionID uuid.UUID) (*domain.WinnerResult, error)
	ListRounds(ctx context.Context, auctionID uuid.UUID) ([]*domain.Round, error)
	ListParticipants(ctx context.Context, auctionID uuid.UUID) ([]*domain.Participation, error)
}

type auctionService struct {
	store       domain.Store
	broadcaster Broadcaster
	topK        int
}

// NewAuctionService wires the use cases over a Store and a Broadcaster.
// topK is the public leaderboard cut.
func NewAuctionService(store domain.Store, broadcaster Broadcaster, topK int) AuctionService {
	if broadcaster == nil {
		broadcaster = NopBroadcaster{}
	}
	if topK <= 0 {
		topK = 10
	}
	return &auctionService{
		store:       store,
		broadcaster: broadcaster,
		topK:        topK,
	}
}
