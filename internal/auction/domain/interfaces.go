package domain

import (
	"context"

	"github.com/google/uuid"
)

type AuctionRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Auction, error)
	// GetByIDForUpdate locks the auction row for the duration of the
	// surrounding transaction, serializing lifecycle transitions.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Auction, error)
	// GetByIDForShare takes a shared lock on the auction row: bids may
	// run concurrently with each other but never with a lifecycle
	// transition holding the exclusive lock.
	GetByIDForShare(ctx context.Context, id uuid.UUID) (*Auction, error)
	Save(ctx context.Context, auction *Auction) error
}

type RoundRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Round, error)
	// GetActiveByAuction returns the single active round or ErrRoundNotFound.
	GetActiveByAuction(ctx context.Context, auctionID uuid.UUID) (*Round, error)
	// GetLastByAuction returns the highest-numbered round or ErrRoundNotFound.
	GetLastByAuction(ctx context.Context, auctionID uuid.UUID) (*Round, error)
	ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*Round, error)
	Save(ctx context.Context, round *Round) error
	DeactivateAllForAuction(ctx context.Context, auctionID uuid.UUID) error
}

type BidRepository interface {
	// UpsertValid inserts the bid or, when the user already holds the
	// valid bid for the round, updates its amount and submitted_at in
	// place. Returns the stored row.
	UpsertValid(ctx context.Context, bid *Bid) (*Bid, error)
	ListValidByRound(ctx context.Context, roundID uuid.UUID) ([]*Bid, error)
	// ListByAuction returns every bid of the auction regardless of
	// validity; winner resolution averages over this history.
	ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*Bid, error)
	InvalidateAllForAuction(ctx context.Context, auctionID uuid.UUID) error
	MarkWinner(ctx context.Context, bidID uuid.UUID) error
}

type ParticipationRepository interface {
	// HasCompleted reports whether a completed participation exists for
	// (user, round). Callers must treat an error as a denial.
	HasCompleted(ctx context.Context, userID, roundID uuid.UUID) (bool, error)
	GetByUserAndRound(ctx context.Context, userID, roundID uuid.UUID) (*Participation, error)
	// Upsert creates or overwrites the (user, round) participation. A
	// completed row is never downgraded by the implementations.
	Upsert(ctx context.Context, p *Participation) error
	ListCompletedByAuction(ctx context.Context, auctionID uuid.UUID) ([]*Participation, error)
}

// Store is the transactional unit of work over the four repositories.
// RunInTx executes fn against a Store whose repositories share one
// atomic critical section; outside RunInTx the repositories auto-commit.
type Store interface {
	Auctions() AuctionRepository
	Rounds() RoundRepository
	Bids() BidRepository
	Participations() ParticipationRepository
	RunInTx(ctx context.Context, fn func(tx Store) error) error
}
