// Package memory provides a concurrency-safe in-memory domain.Store,
// used by tests and local tooling in place of Postgres. RunInTx
// serializes callers the way the database transaction does; it does not
// roll back on error.
package memory

import (
	"context"
	"sort"
	"sync"

	"pledgeboard/internal/auction/domain"

	"github.com/google/uuid"
)

type data struct {
	auctions       map[uuid.UUID]domain.Auction
	rounds         map[uuid.UUID]domain.Round
	bids           map[uuid.UUID]domain.Bid
	participations map[uuid.UUID]domain.Participation
}

// Store implements domain.Store over in-process maps.
type Store struct {
	mu   *sync.Mutex
	d    *data
	inTx bool
}

func NewStore() *Store {
	return &Store{
		mu: &sync.Mutex{},
		d: &data{
			auctions:       make(map[uuid.UUID]domain.Auction),
			rounds:         make(map[uuid.UUID]domain.Round),
			bids:           make(map[uuid.UUID]domain.Bid),
			participations: make(map[uuid.UUID]domain.Participation),
		},
	}
}

func (s *Store) lock() {
	if !s.inTx {
		s.mu.Lock()
	}
}

func (s *Store) unlock() {
	if !s.inTx {
		s.mu.Unlock()
	}
}

// RunInTx serializes fn against all other store access. Nested calls
// join the critical section.
func (s *Store) RunInTx(_ context.Context, fn func(tx domain.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&Store{mu: s.mu, d: s.d, inTx: true})
}

func (s *Store) Auctions() domain.AuctionRepository             { return auctionRepo{s} }
func (s *Store) Rounds() domain.RoundRepository                 { return roundRepo{s} }
func (s *Store) Bids() domain.BidRepository                     { return bidRepo{s} }
func (s *Store) Participations() domain.ParticipationRepository { return participationRepo{s} }

type auctionRepo struct{ s *Store }

func (r auctionRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Auction, error) {
	r.s.lock()
	defer r.s.unlock()
	a, ok := r.s.d.auctions[id]
	if !ok {
		return nil, domain.ErrAuctionNotFound
	}
	cp := a
	return &cp, nil
}

// GetByIDForUpdate and GetByIDForShare have no extra locking to do
// here: RunInTx already holds the store-wide critical section.
func (r auctionRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	return r.GetByID(ctx, id)
}

func (r auctionRepo) GetByIDForShare(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	return r.GetByID(ctx, id)
}

func (r auctionRepo) Save(_ context.Context, auction *domain.Auction) error {
	r.s.lock()
	defer r.s.unlock()
	r.s.d.auctions[auction.ID] = *auction
	return nil
}

type roundRepo struct{ s *Store }

func (r roundRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Round, error) {
	r.s.lock()
	defer r.s.unlock()
	round, ok := r.s.d.rounds[id]
	if !ok {
		return nil, domain.ErrRoundNotFound
	}
	cp := round
	return &cp, nil
}

func (r roundRepo) GetActiveByAuction(_ context.Context, auctionID uuid.UUID) (*domain.Round, error) {
	r.s.lock()
	defer r.s.unlock()
	for _, round := range r.s.d.rounds {
		if round.AuctionID == auctionID && round.IsActive {
			cp := round
			return &cp, nil
		}
	}
	return nil, domain.ErrRoundNotFound
}

func (r roundRepo) GetLastByAuction(_ context.Context, auctionID uuid.UUID) (*domain.Round, error) {
	r.s.lock()
	defer r.s.unlock()
	var last *domain.Round
	for _, round := range r.s.d.rounds {
		if round.AuctionID != auctionID {
			continue
		}
		cp := round
		if last == nil || cp.RoundNumber > last.RoundNumber {
			last = &cp
		}
	}
	if last == nil {
		return nil, domain.ErrRoundNotFound
	}
	return last, nil
}

func (r roundRepo) ListByAuction(_ context.Context, auctionID uuid.UUID) ([]*domain.Round, error) {
	r.s.lock()
	defer r.s.unlock()
	var rounds []*domain.Round
	for _, round := range r.s.d.rounds {
		if round.AuctionID == auctionID {
			cp := round
			rounds = append(rounds, &cp)
		}
	}
	sort.Slice(rounds, func(i, j int) bool {
		return rounds[i].RoundNumber < rounds[j].RoundNumber
	})
	return rounds, nil
}

func (r roundRepo) Save(_ context.Context, round *domain.Round) error {
	r.s.lock()
	defer r.s.unlock()
	r.s.d.rounds[round.ID] = *round
	return nil
}

func (r roundRepo) DeactivateAllForAuction(_ context.Context, auctionID uuid.UUID) error {
	r.s.lock()
	defer r.s.unlock()
	for id, round := range r.s.d.rounds {
		if round.AuctionID == auctionID && round.IsActive {
			round.IsActive = false
			r.s.d.rounds[id] = round
		}
	}
	return nil
}

type bidRepo struct{ s *Store }

func (r bidRepo) UpsertValid(_ context.Context, bid *domain.Bid) (*domain.Bid, error) {
	r.s.lock()
	defer r.s.unlock()
	for id, existing := range r.s.d.bids {
		if existing.UserID == bid.UserID && existing.RoundID == bid.RoundID && existing.IsValid {
			existing.PledgeAmount = bid.PledgeAmount
			existing.SubmittedAt = bid.SubmittedAt
			r.s.d.bids[id] = existing
			cp := existing
			return &cp, nil
		}
	}
	r.s.d.bids[bid.ID] = *bid
	cp := *bid
	return &cp, nil
}

func (r bidRepo) ListValidByRound(_ context.Context, roundID uuid.UUID) ([]*domain.Bid, error) {
	r.s.lock()
	defer r.s.unlock()
	var bids []*domain.Bid
	for _, b := range r.s.d.bids {
		if b.RoundID == roundID && b.IsValid {
			cp := b
			bids = append(bids, &cp)
		}
	}
	return bids, nil
}

func (r bidRepo) ListByAuction(_ context.Context, auctionID uuid.UUID) ([]*domain.Bid, error) {
	r.s.lock()
	defer r.s.unlock()
	var bids []*domain.Bid
	for _, b := range r.s.d.bids {
		if b.AuctionID == auctionID {
			cp := b
			bids = append(bids, &cp)
		}
	}
	sort.Slice(bids, func(i, j int) bool {
		return bids[i].SubmittedAt.Before(bids[j].SubmittedAt)
	})
	return bids, nil
}

func (r bidRepo) InvalidateAllForAuction(_ context.Context, auctionID uuid.UUID) error {
	r.s.lock()
	defer r.s.unlock()
	for id, b := range r.s.d.bids {
		if b.AuctionID == auctionID && b.IsValid {
			b.IsValid = false
			r.s.d.bids[id] = b
		}
	}
	return nil
}

func (r bidRepo) MarkWinner(_ context.Context, bidID uuid.UUID) error {
	r.s.lock()
	defer r.s.unlock()
	if b, ok := r.s.d.bids[bidID]; ok {
		b.IsWinner = true
		r.s.d.bids[bidID] = b
	}
	return nil
}

type participationRepo struct{ s *Store }

func (r participationRepo) HasCompleted(_ context.Context, userID, roundID uuid.UUID) (bool, error) {
	r.s.lock()
	defer r.s.unlock()
	for _, p := range r.s.d.participations {
		if p.UserID == userID && p.RoundID == roundID && p.PaymentStatus == domain.PaymentCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (r participationRepo) GetByUserAndRound(_ context.Context, userID, roundID uuid.UUID) (*domain.Participation, error) {
	r.s.lock()
	defer r.s.unlock()
	for _, p := range r.s.d.participations {
		if p.UserID == userID && p.RoundID == roundID {
			cp := p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r participationRepo) Upsert(_ context.Context, p *domain.Participation) error {
	r.s.lock()
	defer r.s.unlock()
	for id, existing := range r.s.d.participations {
		if existing.UserID == p.UserID && existing.RoundID == p.RoundID {
			if existing.PaymentStatus == domain.PaymentCompleted {
				return nil
			}
			updated := *p
			updated.ID = existing.ID
			r.s.d.participations[id] = updated
			return nil
		}
	}
	r.s.d.participations[p.ID] = *p
	return nil
}

func (r participationRepo) ListCompletedByAuction(_ context.Context, auctionID uuid.UUID) ([]*domain.Participation, error) {
	r.s.lock()
	defer r.s.unlock()
	var out []*domain.Participation
	for _, p := range r.s.d.participations {
		if p.AuctionID == auctionID && p.PaymentStatus == domain.PaymentCompleted {
			cp := p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PaidAt == nil || out[j].PaidAt == nil {
			return out[j].PaidAt != nil
		}
		return out[i].PaidAt.Before(*out[j].PaidAt)
	})
	return out, nil
}
