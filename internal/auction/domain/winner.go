package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RoundPledge is one round's contribution to a candidate's average.
type RoundPledge struct {
	RoundNumber  int             `json:"round_number"`
	PledgeAmount decimal.Decimal `json:"pledge_amount"`
	Participated bool            `json:"participated"`
}

// WinnerCandidate is one user's cross-round standing. AveragePledge is
// TotalPledge divided by the auction's total round count: skipping a
// round contributes zero and dilutes the average.
type WinnerCandidate struct {
	UserID             uuid.UUID       `json:"user_id"`
	TotalPledge        decimal.Decimal `json:"total_pledge"`
	AveragePledge      decimal.Decimal `json:"average_pledge"`
	RoundsParticipated int             `json:"rounds_participated"`
	RoundDetails       []RoundPledge   `json:"round_details"`

	firstBidAt time.Time
	hasBid     bool
}

// WinnerResult is the full winner-resolution output, candidates sorted
// best first.
type WinnerResult struct {
	AuctionID   uuid.UUID         `json:"auction_id"`
	TotalRounds int               `json:"total_rounds"`
	Winner      *WinnerCandidate  `json:"winner"`
	Candidates  []WinnerCandidate `json:"all_participants"`
}

// ResolveWinner computes the cross-round average for every user who bid
// at least once or completed at least one participation. The latest bid
// per (user, round) is the source of truth regardless of its is_valid
// flag; validity is a current-round display concern only. Ties on the
// average resolve to the earliest overall bid, candidates who never bid
// sort after those who did, and user ID is the final deterministic key.
func ResolveWinner(auctionID uuid.UUID, rounds []*Round, bids []*Bid, participantIDs []uuid.UUID) (*WinnerResult, error) {
	ordered := make([]*Round, len(rounds))
	copy(ordered, rounds)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].RoundNumber < ordered[j].RoundNumber
	})
	totalRounds := len(ordered)
	if totalRounds == 0 {
		return nil, ErrNoBids
	}

	// Latest bid per (user, round); identical timestamps resolve by ID.
	type userRound struct {
		user  uuid.UUID
		round uuid.UUID
	}
	latest := make(map[userRound]*Bid)
	users := make(map[uuid.UUID]bool)
	anyBid := false
	for _, b := range bids {
		anyBid = true
		users[b.UserID] = true
		key := userRound{b.UserID, b.RoundID}
		cur, ok := latest[key]
		if !ok || b.SubmittedAt.After(cur.SubmittedAt) ||
			(b.SubmittedAt.Equal(cur.SubmittedAt) && b.ID.String() > cur.ID.String()) {
			latest[key] = b
		}
	}
	for _, id := range participantIDs {
		users[id] = true
	}
	if !anyBid {
		return nil, ErrNoBids
	}

	divisor := decimal.NewFromInt(int64(totalRounds))
	candidates := make([]WinnerCandidate, 0, len(users))
	for userID := range users {
		c := WinnerCandidate{
			UserID:       userID,
			TotalPledge:  decimal.Zero,
			RoundDetails: make([]RoundPledge, 0, totalRounds),
		}
		for _, r := range ordered {
			detail := RoundPledge{RoundNumber: r.RoundNumber, PledgeAmount: decimal.Zero}
			if b, ok := latest[userRound{userID, r.ID}]; ok {
				detail.PledgeAmount = b.PledgeAmount
				detail.Participated = true
				c.TotalPledge = c.TotalPledge.Add(b.PledgeAmount)
				c.RoundsParticipated++
				if !c.hasBid || b.SubmittedAt.Before(c.firstBidAt) {
					c.firstBidAt = b.SubmittedAt
					c.hasBid = true
				}
			}
			c.RoundDetails = append(c.RoundDetails, detail)
		}
		c.AveragePledge = c.TotalPledge.DivRound(divisor, 2)
		candidates = append(candidates, c)
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if cmp := a.AveragePledge.Cmp(b.AveragePledge); cmp != 0 {
			return cmp > 0
		}
		if a.hasBid != b.hasBid {
			return a.hasBid
		}
		if a.hasBid && !a.firstBidAt.Equal(b.firstBidAt) {
			return a.firstBidAt.Before(b.firstBidAt)
		}
		return a.UserID.String() < b.UserID.String()
	})

	result := &WinnerResult{
		AuctionID:   auctionID,
		TotalRounds: totalRounds,
		Candidates:  candidates,
	}
	if len(candidates) > 0 {
		result.Winner = &candidates[0]
	}
	return result, nil
}

// FirstBidAt exposes when the candidate first bid; the zero time and
// false mean the candidate never placed a bid.
func (c *WinnerCandidate) FirstBidAt() (time.Time, bool) {
	return c.firstBidAt, c.hasBid
}
