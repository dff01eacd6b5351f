package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LeaderboardEntry is one ranked bid in the public top-K cut.
type LeaderboardEntry struct {
	BidID           uuid.UUID       `json:"id"`
	Position        int             `json:"position"`
	UserID          uuid.UUID       `json:"user_id"`
	PledgeAmount    decimal.Decimal `json:"pledge_amount"`
	SubmittedAt     time.Time       `json:"submitted_at"`
	IsCurrentViewer bool            `json:"is_current_user"`
}

// ViewerBid discloses a below-top-K viewer's own standing to them alone.
type ViewerBid struct {
	Position     int             `json:"position"`
	PledgeAmount decimal.Decimal `json:"pledge_amount"`
}

// Leaderboard is the ranked view of a round's valid bids. TopBids is
// capped for display; TotalParticipants always reflects the full count.
type Leaderboard struct {
	RoundNumber       int                `json:"round_number"`
	RoundBasePrice    decimal.Decimal    `json:"round_base_price"`
	TopBids           []LeaderboardEntry `json:"top_bids"`
	TotalParticipants int                `json:"total_participants"`
	HighestAmount     decimal.Decimal    `json:"highest_amount"`
	TiedAtTopCount    int                `json:"tied_at_top_count"`
	ViewerInTopK      bool               `json:"user_in_top_k"`
	ViewerPosition    int                `json:"user_position,omitempty"`
	ViewerBid         *ViewerBid         `json:"user_bid,omitempty"`
}

// EmptyLeaderboard is the normal zero-bid state, not a failure.
func EmptyLeaderboard() Leaderboard {
	return Leaderboard{
		TopBids:       []LeaderboardEntry{},
		HighestAmount: decimal.Zero,
	}
}

// Rank orders a round's valid bids by pledge amount descending, ties by
// earlier submission; identical timestamps fall back to bid ID so the
// ordering is a strict total order. viewerID may be uuid.Nil for an
// anonymous observer.
func Rank(round *Round, bids []*Bid, topK int, viewerID uuid.UUID) Leaderboard {
	lb := EmptyLeaderboard()
	if round != nil {
		lb.RoundNumber = round.RoundNumber
		lb.RoundBasePrice = round.BasePrice
	}

	valid := make([]*Bid, 0, len(bids))
	for _, b := range bids {
		if b.IsValid {
			valid = append(valid, b)
		}
	}
	if len(valid) == 0 {
		return lb
	}

	sort.Slice(valid, func(i, j int) bool {
		if cmp := valid[i].PledgeAmount.Cmp(valid[j].PledgeAmount); cmp != 0 {
			return cmp > 0
		}
		if !valid[i].SubmittedAt.Equal(valid[j].SubmittedAt) {
			return valid[i].SubmittedAt.Before(valid[j].SubmittedAt)
		}
		return valid[i].ID.String() < valid[j].ID.String()
	})

	lb.TotalParticipants = len(valid)
	lb.HighestAmount = valid[0].PledgeAmount

	// Monetary ties at the maximum, independent of the submission tie-break.
	for _, b := range valid {
		if b.PledgeAmount.Equal(lb.HighestAmount) {
			lb.TiedAtTopCount++
		}
	}

	for i, b := range valid {
		position := i + 1
		isViewer := viewerID != uuid.Nil && b.UserID == viewerID

		if position <= topK {
			lb.TopBids = append(lb.TopBids, LeaderboardEntry{
				BidID:           b.ID,
				Position:        position,
				UserID:          b.UserID,
				PledgeAmount:    b.PledgeAmount,
				SubmittedAt:     b.SubmittedAt,
				IsCurrentViewer: isViewer,
			})
		}
		if isViewer {
			lb.ViewerPosition = position
			lb.ViewerInTopK = position <= topK
			if !lb.ViewerInTopK {
				lb.ViewerBid = &ViewerBid{
					Position:     position,
					PledgeAmount: b.PledgeAmount,
				}
			}
		}
	}

	return lb
}
