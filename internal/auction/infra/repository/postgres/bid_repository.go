package postgres

import (
	"context"

	"pledgeboard/internal/auction/domain"

	"github.com/google/uuid"
)

// BidRepository implements domain.BidRepository.
type BidRepository struct {
	q querier
}

const bidColumns = `id, user_id, auction_id, round_id, pledge_amount, is_valid, is_winner, submitted_at, created_at`

// UpsertValid lands on the partial unique index (user_id, round_id)
// WHERE is_valid: a resubmission updates the live bid's amount and
// submitted_at in place instead of inserting a duplicate row.
func (r *BidRepository) UpsertValid(ctx context.Context, bid *domain.Bid) (*domain.Bid, error) {
	query := `
        INSERT INTO bids (id, user_id, auction_id, round_id, pledge_amount, is_valid, is_winner, submitted_at)
        VALUES ($1, $2, $3, $4, $5, TRUE, FALSE, $6)
        ON CONFLICT (user_id, round_id) WHERE is_valid DO UPDATE
        SET
            pledge_amount = EXCLUDED.pledge_amount,
            submitted_at = EXCLUDED.submitted_at
        RETURNING ` + bidColumns + `;
    `
	stored := &domain.Bid{}
	err := r.q.QueryRow(ctx, query,
		bid.ID,
		bid.UserID,
		bid.AuctionID,
		bid.RoundID,
		bid.PledgeAmount,
		bid.SubmittedAt,
	).Scan(
		&stored.ID,
		&stored.UserID,
		&stored.AuctionID,
		&stored.RoundID,
		&stored.PledgeAmount,
		&stored.IsValid,
		&stored.IsWinner,
		&stored.SubmittedAt,
		&stored.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (r *BidRepository) ListValidByRound(ctx context.Context, roundID uuid.UUID) ([]*domain.Bid, error) {
	query := `
        SELECT ` + bidColumns + `
        FROM bids
        WHERE round_id = $1 AND is_valid
        ORDER BY pledge_amount DESC, submitted_at ASC, id ASC
    `
	return r.list(ctx, query, roundID)
}

func (r *BidRepository) ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*domain.Bid, error) {
	query := `
        SELECT ` + bidColumns + `
        FROM bids
        WHERE auction_id = $1
        ORDER BY submitted_at ASC
    `
	return r.list(ctx, query, auctionID)
}

// InvalidateAllForAuction is the bulk invalidation step of a round
// transition; rows are kept for the audit trail and winner averaging.
func (r *BidRepository) InvalidateAllForAuction(ctx context.Context, auctionID uuid.UUID) error {
	query := `UPDATE bids SET is_valid = FALSE WHERE auction_id = $1 AND is_valid`
	_, err := r.q.Exec(ctx, query, auctionID)
	return err
}

func (r *BidRepository) MarkWinner(ctx context.Context, bidID uuid.UUID) error {
	query := `UPDATE bids SET is_winner = TRUE WHERE id = $1`
	_, err := r.q.Exec(ctx, query, bidID)
	return err
}

func (r *BidRepository) list(ctx context.Context, query string, arg any) ([]*domain.Bid, error) {
	rows, err := r.q.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []*domain.Bid
	for rows.Next() {
		bid := &domain.Bid{}
		err := rows.Scan(
			&bid.ID,
			&bid.UserID,
			&bid.AuctionID,
			&bid.RoundID,
			&bid.PledgeAmount,
			&bid.IsValid,
			&bid.IsWinner,
			&bid.SubmittedAt,
			&bid.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		bids = append(bids, bid)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bids, nil
}
