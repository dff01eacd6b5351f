package postgres

import (
	"context"
	"errors"

	"pledgeboard/internal/auction/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AuctionRepository implements domain.AuctionRepository.
type AuctionRepository struct {
	q querier
}

const auctionColumns = `id, title, base_price, participation_fee, min_pledge, max_pledge,
       status, winner_id, winning_amount, created_at, updated_at`

// Save inserts or updates an auction. INSERT ON CONFLICT covers both
// creation and lifecycle transitions; updated_at comes from the DB clock.
func (r *AuctionRepository) Save(ctx context.Context, auction *domain.Auction) error {
	query := `
        INSERT INTO auctions (id, title, base_price, participation_fee, min_pledge, max_pledge, status, winner_id, winning_amount)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (id) DO UPDATE
        SET
            title = EXCLUDED.title,
            base_price = EXCLUDED.base_price,
            participation_fee = EXCLUDED.participation_fee,
            min_pledge = EXCLUDED.min_pledge,
            max_pledge = EXCLUDED.max_pledge,
            status = EXCLUDED.status,
            winner_id = EXCLUDED.winner_id,
            winning_amount = EXCLUDED.winning_amount,
            updated_at = NOW();
    `
	_, err := r.q.Exec(ctx, query,
		auction.ID,
		auction.Title,
		auction.BasePrice,
		auction.ParticipationFee,
		auction.MinPledge,
		auction.MaxPledge,
		auction.Status,
		auction.WinnerID,
		auction.WinningAmount,
	)
	return err
}

func (r *AuctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`
	return r.scanOne(r.q.QueryRow(ctx, query, id))
}

// GetByIDForUpdate takes a row lock; meaningful only inside a transaction,
// where it serializes lifecycle transitions per auction.
func (r *AuctionRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1 FOR UPDATE`
	return r.scanOne(r.q.QueryRow(ctx, query, id))
}

// GetByIDForShare takes a shared row lock. Concurrent bids all hold it
// together; a round transition waiting on FOR UPDATE blocks until every
// in-flight bid commits, and new bids block while the transition runs.
func (r *AuctionRepository) GetByIDForShare(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1 FOR SHARE`
	return r.scanOne(r.q.QueryRow(ctx, query, id))
}

func (r *AuctionRepository) scanOne(row pgx.Row) (*domain.Auction, error) {
	auction := &domain.Auction{}
	var status string
	err := row.Scan(
		&auction.ID,
		&auction.Title,
		&auction.BasePrice,
		&auction.ParticipationFee,
		&auction.MinPledge,
		&auction.MaxPledge,
		&status,
		&auction.WinnerID,
		&auction.WinningAmount,
		&auction.CreatedAt,
		&auction.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAuctionNotFound
		}
		return nil, err
	}
	auction.Status = domain.AuctionStatus(status)
	return auction, nil
}
