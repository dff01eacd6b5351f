package postgres

import (
	"context"
	"errors"

	"pledgeboard/internal/auction/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RoundRepository implements domain.RoundRepository.
type RoundRepository struct {
	q querier
}

const roundColumns = `id, auction_id, round_number, base_price, min_pledge, max_pledge,
       participation_fee, start_time, end_time, is_active, created_at`

func (r *RoundRepository) Save(ctx context.Context, round *domain.Round) error {
	query := `
        INSERT INTO rounds (id, auction_id, round_number, base_price, min_pledge, max_pledge, participation_fee, start_time, end_time, is_active)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        ON CONFLICT (id) DO UPDATE
        SET
            base_price = EXCLUDED.base_price,
            min_pledge = EXCLUDED.min_pledge,
            max_pledge = EXCLUDED.max_pledge,
            participation_fee = EXCLUDED.participation_fee,
            start_time = EXCLUDED.start_time,
            end_time = EXCLUDED.end_time,
            is_active = EXCLUDED.is_active;
    `
	_, err := r.q.Exec(ctx, query,
		round.ID,
		round.AuctionID,
		round.RoundNumber,
		round.BasePrice,
		round.MinPledge,
		round.MaxPledge,
		round.ParticipationFee,
		round.StartTime,
		round.EndTime,
		round.IsActive,
	)
	return err
}

func (r *RoundRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Round, error) {
	query := `SELECT ` + roundColumns + ` FROM rounds WHERE id = $1`
	return r.scanOne(r.q.QueryRow(ctx, query, id))
}

func (r *RoundRepository) GetActiveByAuction(ctx context.Context, auctionID uuid.UUID) (*domain.Round, error) {
	query := `SELECT ` + roundColumns + ` FROM rounds WHERE auction_id = $1 AND is_active LIMIT 1`
	return r.scanOne(r.q.QueryRow(ctx, query, auctionID))
}

func (r *RoundRepository) GetLastByAuction(ctx context.Context, auctionID uuid.UUID) (*domain.Round, error) {
	query := `SELECT ` + roundColumns + ` FROM rounds WHERE auction_id = $1 ORDER BY round_number DESC LIMIT 1`
	return r.scanOne(r.q.QueryRow(ctx, query, auctionID))
}

func (r *RoundRepository) ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*domain.Round, error) {
	query := `SELECT ` + roundColumns + ` FROM rounds WHERE auction_id = $1 ORDER BY round_number ASC`
	rows, err := r.q.Query(ctx, query, auctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rounds []*domain.Round
	for rows.Next() {
		round, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		rounds = append(rounds, round)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rounds, nil
}

func (r *RoundRepository) DeactivateAllForAuction(ctx context.Context, auctionID uuid.UUID) error {
	query := `UPDATE rounds SET is_active = FALSE WHERE auction_id = $1 AND is_active`
	_, err := r.q.Exec(ctx, query, auctionID)
	return err
}

func (r *RoundRepository) scanOne(row pgx.Row) (*domain.Round, error) {
	round, err := r.scanRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRoundNotFound
		}
		return nil, err
	}
	return round, nil
}

func (r *RoundRepository) scanRow(row pgx.Row) (*domain.Round, error) {
	round := &domain.Round{}
	err := row.Scan(
		&round.ID,
		&round.AuctionID,
		&round.RoundNumber,
		&round.BasePrice,
		&round.MinPledge,
		&round.MaxPledge,
		&round.ParticipationFee,
		&round.StartTime,
		&round.EndTime,
		&round.IsActive,
		&round.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return round, nil
}
