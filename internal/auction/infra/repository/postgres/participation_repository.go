package postgres

import (
	"context"
	"errors"

	"pledgeboard/internal/auction/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ParticipationRepository implements domain.ParticipationRepository.
type ParticipationRepository struct {
	q querier
}

const participationColumns = `id, user_id, auction_id, round_id, fee_paid, payment_status, paid_at, created_at`

// HasCompleted is the eligibility gate query. Any error is returned to
// the caller, which must treat it as a denial.
func (r *ParticipationRepository) HasCompleted(ctx context.Context, userID, roundID uuid.UUID) (bool, error) {
	query := `
        SELECT EXISTS (
            SELECT 1 FROM participations
            WHERE user_id = $1 AND round_id = $2 AND payment_status = 'completed'
        )
    `
	var exists bool
	if err := r.q.QueryRow(ctx, query, userID, roundID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *ParticipationRepository) GetByUserAndRound(ctx context.Context, userID, roundID uuid.UUID) (*domain.Participation, error) {
	query := `SELECT ` + participationColumns + ` FROM participations WHERE user_id = $1 AND round_id = $2`
	p := &domain.Participation{}
	var status string
	err := r.q.QueryRow(ctx, query, userID, roundID).Scan(
		&p.ID,
		&p.UserID,
		&p.AuctionID,
		&p.RoundID,
		&p.FeePaid,
		&status,
		&p.PaidAt,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	p.PaymentStatus = domain.PaymentStatus(status)
	return p, nil
}

// Upsert overwrites the (user, round) participation row so a failed
// attempt can be retried; a completed row is never downgraded.
func (r *ParticipationRepository) Upsert(ctx context.Context, p *domain.Participation) error {
	query := `
        INSERT INTO participations (id, user_id, auction_id, round_id, fee_paid, payment_status, paid_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (user_id, round_id) DO UPDATE
        SET
            fee_paid = EXCLUDED.fee_paid,
            payment_status = EXCLUDED.payment_status,
            paid_at = EXCLUDED.paid_at
        WHERE participations.payment_status <> 'completed';
    `
	_, err := r.q.Exec(ctx, query,
		p.ID,
		p.UserID,
		p.AuctionID,
		p.RoundID,
		p.FeePaid,
		p.PaymentStatus,
		p.PaidAt,
	)
	return err
}

func (r *ParticipationRepository) ListCompletedByAuction(ctx context.Context, auctionID uuid.UUID) ([]*domain.Participation, error) {
	query := `
        SELECT ` + participationColumns + `
        FROM participations
        WHERE auction_id = $1 AND payment_status = 'completed'
        ORDER BY paid_at ASC
    `
	rows, err := r.q.Query(ctx, query, auctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participations []*domain.Participation
	for rows.Next() {
		p := &domain.Participation{}
		var status string
		err := rows.Scan(
			&p.ID,
			&p.UserID,
			&p.AuctionID,
			&p.RoundID,
			&p.FeePaid,
			&status,
			&p.PaidAt,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		p.PaymentStatus = domain.PaymentStatus(status)
		participations = append(participations, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return participations, nil
}
