package postgres

import (
	"context"
	"fmt"

	"pledgeboard/internal/auction/domain"
	"pledgeboard/internal/shared/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// querier is the subset of pgx satisfied by both *pgxpool.Pool and pgx.Tx,
// so the same repository code runs inside and outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements domain.Store over Postgres.
type Store struct {
	pool *pgxpool.Pool // nil when this Store is transaction-bound
	q    querier
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, q: pool}
}

func (s *Store) Auctions() domain.AuctionRepository {
	return &AuctionRepository{q: s.q}
}

func (s *Store) Rounds() domain.RoundRepository {
	return &RoundRepository{q: s.q}
}

func (s *Store) Bids() domain.BidRepository {
	return &BidRepository{q: s.q}
}

func (s *Store) Participations() domain.ParticipationRepository {
	return &ParticipationRepository{q: s.q}
}

// RunInTx executes fn against transaction-bound repositories, commits on
// nil, rolls back on error or panic. Nested calls join the open transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(tx domain.Store) error) (err error) {
	if s.pool == nil {
		return fn(s)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		log.Error("Store: failed to begin transaction", zap.Error(err))
		return fmt.Errorf("store: failed to begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("Store: recovered from panic during transaction", zap.Any("panic", r))
			_ = tx.Rollback(ctx)
			panic(r)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		commitErr := tx.Commit(ctx)
		if commitErr != nil {
			log.Error("Store: failed to commit transaction", zap.Error(commitErr))
			err = fmt.Errorf("store: failed to commit transaction: %w", commitErr)
		}
	}()

	err = fn(&Store{q: tx})
	return err
}
