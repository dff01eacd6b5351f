package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pledgeboard/internal/auction/domain"
	"pledgeboard/internal/shared/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// ConfirmationEvent is what the trusted payment provider reports back
// for an earlier entry-fee attempt.
type ConfirmationEvent struct {
	EventID   string
	UserID    uuid.UUID
	AuctionID uuid.UUID
	RoundID   uuid.UUID
	Amount    decimal.Decimal
	Status    domain.PaymentStatus
}

// Processor applies payment confirmations to the participation ledger.
// Duplicates are no-ops; confirmations for rounds that already
// transitioned away are dead-lettered, never applied retroactively.
type Processor struct {
	store domain.Store
	dedup Deduper
}

func NewProcessor(store domain.Store, dedup Deduper) *Processor {
	return &Processor{store: store, dedup: dedup}
}

func (p *Processor) Process(ctx context.Context, ev ConfirmationEvent) error {
	if ev.Status != domain.PaymentCompleted && ev.Status != domain.PaymentFailed {
		return fmt.Errorf("payment event %s: unknown status %q", ev.EventID, ev.Status)
	}

	marked := false
	first, err := p.dedup.MarkProcessed(ctx, ev.EventID)
	if err != nil {
		// The participation upsert never downgrades a completed row, so
		// processing a possibly-duplicate event is safe; losing a
		// legitimate confirmation is not.
		log.Warn("payment event dedup check failed, processing anyway",
			zap.String("eventID", ev.EventID),
			zap.Error(err),
		)
	} else if !first {
		log.Info("duplicate payment event ignored", zap.String("eventID", ev.EventID))
		return domain.ErrDuplicateEvent
	} else {
		marked = true
	}

	err = p.store.RunInTx(ctx, func(tx domain.Store) error {
		round, err := tx.Rounds().GetByID(ctx, ev.RoundID)
		if err != nil {
			return fmt.Errorf("payment event %s: failed to get round %s: %w", ev.EventID, ev.RoundID, err)
		}
		if round.AuctionID != ev.AuctionID {
			return fmt.Errorf("%w: round %s does not belong to auction %s",
				domain.ErrRoundNotFound, ev.RoundID, ev.AuctionID)
		}
		if !round.IsActive {
			// Late confirmation racing a round transition: dead-letter.
			log.Warn("stale payment confirmation dead-lettered",
				zap.String("eventID", ev.EventID),
				zap.String("userID", ev.UserID.String()),
				zap.String("roundID", ev.RoundID.String()),
				zap.Int("roundNumber", round.RoundNumber),
				zap.String("status", string(ev.Status)),
			)
			return domain.ErrStaleConfirmation
		}

		participation, err := tx.Participations().GetByUserAndRound(ctx, ev.UserID, ev.RoundID)
		if err != nil {
			return fmt.Errorf("payment event %s: failed to get participation: %w", ev.EventID, err)
		}
		if participation == nil {
			participation = domain.NewParticipation(uuid.New(), ev.UserID, ev.AuctionID, ev.RoundID, ev.Amount)
		}
		if participation.PaymentStatus == domain.PaymentCompleted {
			// Completed never transitions back, whatever the event says.
			return nil
		}

		switch ev.Status {
		case domain.PaymentCompleted:
			participation.FeePaid = ev.Amount
			participation.Complete(time.Now().UTC())
		case domain.PaymentFailed:
			participation.Fail()
		}

		if err := tx.Participations().Upsert(ctx, participation); err != nil {
			return fmt.Errorf("payment event %s: failed to upsert participation: %w", ev.EventID, err)
		}
		return nil
	})
	if err != nil {
		// A transiently failed event was not applied; release the dedup
		// mark so the provider's retry of this exact event is not
		// swallowed as a duplicate. Final rejections keep the mark.
		if marked && !isFinalRejection(err) {
			if ferr := p.dedup.Forget(ctx, ev.EventID); ferr != nil {
				log.Error("failed to release dedup mark for unapplied payment event",
					zap.String("eventID", ev.EventID),
					zap.Error(ferr),
				)
			}
		}
		return err
	}

	log.Info("payment confirmation applied",
		zap.String("eventID", ev.EventID),
		zap.String("userID", ev.UserID.String()),
		zap.String("roundID", ev.RoundID.String()),
		zap.String("status", string(ev.Status)),
	)
	return nil
}

// isFinalRejection reports whether the event can never be applied, so
// redeliveries should stay deduplicated.
func isFinalRejection(err error) bool {
	return errors.Is(err, domain.ErrStaleConfirmation) || errors.Is(err, domain.ErrRoundNotFound)
}
