package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"pledgeboard/internal/auction/domain"
	"pledgeboard/internal/auction/infra/repository/memory"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type paymentFixture struct {
	store     *memory.Store
	processor *Processor
	auctionID uuid.UUID
	round     *domain.Round
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	ctx := context.Background()

	store := memory.NewStore()
	auctionID := uuid.New()
	round := domain.NewRound(uuid.New(), auctionID, 1, domain.RoundParams{
		BasePrice: decimal.NewFromInt(100),
		MinPledge: decimal.NewFromInt(100),
		MaxPledge: decimal.NewFromInt(500),
		Duration:  time.Hour,
	}, time.Now().UTC())
	require.NoError(t, store.Rounds().Save(ctx, round))

	return &paymentFixture{
		store:     store,
		processor: NewProcessor(store, NewMemoryDeduper()),
		auctionID: auctionID,
		round:     round,
	}
}

func (f *paymentFixture) event(id string, userID uuid.UUID, status domain.PaymentStatus) ConfirmationEvent {
	return ConfirmationEvent{
		EventID:   id,
		UserID:    userID,
		AuctionID: f.auctionID,
		RoundID:   f.round.ID,
		Amount:    decimal.NewFromInt(10),
		Status:    status,
	}
}

func TestProcessor_CompletedConfirmation(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture(t)
	user := uuid.New()

	require.NoError(t, f.processor.Process(ctx, f.event("evt-1", user, domain.PaymentCompleted)))

	ok, err := f.store.Participations().HasCompleted(ctx, user, f.round.ID)
	require.NoError(t, err)
	require.True(t, ok)

	p, err := f.store.Participations().GetByUserAndRound(ctx, user, f.round.ID)
	require.NoError(t, err)
	require.NotNil(t, p)
	require.Equal(t, domain.PaymentCompleted, p.PaymentStatus)
	require.NotNil(t, p.PaidAt)
	require.True(t, p.FeePaid.Equal(decimal.NewFromInt(10)))
}

func TestProcessor_DuplicateEventIgnored(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture(t)
	user := uuid.New()

	require.NoError(t, f.processor.Process(ctx, f.event("evt-1", user, domain.PaymentCompleted)))

	err := f.processor.Process(ctx, f.event("evt-1", user, domain.PaymentFailed))
	require.ErrorIs(t, err, domain.ErrDuplicateEvent)

	// The redelivery changed nothing.
	ok, err := f.store.Participations().HasCompleted(ctx, user, f.round.ID)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestProcessor_StaleConfirmationDeadLettered(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture(t)
	user := uuid.New()

	require.NoError(t, f.store.Rounds().DeactivateAllForAuction(ctx, f.auctionID))

	err := f.processor.Process(ctx, f.event("evt-1", user, domain.PaymentCompleted))
	require.ErrorIs(t, err, domain.ErrStaleConfirmation)

	p, err := f.store.Participations().GetByUserAndRound(ctx, user, f.round.ID)
	require.NoError(t, err)
	require.Nil(t, p)
}

func TestProcessor_FailedThenRetriedCompletes(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture(t)
	user := uuid.New()

	require.NoError(t, f.processor.Process(ctx, f.event("evt-1", user, domain.PaymentFailed)))

	p, err := f.store.Participations().GetByUserAndRound(ctx, user, f.round.ID)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentFailed, p.PaymentStatus)

	// A fresh attempt under a new event ID succeeds.
	require.NoError(t, f.processor.Process(ctx, f.event("evt-2", user, domain.PaymentCompleted)))

	ok, err := f.store.Participations().HasCompleted(ctx, user, f.round.ID)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestProcessor_CompletedNeverDowngrades(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture(t)
	user := uuid.New()

	require.NoError(t, f.processor.Process(ctx, f.event("evt-1", user, domain.PaymentCompleted)))
	require.NoError(t, f.processor.Process(ctx, f.event("evt-2", user, domain.PaymentFailed)))

	ok, err := f.store.Participations().HasCompleted(ctx, user, f.round.ID)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestProcessor_UnknownStatusRejected(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture(t)

	err := f.processor.Process(ctx, f.event("evt-1", uuid.New(), domain.PaymentStatus("refunded")))
	require.Error(t, err)
	require.False(t, errors.Is(err, domain.ErrDuplicateEvent))
}

func TestProcessor_WrongAuctionRejected(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture(t)

	ev := f.event("evt-1", uuid.New(), domain.PaymentCompleted)
	ev.AuctionID = uuid.New()

	err := f.processor.Process(ctx, ev)
	require.ErrorIs(t, err, domain.ErrRoundNotFound)
}

// flakyStore fails the first n transactions, then delegates.
type flakyStore struct {
	domain.Store
	failures int
}

func (s *flakyStore) RunInTx(ctx context.Context, fn func(tx domain.Store) error) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("storage unavailable")
	}
	return s.Store.RunInTx(ctx, fn)
}

func TestProcessor_TransientFailureDoesNotConsumeEvent(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture(t)
	user := uuid.New()

	flaky := &flakyStore{Store: f.store, failures: 1}
	processor := NewProcessor(flaky, NewMemoryDeduper())

	err := processor.Process(ctx, f.event("evt-1", user, domain.PaymentCompleted))
	require.Error(t, err)
	require.False(t, errors.Is(err, domain.ErrDuplicateEvent))

	// The provider redelivers the same event; it must be applied, not
	// acknowledged as a duplicate.
	require.NoError(t, processor.Process(ctx, f.event("evt-1", user, domain.PaymentCompleted)))

	ok, err := f.store.Participations().HasCompleted(ctx, user, f.round.ID)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestProcessor_StaleRejectionStaysDeduplicated(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture(t)
	user := uuid.New()

	require.NoError(t, f.store.Rounds().DeactivateAllForAuction(ctx, f.auctionID))

	err := f.processor.Process(ctx, f.event("evt-1", user, domain.PaymentCompleted))
	require.ErrorIs(t, err, domain.ErrStaleConfirmation)

	// A stale event can never become applicable; redelivery is a no-op.
	err = f.processor.Process(ctx, f.event("evt-1", user, domain.PaymentCompleted))
	require.ErrorIs(t, err, domain.ErrDuplicateEvent)
}

func TestMemoryDeduper(t *testing.T) {
	d := NewMemoryDeduper()
	ctx := context.Background()

	first, err := d.MarkProcessed(ctx, "evt-1")
	require.NoError(t, err)
	require.True(t, first)

	again, err := d.MarkProcessed(ctx, "evt-1")
	require.NoError(t, err)
	require.False(t, again)

	other, err := d.MarkProcessed(ctx, "evt-2")
	require.NoError(t, err)
	require.True(t, other)

	require.NoError(t, d.Forget(ctx, "evt-1"))
	again, err = d.MarkProcessed(ctx, "evt-1")
	require.NoError(t, err)
	require.True(t, again)
}
