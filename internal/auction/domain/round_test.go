package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestRoundParams_Validate(t *testing.T) {
	prev := &Round{BasePrice: decimal.NewFromInt(200)}

	tests := []struct {
		name    string
		params  RoundParams
		prev    *Round
		wantErr error
	}{
		{
			name: "valid_first_round",
			params: RoundParams{
				BasePrice: decimal.NewFromInt(100),
				MinPledge: decimal.NewFromInt(100),
				MaxPledge: decimal.NewFromInt(500),
			},
		},
		{
			name: "valid_escalating_round",
			params: RoundParams{
				BasePrice: decimal.NewFromInt(250),
				MinPledge: decimal.NewFromInt(250),
				MaxPledge: decimal.NewFromInt(900),
			},
			prev: prev,
		},
		{
			name: "base_price_regression",
			params: RoundParams{
				BasePrice: decimal.NewFromInt(150),
				MinPledge: decimal.NewFromInt(150),
				MaxPledge: decimal.NewFromInt(500),
			},
			prev:    prev,
			wantErr: ErrInvalidBounds,
		},
		{
			name: "min_below_base",
			params: RoundParams{
				BasePrice: decimal.NewFromInt(100),
				MinPledge: decimal.NewFromInt(90),
				MaxPledge: decimal.NewFromInt(500),
			},
			wantErr: ErrInvalidBounds,
		},
		{
			name: "max_equal_to_min",
			params: RoundParams{
				BasePrice: decimal.NewFromInt(100),
				MinPledge: decimal.NewFromInt(100),
				MaxPledge: decimal.NewFromInt(100),
			},
			wantErr: ErrInvalidBounds,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.params.Validate(tc.prev)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestRound_ValidatePledge(t *testing.T) {
	round := &Round{
		MinPledge: decimal.NewFromInt(100),
		MaxPledge: decimal.NewFromInt(500),
	}

	require.NoError(t, round.ValidatePledge(decimal.NewFromInt(100)))
	require.NoError(t, round.ValidatePledge(decimal.NewFromInt(500)))
	require.ErrorIs(t, round.ValidatePledge(decimal.NewFromInt(99)), ErrOutOfBounds)
	require.ErrorIs(t, round.ValidatePledge(decimal.NewFromInt(501)), ErrOutOfBounds)
	require.ErrorIs(t, round.ValidatePledge(decimal.Zero), ErrInvalidAmount)
	require.ErrorIs(t, round.ValidatePledge(decimal.NewFromInt(-10)), ErrInvalidAmount)
}

func TestNewRound(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	auctionID := uuid.New()
	params := RoundParams{
		BasePrice: decimal.NewFromInt(100),
		MinPledge: decimal.NewFromInt(100),
		MaxPledge: decimal.NewFromInt(500),
		Duration:  2 * time.Hour,
	}

	round := NewRound(uuid.New(), auctionID, 3, params, now)

	require.Equal(t, auctionID, round.AuctionID)
	require.Equal(t, 3, round.RoundNumber)
	require.True(t, round.IsActive)
	require.True(t, round.StartTime.Equal(now))
	require.True(t, round.EndTime.Equal(now.Add(2*time.Hour)))
}

func TestAuction_Activate(t *testing.T) {
	min := decimal.NewFromInt(100)
	max := decimal.NewFromInt(500)

	newDraft := func() *Auction {
		a := NewAuction(uuid.New(), "vintage amp", decimal.NewFromInt(100), decimal.NewFromInt(10))
		a.MinPledge = &min
		a.MaxPledge = &max
		return a
	}

	t.Run("draft_to_active", func(t *testing.T) {
		a := newDraft()
		require.NoError(t, a.Activate())
		require.Equal(t, StatusActive, a.Status)
	})

	t.Run("already_active", func(t *testing.T) {
		a := newDraft()
		require.NoError(t, a.Activate())
		require.ErrorIs(t, a.Activate(), ErrAlreadyActive)
	})

	t.Run("missing_bounds", func(t *testing.T) {
		a := newDraft()
		a.MaxPledge = nil
		require.ErrorIs(t, a.Activate(), ErrMissingPledgeBounds)
	})

	t.Run("min_below_base_price", func(t *testing.T) {
		a := newDraft()
		low := decimal.NewFromInt(50)
		a.MinPledge = &low
		require.ErrorIs(t, a.Activate(), ErrInvalidBounds)
	})

	t.Run("closed_cannot_reactivate", func(t *testing.T) {
		a := newDraft()
		require.NoError(t, a.Activate())
		require.NoError(t, a.Close(uuid.New(), decimal.NewFromInt(300)))
		require.ErrorIs(t, a.Activate(), ErrAuctionNotActive)
	})
}

func TestAuction_Close(t *testing.T) {
	min := decimal.NewFromInt(100)
	max := decimal.NewFromInt(500)
	a := NewAuction(uuid.New(), "vintage amp", decimal.NewFromInt(100), decimal.NewFromInt(10))
	a.MinPledge = &min
	a.MaxPledge = &max

	require.ErrorIs(t, a.Close(uuid.New(), decimal.NewFromInt(300)), ErrAuctionNotActive)

	require.NoError(t, a.Activate())
	winner := uuid.New()
	amount := decimal.NewFromFloat(233.33)
	require.NoError(t, a.Close(winner, amount))

	require.Equal(t, StatusClosed, a.Status)
	require.NotNil(t, a.WinnerID)
	require.Equal(t, winner, *a.WinnerID)
	require.NotNil(t, a.WinningAmount)
	require.True(t, a.WinningAmount.Equal(amount))
}
