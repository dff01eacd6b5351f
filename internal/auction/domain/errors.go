package domain

import "errors"

var (
	ErrAuctionNotFound     = errors.New("auction not found")
	ErrRoundNotFound       = errors.New("round not found")
	ErrNotEligible         = errors.New("user has no completed participation for this round")
	ErrRoundClosed         = errors.New("round is not active")
	ErrOutOfBounds         = errors.New("pledge amount is outside the round bounds")
	ErrInvalidAmount       = errors.New("pledge amount cannot be zero or less than zero")
	ErrAlreadyActive       = errors.New("auction is already active")
	ErrMissingPledgeBounds = errors.New("min_pledge and max_pledge must be set before activation")
	ErrAuctionNotActive    = errors.New("auction is not active")
	ErrInvalidBounds       = errors.New("round price bounds are invalid")
	ErrNoBids              = errors.New("no valid bids found")
	ErrConflict            = errors.New("concurrent transition conflict")
	ErrDuplicateEvent      = errors.New("payment event already processed")
	ErrStaleConfirmation   = errors.New("payment confirmation for a round that is no longer active")
)
