package websocket

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MessageType identifies a ws message on the wire.
type MessageType string

const (
	// Client-initiated refresh of the board.
	MessageTypeRequestLeaderboard MessageType = "request_leaderboard"
	// Server push after every accepted bid and on subscribe.
	MessageTypeLeaderboardUpdate MessageType = "leaderboard_update"
	// Server push on round create/close; observers reset per-round UI state.
	MessageTypeRoundUpdate MessageType = "round_update"
	// Server push when the auction closes with a resolved winner.
	MessageTypeWinnerUpdate MessageType = "winner_update"
	MessageTypeServerError  MessageType = "server_error"
)

// Envelope is the common frame of every ws message.
type Envelope struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// RoundUpdatePayload carries the new round's parameters so observers can
// rebuild their per-round state.
type RoundUpdatePayload struct {
	RoundID          uuid.UUID       `json:"round_id"`
	RoundNumber      int             `json:"round_number"`
	BasePrice        decimal.Decimal `json:"base_price"`
	MinPledge        decimal.Decimal `json:"min_pledge"`
	MaxPledge        decimal.Decimal `json:"max_pledge"`
	ParticipationFee decimal.Decimal `json:"participation_fee"`
	StartTime        time.Time       `json:"start_time"`
	EndTime          time.Time       `json:"end_time"`
	IsActive         bool            `json:"is_active"`
}

// ErrorPayload reports a per-client failure.
type ErrorPayload struct {
	Error string `json:"error"`
}

func encodeEnvelope(t MessageType, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: t, Data: data})
}
