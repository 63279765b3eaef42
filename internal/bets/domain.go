package bets

import (
	"time"

	"github.com/google/uuid"
)

// Status is the settlement state of a bet.
type Status string

const (
	StatusPending Status = "pending"
	StatusWon     Status = "won"
	StatusLost    Status = "lost"
	StatusVoid    Status = "void"
)

// Settled reports whether s is a final outcome.
func (s Status) Settled() bool {
	return s == StatusWon || s == StatusLost || s == StatusVoid
}

// Bet is one entry in a user's bet tracker.
type Bet struct {
	ID         int64      `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	GameID     *int64     `json:"game_id"`
	MarketName string     `json:"market_name"`
	Selection  string     `json:"selection"`
	Odds       float64    `json:"odds"`
	Stake      float64    `json:"stake"`
	Status     Status     `json:"status"`
	PlacedAt   time.Time  `json:"placed_at"`
	SettledAt  *time.Time `json:"settled_at"`
}

// PlaceRequest records a new bet for the caller.
type PlaceRequest struct {
	GameID     *int64  `json:"game_id" validate:"omitempty,gt=0"`
	MarketName string  `json:"market_name" validate:"required,max=255"`
	Selection  string  `json:"selection" validate:"required,max=255"`
	Odds       float64 `json:"odds" validate:"gt=1"`
	Stake      float64 `json:"stake" validate:"gt=0"`
	Status     Status  `json:"status" validate:"omitempty,oneof=pending won lost void"`
}

// SettleRequest moves a bet to its outcome.
type SettleRequest struct {
	Status Status `json:"status" validate:"required,oneof=pending won lost void"`
}

// Summary aggregates a user's tracker.
type Summary struct {
	Total   int     `json:"total"`
	Pending int     `json:"pending"`
	Won     int     `json:"won"`
	Lost    int     `json:"lost"`
	Void    int     `json:"void"`
	Staked  float64 `json:"staked"`
	Return  float64 `json:"return"`
	Profit  float64 `json:"profit"`
}
