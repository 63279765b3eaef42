package bets

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sportsbet-ev/sportsbet-api/internal/shared"
)

var (
	ErrInvalidOdds   = fmt.Errorf("bets: odds must be greater than 1: %w", shared.ErrValidation)
	ErrInvalidStake  = fmt.Errorf("bets: stake must be positive: %w", shared.ErrValidation)
	ErrInvalidStatus = fmt.Errorf("bets: unknown status: %w", shared.ErrValidation)
	ErrEmptyMarket   = fmt.Errorf("bets: market and selection are required: %w", shared.ErrValidation)
)

// Service is the bet tracker.
type Service struct {
	repo        RepositoryPort
	idempotency IdempotencyPort
	now         func() time.Time
	logger      *slog.Logger
}

// IdempotencyPort claims request keys so a retried placement is not recorded twice.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

const idempotencyModule = "bets.place"

// NewService constructs the bet tracker service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, now: time.Now, logger: logger}
}

// WithIdempotency enables Idempotency-Key handling on placement.
func (s *Service) WithIdempotency(store IdempotencyPort) *Service {
	s.idempotency = store
	return s
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func validStatus(st Status) bool {
	return st == StatusPending || st.Settled()
}

// Place records a bet for userID. Status defaults to pending; a bet placed
// already settled gets settled_at stamped.
func (s *Service) Place(ctx context.Context, userID uuid.UUID, req PlaceRequest) (Bet, error) {
	b := Bet{
		UserID:     userID,
		GameID:     req.GameID,
		MarketName: strings.TrimSpace(req.MarketName),
		Selection:  strings.TrimSpace(req.Selection),
		Odds:       req.Odds,
		Stake:      req.Stake,
		Status:     req.Status,
		PlacedAt:   s.now().UTC(),
	}
	if b.Status == "" {
		b.Status = StatusPending
	}
	switch {
	case b.MarketName == "" || b.Selection == "":
		return Bet{}, ErrEmptyMarket
	case !(b.Odds > 1):
		return Bet{}, ErrInvalidOdds
	case !(b.Stake > 0):
		return Bet{}, ErrInvalidStake
	case !validStatus(b.Status):
		return Bet{}, ErrInvalidStatus
	}
	if b.Status.Settled() {
		at := b.PlacedAt
		b.SettledAt = &at
	}

	out, err := s.repo.Insert(ctx, b)
	if err != nil {
		return Bet{}, err
	}
	s.logger.Info("bet placed", slog.Int64("bet_id", out.ID), slog.String("user_id", userID.String()))
	return out, nil
}

// PlaceOnce places a bet at most once per caller and key. An empty key, or a
// service without an idempotency store, behaves like Place.
func (s *Service) PlaceOnce(ctx context.Context, userID uuid.UUID, key string, req PlaceRequest) (Bet, error) {
	key = strings.TrimSpace(key)
	if key == "" || s.idempotency == nil {
		return s.Place(ctx, userID, req)
	}
	scoped := userID.String() + ":" + key
	if err := s.idempotency.CheckAndInsert(ctx, scoped, idempotencyModule); err != nil {
		return Bet{}, err
	}
	out, err := s.Place(ctx, userID, req)
	if err != nil {
		if delErr := s.idempotency.Delete(ctx, scoped, idempotencyModule); delErr != nil {
			s.logger.Warn("release idempotency key", slog.Any("error", delErr))
		}
		return Bet{}, err
	}
	return out, nil
}

// List returns a page of the caller's bets, newest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID, page, perPage int) ([]Bet, error) {
	page, perPage = shared.NormalizePage(page, perPage)
	p := shared.Pagination{Page: page, PerPage: perPage}
	return s.repo.ListByUser(ctx, userID, perPage, p.Offset())
}

// Settle sets the outcome of one of the caller's bets. Moving back to pending
// clears settled_at.
func (s *Service) Settle(ctx context.Context, userID uuid.UUID, id int64, status Status) (Bet, error) {
	if !validStatus(status) {
		return Bet{}, ErrInvalidStatus
	}
	var settledAt *time.Time
	if status.Settled() {
		at := s.now().UTC()
		settledAt = &at
	}
	return s.repo.SetStatus(ctx, userID, id, status, settledAt)
}

// Summary aggregates the caller's tracker.
func (s *Service) Summary(ctx context.Context, userID uuid.UUID) (Summary, error) {
	return s.repo.Summary(ctx, userID)
}
