package bets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sportsbet-ev/sportsbet-api/internal/platform/db"
	"github.com/sportsbet-ev/sportsbet-api/internal/shared"
)

var (
	// ErrNotFound hides bets that do not exist or belong to someone else.
	ErrNotFound = fmt.Errorf("bets: %w", shared.ErrNotFound)
	// ErrUnknownGame is returned when game_id does not reference a game.
	ErrUnknownGame = fmt.Errorf("bets: unknown game: %w", shared.ErrValidation)
)

// RepositoryPort is the persistence port of the bet tracker.
type RepositoryPort interface {
	Insert(ctx context.Context, b Bet) (Bet, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Bet, error)
	SetStatus(ctx context.Context, userID uuid.UUID, id int64, status Status, settledAt *time.Time) (Bet, error)
	Summary(ctx context.Context, userID uuid.UUID) (Summary, error)
}

// Repository provides PostgreSQL backed persistence for bets.
type Repository struct {
	db db.DBTX
}

// NewRepository creates a new Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

const betColumns = `id, user_id, game_id, market_name, selection, odds, stake, status, placed_at, settled_at`

func scanBet(row pgx.Row) (Bet, error) {
	var b Bet
	err := row.Scan(&b.ID, &b.UserID, &b.GameID, &b.MarketName, &b.Selection, &b.Odds, &b.Stake, &b.Status, &b.PlacedAt, &b.SettledAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Bet{}, ErrNotFound
	}
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return Bet{}, ErrUnknownGame
		}
		return Bet{}, err
	}
	return b, nil
}

// Insert stores a new bet.
func (r *Repository) Insert(ctx context.Context, b Bet) (Bet, error) {
	out, err := scanBet(r.db.QueryRow(ctx, `
INSERT INTO bets (user_id, game_id, market_name, selection, odds, stake, status, placed_at, settled_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING `+betColumns,
		b.UserID, b.GameID, b.MarketName, b.Selection, b.Odds, b.Stake, b.Status, b.PlacedAt, b.SettledAt))
	if err != nil && !errors.Is(err, ErrUnknownGame) {
		return Bet{}, fmt.Errorf("bets: insert: %w", err)
	}
	return out, err
}

// ListByUser returns a user's bets, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Bet, error) {
	rows, err := r.db.Query(ctx, `
SELECT `+betColumns+` FROM bets
WHERE user_id = $1
ORDER BY placed_at DESC, id DESC
LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("bets: list: %w", err)
	}
	defer rows.Close()

	out := []Bet{}
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("bets: scan: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// SetStatus updates a bet owned by userID.
func (r *Repository) SetStatus(ctx context.Context, userID uuid.UUID, id int64, status Status, settledAt *time.Time) (Bet, error) {
	return scanBet(r.db.QueryRow(ctx, `
UPDATE bets SET status = $3, settled_at = $4
WHERE id = $1 AND user_id = $2
RETURNING `+betColumns, id, userID, status, settledAt))
}

// Summary aggregates a user's bets. Void and pending bets do not count towards stake or return.
func (r *Repository) Summary(ctx context.Context, userID uuid.UUID) (Summary, error) {
	var s Summary
	err := r.db.QueryRow(ctx, `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE status = 'pending'),
       COUNT(*) FILTER (WHERE status = 'won'),
       COUNT(*) FILTER (WHERE status = 'lost'),
       COUNT(*) FILTER (WHERE status = 'void'),
       COALESCE(SUM(stake) FILTER (WHERE status IN ('won', 'lost')), 0),
       COALESCE(SUM(stake * odds) FILTER (WHERE status = 'won'), 0)
FROM bets WHERE user_id = $1`, userID).
		Scan(&s.Total, &s.Pending, &s.Won, &s.Lost, &s.Void, &s.Staked, &s.Return)
	if err != nil {
		return Summary{}, fmt.Errorf("bets: summary: %w", err)
	}
	s.Profit = s.Return - s.Staked
	return s, nil
}
