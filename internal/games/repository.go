package games

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sportsbet-ev/sportsbet-api/internal/platform/db"
	"github.com/sportsbet-ev/sportsbet-api/internal/shared"
)

// ErrNotFound is returned for unknown games or games without a prediction.
var ErrNotFound = fmt.Errorf("games: %w", shared.ErrNotFound)

// RepositoryPort is the persistence port for fixtures and predictions.
type RepositoryPort interface {
	ListUpcoming(ctx context.Context, from time.Time, limit int) ([]Game, error)
	GetGame(ctx context.Context, id int64) (Game, error)
	ListPredictions(ctx context.Context, limit int) ([]PredictionWithGame, error)
	PredictionForGame(ctx context.Context, gameID int64) (Prediction, error)
	GamesWithoutPrediction(ctx context.Context, from time.Time, limit int) ([]Game, error)
	// InsertPrediction stores p unless the game already has one; inserted reports which.
	InsertPrediction(ctx context.Context, p Prediction) (stored Prediction, inserted bool, err error)
}

// Repository provides PostgreSQL backed persistence for games.
type Repository struct {
	db db.DBTX
}

// NewRepository creates a new Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

const gameSelect = `
SELECT g.id, g.game_time, g.status, g.home_score, g.away_score,
       h.id, h.name, h.sport, COALESCE(h.league, ''), COALESCE(h.logo_url, ''),
       a.id, a.name, a.sport, COALESCE(a.league, ''), COALESCE(a.logo_url, '')
FROM games g
JOIN teams h ON h.id = g.home_team_id
JOIN teams a ON a.id = g.away_team_id`

func gameDest(g *Game) []any {
	return []any{
		&g.ID, &g.GameTime, &g.Status, &g.HomeScore, &g.AwayScore,
		&g.HomeTeam.ID, &g.HomeTeam.Name, &g.HomeTeam.Sport, &g.HomeTeam.League, &g.HomeTeam.LogoURL,
		&g.AwayTeam.ID, &g.AwayTeam.Name, &g.AwayTeam.Sport, &g.AwayTeam.League, &g.AwayTeam.LogoURL,
	}
}

func (r *Repository) queryGames(ctx context.Context, sql string, args ...any) ([]Game, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("games: query games: %w", err)
	}
	defer rows.Close()

	var out []Game
	for rows.Next() {
		var g Game
		if err := rows.Scan(gameDest(&g)...); err != nil {
			return nil, fmt.Errorf("games: scan game: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// ListUpcoming returns games starting at or after from, soonest first.
func (r *Repository) ListUpcoming(ctx context.Context, from time.Time, limit int) ([]Game, error) {
	return r.queryGames(ctx, gameSelect+`
WHERE g.game_time >= $1
ORDER BY g.game_time, g.id
LIMIT $2`, from, limit)
}

// GetGame returns one game with both teams.
func (r *Repository) GetGame(ctx context.Context, id int64) (Game, error) {
	var g Game
	err := r.db.QueryRow(ctx, gameSelect+` WHERE g.id = $1`, id).Scan(gameDest(&g)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return Game{}, ErrNotFound
	}
	if err != nil {
		return Game{}, fmt.Errorf("games: get game: %w", err)
	}
	return g, nil
}

// GamesWithoutPrediction returns scheduled future games that have no prediction yet.
func (r *Repository) GamesWithoutPrediction(ctx context.Context, from time.Time, limit int) ([]Game, error) {
	return r.queryGames(ctx, gameSelect+`
LEFT JOIN predictions p ON p.game_id = g.id
WHERE p.id IS NULL AND g.status = $1 AND g.game_time >= $2
ORDER BY g.game_time, g.id
LIMIT $3`, StatusScheduled, from, limit)
}

const predictionColumns = `p.id, p.game_id, COALESCE(p.predicted_winner, ''), COALESCE(p.prediction_summary, ''),
       COALESCE(p.value_bet_suggestion, ''), COALESCE(p.home_win_probability, 0),
       COALESCE(p.away_win_probability, 0), COALESCE(p.draw_probability, 0),
       COALESCE(p.confidence_level, 0), COALESCE(p.model_version, ''), p.created_at`

func predictionDest(p *Prediction) []any {
	return []any{
		&p.ID, &p.GameID, &p.PredictedWinner, &p.Summary, &p.ValueBetSuggestion,
		&p.HomeWinProbability, &p.AwayWinProbability, &p.DrawProbability,
		&p.ConfidenceLevel, &p.ModelVersion, &p.CreatedAt,
	}
}

// ListPredictions returns the newest predictions joined with their games.
func (r *Repository) ListPredictions(ctx context.Context, limit int) ([]PredictionWithGame, error) {
	rows, err := r.db.Query(ctx, `
SELECT `+predictionColumns+`,
       g.id, g.game_time, g.status, g.home_score, g.away_score,
       h.id, h.name, h.sport, COALESCE(h.league, ''), COALESCE(h.logo_url, ''),
       a.id, a.name, a.sport, COALESCE(a.league, ''), COALESCE(a.logo_url, '')
FROM predictions p
JOIN games g ON g.id = p.game_id
JOIN teams h ON h.id = g.home_team_id
JOIN teams a ON a.id = g.away_team_id
ORDER BY p.created_at DESC, p.id DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("games: list predictions: %w", err)
	}
	defer rows.Close()

	var out []PredictionWithGame
	for rows.Next() {
		var pg PredictionWithGame
		dest := append(predictionDest(&pg.Prediction), gameDest(&pg.Game)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("games: scan prediction: %w", err)
		}
		out = append(out, pg)
	}
	return out, rows.Err()
}

// PredictionForGame returns the prediction stored for a game.
func (r *Repository) PredictionForGame(ctx context.Context, gameID int64) (Prediction, error) {
	var p Prediction
	err := r.db.QueryRow(ctx, `SELECT `+predictionColumns+` FROM predictions p WHERE p.game_id = $1`, gameID).
		Scan(predictionDest(&p)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return Prediction{}, ErrNotFound
	}
	if err != nil {
		return Prediction{}, fmt.Errorf("games: prediction for game: %w", err)
	}
	return p, nil
}

// InsertPrediction stores one prediction per game; a concurrent writer wins silently.
func (r *Repository) InsertPrediction(ctx context.Context, p Prediction) (Prediction, bool, error) {
	err := r.db.QueryRow(ctx, `
INSERT INTO predictions (game_id, predicted_winner, prediction_summary, value_bet_suggestion,
    home_win_probability, away_win_probability, draw_probability, confidence_level, model_version)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (game_id) DO NOTHING
RETURNING id, created_at`,
		p.GameID, p.PredictedWinner, p.Summary, p.ValueBetSuggestion,
		p.HomeWinProbability, p.AwayWinProbability, p.DrawProbability, p.ConfidenceLevel, p.ModelVersion,
	).Scan(&p.ID, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Prediction{}, false, nil
	}
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return Prediction{}, false, ErrNotFound
		}
		return Prediction{}, false, fmt.Errorf("games: insert prediction: %w", err)
	}
	return p, true, nil
}
