package games

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// ListLimit caps the games and predictions listings.
	ListLimit = 20
	// DefaultPreAnalysisLimit is used when a run is requested with limit <= 0.
	DefaultPreAnalysisLimit = 5

	tipsterConcurrency = 4
)

// Service exposes fixtures, predictions and the pre-analysis run.
type Service struct {
	repo    RepositoryPort
	tipster Tipster
	now     func() time.Time
	logger  *slog.Logger
}

// NewService constructs the games service.
func NewService(repo RepositoryPort, tipster Tipster, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if tipster == nil {
		tipster = NewHeuristicTipster()
	}
	return &Service{repo: repo, tipster: tipster, now: time.Now, logger: logger}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ListUpcoming returns the next games by kick-off time.
func (s *Service) ListUpcoming(ctx context.Context) ([]Game, error) {
	out, err := s.repo.ListUpcoming(ctx, s.now().UTC(), ListLimit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Game{}
	}
	return out, nil
}

// GetGame returns a single game.
func (s *Service) GetGame(ctx context.Context, id int64) (Game, error) {
	return s.repo.GetGame(ctx, id)
}

// ListPredictions returns the latest predictions with their games.
func (s *Service) ListPredictions(ctx context.Context) ([]PredictionWithGame, error) {
	out, err := s.repo.ListPredictions(ctx, ListLimit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []PredictionWithGame{}
	}
	return out, nil
}

// GetPrediction returns the prediction of an existing game.
func (s *Service) GetPrediction(ctx context.Context, gameID int64) (PredictionWithGame, error) {
	g, err := s.repo.GetGame(ctx, gameID)
	if err != nil {
		return PredictionWithGame{}, err
	}
	p, err := s.repo.PredictionForGame(ctx, gameID)
	if err != nil {
		return PredictionWithGame{}, err
	}
	return PredictionWithGame{Prediction: p, Game: g}, nil
}

// RunPreAnalysis asks the tipster about upcoming games that have no prediction
// and stores at most one prediction per game. A tipster failure skips that game.
func (s *Service) RunPreAnalysis(ctx context.Context, limit int) (PreAnalysisResult, error) {
	if limit <= 0 {
		limit = DefaultPreAnalysisLimit
	}
	candidates, err := s.repo.GamesWithoutPrediction(ctx, s.now().UTC(), limit)
	if err != nil {
		return PreAnalysisResult{}, fmt.Errorf("games: find candidates: %w", err)
	}
	result := PreAnalysisResult{Candidates: len(candidates)}
	if len(candidates) == 0 {
		s.logger.Info("pre-analysis: nothing to analyze")
		return result, nil
	}

	tips := make([]*Prediction, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(tipsterConcurrency)
	for i, game := range candidates {
		g.Go(func() error {
			p, err := s.tipster.Predict(gctx, game)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				s.logger.Warn("pre-analysis: tipster failed", slog.Int64("game_id", game.ID), slog.Any("error", err))
				return nil
			}
			p.GameID = game.ID
			tips[i] = &p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}

	for _, p := range tips {
		if p == nil {
			result.Skipped++
			continue
		}
		_, inserted, err := s.repo.InsertPrediction(ctx, *p)
		if err != nil {
			return result, err
		}
		if !inserted {
			result.Skipped++
			continue
		}
		result.Analyzed++
	}
	s.logger.Info("pre-analysis complete",
		slog.Int("candidates", result.Candidates),
		slog.Int("analyzed", result.Analyzed),
		slog.Int("skipped", result.Skipped))
	return result, nil
}
