package games

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
)

// Tipster produces a prediction for a single game. Implementations may call
// out to an external model; the result is stored as-is.
type Tipster interface {
	Predict(ctx context.Context, game Game) (Prediction, error)
}

// HeuristicModelVersion tags predictions made by HeuristicTipster.
const HeuristicModelVersion = "mock_v0.1"

const drawProbability = 0.05

// HeuristicTipster picks a winner at random with a confidence between 0.55 and 0.85.
type HeuristicTipster struct {
	// Float returns a value in [0,1). Defaults to math/rand/v2.
	Float func() float64
}

// NewHeuristicTipster returns a tipster backed by the global random source.
func NewHeuristicTipster() *HeuristicTipster {
	return &HeuristicTipster{Float: rand.Float64}
}

// Predict implements Tipster.
func (t *HeuristicTipster) Predict(ctx context.Context, game Game) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	next := t.Float
	if next == nil {
		next = rand.Float64
	}

	winner := game.HomeTeam.Name
	if next() >= 0.5 {
		winner = game.AwayTeam.Name
	}
	confidence := math.Round((0.55+next()*0.30)*100) / 100

	p := Prediction{
		GameID:          game.ID,
		PredictedWinner: winner,
		Summary: fmt.Sprintf("Preliminary analysis for %s vs %s. Recent form and head-to-head record give a slight edge to %s.",
			game.HomeTeam.Name, game.AwayTeam.Name, winner),
		ValueBetSuggestion: fmt.Sprintf("Value bet: moneyline %s at %.0f%% confidence. Look for odds above %.2f.",
			winner, confidence*100, 1/confidence),
		DrawProbability: drawProbability,
		ConfidenceLevel: confidence,
		ModelVersion:    HeuristicModelVersion,
	}
	if winner == game.HomeTeam.Name {
		p.HomeWinProbability, p.AwayWinProbability = confidence, 1-confidence
	} else {
		p.HomeWinProbability, p.AwayWinProbability = 1-confidence, confidence
	}
	return p, nil
}
