package games

import "time"

// Status is the lifecycle state of a game.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusFinished   Status = "finished"
	StatusPostponed  Status = "postponed"
	StatusCancelled  Status = "cancelled"
)

// Team is a competitor in a game.
type Team struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Sport   string `json:"sport"`
	League  string `json:"league,omitempty"`
	LogoURL string `json:"logo_url,omitempty"`
}

// Game is a fixture between two teams.
type Game struct {
	ID        int64     `json:"id"`
	HomeTeam  Team      `json:"home_team"`
	AwayTeam  Team      `json:"away_team"`
	GameTime  time.Time `json:"game_time"`
	Status    Status    `json:"status"`
	HomeScore *int      `json:"home_score"`
	AwayScore *int      `json:"away_score"`
}

// Prediction is the stored tip for one game. Probabilities are in [0,1].
type Prediction struct {
	ID                 int64     `json:"id"`
	GameID             int64     `json:"game_id"`
	PredictedWinner    string    `json:"predicted_winner"`
	Summary            string    `json:"prediction_summary"`
	ValueBetSuggestion string    `json:"value_bet_suggestion"`
	HomeWinProbability float64   `json:"home_win_probability"`
	AwayWinProbability float64   `json:"away_win_probability"`
	DrawProbability    float64   `json:"draw_probability"`
	ConfidenceLevel    float64   `json:"confidence_level"`
	ModelVersion       string    `json:"model_version"`
	CreatedAt          time.Time `json:"created_at"`
}

// PredictionWithGame is a prediction joined with its fixture.
type PredictionWithGame struct {
	Prediction
	Game Game `json:"game"`
}

// PreAnalysisResult summarises one pre-analysis run.
type PreAnalysisResult struct {
	Candidates int `json:"candidates"`
	Analyzed   int `json:"analyzed_count"`
	Skipped    int `json:"skipped"`
}
