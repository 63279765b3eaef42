package games

import (
	"context"
	"sort"
	"sync"
	"time"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	mu          sync.Mutex
	games       map[int64]Game
	predictions map[int64]Prediction // keyed by game id
	nextID      int64

	// Error injection
	candidatesError error
	insertError     error
	// preempt simulates another worker storing a prediction first.
	preempt map[int64]bool
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		games:       make(map[int64]Game),
		predictions: make(map[int64]Prediction),
		preempt:     make(map[int64]bool),
	}
}

func (m *mockRepository) addGame(id int64, home, away string, at time.Time, status Status) Game {
	g := Game{
		ID:       id,
		HomeTeam: Team{ID: id * 10, Name: home, Sport: "football"},
		AwayTeam: Team{ID: id*10 + 1, Name: away, Sport: "football"},
		GameTime: at,
		Status:   status,
	}
	m.games[id] = g
	return g
}

func (m *mockRepository) sortedGames(keep func(Game) bool) []Game {
	var out []Game
	for _, g := range m.games {
		if keep(g) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GameTime.Equal(out[j].GameTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].GameTime.Before(out[j].GameTime)
	})
	return out
}

func capped[T any](in []T, limit int) []T {
	if len(in) > limit {
		return in[:limit]
	}
	return in
}

func (m *mockRepository) ListUpcoming(ctx context.Context, from time.Time, limit int) ([]Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return capped(m.sortedGames(func(g Game) bool { return !g.GameTime.Before(from) }), limit), nil
}

func (m *mockRepository) GetGame(ctx context.Context, id int64) (Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[id]
	if !ok {
		return Game{}, ErrNotFound
	}
	return g, nil
}

func (m *mockRepository) ListPredictions(ctx context.Context, limit int) ([]PredictionWithGame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []PredictionWithGame
	for gameID, p := range m.predictions {
		out = append(out, PredictionWithGame{Prediction: p, Game: m.games[gameID]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return capped(out, limit), nil
}

func (m *mockRepository) PredictionForGame(ctx context.Context, gameID int64) (Prediction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.predictions[gameID]
	if !ok {
		return Prediction{}, ErrNotFound
	}
	return p, nil
}

func (m *mockRepository) GamesWithoutPrediction(ctx context.Context, from time.Time, limit int) ([]Game, error) {
	if m.candidatesError != nil {
		return nil, m.candidatesError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return capped(m.sortedGames(func(g Game) bool {
		_, has := m.predictions[g.ID]
		return !has && g.Status == StatusScheduled && !g.GameTime.Before(from)
	}), limit), nil
}

func (m *mockRepository) InsertPrediction(ctx context.Context, p Prediction) (Prediction, bool, error) {
	if m.insertError != nil {
		return Prediction{}, false, m.insertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[p.GameID]; !ok {
		return Prediction{}, false, ErrNotFound
	}
	if m.preempt[p.GameID] {
		m.nextID++
		m.predictions[p.GameID] = Prediction{ID: m.nextID, GameID: p.GameID, ModelVersion: "other"}
	}
	if _, exists := m.predictions[p.GameID]; exists {
		return Prediction{}, false, nil
	}
	m.nextID++
	p.ID = m.nextID
	p.CreatedAt = time.Now()
	m.predictions[p.GameID] = p
	return p, true, nil
}
