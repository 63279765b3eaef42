package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sportsbet-ev/sportsbet-api/internal/games"
	jobmetrics "github.com/sportsbet-ev/sportsbet-api/internal/jobs"
)

type stubRunner struct {
	limits []int
	result games.PreAnalysisResult
	err    error
}

func (s *stubRunner) RunPreAnalysis(ctx context.Context, limit int) (games.PreAnalysisResult, error) {
	s.limits = append(s.limits, limit)
	return s.result, s.err
}

func task(t *testing.T, payload PreAnalysisPayload) *asynq.Task {
	t.Helper()
	tk, err := NewPreAnalysisTask(payload)
	require.NoError(t, err)
	return tk
}

func TestNewPreAnalysisTask(t *testing.T) {
	tk := task(t, PreAnalysisPayload{Limit: 7})
	assert.Equal(t, TaskPreAnalysis, tk.Type())
	var got PreAnalysisPayload
	require.NoError(t, json.Unmarshal(tk.Payload(), &got))
	assert.Equal(t, 7, got.Limit)
}

func TestPreAnalysisJobUsesPayloadLimit(t *testing.T) {
	runner := &stubRunner{result: games.PreAnalysisResult{Candidates: 3, Analyzed: 2, Skipped: 1}}
	job := NewPreAnalysisJob(runner, 10, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	require.NoError(t, job.Handle(context.Background(), task(t, PreAnalysisPayload{Limit: 3})))
	require.NoError(t, job.Handle(context.Background(), task(t, PreAnalysisPayload{})))
	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskPreAnalysis, nil)))
	assert.Equal(t, []int{3, 10, 10}, runner.limits)
}

func TestPreAnalysisJobErrors(t *testing.T) {
	boom := errors.New("db down")
	job := NewPreAnalysisJob(&stubRunner{err: boom}, 5, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	assert.ErrorIs(t, job.Handle(context.Background(), task(t, PreAnalysisPayload{})), boom)

	err := job.Handle(context.Background(), asynq.NewTask(TaskPreAnalysis, []byte("{not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	var unconfigured *PreAnalysisJob
	assert.Error(t, unconfigured.Handle(context.Background(), task(t, PreAnalysisPayload{})))
}
