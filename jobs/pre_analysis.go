package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/sportsbet-ev/sportsbet-api/internal/games"
	jobmetrics "github.com/sportsbet-ev/sportsbet-api/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// PreAnalysisRunner is implemented by games.Service.
type PreAnalysisRunner interface {
	RunPreAnalysis(ctx context.Context, limit int) (games.PreAnalysisResult, error)
}

// PreAnalysisJob handles TaskPreAnalysis.
type PreAnalysisJob struct {
	Runner       PreAnalysisRunner
	DefaultLimit int
	Logger       *slog.Logger
	Metrics      *jobmetrics.Metrics
}

// NewPreAnalysisJob wires dependencies for the pre-analysis handler.
func NewPreAnalysisJob(runner PreAnalysisRunner, defaultLimit int, logger *slog.Logger, metrics *jobmetrics.Metrics) *PreAnalysisJob {
	return &PreAnalysisJob{Runner: runner, DefaultLimit: defaultLimit, Logger: logger, Metrics: metrics}
}

// Handle processes pre-analysis tasks.
func (j *PreAnalysisJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Runner == nil {
		return errors.New("pre-analysis: handler not configured")
	}
	var payload PreAnalysisPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("pre-analysis: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	limit := payload.Limit
	if limit <= 0 {
		limit = j.DefaultLimit
	}

	tracker := j.metrics().Track(TaskPreAnalysis)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("limit", limit))
	logger.Info("starting pre-analysis")

	res, err := j.Runner.RunPreAnalysis(ctx, limit)
	j.metrics().AddPredictions(jobmetrics.OutcomeStored, res.Analyzed)
	j.metrics().AddPredictions(jobmetrics.OutcomeSkipped, res.Skipped)
	if err != nil {
		logger.Error("pre-analysis failed", slog.Any("error", err))
		return err
	}
	logger.Info("completed pre-analysis",
		slog.Int("candidates", res.Candidates),
		slog.Int("analyzed", res.Analyzed),
		slog.Int("skipped", res.Skipped))
	return nil
}

func (j *PreAnalysisJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskPreAnalysis))
	}
	return slog.Default().With(slog.String("job", TaskPreAnalysis))
}

func (j *PreAnalysisJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
