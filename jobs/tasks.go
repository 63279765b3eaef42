package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPreAnalysis generates predictions for upcoming games.
	TaskPreAnalysis = "games:pre_analysis"

	preAnalysisUniqueTTL = 10 * time.Minute
	preAnalysisTimeout   = 5 * time.Minute
)

// PreAnalysisPayload describes one pre-analysis run. Limit <= 0 uses the worker default.
// The queue deduplicates on the encoded payload, so it carries run parameters only.
type PreAnalysisPayload struct {
	Limit int `json:"limit"`
}

// NewPreAnalysisTask constructs an Asynq task. Submissions with the same
// payload within the unique window are rejected by the queue, whoever sent them.
func NewPreAnalysisTask(payload PreAnalysisPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPreAnalysis, data,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(3),
		asynq.Timeout(preAnalysisTimeout),
		asynq.Unique(preAnalysisUniqueTTL),
	), nil
}
