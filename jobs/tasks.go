// Package jobs hosts the asynq worker, its task handlers and the
// client used to enqueue background maintenance work.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
	// TaskDraftSweep archives drafts that were abandoned.
	TaskDraftSweep = "maintenance:draft_sweep"
)

// IdempotencyCleanupPayload bounds one cleanup run. A zero Retention
// falls back to the handler default.
type IdempotencyCleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewIdempotencyCleanupTask constructs an asynq task for key cleanup.
func NewIdempotencyCleanupTask(payload IdempotencyCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}

// DraftSweepPayload bounds one sweep run. A zero MaxAge falls back to
// the handler default.
type DraftSweepPayload struct {
	MaxAge time.Duration `json:"max_age"`
}

// NewDraftSweepTask constructs an asynq task for the draft sweep.
func NewDraftSweepTask(payload DraftSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDraftSweep, data), nil
}
