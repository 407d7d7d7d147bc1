package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/relay-core/relay/internal/jobs"
)

// defaultDraftMaxAge applies when the payload carries no max age.
const defaultDraftMaxAge = 30 * 24 * time.Hour

// DraftSweeper archives drafts last touched before the cutoff.
type DraftSweeper interface {
	SweepStaleDrafts(ctx context.Context, cutoff time.Time) (int, error)
}

// DraftSweepJob archives drafts that sat untouched past their max age.
type DraftSweepJob struct {
	Records DraftSweeper
	MaxAge  time.Duration
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewDraftSweepJob wires dependencies for the sweep handler.
func NewDraftSweepJob(records DraftSweeper, maxAge time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *DraftSweepJob {
	return &DraftSweepJob{
		Records: records,
		MaxAge:  maxAge,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskDraftSweep tasks.
func (j *DraftSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Records == nil {
		return errors.New("draft sweep: handler not configured")
	}
	var payload DraftSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	maxAge := payload.MaxAge
	if maxAge <= 0 {
		maxAge = j.MaxAge
	}
	if maxAge <= 0 {
		maxAge = defaultDraftMaxAge
	}
	cutoff := j.now().Add(-maxAge)

	tracker := j.Metrics.Track(TaskDraftSweep)
	archived, err := j.Records.SweepStaleDrafts(ctx, cutoff)
	if err = tracker.End(err); err != nil {
		j.logger().Error("draft sweep", slog.Any("error", err))
		return err
	}
	j.Metrics.AddSwept(TaskDraftSweep, archived)
	j.logger().Info("draft sweep complete",
		slog.Int("archived", archived),
		slog.Time("cutoff", cutoff))
	return nil
}

func (j *DraftSweepJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *DraftSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
