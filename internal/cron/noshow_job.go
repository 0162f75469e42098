package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/orro3790/shiftbid-backend/internal/noshow"
	"github.com/orro3790/shiftbid-backend/pkg/logger"
)

type noShowSweeper interface {
	Sweep(ctx context.Context, now time.Time) (noshow.SweepResult, error)
}

// NoShowJobParams configure the daily no-show detection job.
type NoShowJobParams struct {
	Logger *logger.Logger
	NoShow noShowSweeper
}

// NewNoShowJob builds the job that cancels no-show assignments and opens
// emergency backfill windows.
func NewNoShowJob(params NoShowJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.NoShow == nil {
		return nil, fmt.Errorf("no-show service required")
	}
	return &noShowJob{
		logg:   params.Logger,
		noShow: params.NoShow,
		now:    time.Now,
	}, nil
}

type noShowJob struct {
	logg   *logger.Logger
	noShow noShowSweeper
	now    func() time.Time
}

func (j *noShowJob) Name() string { return "no-show-sweep" }

func (j *noShowJob) Run(ctx context.Context) error {
	result, err := j.noShow.Sweep(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("no-show sweep: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"scanned":   result.Scanned,
		"no_shows":  result.NoShows,
		"backfills": result.Backfills,
	})
	j.logg.Info(logCtx, "no-show sweep finished")
	return nil
}
