package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/orro3790/shiftbid-backend/internal/bidding"
	"github.com/orro3790/shiftbid-backend/pkg/logger"
)

type windowSweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (bidding.SweepResult, error)
}

// WindowCloserJobParams configure the expired-window closer.
type WindowCloserJobParams struct {
	Logger  *logger.Logger
	Bidding windowSweeper
}

// NewWindowCloserJob builds the job that resolves or closes bid windows
// whose deadline has passed.
func NewWindowCloserJob(params WindowCloserJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Bidding == nil {
		return nil, fmt.Errorf("bidding service required")
	}
	return &windowCloserJob{
		logg:    params.Logger,
		bidding: params.Bidding,
		now:     time.Now,
	}, nil
}

type windowCloserJob struct {
	logg    *logger.Logger
	bidding windowSweeper
	now     func() time.Time
}

func (j *windowCloserJob) Name() string { return "window-closer" }

func (j *windowCloserJob) Run(ctx context.Context) error {
	result, err := j.bidding.SweepExpired(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("sweep expired windows: %w", err)
	}
	if result.Resolved == 0 && result.Closed == 0 && result.Deferred == 0 {
		return nil
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"resolved": result.Resolved,
		"closed":   result.Closed,
		"deferred": result.Deferred,
	})
	j.logg.Info(logCtx, "expired windows swept")
	return nil
}
