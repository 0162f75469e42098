package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/orro3790/shiftbid-backend/internal/health"
	"github.com/orro3790/shiftbid-backend/pkg/logger"
)

type healthRecomputer interface {
	RecomputeAll(ctx context.Context, now time.Time) (health.SweepResult, error)
}

// HealthRecomputeJobParams configure the daily driver health recompute.
type HealthRecomputeJobParams struct {
	Logger *logger.Logger
	Health healthRecomputer
}

// NewHealthRecomputeJob builds the job that rebuilds driver metrics and
// applies flagging and weekly cap adjustments across the fleet.
func NewHealthRecomputeJob(params HealthRecomputeJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Health == nil {
		return nil, fmt.Errorf("health service required")
	}
	return &healthRecomputeJob{
		logg:   params.Logger,
		health: params.Health,
		now:    time.Now,
	}, nil
}

type healthRecomputeJob struct {
	logg   *logger.Logger
	health healthRecomputer
	now    func() time.Time
}

func (j *healthRecomputeJob) Name() string { return "driver-health-recompute" }

func (j *healthRecomputeJob) Run(ctx context.Context) error {
	result, err := j.health.RecomputeAll(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("recompute driver health: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"recomputed": result.Recomputed,
		"flagged":    result.Flagged,
		"hard_stops": result.HardStops,
	})
	j.logg.Info(logCtx, "driver health recompute finished")
	return nil
}
