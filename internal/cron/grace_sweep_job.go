package cron

import (
	"context"
	"fmt"

	"github.com/gembotlabs/gembot-backend/internal/subscription"
	"github.com/gembotlabs/gembot-backend/pkg/logger"
)

type graceSweeper interface {
	SweepExpiredGracePeriods(ctx context.Context) (subscription.SweepResult, error)
}

// GraceSweepJobParams configure the grace period sweep job.
type GraceSweepJobParams struct {
	Logger  *logger.Logger
	Sweeper graceSweeper
}

// NewGraceSweepJob builds the job that forfeits escrowed income of members
// whose grace window has fully elapsed.
func NewGraceSweepJob(params GraceSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("sweeper required")
	}
	return &graceSweepJob{logg: params.Logger, sweeper: params.Sweeper}, nil
}

type graceSweepJob struct {
	logg    *logger.Logger
	sweeper graceSweeper
}

func (j *graceSweepJob) Name() string { return "grace-period-sweep" }

func (j *graceSweepJob) Run(ctx context.Context) error {
	result, err := j.sweeper.SweepExpiredGracePeriods(ctx)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"forfeited_count": result.ForfeitedCount,
		"forfeited_total": result.ForfeitedTotal,
	})
	if err != nil {
		// Partial sweeps still forfeit what they can.
		j.logg.Warn(logCtx, "grace period sweep finished with failures")
		return fmt.Errorf("grace period sweep: %w", err)
	}
	j.logg.Info(logCtx, "grace period sweep complete")
	return nil
}
