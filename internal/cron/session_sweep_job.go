package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/packagebuilder-backend/pkg/logger"
)

const sessionSweepJobName = "configuration-session-sweep"

type idleSessionSweeper interface {
	Sweep(ctx context.Context) int
}

// NewSessionSweepJob disposes wizard sessions that outlived their idle TTL.
func NewSessionSweepJob(logg *logger.Logger, sweeper idleSessionSweeper) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if sweeper == nil {
		return nil, fmt.Errorf("session sweeper required")
	}
	return &sessionSweepJob{logg: logg, sweeper: sweeper}, nil
}

type sessionSweepJob struct {
	logg    *logger.Logger
	sweeper idleSessionSweeper
}

func (j *sessionSweepJob) Name() string { return sessionSweepJobName }

func (j *sessionSweepJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n := j.sweeper.Sweep(ctx); n > 0 {
		j.logg.Info(j.logg.WithField(ctx, "sessions_disposed", n), "idle sessions swept")
	}
	return nil
}
