package scheduler

import (
	"context"
	"fmt"
	"time"

	"installpro/pkg/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const jobTimeout = 5 * time.Minute

// ContractExpirer is the maintenance work the scheduler drives.
type ContractExpirer interface {
	ExpireOverdue(ctx context.Context) (int64, error)
}

// Scheduler runs periodic maintenance jobs on cron specs.
type Scheduler struct {
	cron *cron.Cron
	jobs map[string]cron.EntryID
}

func New() *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{}))),
		jobs: make(map[string]cron.EntryID),
	}
}

// ScheduleContractExpiry registers the contract expiry sweep on spec
// (standard cron or "@every 1h").
func (s *Scheduler) ScheduleContractExpiry(spec string, expirer ContractExpirer) error {
	return s.add("contract-expiry", spec, func(ctx context.Context) error {
		_, err := expirer.ExpireOverdue(ctx)
		return err
	})
}

func (s *Scheduler) add(name, spec string, job func(ctx context.Context) error) error {
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already scheduled", name)
	}
	id, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		start := time.Now()
		if err := job(ctx); err != nil {
			logger.L().Error("scheduled job failed", zap.String("job", name), zap.Error(err))
			return
		}
		logger.L().Debug("scheduled job finished", zap.String("job", name), zap.Duration("took", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", spec, name, err)
	}
	s.jobs[name] = id
	return nil
}

// Jobs lists the scheduled job names with their next run time.
func (s *Scheduler) Jobs() map[string]time.Time {
	out := make(map[string]time.Time, len(s.jobs))
	for name, id := range s.jobs {
		out[name] = s.cron.Entry(id).Next
	}
	return out
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logger.L().Info("scheduler started", zap.Int("jobs", len(s.jobs)))
}

// Stop waits for running jobs to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
	logger.L().Info("scheduler stopped")
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.L().Sugar().Debugw(msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.L().Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
