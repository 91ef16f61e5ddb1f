package util

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Scheduler runs in-process housekeeping jobs on cron schedules.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithParser(cronParser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger: logger,
	}
}

// Add registers fn under name. spec is a five-field expression or a
// descriptor such as "@every 1m".
func (s *Scheduler) Add(name, spec string, fn func()) error {
	_, err := s.cron.AddFunc(spec, func() {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("scheduled job panicked", "job", name, "panic", rec)
			}
		}()
		fn()
	})
	if err != nil {
		return fmt.Errorf("invalid schedule for %s: %w", name, err)
	}
	s.logger.Debug("scheduled job", "job", name, "spec", spec)
	return nil
}

// Len is the number of registered jobs.
func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs; the returned context is done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
