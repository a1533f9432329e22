// Package scheduler queues SCHEDULED campaigns once their time has come.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Dispatcher queues every campaign that is due and reports how many it queued.
type Dispatcher interface {
	DispatchDue(ctx context.Context) (int, error)
}

type Scheduler struct {
	schedule   cron.Schedule
	dispatcher Dispatcher
	log        *zap.SugaredLogger
}

// New parses spec (standard five-field cron or a descriptor such as
// "@every 1m").
func New(spec string, d Dispatcher, log *zap.SugaredLogger) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("scheduler: invalid spec %q: %w", spec, err)
	}
	return &Scheduler{schedule: schedule, dispatcher: d, log: log}, nil
}

// Run ticks until ctx is cancelled and waits for a running tick to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(s.schedule, cron.FuncJob(func() { s.Tick(ctx) }))
	c.Start()
	s.log.Info("scheduler started")

	<-ctx.Done()
	<-c.Stop().Done()
	s.log.Info("scheduler stopped")
	return nil
}

// Tick dispatches due campaigns once.
func (s *Scheduler) Tick(ctx context.Context) {
	n, err := s.dispatcher.DispatchDue(ctx)
	if err != nil {
		s.log.Errorw("failed to dispatch scheduled campaigns", "error", err)
		return
	}
	if n > 0 {
		s.log.Infow("scheduled campaigns queued", "count", n)
	}
}
