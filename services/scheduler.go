package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs sweeps at fixed intervals inside the API process. A tick
// that arrives while the previous run is still going is skipped.
type Scheduler struct {
	cron   *cron.Cron
	runner *SweepRunner
}

func NewScheduler(runner *SweepRunner, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	logger := cron.PrintfLogger(log.Default())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		runner: runner,
	}
}

func (s *Scheduler) Every(sw Sweep, interval time.Duration) {
	if interval <= 0 {
		log.Printf("scheduler: %s disabled (interval %s)", sw.Name(), interval)
		return
	}
	s.cron.Schedule(cron.Every(interval), cron.FuncJob(func() {
		summary, err := s.runner.Run(context.Background(), sw, "scheduler")
		switch {
		case errors.Is(err, ErrSweepAlreadyRunning):
			log.Printf("scheduler: %s still running elsewhere, skipped", sw.Name())
		case err != nil:
			log.Printf("scheduler: %s failed: %v", sw.Name(), err)
		case summary.Scanned > 0:
			log.Printf("scheduler: %s scanned=%d processed=%d failed=%d", sw.Name(), summary.Scanned, summary.Processed, summary.Failed)
		}
	}))
	log.Printf("scheduler: %s every %s", sw.Name(), interval)
}

// Run starts the scheduler and blocks until ctx is done, then waits for
// running sweeps to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}
