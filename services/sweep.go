package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"franchise-dispatch-api/models"

	"github.com/google/uuid"
)

var (
	ErrSweepAlreadyRunning = errors.New("sweep already running")
	ErrUnknownSweep        = errors.New("unknown sweep")
)

// SweepSummary counts what one sweep pass did.
type SweepSummary struct {
	Scanned   int `json:"scanned"`
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// Sweep is a single-pass periodic job.
type Sweep interface {
	Name() string
	Sweep(ctx context.Context, summary *SweepSummary) error
}

/* ==========================
   Run records
   ========================== */

type SweepRunService struct {
	store Store
	clock Clock
}

func NewSweepRunService(store Store, clock Clock) *SweepRunService {
	return &SweepRunService{store: store, clock: clock}
}

func (s *SweepRunService) Start(ctx context.Context, name, trigger string) (*models.SweepRun, error) {
	if trigger == "" {
		trigger = "unknown"
	}
	run := &models.SweepRun{
		SweepName:     name,
		TriggerSource: trigger,
		Status:        models.SweepRunStatusRunning,
		StartedAt:     s.clock.now(),
	}
	if err := s.store.StartSweepRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *SweepRunService) MarkSuccess(ctx context.Context, run *models.SweepRun, summary *SweepSummary) error {
	return s.finish(ctx, run, models.SweepRunStatusSuccess, summary, nil)
}

func (s *SweepRunService) MarkFailure(ctx context.Context, run *models.SweepRun, summary *SweepSummary, err error) error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return s.finish(ctx, run, models.SweepRunStatusFailed, summary, &msg)
}

// MarkSkipped records a run that found the sweep already in progress.
func (s *SweepRunService) MarkSkipped(ctx context.Context, name, trigger string) error {
	run, err := s.Start(ctx, name, trigger)
	if err != nil {
		return err
	}
	msg := ErrSweepAlreadyRunning.Error()
	return s.finish(ctx, run, models.SweepRunStatusSkipped, nil, &msg)
}

func (s *SweepRunService) finish(ctx context.Context, run *models.SweepRun, status string, summary *SweepSummary, errMsg *string) error {
	now := s.clock.now()
	run.Status = status
	run.FinishedAt = &now
	if summary != nil {
		run.Scanned = uint(summary.Scanned)
		run.Processed = uint(summary.Processed)
		run.Failed = uint(summary.Failed)
	}
	if errMsg != nil {
		if len(*errMsg) > 1000 {
			truncated := fmt.Sprintf("%s...", (*errMsg)[:997])
			run.ErrorMessage = &truncated
		} else {
			run.ErrorMessage = errMsg
		}
	}
	return s.store.FinishSweepRun(ctx, run)
}

func (s *SweepRunService) Recent(ctx context.Context, name string, limit int) ([]models.SweepRun, error) {
	return s.store.ListSweepRuns(ctx, name, limit)
}

/* ==========================
   Runner
   ========================== */

// SweepRunner executes sweeps under a lease so that two processes never run
// the same sweep at once. A crashed holder's lease lapses after LeaseTTL.
type SweepRunner struct {
	store    Store
	runs     *SweepRunService
	clock    Clock
	holder   string
	leaseTTL time.Duration
	sweeps   map[string]Sweep
}

func NewSweepRunner(store Store, clock Clock, leaseTTL time.Duration, sweeps ...Sweep) *SweepRunner {
	if leaseTTL <= 0 {
		leaseTTL = 5 * time.Minute
	}
	host, _ := os.Hostname()
	if host == "" {
		host = "dispatch"
	}
	r := &SweepRunner{
		store:    store,
		runs:     NewSweepRunService(store, clock),
		clock:    clock,
		holder:   host + "-" + uuid.NewString()[:8],
		leaseTTL: leaseTTL,
		sweeps:   make(map[string]Sweep, len(sweeps)),
	}
	for _, sw := range sweeps {
		r.sweeps[sw.Name()] = sw
	}
	return r
}

func (r *SweepRunner) Sweeps() []Sweep {
	out := make([]Sweep, 0, len(r.sweeps))
	for _, sw := range r.sweeps {
		out = append(out, sw)
	}
	return out
}

func (r *SweepRunner) Runs() *SweepRunService { return r.runs }

// RunByName runs the registered sweep called name.
func (r *SweepRunner) RunByName(ctx context.Context, name, trigger string) (*SweepSummary, error) {
	sw, ok := r.sweeps[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSweep, name)
	}
	return r.Run(ctx, sw, trigger)
}

func (r *SweepRunner) Run(ctx context.Context, sw Sweep, trigger string) (*SweepSummary, error) {
	name := sw.Name()
	now := r.clock.now()
	acquired, err := r.store.AcquireLease(ctx, name, r.holder, now.Add(r.leaseTTL), now)
	if err != nil {
		return nil, fmt.Errorf("acquire %s lease: %w", name, err)
	}
	if !acquired {
		if err := r.runs.MarkSkipped(ctx, name, trigger); err != nil {
			log.Printf("failed to record skipped %s run: %v", name, err)
		}
		return nil, ErrSweepAlreadyRunning
	}
	defer func() {
		if err := r.store.ReleaseLease(persistentContext(ctx), name, r.holder); err != nil {
			log.Printf("failed to release %s lease: %v", name, err)
		}
	}()

	summary := &SweepSummary{}
	run, err := r.runs.Start(ctx, name, trigger)
	if err != nil {
		return nil, err
	}

	sweepErr := sw.Sweep(ctx, summary)
	finishCtx := persistentContext(ctx)
	if sweepErr != nil {
		if err := r.runs.MarkFailure(finishCtx, run, summary, sweepErr); err != nil {
			log.Printf("failed to mark %s run failure: %v", name, err)
		}
		return summary, sweepErr
	}
	if err := r.runs.MarkSuccess(finishCtx, run, summary); err != nil {
		log.Printf("failed to mark %s run success: %v", name, err)
	}
	return summary, nil
}
