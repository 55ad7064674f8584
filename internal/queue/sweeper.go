package queue

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
)

// progressSteps are the progress values a task passes through while processing.
var progressSteps = []int{0, 20, 40, 60, 80, 100}

// Resolver produces the result payload of a task once its progress run is over.
type Resolver interface {
	Resolve(ctx context.Context, task Task) (map[string]interface{}, error)
}

// Observer is told about every task that reaches a terminal state.
type Observer interface {
	TaskFinished(task Task, elapsed time.Duration)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(task Task, elapsed time.Duration)

func (f ObserverFunc) TaskFinished(task Task, elapsed time.Duration) { f(task, elapsed) }

// Options tunes the sweeper timing.
type Options struct {
	Interval  time.Duration
	StepDelay time.Duration
}

// Sweeper periodically drives pending tasks to completion, one task at a time.
type Sweeper struct {
	registry  *Registry
	resolver  Resolver
	observers []Observer
	interval  time.Duration
	stepDelay time.Duration

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc

	// held for the whole of a sweep, so two sweeps never overlap
	sweepMu sync.Mutex
}

func NewSweeper(registry *Registry, resolver Resolver, opts Options, observers ...Observer) *Sweeper {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.StepDelay < 0 {
		opts.StepDelay = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Sweeper{
		registry:  registry,
		resolver:  resolver,
		observers: observers,
		interval:  opts.Interval,
		stepDelay: opts.StepDelay,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start schedules the sweep on a cron job. Runs that would overlap a still
// running sweep are skipped.
func (s *Sweeper) Start() error {
	logger := cron.PrintfLogger(log.New(os.Stdout, "[QUEUE] ", log.LstdFlags))
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(logger)), cron.WithLogger(cron.DiscardLogger))

	if _, err := s.cron.AddFunc("@every "+s.interval.String(), func() { s.Sweep(s.ctx) }); err != nil {
		return errors.Wrap(err, "schedule queue sweep")
	}
	s.cron.Start()
	log.Printf("[QUEUE] Sweeper started, interval %s, step delay %s", s.interval, s.stepDelay)
	return nil
}

// Stop cancels an in-flight task and waits for the running sweep to return.
func (s *Sweeper) Stop() {
	s.cancel()
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Sweep drives every task that is pending when it starts, oldest first.
func (s *Sweeper) Sweep(ctx context.Context) {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	for _, id := range s.registry.pendingIDs() {
		if ctx.Err() != nil {
			return
		}
		s.drive(ctx, id)
	}
}

func (s *Sweeper) drive(ctx context.Context, id string) {
	task, ok := s.registry.claim(id)
	if !ok {
		return
	}
	started := time.Now()

	result, err := s.run(ctx, task)
	finished, ok := s.registry.finish(id, result, err)
	if !ok {
		return
	}
	if err != nil {
		log.Printf("[QUEUE] Task %s (%s) failed: %v", id, task.Type, err)
	}

	elapsed := time.Since(started)
	for _, o := range s.observers {
		o.TaskFinished(finished, elapsed)
	}
}

func (s *Sweeper) run(ctx context.Context, task Task) (map[string]interface{}, error) {
	for _, p := range progressSteps {
		if err := sleep(ctx, s.stepDelay); err != nil {
			return nil, err
		}
		s.registry.setProgress(task.ID, p)
	}
	return s.resolver.Resolve(ctx, task)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
