package jobs

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// JobFunc is one sweep. It must be idempotent: the runner may invoke it
// again on the next tick regardless of the previous outcome.
type JobFunc func(ctx context.Context) error

type job struct {
	name     string
	interval time.Duration
	fn       JobFunc
	inFlight atomic.Bool
}

// Runner drives single-instance scheduled sweeps. Each job runs on its own
// ticker; overlapping invocations of the same job are skipped, not queued.
type Runner struct {
	mu   sync.Mutex
	jobs map[string]*job
	stop chan struct{}
	wg   sync.WaitGroup
	log  zerolog.Logger
}

func NewRunner(log zerolog.Logger) *Runner {
	return &Runner{
		jobs: map[string]*job{},
		stop: make(chan struct{}),
		log:  log,
	}
}

func (r *Runner) Register(name string, interval time.Duration, fn JobFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[name] = &job{name: name, interval: interval, fn: fn}
}

// Names returns the registered job names.
func (r *Runner) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		names = append(names, name)
	}
	return names
}

// Start launches one ticker goroutine per registered job.
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.jobs {
		j := j
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			ticker := time.NewTicker(j.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					r.invoke(context.Background(), j)
				case <-r.stop:
					return
				}
			}
		}()
		r.log.Info().Str("job", j.name).Dur("interval", j.interval).Msg("job scheduled")
	}
}

// Run executes one registered job immediately, for the CLI and for tests.
func (r *Runner) Run(ctx context.Context, name string) error {
	r.mu.Lock()
	j, ok := r.jobs[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return r.invoke(ctx, j)
}

func (r *Runner) invoke(ctx context.Context, j *job) error {
	if !j.inFlight.CompareAndSwap(false, true) {
		r.log.Warn().Str("job", j.name).Msg("previous run still in flight, skipping")
		return nil
	}
	defer j.inFlight.Store(false)

	start := time.Now()
	if err := j.fn(ctx); err != nil {
		r.log.Error().Err(err).Str("job", j.name).Msg("job failed")
		return err
	}
	r.log.Info().Str("job", j.name).Dur("took", time.Since(start)).Msg("job completed")
	return nil
}

// Stop halts the tickers and waits for in-flight runs to return.
func (r *Runner) Stop() {
	close(r.stop)
	r.wg.Wait()
}
