package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Job is one unit of periodic work. It reports how many items it handled.
type Job func(ctx context.Context) int

// Stats describes the loop for the status endpoint.
type Stats struct {
	Job          string        `json:"job"`
	Running      bool          `json:"running"`
	Interval     time.Duration `json:"intervalNs"`
	Runs         int64         `json:"runs"`
	Panics       int64         `json:"panics"`
	LastHandled  int           `json:"lastHandled"`
	LastRunAt    time.Time     `json:"lastRunAt,omitzero"`
	LastDuration time.Duration `json:"lastDurationNs"`
}

// Scheduler runs a Job right after Start and then every interval until Stop.
// Runs never overlap, including manual RunOnce calls.
type Scheduler struct {
	name     string
	interval time.Duration
	job      Job
	log      zerolog.Logger

	runMu sync.Mutex // serializes job runs

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	stats   Stats
}

func New(name string, interval time.Duration, job Job, log zerolog.Logger) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New("interval must be > 0")
	}
	if job == nil {
		return nil, errors.New("job must not be nil")
	}
	return &Scheduler{
		name:     name,
		interval: interval,
		job:      job,
		log:      log.With().Str("component", "scheduler").Str("job", name).Logger(),
		stats:    Stats{Job: name, Interval: interval},
	}, nil
}

// Start reports false if the loop is already running.
func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel, s.done, s.running = cancel, done, true

	go s.loop(ctx, done)
	s.log.Info().Dur("interval", s.interval).Msg("scheduler started")
	return true
}

// Stop cancels the loop and waits for an in-flight run to return. It reports
// false if the loop was not running.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return false
	}
	cancel, done := s.cancel, s.done
	s.running = false
	s.mu.Unlock()

	cancel()
	<-done
	s.log.Info().Msg("scheduler stopped")
	return true
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) Name() string { return s.name }

func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.Running = s.running
	return st
}

// RunOnce runs the job now, waiting for any scheduled run to finish first.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	return s.run(ctx)
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.run(ctx)
		}
	}
}

func (s *Scheduler) run(ctx context.Context) (handled int) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if ctx.Err() != nil {
		return 0
	}

	start := time.Now()
	panicked := false
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			handled = 0
			s.log.Error().Interface("panic", r).Msg("job panic recovered")
		}
		s.record(start, handled, panicked)
	}()

	return s.job(ctx)
}

func (s *Scheduler) record(start time.Time, handled int, panicked bool) {
	elapsed := time.Since(start)

	s.mu.Lock()
	s.stats.Runs++
	if panicked {
		s.stats.Panics++
	}
	s.stats.LastHandled = handled
	s.stats.LastRunAt = start.UTC()
	s.stats.LastDuration = elapsed
	s.mu.Unlock()

	s.log.Debug().Int("handled", handled).Dur("duration", elapsed).Msg("job run completed")
}
