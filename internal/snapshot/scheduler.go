package snapshot

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Rebuilder replaces the cached snapshot with a freshly built one.
type Rebuilder interface {
	Rebuild(ctx context.Context) (*Dashboard, error)
}

// Stats describes the scheduled refreshes run so far.
type Stats struct {
	Refreshes     int64     `json:"refreshes"`
	Failures      int64     `json:"failures"`
	LastRefreshAt time.Time `json:"last_refresh_at,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
}

// Scheduler re-warms the snapshot cache on a cron schedule so requests
// rarely wait for a build.
type Scheduler struct {
	cron     *cron.Cron
	cache    Rebuilder
	schedule string
	timeout  time.Duration

	statsMu sync.RWMutex
	stats   Stats
}

// NewScheduler validates schedule and prepares the job. timeout bounds each
// refresh.
func NewScheduler(cache Rebuilder, schedule string, timeout time.Duration) (*Scheduler, error) {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	cronLogger := cron.PrintfLogger(log.New(log.Writer(), "[scheduler] ", log.LstdFlags))
	s := &Scheduler{
		cron:     cron.New(cron.WithChain(cron.Recover(cronLogger))),
		cache:    cache,
		schedule: schedule,
		timeout:  timeout,
	}
	if _, err := s.cron.AddFunc(schedule, s.RunOnce); err != nil {
		return nil, fmt.Errorf("schedule refresh %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins running the schedule in the background.
func (s *Scheduler) Start() {
	log.Printf("[scheduler] Refreshing snapshot on schedule %q", s.schedule)
	s.cron.Start()
}

// Stop halts the schedule and waits for a running refresh to finish or for
// ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler shutdown: %w", ctx.Err())
	}
}

// RunOnce performs a single refresh and records the outcome.
func (s *Scheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	started := time.Now()
	dash, err := s.cache.Rebuild(ctx)

	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	s.stats.LastRefreshAt = started
	if err != nil {
		s.stats.Failures++
		s.stats.LastError = err.Error()
		log.Printf("[scheduler] Refresh failed: %v", err)
		return
	}
	s.stats.Refreshes++
	s.stats.LastError = ""
	log.Printf("[scheduler] Refreshed snapshot %s in %s", dash.ID, time.Since(started).Round(time.Millisecond))
}

// Stats returns a copy of the refresh counters.
func (s *Scheduler) Stats() Stats {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()
	return s.stats
}
