// Package schedule adds optional cron-based recurring run scheduling on
// top of a registered agent (SPEC_FULL.md E.2 enrichment beyond the
// on-demand Agent Manager). A Scheduler holds a list of Jobs, each
// pairing a parsed Schedule with the agent ID and prompt to start on
// every firing.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/agentcore/runtime/internal/manager"
)

var cronParser = cron.NewParser(
	cron.SecondOptional |
		cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// Schedule is a parsed recurrence: either a cron expression or a fixed
// interval.
type Schedule struct {
	CronExpr string
	Every    time.Duration
	Timezone string
}

// Parse validates cronExpr (or every, if cronExpr is blank) and returns a
// Schedule. Exactly one of cronExpr or every must be set.
func Parse(cronExpr string, every time.Duration, timezone string) (Schedule, error) {
	cronExpr = strings.TrimSpace(cronExpr)
	if cronExpr == "" && every <= 0 {
		return Schedule{}, fmt.Errorf("schedule: either a cron expression or an interval is required")
	}
	if cronExpr != "" && every > 0 {
		return Schedule{}, fmt.Errorf("schedule: cron expression and interval are mutually exclusive")
	}
	if cronExpr != "" {
		if _, err := cronParser.Parse(cronExpr); err != nil {
			return Schedule{}, fmt.Errorf("schedule: invalid cron expression %q: %w", cronExpr, err)
		}
	}
	return Schedule{CronExpr: cronExpr, Every: every, Timezone: strings.TrimSpace(timezone)}, nil
}

// Next returns the next run time strictly after now.
func (s Schedule) Next(now time.Time) (time.Time, error) {
	if s.Every > 0 {
		return now.Add(s.Every), nil
	}
	loc := now.Location()
	if s.Timezone != "" {
		if tz, err := time.LoadLocation(s.Timezone); err == nil {
			loc = tz
		}
	}
	parsed, err := cronParser.Parse(s.CronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("schedule: parse cron expression: %w", err)
	}
	return parsed.Next(now.In(loc)), nil
}

// Job is one scheduled recurring run against a registered agent.
type Job struct {
	ID       string
	AgentID  string
	Prompt   string
	Schedule Schedule
	Enabled  bool

	NextRun   time.Time
	LastRun   time.Time
	LastError string
	RunCount  int
}

// Scheduler polls its job list on a fixed tick and starts an agent run
// through the Agent Manager whenever a job's NextRun has passed.
type Scheduler struct {
	agents       *manager.AgentManager
	logger       *slog.Logger
	now          func() time.Time
	tickInterval time.Duration

	mu      sync.Mutex
	jobs    map[string]*Job
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTickInterval overrides the polling interval (default 1s).
func WithTickInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tickInterval = d
		}
	}
}

// New constructs a Scheduler driving runs through agents.
func New(agents *manager.AgentManager, opts ...Option) *Scheduler {
	s := &Scheduler{
		agents:       agents,
		logger:       slog.Default(),
		now:          time.Now,
		tickInterval: time.Second,
		jobs:         make(map[string]*Job),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddJob registers a recurring job and computes its first NextRun. The
// job begins firing on the next tick after NextRun elapses.
func (s *Scheduler) AddJob(id, agentID, prompt string, sched Schedule) (*Job, error) {
	next, err := sched.Next(s.now())
	if err != nil {
		return nil, err
	}
	job := &Job{ID: id, AgentID: agentID, Prompt: prompt, Schedule: sched, Enabled: true, NextRun: next}

	s.mu.Lock()
	s.jobs[id] = job
	s.mu.Unlock()
	return job, nil
}

// RemoveJob unregisters a job by ID. Removing an unknown ID is a no-op.
func (s *Scheduler) RemoveJob(id string) {
	s.mu.Lock()
	delete(s.jobs, id)
	s.mu.Unlock()
}

// SetEnabled toggles whether a job fires on its schedule without losing
// its NextRun bookkeeping.
func (s *Scheduler) SetEnabled(id string, enabled bool) {
	s.mu.Lock()
	if job, ok := s.jobs[id]; ok {
		job.Enabled = enabled
	}
	s.mu.Unlock()
}

// Jobs returns a snapshot of every registered job.
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, *job)
	}
	return out
}

// Start begins the polling loop in a background goroutine. Calling Start
// twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.started = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(runCtx)
}

// Stop halts the polling loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.started = false
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Scheduler) tick() {
	now := s.now()

	s.mu.Lock()
	due := make([]*Job, 0)
	for _, job := range s.jobs {
		if job.Enabled && !job.NextRun.IsZero() && !now.Before(job.NextRun) {
			due = append(due, job)
		}
	}
	s.mu.Unlock()

	for _, job := range due {
		s.fire(job, now)
	}
}

func (s *Scheduler) fire(job *Job, now time.Time) {
	_, err := s.agents.StartRun(job.AgentID, job.Prompt, manager.StartOptions{})

	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.jobs[job.ID]
	if !ok {
		return // removed between tick snapshot and fire
	}
	current.LastRun = now
	current.RunCount++
	if err != nil {
		current.LastError = err.Error()
		s.logger.Error("scheduled run failed to start", "job_id", job.ID, "agent_id", job.AgentID, "error", err)
	} else {
		current.LastError = ""
	}
	if next, nextErr := current.Schedule.Next(now); nextErr == nil {
		current.NextRun = next
	} else {
		current.Enabled = false
		s.logger.Error("disabling job: cannot compute next run", "job_id", job.ID, "error", nextErr)
	}
}
