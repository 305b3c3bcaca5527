package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"dfl-stack/shared/config"
	"dfl-stack/shared/monitoring"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Metrics is what an agent reports after a successful cycle.
type Metrics interface {
	// GetSummary returns a one-line description of the cycle.
	GetSummary() string
}

// AgentEvents carries the outcome callbacks for one cycle.
type AgentEvents struct {
	OnSuccess         func(metrics Metrics, duration time.Duration)
	OnPartialFailure  func(err error, duration time.Duration)
	OnCriticalFailure func(err error, duration time.Duration)
}

type Agent interface {
	Name() string
	RunOnce(ctx context.Context, events *AgentEvents) error
	Initialize() error
}

type runIDKey struct{}

// WithRunID tags ctx with the ID of the feedback cycle it belongs to.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunID returns the cycle ID set by the scheduler, or "".
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// Scheduler drives one agent's feedback cycles from a cron schedule. Ticks
// that fire while a cycle is still running are skipped.
type Scheduler struct {
	config  *config.Config
	monitor *monitoring.Monitor
	agent   Agent
	state   monitoring.StateReader
	cron    *cron.Cron
	newID   func() string
	cycles  atomic.Int64
}

// New schedules agent. state, when non-nil, is served read-only by the
// health server.
func New(cfg *config.Config, agent Agent, state monitoring.StateReader) *Scheduler {
	return &Scheduler{
		config:  cfg,
		monitor: monitoring.NewMonitor(),
		agent:   agent,
		state:   state,
		cron:    cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		newID:   uuid.NewString,
	}
}

func (s *Scheduler) Monitor() *monitoring.Monitor {
	return s.monitor
}

// Cycles is the number of cycles started so far.
func (s *Scheduler) Cycles() int64 {
	return s.cycles.Load()
}

// Start initializes the agent, serves health checks and runs cycles until
// ctx is cancelled. A cycle in flight at cancellation is waited for so its
// state writes are not cut short.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.agent.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize agent: %w", err)
	}

	healthServer := monitoring.NewHealthServer(s.monitor, s.state, fmt.Sprintf("%d", s.config.Monitoring.HealthPort))
	healthServer.Start()

	_, err := s.cron.AddFunc(s.config.Schedule, func() {
		if ctx.Err() != nil {
			return
		}
		if err := s.RunOnce(ctx); err != nil {
			log.Printf("Error running scheduled cycle for %s: %v", s.agent.Name(), err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	log.Printf("Scheduler started for %s with schedule: %s", s.agent.Name(), s.config.Schedule)
	s.cron.Start()

	<-ctx.Done()
	log.Printf("Scheduler stopping for %s, waiting for the current cycle", s.agent.Name())
	<-s.cron.Stop().Done()
	log.Printf("Scheduler stopped for %s after %d cycles", s.agent.Name(), s.Cycles())
	return ctx.Err()
}

// RunOnce runs a single cycle under a fresh run ID and records its outcome.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	startTime := time.Now()
	agentName := s.agent.Name()
	runID := s.newID()
	cycle := s.cycles.Add(1)

	log.Printf("Starting %s cycle #%d (%s)...", agentName, cycle, runID)

	events := &AgentEvents{
		OnSuccess: func(metrics Metrics, duration time.Duration) {
			s.monitor.RecordSuccess(fmt.Sprintf("[%s] %s", runID, metrics.GetSummary()), duration)
		},
		OnPartialFailure: func(err error, duration time.Duration) {
			s.monitor.RecordPartialFailure(fmt.Errorf("%s partial failure in cycle %s: %w", agentName, runID, err), duration)
		},
		OnCriticalFailure: func(err error, duration time.Duration) {
			s.monitor.RecordCriticalFailure(fmt.Errorf("%s critical failure in cycle %s: %w", agentName, runID, err), duration)
		},
	}

	if err := s.agent.RunOnce(WithRunID(ctx, runID), events); err != nil {
		s.monitor.RecordCriticalFailure(fmt.Errorf("%s failed in cycle %s: %w", agentName, runID, err), time.Since(startTime))
		return fmt.Errorf("%s cycle %s failed: %w", agentName, runID, err)
	}

	log.Printf("Finished %s cycle #%d (%s) in %v", agentName, cycle, runID, time.Since(startTime).Round(time.Millisecond))
	return nil
}
