package scheduler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"dfl-stack/shared/config"
)

type summary string

func (s summary) GetSummary() string { return string(s) }

type fakeAgent struct {
	run func(ctx context.Context, events *AgentEvents) error
}

func (f *fakeAgent) Name() string      { return "fake-agent" }
func (f *fakeAgent) Initialize() error { return nil }
func (f *fakeAgent) RunOnce(ctx context.Context, events *AgentEvents) error {
	return f.run(ctx, events)
}

func TestRunOnceRecordsOutcome(t *testing.T) {
	tests := []struct {
		name        string
		run         func(ctx context.Context, events *AgentEvents) error
		wantErr     bool
		wantHealthy bool
		wantSummary string
	}{
		{
			name: "success",
			run: func(ctx context.Context, events *AgentEvents) error {
				events.OnSuccess(summary("parsed 4 sections"), time.Second)
				return nil
			},
			wantHealthy: true,
			wantSummary: "[run-7] parsed 4 sections",
		},
		{
			name: "critical event",
			run: func(ctx context.Context, events *AgentEvents) error {
				events.OnCriticalFailure(errors.New("no sources"), time.Second)
				return nil
			},
			wantHealthy: false,
			wantSummary: "fake-agent critical failure in cycle run-7: no sources",
		},
		{
			name: "returned error",
			run: func(ctx context.Context, events *AgentEvents) error {
				return errors.New("boom")
			},
			wantErr:     true,
			wantHealthy: false,
			wantSummary: "fake-agent failed in cycle run-7: boom",
		},
		{
			name: "partial failure keeps health",
			run: func(ctx context.Context, events *AgentEvents) error {
				events.OnPartialFailure(errors.New("email"), time.Second)
				return nil
			},
			wantHealthy: true,
			wantSummary: "No runs yet",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(&config.Config{Schedule: "0 0 9 * * *"}, &fakeAgent{run: tt.run}, nil)
			s.newID = func() string { return "run-7" }

			err := s.RunOnce(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("RunOnce() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := s.Monitor().IsHealthy(); got != tt.wantHealthy {
				t.Errorf("IsHealthy() = %v, want %v", got, tt.wantHealthy)
			}
			if got := s.Monitor().GetStatusSummary(); !strings.Contains(got, tt.wantSummary) {
				t.Errorf("summary = %q, want it to contain %q", got, tt.wantSummary)
			}
		})
	}
}

func TestRunOnceTagsCycle(t *testing.T) {
	var seen []string
	agent := &fakeAgent{run: func(ctx context.Context, events *AgentEvents) error {
		seen = append(seen, RunID(ctx))
		return nil
	}}
	s := New(&config.Config{Schedule: "0 0 9 * * *"}, agent, nil)
	ids := []string{"first", "second"}
	s.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	for i := 0; i < 2; i++ {
		if err := s.RunOnce(context.Background()); err != nil {
			t.Fatal(err)
		}
	}

	if len(seen) != 2 || seen[0] != "first" || seen[1] != "second" {
		t.Errorf("run IDs seen by agent = %v", seen)
	}
	if got := s.Cycles(); got != 2 {
		t.Errorf("Cycles() = %d, want 2", got)
	}
	if got := RunID(context.Background()); got != "" {
		t.Errorf("RunID() on untagged context = %q", got)
	}
}
