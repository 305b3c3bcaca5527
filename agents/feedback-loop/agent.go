// Package feedbackloop runs the dynamic feedback loop: capture channel
// analytics, score them, pivot the content strategy when a video breaks out
// and keep the resulting state recoverable between cycles.
package feedbackloop

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"dfl-stack/internal/models"
	"dfl-stack/shared/ai"
	"dfl-stack/shared/config"
	"dfl-stack/shared/email"
	"dfl-stack/shared/pivot"
	"dfl-stack/shared/reportparser"
	"dfl-stack/shared/scheduler"
	"dfl-stack/shared/snapshot"
	"dfl-stack/shared/storage"
	"dfl-stack/shared/ypp"

	"dfl-stack/agents/feedback-loop/youtube"

	"github.com/google/uuid"
)

const (
	StatusKey  = "dfl_status"
	MetricsKey = "dfl_metrics"
	PlanKey    = "yppPlan"
)

// CycleMetrics implements scheduler.Metrics for one feedback cycle.
type CycleMetrics struct {
	RunID       string             `json:"run_id"`
	Origins     []string           `json:"origins"`
	Sections    int                `json:"sections"`
	Score       int                `json:"score"`
	ViralStatus models.ViralStatus `json:"viral_status"`
	Pivoted     bool               `json:"pivoted"`
	Topic       string             `json:"topic,omitempty"`
	PlanItems   int                `json:"plan_items"`
	EmailSent   bool               `json:"email_sent"`
}

func (m CycleMetrics) GetSummary() string {
	parts := []string{
		fmt.Sprintf("score %d/100 (%s)", m.Score, m.ViralStatus),
		fmt.Sprintf("%d sections parsed", m.Sections),
	}
	if m.Pivoted {
		parts = append(parts, fmt.Sprintf("pivoted to %q", m.Topic))
	}
	if m.PlanItems > 0 {
		parts = append(parts, fmt.Sprintf("%d-item plan stored", m.PlanItems))
	}
	if m.EmailSent {
		parts = append(parts, "digest emailed")
	}
	return strings.Join(parts, ", ")
}

type Planner interface {
	GeneratePlan(ctx context.Context, strategy models.Strategy, report *models.YPPReport) (*models.Plan, error)
}

type Notifier interface {
	SendDigest(digest *models.Digest) error
}

type Snapshotter interface {
	Create(ctx context.Context, description string) (*snapshot.Snapshot, error)
}

// FeedbackAgent implements the scheduler.Agent interface
type FeedbackAgent struct {
	config *config.Config

	sources  []Source
	parser   *reportparser.Parser
	analyzer *ypp.Analyzer

	manager *storage.Manager
	state   *storage.ClosedLoop
	bus     *pivot.Bus
	pivot   *pivot.Agent

	planner   Planner
	notifier  Notifier
	snapshots Snapshotter

	newRunID func() string
}

func NewFeedbackAgent(cfg *config.Config) *FeedbackAgent {
	return &FeedbackAgent{
		config:   cfg,
		newRunID: uuid.NewString,
	}
}

func (f *FeedbackAgent) Name() string {
	return "DFL Feedback Loop"
}

// State exposes the closed-loop store. It is nil until Initialize.
func (f *FeedbackAgent) State() *storage.ClosedLoop {
	return f.state
}

func (f *FeedbackAgent) Initialize() error {
	log.Printf("Initializing %s...", f.Name())
	cfg := f.config

	if f.state == nil {
		state, manager, err := storage.Open(cfg.State.Dir, cfg.State.HistoryLimit, cfg.State.PriorityKeys...)
		if err != nil {
			return err
		}
		f.state, f.manager = state, manager
		f.manager.Subscribe(PlanKey, func(snap storage.Snapshot) {
			log.Printf("📝 %s saved as version %d (checksum %s)", PlanKey, snap.Version, snap.Checksum)
		})
		log.Printf("State store initialized in %s", cfg.State.Dir)
	}

	if f.bus == nil {
		f.bus = pivot.NewBus()
		f.bus.Subscribe(func(n models.PivotNotification) {
			log.Printf("🔄 Strategy pivot: %q - %s", n.Payload.Topic, n.Payload.Reason)
		})
	}

	if f.pivot == nil {
		f.pivot = pivot.New(f.state, f.bus,
			pivot.WithThreshold(cfg.Pivot.CTRThreshold),
			pivot.WithColumns(cfg.Pivot.TitleColumn, cfg.Pivot.CTRColumn),
			pivot.WithProfile(cfg.Pivot.Niche, cfg.Pivot.Style),
		)
		f.pivot.Restore()
	}

	if f.parser == nil {
		f.parser = reportparser.New()
	}

	if f.analyzer == nil {
		f.analyzer = ypp.NewAnalyzer(ypp.PolicyFromConfig(&cfg.Scoring))
	}

	if f.sources == nil {
		f.sources = []Source{&FileSource{Dir: cfg.Sources.ReportDir}}
		if cfg.Sources.UseAPI {
			client, err := youtube.NewClient(&cfg.YouTube)
			if err != nil {
				return fmt.Errorf("failed to create YouTube client: %w", err)
			}
			f.sources = append(f.sources, &APISource{Client: client, LookbackDays: cfg.Sources.LookbackDays})
			log.Println("YouTube Analytics source initialized")
		}
	}

	if f.planner == nil && cfg.AI.GeminiAPIKey != "" {
		planner, err := ai.NewPlanner(cfg)
		if err != nil {
			return fmt.Errorf("failed to create AI planner: %w", err)
		}
		f.planner = planner
		log.Println("AI planner initialized")
	}

	if f.notifier == nil && cfg.Email.Enabled {
		f.notifier = email.NewSender(&cfg.Email)
		log.Println("Email sender initialized")
	}

	if f.snapshots == nil && cfg.Snapshot.Enabled {
		f.snapshots = snapshot.New(cfg.Snapshot.Dir)
		log.Printf("Snapshots enabled for %s", cfg.Snapshot.Dir)
	}

	return nil
}

func (f *FeedbackAgent) RunOnce(ctx context.Context, events *scheduler.AgentEvents) error {
	startTime := time.Now()
	runID := scheduler.RunID(ctx)
	if runID == "" {
		runID = f.newRunID()
	}
	log.Printf("🔁 Feedback cycle %s starting", runID)

	partialFailure := func(err error) {
		log.Printf("Warning: %v", err)
		if events != nil && events.OnPartialFailure != nil {
			events.OnPartialFailure(err, time.Since(startTime))
		}
	}

	if f.snapshots != nil {
		snap, err := f.snapshots.Create(ctx, "Pre-cycle snapshot "+runID)
		if err != nil {
			partialFailure(fmt.Errorf("failed to create snapshot: %w", err))
		} else {
			log.Printf("📸 Snapshot %s at %s", snap.ID, snap.Commit)
		}
	}

	capture, err := collect(ctx, f.sources)
	if err != nil {
		err = fmt.Errorf("failed to collect analytics: %w", err)
		if events != nil && events.OnCriticalFailure != nil {
			events.OnCriticalFailure(err, time.Since(startTime))
		}
		return err
	}

	parsed := f.parser.Parse(capture.Text)
	if parsed == nil {
		partialFailure(fmt.Errorf("report parser failed on capture from %s", strings.Join(capture.Origins, ", ")))
		parsed = &models.AnalyticsMetrics{}
	}
	sections := reportparser.Sections(parsed)
	if len(sections) == 0 && strings.TrimSpace(capture.Text) != "" {
		log.Println("Warning: No known report sections found in capture")
	}

	report := f.analyzer.Analyze(ypp.InputFromMetrics(parsed))
	metrics := CycleMetrics{
		RunID:       runID,
		Origins:     capture.Origins,
		Sections:    len(sections),
		Score:       report.OverallScore,
		ViralStatus: report.ViralStatus,
	}

	status := models.DFLStatus{
		RunID:      runID,
		CapturedAt: capture.CapturedAt,
		Sections:   sections,
		Report:     report,
	}

	notification, pivoted := f.pivot.Observe(models.AnalyticsResult{Rows: capture.Rows})
	status.Strategy = f.pivot.Current()

	var plan *models.Plan
	if pivoted {
		status.Pivoted = true
		metrics.Pivoted = true
		metrics.Topic = status.Strategy.Topic

		if f.planner != nil {
			plan, err = f.planner.GeneratePlan(ctx, status.Strategy, &report)
			if err != nil {
				partialFailure(fmt.Errorf("failed to generate plan: %w", err))
			} else if err := f.state.SetState(PlanKey, plan, "Auto-pivot plan for "+status.Strategy.Topic); err != nil {
				partialFailure(fmt.Errorf("failed to store plan: %w", err))
			} else {
				status.PlanItems = plan.ItemCount
				metrics.PlanItems = plan.ItemCount
			}
		}
	}

	if len(sections) > 0 {
		if err := f.state.SetState(MetricsKey, parsed, "Analytics capture "+runID); err != nil {
			partialFailure(fmt.Errorf("failed to store metrics: %w", err))
		}
	}
	if err := f.state.SetState(StatusKey, status, "Feedback cycle "+runID); err != nil {
		partialFailure(fmt.Errorf("failed to store cycle status: %w", err))
	}

	markdown := ypp.Markdown(report)
	log.Printf("YPP report for cycle %s:\n%s", runID, markdown)

	if f.notifier != nil {
		digest := &models.Digest{
			Date:     time.Now(),
			Status:   &status,
			Markdown: markdown,
			Pivot:    notification,
			Plan:     plan,
		}
		if err := f.notifier.SendDigest(digest); err != nil {
			partialFailure(fmt.Errorf("failed to send digest: %w", err))
		} else {
			metrics.EmailSent = true
		}
	}

	duration := time.Since(startTime)
	if events != nil && events.OnSuccess != nil {
		events.OnSuccess(metrics, duration)
	}

	return nil
}
