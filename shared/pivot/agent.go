// Package pivot watches per-video analytics and switches the content
// strategy to a topic once it clearly resonates with viewers.
//
// The agent is edge-triggered: a topic that is already the current strategy
// never fires again, no matter how many polls report it.
package pivot

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"dfl-stack/internal/models"
	"dfl-stack/shared/numeric"
)

// StrategyKey is the state key the current strategy is persisted under.
const StrategyKey = "auto_pivot_strategy"

const (
	DefaultThreshold   = 10.0
	DefaultCTRColumn   = 2
	DefaultTitleColumn = 0
)

// Persister is the durable store for the adopted strategy.
type Persister interface {
	SetState(key string, value any, reason string) error
	GetState(key string, out any) bool
}

type Agent struct {
	store Persister
	bus   *Bus
	now   func() time.Time

	threshold   float64
	ctrColumn   int
	titleColumn int
	niche       string
	style       string

	mu      sync.Mutex
	current models.Strategy
}

type Option func(*Agent)

func WithThreshold(ctr float64) Option {
	return func(a *Agent) { a.threshold = ctr }
}

// WithColumns sets which row cells hold the title and the CTR.
func WithColumns(title, ctr int) Option {
	return func(a *Agent) {
		a.titleColumn = title
		a.ctrColumn = ctr
	}
}

// WithProfile sets the niche and style recorded alongside every adopted topic.
func WithProfile(niche, style string) Option {
	return func(a *Agent) {
		a.niche = niche
		a.style = style
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Agent) { a.now = now }
}

// New returns an idle agent. store and bus may be nil.
func New(store Persister, bus *Bus, opts ...Option) *Agent {
	a := &Agent{
		store:       store,
		bus:         bus,
		now:         time.Now,
		threshold:   DefaultThreshold,
		ctrColumn:   DefaultCTRColumn,
		titleColumn: DefaultTitleColumn,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Restore loads the last persisted strategy, if any.
func (a *Agent) Restore() bool {
	if a.store == nil {
		return false
	}

	var s models.Strategy
	if !a.store.GetState(StrategyKey, &s) {
		return false
	}

	a.mu.Lock()
	a.current = s
	a.mu.Unlock()

	log.Printf("Restored pivot strategy: %q", s.Topic)
	return true
}

func (a *Agent) Current() models.Strategy {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Observe scans the rows for the best CTR. When it reaches the threshold
// with a new topic, the strategy is replaced, persisted and broadcast, and
// the notification is returned. Rows that are missing or malformed are
// ignored.
func (a *Agent) Observe(data models.AnalyticsResult) (*models.PivotNotification, bool) {
	if len(data.Rows) == 0 {
		return nil, false
	}

	var bestTitle string
	maxCTR := 0.0
	found := false
	for _, row := range data.Rows {
		if a.ctrColumn >= len(row) || a.titleColumn >= len(row) {
			continue
		}
		ctr, ok := numeric.LookupAny(row[a.ctrColumn])
		if !ok || ctr <= maxCTR {
			continue
		}
		maxCTR = ctr
		bestTitle = cellText(row[a.titleColumn])
		found = true
	}

	if !found || maxCTR < a.threshold {
		return nil, false
	}
	log.Printf("🧠 High performance detected: %q at %v%% CTR", bestTitle, maxCTR)

	topic := extractTopic(bestTitle)

	a.mu.Lock()
	if topic == "" || topic == a.current.Topic {
		a.mu.Unlock()
		return nil, false
	}
	a.current = models.Strategy{Niche: a.niche, Style: a.style, Topic: topic}
	strategy := a.current
	a.mu.Unlock()

	log.Printf("🔄 Pivoting strategy to: %q", topic)

	reason := fmt.Sprintf("High CTR detected (%s%%)", formatCTR(maxCTR))
	if a.store != nil {
		if err := a.store.SetState(StrategyKey, strategy, reason); err != nil {
			log.Printf("Warning: failed to persist pivot strategy: %v", err)
		}
	}

	n := models.PivotNotification{
		Type: models.PivotUpdateType,
		Payload: models.PivotPayload{
			Topic:     topic,
			Reason:    reason,
			Timestamp: a.now().UnixMilli(),
		},
	}
	if a.bus != nil {
		a.bus.Publish(n)
	}
	return &n, true
}

// extractTopic derives the strategy topic from a video title. The whole
// title is used as the seed.
func extractTopic(title string) string {
	return strings.TrimSpace(title)
}

func cellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func formatCTR(f float64) string {
	return fmt.Sprint(f)
}
