// Package ai drafts content plans with Gemini once the feedback loop has
// settled on a new strategy.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"dfl-stack/internal/models"
	"dfl-stack/shared/config"
	"dfl-stack/shared/planparser"

	"google.golang.org/genai"
)

const defaultPlanSize = 7

var ErrEmptyResponse = errors.New("empty response from model")

// Generator is the slice of the Gemini client the planner needs.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

type geminiGenerator struct {
	client *genai.Client
}

func (g *geminiGenerator) Generate(ctx context.Context, model, prompt string) (string, error) {
	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
	}

	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	result, err := g.client.Models.GenerateContent(ctx, model, contents, nil)
	if err != nil {
		return "", err
	}
	return result.Text(), nil
}

type Planner struct {
	gen        Generator
	model      string
	planSize   int
	normalizer *planparser.Normalizer
}

func NewPlanner(cfg *config.Config) (*Planner, error) {
	ctx := context.Background()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.AI.GeminiAPIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return NewPlannerWithGenerator(&geminiGenerator{client: client}, cfg.AI.Model, cfg.AI.PlanSize), nil
}

func NewPlannerWithGenerator(gen Generator, model string, planSize int) *Planner {
	if planSize <= 0 {
		planSize = defaultPlanSize
	}
	return &Planner{
		gen:        gen,
		model:      model,
		planSize:   planSize,
		normalizer: planparser.New("Gemini"),
	}
}

// GeneratePlan asks the model for the next schedule under strategy, using the
// latest report as context. Items that cannot be executed are logged but kept.
func (p *Planner) GeneratePlan(ctx context.Context, strategy models.Strategy, report *models.YPPReport) (*models.Plan, error) {
	if strategy.Topic == "" {
		return nil, fmt.Errorf("strategy topic is required")
	}

	prompt := p.BuildPrompt(strategy, report)
	text, err := p.gen.Generate(ctx, p.model, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate plan for %q: %w", strategy.Topic, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyResponse
	}

	extracted := planparser.ExtractJSON(text)
	if !extracted.Success {
		return nil, fmt.Errorf("failed to extract plan JSON: %s", extracted.Error)
	}
	if extracted.Method != planparser.MethodDirect {
		log.Printf("Warning: plan JSON recovered via %s", extracted.Method)
	}

	res := p.normalizer.Parse(extracted.Data)
	if !res.Success {
		return nil, fmt.Errorf("failed to normalize plan: %s", res.Error)
	}

	for i := range res.Plan.Schedule {
		item := &res.Plan.Schedule[i]
		if v := planparser.ValidateForExecution(*item); !v.Valid {
			log.Printf("⚠️  Plan item %q not executable: %s", item.Title, strings.Join(v.Issues, "; "))
		}
	}

	return res.Plan, nil
}

func (p *Planner) BuildPrompt(strategy models.Strategy, report *models.YPPReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, `You are a YouTube Shorts strategist planning the next %d uploads for a channel.

STRATEGY:
Niche: %s
Style: %s
Topic: %s
`, p.planSize, orDash(strategy.Niche), orDash(strategy.Style), strategy.Topic)

	if report != nil {
		m := report.Metrics
		fmt.Fprintf(&b, `
CURRENT PERFORMANCE:
Overall score: %d/100 (%s)
Avg. %% viewed: %.1f%% (target %.0f%%)
Engagement: %.1f%% (target %.0f%%)
Shorts feed share: %.1f%% (target %.0f%%)
`, report.OverallScore, report.ViralStatus,
			m.APV.Value, m.APV.Target,
			m.Engagement.Value, m.Engagement.Target,
			m.ShortsFeed.Value, m.ShortsFeed.Target)

		if len(report.Actions) > 0 {
			b.WriteString("\nPRIORITY ACTIONS:\n- ")
			b.WriteString(strings.Join(report.Actions, "\n- "))
			b.WriteString("\n")
		}
	}

	b.WriteString(`
Respond with JSON only, in this format:
{
  "algorithmStage": "Seeding | Rising | Viral",
  "stageAnalysis": "one paragraph on where the channel stands",
  "schedule": [
    {
      "pillar": "Viral | Evergreen | Community",
      "type": "Short",
      "tool": "Veo 3",
      "duration": "8s",
      "publishTimeLocal": "HH:MM",
      "title": "hook-first title",
      "description": "one or two sentences",
      "tags": ["tag"],
      "promptBlock": {"format": "", "hook": "", "context": "", "tension": "", "climax": "", "payoff": "", "loop": ""},
      "pinnedComment": "question that invites replies",
      "algorithmScores": {"patternInterruptScore": 0-100, "controversyQuotient": 0-1}
    }
  ]
}`)

	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
