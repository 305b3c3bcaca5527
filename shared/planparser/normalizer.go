// Package planparser normalizes content plans produced by the upstream
// planning agent into the canonical schedule schema.
//
// Planner output arrives in several incompatible shapes: a bare array of
// items, or an object carrying the list under "schedule", "videos" or "plan".
// Parse tries each shape in that order and normalizes the first non-empty
// list it finds. Malformed payloads are reported through Result, never by
// panicking or returning an error.
package planparser

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"dfl-stack/internal/models"
	"dfl-stack/shared/numeric"
)

const (
	DefaultSource = "Ask Studio"

	defaultPillar   = "Viral"
	defaultType     = "Short"
	defaultTool     = "⚡ Veo"
	defaultDuration = "7s"
	unknownStage    = "Unknown"
)

// Result is the outcome of Parse. Plan is nil whenever Success is false.
type Result struct {
	Success bool         `json:"success"`
	Error   string       `json:"error"`
	Plan    *models.Plan `json:"plan"`
}

// Normalizer converts raw planner payloads into plans.
type Normalizer struct {
	Source string
	Now    func() time.Time
}

// New returns a normalizer stamping plans with the given source name.
func New(source string) *Normalizer {
	if source == "" {
		source = DefaultSource
	}
	return &Normalizer{Source: source, Now: time.Now}
}

// Parse normalizes raw with the default normalizer.
func Parse(raw any) Result {
	return New(DefaultSource).Parse(raw)
}

// ParseJSON decodes data and normalizes it.
func ParseJSON(data []byte) Result {
	return New(DefaultSource).ParseJSON(data)
}

func (n *Normalizer) ParseJSON(data []byte) Result {
	raw, err := decodeOrdered(data)
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("invalid plan JSON: %v", err)}
	}
	return n.Parse(raw)
}

// payloadShape is one accepted layout for the item list. Shapes are tried
// in order and the first one present wins, even when its list is empty.
type payloadShape struct {
	name  string
	items func(raw any) ([]any, bool)
}

var payloadShapes = []payloadShape{
	{name: "array", items: func(raw any) ([]any, bool) {
		list, ok := raw.([]any)
		return list, ok
	}},
	{name: "schedule", items: listUnder("schedule")},
	{name: "videos", items: listUnder("videos")},
	{name: "plan", items: listUnder("plan")},
}

func listUnder(key string) func(any) ([]any, bool) {
	return func(raw any) ([]any, bool) {
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, false
		}
		list, ok := obj[key].([]any)
		return list, ok
	}
}

func (n *Normalizer) Parse(raw any) Result {
	if raw == nil {
		return Result{Success: false, Error: "No data provided"}
	}

	var items []any
	var shape string
	for _, s := range payloadShapes {
		if list, ok := s.items(raw); ok {
			items, shape = list, s.name
			break
		}
	}
	if len(items) == 0 {
		return Result{Success: false, Error: "No schedule array found"}
	}

	now := n.now()
	schedule := make([]models.PlanItem, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			log.Printf("Warning: plan item %d is %T, not an object; using defaults", i, item)
			obj = map[string]any{}
		}
		schedule = append(schedule, NormalizeItem(obj, i, now))
	}

	plan := &models.Plan{
		AlgorithmStage: unknownStage,
		Schedule:       schedule,
		GeneratedAt:    now.UTC(),
		ItemCount:      len(schedule),
		Source:         n.Source,
	}
	if obj, ok := raw.(map[string]any); ok {
		plan.AlgorithmStage = firstString(obj, unknownStage, "algorithmStage", "stage")
		plan.StageAnalysis = firstString(obj, "", "stageAnalysis", "analysis")
		plan.ChannelInsights = obj["channelInsights"]
	}

	log.Printf("Normalized %d plan items from %q payload", len(schedule), shape)
	return Result{Success: true, Plan: plan}
}

func (n *Normalizer) now() time.Time {
	if n.Now == nil {
		return time.Now()
	}
	return n.Now()
}

// NormalizeItem defaults every field of one raw plan item independently.
func NormalizeItem(item map[string]any, index int, now time.Time) models.PlanItem {
	id := text(item["id"])
	if id == "" {
		id = fmt.Sprintf("plan-item-%d-%d", index, now.UnixMilli())
	}

	var promptBlock any
	if block, ok := item["promptBlock"]; ok && truthy(block) {
		promptBlock = block
	}

	return models.PlanItem{
		ID:               id,
		Pillar:           orDefault(text(item["pillar"]), defaultPillar),
		Type:             orDefault(text(item["type"]), defaultType),
		Tool:             orDefault(text(item["tool"]), defaultTool),
		Duration:         orDefault(text(item["duration"]), defaultDuration),
		PublishTimeLocal: text(item["publishTimeLocal"]),
		PublishTimeUS:    text(item["publishTimeUS"]),
		Title:            orDefault(text(item["title"]), fmt.Sprintf("Video %d", index+1)),
		Description:      text(item["description"]),
		Tags:             NormalizeTags(item["tags"]),
		PromptBlock:      promptBlock,
		PinnedComment:    text(item["pinnedComment"]),
		AlgorithmScores:  NormalizeAlgorithmScores(item["algorithmScores"]),
		Status:           models.StatusPending,
	}
}

// NormalizeTags accepts a comma separated string or a list and always
// returns trimmed, non-empty tags.
func NormalizeTags(tags any) []string {
	out := []string{}
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}

	switch t := tags.(type) {
	case string:
		for _, part := range strings.Split(t, ",") {
			add(part)
		}
	case []string:
		for _, tag := range t {
			add(tag)
		}
	case []any:
		for _, tag := range t {
			if tag == nil {
				continue
			}
			add(text(tag))
		}
	}
	return out
}

// NormalizeAlgorithmScores maps the planner's score aliases onto the
// canonical fields. Pattern interrupt scores below 15 are read as a 0-10
// scale and controversy quotients above 1 as a 0-10 scale.
func NormalizeAlgorithmScores(raw any) *models.AlgorithmScores {
	scores, ok := raw.(map[string]any)
	if !ok || scores == nil {
		return nil
	}

	pis := firstNumber(scores, "PIS", "pis", "patternInterruptScore")
	if pis != nil && *pis < 15 {
		*pis *= 10
	}

	cq := firstNumber(scores, "controversyQuotient", "CQ")
	if cq != nil && *cq > 1 {
		*cq /= 10
	}

	return &models.AlgorithmScores{
		PatternInterruptScore:   pis,
		PredictedRetention3s:    firstNumber(scores, "predictedRetention3s"),
		PredictedCompletionRate: firstNumber(scores, "predictedCompletionRate"),
		PredictedLoopRate:       firstNumber(scores, "predictedLoopRate"),
		ControversyQuotient:     cq,
	}
}

func firstNumber(obj map[string]any, keys ...string) *float64 {
	for _, key := range keys {
		v, ok := obj[key]
		if !ok || v == nil {
			continue
		}
		if f, ok := numeric.LookupAny(v); ok {
			return &f
		}
		return nil
	}
	return nil
}

func firstString(obj map[string]any, fallback string, keys ...string) string {
	for _, key := range keys {
		if s := text(obj[key]); s != "" {
			return s
		}
	}
	return fallback
}

// text renders scalar JSON values as strings; anything else is "".
func text(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return fmt.Sprintf("%v", x)
	case json.Number:
		return x.String()
	case int, int64:
		return fmt.Sprintf("%d", x)
	case bool:
		if x {
			return "true"
		}
	}
	return ""
}

// truthy mirrors how the planner treats empty values as absent.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case bool:
		return x
	case float64:
		return x != 0
	}
	return true
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
