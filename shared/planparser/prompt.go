package planparser

import (
	"sort"
	"strings"

	"dfl-stack/internal/models"
)

const (
	minPromptLength = 50
	cinematicSuffix = " Cinematic quality, 4K, high contrast."
)

// narrativeStages is the order structured prompt blocks are read in.
var narrativeStages = []string{"FORMAT", "HOOK", "CONTEXT", "TENSION", "CHAOS", "CLIMAX", "PAYOFF", "LOOP"}

// ExtractPrompt flattens a prompt block. Strings pass through. For objects
// the first key starting with each narrative stage name (case-insensitive)
// contributes its value; when no stage key yields text, every string value
// is joined in key order. Decoded planner output keeps its written key
// order; a plain map has none, so its keys are taken sorted.
func ExtractPrompt(block any) string {
	switch b := block.(type) {
	case nil:
		return ""
	case string:
		return b
	case OrderedBlock:
		return extractStructured(b.Keys, b.Values)
	case map[string]any:
		keys := make([]string, 0, len(b))
		for k := range b {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return extractStructured(keys, b)
	}
	return ""
}

func extractStructured(keys []string, block map[string]any) string {
	var parts []string
	for _, stage := range narrativeStages {
		for _, k := range keys {
			if !strings.HasPrefix(strings.ToUpper(k), stage) {
				continue
			}
			if s, ok := block[k].(string); ok && strings.TrimSpace(s) != "" {
				parts = append(parts, strings.TrimSpace(s))
			}
			break
		}
	}

	if len(parts) == 0 {
		for _, k := range keys {
			if s, ok := block[k].(string); ok && strings.TrimSpace(s) != "" {
				parts = append(parts, s)
			}
		}
	}
	return strings.Join(parts, " ")
}

// ExecutionPrompt builds the generation prompt for an item.
func ExecutionPrompt(item models.PlanItem) string {
	prompt := ExtractPrompt(item.PromptBlock)

	if len([]rune(prompt)) < minPromptLength {
		var parts []string
		if item.Description != "" {
			parts = append(parts, item.Description)
		}
		if item.Title != "" {
			parts = append(parts, "Title: "+item.Title)
		}
		if prompt != "" {
			parts = append(parts, prompt)
		}
		prompt = strings.Join(parts, ". ")
	}

	lower := strings.ToLower(prompt)
	if !strings.Contains(lower, "cinematic") && !strings.Contains(lower, "4k") {
		prompt += cinematicSuffix
	}
	return strings.TrimSpace(prompt)
}

// Validation lists the reasons an item is not ready to execute. It is
// advisory; callers decide whether to skip the item.
type Validation struct {
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues"`
}

func ValidateForExecution(item models.PlanItem) Validation {
	issues := []string{}

	if item.Title == "" {
		issues = append(issues, "Missing title")
	}
	if !truthy(item.PromptBlock) && item.Description == "" {
		issues = append(issues, "Missing prompt (no promptBlock or description)")
	}
	if item.PublishTimeLocal == "" && item.PublishTimeUS == "" {
		issues = append(issues, "Missing publish time")
	}

	return Validation{Valid: len(issues) == 0, Issues: issues}
}
