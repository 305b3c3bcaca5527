package planparser

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"dfl-stack/internal/models"

	"github.com/google/go-cmp/cmp"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestNormalizer() *Normalizer {
	n := New("")
	n.Now = func() time.Time { return fixedNow }
	return n
}

func TestParseVideosShape(t *testing.T) {
	res := newTestNormalizer().Parse(map[string]any{
		"videos": []any{map[string]any{"title": "Test"}},
	})
	if !res.Success {
		t.Fatalf("Parse() failed: %s", res.Error)
	}

	want := &models.Plan{
		AlgorithmStage: "Unknown",
		Schedule: []models.PlanItem{{
			ID:       "plan-item-0-" + strconv.FormatInt(fixedNow.UnixMilli(), 10),
			Pillar:   "Viral",
			Type:     "Short",
			Tool:     "⚡ Veo",
			Duration: "7s",
			Title:    "Test",
			Tags:     []string{},
			Status:   models.StatusPending,
		}},
		GeneratedAt: fixedNow,
		ItemCount:   1,
		Source:      DefaultSource,
	}
	if diff := cmp.Diff(want, res.Plan); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseShapes(t *testing.T) {
	item := map[string]any{"title": "A"}

	tests := []struct {
		name    string
		raw     any
		wantErr string
		wantLen int
	}{
		{name: "nil", raw: nil, wantErr: "No data provided"},
		{name: "bare array", raw: []any{item, item}, wantLen: 2},
		{name: "schedule", raw: map[string]any{"schedule": []any{item}}, wantLen: 1},
		{name: "plan key", raw: map[string]any{"plan": []any{item, item, item}}, wantLen: 3},
		{name: "empty schedule shadows videos", raw: map[string]any{
			"schedule": []any{},
			"videos":   []any{item},
		}, wantErr: "No schedule array found"},
		{name: "non-list schedule falls through to videos", raw: map[string]any{
			"schedule": "soon",
			"videos":   []any{item},
		}, wantLen: 1},
		{name: "schedule wins over videos", raw: map[string]any{
			"schedule": []any{item},
			"videos":   []any{item, item},
		}, wantLen: 1},
		{name: "empty array", raw: []any{}, wantErr: "No schedule array found"},
		{name: "no list", raw: map[string]any{"schedule": "soon"}, wantErr: "No schedule array found"},
		{name: "scalar", raw: "plan", wantErr: "No schedule array found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Parse(tt.raw)
			if tt.wantErr != "" {
				if res.Success || res.Plan != nil {
					t.Fatalf("Parse() = %+v, want failure", res)
				}
				if res.Error != tt.wantErr {
					t.Errorf("Error = %q, want %q", res.Error, tt.wantErr)
				}
				return
			}
			if !res.Success {
				t.Fatalf("Parse() failed: %s", res.Error)
			}
			if res.Plan.ItemCount != tt.wantLen || len(res.Plan.Schedule) != tt.wantLen {
				t.Errorf("got %d items (itemCount %d), want %d", len(res.Plan.Schedule), res.Plan.ItemCount, tt.wantLen)
			}
		})
	}
}

func TestParseEnvelope(t *testing.T) {
	res := Parse(map[string]any{
		"stage":           "Seeding",
		"analysis":        "Retention is climbing",
		"channelInsights": map[string]any{"bestHour": "18:00"},
		"schedule":        []any{map[string]any{"title": "A"}},
	})
	if !res.Success {
		t.Fatalf("Parse() failed: %s", res.Error)
	}
	if res.Plan.AlgorithmStage != "Seeding" {
		t.Errorf("AlgorithmStage = %q, want Seeding", res.Plan.AlgorithmStage)
	}
	if res.Plan.StageAnalysis != "Retention is climbing" {
		t.Errorf("StageAnalysis = %q", res.Plan.StageAnalysis)
	}
	if diff := cmp.Diff(map[string]any{"bestHour": "18:00"}, res.Plan.ChannelInsights); diff != "" {
		t.Errorf("ChannelInsights mismatch (-want +got):\n%s", diff)
	}

	res = Parse(map[string]any{
		"algorithmStage": "Viral",
		"stage":          "Seeding",
		"schedule":       []any{map[string]any{}},
	})
	if res.Plan.AlgorithmStage != "Viral" {
		t.Errorf("algorithmStage should win over stage, got %q", res.Plan.AlgorithmStage)
	}
}

func TestParseJSON(t *testing.T) {
	res := ParseJSON([]byte(`{"schedule":[{"title":"From JSON","tags":"a, b"}]}`))
	if !res.Success {
		t.Fatalf("ParseJSON() failed: %s", res.Error)
	}
	if got := res.Plan.Schedule[0].Tags; !cmp.Equal(got, []string{"a", "b"}) {
		t.Errorf("Tags = %v", got)
	}

	res = ParseJSON([]byte(`{"schedule":`))
	if res.Success || !strings.Contains(res.Error, "invalid plan JSON") {
		t.Errorf("ParseJSON(truncated) = %+v, want invalid JSON failure", res)
	}
}

func TestNormalizeItemDefaults(t *testing.T) {
	got := NormalizeItem(map[string]any{}, 4, fixedNow)

	if got.Title != "Video 5" {
		t.Errorf("Title = %q, want Video 5", got.Title)
	}
	if !strings.HasPrefix(got.ID, "plan-item-4-") {
		t.Errorf("ID = %q, want plan-item-4- prefix", got.ID)
	}
	if got.Pillar != "Viral" || got.Type != "Short" || got.Tool != "⚡ Veo" || got.Duration != "7s" {
		t.Errorf("defaults not applied: %+v", got)
	}
	if got.Status != models.StatusPending {
		t.Errorf("Status = %q, want pending", got.Status)
	}
	if got.Tags == nil || len(got.Tags) != 0 {
		t.Errorf("Tags = %#v, want empty non-nil slice", got.Tags)
	}
	if got.PromptBlock != nil || got.AlgorithmScores != nil {
		t.Errorf("expected nil promptBlock and scores, got %v %v", got.PromptBlock, got.AlgorithmScores)
	}
}

func TestNormalizeItemKeepsValues(t *testing.T) {
	raw := map[string]any{
		"id":               "keep-me",
		"pillar":           "Educational",
		"type":             "Long",
		"tool":             "Sora",
		"duration":         "60s",
		"publishTimeLocal": "18:00",
		"title":            "How pizza is made",
		"description":      "A deep dive",
		"promptBlock":      map[string]any{"HOOK": "Cheese pull"},
		"pinnedComment":    "First!",
		"status":           "completed",
	}
	got := NormalizeItem(raw, 0, fixedNow)

	if got.ID != "keep-me" || got.Pillar != "Educational" || got.Tool != "Sora" || got.Duration != "60s" {
		t.Errorf("provided values overwritten: %+v", got)
	}
	if got.PublishTimeLocal != "18:00" || got.PinnedComment != "First!" {
		t.Errorf("optional fields dropped: %+v", got)
	}
	if got.Status != models.StatusPending {
		t.Errorf("Status = %q, normalized items always start pending", got.Status)
	}
}

func TestNormalizeTags(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want []string
	}{
		{name: "nil", in: nil, want: []string{}},
		{name: "empty string", in: "", want: []string{}},
		{name: "comma string", in: " pizza, food ,, hacks ", want: []string{"pizza", "food", "hacks"}},
		{name: "list", in: []any{" a ", "", "b", nil, 3.0}, want: []string{"a", "b", "3"}},
		{name: "string slice", in: []string{"x", " "}, want: []string{"x"}},
		{name: "unsupported", in: map[string]any{"a": 1}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeTags(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("NormalizeTags() mismatch (-want +got):\n%s", diff)
			}
			for _, tag := range got {
				if tag == "" || tag != strings.TrimSpace(tag) {
					t.Errorf("tag %q is empty or untrimmed", tag)
				}
			}
		})
	}
}

func TestNormalizeAlgorithmScores(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	tests := []struct {
		name string
		in   any
		want *models.AlgorithmScores
	}{
		{name: "nil", in: nil, want: nil},
		{name: "pis already percent", in: map[string]any{"PIS": 95.0}, want: &models.AlgorithmScores{PatternInterruptScore: f(95)}},
		{name: "pis on ten scale", in: map[string]any{"pis": 9.5}, want: &models.AlgorithmScores{PatternInterruptScore: f(95)}},
		{name: "long pis name", in: map[string]any{"patternInterruptScore": 40.0}, want: &models.AlgorithmScores{PatternInterruptScore: f(40)}},
		{name: "cq fraction", in: map[string]any{"controversyQuotient": 0.8}, want: &models.AlgorithmScores{ControversyQuotient: f(0.8)}},
		{name: "cq on ten scale", in: map[string]any{"CQ": 8.0}, want: &models.AlgorithmScores{ControversyQuotient: f(0.8)}},
		{name: "percent strings", in: map[string]any{
			"predictedRetention3s":    "85%",
			"predictedCompletionRate": 62.5,
			"predictedLoopRate":       "n/a",
		}, want: &models.AlgorithmScores{
			PredictedRetention3s:    f(85),
			PredictedCompletionRate: f(62.5),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeAlgorithmScores(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("NormalizeAlgorithmScores() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
