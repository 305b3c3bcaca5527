package ypp

import (
	"math"
	"testing"

	"dfl-stack/internal/models"
	"dfl-stack/shared/config"

	"github.com/google/go-cmp/cmp"
)

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAnalyzeViralChannel(t *testing.T) {
	got := Analyze(Input{APV: 80, CTR: 6, Likes: 600, Comments: 400, Views: 20000, ShortsFeed: 95})

	if got.OverallScore < 85 {
		t.Errorf("OverallScore = %d, want >= 85", got.OverallScore)
	}
	if got.ViralStatus != models.ViralViral {
		t.Errorf("ViralStatus = %s, want Viral", got.ViralStatus)
	}
	if !near(got.Metrics.Engagement.Value, 5) {
		t.Errorf("engagement = %v, want 5", got.Metrics.Engagement.Value)
	}
	if len(got.Insights) != 0 || len(got.Actions) != 0 {
		t.Errorf("healthy channel produced insights %v actions %v", got.Insights, got.Actions)
	}
}

func TestAnalyzeEmptyInput(t *testing.T) {
	got := Analyze(Input{})

	if got.OverallScore != 0 || got.ViralStatus != models.ViralDormant {
		t.Errorf("got score %d status %s, want 0 Dormant", got.OverallScore, got.ViralStatus)
	}
	for name, m := range map[string]models.MetricScore{
		"apv": got.Metrics.APV, "ctr": got.Metrics.CTR,
		"engagement": got.Metrics.Engagement, "shortsFeed": got.Metrics.ShortsFeed,
	} {
		if m.Status != models.MetricCritical {
			t.Errorf("%s status = %s, want Critical", name, m.Status)
		}
	}

	wantInsights := []string{
		"APV (0%) is below target (70%). Viewers are dropping off.",
		"Shorts Feed traffic (0%) is low. Algorithm is not pushing content.",
		"Engagement (0.0%) is low.",
	}
	if diff := cmp.Diff(wantInsights, got.Insights); diff != "" {
		t.Errorf("Insights mismatch (-want +got):\n%s", diff)
	}
	if len(got.Actions) != 5 {
		t.Errorf("got %d actions, want 5: %v", len(got.Actions), got.Actions)
	}
}

func TestAnalyzeCoercesStrings(t *testing.T) {
	got := Analyze(Input{APV: "72.5%", CTR: "4", Likes: "1,000", Comments: "12.9", Views: "10,000 views", ShortsFeed: "bogus"})

	if got.Metrics.APV.Value != 72.5 || got.Metrics.CTR.Value != 4 {
		t.Errorf("apv=%v ctr=%v", got.Metrics.APV.Value, got.Metrics.CTR.Value)
	}
	// likes 1000 + comments 12 over 10000 views.
	if !near(got.Metrics.Engagement.Value, 10.12) {
		t.Errorf("engagement = %v, want 10.12", got.Metrics.Engagement.Value)
	}
	if got.Metrics.ShortsFeed.Value != 0 {
		t.Errorf("shortsFeed = %v, want 0", got.Metrics.ShortsFeed.Value)
	}
}

func TestMetricStatusBands(t *testing.T) {
	tests := []struct {
		apv  float64
		want models.MetricStatus
	}{
		{apv: 70, want: models.MetricGood},
		{apv: 95, want: models.MetricGood},
		{apv: 49, want: models.MetricWarning},
		{apv: 69.9, want: models.MetricWarning},
		{apv: 48.9, want: models.MetricCritical},
		{apv: 0, want: models.MetricCritical},
	}

	for _, tt := range tests {
		got := Analyze(Input{APV: tt.apv}).Metrics.APV.Status
		if got != tt.want {
			t.Errorf("APV %v: status %s, want %s", tt.apv, got, tt.want)
		}
	}
}

func TestViralStatusNeedsReach(t *testing.T) {
	// Perfect ratios on a tiny channel stay Rising.
	got := Analyze(Input{APV: 100, CTR: 10, Likes: 10, Comments: 0, Views: 100, ShortsFeed: 100})
	if got.OverallScore != 100 {
		t.Fatalf("OverallScore = %d, want 100", got.OverallScore)
	}
	if got.ViralStatus != models.ViralRising {
		t.Errorf("ViralStatus = %s, want Rising", got.ViralStatus)
	}
}

func TestViralStatusThresholds(t *testing.T) {
	a := NewAnalyzer(DefaultPolicy())
	tests := []struct {
		score, views int
		want         models.ViralStatus
	}{
		{86, 10001, models.ViralViral},
		{85, 50000, models.ViralRising},
		{61, 0, models.ViralRising},
		{60, 0, models.ViralSeeding},
		{31, 0, models.ViralSeeding},
		{30, 0, models.ViralDormant},
	}
	for _, tt := range tests {
		if got := a.viralStatus(tt.score, tt.views); got != tt.want {
			t.Errorf("viralStatus(%d, %d) = %s, want %s", tt.score, tt.views, got, tt.want)
		}
	}
}

func TestScoreIsMonotonicAndBounded(t *testing.T) {
	prev := -1
	for apv := 0.0; apv <= 150; apv += 10 {
		got := Analyze(Input{APV: apv, ShortsFeed: 50, Views: 1000, Likes: 20}).OverallScore
		if got < prev {
			t.Errorf("score dropped from %d to %d at apv %v", prev, got, apv)
		}
		if got < 0 || got > 100 {
			t.Errorf("score %d out of range", got)
		}
		prev = got
	}

	if got := Analyze(Input{APV: -500, ShortsFeed: -500}).OverallScore; got != 0 {
		t.Errorf("negative inputs scored %d, want 0", got)
	}
}

func TestCTRHasNoInsights(t *testing.T) {
	got := Analyze(Input{APV: 90, CTR: 0, Likes: 100, Views: 1000, ShortsFeed: 95})
	if got.Metrics.CTR.Status != models.MetricCritical {
		t.Fatalf("CTR status = %s", got.Metrics.CTR.Status)
	}
	if len(got.Insights) != 0 {
		t.Errorf("CTR produced insights: %v", got.Insights)
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	in := Input{APV: 55.5, CTR: 3.2, Likes: 42, Comments: 7, Views: 999, ShortsFeed: 71}
	first := Analyze(in)
	for i := 0; i < 5; i++ {
		if diff := cmp.Diff(first, Analyze(in)); diff != "" {
			t.Fatalf("Analyze() not deterministic (-first +again):\n%s", diff)
		}
	}
}

func TestPolicyFromConfig(t *testing.T) {
	p := PolicyFromConfig(&config.ScoringConfig{
		Targets:    config.MetricValues{APV: 50},
		ViralViews: 500,
	})
	if p.Targets.APV != 50 || p.Targets.CTR != 5 || p.ViralViews != 500 || p.ViralScore != 85 {
		t.Errorf("PolicyFromConfig() = %+v", p)
	}

	a := NewAnalyzer(p)
	if got := a.Analyze(Input{APV: 50}).Metrics.APV.Status; got != models.MetricGood {
		t.Errorf("APV at lowered target: %s, want Good", got)
	}

	if diff := cmp.Diff(DefaultPolicy(), PolicyFromConfig(nil)); diff != "" {
		t.Errorf("PolicyFromConfig(nil) mismatch (-want +got):\n%s", diff)
	}
}

func TestInputFromMetrics(t *testing.T) {
	m := &models.AnalyticsMetrics{
		YPPSprint:  &models.YPPSprint{NewSubscribers: 10, Views48h: 0},
		Velocity:   &models.Velocity{Views48h: 5000},
		Retention:  &models.Retention{AverageViewPercentage: 61.5},
		Engagement: &models.Engagement{TotalLikes: 200, TotalComments: 50},
		Traffic:    &models.Traffic{ShortsFeedPct: 88},
	}
	got := InputFromMetrics(m)
	want := Input{APV: 61.5, CTR: 0, Likes: 200, Comments: 50, Views: 5000, ShortsFeed: 88.0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("InputFromMetrics() mismatch (-want +got):\n%s", diff)
	}

	m.YPPSprint.Views48h = 7000
	if got := InputFromMetrics(m).Views; got != 7000 {
		t.Errorf("sprint views should win, got %v", got)
	}

	report := Analyze(InputFromMetrics(nil))
	if report.OverallScore != 0 {
		t.Errorf("nil metrics scored %d", report.OverallScore)
	}
}
