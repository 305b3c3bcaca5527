// Package ypp scores channel analytics against the partner-program
// algorithm targets and turns the result into insights and actions.
package ypp

import (
	"fmt"
	"math"
	"strconv"

	"dfl-stack/internal/models"
	"dfl-stack/shared/numeric"
)

// Input is the raw analytics sample. Fields take numbers or numeric
// strings; anything unparseable counts as zero.
type Input struct {
	APV        any `json:"apv"`
	CTR        any `json:"ctr"`
	Likes      any `json:"likes"`
	Comments   any `json:"comments"`
	Views      any `json:"views"`
	ShortsFeed any `json:"shortsFeed"`
}

type Analyzer struct {
	Policy Policy
}

func NewAnalyzer(p Policy) *Analyzer {
	return &Analyzer{Policy: p}
}

// Analyze scores in with the default policy.
func Analyze(in Input) models.YPPReport {
	return NewAnalyzer(DefaultPolicy()).Analyze(in)
}

func (a *Analyzer) Analyze(in Input) models.YPPReport {
	p := a.Policy

	apv := numeric.Float(in.APV)
	ctr := numeric.Float(in.CTR)
	likes := numeric.Int(in.Likes)
	comments := numeric.Int(in.Comments)
	views := numeric.Int(in.Views)
	shortsFeed := numeric.Float(in.ShortsFeed)

	engagement := 0.0
	if views > 0 {
		engagement = float64(likes+comments) / float64(views) * 100
	}

	metrics := models.ReportMetrics{
		APV:        a.score(apv, p.Targets.APV),
		CTR:        a.score(ctr, p.Targets.CTR),
		Engagement: a.score(engagement, p.Targets.Engagement),
		ShortsFeed: a.score(shortsFeed, p.Targets.ShortsFeed),
	}

	total := weighted(apv, p.Caps.APV, p.Targets.APV, p.Weights.APV) +
		weighted(shortsFeed, p.Caps.ShortsFeed, p.Targets.ShortsFeed, p.Weights.ShortsFeed) +
		weighted(engagement, p.Caps.Engagement, p.Targets.Engagement, p.Weights.Engagement) +
		weighted(ctr, p.Caps.CTR, p.Targets.CTR, p.Weights.CTR)
	overall := int(numeric.Clamp(math.Round(total), 0, 100))

	report := models.YPPReport{
		OverallScore: overall,
		ViralStatus:  a.viralStatus(overall, views),
		Metrics:      metrics,
		Insights:     []string{},
		Actions:      []string{},
	}

	// CTR is scored but has no catalogue entry.
	if metrics.APV.Status != models.MetricGood {
		report.Insights = append(report.Insights,
			fmt.Sprintf("APV (%s%%) is below target (%s%%). Viewers are dropping off.", num(apv), num(p.Targets.APV)))
		report.Actions = append(report.Actions,
			`Optimize "Smart Editor" to remove dead air.`,
			`Improve the "Hook" in the first 3 seconds.`)
	}
	if metrics.ShortsFeed.Status != models.MetricGood {
		report.Insights = append(report.Insights,
			fmt.Sprintf("Shorts Feed traffic (%s%%) is low. Algorithm is not pushing content.", num(shortsFeed)))
		report.Actions = append(report.Actions,
			`Check "First Hour Velocity" - upload at Golden Hours.`)
	}
	if metrics.Engagement.Status != models.MetricGood {
		report.Insights = append(report.Insights,
			fmt.Sprintf("Engagement (%.1f%%) is low.", engagement))
		report.Actions = append(report.Actions,
			`Add "Call to Action" (CTA) overlays.`,
			"Reply to comments immediately to boost signals.")
	}

	return report
}

func (a *Analyzer) score(value, target float64) models.MetricScore {
	return models.MetricScore{Value: value, Target: target, Status: a.status(value, target)}
}

func (a *Analyzer) status(value, target float64) models.MetricStatus {
	switch {
	case value >= target:
		return models.MetricGood
	case value >= target*a.Policy.WarningRatio:
		return models.MetricWarning
	default:
		return models.MetricCritical
	}
}

func (a *Analyzer) viralStatus(score, views int) models.ViralStatus {
	p := a.Policy
	switch {
	case score > p.ViralScore && views > p.ViralViews:
		return models.ViralViral
	case score > p.RisingScore:
		return models.ViralRising
	case score > p.SeedingScore:
		return models.ViralSeeding
	default:
		return models.ViralDormant
	}
}

func weighted(value, limit, target, weight float64) float64 {
	if target <= 0 {
		return 0
	}
	return math.Min(value, limit) / target * weight
}

// num prints a float without trailing zeros.
func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// InputFromMetrics builds an analyzer input from a parsed report. The report
// carries no click-through rate, so CTR stays zero.
func InputFromMetrics(m *models.AnalyticsMetrics) Input {
	in := Input{APV: 0, CTR: 0, Likes: 0, Comments: 0, Views: 0, ShortsFeed: 0}
	if m == nil {
		return in
	}

	if m.Retention != nil {
		in.APV = m.Retention.AverageViewPercentage
	}
	if m.Engagement != nil {
		in.Likes = m.Engagement.TotalLikes
		in.Comments = m.Engagement.TotalComments
	}
	switch {
	case m.YPPSprint != nil && m.YPPSprint.Views48h > 0:
		in.Views = m.YPPSprint.Views48h
	case m.Velocity != nil:
		in.Views = m.Velocity.Views48h
	}
	if m.Traffic != nil {
		in.ShortsFeed = m.Traffic.ShortsFeedPct
	}
	return in
}
