package ypp

import (
	"fmt"
	"strings"

	"dfl-stack/internal/models"
)

// Markdown renders the daily strategy report.
func Markdown(r models.YPPReport) string {
	var b strings.Builder

	b.WriteString("# 📅 YPP Daily Strategy Report\n\n")
	fmt.Fprintf(&b, "**Overall Score**: %d/100 (%s)\n\n", r.OverallScore, r.ViralStatus)

	b.WriteString("## 📊 Core Metrics\n")
	metricLine(&b, "Avg. % Viewed", r.Metrics.APV)
	metricLine(&b, "CTR", r.Metrics.CTR)
	metricLine(&b, "Engagement", r.Metrics.Engagement)
	metricLine(&b, "Shorts Feed", r.Metrics.ShortsFeed)

	b.WriteString("\n## 💡 Insights\n")
	bullets(&b, r.Insights)

	b.WriteString("\n## 🚀 Recommended Actions\n")
	bullets(&b, r.Actions)

	return strings.TrimSpace(b.String())
}

func metricLine(b *strings.Builder, label string, m models.MetricScore) {
	fmt.Fprintf(b, "- **%s**: %.1f%% (Target: %s%%) - %s\n", label, m.Value, num(m.Target), m.Status)
}

func bullets(b *strings.Builder, items []string) {
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}
