// Package reportparser turns the natural-language analytics reports scraped
// from YouTube Studio into structured metrics.
package reportparser

import (
	"log"
	"regexp"

	"dfl-stack/internal/models"
	"dfl-stack/shared/numeric"
)

// Rule extracts one metrics section from the report text. A rule that finds
// nothing leaves the record untouched.
type Rule struct {
	Section string
	Apply   func(text string, m *models.AnalyticsMetrics)
}

// Parser applies an ordered battery of rules to the same text.
type Parser struct {
	rules []Rule
}

// New returns a parser using the default rule battery.
func New() *Parser {
	return &Parser{rules: DefaultRules()}
}

// NewWithRules returns a parser restricted to the given rules.
func NewWithRules(rules []Rule) *Parser {
	return &Parser{rules: rules}
}

// Parse runs every rule over text. It returns nil only if a rule panics.
func Parse(text string) *models.AnalyticsMetrics {
	return New().Parse(text)
}

func (p *Parser) Parse(text string) (report *models.AnalyticsMetrics) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Warning: report parser failed: %v", r)
			report = nil
		}
	}()

	report = &models.AnalyticsMetrics{}
	for _, rule := range p.rules {
		rule.Apply(text, report)
	}
	return report
}

// Sections lists the populated section keys of m in rule order.
func Sections(m *models.AnalyticsMetrics) []string {
	if m == nil {
		return nil
	}
	var keys []string
	add := func(present bool, key string) {
		if present {
			keys = append(keys, key)
		}
	}
	add(m.YPPSprint != nil, "yppSprint")
	add(m.ChannelOverview != nil, "channelOverview")
	add(m.Retention != nil, "retention")
	add(m.Velocity != nil, "velocity")
	add(m.VideoPerformance != nil, "videoPerformance")
	add(m.Audience != nil, "audience")
	add(m.Traffic != nil, "traffic")
	add(m.Engagement != nil, "engagement")
	add(m.SwipeAway != nil, "swipeAway")
	add(m.SubsConversion != nil, "subsConversion")
	add(m.SessionTime != nil, "sessionTime")
	return keys
}

// firstMatch returns the submatches of the first pattern that matches text.
func firstMatch(text string, patterns ...*regexp.Regexp) []string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return m
		}
	}
	return nil
}

// group returns submatch i, or "" when the match is missing.
func group(m []string, i int) string {
	if m == nil || i >= len(m) {
		return ""
	}
	return m[i]
}

func intGroup(m []string, i int) int {
	return numeric.ParseInt(group(m, i))
}

func pctGroup(m []string, i int) float64 {
	return numeric.Clamp(numeric.ParseFloat(group(m, i)), 0, 100)
}
