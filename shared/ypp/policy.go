package ypp

import "dfl-stack/shared/config"

// MetricSet holds one number per tracked metric.
type MetricSet struct {
	APV        float64
	CTR        float64
	Engagement float64
	ShortsFeed float64
}

// Policy is the scoring configuration. Weights sum to the maximum score.
type Policy struct {
	Targets MetricSet
	Weights MetricSet
	// Each metric is capped at this value before it is weighted.
	Caps MetricSet

	// Ratio of the target at or above which a metric is a Warning rather
	// than Critical.
	WarningRatio float64

	ViralScore   int
	ViralViews   int
	RisingScore  int
	SeedingScore int
}

func DefaultPolicy() Policy {
	return Policy{
		Targets:      MetricSet{APV: 70, CTR: 5, Engagement: 5, ShortsFeed: 90},
		Weights:      MetricSet{APV: 40, CTR: 10, Engagement: 20, ShortsFeed: 30},
		Caps:         MetricSet{APV: 100, CTR: 10, Engagement: 10, ShortsFeed: 100},
		WarningRatio: 0.7,
		ViralScore:   85,
		ViralViews:   10000,
		RisingScore:  60,
		SeedingScore: 30,
	}
}

// PolicyFromConfig overlays the non-zero values of cfg on the default policy.
func PolicyFromConfig(cfg *config.ScoringConfig) Policy {
	p := DefaultPolicy()
	if cfg == nil {
		return p
	}

	overlay(&p.Targets, cfg.Targets)
	overlay(&p.Weights, cfg.Weights)
	overlay(&p.Caps, cfg.Caps)

	if cfg.WarningRatio > 0 {
		p.WarningRatio = cfg.WarningRatio
	}
	if cfg.ViralScore > 0 {
		p.ViralScore = cfg.ViralScore
	}
	if cfg.ViralViews > 0 {
		p.ViralViews = cfg.ViralViews
	}
	if cfg.RisingScore > 0 {
		p.RisingScore = cfg.RisingScore
	}
	if cfg.SeedingScore > 0 {
		p.SeedingScore = cfg.SeedingScore
	}
	return p
}

func overlay(dst *MetricSet, src config.MetricValues) {
	if src.APV > 0 {
		dst.APV = src.APV
	}
	if src.CTR > 0 {
		dst.CTR = src.CTR
	}
	if src.Engagement > 0 {
		dst.Engagement = src.Engagement
	}
	if src.ShortsFeed > 0 {
		dst.ShortsFeed = src.ShortsFeed
	}
}
