package models

type MetricStatus string

const (
	MetricGood     MetricStatus = "Good"
	MetricWarning  MetricStatus = "Warning"
	MetricCritical MetricStatus = "Critical"
)

type ViralStatus string

const (
	ViralDormant ViralStatus = "Dormant"
	ViralSeeding ViralStatus = "Seeding"
	ViralRising  ViralStatus = "Rising"
	ViralViral   ViralStatus = "Viral"
)

type MetricScore struct {
	Value  float64      `json:"value"`
	Target float64      `json:"target"`
	Status MetricStatus `json:"status"`
}

type ReportMetrics struct {
	APV        MetricScore `json:"apv"`
	CTR        MetricScore `json:"ctr"`
	Engagement MetricScore `json:"engagement"`
	ShortsFeed MetricScore `json:"shortsFeed"`
}

// YPPReport is the scoring output for one analytics capture.
type YPPReport struct {
	OverallScore int           `json:"overallScore"` // 0-100
	ViralStatus  ViralStatus   `json:"viralStatus"`
	Metrics      ReportMetrics `json:"metrics"`
	Insights     []string      `json:"insights"`
	Actions      []string      `json:"actions"`
}
