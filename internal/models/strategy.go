package models

// Strategy is the content direction adopted by the auto-pivot agent.
type Strategy struct {
	Niche string `json:"niche"`
	Style string `json:"style"`
	Topic string `json:"topic"`
}

const PivotUpdateType = "AUTO_PIVOT_UPDATE"

type PivotPayload struct {
	Topic     string `json:"topic"`
	Reason    string `json:"reason"`
	Timestamp int64  `json:"timestamp"` // unix millis
}

// PivotNotification is broadcast to every listener when the strategy changes.
type PivotNotification struct {
	Type    string       `json:"type"`
	Payload PivotPayload `json:"payload"`
}

// AnalyticsResult carries the tabular rows scraped from the Studio content table.
// Column 0 is the title, column 2 the CTR percentage.
type AnalyticsResult struct {
	Rows [][]any `json:"rows"`
}
