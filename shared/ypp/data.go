package ypp

import (
	"encoding/json"
	"fmt"
)

// AnalyticsData is the grouped sample handed over by the scraping side:
//
//	{"videoPerformance": {"apv": 80, "ctr": 6},
//	 "engagement": {"likes": 600, "comments": 400},
//	 "overview": {"views": 20000},
//	 "trafficSources": {"shortsFeed": 95}}
type AnalyticsData struct {
	VideoPerformance struct {
		APV any `json:"apv"`
		CTR any `json:"ctr"`
	} `json:"videoPerformance"`
	Engagement struct {
		Likes    any `json:"likes"`
		Comments any `json:"comments"`
	} `json:"engagement"`
	Overview struct {
		Views any `json:"views"`
	} `json:"overview"`
	TrafficSources struct {
		ShortsFeed any `json:"shortsFeed"`
	} `json:"trafficSources"`
}

func InputFromData(d AnalyticsData) Input {
	return Input{
		APV:        d.VideoPerformance.APV,
		CTR:        d.VideoPerformance.CTR,
		Likes:      d.Engagement.Likes,
		Comments:   d.Engagement.Comments,
		Views:      d.Overview.Views,
		ShortsFeed: d.TrafficSources.ShortsFeed,
	}
}

// groupedFields are the fields that only appear in the grouped shape,
// keyed by their group. Parsed report metrics share the group names
// videoPerformance and engagement but never these fields.
var groupedFields = map[string][]string{
	"videoPerformance": {"apv", "ctr"},
	"engagement":       {"likes", "comments"},
	"overview":         {"views"},
	"trafficSources":   {"shortsFeed"},
}

// IsAnalyticsData reports whether data is a JSON object in the grouped
// AnalyticsData shape.
func IsAnalyticsData(data []byte) bool {
	var groups map[string]json.RawMessage
	if err := json.Unmarshal(data, &groups); err != nil {
		return false
	}
	for group, fields := range groupedFields {
		raw, ok := groups[group]
		if !ok {
			continue
		}
		var members map[string]json.RawMessage
		if err := json.Unmarshal(raw, &members); err != nil {
			continue
		}
		for _, f := range fields {
			if _, ok := members[f]; ok {
				return true
			}
		}
	}
	return false
}

// DecodeData decodes a grouped sample straight into an analyzer input.
func DecodeData(data []byte) (Input, error) {
	var d AnalyticsData
	if err := json.Unmarshal(data, &d); err != nil {
		return Input{}, fmt.Errorf("failed to decode analytics data: %w", err)
	}
	return InputFromData(d), nil
}
