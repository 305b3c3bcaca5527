package youtube

import (
	"strings"
	"testing"

	"dfl-stack/internal/models"
	"dfl-stack/shared/reportparser"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/api/youtubeanalytics/v2"
)

func TestRenderRoundTripsThroughParser(t *testing.T) {
	report := &ChannelReport{
		NewSubscribers:        1024,
		Views48h:              250000,
		Likes:                 10500,
		Comments:              820,
		Shares:                310,
		Subscribers:           12345,
		Videos:                87,
		WatchTimeSeconds:      3600,
		AverageViewPercentage: 72.5,
		AverageViewDuration:   14,
		ShortsFeedPct:         93.4,
		SearchPct:             2.1,
		TopVideos: []VideoStat{
			{Title: "Pizza | folding hack", Views: 120000, AVP: 81.2},
			{Title: "Morning routine", Views: 55000, AVP: 64},
		},
		Countries: []CountryStat{{Country: "US", Percentage: 41.2}, {Country: "IN", Percentage: 12.5}},
	}

	got := reportparser.Parse(report.Render())
	want := &models.AnalyticsMetrics{
		YPPSprint:       &models.YPPSprint{NewSubscribers: 1024, Views48h: 250000},
		ChannelOverview: &models.ChannelOverview{TotalSubscribers: 12345, TotalWatchTimeSeconds: 3600, TotalVideos: 87},
		Retention:       &models.Retention{AverageViewPercentage: 72.5, AverageViewDurationSeconds: 14},
		Velocity:        &models.Velocity{Views48h: 250000},
		VideoPerformance: &models.VideoPerformance{TopVideos: []models.TopVideo{
			{Title: "Pizza / folding hack", Views: "120,000", AVP: "81.2%"},
			{Title: "Morning routine", Views: "55,000", AVP: "64.0%"},
		}},
		Audience: &models.Audience{TopCountries: []models.CountryShare{
			{Country: "US", Percentage: 41.2},
			{Country: "IN", Percentage: 12.5},
		}},
		Traffic:    &models.Traffic{ShortsFeedPct: 93.4, YouTubeSearchPct: 2.1},
		Engagement: &models.Engagement{TotalLikes: 10500, TotalComments: 820, TotalShares: 310},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Parse(Render()) mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderOmitsEmptyTables(t *testing.T) {
	text := (&ChannelReport{}).Render()
	if strings.Contains(text, "Top videos") || strings.Contains(text, "Audience Countries") {
		t.Errorf("Render() included empty tables:\n%s", text)
	}
}

func analyticsResponse(headers []*youtubeanalytics.ResultTableColumnHeader, rows ...[]any) *youtubeanalytics.QueryResponse {
	return &youtubeanalytics.QueryResponse{ColumnHeaders: headers, Rows: rows}
}

func dimHeader(name string) *youtubeanalytics.ResultTableColumnHeader {
	return &youtubeanalytics.ResultTableColumnHeader{Name: name, ColumnType: "DIMENSION"}
}

func metricHeader(name string) *youtubeanalytics.ResultTableColumnHeader {
	return &youtubeanalytics.ResultTableColumnHeader{Name: name, ColumnType: "METRIC"}
}

func TestFirstRow(t *testing.T) {
	resp := analyticsResponse(
		[]*youtubeanalytics.ResultTableColumnHeader{metricHeader("views"), metricHeader("averageViewPercentage")},
		[]any{float64(4200), 61.5},
	)

	got := firstRow(resp)
	want := map[string]float64{"views": 4200, "averageViewPercentage": 61.5}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("firstRow() mismatch (-want +got):\n%s", diff)
	}

	if firstRow(nil) != nil || firstRow(analyticsResponse(nil)) != nil {
		t.Error("firstRow() of empty response should be nil")
	}
}

func TestTrafficShares(t *testing.T) {
	resp := analyticsResponse(
		[]*youtubeanalytics.ResultTableColumnHeader{dimHeader("insightTrafficSourceType"), metricHeader("views")},
		[]any{"SHORTS", float64(900)},
		[]any{"YT_SEARCH", float64(50)},
		[]any{"EXT_URL", float64(50)},
	)

	shorts, search := trafficShares(resp)
	if shorts != 90 || search != 5 {
		t.Errorf("trafficShares() = %v, %v, want 90, 5", shorts, search)
	}

	shorts, search = trafficShares(analyticsResponse(nil))
	if shorts != 0 || search != 0 {
		t.Errorf("trafficShares(empty) = %v, %v", shorts, search)
	}
}

func TestCountryShares(t *testing.T) {
	resp := analyticsResponse(
		[]*youtubeanalytics.ResultTableColumnHeader{dimHeader("country"), metricHeader("views")},
		[]any{"US", float64(300)},
		[]any{"BR", float64(100)},
	)

	tests := []struct {
		name  string
		total float64
		want  []CountryStat
	}{
		{"channel total", 1000, []CountryStat{{"US", 30}, {"BR", 10}}},
		{"sum fallback", 0, []CountryStat{{"US", 75}, {"BR", 25}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, countryShares(resp, tt.total)); diff != "" {
				t.Errorf("countryShares() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCommas(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{250000, "250,000"},
		{1234567, "1,234,567"},
		{-4500, "-4,500"},
	}

	for _, tt := range tests {
		if got := commas(tt.in); got != tt.want {
			t.Errorf("commas(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
