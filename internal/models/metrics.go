package models

// AnalyticsMetrics is the structured form of a scraped analytics report.
// A nil section means the report did not mention it.
type AnalyticsMetrics struct {
	YPPSprint        *YPPSprint        `json:"yppSprint,omitempty"`
	ChannelOverview  *ChannelOverview  `json:"channelOverview,omitempty"`
	Retention        *Retention        `json:"retention,omitempty"`
	Velocity         *Velocity         `json:"velocity,omitempty"`
	VideoPerformance *VideoPerformance `json:"videoPerformance,omitempty"`
	Audience         *Audience         `json:"audience,omitempty"`
	Traffic          *Traffic          `json:"traffic,omitempty"`
	Engagement       *Engagement       `json:"engagement,omitempty"`
	SwipeAway        *SwipeAway        `json:"swipeAway,omitempty"`
	SubsConversion   *SubsConversion   `json:"subsConversion,omitempty"`
	SessionTime      *SessionTime      `json:"sessionTime,omitempty"`
}

type YPPSprint struct {
	NewSubscribers int `json:"new_subscribers"`
	Views48h       int `json:"views_48h"`
}

type ChannelOverview struct {
	TotalSubscribers      int `json:"total_subscribers"`
	TotalWatchTimeSeconds int `json:"total_watch_time_seconds"`
	TotalVideos           int `json:"total_videos"`
}

type Retention struct {
	AverageViewPercentage      float64 `json:"average_view_percentage"`
	AverageViewDurationSeconds int     `json:"average_view_duration_seconds"`
}

type Velocity struct {
	Views48h int `json:"views_48h"`
}

// TopVideo keeps the raw cell text; Studio formats these inconsistently.
type TopVideo struct {
	Title string `json:"title"`
	Views string `json:"views"`
	AVP   string `json:"avp"`
}

type VideoPerformance struct {
	TopVideos []TopVideo `json:"top_videos"`
}

type CountryShare struct {
	Country    string  `json:"country"`
	Percentage float64 `json:"percentage"`
}

type Audience struct {
	TopCountries []CountryShare `json:"top_countries"`
}

type Traffic struct {
	ShortsFeedPct    float64 `json:"shorts_feed_pct"`
	YouTubeSearchPct float64 `json:"youtube_search_pct"`
}

type Engagement struct {
	TotalLikes    int `json:"total_likes"`
	TotalComments int `json:"total_comments"`
	TotalShares   int `json:"total_shares"`
}

type SwipeAway struct {
	StayedToWatchRatio float64 `json:"stayed_to_watch_ratio"`
	SwipeAwayRate      float64 `json:"swipe_away_rate"`
}

type SubsConversion struct {
	ViewsPerNewSub int `json:"views_per_new_sub"`
}

type SessionTime struct {
	ViewsPerUniqueViewer float64 `json:"views_per_unique_viewer"`
}
