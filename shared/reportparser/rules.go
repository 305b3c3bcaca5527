package reportparser

import (
	"math"
	"regexp"
	"strings"

	"dfl-stack/internal/models"
	"dfl-stack/shared/numeric"
)

const (
	maxTopVideos    = 5
	maxTopCountries = 5
)

var (
	sprintRe = regexp.MustCompile(`(?i)last 48 hours.*?gained\s*([\d,]+)\s*new subscribers.*?accumulated\s*([\d,]+)\s*views`)

	subscribersRe  = regexp.MustCompile(`(?i)Total Subscribers[:\s]*([\d,]+)`)
	watchSecondsRe = regexp.MustCompile(`(?i)Total Watch Time[:\s]*([\d,]+)\s*seconds`)
	videoCountRe   = regexp.MustCompile(`(?i)Published Content Count[:\s]*([\d,]+)`)

	avpRe = regexp.MustCompile(`(?i)Average View Percentage.*?[:\s]*([\d.]+)%`)
	avdRe = regexp.MustCompile(`(?i)Average View Duration.*?[:\s]*(\d+)\s*seconds`)

	velocityRe       = regexp.MustCompile(`(?i)Velocity.*?Total Views[:\s]*([\d,]+)`)
	velocityTwoDayRe = regexp.MustCompile(`(?i)last two days.*?Total Views[:\s]*([\d,]+)`)

	// One table row per line: rank, optional emoji, title, a tab or pipe, views, percentage.
	videoRowRe  = regexp.MustCompile(`(?m)^[ \t]*\d+[.)]?[ \t]+[^|\t\n]+?[ \t]*[|\t][ \t]*[\d,]+[ \t]*[|\t]?[ \t]*[\d.]+%`)
	cellSplitRe = regexp.MustCompile(`\t|\|`)
	rankRe      = regexp.MustCompile(`^\d+[.)]?\s+`)

	countriesRe = regexp.MustCompile(`(?i)Top 5 Audience Countries[^\n]*?:((?s:.*?))(?:Top Age|\z)`)
	countryRe   = regexp.MustCompile(`(\w+(?:[ \t]+\w+)?)\s*\(([\d.]+)%\)`)

	shortsFeedRe = regexp.MustCompile(`(?i)Shorts feed[:\s]*([\d.]+)%`)
	searchRe     = regexp.MustCompile(`(?i)YouTube search[:\s]*([\d.]+)%`)

	likesRe    = regexp.MustCompile(`(?i)Total Likes[:\s]*([\d,]+)`)
	commentsRe = regexp.MustCompile(`(?i)Total Comments[:\s]*([\d,]+)`)
	sharesRe   = regexp.MustCompile(`(?i)Total Shar(?:ing|e)s?[:\s]*([\d,]+)`)

	stayedRatioRe = regexp.MustCompile(`(?i)Shorts Stayed-to-Watch Ratio[:\s]*([\d.]+)%`)
	stayedRe      = regexp.MustCompile(`(?i)Stayed to watch[:\s]*([\d.]+)%`)
	viewedRe      = regexp.MustCompile(`(?i)Viewed[:\s]*([\d.]+)%`)

	viewsPerSubRe    = regexp.MustCompile(`(?i)Views Per New Subscriber[:\s]*([\d,]+)`)
	viewsForOneSubRe = regexp.MustCompile(`(?i)Average views for one sub[:\s]*([\d,]+)`)

	watchHoursRe = regexp.MustCompile(`(?i)Watch time\s*\(hours\)\s*[:\s]*([\d,.]+)`)

	viewsPerViewerRe = regexp.MustCompile(`(?i)Views Per Unique Viewer[:\s]*([\d.]+)`)
)

// DefaultRules returns the rule battery in evaluation order. The watch-time
// hours rule must run after the channel overview rule.
func DefaultRules() []Rule {
	return []Rule{
		{Section: "yppSprint", Apply: parseSprint},
		{Section: "channelOverview", Apply: parseChannelOverview},
		{Section: "retention", Apply: parseRetention},
		{Section: "velocity", Apply: parseVelocity},
		{Section: "videoPerformance", Apply: parseTopVideos},
		{Section: "audience", Apply: parseAudience},
		{Section: "traffic", Apply: parseTraffic},
		{Section: "engagement", Apply: parseEngagement},
		{Section: "swipeAway", Apply: parseSwipeAway},
		{Section: "subsConversion", Apply: parseSubsConversion},
		{Section: "channelOverview", Apply: parseWatchHours},
		{Section: "sessionTime", Apply: parseSessionTime},
	}
}

func parseSprint(text string, r *models.AnalyticsMetrics) {
	m := sprintRe.FindStringSubmatch(text)
	if m == nil {
		return
	}
	r.YPPSprint = &models.YPPSprint{
		NewSubscribers: intGroup(m, 1),
		Views48h:       intGroup(m, 2),
	}
}

func parseChannelOverview(text string, r *models.AnalyticsMetrics) {
	subs := subscribersRe.FindStringSubmatch(text)
	watch := watchSecondsRe.FindStringSubmatch(text)
	if subs == nil && watch == nil {
		return
	}
	r.ChannelOverview = &models.ChannelOverview{
		TotalSubscribers:      intGroup(subs, 1),
		TotalWatchTimeSeconds: intGroup(watch, 1),
		TotalVideos:           intGroup(videoCountRe.FindStringSubmatch(text), 1),
	}
}

func parseRetention(text string, r *models.AnalyticsMetrics) {
	avp := avpRe.FindStringSubmatch(text)
	avd := avdRe.FindStringSubmatch(text)
	if avp == nil && avd == nil {
		return
	}
	r.Retention = &models.Retention{
		AverageViewPercentage:      pctGroup(avp, 1),
		AverageViewDurationSeconds: intGroup(avd, 1),
	}
}

func parseVelocity(text string, r *models.AnalyticsMetrics) {
	m := firstMatch(text, velocityRe, velocityTwoDayRe)
	if m == nil {
		return
	}
	r.Velocity = &models.Velocity{Views48h: intGroup(m, 1)}
}

func parseTopVideos(text string, r *models.AnalyticsMetrics) {
	rows := videoRowRe.FindAllString(text, maxTopVideos)
	if len(rows) == 0 {
		return
	}
	videos := make([]models.TopVideo, 0, len(rows))
	for _, row := range rows {
		cells := cellSplitRe.Split(row, -1)
		for i := range cells {
			cells[i] = strings.TrimSpace(cells[i])
		}
		cell := func(i int) string {
			if i < len(cells) {
				return cells[i]
			}
			return ""
		}
		videos = append(videos, models.TopVideo{
			Title: rankRe.ReplaceAllString(cell(0), ""),
			Views: cell(1),
			AVP:   cell(2),
		})
	}
	r.VideoPerformance = &models.VideoPerformance{TopVideos: videos}
}

func parseAudience(text string, r *models.AnalyticsMetrics) {
	region := countriesRe.FindStringSubmatch(text)
	if region == nil {
		return
	}
	matches := countryRe.FindAllStringSubmatch(region[1], maxTopCountries)
	if len(matches) == 0 {
		return
	}
	countries := make([]models.CountryShare, 0, len(matches))
	for _, m := range matches {
		countries = append(countries, models.CountryShare{
			Country:    strings.TrimSpace(m[1]),
			Percentage: pctGroup(m, 2),
		})
	}
	r.Audience = &models.Audience{TopCountries: countries}
}

func parseTraffic(text string, r *models.AnalyticsMetrics) {
	shorts := shortsFeedRe.FindStringSubmatch(text)
	search := searchRe.FindStringSubmatch(text)
	if shorts == nil && search == nil {
		return
	}
	r.Traffic = &models.Traffic{
		ShortsFeedPct:    pctGroup(shorts, 1),
		YouTubeSearchPct: pctGroup(search, 1),
	}
}

func parseEngagement(text string, r *models.AnalyticsMetrics) {
	likes := likesRe.FindStringSubmatch(text)
	comments := commentsRe.FindStringSubmatch(text)
	if likes == nil && comments == nil {
		return
	}
	r.Engagement = &models.Engagement{
		TotalLikes:    intGroup(likes, 1),
		TotalComments: intGroup(comments, 1),
		TotalShares:   intGroup(sharesRe.FindStringSubmatch(text), 1),
	}
}

func parseSwipeAway(text string, r *models.AnalyticsMetrics) {
	m := firstMatch(text, stayedRatioRe, stayedRe, viewedRe)
	if m == nil {
		return
	}
	stayed := pctGroup(m, 1)
	r.SwipeAway = &models.SwipeAway{
		StayedToWatchRatio: stayed,
		SwipeAwayRate:      100 - stayed,
	}
}

func parseSubsConversion(text string, r *models.AnalyticsMetrics) {
	m := firstMatch(text, viewsPerSubRe, viewsForOneSubRe)
	if m == nil {
		return
	}
	r.SubsConversion = &models.SubsConversion{ViewsPerNewSub: intGroup(m, 1)}
}

// parseWatchHours fills total_watch_time_seconds from the hours phrasing only
// when the seconds phrasing did not already set it.
func parseWatchHours(text string, r *models.AnalyticsMetrics) {
	m := watchHoursRe.FindStringSubmatch(text)
	if m == nil {
		return
	}
	if r.ChannelOverview != nil && r.ChannelOverview.TotalWatchTimeSeconds != 0 {
		return
	}
	if r.ChannelOverview == nil {
		r.ChannelOverview = &models.ChannelOverview{}
	}
	hours := numeric.ParseFloat(group(m, 1))
	r.ChannelOverview.TotalWatchTimeSeconds = int(math.Round(hours * 3600))
}

func parseSessionTime(text string, r *models.AnalyticsMetrics) {
	m := viewsPerViewerRe.FindStringSubmatch(text)
	if m == nil {
		return
	}
	r.SessionTime = &models.SessionTime{ViewsPerUniqueViewer: numeric.ParseFloat(group(m, 1))}
}
