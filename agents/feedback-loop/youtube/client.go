// Package youtube pulls channel analytics from the YouTube Data and
// YouTube Analytics APIs and renders them as report text.
package youtube

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"dfl-stack/shared/config"
	"dfl-stack/shared/numeric"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
	"google.golang.org/api/youtubeanalytics/v2"
)

const (
	dateLayout  = "2006-01-02"
	sprintDays  = 2
	topVideoMax = 5
)

type Client struct {
	data        *youtube.Service
	analytics   *youtubeanalytics.Service
	config      *config.YouTubeConfig
	oauthConfig *oauth2.Config
	tokens      *tokenSaver
	now         func() time.Time
}

func NewClient(cfg *config.YouTubeConfig) (*Client, error) {
	ctx := context.Background()

	oauthConfig := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes: []string{
			youtube.YoutubeReadonlyScope,
			youtubeanalytics.YtAnalyticsReadonlyScope,
		},
		Endpoint: google.Endpoint,
	}

	token, err := getToken(oauthConfig, cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("failed to get OAuth token: %w", err)
	}

	tokens := &tokenSaver{
		config:    oauthConfig,
		token:     token,
		tokenFile: cfg.TokenFile,
	}
	httpClient := oauth2.NewClient(ctx, tokens)

	data, err := youtube.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}

	analytics, err := youtubeanalytics.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube Analytics service: %w", err)
	}

	return &Client{
		data:        data,
		analytics:   analytics,
		config:      cfg,
		oauthConfig: oauthConfig,
		tokens:      tokens,
		now:         time.Now,
	}, nil
}

// RefreshToken refreshes and persists the token ahead of a cycle.
func (c *Client) RefreshToken() error {
	if _, err := c.tokens.Token(); err != nil {
		return fmt.Errorf("failed to refresh token: %w", err)
	}
	return nil
}

// ChannelTotals returns lifetime subscriber and upload counts for the
// authorized channel.
func (c *Client) ChannelTotals(ctx context.Context) (subscribers, videos int, err error) {
	resp, err := c.data.Channels.List([]string{"statistics"}).Mine(true).Context(ctx).Do()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get channel statistics: %w", err)
	}
	if len(resp.Items) == 0 || resp.Items[0].Statistics == nil {
		return 0, 0, fmt.Errorf("no channel found for the authorized account")
	}

	stats := resp.Items[0].Statistics
	return int(stats.SubscriberCount), int(stats.VideoCount), nil
}

// Report assembles a ChannelReport. The sprint and engagement figures cover
// the last two days; retention, traffic, audience and top videos cover
// lookbackDays.
func (c *Client) Report(ctx context.Context, lookbackDays int) (*ChannelReport, error) {
	if lookbackDays <= 0 {
		lookbackDays = 28
	}
	end := c.now()
	report := &ChannelReport{}

	var err error
	report.Subscribers, report.Videos, err = c.ChannelTotals(ctx)
	if err != nil {
		return nil, err
	}

	sprint, err := c.query(ctx, end, sprintDays, "views,subscribersGained,likes,comments,shares", "", "", 0)
	if err != nil {
		return nil, fmt.Errorf("failed to query sprint metrics: %w", err)
	}
	if row := firstRow(sprint); row != nil {
		report.Views48h = int(row["views"])
		report.NewSubscribers = int(row["subscribersGained"])
		report.Likes = int(row["likes"])
		report.Comments = int(row["comments"])
		report.Shares = int(row["shares"])
	}

	window, err := c.query(ctx, end, lookbackDays, "views,averageViewPercentage,averageViewDuration,estimatedMinutesWatched", "", "", 0)
	if err != nil {
		return nil, fmt.Errorf("failed to query retention metrics: %w", err)
	}
	var windowViews float64
	if row := firstRow(window); row != nil {
		windowViews = row["views"]
		report.AverageViewPercentage = row["averageViewPercentage"]
		report.AverageViewDuration = int(row["averageViewDuration"])
		report.WatchTimeSeconds = int(row["estimatedMinutesWatched"] * 60)
	}

	// The remaining breakdowns are optional; a failed query leaves them out.
	if traffic, err := c.query(ctx, end, lookbackDays, "views", "insightTrafficSourceType", "", 0); err != nil {
		log.Printf("Warning: Failed to query traffic sources: %v", err)
	} else {
		report.ShortsFeedPct, report.SearchPct = trafficShares(traffic)
	}

	if countries, err := c.query(ctx, end, lookbackDays, "views", "country", "-views", maxCountries); err != nil {
		log.Printf("Warning: Failed to query audience countries: %v", err)
	} else {
		report.Countries = countryShares(countries, windowViews)
	}

	if top, err := c.query(ctx, end, lookbackDays, "views,averageViewPercentage", "video", "-views", topVideoMax); err != nil {
		log.Printf("Warning: Failed to query top videos: %v", err)
	} else {
		report.TopVideos = c.topVideos(ctx, top)
	}

	return report, nil
}

func (c *Client) query(ctx context.Context, end time.Time, days int, metrics, dimensions, sort string, max int64) (*youtubeanalytics.QueryResponse, error) {
	call := c.analytics.Reports.Query().
		Ids("channel==MINE").
		StartDate(end.AddDate(0, 0, -days).Format(dateLayout)).
		EndDate(end.Format(dateLayout)).
		Metrics(metrics)
	if dimensions != "" {
		call = call.Dimensions(dimensions)
	}
	if sort != "" {
		call = call.Sort(sort)
	}
	if max > 0 {
		call = call.MaxResults(max)
	}
	return call.Context(ctx).Do()
}

func (c *Client) topVideos(ctx context.Context, resp *youtubeanalytics.QueryResponse) []VideoStat {
	rows := tableRows(resp)
	if len(rows) == 0 {
		return nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.dim)
	}

	titles := make(map[string]string, len(ids))
	videos, err := c.data.Videos.List([]string{"snippet"}).Id(strings.Join(ids, ",")).Context(ctx).Do()
	if err != nil {
		log.Printf("Warning: Failed to get video titles: %v", err)
	} else {
		for _, item := range videos.Items {
			titles[item.Id] = item.Snippet.Title
		}
	}

	stats := make([]VideoStat, 0, len(rows))
	for _, row := range rows {
		title := titles[row.dim]
		if title == "" {
			title = row.dim
		}
		stats = append(stats, VideoStat{
			Title: title,
			Views: int(row.values["views"]),
			AVP:   row.values["averageViewPercentage"],
		})
	}
	return stats
}

type tableRow struct {
	dim    string
	values map[string]float64
}

// tableRows maps each response row by column name. The first string column,
// when present, is taken as the dimension value.
func tableRows(resp *youtubeanalytics.QueryResponse) []tableRow {
	if resp == nil {
		return nil
	}

	rows := make([]tableRow, 0, len(resp.Rows))
	for _, raw := range resp.Rows {
		row := tableRow{values: make(map[string]float64, len(raw))}
		for i, cell := range raw {
			if i >= len(resp.ColumnHeaders) || resp.ColumnHeaders[i] == nil {
				continue
			}
			header := resp.ColumnHeaders[i]
			if header.ColumnType == "DIMENSION" {
				if row.dim == "" {
					row.dim = fmt.Sprint(cell)
				}
				continue
			}
			row.values[header.Name] = numeric.Float(cell)
		}
		rows = append(rows, row)
	}
	return rows
}

func firstRow(resp *youtubeanalytics.QueryResponse) map[string]float64 {
	rows := tableRows(resp)
	if len(rows) == 0 {
		return nil
	}
	return rows[0].values
}

func trafficShares(resp *youtubeanalytics.QueryResponse) (shorts, search float64) {
	var total float64
	for _, row := range tableRows(resp) {
		views := row.values["views"]
		total += views
		switch row.dim {
		case "SHORTS":
			shorts += views
		case "YT_SEARCH":
			search += views
		}
	}
	if total == 0 {
		return 0, 0
	}
	return shorts / total * 100, search / total * 100
}

// countryShares converts per-country views into shares of total. A zero
// total falls back to the sum of the returned rows.
func countryShares(resp *youtubeanalytics.QueryResponse, total float64) []CountryStat {
	rows := tableRows(resp)

	if total <= 0 {
		for _, row := range rows {
			total += row.values["views"]
		}
	}
	if total == 0 {
		return nil
	}

	out := make([]CountryStat, 0, len(rows))
	for _, row := range rows {
		out = append(out, CountryStat{Country: row.dim, Percentage: row.values["views"] / total * 100})
	}
	return out
}
