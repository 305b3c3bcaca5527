package youtube

import (
	"fmt"
	"strconv"
	"strings"
)

const maxCountries = 5

type VideoStat struct {
	Title string
	Views int
	AVP   float64
}

type CountryStat struct {
	Country    string
	Percentage float64
}

// ChannelReport holds the API figures in the shape of a Studio export.
type ChannelReport struct {
	NewSubscribers int
	Views48h       int
	Likes          int
	Comments       int
	Shares         int

	Subscribers      int
	Videos           int
	WatchTimeSeconds int

	AverageViewPercentage float64
	AverageViewDuration   int

	ShortsFeedPct float64
	SearchPct     float64

	TopVideos []VideoStat
	Countries []CountryStat
}

// Render writes the report in the phrasing of an exported Studio report so it
// runs through the same parser as scraped captures.
func (r *ChannelReport) Render() string {
	var b strings.Builder

	fmt.Fprintf(&b, "In the last 48 hours, your channel gained %s new subscribers and accumulated %s views.\n",
		commas(r.NewSubscribers), commas(r.Views48h))
	fmt.Fprintf(&b, "Velocity (last 48 hours) - Total Views: %s\n", commas(r.Views48h))

	fmt.Fprintf(&b, "Total Subscribers: %s\n", commas(r.Subscribers))
	fmt.Fprintf(&b, "Total Watch Time: %s seconds\n", commas(r.WatchTimeSeconds))
	fmt.Fprintf(&b, "Published Content Count: %s\n", commas(r.Videos))

	fmt.Fprintf(&b, "Average View Percentage: %.1f%%\n", r.AverageViewPercentage)
	fmt.Fprintf(&b, "Average View Duration: %d seconds\n", r.AverageViewDuration)

	fmt.Fprintf(&b, "Shorts feed: %.1f%%\n", r.ShortsFeedPct)
	fmt.Fprintf(&b, "YouTube search: %.1f%%\n", r.SearchPct)

	fmt.Fprintf(&b, "Total Likes: %s\n", commas(r.Likes))
	fmt.Fprintf(&b, "Total Comments: %s\n", commas(r.Comments))
	fmt.Fprintf(&b, "Total Shares: %s\n", commas(r.Shares))

	if len(r.TopVideos) > 0 {
		b.WriteString("Top videos:\n")
		for i, v := range r.TopVideos {
			fmt.Fprintf(&b, "%d. %s\t%s\t%.1f%%\n", i+1, cleanTitle(v.Title), commas(v.Views), v.AVP)
		}
	}

	// Countries go last; the audience section runs to the end of the text.
	if len(r.Countries) > 0 {
		parts := make([]string, 0, len(r.Countries))
		for _, c := range r.Countries {
			parts = append(parts, fmt.Sprintf("%s (%.1f%%)", c.Country, c.Percentage))
		}
		fmt.Fprintf(&b, "Top 5 Audience Countries by views: %s\n", strings.Join(parts, ", "))
	}

	return b.String()
}

func cleanTitle(title string) string {
	title = strings.NewReplacer("\t", " ", "|", "/", "\n", " ", "\r", " ").Replace(title)
	title = strings.TrimSpace(title)
	if title == "" {
		return "Untitled"
	}
	return title
}

func commas(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	if neg {
		return "-" + b.String()
	}
	return b.String()
}
