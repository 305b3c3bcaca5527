package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"dfl-stack/internal/models"
	"dfl-stack/shared/reportparser"
	"dfl-stack/shared/ypp"

	"github.com/spf13/cobra"
)

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <report>",
		Short: "Parse a Studio report (text or saved HTML) into metrics JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readReport(args[0])
			if err != nil {
				return err
			}

			metrics := reportparser.Parse(text)
			if metrics == nil {
				return fmt.Errorf("failed to parse %s", args[0])
			}

			sections := reportparser.Sections(metrics)
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %d sections: %s\n", theme.Info("•"), len(sections), strings.Join(sections, ", "))
			return writeJSON(cmd.OutOrStdout(), metrics)
		},
	}
}

func newAnalyzeCmd(opts *options) *cobra.Command {
	var markdown bool

	cmd := &cobra.Command{
		Use:   "analyze <report|metrics.json>",
		Short: "Score a report against the YPP targets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			in, err := readInput(args[0])
			if err != nil {
				return err
			}

			report := ypp.NewAnalyzer(ypp.PolicyFromConfig(&cfg.Scoring)).Analyze(in)
			out := cmd.OutOrStdout()
			if markdown {
				fmt.Fprintln(out, ypp.Markdown(report))
				return nil
			}
			printReport(out, report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&markdown, "markdown", false, "print the markdown report instead")
	return cmd
}

func printReport(w io.Writer, r models.YPPReport) {
	fmt.Fprintf(w, "%s %s/100  %s\n\n", theme.Bold("YPP score"), theme.Bold(r.OverallScore), viralColor(r.ViralStatus)(r.ViralStatus))

	rows := []struct {
		label string
		m     models.MetricScore
	}{
		{"Avg. % viewed", r.Metrics.APV},
		{"CTR", r.Metrics.CTR},
		{"Engagement", r.Metrics.Engagement},
		{"Shorts feed", r.Metrics.ShortsFeed},
	}
	for _, row := range rows {
		fmt.Fprintf(w, "  %-14s %6.1f%%  target %5.1f%%  %s\n", row.label, row.m.Value, row.m.Target, metricColor(row.m.Status)(row.m.Status))
	}

	if len(r.Insights) > 0 {
		fmt.Fprintln(w)
		for _, s := range r.Insights {
			fmt.Fprintf(w, "%s %s\n", theme.Warning(symbolWarning), s)
		}
	}
	if len(r.Actions) > 0 {
		fmt.Fprintln(w)
		for _, s := range r.Actions {
			fmt.Fprintf(w, "%s %s\n", theme.Info("→"), s)
		}
	}
}

func readReport(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".html") || strings.EqualFold(filepath.Ext(path), ".htm") {
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		return reportparser.TextFromHTML(f)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

// readInput accepts grouped analytics JSON, parsed metrics JSON as written
// by parse, or report text.
func readInput(path string) (ypp.Input, error) {
	text, err := readReport(path)
	if err != nil {
		return ypp.Input{}, err
	}

	trimmed := bytes.TrimSpace([]byte(text))
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return ypp.InputFromMetrics(reportparser.Parse(text)), nil
	}

	if ypp.IsAnalyticsData(trimmed) {
		in, err := ypp.DecodeData(trimmed)
		if err != nil {
			return ypp.Input{}, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		return in, nil
	}

	var m models.AnalyticsMetrics
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return ypp.Input{}, fmt.Errorf("failed to decode metrics %s: %w", path, err)
	}
	return ypp.InputFromMetrics(&m), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
