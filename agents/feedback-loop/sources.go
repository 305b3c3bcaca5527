package feedbackloop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dfl-stack/internal/models"
	"dfl-stack/shared/reportparser"

	"dfl-stack/agents/feedback-loop/youtube"
)

const (
	reportTextFile = "report.txt"
	reportHTMLFile = "report.html"
	rowsFile       = "rows.json"
)

var ErrNoCapture = errors.New("no analytics capture available")

// Source yields one analytics capture per cycle.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (*models.Capture, error)
}

// FileSource reads the exports the Studio scraper drops into a directory:
// report text (plain or saved HTML) and the content table rows.
type FileSource struct {
	Dir string
}

func (s *FileSource) Name() string {
	return "files:" + s.Dir
}

func (s *FileSource) Fetch(ctx context.Context) (*models.Capture, error) {
	capture := &models.Capture{CapturedAt: time.Now().UTC()}

	text, modTime, err := s.readText()
	if err != nil {
		return nil, err
	}
	capture.Text = text
	if !modTime.IsZero() {
		capture.CapturedAt = modTime.UTC()
	}

	rows, err := s.readRows()
	if err != nil {
		return nil, err
	}
	capture.Rows = rows

	if strings.TrimSpace(capture.Text) == "" && len(capture.Rows) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoCapture, s.Dir)
	}
	capture.Origins = []string{s.Name()}
	return capture, nil
}

func (s *FileSource) readText() (string, time.Time, error) {
	path := filepath.Join(s.Dir, reportTextFile)
	data, err := os.ReadFile(path)
	if err == nil {
		return string(data), modTime(path), nil
	}
	if !os.IsNotExist(err) {
		return "", time.Time{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	path = filepath.Join(s.Dir, reportHTMLFile)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return "", time.Time{}, nil
	}
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	text, err := reportparser.TextFromHTML(f)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return text, modTime(path), nil
}

// readRows accepts either a bare row list or {"rows": [...]}.
func (s *FileSource) readRows() ([][]any, error) {
	path := filepath.Join(s.Dir, rowsFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var rows [][]any
	if err := json.Unmarshal(data, &rows); err == nil {
		return rows, nil
	}

	var wrapped models.AnalyticsResult
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return wrapped.Rows, nil
}

func modTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// ReportFetcher is satisfied by *youtube.Client.
type ReportFetcher interface {
	Report(ctx context.Context, lookbackDays int) (*youtube.ChannelReport, error)
}

// APISource renders YouTube Analytics figures as report text. It carries no
// table rows; the Studio content table is only available from the scraper.
type APISource struct {
	Client       ReportFetcher
	LookbackDays int
}

func (s *APISource) Name() string {
	return "youtube-api"
}

func (s *APISource) Fetch(ctx context.Context) (*models.Capture, error) {
	report, err := s.Client.Report(ctx, s.LookbackDays)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch channel report: %w", err)
	}
	return &models.Capture{
		Text:       report.Render(),
		CapturedAt: time.Now().UTC(),
		Origins:    []string{s.Name()},
	}, nil
}

// collect merges the captures of every source that succeeds. It fails only
// when all of them do.
func collect(ctx context.Context, sources []Source) (*models.Capture, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: no sources configured", ErrNoCapture)
	}

	merged := &models.Capture{}
	var errs []error
	var texts []string

	for _, src := range sources {
		c, err := src.Fetch(ctx)
		if err != nil {
			log.Printf("Warning: Source %s failed: %v", src.Name(), err)
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			continue
		}
		if strings.TrimSpace(c.Text) != "" {
			texts = append(texts, c.Text)
		}
		merged.Rows = append(merged.Rows, c.Rows...)
		merged.Origins = append(merged.Origins, c.Origins...)
		if c.CapturedAt.After(merged.CapturedAt) {
			merged.CapturedAt = c.CapturedAt
		}
	}

	if len(merged.Origins) == 0 {
		return nil, errors.Join(append([]error{ErrNoCapture}, errs...)...)
	}
	merged.Text = strings.Join(texts, "\n")
	return merged, nil
}
