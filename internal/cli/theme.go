package cli

import (
	"dfl-stack/internal/models"

	"github.com/fatih/color"
)

const (
	symbolSuccess = "✓"
	symbolError   = "✗"
	symbolWarning = "⚠"
)

var theme = struct {
	Success func(a ...interface{}) string
	Error   func(a ...interface{}) string
	Warning func(a ...interface{}) string
	Info    func(a ...interface{}) string
	Bold    func(a ...interface{}) string
	Dim     func(a ...interface{}) string
}{
	Success: color.New(color.FgGreen).SprintFunc(),
	Error:   color.New(color.FgRed).SprintFunc(),
	Warning: color.New(color.FgYellow).SprintFunc(),
	Info:    color.New(color.FgCyan).SprintFunc(),
	Bold:    color.New(color.Bold).SprintFunc(),
	Dim:     color.New(color.FgHiBlack).SprintFunc(),
}

func metricColor(s models.MetricStatus) func(a ...interface{}) string {
	switch s {
	case models.MetricGood:
		return theme.Success
	case models.MetricWarning:
		return theme.Warning
	default:
		return theme.Error
	}
}

func viralColor(s models.ViralStatus) func(a ...interface{}) string {
	switch s {
	case models.ViralViral:
		return color.New(color.FgMagenta, color.Bold).SprintFunc()
	case models.ViralRising:
		return theme.Success
	case models.ViralSeeding:
		return theme.Warning
	default:
		return theme.Dim
	}
}
