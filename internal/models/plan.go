package models

import "time"

type PlanStatus string

const (
	StatusPending   PlanStatus = "pending"
	StatusUploading PlanStatus = "uploading"
	StatusCompleted PlanStatus = "completed"
	StatusFailed    PlanStatus = "failed"
)

// AlgorithmScores are the planner's predictions for a single item.
// PatternInterruptScore is on a 0-100 scale, ControversyQuotient on 0-1.
type AlgorithmScores struct {
	PatternInterruptScore   *float64 `json:"patternInterruptScore"`
	PredictedRetention3s    *float64 `json:"predictedRetention3s"`
	PredictedCompletionRate *float64 `json:"predictedCompletionRate"`
	PredictedLoopRate       *float64 `json:"predictedLoopRate"`
	ControversyQuotient     *float64 `json:"controversyQuotient"`
}

// PlanItem is one normalized entry of a content schedule.
type PlanItem struct {
	ID               string           `json:"id"`
	Pillar           string           `json:"pillar"`
	Type             string           `json:"type"`
	Tool             string           `json:"tool"`
	Duration         string           `json:"duration"`
	PublishTimeLocal string           `json:"publishTimeLocal,omitempty"`
	PublishTimeUS    string           `json:"publishTimeUS,omitempty"`
	Title            string           `json:"title"`
	Description      string           `json:"description"`
	Tags             []string         `json:"tags"`
	PromptBlock      any              `json:"promptBlock"`
	PinnedComment    string           `json:"pinnedComment"`
	AlgorithmScores  *AlgorithmScores `json:"algorithmScores"`

	// Mutated by the upload pipeline.
	Status       PlanStatus `json:"status"`
	VideoData    any        `json:"videoData"`
	VideoURL     string     `json:"videoUrl,omitempty"`
	PublishedURL string     `json:"publishedUrl,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// IsTerminal reports whether the item has finished its upload lifecycle.
func (p *PlanItem) IsTerminal() bool {
	return p.Status == StatusCompleted || p.Status == StatusFailed
}

type Plan struct {
	AlgorithmStage  string     `json:"algorithmStage"`
	StageAnalysis   string     `json:"stageAnalysis"`
	ChannelInsights any        `json:"channelInsights"`
	Schedule        []PlanItem `json:"schedule"`
	GeneratedAt     time.Time  `json:"generatedAt"`
	ItemCount       int        `json:"itemCount"`
	Source          string     `json:"source"`
}
