package domain

import "time"

type EventType string

const (
	EventAnalysisInitialized EventType = "analysis.initialized"
	EventVideoCompleted      EventType = "video.completed"
	EventVideoFailed         EventType = "video.failed"
	EventAnalysisReevaluated EventType = "analysis.reevaluated"
	EventQueryAnswered       EventType = "query.answered"
)

type AnalysisEvent struct {
	Type                EventType `json:"type"`
	AnalysisID          string    `json:"analysis_id"`
	UserID              string    `json:"user_id,omitempty"`
	VideoID             string    `json:"video_id,omitempty"`
	QueryID             string    `json:"query_id,omitempty"`
	EvaluationCompleted bool      `json:"evaluation_completed"`
	Error               string    `json:"error,omitempty"`
	OccurredAt          time.Time `json:"occurred_at"`
}
