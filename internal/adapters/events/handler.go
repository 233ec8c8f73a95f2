// Package events consumes analysis lifecycle events published by the API.
package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kirillkom/collision-fault-assistant/internal/core/domain"
)

// Recorder is the subset of worker metrics the handler reports to.
type Recorder interface {
	StartEvent()
	FinishEvent(service, eventType string, duration time.Duration, err error)
	ObserveEventLag(service, eventType string, lag time.Duration)
	RecordEvaluationCompleted(service, eventType string)
}

var errUnknownEventType = errors.New("unknown event type")

type Handler struct {
	service  string
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

func NewHandler(service string, recorder Recorder, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service:  service,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// Handle records one event. Unknown types are counted as errors and logged.
func (h *Handler) Handle(ctx context.Context, event domain.AnalysisEvent) error {
	start := h.now()
	eventType := string(event.Type)

	if h.recorder != nil {
		h.recorder.StartEvent()
		if !event.OccurredAt.IsZero() {
			h.recorder.ObserveEventLag(h.service, eventType, start.Sub(event.OccurredAt))
		}
	}

	err := h.handle(ctx, event)

	if h.recorder != nil {
		h.recorder.FinishEvent(h.service, eventType, h.now().Sub(start), err)
	}
	return err
}

func (h *Handler) handle(ctx context.Context, event domain.AnalysisEvent) error {
	attrs := []any{
		"type", event.Type,
		"analysis_id", event.AnalysisID,
	}
	if event.UserID != "" {
		attrs = append(attrs, "user_id", event.UserID)
	}

	switch event.Type {
	case domain.EventAnalysisInitialized:
		h.logger.InfoContext(ctx, "analysis_initialized", attrs...)
	case domain.EventVideoCompleted, domain.EventAnalysisReevaluated:
		attrs = append(attrs, "video_id", event.VideoID, "evaluation_completed", event.EvaluationCompleted)
		h.logger.InfoContext(ctx, "analysis_evaluated", attrs...)
		if event.EvaluationCompleted && h.recorder != nil {
			h.recorder.RecordEvaluationCompleted(h.service, string(event.Type))
		}
	case domain.EventVideoFailed:
		attrs = append(attrs, "video_id", event.VideoID, "error", event.Error)
		h.logger.WarnContext(ctx, "analysis_video_failed", attrs...)
	case domain.EventQueryAnswered:
		attrs = append(attrs, "query_id", event.QueryID)
		h.logger.InfoContext(ctx, "analysis_query_answered", attrs...)
	default:
		h.logger.WarnContext(ctx, "analysis_event_unknown", attrs...)
		return errUnknownEventType
	}
	return nil
}
