package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/collision-fault-assistant/internal/core/domain"
	"github.com/kirillkom/collision-fault-assistant/internal/core/ports"
)

type EvaluationUseCase struct {
	users    ports.UserRepository
	analyses ports.AnalysisRepository
	videos   ports.VideoRepository
	queries  ports.QueryRepository
	storage  ports.ObjectStorage
	gateway  ports.InferenceGateway
	events   ports.EventPublisher
	locker   ports.AnalysisLocker
	limits   domain.EvaluationLimits
	now      func() time.Time
}

func NewEvaluationUseCase(
	users ports.UserRepository,
	analyses ports.AnalysisRepository,
	videos ports.VideoRepository,
	queries ports.QueryRepository,
	storage ports.ObjectStorage,
	gateway ports.InferenceGateway,
	limits domain.EvaluationLimits,
) *EvaluationUseCase {
	if strings.TrimSpace(limits.AccidentType) == "" {
		limits.AccidentType = domain.AccidentVehicleToVehicle
	}
	if limits.InferenceTimeout <= 0 {
		limits.InferenceTimeout = 120 * time.Second
	}

	return &EvaluationUseCase{
		users:    users,
		analyses: analyses,
		videos:   videos,
		queries:  queries,
		storage:  storage,
		gateway:  gateway,
		limits:   limits,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithEventPublisher enables best-effort lifecycle notifications.
func (uc *EvaluationUseCase) WithEventPublisher(events ports.EventPublisher) *EvaluationUseCase {
	uc.events = events
	return uc
}

// WithAnalysisLocker serializes submit, re-evaluate and follow-up per analysis.
func (uc *EvaluationUseCase) WithAnalysisLocker(locker ports.AnalysisLocker) *EvaluationUseCase {
	uc.locker = locker
	return uc
}

func (uc *EvaluationUseCase) Initialize(ctx context.Context, roadType string) (*domain.Analysis, error) {
	roadType = strings.TrimSpace(roadType)
	if roadType == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "initialize analysis", errors.New("road_type is required"))
	}

	now := uc.now()
	analysis := &domain.Analysis{
		ID:           uuid.NewString(),
		RoadType:     roadType,
		AccidentType: uc.limits.AccidentType,
		FaultRatio:   json.RawMessage("{}"),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := uc.analyses.CreateAnalysis(ctx, analysis); err != nil {
		return nil, fmt.Errorf("create analysis: %w", err)
	}

	uc.publish(ctx, domain.AnalysisEvent{
		Type:       domain.EventAnalysisInitialized,
		AnalysisID: analysis.ID,
	})
	return analysis, nil
}

func (uc *EvaluationUseCase) SubmitVideo(ctx context.Context, submission ports.VideoSubmission) (*domain.Video, error) {
	if err := validateSubmission(submission); err != nil {
		return nil, err
	}

	unlock, err := uc.lock(ctx, submission.AnalysisID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	user, err := uc.loadUser(ctx, submission.UserID)
	if err != nil {
		return nil, err
	}
	analysis, err := uc.loadAnalysis(ctx, submission.AnalysisID)
	if err != nil {
		return nil, err
	}
	if err := uc.ensureUnbound(ctx, analysis.ID); err != nil {
		return nil, err
	}

	video, err := uc.storeVideo(ctx, user.ID, analysis.ID, submission)
	if err != nil {
		return nil, err
	}

	labels, err := uc.analyzeStored(ctx, video, analysis)
	if err != nil {
		return nil, uc.failVideo(ctx, video, err)
	}

	analysis.ApplyLabels(labels, uc.now())
	if err := uc.persistLabels(ctx, analysis); err != nil {
		return nil, uc.failVideo(ctx, video, err)
	}

	if err := uc.markVideo(ctx, video, domain.VideoCompleted, ""); err != nil {
		return nil, uc.failVideo(ctx, video, fmt.Errorf("set video status=completed: %w", err))
	}

	uc.publish(ctx, domain.AnalysisEvent{
		Type:                domain.EventVideoCompleted,
		AnalysisID:          analysis.ID,
		UserID:              user.ID,
		VideoID:             video.ID,
		EvaluationCompleted: analysis.IsEvaluationCompleted,
	})
	return video, nil
}

func (uc *EvaluationUseCase) ReEvaluate(ctx context.Context, userID, analysisID, userAnswer string) (*ports.ReEvaluation, error) {
	if strings.TrimSpace(userAnswer) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "re-evaluate", errors.New("user_answer is required"))
	}

	unlock, err := uc.lock(ctx, analysisID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	user, err := uc.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	analysis, err := uc.loadAnalysis(ctx, analysisID)
	if err != nil {
		return nil, err
	}
	if !analysis.HasBaseline() {
		return nil, domain.WrapError(domain.ErrAnalysisNotReady, "re-evaluate", fmt.Errorf("analysis %s", analysis.ID))
	}

	result, err := uc.refine(ctx, domain.RefineRequest{
		Analysis:       analysis.LabelsDetected.Analysis,
		Answer:         userAnswer,
		UncertainItems: nonNilStrings(analysis.LabelsDetected.UncertainItems),
	})
	if err != nil {
		return nil, err
	}

	labels, _, err := NormalizeInference(result)
	if err != nil {
		return nil, fmt.Errorf("normalize refine response: %w", err)
	}

	analysis.ApplyLabels(labels, uc.now())
	if err := uc.persistLabels(ctx, analysis); err != nil {
		return nil, err
	}

	uc.publish(ctx, domain.AnalysisEvent{
		Type:                domain.EventAnalysisReevaluated,
		AnalysisID:          analysis.ID,
		UserID:              user.ID,
		EvaluationCompleted: analysis.IsEvaluationCompleted,
	})
	return &ports.ReEvaluation{User: user, Analysis: analysis}, nil
}

func (uc *EvaluationUseCase) AskFollowup(ctx context.Context, userID, analysisID, message string) (*domain.Query, error) {
	if strings.TrimSpace(message) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask follow-up", errors.New("message is required"))
	}

	unlock, err := uc.lock(ctx, analysisID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	user, err := uc.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	analysis, err := uc.loadAnalysis(ctx, analysisID)
	if err != nil {
		return nil, err
	}

	prior, err := uc.queries.ListQueries(ctx, user.ID, analysis.ID)
	if err != nil {
		return nil, fmt.Errorf("list prior queries: %w", err)
	}

	var parentID *string
	if len(prior) > 0 {
		last := prior[len(prior)-1].ID
		parentID = &last
	}

	labels := analysis.LabelsDetected
	result, err := uc.followup(ctx, domain.FollowupRequest{
		Message:             message,
		Analysis:            nonNilVerdicts(labels.Analysis),
		SimilarCase:         labels.SimilarCase,
		Explanation:         labels.Explanation,
		IsFollowUp:          len(prior) > 0,
		ParentQueryID:       parentID,
		ConversationHistory: AssembleConversation(prior),
	})
	if err != nil {
		return nil, err
	}
	if result == nil || strings.TrimSpace(result.Response) == "" {
		return nil, domain.WrapError(domain.ErrUpstreamContract, "ask follow-up", errors.New("response text is missing"))
	}

	query := &domain.Query{
		ID:            uuid.NewString(),
		UserID:        user.ID,
		AnalysisID:    analysis.ID,
		Message:       message,
		Response:      result.Response,
		IsFollowUp:    len(prior) > 0,
		ParentQueryID: parentID,
		CreatedAt:     uc.now(),
	}
	if err := uc.queries.CreateQuery(ctx, query); err != nil {
		return nil, fmt.Errorf("create query: %w", err)
	}

	uc.publish(ctx, domain.AnalysisEvent{
		Type:                domain.EventQueryAnswered,
		AnalysisID:          analysis.ID,
		UserID:              user.ID,
		QueryID:             query.ID,
		EvaluationCompleted: analysis.IsEvaluationCompleted,
	})
	return query, nil
}

func validateSubmission(s ports.VideoSubmission) error {
	switch {
	case strings.TrimSpace(s.UserID) == "":
		return domain.WrapError(domain.ErrInvalidInput, "submit video", errors.New("user_id is required"))
	case strings.TrimSpace(s.AnalysisID) == "":
		return domain.WrapError(domain.ErrInvalidInput, "submit video", errors.New("analysis_id is required"))
	case s.Body == nil:
		return domain.WrapError(domain.ErrInvalidInput, "submit video", errors.New("video payload is required"))
	}
	return nil
}

func (uc *EvaluationUseCase) lock(ctx context.Context, analysisID string) (func(), error) {
	if uc.locker == nil {
		return func() {}, nil
	}
	unlock, err := uc.locker.Lock(ctx, analysisID)
	if err != nil {
		return nil, fmt.Errorf("lock analysis %s: %w", analysisID, err)
	}
	return unlock, nil
}

func (uc *EvaluationUseCase) loadUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := uc.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch user by id: %w", err)
	}
	return user, nil
}

func (uc *EvaluationUseCase) loadAnalysis(ctx context.Context, analysisID string) (*domain.Analysis, error) {
	analysis, err := uc.analyses.GetAnalysisByID(ctx, analysisID)
	if err != nil {
		return nil, fmt.Errorf("fetch analysis by id: %w", err)
	}
	return analysis, nil
}

func (uc *EvaluationUseCase) ensureUnbound(ctx context.Context, analysisID string) error {
	existing, err := uc.videos.GetVideoByAnalysisID(ctx, analysisID)
	switch {
	case err == nil:
		return domain.WrapError(domain.ErrConflict, "submit video", fmt.Errorf("analysis %s already has video %s", analysisID, existing.ID))
	case domain.IsKind(err, domain.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("check existing video: %w", err)
	}
}

func (uc *EvaluationUseCase) storeVideo(ctx context.Context, userID, analysisID string, s ports.VideoSubmission) (*domain.Video, error) {
	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(s.Filename))

	if err := uc.storage.Save(ctx, storageKey, s.Body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	now := uc.now()
	video := &domain.Video{
		ID:          id,
		UserID:      userID,
		AnalysisID:  analysisID,
		Filename:    s.Filename,
		MimeType:    s.MimeType,
		StoragePath: storageKey,
		Status:      domain.VideoUploaded,
		UploadedAt:  now,
		UpdatedAt:   now,
	}
	if err := uc.videos.CreateVideo(ctx, video); err != nil {
		uc.discardStored(ctx, storageKey)
		return nil, fmt.Errorf("create video metadata: %w", err)
	}
	return video, nil
}

// discardStored removes an upload that no video row references.
func (uc *EvaluationUseCase) discardStored(ctx context.Context, key string) {
	if err := uc.storage.Delete(context.WithoutCancel(ctx), key); err != nil {
		slog.Warn("orphaned_video_delete_failed", "storage_key", key, "error", err)
	}
}

func (uc *EvaluationUseCase) analyzeStored(ctx context.Context, video *domain.Video, analysis *domain.Analysis) (domain.LabelsDetected, error) {
	file, err := uc.storage.Open(ctx, video.StoragePath)
	if err != nil {
		return domain.LabelsDetected{}, fmt.Errorf("open stored video: %w", err)
	}
	defer file.Close()

	callCtx, cancel := context.WithTimeout(ctx, uc.limits.InferenceTimeout)
	defer cancel()

	result, err := uc.gateway.Analyze(callCtx, domain.AnalyzeRequest{
		Filename:     video.Filename,
		MimeType:     video.MimeType,
		Video:        file,
		RoadType:     analysis.RoadType,
		AccidentType: analysis.AccidentType,
	})
	if err != nil {
		return domain.LabelsDetected{}, upstreamError("analyze video", err)
	}

	labels, _, err := NormalizeInference(result)
	if err != nil {
		return domain.LabelsDetected{}, fmt.Errorf("normalize analyze response: %w", err)
	}
	return labels, nil
}

func (uc *EvaluationUseCase) refine(ctx context.Context, req domain.RefineRequest) (*domain.InferenceResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, uc.limits.InferenceTimeout)
	defer cancel()

	result, err := uc.gateway.Refine(callCtx, req)
	if err != nil {
		return nil, upstreamError("refine analysis", err)
	}
	return result, nil
}

func (uc *EvaluationUseCase) followup(ctx context.Context, req domain.FollowupRequest) (*domain.FollowupResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, uc.limits.InferenceTimeout)
	defer cancel()

	result, err := uc.gateway.Followup(callCtx, req)
	if err != nil {
		return nil, upstreamError("ask follow-up", err)
	}
	return result, nil
}

func (uc *EvaluationUseCase) persistLabels(ctx context.Context, analysis *domain.Analysis) error {
	if err := uc.analyses.SaveLabels(ctx, analysis); err != nil {
		return fmt.Errorf("save labels: %w", err)
	}
	return nil
}

func (uc *EvaluationUseCase) markVideo(ctx context.Context, video *domain.Video, status domain.VideoStatus, errMessage string) error {
	if err := uc.videos.UpdateVideoStatus(ctx, video.ID, status, errMessage); err != nil {
		return err
	}
	video.Status = status
	video.Error = errMessage
	video.UpdatedAt = uc.now()
	return nil
}

// failVideo records the failure even when the caller's context is already done.
func (uc *EvaluationUseCase) failVideo(ctx context.Context, video *domain.Video, cause error) error {
	failCtx := context.WithoutCancel(ctx)
	if failErr := uc.markVideo(failCtx, video, domain.VideoFailed, cause.Error()); failErr != nil {
		slog.Error("video_fail_status_write_failed",
			"video_id", video.ID,
			"analysis_id", video.AnalysisID,
			"error", failErr,
		)
		return fmt.Errorf("%w; mark failed status: %v", cause, failErr)
	}

	slog.Warn("video_analysis_failed",
		"video_id", video.ID,
		"analysis_id", video.AnalysisID,
		"error", cause,
	)
	uc.publish(failCtx, domain.AnalysisEvent{
		Type:       domain.EventVideoFailed,
		AnalysisID: video.AnalysisID,
		UserID:     video.UserID,
		VideoID:    video.ID,
		Error:      cause.Error(),
	})
	return fmt.Errorf("video %s: %w", video.ID, cause)
}

func (uc *EvaluationUseCase) publish(ctx context.Context, event domain.AnalysisEvent) {
	if uc.events == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = uc.now()
	}
	if err := uc.events.PublishAnalysisEvent(ctx, event); err != nil {
		slog.Warn("analysis_event_publish_failed",
			"type", string(event.Type),
			"analysis_id", event.AnalysisID,
			"error", err,
		)
	}
}

// upstreamError guarantees gateway failures carry an upstream kind.
func upstreamError(operation string, err error) error {
	if domain.IsUpstream(err) {
		return fmt.Errorf("%s: %w", operation, err)
	}
	return domain.WrapError(domain.ErrUpstreamTransport, operation, err)
}

func nonNilStrings(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

func nonNilVerdicts(analysis map[string]any) map[string]any {
	if analysis == nil {
		return map[string]any{}
	}
	return analysis
}

func sanitizeFilename(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == "_" {
		return "video.mp4"
	}
	return base
}
