package ports

import (
	"context"
	"io"

	"github.com/kirillkom/collision-fault-assistant/internal/core/domain"
)

// UserRepository reads users owned by the external auth service.
type UserRepository interface {
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// AnalysisRepository persists analysis state.
type AnalysisRepository interface {
	CreateAnalysis(ctx context.Context, analysis *domain.Analysis) error
	GetAnalysisByID(ctx context.Context, id string) (*domain.Analysis, error)
	SaveLabels(ctx context.Context, analysis *domain.Analysis) error
}

// VideoRepository persists uploaded videos and their lifecycle status.
type VideoRepository interface {
	CreateVideo(ctx context.Context, video *domain.Video) error
	GetVideoByID(ctx context.Context, id string) (*domain.Video, error)
	GetVideoByAnalysisID(ctx context.Context, analysisID string) (*domain.Video, error)
	UpdateVideoStatus(ctx context.Context, id string, status domain.VideoStatus, errMessage string) error
}

// QueryRepository stores the follow-up thread of a (user, analysis) pair.
type QueryRepository interface {
	CreateQuery(ctx context.Context, query *domain.Query) error
	ListQueries(ctx context.Context, userID, analysisID string) ([]domain.Query, error)
}

// ObjectStorage stores uploaded videos.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// InferenceGateway is the remote fault-analysis capability.
type InferenceGateway interface {
	Analyze(ctx context.Context, req domain.AnalyzeRequest) (*domain.InferenceResult, error)
	Refine(ctx context.Context, req domain.RefineRequest) (*domain.InferenceResult, error)
	Followup(ctx context.Context, req domain.FollowupRequest) (*domain.FollowupResult, error)
}

// EventPublisher announces analysis lifecycle changes.
type EventPublisher interface {
	PublishAnalysisEvent(ctx context.Context, event domain.AnalysisEvent) error
}

// EventSubscriber consumes analysis lifecycle events until ctx is done.
type EventSubscriber interface {
	SubscribeAnalysisEvents(ctx context.Context, handler func(context.Context, domain.AnalysisEvent) error) error
}

// AnalysisLocker serializes mutations of one analysis.
type AnalysisLocker interface {
	Lock(ctx context.Context, analysisID string) (unlock func(), err error)
}
