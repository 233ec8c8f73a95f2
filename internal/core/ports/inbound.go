package ports

import (
	"context"
	"io"

	"github.com/kirillkom/collision-fault-assistant/internal/core/domain"
)

type VideoSubmission struct {
	UserID     string
	AnalysisID string
	Filename   string
	MimeType   string
	Body       io.Reader
}

// ReEvaluation is the user + analysis projection returned after a refinement round.
type ReEvaluation struct {
	User     *domain.User     `json:"user"`
	Analysis *domain.Analysis `json:"analysis"`
}

// EvaluationService is the inbound contract for the analysis lifecycle.
type EvaluationService interface {
	Initialize(ctx context.Context, roadType string) (*domain.Analysis, error)
	SubmitVideo(ctx context.Context, submission VideoSubmission) (*domain.Video, error)
	ReEvaluate(ctx context.Context, userID, analysisID, userAnswer string) (*ReEvaluation, error)
	AskFollowup(ctx context.Context, userID, analysisID, message string) (*domain.Query, error)
}

// AnalysisReader is the inbound read model for analyses, videos and query threads.
type AnalysisReader interface {
	GetAnalysis(ctx context.Context, id string) (*domain.Analysis, error)
	GetVideo(ctx context.Context, id string) (*domain.Video, error)
	ListQueries(ctx context.Context, userID, analysisID string) ([]domain.Query, error)
}
