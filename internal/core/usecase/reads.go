package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/collision-fault-assistant/internal/core/domain"
)

func (uc *EvaluationUseCase) GetAnalysis(ctx context.Context, id string) (*domain.Analysis, error) {
	return uc.loadAnalysis(ctx, id)
}

func (uc *EvaluationUseCase) GetVideo(ctx context.Context, id string) (*domain.Video, error) {
	video, err := uc.videos.GetVideoByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch video by id: %w", err)
	}
	return video, nil
}

// ListQueries returns the thread for (user, analysis) oldest first.
func (uc *EvaluationUseCase) ListQueries(ctx context.Context, userID, analysisID string) ([]domain.Query, error) {
	user, err := uc.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	analysis, err := uc.loadAnalysis(ctx, analysisID)
	if err != nil {
		return nil, err
	}
	queries, err := uc.queries.ListQueries(ctx, user.ID, analysis.ID)
	if err != nil {
		return nil, fmt.Errorf("list queries: %w", err)
	}
	return queries, nil
}
