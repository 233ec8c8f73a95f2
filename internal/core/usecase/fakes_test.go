package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/kirillkom/collision-fault-assistant/internal/core/domain"
)

type statusCall struct {
	status domain.VideoStatus
	errMsg string
}

type storeFake struct {
	mu sync.Mutex

	users    map[string]*domain.User
	analyses map[string]*domain.Analysis
	videos   map[string]*domain.Video
	queries  []domain.Query

	createAnalysisErr error
	saveLabelsErr     error
	failStatusErr     error
	completeStatusErr error
	createVideoErr    error
	statusCalls       []statusCall
	saveLabelsCalls   int
	createVideoCalls  int
}

func newStoreFake() *storeFake {
	return &storeFake{
		users:    map[string]*domain.User{"u-1": {ID: "u-1", Name: "kim", Email: "kim@example.com"}},
		analyses: map[string]*domain.Analysis{},
		videos:   map[string]*domain.Video{},
	}
}

func (f *storeFake) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get user", fmt.Errorf("id=%s", id))
	}
	copyUser := *user
	return &copyUser, nil
}

func (f *storeFake) CreateAnalysis(_ context.Context, a *domain.Analysis) error {
	if f.createAnalysisErr != nil {
		return f.createAnalysisErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	copyAnalysis := *a
	f.analyses[a.ID] = &copyAnalysis
	return nil
}

func (f *storeFake) GetAnalysisByID(_ context.Context, id string) (*domain.Analysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.analyses[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get analysis", fmt.Errorf("id=%s", id))
	}
	copyAnalysis := *a
	return &copyAnalysis, nil
}

func (f *storeFake) SaveLabels(_ context.Context, a *domain.Analysis) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveLabelsCalls++
	if f.saveLabelsErr != nil {
		return f.saveLabelsErr
	}
	stored, ok := f.analyses[a.ID]
	if !ok {
		return domain.WrapError(domain.ErrNotFound, "save labels", fmt.Errorf("id=%s", a.ID))
	}
	stored.LabelsDetected = a.LabelsDetected
	stored.IsEvaluationCompleted = a.IsEvaluationCompleted
	stored.UpdatedAt = a.UpdatedAt
	return nil
}

func (f *storeFake) CreateVideo(_ context.Context, v *domain.Video) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createVideoCalls++
	if f.createVideoErr != nil {
		return f.createVideoErr
	}
	copyVideo := *v
	f.videos[v.ID] = &copyVideo
	return nil
}

func (f *storeFake) GetVideoByID(_ context.Context, id string) (*domain.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.videos[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get video", fmt.Errorf("id=%s", id))
	}
	copyVideo := *v
	return &copyVideo, nil
}

func (f *storeFake) GetVideoByAnalysisID(_ context.Context, analysisID string) (*domain.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.videos {
		if v.AnalysisID == analysisID {
			copyVideo := *v
			return &copyVideo, nil
		}
	}
	return nil, domain.WrapError(domain.ErrNotFound, "get video by analysis", fmt.Errorf("analysis_id=%s", analysisID))
}

func (f *storeFake) UpdateVideoStatus(_ context.Context, id string, status domain.VideoStatus, errMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls = append(f.statusCalls, statusCall{status: status, errMsg: errMessage})
	if status == domain.VideoFailed && f.failStatusErr != nil {
		return f.failStatusErr
	}
	if status == domain.VideoCompleted && f.completeStatusErr != nil {
		return f.completeStatusErr
	}
	v, ok := f.videos[id]
	if !ok {
		return domain.WrapError(domain.ErrNotFound, "update video status", fmt.Errorf("id=%s", id))
	}
	v.Status = status
	v.Error = errMessage
	return nil
}

func (f *storeFake) CreateQuery(_ context.Context, q *domain.Query) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, *q)
	return nil
}

func (f *storeFake) ListQueries(_ context.Context, userID, analysisID string) ([]domain.Query, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Query, 0)
	for _, q := range f.queries {
		if q.UserID == userID && q.AnalysisID == analysisID {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *storeFake) seedAnalysis(id string, labels domain.LabelsDetected) *domain.Analysis {
	a := &domain.Analysis{
		ID:           id,
		RoadType:     "교차로",
		AccidentType: domain.AccidentVehicleToVehicle,
		FaultRatio:   []byte("{}"),
	}
	a.ApplyLabels(labels, a.UpdatedAt)
	f.analyses[id] = a
	return a
}

type storageFake struct {
	mu      sync.Mutex
	files   map[string][]byte
	saveErr error
	openErr error
}

func newStorageFake() *storageFake {
	return &storageFake{files: map[string][]byte{}}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[key] = body
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.files[key]
	if !ok {
		return nil, errors.New("missing file")
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func (f *storageFake) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, key)
	return nil
}

type gatewayFake struct {
	analyzeResult  *domain.InferenceResult
	refineResult   *domain.InferenceResult
	followupResult *domain.FollowupResult
	err            error
	block          bool

	analyzeCalls  int
	refineCalls   int
	followupCalls int

	analyzedBody    []byte
	lastAnalyze     domain.AnalyzeRequest
	lastRefine      domain.RefineRequest
	lastFollowup    domain.FollowupRequest
	followupHistory [][]domain.ConversationTurn
}

func (f *gatewayFake) wait(ctx context.Context) error {
	if !f.block {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *gatewayFake) Analyze(ctx context.Context, req domain.AnalyzeRequest) (*domain.InferenceResult, error) {
	f.analyzeCalls++
	f.lastAnalyze = req
	if req.Video != nil {
		f.analyzedBody, _ = io.ReadAll(req.Video)
	}
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.analyzeResult, nil
}

func (f *gatewayFake) Refine(ctx context.Context, req domain.RefineRequest) (*domain.InferenceResult, error) {
	f.refineCalls++
	f.lastRefine = req
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.refineResult, nil
}

func (f *gatewayFake) Followup(ctx context.Context, req domain.FollowupRequest) (*domain.FollowupResult, error) {
	f.followupCalls++
	f.lastFollowup = req
	f.followupHistory = append(f.followupHistory, req.ConversationHistory)
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.followupResult != nil {
		return f.followupResult, nil
	}
	return &domain.FollowupResult{Response: fmt.Sprintf("answer to %s", req.Message)}, nil
}

type publisherFake struct {
	events []domain.AnalysisEvent
	err    error
}

func (f *publisherFake) PublishAnalysisEvent(_ context.Context, event domain.AnalysisEvent) error {
	f.events = append(f.events, event)
	return f.err
}

type lockerFake struct {
	locked   []string
	unlocked int
	err      error
}

func (f *lockerFake) Lock(_ context.Context, analysisID string) (func(), error) {
	if f.err != nil {
		return nil, f.err
	}
	f.locked = append(f.locked, analysisID)
	return func() { f.unlocked++ }, nil
}

func strPtr(s string) *string { return &s }
