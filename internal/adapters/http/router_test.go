package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/collision-fault-assistant/internal/core/domain"
	"github.com/kirillkom/collision-fault-assistant/internal/core/ports"
	"github.com/kirillkom/collision-fault-assistant/internal/observability/metrics"
)

type serviceFake struct {
	err error

	initRoadType   string
	submission     ports.VideoSubmission
	submittedBody  []byte
	reEvalAnswer   string
	followupMsg    string
	listedUserID   string
	listedAnalysis string
}

func (f *serviceFake) Initialize(_ context.Context, roadType string) (*domain.Analysis, error) {
	f.initRoadType = roadType
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Analysis{ID: "a-1", RoadType: roadType, AccidentType: domain.AccidentVehicleToVehicle}, nil
}

func (f *serviceFake) SubmitVideo(_ context.Context, s ports.VideoSubmission) (*domain.Video, error) {
	f.submission = s
	f.submittedBody, _ = io.ReadAll(s.Body)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Video{ID: "v-1", UserID: s.UserID, AnalysisID: s.AnalysisID, Status: domain.VideoCompleted}, nil
}

func (f *serviceFake) ReEvaluate(_ context.Context, userID, analysisID, answer string) (*ports.ReEvaluation, error) {
	f.reEvalAnswer = answer
	if f.err != nil {
		return nil, f.err
	}
	return &ports.ReEvaluation{
		User:     &domain.User{ID: userID},
		Analysis: &domain.Analysis{ID: analysisID, IsEvaluationCompleted: true},
	}, nil
}

func (f *serviceFake) AskFollowup(_ context.Context, userID, analysisID, message string) (*domain.Query, error) {
	f.followupMsg = message
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Query{ID: "q-1", UserID: userID, AnalysisID: analysisID, Message: message, Response: "ok"}, nil
}

func (f *serviceFake) GetAnalysis(_ context.Context, id string) (*domain.Analysis, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Analysis{ID: id}, nil
}

func (f *serviceFake) GetVideo(_ context.Context, id string) (*domain.Video, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Video{ID: id, Status: domain.VideoUploaded}, nil
}

func (f *serviceFake) ListQueries(_ context.Context, userID, analysisID string) ([]domain.Query, error) {
	f.listedUserID = userID
	f.listedAnalysis = analysisID
	if f.err != nil {
		return nil, f.err
	}
	return []domain.Query{{ID: "q-1"}, {ID: "q-2", IsFollowUp: true}}, nil
}

func newTestHandler(t *testing.T, svc *serviceFake, opts Options) http.Handler {
	t.Helper()
	router, err := NewRouter(context.Background(), svc, svc, metrics.NewHTTPServerMetrics(serviceName), opts)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	return router.Handler()
}

func decodeError(t *testing.T, body *bytes.Buffer) string {
	t.Helper()
	var resp map[string]string
	if err := json.Unmarshal(body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp["error"]
}

func TestInitAnalysisReturnsCreated(t *testing.T) {
	svc := &serviceFake{}
	handler := newTestHandler(t, svc, Options{})

	req := httptest.NewRequest(http.MethodPost, "/v1/analyses/init", strings.NewReader(`{"road_type":"교차로"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	if svc.initRoadType != "교차로" {
		t.Fatalf("expected road type to reach service, got %q", svc.initRoadType)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestInitAnalysisRejectsBodyFailingSchema(t *testing.T) {
	svc := &serviceFake{}
	handler := newTestHandler(t, svc, Options{})

	for _, body := range []string{`{}`, `{"road_type":""}`, `{"road_type":1}`, `not json`} {
		req := httptest.NewRequest(http.MethodPost, "/v1/analyses/init", strings.NewReader(body))
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, res.Code)
		}
		if decodeError(t, res.Body) == "" {
			t.Fatalf("body %s: expected error message", body)
		}
	}
	if svc.initRoadType != "" {
		t.Fatalf("service must not be called for invalid bodies")
	}
}

func TestGetAnalysisMapsNotFound(t *testing.T) {
	svc := &serviceFake{err: domain.WrapError(domain.ErrNotFound, "get analysis", errors.New("id=missing"))}
	handler := newTestHandler(t, svc, Options{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/analyses/missing", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestSubmitVideoStreamsMultipartToService(t *testing.T) {
	svc := &serviceFake{}
	handler := newTestHandler(t, svc, Options{MaxUploadBytes: 1 << 20})

	body, contentType := multipartBody(t, map[string]string{"user_id": "u-1", "analysis_id": "a-1"}, []byte("video-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/v1/videos/submit", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	if svc.submission.UserID != "u-1" || svc.submission.AnalysisID != "a-1" {
		t.Fatalf("unexpected submission: %+v", svc.submission)
	}
	if svc.submission.Filename != "crash.mp4" {
		t.Fatalf("expected filename crash.mp4, got %q", svc.submission.Filename)
	}
	if string(svc.submittedBody) != "video-bytes" {
		t.Fatalf("expected uploaded bytes, got %q", svc.submittedBody)
	}
}

func TestSubmitVideoRequiresFile(t *testing.T) {
	handler := newTestHandler(t, &serviceFake{}, Options{})

	body, contentType := multipartBody(t, map[string]string{"user_id": "u-1", "analysis_id": "a-1"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/videos/submit", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestSubmitVideoRejectsOversizedUpload(t *testing.T) {
	handler := newTestHandler(t, &serviceFake{}, Options{MaxUploadBytes: 64})

	body, contentType := multipartBody(t, map[string]string{"user_id": "u-1", "analysis_id": "a-1"}, bytes.Repeat([]byte("x"), 4096))
	req := httptest.NewRequest(http.MethodPost, "/v1/videos/submit", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", res.Code)
	}
}

func TestSubmitVideoMapsConflictAndUpstreamErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{err: domain.WrapError(domain.ErrConflict, "submit video", errors.New("bound")), want: http.StatusConflict},
		{err: domain.WrapError(domain.ErrUpstreamContract, "analyze", errors.New("bad shape")), want: http.StatusBadGateway},
		{
			err:  domain.WrapError(domain.ErrUpstreamTransport, "analyze", fmt.Errorf("wait: %w", context.DeadlineExceeded)),
			want: http.StatusGatewayTimeout,
		},
	}
	for _, tc := range cases {
		handler := newTestHandler(t, &serviceFake{err: tc.err}, Options{})
		body, contentType := multipartBody(t, map[string]string{"user_id": "u-1", "analysis_id": "a-1"}, []byte("v"))
		req := httptest.NewRequest(http.MethodPost, "/v1/videos/submit", body)
		req.Header.Set("Content-Type", contentType)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != tc.want {
			t.Fatalf("error %v: expected %d, got %d", tc.err, tc.want, res.Code)
		}
	}
}

func TestReEvaluateReturnsUserAndAnalysis(t *testing.T) {
	svc := &serviceFake{}
	handler := newTestHandler(t, svc, Options{})

	req := httptest.NewRequest(http.MethodPost, "/v1/analyses/re-evaluate",
		strings.NewReader(`{"user_id":"u-1","analysis_id":"a-1","user_answer":"신호는 초록불이었습니다"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var resp struct {
		User     domain.User     `json:"user"`
		Analysis domain.Analysis `json:"analysis"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.User.ID != "u-1" || resp.Analysis.ID != "a-1" || !resp.Analysis.IsEvaluationCompleted {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if svc.reEvalAnswer != "신호는 초록불이었습니다" {
		t.Fatalf("expected answer to reach service, got %q", svc.reEvalAnswer)
	}
}

func TestReEvaluateMapsNotReadyTo422(t *testing.T) {
	svc := &serviceFake{err: domain.WrapError(domain.ErrAnalysisNotReady, "re-evaluate", errors.New("no baseline"))}
	handler := newTestHandler(t, svc, Options{})

	req := httptest.NewRequest(http.MethodPost, "/v1/analyses/re-evaluate",
		strings.NewReader(`{"user_id":"u-1","analysis_id":"a-1","user_answer":"yes"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", res.Code)
	}
}

func TestAskFollowupReturnsCreatedQuery(t *testing.T) {
	svc := &serviceFake{}
	handler := newTestHandler(t, svc, Options{})

	req := httptest.NewRequest(http.MethodPost, "/v1/queries/followup",
		strings.NewReader(`{"user_id":"u-1","analysis_id":"a-1","message":"과실 비율이 왜 이렇게 나왔나요?"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	if svc.followupMsg == "" {
		t.Fatalf("expected message to reach service")
	}
}

func TestAskFollowupRejectsMissingMessage(t *testing.T) {
	handler := newTestHandler(t, &serviceFake{}, Options{})

	req := httptest.NewRequest(http.MethodPost, "/v1/queries/followup", strings.NewReader(`{"user_id":"u-1","analysis_id":"a-1"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestListQueriesBindsPathAndQuery(t *testing.T) {
	svc := &serviceFake{}
	handler := newTestHandler(t, svc, Options{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/analyses/a-1/queries?user_id=u-1", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if svc.listedUserID != "u-1" || svc.listedAnalysis != "a-1" {
		t.Fatalf("unexpected binding: user=%q analysis=%q", svc.listedUserID, svc.listedAnalysis)
	}
	var queries []domain.Query
	if err := json.Unmarshal(res.Body.Bytes(), &queries); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(queries) != 2 {
		t.Fatalf("expected 2 queries, got %d", len(queries))
	}
}

func TestListQueriesRequiresUserID(t *testing.T) {
	handler := newTestHandler(t, &serviceFake{}, Options{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/analyses/a-1/queries", nil))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestOpenAPIDocumentAndMetricsAreServed(t *testing.T) {
	handler := newTestHandler(t, &serviceFake{}, Options{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), "/v1/analyses/init") {
		t.Fatalf("expected openapi document, got %d", res.Code)
	}

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/analyses/a-1", nil))
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(res.Body.String(), `path="/v1/analyses/{analysis_id}"`) {
		t.Fatalf("expected route pattern label in metrics, got:\n%s", res.Body.String())
	}
}

func TestUnknownRouteReturnsJSON404(t *testing.T) {
	handler := newTestHandler(t, &serviceFake{}, Options{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/nope", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
	if decodeError(t, res.Body) == "" {
		t.Fatalf("expected error message")
	}
}

func multipartBody(t *testing.T, fields map[string]string, file []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if file != nil {
		part, err := writer.CreateFormFile("file", "crash.mp4")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(file); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}
