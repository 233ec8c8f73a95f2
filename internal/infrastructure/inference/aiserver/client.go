package aiserver

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/kirillkom/collision-fault-assistant/internal/core/domain"
	"github.com/kirillkom/collision-fault-assistant/internal/infrastructure/resilience"
)

const (
	analyzePath  = "/analyze/video"
	refinePath   = "/analyze/update-analysis"
	followupPath = "/chat/ask-followup"
)

// Client talks to the fault-analysis AI server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL string, timeout time.Duration, executor *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.InferenceConfig(resilience.DefaultConfig()))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

func (c *Client) Analyze(ctx context.Context, req domain.AnalyzeRequest) (*domain.InferenceResult, error) {
	if req.Video == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "analyze video", fmt.Errorf("video body is nil"))
	}
	res, err := resilience.Do(ctx, c.executor, "aiserver.analyze", func(callCtx context.Context) (*domain.InferenceResult, error) {
		var out domain.InferenceResult
		body, contentType := multipartVideo(req)
		if err := c.post(callCtx, analyzePath, contentType, body, &out, "analyze"); err != nil {
			return nil, err
		}
		return &out, nil
	}, resilience.ClassifyDomainError)
	return res, classifyError("analyze", err)
}

func (c *Client) Refine(ctx context.Context, req domain.RefineRequest) (*domain.InferenceResult, error) {
	res, err := resilience.Do(ctx, c.executor, "aiserver.refine", func(callCtx context.Context) (*domain.InferenceResult, error) {
		var out domain.InferenceResult
		if err := c.postJSON(callCtx, refinePath, req, &out, "refine"); err != nil {
			return nil, err
		}
		return &out, nil
	}, resilience.ClassifyDomainError)
	return res, classifyError("refine", err)
}

func (c *Client) Followup(ctx context.Context, req domain.FollowupRequest) (*domain.FollowupResult, error) {
	res, err := resilience.Do(ctx, c.executor, "aiserver.followup", func(callCtx context.Context) (*domain.FollowupResult, error) {
		var out domain.FollowupResult
		if err := c.postJSON(callCtx, followupPath, req, &out, "followup"); err != nil {
			return nil, err
		}
		return &out, nil
	}, resilience.ClassifyDomainError)
	return res, classifyError("followup", err)
}

// multipartVideo streams the upload without buffering the whole clip.
func multipartVideo(req domain.AnalyzeRequest) (io.Reader, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeVideoForm(mw, req)
		if closeErr := mw.Close(); err == nil {
			err = closeErr
		}
		_ = pw.CloseWithError(err)
	}()
	return pr, mw.FormDataContentType()
}

func writeVideoForm(mw *multipart.Writer, req domain.AnalyzeRequest) error {
	filename := req.Filename
	if strings.TrimSpace(filename) == "" {
		filename = "video.mp4"
	}
	mimeType := req.MimeType
	if strings.TrimSpace(mimeType) == "" {
		mimeType = "video/mp4"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="video"; filename=%q`, filename))
	header.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return fmt.Errorf("create video part: %w", err)
	}
	if _, err := io.Copy(part, req.Video); err != nil {
		return fmt.Errorf("copy video: %w", err)
	}
	if err := mw.WriteField("accident_type", req.AccidentType); err != nil {
		return fmt.Errorf("write accident_type: %w", err)
	}
	if err := mw.WriteField("road_type", req.RoadType); err != nil {
		return fmt.Errorf("write road_type: %w", err)
	}
	return nil
}
