package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/kirillkom/collision-fault-assistant/internal/core/domain"
	"github.com/kirillkom/collision-fault-assistant/internal/infrastructure/resilience"
)

const defaultMaxVideoBytes = 64 << 20

// generator is the slice of *genai.GenerativeModel the gateway depends on.
type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type Config struct {
	APIKey        string
	VideoModel    string
	TextModel     string
	MaxVideoBytes int64
}

// Gateway answers analyze, refine and follow-up calls with Gemini models.
type Gateway struct {
	sdk           *genai.Client
	video         generator
	refine        generator
	chat          generator
	executor      *resilience.Executor
	maxVideoBytes int64
}

func New(ctx context.Context, cfg Config, executor *resilience.Executor) (*Gateway, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if cfg.VideoModel == "" {
		cfg.VideoModel = "gemini-1.5-pro"
	}
	if cfg.TextModel == "" {
		cfg.TextModel = cfg.VideoModel
	}

	sdk, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	videoModel := sdk.GenerativeModel(cfg.VideoModel)
	videoModel.GenerationConfig.ResponseMIMEType = "application/json"

	refineModel := sdk.GenerativeModel(cfg.TextModel)
	refineModel.GenerationConfig.ResponseMIMEType = "application/json"

	chatModel := sdk.GenerativeModel(cfg.TextModel)
	chatModel.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(followupSystemPrompt)}}

	g := newGateway(videoModel, refineModel, chatModel, executor, cfg.MaxVideoBytes)
	g.sdk = sdk
	return g, nil
}

func newGateway(video, refine, chat generator, executor *resilience.Executor, maxVideoBytes int64) *Gateway {
	if executor == nil {
		executor = resilience.NewExecutor(resilience.InferenceConfig(resilience.DefaultConfig()))
	}
	if maxVideoBytes <= 0 {
		maxVideoBytes = defaultMaxVideoBytes
	}
	return &Gateway{
		video:         video,
		refine:        refine,
		chat:          chat,
		executor:      executor,
		maxVideoBytes: maxVideoBytes,
	}
}

func (g *Gateway) Close() error {
	if g.sdk == nil {
		return nil
	}
	return g.sdk.Close()
}

func (g *Gateway) Analyze(ctx context.Context, req domain.AnalyzeRequest) (*domain.InferenceResult, error) {
	if req.Video == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "gemini analyze", errors.New("video body is nil"))
	}
	data, err := io.ReadAll(io.LimitReader(req.Video, g.maxVideoBytes+1))
	if err != nil {
		return nil, domain.WrapError(domain.ErrStorage, "gemini analyze", fmt.Errorf("read video: %w", err))
	}
	if int64(len(data)) > g.maxVideoBytes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "gemini analyze", fmt.Errorf("video exceeds %d bytes", g.maxVideoBytes))
	}

	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = "video/mp4"
	}
	parts := []genai.Part{
		genai.Text(buildAnalyzePrompt(req.RoadType, req.AccidentType)),
		genai.Blob{MIMEType: mimeType, Data: data},
	}
	raw, err := g.generate(ctx, "gemini.analyze", g.video, parts)
	if err != nil {
		return nil, err
	}

	var out domain.InferenceResult
	if err := decodeJSON(raw, &out); err != nil {
		return nil, domain.WrapError(domain.ErrUpstreamContract, "gemini analyze", err)
	}
	completeResult(&out)
	return &out, nil
}

func (g *Gateway) Refine(ctx context.Context, req domain.RefineRequest) (*domain.InferenceResult, error) {
	prompt, err := buildRefinePrompt(req)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "gemini refine", err)
	}
	raw, err := g.generate(ctx, "gemini.refine", g.refine, []genai.Part{genai.Text(prompt)})
	if err != nil {
		return nil, err
	}

	var out domain.InferenceResult
	if err := decodeJSON(raw, &out); err != nil {
		return nil, domain.WrapError(domain.ErrUpstreamContract, "gemini refine", err)
	}
	out.Analysis = mergeAnswered(req.Analysis, out.Analysis, req.UncertainItems)
	out.UncertainItems = nil
	completeResult(&out)
	return &out, nil
}

func (g *Gateway) Followup(ctx context.Context, req domain.FollowupRequest) (*domain.FollowupResult, error) {
	prompt, err := buildFollowupPrompt(req)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "gemini followup", err)
	}
	raw, err := g.generate(ctx, "gemini.followup", g.chat, []genai.Part{genai.Text(prompt)})
	if err != nil {
		return nil, err
	}
	return &domain.FollowupResult{Response: strings.TrimSpace(raw)}, nil
}

func (g *Gateway) generate(ctx context.Context, operation string, model generator, parts []genai.Part) (string, error) {
	text, err := resilience.Do(ctx, g.executor, operation, func(callCtx context.Context) (string, error) {
		resp, err := model.GenerateContent(callCtx, parts...)
		if err != nil {
			return "", domain.WrapError(domain.ErrUpstreamTransport, operation, err)
		}
		return responseText(operation, resp)
	}, resilience.ClassifyDomainError)
	if err != nil {
		if domain.IsUpstream(err) {
			return "", err
		}
		return "", domain.WrapError(domain.ErrUpstreamTransport, operation, err)
	}
	return text, nil
}

func responseText(operation string, resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", domain.WrapError(domain.ErrUpstreamContract, operation, errors.New("no candidates"))
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", domain.WrapError(domain.ErrUpstreamContract, operation,
			fmt.Errorf("no content parts, finish reason %s", candidate.FinishReason.String()))
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
			continue
		}
		slog.Warn("gemini_unexpected_part", "operation", operation, "type", fmt.Sprintf("%T", part))
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", domain.WrapError(domain.ErrUpstreamContract, operation, errors.New("empty text response"))
	}
	return sb.String(), nil
}

func decodeJSON(raw string, out any) error {
	cleaned := cleanJSON(raw)
	if !json.Valid([]byte(cleaned)) {
		return fmt.Errorf("response is not valid json")
	}
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
