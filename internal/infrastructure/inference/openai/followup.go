package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/kirillkom/collision-fault-assistant/internal/core/domain"
	"github.com/kirillkom/collision-fault-assistant/internal/infrastructure/resilience"
)

const systemPrompt = "당신은 교통사고 과실 판단 전문가입니다."

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// FollowupResponder answers follow-up questions with a chat completion model.
type FollowupResponder struct {
	client   *goopenai.Client
	model    string
	executor *resilience.Executor
}

func NewFollowupResponder(cfg Config, executor *resilience.Executor) (*FollowupResponder, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	model := cfg.Model
	if model == "" {
		model = goopenai.GPT4
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.InferenceConfig(resilience.DefaultConfig()))
	}
	return &FollowupResponder{
		client:   goopenai.NewClientWithConfig(clientCfg),
		model:    model,
		executor: executor,
	}, nil
}

func (r *FollowupResponder) Followup(ctx context.Context, req domain.FollowupRequest) (*domain.FollowupResult, error) {
	messages, err := buildMessages(req)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "openai followup", err)
	}

	content, err := resilience.Do(ctx, r.executor, "openai.followup", func(callCtx context.Context) (string, error) {
		resp, err := r.client.CreateChatCompletion(callCtx, goopenai.ChatCompletionRequest{
			Model:    r.model,
			Messages: messages,
		})
		if err != nil {
			return "", classifyError(err)
		}
		if len(resp.Choices) == 0 {
			return "", domain.WrapError(domain.ErrUpstreamContract, "openai followup", errors.New("no completion choices returned"))
		}
		return resp.Choices[0].Message.Content, nil
	}, resilience.ClassifyDomainError)
	if err != nil {
		if domain.IsUpstream(err) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrUpstreamTransport, "openai followup", err)
	}
	return &domain.FollowupResult{Response: strings.TrimSpace(content)}, nil
}

func buildMessages(req domain.FollowupRequest) ([]goopenai.ChatCompletionMessage, error) {
	analysisJSON, err := json.Marshal(req.Analysis)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis: %w", err)
	}
	explanation := ""
	if req.Explanation != nil {
		explanation = *req.Explanation
	}

	messages := make([]goopenai.ChatCompletionMessage, 0, len(req.ConversationHistory)+2)
	messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: systemPrompt})
	for _, turn := range req.ConversationHistory {
		role := goopenai.ChatMessageRoleUser
		if turn.Role == domain.RoleAssistant {
			role = goopenai.ChatMessageRoleAssistant
		}
		messages = append(messages, goopenai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}

	var b strings.Builder
	b.WriteString("다음은 한 사용자의 교통사고 분석 결과입니다:\n\n")
	fmt.Fprintf(&b, "분석결과 -> %s\n", analysisJSON)
	fmt.Fprintf(&b, "해당 사고에 대한 과실예측 -> %s\n\n", explanation)
	fmt.Fprintf(&b, "사용자가 이에 대해 다음과 같은 질문을 했습니다:\n%q\n\n", req.Message)
	b.WriteString("이 사고 분석 결과를 바탕으로, 사용자의 질문에 대해 교통사고 과실 판단 전문가로서 자연스럽고 정확하게 설명해 주세요.\n")
	if req.IsFollowUp {
		b.WriteString("이전 대화 내용에서의 질문과 답변을 바탕으로 이어서 설명해 주세요 (인삿말은 필요 없음).\n")
	}
	b.WriteString("참고로 사용자의 차량이 A이고, 상대 차량이 B입니다.")
	messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: b.String()})
	return messages, nil
}

func classifyError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests, apiErr.HTTPStatusCode >= 500:
			return domain.WrapError(domain.ErrUpstreamTransport, "openai followup", err)
		default:
			return domain.WrapError(domain.ErrUpstreamContract, "openai followup", err)
		}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode >= 400 && reqErr.HTTPStatusCode < 500 && reqErr.HTTPStatusCode != http.StatusTooManyRequests {
		return domain.WrapError(domain.ErrUpstreamContract, "openai followup", err)
	}
	return domain.WrapError(domain.ErrUpstreamTransport, "openai followup", err)
}
