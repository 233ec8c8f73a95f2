package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/collision-fault-assistant/internal/core/domain"
	"github.com/kirillkom/collision-fault-assistant/internal/infrastructure/resilience"
)

const (
	chatPath     = "/api/chat"
	systemPrompt = "당신은 교통사고 과실 판단 전문가입니다."
)

type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// FollowupResponder answers follow-up questions with a self-hosted Ollama chat model.
type FollowupResponder struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message *chatMessage `json:"message"`
	Error   string       `json:"error"`
}

func NewFollowupResponder(cfg Config, executor *resilience.Executor) (*FollowupResponder, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" || strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("ollama base url and model are required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.InferenceConfig(resilience.DefaultConfig()))
	}
	return &FollowupResponder{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}, nil
}

func (r *FollowupResponder) Followup(ctx context.Context, req domain.FollowupRequest) (*domain.FollowupResult, error) {
	const op = "ollama followup"

	messages, err := buildMessages(req)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, err)
	}

	answer, err := resilience.Do(ctx, r.executor, "ollama.followup", func(callCtx context.Context) (string, error) {
		var resp chatResponse
		if err := r.postJSON(callCtx, chatPath, chatRequest{Model: r.model, Messages: messages}, &resp); err != nil {
			return "", err
		}
		if resp.Error != "" {
			return "", domain.WrapError(domain.ErrUpstreamContract, op, errors.New(resp.Error))
		}
		if resp.Message == nil || strings.TrimSpace(resp.Message.Content) == "" {
			return "", domain.WrapError(domain.ErrUpstreamContract, op, errors.New("empty chat message"))
		}
		return resp.Message.Content, nil
	}, resilience.ClassifyDomainError)
	if err != nil {
		return nil, classifyError(op, err)
	}
	return &domain.FollowupResult{Response: strings.TrimSpace(answer)}, nil
}

func buildMessages(req domain.FollowupRequest) ([]chatMessage, error) {
	analysisJSON, err := json.Marshal(req.Analysis)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis: %w", err)
	}
	explanation := ""
	if req.Explanation != nil {
		explanation = *req.Explanation
	}

	messages := make([]chatMessage, 0, len(req.ConversationHistory)+2)
	messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	for _, turn := range req.ConversationHistory {
		role := "user"
		if turn.Role == domain.RoleAssistant {
			role = "assistant"
		}
		messages = append(messages, chatMessage{Role: role, Content: turn.Content})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "분석결과 -> %s\n", analysisJSON)
	fmt.Fprintf(&b, "해당 사고에 대한 과실예측 -> %s\n\n", explanation)
	fmt.Fprintf(&b, "질문: %s\n", req.Message)
	if req.IsFollowUp {
		b.WriteString("이전 대화에 이어서 답변해 주세요 (인삿말은 필요 없음).\n")
	}
	b.WriteString("사용자의 차량이 A이고, 상대 차량이 B입니다.")
	messages = append(messages, chatMessage{Role: "user", Content: b.String()})
	return messages, nil
}
