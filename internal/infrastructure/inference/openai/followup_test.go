package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/collision-fault-assistant/internal/core/domain"
	"github.com/kirillkom/collision-fault-assistant/internal/infrastructure/resilience"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newTestResponder(t *testing.T, url string) *FollowupResponder {
	t.Helper()
	r, err := NewFollowupResponder(Config{APIKey: "test", BaseURL: url + "/v1", Model: "gpt-4"},
		resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 1}))
	if err != nil {
		t.Fatalf("NewFollowupResponder() error = %v", err)
	}
	return r
}

func TestFollowupSendsSystemPromptAndHistory(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":" 상대 차량 B의 신호위반 때문입니다. "},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	explanation := "A 20 : B 80"
	res, err := newTestResponder(t, server.URL).Followup(context.Background(), domain.FollowupRequest{
		Message:     "왜 그런가요?",
		Analysis:    map[string]any{"신호위반": false},
		Explanation: &explanation,
		IsFollowUp:  true,
		ConversationHistory: []domain.ConversationTurn{
			{Role: domain.RoleUser, Content: "q1"},
			{Role: domain.RoleAssistant, Content: "a1"},
		},
	})
	if err != nil {
		t.Fatalf("Followup() error = %v", err)
	}
	if res.Response != "상대 차량 B의 신호위반 때문입니다." {
		t.Fatalf("unexpected response: %q", res.Response)
	}
	if len(got.Messages) != 4 {
		t.Fatalf("expected system, two history turns and question, got %d", len(got.Messages))
	}
	if got.Messages[0].Role != "system" || got.Messages[0].Content != systemPrompt {
		t.Fatalf("unexpected system message: %+v", got.Messages[0])
	}
	if got.Messages[1].Role != "user" || got.Messages[2].Role != "assistant" {
		t.Fatalf("unexpected history roles: %+v", got.Messages[1:3])
	}
	last := got.Messages[3].Content
	if !strings.Contains(last, "왜 그런가요?") || !strings.Contains(last, explanation) {
		t.Fatalf("unexpected user prompt: %s", last)
	}
}

func TestFollowupEmptyChoicesIsContractViolation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[]}`))
	}))
	defer server.Close()

	_, err := newTestResponder(t, server.URL).Followup(context.Background(), domain.FollowupRequest{Message: "m"})
	if !domain.IsKind(err, domain.ErrUpstreamContract) {
		t.Fatalf("expected contract violation, got %v", err)
	}
}

func TestFollowupServerErrorIsTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer server.Close()

	_, err := newTestResponder(t, server.URL).Followup(context.Background(), domain.FollowupRequest{Message: "m"})
	if !domain.IsKind(err, domain.ErrUpstreamTransport) {
		t.Fatalf("expected transport failure, got %v", err)
	}
}

func TestNewFollowupResponderRequiresKey(t *testing.T) {
	if _, err := NewFollowupResponder(Config{}, nil); err == nil {
		t.Fatalf("expected error for missing api key")
	}
}
