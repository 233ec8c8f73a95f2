package bootstrap

import (
	"context"
	"testing"

	"github.com/kirillkom/collision-fault-assistant/internal/config"
	"github.com/kirillkom/collision-fault-assistant/internal/infrastructure/inference"
	"github.com/kirillkom/collision-fault-assistant/internal/infrastructure/lock"
	"github.com/kirillkom/collision-fault-assistant/internal/observability/metrics"
)

func TestBuildLockerHonorsBackend(t *testing.T) {
	app := &App{}

	locker, err := app.buildLocker(context.Background(), config.Config{LockBackend: "none"})
	if err != nil || locker != nil {
		t.Fatalf("expected no locker for none backend, got %v, %v", locker, err)
	}

	locker, err = app.buildLocker(context.Background(), config.Config{LockBackend: "local"})
	if err != nil {
		t.Fatalf("buildLocker(local) error = %v", err)
	}
	if _, ok := locker.(*lock.Local); !ok {
		t.Fatalf("expected *lock.Local, got %T", locker)
	}
}

func TestBuildGatewayWrapsAIServerWithInstrumentation(t *testing.T) {
	app := &App{}
	m := metrics.NewInferenceMetrics("api", metrics.NewHTTPServerMetrics("api").Registerer())

	gateway, err := app.buildGateway(context.Background(), config.Config{
		InferenceBackend:        "aiserver",
		AIServerURL:             "http://127.0.0.1:1",
		InferenceTimeoutSeconds: 5,
		FollowupBackend:         "primary",
	}, m)
	if err != nil {
		t.Fatalf("buildGateway() error = %v", err)
	}
	if _, ok := gateway.(*inference.Instrumented); !ok {
		t.Fatalf("expected instrumented gateway, got %T", gateway)
	}
}

func TestBuildGatewayRequiresOpenAIKeyForOpenAIFollowups(t *testing.T) {
	app := &App{}
	m := metrics.NewInferenceMetrics("api", metrics.NewHTTPServerMetrics("api").Registerer())

	_, err := app.buildGateway(context.Background(), config.Config{
		InferenceBackend:        "aiserver",
		AIServerURL:             "http://127.0.0.1:1",
		InferenceTimeoutSeconds: 5,
		FollowupBackend:         "openai",
	}, m)
	if err == nil {
		t.Fatalf("expected error without OPENAI_API_KEY")
	}
}

func TestCloseRunsInReverseOrder(t *testing.T) {
	app := &App{}
	var order []int
	app.onClose(func() { order = append(order, 1) })
	app.onClose(func() { order = append(order, 2) })

	app.Close()
	app.Close()

	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Fatalf("expected [2 1], got %v", order)
	}
}

func TestBuildGatewayRoutesOllamaFollowups(t *testing.T) {
	app := &App{}
	m := metrics.NewInferenceMetrics("api", metrics.NewHTTPServerMetrics("api").Registerer())

	gateway, err := app.buildGateway(context.Background(), config.Config{
		InferenceBackend:        "aiserver",
		AIServerURL:             "http://127.0.0.1:1",
		InferenceTimeoutSeconds: 5,
		FollowupBackend:         "ollama",
		OllamaURL:               "http://127.0.0.1:2",
		OllamaModel:             "llama3.1:8b",
	}, m)
	if err != nil {
		t.Fatalf("buildGateway() error = %v", err)
	}
	if _, ok := gateway.(*inference.Instrumented); !ok {
		t.Fatalf("expected instrumented gateway, got %T", gateway)
	}
}
