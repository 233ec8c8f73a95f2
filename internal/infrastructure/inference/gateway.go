package inference

import (
	"context"
	"errors"
	"time"

	"github.com/kirillkom/collision-fault-assistant/internal/core/domain"
	"github.com/kirillkom/collision-fault-assistant/internal/core/ports"
)

// FollowupResponder answers follow-up questions only.
type FollowupResponder interface {
	Followup(ctx context.Context, req domain.FollowupRequest) (*domain.FollowupResult, error)
}

// Routed sends analyze and refine to the primary gateway and follow-ups to a
// dedicated chat model when one is configured.
type Routed struct {
	primary  ports.InferenceGateway
	followup FollowupResponder
}

func NewRouted(primary ports.InferenceGateway, followup FollowupResponder) *Routed {
	return &Routed{primary: primary, followup: followup}
}

func (g *Routed) Analyze(ctx context.Context, req domain.AnalyzeRequest) (*domain.InferenceResult, error) {
	return g.primary.Analyze(ctx, req)
}

func (g *Routed) Refine(ctx context.Context, req domain.RefineRequest) (*domain.InferenceResult, error) {
	return g.primary.Refine(ctx, req)
}

func (g *Routed) Followup(ctx context.Context, req domain.FollowupRequest) (*domain.FollowupResult, error) {
	if g.followup != nil {
		return g.followup.Followup(ctx, req)
	}
	return g.primary.Followup(ctx, req)
}

// CallObserver receives one observation per gateway call.
type CallObserver interface {
	ObserveCall(operation, outcome string, duration time.Duration)
}

// Instrumented reports latency and outcome of every gateway call.
type Instrumented struct {
	next     ports.InferenceGateway
	observer CallObserver
	now      func() time.Time
}

func NewInstrumented(next ports.InferenceGateway, observer CallObserver) *Instrumented {
	return &Instrumented{next: next, observer: observer, now: time.Now}
}

func (g *Instrumented) Analyze(ctx context.Context, req domain.AnalyzeRequest) (*domain.InferenceResult, error) {
	start := g.now()
	res, err := g.next.Analyze(ctx, req)
	g.observe("analyze", start, err)
	return res, err
}

func (g *Instrumented) Refine(ctx context.Context, req domain.RefineRequest) (*domain.InferenceResult, error) {
	start := g.now()
	res, err := g.next.Refine(ctx, req)
	g.observe("refine", start, err)
	return res, err
}

func (g *Instrumented) Followup(ctx context.Context, req domain.FollowupRequest) (*domain.FollowupResult, error) {
	start := g.now()
	res, err := g.next.Followup(ctx, req)
	g.observe("followup", start, err)
	return res, err
}

func (g *Instrumented) observe(operation string, start time.Time, err error) {
	if g.observer == nil {
		return
	}
	g.observer.ObserveCall(operation, Outcome(err), g.now().Sub(start))
}

// Outcome names the result of a call for metric labels.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case domain.IsKind(err, domain.ErrUpstreamContract):
		return "contract_violation"
	case domain.IsKind(err, domain.ErrUpstreamTransport):
		return "transport_error"
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "invalid_input"
	default:
		return "error"
	}
}
