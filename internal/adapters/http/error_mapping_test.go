package httpadapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/kirillkom/collision-fault-assistant/internal/core/domain"
)

func TestMapErrorToHTTPStatus(t *testing.T) {
	cause := errors.New("boom")
	cases := []struct {
		name string
		err  error
		want int
	}{
		{name: "invalid input", err: domain.WrapError(domain.ErrInvalidInput, "op", cause), want: http.StatusBadRequest},
		{name: "unauthorized", err: domain.WrapError(domain.ErrUnauthorized, "op", cause), want: http.StatusUnauthorized},
		{name: "not found", err: domain.WrapError(domain.ErrNotFound, "op", cause), want: http.StatusNotFound},
		{name: "conflict", err: domain.WrapError(domain.ErrConflict, "op", cause), want: http.StatusConflict},
		{name: "not ready", err: domain.WrapError(domain.ErrAnalysisNotReady, "op", cause), want: http.StatusUnprocessableEntity},
		{name: "contract", err: domain.WrapError(domain.ErrUpstreamContract, "op", cause), want: http.StatusBadGateway},
		{name: "transport", err: domain.WrapError(domain.ErrUpstreamTransport, "op", cause), want: http.StatusServiceUnavailable},
		{
			name: "transport deadline",
			err:  domain.WrapError(domain.ErrUpstreamTransport, "op", fmt.Errorf("analyze: %w", context.DeadlineExceeded)),
			want: http.StatusGatewayTimeout,
		},
		{name: "storage", err: domain.WrapError(domain.ErrStorage, "op", cause), want: http.StatusInternalServerError},
		{name: "unknown", err: cause, want: http.StatusInternalServerError},
		{name: "too large", err: &http.MaxBytesError{Limit: 10}, want: http.StatusRequestEntityTooLarge},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := mapErrorToHTTPStatus(tc.err); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}
