package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/kirillkom/collision-fault-assistant/internal/core/domain"
	"github.com/kirillkom/collision-fault-assistant/internal/infrastructure/resilience"
)

type HTTPStatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("ollama chat status: %s", e.Status)
	}
	return fmt.Sprintf("ollama chat status: %s: %s", e.Status, e.Body)
}

func classifyError(operation string, err error) error {
	if domain.IsUpstream(err) {
		return err
	}
	if resilience.IsCircuitOpen(err) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.WrapError(domain.ErrUpstreamTransport, operation, err)
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) && !isTransportStatus(statusErr.StatusCode) {
		return domain.WrapError(domain.ErrUpstreamContract, operation, err)
	}
	return domain.WrapError(domain.ErrUpstreamTransport, operation, err)
}

func isTransportStatus(statusCode int) bool {
	switch {
	case statusCode == http.StatusRequestTimeout, statusCode == http.StatusTooManyRequests:
		return true
	case statusCode >= 500:
		return true
	default:
		return false
	}
}
