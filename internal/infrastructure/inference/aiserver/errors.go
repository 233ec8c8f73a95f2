package aiserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kirillkom/collision-fault-assistant/internal/core/domain"
	"github.com/kirillkom/collision-fault-assistant/internal/infrastructure/resilience"
)

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "aiserver status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("aiserver %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("aiserver %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

// ServerError is an error message returned inside a 200 response body.
type ServerError struct {
	Operation string
	Message   string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("aiserver %s reported: %s", e.Operation, e.Message)
}

// classifyError assigns a domain kind to a failed call.
func classifyError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsUpstream(err) {
		return err
	}
	if resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrUpstreamTransport, operation, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.WrapError(domain.ErrUpstreamTransport, operation, err)
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if isTransportStatus(statusErr.StatusCode) {
			return domain.WrapError(domain.ErrUpstreamTransport, operation, err)
		}
		return domain.WrapError(domain.ErrUpstreamContract, operation, err)
	}
	return domain.WrapError(domain.ErrUpstreamTransport, operation, err)
}

func isTransportStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
