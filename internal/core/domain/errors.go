package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrAnalysisNotReady  = errors.New("analysis has no baseline result")
	ErrUpstreamContract  = errors.New("inference contract violation")
	ErrUpstreamTransport = errors.New("inference transport failure")
	ErrStorage           = errors.New("storage failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// IsUpstream reports whether err originated from the inference gateway.
func IsUpstream(err error) bool {
	return IsKind(err, ErrUpstreamContract) || IsKind(err, ErrUpstreamTransport)
}
