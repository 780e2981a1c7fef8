package api

import (
	"context"
	"errors"
)

// ErrorFrom converts any error into an ErrorInfo. Errors implementing
// Classifier describe themselves; everything else is classified by
// well-known sentinel values and defaults to an internal error.
func ErrorFrom(err error) *ErrorInfo {
	if err == nil {
		return nil
	}

	var info *ErrorInfo
	if errors.As(err, &info) {
		return info
	}

	var c Classifier
	if errors.As(err, &c) {
		if ci := c.ErrorInfo(); ci != nil {
			return ci
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &ErrorInfo{Type: ErrorTypeNetwork, Message: err.Error()}
	}

	return NewInternalError(err.Error())
}
