package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"

	"github.com/rhuss/workbridge/pkg/api"
)

// Kind classifies transport failures.
type Kind string

const (
	// KindNetwork covers connection failures, timeouts and HTTP-level errors.
	KindNetwork Kind = "network"
	// KindProtocol is a well-formed JSON-RPC error object or a tool-level error.
	KindProtocol Kind = "protocol"
	// KindValidation is a malformed or unexpected response payload.
	KindValidation Kind = "validation"
)

// Error is returned by every Client operation.
type Error struct {
	Kind    Kind
	Target  string
	Method  string
	Code    int
	Status  int
	Message string
	Err     error

	retryable bool
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindProtocol && e.Code != 0:
		return fmt.Sprintf("%s %s: rpc error %d: %s", e.Target, e.Method, e.Code, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("%s %s: HTTP %d: %s", e.Target, e.Method, e.Status, e.Message)
	default:
		return fmt.Sprintf("%s %s: %s", e.Target, e.Method, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the failure is transient.
func (e *Error) Retryable() bool { return e.retryable }

// ErrorInfo implements api.Classifier.
func (e *Error) ErrorInfo() *api.ErrorInfo {
	info := &api.ErrorInfo{Target: e.Target, Message: e.Message}
	switch e.Kind {
	case KindProtocol:
		info.Type = api.ErrorTypeProtocol
		if e.Code != 0 {
			info.Code = strconv.Itoa(e.Code)
		}
	case KindValidation:
		info.Type = api.ErrorTypeValidation
	default:
		info.Type = api.ErrorTypeNetwork
		if e.Status != 0 {
			info.Code = strconv.Itoa(e.Status)
		}
	}
	return info
}

// IsProtocol reports whether err is a remote JSON-RPC or tool error.
func IsProtocol(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindProtocol
}

// IsNetwork reports whether err is a network-level failure.
func IsNetwork(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindNetwork
}

func networkError(target, method string, err error) *Error {
	return &Error{
		Kind:      KindNetwork,
		Target:    target,
		Method:    method,
		Message:   fmt.Sprintf("connection error: %s", err.Error()),
		Err:       err,
		retryable: true,
	}
}

// setupError reports a request that could not be prepared, such as a
// credential the auth provider failed to obtain. It is not retried.
func setupError(target, method string, err error) *Error {
	return &Error{
		Kind:    KindNetwork,
		Target:  target,
		Method:  method,
		Message: fmt.Sprintf("preparing request: %s", err.Error()),
		Err:     err,
	}
}

func protocolError(target, method string, w *jsonrpc.Error) *Error {
	return &Error{
		Kind:    KindProtocol,
		Target:  target,
		Method:  method,
		Code:    int(w.Code),
		Message: w.Message,
		Err:     w,
	}
}

func validationError(target, method, format string, args ...any) *Error {
	return &Error{
		Kind:    KindValidation,
		Target:  target,
		Method:  method,
		Message: fmt.Sprintf(format, args...),
	}
}

// statusError converts a non-2xx status into an Error. Rate limiting and
// server errors are retryable; other client errors are not.
func statusError(target, method string, status int, message string) *Error {
	if message == "" {
		message = http.StatusText(status)
	}
	return &Error{
		Kind:      KindNetwork,
		Target:    target,
		Method:    method,
		Status:    status,
		Message:   message,
		retryable: status == http.StatusTooManyRequests || status >= http.StatusInternalServerError,
	}
}

// extractErrorMessage pulls a message out of an error body. JSON-RPC error
// envelopes and plain {"message": ...} bodies are understood; anything else
// is returned verbatim up to a limit.
func extractErrorMessage(body io.Reader) string {
	if body == nil {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}

	var env struct {
		Error   *jsonrpc.Error `json:"error"`
		Message string         `json:"message"`
	}
	if err := json.Unmarshal(data, &env); err == nil {
		if env.Error != nil && env.Error.Message != "" {
			return env.Error.Message
		}
		if env.Message != "" {
			return env.Message
		}
	}

	return string(data)
}
