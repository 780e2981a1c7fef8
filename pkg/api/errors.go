package api

import "fmt"

// ErrorType represents the category of a step error.
type ErrorType string

const (
	ErrorTypeNetwork          ErrorType = "network_error"
	ErrorTypeProtocol         ErrorType = "protocol_error"
	ErrorTypeValidation       ErrorType = "validation_error"
	ErrorTypeConfigurationGap ErrorType = "configuration_gap"
	ErrorTypeInternal         ErrorType = "internal_error"
)

// ErrorInfo is the user-visible error detail of a failed step.
type ErrorInfo struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code,omitempty"`
	Target  string    `json:"target,omitempty"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (e *ErrorInfo) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("%s: %s (target: %s)", e.Type, e.Message, e.Target)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Classifier is implemented by errors that know their own ErrorInfo.
type Classifier interface {
	ErrorInfo() *ErrorInfo
}

// NewInternalError creates an ErrorInfo for defects inside this process.
func NewInternalError(message string) *ErrorInfo {
	return &ErrorInfo{
		Type:    ErrorTypeInternal,
		Message: message,
	}
}

// NewValidationError creates an ErrorInfo for invalid input or malformed
// remote payloads.
func NewValidationError(message string) *ErrorInfo {
	return &ErrorInfo{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}
