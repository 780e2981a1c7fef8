package artifact

import (
	"fmt"

	"github.com/rhuss/workbridge/pkg/api"
)

// ValidationError reports a remote result that is missing a field the
// adapter needs.
type ValidationError struct {
	Target    string
	Operation string
	Field     string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s result is missing %s", e.Target, e.Operation, e.Field)
}

// ErrorInfo implements api.Classifier.
func (e *ValidationError) ErrorInfo() *api.ErrorInfo {
	return &api.ErrorInfo{
		Type:    api.ErrorTypeValidation,
		Target:  e.Target,
		Message: e.Error(),
	}
}
