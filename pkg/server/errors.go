package server

import (
	"encoding/json"
	"net/http"

	"github.com/rhuss/workbridge/pkg/api"
)

// errorResponse wraps an ErrorInfo for JSON error bodies.
type errorResponse struct {
	Error *api.ErrorInfo `json:"error"`
}

// httpStatusFromError maps an error type to an HTTP status.
func httpStatusFromError(info *api.ErrorInfo) int {
	switch info.Type {
	case api.ErrorTypeValidation:
		return http.StatusBadRequest
	case api.ErrorTypeConfigurationGap:
		return http.StatusServiceUnavailable
	case api.ErrorTypeNetwork, api.ErrorTypeProtocol:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes a JSON error body with the given status.
func writeError(w http.ResponseWriter, info *api.ErrorInfo, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: info})
}

// writeErrorInfo writes an error body with a status derived from its type.
func writeErrorInfo(w http.ResponseWriter, info *api.ErrorInfo) {
	writeError(w, info, httpStatusFromError(info))
}
