package api

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationConfig holds configurable limits for request validation.
type ValidationConfig struct {
	MaxBodySize  int
	MaxImageSize int
}

// DefaultValidationConfig returns a ValidationConfig with sensible defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxBodySize:  2 * 1024 * 1024,  // 2MB
		MaxImageSize: 10 * 1024 * 1024, // 10MB
	}
}

// ValidateRequest checks a WorkItemRequest before any remote call is made.
// Requests with CreateArtifacts=false are always valid because nothing will
// be created. Fields that only one target needs are not required here:
// the ticket summary defaults to the subject, and content for an
// unconfigured target is never used.
func ValidateRequest(req *WorkItemRequest, cfg ValidationConfig) error {
	if req == nil {
		return NewValidationError("request is required")
	}
	if !req.CreateArtifacts {
		return nil
	}

	var errs []error
	if strings.TrimSpace(req.Subject) == "" {
		errs = append(errs, fmt.Errorf("subject is required"))
	}

	bodies := map[string]string{
		"content.ticket.description": req.Content.Ticket.Description,
		"content.impl_plan.body":     req.Content.ImplPlan.Body,
		"content.qa_plan.body":       req.Content.QAPlan.Body,
	}
	for field, body := range bodies {
		if cfg.MaxBodySize > 0 && len(body) > cfg.MaxBodySize {
			errs = append(errs, fmt.Errorf("%s exceeds maximum of %d bytes", field, cfg.MaxBodySize))
		}
	}

	if req.Image != nil {
		if len(req.Image.Data) == 0 && req.Image.URL == "" {
			errs = append(errs, fmt.Errorf("image requires data or url"))
		}
		if cfg.MaxImageSize > 0 && len(req.Image.Data) > cfg.MaxImageSize {
			errs = append(errs, fmt.Errorf("image exceeds maximum of %d bytes", cfg.MaxImageSize))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return NewValidationError(err.Error())
	}
	return nil
}
