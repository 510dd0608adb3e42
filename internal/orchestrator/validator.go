package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError is the only pre-flight failure the pipeline produces. A
// request that fails validation never triggers an outbound call.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func newValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err is a request validation failure.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Validator runs the pre-flight checks on analyze requests.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

func (v *Validator) Validate(req *AnalyzeRequest) error {
	if strings.TrimSpace(req.PatientID) == "" {
		return newValidationError("patient_id is required")
	}
	if err := v.validate.Struct(req); err != nil {
		return newValidationError("invalid request: %v", err)
	}
	if strings.TrimSpace(req.QueryText) == "" &&
		strings.TrimSpace(req.AttachedDocument) == "" &&
		len(req.Symptoms) == 0 {
		return newValidationError("one of query_text, attached_document or symptoms is required")
	}
	return nil
}
