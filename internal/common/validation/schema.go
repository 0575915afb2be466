package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"placement-engine/pkg/registry"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ValidateInput validates a decoded document against a JSON schema map.
// An empty schema accepts everything.
func ValidateInput(input map[string]interface{}, schema map[string]interface{}) (*ValidationResult, error) {
	if len(schema) == 0 {
		return &ValidationResult{Valid: true}, nil
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(input),
	)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out, nil
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// JobValidator checks job variables against the input schema registered for their task type.
type JobValidator struct {
	registry *registry.ActivityRegistry
}

func NewJobValidator(reg *registry.ActivityRegistry) *JobValidator {
	return &JobValidator{registry: reg}
}

// Validate parses raw job variables and validates them. Task types without a
// registered activity pass unchecked.
func (v *JobValidator) Validate(taskType, variables string) (*ValidationResult, error) {
	if v == nil || v.registry == nil {
		return &ValidationResult{Valid: true}, nil
	}
	activity, ok := v.registry.FindByTaskType(taskType)
	if !ok {
		return &ValidationResult{Valid: true}, nil
	}

	var input map[string]interface{}
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, fmt.Errorf("parse job variables: %w", err)
	}
	return ValidateInput(input, activity.InputSchema)
}
