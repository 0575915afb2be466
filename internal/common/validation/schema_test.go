package validation

import (
	"testing"

	"placement-engine/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateInput(t *testing.T) {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"studentId":  map[string]interface{}{"type": "string", "minLength": 1},
			"totalSlots": map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 10},
		},
		"required": []interface{}{"studentId"},
	}

	tests := []struct {
		name      string
		input     map[string]interface{}
		wantValid bool
		wantField string
	}{
		{"valid", map[string]interface{}{"studentId": "s-1", "totalSlots": 3}, true, ""},
		{"missing required", map[string]interface{}{"totalSlots": 3}, false, "(root)"},
		{"slots out of range", map[string]interface{}{"studentId": "s-1", "totalSlots": 11}, false, "totalSlots"},
		{"empty id", map[string]interface{}{"studentId": ""}, false, "studentId"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ValidateInput(tt.input, schema)
			require.NoError(t, err)
			assert.Equal(t, tt.wantValid, res.Valid)
			if tt.wantField != "" {
				assert.True(t, res.HasErrors(tt.wantField), res.GetErrorMessages())
			}
		})
	}
}

func TestValidateInput_EmptySchema(t *testing.T) {
	res, err := ValidateInput(map[string]interface{}{"anything": true}, nil)
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestJobValidator(t *testing.T) {
	reg, err := registry.LoadRegistry("")
	require.NoError(t, err)
	v := NewJobValidator(reg)

	res, err := v.Validate("accept-placement", `{"studentId":"s-1","applicationId":"a-1"}`)
	require.NoError(t, err)
	assert.True(t, res.Valid)

	res, err = v.Validate("accept-placement", `{"studentId":"s-1"}`)
	require.NoError(t, err)
	assert.False(t, res.Valid)

	res, err = v.Validate("unknown-task", `{}`)
	require.NoError(t, err)
	assert.True(t, res.Valid)

	_, err = v.Validate("accept-placement", `not json`)
	assert.Error(t, err)
}
