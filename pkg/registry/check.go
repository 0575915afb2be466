// pkg/registry/check.go
package registry

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// Check reports the first structural problem in the registry: a missing
// required field, a duplicate id or task type, or a schema that does not
// compile.
func (r *ActivityRegistry) Check() error {
	if len(r.Activities) == 0 {
		return fmt.Errorf("registry contains no activities")
	}

	ids := make(map[string]bool)
	taskTypes := make(map[string]bool)
	for _, a := range r.Activities {
		if a.ID == "" {
			return fmt.Errorf("activity missing required field: id")
		}
		if ids[a.ID] {
			return fmt.Errorf("duplicate activity id: %s", a.ID)
		}
		ids[a.ID] = true

		if a.DisplayName == "" {
			return fmt.Errorf("activity %s missing required field: displayName", a.ID)
		}
		if a.Category == "" {
			return fmt.Errorf("activity %s missing required field: category", a.ID)
		}
		if a.TaskType == "" {
			return fmt.Errorf("activity %s missing required field: taskType", a.ID)
		}
		if taskTypes[a.TaskType] {
			return fmt.Errorf("duplicate task type: %s", a.TaskType)
		}
		taskTypes[a.TaskType] = true

		for name, schema := range map[string]map[string]interface{}{"inputSchema": a.InputSchema, "outputSchema": a.OutputSchema} {
			if len(schema) == 0 {
				continue
			}
			if _, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema)); err != nil {
				return fmt.Errorf("activity %s: invalid %s: %w", a.ID, name, err)
			}
		}
	}
	return nil
}

// Missing returns the task types that have no registered activity.
func (r *ActivityRegistry) Missing(taskTypes ...string) []string {
	var out []string
	for _, t := range taskTypes {
		if _, ok := r.FindByTaskType(t); !ok {
			out = append(out, t)
		}
	}
	return out
}
