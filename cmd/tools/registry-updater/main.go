// cmd/tools/registry-updater/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"placement-engine/internal/common/validation"
	"placement-engine/pkg/registry"

	da "placement-engine/internal/workers/application/decide-application"
	sa "placement-engine/internal/workers/application/submit-application"
	ao "placement-engine/internal/workers/opportunity/approve-opportunity"
	co "placement-engine/internal/workers/opportunity/create-opportunity"
	ap "placement-engine/internal/workers/placement/accept-placement"
	dw "placement-engine/internal/workers/withdrawal/decide-withdrawal"
	rw "placement-engine/internal/workers/withdrawal/request-withdrawal"
)

// workerTaskTypes are the job types cmd/placement-manager subscribes to.
var workerTaskTypes = []string{
	sa.TaskType, da.TaskType, ap.TaskType, rw.TaskType, dw.TaskType, ao.TaskType, co.TaskType,
}

func main() {
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	checkCmd := flag.NewFlagSet("check", flag.ExitOnError)

	updatePath := updateCmd.String("path", "pkg/registry/activities.json", "Path to registry file")
	taskUpdate := updateCmd.String("task", "", "Task type to update")
	field := updateCmd.String("field", "", "Field to update (status, version, timeout, retries, ...)")
	value := updateCmd.String("value", "", "New value for the field")

	validatePath := validateCmd.String("path", "", "Path to registry file (built-in registry when empty)")

	checkPath := checkCmd.String("path", "", "Path to registry file (built-in registry when empty)")
	taskCheck := checkCmd.String("task", "", "Task type whose input schema to check against")
	varsFile := checkCmd.String("vars", "", "JSON file with job variables")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "update":
		updateCmd.Parse(os.Args[2:])
		if *taskUpdate == "" || *field == "" || *value == "" {
			fmt.Println("Error: task, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		if err := updateActivity(*updatePath, *taskUpdate, *field, *value, time.Now()); err != nil {
			fmt.Printf("Error updating activity: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated activity %s, field %s to %s\n", *taskUpdate, *field, *value)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		n, err := validateRegistry(*validatePath)
		if err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Registry validation passed. Found %d activities.\n", n)

	case "check":
		checkCmd.Parse(os.Args[2:])
		if *taskCheck == "" || *varsFile == "" {
			fmt.Println("Error: task and vars are required for check.")
			checkCmd.Usage()
			os.Exit(1)
		}
		problems, err := checkVariables(*checkPath, *taskCheck, *varsFile)
		if err != nil {
			fmt.Printf("Check failed: %v\n", err)
			os.Exit(1)
		}
		if len(problems) > 0 {
			fmt.Printf("Variables rejected:\n  %s\n", strings.Join(problems, "\n  "))
			os.Exit(2)
		}
		fmt.Println("Variables accepted.")

	case "help":
		fallthrough
	default:
		help()
	}
}

func updateActivity(path, taskType, field, value string, now time.Time) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	a, ok := reg.FindByTaskType(taskType)
	if !ok {
		return fmt.Errorf("activity with task type %s not found", taskType)
	}

	switch field {
	case "status":
		a.ImplementationStatus = value
	case "version":
		a.Version = value
	case "displayName":
		a.DisplayName = value
	case "description":
		a.Description = value
	case "timeout":
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid timeout value: %w", err)
		}
		a.Timeout = value
	case "retries":
		retries, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid retries value: %w", err)
		}
		a.Retries = retries
	default:
		return fmt.Errorf("unknown field: %s", field)
	}

	reg.LastUpdated = now.Format(time.DateOnly)
	if err := reg.Check(); err != nil {
		return err
	}
	return saveRegistry(reg, path)
}

// validateRegistry checks structure and that every worker task type is registered.
func validateRegistry(path string) (int, error) {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return 0, fmt.Errorf("failed to load registry: %w", err)
	}
	if err := reg.Check(); err != nil {
		return 0, err
	}
	if missing := reg.Missing(workerTaskTypes...); len(missing) > 0 {
		return 0, fmt.Errorf("no activity registered for task types: %s", strings.Join(missing, ", "))
	}
	return len(reg.Activities), nil
}

// checkVariables validates a job variables document the way the workers do.
func checkVariables(path, taskType, varsFile string) ([]string, error) {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}
	if _, ok := reg.FindByTaskType(taskType); !ok {
		return nil, fmt.Errorf("activity with task type %s not found", taskType)
	}

	vars, err := os.ReadFile(varsFile)
	if err != nil {
		return nil, err
	}
	result, err := validation.NewJobValidator(reg).Validate(taskType, string(vars))
	if err != nil {
		return nil, err
	}
	return result.GetErrorMessages(), nil
}

// saveRegistry handles saving the registry to file
func saveRegistry(reg *registry.ActivityRegistry, path string) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

func help() {
	fmt.Print(`
Usage: registry-updater <command> [flags]

Commands:
  update    Update a field of an activity, addressed by task type
  validate  Validate the registry and its JSON schemas
  check     Validate a job variables file against a task's input schema
  help      Show this help message

Examples:
  registry-updater update -task accept-placement -field timeout -value 60s
  registry-updater validate -path pkg/registry/activities.json
  registry-updater check -task submit-application -vars vars.json

Use 'registry-updater <command> -h' for more information about a command.

`)
}
