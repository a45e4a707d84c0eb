package model

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Recipe is a named, invokable unit of work loaded from the project's
// recipe file. It is the primary aggregate entity in the domain.
//
// A recipe either runs a shell command, or exists purely as a grouping of
// prerequisites (Command empty, Needs non-empty), or both: prerequisites
// always run before the recipe's own command.
type Recipe struct {
	// Name is the unique identifier for this recipe within the file.
	// Must contain only alphanumeric characters, hyphens, and underscores.
	Name string `json:"name" yaml:"-"`

	// Description is an optional one-line summary shown by "galley list".
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Command is the shell command line to execute. May be empty for
	// grouping recipes that only reference prerequisites.
	Command string `json:"command,omitempty" yaml:"command,omitempty"`

	// Env holds environment variables applied to this recipe's process
	// only. They are layered on top of the runner's environment and the
	// file-wide env, and never leak into other recipes or into galley itself.
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty"`

	// Needs lists recipe names that must complete successfully before
	// this recipe runs.
	Needs []string `json:"needs,omitempty" yaml:"needs,omitempty"`

	// Dir is the working directory for the command, relative to the
	// recipe file's directory. Empty means the recipe file's directory.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`

	// Container is an optional image reference. When set, the command runs
	// inside a one-shot container with the project bind-mounted, instead
	// of directly on the host.
	Container string `json:"container,omitempty" yaml:"container,omitempty"`

	// Watch lists paths (relative to the recipe file's directory) to watch
	// in --watch mode. Empty means the recipe file's directory itself.
	Watch []string `json:"watch,omitempty" yaml:"watch,omitempty"`

	// Quiet suppresses the command echo before execution.
	Quiet bool `json:"quiet,omitempty" yaml:"quiet,omitempty"`
}

// HasCommand reports whether the recipe has its own command to run,
// as opposed to being a pure grouping of prerequisites.
func (r *Recipe) HasCommand() bool {
	return strings.TrimSpace(r.Command) != ""
}

// SortedEnv returns the recipe's env as deterministic KEY=VALUE pairs.
// os/exec accepts env in slice form, and a sorted slice keeps dry-run
// output and tests stable regardless of map iteration order.
func (r *Recipe) SortedEnv() []string {
	if len(r.Env) == 0 {
		return nil
	}
	pairs := make([]string, 0, len(r.Env))
	for k, v := range r.Env {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return pairs
}

// RecipeResult records the outcome of a single recipe execution.
// The executor returns one result per plan step, in execution order.
type RecipeResult struct {
	// Name is the recipe that was executed.
	Name string `json:"name"`

	// ExitCode is the child process exit code. 0 on success. For dry runs
	// and command-less grouping recipes it is always 0.
	ExitCode int `json:"exitCode"`

	// Duration is the wall-clock time the recipe took.
	Duration time.Duration `json:"duration"`

	// DryRun marks results produced by --dry-run, where the command was
	// printed but not executed.
	DryRun bool `json:"dryRun,omitempty"`
}

// nameRegex validates recipe names: alphanumeric plus hyphen/underscore,
// starting with an alphanumeric character. This matches what common task
// runners accept and keeps names safe for shell-free contexts (labels,
// container names, file paths).
var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// ValidateName checks if the given name is a valid recipe name.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("recipe name must not be empty")
	}
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("invalid recipe name %q: must contain only alphanumeric characters, hyphens, and underscores, and start with an alphanumeric", name)
	}
	return nil
}

// ExitCode defines standard CLI exit codes. These codes allow scripts and
// CI systems to programmatically determine the outcome of a command.
//
// Note that when a recipe's own process fails, galley exits with that
// process's exit code verbatim rather than one of these values — exit-code
// propagation is the contract for recipe failures.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitRecipeFileError indicates the recipe file was not found or
	// could not be parsed.
	ExitRecipeFileError ExitCode = 2

	// ExitRecipeNotFound indicates a named recipe does not exist in
	// the recipe file.
	ExitRecipeNotFound ExitCode = 3

	// ExitDependencyCycle indicates the recipe prerequisites form a cycle.
	ExitDependencyCycle ExitCode = 4

	// ExitContainerError indicates the container runtime is unavailable
	// or a containerized recipe could not be launched.
	ExitContainerError ExitCode = 5

	// ExitUserCancelled indicates the user cancelled an interactive prompt
	// or interrupted a run.
	ExitUserCancelled ExitCode = 7
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}

// RecipeFailedError reports a recipe whose process exited non-zero.
// It is distinct from CLIError because the exit code to propagate comes
// from the child process, not from galley's own exit-code table.
type RecipeFailedError struct {
	// Recipe is the name of the failed recipe.
	Recipe string

	// ExitCode is the child process exit code (always non-zero).
	ExitCode int

	// Err is the underlying exec error, if any.
	Err error
}

// Error satisfies the error interface.
func (e *RecipeFailedError) Error() string {
	return fmt.Sprintf("recipe %q failed with exit code %d", e.Recipe, e.ExitCode)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *RecipeFailedError) Unwrap() error {
	return e.Err
}
