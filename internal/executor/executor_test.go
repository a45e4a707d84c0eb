package executor

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitamorio/galley/internal/model"
	"github.com/kitamorio/galley/internal/recipe"
)

// testFile builds an in-memory recipe file rooted in a temp directory.
func testFile(t *testing.T, recipes map[string]*model.Recipe) *recipe.File {
	t.Helper()
	for name, r := range recipes {
		r.Name = name
	}
	return &recipe.File{
		Path:    filepath.Join(t.TempDir(), "galley.yaml"),
		Dir:     t.TempDir(),
		Shell:   []string{"/bin/sh", "-c"},
		Recipes: recipes,
	}
}

// TestRun_Success verifies a simple chain runs dependencies first and
// reports zero exit codes.
func TestRun_Success(t *testing.T) {
	var out bytes.Buffer
	e := &Executor{
		File: testFile(t, map[string]*model.Recipe{
			"first":  {Command: "echo first", Quiet: true},
			"second": {Command: "echo second", Needs: []string{"first"}, Quiet: true},
		}),
		Stdout: &out,
		Stderr: &out,
	}

	results, err := e.Run(context.Background(), "second")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "first", results[0].Name)
	assert.Equal(t, "second", results[1].Name)
	assert.Equal(t, 0, results[0].ExitCode)
	assert.Equal(t, "first\nsecond\n", out.String())
}

// TestRun_ExitCodePropagation verifies that a failing recipe surfaces the
// child process exit code through RecipeFailedError, and that later plan
// steps do not run.
func TestRun_ExitCodePropagation(t *testing.T) {
	var out bytes.Buffer
	e := &Executor{
		File: testFile(t, map[string]*model.Recipe{
			"fail":  {Command: "exit 42", Quiet: true},
			"after": {Command: "echo never", Needs: []string{"fail"}, Quiet: true},
		}),
		Stdout: &out,
		Stderr: &out,
	}

	results, err := e.Run(context.Background(), "after")
	require.Error(t, err)

	var rfe *model.RecipeFailedError
	require.True(t, errors.As(err, &rfe))
	assert.Equal(t, "fail", rfe.Recipe)
	assert.Equal(t, 42, rfe.ExitCode)

	require.Len(t, results, 1, "the dependent recipe must not run")
	assert.NotContains(t, out.String(), "never")
}

// TestRun_EnvScoping verifies the environment layering: the child sees
// file env, recipe env (overriding file env), and --env overrides, while
// the galley process environment is untouched afterwards.
func TestRun_EnvScoping(t *testing.T) {
	var out bytes.Buffer
	e := &Executor{
		File: &recipe.File{
			Dir:   t.TempDir(),
			Shell: []string{"/bin/sh", "-c"},
			Env:   map[string]string{"GALLEY_TEST_A": "file", "GALLEY_TEST_B": "file"},
			Recipes: map[string]*model.Recipe{
				"show": {
					Name:    "show",
					Command: `echo "$GALLEY_TEST_A/$GALLEY_TEST_B/$GALLEY_TEST_C"`,
					Env:     map[string]string{"GALLEY_TEST_B": "recipe"},
					Quiet:   true,
				},
			},
		},
		EnvOverrides: []string{"GALLEY_TEST_C=flag"},
		Stdout:       &out,
		Stderr:       &out,
	}

	_, err := e.Run(context.Background(), "show")
	require.NoError(t, err)
	assert.Equal(t, "file/recipe/flag\n", out.String())

	// The variables last only for the invocation; nothing may leak into
	// the runner's own environment.
	_, leaked := os.LookupEnv("GALLEY_TEST_A")
	assert.False(t, leaked, "recipe env must not leak into the runner process")
}

// TestRun_DryRun verifies that --dry-run prints the plan without running
// anything.
func TestRun_DryRun(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "ran")
	var out bytes.Buffer
	e := &Executor{
		File: testFile(t, map[string]*model.Recipe{
			"touch": {Command: "touch " + marker},
			"all":   {Needs: []string{"touch"}},
		}),
		DryRun: true,
		Stdout: &out,
		Stderr: &out,
	}

	results, err := e.Run(context.Background(), "all")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].DryRun)

	assert.Contains(t, out.String(), "touch: touch "+marker)
	assert.Contains(t, out.String(), "all: (prerequisites only)")

	_, statErr := os.Stat(marker)
	assert.True(t, os.IsNotExist(statErr), "dry run must not execute commands")
}

// TestRun_ExtraArgs verifies that arguments after -- reach the target
// recipe's command line, quoted, but not its prerequisites.
func TestRun_ExtraArgs(t *testing.T) {
	var out bytes.Buffer
	e := &Executor{
		File: testFile(t, map[string]*model.Recipe{
			"pre":  {Command: "echo pre", Quiet: true},
			"main": {Command: "echo", Needs: []string{"pre"}, Quiet: true},
		}),
		ExtraArgs: []string{"hello world", "plain"},
		Stdout:    &out,
		Stderr:    &out,
	}

	_, err := e.Run(context.Background(), "main")
	require.NoError(t, err)
	assert.Equal(t, "pre\nhello world plain\n", out.String())
}

// TestRun_Parallel verifies that independent recipes run under --jobs and
// every line of interleaved output carries its recipe prefix.
func TestRun_Parallel(t *testing.T) {
	var out syncBuffer
	e := &Executor{
		File: testFile(t, map[string]*model.Recipe{
			"a":    {Command: "echo from-a", Quiet: true},
			"b":    {Command: "echo from-b", Quiet: true},
			"both": {Needs: []string{"a", "b"}},
		}),
		Jobs:   2,
		Stdout: &out,
		Stderr: &out,
	}

	results, err := e.Run(context.Background(), "both")
	require.NoError(t, err)
	assert.Len(t, results, 3)

	assert.Contains(t, out.String(), "[a] from-a")
	assert.Contains(t, out.String(), "[b] from-b")
}

// TestRun_ParallelFailureCancels verifies that a failure in one branch
// fails the whole run with the child's exit code.
func TestRun_ParallelFailureCancels(t *testing.T) {
	var out syncBuffer
	e := &Executor{
		File: testFile(t, map[string]*model.Recipe{
			"bad":  {Command: "exit 7", Quiet: true},
			"good": {Command: "echo ok", Quiet: true},
			"all":  {Needs: []string{"bad", "good"}},
		}),
		Jobs:   2,
		Stdout: &out,
		Stderr: &out,
	}

	_, err := e.Run(context.Background(), "all")
	require.Error(t, err)

	var rfe *model.RecipeFailedError
	require.True(t, errors.As(err, &rfe))
	assert.Equal(t, 7, rfe.ExitCode)
}

// TestRun_ContainerWithoutRuntime verifies that a container recipe fails
// cleanly when no runtime is wired in.
func TestRun_ContainerWithoutRuntime(t *testing.T) {
	e := &Executor{
		File: testFile(t, map[string]*model.Recipe{
			"boxed": {Command: "cargo test", Container: "rust:1.79-slim", Quiet: true},
		}),
		Stdout: new(bytes.Buffer),
		Stderr: new(bytes.Buffer),
	}

	_, err := e.Run(context.Background(), "boxed")
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitContainerError, cliErr.Code)
}

// TestRun_UnknownTarget verifies the recipe-not-found error path.
func TestRun_UnknownTarget(t *testing.T) {
	e := &Executor{
		File:   testFile(t, map[string]*model.Recipe{"build": {Command: "true"}}),
		Stdout: new(bytes.Buffer),
		Stderr: new(bytes.Buffer),
	}

	_, err := e.Run(context.Background(), "deploy")
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitRecipeNotFound, cliErr.Code)
}

// TestRun_Workdir verifies that a recipe's dir resolves relative to the
// recipe file's directory.
func TestRun_Workdir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))

	e := &Executor{
		File: &recipe.File{
			Dir:   dir,
			Shell: []string{"/bin/sh", "-c"},
			Recipes: map[string]*model.Recipe{
				"mark": {Name: "mark", Command: "touch here", Dir: "sub", Quiet: true},
			},
		},
		Stdout: new(bytes.Buffer),
		Stderr: new(bytes.Buffer),
	}

	_, err := e.Run(context.Background(), "mark")
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "sub", "here"))
	assert.NoError(t, statErr, "command should run inside the recipe's dir")
}

// TestShellQuote verifies quoting of shell-significant arguments.
func TestShellQuote(t *testing.T) {
	assert.Equal(t, "plain", shellQuote("plain"))
	assert.Equal(t, "''", shellQuote(""))
	assert.Equal(t, "'hello world'", shellQuote("hello world"))
	assert.Equal(t, `'it'\''s'`, shellQuote("it's"))
	assert.Equal(t, "'$HOME'", shellQuote("$HOME"))
}
