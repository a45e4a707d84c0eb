package recipe

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitamorio/galley/internal/model"
)

// TestLoad_YAML verifies parsing of the YAML testdata file: file-wide env,
// per-recipe env, prerequisites, and the default shell.
func TestLoad_YAML(t *testing.T) {
	f, err := Load(filepath.Join("testdata", "galley.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultShell, f.Shell, "no shell override in YAML testdata")
	assert.Equal(t, "always", f.Env["CARGO_TERM_COLOR"])

	check, err := f.Get("check-warnings")
	require.NoError(t, err)
	assert.Equal(t, "check-warnings", check.Name)
	assert.Equal(t, "cargo check --all-targets", check.Command)
	assert.Equal(t, "--deny warnings", check.Env["RUSTFLAGS"])

	docs, err := f.Get("check-docs")
	require.NoError(t, err)
	assert.Contains(t, docs.Env["RUSTDOCFLAGS"], "broken-intra-doc-links")

	// "ci" is a grouping recipe: prerequisites only, no command.
	ci, err := f.Get("ci")
	require.NoError(t, err)
	assert.False(t, ci.HasCommand())
	assert.Contains(t, ci.Needs, "clippy")
	assert.Contains(t, ci.Needs, "test")
}

// TestLoad_JSONC verifies parsing of the JSONC testdata file, including
// comment stripping, a shell override, and the container field.
func TestLoad_JSONC(t *testing.T) {
	f, err := Load(filepath.Join("testdata", "galley.jsonc"))
	require.NoError(t, err)

	assert.Equal(t, []string{"/bin/bash", "-c"}, f.Shell)

	test, err := f.Get("test")
	require.NoError(t, err)
	assert.Equal(t, []string{"build"}, test.Needs)

	sandbox, err := f.Get("sandbox-test")
	require.NoError(t, err)
	assert.Equal(t, "rust:1.79-slim", sandbox.Container)
}

// TestLoad_UnknownNeed verifies that a prerequisite referencing a recipe
// that does not exist is rejected at load time.
func TestLoad_UnknownNeed(t *testing.T) {
	path := writeFile(t, "galley.yaml", `
recipes:
  build:
    command: make
    needs: [generate]
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `needs unknown recipe "generate"`)
	assertExitCode(t, err, model.ExitRecipeFileError)
}

// TestLoad_SelfNeed verifies that a recipe listing itself as a
// prerequisite is rejected with the cycle exit code.
func TestLoad_SelfNeed(t *testing.T) {
	path := writeFile(t, "galley.yaml", `
recipes:
  build:
    command: make
    needs: [build]
`)

	_, err := Load(path)
	require.Error(t, err)
	assertExitCode(t, err, model.ExitDependencyCycle)
}

// TestLoad_EmptyRecipe verifies that a recipe with neither a command nor
// prerequisites is rejected.
func TestLoad_EmptyRecipe(t *testing.T) {
	path := writeFile(t, "galley.yaml", `
recipes:
  nothing:
    description: does nothing
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "neither a command nor prerequisites")
}

// TestLoad_InvalidName verifies that recipe names with shell-significant
// characters are rejected at load time.
func TestLoad_InvalidName(t *testing.T) {
	path := writeFile(t, "galley.yaml", `
recipes:
  "bad name":
    command: echo hi
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid recipe name")
}

// TestLoad_MissingFile verifies the not-found error carries the recipe
// file exit code so the CLI exits with 2.
func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "galley.yaml"))
	require.Error(t, err)
	assertExitCode(t, err, model.ExitRecipeFileError)
}

// TestFindFile_SameDir verifies that a recipe file in the start directory
// is found directly.
func TestFindFile_SameDir(t *testing.T) {
	dir := t.TempDir()
	want := filepath.Join(dir, "galley.yaml")
	require.NoError(t, os.WriteFile(want, []byte("recipes:\n  a:\n    command: true\n"), 0o644))

	got, err := FindFile(dir)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

// TestFindFile_Upward verifies the upward search: a recipe file at the
// project root is found from a nested subdirectory, the way git locates
// its repository root.
func TestFindFile_Upward(t *testing.T) {
	root := t.TempDir()
	want := filepath.Join(root, "galley.jsonc")
	require.NoError(t, os.WriteFile(want, []byte(`{"recipes":{"a":{"command":"true"}}}`), 0o644))

	nested := filepath.Join(root, "src", "deep", "deeper")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	got, err := FindFile(nested)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

// TestFindFile_NotFound verifies the error when no recipe file exists
// anywhere in the search range.
func TestFindFile_NotFound(t *testing.T) {
	_, err := FindFile(t.TempDir())
	require.Error(t, err)
	assertExitCode(t, err, model.ExitRecipeFileError)
}

// TestGet_NotFound verifies that looking up a missing recipe returns the
// recipe-not-found exit code and lists available names.
func TestGet_NotFound(t *testing.T) {
	f, err := Load(filepath.Join("testdata", "galley.jsonc"))
	require.NoError(t, err)

	_, err = f.Get("deploy")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build")
	assertExitCode(t, err, model.ExitRecipeNotFound)
}

// TestNames verifies alphabetical ordering of recipe names.
func TestNames(t *testing.T) {
	f, err := Load(filepath.Join("testdata", "galley.jsonc"))
	require.NoError(t, err)

	assert.Equal(t, []string{"build", "sandbox-test", "test"}, f.Names())
}

// writeFile writes content to a file named name inside a fresh temp
// directory and returns its path.
func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// assertExitCode asserts that err is (or wraps) a CLIError with the given code.
func assertExitCode(t *testing.T, err error, code model.ExitCode) {
	t.Helper()
	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr), "expected CLIError, got %T", err)
	assert.Equal(t, code, cliErr.Code)
}
