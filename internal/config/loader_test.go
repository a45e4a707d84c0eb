package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeRC drops a .galleyrc.yaml with the given content into dir.
func writeRC(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, rcFileName), []byte(content), 0o644))
}

// runFlags builds a flag set shaped like the run command's, with the
// given arguments parsed.
func runFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.IntP("jobs", "j", DefaultJobs, "")
	flags.StringP("file", "f", "", "")
	flags.Bool("no-color", false, "")
	flags.Bool("verbose", false, "")
	require.NoError(t, flags.Parse(args))
	return flags
}

// TestLoad_Defaults verifies the built-in layer with nothing else set.
func TestLoad_Defaults(t *testing.T) {
	settings, err := Load(t.TempDir(), nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultJobs, settings.Jobs)
	assert.True(t, settings.Color)
	assert.False(t, settings.Verbose)
	assert.Equal(t, []string{"target"}, settings.IgnoreDirs)
	assert.Empty(t, settings.RecipeFile)
}

// TestLoad_ProjectFile verifies that a project rc file overrides
// defaults.
func TestLoad_ProjectFile(t *testing.T) {
	root := t.TempDir()
	writeRC(t, root, "jobs: 4\nignore_dirs:\n  - target\n  - dist\n")

	settings, err := Load(root, nil)
	require.NoError(t, err)

	assert.Equal(t, 4, settings.Jobs)
	assert.Equal(t, []string{"target", "dist"}, settings.IgnoreDirs)
	assert.True(t, settings.Color, "untouched keys keep their defaults")
}

// TestLoad_EnvOverridesFile verifies the env layer beats the file layer.
func TestLoad_EnvOverridesFile(t *testing.T) {
	root := t.TempDir()
	writeRC(t, root, "jobs: 4\n")
	t.Setenv("GALLEY_JOBS", "8")

	settings, err := Load(root, nil)
	require.NoError(t, err)
	assert.Equal(t, 8, settings.Jobs)
}

// TestLoad_FlagsOverrideEverything verifies that a changed flag beats
// both env and file layers, and an unchanged flag beats neither.
func TestLoad_FlagsOverrideEverything(t *testing.T) {
	root := t.TempDir()
	writeRC(t, root, "jobs: 4\nverbose: true\n")
	t.Setenv("GALLEY_JOBS", "8")

	settings, err := Load(root, runFlags(t, "--jobs", "2"))
	require.NoError(t, err)

	assert.Equal(t, 2, settings.Jobs)
	assert.True(t, settings.Verbose, "unset --verbose must not clobber the file value")
}

// TestLoad_FileFlagMapsToRecipeFile verifies the --file to recipe_file
// key mapping.
func TestLoad_FileFlagMapsToRecipeFile(t *testing.T) {
	settings, err := Load(t.TempDir(), runFlags(t, "--file", "ci/galley.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "ci/galley.yaml", settings.RecipeFile)
}

// TestLoad_NoColorFlag verifies --no-color flips the positive color key.
func TestLoad_NoColorFlag(t *testing.T) {
	settings, err := Load(t.TempDir(), runFlags(t, "--no-color"))
	require.NoError(t, err)
	assert.False(t, settings.Color)
}

// TestLoad_BadJobsClamped verifies nonsensical job counts fall back to
// the default.
func TestLoad_BadJobsClamped(t *testing.T) {
	root := t.TempDir()
	writeRC(t, root, "jobs: 0\n")

	settings, err := Load(root, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultJobs, settings.Jobs)
}
