package container

import (
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/stretchr/testify/assert"
)

// TestBuildLabels verifies the full label set for a recipe container.
func TestBuildLabels(t *testing.T) {
	labels := BuildLabels("sandbox-test", "/home/dev/project")

	assert.Equal(t, "galley", labels[LabelManagedBy])
	assert.Equal(t, "sandbox-test", labels[LabelRecipe])
	assert.Equal(t, "/home/dev/project", labels[LabelWorkdir])
}

// TestIsManaged verifies that only containers carrying the exact
// management label value are recognized as galley's.
func TestIsManaged(t *testing.T) {
	assert.True(t, IsManaged(BuildLabels("build", "/tmp/p")))
	assert.False(t, IsManaged(map[string]string{}))
	assert.False(t, IsManaged(map[string]string{LabelManagedBy: "something-else"}))
	assert.False(t, IsManaged(nil))
}

// TestRecipeName verifies extraction with and without the label present.
func TestRecipeName(t *testing.T) {
	assert.Equal(t, "clippy", RecipeName(map[string]string{LabelRecipe: "clippy"}))
	assert.Equal(t, "", RecipeName(nil))
}

// TestSummaryToStray verifies the mapping from a Docker API container
// summary, including stripping the API's leading slash from names.
func TestSummaryToStray(t *testing.T) {
	stray := summaryToStray(types.Container{
		ID:     "abcdef1234567890",
		Names:  []string{"/galley-test-1"},
		State:  "exited",
		Labels: BuildLabels("test", "/tmp/p"),
	})

	assert.Equal(t, "abcdef1234567890", stray.ID)
	assert.Equal(t, "galley-test-1", stray.Name)
	assert.Equal(t, "test", stray.Recipe)
	assert.Equal(t, "exited", stray.Status)
}

// TestShortID verifies ID truncation at the 12-character boundary.
func TestShortID(t *testing.T) {
	assert.Equal(t, "abcdef123456", shortID("abcdef1234567890"))
	assert.Equal(t, "short", shortID("short"))
}
