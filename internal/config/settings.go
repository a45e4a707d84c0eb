package config

// rcFileName is galley's own settings file, distinct from the recipe
// file. Looked up in the user's home directory and the project root.
const rcFileName = ".galleyrc.yaml"

// Default values for settings not present in any layer.
const (
	// DefaultJobs of 1 keeps recipe output interleaving-free unless the
	// user opts into parallelism.
	DefaultJobs = 1
)

// Settings holds galley's behavior knobs.
type Settings struct {
	// RecipeFile overrides the upward search for the recipe file.
	RecipeFile string `koanf:"recipe_file"`

	// Jobs is the maximum number of recipes run concurrently.
	Jobs int `koanf:"jobs"`

	// Color enables colored output. Ignored when stdout is not a
	// terminal.
	Color bool `koanf:"color"`

	// Verbose enables debug/trace logging to stderr.
	Verbose bool `koanf:"verbose"`

	// IgnoreDirs are the directory names "galley scrub" marks as
	// ignored by Dropbox.
	IgnoreDirs []string `koanf:"ignore_dirs"`
}
