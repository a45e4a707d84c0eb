// Package config loads galley's own settings (as opposed to the recipe
// file, which lives in package recipe).
//
// Settings are layered with koanf. Precedence, highest first: command
// line flags, GALLEY_* environment variables, a .galleyrc.yaml in the
// project root, a .galleyrc.yaml in the user's home directory, and
// finally built-in defaults.
package config
