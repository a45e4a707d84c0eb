// Package recipe handles discovery and parsing of galley recipe files.
//
// A recipe file is either YAML (galley.yaml / galley.yml) or JSONC
// (galley.jsonc). JSONC support mirrors editor-oriented config formats:
// comments are stripped with github.com/tidwall/jsonc before parsing with
// the standard encoding/json library.
//
// Key responsibilities:
//   - Locate the recipe file, searching upward from the working directory
//   - Parse YAML and JSONC into the shared model.Recipe structures
//   - Validate recipe names and prerequisite references at load time
package recipe
