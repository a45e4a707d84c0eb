// Package container runs recipes inside one-shot Docker containers and
// cleans up strays left behind by interrupted runs.
//
// A containerized recipe gets its project directory bind-mounted at
// /workspace, the recipe-file environment layers (never the host
// environment), and the file's shell as the entrypoint command. The
// container's exit code becomes the recipe's exit code.
//
// Every container galley creates carries the "galley.managed-by" label,
// which is how "galley prune" finds leftovers without touching unrelated
// containers on the same host.
package container
