// Package executor runs recipe plans as external processes.
//
// Each recipe's command is handed to the configured shell via os/exec,
// with the environment layered as: runner environment, file-wide env,
// recipe env, --env overrides. The layers apply only to that child
// process; galley's own environment is never modified, so a recipe's
// variables last exactly one invocation.
//
// A failing recipe aborts the run and its exit code is propagated as the
// runner's exit code. With --jobs > 1, independent recipes run
// concurrently (errgroup with a launch limit, in dependencies-first
// order) and their output is prefixed with the recipe name.
package executor
