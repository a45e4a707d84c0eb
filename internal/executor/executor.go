package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"github.com/kitamorio/galley/internal/graph"
	"github.com/kitamorio/galley/internal/model"
	"github.com/kitamorio/galley/internal/recipe"
)

// ContainerRequest describes one containerized recipe execution.
// It is defined here (on the consumer side) so the executor does not
// depend on the container package; the container package implements
// ContainerRunner against it.
type ContainerRequest struct {
	// Image is the container image reference from the recipe.
	Image string

	// Recipe is the recipe name, used for container labels.
	Recipe string

	// Shell is the interpreter argv; the command is appended to it.
	Shell []string

	// Command is the fully assembled command line.
	Command string

	// Env holds KEY=VALUE pairs for the container process. Only the
	// recipe-file layers are passed — the host environment is
	// deliberately not forwarded into containers.
	Env []string

	// Workdir is the host directory bind-mounted into the container.
	Workdir string

	// Stdout and Stderr receive the container's output streams.
	Stdout io.Writer
	Stderr io.Writer
}

// ContainerRunner executes a recipe inside a container and returns the
// process exit code. Implemented by the container package.
type ContainerRunner interface {
	Run(ctx context.Context, req ContainerRequest) (int, error)
}

// Executor runs execution plans against a loaded recipe file.
type Executor struct {
	// File is the loaded recipe file.
	File *recipe.File

	// Jobs is the maximum number of recipes running concurrently.
	// Values below 2 mean sequential execution.
	Jobs int

	// DryRun prints the plan without executing anything.
	DryRun bool

	// ExtraArgs are appended to the command of target recipes (not
	// prerequisites), mirroring "galley run test -- --nocapture".
	ExtraArgs []string

	// EnvOverrides are KEY=VALUE pairs from --env flags, layered on top
	// of file and recipe env.
	EnvOverrides []string

	// Containers runs containerized recipes. May be nil, in which case
	// recipes with a container image fail with ExitContainerError.
	Containers ContainerRunner

	// Stdout and Stderr are the run's output streams. Defaults to the
	// process streams when nil.
	Stdout io.Writer
	Stderr io.Writer

	// Stdin is connected to sequential recipe processes (interactive
	// tools like watch-mode dev servers expect a terminal). Parallel
	// recipes never get stdin — two processes sharing it is never right.
	Stdin io.Reader

	// Verbose, when non-nil, receives debug/trace messages.
	Verbose func(format string, args ...interface{})
}

// Run executes the given target recipes and their transitive
// prerequisites, dependencies first. It returns one result per executed
// plan step in completion order.
//
// On recipe failure the returned error wraps model.RecipeFailedError so
// the CLI can propagate the child's exit code.
func (e *Executor) Run(ctx context.Context, targets ...string) ([]model.RecipeResult, error) {
	if len(targets) == 0 {
		return nil, model.NewCLIError(model.ExitGeneralError, "no recipes requested")
	}

	g, err := graph.New(e.File.Recipes)
	if err != nil {
		return nil, err
	}
	plan, err := g.Order(targets...)
	if err != nil {
		return nil, err
	}
	e.verbose("Plan: %s", strings.Join(plan, ", "))

	if e.DryRun {
		return e.dryRun(plan, targets), nil
	}

	if e.Jobs > 1 && len(plan) > 1 {
		return e.runParallel(ctx, g, plan, targets)
	}
	return e.runSequential(ctx, plan, targets)
}

// dryRun prints each plan step's command without executing it.
func (e *Executor) dryRun(plan []string, targets []string) []model.RecipeResult {
	results := make([]model.RecipeResult, 0, len(plan))
	for _, name := range plan {
		r := e.File.Recipes[name]
		if r.HasCommand() {
			fmt.Fprintf(e.stdout(), "%s: %s\n", name, e.commandLine(r, targets))
		} else {
			fmt.Fprintf(e.stdout(), "%s: (prerequisites only)\n", name)
		}
		results = append(results, model.RecipeResult{Name: name, DryRun: true})
	}
	return results
}

// runSequential executes the plan one recipe at a time, stopping at the
// first failure.
func (e *Executor) runSequential(ctx context.Context, plan []string, targets []string) ([]model.RecipeResult, error) {
	results := make([]model.RecipeResult, 0, len(plan))
	for _, name := range plan {
		res, err := e.runOne(ctx, name, targets, e.stdout(), e.stderr(), e.Stdin)
		results = append(results, res)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// runParallel executes the plan with up to Jobs recipes in flight.
//
// Goroutines launch in plan (dependencies-first) order and each one
// waits on its prerequisites' done channels before running. Because a
// recipe's prerequisites always precede it in the plan, every waited-on
// channel belongs to an already-launched goroutine, so the launch limit
// cannot deadlock. The first failure cancels the group context, which
// kills in-flight child processes.
func (e *Executor) runParallel(ctx context.Context, g *graph.Graph, plan []string, targets []string) ([]model.RecipeResult, error) {
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(e.Jobs)

	done := make(map[string]chan struct{}, len(plan))
	for _, name := range plan {
		done[name] = make(chan struct{})
	}

	var mu sync.Mutex
	var results []model.RecipeResult

	for _, name := range plan {
		eg.Go(func() error {
			for _, dep := range g.Needs(name) {
				select {
				case <-done[dep]:
				case <-ctx.Done():
					return ctx.Err()
				}
			}

			// Interleaved output from concurrent recipes gets a name
			// prefix per line; stdin is not connected.
			stdout := newPrefixWriter(e.stdout(), name)
			stderr := newPrefixWriter(e.stderr(), name)

			res, err := e.runOne(ctx, name, targets, stdout, stderr, nil)
			_ = stdout.Flush()
			_ = stderr.Flush()
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			if err != nil {
				return err
			}
			close(done[name])
			return nil
		})
	}

	err := eg.Wait()
	return results, err
}

// runOne executes a single recipe and returns its result. Grouping
// recipes (no command) succeed immediately.
func (e *Executor) runOne(ctx context.Context, name string, targets []string, stdout, stderr io.Writer, stdin io.Reader) (model.RecipeResult, error) {
	r := e.File.Recipes[name]
	if !r.HasCommand() {
		return model.RecipeResult{Name: name}, nil
	}

	cmdline := e.commandLine(r, targets)
	if !r.Quiet {
		e.echo(stderr, cmdline)
	}

	start := time.Now()
	var exitCode int
	var err error
	if r.Container != "" {
		exitCode, err = e.runInContainer(ctx, r, cmdline, stdout, stderr)
	} else {
		exitCode, err = e.runOnHost(ctx, r, cmdline, stdout, stderr, stdin)
	}

	res := model.RecipeResult{Name: name, ExitCode: exitCode, Duration: time.Since(start)}
	if err != nil {
		return res, err
	}
	if exitCode != 0 {
		return res, &model.RecipeFailedError{Recipe: name, ExitCode: exitCode}
	}
	e.verbose("Recipe %q finished in %s", name, res.Duration.Round(time.Millisecond))
	return res, nil
}

// runOnHost runs the command through the file's shell as a child process.
func (e *Executor) runOnHost(ctx context.Context, r *model.Recipe, cmdline string, stdout, stderr io.Writer, stdin io.Reader) (int, error) {
	argv := append(append([]string(nil), e.File.Shell...), cmdline)

	// #nosec G204 — the command comes from the project's own recipe file
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = e.workdir(r)
	cmd.Env = e.environ(r)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Stdin = stdin

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	// A non-zero exit is the recipe failing, not galley failing: surface
	// the child's code so the CLI can propagate it (RecipeFailedError is
	// attached by runOne via the exit code).
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		return exitErr.ExitCode(), nil
	}
	return -1, model.WrapCLIError(model.ExitGeneralError,
		fmt.Sprintf("failed to run recipe %q", r.Name), err)
}

// runInContainer delegates to the ContainerRunner.
func (e *Executor) runInContainer(ctx context.Context, r *model.Recipe, cmdline string, stdout, stderr io.Writer) (int, error) {
	if e.Containers == nil {
		return -1, model.NewCLIError(model.ExitContainerError,
			fmt.Sprintf("recipe %q requires a container runtime, but none is available", r.Name))
	}

	// Containers get the recipe-file env layers only. The host
	// environment stays on the host.
	env := mapPairs(e.File.Env)
	env = append(env, r.SortedEnv()...)
	env = append(env, e.EnvOverrides...)

	return e.Containers.Run(ctx, ContainerRequest{
		Image:   r.Container,
		Recipe:  r.Name,
		Shell:   e.File.Shell,
		Command: cmdline,
		Env:     env,
		Workdir: e.workdir(r),
		Stdout:  stdout,
		Stderr:  stderr,
	})
}

// commandLine assembles the recipe's command, appending ExtraArgs when
// the recipe is one of the run's targets. Arguments are single-quoted so
// the shell passes them through verbatim.
func (e *Executor) commandLine(r *model.Recipe, targets []string) string {
	cmdline := strings.TrimSpace(r.Command)
	if len(e.ExtraArgs) == 0 || !contains(targets, r.Name) {
		return cmdline
	}

	quoted := make([]string, 0, len(e.ExtraArgs))
	for _, arg := range e.ExtraArgs {
		quoted = append(quoted, shellQuote(arg))
	}
	return cmdline + " " + strings.Join(quoted, " ")
}

// environ builds the child process environment. os/exec documents that
// with duplicate keys only the last value is used, so layering is plain
// append in precedence order: host env, file env, recipe env, overrides.
func (e *Executor) environ(r *model.Recipe) []string {
	env := os.Environ()
	env = append(env, mapPairs(e.File.Env)...)
	env = append(env, r.SortedEnv()...)
	env = append(env, e.EnvOverrides...)
	return env
}

// workdir resolves the recipe working directory against the recipe
// file's directory.
func (e *Executor) workdir(r *model.Recipe) string {
	if r.Dir == "" {
		return e.File.Dir
	}
	if filepath.IsAbs(r.Dir) {
		return r.Dir
	}
	return filepath.Join(e.File.Dir, r.Dir)
}

// echo prints the command about to run, bold cyan when the terminal
// supports it. fatih/color degrades to plain text automatically when
// output is not a TTY or NO_COLOR is set.
func (e *Executor) echo(w io.Writer, cmdline string) {
	arrow := color.New(color.FgCyan, color.Bold)
	_, _ = arrow.Fprintf(w, "▶ %s\n", cmdline)
}

func (e *Executor) stdout() io.Writer {
	if e.Stdout != nil {
		return e.Stdout
	}
	return os.Stdout
}

func (e *Executor) stderr() io.Writer {
	if e.Stderr != nil {
		return e.Stderr
	}
	return os.Stderr
}

func (e *Executor) verbose(format string, args ...interface{}) {
	if e.Verbose != nil {
		e.Verbose(format, args...)
	}
}

// mapPairs converts an env map to sorted KEY=VALUE pairs via a throwaway
// recipe, reusing the deterministic ordering in one place.
func mapPairs(m map[string]string) []string {
	return (&model.Recipe{Env: m}).SortedEnv()
}

// shellQuote single-quotes a string for POSIX shells, escaping embedded
// single quotes with the '\'' idiom.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$&|;<>(){}*?#~`") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
