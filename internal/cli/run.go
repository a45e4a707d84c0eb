// Package cli — run.go implements the "galley run" command.
//
// The run command executes one or more recipes and their transitive
// prerequisites, dependencies first. Arguments after "--" are appended
// to the target recipes' commands. The command supports parallel
// execution (--jobs), a plan-only mode (--dry-run), environment
// overrides (--env), and a watch mode (--watch) that re-runs the
// targets when files change.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kitamorio/galley/internal/config"
	"github.com/kitamorio/galley/internal/container"
	"github.com/kitamorio/galley/internal/executor"
	"github.com/kitamorio/galley/internal/graph"
	"github.com/kitamorio/galley/internal/model"
	"github.com/kitamorio/galley/internal/recipe"
	"github.com/kitamorio/galley/internal/watch"
)

// runCmdFlags holds the flag values for the run command.
// These are bound to cobra flags in NewRunCommand.
type runCmdFlags struct {
	// jobs is the maximum number of recipes run concurrently.
	jobs int

	// dryRun prints the execution plan without running anything.
	dryRun bool

	// watchMode re-runs the targets whenever watched files change.
	watchMode bool

	// env holds KEY=VALUE overrides layered on top of the recipe file's
	// environment.
	env []string
}

// NewRunCommand creates the "run" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewRunCommand() *cobra.Command {
	flags := &runCmdFlags{}

	cmd := &cobra.Command{
		Use:   "run <recipe>... [-- <args>...]",
		Short: "Run recipes and their prerequisites",
		Long: `Run the named recipes after their prerequisites, in dependency order.

Arguments after "--" are appended to the target recipes' commands
(not to prerequisites). If a recipe fails, galley exits with the
recipe's own exit code.

Examples:
  galley run build
  galley run test -- --nocapture
  galley run ci --jobs 4
  galley run serve --watch
  galley run check --env RUSTFLAGS="--deny warnings"`,

		// At least one recipe name is required.
		Args: cobra.MinimumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			// cobra strips the "--" separator; ArgsLenAtDash tells us
			// where targets end and extra arguments begin.
			targets, extra := splitAtDash(args, cmd.ArgsLenAtDash())
			return runRun(cmd.Context(), cmd, targets, extra, flags)
		},
	}

	// Register command-specific flags.
	cmd.Flags().IntVarP(&flags.jobs, "jobs", "j", config.DefaultJobs, "Maximum recipes running concurrently")
	cmd.Flags().BoolVarP(&flags.dryRun, "dry-run", "n", false, "Print the plan without executing")
	cmd.Flags().BoolVarP(&flags.watchMode, "watch", "w", false, "Re-run when watched files change")
	cmd.Flags().StringArrayVarP(&flags.env, "env", "e", nil, "Environment override KEY=VALUE (repeatable)")

	return cmd
}

// runRun is the main logic function for the run command.
// It loads the recipe file and settings, wires a container runtime when
// the plan needs one, and executes (once, or in a watch loop).
func runRun(ctx context.Context, cmd *cobra.Command, targets, extra []string, flags *runCmdFlags) error {
	// Step 1: Validate --env values early, before any work happens.
	for _, pair := range flags.env {
		if !strings.Contains(pair, "=") {
			return model.NewCLIError(model.ExitGeneralError,
				fmt.Sprintf("invalid --env value %q: expected KEY=VALUE", pair))
		}
	}

	// Step 2: Load the settings and the recipe file together; the recipe
	// file override and the verbose/color toggles can come from any
	// settings layer, not just their flags.
	file, settings, err := loadProject(cmd.Flags())
	if err != nil {
		return err
	}
	VerboseLog("Using recipe file %s", file.Path)

	// Step 3: Resolve the plan up front. This validates the targets and
	// tells us whether a container runtime is needed at all.
	g, err := graph.New(file.Recipes)
	if err != nil {
		return err
	}
	plan, err := g.Order(targets...)
	if err != nil {
		return err
	}

	runner := &executor.Executor{
		File:         file,
		Jobs:         settings.Jobs,
		DryRun:       flags.dryRun,
		ExtraArgs:    extra,
		EnvOverrides: flags.env,
		Stdin:        os.Stdin,
		Verbose:      VerboseLog,
	}

	// Step 4: Connect to Docker only when a planned recipe runs in a
	// container. Host-only runs must work without a daemon.
	if !flags.dryRun && planNeedsContainers(file, plan) {
		cli, err := container.NewClient()
		if err != nil {
			return err
		}
		defer func() { _ = cli.Close() }()

		if err := cli.Ping(ctx); err != nil {
			return err
		}
		VerboseLog("Connected to Docker daemon")

		containers := container.NewRunner(cli)
		containers.Verbose = VerboseLog
		runner.Containers = containers
	}

	// Step 5: Ctrl-C cancels the run context; child processes and
	// containers are killed through it.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Step 6: Execute — once, or in a watch loop.
	if flags.watchMode {
		return runWatched(ctx, runner, file, targets)
	}

	_, err = runner.Run(ctx, targets...)
	return runOutcome(ctx, err)
}

// runOutcome maps a run's error to what galley reports. An error during
// a cancelled run is the cancellation, whatever the executor surfaced
// while being torn down; a run that finished cleanly before the signal
// arrived stays a success.
func runOutcome(ctx context.Context, err error) error {
	if err != nil && ctx.Err() != nil {
		return model.NewCLIError(model.ExitUserCancelled, "interrupted")
	}
	return err
}

// runWatched wraps the executor in a file-watching loop. Watch paths
// come from the target recipes' watch lists; a target with no watch list
// falls back to the whole project directory.
func runWatched(ctx context.Context, runner *executor.Executor, file *recipe.File, targets []string) error {
	paths := watchPaths(file, targets)
	VerboseLog("Watch mode: %s", strings.Join(paths, ", "))

	w := &watch.Watcher{Paths: paths, Verbose: VerboseLog}
	err := w.Run(ctx, func(runCtx context.Context) error {
		_, runErr := runner.Run(runCtx, targets...)
		if runErr != nil && runCtx.Err() == nil {
			// Failures inside the loop are reported but not fatal — the
			// next file change retries.
			printError(runErr.Error(), nil)
		}
		return runErr
	})
	if err != nil {
		return err
	}
	// The loop only ends on cancellation, which in watch mode is the
	// normal way to stop.
	return nil
}

// loadProject resolves the recipe file and the layered settings, which
// depend on each other: the recipe file override may come from any
// settings layer, while the project rc file lives next to the recipe
// file. A bootstrap pass (defaults, home rc, GALLEY_* env, flags)
// resolves the override; the full pass then adds the project rc.
func loadProject(flags *pflag.FlagSet) (*recipe.File, *config.Settings, error) {
	boot, err := config.Load("", flags)
	if err != nil {
		return nil, nil, err
	}

	path := boot.RecipeFile
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, nil, model.WrapCLIError(model.ExitGeneralError, "failed to determine working directory", err)
		}
		path, err = recipe.FindFile(cwd)
		if err != nil {
			return nil, nil, err
		}
	}
	file, err := recipe.Load(path)
	if err != nil {
		return nil, nil, err
	}

	settings, err := config.Load(file.Dir, flags)
	if err != nil {
		return nil, nil, err
	}
	applySettings(settings)
	return file, settings, nil
}

// applySettings pushes settings that mirror persistent flags into the
// CLI globals, so rc-file and GALLEY_* env values behave exactly like
// their flag counterparts. Flags only ever turn these on, so settings
// only add — a set flag is never undone by a quieter rc file.
func applySettings(s *config.Settings) {
	if s.Verbose {
		verbose = true
	}
	if !s.Color {
		color.NoColor = true
	}
}

// planNeedsContainers reports whether any recipe in the plan declares a
// container image.
func planNeedsContainers(file *recipe.File, plan []string) bool {
	for _, name := range plan {
		if file.Recipes[name].Container != "" {
			return true
		}
	}
	return false
}

// watchPaths collects the watch lists of the target recipes, resolved
// against the recipe file's directory. Empty lists fall back to the
// project directory itself.
func watchPaths(file *recipe.File, targets []string) []string {
	seen := make(map[string]bool)
	var paths []string
	for _, name := range targets {
		r, ok := file.Recipes[name]
		if !ok {
			continue
		}
		for _, p := range r.Watch {
			if !filepath.IsAbs(p) {
				p = filepath.Join(file.Dir, p)
			}
			if !seen[p] {
				seen[p] = true
				paths = append(paths, p)
			}
		}
	}
	if len(paths) == 0 {
		paths = []string{file.Dir}
	}
	return paths
}

// splitAtDash separates positional arguments from everything after "--".
// dashIndex is cobra's ArgsLenAtDash: -1 when no "--" was given.
func splitAtDash(args []string, dashIndex int) (targets, extra []string) {
	if dashIndex < 0 {
		return args, nil
	}
	return args[:dashIndex], args[dashIndex:]
}
