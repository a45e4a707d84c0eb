// Package cli — scrub.go implements the "galley scrub" command.
//
// The scrub command removes sync-conflict duplicates (Dropbox
// "conflicted copy" files, Syncthing ".sync-conflict-" files) from the
// project tree, and marks configured directories — the build output
// directory by default — as ignored by Dropbox via the
// com.dropbox.ignored extended attribute.
package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kitamorio/galley/internal/config"
	"github.com/kitamorio/galley/internal/conflict"
	"github.com/kitamorio/galley/internal/model"
)

// scrubFlags holds the flag values for the scrub command.
type scrubFlags struct {
	// dryRun reports what would be removed or marked without touching
	// anything.
	dryRun bool
}

// NewScrubCommand creates the "scrub" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewScrubCommand() *cobra.Command {
	flags := &scrubFlags{}

	cmd := &cobra.Command{
		Use:   "scrub [path]",
		Short: "Remove sync-conflict files and mark ignored directories",
		Long: `Delete sync-conflict duplicates left by Dropbox or Syncthing from the
project tree, and mark the configured directories (default: target)
as ignored by Dropbox so build output stops syncing.

Without a path argument the project root (the recipe file's directory)
is scrubbed.

Examples:
  galley scrub
  galley scrub --dry-run
  galley scrub ~/Dropbox/notes`,

		Args: cobra.MaximumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			root := ""
			if len(args) == 1 {
				root = args[0]
			}
			return runScrub(cmd, root, flags)
		},
	}

	cmd.Flags().BoolVarP(&flags.dryRun, "dry-run", "n", false, "Report without deleting or marking")

	return cmd
}

// runScrub runs the scrubber over the given root, defaulting to the
// project root located via the recipe file.
func runScrub(cmd *cobra.Command, root string, flags *scrubFlags) error {
	var settings *config.Settings
	if root == "" {
		file, s, err := loadProject(cmd.Flags())
		if err != nil {
			return err
		}
		root = file.Dir
		settings = s
	} else {
		// An explicit path needs no recipe file; settings still layer
		// with the given root as the project directory.
		s, err := config.Load(root, cmd.Flags())
		if err != nil {
			return err
		}
		applySettings(s)
		settings = s
	}

	scrubber := &conflict.Scrubber{
		Root:       root,
		IgnoreDirs: settings.IgnoreDirs,
		DryRun:     flags.dryRun,
		Verbose:    VerboseLog,
	}
	report, err := scrubber.Scrub()
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "failed to encode scrub report", err)
		}
		fmt.Println(string(data))
		return nil
	}

	printScrubText(report)
	return nil
}

// printScrubText renders the report for humans.
func printScrubText(report *conflict.Report) {
	verb := "Removed"
	marked := "Marked"
	if report.DryRun {
		verb = "Would remove"
		marked = "Would mark"
	}

	if len(report.Removed) == 0 {
		fmt.Println("No conflict files found.")
	}
	for _, path := range report.Removed {
		fmt.Printf("%s %s\n", verb, path)
	}
	for _, dir := range report.Marked {
		fmt.Printf("%s %s as ignored by Dropbox\n", marked, dir)
	}
}
