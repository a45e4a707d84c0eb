// Package cli — prune.go implements the "galley prune" command.
//
// In normal operation the executor removes its containers when a recipe
// finishes. Hard interruptions (SIGKILL, daemon restarts) can leave
// labeled containers behind; prune finds them by label and removes
// them. By default the command prompts for confirmation; --force skips
// the prompt.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kitamorio/galley/internal/container"
	"github.com/kitamorio/galley/internal/model"
)

// pruneFlags holds the flag values for the prune command.
type pruneFlags struct {
	// force skips the interactive confirmation prompt when true.
	force bool
}

// NewPruneCommand creates the "prune" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewPruneCommand() *cobra.Command {
	flags := &pruneFlags{}

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove leftover recipe containers",
		Long: `Find containers created by galley that were left behind by hard
interruptions, and force-remove them.

Unless --force is specified, the command prompts for confirmation.

Examples:
  galley prune
  galley prune --force`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrune(cmd.Context(), flags)
		},
	}

	cmd.Flags().BoolVar(&flags.force, "force", false, "Remove without confirmation")

	return cmd
}

// runPrune lists labeled containers and removes them after confirmation.
func runPrune(ctx context.Context, flags *pruneFlags) error {
	// Step 1: Connect to the Docker daemon.
	cli, err := container.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	if err := cli.Ping(ctx); err != nil {
		return err
	}
	VerboseLog("Connected to Docker daemon")

	// Step 2: Find leftover containers by label.
	strays, err := container.ListStrays(ctx, cli)
	if err != nil {
		return err
	}
	if len(strays) == 0 {
		if IsJSONOutput() {
			fmt.Println(`{"removed": []}`)
		} else {
			fmt.Println("No leftover containers found.")
		}
		return nil
	}

	// Step 3: Show what was found and confirm unless --force.
	if !IsJSONOutput() {
		fmt.Fprintf(os.Stdout, "%-14s %-30s %-16s %s\n", "ID", "NAME", "RECIPE", "STATUS")
		for _, s := range strays {
			fmt.Fprintln(os.Stdout, formatStrayRow(s))
		}
	}

	if !flags.force {
		confirmed, err := promptConfirmation(fmt.Sprintf("Remove %d container(s)?", len(strays)))
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "failed to read user input", err)
		}
		if !confirmed {
			return model.NewCLIError(model.ExitUserCancelled, "operation cancelled by user")
		}
	}

	// Step 4: Remove each container.
	removed := make([]string, 0, len(strays))
	for _, s := range strays {
		VerboseLog("Removing container %s (%s)...", s.Name, s.ID)
		if err := container.Remove(ctx, cli, s.ID); err != nil {
			return err
		}
		removed = append(removed, s.ID)
	}

	if IsJSONOutput() {
		data, err := json.MarshalIndent(map[string][]string{"removed": removed}, "", "  ")
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "failed to encode prune result", err)
		}
		fmt.Println(string(data))
		return nil
	}
	fmt.Printf("Removed %d container(s).\n", len(removed))
	return nil
}

// formatStrayRow renders one table line for a leftover container. Pure,
// so the layout is testable without capturing stdout.
func formatStrayRow(s container.StrayInfo) string {
	id := s.ID
	if len(id) > 12 {
		id = id[:12]
	}
	return fmt.Sprintf("%-14s %-30s %-16s %s", id, s.Name, s.Recipe, s.Status)
}

// promptConfirmation asks a yes/no question on stderr and reads the
// answer from stdin. Only "y" or "yes" (case-insensitive) confirm.
func promptConfirmation(question string) (bool, error) {
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", question)

	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}
