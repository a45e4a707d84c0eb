// Package cli — graph.go implements the "galley graph" command.
//
// The graph command resolves and prints the execution order for the
// given recipes without running anything. It is the quickest way to see
// what "galley run" would do, and to debug prerequisite cycles.
package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kitamorio/galley/internal/graph"
	"github.com/kitamorio/galley/internal/model"
)

// NewGraphCommand creates the "graph" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewGraphCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "graph <recipe>...",
		Short: "Show the execution order for recipes",
		Long: `Resolve the prerequisites of the given recipes and print the order
"galley run" would execute them in, dependencies first.

Examples:
  galley graph ci
  galley graph build test --json`,

		Args: cobra.MinimumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(cmd, args)
		},
	}
}

// runGraph resolves and prints the plan for the given targets.
func runGraph(cmd *cobra.Command, targets []string) error {
	file, _, err := loadProject(cmd.Flags())
	if err != nil {
		return err
	}

	g, err := graph.New(file.Recipes)
	if err != nil {
		return err
	}
	plan, err := g.Order(targets...)
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		type resultJSON struct {
			Targets []string `json:"targets"`
			Order   []string `json:"order"`
		}
		data, err := json.MarshalIndent(resultJSON{Targets: targets, Order: plan}, "", "  ")
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "failed to encode plan", err)
		}
		fmt.Println(string(data))
		return nil
	}

	for i, name := range plan {
		fmt.Printf("%d. %s\n", i+1, name)
	}
	return nil
}
