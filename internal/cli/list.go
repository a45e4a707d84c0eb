// Package cli — list.go implements the "galley list" command.
//
// The list command shows every recipe in the recipe file with its
// description and prerequisites, as a text table or a JSON array
// depending on the --json flag.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kitamorio/galley/internal/model"
	"github.com/kitamorio/galley/internal/recipe"
)

// NewListCommand creates the "list" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recipes in the recipe file",
		Long: `List every recipe with its description and prerequisites.

Examples:
  galley list
  galley list --json`,

		// No positional arguments are required for the list command.
		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd)
		},
	}
}

// runList loads the recipe file and prints its recipes.
func runList(cmd *cobra.Command) error {
	file, _, err := loadProject(cmd.Flags())
	if err != nil {
		return err
	}
	VerboseLog("Using recipe file %s", file.Path)

	if IsJSONOutput() {
		return printListJSON(file)
	}
	printListText(file)
	return nil
}

// listRecipeJSON is the JSON output structure for a single recipe.
type listRecipeJSON struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Needs       []string `json:"needs,omitempty"`
	Container   string   `json:"container,omitempty"`
}

// printListJSON outputs the recipe list as structured JSON under a
// top-level "recipes" key.
func printListJSON(file *recipe.File) error {
	type resultJSON struct {
		File    string           `json:"file"`
		Recipes []listRecipeJSON `json:"recipes"`
	}

	result := resultJSON{
		File: file.Path,
		// Empty slice instead of nil so empty files print [] not null.
		Recipes: make([]listRecipeJSON, 0, len(file.Recipes)),
	}
	for _, name := range file.Names() {
		r := file.Recipes[name]
		result.Recipes = append(result.Recipes, listRecipeJSON{
			Name:        r.Name,
			Description: r.Description,
			Needs:       r.Needs,
			Container:   r.Container,
		})
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to encode recipe list", err)
	}
	fmt.Println(string(data))
	return nil
}

// printListText outputs the recipe list as a fixed-width text table.
func printListText(file *recipe.File) {
	names := file.Names()
	if len(names) == 0 {
		fmt.Println("No recipes defined.")
		return
	}

	fmt.Fprintf(os.Stdout, "%-20s %-40s %s\n", "NAME", "DESCRIPTION", "NEEDS")
	for _, name := range names {
		fmt.Fprintln(os.Stdout, formatRecipeRow(file.Recipes[name]))
	}
}

// formatRecipeRow renders one table line for a recipe. Pure, so the
// layout is testable without capturing stdout.
func formatRecipeRow(r *model.Recipe) string {
	desc := r.Description
	if desc == "" && r.Container != "" {
		desc = "(in " + r.Container + ")"
	}
	return fmt.Sprintf("%-20s %-40s %s", r.Name, desc, strings.Join(r.Needs, ", "))
}
