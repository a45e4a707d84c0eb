package recipe

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/kitamorio/galley/internal/model"
)

// fileNames are the recipe file names probed in each directory, in
// priority order. YAML is preferred; JSONC is the alternative for
// projects that want comments with JSON tooling.
var fileNames = []string{"galley.yaml", "galley.yml", "galley.jsonc"}

// maxUpwardSearchLevels bounds how far up the directory tree FindFile
// searches for a recipe file before giving up.
const maxUpwardSearchLevels = 10

// DefaultShell is the interpreter used for recipe commands when the file
// does not override it. The command string is passed as the single
// argument after "-c", matching how make and just invoke their shells.
var DefaultShell = []string{"/bin/sh", "-c"}

// File is a parsed, validated recipe file. It is immutable after Load:
// the executor and graph only read from it.
type File struct {
	// Path is the absolute path of the recipe file.
	Path string

	// Dir is the directory containing the recipe file. Recipe working
	// directories and watch paths resolve relative to it.
	Dir string

	// Shell is the interpreter argv used to run commands. The command
	// string is appended as the final argument.
	Shell []string

	// Env holds file-wide environment variables, applied to every
	// recipe's process underneath the recipe's own env.
	Env map[string]string

	// Recipes maps recipe name to definition.
	Recipes map[string]*model.Recipe
}

// rawFile mirrors the on-disk schema for both YAML and JSONC decoding.
// model.Recipe carries both json and yaml tags, so the same struct works
// for either decoder.
type rawFile struct {
	Shell   []string                 `json:"shell,omitempty" yaml:"shell,omitempty"`
	Env     map[string]string        `json:"env,omitempty" yaml:"env,omitempty"`
	Recipes map[string]*model.Recipe `json:"recipes" yaml:"recipes"`
}

// FindFile searches for a recipe file starting at startDir and walking
// upward toward the filesystem root, bounded by maxUpwardSearchLevels.
//
// Searching upward lets "galley test" work from any subdirectory of a
// project, the same way git finds its repository root.
//
// Returns the absolute path of the first file found, or a CLIError with
// ExitRecipeFileError if none exists within the search bound.
func FindFile(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", model.WrapCLIError(model.ExitRecipeFileError, "failed to resolve search directory", err)
	}

	for i := 0; i < maxUpwardSearchLevels; i++ {
		for _, name := range fileNames {
			candidate := filepath.Join(dir, name)
			// os.Stat checks existence without reading contents.
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root.
			break
		}
		dir = parent
	}

	return "", model.NewCLIError(model.ExitRecipeFileError,
		fmt.Sprintf("no recipe file found (searched %s upward from %s)", strings.Join(fileNames, ", "), startDir))
}

// Load reads and parses the recipe file at the given path, then validates
// the result. The format is chosen by file extension: .jsonc is parsed as
// JSON with comments, everything else as YAML.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.WrapCLIError(model.ExitRecipeFileError,
				fmt.Sprintf("recipe file not found: %s", path), err)
		}
		return nil, model.WrapCLIError(model.ExitRecipeFileError,
			fmt.Sprintf("failed to read recipe file %s", path), err)
	}

	var raw rawFile
	if strings.EqualFold(filepath.Ext(path), ".jsonc") {
		// Strip // and /* */ comments and trailing commas, then parse
		// with the standard library. encoding/json silently ignores
		// unknown fields, which keeps older galley versions tolerant of
		// newer file features.
		if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
			return nil, model.WrapCLIError(model.ExitRecipeFileError,
				fmt.Sprintf("failed to parse %s", path), err)
		}
	} else {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, model.WrapCLIError(model.ExitRecipeFileError,
				fmt.Sprintf("failed to parse %s", path), err)
		}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitRecipeFileError, "failed to resolve recipe file path", err)
	}

	f := &File{
		Path:    abs,
		Dir:     filepath.Dir(abs),
		Shell:   raw.Shell,
		Env:     raw.Env,
		Recipes: raw.Recipes,
	}
	if len(f.Shell) == 0 {
		f.Shell = DefaultShell
	}
	if f.Recipes == nil {
		f.Recipes = map[string]*model.Recipe{}
	}

	// Stamp each recipe with its map key. The name lives in the key on
	// disk, but downstream code (graph, executor, output) wants it on
	// the struct.
	for name, r := range f.Recipes {
		if r == nil {
			// YAML allows "name:" with no body; normalize to an empty
			// grouping recipe so validation reports it coherently.
			r = &model.Recipe{}
			f.Recipes[name] = r
		}
		r.Name = name
	}

	if err := f.validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// validate checks the structural rules of a recipe file:
//   - every recipe name is valid
//   - every recipe has a command, prerequisites, or both
//   - every prerequisite references an existing recipe and is not the
//     recipe itself
//
// Cycle detection across prerequisites is the graph package's job;
// validate only catches what is visible per-recipe.
func (f *File) validate() error {
	for name, r := range f.Recipes {
		if err := model.ValidateName(name); err != nil {
			return model.WrapCLIError(model.ExitRecipeFileError,
				fmt.Sprintf("invalid recipe in %s", f.Path), err)
		}

		if !r.HasCommand() && len(r.Needs) == 0 {
			return model.NewCLIError(model.ExitRecipeFileError,
				fmt.Sprintf("recipe %q has neither a command nor prerequisites", name))
		}

		for _, dep := range r.Needs {
			if dep == name {
				return model.NewCLIError(model.ExitDependencyCycle,
					fmt.Sprintf("recipe %q lists itself as a prerequisite", name))
			}
			if _, ok := f.Recipes[dep]; !ok {
				return model.NewCLIError(model.ExitRecipeFileError,
					fmt.Sprintf("recipe %q needs unknown recipe %q", name, dep))
			}
		}
	}
	return nil
}

// Get returns the named recipe, or a CLIError with ExitRecipeNotFound
// listing the available names — the error users hit most, so it should
// be self-explanatory.
func (f *File) Get(name string) (*model.Recipe, error) {
	r, ok := f.Recipes[name]
	if !ok {
		return nil, model.NewCLIError(model.ExitRecipeNotFound,
			fmt.Sprintf("recipe %q not found (available: %s)", name, strings.Join(f.Names(), ", ")))
	}
	return r, nil
}

// Names returns all recipe names sorted alphabetically, for stable list
// output and error messages.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Recipes))
	for name := range f.Recipes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
