package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/kitamorio/galley/internal/model"
)

// Load assembles Settings from all layers. projectRoot is the directory
// holding the recipe file; flags may be nil.
//
// Precedence, highest first: changed flags, GALLEY_* environment
// variables, <projectRoot>/.galleyrc.yaml, ~/.galleyrc.yaml, defaults.
func Load(projectRoot string, flags *pflag.FlagSet) (*Settings, error) {
	k := koanf.New(".")

	// 1. Defaults.
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"jobs":        DefaultJobs,
		"color":       true,
		"verbose":     false,
		"ignore_dirs": []string{"target"},
	}, "."), nil); err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError, "failed to load default settings", err)
	}

	// 2. Home rc file, then project rc file (project wins on conflicts).
	for _, path := range rcFilePaths(projectRoot) {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, model.WrapCLIError(model.ExitGeneralError,
				"failed to read settings file "+path, err)
		}
	}

	// 3. Environment: GALLEY_JOBS -> jobs, GALLEY_RECIPE_FILE -> recipe_file.
	if err := k.Load(env.Provider("GALLEY_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "GALLEY_"))
	}), nil); err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError, "failed to load environment settings", err)
	}

	// 4. Flags, only those the user actually set.
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			// The flag is named --file for brevity; the settings key
			// says what the file is.
			if key == "file" {
				return "recipe_file", posflag.FlagVal(flags, f)
			}
			// --no-color is the flag surface; the settings key is
			// positive.
			if key == "no_color" {
				if v, _ := flags.GetBool(f.Name); v {
					return "color", false
				}
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, model.WrapCLIError(model.ExitGeneralError, "failed to load flag settings", err)
		}
	}

	var settings Settings
	if err := k.Unmarshal("", &settings); err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError, "failed to decode settings", err)
	}
	if settings.Jobs < 1 {
		settings.Jobs = DefaultJobs
	}
	return &settings, nil
}

// rcFilePaths returns candidate settings files in ascending precedence.
func rcFilePaths(projectRoot string) []string {
	var paths []string
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, rcFileName))
	}
	if projectRoot != "" {
		paths = append(paths, filepath.Join(projectRoot, rcFileName))
	}
	return paths
}
