package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config file names, in lookup order.
const (
	ConfigFileName    = "queryplus.yaml"
	ConfigFileNameAlt = "queryplus.yml"
)

// EnvPrefix prefixes environment overrides. A double underscore separates
// nested keys: QUERYPLUS_LINT__DISABLED=QP006.
const EnvPrefix = "QUERYPLUS_"

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// flagKeys maps CLI flag names onto config keys where they differ.
var flagKeys = map[string]string{
	"disable":  "lint.disabled",
	"store":    "store_path",
	"metadata": "metadata_file",
}

// configFileIn returns the config file in dir, or "" if there is none.
func configFileIn(dir string) string {
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// FindConfigFile searches upward from startDir for a config file.
// Returns empty string if not found within maxUpwardSearchLevels.
func FindConfigFile(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if path := configFileIn(dir); path != "" {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
// Only flags the user changed take part.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return load(cfgFile, cwd, flags)
}

func load(cfgFile, startDir string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	if cfgFile == "" {
		cfgFile = FindConfigFile(startDir)
	}
	projectRoot := startDir
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
		if abs, err := filepath.Abs(cfgFile); err == nil {
			projectRoot = filepath.Dir(abs)
		}
	}

	// 3. Environment: QUERYPLUS_LOG_LEVEL -> log_level
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	var flagPaths map[string]string
	if flags != nil {
		flagPaths = changedPathFlags(flags)
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Decode
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// 6. Paths from the config file or defaults are relative to the project
	// root. Paths given as flags are relative to the working directory.
	cfg.ProjectRoot = projectRoot
	cfg.ConfigFile = cfgFile
	if p, ok := flagPaths["store_path"]; ok {
		cfg.StorePath = p
	} else {
		cfg.StorePath = resolvePathRelativeTo(cfg.StorePath, projectRoot)
	}
	if p, ok := flagPaths["metadata_file"]; ok {
		cfg.MetadataFile = p
	} else {
		cfg.MetadataFile = resolvePathRelativeTo(cfg.MetadataFile, projectRoot)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// changedPathFlags returns absolute paths for path flags the user set.
func changedPathFlags(flags *pflag.FlagSet) map[string]string {
	out := map[string]string{}
	for name, key := range map[string]string{"store": "store_path", "metadata": "metadata_file"} {
		f := flags.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		v := f.Value.String()
		if v == ":memory:" || v == "" {
			out[key] = v
			continue
		}
		if abs, err := filepath.Abs(v); err == nil {
			out[key] = abs
		} else {
			out[key] = v
		}
	}
	return out
}

// LoadFromDir loads configuration for a project directory without flags. The
// config file is searched upward from dir.
func LoadFromDir(dir string) (*Config, error) {
	return load("", dir, nil)
}
