// config.go — YAML configuration for the hnix CLI and embedding hosts.
package hnix

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds CLI/session settings. The NIX_PATH environment variable, when
// set, takes precedence over the configured search path.
type Config struct {
	SearchPath  []string `yaml:"searchPath"`
	Trace       bool     `yaml:"trace"`
	HistoryFile string   `yaml:"historyFile"`
	Color       string   `yaml:"color"` // auto | always | never
}

// DefaultConfig returns the settings used when no config file exists.
func DefaultConfig() Config {
	return Config{
		HistoryFile: ".hnix_history",
		Color:       "auto",
	}
}

// LoadConfig reads a YAML config file. A missing file yields the defaults;
// an unreadable or malformed file is an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	if cfg.Color == "" {
		cfg.Color = "auto"
	}
	return cfg, nil
}

// EffectiveSearchPath merges the environment and the config: NIX_PATH
// entries first, then configured entries.
func (c Config) EffectiveSearchPath() []string {
	var out []string
	if env := os.Getenv("NIX_PATH"); env != "" {
		for _, e := range ParseSearchPath(env) {
			if e.Prefix != "" {
				out = append(out, e.Prefix+"="+e.Root)
			} else {
				out = append(out, e.Root)
			}
		}
	}
	out = append(out, c.SearchPath...)
	return out
}
