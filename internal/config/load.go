package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvConfigPath names the environment variable that points at a config
// file when no --config flag is given.
const EnvConfigPath = "DPT_CONFIG"

// Source records which rule selected the config path.
type Source string

const (
	SourceFlag Source = "flag"
	SourceEnv  Source = "env"
	SourceXDG  Source = "xdg"
	SourceHome Source = "home"
)

// Loaded is a resolved configuration plus where it came from.
type Loaded struct {
	Path     string
	Source   Source
	Config   Config
	Warnings []Warning
	Exists   bool
	// Overrides lists the environment variables that replaced file values.
	Overrides []string
}

// envOverrides are applied after the file so deployments can adjust a
// shared config without editing it.
var envOverrides = []struct {
	name  string
	apply func(*Config, string)
}{
	{"DPT_LOCALE", func(c *Config, v string) { c.Voice.Locale = v }},
	{"DPT_TIMEZONE", func(c *Config, v string) { c.Parser.Timezone = v }},
	{"DPT_DICTIONARY_STORE", func(c *Config, v string) { c.Dictionary.Store = v }},
	{"DPT_CALENDAR_ICS", func(c *Config, v string) { c.Calendar.ICSPath = v }},
	{"DPT_HTTP_ADDR", func(c *Config, v string) { c.Server.HTTPAddr = v }},
	{"DPT_GRPC_ADDR", func(c *Config, v string) { c.Server.GRPCAddr = v }},
}

// ResolvePath picks the config file: the explicit flag, then DPT_CONFIG,
// then $XDG_CONFIG_HOME/dpt, then ~/.config/dpt.
func ResolvePath(explicit string) (string, Source, error) {
	if p := strings.TrimSpace(explicit); p != "" {
		return ExpandUser(p), SourceFlag, nil
	}
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return ExpandUser(p), SourceEnv, nil
	}
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "dpt", "config.jsonc"), SourceXDG, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", errors.New("unable to resolve user home for config fallback")
	}
	return filepath.Join(home, ".config", "dpt", "config.jsonc"), SourceHome, nil
}

// Load reads the config file, falling back to defaults when it is missing,
// then applies environment overrides and validates the result.
func Load(explicitPath string) (Loaded, error) {
	path, source, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}
	loaded := Loaded{Path: path, Source: source}

	content, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		loaded.Config = Default()
		loaded.Warnings = []Warning{{Message: fmt.Sprintf("config file %q not found; using defaults", path)}}
	case err != nil:
		return Loaded{}, fmt.Errorf("read config %q: %w", path, err)
	default:
		cfg, warnings, parseErr := Parse(string(content), Default())
		if parseErr != nil {
			return Loaded{}, fmt.Errorf("parse config %q: %w", path, parseErr)
		}
		loaded.Config = cfg
		loaded.Warnings = warnings
		loaded.Exists = true
	}

	for _, o := range envOverrides {
		if v := strings.TrimSpace(os.Getenv(o.name)); v != "" {
			o.apply(&loaded.Config, v)
			loaded.Overrides = append(loaded.Overrides, o.name)
		}
	}
	if len(loaded.Overrides) == 0 {
		return loaded, nil
	}

	warnings, err := Validate(loaded.Config)
	if err != nil {
		return Loaded{}, fmt.Errorf("config %q with %s: %w", path, strings.Join(loaded.Overrides, ", "), err)
	}
	loaded.Warnings = appendNewWarnings(loaded.Warnings, warnings)
	return loaded, nil
}

func appendNewWarnings(have, more []Warning) []Warning {
	seen := make(map[string]struct{}, len(have))
	for _, w := range have {
		seen[w.Message] = struct{}{}
	}
	for _, w := range more {
		if _, ok := seen[w.Message]; !ok {
			have = append(have, w)
		}
	}
	return have
}

// ExpandUser replaces a leading ~ with the user's home directory.
func ExpandUser(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw != "~" && !strings.HasPrefix(raw, "~/") {
		return raw
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return raw
	}
	return filepath.Join(home, strings.TrimPrefix(raw, "~"))
}
