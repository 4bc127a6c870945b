// Package config resolves coordinator settings from an INI file plus command
// line overrides. Precedence is flags over file over built-in defaults.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Defaults.
const (
	DefaultHost       = "localhost"
	DefaultClientPort = 8765
	DefaultUIPort     = 4567
	DefaultModel      = "gpt-5-nano"
)

// Config is the fully resolved coordinator configuration.
type Config struct {
	Host       string
	ClientPort int
	UIPort     int
	Model      string

	// Runs are paths of run blobs preloaded into the history at startup.
	Runs []string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Host:       DefaultHost,
		ClientPort: DefaultClientPort,
		UIPort:     DefaultUIPort,
		Model:      DefaultModel,
	}
}

// Load reads the INI file at path and overlays it on the defaults. Keys may
// live in a [debugger], [server], or [default] section, or at top level;
// the first section that has the key wins.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("ini")
	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if s, ok := getString(v, "host"); ok {
		cfg.Host = s
	}
	if n, ok := getInt(v, "client_port"); ok {
		cfg.ClientPort = n
	}
	if n, ok := getInt(v, "ui_port"); ok {
		cfg.UIPort = n
	}
	if s, ok := getString(v, "model"); ok {
		cfg.Model = s
	}
	if s, ok := getString(v, "runs"); ok {
		cfg.Runs = SplitRuns(s)
	}

	return cfg, nil
}

// SplitRuns splits a runs value on commas and whitespace, dropping empties.
func SplitRuns(s string) []string {
	var runs []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	}) {
		if part = strings.TrimSpace(part); part != "" {
			runs = append(runs, part)
		}
	}
	return runs
}

var sections = []string{"debugger", "server", "default"}

func getString(v *viper.Viper, key string) (string, bool) {
	for _, qualified := range candidates(key) {
		if v.IsSet(qualified) {
			return v.GetString(qualified), true
		}
	}
	return "", false
}

func getInt(v *viper.Viper, key string) (int, bool) {
	for _, qualified := range candidates(key) {
		if v.IsSet(qualified) {
			return v.GetInt(qualified), true
		}
	}
	return 0, false
}

func candidates(key string) []string {
	out := make([]string, 0, len(sections)+1)
	for _, s := range sections {
		out = append(out, s+"."+key)
	}
	return append(out, key)
}
