// Package config loads the server daemon's optional file/environment
// overlay on top of its command-line flags. The CLI flags
// (-p/-d/-w/-a/-h) are the primary interface and always take precedence
// over the netcosmd.yaml / NETCOSMD_* layer underneath them.
package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// File is the shape of netcosmd.yaml / NETCOSMD_* environment overlay.
// Every field is optional; a zero value means "let the CLI flag or its
// built-in default stand."
type File struct {
	Port         int    `koanf:"port"`
	DataDir      string `koanf:"data_dir"`
	World        string `koanf:"world"`
	SaveInterval int    `koanf:"save_interval"`
}

// Load reads path (if it exists) and any NETCOSMD_-prefixed environment
// variables into a File. A missing config file is not an error; it
// just means the CLI flags and their defaults are all there is.
func Load(path string) (File, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return File{}, err
			}
		}
	}

	// NETCOSMD_SAVE_INTERVAL -> save_interval, matching the koanf tags on
	// File; the underscores inside a field name survive because "." is the
	// key delimiter, not "_".
	_ = k.Load(env.Provider("NETCOSMD_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "NETCOSMD_"))
	}), nil)

	var f File
	if err := k.Unmarshal("", &f); err != nil {
		return File{}, err
	}
	return f, nil
}

// Merge overlays non-zero File fields onto CLI-flag-derived values,
// leaving any flag the user actually set on the command line untouched.
// explicit is the set of flag names flag.Visit saw set; every flag in
// this package is declared with a non-zero built-in default, so checking
// the pointer's value against its zero value would never detect "the user
// didn't pass this flag" and the overlay could never take effect.
func Merge(port *int, dataDir, world *string, saveInterval *int, f File, explicit map[string]bool) {
	if !explicit["p"] && f.Port != 0 {
		*port = f.Port
	}
	if !explicit["d"] && f.DataDir != "" {
		*dataDir = f.DataDir
	}
	if !explicit["w"] && f.World != "" {
		*world = f.World
	}
	if !explicit["save-interval"] && f.SaveInterval != 0 {
		*saveInterval = f.SaveInterval
	}
}
