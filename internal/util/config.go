package util

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ConfigFileName is looked up in KsxHome when no file is given.
const ConfigFileName = "ksx.toml"

type Configuration struct {
	Version   string `toml:"-"`
	BuildDate string `toml:"-"`
	Commit    string `toml:"-"`

	RootPath string `toml:"root"`
	KsxHome  string `toml:"-"`
	DebugAST bool   `toml:"debug_ast"`

	// MaxHistory bounds the runs the script manager keeps.
	MaxHistory int `toml:"max_history"`
	// HistoryDSN selects the run history database; empty disables it.
	HistoryDSN string `toml:"history_dsn"`

	LogLevel string `toml:"log_level"`
	LogFile  string `toml:"log_file"`
	// Color is auto, always or never.
	Color string `toml:"color"`
}

func DefaultConfiguration() Configuration {
	return Configuration{
		RootPath:   ".",
		KsxHome:    os.Getenv("KSX_HOME"),
		MaxHistory: 128,
		LogLevel:   "none",
		Color:      "auto",
	}
}

// DefaultConfigPath returns the configuration file in KsxHome, or "" when
// KsxHome is not set.
func (c Configuration) DefaultConfigPath() string {
	if c.KsxHome == "" {
		return ""
	}
	return filepath.Join(c.KsxHome, ConfigFileName)
}

// LoadFile overlays the settings in a TOML file onto c. A missing file is
// not an error when optional is set.
func (c *Configuration) LoadFile(path string, optional bool) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load configuration %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load configuration %s: unknown keys %v", path, undecoded)
	}
	return c.Validate()
}

func (c Configuration) Validate() error {
	switch c.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("invalid color mode %q, want auto, always or never", c.Color)
	}
	if c.MaxHistory < 1 {
		return fmt.Errorf("max_history must be positive, got %d", c.MaxHistory)
	}
	return nil
}
