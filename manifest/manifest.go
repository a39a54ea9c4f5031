// Package manifest handles pushkin.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Manifest represents a pushkin.toml project configuration.
type Manifest struct {
	Project Project       `toml:"project"`
	Run     RunConfig     `toml:"run"`
	Journal JournalConfig `toml:"journal"`
	Server  ServerConfig  `toml:"server"`

	// Dir is the directory containing the pushkin.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// RunConfig configures local program execution.
type RunConfig struct {
	Trace bool `toml:"trace"`
	Dump  bool `toml:"dump"`
}

// JournalConfig configures the run journal.
type JournalConfig struct {
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
}

// ServerConfig configures the execution service.
type ServerConfig struct {
	Addr        string   `toml:"addr"`
	EvalTimeout duration `toml:"eval-timeout"`
}

// duration wraps time.Duration so it parses from "2s" style strings.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Load parses a pushkin.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "pushkin.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults()
	return &m, nil
}

// FindAndLoad walks up from startDir to find a pushkin.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "pushkin.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Default returns a manifest with defaults applied and no backing file.
func Default() *Manifest {
	var m Manifest
	m.applyDefaults()
	return &m
}

func (m *Manifest) applyDefaults() {
	if m.Journal.Driver == "" {
		m.Journal.Driver = "sqlite"
	}
	if m.Journal.Path == "" {
		m.Journal.Path = filepath.Join(".pushkin", "journal.db")
	}
	if m.Server.Addr == "" {
		m.Server.Addr = ":8714"
	}
	if m.Server.EvalTimeout.Duration == 0 {
		m.Server.EvalTimeout.Duration = 10 * time.Second
	}
}

// JournalDSN returns the journal path resolved against the manifest
// directory, or unchanged when no manifest file was loaded.
func (m *Manifest) JournalDSN() string {
	if m.Dir == "" || filepath.IsAbs(m.Journal.Path) {
		return m.Journal.Path
	}
	return filepath.Join(m.Dir, m.Journal.Path)
}
