// Package manifest handles pix.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the project configuration file.
const FileName = "pix.toml"

// Manifest represents a pix.toml project configuration. Keys absent from the
// file keep the values of Default.
type Manifest struct {
	Project Project      `toml:"project" json:"project"`
	Memory  Memory       `toml:"memory" json:"memory"`
	Run     Run          `toml:"run" json:"run"`
	Debug   Debug        `toml:"debug" json:"debug"`
	Cache   CacheConfig  `toml:"cache" json:"cache"`
	Server  ServerConfig `toml:"server" json:"server"`

	// Dir is the directory containing the pix.toml file (set at load time).
	Dir string `toml:"-" json:"-"`
}

// Project contains project metadata.
type Project struct {
	Name  string `toml:"name" json:"name"`
	Entry string `toml:"entry" json:"entry"`
}

// Memory sizes the VM image. The image is width*height bytes, the same
// surface a renderer would map one byte per pixel.
type Memory struct {
	Width  int `toml:"width" json:"width"`
	Height int `toml:"height" json:"height"`
}

// Run configures execution.
type Run struct {
	Quantum  int  `toml:"quantum" json:"quantum"`
	MaxSteps int  `toml:"max-steps" json:"max-steps"`
	NoExec   bool `toml:"no-exec" json:"no-exec"`
}

// Debug selects diagnostic dumps.
type Debug struct {
	Tokens bool `toml:"tokens" json:"tokens"`
	Code   bool `toml:"code" json:"code"`
	Trace  bool `toml:"trace" json:"trace"`
}

// CacheConfig locates the compiled image cache.
type CacheConfig struct {
	Path string `toml:"path" json:"path"`
}

// ServerConfig configures the compile/run service.
type ServerConfig struct {
	Addr string `toml:"addr" json:"addr"`
}

// Default returns the configuration used when no pix.toml exists.
func Default() *Manifest {
	return &Manifest{
		Project: Project{Entry: "main.pix"},
		Memory:  Memory{Width: 256, Height: 256},
		Run:     Run{Quantum: 1000},
		Cache:   CacheConfig{Path: filepath.Join(".pix", "cache.db")},
		Server:  ServerConfig{Addr: ":4567"},
	}
}

// Parse decodes and validates pix.toml content over the defaults.
func Parse(data []byte) (*Manifest, error) {
	m := Default()
	if _, err := toml.Decode(string(data), m); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if err := Validate(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Load parses a pix.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return m, nil
}

// FindAndLoad walks up from startDir to find a pix.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
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

// MemorySize returns the image size in bytes.
func (m *Manifest) MemorySize() int {
	return m.Memory.Width * m.Memory.Height
}

// resolve joins p to the manifest directory unless it is absolute.
func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || m.Dir == "" {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// EntryPath returns the path of the entry source file.
func (m *Manifest) EntryPath() string {
	return m.resolve(m.Project.Entry)
}

// CachePath returns the path of the image cache database.
func (m *Manifest) CachePath() string {
	return m.resolve(m.Cache.Path)
}
