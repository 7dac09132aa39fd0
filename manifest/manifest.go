// Package manifest handles clasp.toml project configuration.
package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// FileName is the manifest file looked up in project directories.
const FileName = "clasp.toml"

// Environment variables that override manifest settings.
const (
	EnvTrace            = "CLASP_TRACE"
	EnvCollectThreshold = "CLASP_COLLECT_THRESHOLD"
	EnvLogVerbosity     = "CLASP_LOG_VERBOSITY"
	EnvCache            = "CLASP_CACHE"
)

// Manifest represents a clasp.toml project configuration.
type Manifest struct {
	Project Project     `toml:"project"`
	Run     Run         `toml:"run"`
	VM      VMConfig    `toml:"vm"`
	Log     LogConfig   `toml:"log"`
	Cache   CacheConfig `toml:"cache"`

	// Dir is the directory containing the clasp.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Run configures what `clasp run` executes when no file is given.
type Run struct {
	Entry string `toml:"entry"` // source file or image, relative to Dir
}

// VMConfig configures the virtual machine.
type VMConfig struct {
	Trace            bool `toml:"trace"`
	CollectThreshold int  `toml:"collect-threshold"`
}

// LogConfig configures commonlog.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// CacheConfig configures the compiled-program cache.
type CacheConfig struct {
	Path string `toml:"path"` // empty disables the cache
}

// Default returns the configuration used when no clasp.toml exists.
func Default() *Manifest {
	dir, _ := os.Getwd()
	return &Manifest{Dir: dir}
}

// Load parses a clasp.toml file from the given directory and applies
// environment overrides.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
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

	if err := m.ApplyEnv(); err != nil {
		return nil, err
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a clasp.toml file,
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

// ApplyEnv overrides settings from Dir/.env and then from the process
// environment. The .env file is read, never exported into the process.
func (m *Manifest) ApplyEnv() error {
	env := map[string]string{}
	if m.Dir != "" {
		path := filepath.Join(m.Dir, ".env")
		values, err := godotenv.Read(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("cannot read %s: %w", path, err)
		}
		for k, v := range values {
			env[k] = v
		}
	}
	for _, key := range []string{EnvTrace, EnvCollectThreshold, EnvLogVerbosity, EnvCache} {
		if v, ok := os.LookupEnv(key); ok {
			env[key] = v
		}
	}
	return m.apply(env)
}

func (m *Manifest) apply(env map[string]string) error {
	if v, ok := env[EnvTrace]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTrace, err)
		}
		m.VM.Trace = b
	}
	if v, ok := env[EnvCollectThreshold]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvCollectThreshold, err)
		}
		m.VM.CollectThreshold = n
	}
	if v, ok := env[EnvLogVerbosity]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvLogVerbosity, err)
		}
		m.Log.Verbosity = n
	}
	if v, ok := env[EnvCache]; ok {
		m.Cache.Path = v
	}
	return nil
}

// EntryPath returns the absolute path of the configured entry, or "" if none.
func (m *Manifest) EntryPath() string {
	return m.resolve(m.Run.Entry)
}

// CachePath returns the absolute path of the cache database, or "" if the
// cache is disabled.
func (m *Manifest) CachePath() string {
	return m.resolve(m.Cache.Path)
}

// LogPath returns the absolute path of the log file, or "" for stderr.
func (m *Manifest) LogPath() string {
	return m.resolve(m.Log.File)
}

func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
