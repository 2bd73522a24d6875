// Package config handles katago-sgf paths and the config.yaml file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/d2verb/katago-sgf/internal/pathutil"
)

// Defaults applied when config.yaml omits a key.
const (
	DefaultKataGoPath    = "katago"
	DefaultMaxVariations = 10
	DefaultMaxVisits     = 1000
	DefaultBufferLimit   = 10_000_000
)

// Paths holds common paths used by katago-sgf.
type Paths struct {
	Home      string
	Config    string
	Socket    string
	PID       string
	Logs      string
	DaemonLog string
	EngineLog string
}

// GetPaths returns the paths for the current user.
func GetPaths() (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return PathsUnder(filepath.Join(home, ".katago-sgf")), nil
}

// PathsUnder returns the layout rooted at dir.
func PathsUnder(dir string) *Paths {
	logsDir := filepath.Join(dir, "logs")
	return &Paths{
		Home:      dir,
		Config:    filepath.Join(dir, "config.yaml"),
		Socket:    filepath.Join(dir, "daemon.sock"),
		PID:       filepath.Join(dir, "daemon.pid"),
		Logs:      logsDir,
		DaemonLog: filepath.Join(logsDir, "daemon.log"),
		EngineLog: filepath.Join(logsDir, "katago.log"),
	}
}

// EnsureDirectories creates the required directories if they don't exist.
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.Home, p.Logs} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// Config is the daemon and engine configuration.
type Config struct {
	KataGoPath     string        `yaml:"katago_path"`
	AnalysisConfig string        `yaml:"analysis_config,omitempty"`
	ExtraArgs      []string      `yaml:"extra_args,omitempty"`
	SourceDir      string        `yaml:"source_dir,omitempty"`
	DestinationDir string        `yaml:"destination_dir,omitempty"`
	MaxVariations  int           `yaml:"max_variations"`
	MaxVisits      int           `yaml:"max_visits"`
	Listen         string        `yaml:"listen"`
	JobTimeout     time.Duration `yaml:"job_timeout,omitempty"`
	BufferLimit    int           `yaml:"buffer_limit"`
}

// Default returns the configuration used when no file exists.
func Default(paths *Paths) *Config {
	return &Config{
		KataGoPath:    DefaultKataGoPath,
		MaxVariations: DefaultMaxVariations,
		MaxVisits:     DefaultMaxVisits,
		Listen:        "unix:" + paths.Socket,
		BufferLimit:   DefaultBufferLimit,
	}
}

// Load reads the config file at path over the defaults. A missing file
// yields the defaults. Relative paths in the file are resolved from the
// file's directory.
func Load(path string, paths *Paths) (*Config, error) {
	cfg := Default(paths)

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.resolvePaths(filepath.Dir(path)); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) resolvePaths(baseDir string) error {
	fields := []struct {
		name string
		ptr  *string
	}{
		{"analysis_config", &c.AnalysisConfig},
		{"source_dir", &c.SourceDir},
		{"destination_dir", &c.DestinationDir},
	}
	// A bare executable name is looked up on $PATH.
	if strings.ContainsRune(c.KataGoPath, filepath.Separator) || strings.HasPrefix(c.KataGoPath, "~/") {
		fields = append(fields, struct {
			name string
			ptr  *string
		}{"katago_path", &c.KataGoPath})
	}

	for _, f := range fields {
		if *f.ptr == "" {
			continue
		}
		resolved, err := pathutil.ResolvePath(*f.ptr, baseDir)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", f.name, err)
		}
		*f.ptr = resolved
	}

	network, address, err := ParseListen(c.Listen)
	if err != nil {
		return err
	}
	if network == "unix" {
		resolved, err := pathutil.ResolvePath(address, baseDir)
		if err != nil {
			return fmt.Errorf("resolve listen: %w", err)
		}
		c.Listen = "unix:" + resolved
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.KataGoPath == "":
		return errors.New("katago_path is required")
	case c.MaxVariations < 0:
		return fmt.Errorf("max_variations must be >= 0, got %d", c.MaxVariations)
	case c.MaxVisits < 0:
		return fmt.Errorf("max_visits must be >= 0, got %d", c.MaxVisits)
	case c.JobTimeout < 0:
		return fmt.Errorf("job_timeout must be >= 0, got %s", c.JobTimeout)
	case c.BufferLimit <= 0:
		return fmt.Errorf("buffer_limit must be > 0, got %d", c.BufferLimit)
	}
	_, _, err := ParseListen(c.Listen)
	return err
}

// Save writes the configuration as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// ParseListen splits a listen address into a network and address.
// Accepted forms are "unix:/path/to.sock", "tcp:host:port", and a bare
// socket path.
func ParseListen(listen string) (network, address string, err error) {
	switch {
	case strings.HasPrefix(listen, "unix:"):
		network, address = "unix", strings.TrimPrefix(listen, "unix:")
	case strings.HasPrefix(listen, "tcp:"):
		network, address = "tcp", strings.TrimPrefix(listen, "tcp:")
		if !strings.Contains(address, ":") {
			return "", "", fmt.Errorf("listen %q: tcp address needs host:port", listen)
		}
	case strings.ContainsRune(listen, filepath.Separator):
		network, address = "unix", listen
	default:
		return "", "", fmt.Errorf("listen %q: want unix:PATH or tcp:HOST:PORT", listen)
	}
	if address == "" {
		return "", "", fmt.Errorf("listen %q: empty address", listen)
	}
	return network, address, nil
}
