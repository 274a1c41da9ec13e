package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"chdiff/internal/chdiff"
)

// Config represents the main configuration for chdiff.
type Config struct {
	BaseDir      string           `toml:"base_dir"`
	LogDir       string           `toml:"log_dir"`
	Method       string           `toml:"method"`
	Jobs         int              `toml:"jobs"`          // digest workers per scan; 0 = number of CPUs
	ParallelDirs int              `toml:"parallel_dirs"` // directories processed at once by batch commands
	Database     DatabaseConfig   `toml:"database"`
	Filesystem   FilesystemConfig `toml:"filesystem"`
	Backup       BackupConfig     `toml:"backup"`
	Log          LogConfig        `toml:"log"`
}

// DatabaseConfig represents configuration for the run history database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// FilesystemConfig holds filesystem-related settings.
type FilesystemConfig struct {
	Ignore     []string `toml:"ignore"`
	IgnoreFile string   `toml:"ignore_file,omitempty"` // extra patterns, one per line
	ReadRate   int64    `toml:"read_rate"`             // bytes per second per scan; 0 = unlimited
}

// BackupConfig holds settings of the backup engine.
type BackupConfig struct {
	NameAttempts int `toml:"name_attempts"`
}

// LogConfig controls rotation of the log file.
type LogConfig struct {
	MaxSizeMB  int `toml:"max_size_mb"`
	MaxBackups int `toml:"max_backups"`
}

// NewConfig creates a Config with every setting at its default value.
func NewConfig(baseDir string) *Config {
	cfg := &Config{BaseDir: baseDir}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills every unset value.
func (c *Config) applyDefaults() {
	if c.LogDir == "" && c.BaseDir != "" {
		c.LogDir = filepath.Join(c.BaseDir, "log")
	}
	if c.Method == "" {
		c.Method = string(chdiff.DefaultMethod)
	}
	if c.ParallelDirs == 0 {
		c.ParallelDirs = 1
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.Type == "sqlite" && c.Database.DataDir == "" && c.BaseDir != "" {
		c.Database.DataDir = filepath.Join(c.BaseDir, "db")
	}
	if c.Filesystem.IgnoreFile == "" && c.BaseDir != "" {
		c.Filesystem.IgnoreFile = filepath.Join(c.BaseDir, "ignore")
	}
	if c.Backup.NameAttempts == 0 {
		c.Backup.NameAttempts = 5
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 10
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 3
	}
}

// Validate reports the first setting that is out of range.
func (c *Config) Validate() error {
	if _, err := chdiff.ParseMethod(c.Method); err != nil {
		return err
	}
	switch {
	case c.Jobs < 0:
		return fmt.Errorf("jobs must not be negative, got %d", c.Jobs)
	case c.ParallelDirs < 1:
		return fmt.Errorf("parallel_dirs must be at least 1, got %d", c.ParallelDirs)
	case c.Filesystem.ReadRate < 0:
		return fmt.Errorf("filesystem.read_rate must not be negative, got %d", c.Filesystem.ReadRate)
	case c.Backup.NameAttempts < 1:
		return fmt.Errorf("backup.name_attempts must be at least 1, got %d", c.Backup.NameAttempts)
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader. Unknown keys are rejected so
// typos do not silently fall back to defaults.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	md, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// Load reads the config file at path and fills unset values with defaults
// derived from baseDir. A missing file yields the defaults.
func Load(path, baseDir string) (*Config, error) {
	cfg, err := ReadFromFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = &Config{}, nil
	}
	if err != nil {
		return nil, err
	}
	if cfg.BaseDir == "" {
		cfg.BaseDir = baseDir
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
