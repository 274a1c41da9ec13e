package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Environment variables that relocate chdiff's files.
const (
	ConfigPathEnv = "CHDIFF_CONFIG_PATH"
	HomeEnv       = "CHDIFF_HOME"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - CHDIFF_CONFIG_PATH: config file location (default: ~/.config/chdiff.toml)
//   - CHDIFF_HOME: base directory for chdiff data (default: ~/.local/share/chdiff)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// getConfigPath returns the config file path, checking CHDIFF_CONFIG_PATH
// first, then falling back to ~/.config/chdiff.toml.
func getConfigPath() (string, error) {
	return envOrHome(ConfigPathEnv, ".config", "chdiff.toml")
}

// getBaseDir returns the directory holding the log, the history database and
// the ignore file, checking CHDIFF_HOME first, then falling back to the XDG
// default ~/.local/share/chdiff.
func getBaseDir() (string, error) {
	return envOrHome(HomeEnv, ".local", "share", "chdiff")
}

// envOrHome returns the value of env, or elem joined below the user's home
// directory when env is unset or empty.
func envOrHome(env string, elem ...string) (string, error) {
	if path := os.Getenv(env); path != "" {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(append([]string{homeDir}, elem...)...), nil
}
