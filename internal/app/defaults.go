package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment
// variables first.
// Environment variables:
//   - SVAULT_CONFIG_PATH: config file location (default: ~/.config/svault.toml)
//   - SVAULT_HOME: default project directory (default: ~/.local/share/svault)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	projectDir, err := getProjectDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"project_dir": projectDir,
		"log_dir":     filepath.Join(projectDir, "log"),
	}, nil
}

// getConfigPath returns the config file path, checking SVAULT_CONFIG_PATH
// first, then falling back to the default ~/.config/svault.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("SVAULT_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "svault.toml"), nil
}

// getProjectDir returns the default project directory, checking SVAULT_HOME
// first, then falling back to the XDG default ~/.local/share/svault.
func getProjectDir() (string, error) {
	if path := os.Getenv("SVAULT_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "svault"), nil
}
