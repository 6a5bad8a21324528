// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// AppName names the per-user config and data directories.
const AppName = "llmcli"

const (
	SettingsFileName = "settings.toml"
	ModelsFileName   = "models.yaml"
	PromptsDirName   = "prompts"
	HistoryFileName  = "history"
	LogFileName      = "llmcli.log"
	ChatsDirName     = "chats"
)

// Paths lists every location llmcli reads from or writes to.
type Paths struct {
	ConfigDir    string
	DataDir      string
	ChatDir      string
	SettingsFile string
	ModelsFile   string
	PromptsDir   string
	HistoryFile  string
	LogFile      string
}

// ConfigDir returns the user configuration directory. LLMCLI_CONFIG_DIR
// overrides the platform default.
func ConfigDir() (string, error) {
	if dir := os.Getenv("LLMCLI_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not determine config directory: %w", err)
	}
	return filepath.Join(base, AppName), nil
}

// DataDir returns the user data directory. LLMCLI_DATA_DIR overrides the
// platform default.
func DataDir() (string, error) {
	if dir := os.Getenv("LLMCLI_DATA_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", AppName), nil
	case "windows":
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, AppName), nil
		}
		return filepath.Join(home, "AppData", "Local", AppName), nil
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, AppName), nil
		}
		return filepath.Join(home, ".local", "share", AppName), nil
	}
}

// ResolvePaths computes the full path set for the given config directory and
// settings. A chat_dir setting wins over the data directory default; the
// environment override is already folded into settings by ApplyEnvOverrides.
func ResolvePaths(configDir string, s *Settings) (Paths, error) {
	dataDir, err := DataDir()
	if err != nil {
		return Paths{}, err
	}

	chatDir := filepath.Join(dataDir, ChatsDirName)
	if s != nil && s.ChatDir != "" {
		chatDir = expandHome(s.ChatDir)
	}

	logFile := filepath.Join(dataDir, LogFileName)
	if s != nil && s.Log.File != "" {
		logFile = expandHome(s.Log.File)
	}

	return Paths{
		ConfigDir:    configDir,
		DataDir:      dataDir,
		ChatDir:      chatDir,
		SettingsFile: filepath.Join(configDir, SettingsFileName),
		ModelsFile:   filepath.Join(configDir, ModelsFileName),
		PromptsDir:   filepath.Join(configDir, PromptsDirName),
		HistoryFile:  filepath.Join(dataDir, HistoryFileName),
		LogFile:      logFile,
	}, nil
}

func expandHome(p string) string {
	if len(p) < 2 || p[0] != '~' || (p[1] != '/' && p[1] != '\\') {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}
