// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

// Package xdg resolves XDG Base Directory paths for Passgate.
package xdg

import (
	"errors"
	"os"
	"path/filepath"
)

const appName = "passgate"

// ConfigFileName is the name of the config file inside ConfigDir.
const ConfigFileName = "config.yaml"

// ErrNoHome is returned when neither the XDG variable nor HOME is set.
var ErrNoHome = errors.New("cannot resolve config directory: XDG_CONFIG_HOME and HOME are unset")

// ConfigDir returns the config directory for passgate.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home := os.Getenv("HOME")
		if home == "" {
			return "", ErrNoHome
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, appName), nil
}

// DefaultConfigFile returns the path of the config file, and whether a
// file exists there.
func DefaultConfigFile() (string, bool) {
	dir, err := ConfigDir()
	if err != nil {
		return "", false
	}
	path := filepath.Join(dir, ConfigFileName)
	info, err := os.Stat(path)
	return path, err == nil && !info.IsDir()
}
