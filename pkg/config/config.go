// Copyright 2026 The Spv Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads and saves the declarative list of servers the
// supervisor manages. The on-disk format is a small JSON document at
// ~/.servers/settings.json; see Load and Save.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultAPIPort is used when settings.json omits apiPort.
const DefaultAPIPort = 7378

// ServerSpec is the immutable declarative description of one managed
// server, as read from configuration. Two ServerSpecs in the same
// Settings must not share an id.
type ServerSpec struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	WorkingDir      string `json:"workingDir"`
	Command         string `json:"command"`
	Port            int    `json:"port,omitempty"`
	Hostname        string `json:"hostname,omitempty"`
	HealthCheckPath string `json:"healthCheckPath,omitempty"`
	UseHTTPS        bool   `json:"useHttps,omitempty"`
	AutoStart       bool   `json:"autoStart,omitempty"`
	Visible         *bool  `json:"visible,omitempty"`
}

// IsVisible returns the effective visible flag, defaulting to true.
func (s ServerSpec) IsVisible() bool {
	return s.Visible == nil || *s.Visible
}

// EffectiveHostname returns hostname, defaulting to localhost.
func (s ServerSpec) EffectiveHostname() string {
	if s.Hostname == "" {
		return "localhost"
	}
	return s.Hostname
}

// EffectiveHealthCheckPath returns healthCheckPath, defaulting to "/".
func (s ServerSpec) EffectiveHealthCheckPath() string {
	if s.HealthCheckPath == "" {
		return "/"
	}
	return s.HealthCheckPath
}

// ExpandedWorkingDir resolves a leading "~" against the invoking user's
// home directory. It does not check that the directory exists: per
// spec, a missing workingDir errors at start time, not at load time.
func (s ServerSpec) ExpandedWorkingDir() (string, error) {
	return expandHome(s.WorkingDir)
}

// Settings is the top-level settings.json document.
type Settings struct {
	Servers []ServerSpec `json:"servers"`
	APIPort int          `json:"apiPort,omitempty"`
}

// EffectiveAPIPort returns APIPort, defaulting to DefaultAPIPort.
func (s Settings) EffectiveAPIPort() int {
	if s.APIPort == 0 {
		return DefaultAPIPort
	}
	return s.APIPort
}

func expandHome(p string) (string, error) {
	if p == "" || p[0] != '~' {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot resolve home directory: %w", err)
	}
	if p == "~" {
		return home, nil
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(home, p[2:]), nil
	}
	return p, nil
}

// DefaultSettingsPath returns ~/.servers/settings.json for the invoking user.
func DefaultSettingsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot resolve home directory: %w", err)
	}
	return filepath.Join(home, ".servers", "settings.json"), nil
}

// Load reads and decodes the settings document at path. A missing file or
// invalid JSON is returned as an error; callers are expected to continue
// running with an empty server set rather than abort, per the supervisor's
// error-handling policy.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}

	seen := make(map[string]bool, len(s.Servers))
	for _, spec := range s.Servers {
		if spec.ID == "" {
			return nil, fmt.Errorf("parse settings: server with empty id")
		}
		if seen[spec.ID] {
			return nil, fmt.Errorf("parse settings: duplicate server id %q", spec.ID)
		}
		seen[spec.ID] = true
	}

	return &s, nil
}

// Save atomically writes s to path: write-to-temp in the same directory,
// then rename. The containing directory is created (mode 0700, since
// working directories and commands may be sensitive) if missing.
func Save(path string, s *Settings) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.json.tmp")
	if err != nil {
		return fmt.Errorf("create temp settings file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp settings file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp settings file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename settings file: %w", err)
	}

	return nil
}
