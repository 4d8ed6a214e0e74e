/*
   Copyright The Zero OS Authors.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package config is zeroosd's TOML configuration, load path, and
// plugin-config merging. It mirrors containerd's config.Config in
// shape, trimmed to what a single-tenant microkernel daemon needs: a
// root/state directory pair, the HAL selection, and a freeform
// per-plugin TOML table.
package config

import (
	"context"
	"fmt"
	"os"

	"dario.cat/mergo"
	"github.com/pelletier/go-toml/v2"
)

// Config is zeroosd's top-level configuration file shape.
type Config struct {
	Version int `toml:"version"`

	// Root and State are the daemon's persistent and ephemeral
	// directories, exposed to plugins as PropertyRootDir/PropertyStateDir.
	Root  string `toml:"root"`
	State string `toml:"state"`

	// HAL selects which hal/* plugin ID boots (exactly one of "wasm" or
	// "hardware").
	HAL string `toml:"hal"`

	Debug DebugConfig `toml:"debug"`

	DisabledPlugins []string `toml:"disabled_plugins"`

	// Plugins holds each plugin's TOML table keyed by its registered
	// plugin.Type and ID ("<type>.<id>"), decoded into the plugin's own Config by the boot
	// loop in cmd/zeroosd/command.
	Plugins map[string]interface{} `toml:"plugins"`
}

// DebugConfig controls log verbosity.
type DebugConfig struct {
	Level string `toml:"level"`
}

// Default returns the configuration zeroosd boots with if no file is
// found at the configured path.
func Default() *Config {
	return &Config{
		Version: 1,
		Root:    "/var/lib/zeroos",
		State:   "/run/zeroos",
		HAL:     "wasm",
		Debug:   DebugConfig{Level: "info"},
	}
}

// Load decodes path's TOML contents over a copy of Default, so every
// field the file omits keeps its default rather than zeroing out. A
// missing file is not an error: it just means defaults apply verbatim,
// matching containerd's "config is optional" posture.
func Load(ctx context.Context, path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var fromFile Config
	if err := toml.Unmarshal(data, &fromFile); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := mergo.Merge(cfg, fromFile, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("merging config %s over defaults: %w", path, err)
	}
	return cfg, nil
}

// Dump renders cfg as TOML and returns the encoded bytes.
func Dump(cfg *Config) ([]byte, error) {
	return toml.Marshal(cfg)
}
