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

package plugin

import (
	"context"
	"os"
	"path/filepath"

	"github.com/containerd/plugin"
	"github.com/containerd/plugin/registry"

	"github.com/zeroos-project/zeroos/core/hal/wasm"
	zplugins "github.com/zeroos-project/zeroos/plugins"
)

// Config is the TOML-visible configuration for the WASM HAL plugin.
type Config struct {
	ModuleDir string `toml:"module_dir"`
}

func init() {
	registry.Register(&plugin.Registration{
		Type:   zplugins.HALPlugin,
		ID:     "wasm",
		Config: &Config{ModuleDir: "modules"},
		InitFn: func(ic *plugin.InitContext) (interface{}, error) {
			root := ic.Properties[zplugins.PropertyRootDir]
			cfg := ic.Config.(*Config)
			moduleDir := cfg.ModuleDir
			if !filepath.IsAbs(moduleDir) {
				moduleDir = filepath.Join(root, moduleDir)
			}

			loader := func(ctx context.Context, name string) ([]byte, error) {
				data, err := os.ReadFile(filepath.Join(moduleDir, name+".wasm"))
				if os.IsNotExist(err) {
					return nil, nil
				}
				return data, err
			}
			return wasm.New(loader, nil, nil, nil), nil
		},
	})
}
