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
	"path/filepath"

	"github.com/containerd/plugin"
	"github.com/containerd/plugin/registry"

	"github.com/zeroos-project/zeroos/core/hal/hardware"
	zplugins "github.com/zeroos-project/zeroos/plugins"
)

// Config is the TOML-visible configuration for the hardware HAL plugin.
type Config struct {
	BinDir string `toml:"bin_dir"`
}

func init() {
	registry.Register(&plugin.Registration{
		Type:   zplugins.HALPlugin,
		ID:     "hardware",
		Config: &Config{BinDir: "bin"},
		InitFn: func(ic *plugin.InitContext) (interface{}, error) {
			root := ic.Properties[zplugins.PropertyRootDir]
			stateDir := ic.Properties[zplugins.PropertyStateDir]

			cfg := ic.Config.(*Config)
			binDir := cfg.BinDir
			if !filepath.IsAbs(binDir) {
				binDir = filepath.Join(root, binDir)
			}

			return hardware.New(hardware.Config{
				BinDir:         binDir,
				StorageDBPath:  filepath.Join(stateDir, "storage.db"),
				KeystoreDBPath: filepath.Join(stateDir, "keystore.db"),
			})
		},
	})
}
