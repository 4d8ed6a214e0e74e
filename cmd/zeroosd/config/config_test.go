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

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(context.Background(), filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
root = "/custom/root"

[debug]
level = "debug"
`), 0644))

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, "/custom/root", cfg.Root)
	require.Equal(t, "debug", cfg.Debug.Level)
	require.Equal(t, Default().State, cfg.State)
	require.Equal(t, Default().HAL, cfg.HAL)
}

func TestDumpRendersValidTOML(t *testing.T) {
	out, err := Dump(Default())
	require.NoError(t, err)
	require.Contains(t, string(out), "root")
}
