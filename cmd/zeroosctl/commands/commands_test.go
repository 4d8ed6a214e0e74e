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

package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/zeroos-project/zeroos/core/axiomlog"
	"github.com/zeroos-project/zeroos/core/kernel"
)

func seedStore(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	store, err := axiomlog.OpenStore(filepath.Join(dir, "axiom.db"))
	require.NoError(t, err)
	defer store.Close()

	cl := axiomlog.NewCommitLog(100)
	live := kernel.NewKernelState()
	step := func(sender uint64, sc kernel.Syscall, now uint64) kernel.Result {
		res := kernel.Step(live, sender, sc, now)
		for _, body := range res.Commits {
			c := cl.Append(body, now, nil)
			require.NoError(t, store.Append(c))
		}
		return res
	}
	step(kernel.SupervisorPID, kernel.Syscall{Num: kernel.SysRegisterProcess, Data: []byte("supervisor")}, 1)
	step(kernel.SupervisorPID, kernel.Syscall{Num: kernel.SysRegisterProcess, Data: []byte("init")}, 2)
	step(kernel.InitPID, kernel.Syscall{Num: kernel.SysCreateEndpoint}, 3)
	return dir
}

func runCommand(t *testing.T, cmd *cli.Command, args ...string) {
	t.Helper()
	app := cli.NewApp()
	app.Commands = []*cli.Command{cmd}
	full := append([]string{"zeroosctl", cmd.Name}, args...)
	require.NoError(t, app.Run(full))
}

func TestReplayCommandPrintsProcessTable(t *testing.T) {
	dir := seedStore(t)

	r, w, err := os.Pipe()
	require.NoError(t, err)
	old := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = old }()

	runCommand(t, ReplayCommand, dir)

	w.Close()
	os.Stdout = old
	buf := make([]byte, 4096)
	n, _ := r.Read(buf)
	out := string(buf[:n])
	require.Contains(t, out, `"name": "init"`)
	require.Contains(t, out, `"name": "supervisor"`)
}

func TestStateHashCommandPrintsHexDigest(t *testing.T) {
	dir := seedStore(t)

	r, w, err := os.Pipe()
	require.NoError(t, err)
	old := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = old }()

	runCommand(t, StateHashCommand, dir)

	w.Close()
	os.Stdout = old
	buf := make([]byte, 256)
	n, _ := r.Read(buf)
	out := string(buf[:n])
	require.Len(t, out, 65) // 64 hex chars + newline
}

func TestVerifyCommandAcceptsUntamperedStore(t *testing.T) {
	dir := seedStore(t)
	runCommand(t, VerifyCommand, dir)
}

func TestVerifyCommandRejectsMissingStateDirArg(t *testing.T) {
	app := cli.NewApp()
	app.Commands = []*cli.Command{VerifyCommand}
	err := app.Run([]string{"zeroosctl", "verify"})
	require.Error(t, err)
}
