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

package supervisor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zeroos-project/zeroos/core/gateway"
	"github.com/zeroos-project/zeroos/core/hal/halmock"
	"github.com/zeroos-project/zeroos/core/kernel"
)

func TestBootstrapRegistersSupervisorAndInit(t *testing.T) {
	gw := gateway.New(halmock.New())
	_, err := Bootstrap(context.Background(), gw)
	require.NoError(t, err)

	state := gw.State()
	require.Contains(t, state.Processes, kernel.SupervisorPID)
	require.Contains(t, state.Processes, kernel.InitPID)
	require.Equal(t, "supervisor", state.Processes[kernel.SupervisorPID].Name)
	require.Equal(t, "init", state.Processes[kernel.InitPID].Name)
}

func TestBootstrapSpawnsCoreServicesInOrder(t *testing.T) {
	gw := gateway.New(halmock.New())
	_, err := Bootstrap(context.Background(), gw)
	require.NoError(t, err)

	state := gw.State()
	for i := 2; i <= 6; i++ {
		require.Contains(t, state.Processes, uint64(i))
		require.Equal(t, kernel.InitPID, state.Processes[uint64(i)].Parent)
	}
}

func TestKillInitRequiresSupervisorSender(t *testing.T) {
	gw := gateway.New(halmock.New())
	_, err := Bootstrap(context.Background(), gw)
	require.NoError(t, err)

	ordinary := gw.Dispatch(context.Background(), 2, kernel.Syscall{Num: kernel.SysKill, Args: [4]uint32{uint32(kernel.InitPID)}})
	require.Less(t, ordinary.Code, int64(0))

	privileged := KillInit(context.Background(), gw)
	require.Equal(t, int64(0), privileged.Code)

	state := gw.State()
	require.Equal(t, kernel.Zombie, state.Processes[kernel.InitPID].State)
}

func TestDoubleBootstrapRejected(t *testing.T) {
	gw := gateway.New(halmock.New())
	_, err := Bootstrap(context.Background(), gw)
	require.NoError(t, err)

	result := gw.Dispatch(context.Background(), kernel.SupervisorPID, kernel.Syscall{Num: kernel.SysRegisterProcess, Data: []byte("impostor")})
	require.Less(t, result.Code, int64(0))
}
