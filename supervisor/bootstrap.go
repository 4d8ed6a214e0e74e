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

// Package supervisor is the thin transport between an untrusted guest
// (a browser sandbox or a bare-metal trap handler) and the Gateway. It
// exercises exactly the two documented direct kernel calls during
// bootstrap, then relays every further syscall on behalf of whichever
// process mailbox it is pumping; it holds no authority of its own past
// that point.
package supervisor

import (
	"context"
	"fmt"

	"github.com/containerd/log"

	"github.com/zeroos-project/zeroos/core/gateway"
	"github.com/zeroos-project/zeroos/core/kernel"
	initpkg "github.com/zeroos-project/zeroos/init"
)

// Bootstrap performs the bootstrap exception: it registers itself as PID
// 0 and Init as PID 1, then runs Init's own boot sequence (router
// endpoint + core service spawn). No further direct kernel call is made
// by the transport after this returns; every later process-creation
// request is mediated by Init over IPC.
func Bootstrap(ctx context.Context, gw *gateway.Gateway) (*initpkg.Init, error) {
	supResult := gw.Dispatch(ctx, kernel.SupervisorPID, kernel.Syscall{Num: kernel.SysRegisterProcess, Data: []byte("supervisor")})
	if supResult.Code < 0 {
		return nil, fmt.Errorf("supervisor: registering PID 0: code %d", supResult.Code)
	}

	initResult := gw.Dispatch(ctx, kernel.SupervisorPID, kernel.Syscall{Num: kernel.SysRegisterProcess, Data: []byte("init")})
	if initResult.Code < 0 {
		return nil, fmt.Errorf("supervisor: registering PID 1: code %d", initResult.Code)
	}

	in := initpkg.New(gw)
	if err := in.Boot(ctx); err != nil {
		return nil, fmt.Errorf("supervisor: init boot sequence: %w", err)
	}
	log.G(ctx).Info("supervisor: bootstrap exception exhausted, init is live")
	return in, nil
}

// PumpMailbox decodes one pending syscall from a guest's mailbox buffer,
// dispatches it as pid, and writes the result back into resp. It returns
// false if the mailbox held no well-formed request, which the platform's
// trap handler (hardware) or message-loop glue (WASM) treats as nothing
// to do this tick.
func PumpMailbox(ctx context.Context, gw *gateway.Gateway, pid uint64, req []byte, resp []byte) bool {
	sc, ok := DecodeRequest(req)
	if !ok {
		return false
	}
	result := gw.Dispatch(ctx, pid, sc)
	EncodeResult(resp, result)
	return true
}

// KillInit is the privileged shutdown path spec.md carves out for the
// transport alone: ordinary processes can never target PID 1 through
// Kill, but the transport may, strictly as a fatal-shutdown primitive
// used when the system is terminating, never as error recovery while
// other processes are still relying on Init to route their IPC.
func KillInit(ctx context.Context, gw *gateway.Gateway) kernel.Result {
	return gw.Dispatch(ctx, kernel.SupervisorPID, kernel.Syscall{Num: kernel.SysKill, Args: [4]uint32{uint32(kernel.InitPID)}})
}
