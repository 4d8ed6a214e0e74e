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

// Package stub is the minimal process every core service (Permission,
// VFS, Keystore, Identity, Time) runs as for this repo: it performs the
// RegisterService/ServiceReady handshake init/protocol.go defines and
// then idles, holding no domain logic of its own. spec.md explicitly
// leaves each service's internals out of scope; this is only the
// handshake a real implementation would also have to perform before
// Init will route lookups to it.
package stub

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/containerd/log"

	"github.com/zeroos-project/zeroos/core/gateway"
	"github.com/zeroos-project/zeroos/core/kernel"
	initpkg "github.com/zeroos-project/zeroos/init"
)

// Stub is a spawned process's handle on its two slots from Init's boot
// sequence: slot 0 is the read+write+grant cap on its own endpoint
// (CreateEndpointFor inserts this first), slot 1 is the write-only cap
// on Init's router endpoint (Init's Grant call inserts this second).
type Stub struct {
	gw   *gateway.Gateway
	pid  uint64
	name string

	selfSlot   uint32
	routerSlot uint32
}

// New wraps the process identified by pid, assuming the slot layout Init's
// boot sequence produces (see init.Init.Boot).
func New(gw *gateway.Gateway, pid uint64, name string) *Stub {
	return &Stub{gw: gw, pid: pid, name: name, selfSlot: 0, routerSlot: 1}
}

// Register performs the handshake: look up the stub's own endpoint id via
// Inspect on selfSlot, send RegisterService to Init, then ServiceReady.
func (s *Stub) Register(ctx context.Context) error {
	inspect := s.gw.Dispatch(ctx, s.pid, kernel.Syscall{Num: kernel.SysInspect, Args: [4]uint32{s.selfSlot}})
	if inspect.Code < 0 || len(inspect.Data) < 17 {
		return fmt.Errorf("stub %s: inspecting own endpoint cap: code %d", s.name, inspect.Code)
	}
	endpointID := binary.LittleEndian.Uint64(inspect.Data[9:17])

	regMsg := initpkg.RegisterService{Name: s.name, EndpointID: endpointID}.Encode()
	sendResult := s.gw.Dispatch(ctx, s.pid, kernel.Syscall{
		Num:  kernel.SysSend,
		Args: [4]uint32{s.routerSlot, initpkg.TagRegisterService},
		Data: regMsg,
	})
	if sendResult.Code < 0 {
		return fmt.Errorf("stub %s: sending RegisterService: code %d", s.name, sendResult.Code)
	}

	readyResult := s.gw.Dispatch(ctx, s.pid, kernel.Syscall{
		Num:  kernel.SysSend,
		Args: [4]uint32{s.routerSlot, initpkg.TagServiceReady},
	})
	if readyResult.Code < 0 {
		return fmt.Errorf("stub %s: sending ServiceReady: code %d", s.name, readyResult.Code)
	}

	log.G(ctx).WithField("service", s.name).WithField("pid", s.pid).Info("stub: registered with init")
	return nil
}
