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

// Package init implements PID 1: the service registry, IPC router, and
// bootstrap spawner every process creation after the bootstrap exception
// is mediated through. Init holds no kernel state of its own — it is a
// client of the Gateway exactly like any other process, driving its
// router endpoint through the same Dispatch call every syscall goes
// through.
package init

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/containerd/log"

	"github.com/zeroos-project/zeroos/core/gateway"
	"github.com/zeroos-project/zeroos/core/kernel"
)

// BootServices names the well-known core services, in the spawn order
// fixed by the ABI (well-known PIDs 2..6).
var BootServices = []string{"permission", "vfs", "keystore", "identity", "time"}

// Init is PID 1's user-space driver. routerSlot is the local slot, in
// Init's own capability space, holding the read+write+grant cap on endpoint 1
// (its own router endpoint, created during Boot).
type Init struct {
	gw         *gateway.Gateway
	routerSlot uint32

	registry map[string]uint64 // service name -> endpoint id
	pending  map[string]uint64 // service name -> pid awaiting ServiceReady
}

// New constructs an Init driver. Boot must be called once before Run.
func New(gw *gateway.Gateway) *Init {
	return &Init{gw: gw, registry: make(map[string]uint64), pending: make(map[string]uint64)}
}

// Boot performs Init's half of the bootstrap exception's aftermath: it
// creates its own router endpoint, then spawns and registers each
// well-known core service in order, granting each a write cap back to
// the router so it can RegisterService. It assumes the bootstrap
// transport has already registered PID 0 and PID 1.
func (in *Init) Boot(ctx context.Context) error {
	epResult := in.gw.Dispatch(ctx, kernel.InitPID, kernel.Syscall{Num: kernel.SysCreateEndpoint})
	if epResult.Code < 0 {
		return fmt.Errorf("init: creating router endpoint: code %d", epResult.Code)
	}
	if len(epResult.Data) < 12 {
		return fmt.Errorf("init: malformed CreateEndpoint response")
	}
	in.routerSlot = binary.LittleEndian.Uint32(epResult.Data[8:12])

	for _, name := range BootServices {
		if err := in.spawnService(ctx, name); err != nil {
			return fmt.Errorf("init: spawning %s: %w", name, err)
		}
	}
	return nil
}

func (in *Init) spawnService(ctx context.Context, name string) error {
	regResult := in.gw.Dispatch(ctx, kernel.InitPID, kernel.Syscall{Num: kernel.SysRegisterProcess, Data: []byte(name)})
	if regResult.Code < 0 {
		return fmt.Errorf("RegisterProcess: code %d", regResult.Code)
	}
	pid := binary.LittleEndian.Uint64(regResult.Data)

	epResult := in.gw.Dispatch(ctx, kernel.InitPID, kernel.Syscall{Num: kernel.SysCreateEndpointFor, Args: [4]uint32{uint32(pid)}})
	if epResult.Code < 0 {
		return fmt.Errorf("CreateEndpointFor(%d): code %d", pid, epResult.Code)
	}

	grantResult := in.gw.Dispatch(ctx, kernel.InitPID, kernel.Syscall{
		Num:  kernel.SysGrant,
		Args: [4]uint32{in.routerSlot, uint32(pid), uint32(kernel.RightWrite)},
	})
	if grantResult.Code < 0 {
		return fmt.Errorf("Grant(router -> %d): code %d", pid, grantResult.Code)
	}

	in.pending[name] = pid
	log.G(ctx).WithField("service", name).WithField("pid", pid).Info("init: spawned core service")
	return nil
}

// Run drains Init's router endpoint until ctx is cancelled, dispatching
// each message by tag. Recv returns WouldBlock (code 1) on an empty
// queue, per spec; Run treats that as "nothing to do this tick" rather
// than an error, mirroring the cooperative yield a real Init loop would
// perform between polls.
func (in *Init) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		result := in.gw.Dispatch(ctx, kernel.InitPID, kernel.Syscall{Num: kernel.SysRecv, Args: [4]uint32{in.routerSlot}})
		if result.Code == 1 {
			continue
		}
		if result.Code < 0 {
			log.G(ctx).WithField("code", result.Code).Warn("init: router Recv failed")
			continue
		}
		in.handle(ctx, result.Data)
	}
}

func (in *Init) handle(ctx context.Context, msg []byte) {
	if len(msg) < 16 {
		return
	}
	sender := binary.LittleEndian.Uint64(msg[0:8])
	tag := binary.LittleEndian.Uint32(msg[8:12])
	size := binary.LittleEndian.Uint32(msg[12:16])
	body := msg[16:]
	if uint32(len(body)) < size {
		size = uint32(len(body))
	}
	body = body[:size]

	switch tag {
	case TagRegisterService:
		in.onRegisterService(ctx, sender, body)
	case TagServiceReady:
		in.onServiceReady(ctx, sender)
	case TagLookupService:
		in.onLookupService(ctx, sender, body)
	case TagSpawnProcess:
		in.onSpawnProcess(ctx, sender, body)
	case TagCreateEndpointFor:
		in.onCreateEndpointFor(ctx, sender, body)
	case TagGrantCap:
		in.onGrantCap(ctx, sender, body)
	default:
		log.G(ctx).WithField("tag", tag).Warn("init: unrecognized message tag")
	}
}

func (in *Init) onRegisterService(ctx context.Context, sender uint64, body []byte) {
	msg, ok := DecodeRegisterService(body)
	if !ok {
		return
	}
	in.registry[msg.Name] = msg.EndpointID
	log.G(ctx).WithField("service", msg.Name).WithField("endpoint", msg.EndpointID).WithField("pid", sender).Info("init: service registered")
}

func (in *Init) onServiceReady(ctx context.Context, sender uint64) {
	for name, pid := range in.pending {
		if pid == sender {
			delete(in.pending, name)
			log.G(ctx).WithField("service", name).WithField("pid", sender).Info("init: service ready")
			return
		}
	}
}

func (in *Init) onLookupService(ctx context.Context, sender uint64, body []byte) {
	req := DecodeLookupService(body)
	epID, found := in.registry[req.Name]
	in.reply(ctx, sender, TagLookupResponse, LookupResponse{Found: found, EndpointID: epID}.Encode())
}

func (in *Init) onSpawnProcess(ctx context.Context, sender uint64, body []byte) {
	req := DecodeSpawnProcess(body)
	result := in.gw.Dispatch(ctx, kernel.InitPID, kernel.Syscall{Num: kernel.SysRegisterProcess, Data: []byte(req.Name)})
	if result.Code < 0 {
		in.reply(ctx, sender, TagSpawnResponse, SpawnResponse{OK: false}.Encode())
		return
	}
	pid := binary.LittleEndian.Uint64(result.Data)
	in.reply(ctx, sender, TagSpawnResponse, SpawnResponse{OK: true, PID: pid}.Encode())
}

func (in *Init) onCreateEndpointFor(ctx context.Context, sender uint64, body []byte) {
	req, ok := DecodeCreateEndpointForRequest(body)
	if !ok {
		return
	}
	result := in.gw.Dispatch(ctx, kernel.InitPID, kernel.Syscall{Num: kernel.SysCreateEndpointFor, Args: [4]uint32{uint32(req.PID)}})
	if result.Code < 0 || len(result.Data) < 12 {
		in.reply(ctx, sender, TagEndpointResponse, EndpointResponse{OK: false}.Encode())
		return
	}
	in.reply(ctx, sender, TagEndpointResponse, EndpointResponse{
		OK:         true,
		EndpointID: binary.LittleEndian.Uint64(result.Data[0:8]),
		Slot:       binary.LittleEndian.Uint32(result.Data[8:12]),
	}.Encode())
}

func (in *Init) onGrantCap(ctx context.Context, sender uint64, body []byte) {
	req, ok := DecodeGrantCapRequest(body)
	if !ok {
		return
	}
	result := in.gw.Dispatch(ctx, kernel.InitPID, kernel.Syscall{
		Num:  kernel.SysGrant,
		Args: [4]uint32{req.FromSlot, uint32(req.ToPID), uint32(req.Perms)},
	})
	if result.Code < 0 {
		in.reply(ctx, sender, TagCapResponse, CapResponse{OK: false}.Encode())
		return
	}
	in.reply(ctx, sender, TagCapResponse, CapResponse{OK: true}.Encode())
}

// reply sends data to toPID's own endpoint. Init needs a write cap on
// that endpoint to do so, which it only has when it created the endpoint
// itself (CreateEndpointFor inserts the owner's own cap, not Init's) or
// was separately granted one; a caller Init cannot reply to is dropped
// rather than blocking the router loop.
func (in *Init) reply(ctx context.Context, toPID uint64, tag uint32, data []byte) {
	epID, ok := in.callerEndpoint(toPID)
	if !ok {
		log.G(ctx).WithField("pid", toPID).Warn("init: no known reply endpoint, dropping response")
		return
	}
	slot, ok := in.replySlot(ctx, epID)
	if !ok {
		return
	}
	in.gw.Dispatch(ctx, kernel.InitPID, kernel.Syscall{Num: kernel.SysSend, Args: [4]uint32{slot, tag}, Data: data})
}

func (in *Init) callerEndpoint(pid uint64) (uint64, bool) {
	for _, epID := range in.registry {
		state := in.gw.State()
		if ep, ok := state.Endpoints[epID]; ok && ep.OwnerPID == pid {
			return epID, true
		}
	}
	return 0, false
}

// replySlot derives the local slot Init must hold to write to epID. Init
// only ever acquires such a cap by deriving it from its router cap (which
// the current protocol does not model), so in practice replies rely on
// services granting Init a write cap on their own endpoint during
// RegisterService handling in a fuller implementation; this stub looks
// for an existing matching slot in Init's own cspace only.
func (in *Init) replySlot(ctx context.Context, epID uint64) (uint32, bool) {
	state := in.gw.State()
	cs, ok := state.CSpaces[kernel.InitPID]
	if !ok {
		return 0, false
	}
	for slot, cap := range cs.Slots {
		if cap.ObjectType == kernel.ObjectEndpoint && cap.ObjectID == epID && cap.Perms.Has(kernel.RightWrite) {
			return slot, true
		}
	}
	log.G(ctx).WithField("endpoint", epID).Warn("init: no write cap on target endpoint, dropping response")
	return 0, false
}
