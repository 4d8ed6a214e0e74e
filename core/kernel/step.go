package kernel

import (
	"encoding/binary"
	"sort"
)

// Step is the pure reducer: (state, sender, syscall, timestamp) -> (result).
// It never performs I/O, never reads a clock, and never mutates any state
// the caller did not hand it — Gateway.Dispatch is responsible for cloning
// state before calling Step so that two invocations on clones of the same
// input are byte-for-byte comparable (Testable Property 1).
//
// Async storage/keystore/network syscalls (0x70-0x9F) are not handled
// here: per spec §4.1 "the reducer does not touch storage", and the
// request-id/pid correlation table is explicitly HAL-managed, outside
// reducible state. The Gateway dispatches those ranges straight to the
// HAL's request trackers without involving Step at all — see DESIGN.md.
//
// LoadBinary and SpawnProcess *do* touch the HAL (binary bytes must come
// from somewhere) but still need to emit commits, so the Gateway resolves
// the binary synchronously first and passes the bytes in through
// Syscall.Data; Step treats a nil Data as "HAL lookup failed/unsupported".
func Step(state *KernelState, sender uint64, sc Syscall, now uint64) Result {
	switch {
	case sc.Num >= 0x01 && sc.Num <= 0x0F:
		return stepMisc(state, sender, sc, now)
	case sc.Num >= 0x10 && sc.Num <= 0x1F:
		return stepProcess(state, sender, sc, now)
	case sc.Num >= 0x30 && sc.Num <= 0x3F:
		return stepCapability(state, sender, sc, now)
	case sc.Num >= 0x40 && sc.Num <= 0x4F:
		return stepIPC(state, sender, sc, now)
	case sc.Num >= 0x50 && sc.Num <= 0x5F:
		return stepSystem(state, sender, sc, now)
	default:
		return errResult(ErrInvalidArgument)
	}
}

func cspaceOf(state *KernelState, pid uint64) *CapabilitySpace {
	cs, ok := state.CSpaces[pid]
	if !ok {
		return nil
	}
	return cs
}

func insertCap(state *KernelState, pid uint64, c Capability) (slot uint32, ok bool) {
	cs := cspaceOf(state, pid)
	if cs == nil {
		return 0, false
	}
	slot = cs.NextSlot
	cs.NextSlot++
	cs.Slots[slot] = c
	return slot, true
}

// --- Misc (0x01-0x0F) ---

func stepMisc(state *KernelState, sender uint64, sc Syscall, now uint64) Result {
	switch sc.Num {
	case SysDebug:
		return okResult(0, nil)
	case SysYield:
		return okResult(0, nil)
	case SysExit:
		return doExit(state, sender, int32(sc.Args[0]))
	case SysTime:
		return okResult(int64(now), nil)
	case SysConsoleWrite:
		slot := sc.Args[0]
		cs := cspaceOf(state, sender)
		if cs == nil {
			return errResult(ErrProcessNotFound)
		}
		if _, kind := Check(cs, slot, RightWrite, ObjectConsole, state.CurrentGeneration, now); kind != ErrNone {
			return errResult(kind)
		}
		// The actual byte transfer happens in the HAL debug-write sink
		// after Step validates authority; Step itself performs no I/O.
		return okResult(int64(len(sc.Data)), nil)
	default:
		return errResult(ErrInvalidArgument)
	}
}

func doExit(state *KernelState, pid uint64, code int32) Result {
	proc, ok := state.Processes[pid]
	if !ok {
		return errResult(ErrProcessNotFound)
	}
	commits := []CommitBody{{Kind: KindProcessExited, ProcessExited: &ProcessExited{PID: pid, Code: code}}}
	commits = append(commits, dropAllCaps(state, pid)...)
	commits = append(commits, destroyOwnedEndpoints(state, pid)...)
	proc.State = Zombie
	return okResult(0, nil, commits...)
}

// dropAllCaps returns one CapRemoved{pid,slot,Revokes:false} per occupied
// slot in pid's cspace, in ascending slot order for determinism, and
// removes them from the live cspace.
func dropAllCaps(state *KernelState, pid uint64) []CommitBody {
	cs := cspaceOf(state, pid)
	if cs == nil || len(cs.Slots) == 0 {
		return nil
	}
	slots := make([]uint32, 0, len(cs.Slots))
	for slot := range cs.Slots {
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	out := make([]CommitBody, 0, len(slots))
	for _, slot := range slots {
		out = append(out, CommitBody{Kind: KindCapRemoved, CapRemoved: &CapRemoved{PID: pid, Slot: slot}})
		delete(cs.Slots, slot)
	}
	return out
}

// destroyOwnedEndpoints tears down every endpoint pid owns, in ascending
// id order. This is an eager resolution of the "cap generation semantics
// after process exit" open question (spec §9): the endpoint object itself
// is destroyed immediately rather than left live with no owner; capability
// holders elsewhere are NOT individually issued CapRemoved (lazy
// detection) — they go stale on their next axiom_check, which reports
// ObjectNotFound because the destroyed endpoint's generation is bumped
// here, exactly as replay's EndpointDestroyed case bumps it.
func destroyOwnedEndpoints(state *KernelState, pid uint64) []CommitBody {
	ids := make([]uint64, 0)
	for id, ep := range state.Endpoints {
		if ep.OwnerPID == pid {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]CommitBody, 0, len(ids))
	for _, id := range ids {
		out = append(out, CommitBody{Kind: KindEndpointDestroyed, EndpointDestroyed: &EndpointDestroyed{ID: id}})
		delete(state.Endpoints, id)
		key := ObjectKey{Type: ObjectEndpoint, ID: id}
		state.Generations[key] = state.Generations[key] + 1
	}
	return out
}

// --- Process (0x10-0x1F) ---

func stepProcess(state *KernelState, sender uint64, sc Syscall, now uint64) Result {
	switch sc.Num {
	case SysCreateEndpoint:
		return doCreateEndpointFor(state, sender, sender)
	case SysKill:
		return doKill(state, sender, uint64(sc.Args[0]), now)
	case SysRegisterProcess:
		return doRegisterProcess(state, sender, string(sc.Data))
	case SysCreateEndpointFor:
		return doCreateEndpointFor(state, sender, uint64(sc.Args[0]))
	case SysLoadBinary:
		if sc.Data == nil {
			return errResult(ErrNotSupported)
		}
		return okResult(int64(len(sc.Data)), sc.Data)
	case SysSpawnProcess:
		return doSpawnProcess(state, sender, string(sc.Data), sc.Data)
	default:
		return errResult(ErrInvalidArgument)
	}
}

func doCreateEndpointFor(state *KernelState, sender, owner uint64) Result {
	if _, ok := state.Processes[owner]; !ok {
		return errResult(ErrProcessNotFound)
	}
	if cspaceOf(state, owner) == nil {
		return errResult(ErrProcessNotFound)
	}
	epID := state.NextEndpoint
	state.NextEndpoint++
	capID := state.NextCapID
	state.NextCapID++
	slot, ok := insertCap(state, owner, Capability{ID: capID, ObjectType: ObjectEndpoint, ObjectID: epID, Perms: RightRead | RightWrite | RightGrant})
	if !ok {
		return errResult(ErrProcessNotFound)
	}
	state.Endpoints[epID] = &Endpoint{ID: epID, OwnerPID: owner}
	data := make([]byte, 12)
	binary.LittleEndian.PutUint64(data[0:8], epID)
	binary.LittleEndian.PutUint32(data[8:12], slot)
	return okResult(0, data,
		CommitBody{Kind: KindEndpointCreated, EndpointCreated: &EndpointCreated{ID: epID, Owner: owner}},
		CommitBody{Kind: KindCapInserted, CapInserted: &CapInserted{PID: owner, Slot: slot, CapID: capID, ObjectType: ObjectEndpoint, ObjectID: epID, Perms: RightRead | RightWrite | RightGrant}},
	)
}

func doKill(state *KernelState, sender, target uint64, now uint64) Result {
	if target == InitPID && sender != SupervisorPID {
		// Init-kill exception: only the bootstrap transport's privileged
		// shutdown path may kill PID 1 (spec §4.4).
		return errResult(ErrInsufficientRights)
	}
	if _, ok := state.Processes[target]; !ok {
		return errResult(ErrProcessNotFound)
	}
	if sender != SupervisorPID {
		if !holdsWriteOnProcess(state, sender, target, now) {
			return errResult(ErrInsufficientRights)
		}
	}
	commits := []CommitBody{{Kind: KindProcessKilled, ProcessKilled: &ProcessKilled{PID: target, By: sender}}}
	commits = append(commits, dropAllCaps(state, target)...)
	commits = append(commits, destroyOwnedEndpoints(state, target)...)
	state.Processes[target].State = Zombie
	return okResult(0, nil, commits...)
}

func holdsWriteOnProcess(state *KernelState, sender, target uint64, now uint64) bool {
	cs := cspaceOf(state, sender)
	if cs == nil {
		return false
	}
	slots := make([]uint32, 0, len(cs.Slots))
	for slot := range cs.Slots {
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	for _, slot := range slots {
		cap := cs.Slots[slot]
		if cap.ObjectType != ObjectProcess || cap.ObjectID != target {
			continue
		}
		if _, kind := Check(cs, slot, RightWrite, ObjectProcess, state.CurrentGeneration, now); kind == ErrNone {
			return true
		}
	}
	return false
}

func doRegisterProcess(state *KernelState, sender uint64, name string) Result {
	bootstrapping := len(state.Processes) < 2
	if sender != InitPID {
		if !bootstrapping || sender != SupervisorPID {
			return errResult(ErrInsufficientRights)
		}
	}
	var pid uint64
	var parent uint64
	switch {
	case len(state.Processes) == 0:
		pid = SupervisorPID
		parent = SupervisorPID
	case len(state.Processes) == 1:
		if _, ok := state.Processes[SupervisorPID]; !ok {
			return errResult(ErrInsufficientRights)
		}
		pid = InitPID
		parent = SupervisorPID
		if state.NextPID <= InitPID {
			state.NextPID = InitPID + 1
		}
	default:
		pid = state.NextPID
		state.NextPID++
		parent = sender
	}
	state.Processes[pid] = &Process{PID: pid, Name: name, State: Running, Parent: parent}
	state.CSpaces[pid] = NewCapabilitySpace()
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, pid)
	return okResult(0, data, CommitBody{Kind: KindProcessCreated, ProcessCreated: &ProcessCreated{PID: pid, Parent: parent, Name: name}})
}

func doSpawnProcess(state *KernelState, sender uint64, name string, binary_ []byte) Result {
	if binary_ == nil {
		return errResult(ErrNotSupported)
	}
	pid := state.NextPID
	state.NextPID++
	capID := state.NextCapID
	state.NextCapID++
	epID := state.NextEndpoint
	state.NextEndpoint++

	state.Processes[pid] = &Process{PID: pid, Name: name, State: Running, Parent: sender}
	state.CSpaces[pid] = NewCapabilitySpace()
	slot, _ := insertCap(state, pid, Capability{ID: capID, ObjectType: ObjectEndpoint, ObjectID: epID, Perms: RightRead | RightWrite})
	state.Endpoints[epID] = &Endpoint{ID: epID, OwnerPID: pid}

	data := make([]byte, 16)
	binary.LittleEndian.PutUint64(data[0:8], pid)
	binary.LittleEndian.PutUint64(data[8:16], epID)
	return okResult(0, data,
		CommitBody{Kind: KindProcessCreated, ProcessCreated: &ProcessCreated{PID: pid, Parent: sender, Name: name}},
		CommitBody{Kind: KindEndpointCreated, EndpointCreated: &EndpointCreated{ID: epID, Owner: pid}},
		CommitBody{Kind: KindCapInserted, CapInserted: &CapInserted{PID: pid, Slot: slot, CapID: capID, ObjectType: ObjectEndpoint, ObjectID: epID, Perms: RightRead | RightWrite}},
	)
}

// --- Capability (0x30-0x3F) ---

func stepCapability(state *KernelState, sender uint64, sc Syscall, now uint64) Result {
	cs := cspaceOf(state, sender)
	if cs == nil {
		return errResult(ErrProcessNotFound)
	}
	switch sc.Num {
	case SysGrant:
		return doGrant(state, cs, sender, sc.Args[0], uint64(sc.Args[1]), Rights(sc.Args[2]), now)
	case SysRevoke:
		return doRevoke(cs, sender, sc.Args[0], state, now)
	case SysDelete:
		return doDelete(cs, sender, sc.Args[0], now)
	case SysInspect:
		return doInspect(cs, sc.Args[0], state, now)
	case SysDerive:
		return doDerive(state, cs, sender, sc.Args[0], Rights(sc.Args[1]), now)
	default:
		return errResult(ErrInvalidArgument)
	}
}

func doGrant(state *KernelState, cs *CapabilitySpace, sender uint64, fromSlot uint32, toPID uint64, perms Rights, now uint64) Result {
	src, kind := Check(cs, fromSlot, RightGrant, ObjectAny, state.CurrentGeneration, now)
	if kind != ErrNone {
		return errResult(kind)
	}
	if _, ok := state.Processes[toPID]; !ok {
		return errResult(ErrProcessNotFound)
	}
	newPerms := src.Perms.Intersect(perms)
	newCapID := state.NextCapID
	state.NextCapID++
	toSlot, ok := insertCap(state, toPID, Capability{ID: newCapID, ObjectType: src.ObjectType, ObjectID: src.ObjectID, Perms: newPerms, Generation: src.Generation, ExpiresAt: src.ExpiresAt})
	if !ok {
		return errResult(ErrProcessNotFound)
	}
	return okResult(0, nil,
		CommitBody{Kind: KindCapGranted, CapGranted: &CapGranted{FromPID: sender, ToPID: toPID, FromSlot: fromSlot, ToSlot: toSlot, NewCapID: newCapID, Perms: newPerms}},
		CommitBody{Kind: KindCapInserted, CapInserted: &CapInserted{PID: toPID, Slot: toSlot, CapID: newCapID, ObjectType: src.ObjectType, ObjectID: src.ObjectID, Perms: newPerms}},
	)
}

func doRevoke(cs *CapabilitySpace, sender uint64, slot uint32, state *KernelState, now uint64) Result {
	c, kind := Check(cs, slot, 0, ObjectAny, state.CurrentGeneration, now)
	if kind != ErrNone {
		return errResult(kind)
	}
	delete(cs.Slots, slot)
	key := ObjectKey{Type: c.ObjectType, ID: c.ObjectID}
	state.Generations[key] = state.Generations[key] + 1
	return okResult(0, nil, CommitBody{Kind: KindCapRemoved, CapRemoved: &CapRemoved{PID: sender, Slot: slot, Revokes: true}})
}

func doDelete(cs *CapabilitySpace, sender uint64, slot uint32, now uint64) Result {
	if _, ok := cs.Slots[slot]; !ok {
		return errResult(ErrInvalidSlot)
	}
	delete(cs.Slots, slot)
	return okResult(0, nil, CommitBody{Kind: KindCapRemoved, CapRemoved: &CapRemoved{PID: sender, Slot: slot, Revokes: false}})
}

func doInspect(cs *CapabilitySpace, slot uint32, state *KernelState, now uint64) Result {
	c, kind := Check(cs, slot, 0, ObjectAny, state.CurrentGeneration, now)
	if kind != ErrNone {
		return errResult(kind)
	}
	data := make([]byte, 22)
	binary.LittleEndian.PutUint64(data[0:8], c.ID)
	data[8] = byte(c.ObjectType)
	binary.LittleEndian.PutUint64(data[9:17], c.ObjectID)
	data[17] = byte(c.Perms)
	binary.LittleEndian.PutUint32(data[18:22], c.Generation)
	return okResult(0, data)
}

func doDerive(state *KernelState, cs *CapabilitySpace, sender uint64, slot uint32, newPerms Rights, now uint64) Result {
	src, kind := Check(cs, slot, 0, ObjectAny, state.CurrentGeneration, now)
	if kind != ErrNone {
		return errResult(kind)
	}
	attenuated := src.Perms.Intersect(newPerms)
	capID := state.NextCapID
	state.NextCapID++
	newSlot, ok := insertCap(state, sender, Capability{ID: capID, ObjectType: src.ObjectType, ObjectID: src.ObjectID, Perms: attenuated, Generation: src.Generation, ExpiresAt: src.ExpiresAt})
	if !ok {
		return errResult(ErrProcessNotFound)
	}
	return okResult(0, nil, CommitBody{Kind: KindCapInserted, CapInserted: &CapInserted{PID: sender, Slot: newSlot, CapID: capID, ObjectType: src.ObjectType, ObjectID: src.ObjectID, Perms: attenuated}})
}

// --- IPC (0x40-0x4F) ---

func stepIPC(state *KernelState, sender uint64, sc Syscall, now uint64) Result {
	cs := cspaceOf(state, sender)
	if cs == nil {
		return errResult(ErrProcessNotFound)
	}
	switch sc.Num {
	case SysSend:
		return doSend(state, cs, sender, sc.Args[0], sc.Args[1], sc.Data, nil, now, 0)
	case SysSendCap:
		return doSendCap(state, cs, sender, sc, now)
	case SysRecv:
		return doRecv(state, cs, sender, sc.Args[0], now)
	case SysCall:
		return doSend(state, cs, sender, sc.Args[0], sc.Args[1], sc.Data, nil, now, 1)
	default:
		return errResult(ErrInvalidArgument)
	}
}

func doSend(state *KernelState, cs *CapabilitySpace, sender uint64, epSlot uint32, tag uint32, data []byte, caps []Capability, now uint64, forcedCode int64) Result {
	if len(data) > MaxMessageBytes {
		return errResult(ErrMessageTooLarge)
	}
	if len(caps) > MaxMessageCaps {
		return errResult(ErrTooManyCaps)
	}
	epCap, kind := Check(cs, epSlot, RightWrite, ObjectEndpoint, state.CurrentGeneration, now)
	if kind != ErrNone {
		return errResult(kind)
	}
	ep, ok := state.Endpoints[epCap.ObjectID]
	if !ok {
		return errResult(ErrEndpointNotFound)
	}
	msg := Message{Sender: sender, Tag: tag, Data: append([]byte(nil), data...), Caps: caps}
	ep.Pending = append(ep.Pending, msg)
	ep.MessagesSent++
	if owner, ok := state.Processes[ep.OwnerPID]; ok && owner.State == Blocked {
		owner.State = Running
	}
	commit := CommitBody{Kind: KindMessageSent, MessageSent: &MessageSent{FromPID: sender, ToEndpoint: ep.ID, Tag: tag, Size: uint32(len(data))}}
	return okResult(forcedCode, nil, commit)
}

func doSendCap(state *KernelState, cs *CapabilitySpace, sender uint64, sc Syscall, now uint64) Result {
	if len(sc.Caps) > MaxMessageCaps {
		return errResult(ErrTooManyCaps)
	}
	moved := make([]Capability, 0, len(sc.Caps))
	sortedSlots := append([]uint32(nil), sc.Caps...)
	sort.Slice(sortedSlots, func(i, j int) bool { return sortedSlots[i] < sortedSlots[j] })
	for _, slot := range sortedSlots {
		c, kind := Check(cs, slot, 0, ObjectAny, state.CurrentGeneration, now)
		if kind != ErrNone {
			return errResult(kind)
		}
		moved = append(moved, *c)
	}
	res := doSend(state, cs, sender, sc.Args[0], sc.Args[1], sc.Data, moved, now, 0)
	if res.Code < 0 {
		return res
	}
	for _, slot := range sortedSlots {
		delete(cs.Slots, slot)
	}
	return res
}

func doRecv(state *KernelState, cs *CapabilitySpace, sender uint64, epSlot uint32, now uint64) Result {
	epCap, kind := Check(cs, epSlot, RightRead, ObjectEndpoint, state.CurrentGeneration, now)
	if kind != ErrNone {
		return errResult(kind)
	}
	ep, ok := state.Endpoints[epCap.ObjectID]
	if !ok || ep.OwnerPID != sender {
		return errResult(ErrInsufficientRights)
	}
	if len(ep.Pending) == 0 {
		if proc, ok := state.Processes[sender]; ok {
			proc.State = Blocked
		}
		return okResult(1, nil) // WouldBlock; no commit.
	}
	msg := ep.Pending[0]
	ep.Pending = ep.Pending[1:]
	ep.MessagesDeliver++
	data := encodeMessage(msg)
	return okResult(0, data)
}

func encodeMessage(m Message) []byte {
	data := make([]byte, 16+len(m.Data))
	binary.LittleEndian.PutUint64(data[0:8], m.Sender)
	binary.LittleEndian.PutUint32(data[8:12], m.Tag)
	binary.LittleEndian.PutUint32(data[12:16], uint32(len(m.Data)))
	copy(data[16:], m.Data)
	return data
}

// --- System (0x50-0x5F) ---

func stepSystem(state *KernelState, sender uint64, sc Syscall, now uint64) Result {
	switch sc.Num {
	case SysPs:
		pids := make([]uint64, 0, len(state.Processes))
		for pid := range state.Processes {
			pids = append(pids, pid)
		}
		sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })
		var buf []byte
		for _, pid := range pids {
			p := state.Processes[pid]
			rec := make([]byte, 13+len(p.Name))
			binary.LittleEndian.PutUint64(rec[0:8], p.PID)
			rec[8] = byte(p.State)
			binary.LittleEndian.PutUint32(rec[9:13], uint32(len(p.Name)))
			copy(rec[13:], p.Name)
			buf = append(buf, rec...)
		}
		return okResult(int64(len(pids)), buf)
	default:
		return errResult(ErrInvalidArgument)
	}
}
