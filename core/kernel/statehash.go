package kernel

import (
	"bytes"
	"sort"
)

// StateHash computes the canonical digest of a KernelState (spec's
// state_hash): a deterministic byte encoding of every table, sorted by
// key so that two KernelState values with identical contents hash
// identically regardless of map iteration order or history taken to
// reach them, folded with the same FNV-1a construction as HashCommit.
func StateHash(s *KernelState) [32]byte {
	var buf bytes.Buffer

	pids := make([]uint64, 0, len(s.Processes))
	for pid := range s.Processes {
		pids = append(pids, pid)
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })
	writeU64(&buf, uint64(len(pids)))
	for _, pid := range pids {
		p := s.Processes[pid]
		writeU64(&buf, p.PID)
		writeU64(&buf, p.Parent)
		buf.WriteByte(byte(p.State))
		writeString(&buf, p.Name)
	}

	writeU64(&buf, uint64(len(pids)))
	for _, pid := range pids {
		cs := s.CSpaces[pid]
		writeU64(&buf, pid)
		if cs == nil {
			writeU64(&buf, 0)
			continue
		}
		slots := make([]uint32, 0, len(cs.Slots))
		for slot := range cs.Slots {
			slots = append(slots, slot)
		}
		sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
		writeU64(&buf, uint64(len(slots)))
		for _, slot := range slots {
			c := cs.Slots[slot]
			writeU32(&buf, slot)
			writeU64(&buf, c.ID)
			buf.WriteByte(byte(c.ObjectType))
			writeU64(&buf, c.ObjectID)
			buf.WriteByte(byte(c.Perms))
			writeU32(&buf, c.Generation)
			writeU64(&buf, c.ExpiresAt)
		}
	}

	epIDs := make([]uint64, 0, len(s.Endpoints))
	for id := range s.Endpoints {
		epIDs = append(epIDs, id)
	}
	sort.Slice(epIDs, func(i, j int) bool { return epIDs[i] < epIDs[j] })
	writeU64(&buf, uint64(len(epIDs)))
	for _, id := range epIDs {
		ep := s.Endpoints[id]
		writeU64(&buf, ep.ID)
		writeU64(&buf, ep.OwnerPID)
		writeU32(&buf, ep.Generation)
		writeU64(&buf, uint64(len(ep.Pending)))
		for _, msg := range ep.Pending {
			writeU64(&buf, msg.Sender)
			writeU32(&buf, msg.Tag)
			writeU64(&buf, uint64(len(msg.Data)))
		}
	}

	keys := make([]ObjectKey, 0, len(s.Generations))
	for k := range s.Generations {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Type != keys[j].Type {
			return keys[i].Type < keys[j].Type
		}
		return keys[i].ID < keys[j].ID
	})
	writeU64(&buf, uint64(len(keys)))
	for _, k := range keys {
		buf.WriteByte(byte(k.Type))
		writeU64(&buf, k.ID)
		writeU32(&buf, s.Generations[k])
	}

	writeU64(&buf, s.NextPID)
	writeU64(&buf, s.NextCapID)
	writeU64(&buf, s.NextEndpoint)
	writeU64(&buf, s.NextIPCSeq)

	return foldFNV32(buf.Bytes())
}
