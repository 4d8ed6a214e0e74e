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

// Package replay rebuilds a kernel.KernelState by folding a CommitLog
// from Genesis, independent of and without calling kernel.Step. This is
// deliberate: Step re-validates authority and re-derives commits, but
// replay must reproduce exactly the mutations that were already admitted
// once, even if (say) a capability that authorized them has since been
// revoked. Folding, not re-authorizing, is what "replay" means here.
package replay

import (
	"fmt"

	"github.com/containerd/errdefs"
	"github.com/zeroos-project/zeroos/core/kernel"
)

// ApplyCommit folds one commit body into state in place. It mirrors the
// mutation side of each core/kernel/step.go handler exactly, but never
// fails on authority grounds: a commit reaching here was already accepted
// once, and replay's job is to reproduce history, not re-judge it.
func ApplyCommit(state *kernel.KernelState, body kernel.CommitBody) error {
	switch body.Kind {
	case kernel.KindGenesis:
		return nil
	case kernel.KindProcessCreated:
		v := body.ProcessCreated
		state.Processes[v.PID] = &kernel.Process{PID: v.PID, Name: v.Name, Parent: v.Parent, State: kernel.Running}
		state.CSpaces[v.PID] = kernel.NewCapabilitySpace()
		bumpNextPID(state, v.PID)
		return nil
	case kernel.KindProcessExited:
		v := body.ProcessExited
		if p, ok := state.Processes[v.PID]; ok {
			p.State = kernel.Zombie
		}
		return nil
	case kernel.KindProcessFaulted:
		v := body.ProcessFaulted
		if p, ok := state.Processes[v.PID]; ok {
			p.State = kernel.Zombie
		}
		return nil
	case kernel.KindProcessKilled:
		v := body.ProcessKilled
		if p, ok := state.Processes[v.PID]; ok {
			p.State = kernel.Zombie
		}
		return nil
	case kernel.KindCapInserted:
		v := body.CapInserted
		cs, ok := state.CSpaces[v.PID]
		if !ok {
			return fmt.Errorf("replay: CapInserted for unknown pid %d: %w", v.PID, errdefs.ErrFailedPrecondition)
		}
		cs.Slots[v.Slot] = kernel.Capability{ID: v.CapID, ObjectType: v.ObjectType, ObjectID: v.ObjectID, Perms: v.Perms}
		if v.Slot >= cs.NextSlot {
			cs.NextSlot = v.Slot + 1
		}
		bumpNextCapID(state, v.CapID)
		return nil
	case kernel.KindCapRemoved:
		v := body.CapRemoved
		cs, ok := state.CSpaces[v.PID]
		if !ok {
			return nil
		}
		c, present := cs.Slots[v.Slot]
		delete(cs.Slots, v.Slot)
		if v.Revokes && present {
			key := kernel.ObjectKey{Type: c.ObjectType, ID: c.ObjectID}
			state.Generations[key] = state.Generations[key] + 1
		}
		return nil
	case kernel.KindCapGranted:
		v := body.CapGranted
		cs, ok := state.CSpaces[v.ToPID]
		if !ok {
			return fmt.Errorf("replay: CapGranted to unknown pid %d: %w", v.ToPID, errdefs.ErrFailedPrecondition)
		}
		srcCS, ok := state.CSpaces[v.FromPID]
		if !ok {
			return nil
		}
		src := srcCS.Slots[v.FromSlot]
		cs.Slots[v.ToSlot] = kernel.Capability{ID: v.NewCapID, ObjectType: src.ObjectType, ObjectID: src.ObjectID, Perms: v.Perms}
		if v.ToSlot >= cs.NextSlot {
			cs.NextSlot = v.ToSlot + 1
		}
		bumpNextCapID(state, v.NewCapID)
		return nil
	case kernel.KindEndpointCreated:
		v := body.EndpointCreated
		state.Endpoints[v.ID] = &kernel.Endpoint{ID: v.ID, OwnerPID: v.Owner}
		bumpNextEndpoint(state, v.ID)
		return nil
	case kernel.KindEndpointDestroyed:
		v := body.EndpointDestroyed
		delete(state.Endpoints, v.ID)
		key := kernel.ObjectKey{Type: kernel.ObjectEndpoint, ID: v.ID}
		state.Generations[key] = state.Generations[key] + 1
		return nil
	case kernel.KindMessageSent:
		v := body.MessageSent
		ep, ok := state.Endpoints[v.ToEndpoint]
		if !ok {
			return nil
		}
		// Message content is not recorded in the commit (spec's open
		// question on message-content replay: resolved as "not
		// recorded, lazily" — see DESIGN.md). Replay restores the
		// structural fact that a message is pending, with an
		// empty body, so queue depth and FIFO ordering survive a
		// reboot even though payload bytes do not.
		ep.Pending = append(ep.Pending, kernel.Message{Sender: v.FromPID, Tag: v.Tag})
		ep.MessagesSent++
		return nil
	default:
		return fmt.Errorf("replay: unknown commit kind %d: %w", body.Kind, errdefs.ErrFailedPrecondition)
	}
}

func bumpNextPID(s *kernel.KernelState, pid uint64) {
	if pid >= s.NextPID {
		s.NextPID = pid + 1
	}
}

func bumpNextCapID(s *kernel.KernelState, id uint64) {
	if id >= s.NextCapID {
		s.NextCapID = id + 1
	}
}

func bumpNextEndpoint(s *kernel.KernelState, id uint64) {
	if id >= s.NextEndpoint {
		s.NextEndpoint = id + 1
	}
}

// Replay folds commits, in order, onto a fresh Genesis state. Unlike
// ReplayAndVerify it trusts the slice it is given and does not
// recompute hashes: useful for tests and for tools that already trust
// their source (e.g. an in-memory CommitLog that was never persisted).
func Replay(commits []kernel.Commit) (*kernel.KernelState, error) {
	state := kernel.NewKernelState()
	for i, c := range commits {
		if err := ApplyCommit(state, c.Body); err != nil {
			return nil, fmt.Errorf("replay: commit %d (seq %d): %w", i, c.Seq, err)
		}
	}
	return state, nil
}

// ReplayAndVerify folds commits like Replay, but additionally recomputes
// each commit's hash from its own (prev, seq, timestamp, body) and
// confirms it matches both the stored ID and the previous commit's ID,
// failing closed with ErrHashMismatch at the first break in the chain
// (spec's replay integrity guarantee).
func ReplayAndVerify(commits []kernel.Commit) (*kernel.KernelState, error) {
	state := kernel.NewKernelState()
	var prev [32]byte
	for i, c := range commits {
		if c.Prev != prev {
			return nil, fmt.Errorf("replay: commit %d (seq %d) prev hash mismatch: %w", i, c.Seq, kernel.NewError(kernel.ErrHashMismatch, "chain broken"))
		}
		recomputed := kernel.HashCommit(c.Prev, c.Seq, c.Timestamp, c.Body)
		if recomputed != c.ID {
			return nil, fmt.Errorf("replay: commit %d (seq %d) id mismatch: %w", i, c.Seq, kernel.NewError(kernel.ErrHashMismatch, "id recomputation failed"))
		}
		if err := ApplyCommit(state, c.Body); err != nil {
			return nil, fmt.Errorf("replay: commit %d (seq %d): %w", i, c.Seq, err)
		}
		prev = c.ID
	}
	return state, nil
}
