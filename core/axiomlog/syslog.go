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

// Package axiomlog holds the two logs the Axiom Gateway keeps around every
// kernel.Step call: the bounded SysLog of admitted stimuli and the
// hash-chained CommitLog of accepted mutations.
package axiomlog

import (
	"sync"

	"github.com/containerd/log"
	"github.com/zeroos-project/zeroos/core/kernel"
)

// SysEvent is one admitted stimulus: a syscall the Gateway handed to Step,
// independent of whether Step accepted or rejected it. SysLog exists so an
// operator can see what was *attempted*, which CommitLog alone cannot show.
type SysEvent struct {
	ID        uint64
	Sender    uint64
	Syscall   kernel.Syscall
	Timestamp uint64
	Result    kernel.Result
}

// SysLog is a fixed-capacity ring buffer. Once full, the oldest event is
// overwritten; Occupancy always reports min(total appended, Capacity).
type SysLog struct {
	mu       sync.Mutex
	events   []SysEvent
	capacity int
	nextID   uint64
	total    uint64
}

// NewSysLog returns an empty ring with room for capacity events.
func NewSysLog(capacity int) *SysLog {
	return &SysLog{capacity: capacity, nextID: 1}
}

// Append records ev, assigning it the next monotonic ID, and returns that
// ID. It never blocks and never errors: a full ring simply drops its
// oldest entry.
func (s *SysLog) Append(ev SysEvent) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev.ID = s.nextID
	s.nextID++
	s.total++
	if len(s.events) < s.capacity {
		s.events = append(s.events, ev)
	} else {
		log.L.WithField("capacity", s.capacity).Trace("syslog ring full, dropping oldest")
		copy(s.events, s.events[1:])
		s.events[len(s.events)-1] = ev
	}
	return ev.ID
}

// Occupancy is the number of events currently retained (bounded by
// capacity).
func (s *SysLog) Occupancy() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// Total is the number of events ever appended, including ones already
// evicted from the ring.
func (s *SysLog) Total() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Recent returns up to n of the most recently appended events, newest
// last.
func (s *SysLog) Recent(n int) []SysEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.events) || n <= 0 {
		n = len(s.events)
	}
	out := make([]SysEvent, n)
	copy(out, s.events[len(s.events)-n:])
	return out
}
