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

package hal

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/zeroos-project/zeroos/core/kernel"
)

// StorageRequest is one pending block-storage operation (spec's async
// storage family, syscalls 0x70-0x7F).
type StorageRequest struct {
	Op      uint32
	Key     []byte
	Payload []byte
}

// KeystoreRequest is one pending secret-storage operation (0x80-0x8F).
type KeystoreRequest struct {
	Op  uint32
	Key []byte
}

// NetworkRequest is one pending network operation (0x90-0x9F).
type NetworkRequest struct {
	Op      uint32
	Payload []byte
}

// AsyncFamily is one of the three async syscall families. Submit
// allocates a request-id, records the {request_id -> caller} correlation
// outside any reducible state, and returns the id synchronously; the
// actual completion is delivered later via an endpoint message the HAL
// backend sends on the caller's behalf (spec §4.5).
type AsyncFamily[T any] interface {
	Submit(ctx context.Context, caller uint64, req T) kernel.Result
}

// RequestTracker is the bounded {request_id -> caller_pid} table shared
// by every concrete AsyncFamily implementation. It intentionally lives
// outside core/kernel: spec's async family description is explicit that
// this correlation is "HAL-managed and not part of reducible state", so
// it is never folded by replay and never appears in a CommitLog entry.
type RequestTracker struct {
	mu       sync.Mutex
	pending  map[uint32]uint64
	nextID   uint32
	capacity int
}

// NewRequestTracker returns a tracker that refuses new requests once
// capacity in-flight requests are outstanding.
func NewRequestTracker(capacity int) *RequestTracker {
	return &RequestTracker{pending: make(map[uint32]uint64), nextID: 1, capacity: capacity}
}

// Allocate reserves a request-id for caller, or reports ResourceExhausted
// if the tracker is already at capacity.
func (t *RequestTracker) Allocate(caller uint64) (uint32, kernel.ErrKind) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.pending) >= t.capacity {
		return 0, kernel.ErrResourceExhausted
	}
	id := t.nextID
	t.nextID++
	t.pending[id] = caller
	return id, kernel.ErrNone
}

// Complete removes a request from the tracker and returns its caller, if
// still present. The result is false only when id is not outstanding;
// Complete does not check whether the caller is still alive.
func (t *RequestTracker) Complete(id uint32) (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	caller, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	return caller, ok
}

// Outstanding reports how many requests are currently in flight.
func (t *RequestTracker) Outstanding() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

func encodeRequestID(id uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, id)
	return b
}
