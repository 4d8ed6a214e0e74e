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

// Package halmock is an in-memory HAL double, used by core/gateway's and
// init/supervisor's tests so they never depend on a real WASM host or
// bbolt file on disk.
package halmock

import (
	"context"
	"crypto/rand"
	"sync/atomic"

	"github.com/zeroos-project/zeroos/core/hal"
	"github.com/zeroos-project/zeroos/core/kernel"
)

// HAL is the mock: binaries are preloaded by name, time is a manual
// counter, and every async family just completes immediately with the
// allocated request-id as its result code.
type HAL struct {
	Binaries map[string][]byte
	clock    uint64
	storage  *family
	keystore *family
	network  *family
}

// New returns a HAL with no preloaded binaries and a zeroed clock.
func New() *HAL {
	return &HAL{
		Binaries: make(map[string][]byte),
		storage:  newFamily(kernel.MaxPendingStorage),
		keystore: newFamily(kernel.MaxPendingKeystore),
		network:  newFamily(kernel.MaxPendingNetwork),
	}
}

func (h *HAL) LoadBinary(ctx context.Context, name string) ([]byte, error) {
	b, ok := h.Binaries[name]
	if !ok {
		return nil, nil
	}
	return b, nil
}

func (h *HAL) Storage() hal.AsyncFamily[hal.StorageRequest]   { return storageFamily{h.storage} }
func (h *HAL) Keystore() hal.AsyncFamily[hal.KeystoreRequest] { return keystoreFamily{h.keystore} }
func (h *HAL) Network() hal.AsyncFamily[hal.NetworkRequest]   { return networkFamily{h.network} }

func (h *HAL) Entropy(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// SetNow pins the mock clock, for tests that need deterministic
// timestamps.
func (h *HAL) SetNow(v uint64) { atomic.StoreUint64(&h.clock, v) }
func (h *HAL) Now() uint64     { return atomic.LoadUint64(&h.clock) }

type family struct {
	tracker *hal.RequestTracker
}

func newFamily(capacity int) *family { return &family{tracker: hal.NewRequestTracker(capacity)} }

func (f *family) submit(caller uint64) kernel.Result {
	id, kind := f.tracker.Allocate(caller)
	if kind != kernel.ErrNone {
		return kernel.Result{Code: kind.Code()}
	}
	f.tracker.Complete(id) // mock completes synchronously
	return kernel.Result{Code: int64(id)}
}

type storageFamily struct{ *family }

func (s storageFamily) Submit(ctx context.Context, caller uint64, req hal.StorageRequest) kernel.Result {
	return s.submit(caller)
}

type keystoreFamily struct{ *family }

func (k keystoreFamily) Submit(ctx context.Context, caller uint64, req hal.KeystoreRequest) kernel.Result {
	return k.submit(caller)
}

type networkFamily struct{ *family }

func (n networkFamily) Submit(ctx context.Context, caller uint64, req hal.NetworkRequest) kernel.Result {
	return n.submit(caller)
}
