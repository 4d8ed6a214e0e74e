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

// Package wasm is the HAL backend for the browser/WASM platform: user
// processes are guest modules, instantiated and driven by the
// supervisor's poll loop (see supervisor/mailbox.go) through the 3-word
// mailbox ABI spec §4.1 describes; this package only supplies the
// host-side resources those guests reach for through that mailbox trap —
// binary bytes, async storage/keystore/network completion, entropy, and
// time. Guest instantiation itself is the binary loader's job, which
// spec.md places out of scope; this package is the table of Go closures
// the supervisor's trap handler calls into once a guest's binary has been
// loaded.
package wasm

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/zeroos-project/zeroos/core/hal"
	"github.com/zeroos-project/zeroos/core/kernel"
)

// Loader resolves a binary name to guest WASM bytecode. In production
// this is backed by the host environment embedding the runtime (e.g. a
// bundled asset table); tests supply a map-backed Loader directly.
type Loader func(ctx context.Context, name string) ([]byte, error)

// HAL is the WASM platform's hal.HAL implementation.
type HAL struct {
	loader Loader
	boot   time.Time

	storage  *hostFamily[hal.StorageRequest]
	keystore *hostFamily[hal.KeystoreRequest]
	network  *hostFamily[hal.NetworkRequest]
}

// New constructs a WASM HAL. storageSink/keystoreSink/networkSink are the
// host import functions that actually perform the operation once a
// request-id has been allocated; nil sinks complete every request
// immediately with no side effect, which is sufficient for a guest that
// never reaches those imports in a given test.
func New(loader Loader, storageSink, keystoreSink func(hal.StorageRequest) error, networkSink func(hal.NetworkRequest) error) *HAL {
	return &HAL{
		loader: loader,
		boot:   time.Now(),
		storage: &hostFamily[hal.StorageRequest]{
			tracker: hal.NewRequestTracker(kernel.MaxPendingStorage),
			sink: func(r hal.StorageRequest) error {
				if storageSink == nil {
					return nil
				}
				return storageSink(r)
			},
		},
		keystore: &hostFamily[hal.KeystoreRequest]{
			tracker: hal.NewRequestTracker(kernel.MaxPendingKeystore),
			sink: func(r hal.KeystoreRequest) error {
				if keystoreSink == nil {
					return nil
				}
				return keystoreSink(hal.StorageRequest{Op: r.Op, Key: r.Key})
			},
		},
		network: &hostFamily[hal.NetworkRequest]{
			tracker: hal.NewRequestTracker(kernel.MaxPendingNetwork),
			sink: func(r hal.NetworkRequest) error {
				if networkSink == nil {
					return nil
				}
				return networkSink(r)
			},
		},
	}
}

func (h *HAL) LoadBinary(ctx context.Context, name string) ([]byte, error) {
	if h.loader == nil {
		return nil, fmt.Errorf("wasm HAL: no loader configured")
	}
	return h.loader(ctx, name)
}

func (h *HAL) Storage() hal.AsyncFamily[hal.StorageRequest]   { return h.storage }
func (h *HAL) Keystore() hal.AsyncFamily[hal.KeystoreRequest] { return h.keystore }
func (h *HAL) Network() hal.AsyncFamily[hal.NetworkRequest]   { return h.network }

func (h *HAL) Entropy(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("wasm HAL: reading entropy: %w", err)
	}
	return b, nil
}

func (h *HAL) Now() uint64 {
	return uint64(time.Since(h.boot).Nanoseconds())
}

type hostFamily[T any] struct {
	mu      sync.Mutex
	tracker *hal.RequestTracker
	sink    func(T) error
}

func (f *hostFamily[T]) Submit(ctx context.Context, caller uint64, req T) kernel.Result {
	id, kind := f.tracker.Allocate(caller)
	if kind != kernel.ErrNone {
		return kernel.Result{Code: kind.Code()}
	}
	f.mu.Lock()
	err := f.sink(req)
	f.mu.Unlock()
	if err != nil {
		f.tracker.Complete(id)
		return kernel.Result{Code: kernel.ErrInvalidArgument.Code()}
	}
	f.tracker.Complete(id)
	return kernel.Result{Code: int64(id)}
}
