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

// Package gateway holds the Axiom Gateway: the single serialization point
// every syscall passes through before and after kernel.Step runs. It owns
// the SysLog, the CommitLog, the live KernelState, and the HAL dispatch
// for the two syscall families Step itself never touches (binary
// resolution and async storage/keystore/network requests).
package gateway

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/containerd/log"

	"github.com/zeroos-project/zeroos/core/axiomlog"
	"github.com/zeroos-project/zeroos/core/events"
	"github.com/zeroos-project/zeroos/core/hal"
	"github.com/zeroos-project/zeroos/core/kernel"
)

var tracer = otel.Tracer("github.com/zeroos-project/zeroos/core/gateway")

// Gateway is the only thing in this module allowed to call kernel.Step.
// Every Dispatch call is strictly serialized by mu: the kernel's purity
// only matters if exactly one step is in flight against the live state
// at a time.
type Gateway struct {
	mu       sync.Mutex
	state    *kernel.KernelState
	sys      *axiomlog.SysLog
	commits  *axiomlog.CommitLog
	store    *axiomlog.Store // nil on platforms with no durable mirror
	hal      hal.HAL
	exchange *events.Exchange
	clock    func() uint64
}

// Option configures a Gateway at construction.
type Option func(*Gateway)

// WithStore attaches a durable CommitLog mirror (hardware platform).
func WithStore(s *axiomlog.Store) Option {
	return func(g *Gateway) { g.store = s }
}

// WithExchange attaches an events.Exchange for commit fan-out. Without
// one, Dispatch simply skips publication.
func WithExchange(e *events.Exchange) Option {
	return func(g *Gateway) { g.exchange = e }
}

// WithClock overrides the monotonic clock source (tests only; production
// callers get a real one from the HAL's time source via cmd/zeroosd).
func WithClock(clock func() uint64) Option {
	return func(g *Gateway) { g.clock = clock }
}

// New constructs a Gateway over Genesis state.
func New(h hal.HAL, opts ...Option) *Gateway {
	g := &Gateway{
		state:   kernel.NewKernelState(),
		sys:     axiomlog.NewSysLog(kernel.SysLogCapacity),
		commits: axiomlog.NewCommitLog(kernel.CommitLogCapacity),
		hal:     h,
		clock:   func() uint64 { return 0 },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Dispatch is the single entry point: resolve any HAL-delegated data,
// run Step against a clone of the live state, and on success fold the
// clone back in as the new live state while appending every admitted
// commit to the logs. On failure the live state is untouched.
func (g *Gateway) Dispatch(ctx context.Context, sender uint64, sc kernel.Syscall) kernel.Result {
	ctx, span := tracer.Start(ctx, "Gateway.Dispatch", trace.WithAttributes(
		attribute.Int64("sender", int64(sender)),
		attribute.Int64("syscall", int64(sc.Num)),
	))
	defer span.End()

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock()

	if resolved, bypass := g.resolveHALDelegated(ctx, sender, &sc); bypass {
		g.logSysEvent(sender, sc, now, resolved)
		return resolved
	}

	clone := g.state.Clone()
	result := kernel.Step(clone, sender, sc, now)
	g.logSysEvent(sender, sc, now, result)

	if result.Code < 0 {
		span.SetAttributes(attribute.Int64("result_code", result.Code))
		return result
	}

	g.state = clone
	for _, body := range result.Commits {
		commit := g.commits.Append(body, now, nil)
		if g.store != nil {
			if err := g.store.Append(commit); err != nil {
				log.G(ctx).WithError(err).Error("failed to persist commit to durable store")
			}
		}
		if g.exchange != nil {
			g.exchange.Publish(ctx, &events.CommitEvent{Seq: commit.Seq, ID: commit.ID, Kind: body.Kind, Timestamp: now})
		}
	}
	span.SetAttributes(attribute.Int("commits", len(result.Commits)))
	return result
}

func (g *Gateway) logSysEvent(sender uint64, sc kernel.Syscall, now uint64, result kernel.Result) {
	g.sys.Append(axiomlog.SysEvent{Sender: sender, Syscall: sc, Timestamp: now, Result: result})
}

// resolveHALDelegated handles the syscall families Step never touches
// directly: LoadBinary/SpawnProcess (which need HAL-sourced binary bytes
// threaded into Syscall.Data before Step can emit ProcessCreated) and the
// async storage/keystore/network ranges (which bypass Step entirely,
// since the reducer never touches storage — see core/kernel/step.go).
func (g *Gateway) resolveHALDelegated(ctx context.Context, sender uint64, sc *kernel.Syscall) (kernel.Result, bool) {
	switch {
	case sc.Num == kernel.SysLoadBinary:
		data, err := g.hal.LoadBinary(ctx, string(sc.Data))
		if err != nil {
			sc.Data = nil
			return kernel.Result{}, false
		}
		sc.Data = data
		return kernel.Result{}, false
	case sc.Num == kernel.SysSpawnProcess:
		data, err := g.hal.LoadBinary(ctx, string(sc.Data))
		if err != nil {
			sc.Data = nil
			return kernel.Result{}, false
		}
		sc.Data = data
		return kernel.Result{}, false
	case sc.Num >= kernel.SysAsyncStorageBase && sc.Num < kernel.SysAsyncKeystoreBase:
		res := g.hal.Storage().Submit(ctx, sender, hal.StorageRequest{Op: sc.Args[0], Key: sc.Data})
		return res, true
	case sc.Num >= kernel.SysAsyncKeystoreBase && sc.Num < kernel.SysAsyncNetworkBase:
		res := g.hal.Keystore().Submit(ctx, sender, hal.KeystoreRequest{Op: sc.Args[0], Key: sc.Data})
		return res, true
	case sc.Num >= kernel.SysAsyncNetworkBase:
		res := g.hal.Network().Submit(ctx, sender, hal.NetworkRequest{Op: sc.Args[0], Payload: sc.Data})
		return res, true
	default:
		return kernel.Result{}, false
	}
}

// State returns a deep copy of the live kernel state, safe for a caller
// (ps, debugging tools) to inspect without racing Dispatch.
func (g *Gateway) State() *kernel.KernelState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.Clone()
}

// CommitHead returns the current CommitLog chain head.
func (g *Gateway) CommitHead() [32]byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.commits.Head()
}

// CommitLogOccupancy reports how many commits the CommitLog ring
// currently retains, for the metrics collector.
func (g *Gateway) CommitLogOccupancy() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.commits.Occupancy()
}

// SysLogOccupancy reports how many events the SysLog ring currently
// retains, for the metrics collector.
func (g *Gateway) SysLogOccupancy() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sys.Occupancy()
}

// StateHash reports the canonical hash of the live state (hashFn, normally
// kernel.StateHash, applied to the state under the Gateway's lock).
func (g *Gateway) StateHash(hashFn func(*kernel.KernelState) [32]byte) [32]byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	return hashFn(g.state)
}

func (g *Gateway) String() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fmt.Sprintf("gateway(processes=%d, commits=%d)", len(g.state.Processes), g.commits.Occupancy())
}
