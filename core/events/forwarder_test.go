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

package events

import (
	"context"
	"net"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	v1 "github.com/containerd/containerd/api/services/ttrpc/events/v1"
	"github.com/containerd/ttrpc"
	"github.com/stretchr/testify/require"

	"github.com/zeroos-project/zeroos/core/kernel"
)

type fakeEventsService struct {
	mu       sync.Mutex
	received []*v1.ForwardRequest
	fail     atomic.Bool
}

func (f *fakeEventsService) Forward(ctx context.Context, req *v1.ForwardRequest) (*v1.ForwardResponse, error) {
	if f.fail.Load() {
		return nil, context.DeadlineExceeded
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, req)
	return &v1.ForwardResponse{}, nil
}

func (f *fakeEventsService) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.received)
}

func startFakeServer(t *testing.T, addr string, svc *fakeEventsService) *ttrpc.Server {
	t.Helper()
	server, err := ttrpc.NewServer()
	require.NoError(t, err)
	v1.RegisterEventsService(server, svc)

	l, err := net.Listen("unix", addr)
	require.NoError(t, err)
	go server.Serve(context.Background(), l)
	t.Cleanup(func() { server.Shutdown(context.Background()) })
	return server
}

func TestForwarderDeliversPublishedEvents(t *testing.T) {
	addr := filepath.Join(t.TempDir(), "events.sock")
	svc := &fakeEventsService{}
	startFakeServer(t, addr, svc)

	ex := NewExchange()
	sub := ex.Subscribe()
	fw, err := NewForwarder(context.Background(), addr, sub)
	require.NoError(t, err)
	defer fw.Close()

	ex.Publish(context.Background(), &CommitEvent{Seq: 1, Kind: kernel.KindProcessCreated})

	require.Eventually(t, func() bool { return svc.count() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestForwarderRequeuesOnFailure(t *testing.T) {
	addr := filepath.Join(t.TempDir(), "events.sock")
	svc := &fakeEventsService{}
	svc.fail.Store(true)
	startFakeServer(t, addr, svc)

	ex := NewExchange()
	sub := ex.Subscribe()
	fw, err := NewForwarder(context.Background(), addr, sub)
	require.NoError(t, err)
	defer fw.Close()

	ex.Publish(context.Background(), &CommitEvent{Seq: 1, Kind: kernel.KindProcessCreated})
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 0, svc.count())

	svc.fail.Store(false)
	require.Eventually(t, func() bool { return svc.count() == 1 }, 3*time.Second, 10*time.Millisecond)
}
