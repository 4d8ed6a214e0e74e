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
	"sync"
	"time"

	v1 "github.com/containerd/containerd/api/services/ttrpc/events/v1"
	"github.com/containerd/containerd/api/types"
	"github.com/containerd/log"
	"github.com/containerd/ttrpc"
)

const (
	forwardQueueSize = 2048
	maxRequeue       = 5
)

type queuedEnvelope struct {
	env   *types.Envelope
	count int
}

// Forwarder drains a Subscriber and pushes each envelope to a remote
// ttrpc endpoint's events service, the same wire shape containerd's shim
// publisher uses. A dropped connection is retried with backoff up to
// maxRequeue times before the envelope is given up on; the exchange
// itself never blocks on a slow or unreachable remote (spec's
// "observability fan-out only" guarantee).
type Forwarder struct {
	address string
	dial    func(ctx context.Context, network, address string) (net.Conn, error)

	mu      sync.Mutex
	client  *ttrpc.Client
	conn    net.Conn
	requeue chan *queuedEnvelope
	closed  chan struct{}
	once    sync.Once
}

// NewForwarder connects to address (a unix socket path, dialed as-is over
// the "unix" network) and starts draining sub, forwarding every envelope.
func NewForwarder(ctx context.Context, address string, sub *Subscriber) (*Forwarder, error) {
	f := &Forwarder{
		address: address,
		dial:    defaultDialer,
		requeue: make(chan *queuedEnvelope, forwardQueueSize),
		closed:  make(chan struct{}),
	}
	if err := f.connect(ctx); err != nil {
		return nil, err
	}
	go f.consume(ctx, sub)
	go f.processRequeue(ctx)
	return f, nil
}

func defaultDialer(ctx context.Context, network, address string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, network, address)
}

func (f *Forwarder) connect(ctx context.Context) error {
	conn, err := f.dial(ctx, "unix", f.address)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.conn = conn
	f.client = ttrpc.NewClient(conn)
	f.mu.Unlock()
	return nil
}

func (f *Forwarder) consume(ctx context.Context, sub *Subscriber) {
	for {
		select {
		case <-f.closed:
			return
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			envelope, ok := ev.(*types.Envelope)
			if !ok {
				continue
			}
			if err := f.forward(ctx, envelope); err != nil {
				log.L.WithError(err).Warn("forwarding commit event, requeueing")
				f.queue(&queuedEnvelope{env: envelope})
			}
		}
	}
}

func (f *Forwarder) processRequeue(ctx context.Context) {
	for {
		select {
		case <-f.closed:
			return
		case item := <-f.requeue:
			if item.count > maxRequeue {
				log.L.WithField("topic", item.env.Topic).Error("evicting event from forward queue after repeated failure")
				continue
			}
			if err := f.forward(ctx, item.env); err != nil {
				f.queue(item)
			}
		}
	}
}

func (f *Forwarder) queue(item *queuedEnvelope) {
	go func() {
		item.count++
		time.Sleep(time.Duration(item.count) * time.Second)
		select {
		case f.requeue <- item:
		case <-f.closed:
		}
	}()
}

func (f *Forwarder) forward(ctx context.Context, env *types.Envelope) error {
	f.mu.Lock()
	client := f.client
	f.mu.Unlock()

	fctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := v1.NewEventsClient(client).Forward(fctx, &v1.ForwardRequest{Envelope: env})
	if err == nil {
		return nil
	}
	if reconnErr := f.connect(ctx); reconnErr != nil {
		return err
	}
	f.mu.Lock()
	client = f.client
	f.mu.Unlock()
	_, err = v1.NewEventsClient(client).Forward(fctx, &v1.ForwardRequest{Envelope: env})
	return err
}

// Close stops forwarding and releases the ttrpc connection.
func (f *Forwarder) Close() error {
	f.once.Do(func() { close(f.closed) })
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}
