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
	"time"

	goevents "github.com/docker/go-events"

	"github.com/containerd/log"
)

// Exchange is a small wrapper around docker/go-events's Broadcaster,
// giving every subscriber its own draining queue so one slow
// ttrpc forwarder (plugins/events) can never back-pressure the Gateway
// that is publishing into it.
type Exchange struct {
	broadcaster *goevents.Broadcaster
}

// NewExchange returns an Exchange with no subscribers.
func NewExchange() *Exchange {
	return &Exchange{broadcaster: goevents.NewBroadcaster()}
}

// Publish wraps ev and fans it out to every current subscriber. Publish
// never blocks on a subscriber: goevents.NewQueue buffers per-subscriber
// without a size limit, and the subscriber's channel sink drops events,
// not the publisher, once its channel buffer is full.
func (e *Exchange) Publish(ctx context.Context, ev *CommitEvent) {
	envelope, err := ToEnvelope(ev, time.Now())
	if err != nil {
		log.G(ctx).WithError(err).Warn("failed to marshal commit event, dropping")
		return
	}
	if err := e.broadcaster.Write(envelope); err != nil {
		log.G(ctx).WithError(err).Warn("failed to publish commit event")
	}
}

// Subscriber is a queue of envelopes delivered to one consumer,
// used by plugins/events to drive its ttrpc forwarding loop.
type Subscriber struct {
	queue *goevents.Queue
	sink  *channelSink
}

// Subscribe registers a new Subscriber on the exchange. Call Close when
// the consumer is done to stop receiving and free the underlying queue
// goroutine.
func (e *Exchange) Subscribe() *Subscriber {
	sink := newChannelSink()
	queue := goevents.NewQueue(sink)
	e.broadcaster.Add(queue)
	return &Subscriber{queue: queue, sink: sink}
}

// Close stops delivery to this subscriber and removes it from the
// exchange.
func (s *Subscriber) Close() error {
	return s.queue.Close()
}

// C is the channel new envelopes arrive on.
func (s *Subscriber) C() <-chan goevents.Event {
	return s.sink.c
}

type channelSink struct {
	c chan goevents.Event
}

func newChannelSink() *channelSink {
	return &channelSink{c: make(chan goevents.Event, 128)}
}

func (s *channelSink) Write(ev goevents.Event) error {
	select {
	case s.c <- ev:
	default:
		log.L.Warn("events subscriber channel full, dropping event")
	}
	return nil
}

func (s *channelSink) Close() error {
	close(s.c)
	return nil
}
