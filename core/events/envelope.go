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

// Package events is the observability fan-out for the kernel: every
// Gateway.Dispatch call publishes the commits it admitted onto an
// in-process Exchange, purely for operators and the ttrpc forwarder in
// plugins/events. Nothing here feeds back into kernel.Step or replay —
// losing every subscriber never changes a single bit of kernel state.
package events

import (
	"time"

	"github.com/containerd/containerd/api/types"
	"github.com/containerd/typeurl/v2"
	"github.com/zeroos-project/zeroos/core/kernel"
)

func init() {
	typeurl.Register(&CommitEvent{}, "zeroos", "CommitEvent")
}

// CommitEvent is the typeurl-registered payload carried inside a
// types.Envelope for one admitted commit. Namespace is always "zeroos":
// the kernel has no multi-tenant namespace concept of its own, but the
// envelope format the teacher's tooling already understands requires one.
type CommitEvent struct {
	Seq       uint64
	ID        [32]byte
	Kind      kernel.CommitKind
	Timestamp uint64
}

// ToEnvelope wraps ev for publication on an Exchange, the same shape the
// ttrpc events service in plugins/events forwards over the wire.
func ToEnvelope(ev *CommitEvent, at time.Time) (*types.Envelope, error) {
	any, err := typeurl.MarshalAny(ev)
	if err != nil {
		return nil, err
	}
	return &types.Envelope{
		Timestamp: timeToProto(at),
		Namespace: "zeroos",
		Topic:     commitTopic(ev.Kind),
		Event:     any,
	}, nil
}

func commitTopic(kind kernel.CommitKind) string {
	switch kind {
	case kernel.KindProcessCreated:
		return "/processes/created"
	case kernel.KindProcessExited:
		return "/processes/exited"
	case kernel.KindProcessFaulted:
		return "/processes/faulted"
	case kernel.KindProcessKilled:
		return "/processes/killed"
	case kernel.KindCapInserted, kernel.KindCapGranted:
		return "/capabilities/inserted"
	case kernel.KindCapRemoved:
		return "/capabilities/removed"
	case kernel.KindEndpointCreated:
		return "/endpoints/created"
	case kernel.KindEndpointDestroyed:
		return "/endpoints/destroyed"
	case kernel.KindMessageSent:
		return "/ipc/sent"
	default:
		return "/commits/unknown"
	}
}
