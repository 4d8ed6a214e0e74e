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

// Package plugins is the vocabulary of plugin.Type and well-known
// property keys that zeroosd's plugin graph is built from. It holds no
// logic, only the identifiers every concrete plugin registers against or
// requires.
package plugins

import "github.com/containerd/plugin"

const (
	// HALPlugin provides a core/hal.HAL implementation (exactly one of
	// hal/wasm or hal/hardware is registered per daemon invocation).
	HALPlugin plugin.Type = "io.zeroos.hal.v1"
	// GatewayPlugin provides the *gateway.Gateway singleton every
	// transport and service depends on.
	GatewayPlugin plugin.Type = "io.zeroos.gateway.v1"
	// EventsPlugin provides the *events.Exchange singleton.
	EventsPlugin plugin.Type = "io.zeroos.events.v1"
	// MetricsPlugin registers docker/go-metrics gauges against the
	// daemon's registry.
	MetricsPlugin plugin.Type = "io.zeroos.metrics.v1"
	// TracingPlugin provides the configured trace.TracerProvider.
	TracingPlugin plugin.Type = "io.zeroos.tracing.v1"
	// TTRPCPlugin marks a service that registers itself onto the
	// daemon's ttrpc.Server.
	TTRPCPlugin plugin.Type = "io.zeroos.ttrpc.v1"
)

// Well-known InitContext.Properties keys.
const (
	PropertyRootDir  = "io.zeroos.root"
	PropertyStateDir = "io.zeroos.state"
)
