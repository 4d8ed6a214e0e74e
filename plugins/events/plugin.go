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

// Package plugin forwards the kernel's commit event stream to a remote
// ttrpc events sink, the role containerd's shim publisher plays for
// task events. It is off by default: with no Config.Address the plugin
// registers but never dials out, since the exchange is fully usable
// in-process without a remote subscriber.
package plugin

import (
	"context"

	"github.com/containerd/plugin"
	"github.com/containerd/plugin/registry"

	"github.com/zeroos-project/zeroos/core/events"
	zplugins "github.com/zeroos-project/zeroos/plugins"
)

// Config is the TOML-visible forwarding configuration.
type Config struct {
	// Address is the ttrpc events sink to forward to, e.g. a unix
	// socket path. Empty disables forwarding.
	Address string `toml:"address"`
}

func init() {
	registry.Register(&plugin.Registration{
		Type: zplugins.TTRPCPlugin,
		ID:   "events-forward",
		Requires: []plugin.Type{
			zplugins.EventsPlugin,
		},
		Config: &Config{},
		InitFn: func(ic *plugin.InitContext) (interface{}, error) {
			cfg := ic.Config.(*Config)
			if cfg.Address == "" {
				return nil, nil
			}

			exchange, err := ic.GetSingle(zplugins.EventsPlugin)
			if err != nil {
				return nil, err
			}

			sub := exchange.(*events.Exchange).Subscribe()
			return events.NewForwarder(context.Background(), cfg.Address, sub)
		},
	})
}
