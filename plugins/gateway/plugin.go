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

// Package plugin provides the *gateway.Gateway singleton: the one
// object in zeroosd that is allowed to call kernel.Step. Every other
// plugin that touches kernel state (init, the ttrpc services, metrics,
// tracing) requires this plugin rather than constructing its own
// Gateway.
package plugin

import (
	"fmt"
	"path/filepath"

	"github.com/containerd/plugin"
	"github.com/containerd/plugin/registry"

	"github.com/zeroos-project/zeroos/core/axiomlog"
	"github.com/zeroos-project/zeroos/core/events"
	"github.com/zeroos-project/zeroos/core/gateway"
	"github.com/zeroos-project/zeroos/core/hal"
	zplugins "github.com/zeroos-project/zeroos/plugins"
)

// Config is the TOML-visible configuration for the Gateway plugin.
type Config struct {
	// Durable opens a bbolt CommitLog mirror under the daemon's state
	// directory, so the hardware platform can replay across a reboot
	// instead of starting from Genesis. The wasm HAL has nothing to
	// reboot, so it normally leaves this false.
	Durable bool `toml:"durable"`
}

func init() {
	registry.Register(&plugin.Registration{
		Type: zplugins.GatewayPlugin,
		ID:   "gateway",
		Requires: []plugin.Type{
			zplugins.HALPlugin,
			zplugins.EventsPlugin,
		},
		Config: &Config{},
		InitFn: func(ic *plugin.InitContext) (interface{}, error) {
			halPlugin, err := ic.GetSingle(zplugins.HALPlugin)
			if err != nil {
				return nil, err
			}
			h := halPlugin.(hal.HAL)

			exchangePlugin, err := ic.GetSingle(zplugins.EventsPlugin)
			if err != nil {
				return nil, err
			}
			opts := []gateway.Option{
				gateway.WithClock(h.Now),
				gateway.WithExchange(exchangePlugin.(*events.Exchange)),
			}

			cfg := ic.Config.(*Config)
			if cfg.Durable {
				stateDir := ic.Properties[zplugins.PropertyStateDir]
				store, err := axiomlog.OpenStore(filepath.Join(stateDir, "axiom.db"))
				if err != nil {
					return nil, fmt.Errorf("opening durable axiom store: %w", err)
				}
				opts = append(opts, gateway.WithStore(store))
			}

			return gateway.New(h, opts...), nil
		},
	})
}
