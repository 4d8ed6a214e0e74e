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

package command

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/containerd/log"
	"github.com/containerd/plugin"
	"github.com/containerd/plugin/registry"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v2"

	zconfig "github.com/zeroos-project/zeroos/cmd/zeroosd/config"
	"github.com/zeroos-project/zeroos/core/gateway"
	"github.com/zeroos-project/zeroos/supervisor"
	zplugins "github.com/zeroos-project/zeroos/plugins"

	// Register every plugin this daemon can boot. Each import is for its
	// init() side effect only; DisabledPlugins in the config, not build
	// tags, controls which of these actually start.
	_ "github.com/zeroos-project/zeroos/plugins/events"
	_ "github.com/zeroos-project/zeroos/plugins/gateway"
	_ "github.com/zeroos-project/zeroos/plugins/hal/hardware"
	_ "github.com/zeroos-project/zeroos/plugins/hal/wasm"
	_ "github.com/zeroos-project/zeroos/plugins/metrics"
	_ "github.com/zeroos-project/zeroos/plugins/tracing"
)

// RunCommand boots the plugin graph, bootstraps the supervisor and
// Init, and blocks until a termination signal arrives.
var RunCommand = &cli.Command{
	Name:  "run",
	Usage: "Run the zeroos daemon in the foreground",
	Action: func(cliContext *cli.Context) error {
		ctx := cliContext.Context
		cfg, err := zconfig.Load(ctx, cliContext.String("config"))
		if err != nil {
			return err
		}
		if err := log.SetLevel(cfg.Debug.Level); err != nil {
			return fmt.Errorf("setting log level %q: %w", cfg.Debug.Level, err)
		}

		for _, dir := range []string{cfg.Root, cfg.State} {
			if err := os.MkdirAll(dir, 0711); err != nil {
				return fmt.Errorf("creating %s: %w", dir, err)
			}
		}

		set, err := bootPlugins(ctx, cfg)
		if err != nil {
			return fmt.Errorf("booting plugin graph: %w", err)
		}

		gwPlugin, err := set.GetSingle(zplugins.GatewayPlugin)
		if err != nil {
			return fmt.Errorf("no gateway plugin booted (check hal/gateway config): %w", err)
		}
		gw := gwPlugin.(*gateway.Gateway)

		in, err := supervisor.Bootstrap(ctx, gw)
		if err != nil {
			return fmt.Errorf("bootstrapping supervisor and init: %w", err)
		}

		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		done := make(chan struct{})
		go func() {
			in.Run(runCtx)
			close(done)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		log.G(ctx).Info("zeroosd: boot complete, serving")
		select {
		case sig := <-sigCh:
			log.G(ctx).WithField("signal", sig).Info("zeroosd: shutting down")
		case <-runCtx.Done():
		}
		cancel()
		<-done
		return nil
	},
}

// bootPlugins walks the plugin dependency graph in the order
// registry.Graph resolves (dependencies before dependents) and
// initializes each one that isn't disabled, the same boot strategy
// containerd's daemon uses.
func bootPlugins(ctx context.Context, cfg *zconfig.Config) (*plugin.Set, error) {
	disabled := make(map[string]bool, len(cfg.DisabledPlugins))
	for _, id := range cfg.DisabledPlugins {
		disabled[id] = true
	}

	properties := map[string]string{
		zplugins.PropertyRootDir:  cfg.Root,
		zplugins.PropertyStateDir: cfg.State,
	}

	set := plugin.NewPluginSet()
	for _, reg := range registry.Graph(func(r *plugin.Registration) bool {
		return disabled[pluginURI(r)] || (r.Type == zplugins.HALPlugin && r.ID != cfg.HAL)
	}) {
		ic := plugin.NewContext(ctx, reg, set, properties)
		if reg.Config != nil {
			if err := decodePluginConfig(cfg, reg, ic); err != nil {
				return nil, fmt.Errorf("plugin %s: %w", pluginURI(reg), err)
			}
		}

		p := reg.Init(ic)
		if err := set.Add(p); err != nil {
			return nil, fmt.Errorf("registering plugin %s: %w", pluginURI(reg), err)
		}
		if _, err := p.Instance(); err != nil {
			log.G(ctx).WithError(err).WithField("plugin", pluginURI(reg)).Warn("plugin failed to initialize")
		}
	}
	return set, nil
}

func pluginURI(r *plugin.Registration) string {
	return string(r.Type) + "." + r.ID
}

// decodePluginConfig re-marshals the freeform TOML table zconfig.Config
// parsed for this plugin's URI back into reg.Config's concrete type, so
// each plugin's init() keeps declaring its own typed Config rather than
// reaching into a map[string]interface{} by hand.
func decodePluginConfig(cfg *zconfig.Config, reg *plugin.Registration, ic *plugin.InitContext) error {
	raw, ok := cfg.Plugins[pluginURI(reg)]
	if !ok {
		ic.Config = reg.Config
		return nil
	}
	data, err := toml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("re-marshaling config table: %w", err)
	}
	if err := toml.Unmarshal(data, reg.Config); err != nil {
		return fmt.Errorf("decoding config table: %w", err)
	}
	ic.Config = reg.Config
	return nil
}
