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

package plugin

import (
	"github.com/containerd/plugin"
	"github.com/containerd/plugin/registry"

	"github.com/zeroos-project/zeroos/core/events"
	zplugins "github.com/zeroos-project/zeroos/plugins"
)

func init() {
	registry.Register(&plugin.Registration{
		Type: zplugins.EventsPlugin,
		ID:   "exchange",
		InitFn: func(ic *plugin.InitContext) (interface{}, error) {
			return events.NewExchange(), nil
		},
	})
}
