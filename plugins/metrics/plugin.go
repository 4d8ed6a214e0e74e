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

// Package plugin registers the kernel's prometheus metrics namespace:
// SysLog/CommitLog occupancy and live process counts, gathered on every
// scrape rather than pushed, by polling the Gateway directly.
package plugin

import (
	metrics "github.com/docker/go-metrics"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/containerd/plugin"
	"github.com/containerd/plugin/registry"

	"github.com/zeroos-project/zeroos/core/gateway"
	zplugins "github.com/zeroos-project/zeroos/plugins"
)

func init() {
	registry.Register(&plugin.Registration{
		Type: zplugins.MetricsPlugin,
		ID:   "kernel",
		Requires: []plugin.Type{
			zplugins.GatewayPlugin,
		},
		InitFn: func(ic *plugin.InitContext) (interface{}, error) {
			gw, err := ic.GetSingle(zplugins.GatewayPlugin)
			if err != nil {
				return nil, err
			}
			ns := metrics.NewNamespace("zeroos", "", nil)
			ns.Add(newCollector(gw.(*gateway.Gateway)))
			metrics.Register(ns)
			return ns, nil
		},
	})
}

type collector struct {
	gw *gateway.Gateway

	processes *prometheus.Desc
	commitLog *prometheus.Desc
	sysLog    *prometheus.Desc
}

func newCollector(gw *gateway.Gateway) *collector {
	return &collector{
		gw:        gw,
		processes: prometheus.NewDesc("zeroos_processes", "Number of processes in the kernel process table.", nil, nil),
		commitLog: prometheus.NewDesc("zeroos_commitlog_occupancy", "Number of commits currently retained in the CommitLog ring.", nil, nil),
		sysLog:    prometheus.NewDesc("zeroos_syslog_occupancy", "Number of events currently retained in the SysLog ring.", nil, nil),
	}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.processes
	ch <- c.commitLog
	ch <- c.sysLog
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	state := c.gw.State()
	ch <- prometheus.MustNewConstMetric(c.processes, prometheus.GaugeValue, float64(len(state.Processes)))
	ch <- prometheus.MustNewConstMetric(c.commitLog, prometheus.GaugeValue, float64(c.gw.CommitLogOccupancy()))
	ch <- prometheus.MustNewConstMetric(c.sysLog, prometheus.GaugeValue, float64(c.gw.SysLogOccupancy()))
}
