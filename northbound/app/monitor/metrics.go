/*
 * Almond - A Load-Aware OpenFlow Controller
 *
 * Copyright (C) 2015-2019 Samjung Data Service, Inc. All rights reserved.
 *  Kitae Kim <superkkt@sds.co.kr>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */

package monitor

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	descSwitchPackets = prometheus.NewDesc(
		"almond_switch_packets_total",
		"Number of table-miss frames handled by the controller for each switch.",
		[]string{"switch"}, nil,
	)
	descSwitchRegistered = prometheus.NewDesc(
		"almond_switches_registered",
		"Number of switches that have an established session.",
		nil, nil,
	)
	descLinkWeight = prometheus.NewDesc(
		"almond_link_weight",
		"Weight of each directed link of the topology.",
		[]string{"from", "to", "port"}, nil,
	)
)

type collector struct {
	monitor *Monitor
}

var _ prometheus.Collector = &collector{}

// Collector exposes the packet counters, the registered switches and the link
// weights as Prometheus metrics.
func (r *Monitor) Collector() prometheus.Collector {
	return &collector{monitor: r}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descSwitchPackets
	ch <- descSwitchRegistered
	ch <- descLinkWeight
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	for _, v := range c.monitor.Summary().PerSwitch {
		ch <- prometheus.MustNewConstMetric(descSwitchPackets, prometheus.CounterValue, float64(v.Count), formatID(v.SwitchID))
	}
	registered := 0
	for range c.monitor.registry.Switches() {
		registered++
	}
	ch <- prometheus.MustNewConstMetric(descSwitchRegistered, prometheus.GaugeValue, float64(registered))

	for _, l := range c.monitor.topology.Links() {
		ch <- prometheus.MustNewConstMetric(
			descLinkWeight,
			prometheus.GaugeValue,
			float64(l.Weight),
			formatID(l.From),
			formatID(l.To),
			strconv.FormatUint(uint64(l.Port), 10),
		)
	}
}

func formatID(id uint64) string {
	return strconv.FormatUint(id, 10)
}
