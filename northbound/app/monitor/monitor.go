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

// Package monitor periodically polls the port counters of every switch,
// converts them into link weights and reports the packet statistics.
package monitor

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/superkkt/almond/graph"
	"github.com/superkkt/almond/network"
	"github.com/superkkt/almond/stats"

	"github.com/op/go-logging"
)

var (
	logger = logging.MustGetLogger("monitor")
)

const (
	DefaultInterval = 5 * time.Second
	// Weight of a discovered link until its port counters are known.
	initialLinkWeight = 1
)

type Registry interface {
	Switches() iter.Seq[uint64]
	Session(id uint64) (network.Session, bool)
}

type Topology interface {
	Links() []graph.Link
	AddLink(l graph.Link) (added bool, err error)
	LinkByPort(from uint64, port uint32) (graph.Link, bool)
	SetLinkWeight(from, to, weight uint64) error
	RemoveStaleLinks(expiration time.Duration) (removed bool)
}

type Counters interface {
	Snapshot() map[uint64]uint64
}

type portKey struct {
	switchID uint64
	port     uint32
}

type Monitor struct {
	registry   Registry
	topology   Topology
	counters   Counters
	publisher  Publisher
	interval   time.Duration
	expiration time.Duration

	mutex sync.Mutex
	// Last tx-bytes counter of each port.
	txBytes map[portKey]uint64
}

// New returns a monitor that ticks every DefaultInterval. publisher can be nil.
func New(registry Registry, topology Topology, counters Counters, publisher Publisher) *Monitor {
	return &Monitor{
		registry:  registry,
		topology:  topology,
		counters:  counters,
		publisher: publisher,
		interval:  DefaultInterval,
		txBytes:   make(map[portKey]uint64),
	}
}

func (r *Monitor) Name() string {
	return "Monitor"
}

func (r *Monitor) String() string {
	return fmt.Sprintf("%v(Interval=%v, LinkExpiration=%v)", r.Name(), r.interval, r.expiration)
}

// SetInterval should be called before Run.
func (r *Monitor) SetInterval(d time.Duration) {
	if d <= 0 {
		d = DefaultInterval
	}
	r.interval = d
}

// SetLinkExpiration sets the lifetime of the discovered links that are not
// refreshed. Zero disables the expiration. It should be called before Run.
func (r *Monitor) SetLinkExpiration(d time.Duration) {
	r.expiration = d
}

// Run ticks until ctx is canceled.
func (r *Monitor) Run(ctx context.Context) {
	logger.Infof("starting the statistics monitor: interval=%v", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("statistics monitor is stopped")
			return
		case <-ticker.C:
			r.tick()
		}
	}
}

func (r *Monitor) tick() {
	r.requestPortStats()
	if r.expiration > 0 {
		r.topology.RemoveStaleLinks(r.expiration)
	}

	summary := r.Summary()
	for _, line := range summary.Lines() {
		logger.Info(line)
	}
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(summary); err != nil {
		logger.Errorf("failed to publish the statistics: %v", err)
	}
}

// The replies arrive later as PortStatsReply events.
func (r *Monitor) requestPortStats() {
	for id := range r.registry.Switches() {
		s, ok := r.registry.Session(id)
		if !ok {
			continue
		}
		if err := s.RequestPortStats(); err != nil {
			logger.Warningf("failed to request the port statistics of switch %v: %v", id, err)
			continue
		}
		logger.Debugf("requested the port statistics of switch %v", id)
	}
}

// Summary returns the current packet statistics.
func (r *Monitor) Summary() stats.Summary {
	return stats.Summarize(r.counters.Snapshot(), slices.Collect(r.registry.Switches()))
}

// OnPortStats updates the weight of every link whose egress port is reported
// with the number of bytes transmitted since the previous reply.
func (r *Monitor) OnPortStats(ev network.PortStatsReply) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, v := range ev.Ports {
		logger.Infof("port stats: switch=%v, port=%v, rx_bytes=%v, tx_bytes=%v", ev.SwitchID, v.Port, v.RxBytes, v.TxBytes)

		key := portKey{ev.SwitchID, v.Port}
		prev, ok := r.txBytes[key]
		r.txBytes[key] = v.TxBytes
		// A counter reset starts a new baseline.
		if !ok || v.TxBytes < prev {
			continue
		}

		link, ok := r.topology.LinkByPort(ev.SwitchID, v.Port)
		if !ok {
			continue
		}
		weight := v.TxBytes - prev
		if err := r.topology.SetLinkWeight(link.From, link.To, weight); err != nil {
			logger.Warningf("failed to update the link weight: %v", err)
			continue
		}
		logger.Debugf("updated the link weight: %v -> %v, weight=%v", link.From, link.To, weight)
	}
}

func (r *Monitor) OnLinkDiscovered(ev network.LinkDiscovered) {
	added, err := r.topology.AddLink(graph.Link{
		From:   ev.From,
		To:     ev.To,
		Port:   ev.FromPort,
		Weight: initialLinkWeight,
	})
	if err != nil {
		logger.Warningf("failed to add a discovered link: %v", err)
		return
	}
	if added {
		logger.Infof("discovered a new link: %v:%v -> %v:%v", ev.From, ev.FromPort, ev.To, ev.ToPort)
	}
}

// OnSessionLost forgets the port counters of the switch.
func (r *Monitor) OnSessionLost(ev network.SessionLost) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for k := range r.txBytes {
		if k.switchID == ev.SwitchID {
			delete(r.txBytes, k)
		}
	}
}
