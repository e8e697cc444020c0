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

package northbound

import (
	"net"
	"sync"
	"testing"

	"github.com/superkkt/almond/graph"
	"github.com/superkkt/almond/network"
	"github.com/superkkt/almond/northbound/app/l2switch"
	"github.com/superkkt/almond/northbound/app/monitor"
	"github.com/superkkt/almond/protocol"
	"github.com/superkkt/almond/stats"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/go-cmp/cmp"
)

type fakeSession struct {
	mutex   sync.Mutex
	id      uint64
	flows   []network.FlowRule
	packets []network.PacketOut
}

func (r *fakeSession) ID() uint64 {
	return r.id
}

func (r *fakeSession) InstallFlow(rule network.FlowRule) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.flows = append(r.flows, rule)
	return nil
}

func (r *fakeSession) EmitPacket(p network.PacketOut) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.packets = append(r.packets, p)
	return nil
}

func (r *fakeSession) RequestPortStats() error {
	return nil
}

func (r *fakeSession) Close() error {
	return nil
}

func newManager(t *testing.T) (*Manager, *network.Registry, *graph.Graph, *stats.Counters) {
	topology := graph.New()
	registry := network.NewRegistry(topology)
	counters := stats.NewCounters()

	macs := l2switch.NewMacTable()
	installer, err := l2switch.NewInstaller(0)
	if err != nil {
		t.Fatal(err)
	}
	l2 := l2switch.New(registry, macs, l2switch.NewPlanner(macs, topology, counters), installer, counters)
	m := monitor.New(registry, topology, counters, nil)

	return NewManager(l2, m), registry, topology, counters
}

func TestManagerDispatch(t *testing.T) {
	manager, registry, topology, counters := newManager(t)

	s1, s2 := &fakeSession{id: 1}, &fakeSession{id: 2}
	for _, s := range []*fakeSession{s1, s2} {
		registry.Register(s.id, s)
		manager.Handle(network.SessionEstablished{SwitchID: s.id, Session: s})
	}
	if len(s1.flows) != 1 || !s1.flows[0].Match.IsWildcard() {
		t.Fatalf("unexpected table-miss flow: %v", spew.Sdump(s1.flows))
	}

	manager.Handle(network.LinkDiscovered{From: 1, FromPort: 5, To: 2, ToPort: 6})
	manager.Handle(network.LinkDiscovered{From: 2, FromPort: 6, To: 1, ToPort: 5})
	path, err := topology.ShortestPath(1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !cmp.Equal([]uint64{1, 2}, path) {
		t.Fatalf("unexpected path: %v", path)
	}

	manager.Handle(network.PortStatsReply{SwitchID: 1, Ports: []network.PortStats{{Port: 5, TxBytes: 10}}})
	manager.Handle(network.PortStatsReply{SwitchID: 1, Ports: []network.PortStats{{Port: 5, TxBytes: 40}}})
	if w, _ := topology.LinkWeight(1, 2); w != 30 {
		t.Fatalf("unexpected link weight: %v", w)
	}

	src := net.HardwareAddr{0, 0, 0, 0, 0, 1}
	dst := net.HardwareAddr{0, 0, 0, 0, 0, 2}
	manager.Handle(network.PacketIn{
		SwitchID: 2,
		InPort:   1,
		BufferID: network.NoBuffer,
		Frame:    &protocol.Frame{SrcMAC: dst, DstMAC: src, EtherType: protocol.EtherTypeIPv4},
		Data:     []byte{1},
	})
	manager.Handle(network.PacketIn{
		SwitchID: 1,
		InPort:   1,
		BufferID: network.NoBuffer,
		Frame:    &protocol.Frame{SrcMAC: src, DstMAC: dst, EtherType: protocol.EtherTypeIPv4},
		Data:     []byte{2},
	})
	// dst has been learned on switch 2 port 1, and switch 1 forwards the
	// frame out of the port learned by its next hop.
	if len(s1.flows) != 2 || s1.flows[1].OutPort != 1 {
		t.Fatalf("unexpected flows: %v", spew.Sdump(s1.flows))
	}
	if counters.Get(1) != 1 || counters.Get(2) != 1 {
		t.Fatalf("unexpected counters: %v", counters.Snapshot())
	}

	registry.Unregister(1, s1)
	manager.Handle(network.SessionLost{SwitchID: 1, Session: s1})
	if topology.HasNode(1) {
		t.Fatal("switch 1 is still in the topology")
	}
}

func TestManagerString(t *testing.T) {
	manager, _, _, _ := newManager(t)
	if manager.String() != "L2Switch\nMonitor\n" {
		t.Fatalf("unexpected applications: %q", manager.String())
	}
}
