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

package l2switch

import (
	"net"
	"sync"
	"testing"

	"github.com/superkkt/almond/graph"
	"github.com/superkkt/almond/network"
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
	stats   int
	err     error
}

func (r *fakeSession) ID() uint64 {
	return r.id
}

func (r *fakeSession) InstallFlow(rule network.FlowRule) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.err != nil {
		return r.err
	}
	r.flows = append(r.flows, rule)
	return nil
}

func (r *fakeSession) EmitPacket(p network.PacketOut) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.err != nil {
		return r.err
	}
	r.packets = append(r.packets, p)
	return nil
}

func (r *fakeSession) RequestPortStats() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.stats++
	return r.err
}

func (r *fakeSession) Close() error {
	return nil
}

type fakeSessions map[uint64]network.Session

func (r fakeSessions) Session(id uint64) (network.Session, bool) {
	v, ok := r[id]
	return v, ok
}

var (
	hostA = net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x0a}
	hostB = net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x0b}
	hostH = net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x77}
	bcast = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
)

type fixture struct {
	topology *graph.Graph
	counters *stats.Counters
	sessions fakeSessions
	app      *L2Switch
}

func newFixture(t *testing.T, switches ...uint64) *fixture {
	f := &fixture{
		topology: graph.New(),
		counters: stats.NewCounters(),
		sessions: make(fakeSessions),
	}
	for _, id := range switches {
		f.topology.AddNode(id)
		f.sessions[id] = &fakeSession{id: id}
	}

	macs := NewMacTable()
	installer, err := NewInstaller(16)
	if err != nil {
		t.Fatal(err)
	}
	f.app = New(f.sessions, macs, NewPlanner(macs, f.topology, f.counters), installer, f.counters)

	return f
}

func (r *fixture) session(id uint64) *fakeSession {
	return r.sessions[id].(*fakeSession)
}

func packetIn(sw uint64, inPort uint32, src, dst net.HardwareAddr, bufferID uint32) network.PacketIn {
	return network.PacketIn{
		SwitchID: sw,
		InPort:   inPort,
		BufferID: bufferID,
		Frame:    &protocol.Frame{SrcMAC: src, DstMAC: dst, EtherType: protocol.EtherTypeIPv4},
		Data:     []byte{0xde, 0xad, 0xbe, 0xef},
	}
}

func TestLocalDestination(t *testing.T) {
	f := newFixture(t, 1)
	f.app.MacTable().Learn(1, hostB, 2)

	if state := f.app.process(packetIn(1, 1, hostA, hostB, network.NoBuffer)); state != resolvedLocal {
		t.Fatalf("unexpected state: %v", state)
	}

	s := f.session(1)
	expected := []network.FlowRule{
		{
			Priority: 1,
			Match:    network.Match{InPort: 1, DstMAC: hostB, SrcMAC: hostA},
			OutPort:  2,
			BufferID: network.NoBuffer,
		},
	}
	if !cmp.Equal(expected, s.flows) {
		t.Fatalf("unexpected flows: %v", spew.Sdump(s.flows))
	}
	// The unbuffered frame is emitted once out of the learned port.
	if len(s.packets) != 1 || s.packets[0].OutPort != 2 || s.packets[0].InPort != 1 {
		t.Fatalf("unexpected packet-outs: %v", spew.Sdump(s.packets))
	}
	if !cmp.Equal([]byte{0xde, 0xad, 0xbe, 0xef}, s.packets[0].Data) {
		t.Fatalf("unexpected data: %v", s.packets[0].Data)
	}
	// The source has been learned.
	if port, ok := f.app.MacTable().Lookup(1, hostA); !ok || port != 1 {
		t.Fatalf("source is not learned: port=%v, ok=%v", port, ok)
	}
	if f.counters.Get(1) != 1 {
		t.Fatalf("unexpected counter: %v", f.counters.Get(1))
	}
}

func TestLocalDestinationBuffered(t *testing.T) {
	f := newFixture(t, 1)
	f.app.MacTable().Learn(1, hostB, 2)

	f.app.process(packetIn(1, 1, hostA, hostB, 0x33))

	s := f.session(1)
	if len(s.flows) != 1 || s.flows[0].BufferID != 0x33 || s.flows[0].OutPort != 2 {
		t.Fatalf("unexpected flows: %v", spew.Sdump(s.flows))
	}
	if len(s.packets) != 0 {
		t.Fatalf("unexpected packet-outs for a buffered frame: %v", spew.Sdump(s.packets))
	}
}

func TestUnknownDestinationFloods(t *testing.T) {
	f := newFixture(t, 1)

	for _, dst := range []net.HardwareAddr{hostB, bcast} {
		if state := f.app.process(packetIn(1, 1, hostA, dst, network.NoBuffer)); state != unresolved {
			t.Fatalf("unexpected state: %v", state)
		}
	}

	s := f.session(1)
	if len(s.flows) != 0 {
		t.Fatalf("flood must not install flows: %v", spew.Sdump(s.flows))
	}
	if len(s.packets) != 2 {
		t.Fatalf("unexpected packet-outs: %v", spew.Sdump(s.packets))
	}
	for _, p := range s.packets {
		if p.OutPort != network.PortFlood || p.InPort != 1 || p.Data == nil {
			t.Fatalf("unexpected flood packet-out: %v", spew.Sdump(p))
		}
	}
	if f.counters.Get(1) != 2 {
		t.Fatalf("unexpected counter: %v", f.counters.Get(1))
	}
}

func TestBufferedFlood(t *testing.T) {
	f := newFixture(t, 1)
	f.app.process(packetIn(1, 1, hostA, hostB, 0x10))

	s := f.session(1)
	if len(s.packets) != 1 || s.packets[0].BufferID != 0x10 || s.packets[0].Data != nil {
		t.Fatalf("unexpected packet-outs: %v", spew.Sdump(s.packets))
	}
}

func TestLLDPIsDropped(t *testing.T) {
	f := newFixture(t, 1)
	ev := packetIn(1, 1, hostA, hostB, network.NoBuffer)
	ev.Frame.EtherType = protocol.EtherTypeLLDP

	if state := f.app.process(ev); state != dropped {
		t.Fatalf("unexpected state: %v", state)
	}
	s := f.session(1)
	if len(s.flows) != 0 || len(s.packets) != 0 {
		t.Fatal("LLDP must not be forwarded")
	}
	if len(f.app.MacTable().Hosts()) != 0 {
		t.Fatalf("LLDP must not be learned: %v", f.app.MacTable().Hosts())
	}
	if f.counters.Get(1) != 0 {
		t.Fatalf("LLDP must not be counted: %v", f.counters.Get(1))
	}
}

func TestMalformedIsDropped(t *testing.T) {
	f := newFixture(t, 1)
	ev := packetIn(1, 1, hostA, hostB, network.NoBuffer)
	ev.Frame = nil

	if state := f.app.process(ev); state != dropped {
		t.Fatalf("unexpected state: %v", state)
	}
	if f.counters.Get(1) != 0 || len(f.session(1).packets) != 0 {
		t.Fatal("malformed event must be dropped")
	}
}

func newScenario(t *testing.T) *fixture {
	f := newFixture(t, 1, 2, 3)
	for _, v := range [][3]uint64{{1, 2, 5}, {2, 3, 1}, {1, 3, 10}} {
		if err := f.topology.SetLinkWeight(v[0], v[1], v[2]); err != nil {
			t.Fatal(err)
		}
		if err := f.topology.SetLinkWeight(v[1], v[0], v[2]); err != nil {
			t.Fatal(err)
		}
	}
	f.app.MacTable().Learn(3, hostH, 7)

	return f
}

func TestRemoteDestination(t *testing.T) {
	f := newScenario(t)
	f.app.MacTable().Learn(2, hostH, 4)

	// H is located on switch 2, the smallest switch that has learned it.
	if state := f.app.process(packetIn(1, 1, hostA, hostH, network.NoBuffer)); state != resolvedRemote {
		t.Fatalf("unexpected state: %v", state)
	}
	s := f.session(1)
	if len(s.flows) != 1 || s.flows[0].OutPort != 4 {
		t.Fatalf("unexpected flows: %v", spew.Sdump(s.flows))
	}
}

func TestRemoteHopMissFloods(t *testing.T) {
	f := newScenario(t)

	// The next hop is switch 2 which has not learned H.
	if state := f.app.process(packetIn(1, 1, hostA, hostH, network.NoBuffer)); state != unresolved {
		t.Fatalf("unexpected state: %v", state)
	}
	s := f.session(1)
	if len(s.flows) != 0 || len(s.packets) != 1 || s.packets[0].OutPort != network.PortFlood {
		t.Fatalf("unexpected result: flows=%v, packets=%v", spew.Sdump(s.flows), spew.Sdump(s.packets))
	}
	if f.counters.Get(1) != 1 {
		t.Fatalf("unexpected counter: %v", f.counters.Get(1))
	}
}

func TestUnavailableSession(t *testing.T) {
	f := newFixture(t, 1)
	delete(f.sessions, 1)

	f.app.process(packetIn(1, 1, hostA, hostB, network.NoBuffer))
	if f.counters.Get(1) != 1 {
		t.Fatalf("unexpected counter: %v", f.counters.Get(1))
	}

	f = newFixture(t, 1)
	f.session(1).err = network.ErrSessionUnavailable
	f.app.process(packetIn(1, 1, hostA, hostB, network.NoBuffer))
	if f.counters.Get(1) != 1 {
		t.Fatalf("unexpected counter: %v", f.counters.Get(1))
	}
}

func TestCounterPerEvent(t *testing.T) {
	f := newFixture(t, 1, 2)
	f.app.MacTable().Learn(1, hostB, 2)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			f.app.OnPacketIn(packetIn(1, 1, hostA, hostB, network.NoBuffer))
		}()
		go func() {
			defer wg.Done()
			f.app.OnPacketIn(packetIn(2, 1, hostA, hostB, network.NoBuffer))
		}()
	}
	wg.Wait()

	if f.counters.Get(1) != 50 || f.counters.Get(2) != 50 {
		t.Fatalf("unexpected counters: %v", f.counters.Snapshot())
	}
	if len(f.session(1).flows) != 50 || len(f.session(2).flows) != 0 {
		t.Fatalf("unexpected flows: %v/%v", len(f.session(1).flows), len(f.session(2).flows))
	}
}

func TestSessionEstablishedInstallsTableMiss(t *testing.T) {
	f := newFixture(t, 1)
	f.app.OnSessionEstablished(network.SessionEstablished{SwitchID: 1, Session: f.sessions[1]})

	s := f.session(1)
	expected := []network.FlowRule{{Priority: 0, OutPort: network.PortController, BufferID: network.NoBuffer}}
	if !cmp.Equal(expected, s.flows) {
		t.Fatalf("unexpected table-miss flow: %v", spew.Sdump(s.flows))
	}
	flows := f.app.Installer().Flows()
	if len(flows) != 1 || flows[0].Match != "*" || flows[0].SwitchID != 1 {
		t.Fatalf("unexpected journal: %v", spew.Sdump(flows))
	}
}
