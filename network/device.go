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

package network

import (
	"fmt"
	"net"
	"sort"
	"sync"

	"github.com/superkkt/almond/openflow"
	"github.com/superkkt/almond/openflow/transceiver"

	"github.com/pkg/errors"
)

const (
	// PortFlood outputs a frame to every port except the ingress port.
	PortFlood      = openflow.OFPP_FLOOD
	PortController = openflow.OFPP_CONTROLLER
	// NoBuffer means that the frame is not buffered in the switch.
	NoBuffer = openflow.OFP_NO_BUFFER
)

var (
	ErrSessionUnavailable = errors.New("session unavailable")
)

// Session is the handle of a connected switch. Every method is fire-and-forget:
// a message is queued to the switch and never waits for its reply.
type Session interface {
	ID() uint64
	InstallFlow(FlowRule) error
	EmitPacket(PacketOut) error
	RequestPortStats() error
	Close() error
}

// Match of a flow rule. The zero value matches every frame.
type Match struct {
	InPort uint32
	DstMAC net.HardwareAddr
	SrcMAC net.HardwareAddr
}

func (r Match) IsWildcard() bool {
	return r.InPort == 0 && len(r.DstMAC) == 0 && len(r.SrcMAC) == 0
}

// String returns the signature of the match. Two matches with the same
// signature are identical from the switch's point of view.
func (r Match) String() string {
	if r.IsWildcard() {
		return "*"
	}

	return fmt.Sprintf("in_port=%v,dl_dst=%v,dl_src=%v", r.InPort, r.DstMAC, r.SrcMAC)
}

type FlowRule struct {
	Priority    uint16
	Match       Match
	OutPort     uint32
	BufferID    uint32
	IdleTimeout uint16
	HardTimeout uint16
}

func (r FlowRule) String() string {
	return fmt.Sprintf("FlowRule(Priority=%v, Match=%v, OutPort=%v, BufferID=%#x)", r.Priority, r.Match, r.OutPort, r.BufferID)
}

// PacketOut emits a frame, either from the switch buffer when BufferID is not
// NoBuffer or from Data.
type PacketOut struct {
	InPort   uint32
	OutPort  uint32
	BufferID uint32
	Data     []byte
}

type Features struct {
	DPID       uint64
	NumBuffers uint32
	NumTables  uint8
}

type Device struct {
	mutex    sync.RWMutex
	id       uint64
	valid    bool
	features Features
	ports    map[uint32]openflow.Port
	writer   transceiver.Writer
	factory  *openflow.Factory
	remote   string
	closed   bool
}

func newDevice(w transceiver.Writer, f *openflow.Factory, remote string) *Device {
	if w == nil {
		panic("Writer is nil")
	}
	if f == nil {
		panic("Factory is nil")
	}

	return &Device{
		ports:   make(map[uint32]openflow.Port),
		writer:  w,
		factory: f,
		remote:  remote,
	}
}

func (r *Device) String() string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	v := fmt.Sprintf("Device ID=%v, Remote=%v, Features=%+v, # of ports=%v, Connected=%v\n", r.id, r.remote, r.features, len(r.ports), !r.closed)
	for _, p := range r.ports {
		v += fmt.Sprintf("\t%v\n", p.String())
	}

	return v
}

func (r *Device) ID() uint64 {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.id
}

func (r *Device) setFeatures(f Features) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.id = f.DPID
	r.features = f
	r.valid = true
}

// isValid returns whether the device has received its DPID.
func (r *Device) isValid() bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.valid
}

func (r *Device) Features() Features {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.features
}

func (r *Device) RemoteAddr() string {
	return r.remote
}

// Port may return false if there is no port whose number is num.
func (r *Device) Port(num uint32) (openflow.Port, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	p, ok := r.ports[num]
	return p, ok
}

// Ports returns the physical ports ordered by their number.
func (r *Device) Ports() []openflow.Port {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]openflow.Port, 0, len(r.ports))
	for _, v := range r.ports {
		result = append(result, v)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Number < result[j].Number })

	return result
}

func (r *Device) setPort(p openflow.Port) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.ports[p.Number] = p
}

func (r *Device) removePort(num uint32) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.ports, num)
}

func (r *Device) isClosed() bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.closed
}

// sendMessage queues msg to the switch. The lock is not held while writing.
func (r *Device) sendMessage(msg openflow.Outgoing) error {
	if r.isClosed() {
		return ErrSessionUnavailable
	}

	if err := r.writer.Write(msg); err != nil {
		if errors.Cause(err) == transceiver.ErrClosed {
			return ErrSessionUnavailable
		}
		return errors.Wrapf(err, "failed to send a message to %v", r.ID())
	}

	return nil
}

func (r *Device) InstallFlow(rule FlowRule) error {
	match := openflow.NewMatch()
	if rule.Match.InPort != 0 {
		match.SetInPort(rule.Match.InPort)
	}
	match.DstMAC = rule.Match.DstMAC
	match.SrcMAC = rule.Match.SrcMAC

	msg := r.factory.NewFlowMod(openflow.OFPFC_ADD)
	msg.Priority = rule.Priority
	msg.IdleTimeout = rule.IdleTimeout
	msg.HardTimeout = rule.HardTimeout
	msg.BufferID = rule.BufferID
	msg.Match = match
	msg.Instruction = &openflow.ApplyActions{Actions: []openflow.Output{openflow.NewOutput(rule.OutPort)}}

	return r.sendMessage(msg)
}

func (r *Device) EmitPacket(p PacketOut) error {
	msg := r.factory.NewPacketOut()
	msg.BufferID = p.BufferID
	if p.InPort != 0 {
		msg.InPort = p.InPort
	}
	msg.Actions = []openflow.Output{openflow.NewOutput(p.OutPort)}
	msg.Data = p.Data

	return r.sendMessage(msg)
}

func (r *Device) RequestPortStats() error {
	return r.sendMessage(r.factory.NewPortStatsRequest(openflow.OFPP_ANY))
}

func (r *Device) requestPortDesc() error {
	return r.sendMessage(r.factory.NewPortDescRequest())
}

// emitLLDP sends the controller LLDP frame out of the port p.
func (r *Device) emitLLDP(frame []byte, p openflow.Port) error {
	msg := r.factory.NewPacketOut()
	msg.Actions = []openflow.Output{openflow.NewOutput(p.Number)}
	msg.Data = frame

	return r.sendMessage(msg)
}

// Close marks the device as closed and closes its transceiver, which ends the
// session that owns it.
func (r *Device) Close() error {
	r.mutex.Lock()
	r.closed = true
	r.mutex.Unlock()

	if c, ok := r.writer.(transceiver.WriteCloser); ok {
		return c.Close()
	}

	return nil
}
