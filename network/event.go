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

	"github.com/superkkt/almond/protocol"
)

// Event is an event raised by a switch session. The concrete types are
// SessionEstablished, SessionLost, PacketIn, PortStatsReply and LinkDiscovered.
type Event interface {
	event()
}

// Listener receives the events of every session. Handle is called from the
// goroutine of the session that raised the event, so events from different
// switches are delivered concurrently.
type Listener interface {
	Handle(Event)
}

type SessionEstablished struct {
	SwitchID uint64
	Session  Session
}

type SessionLost struct {
	SwitchID uint64
	Session  Session
}

// PacketIn is a table-miss event. Frame is nil if Data is not a valid
// Ethernet frame.
type PacketIn struct {
	SwitchID uint64
	InPort   uint32
	BufferID uint32
	Frame    *protocol.Frame
	Data     []byte
}

func (r PacketIn) String() string {
	return fmt.Sprintf("PacketIn(SwitchID=%v, InPort=%v, BufferID=%#x, Frame=%v, Len=%v)", r.SwitchID, r.InPort, r.BufferID, r.Frame, len(r.Data))
}

// IsBuffered returns true if the switch keeps the frame in its buffer.
func (r PacketIn) IsBuffered() bool {
	return r.BufferID != NoBuffer
}

type PortStats struct {
	Port      uint32
	RxPackets uint64
	TxPackets uint64
	RxBytes   uint64
	TxBytes   uint64
	RxDropped uint64
	TxDropped uint64
	RxErrors  uint64
	TxErrors  uint64
}

type PortStatsReply struct {
	SwitchID uint64
	Ports    []PortStats
}

// LinkDiscovered reports that the LLDP sent out of FromPort of From has been
// received on ToPort of To.
type LinkDiscovered struct {
	From     uint64
	FromPort uint32
	To       uint64
	ToPort   uint32
}

func (SessionEstablished) event() {}
func (SessionLost) event()        {}
func (PacketIn) event()           {}
func (PortStatsReply) event()     {}
func (LinkDiscovered) event()     {}
