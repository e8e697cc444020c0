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

package openflow

import (
	"encoding/binary"
	"sync/atomic"
)

// Factory creates outgoing messages with increasing transaction IDs. It is safe
// for concurrent use.
type Factory struct {
	xid atomic.Uint32
}

func NewFactory() *Factory {
	return new(Factory)
}

func (r *Factory) nextXID() uint32 {
	return r.xid.Add(1)
}

func (r *Factory) NewHello() *Hello {
	return NewHello(r.nextXID())
}

func (r *Factory) NewEchoRequest() *Echo {
	return NewEchoRequest(r.nextXID())
}

// NewEchoReply returns an echo reply that answers the request whose transaction ID is xid.
func (r *Factory) NewEchoReply(xid uint32) *Echo {
	return NewEchoReply(xid)
}

func (r *Factory) NewFeaturesRequest() *FeaturesRequest {
	return NewFeaturesRequest(r.nextXID())
}

func (r *Factory) NewBarrierRequest() *BarrierRequest {
	return NewBarrierRequest(r.nextXID())
}

func (r *Factory) NewSetConfig() *SetConfig {
	return NewSetConfig(r.nextXID())
}

func (r *Factory) NewFlowMod(cmd uint8) *FlowMod {
	return NewFlowMod(r.nextXID(), cmd)
}

func (r *Factory) NewPacketOut() *PacketOut {
	return NewPacketOut(r.nextXID())
}

func (r *Factory) NewPortDescRequest() *MultipartRequest {
	return NewPortDescRequest(r.nextXID())
}

func (r *Factory) NewPortStatsRequest(port uint32) *MultipartRequest {
	return NewPortStatsRequest(r.nextXID(), port)
}

// Parse decodes a complete OpenFlow 1.3 message. It returns ErrUnsupportedMessage
// for the message types that the controller does not handle.
func Parse(packet []byte) (Incoming, error) {
	if len(packet) < 8 {
		return nil, ErrInvalidPacketLength
	}
	if packet[0] != OF13_VERSION {
		return nil, ErrUnsupportedVersion
	}

	var msg Incoming
	switch packet[1] {
	case OFPT_HELLO:
		msg = new(Hello)
	case OFPT_ERROR:
		msg = new(Error)
	case OFPT_ECHO_REQUEST, OFPT_ECHO_REPLY:
		msg = new(Echo)
	case OFPT_FEATURES_REPLY:
		msg = new(FeaturesReply)
	case OFPT_PACKET_IN:
		msg = new(PacketIn)
	case OFPT_PORT_STATUS:
		msg = new(PortStatus)
	case OFPT_MULTIPART_REPLY:
		if len(packet) < 10 {
			return nil, ErrInvalidPacketLength
		}
		switch binary.BigEndian.Uint16(packet[8:10]) {
		case OFPMP_PORT_DESC:
			msg = new(PortDescReply)
		case OFPMP_PORT_STATS:
			msg = new(PortStatsReply)
		default:
			return nil, ErrUnsupportedMessage
		}
	default:
		return nil, ErrUnsupportedMessage
	}

	if err := msg.UnmarshalBinary(packet); err != nil {
		return nil, err
	}

	return msg, nil
}
