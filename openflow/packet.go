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
)

const (
	OFPR_NO_MATCH uint8 = 0
	OFPR_ACTION   uint8 = 1
)

type PacketIn struct {
	Message
	BufferID uint32
	Length   uint16
	Reason   uint8
	TableID  uint8
	Cookie   uint64
	InPort   uint32
	Match    *Match
	Data     []byte
}

func (r *PacketIn) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 24 {
		return ErrInvalidPacketLength
	}
	r.BufferID = binary.BigEndian.Uint32(payload[0:4])
	r.Length = binary.BigEndian.Uint16(payload[4:6])
	r.Reason = payload[6]
	r.TableID = payload[7]
	r.Cookie = binary.BigEndian.Uint64(payload[8:16])

	r.Match = NewMatch()
	if err := r.Match.UnmarshalBinary(payload[16:]); err != nil {
		return err
	}
	if r.Match.InPort != nil {
		r.InPort = *r.Match.InPort
	}

	matchLength := align8(int(binary.BigEndian.Uint16(payload[18:20])))
	dataOffset := 16 + matchLength + 2 // +2 is padding
	if len(payload) >= dataOffset {
		r.Data = payload[dataOffset:]
	}

	return nil
}

type PacketOut struct {
	Message
	BufferID uint32
	InPort   uint32
	Actions  []Output
	Data     []byte
}

func NewPacketOut(xid uint32) *PacketOut {
	return &PacketOut{
		Message:  NewMessage(OFPT_PACKET_OUT, xid),
		BufferID: OFP_NO_BUFFER,
		InPort:   OFPP_CONTROLLER,
	}
}

func (r *PacketOut) MarshalBinary() ([]byte, error) {
	actions, err := marshalActions(r.Actions)
	if err != nil {
		return nil, err
	}

	v := make([]byte, 16, 16+len(actions)+len(r.Data))
	binary.BigEndian.PutUint32(v[0:4], r.BufferID)
	binary.BigEndian.PutUint32(v[4:8], r.InPort)
	binary.BigEndian.PutUint16(v[8:10], uint16(len(actions)))
	// v[10:16] is padding
	v = append(v, actions...)
	// The switch ignores the data if the packet is buffered.
	if r.BufferID == OFP_NO_BUFFER {
		v = append(v, r.Data...)
	}

	r.SetPayload(v)
	return r.Message.MarshalBinary()
}
