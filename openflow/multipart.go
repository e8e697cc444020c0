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
	portStatsLength = 112
	// Set in the flags of a multipart reply when more replies follow.
	OFPMPF_REPLY_MORE uint16 = 1 << 0
)

type MultipartRequest struct {
	Message
	MultipartType uint16
	Flags         uint16
	Body          []byte
}

func (r *MultipartRequest) MarshalBinary() ([]byte, error) {
	v := make([]byte, 8, 8+len(r.Body))
	binary.BigEndian.PutUint16(v[0:2], r.MultipartType)
	binary.BigEndian.PutUint16(v[2:4], r.Flags)
	// v[4:8] is padding
	v = append(v, r.Body...)

	r.SetPayload(v)
	return r.Message.MarshalBinary()
}

func NewPortDescRequest(xid uint32) *MultipartRequest {
	return &MultipartRequest{
		Message:       NewMessage(OFPT_MULTIPART_REQUEST, xid),
		MultipartType: OFPMP_PORT_DESC,
	}
}

// NewPortStatsRequest queries the counters of port, or every port if it is OFPP_ANY.
func NewPortStatsRequest(xid uint32, port uint32) *MultipartRequest {
	body := make([]byte, 8)
	binary.BigEndian.PutUint32(body[0:4], port)
	// body[4:8] is padding

	return &MultipartRequest{
		Message:       NewMessage(OFPT_MULTIPART_REQUEST, xid),
		MultipartType: OFPMP_PORT_STATS,
		Body:          body,
	}
}

type MultipartReply struct {
	Message
	MultipartType uint16
	Flags         uint16
	Body          []byte
}

func (r *MultipartReply) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 8 {
		return ErrInvalidPacketLength
	}
	r.MultipartType = binary.BigEndian.Uint16(payload[0:2])
	r.Flags = binary.BigEndian.Uint16(payload[2:4])
	r.Body = payload[8:]

	return nil
}

func (r *MultipartReply) More() bool {
	return r.Flags&OFPMPF_REPLY_MORE != 0
}

type PortDescReply struct {
	MultipartReply
	Ports []Port
}

func (r *PortDescReply) UnmarshalBinary(data []byte) error {
	if err := r.MultipartReply.UnmarshalBinary(data); err != nil {
		return err
	}
	if len(r.Body)%portLength != 0 {
		return ErrInvalidPacketLength
	}

	r.Ports = make([]Port, len(r.Body)/portLength)
	for i := range r.Ports {
		if err := r.Ports[i].UnmarshalBinary(r.Body[i*portLength:]); err != nil {
			return err
		}
	}

	return nil
}

type PortStats struct {
	PortNumber   uint32
	RxPackets    uint64
	TxPackets    uint64
	RxBytes      uint64
	TxBytes      uint64
	RxDropped    uint64
	TxDropped    uint64
	RxErrors     uint64
	TxErrors     uint64
	DurationSec  uint32
	DurationNsec uint32
}

func (r *PortStats) UnmarshalBinary(data []byte) error {
	if len(data) < portStatsLength {
		return ErrInvalidPacketLength
	}

	r.PortNumber = binary.BigEndian.Uint32(data[0:4])
	// data[4:8] is padding
	r.RxPackets = binary.BigEndian.Uint64(data[8:16])
	r.TxPackets = binary.BigEndian.Uint64(data[16:24])
	r.RxBytes = binary.BigEndian.Uint64(data[24:32])
	r.TxBytes = binary.BigEndian.Uint64(data[32:40])
	r.RxDropped = binary.BigEndian.Uint64(data[40:48])
	r.TxDropped = binary.BigEndian.Uint64(data[48:56])
	r.RxErrors = binary.BigEndian.Uint64(data[56:64])
	r.TxErrors = binary.BigEndian.Uint64(data[64:72])
	// data[72:104] holds frame, overrun, CRC and collision counters that we do not use.
	r.DurationSec = binary.BigEndian.Uint32(data[104:108])
	r.DurationNsec = binary.BigEndian.Uint32(data[108:112])

	return nil
}

type PortStatsReply struct {
	MultipartReply
	Stats []PortStats
}

func (r *PortStatsReply) UnmarshalBinary(data []byte) error {
	if err := r.MultipartReply.UnmarshalBinary(data); err != nil {
		return err
	}
	if len(r.Body)%portStatsLength != 0 {
		return ErrInvalidPacketLength
	}

	r.Stats = make([]PortStats, len(r.Body)/portStatsLength)
	for i := range r.Stats {
		if err := r.Stats[i].UnmarshalBinary(r.Body[i*portStatsLength:]); err != nil {
			return err
		}
	}

	return nil
}
