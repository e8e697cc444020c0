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
	"bytes"
	"encoding/binary"
	"fmt"
	"net"

	"github.com/pkg/errors"
)

// OXM basic class fields.
const (
	OFPXMT_OFB_IN_PORT  = 0
	OFPXMT_OFB_ETH_DST  = 3
	OFPXMT_OFB_ETH_SRC  = 4
	OFPXMT_OFB_ETH_TYPE = 5
)

const (
	OFPMT_OXM       = 1
	OFPXMC_OPENFLOW = 0x8000
)

// Match is an OXM flow match. A zero Match is the wildcard match that covers
// every packet.
type Match struct {
	InPort    *uint32
	SrcMAC    net.HardwareAddr
	DstMAC    net.HardwareAddr
	EtherType *uint16
}

func NewMatch() *Match {
	return &Match{}
}

func (r *Match) SetInPort(port uint32) {
	r.InPort = &port
}

func (r *Match) SetEtherType(t uint16) {
	r.EtherType = &t
}

func (r *Match) IsWildcard() bool {
	return r.InPort == nil && r.SrcMAC == nil && r.DstMAC == nil && r.EtherType == nil
}

func (r *Match) String() string {
	if r.IsWildcard() {
		return "*"
	}

	var buf bytes.Buffer
	if r.InPort != nil {
		buf.WriteString(fmt.Sprintf("in_port=%v,", *r.InPort))
	}
	if r.SrcMAC != nil {
		buf.WriteString(fmt.Sprintf("eth_src=%v,", r.SrcMAC))
	}
	if r.DstMAC != nil {
		buf.WriteString(fmt.Sprintf("eth_dst=%v,", r.DstMAC))
	}
	if r.EtherType != nil {
		buf.WriteString(fmt.Sprintf("eth_type=0x%04x,", *r.EtherType))
	}
	s := buf.String()

	return s[:len(s)-1]
}

func oxmHeader(field uint8, length uint8) uint32 {
	return OFPXMC_OPENFLOW<<16 | uint32(field)<<9 | uint32(length)
}

func marshalUint32TLV(field uint8, v uint32) []byte {
	data := make([]byte, 8)
	binary.BigEndian.PutUint32(data[0:4], oxmHeader(field, 4))
	binary.BigEndian.PutUint32(data[4:8], v)
	return data
}

func marshalUint16TLV(field uint8, v uint16) []byte {
	data := make([]byte, 6)
	binary.BigEndian.PutUint32(data[0:4], oxmHeader(field, 2))
	binary.BigEndian.PutUint16(data[4:6], v)
	return data
}

func marshalHardwareAddrTLV(field uint8, mac net.HardwareAddr) ([]byte, error) {
	if len(mac) != 6 {
		return nil, errors.Wrapf(ErrInvalidMatch, "invalid MAC address %v", mac)
	}
	data := make([]byte, 10)
	binary.BigEndian.PutUint32(data[0:4], oxmHeader(field, 6))
	copy(data[4:], mac)
	return data, nil
}

func (r *Match) MarshalBinary() ([]byte, error) {
	fields := make([]byte, 0)
	if r.InPort != nil {
		fields = append(fields, marshalUint32TLV(OFPXMT_OFB_IN_PORT, *r.InPort)...)
	}
	if r.DstMAC != nil {
		v, err := marshalHardwareAddrTLV(OFPXMT_OFB_ETH_DST, r.DstMAC)
		if err != nil {
			return nil, err
		}
		fields = append(fields, v...)
	}
	if r.SrcMAC != nil {
		v, err := marshalHardwareAddrTLV(OFPXMT_OFB_ETH_SRC, r.SrcMAC)
		if err != nil {
			return nil, err
		}
		fields = append(fields, v...)
	}
	if r.EtherType != nil {
		fields = append(fields, marshalUint16TLV(OFPXMT_OFB_ETH_TYPE, *r.EtherType)...)
	}

	length := 4 + len(fields)
	// ofp_match is padded to a multiple of 8 bytes.
	v := make([]byte, align8(length))
	binary.BigEndian.PutUint16(v[0:2], OFPMT_OXM)
	binary.BigEndian.PutUint16(v[2:4], uint16(length))
	copy(v[4:], fields)

	return v, nil
}

// UnmarshalBinary decodes an ofp_match. Unknown OXM fields are skipped.
func (r *Match) UnmarshalBinary(data []byte) error {
	if len(data) < 4 {
		return ErrInvalidPacketLength
	}
	if binary.BigEndian.Uint16(data[0:2]) != OFPMT_OXM {
		return errors.Wrapf(ErrInvalidMatch, "unsupported match type %v", binary.BigEndian.Uint16(data[0:2]))
	}
	length := int(binary.BigEndian.Uint16(data[2:4]))
	if length < 4 || len(data) < length {
		return ErrInvalidPacketLength
	}

	buf := data[4:length]
	for len(buf) >= 4 {
		header := binary.BigEndian.Uint32(buf[0:4])
		class := header >> 16
		field := uint8(header>>9) & 0x7F
		hasMask := header&0x100 != 0
		size := int(header & 0xFF)
		if len(buf) < 4+size {
			return ErrInvalidPacketLength
		}
		value := buf[4 : 4+size]

		if class == OFPXMC_OPENFLOW && !hasMask {
			switch field {
			case OFPXMT_OFB_IN_PORT:
				if size == 4 {
					r.SetInPort(binary.BigEndian.Uint32(value))
				}
			case OFPXMT_OFB_ETH_DST:
				if size == 6 {
					r.DstMAC = append(net.HardwareAddr(nil), value...)
				}
			case OFPXMT_OFB_ETH_SRC:
				if size == 6 {
					r.SrcMAC = append(net.HardwareAddr(nil), value...)
				}
			case OFPXMT_OFB_ETH_TYPE:
				if size == 2 {
					r.SetEtherType(binary.BigEndian.Uint16(value))
				}
			}
		}
		buf = buf[4+size:]
	}

	return nil
}

func align8(n int) int {
	if rem := n % 8; rem > 0 {
		return n + 8 - rem
	}

	return n
}
