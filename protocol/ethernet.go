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

// Package protocol decodes and encodes the Ethernet frames exchanged with switches.
package protocol

import (
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/pkg/errors"
)

const (
	EtherTypeIPv4 uint16 = 0x0800
	EtherTypeARP  uint16 = 0x0806
	EtherTypeLLDP uint16 = 0x88cc
)

var (
	ErrMalformedFrame = errors.New("malformed ethernet frame")
)

// Frame is a decoded Ethernet frame header. EtherType and Payload are those
// inside the 802.1Q tags, if any, and VLAN is the innermost VLAN ID. Payload
// refers to the memory of the original frame.
type Frame struct {
	SrcMAC    net.HardwareAddr
	DstMAC    net.HardwareAddr
	VLAN      uint16
	EtherType uint16
	Payload   []byte
}

// DecodeFrame decodes the Ethernet header and the VLAN tags of data. Upper
// layers are not validated.
func DecodeFrame(data []byte) (*Frame, error) {
	packet := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Lazy)
	v := packet.Layer(layers.LayerTypeEthernet)
	if v == nil {
		if e := packet.ErrorLayer(); e != nil {
			return nil, errors.Wrap(ErrMalformedFrame, e.Error().Error())
		}
		return nil, ErrMalformedFrame
	}
	eth := v.(*layers.Ethernet)
	if len(eth.SrcMAC) != 6 || len(eth.DstMAC) != 6 {
		return nil, ErrMalformedFrame
	}

	frame := &Frame{
		SrcMAC:    eth.SrcMAC,
		DstMAC:    eth.DstMAC,
		EtherType: uint16(eth.EthernetType),
		Payload:   eth.Payload,
	}
	for isTagged(frame.EtherType) {
		tag := &layers.Dot1Q{}
		if err := tag.DecodeFromBytes(frame.Payload, gopacket.NilDecodeFeedback); err != nil {
			return nil, errors.Wrap(ErrMalformedFrame, err.Error())
		}
		frame.VLAN = tag.VLANIdentifier
		frame.EtherType = uint16(tag.Type)
		frame.Payload = tag.Payload
	}

	return frame, nil
}

func isTagged(etherType uint16) bool {
	t := layers.EthernetType(etherType)
	return t == layers.EthernetTypeDot1Q || t == layers.EthernetTypeQinQ
}

func (r *Frame) IsLLDP() bool {
	return r.EtherType == EtherTypeLLDP
}

func (r *Frame) String() string {
	return fmt.Sprintf("Frame(Src=%v, Dst=%v, VLAN=%v, Type=%#04x, Len=%v)", r.SrcMAC, r.DstMAC, r.VLAN, r.EtherType, len(r.Payload))
}

// IsBroadcast returns true if mac is the broadcast address or a group address.
func IsBroadcast(mac net.HardwareAddr) bool {
	return len(mac) == 6 && mac[0]&0x01 == 0x01
}
