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
)

const portLength = 64

type Port struct {
	Number       uint32
	MAC          net.HardwareAddr
	Name         string
	Config       uint32
	State        uint32
	CurrentSpeed uint32
	MaxSpeed     uint32
}

func (r *Port) IsPortDown() bool {
	return r.Config&OFPPC_PORT_DOWN != 0
}

func (r *Port) IsLinkDown() bool {
	return r.State&OFPPS_LINK_DOWN != 0
}

// IsPhysical returns false for the reserved logical ports such as LOCAL.
func (r *Port) IsPhysical() bool {
	return r.Number <= OFPP_MAX
}

func (r *Port) String() string {
	return fmt.Sprintf("Port Number=%v, MAC=%v, Name=%v, AdminUp=%v, LinkUp=%v", r.Number, r.MAC, r.Name, !r.IsPortDown(), !r.IsLinkDown())
}

func (r *Port) UnmarshalBinary(data []byte) error {
	if len(data) < portLength {
		return ErrInvalidPacketLength
	}

	r.Number = binary.BigEndian.Uint32(data[0:4])
	r.MAC = append(net.HardwareAddr(nil), data[8:14]...)
	r.Name = string(bytes.TrimRight(data[16:32], "\x00"))
	r.Config = binary.BigEndian.Uint32(data[32:36])
	r.State = binary.BigEndian.Uint32(data[36:40])
	r.CurrentSpeed = binary.BigEndian.Uint32(data[56:60])
	r.MaxSpeed = binary.BigEndian.Uint32(data[60:64])

	return nil
}

const (
	OFPPR_ADD    uint8 = 0
	OFPPR_DELETE uint8 = 1
	OFPPR_MODIFY uint8 = 2
)

type PortStatus struct {
	Message
	Reason uint8
	Port   Port
}

func (r *PortStatus) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 8+portLength {
		return ErrInvalidPacketLength
	}
	r.Reason = payload[0]
	// payload[1:8] is padding

	return r.Port.UnmarshalBinary(payload[8:])
}
