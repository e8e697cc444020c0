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

package protocol

import (
	"bytes"
	"net"
	"strconv"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/pkg/errors"
)

const (
	lldpPortPrefix = "almond/"
	lldpTTL        = 120
)

var (
	lldpMulticast = net.HardwareAddr{0x01, 0x80, 0xC2, 0x00, 0x00, 0x0E}

	ErrForeignLLDP = errors.New("LLDP not issued by this controller")
)

// NewLLDP returns an Ethernet frame carrying the LLDP that the controller
// sends out of port of the switch dpid. The chassis ID holds the DPID and the
// port ID holds the port number with the "almond/" prefix.
func NewLLDP(dpid uint64, port uint32, srcMAC net.HardwareAddr) ([]byte, error) {
	if len(srcMAC) != 6 {
		// Ports without a hardware address still need a valid source.
		srcMAC = net.HardwareAddr{0x02, 0, 0, 0, 0, 0x01}
	}

	eth := &layers.Ethernet{
		SrcMAC:       srcMAC,
		DstMAC:       lldpMulticast,
		EthernetType: layers.EthernetTypeLinkLayerDiscovery,
	}
	lldp := &layers.LinkLayerDiscovery{
		ChassisID: layers.LLDPChassisID{
			Subtype: layers.LLDPChassisIDSubTypeLocal,
			ID:      []byte(strconv.FormatUint(dpid, 10)),
		},
		PortID: layers.LLDPPortID{
			Subtype: layers.LLDPPortIDSubtypeIfaceName,
			ID:      []byte(lldpPortPrefix + strconv.FormatUint(uint64(port), 10)),
		},
		TTL: lldpTTL,
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, lldp); err != nil {
		return nil, errors.Wrap(err, "failed to serialize LLDP")
	}

	return buf.Bytes(), nil
}

// ParseLLDP extracts the sender switch and port from an LLDP payload issued by
// NewLLDP. ErrForeignLLDP is returned for LLDP sent by other agents.
func ParseLLDP(payload []byte) (dpid uint64, port uint32, err error) {
	packet := gopacket.NewPacket(payload, layers.LayerTypeLinkLayerDiscovery, gopacket.Default)
	v := packet.Layer(layers.LayerTypeLinkLayerDiscovery)
	if v == nil {
		return 0, 0, errors.Wrap(ErrMalformedFrame, "invalid LLDP payload")
	}
	lldp := v.(*layers.LinkLayerDiscovery)

	if lldp.ChassisID.Subtype != layers.LLDPChassisIDSubTypeLocal || len(lldp.ChassisID.ID) == 0 {
		return 0, 0, ErrForeignLLDP
	}
	if lldp.PortID.Subtype != layers.LLDPPortIDSubtypeIfaceName {
		return 0, 0, ErrForeignLLDP
	}
	if len(lldp.PortID.ID) <= len(lldpPortPrefix) || !bytes.HasPrefix(lldp.PortID.ID, []byte(lldpPortPrefix)) {
		return 0, 0, ErrForeignLLDP
	}

	dpid, err = strconv.ParseUint(string(lldp.ChassisID.ID), 10, 64)
	if err != nil {
		return 0, 0, ErrForeignLLDP
	}
	num, err := strconv.ParseUint(string(lldp.PortID.ID[len(lldpPortPrefix):]), 10, 32)
	if err != nil {
		return 0, 0, ErrForeignLLDP
	}

	return dpid, uint32(num), nil
}
