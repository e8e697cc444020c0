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
	"encoding/hex"
	"net"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

func TestDecodeFrame(t *testing.T) {
	// ARP request from 00:0b:82:01:fc:42 to the broadcast address.
	data, err := hex.DecodeString("ffffffffffff000b8201fc4208060001080006040001000b8201fc42c0a80001000000000000c0a80002")
	if err != nil {
		t.Fatal(err)
	}

	frame, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	expected := &Frame{
		SrcMAC:    net.HardwareAddr{0x00, 0x0b, 0x82, 0x01, 0xfc, 0x42},
		DstMAC:    net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		EtherType: EtherTypeARP,
		Payload:   data[14:],
	}
	if !cmp.Equal(expected, frame) {
		t.Fatalf("unexpected frame: expected=%v, got=%v", spew.Sdump(expected), spew.Sdump(frame))
	}
	if !IsBroadcast(frame.DstMAC) {
		t.Fatal("expected a broadcast destination")
	}
	if IsBroadcast(frame.SrcMAC) {
		t.Fatal("unexpected broadcast source")
	}
}

func TestDecodeMalformedFrame(t *testing.T) {
	samples := [][]byte{
		nil,
		{0x01, 0x02, 0x03},
		make([]byte, 13),
	}

	for _, v := range samples {
		if _, err := DecodeFrame(v); errors.Cause(err) != ErrMalformedFrame {
			t.Fatalf("expected ErrMalformedFrame for %v, got %v", hex.EncodeToString(v), err)
		}
	}
}

func TestLLDP(t *testing.T) {
	mac := net.HardwareAddr{0x52, 0x54, 0x00, 0x12, 0x34, 0x56}
	data, err := NewLLDP(0xdeadbeef, 7, mac)
	if err != nil {
		t.Fatalf("failed to build LLDP: %v", err)
	}

	frame, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("failed to decode LLDP frame: %v", err)
	}
	if !frame.IsLLDP() {
		t.Fatalf("unexpected ethertype: %#04x", frame.EtherType)
	}
	if frame.SrcMAC.String() != mac.String() {
		t.Fatalf("unexpected source MAC: %v", frame.SrcMAC)
	}

	dpid, port, err := ParseLLDP(frame.Payload)
	if err != nil {
		t.Fatalf("failed to parse LLDP: %v", err)
	}
	if dpid != 0xdeadbeef || port != 7 {
		t.Fatalf("unexpected sender: dpid=%v, port=%v", dpid, port)
	}
}

func TestTaggedLLDP(t *testing.T) {
	data, err := NewLLDP(42, 3, net.HardwareAddr{0x52, 0x54, 0x00, 0x12, 0x34, 0x56})
	if err != nil {
		t.Fatalf("failed to build LLDP: %v", err)
	}
	// 802.1Q tag with VLAN 10 after the MAC addresses.
	tagged := append(append(append([]byte{}, data[:12]...), 0x81, 0x00, 0x00, 0x0a), data[12:]...)

	frame, err := DecodeFrame(tagged)
	if err != nil {
		t.Fatalf("failed to decode the tagged frame: %v", err)
	}
	if !frame.IsLLDP() {
		t.Fatalf("tagged LLDP is not detected: %v", frame)
	}
	if frame.VLAN != 10 {
		t.Fatalf("unexpected VLAN: %v", frame.VLAN)
	}
	dpid, port, err := ParseLLDP(frame.Payload)
	if err != nil {
		t.Fatalf("failed to parse LLDP: %v", err)
	}
	if dpid != 42 || port != 3 {
		t.Fatalf("unexpected sender: dpid=%v, port=%v", dpid, port)
	}

	// Truncated tag.
	if _, err := DecodeFrame(append(append([]byte{}, data[:12]...), 0x81, 0x00, 0x00)); errors.Cause(err) != ErrMalformedFrame {
		t.Fatalf("expected ErrMalformedFrame, got %v", err)
	}
}

func TestForeignLLDP(t *testing.T) {
	// Chassis ID subtype 4 (MAC address), port ID subtype 3 (MAC address).
	payload, err := hex.DecodeString("0207040011223344550407030011223344550602007800000000")
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := ParseLLDP(payload); err != ErrForeignLLDP {
		t.Fatalf("expected ErrForeignLLDP, got %v", err)
	}
}
