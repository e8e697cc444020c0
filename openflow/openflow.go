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

// Package openflow implements the subset of the OpenFlow 1.3 wire protocol that
// the controller speaks with its switches.
package openflow

import (
	"encoding"
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	OF13_VERSION = 0x04
)

// Message types.
const (
	OFPT_HELLO             uint8 = 0
	OFPT_ERROR             uint8 = 1
	OFPT_ECHO_REQUEST      uint8 = 2
	OFPT_ECHO_REPLY        uint8 = 3
	OFPT_FEATURES_REQUEST  uint8 = 5
	OFPT_FEATURES_REPLY    uint8 = 6
	OFPT_SET_CONFIG        uint8 = 9
	OFPT_PACKET_IN         uint8 = 10
	OFPT_FLOW_REMOVED      uint8 = 11
	OFPT_PORT_STATUS       uint8 = 12
	OFPT_PACKET_OUT        uint8 = 13
	OFPT_FLOW_MOD          uint8 = 14
	OFPT_MULTIPART_REQUEST uint8 = 18
	OFPT_MULTIPART_REPLY   uint8 = 19
	OFPT_BARRIER_REQUEST   uint8 = 20
	OFPT_BARRIER_REPLY     uint8 = 21
)

// Multipart types.
const (
	OFPMP_DESC       uint16 = 0
	OFPMP_PORT_STATS uint16 = 4
	OFPMP_PORT_DESC  uint16 = 13
)

// Reserved port numbers.
const (
	OFPP_MAX        uint32 = 0xffffff00
	OFPP_IN_PORT    uint32 = 0xfffffff8
	OFPP_TABLE      uint32 = 0xfffffff9
	OFPP_NORMAL     uint32 = 0xfffffffa
	OFPP_FLOOD      uint32 = 0xfffffffb
	OFPP_ALL        uint32 = 0xfffffffc
	OFPP_CONTROLLER uint32 = 0xfffffffd
	OFPP_LOCAL      uint32 = 0xfffffffe
	OFPP_ANY        uint32 = 0xffffffff
)

const (
	OFP_NO_BUFFER    uint32 = 0xffffffff
	OFPG_ANY         uint32 = 0xffffffff
	OFPCML_NO_BUFFER uint16 = 0xffff
	// Wildcard table ID used to delete flows from every table.
	OFPTT_ALL uint8 = 0xff
)

const (
	OFPFC_ADD    uint8 = 0
	OFPFC_DELETE uint8 = 3
)

const (
	OFPFF_SEND_FLOW_REM uint16 = 1 << 0
)

const (
	OFPC_FRAG_NORMAL uint16 = 0
)

// Port config and state bits.
const (
	OFPPC_PORT_DOWN uint32 = 1 << 0
	OFPPS_LINK_DOWN uint32 = 1 << 0
)

var (
	ErrInvalidPacketLength = errors.New("invalid packet length")
	ErrUnsupportedVersion  = errors.New("unsupported protocol version")
	ErrUnsupportedMessage  = errors.New("unsupported message type")
	ErrInvalidMatch        = errors.New("invalid flow match")
)

type Header interface {
	Version() uint8
	Type() uint8
	TransactionID() uint32
}

type Outgoing interface {
	Header
	encoding.BinaryMarshaler
}

type Incoming interface {
	Header
	encoding.BinaryUnmarshaler
}

// Message is the common ofp_header shared by every OpenFlow message.
type Message struct {
	version uint8
	msgType uint8
	xid     uint32
	length  uint16
	payload []byte
}

func NewMessage(msgType uint8, xid uint32) Message {
	return Message{
		version: OF13_VERSION,
		msgType: msgType,
		xid:     xid,
		length:  8,
	}
}

func (r *Message) Version() uint8 {
	return r.version
}

func (r *Message) Type() uint8 {
	return r.msgType
}

func (r *Message) TransactionID() uint32 {
	return r.xid
}

func (r *Message) SetTransactionID(xid uint32) {
	r.xid = xid
}

func (r *Message) SetPayload(payload []byte) {
	r.payload = payload
	r.length = uint16(8 + len(payload))
}

func (r *Message) Payload() []byte {
	return r.payload
}

func (r *Message) MarshalBinary() ([]byte, error) {
	length := 8 + len(r.payload)
	if length > 0xFFFF {
		return nil, ErrInvalidPacketLength
	}

	v := make([]byte, length)
	v[0] = r.version
	v[1] = r.msgType
	binary.BigEndian.PutUint16(v[2:4], uint16(length))
	binary.BigEndian.PutUint32(v[4:8], r.xid)
	copy(v[8:], r.payload)

	return v, nil
}

func (r *Message) UnmarshalBinary(data []byte) error {
	if len(data) < 8 {
		return ErrInvalidPacketLength
	}

	r.version = data[0]
	r.msgType = data[1]
	r.length = binary.BigEndian.Uint16(data[2:4])
	if r.length < 8 || len(data) < int(r.length) {
		return ErrInvalidPacketLength
	}
	r.xid = binary.BigEndian.Uint32(data[4:8])
	r.payload = data[8:r.length]

	return nil
}

// Hello, FeaturesRequest and BarrierRequest carry no body.
type Hello struct {
	Message
}

func NewHello(xid uint32) *Hello {
	return &Hello{Message: NewMessage(OFPT_HELLO, xid)}
}

type FeaturesRequest struct {
	Message
}

func NewFeaturesRequest(xid uint32) *FeaturesRequest {
	return &FeaturesRequest{Message: NewMessage(OFPT_FEATURES_REQUEST, xid)}
}

type BarrierRequest struct {
	Message
}

func NewBarrierRequest(xid uint32) *BarrierRequest {
	return &BarrierRequest{Message: NewMessage(OFPT_BARRIER_REQUEST, xid)}
}

type Echo struct {
	Message
	Data []byte
}

func NewEchoRequest(xid uint32) *Echo {
	return &Echo{Message: NewMessage(OFPT_ECHO_REQUEST, xid)}
}

func NewEchoReply(xid uint32) *Echo {
	return &Echo{Message: NewMessage(OFPT_ECHO_REPLY, xid)}
}

func (r *Echo) MarshalBinary() ([]byte, error) {
	r.SetPayload(r.Data)
	return r.Message.MarshalBinary()
}

func (r *Echo) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}
	r.Data = r.Payload()

	return nil
}

type SetConfig struct {
	Message
	Flags          uint16
	MissSendLength uint16
}

func NewSetConfig(xid uint32) *SetConfig {
	return &SetConfig{Message: NewMessage(OFPT_SET_CONFIG, xid)}
}

func (r *SetConfig) MarshalBinary() ([]byte, error) {
	v := make([]byte, 4)
	binary.BigEndian.PutUint16(v[0:2], r.Flags)
	binary.BigEndian.PutUint16(v[2:4], r.MissSendLength)

	r.SetPayload(v)
	return r.Message.MarshalBinary()
}

type Error struct {
	Message
	Class uint16
	Code  uint16
	Data  []byte
}

func (r *Error) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 4 {
		return ErrInvalidPacketLength
	}
	r.Class = binary.BigEndian.Uint16(payload[0:2])
	r.Code = binary.BigEndian.Uint16(payload[2:4])
	r.Data = payload[4:]

	return nil
}

type FeaturesReply struct {
	Message
	DPID         uint64
	NumBuffers   uint32
	NumTables    uint8
	AuxID        uint8
	Capabilities uint32
}

func (r *FeaturesReply) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 24 {
		return ErrInvalidPacketLength
	}
	r.DPID = binary.BigEndian.Uint64(payload[0:8])
	r.NumBuffers = binary.BigEndian.Uint32(payload[8:12])
	r.NumTables = payload[12]
	r.AuxID = payload[13]
	r.Capabilities = binary.BigEndian.Uint32(payload[16:20])

	return nil
}
