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

	"github.com/pkg/errors"
)

type FlowMod struct {
	Message
	Cookie      uint64
	CookieMask  uint64
	TableID     uint8
	Command     uint8
	IdleTimeout uint16
	HardTimeout uint16
	Priority    uint16
	BufferID    uint32
	OutPort     uint32
	Flags       uint16
	Match       *Match
	Instruction *ApplyActions
}

func NewFlowMod(xid uint32, cmd uint8) *FlowMod {
	return &FlowMod{
		Message:  NewMessage(OFPT_FLOW_MOD, xid),
		Command:  cmd,
		BufferID: OFP_NO_BUFFER,
		OutPort:  OFPP_ANY,
	}
}

func (r *FlowMod) MarshalBinary() ([]byte, error) {
	if r.Match == nil {
		return nil, errors.New("empty flow match")
	}

	v := make([]byte, 40)
	binary.BigEndian.PutUint64(v[0:8], r.Cookie)
	binary.BigEndian.PutUint64(v[8:16], r.CookieMask)
	v[16] = r.TableID
	v[17] = r.Command
	binary.BigEndian.PutUint16(v[18:20], r.IdleTimeout)
	binary.BigEndian.PutUint16(v[20:22], r.HardTimeout)
	binary.BigEndian.PutUint16(v[22:24], r.Priority)
	binary.BigEndian.PutUint32(v[24:28], r.BufferID)
	binary.BigEndian.PutUint32(v[28:32], r.OutPort)
	binary.BigEndian.PutUint32(v[32:36], OFPG_ANY)
	binary.BigEndian.PutUint16(v[36:38], r.Flags)
	// v[38:40] is padding

	match, err := r.Match.MarshalBinary()
	if err != nil {
		return nil, err
	}
	v = append(v, match...)
	if r.Instruction != nil {
		inst, err := r.Instruction.MarshalBinary()
		if err != nil {
			return nil, err
		}
		v = append(v, inst...)
	}

	r.SetPayload(v)
	return r.Message.MarshalBinary()
}
