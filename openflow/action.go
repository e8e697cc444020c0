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
	OFPAT_OUTPUT uint16 = 0

	OFPIT_APPLY_ACTIONS uint16 = 4
)

// Output is the only action the controller installs: forward to a port.
type Output struct {
	Port   uint32
	MaxLen uint16
}

func NewOutput(port uint32) Output {
	v := Output{Port: port}
	if port == OFPP_CONTROLLER {
		// Send the whole packet to the controller instead of buffering it.
		v.MaxLen = OFPCML_NO_BUFFER
	}

	return v
}

func (r Output) MarshalBinary() ([]byte, error) {
	v := make([]byte, 16)
	binary.BigEndian.PutUint16(v[0:2], OFPAT_OUTPUT)
	binary.BigEndian.PutUint16(v[2:4], 16)
	binary.BigEndian.PutUint32(v[4:8], r.Port)
	binary.BigEndian.PutUint16(v[8:10], r.MaxLen)
	// v[10:16] is padding

	return v, nil
}

func marshalActions(actions []Output) ([]byte, error) {
	v := make([]byte, 0, 16*len(actions))
	for _, a := range actions {
		b, err := a.MarshalBinary()
		if err != nil {
			return nil, err
		}
		v = append(v, b...)
	}

	return v, nil
}

// ApplyActions is the OFPIT_APPLY_ACTIONS instruction.
type ApplyActions struct {
	Actions []Output
}

func (r ApplyActions) MarshalBinary() ([]byte, error) {
	actions, err := marshalActions(r.Actions)
	if err != nil {
		return nil, err
	}

	v := make([]byte, 8, 8+len(actions))
	binary.BigEndian.PutUint16(v[0:2], OFPIT_APPLY_ACTIONS)
	binary.BigEndian.PutUint16(v[2:4], uint16(8+len(actions)))
	// v[4:8] is padding

	return append(v, actions...), nil
}
