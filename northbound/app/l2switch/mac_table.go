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

package l2switch

import (
	"net"
	"sort"
	"sync"
)

// HostLocation is a learned (switch, MAC) -> port entry.
type HostLocation struct {
	SwitchID uint64 `json:"switch_id"`
	MAC      string `json:"mac"`
	Port     uint32 `json:"port"`
}

// MacTable maps the MAC addresses seen on each switch to their ingress port.
// Entries are never evicted.
type MacTable struct {
	mutex  sync.RWMutex
	tables map[uint64]map[string]uint32
}

func NewMacTable() *MacTable {
	return &MacTable{tables: make(map[uint64]map[string]uint32)}
}

// Learn overwrites the port of mac on the switch sw.
func (r *MacTable) Learn(sw uint64, mac net.HardwareAddr, port uint32) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	t, ok := r.tables[sw]
	if !ok {
		t = make(map[string]uint32)
		r.tables[sw] = t
	}
	t[mac.String()] = port
}

func (r *MacTable) Lookup(sw uint64, mac net.HardwareAddr) (port uint32, ok bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	port, ok = r.tables[sw][mac.String()]
	return port, ok
}

// Locate returns the switch that has learned mac. If several switches have
// learned it, the one whose ID is the smallest wins.
func (r *MacTable) Locate(mac net.HardwareAddr) (sw uint64, ok bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	key := mac.String()
	found := false
	for id, t := range r.tables {
		if _, exist := t[key]; !exist {
			continue
		}
		if !found || id < sw {
			sw = id
			found = true
		}
	}

	return sw, found
}

// Hosts returns every entry ordered by switch ID and MAC address.
func (r *MacTable) Hosts() []HostLocation {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]HostLocation, 0)
	for id, t := range r.tables {
		for mac, port := range t {
			result = append(result, HostLocation{SwitchID: id, MAC: mac, Port: port})
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].SwitchID != result[j].SwitchID {
			return result[i].SwitchID < result[j].SwitchID
		}
		return result[i].MAC < result[j].MAC
	})

	return result
}
