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

package network

import (
	"context"
	"sync"
)

type cancelEntry struct {
	owner  *Device
	cancel context.CancelFunc
}

// canceller keeps the cancel function of each established session so that a
// new connection from the same DPID can disconnect the previous one.
type canceller struct {
	mu    sync.Mutex
	elems map[uint64]cancelEntry
}

func newCanceller() *canceller {
	return &canceller{elems: make(map[uint64]cancelEntry)}
}

func (r *canceller) push(dpid uint64, owner *Device, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.elems[dpid] = cancelEntry{owner: owner, cancel: cancel}
}

func (r *canceller) pop(dpid uint64) (cancel context.CancelFunc, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.elems[dpid]
	if !ok {
		return nil, false
	}
	delete(r.elems, dpid)

	return v.cancel, true
}

// remove deletes the entry of dpid only if it belongs to owner.
func (r *canceller) remove(dpid uint64, owner *Device) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.elems[dpid]; ok && v.owner == owner {
		delete(r.elems, dpid)
	}
}
