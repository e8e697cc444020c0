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
	"iter"
	"sort"
	"sync"

	"github.com/superkkt/almond/graph"
)

// Registry keeps the session handles of the connected switches. Every
// registered switch is also a node of the topology graph.
type Registry struct {
	mutex    sync.RWMutex
	sessions map[uint64]Session
	topology *graph.Graph
}

func NewRegistry(topology *graph.Graph) *Registry {
	if topology == nil {
		panic("nil topology graph")
	}

	return &Registry{
		sessions: make(map[uint64]Session),
		topology: topology,
	}
}

// Register adds the switch or replaces its session handle.
func (r *Registry) Register(id uint64, s Session) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.sessions[id]; ok {
		logger.Infof("replacing the session handle of switch %v", id)
	}
	r.sessions[id] = s
	r.topology.AddNode(id)
}

// Unregister removes the switch only if s is its current session handle, so
// that a stale session going down does not evict a newer one. The switch node
// and its links are removed from the topology graph.
func (r *Registry) Unregister(id uint64, s Session) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	v, ok := r.sessions[id]
	if !ok || v != s {
		return false
	}
	delete(r.sessions, id)
	r.topology.RemoveNode(id)

	return true
}

func (r *Registry) Session(id uint64) (Session, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	v, ok := r.sessions[id]
	return v, ok
}

func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.sessions)
}

func (r *Registry) snapshot() []uint64 {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]uint64, 0, len(r.sessions))
	for id := range r.sessions {
		result = append(result, id)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })

	return result
}

// Switches returns the registered switch IDs in ascending order. Each
// iteration works on a snapshot taken when it starts, so the registry can be
// modified during the iteration.
func (r *Registry) Switches() iter.Seq[uint64] {
	return func(yield func(uint64) bool) {
		for _, id := range r.snapshot() {
			if !yield(id) {
				return
			}
		}
	}
}
