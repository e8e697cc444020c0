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

	"github.com/superkkt/almond/graph"

	"github.com/pkg/errors"
)

type Topology interface {
	ShortestPath(from, to uint64) ([]uint64, error)
}

type Counter interface {
	Get(id uint64) uint64
}

// Planner selects the next hop toward the switch of a destination host.
type Planner struct {
	macs     *MacTable
	topology Topology
	counters Counter
}

func NewPlanner(macs *MacTable, topology Topology, counters Counter) *Planner {
	return &Planner{
		macs:     macs,
		topology: topology,
		counters: counters,
	}
}

// SelectNextHop returns the least loaded hop on the shortest path from the
// switch from to the switch where dst has been learned. The load of a hop is
// the sum of the packet counters of the hop and its predecessor, and the
// first minimum wins. It returns false if dst is unknown, if there is no path,
// or if dst is local to from.
func (r *Planner) SelectNextHop(from uint64, src, dst net.HardwareAddr) (hop uint64, ok bool) {
	target, ok := r.macs.Locate(dst)
	if !ok {
		logger.Debugf("unknown destination: src=%v, dst=%v", src, dst)
		return 0, false
	}

	path, err := r.topology.ShortestPath(from, target)
	if err != nil {
		if errors.Cause(err) == graph.ErrNoPath {
			logger.Warningf("no path found between switch %v and switch %v", from, target)
		} else {
			logger.Errorf("failed to find a path between switch %v and switch %v: %v", from, target, err)
		}
		return 0, false
	}
	if len(path) < 2 {
		return 0, false
	}

	var minLoad uint64
	for i := 1; i < len(path); i++ {
		load := r.counters.Get(path[i-1]) + r.counters.Get(path[i])
		if i == 1 || load < minLoad {
			minLoad = load
			hop = path[i]
		}
	}
	logger.Debugf("selected the next hop: from=%v, target=%v, path=%v, hop=%v, load=%v", from, target, path, hop, minLoad)

	return hop, true
}
