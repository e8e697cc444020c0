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
	"testing"

	"github.com/superkkt/almond/graph"
	"github.com/superkkt/almond/stats"
)

// newTriangle returns 1-2 (5), 2-3 (1) and 1-3 (10) with H learned on switch 3.
func newTriangle(t *testing.T) (*Planner, *graph.Graph, *stats.Counters) {
	topology := graph.New()
	for _, id := range []uint64{1, 2, 3} {
		topology.AddNode(id)
	}
	for _, v := range [][3]uint64{{1, 2, 5}, {2, 3, 1}, {1, 3, 10}} {
		if err := topology.SetLinkWeight(v[0], v[1], v[2]); err != nil {
			t.Fatal(err)
		}
		if err := topology.SetLinkWeight(v[1], v[0], v[2]); err != nil {
			t.Fatal(err)
		}
	}
	macs := NewMacTable()
	macs.Learn(3, hostH, 7)
	counters := stats.NewCounters()

	return NewPlanner(macs, topology, counters), topology, counters
}

func increment(counters *stats.Counters, id uint64, n int) {
	for i := 0; i < n; i++ {
		counters.Increment(id)
	}
}

func TestSelectNextHopIdle(t *testing.T) {
	planner, _, _ := newTriangle(t)

	// The shortest path is 1, 2, 3 and every hop has zero load.
	hop, ok := planner.SelectNextHop(1, hostA, hostH)
	if !ok {
		t.Fatal("expected a next hop")
	}
	if hop != 2 {
		t.Fatalf("unexpected next hop: expected=2, got=%v", hop)
	}
}

func TestSelectNextHopLeastLoad(t *testing.T) {
	planner, _, counters := newTriangle(t)
	increment(counters, 1, 1)
	increment(counters, 2, 5)

	// Loads are 1+5 for hop 2 and 5+0 for hop 3.
	hop, ok := planner.SelectNextHop(1, hostA, hostH)
	if !ok {
		t.Fatal("expected a next hop")
	}
	if hop != 3 {
		t.Fatalf("unexpected next hop: expected=3, got=%v", hop)
	}
}

func TestSelectNextHopFirstMinimum(t *testing.T) {
	planner, _, counters := newTriangle(t)
	increment(counters, 1, 3)
	increment(counters, 3, 3)

	// Loads are 3+0 for hop 2 and 0+3 for hop 3.
	hop, ok := planner.SelectNextHop(1, hostA, hostH)
	if !ok {
		t.Fatal("expected a next hop")
	}
	if hop != 2 {
		t.Fatalf("unexpected next hop: expected=2, got=%v", hop)
	}
}

func TestSelectNextHopNeverOrigin(t *testing.T) {
	loads := [][3]int{{0, 0, 0}, {1, 5, 0}, {9, 0, 9}, {0, 7, 1}, {4, 4, 4}}
	for _, load := range loads {
		planner, _, counters := newTriangle(t)
		for i, n := range load {
			increment(counters, uint64(i+1), n)
		}

		for _, from := range []uint64{1, 2} {
			hop, ok := planner.SelectNextHop(from, hostA, hostH)
			if !ok {
				t.Fatalf("expected a next hop: from=%v, load=%v", from, load)
			}
			if hop == from {
				t.Fatalf("next hop is the originating switch: from=%v, load=%v", from, load)
			}
		}
		// H is local to switch 3.
		if hop, ok := planner.SelectNextHop(3, hostA, hostH); ok {
			t.Fatalf("unexpected next hop for a local destination: %v", hop)
		}
	}
}

func TestSelectNextHopUnresolved(t *testing.T) {
	planner, topology, _ := newTriangle(t)

	if hop, ok := planner.SelectNextHop(1, hostA, hostB); ok {
		t.Fatalf("unexpected next hop for an unknown destination: %v", hop)
	}

	// The direct link remains.
	topology.RemoveNode(2)
	if hop, ok := planner.SelectNextHop(1, hostA, hostH); !ok || hop != 3 {
		t.Fatalf("unexpected next hop: hop=%v, ok=%v", hop, ok)
	}

	topology.RemoveNode(3)
	if hop, ok := planner.SelectNextHop(1, hostA, hostH); ok {
		t.Fatalf("unexpected next hop without a path: %v", hop)
	}
}
