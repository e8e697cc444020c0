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

package graph

import (
	"math"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/pkg/errors"
)

func newTriangle(t *testing.T) *Graph {
	graph := New()
	for _, v := range []uint64{1, 2, 3} {
		graph.AddNode(v)
	}
	weights := []struct {
		a, b, w uint64
	}{
		{1, 2, 5},
		{2, 3, 1},
		{1, 3, 10},
	}
	for _, v := range weights {
		if err := graph.SetLinkWeight(v.a, v.b, v.w); err != nil {
			t.Fatal(err)
		}
		if err := graph.SetLinkWeight(v.b, v.a, v.w); err != nil {
			t.Fatal(err)
		}
	}

	return graph
}

func TestShortestPathMinimumTotalWeight(t *testing.T) {
	graph := newTriangle(t)

	path, err := graph.ShortestPath(1, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []uint64{1, 2, 3}
	if !cmp.Equal(expected, path) {
		t.Fatalf("unexpected path: expected=%v, got=%v", expected, path)
	}

	path, err = graph.ShortestPath(3, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected = []uint64{3, 2, 1}
	if !cmp.Equal(expected, path) {
		t.Fatalf("unexpected path: expected=%v, got=%v", expected, path)
	}
}

func TestShortestPathSaturatedWeight(t *testing.T) {
	graph := New()
	for _, v := range []uint64{1, 2, 3} {
		graph.AddNode(v)
	}
	weights := []struct {
		from, to, w uint64
	}{
		{1, 3, math.MaxUint64},
		{1, 2, math.MaxUint64 - 1},
		{2, 3, 5},
	}
	for _, v := range weights {
		if err := graph.SetLinkWeight(v.from, v.to, v.w); err != nil {
			t.Fatal(err)
		}
	}

	path, err := graph.ShortestPath(1, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []uint64{1, 3}
	if !cmp.Equal(expected, path) {
		t.Fatalf("unexpected path: expected=%v, got=%v", expected, path)
	}
}

func TestShortestPathSelf(t *testing.T) {
	graph := newTriangle(t)
	for _, v := range []uint64{1, 2, 3, 99} {
		path, err := graph.ShortestPath(v, v)
		if err != nil {
			t.Fatalf("unexpected error for %v: %v", v, err)
		}
		if !cmp.Equal([]uint64{v}, path) {
			t.Fatalf("unexpected path for %v: %v", v, path)
		}
	}
}

func TestShortestPathNoPath(t *testing.T) {
	graph := New()
	graph.AddNode(1)
	graph.AddNode(2)

	if _, err := graph.ShortestPath(1, 2); err != ErrNoPath {
		t.Fatalf("expected ErrNoPath, got %v", err)
	}
	if _, err := graph.ShortestPath(1, 3); err != ErrNoPath {
		t.Fatalf("expected ErrNoPath for an unknown node, got %v", err)
	}

	// Links are directed.
	if err := graph.SetLinkWeight(2, 1, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := graph.ShortestPath(1, 2); err != ErrNoPath {
		t.Fatalf("expected ErrNoPath, got %v", err)
	}
	if _, err := graph.ShortestPath(2, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestShortestPathTieBreak(t *testing.T) {
	graph := New()
	for _, v := range []uint64{1, 2, 3, 4} {
		graph.AddNode(v)
	}
	// 1 -> 3 -> 4 and 1 -> 2 -> 4 have the same cost.
	for _, v := range [][3]uint64{{1, 3, 1}, {3, 4, 1}, {1, 2, 1}, {2, 4, 1}} {
		if err := graph.SetLinkWeight(v[0], v[1], v[2]); err != nil {
			t.Fatal(err)
		}
	}

	for i := 0; i < 10; i++ {
		path, err := graph.ShortestPath(1, 4)
		if err != nil {
			t.Fatal(err)
		}
		if !cmp.Equal([]uint64{1, 2, 4}, path) {
			t.Fatalf("unexpected path: %v", path)
		}
	}
}

func TestUnknownNode(t *testing.T) {
	graph := New()
	graph.AddNode(1)

	if err := graph.SetLinkWeight(1, 2, 3); errors.Cause(err) != ErrUnknownNode {
		t.Fatalf("expected ErrUnknownNode, got %v", err)
	}
	if _, err := graph.AddLink(Link{From: 2, To: 1}); errors.Cause(err) != ErrUnknownNode {
		t.Fatalf("expected ErrUnknownNode, got %v", err)
	}
}

func TestRemoveNode(t *testing.T) {
	graph := newTriangle(t)
	graph.RemoveNode(2)

	if graph.HasNode(2) {
		t.Fatal("node 2 should be removed")
	}
	links := graph.Links()
	expected := []Link{{From: 1, To: 3, Weight: 10}, {From: 3, To: 1, Weight: 10}}
	if !cmp.Equal(expected, links, cmpopts.IgnoreFields(Link{}, "Timestamp")) {
		t.Fatalf("unexpected links: %v", spew.Sdump(links))
	}
	if !cmp.Equal([]uint64{1, 3}, graph.Nodes()) {
		t.Fatalf("unexpected nodes: %v", graph.Nodes())
	}
}

func TestAddLinkKeepsWeight(t *testing.T) {
	graph := New()
	graph.AddNode(1)
	graph.AddNode(2)

	added, err := graph.AddLink(Link{From: 1, To: 2, Port: 4})
	if err != nil || !added {
		t.Fatalf("failed to add a link: added=%v, err=%v", added, err)
	}
	if err := graph.SetLinkWeight(1, 2, 42); err != nil {
		t.Fatal(err)
	}
	added, err = graph.AddLink(Link{From: 1, To: 2, Port: 4})
	if err != nil || added {
		t.Fatalf("unexpected result on refresh: added=%v, err=%v", added, err)
	}
	if w, ok := graph.LinkWeight(1, 2); !ok || w != 42 {
		t.Fatalf("unexpected weight: %v", w)
	}

	l, ok := graph.LinkByPort(1, 4)
	if !ok || l.To != 2 {
		t.Fatalf("unexpected link by port: %v", l)
	}
	if _, ok := graph.LinkByPort(1, 5); ok {
		t.Fatal("unexpected link on port 5")
	}
}

func TestSeedAndStaleLinks(t *testing.T) {
	graph := New()
	graph.Seed([]Link{{From: 1, To: 2, Port: 1, Weight: 7}})
	graph.AddNode(1)
	if len(graph.Links()) != 0 {
		t.Fatal("a declared link must wait for both nodes")
	}
	graph.AddNode(2)
	graph.AddNode(3)
	if w, ok := graph.LinkWeight(1, 2); !ok || w != 7 {
		t.Fatalf("declared link is not materialized: weight=%v, ok=%v", w, ok)
	}
	if _, err := graph.AddLink(Link{From: 2, To: 3, Port: 2}); err != nil {
		t.Fatal(err)
	}

	time.Sleep(10 * time.Millisecond)
	if !graph.RemoveStaleLinks(5 * time.Millisecond) {
		t.Fatal("expected a stale link to be removed")
	}
	links := graph.Links()
	if len(links) != 1 || links[0].From != 1 || links[0].To != 2 || !links[0].Static {
		t.Fatalf("unexpected links after expiration: %v", spew.Sdump(links))
	}

	// Reconnection brings the declared link back.
	graph.RemoveNode(2)
	if _, ok := graph.LinkWeight(1, 2); ok {
		t.Fatal("link should be removed with its node")
	}
	graph.AddNode(2)
	if _, ok := graph.LinkWeight(1, 2); !ok {
		t.Fatal("declared link is not restored")
	}
}

func TestParseLinks(t *testing.T) {
	doc := `
links:
  - from: 1
    to: 2
    port: 3
    weight: 5
    bidirectional: true
    reverse_port: 4
  - from: 2
    to: 3
    weight: 1
`
	links, err := ParseLinks([]byte(doc))
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	expected := []Link{
		{From: 1, To: 2, Port: 3, Weight: 5, Static: true},
		{From: 2, To: 1, Port: 4, Weight: 5, Static: true},
		{From: 2, To: 3, Weight: 1, Static: true},
	}
	if !cmp.Equal(expected, links) {
		t.Fatalf("unexpected links: %v", cmp.Diff(expected, links))
	}

	if _, err := ParseLinks([]byte("links:\n  - from: 1\n    to: 1\n")); err == nil {
		t.Fatal("expected an error for a self-loop")
	}
}
