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

// Package graph keeps the switch topology as a directed graph weighted by the
// observed link load.
package graph

import (
	"bytes"
	"container/heap"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var (
	logger = logging.MustGetLogger("graph")
)

var (
	ErrNoPath      = errors.New("no path between the switches")
	ErrUnknownNode = errors.New("unknown node")
)

// Link is a directed link between two switches. Port is the egress port on
// From, zero if it is not known.
type Link struct {
	From      uint64
	To        uint64
	Port      uint32
	Weight    uint64
	Static    bool
	Timestamp time.Time
}

func (r Link) String() string {
	return fmt.Sprintf("Link(%v:%v -> %v, Weight=%v, Static=%v)", r.From, r.Port, r.To, r.Weight, r.Static)
}

type link struct {
	port      uint32
	weight    uint64
	static    bool
	timestamp time.Time
}

type key struct {
	from, to uint64
}

type Graph struct {
	mutex sync.RWMutex
	// nodes[from][to] is the link from -> to.
	nodes map[uint64]map[uint64]*link
	// Declared links that are materialized as soon as both endpoints exist.
	declared map[key]Link
}

func New() *Graph {
	return &Graph{
		nodes:    make(map[uint64]map[uint64]*link),
		declared: make(map[key]Link),
	}
}

func (r *Graph) String() string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var buf bytes.Buffer
	for _, v := range r.links() {
		buf.WriteString(fmt.Sprintf("%v, Timestamp=%v\n", v, v.Timestamp))
	}

	return buf.String()
}

// AddNode adds an isolated node. Adding an existing node does nothing except
// materializing its pending declared links.
func (r *Graph) AddNode(id uint64) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.nodes[id]; !ok {
		r.nodes[id] = make(map[uint64]*link)
		logger.Debugf("added a new node: id=%v", id)
	}
	r.materialize()
}

// materialize creates the declared links whose endpoints are both known. A
// caller should lock the mutex before calling this function.
func (r *Graph) materialize() {
	for k, v := range r.declared {
		from, ok1 := r.nodes[k.from]
		_, ok2 := r.nodes[k.to]
		if !ok1 || !ok2 {
			continue
		}
		if l, ok := from[k.to]; ok {
			// Discovered links are promoted to static ones.
			l.static = true
			if l.port == 0 {
				l.port = v.Port
			}
			continue
		}
		from[k.to] = &link{port: v.Port, weight: v.Weight, static: true, timestamp: time.Now()}
		logger.Debugf("materialized a declared link: %v", v)
	}
}

// RemoveNode removes the node and every link from or to it.
func (r *Graph) RemoveNode(id uint64) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.nodes[id]; !ok {
		return
	}
	delete(r.nodes, id)
	for _, v := range r.nodes {
		delete(v, id)
	}
	logger.Debugf("removed a node: id=%v", id)
}

func (r *Graph) HasNode(id uint64) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	_, ok := r.nodes[id]
	return ok
}

// Nodes returns the node IDs in ascending order.
func (r *Graph) Nodes() []uint64 {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]uint64, 0, len(r.nodes))
	for id := range r.nodes {
		result = append(result, id)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })

	return result
}

// AddLink adds a discovered link or refreshes the timestamp of an existing one.
// The weight of an existing link is kept. It returns true if the link is new.
func (r *Graph) AddLink(l Link) (added bool, err error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if l.From == l.To {
		return false, fmt.Errorf("self-loop link on node %v", l.From)
	}
	from, ok1 := r.nodes[l.From]
	_, ok2 := r.nodes[l.To]
	if !ok1 || !ok2 {
		return false, errors.Wrapf(ErrUnknownNode, "AddLink: %v", l)
	}

	if v, ok := from[l.To]; ok {
		v.timestamp = time.Now()
		if l.Port != 0 {
			v.port = l.Port
		}
		logger.Debugf("updated the link timestamp: %v -> %v", l.From, l.To)
		return false, nil
	}

	from[l.To] = &link{port: l.Port, weight: l.Weight, static: l.Static, timestamp: time.Now()}
	logger.Debugf("added a new link: %v", l)

	return true, nil
}

// SetLinkWeight sets the weight of the link from -> to, creating the link if
// both nodes are known.
func (r *Graph) SetLinkWeight(from, to, weight uint64) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if from == to {
		return fmt.Errorf("self-loop link on node %v", from)
	}
	src, ok1 := r.nodes[from]
	_, ok2 := r.nodes[to]
	if !ok1 || !ok2 {
		return errors.Wrapf(ErrUnknownNode, "SetLinkWeight: %v -> %v", from, to)
	}

	v, ok := src[to]
	if !ok {
		v = &link{}
		src[to] = v
	}
	v.weight = weight
	v.timestamp = time.Now()

	return nil
}

func (r *Graph) LinkWeight(from, to uint64) (weight uint64, ok bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	src, ok := r.nodes[from]
	if !ok {
		return 0, false
	}
	v, ok := src[to]
	if !ok {
		return 0, false
	}

	return v.weight, true
}

// LinkByPort returns the link whose egress port on the node from is port.
func (r *Graph) LinkByPort(from uint64, port uint32) (Link, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if port == 0 {
		return Link{}, false
	}
	for to, v := range r.nodes[from] {
		if v.port == port {
			return makeLink(from, to, v), true
		}
	}

	return Link{}, false
}

func makeLink(from, to uint64, v *link) Link {
	return Link{
		From:      from,
		To:        to,
		Port:      v.port,
		Weight:    v.weight,
		Static:    v.static,
		Timestamp: v.timestamp,
	}
}

// Links returns every link ordered by (From, To).
func (r *Graph) Links() []Link {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.links()
}

func (r *Graph) links() []Link {
	result := make([]Link, 0)
	for from, v := range r.nodes {
		for to, l := range v {
			result = append(result, makeLink(from, to, l))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].From != result[j].From {
			return result[i].From < result[j].From
		}
		return result[i].To < result[j].To
	})

	return result
}

// Seed declares static links. They are never expired and reappear whenever
// both of their endpoints are added again.
func (r *Graph) Seed(links []Link) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, v := range links {
		v.Static = true
		r.declared[key{v.From, v.To}] = v
	}
	r.materialize()
}

// RemoveStaleLinks removes the discovered links that have not been refreshed
// within expiration. Static links are kept.
func (r *Graph) RemoveStaleLinks(expiration time.Duration) (removed bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for from, v := range r.nodes {
		for to, l := range v {
			if l.static || time.Since(l.timestamp) < expiration {
				continue
			}
			logger.Infof("removing a stale link from the topology: %v -> %v", from, to)
			delete(v, to)
			removed = true
		}
	}

	return removed
}

type item struct {
	id   uint64
	dist uint64
}

type priorityQueue []item

func (r priorityQueue) Len() int {
	return len(r)
}

func (r priorityQueue) Less(i, j int) bool {
	if r[i].dist != r[j].dist {
		return r[i].dist < r[j].dist
	}
	return r[i].id < r[j].id
}

func (r priorityQueue) Swap(i, j int) {
	r[i], r[j] = r[j], r[i]
}

func (r *priorityQueue) Push(x any) {
	*r = append(*r, x.(item))
}

func (r *priorityQueue) Pop() any {
	old := *r
	n := len(old)
	v := old[n-1]
	*r = old[:n-1]
	return v
}

// ShortestPath returns the minimum total weight path from -> to, both ends
// included, using Dijkstra's algorithm. Among equal cost paths the one whose
// predecessors have smaller IDs wins. ShortestPath(a, a) is [a].
func (r *Graph) ShortestPath(from, to uint64) ([]uint64, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if from == to {
		return []uint64{from}, nil
	}
	_, ok1 := r.nodes[from]
	_, ok2 := r.nodes[to]
	if !ok1 || !ok2 {
		return nil, ErrNoPath
	}

	dist := map[uint64]uint64{from: 0}
	prev := make(map[uint64]uint64)
	done := make(map[uint64]bool)
	queue := &priorityQueue{{id: from, dist: 0}}

	for queue.Len() > 0 {
		u := heap.Pop(queue).(item)
		if done[u.id] {
			continue
		}
		done[u.id] = true
		if u.id == to {
			break
		}

		for v, l := range r.nodes[u.id] {
			if done[v] {
				continue
			}
			d := u.dist + l.weight
			// The total weight saturates instead of wrapping around.
			if d < u.dist {
				d = math.MaxUint64
			}
			old, seen := dist[v]
			if seen && (d > old || (d == old && prev[v] < u.id)) {
				continue
			}
			dist[v] = d
			prev[v] = u.id
			heap.Push(queue, item{id: v, dist: d})
		}
	}

	if !done[to] {
		return nil, ErrNoPath
	}

	path := []uint64{to}
	for u := to; u != from; {
		u = prev[u]
		path = append(path, u)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	return path, nil
}
