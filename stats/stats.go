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

// Package stats counts the table-miss events of each switch.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Counters keeps a monotonically increasing packet counter per switch. A
// switch that has never been counted has zero.
type Counters struct {
	mutex  sync.RWMutex
	counts map[uint64]uint64
}

func NewCounters() *Counters {
	return &Counters{counts: make(map[uint64]uint64)}
}

// Increment adds one to the counter of the switch and returns the new value.
func (r *Counters) Increment(id uint64) uint64 {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.counts[id]++
	return r.counts[id]
}

func (r *Counters) Get(id uint64) uint64 {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.counts[id]
}

// Snapshot returns a copy of the counters.
func (r *Counters) Snapshot() map[uint64]uint64 {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make(map[uint64]uint64, len(r.counts))
	for k, v := range r.counts {
		result[k] = v
	}

	return result
}

type SwitchCount struct {
	SwitchID uint64 `json:"switch_id"`
	Count    uint64 `json:"count"`
}

// Summary is the statistics of the frames handled by the controller.
type Summary struct {
	Timestamp time.Time     `json:"timestamp"`
	Total     uint64        `json:"total"`
	PerSwitch []SwitchCount `json:"per_switch"`
	// Switches that have handled at least one frame.
	Active []uint64 `json:"active"`
	// Registered switches that are not active.
	Inactive []uint64 `json:"inactive"`
}

// Summarize builds the summary of counts for the registered switches. Counted
// switches that are no longer registered still contribute to the total.
func Summarize(counts map[uint64]uint64, registered []uint64) Summary {
	ids := make(map[uint64]struct{}, len(counts)+len(registered))
	for id := range counts {
		ids[id] = struct{}{}
	}
	for _, id := range registered {
		ids[id] = struct{}{}
	}
	sorted := make([]uint64, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	result := Summary{
		Timestamp: time.Now(),
		PerSwitch: make([]SwitchCount, 0, len(sorted)),
		Active:    make([]uint64, 0),
		Inactive:  make([]uint64, 0),
	}
	isRegistered := make(map[uint64]bool, len(registered))
	for _, id := range registered {
		isRegistered[id] = true
	}
	for _, id := range sorted {
		count := counts[id]
		result.Total += count
		result.PerSwitch = append(result.PerSwitch, SwitchCount{SwitchID: id, Count: count})
		if count > 0 {
			result.Active = append(result.Active, id)
		} else if isRegistered[id] {
			result.Inactive = append(result.Inactive, id)
		}
	}

	return result
}

// Lines returns the human-readable statistics block.
func (r Summary) Lines() []string {
	result := []string{
		"=== Network Statistics ===",
		fmt.Sprintf("Total packets handled by the controller: %v", r.Total),
	}
	for _, v := range r.PerSwitch {
		result = append(result, fmt.Sprintf("Switch %v handled %v packets", v.SwitchID, v.Count))
	}
	result = append(result, fmt.Sprintf("Active switches: %v", formatIDs(r.Active)))
	result = append(result, fmt.Sprintf("Inactive switches: %v", formatIDs(r.Inactive)))

	return result
}

func formatIDs(ids []uint64) string {
	v := make([]string, len(ids))
	for i, id := range ids {
		v[i] = fmt.Sprintf("%v", id)
	}

	return "[" + strings.Join(v, ", ") + "]"
}
