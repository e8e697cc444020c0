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

package stats

import (
	"sync"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestCounters(t *testing.T) {
	c := NewCounters()
	if c.Get(1) != 0 {
		t.Fatal("an absent counter must be zero")
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Increment(1)
			}
		}()
	}
	wg.Wait()

	if c.Get(1) != 1000 {
		t.Fatalf("unexpected counter: %v", c.Get(1))
	}
	if v := c.Increment(2); v != 1 {
		t.Fatalf("unexpected counter: %v", v)
	}
	expected := map[uint64]uint64{1: 1000, 2: 1}
	if !cmp.Equal(expected, c.Snapshot()) {
		t.Fatalf("unexpected snapshot: %v", c.Snapshot())
	}
}

func TestSummarizeIdle(t *testing.T) {
	summary := Summarize(map[uint64]uint64{}, []uint64{2, 1})
	expected := Summary{
		Total:     0,
		PerSwitch: []SwitchCount{{1, 0}, {2, 0}},
		Active:    []uint64{},
		Inactive:  []uint64{1, 2},
	}
	if !cmp.Equal(expected, summary, cmpopts.IgnoreFields(Summary{}, "Timestamp")) {
		t.Fatalf("unexpected summary: %v", spew.Sdump(summary))
	}
}

func TestSummarize(t *testing.T) {
	summary := Summarize(map[uint64]uint64{1: 3, 3: 4}, []uint64{1, 2})
	expected := Summary{
		Total:     7,
		PerSwitch: []SwitchCount{{1, 3}, {2, 0}, {3, 4}},
		Active:    []uint64{1, 3},
		Inactive:  []uint64{2},
	}
	if !cmp.Equal(expected, summary, cmpopts.IgnoreFields(Summary{}, "Timestamp")) {
		t.Fatalf("unexpected summary: %v", spew.Sdump(summary))
	}

	lines := summary.Lines()
	if lines[1] != "Total packets handled by the controller: 7" {
		t.Fatalf("unexpected total line: %v", lines[1])
	}
	if lines[len(lines)-1] != "Inactive switches: [2]" {
		t.Fatalf("unexpected inactive line: %v", lines[len(lines)-1])
	}
}
