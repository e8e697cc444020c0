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
	"fmt"
	"net"
	"time"

	"github.com/superkkt/almond/network"

	"github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
)

const (
	tableMissPriority = 0
	forwardPriority   = 1

	DefaultJournalSize = 8192
)

// Decision is the forwarding decision for a table-miss frame. OutPort is
// network.PortFlood if the destination could not be resolved.
type Decision struct {
	InPort   uint32
	SrcMAC   net.HardwareAddr
	DstMAC   net.HardwareAddr
	OutPort  uint32
	BufferID uint32
	Data     []byte
}

func (r Decision) IsFlood() bool {
	return r.OutPort == network.PortFlood
}

func (r Decision) IsBuffered() bool {
	return r.BufferID != network.NoBuffer
}

func (r Decision) String() string {
	return fmt.Sprintf("Decision(InPort=%v, Src=%v, Dst=%v, OutPort=%v, BufferID=%#x)", r.InPort, r.SrcMAC, r.DstMAC, r.OutPort, r.BufferID)
}

// FlowRecord is an entry of the flow journal.
type FlowRecord struct {
	SwitchID    uint64    `json:"switch_id"`
	Match       string    `json:"match"`
	Priority    uint16    `json:"priority"`
	OutPort     uint32    `json:"out_port"`
	InstalledAt time.Time `json:"installed_at"`
}

// Installer sends the flow rules and the packet-outs of forwarding decisions.
// The flow rules installed recently are kept in a bounded journal.
type Installer struct {
	journal *lru.Cache
}

func NewInstaller(journalSize int) (*Installer, error) {
	if journalSize <= 0 {
		journalSize = DefaultJournalSize
	}
	c, err := lru.New(journalSize)
	if err != nil {
		return nil, errors.Wrap(err, "LRU flow journal")
	}

	return &Installer{journal: c}, nil
}

func (r *Installer) install(s network.Session, rule network.FlowRule) error {
	if err := s.InstallFlow(rule); err != nil {
		return err
	}

	key := fmt.Sprintf("%v/%v", s.ID(), rule.Match)
	if r.journal.Contains(key) {
		// The switch replaces the rule that has an identical match.
		logger.Debugf("replaced a flow rule on switch %v: %v", s.ID(), rule)
	}
	r.journal.Add(key, FlowRecord{
		SwitchID:    s.ID(),
		Match:       rule.Match.String(),
		Priority:    rule.Priority,
		OutPort:     rule.OutPort,
		InstalledAt: time.Now(),
	})
	logger.Debugf("installed a flow rule on switch %v: %v", s.ID(), rule)

	return nil
}

// InstallTableMiss installs the lowest priority rule that sends every
// unmatched frame to the controller without buffering it.
func (r *Installer) InstallTableMiss(s network.Session) error {
	rule := network.FlowRule{
		Priority: tableMissPriority,
		OutPort:  network.PortController,
		BufferID: network.NoBuffer,
	}
	if err := r.install(s, rule); err != nil {
		return errors.Wrapf(err, "failed to install the table-miss flow on switch %v", s.ID())
	}

	return nil
}

// Forward installs a flow rule for a non-flood decision and then emits the
// frame if the switch has not buffered it. A flood decision only emits the
// frame.
func (r *Installer) Forward(s network.Session, d Decision) error {
	if s == nil {
		return network.ErrSessionUnavailable
	}

	if !d.IsFlood() {
		rule := network.FlowRule{
			Priority: forwardPriority,
			Match: network.Match{
				InPort: d.InPort,
				DstMAC: d.DstMAC,
				SrcMAC: d.SrcMAC,
			},
			OutPort:  d.OutPort,
			BufferID: d.BufferID,
		}
		if err := r.install(s, rule); err != nil {
			return errors.Wrapf(err, "failed to install a flow on switch %v", s.ID())
		}
		// The switch forwards the buffered frame by itself after installing the rule.
		if d.IsBuffered() {
			return nil
		}
	}

	out := network.PacketOut{
		InPort:   d.InPort,
		OutPort:  d.OutPort,
		BufferID: d.BufferID,
	}
	if !d.IsBuffered() {
		out.Data = d.Data
	}
	if err := s.EmitPacket(out); err != nil {
		return errors.Wrapf(err, "failed to emit a packet on switch %v", s.ID())
	}

	return nil
}

// Flows returns the journal from the oldest to the newest record.
func (r *Installer) Flows() []FlowRecord {
	keys := r.journal.Keys()
	result := make([]FlowRecord, 0, len(keys))
	for _, k := range keys {
		v, ok := r.journal.Peek(k)
		if !ok {
			continue
		}
		result = append(result, v.(FlowRecord))
	}

	return result
}
