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

// Package l2switch forwards table-miss frames using the learned host
// locations and the load-aware path planner.
package l2switch

import (
	"github.com/superkkt/almond/network"

	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var (
	logger = logging.MustGetLogger("l2switch")
)

type Sessions interface {
	Session(id uint64) (network.Session, bool)
}

type PacketCounter interface {
	Counter
	Increment(id uint64) uint64
}

type resolution int

const (
	dropped resolution = iota
	resolvedLocal
	resolvedRemote
	unresolved
)

func (r resolution) String() string {
	switch r {
	case dropped:
		return "DROPPED"
	case resolvedLocal:
		return "RESOLVED_LOCAL"
	case resolvedRemote:
		return "RESOLVED_REMOTE"
	case unresolved:
		return "UNRESOLVED"
	default:
		return "UNKNOWN"
	}
}

type L2Switch struct {
	sessions  Sessions
	macs      *MacTable
	planner   *Planner
	installer *Installer
	counters  PacketCounter
}

func New(sessions Sessions, macs *MacTable, planner *Planner, installer *Installer, counters PacketCounter) *L2Switch {
	return &L2Switch{
		sessions:  sessions,
		macs:      macs,
		planner:   planner,
		installer: installer,
		counters:  counters,
	}
}

func (r *L2Switch) Name() string {
	return "L2Switch"
}

func (r *L2Switch) MacTable() *MacTable {
	return r.macs
}

func (r *L2Switch) Installer() *Installer {
	return r.installer
}

// OnSessionEstablished installs the table-miss flow on the new switch.
func (r *L2Switch) OnSessionEstablished(ev network.SessionEstablished) {
	if err := r.installer.InstallTableMiss(ev.Session); err != nil {
		logSendError(err)
	}
}

func (r *L2Switch) OnPacketIn(ev network.PacketIn) {
	r.process(ev)
}

func (r *L2Switch) process(ev network.PacketIn) resolution {
	if ev.Frame == nil {
		logger.Warningf("dropping a malformed PACKET_IN: %v", ev)
		return dropped
	}
	// Link-discovery frames are not user traffic.
	if ev.Frame.IsLLDP() {
		return dropped
	}

	src, dst := ev.Frame.SrcMAC, ev.Frame.DstMAC
	logger.Infof("PACKET_IN: switch=%v, src=%v, dst=%v, in_port=%v", ev.SwitchID, src, dst, ev.InPort)
	r.macs.Learn(ev.SwitchID, src, ev.InPort)

	state := unresolved
	egress := network.PortFlood
	if port, ok := r.macs.Lookup(ev.SwitchID, dst); ok {
		state, egress = resolvedLocal, port
	} else if hop, ok := r.planner.SelectNextHop(ev.SwitchID, src, dst); ok {
		// The hop may not have learned dst yet.
		if port, ok := r.macs.Lookup(hop, dst); ok {
			state, egress = resolvedRemote, port
		}
	}
	logger.Debugf("%v: switch=%v, dst=%v, egress=%v", state, ev.SwitchID, dst, egress)

	d := Decision{
		InPort:   ev.InPort,
		SrcMAC:   src,
		DstMAC:   dst,
		OutPort:  egress,
		BufferID: ev.BufferID,
		Data:     ev.Data,
	}
	session, _ := r.sessions.Session(ev.SwitchID)
	if err := r.installer.Forward(session, d); err != nil {
		logSendError(err)
	}
	r.counters.Increment(ev.SwitchID)

	return state
}

func logSendError(err error) {
	if errors.Cause(err) == network.ErrSessionUnavailable {
		logger.Warningf("dropped a message to an unavailable session: %v", err)
		return
	}
	logger.Errorf("%v", err)
}
