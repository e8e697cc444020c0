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

// Package northbound dispatches the network events to the applications.
package northbound

import (
	"bytes"
	"fmt"
	"runtime/debug"

	"github.com/superkkt/almond/network"
	"github.com/superkkt/almond/northbound/app/l2switch"
	"github.com/superkkt/almond/northbound/app/monitor"

	"github.com/op/go-logging"
)

var (
	logger = logging.MustGetLogger("northbound")
)

type application interface {
	Name() string
}

type Manager struct {
	l2switch *l2switch.L2Switch
	monitor  *monitor.Monitor
}

func NewManager(l2 *l2switch.L2Switch, m *monitor.Monitor) *Manager {
	if l2 == nil {
		panic("nil L2 switch application")
	}
	if m == nil {
		panic("nil monitor application")
	}

	return &Manager{
		l2switch: l2,
		monitor:  m,
	}
}

// Handle implements network.Listener. It is called concurrently by the
// sessions of different switches.
func (r *Manager) Handle(ev network.Event) {
	defer func() {
		if v := recover(); v != nil {
			logger.Errorf("panic while handling %T: %v\n%s", ev, v, debug.Stack())
		}
	}()

	switch v := ev.(type) {
	case network.SessionEstablished:
		logger.Infof("switch %v is connected", v.SwitchID)
		r.l2switch.OnSessionEstablished(v)
	case network.SessionLost:
		logger.Warningf("switch %v is disconnected", v.SwitchID)
		r.monitor.OnSessionLost(v)
	case network.PacketIn:
		r.l2switch.OnPacketIn(v)
	case network.PortStatsReply:
		r.monitor.OnPortStats(v)
	case network.LinkDiscovered:
		r.monitor.OnLinkDiscovered(v)
	default:
		logger.Errorf("unexpected network event: %T", ev)
	}
}

func (r *Manager) String() string {
	var buf bytes.Buffer
	for _, app := range []application{r.l2switch, r.monitor} {
		buf.WriteString(fmt.Sprintf("%v\n", app.Name()))
	}

	return buf.String()
}
