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

// Package network manages the OpenFlow sessions of the switches and delivers
// their events to a listener.
package network

import (
	"context"
	"fmt"
	"net"
	"slices"
	"time"

	"github.com/op/go-logging"
)

var (
	logger = logging.MustGetLogger("network")
)

const (
	defaultExplorerInterval = 3 * time.Minute
)

type Controller struct {
	registry   *Registry
	listener   Listener
	cancellers *canceller
	// Interval to re-probe the ports of each switch.
	explorerInterval time.Duration
}

func NewController(registry *Registry, listener Listener) *Controller {
	if registry == nil {
		panic("nil registry")
	}
	if listener == nil {
		panic("nil listener")
	}

	return &Controller{
		registry:         registry,
		listener:         listener,
		cancellers:       newCanceller(),
		explorerInterval: defaultExplorerInterval,
	}
}

func (r *Controller) SetExplorerInterval(d time.Duration) {
	if d <= 0 {
		d = defaultExplorerInterval
	}
	r.explorerInterval = d
}

func (r *Controller) Registry() *Registry {
	return r.registry
}

// AddConnection runs a new session on the connection c in its own goroutine.
// The session is closed when ctx is canceled.
func (r *Controller) AddConnection(ctx context.Context, c net.Conn) {
	session := newSession(c, r)
	go session.Run(ctx)
}

func (r *Controller) String() string {
	return fmt.Sprintf("Controller(Switches=%v, ExplorerInterval=%v)", slices.Collect(r.registry.Switches()), r.explorerInterval)
}
