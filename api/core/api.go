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

// Package core serves the topology, statistics and forwarding state of the
// controller.
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"slices"
	"strconv"
	"time"

	"github.com/superkkt/almond/api"
	"github.com/superkkt/almond/graph"
	"github.com/superkkt/almond/northbound/app/l2switch"
	"github.com/superkkt/almond/stats"

	"github.com/ant0ine/go-json-rest/rest"
	"github.com/davecgh/go-spew/spew"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var (
	logger = logging.MustGetLogger("core")
)

type SwitchLister interface {
	Switches() iter.Seq[uint64]
}

type StatsReporter interface {
	Summary() stats.Summary
}

type HostLister interface {
	Hosts() []l2switch.HostLocation
}

type Topology interface {
	Links() []graph.Link
	SetLinkWeight(from, to, weight uint64) error
	ShortestPath(from, to uint64) ([]uint64, error)
}

type FlowLister interface {
	Flows() []l2switch.FlowRecord
}

type API struct {
	api.Server
	Switches SwitchLister
	Stats    StatsReporter
	Hosts    HostLister
	Topology Topology
	Flows    FlowLister
}

func (r *API) validate() error {
	if r.Switches == nil {
		return errors.New("nil switch lister")
	}
	if r.Stats == nil {
		return errors.New("nil stats reporter")
	}
	if r.Hosts == nil {
		return errors.New("nil host lister")
	}
	if r.Topology == nil {
		return errors.New("nil topology")
	}
	if r.Flows == nil {
		return errors.New("nil flow lister")
	}

	return nil
}

func (r *API) routes() []*rest.Route {
	return []*rest.Route{
		rest.Get("/api/v1/switch", r.listSwitches),
		rest.Get("/api/v1/stats", r.summary),
		rest.Get("/api/v1/host", r.listHosts),
		rest.Get("/api/v1/link", r.listLinks),
		rest.Put("/api/v1/link", r.updateLink),
		rest.Get("/api/v1/path/:from/:to", r.findPath),
		rest.Get("/api/v1/flow", r.listFlows),
	}
}

// Serve blocks until ctx is canceled.
func (r *API) Serve(ctx context.Context) error {
	if err := r.validate(); err != nil {
		return err
	}

	return r.Server.Serve(ctx, r.routes()...)
}

func (r *API) listSwitches(w rest.ResponseWriter, req *rest.Request) {
	logger.Debugf("switch list request from %v", req.RemoteAddr)

	w.WriteJson(&api.Response{
		Status: api.StatusOkay,
		Data:   slices.Collect(r.Switches.Switches()),
	})
}

func (r *API) summary(w rest.ResponseWriter, req *rest.Request) {
	logger.Debugf("stats request from %v", req.RemoteAddr)

	w.WriteJson(&api.Response{Status: api.StatusOkay, Data: r.Stats.Summary()})
}

func (r *API) listHosts(w rest.ResponseWriter, req *rest.Request) {
	logger.Debugf("host list request from %v", req.RemoteAddr)

	w.WriteJson(&api.Response{Status: api.StatusOkay, Data: r.Hosts.Hosts()})
}

type link struct {
	From      uint64    `json:"from"`
	To        uint64    `json:"to"`
	Port      uint32    `json:"port"`
	Weight    uint64    `json:"weight"`
	Static    bool      `json:"static"`
	Timestamp time.Time `json:"timestamp"`
}

func (r *API) listLinks(w rest.ResponseWriter, req *rest.Request) {
	logger.Debugf("link list request from %v", req.RemoteAddr)

	links := r.Topology.Links()
	result := make([]link, len(links))
	for i, v := range links {
		result[i] = link{
			From:      v.From,
			To:        v.To,
			Port:      v.Port,
			Weight:    v.Weight,
			Static:    v.Static,
			Timestamp: v.Timestamp,
		}
	}

	w.WriteJson(&api.Response{Status: api.StatusOkay, Data: result})
}

type updateLinkParam struct {
	From   uint64
	To     uint64
	Weight uint64
}

func (r *updateLinkParam) UnmarshalJSON(data []byte) error {
	v := struct {
		From   *uint64 `json:"from"`
		To     *uint64 `json:"to"`
		Weight *uint64 `json:"weight"`
	}{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	if v.From == nil || v.To == nil || v.Weight == nil {
		return errors.New("from, to and weight are required")
	}
	if *v.From == 0 || *v.To == 0 {
		return errors.New("invalid switch ID: 0")
	}
	if *v.From == *v.To {
		return fmt.Errorf("self-loop link on switch %v", *v.From)
	}
	r.From = *v.From
	r.To = *v.To
	r.Weight = *v.Weight

	return nil
}

func (r *API) updateLink(w rest.ResponseWriter, req *rest.Request) {
	p := new(updateLinkParam)
	if err := req.DecodeJsonPayload(p); err != nil {
		w.WriteJson(&api.Response{Status: api.StatusInvalidParameter, Message: err.Error()})
		return
	}
	logger.Debugf("link update request from %v: %v", req.RemoteAddr, spew.Sdump(p))

	if err := r.Topology.SetLinkWeight(p.From, p.To, p.Weight); err != nil {
		if errors.Cause(err) == graph.ErrUnknownNode {
			w.WriteJson(&api.Response{Status: api.StatusNotFound, Message: err.Error()})
			return
		}
		w.WriteJson(&api.Response{Status: api.StatusInternalServerError, Message: err.Error()})
		return
	}
	logger.Infof("link weight is updated by %v: %v -> %v, weight=%v", req.RemoteAddr, p.From, p.To, p.Weight)

	w.WriteJson(&api.Response{Status: api.StatusOkay})
}

func parseSwitchID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid switch ID: %v", s)
	}

	return id, nil
}

func (r *API) findPath(w rest.ResponseWriter, req *rest.Request) {
	from, err := parseSwitchID(req.PathParam("from"))
	if err != nil {
		w.WriteJson(&api.Response{Status: api.StatusInvalidParameter, Message: err.Error()})
		return
	}
	to, err := parseSwitchID(req.PathParam("to"))
	if err != nil {
		w.WriteJson(&api.Response{Status: api.StatusInvalidParameter, Message: err.Error()})
		return
	}
	logger.Debugf("path request from %v: %v -> %v", req.RemoteAddr, from, to)

	path, err := r.Topology.ShortestPath(from, to)
	if err != nil {
		switch errors.Cause(err) {
		case graph.ErrNoPath, graph.ErrUnknownNode:
			w.WriteJson(&api.Response{Status: api.StatusNotFound, Message: err.Error()})
		default:
			w.WriteJson(&api.Response{Status: api.StatusInternalServerError, Message: err.Error()})
		}
		return
	}

	w.WriteJson(&api.Response{Status: api.StatusOkay, Data: path})
}

func (r *API) listFlows(w rest.ResponseWriter, req *rest.Request) {
	logger.Debugf("flow list request from %v", req.RemoteAddr)

	w.WriteJson(&api.Response{Status: api.StatusOkay, Data: r.Flows.Flows()})
}
