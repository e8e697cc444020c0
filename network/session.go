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

package network

import (
	"context"
	"net"
	"time"

	"github.com/superkkt/almond/openflow"
	"github.com/superkkt/almond/openflow/transceiver"
	"github.com/superkkt/almond/protocol"

	"github.com/pkg/errors"
)

var (
	errDuplicatedDPID = errors.New("duplicated device DPID (aux. connection is not supported yet)")
)

const (
	streamBufferSize = 0xFFFF
	// OFPET_FLOW_MOD_FAILED and OFPFMFC_OVERLAP
	errClassFlowModFailed = 5
	errCodeOverlap        = 3
)

type session struct {
	negotiated  bool
	device      *Device
	transceiver *transceiver.Transceiver
	controller  *Controller
	// A cancel function to disconnect this session.
	canceller context.CancelFunc
}

func newSession(c net.Conn, controller *Controller) *session {
	if c == nil {
		panic("Conn is nil")
	}
	if controller == nil {
		panic("Controller is nil")
	}

	stream := transceiver.NewStream(c, streamBufferSize)
	v := new(session)
	v.controller = controller
	v.transceiver = transceiver.NewTransceiver(stream, v)
	v.device = newDevice(v.transceiver, v.transceiver.Factory(), stream.RemoteAddr())

	return v
}

func (r *session) OnHello(f *openflow.Factory, w transceiver.Writer, v *openflow.Hello) error {
	logger.Debugf("HELLO (ver=%v) is received", v.Version())

	// Ignore duplicated HELLO messages
	if r.negotiated {
		return nil
	}
	r.negotiated = true

	if err := w.Write(f.NewHello()); err != nil {
		return errors.Wrap(err, "failed to send HELLO")
	}
	config := f.NewSetConfig()
	config.Flags = openflow.OFPC_FRAG_NORMAL
	config.MissSendLength = 0xFFFF
	if err := w.Write(config); err != nil {
		return errors.Wrap(err, "failed to send SET_CONFIG")
	}
	if err := w.Write(f.NewFeaturesRequest()); err != nil {
		return errors.Wrap(err, "failed to send FEATURES_REQUEST")
	}
	if err := w.Write(f.NewBarrierRequest()); err != nil {
		return errors.Wrap(err, "failed to send BARRIER_REQUEST")
	}
	if err := sendRemovingAllFlows(f, w); err != nil {
		return errors.Wrap(err, "failed to send FLOW_MOD to remove all flows")
	}
	// Make sure that the installed flows are removed before the table-miss flow is installed.
	if err := w.Write(f.NewBarrierRequest()); err != nil {
		return errors.Wrap(err, "failed to send BARRIER_REQUEST")
	}
	if err := w.Write(f.NewPortDescRequest()); err != nil {
		return errors.Wrap(err, "failed to send PORT_DESC_REQUEST")
	}

	return nil
}

func sendRemovingAllFlows(f *openflow.Factory, w transceiver.Writer) error {
	msg := f.NewFlowMod(openflow.OFPFC_DELETE)
	msg.TableID = openflow.OFPTT_ALL
	msg.Match = openflow.NewMatch()

	return w.Write(msg)
}

func (r *session) OnError(f *openflow.Factory, w transceiver.Writer, v *openflow.Error) error {
	if v.Class == errClassFlowModFailed && v.Code == errCodeOverlap {
		logger.Debug("FLOW_MOD is overlapped")
		return nil
	}
	logger.Errorf("ERROR (device=%v, class=%v, code=%v, data=%x)", r.device.ID(), v.Class, v.Code, v.Data)

	return nil
}

func (r *session) OnFeaturesReply(f *openflow.Factory, w transceiver.Writer, v *openflow.FeaturesReply) error {
	logger.Debugf("FEATURES_REPLY (DPID=%v, NumBufs=%v, NumTables=%v)", v.DPID, v.NumBuffers, v.NumTables)

	if r.device.isValid() {
		logger.Debug("ignoring an additional FEATURES_REPLY")
		return nil
	}

	dpid := v.DPID
	// Already connected device?
	if _, ok := r.controller.registry.Session(dpid); ok {
		if cancel, ok := r.controller.cancellers.pop(dpid); ok {
			// Disconnect the previous session. Some switches make a new
			// connection after a momentary physical disconnection even if
			// the previous one is still alive, and they do not work properly
			// until the previous session is gone.
			cancel()
		}
		return errDuplicatedDPID
	}

	r.device.setFeatures(Features{
		DPID:       dpid,
		NumBuffers: v.NumBuffers,
		NumTables:  v.NumTables,
	})
	r.controller.cancellers.push(dpid, r.device, r.canceller)
	r.controller.registry.Register(dpid, r.device)
	logger.Infof("connected device (DPID=%v, remote=%v)", dpid, r.device.RemoteAddr())
	r.controller.listener.Handle(SessionEstablished{SwitchID: dpid, Session: r.device})

	return nil
}

func (r *session) OnPortDescReply(f *openflow.Factory, w transceiver.Writer, v *openflow.PortDescReply) error {
	logger.Debugf("PORT_DESC_REPLY is received (# of ports=%v)", len(v.Ports))

	for _, p := range v.Ports {
		if !p.IsPhysical() {
			continue
		}
		r.device.setPort(p)
		logger.Debugf("PortNum=%v, AdminUp=%v, LinkUp=%v", p.Number, !p.IsPortDown(), !p.IsLinkDown())
		if isUp(p) {
			r.sendLLDP(p)
		}
	}

	return nil
}

func isUp(p openflow.Port) bool {
	return !p.IsPortDown() && !p.IsLinkDown()
}

// sendLLDP emits our LLDP out of the port p to discover the neighbor switch.
func (r *session) sendLLDP(p openflow.Port) {
	if !r.device.isValid() {
		return
	}

	frame, err := protocol.NewLLDP(r.device.ID(), p.Number, p.MAC)
	if err != nil {
		logger.Errorf("failed to make a LLDP frame: %v", err)
		return
	}
	if err := r.device.emitLLDP(frame, p); err != nil {
		logger.Errorf("failed to send LLDP to %v:%v: %v", r.device.ID(), p.Number, err)
	}
}

func (r *session) OnPortStatus(f *openflow.Factory, w transceiver.Writer, v *openflow.PortStatus) error {
	p := v.Port
	logger.Debugf("PORT_STATUS (device=%v, reason=%v, port=%v, AdminUp=%v, LinkUp=%v)", r.device.ID(), v.Reason, p.Number, !p.IsPortDown(), !p.IsLinkDown())

	if !p.IsPhysical() {
		return nil
	}
	if v.Reason == openflow.OFPPR_DELETE {
		r.device.removePort(p.Number)
		return nil
	}
	r.device.setPort(p)
	if isUp(p) {
		r.sendLLDP(p)
	}

	return nil
}

func (r *session) OnPortStatsReply(f *openflow.Factory, w transceiver.Writer, v *openflow.PortStatsReply) error {
	if !r.device.isValid() {
		return nil
	}
	logger.Debugf("PORT_STATS_REPLY is received (device=%v, # of ports=%v)", r.device.ID(), len(v.Stats))

	ports := make([]PortStats, 0, len(v.Stats))
	for _, s := range v.Stats {
		if s.PortNumber > openflow.OFPP_MAX {
			continue
		}
		ports = append(ports, PortStats{
			Port:      s.PortNumber,
			RxPackets: s.RxPackets,
			TxPackets: s.TxPackets,
			RxBytes:   s.RxBytes,
			TxBytes:   s.TxBytes,
			RxDropped: s.RxDropped,
			TxDropped: s.TxDropped,
			RxErrors:  s.RxErrors,
			TxErrors:  s.TxErrors,
		})
	}
	r.controller.listener.Handle(PortStatsReply{SwitchID: r.device.ID(), Ports: ports})

	return nil
}

func (r *session) OnPacketIn(f *openflow.Factory, w transceiver.Writer, v *openflow.PacketIn) error {
	if !r.device.isValid() {
		logger.Debug("ignoring PACKET_IN from a device whose DPID is unknown")
		return nil
	}
	logger.Debugf("PACKET_IN is received (device=%v, inport=%v, reason=%v, tableID=%v, cookie=%v)",
		r.device.ID(), v.InPort, v.Reason, v.TableID, v.Cookie)

	frame, err := protocol.DecodeFrame(v.Data)
	if err != nil {
		// The processor drops the event without a frame.
		logger.Debugf("failed to decode the frame of PACKET_IN: %v", err)
		frame = nil
	}
	if frame != nil && frame.IsLLDP() && r.handleLLDP(v.InPort, frame) {
		return nil
	}

	r.controller.listener.Handle(PacketIn{
		SwitchID: r.device.ID(),
		InPort:   v.InPort,
		BufferID: v.BufferID,
		Frame:    frame,
		Data:     v.Data,
	})

	return nil
}

// handleLLDP returns true if the frame is our LLDP. Foreign LLDP is left to
// the event listener.
func (r *session) handleLLDP(inPort uint32, frame *protocol.Frame) bool {
	dpid, port, err := protocol.ParseLLDP(frame.Payload)
	if err != nil {
		if err != protocol.ErrForeignLLDP {
			logger.Warningf("ignoring an invalid LLDP packet: %v", err)
		}
		return false
	}
	logger.Debugf("LLDP from %v:%v is received on %v:%v", dpid, port, r.device.ID(), inPort)

	r.controller.listener.Handle(LinkDiscovered{
		From:     dpid,
		FromPort: port,
		To:       r.device.ID(),
		ToPort:   inPort,
	})

	return true
}

func (r *session) Run(ctx context.Context) {
	sessionCtx, canceller := context.WithCancel(ctx)
	defer canceller()
	// This canceller will be used to disconnect this session when it is necessary.
	r.canceller = canceller

	go r.runDeviceExplorer(sessionCtx)
	logger.Debugf("started a new device explorer")

	if err := r.transceiver.Run(sessionCtx); err != nil {
		logger.Errorf("openflow transceiver is unexpectedly closed: %v", err)
	}
	logger.Infof("disconnected device (DPID=%v, remote=%v)", r.device.ID(), r.device.RemoteAddr())

	canceller()
	r.device.Close()
	if !r.device.isValid() {
		return
	}
	id := r.device.ID()
	r.controller.cancellers.remove(id, r.device)
	if r.controller.registry.Unregister(id, r.device) {
		r.controller.listener.Handle(SessionLost{SwitchID: id, Session: r.device})
	}
}

func (r *session) runDeviceExplorer(ctx context.Context) {
	ticker := time.NewTicker(r.controller.explorerInterval)
	defer ticker.Stop()

	// Note that the ticker delivers the first tick after the interval.
	for {
		select {
		case <-ctx.Done():
			logger.Debugf("terminating the device explorer: deviceID=%v", r.device.ID())
			return
		case <-ticker.C:
		}

		if !r.device.isValid() {
			logger.Debug("skip to execute the device explorer due to incomplete device status")
			continue
		}
		logger.Debugf("executing the device explorer: deviceID=%v", r.device.ID())

		// The port description reply sends LLDP out of every live port.
		if err := r.device.requestPortDesc(); err != nil {
			logger.Errorf("failed to send a port description request: %v", err)
			continue
		}
	}
}
