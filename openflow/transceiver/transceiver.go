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

package transceiver

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/superkkt/almond/openflow"

	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var (
	logger = logging.MustGetLogger("transceiver")
)

const (
	// Allowed idle time before we send an echo request to a switch.
	maxIdleTime = 10 * time.Second
	// I/O timeouts (These timeouts should be less than maxIdleTime).
	readTimeout  = 1 * time.Second
	writeTimeout = readTimeout * 2
	// Number of outgoing messages that can wait for the writer goroutine.
	outboundQueueSize = 1024
)

var (
	ErrClosed    = errors.New("closed transceiver")
	ErrQueueFull = errors.New("outbound queue full")
)

type Writer interface {
	// Write queues msg to be sent to the switch. It never blocks.
	Write(msg openflow.Outgoing) error
}

type WriteCloser interface {
	Writer
	Close() error
}

type Handler interface {
	OnHello(*openflow.Factory, Writer, *openflow.Hello) error
	OnError(*openflow.Factory, Writer, *openflow.Error) error
	OnFeaturesReply(*openflow.Factory, Writer, *openflow.FeaturesReply) error
	OnPortDescReply(*openflow.Factory, Writer, *openflow.PortDescReply) error
	OnPortStatsReply(*openflow.Factory, Writer, *openflow.PortStatsReply) error
	OnPortStatus(*openflow.Factory, Writer, *openflow.PortStatus) error
	OnPacketIn(*openflow.Factory, Writer, *openflow.PacketIn) error
}

type Transceiver struct {
	stream   *Stream
	observer Handler
	factory  *openflow.Factory

	mutex       sync.Mutex
	pingCounter uint

	outbound  chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewTransceiver(stream *Stream, handler Handler) *Transceiver {
	if stream == nil {
		panic("stream is nil")
	}
	if handler == nil {
		panic("handler is nil")
	}

	return &Transceiver{
		stream:   stream,
		observer: handler,
		factory:  openflow.NewFactory(),
		outbound: make(chan []byte, outboundQueueSize),
		done:     make(chan struct{}),
	}
}

func (r *Transceiver) Factory() *openflow.Factory {
	return r.factory
}

func isTimeout(err error) bool {
	type Timeout interface {
		Timeout() bool
	}

	if v, ok := errors.Cause(err).(Timeout); ok {
		return v.Timeout()
	}

	return false
}

func isTemporaryErr(err error) bool {
	e, ok := errors.Cause(err).(interface {
		Temporary() bool
	})
	return ok && e.Temporary()
}

func (r *Transceiver) sendEchoRequest() error {
	r.mutex.Lock()
	counter := r.pingCounter
	r.pingCounter++
	r.mutex.Unlock()

	if counter > 2 {
		return errors.New("device does not respond to our echo request")
	}

	echo := r.factory.NewEchoRequest()
	// We use current timestamp to check network latency between our controller and a switch.
	timestamp, err := time.Now().GobEncode()
	if err != nil {
		return err
	}
	echo.Data = timestamp

	if err := r.Write(echo); err != nil {
		return errors.Wrap(err, "failed to send ECHO_REQUEST message")
	}

	return nil
}

// Run reads and dispatches the incoming messages until the connection is
// closed or ctx is canceled. The stream is closed when Run returns.
func (r *Transceiver) Run(ctx context.Context) error {
	defer logger.Info("transceiver is closed")
	defer r.Close()

	r.stream.SetReadTimeout(readTimeout)
	r.stream.SetWriteTimeout(writeTimeout)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go r.runWriter(ctx, cancel)
	reader := r.runReader(ctx)

	if err := r.negotiate(ctx, reader); err != nil {
		return errors.Wrap(err, "failed to negotiate the protocol version")
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("context done")
			return nil
		case packet, ok := <-reader:
			if !ok {
				logger.Info("the reader channel is closed")
				return nil
			}
			if err := r.dispatch(packet); err != nil {
				if !isTemporaryErr(err) {
					return err
				}
				// Ignore the temporary error. Just log the error and keep go on.
				logger.Errorf("failed to dispatch the packet: %v", err)
			}
		}
	}
}

// negotiate waits for the first HELLO. Switches announcing a version below 1.3
// are refused; the others are spoken to in 1.3 because our HELLO announces it.
func (r *Transceiver) negotiate(ctx context.Context, reader <-chan []byte) error {
	select {
	case <-ctx.Done():
		return errors.New("context done")
	case <-time.After(30 * time.Second):
		return errors.New("inactive for too long")
	case packet, ok := <-reader:
		if !ok {
			return errors.New("the reader channel is closed")
		}
		// The first message should be HELLO.
		if packet[1] != openflow.OFPT_HELLO {
			return errors.New("missing HELLO message")
		}
		if packet[0] < openflow.OF13_VERSION {
			return errors.Wrapf(openflow.ErrUnsupportedVersion, "version=%#x", packet[0])
		}
		logger.Infof("negotiated to openflow version 1.3: remote=%v", r.stream.RemoteAddr())

		hello := openflow.NewHello(binary.BigEndian.Uint32(packet[4:8]))
		return r.observer.OnHello(r.factory, r, hello)
	}
}

func (r *Transceiver) runReader(ctx context.Context) <-chan []byte {
	// Buffered channel
	c := make(chan []byte, 4096)
	go func() {
		// The channel c will be closed when this goroutine returns in order to notice the connection has been closed.
		defer close(c)
		defer logger.Info("transceiver reader is closed")

		lastActivated := time.Now()
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			packet, err := r.readPacket()
			if err != nil {
				if !isTimeout(err) {
					logger.Errorf("failed to read the next packet: %v", err)
					return
				}
				// Timeout occurrs. Send a ping request if necessary.
				if time.Since(lastActivated) > maxIdleTime {
					if err := r.sendEchoRequest(); err != nil {
						logger.Errorf("failed to send an echo request: %v", err)
						return
					}
					lastActivated = time.Now()
				}
				continue
			}
			lastActivated = time.Now()

			ok, err := r.handleEcho(packet)
			if err != nil {
				logger.Errorf("failed to handle the echo request or response: %v", err)
				return
			}
			if ok {
				// Do not forward the echo request and response
				// packets because this reader handles them.
				continue
			}

			select {
			case c <- packet:
			default:
				// Drop the packet if we cannot immediately carry it.
				logger.Error("transceiver buffer full: drop the incoming packet!")
			}
		}
	}()

	return c
}

func (r *Transceiver) runWriter(ctx context.Context, cancel context.CancelFunc) {
	defer logger.Info("transceiver writer is closed")

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case packet := <-r.outbound:
			if _, err := r.stream.Write(packet); err != nil {
				logger.Errorf("failed to write a packet to %v: %v", r.stream.RemoteAddr(), err)
				// Abort the reader and the dispatcher as well.
				cancel()
				return
			}
		}
	}
}

func (r *Transceiver) readPacket() ([]byte, error) {
	header, err := r.stream.Peek(8) // peek ofp_header
	if err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint16(header[2:4])
	if length < 8 {
		return nil, openflow.ErrInvalidPacketLength
	}
	packet, err := r.stream.ReadN(int(length))
	if err != nil {
		return nil, err
	}

	return packet, nil
}

func (r *Transceiver) Write(msg openflow.Outgoing) error {
	packet, err := msg.MarshalBinary()
	if err != nil {
		return err
	}

	select {
	case <-r.done:
		return ErrClosed
	default:
	}

	select {
	case r.outbound <- packet:
		return nil
	default:
		return ErrQueueFull
	}
}

func (r *Transceiver) handleEcho(packet []byte) (handled bool, err error) {
	switch packet[1] {
	case openflow.OFPT_ECHO_REQUEST:
		return true, r.handleEchoRequest(packet)
	case openflow.OFPT_ECHO_REPLY:
		return true, r.handleEchoReply(packet)
	default:
		return false, nil
	}
}

func (r *Transceiver) handleEchoRequest(packet []byte) error {
	msg := new(openflow.Echo)
	if err := msg.UnmarshalBinary(packet); err != nil {
		return err
	}
	logger.Debug("received an ECHO_REQUEST packet")

	// Copy transaction ID and data from the incoming echo request message
	reply := r.factory.NewEchoReply(msg.TransactionID())
	reply.Data = msg.Data

	if err := r.Write(reply); err != nil {
		return errors.Wrap(err, "failed to send ECHO_REPLY message")
	}

	return nil
}

func (r *Transceiver) handleEchoReply(packet []byte) error {
	msg := new(openflow.Echo)
	if err := msg.UnmarshalBinary(packet); err != nil {
		return err
	}
	logger.Debug("received an ECHO_REPLY packet")

	r.mutex.Lock()
	r.pingCounter = 0
	r.mutex.Unlock()

	if len(msg.Data) != 8 {
		// Some switches send unexpected echo reply data. Ignore it to
		// avoid disconnecting them.
		logger.Debug("unexpected ECHO_REPLY data")
		return nil
	}
	timestamp := time.Time{}
	if err := timestamp.GobDecode(msg.Data); err != nil {
		logger.Debug("unexpected timestamp data in the ECHO_REPLY packet")
		return nil
	}
	logger.Debugf("transceiver latency: %v", time.Since(timestamp))

	return nil
}

func (r *Transceiver) dispatch(packet []byte) error {
	msg, err := openflow.Parse(packet)
	if err != nil {
		if errors.Cause(err) == openflow.ErrUnsupportedMessage {
			logger.Debugf("ignore an unsupported message: type=%v", packet[1])
			return nil
		}
		// A malformed message does not break the session.
		logger.Warningf("failed to parse an incoming message: type=%v, err=%v", packet[1], err)
		return nil
	}

	switch v := msg.(type) {
	case *openflow.Hello:
		return r.observer.OnHello(r.factory, r, v)
	case *openflow.Error:
		return r.observer.OnError(r.factory, r, v)
	case *openflow.FeaturesReply:
		return r.observer.OnFeaturesReply(r.factory, r, v)
	case *openflow.PortDescReply:
		return r.observer.OnPortDescReply(r.factory, r, v)
	case *openflow.PortStatsReply:
		return r.observer.OnPortStatsReply(r.factory, r, v)
	case *openflow.PortStatus:
		return r.observer.OnPortStatus(r.factory, r, v)
	case *openflow.PacketIn:
		return r.observer.OnPacketIn(r.factory, r, v)
	default:
		logger.Debugf("ignore an unhandled message: type=%v", packet[1])
		return nil
	}
}

// Close closes the underlying stream. Subsequent writes return ErrClosed.
func (r *Transceiver) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.done)
		err = r.stream.Close()
	})

	return err
}
