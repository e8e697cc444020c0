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
	"bufio"
	"io"
	"net"
	"sync"
	"time"
)

// Stream is a buffered I/O channel on top of a switch connection.
type Stream struct {
	channel io.ReadWriteCloser

	reader struct {
		mutex sync.Mutex
		// rd needs locking because Peek()'s result slice points to the
		// reader's internal buffer that subsequent reads overwrite.
		rd      *bufio.Reader
		timeout time.Duration
	}

	writer struct {
		mutex   sync.Mutex
		timeout time.Duration
	}
}

type deadline interface {
	SetReadDeadline(time.Time) error
	SetWriteDeadline(time.Time) error
}

func NewStream(channel io.ReadWriteCloser, bufSize int) *Stream {
	c := new(Stream)
	c.channel = channel
	c.reader.rd = bufio.NewReaderSize(channel, bufSize)

	return c
}

func (r *Stream) RemoteAddr() string {
	v, ok := r.channel.(interface{ RemoteAddr() net.Addr })
	if !ok {
		return "unknown"
	}

	return v.RemoteAddr().String()
}

func (r *Stream) SetReadTimeout(t time.Duration) {
	r.reader.mutex.Lock()
	defer r.reader.mutex.Unlock()

	r.reader.timeout = t
}

func (r *Stream) SetWriteTimeout(t time.Duration) {
	r.writer.mutex.Lock()
	defer r.writer.mutex.Unlock()

	r.writer.timeout = t
}

func setDeadline(channel io.ReadWriteCloser, timeout time.Duration, read bool) {
	d, ok := channel.(deadline)
	if !ok {
		return
	}

	t := time.Time{}
	if timeout > 0 {
		t = time.Now().Add(timeout)
	}
	if read {
		d.SetReadDeadline(t)
	} else {
		d.SetWriteDeadline(t)
	}
}

// Peek returns a copy of the next n bytes without advancing the reader.
func (r *Stream) Peek(n int) ([]byte, error) {
	r.reader.mutex.Lock()
	defer r.reader.mutex.Unlock()

	if n <= 0 {
		return []byte{}, nil
	}

	setDeadline(r.channel, r.reader.timeout, true)
	v, err := r.reader.rd.Peek(n)
	if err != nil {
		return nil, err
	}
	p := make([]byte, len(v))
	copy(p, v)

	return p, nil
}

// ReadN reads exactly n bytes. The data stays in the buffer if fewer than n
// bytes arrive before the read timeout.
func (r *Stream) ReadN(n int) ([]byte, error) {
	r.reader.mutex.Lock()
	defer r.reader.mutex.Unlock()

	setDeadline(r.channel, r.reader.timeout, true)
	if _, err := r.reader.rd.Peek(n); err != nil {
		return nil, err
	}

	p := make([]byte, n)
	if _, err := io.ReadFull(r.reader.rd, p); err != nil {
		return nil, err
	}

	return p, nil
}

func (r *Stream) Write(p []byte) (n int, err error) {
	r.writer.mutex.Lock()
	defer r.writer.mutex.Unlock()

	setDeadline(r.channel, r.writer.timeout, false)
	return r.channel.Write(p)
}

func (r *Stream) Close() error {
	return r.channel.Close()
}
