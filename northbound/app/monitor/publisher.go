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

package monitor

import (
	"encoding/json"

	"github.com/superkkt/almond/stats"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
)

const (
	DefaultSubject = "almond.stats"
	// Header that identifies the controller process publishing the summary.
	InstanceHeader = "Almond-Instance"
)

// Publisher exports the statistics summaries.
type Publisher interface {
	Publish(stats.Summary) error
	Close() error
}

// NATSPublisher publishes every summary as a JSON message.
type NATSPublisher struct {
	conn     *nats.Conn
	subject  string
	instance string
}

func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	if subject == "" {
		subject = DefaultSubject
	}

	conn, err := nats.Connect(url,
		nats.Name("almond"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warningf("disconnected from the NATS server: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Infof("reconnected to the NATS server: %v", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to the NATS server %v", url)
	}
	instance := uuid.NewString()
	logger.Infof("connected to the NATS server: url=%v, subject=%v, instance=%v", url, subject, instance)

	return &NATSPublisher{conn: conn, subject: subject, instance: instance}, nil
}

func (r *NATSPublisher) Publish(s stats.Summary) error {
	msg, err := r.message(s)
	if err != nil {
		return err
	}

	return r.conn.PublishMsg(msg)
}

func (r *NATSPublisher) message(s stats.Summary) (*nats.Msg, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling the summary")
	}

	msg := nats.NewMsg(r.subject)
	msg.Header.Set(InstanceHeader, r.instance)
	msg.Data = data

	return msg, nil
}

// Close flushes the pending messages and closes the connection.
func (r *NATSPublisher) Close() error {
	return r.conn.Drain()
}
