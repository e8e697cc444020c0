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

// Package log provides the go-logging backends used by the almond daemon.
package log

import (
	"fmt"
	"io"
	slog "log/syslog"
	"runtime"
	"strings"

	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

const (
	stderrFormat = `%{color}%{time:15:04:05.000} %{level:.4s} %{shortpkg}.%{shortfunc}%{color:reset}: %{message}`
	syslogFormat = `%{level}: %{shortpkg}.%{longfunc}: %{message}`
)

// Syslog is a go-logging backend writing to the local syslog daemon. Each line
// carries the goroutine ID of the caller.
type Syslog struct {
	writer *slog.Writer
}

func NewSyslog(prefix string) (*Syslog, error) {
	w, err := slog.New(slog.LOG_DAEMON|slog.LOG_INFO, prefix)
	if err != nil {
		return nil, err
	}

	return &Syslog{writer: w}, nil
}

func (r *Syslog) Log(level logging.Level, calldepth int, record *logging.Record) error {
	line := fmt.Sprintf("%v (TID=%v)", record.Formatted(calldepth+1), goRoutineID())
	switch level {
	case logging.CRITICAL:
		return r.writer.Crit(line)
	case logging.ERROR:
		return r.writer.Err(line)
	case logging.WARNING:
		return r.writer.Warning(line)
	case logging.NOTICE:
		return r.writer.Notice(line)
	case logging.INFO:
		return r.writer.Info(line)
	case logging.DEBUG:
		return r.writer.Debug(line)
	default:
		panic("unexpected log level")
	}
}

func goRoutineID() string {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return strings.Fields(strings.TrimPrefix(string(buf[:n]), "goroutine "))[0]
}

// Init installs the backend selected by driver ("stderr" or "syslog") as the
// process-wide go-logging backend and returns its leveled wrapper so that the
// caller can change the level at runtime.
func Init(driver string, stderr io.Writer, prefix string, level logging.Level) (logging.LeveledBackend, error) {
	var backend logging.Backend
	switch strings.ToLower(driver) {
	case "", "stderr":
		b := logging.NewLogBackend(stderr, "", 0)
		backend = logging.NewBackendFormatter(b, logging.MustStringFormatter(stderrFormat))
	case "syslog":
		b, err := NewSyslog(prefix)
		if err != nil {
			return nil, errors.Wrap(err, "failed to open syslog")
		}
		backend = logging.NewBackendFormatter(b, logging.MustStringFormatter(syslogFormat))
	default:
		return nil, errors.Errorf("unknown log driver: %v", driver)
	}

	leveled := logging.AddModuleLevel(backend)
	leveled.SetLevel(level, "")
	logging.SetBackend(leveled)

	return leveled, nil
}

// ParseLevel converts a level name such as "debug" or "warning".
func ParseLevel(name string) (logging.Level, error) {
	if name == "" {
		return logging.INFO, nil
	}

	level, err := logging.LogLevel(strings.ToUpper(name))
	if err != nil {
		return 0, errors.Wrapf(err, "invalid log level: %v", name)
	}

	return level, nil
}
