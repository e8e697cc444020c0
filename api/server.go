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

// Package api provides the REST server shared by the north-bound APIs.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ant0ine/go-json-rest/rest"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var (
	logger = logging.MustGetLogger("api")
)

type Server struct {
	Port uint16
	TLS  struct {
		Cert string // Path for a TLS certification file.
		Key  string // Path for a TLS private key file.
	}
}

// Handler returns the HTTP handler that serves routes.
func (r *Server) Handler(routes ...*rest.Route) (http.Handler, error) {
	api := rest.NewApi()
	api.Use(&rest.RecoverMiddleware{EnableResponseStackTrace: false})
	// Middleware to set the CORS header.
	api.Use(rest.MiddlewareSimple(func(handler rest.HandlerFunc) rest.HandlerFunc {
		return func(writer rest.ResponseWriter, request *rest.Request) {
			writer.Header().Set("Access-Control-Allow-Origin", "*")
			handler(writer, request)
		}
	}))
	router, err := rest.MakeRouter(routes...)
	if err != nil {
		return nil, errors.Wrap(err, "making the REST router")
	}
	api.SetApp(router)

	return api.MakeHandler(), nil
}

// Serve listens on all interfaces until ctx is canceled.
func (r *Server) Serve(ctx context.Context, routes ...*rest.Route) error {
	if r.Port == 0 {
		return errors.New("invalid REST API port")
	}
	handler, err := r.Handler(routes...)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%v", r.Port),
		Handler: handler,
	}
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			server.Close()
		case <-done:
		}
	}()

	logger.Infof("serving the REST API on %v (TLS=%v)", server.Addr, r.TLS.Cert != "" && r.TLS.Key != "")
	if r.TLS.Cert != "" && r.TLS.Key != "" {
		err = server.ListenAndServeTLS(r.TLS.Cert, r.TLS.Key)
	} else {
		err = server.ListenAndServe()
	}
	if err == http.ErrServerClosed {
		return nil
	}

	return err
}
