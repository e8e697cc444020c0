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

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/superkkt/almond/api/core"
	"github.com/superkkt/almond/graph"
	"github.com/superkkt/almond/log"
	"github.com/superkkt/almond/network"
	"github.com/superkkt/almond/northbound"
	"github.com/superkkt/almond/northbound/app/l2switch"
	"github.com/superkkt/almond/northbound/app/monitor"
	"github.com/superkkt/almond/stats"

	"github.com/fsnotify/fsnotify"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	programName    = "almond"
	programVersion = "0.1.0"
)

var (
	logger            = logging.MustGetLogger("main")
	loggerLeveled     logging.LeveledBackend
	showVersion       = pflag.BoolP("version", "v", false, "Show program version and exit")
	defaultConfigFile = pflag.StringP("config", "c", fmt.Sprintf("/usr/local/etc/%v.yaml", programName), "absolute path of the configuration file")
	_                 = pflag.String("log-level", "", "log level overriding log.level of the configuration file")
	_                 = pflag.Int("port", 0, "OpenFlow listen port overriding default.port of the configuration file")
)

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU())
	pflag.Parse()
	if *showVersion {
		fmt.Printf("Version: %v\n", programVersion)
		os.Exit(0)
	}

	initConfig()
	if err := initLog(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init log: %v\n", err)
		os.Exit(1)
	}
	if err := validateConfig(); err != nil {
		logger.Fatalf("failed to validate the configuration: %v", err)
	}

	topology, err := initTopology()
	if err != nil {
		logger.Fatalf("failed to init the topology: %v", err)
	}
	registry := network.NewRegistry(topology)
	counters := stats.NewCounters()

	l2, err := createL2Switch(registry, topology, counters)
	if err != nil {
		logger.Fatalf("failed to create the L2 switch application: %v", err)
	}
	publisher, err := createPublisher()
	if err != nil {
		logger.Fatalf("failed to create the statistics publisher: %v", err)
	}
	m := monitor.New(registry, topology, counters, publisher)
	m.SetInterval(viper.GetDuration("monitor.interval"))
	m.SetLinkExpiration(viper.GetDuration("monitor.link_expiration"))

	manager := northbound.NewManager(l2, m)
	controller := network.NewController(registry, manager)
	controller.SetExplorerInterval(viper.GetDuration("default.explorer_interval"))

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.Run(ctx)
	}()
	initAPIServer(ctx, registry, m, l2, topology)
	initMetricsServer(ctx, m)
	initSignalHandler(controller, manager, cancel)

	if err := listen(ctx, viper.GetInt("default.port"), controller); err != nil {
		cancel()
		wg.Wait()
		logger.Fatalf("failed to run the OpenFlow listener: %v", err)
	}

	wg.Wait()
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Errorf("failed to close the statistics publisher: %v", err)
		}
	}
	logger.Info("bye")
}

func setDefaults() {
	viper.SetDefault("default.port", 6653)
	viper.SetDefault("default.explorer_interval", "3m")
	viper.SetDefault("log.driver", "stderr")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("monitor.interval", monitor.DefaultInterval)
	viper.SetDefault("monitor.link_expiration", 0)
	viper.SetDefault("topology.links_file", "")
	viper.SetDefault("rest.port", 0)
	viper.SetDefault("rest.tls", false)
	viper.SetDefault("metrics.port", 0)
	viper.SetDefault("nats.url", "")
	viper.SetDefault("nats.subject", monitor.DefaultSubject)
	viper.SetDefault("flow.journal_size", l2switch.DefaultJournalSize)
}

// The flags take precedence over the configuration file only if they are set.
func bindFlags() {
	if err := viper.BindPFlag("log.level", pflag.Lookup("log-level")); err != nil {
		panic(err)
	}
	if err := viper.BindPFlag("default.port", pflag.Lookup("port")); err != nil {
		panic(err)
	}
}

func initConfig() {
	setDefaults()
	bindFlags()
	viper.SetConfigFile(*defaultConfigFile)
	// Read the config file.
	if err := viper.ReadInConfig(); err != nil {
		// Every key has a default value.
		if !os.IsNotExist(errors.Cause(err)) {
			fmt.Fprintf(os.Stderr, "failed to read the config file: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "config file %v does not exist, using the default configuration\n", *defaultConfigFile)
		return
	}
	// Watching and re-reading config file whenever it changes.
	viper.OnConfigChange(func(e fsnotify.Event) {
		// Ignore the other operations to avoid reading an empty config.
		if !e.Has(fsnotify.Write) {
			return
		}
		if loggerLeveled == nil {
			return
		}

		level, err := log.ParseLevel(viper.GetString("log.level"))
		if err != nil {
			logger.Errorf("failed to reload the log level: %v", err)
			return
		}
		// Set log level for all modules
		loggerLeveled.SetLevel(level, "")
		logger.Infof("log level is changed to %v", level)
	})
	viper.WatchConfig()
}

func validateConfig() error {
	if port := viper.GetInt("default.port"); port <= 0 || port > 0xFFFF {
		return errors.New("invalid default.port")
	}
	if port := viper.GetInt("rest.port"); port < 0 || port > 0xFFFF {
		return errors.New("invalid rest.port")
	}
	if port := viper.GetInt("metrics.port"); port < 0 || port > 0xFFFF {
		return errors.New("invalid metrics.port")
	}
	if viper.GetBool("rest.tls") && (len(viper.GetString("rest.cert_file")) == 0 || len(viper.GetString("rest.key_file")) == 0) {
		return errors.New("rest.cert_file and rest.key_file are required for rest.tls")
	}
	if viper.GetDuration("monitor.interval") <= 0 {
		return errors.New("invalid monitor.interval")
	}
	if viper.GetDuration("monitor.link_expiration") < 0 {
		return errors.New("invalid monitor.link_expiration")
	}
	if viper.GetInt("flow.journal_size") <= 0 {
		return errors.New("invalid flow.journal_size")
	}

	return nil
}

func initLog() error {
	level, err := log.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		return err
	}
	backend, err := log.Init(viper.GetString("log.driver"), os.Stderr, programName, level)
	if err != nil {
		return err
	}
	loggerLeveled = backend

	return nil
}

func initTopology() (*graph.Graph, error) {
	topology := graph.New()

	path := viper.GetString("topology.links_file")
	if path == "" {
		return topology, nil
	}
	links, err := graph.LoadLinks(path)
	if err != nil {
		return nil, err
	}
	topology.Seed(links)
	logger.Infof("loaded %v static links from %v", len(links), path)

	return topology, nil
}

func createL2Switch(registry *network.Registry, topology *graph.Graph, counters *stats.Counters) (*l2switch.L2Switch, error) {
	installer, err := l2switch.NewInstaller(viper.GetInt("flow.journal_size"))
	if err != nil {
		return nil, err
	}
	macs := l2switch.NewMacTable()
	planner := l2switch.NewPlanner(macs, topology, counters)

	return l2switch.New(registry, macs, planner, installer, counters), nil
}

func createPublisher() (monitor.Publisher, error) {
	url := viper.GetString("nats.url")
	if url == "" {
		return nil, nil
	}

	publisher, err := monitor.NewNATSPublisher(url, viper.GetString("nats.subject"))
	if err != nil {
		return nil, err
	}

	return publisher, nil
}

func initAPIServer(ctx context.Context, registry *network.Registry, m *monitor.Monitor, l2 *l2switch.L2Switch, topology *graph.Graph) {
	port := viper.GetInt("rest.port")
	if port == 0 {
		logger.Info("REST API is disabled")
		return
	}

	srv := &core.API{
		Switches: registry,
		Stats:    m,
		Hosts:    l2.MacTable(),
		Topology: topology,
		Flows:    l2.Installer(),
	}
	srv.Port = uint16(port)
	if viper.GetBool("rest.tls") {
		srv.TLS.Cert = viper.GetString("rest.cert_file")
		srv.TLS.Key = viper.GetString("rest.key_file")
	}

	go func() {
		if err := srv.Serve(ctx); err != nil {
			logger.Fatalf("failed to run the API server: %v", err)
		}
	}()
}

func initMetricsServer(ctx context.Context, m *monitor.Monitor) {
	port := viper.GetInt("metrics.port")
	if port == 0 {
		logger.Info("Prometheus metrics are disabled")
		return
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Collector(),
	)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:    fmt.Sprintf(":%v", port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		server.Close()
	}()
	go func() {
		logger.Infof("serving the Prometheus metrics on %v", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("failed to run the metrics server: %v", err)
		}
	}()
}

func initSignalHandler(controller *network.Controller, manager *northbound.Manager, cancel context.CancelFunc) {
	go func() {
		c := make(chan os.Signal, 5)
		signal.Notify(c, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

		for s := range c {
			switch s {
			case syscall.SIGTERM, syscall.SIGINT:
				// Graceful shutdown
				logger.Warning("shutting down...")
				cancel()
				go func() {
					// Timeout for cancelation
					time.Sleep(5 * time.Second)
					os.Exit(0)
				}()
			case syscall.SIGHUP:
				fmt.Println("* Controller status:")
				fmt.Println(controller.String())
				fmt.Printf("\n* Manager status:\n")
				fmt.Println(manager.String())
			}
		}
	}()
}

// listen accepts the switch connections until ctx is canceled.
func listen(ctx context.Context, port int, controller *network.Controller) error {
	type KeepAliver interface {
		SetKeepAlive(keepalive bool) error
		SetKeepAlivePeriod(d time.Duration) error
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%v", port))
	if err != nil {
		return errors.Wrapf(err, "listening on %v port", port)
	}
	logger.Infof("listening for OpenFlow switches on %v", listener.Addr())
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("terminating the main listener loop...")
				return nil
			}
			logger.Errorf("failed to accept a new connection: %v", err)
			continue
		}
		logger.Infof("new device is connected from %v", conn.RemoteAddr())

		if v, ok := conn.(KeepAliver); ok {
			if err := v.SetKeepAlive(true); err == nil {
				// Makes a broken connection will be disconnected within 45 seconds.
				v.SetKeepAlivePeriod(time.Duration(5) * time.Second)
			} else {
				logger.Errorf("failed to enable socket keepalive: %v", err)
			}
		}
		controller.AddConnection(ctx, conn)
	}
}
