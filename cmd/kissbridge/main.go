// go-kiss
// Copyright (c) 2026 The TNCware Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-kiss.
//
// go-kiss is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-kiss is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-kiss; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Command kissbridge serves one KISS TNC to many network clients. It
// fills the role kissnetd plays in the ax25-tools world: several
// applications share a single radio, each connecting to the bridge as
// if it were a network KISS TNC.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	kiss "github.com/tncware/go-kiss"
	"github.com/tncware/go-kiss/transport/serial"
)

func main() {
	if run() != 0 {
		os.Exit(1)
	}
}

func run() int {
	configPath := flag.String("config", "", "Path to TOML config file")
	listenFlag := flag.String("listen", "", "TCP listen address (overrides config)")
	deviceFlag := flag.String("device", "", "TNC device path (overrides config)")
	baudFlag := flag.Int("baud", serial.DefaultBaudRate, "Baud rate (overrides config)")
	portFlag := flag.Int("port", 0, "TNC port (overrides config)")
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *debugFlag {
		logrus.SetLevel(logrus.DebugLevel)
		kiss.SetDebugEnabled(true)
	}

	cfg, err := loadBridgeConfig(*configPath)
	if err != nil {
		logrus.WithError(err).Error("configuration failed")
		return 1
	}

	// Explicit flags win over the config file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			cfg.ListenAddr = *listenFlag
		case "device":
			cfg.Device = *deviceFlag
		case "baud":
			cfg.BaudRate = *baudFlag
		case "port":
			cfg.TNCPort = *portFlag
		}
	})

	if err := cfg.validate(); err != nil {
		logrus.WithError(err).Error("configuration failed")
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logrus.Info("shutting down")
		cancel()
	}()

	if err := newBridge(cfg).run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logrus.WithError(err).Error("bridge failed")
		return 1
	}
	return 0
}
