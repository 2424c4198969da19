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

// Command kisscat is a line-oriented KISS terminal: received frames are
// printed to stdout, and each stdin line is transmitted as one data
// frame. It speaks to serial TNCs, I2C TNCs and network KISS servers.
package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	kiss "github.com/tncware/go-kiss"
	"github.com/tncware/go-kiss/detection"
	// Import all detectors to register them
	_ "github.com/tncware/go-kiss/detection/i2c"
	_ "github.com/tncware/go-kiss/detection/uart"
	"github.com/tncware/go-kiss/transport/i2c"
	"github.com/tncware/go-kiss/transport/serial"
	"github.com/tncware/go-kiss/transport/tcp"
)

type config struct {
	devicePath *string
	tcpAddr    *string
	baudRate   *int
	tncPort    *int
	hexMode    *bool
	debug      *bool
}

func parseFlags() *config {
	cfg := &config{
		devicePath: flag.String("device", "",
			"Serial or I2C device path (e.g., /dev/ttyUSB0, COM3 or /dev/i2c-1:0x03). Leave empty for auto-detection."),
		tcpAddr: flag.String("tcp", "",
			"Network KISS address (e.g., localhost:8001). Takes precedence over -device."),
		baudRate: flag.Int("baud", serial.DefaultBaudRate, "Baud rate for serial devices"),
		tncPort:  flag.Int("port", 0, "TNC port to transmit on (0-15)"),
		hexMode:  flag.Bool("hex", false, "Print frames as hex and read stdin lines as hex"),
		debug:    flag.Bool("debug", false, "Enable debug output"),
	}
	flag.Parse()

	// Enable debug output if --debug flag is set
	if *cfg.debug {
		kiss.SetDebugEnabled(true)
	}

	return cfg
}

// newTransportFactory returns a factory that creates a transport from a
// device path, carrying the configured baud rate to serial ports.
func newTransportFactory(baudRate int) kiss.TransportFactory {
	return func(path string) (kiss.Transport, error) {
		if path == "" {
			return nil, errors.New("empty device path")
		}

		// Check for I2C pattern
		if strings.Contains(strings.ToLower(path), "i2c") {
			return newI2CTransport(path)
		}

		// Default to serial for everything else
		transport, err := serial.New(path, serial.WithBaudRate(baudRate))
		if err != nil {
			return nil, fmt.Errorf("failed to create serial transport: %w", err)
		}
		return transport, nil
	}
}

// newI2CTransport creates an I2C transport from a bus path with an
// optional ":0xNN" TNC address suffix.
func newI2CTransport(path string) (kiss.Transport, error) {
	bus, addr, hasAddr, err := splitI2CPath(path)
	if err != nil {
		return nil, err
	}

	var opts []i2c.Option
	if hasAddr {
		opts = append(opts, i2c.WithAddress(addr))
	}
	transport, err := i2c.New(bus, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create I2C transport: %w", err)
	}
	return transport, nil
}

// splitI2CPath splits "/dev/i2c-1:0x03" into bus path and address.
// A path without an address suffix reports hasAddr false.
func splitI2CPath(path string) (bus string, addr uint16, hasAddr bool, err error) {
	idx := strings.LastIndex(path, ":")
	if idx < 0 {
		return path, 0, false, nil
	}
	parsed, err := strconv.ParseUint(path[idx+1:], 0, 16)
	if err != nil {
		return "", 0, false, fmt.Errorf("invalid I2C address in %q: %w", path, err)
	}
	return path[:idx], uint16(parsed), true, nil
}

// newTransportFromDevice returns a factory that creates a transport from
// a detected device.
func newTransportFromDevice(baudRate int) kiss.TransportFromDeviceFactory {
	return func(device detection.DeviceInfo) (kiss.Transport, error) {
		switch strings.ToLower(device.Transport) {
		case "serial":
			transport, err := serial.New(device.Path, serial.WithBaudRate(baudRate))
			if err != nil {
				return nil, fmt.Errorf("failed to create serial transport: %w", err)
			}
			return transport, nil
		case "i2c":
			return newI2CTransport(device.Path)
		default:
			return nil, fmt.Errorf("unsupported transport type: %s", device.Transport)
		}
	}
}

// newTCPTransport creates a network KISS transport from a host:port
// address. A bare host gets the conventional port 8001.
func newTCPTransport(addr string) (kiss.Transport, error) {
	transport, err := tcp.New(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to create TCP transport: %w", err)
	}
	return transport, nil
}

func buildConnectOptions(cfg *config) (string, []kiss.ConnectOption) {
	var connectOpts []kiss.ConnectOption

	path := *cfg.devicePath
	switch {
	case *cfg.tcpAddr != "":
		path = *cfg.tcpAddr
		connectOpts = append(connectOpts, kiss.WithTransportFactory(newTCPTransport))
		_, _ = fmt.Fprintf(os.Stderr, "Connecting to network KISS at %s...\n", path)
	case path == "":
		connectOpts = append(connectOpts,
			kiss.WithAutoDetection(),
			kiss.WithTransportFromDeviceFactory(newTransportFromDevice(*cfg.baudRate)))
		_, _ = fmt.Fprintln(os.Stderr, "Auto-detecting KISS TNCs...")
	default:
		connectOpts = append(connectOpts,
			kiss.WithTransportFactory(newTransportFactory(*cfg.baudRate)))
		_, _ = fmt.Fprintf(os.Stderr, "Opening device: %s\n", path)
	}

	connectOpts = append(connectOpts, kiss.WithTNCPort(*cfg.tncPort))
	return path, connectOpts
}

// sendLoop transmits each stdin line as one data frame until stdin
// closes. Receive keeps running after stdin is gone, so a piped sender
// still sees responses.
func sendLoop(tnc *kiss.TNC, hexMode bool) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		payload, err := linePayload(scanner.Text(), hexMode)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
			continue
		}
		if len(payload) == 0 {
			continue
		}
		if err := tnc.Send(payload); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "send failed: %v\n", err)
		}
	}
}

// linePayload converts one input line to frame payload bytes. Hex mode
// accepts spaced and colon-separated digit pairs.
func linePayload(line string, hexMode bool) ([]byte, error) {
	if !hexMode {
		return []byte(line), nil
	}
	cleaned := strings.NewReplacer(" ", "", "\t", "", ":", "").Replace(line)
	payload, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("invalid hex input %q: %w", line, err)
	}
	return payload, nil
}

// printFrame writes one received frame to w. Parameter frames always
// print as kind plus hex value; data frames honor the hex flag.
func printFrame(w io.Writer, frame kiss.Frame, hexMode bool) {
	if frame.Kind() != kiss.CmdData {
		_, _ = fmt.Fprintf(w, "[%d] %s % X\n", frame.Port(), frame.Kind(), frame.Data)
		return
	}
	if hexMode {
		_, _ = fmt.Fprintf(w, "[%d] % X\n", frame.Port(), frame.Data)
		return
	}
	_, _ = fmt.Fprintf(w, "[%d] %s\n", frame.Port(), printable(frame.Data))
}

// printable renders payload bytes for a terminal, replacing control and
// non-ASCII bytes with '.'.
func printable(data []byte) string {
	out := make([]byte, len(data))
	for i, b := range data {
		if b < 0x20 || b > 0x7E {
			out[i] = '.'
		} else {
			out[i] = b
		}
	}
	return string(out)
}

func main() {
	if run() != 0 {
		os.Exit(1)
	}
}

func run() int {
	cfg := parseFlags()
	path, connectOpts := buildConnectOptions(cfg)

	tnc, err := kiss.Connect(path, connectOpts...)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to connect: %v\n", err)
		return 1
	}
	defer func() { _ = tnc.Close() }()

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		_, _ = fmt.Fprint(os.Stderr, "\nClosing session...\n")
		cancel()
	}()

	go sendLoop(tnc, *cfg.hexMode)

	_, _ = fmt.Fprintf(os.Stderr, "Listening on TNC port %d (Ctrl-C to quit)...\n", *cfg.tncPort)

	err = tnc.Listen(ctx, func(frame kiss.Frame) {
		printFrame(os.Stdout, frame, *cfg.hexMode)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	return 0
}
