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

// Command kisstool bundles small KISS TNC utilities: device discovery,
// link monitoring, bulk file transmission and parameter setup.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	kiss "github.com/tncware/go-kiss"
	"github.com/tncware/go-kiss/detection"
	// Import all detectors to register them
	_ "github.com/tncware/go-kiss/detection/i2c"
	_ "github.com/tncware/go-kiss/detection/uart"
	"github.com/tncware/go-kiss/transport/i2c"
	"github.com/tncware/go-kiss/transport/serial"
	"github.com/tncware/go-kiss/transport/tcp"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	deviceFlag     string
	tcpFlag        string
	baudFlag       int
	portFlag       int
	hexFlag        bool
	safeFlag       bool
	timeoutFlag    time.Duration
	transportsFlag string
	chunkFlag      int
	gapFlag        time.Duration
	txDelayFlag    time.Duration
	persistFlag    int
	slotTimeFlag   time.Duration
	txTailFlag     time.Duration
	fullDuplexFlag bool
	hardwareFlag   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "kisstool",
		Short: "Utilities for KISS TNCs",
		Long: `kisstool talks to KISS TNCs over serial ports, I2C buses and
network KISS servers. It can discover candidate devices, monitor the
frame stream, push a file out as data frames and configure the timing
parameters of the air interface.`,
	}

	// Ports command
	portsCmd := &cobra.Command{
		Use:   "ports",
		Short: "List candidate TNC devices",
		Long: `Scan the machine for likely KISS TNC devices.

The default scan is passive: it reads port metadata but never opens a
device. With --safe each plausible candidate is also opened briefly
(serial) or read from (I2C) to weed out dead entries.`,
		RunE: runPorts,
	}
	portsCmd.Flags().BoolVar(&safeFlag, "safe", false, "Open candidates to verify them")
	portsCmd.Flags().DurationVar(&timeoutFlag, "timeout", 5*time.Second, "Detection time limit")
	portsCmd.Flags().StringVar(&transportsFlag, "transports", "",
		"Comma-separated transports to scan (e.g. serial,i2c; empty scans all)")

	// Monitor command
	monitorCmd := &cobra.Command{
		Use:   "monitor",
		Short: "Print every received frame",
		Long: `Attach to a TNC and print each received KISS frame with a
timestamp. On exit a per-port traffic summary is printed.`,
		RunE: runMonitor,
	}
	monitorCmd.Flags().StringVarP(&deviceFlag, "device", "d", "", "Device path (auto-detect if not specified)")
	monitorCmd.Flags().StringVar(&tcpFlag, "tcp", "", "Network KISS address (host:port)")
	monitorCmd.Flags().IntVarP(&baudFlag, "baud", "b", serial.DefaultBaudRate, "Baud rate")
	monitorCmd.Flags().BoolVar(&hexFlag, "hex", false, "Print payloads as hex")

	// Send command
	sendCmd := &cobra.Command{
		Use:   "send <file>",
		Short: "Transmit a file as data frames",
		Long: `Split a file into fixed-size chunks and transmit each chunk as
one KISS data frame. A gap between frames keeps slow radios from being
flooded.`,
		Args: cobra.ExactArgs(1),
		RunE: runSend,
	}
	sendCmd.Flags().StringVarP(&deviceFlag, "device", "d", "", "Device path (auto-detect if not specified)")
	sendCmd.Flags().StringVar(&tcpFlag, "tcp", "", "Network KISS address (host:port)")
	sendCmd.Flags().IntVarP(&baudFlag, "baud", "b", serial.DefaultBaudRate, "Baud rate")
	sendCmd.Flags().IntVarP(&portFlag, "port", "p", 0, "TNC port to transmit on (0-15)")
	sendCmd.Flags().IntVar(&chunkFlag, "chunk", 256, "Payload bytes per frame")
	sendCmd.Flags().DurationVar(&gapFlag, "gap", 0, "Pause between frames")

	// Params command
	paramsCmd := &cobra.Command{
		Use:   "params",
		Short: "Set TNC timing parameters",
		Long: `Send parameter frames to the TNC. Only parameters given as flags
are sent; the rest keep their current values. The TNC is left in KISS
mode so the next application finds it configured.`,
		RunE: runParams,
	}
	paramsCmd.Flags().StringVarP(&deviceFlag, "device", "d", "", "Device path (auto-detect if not specified)")
	paramsCmd.Flags().StringVar(&tcpFlag, "tcp", "", "Network KISS address (host:port)")
	paramsCmd.Flags().IntVarP(&baudFlag, "baud", "b", serial.DefaultBaudRate, "Baud rate")
	paramsCmd.Flags().IntVarP(&portFlag, "port", "p", 0, "TNC port to address (0-15)")
	paramsCmd.Flags().DurationVar(&txDelayFlag, "txdelay", 0, "Keyup delay before data (10ms steps)")
	paramsCmd.Flags().IntVar(&persistFlag, "persistence", 0, "CSMA persistence (0-255)")
	paramsCmd.Flags().DurationVar(&slotTimeFlag, "slottime", 0, "CSMA slot interval (10ms steps)")
	paramsCmd.Flags().DurationVar(&txTailFlag, "txtail", 0, "Keydown time after data (10ms steps)")
	paramsCmd.Flags().BoolVar(&fullDuplexFlag, "fullduplex", false, "Full duplex operation")
	paramsCmd.Flags().StringVar(&hardwareFlag, "hardware", "", "Hardware-specific parameter string")

	// Version command
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("kisstool %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}

	rootCmd.AddCommand(portsCmd, monitorCmd, sendCmd, paramsCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runPorts(_ *cobra.Command, _ []string) error {
	opts := detection.DefaultOptions()
	opts.Timeout = timeoutFlag
	if safeFlag {
		opts.Mode = detection.Safe
	}
	if transportsFlag != "" {
		for _, t := range strings.Split(transportsFlag, ",") {
			opts.Transports = append(opts.Transports, strings.TrimSpace(t))
		}
	}

	fmt.Println("Scanning for KISS TNCs...")
	devices, err := detection.DetectAll(&opts)
	if err != nil {
		if errors.Is(err, detection.ErrNoDevicesFound) {
			fmt.Println("No TNC devices found")
			return nil
		}
		return fmt.Errorf("detection failed: %w", err)
	}

	fmt.Printf("Found %d candidate(s):\n\n", len(devices))
	for i, d := range devices {
		fmt.Printf("Device %d:\n", i+1)
		printDeviceInfo(&d)
		fmt.Println()
	}
	return nil
}

func printDeviceInfo(d *detection.DeviceInfo) {
	fmt.Printf("  Path:       %s\n", d.Path)
	fmt.Printf("  Transport:  %s\n", d.Transport)
	fmt.Printf("  Confidence: %s\n", d.Confidence)
	if d.Name != "" {
		fmt.Printf("  Name:       %s\n", d.Name)
	}
	if d.VIDPID != "" {
		fmt.Printf("  VID:PID:    %s\n", d.VIDPID)
	}
	if adapter := d.Metadata["adapter"]; adapter != "" {
		fmt.Printf("  Adapter:    %s\n", adapter)
	}
}

// portCounter accumulates traffic totals for one TNC port.
type portCounter struct {
	frames int
	bytes  int
}

func runMonitor(_ *cobra.Command, _ []string) error {
	tnc, err := openTNC()
	if err != nil {
		return err
	}
	defer tnc.Close()

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Println("Monitoring (Ctrl-C to quit)...")

	counters := make(map[int]*portCounter)
	err = tnc.Listen(ctx, func(frame kiss.Frame) {
		c := counters[frame.Port()]
		if c == nil {
			c = &portCounter{}
			counters[frame.Port()] = c
		}
		c.frames++
		c.bytes += len(frame.Data)
		printMonitorLine(frame)
	})

	printSummary(counters)

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func printMonitorLine(frame kiss.Frame) {
	stamp := time.Now().Format("15:04:05.000")
	if frame.Kind() != kiss.CmdData {
		fmt.Printf("%s [%d] %s % X\n", stamp, frame.Port(), frame.Kind(), frame.Data)
		return
	}
	if hexFlag {
		fmt.Printf("%s [%d] %d bytes: % X\n", stamp, frame.Port(), len(frame.Data), frame.Data)
		return
	}
	fmt.Printf("%s [%d] %d bytes: %s\n", stamp, frame.Port(), len(frame.Data), printable(frame.Data))
}

func printSummary(counters map[int]*portCounter) {
	if len(counters) == 0 {
		fmt.Println("\nNo frames received")
		return
	}

	ports := make([]int, 0, len(counters))
	for port := range counters {
		ports = append(ports, port)
	}
	sort.Ints(ports)

	fmt.Println("\nPort  Frames     Bytes")
	for _, port := range ports {
		c := counters[port]
		fmt.Printf("%4d  %6d  %8d\n", port, c.frames, c.bytes)
	}
}

func runSend(_ *cobra.Command, args []string) error {
	payload, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if chunkFlag <= 0 {
		return fmt.Errorf("invalid chunk size: %d", chunkFlag)
	}

	totalFrames := (len(payload) + chunkFlag - 1) / chunkFlag
	fmt.Printf("File: %s (%d bytes, %d frames of up to %d bytes)\n",
		args[0], len(payload), totalFrames, chunkFlag)

	tnc, err := openTNC()
	if err != nil {
		return err
	}
	defer tnc.Close()

	ctx, cancel := signalContext()
	defer cancel()

	bar := progressbar.NewOptions(totalFrames,
		progressbar.OptionSetDescription("Sending"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(100),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	for i := 0; i < totalFrames; i++ {
		start := i * chunkFlag
		end := start + chunkFlag
		if end > len(payload) {
			end = len(payload)
		}

		if err := tnc.SendContext(ctx, payload[start:end]); err != nil {
			return fmt.Errorf("frame %d of %d: %w", i+1, totalFrames, err)
		}
		bar.Set(i + 1)

		if gapFlag > 0 && i+1 < totalFrames {
			select {
			case <-time.After(gapFlag):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	bar.Finish()
	fmt.Printf("\nSent %d frames (%d bytes)\n", totalFrames, len(payload))
	return nil
}

func runParams(cmd *cobra.Command, _ []string) error {
	// Leave the TNC in KISS mode on close; the point of this command is
	// to configure it for the next application.
	tnc, err := openTNC(kiss.WithExitKISS(false))
	if err != nil {
		return err
	}
	defer tnc.Close()

	applied := 0
	if cmd.Flags().Changed("txdelay") {
		if err := tnc.SetTXDelay(txDelayFlag); err != nil {
			return fmt.Errorf("txdelay: %w", err)
		}
		fmt.Printf("  TXDELAY:     %s\n", txDelayFlag)
		applied++
	}
	if cmd.Flags().Changed("persistence") {
		if persistFlag < 0 || persistFlag > 255 {
			return fmt.Errorf("persistence out of range: %d", persistFlag)
		}
		if err := tnc.SetPersistence(byte(persistFlag)); err != nil {
			return fmt.Errorf("persistence: %w", err)
		}
		fmt.Printf("  PERSISTENCE: %d\n", persistFlag)
		applied++
	}
	if cmd.Flags().Changed("slottime") {
		if err := tnc.SetSlotTime(slotTimeFlag); err != nil {
			return fmt.Errorf("slottime: %w", err)
		}
		fmt.Printf("  SLOTTIME:    %s\n", slotTimeFlag)
		applied++
	}
	if cmd.Flags().Changed("txtail") {
		if err := tnc.SetTXTail(txTailFlag); err != nil {
			return fmt.Errorf("txtail: %w", err)
		}
		fmt.Printf("  TXTAIL:      %s\n", txTailFlag)
		applied++
	}
	if cmd.Flags().Changed("fullduplex") {
		if err := tnc.SetFullDuplex(fullDuplexFlag); err != nil {
			return fmt.Errorf("fullduplex: %w", err)
		}
		fmt.Printf("  FULLDUPLEX:  %t\n", fullDuplexFlag)
		applied++
	}
	if cmd.Flags().Changed("hardware") {
		if err := tnc.SetHardwareString(hardwareFlag); err != nil {
			return fmt.Errorf("hardware: %w", err)
		}
		fmt.Printf("  HARDWARE:    %s\n", hardwareFlag)
		applied++
	}

	if applied == 0 {
		return errors.New("no parameters given; see kisstool params --help")
	}
	fmt.Printf("Applied %d parameter(s) to port %d\n", applied, portFlag)
	return nil
}

// openTNC connects using the shared device flags. Extra options are
// passed through to the session.
func openTNC(tncOpts ...kiss.Option) (*kiss.TNC, error) {
	var connectOpts []kiss.ConnectOption

	path := deviceFlag
	switch {
	case tcpFlag != "":
		path = tcpFlag
		connectOpts = append(connectOpts, kiss.WithTransportFactory(newTCPTransport))
		fmt.Printf("Connecting to network KISS at %s...\n", path)
	case path == "":
		connectOpts = append(connectOpts,
			kiss.WithAutoDetection(),
			kiss.WithTransportFromDeviceFactory(newTransportFromDevice(baudFlag)))
		fmt.Println("Auto-detecting KISS TNCs...")
	default:
		connectOpts = append(connectOpts,
			kiss.WithTransportFactory(newTransportFactory(baudFlag)))
		fmt.Printf("Opening device: %s\n", path)
	}

	connectOpts = append(connectOpts, kiss.WithTNCPort(portFlag))
	if len(tncOpts) > 0 {
		connectOpts = append(connectOpts, kiss.WithTNCOptions(tncOpts...))
	}

	tnc, err := kiss.Connect(path, connectOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return tnc, nil
}

// newTransportFactory returns a factory that creates a transport from a
// device path, carrying the configured baud rate to serial ports.
func newTransportFactory(baudRate int) kiss.TransportFactory {
	return func(path string) (kiss.Transport, error) {
		if path == "" {
			return nil, errors.New("empty device path")
		}
		if strings.Contains(strings.ToLower(path), "i2c") {
			return newI2CTransport(path)
		}
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
	bus := path
	var opts []i2c.Option
	if idx := strings.LastIndex(path, ":"); idx >= 0 {
		addr, err := strconv.ParseUint(path[idx+1:], 0, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid I2C address in %q: %w", path, err)
		}
		bus = path[:idx]
		opts = append(opts, i2c.WithAddress(uint16(addr)))
	}
	transport, err := i2c.New(bus, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create I2C transport: %w", err)
	}
	return transport, nil
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

// signalContext returns a context cancelled by SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	return ctx, cancel
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
