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

// Package uart detects serial-attached KISS TNCs.
package uart

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/tncware/go-kiss/detection"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// verifyBaudRate is the rate used for the Safe-mode open check. The
// port is reconfigured by whoever actually connects, so any legal rate
// works.
const verifyBaudRate = 1200

// serialPort is one enumerated port before ranking. The platform
// scanners in ports_*.go and the cross-platform enumerator both
// produce it.
type serialPort struct {
	Path         string
	Name         string
	VIDPID       string
	Manufacturer string
	Product      string
	SerialNumber string
}

// tncNameMarkers are device or product name substrings that identify
// TNC hardware outright.
var tncNameMarkers = []string{"mobilinkd", "ninotnc", "n9600", "tnc"}

// knownBridges maps USB serial bridge chips commonly found on TNC
// boards to the adapter name reported in device metadata.
var knownBridges = map[string]string{
	"0403:6001": "FTDI FT232R",
	"0403:6015": "FTDI FT231X",
	"10C4:EA60": "Silicon Labs CP210x",
	"1A86:7523": "WCH CH340",
	"04D8:00DD": "Microchip MCP2200",
	"2E8A:000A": "Raspberry Pi Pico CDC",
}

// detector implements the Detector interface for serial devices.
type detector struct {
	openCheck func(path string) bool
}

// New creates a new serial port detector.
func New() detection.Detector {
	return &detector{openCheck: verifyPort}
}

// init registers the detector on package import.
func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type.
func (*detector) Transport() string {
	return "serial"
}

// Detect enumerates serial ports and ranks them as TNC candidates.
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	return rankPorts(ctx, d.listPorts(ctx), opts, d.openCheck)
}

// rankPorts filters and ranks enumerated ports.
func rankPorts(
	ctx context.Context,
	ports []serialPort,
	opts *detection.Options,
	openCheck func(path string) bool,
) ([]detection.DeviceInfo, error) {
	blocklist := opts.EffectiveBlocklist()

	devices := make([]detection.DeviceInfo, 0, len(ports))

	for _, port := range ports {
		select {
		case <-ctx.Done():
			return devices, detection.ErrDetectionTimeout
		default:
		}

		if detection.IsPathIgnored(port.Path, opts.IgnorePaths) {
			continue
		}
		if detection.IsBlocked(port.VIDPID, blocklist) {
			continue
		}

		device := newDeviceInfo(port)

		// Safe mode confirms promising candidates are present and not
		// held by another program. Low-confidence ports are left
		// unopened; poking every motherboard UART can hang for
		// seconds, and they rank last regardless.
		if opts.Mode != detection.Passive && device.Confidence >= detection.Medium {
			if !openCheck(port.Path) {
				continue
			}
		}

		devices = append(devices, device)
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}

	return devices, nil
}

// listPorts merges the platform scanner's ports with the
// cross-platform enumerator's. The platform scan comes first because
// its names carry more signal; the enumerator fills in USB descriptors
// and ports the scan missed.
func (d *detector) listPorts(ctx context.Context) []serialPort {
	ports, err := getSerialPorts(ctx)
	if err != nil {
		ports = nil
	}
	return mergePorts(ports, enumeratedPorts())
}

// enumeratedPorts lists ports via go.bug.st's enumerator.
func enumeratedPorts() []serialPort {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil
	}

	ports := make([]serialPort, 0, len(details))
	for _, detail := range details {
		port := serialPort{
			Path: detail.Name,
			Name: filepath.Base(detail.Name),
		}
		if detail.IsUSB {
			port.VIDPID = strings.ToUpper(detail.VID + ":" + detail.PID)
			port.Product = detail.Product
			port.SerialNumber = detail.SerialNumber
		}
		ports = append(ports, port)
	}
	return ports
}

// mergePorts combines two port lists, keeping primary's ordering and
// filling gaps in its entries from extra.
func mergePorts(primary, extra []serialPort) []serialPort {
	index := make(map[string]int, len(primary))
	for i, port := range primary {
		index[portKey(port.Path)] = i
	}

	merged := primary
	for _, port := range extra {
		if i, ok := index[portKey(port.Path)]; ok {
			fillPortGaps(&merged[i], port)
			continue
		}
		index[portKey(port.Path)] = len(merged)
		merged = append(merged, port)
	}
	return merged
}

// portKey normalizes a path for duplicate matching across sources.
func portKey(path string) string {
	return strings.ToLower(filepath.Clean(path))
}

// fillPortGaps copies fields src knows and dst does not.
func fillPortGaps(dst *serialPort, src serialPort) {
	if dst.Name == "" {
		dst.Name = src.Name
	}
	if dst.VIDPID == "" {
		dst.VIDPID = src.VIDPID
	}
	if dst.Manufacturer == "" {
		dst.Manufacturer = src.Manufacturer
	}
	if dst.Product == "" {
		dst.Product = src.Product
	}
	if dst.SerialNumber == "" {
		dst.SerialNumber = src.SerialNumber
	}
}

// scorePort ranks a port as a TNC candidate. The adapter name is
// non-empty when the port sits behind a known USB bridge chip.
func scorePort(port serialPort) (confidence detection.Confidence, adapter string) {
	haystack := strings.ToLower(port.Name + " " + port.Product + " " + port.Manufacturer)
	for _, marker := range tncNameMarkers {
		if strings.Contains(haystack, marker) {
			return detection.High, knownBridges[strings.ToUpper(port.VIDPID)]
		}
	}

	if adapter, ok := knownBridges[strings.ToUpper(port.VIDPID)]; ok {
		return detection.Medium, adapter
	}

	return detection.Low, ""
}

// newDeviceInfo converts an enumerated port into a ranked candidate.
func newDeviceInfo(port serialPort) detection.DeviceInfo {
	confidence, adapter := scorePort(port)

	metadata := make(map[string]string)
	if adapter != "" {
		metadata["adapter"] = adapter
	}
	if port.Manufacturer != "" {
		metadata["manufacturer"] = port.Manufacturer
	}
	if port.Product != "" {
		metadata["product"] = port.Product
	}
	if port.SerialNumber != "" {
		metadata["serial_number"] = port.SerialNumber
	}

	name := port.Name
	if name == "" {
		name = filepath.Base(port.Path)
	}

	return detection.DeviceInfo{
		Transport:  "serial",
		Path:       port.Path,
		Name:       name,
		VIDPID:     strings.ToUpper(port.VIDPID),
		Metadata:   metadata,
		Confidence: confidence,
	}
}

// verifyPort opens the port briefly to confirm it exists and is free.
// Nothing is written; note that opening alone can pulse DTR, which
// resets some microcontroller TNCs.
func verifyPort(path string) bool {
	port, err := serial.Open(path, &serial.Mode{
		BaudRate: verifyBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return false
	}
	_ = port.Close()
	return true
}
