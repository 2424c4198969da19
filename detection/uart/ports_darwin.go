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

//go:build darwin

package uart

import (
	"context"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	calloutDeviceRe = regexp.MustCompile(`"IOCalloutDevice"\s*=\s*"([^"]+)"`)
	usbVendorRe     = regexp.MustCompile(`"USB Vendor Name"\s*=\s*"([^"]+)"`)
	usbProductRe    = regexp.MustCompile(`"USB Product Name"\s*=\s*"([^"]+)"`)
	usbSerialRe     = regexp.MustCompile(`"USB Serial Number"\s*=\s*"([^"]+)"`)
)

// getSerialPorts returns available serial ports on macOS. The ioreg
// serial client listing is tried first; when it fails or finds
// nothing, the /dev/cu.* and /dev/tty.* device files are globbed
// directly. USB descriptors mostly come from the enumerator merge, as
// the serial client subtree rarely carries them itself.
func getSerialPorts(ctx context.Context) ([]serialPort, error) {
	cmd := exec.CommandContext(ctx, "ioreg", "-r", "-c", "IOSerialBSDClient", "-l")
	output, err := cmd.Output()
	if err != nil {
		return globSerialPorts()
	}

	var ports []serialPort

	// Each "+-o" node in the tree output is one registry entry.
	for _, node := range strings.Split(string(output), "+-o ") {
		if !strings.Contains(node, "IOSerialBSDClient") {
			continue
		}

		match := calloutDeviceRe.FindStringSubmatch(node)
		if len(match) < 2 {
			continue
		}

		port := serialPort{
			Path: match[1],
			Name: filepath.Base(match[1]),
		}
		if !includeDarwinDevice(port.Name) {
			continue
		}

		if m := usbVendorRe.FindStringSubmatch(node); len(m) >= 2 {
			port.Manufacturer = m[1]
		}
		if m := usbProductRe.FindStringSubmatch(node); len(m) >= 2 {
			port.Product = m[1]
		}
		if m := usbSerialRe.FindStringSubmatch(node); len(m) >= 2 {
			port.SerialNumber = m[1]
		}

		ports = append(ports, port)
	}

	if len(ports) == 0 {
		return globSerialPorts()
	}

	return ports, nil
}

// globSerialPorts lists serial device files without metadata. Callout
// (cu.*) devices are preferred because they open without waiting for
// carrier detect; a tty.* device is only added when it has no cu.*
// sibling.
func globSerialPorts() ([]serialPort, error) {
	var ports []serialPort

	cuMatches, err := filepath.Glob("/dev/cu.*")
	if err != nil {
		return nil, err
	}
	for _, path := range cuMatches {
		name := filepath.Base(path)
		if includeDarwinDevice(name) {
			ports = append(ports, serialPort{Path: path, Name: name})
		}
	}

	ttyMatches, err := filepath.Glob("/dev/tty.*")
	if err != nil {
		return ports, nil
	}
	for _, path := range ttyMatches {
		name := filepath.Base(path)
		if !includeDarwinDevice(name) {
			continue
		}
		if hasCalloutSibling(path, ports) {
			continue
		}
		ports = append(ports, serialPort{Path: path, Name: name})
	}

	return ports, nil
}

// hasCalloutSibling checks whether a tty.* path has a matching cu.*
// entry already listed.
func hasCalloutSibling(ttyPath string, ports []serialPort) bool {
	cuPath := strings.Replace(ttyPath, "/dev/tty.", "/dev/cu.", 1)
	for _, p := range ports {
		if p.Path == cuPath {
			return true
		}
	}
	return false
}

// includeDarwinDevice filters out devices that cannot be TNCs.
func includeDarwinDevice(deviceName string) bool {
	lowerName := strings.ToLower(deviceName)

	// Bluetooth pseudo-ports and system consoles are never TNCs.
	if strings.Contains(lowerName, "bluetooth") {
		return false
	}
	for _, pattern := range []string{"console", "debug", "system", "kernel"} {
		if strings.Contains(lowerName, pattern) {
			return false
		}
	}

	return true
}
