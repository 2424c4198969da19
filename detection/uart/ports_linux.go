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

//go:build linux

package uart

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// getSerialPorts returns available serial ports on Linux. The
// /dev/serial/by-id tree is walked first because its link names embed
// the USB manufacturer and product strings; plain device globs cover
// UARTs without a by-id entry, such as the Raspberry Pi GPIO header a
// KISS modem hat hangs off.
func getSerialPorts(_ context.Context) ([]serialPort, error) {
	seen := make(map[string]bool)
	ports := byIDPorts(seen)

	globs := []string{"/dev/ttyUSB*", "/dev/ttyACM*", "/dev/ttyAMA*", "/dev/serial0"}
	for _, pattern := range globs {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		for _, path := range matches {
			if seen[path] {
				continue
			}
			seen[path] = true

			port := serialPort{Path: path, Name: filepath.Base(path)}
			fillUSBDescriptors(&port)
			ports = append(ports, port)
		}
	}

	return ports, nil
}

// byIDPorts walks /dev/serial/by-id. Each link name describes the
// attached hardware, e.g.
// "usb-Mobilinkd_LLC_Mobilinkd_TNC3_0001-if00".
func byIDPorts(seen map[string]bool) []serialPort {
	matches, err := filepath.Glob("/dev/serial/by-id/*")
	if err != nil {
		return nil
	}

	var ports []serialPort
	for _, link := range matches {
		resolved, err := filepath.EvalSymlinks(link)
		if err != nil {
			continue
		}
		if seen[resolved] {
			continue
		}
		seen[resolved] = true

		port := serialPort{
			Path: resolved,
			Name: filepath.Base(link),
		}
		fillUSBDescriptors(&port)
		ports = append(ports, port)
	}
	return ports
}

// fillUSBDescriptors reads USB descriptors for a tty from sysfs. The
// idVendor file lives on the USB device node a few levels above the
// tty's device link, so resolve the link and walk upward until the
// descriptors appear.
func fillUSBDescriptors(port *serialPort) {
	dir, err := filepath.EvalSymlinks(
		filepath.Join("/sys/class/tty", filepath.Base(port.Path), "device"))
	if err != nil {
		return
	}

	for depth := 0; depth < 4; depth++ {
		vid := sysfsAttr(dir, "idVendor")
		pid := sysfsAttr(dir, "idProduct")
		if vid != "" && pid != "" {
			port.VIDPID = strings.ToUpper(vid + ":" + pid)
			port.Manufacturer = sysfsAttr(dir, "manufacturer")
			port.Product = sysfsAttr(dir, "product")
			port.SerialNumber = sysfsAttr(dir, "serial")
			return
		}
		dir = filepath.Dir(dir)
	}
}

// sysfsAttr reads a single sysfs attribute, returning "" when absent.
func sysfsAttr(dir, name string) string {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
