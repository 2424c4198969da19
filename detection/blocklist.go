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

package detection

import (
	"path/filepath"
	"strings"
)

// DefaultBlocklist returns USB IDs of devices that present a serial
// port but are known not to be TNCs. Debug probes in particular can
// wedge their target when an unknown program opens their console.
// Format: VID:PID in hexadecimal, case-insensitive.
func DefaultBlocklist() []string {
	return []string{
		"0483:374B", // ST-Link V2-1 virtual COM port
		"0483:374E", // ST-Link V3 virtual COM port
		"1366:0105", // SEGGER J-Link CDC
		"1D50:6018", // Black Magic Probe
		"1546:01A7", // u-blox 7 GPS receiver
		"1546:01A8", // u-blox 8 GPS receiver
	}
}

// IsBlocked checks whether a USB device is in the blocklist.
func IsBlocked(vidpid string, blocklist []string) bool {
	vidpid = strings.ToUpper(strings.TrimSpace(vidpid))
	if vidpid == "" {
		return false
	}

	for _, blocked := range blocklist {
		if vidpid == strings.ToUpper(strings.TrimSpace(blocked)) {
			return true
		}
	}
	return false
}

// ParseVIDPID extracts a "VVVV:PPPP" pair from the USB descriptor
// formats the platform enumerators produce:
//
//	"0403:6015"
//	"VID:0403 PID:6015"
//	"USB\VID_0403&PID_6015" (Windows hardware ID)
//	"vendor=0403 product=6015"
//
// Returns "" when no pair can be found.
func ParseVIDPID(descriptor string) string {
	descriptor = strings.ToUpper(strings.TrimSpace(descriptor))

	vid := hexAfter(descriptor, "VID:", "VID_", "VID=", "VENDOR=")
	pid := hexAfter(descriptor, "PID:", "PID_", "PID=", "PRODUCT=")
	if vid != "" && pid != "" {
		return vid + ":" + pid
	}

	// Bare VID:PID.
	if parts := strings.Split(descriptor, ":"); len(parts) == 2 &&
		isHex(parts[0]) && isHex(parts[1]) {
		return descriptor
	}

	return ""
}

// hexAfter returns the first run of hex digits following the first
// marker present in s.
func hexAfter(s string, markers ...string) string {
	for _, marker := range markers {
		idx := strings.Index(s, marker)
		if idx < 0 {
			continue
		}
		if hex := leadingHex(s[idx+len(marker):]); hex != "" {
			return hex
		}
	}
	return ""
}

// leadingHex extracts the first run of hex digits from s, skipping any
// separator characters before it. Expects uppercase input.
func leadingHex(s string) string {
	var result strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || (r >= 'A' && r <= 'F') {
			_, _ = result.WriteRune(r)
			continue
		}
		if result.Len() > 0 {
			break
		}
	}
	return result.String()
}

// isHex checks whether s consists only of hexadecimal digits.
func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'A' || r > 'F') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

// IsPathIgnored checks whether a device path appears in the ignore
// list. Paths are cleaned and compared case-insensitively so that
// "COM2" matches "com2" and "/dev/../dev/ttyUSB0" matches
// "/dev/ttyUSB0".
func IsPathIgnored(devicePath string, ignorePaths []string) bool {
	if devicePath == "" || len(ignorePaths) == 0 {
		return false
	}

	normalizedDevice := normalizedPath(devicePath)

	for _, ignorePath := range ignorePaths {
		if ignorePath == "" {
			continue
		}
		if devicePath == ignorePath || normalizedDevice == normalizedPath(ignorePath) {
			return true
		}
	}
	return false
}

// normalizedPath cleans a device path for comparison.
func normalizedPath(path string) string {
	return strings.ToLower(filepath.Clean(path))
}
