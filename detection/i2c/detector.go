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

// Package i2c detects KISS TNC boards on I2C buses, such as TNC-Pi
// hats.
package i2c

import (
	"context"
	"runtime"

	"github.com/tncware/go-kiss/detection"
)

const (
	// DefaultTNCAddress is the factory I2C address of TNC-Pi style
	// boards. It sits below the usual 0x08 floor, which keeps the
	// boards clear of common sensor addresses.
	DefaultTNCAddress = 0x03

	// maxProbeAddress bounds the address window scanned in Safe mode.
	// TNC-Pi boards are configurable within the low address range.
	maxProbeAddress = 0x0F

	// fend is the KISS frame delimiter. TNC-Pi boards fill reads with
	// it while they have nothing to send.
	fend = 0xC0
)

// probeResult classifies what a read-only probe found.
type probeResult int

const (
	probeUnknown probeResult = iota
	probeConfirmed
	probeDenied
)

// classifyProbeResponse decides whether read bytes look like a KISS
// stream. The first byte rules: an idle board emits only FEND, and a
// board with traffic queued still aligns reads on a delimiter.
func classifyProbeResponse(response []byte) probeResult {
	if len(response) == 0 {
		return probeUnknown
	}
	if response[0] == fend {
		return probeConfirmed
	}
	return probeDenied
}

// detector implements the Detector interface for I2C devices.
type detector struct{}

// New creates a new I2C detector.
func New() detection.Detector {
	return &detector{}
}

// init registers the detector on package import.
func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type.
func (*detector) Transport() string {
	return "i2c"
}

// Detect searches for KISS TNC boards on I2C buses.
func (*detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	// Userspace I2C buses are a Linux facility.
	switch runtime.GOOS {
	case "linux":
		return detectLinux(ctx, opts)
	default:
		return nil, detection.ErrUnsupportedPlatform
	}
}
