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

package i2c

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
	"unsafe"

	"github.com/tncware/go-kiss/detection"
)

const (
	// i2cSlave is the ioctl selecting the peer address on an open bus.
	i2cSlave = 0x0703

	// i2cFuncs is the ioctl reporting adapter functionality.
	i2cFuncs = 0x0705

	// i2cFuncI2C flags plain I2C support.
	i2cFuncI2C = 0x00000001
)

// busInfo describes one usable I2C bus.
type busInfo struct {
	Path   string
	Number int
}

// detectLinux searches Linux I2C buses for KISS TNC boards.
func detectLinux(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	buses, err := findBuses()
	if err != nil {
		return nil, err
	}
	if len(buses) == 0 {
		return nil, detection.ErrNoDevicesFound
	}

	var devices []detection.DeviceInfo

	for _, bus := range buses {
		select {
		case <-ctx.Done():
			return devices, detection.ErrDetectionTimeout
		default:
		}

		devices = append(devices, busCandidates(ctx, bus, opts)...)
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}

	return devices, nil
}

// busCandidates ranks TNC candidates on one bus. Passive mode only
// considers the factory address; Safe mode probes the configurable
// address window with read-only transfers.
func busCandidates(ctx context.Context, bus busInfo, opts *detection.Options) []detection.DeviceInfo {
	addresses := []uint8{DefaultTNCAddress}
	if opts.Mode != detection.Passive {
		addresses = addresses[:0]
		for addr := uint8(DefaultTNCAddress); addr <= maxProbeAddress; addr++ {
			addresses = append(addresses, addr)
		}
	}

	devices := make([]detection.DeviceInfo, 0, len(addresses))
	for _, addr := range addresses {
		if device, ok := addressCandidate(ctx, bus, addr, opts); ok {
			devices = append(devices, device)
		}
	}
	return devices
}

// addressCandidate builds the candidate for a single bus address,
// probing it when the mode allows.
func addressCandidate(ctx context.Context, bus busInfo, addr uint8, opts *detection.Options) (
	detection.DeviceInfo, bool,
) {
	devicePath := fmt.Sprintf("%s:0x%02X", bus.Path, addr)

	if detection.IsPathIgnored(devicePath, opts.IgnorePaths) {
		return detection.DeviceInfo{}, false
	}

	device := detection.DeviceInfo{
		Transport: "i2c",
		Path:      devicePath,
		Name:      fmt.Sprintf("I2C TNC at %s address 0x%02X", bus.Path, addr),
		Metadata: map[string]string{
			"bus":     bus.Path,
			"address": fmt.Sprintf("0x%02X", addr),
		},
	}
	if addr == DefaultTNCAddress {
		device.Confidence = detection.Medium
	} else {
		device.Confidence = detection.Low
	}

	if opts.Mode == detection.Passive {
		return device, addr == DefaultTNCAddress
	}

	probeCtx, cancel := context.WithTimeout(ctx, time.Second)
	result := probeKISSStream(probeCtx, bus.Path, addr)
	cancel()

	switch result {
	case probeConfirmed:
		device.Confidence = detection.High
		device.Metadata["probe"] = "fend idle fill"
		return device, true
	case probeDenied:
		// Something answered, but not with a KISS stream.
		return detection.DeviceInfo{}, false
	default:
		// No answer. Keep the factory address as an unconfirmed
		// candidate; a busy TNC can NAK while another program holds
		// it.
		return device, addr == DefaultTNCAddress
	}
}

// probeKISSStream reads a few bytes from the address without writing
// anything. Writing is never safe here: a KISS TNC treats written
// bytes as traffic and keys the transmitter. An idle TNC-Pi answers
// reads with FEND fill, which is the fingerprint this looks for.
func probeKISSStream(ctx context.Context, busPath string, addr uint8) probeResult {
	fd, err := syscall.Open(busPath, syscall.O_RDWR, 0)
	if err != nil {
		return probeUnknown
	}
	defer func() { _ = syscall.Close(fd) }()

	if err := ioctl(fd, i2cSlave, uintptr(addr)); err != nil {
		return probeUnknown
	}

	select {
	case <-ctx.Done():
		return probeUnknown
	default:
	}

	response := make([]byte, 4)
	n, err := syscall.Read(fd, response)
	if err != nil || n == 0 {
		return probeUnknown
	}

	return classifyProbeResponse(response[:n])
}

// findBuses discovers usable I2C buses.
func findBuses() ([]busInfo, error) {
	matches, err := filepath.Glob("/dev/i2c-*")
	if err != nil {
		return nil, fmt.Errorf("failed to scan for I2C buses: %w", err)
	}

	buses := make([]busInfo, 0, len(matches))

	for _, path := range matches {
		var busNum int
		if _, err := fmt.Sscanf(filepath.Base(path), "i2c-%d", &busNum); err != nil {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}

		fd, err := syscall.Open(path, syscall.O_RDWR, 0)
		if err != nil {
			continue
		}

		var funcs uint32
		// #nosec G103 -- unsafe pointer required for the ioctl call
		funcsErr := ioctl(fd, i2cFuncs, uintptr(unsafe.Pointer(&funcs)))
		_ = syscall.Close(fd)

		if funcsErr != nil || funcs&i2cFuncI2C == 0 {
			continue
		}

		buses = append(buses, busInfo{Path: path, Number: busNum})
	}

	return buses, nil
}

// ioctl performs an ioctl system call.
func ioctl(fd int, request uint, arg uintptr) error {
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, uintptr(fd), uintptr(request), arg)
	if errno != 0 {
		return errno
	}
	return nil
}
