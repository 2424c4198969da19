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

// Package detection finds KISS TNC candidates attached to the local
// machine. Detectors for individual transports live in subpackages and
// register themselves on import:
//
//	import (
//	    "github.com/tncware/go-kiss/detection"
//	    _ "github.com/tncware/go-kiss/detection/i2c"
//	    _ "github.com/tncware/go-kiss/detection/uart"
//	)
//
// Detection never transmits. A KISS TNC treats every byte written to it
// as traffic for the radio, so there is no safe "are you a TNC?" probe
// over the data line. Candidates are ranked by Confidence instead,
// based on USB descriptors, device names and bus metadata.
package detection

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// Detection errors.
var (
	// ErrNoDevicesFound indicates no TNC candidates were detected.
	ErrNoDevicesFound = errors.New("no devices found")

	// ErrNoDetectors indicates no detector subpackage was imported.
	ErrNoDetectors = errors.New("no detectors registered")

	// ErrUnsupportedPlatform indicates the detector cannot run on this
	// operating system.
	ErrUnsupportedPlatform = errors.New("unsupported platform")

	// ErrDetectionTimeout indicates detection was cut short by the
	// context deadline.
	ErrDetectionTimeout = errors.New("detection timeout")
)

// Confidence expresses how likely a candidate is to be a KISS TNC.
type Confidence int

const (
	// Low marks a serial device with nothing beyond its existence going
	// for it.
	Low Confidence = iota

	// Medium marks a device behind a USB bridge chip commonly used by
	// TNC hardware.
	Medium

	// High marks a device whose descriptors name a known TNC product,
	// or that passed a read-only bus check.
	High
)

// String returns the confidence as a lowercase word.
func (c Confidence) String() string {
	switch c {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return "unknown"
	}
}

// Mode controls how intrusive detection is allowed to be.
type Mode int

const (
	// Passive enumerates and ranks devices without opening them.
	Passive Mode = iota

	// Safe additionally opens each candidate read-only to confirm it is
	// present and not held by another program. Nothing is ever written;
	// opening a serial port can still pulse DTR, which resets some
	// microcontroller TNCs.
	Safe
)

// DeviceInfo describes a detected TNC candidate.
type DeviceInfo struct {
	// Metadata carries transport-specific details such as manufacturer
	// strings or the I2C bus the device answered on.
	Metadata map[string]string

	// Transport names the transport the device was found on ("serial",
	// "i2c").
	Transport string

	// Path is the address a transport constructor accepts, such as
	// "/dev/ttyUSB0", "COM3" or "/dev/i2c-1:0x03".
	Path string

	// Name is a human-readable label for the device.
	Name string

	// VIDPID is the USB vendor and product ID as "VVVV:PPPP", empty for
	// devices without USB descriptors.
	VIDPID string

	// Confidence ranks the candidate.
	Confidence Confidence
}

// Options configures a detection run.
type Options struct {
	// Mode selects how intrusive detection may be. Defaults to Passive.
	Mode Mode

	// Timeout bounds the whole run. Zero means no limit beyond the
	// caller's context.
	Timeout time.Duration

	// Transports restricts the run to the named transports. Empty means
	// all registered detectors.
	Transports []string

	// Blocklist lists "VVVV:PPPP" USB IDs to skip. Nil selects
	// DefaultBlocklist; use an empty non-nil slice to disable blocking.
	Blocklist []string

	// IgnorePaths lists device paths to skip.
	IgnorePaths []string
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		Mode:    Passive,
		Timeout: 5 * time.Second,
	}
}

// EffectiveBlocklist resolves the blocklist for this run.
func (o *Options) EffectiveBlocklist() []string {
	if o.Blocklist == nil {
		return DefaultBlocklist()
	}
	return o.Blocklist
}

// Detector finds TNC candidates on one transport.
type Detector interface {
	// Transport returns the transport name the detector covers.
	Transport() string

	// Detect searches for candidates. Implementations return
	// ErrUnsupportedPlatform when the transport does not exist on this
	// operating system and ErrNoDevicesFound when the search came up
	// empty.
	Detect(ctx context.Context, opts *Options) ([]DeviceInfo, error)
}

var (
	registryMu sync.RWMutex
	registry   []Detector
)

// RegisterDetector adds a detector to the global registry. Detector
// subpackages call this from init; registering a second detector for
// the same transport replaces the first.
func RegisterDetector(d Detector) {
	registryMu.Lock()
	defer registryMu.Unlock()

	for i, existing := range registry {
		if existing.Transport() == d.Transport() {
			registry[i] = d
			return
		}
	}
	registry = append(registry, d)
}

// registeredDetectors snapshots the registry.
func registeredDetectors() []Detector {
	registryMu.RLock()
	defer registryMu.RUnlock()

	detectors := make([]Detector, len(registry))
	copy(detectors, registry)
	return detectors
}

// DetectAll searches every registered detector and returns the
// candidates sorted best first.
func DetectAll(opts *Options) ([]DeviceInfo, error) {
	return DetectAllContext(context.Background(), opts)
}

// DetectAllContext is DetectAll honoring the caller's context.
func DetectAllContext(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	if opts == nil {
		defaults := DefaultOptions()
		opts = &defaults
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	return detectAllWith(ctx, registeredDetectors(), opts)
}

// detectAllWith runs the given detectors. Split out so tests can supply
// their own set.
func detectAllWith(ctx context.Context, detectors []Detector, opts *Options) ([]DeviceInfo, error) {
	if len(detectors) == 0 {
		return nil, ErrNoDetectors
	}

	var devices []DeviceInfo

	for _, d := range detectors {
		if !transportWanted(d.Transport(), opts.Transports) {
			continue
		}

		select {
		case <-ctx.Done():
			return sortedByConfidence(devices), ErrDetectionTimeout
		default:
		}

		found, err := d.Detect(ctx, opts)
		if err != nil {
			// A transport missing on this platform, or empty, is not a
			// failure of the run.
			if errors.Is(err, ErrUnsupportedPlatform) || errors.Is(err, ErrNoDevicesFound) {
				continue
			}
			if ctx.Err() != nil {
				return sortedByConfidence(devices), ErrDetectionTimeout
			}
			continue
		}
		devices = append(devices, found...)
	}

	if len(devices) == 0 {
		return nil, ErrNoDevicesFound
	}

	return sortedByConfidence(devices), nil
}

// transportWanted reports whether the named transport passes the
// Transports filter.
func transportWanted(transport string, wanted []string) bool {
	if len(wanted) == 0 {
		return true
	}
	for _, w := range wanted {
		if w == transport {
			return true
		}
	}
	return false
}

// sortedByConfidence orders candidates best first, keeping the
// detector's own ordering within each confidence level.
func sortedByConfidence(devices []DeviceInfo) []DeviceInfo {
	sort.SliceStable(devices, func(i, j int) bool {
		return devices[i].Confidence > devices[j].Confidence
	})
	return devices
}
