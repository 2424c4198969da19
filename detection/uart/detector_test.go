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

package uart

import (
	"context"
	"errors"
	"testing"

	"github.com/tncware/go-kiss/detection"
)

func TestScorePort(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		port           serialPort
		wantConfidence detection.Confidence
		wantAdapter    string
	}{
		{
			name: "by-id name carries the product",
			port: serialPort{
				Path: "/dev/ttyACM0",
				Name: "usb-Mobilinkd_LLC_Mobilinkd_TNC3_0001-if00",
			},
			wantConfidence: detection.High,
		},
		{
			name: "product string names a TNC",
			port: serialPort{
				Path:    "/dev/ttyACM1",
				Name:    "ttyACM1",
				Product: "NinoTNC N9600A4",
			},
			wantConfidence: detection.High,
		},
		{
			name: "manufacturer names a TNC vendor",
			port: serialPort{
				Path:         "COM4",
				Name:         "COM4",
				Manufacturer: "Mobilinkd LLC",
			},
			wantConfidence: detection.High,
		},
		{
			name: "known bridge chip",
			port: serialPort{
				Path:   "/dev/ttyUSB0",
				Name:   "ttyUSB0",
				VIDPID: "0403:6015",
			},
			wantConfidence: detection.Medium,
			wantAdapter:    "FTDI FT231X",
		},
		{
			name: "known bridge chip lowercase id",
			port: serialPort{
				Path:   "/dev/ttyUSB1",
				Name:   "ttyUSB1",
				VIDPID: "10c4:ea60",
			},
			wantConfidence: detection.Medium,
			wantAdapter:    "Silicon Labs CP210x",
		},
		{
			name: "named device behind a known bridge keeps the adapter",
			port: serialPort{
				Path:    "/dev/ttyUSB2",
				Name:    "ttyUSB2",
				Product: "TNC-X",
				VIDPID:  "0403:6001",
			},
			wantConfidence: detection.High,
			wantAdapter:    "FTDI FT232R",
		},
		{
			name: "plain motherboard uart",
			port: serialPort{
				Path: "/dev/ttyS0",
				Name: "ttyS0",
			},
			wantConfidence: detection.Low,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			confidence, adapter := scorePort(tt.port)
			if confidence != tt.wantConfidence {
				t.Errorf("confidence = %v, want %v", confidence, tt.wantConfidence)
			}
			if adapter != tt.wantAdapter {
				t.Errorf("adapter = %q, want %q", adapter, tt.wantAdapter)
			}
		})
	}
}

func TestMergePorts(t *testing.T) {
	t.Parallel()

	primary := []serialPort{
		{Path: "/dev/ttyUSB0", Name: "usb-FTDI_FT231X_USB_UART_D30A0B-if00-port0"},
		{Path: "COM3", Name: "COM3"},
	}
	extra := []serialPort{
		{Path: "/dev/ttyUSB0", Name: "ttyUSB0", VIDPID: "0403:6015", SerialNumber: "D30A0B"},
		{Path: "com3", VIDPID: "1A86:7523"},
		{Path: "/dev/ttyACM0", Name: "ttyACM0"},
	}

	merged := mergePorts(primary, extra)
	if len(merged) != 3 {
		t.Fatalf("got %d ports, want 3", len(merged))
	}

	// The descriptive primary name survives; the enumerator only fills
	// the gaps.
	if merged[0].Name != "usb-FTDI_FT231X_USB_UART_D30A0B-if00-port0" {
		t.Errorf("merge replaced the primary name: %q", merged[0].Name)
	}
	if merged[0].VIDPID != "0403:6015" || merged[0].SerialNumber != "D30A0B" {
		t.Errorf("merge did not fill descriptor gaps: %+v", merged[0])
	}

	// Path matching is case-insensitive so COM3 and com3 are one port.
	if merged[1].Path != "COM3" || merged[1].VIDPID != "1A86:7523" {
		t.Errorf("windows path not merged case-insensitively: %+v", merged[1])
	}

	// Ports only the second source knows are appended.
	if merged[2].Path != "/dev/ttyACM0" {
		t.Errorf("enumerator-only port missing: %+v", merged[2])
	}
}

func TestNewDeviceInfo(t *testing.T) {
	t.Parallel()

	device := newDeviceInfo(serialPort{
		Path:         "/dev/ttyUSB0",
		Name:         "ttyUSB0",
		VIDPID:       "0403:6001",
		Manufacturer: "FTDI",
		SerialNumber: "A1B2C3",
	})

	if device.Transport != "serial" {
		t.Errorf("Transport = %q, want serial", device.Transport)
	}
	if device.VIDPID != "0403:6001" {
		t.Errorf("VIDPID = %q", device.VIDPID)
	}
	if device.Metadata["adapter"] != "FTDI FT232R" {
		t.Errorf("adapter metadata = %q", device.Metadata["adapter"])
	}
	if device.Metadata["manufacturer"] != "FTDI" || device.Metadata["serial_number"] != "A1B2C3" {
		t.Errorf("descriptor metadata missing: %v", device.Metadata)
	}
	if _, ok := device.Metadata["product"]; ok {
		t.Error("empty product should not appear in metadata")
	}

	// A port without a name falls back to the path base.
	unnamed := newDeviceInfo(serialPort{Path: "/dev/ttyACM2"})
	if unnamed.Name != "ttyACM2" {
		t.Errorf("Name = %q, want ttyACM2", unnamed.Name)
	}
}

func TestRankPortsPassive(t *testing.T) {
	t.Parallel()

	ports := []serialPort{
		{Path: "/dev/ttyACM0", Name: "ttyACM0", VIDPID: "0483:374B"},
		{Path: "/dev/ttyUSB9", Name: "ttyUSB9", VIDPID: "0403:6015"},
		{Path: "/dev/ttyUSB0", Name: "ttyUSB0", VIDPID: "0403:6015"},
		{Path: "/dev/ttyS0", Name: "ttyS0"},
	}

	opts := detection.DefaultOptions()
	opts.IgnorePaths = []string{"/dev/ttyUSB9"}

	openChecks := 0
	devices, err := rankPorts(context.Background(), ports, &opts, func(string) bool {
		openChecks++
		return true
	})
	if err != nil {
		t.Fatalf("rankPorts() error = %v", err)
	}

	// The ST-Link debug probe is blocklisted and ttyUSB9 is ignored.
	if len(devices) != 2 {
		t.Fatalf("got %d devices, want 2: %v", len(devices), devices)
	}
	if devices[0].Path != "/dev/ttyUSB0" || devices[0].Confidence != detection.Medium {
		t.Errorf("devices[0] = %+v", devices[0])
	}
	if devices[1].Path != "/dev/ttyS0" || devices[1].Confidence != detection.Low {
		t.Errorf("devices[1] = %+v", devices[1])
	}

	if openChecks != 0 {
		t.Errorf("passive mode opened ports %d times", openChecks)
	}
}

func TestRankPortsSafeMode(t *testing.T) {
	t.Parallel()

	ports := []serialPort{
		{Path: "/dev/ttyUSB0", Name: "ttyUSB0", VIDPID: "0403:6015"},
		{Path: "/dev/ttyUSB1", Name: "ttyUSB1", VIDPID: "10C4:EA60"},
		{Path: "/dev/ttyS0", Name: "ttyS0"},
	}

	opts := detection.DefaultOptions()
	opts.Mode = detection.Safe

	var checked []string
	devices, err := rankPorts(context.Background(), ports, &opts, func(path string) bool {
		checked = append(checked, path)
		return path != "/dev/ttyUSB0"
	})
	if err != nil {
		t.Fatalf("rankPorts() error = %v", err)
	}

	// ttyUSB0 failed the open check and is dropped; the low-confidence
	// motherboard UART is never opened.
	if len(devices) != 2 {
		t.Fatalf("got %d devices, want 2: %v", len(devices), devices)
	}
	if devices[0].Path != "/dev/ttyUSB1" || devices[1].Path != "/dev/ttyS0" {
		t.Errorf("devices = %v", devices)
	}
	if len(checked) != 2 || checked[0] != "/dev/ttyUSB0" || checked[1] != "/dev/ttyUSB1" {
		t.Errorf("open checks = %v, want the two medium candidates", checked)
	}
}

func TestRankPortsAllFiltered(t *testing.T) {
	t.Parallel()

	ports := []serialPort{
		{Path: "/dev/ttyACM0", Name: "ttyACM0", VIDPID: "1D50:6018"},
	}

	opts := detection.DefaultOptions()
	_, err := rankPorts(context.Background(), ports, &opts, func(string) bool { return true })
	if !errors.Is(err, detection.ErrNoDevicesFound) {
		t.Errorf("error = %v, want ErrNoDevicesFound", err)
	}
}

func TestRankPortsCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ports := []serialPort{{Path: "/dev/ttyUSB0", Name: "ttyUSB0"}}
	opts := detection.DefaultOptions()

	_, err := rankPorts(ctx, ports, &opts, func(string) bool { return true })
	if !errors.Is(err, detection.ErrDetectionTimeout) {
		t.Errorf("error = %v, want ErrDetectionTimeout", err)
	}
}

func TestDetectorTransport(t *testing.T) {
	t.Parallel()

	if got := New().Transport(); got != "serial" {
		t.Errorf("Transport() = %q, want serial", got)
	}
}
