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

// Package serial provides the serial-port transport for hardware KISS
// TNCs.
package serial

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"

	kiss "github.com/tncware/go-kiss"
)

// DefaultBaudRate is used when no baud rate option is supplied. Most
// USB-attached TNCs run their host link at 57600.
const DefaultBaudRate = 57600

// defaultReadTimeout bounds reads so a silent line does not block a
// session forever; Listen overrides it with its poll interval.
const defaultReadTimeout = 100 * time.Millisecond

// Transport implements the kiss.Transport interface over a serial port.
// The line is always 8N1; KISS predates anything fancier.
type Transport struct {
	port        serial.Port
	portName    string
	baudRate    int
	readTimeout time.Duration
	closed      bool
}

// Option configures a Transport before the port is opened.
type Option func(*Transport) error

// WithBaudRate selects the line speed. TNCs commonly use 1200, 9600,
// 19200 or 57600.
func WithBaudRate(rate int) Option {
	return func(t *Transport) error {
		if rate <= 0 {
			return fmt.Errorf("%w: baud rate %d", kiss.ErrInvalidParameter, rate)
		}
		t.baudRate = rate
		return nil
	}
}

// WithReadTimeout sets the initial read timeout. Zero or negative makes
// reads block until data arrives.
func WithReadTimeout(timeout time.Duration) Option {
	return func(t *Transport) error {
		t.readTimeout = timeout
		return nil
	}
}

// New opens a serial transport on the named port.
func New(portName string, opts ...Option) (*Transport, error) {
	t := &Transport{
		portName:    portName,
		baudRate:    DefaultBaudRate,
		readTimeout: defaultReadTimeout,
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}

	mode := &serial.Mode{
		BaudRate: t.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open port %s: %w", portName, err)
	}

	if err := applyReadTimeout(port, t.readTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	// Many TNCs gate their UART on the handshake lines; assert both so
	// boards wired either way come up. Adapters without the lines just
	// reject the call.
	_ = port.SetDTR(true)
	_ = port.SetRTS(true)

	// Drop whatever accumulated on the line before this session.
	_ = port.ResetInputBuffer()

	t.port = port
	return t, nil
}

// PortName returns the device path the transport was opened on.
func (t *Transport) PortName() string {
	return t.portName
}

// BaudRate returns the configured line speed.
func (t *Transport) BaudRate() int {
	return t.baudRate
}

// Read reads available bytes from the line. An expired read timeout is
// reported as a timeout error rather than a silent empty read.
func (t *Transport) Read(p []byte) (int, error) {
	if t.closed {
		return 0, kiss.NewClosedError("read", t.portName)
	}
	n, err := t.port.Read(p)
	if err != nil {
		return n, kiss.NewReadError(t.portName, err)
	}
	if n == 0 {
		// The serial library signals an expired timeout with an empty
		// successful read.
		return 0, kiss.NewTimeoutError("read", t.portName)
	}
	return n, nil
}

// Write sends p down the line.
func (t *Transport) Write(p []byte) (int, error) {
	if t.closed {
		return 0, kiss.NewClosedError("write", t.portName)
	}
	n, err := t.port.Write(p)
	if err != nil {
		return n, kiss.NewWriteError(t.portName, err)
	}
	if n < len(p) {
		return n, kiss.NewWriteError(t.portName, io.ErrShortWrite)
	}
	return n, nil
}

// SetReadTimeout bounds how long Read blocks. Zero or negative restores
// blocking reads.
func (t *Transport) SetReadTimeout(timeout time.Duration) error {
	if t.closed {
		return kiss.NewClosedError("set timeout", t.portName)
	}
	if err := applyReadTimeout(t.port, timeout); err != nil {
		return fmt.Errorf("failed to set read timeout: %w", err)
	}
	t.readTimeout = timeout
	return nil
}

// Flush discards bytes received but not yet read.
func (t *Transport) Flush() error {
	if t.closed {
		return kiss.NewClosedError("flush", t.portName)
	}
	if err := t.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("failed to flush input buffer: %w", err)
	}
	return nil
}

// Close closes the serial port. Close is idempotent.
func (t *Transport) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	if t.port == nil {
		return nil
	}
	if err := t.port.Close(); err != nil {
		return fmt.Errorf("failed to close port %s: %w", t.portName, err)
	}
	return nil
}

// IsConnected returns true if the transport is usable.
func (t *Transport) IsConnected() bool {
	return t.port != nil && !t.closed
}

// Type returns the transport type.
func (*Transport) Type() kiss.TransportType {
	return kiss.TransportSerial
}

// HasCapability reports serial-specific behaviors. A serial line leads
// to dedicated TNC hardware, which should be returned to command mode
// when the session ends.
func (*Transport) HasCapability(capability kiss.TransportCapability) bool {
	return capability == kiss.CapabilityExitKISSMode
}

// applyReadTimeout maps the Transport timeout convention onto the
// serial library's, where blocking is a distinguished constant rather
// than a non-positive value.
func applyReadTimeout(port serial.Port, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = serial.NoTimeout
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		return fmt.Errorf("serial: %w", err)
	}
	return nil
}

// ListPorts returns the device paths of the serial ports present on the
// system.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}

// Ensure Transport implements the kiss transport interfaces.
var (
	_ kiss.Transport                  = (*Transport)(nil)
	_ kiss.TransportCapabilityChecker = (*Transport)(nil)
)
