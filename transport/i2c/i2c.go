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

// Package i2c provides the I2C transport for TNC boards that sit on a
// Raspberry Pi header and speak KISS over the bus.
package i2c

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	kiss "github.com/tncware/go-kiss"
)

const (
	// DefaultAddress is the factory I2C address of TNC-Pi style boards.
	DefaultAddress = 0x03

	// Bus transfer sizes. TNC boards buffer little; small transfers
	// keep the bus responsive for other devices.
	readChunkSize  = 32
	writeChunkSize = 32

	// busClockFreq is the standard-mode clock these boards are rated
	// for.
	busClockFreq = 100 * physic.KiloHertz

	// pollDelay spaces out bus reads while the board has nothing to
	// send.
	pollDelay = time.Millisecond
)

// Transport implements the kiss.Transport interface over an I2C bus.
//
// A board with nothing to send answers reads with runs of the KISS
// frame delimiter. Read treats such all-delimiter transfers as an idle
// line and keeps polling; delimiter runs carry no frames, so skipping
// them loses nothing.
type Transport struct {
	dev         *i2c.Dev
	bus         i2c.BusCloser
	busName     string
	addr        uint16
	readTimeout time.Duration
	closed      bool
}

// Option configures a Transport before the bus is opened.
type Option func(*Transport) error

// WithAddress selects the board's I2C address. Boards ship at
// DefaultAddress but can be moved for multi-TNC stacks.
func WithAddress(addr uint16) Option {
	return func(t *Transport) error {
		if addr < 0x03 || addr > 0x77 {
			return fmt.Errorf("%w: i2c address %#02x", kiss.ErrInvalidParameter, addr)
		}
		t.addr = addr
		return nil
	}
}

// WithReadTimeout sets the initial read timeout. Zero or negative makes
// reads poll until data arrives.
func WithReadTimeout(timeout time.Duration) Option {
	return func(t *Transport) error {
		t.readTimeout = timeout
		return nil
	}
}

// New opens an I2C transport on the named bus ("" selects the first
// one).
func New(busName string, opts ...Option) (*Transport, error) {
	t := &Transport{
		busName:     busName,
		addr:        DefaultAddress,
		readTimeout: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %s: %w", busName, err)
	}
	// Adapters that cannot change speed keep their default.
	_ = bus.SetSpeed(busClockFreq)

	t.bus = bus
	t.dev = &i2c.Dev{Addr: t.addr, Bus: bus}
	return t, nil
}

// BusName returns the bus the transport was opened on.
func (t *Transport) BusName() string {
	return t.busName
}

// Read fills p with bytes from the board, polling until something other
// than idle fill arrives or the read timeout expires.
func (t *Transport) Read(p []byte) (int, error) {
	if t.closed {
		return 0, kiss.NewClosedError("read", t.busName)
	}
	n := len(p)
	if n > readChunkSize {
		n = readChunkSize
	}
	if n == 0 {
		return 0, nil
	}

	var deadline time.Time
	if t.readTimeout > 0 {
		deadline = time.Now().Add(t.readTimeout)
	}
	for {
		if err := t.dev.Tx(nil, p[:n]); err != nil {
			return 0, kiss.NewReadError(t.busName, err)
		}
		if !allIdleFill(p[:n]) {
			return n, nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return 0, kiss.NewTimeoutError("read", t.busName)
		}
		time.Sleep(pollDelay)
	}
}

// Write sends p to the board in bus-sized transfers.
func (t *Transport) Write(p []byte) (int, error) {
	if t.closed {
		return 0, kiss.NewClosedError("write", t.busName)
	}
	written := 0
	for written < len(p) {
		end := written + writeChunkSize
		if end > len(p) {
			end = len(p)
		}
		if err := t.dev.Tx(p[written:end], nil); err != nil {
			return written, kiss.NewWriteError(t.busName, err)
		}
		written = end
	}
	return written, nil
}

// SetReadTimeout bounds how long Read polls for data. Zero or negative
// polls until data arrives.
func (t *Transport) SetReadTimeout(timeout time.Duration) error {
	if t.closed {
		return kiss.NewClosedError("set timeout", t.busName)
	}
	t.readTimeout = timeout
	return nil
}

// Close releases the bus. Close is idempotent.
func (t *Transport) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	if t.bus == nil {
		return nil
	}
	if err := t.bus.Close(); err != nil {
		return fmt.Errorf("failed to close I2C bus %s: %w", t.busName, err)
	}
	return nil
}

// IsConnected returns true if the transport is usable.
func (t *Transport) IsConnected() bool {
	return t.dev != nil && !t.closed
}

// Type returns the transport type.
func (*Transport) Type() kiss.TransportType {
	return kiss.TransportI2C
}

// allIdleFill reports whether the transfer is nothing but frame
// delimiters.
func allIdleFill(p []byte) bool {
	for _, b := range p {
		if b != kiss.FEND {
			return false
		}
	}
	return true
}

// Ensure Transport implements kiss.Transport.
var _ kiss.Transport = (*Transport)(nil)
