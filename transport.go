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

package kiss

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Transport is a byte-oriented link to a TNC. KISS does not care what
// carries the bytes; serial ports, sockets and I2C buses all qualify.
// Reads return whatever bytes the link has, chunked however the link
// chunks them; the Decoder reassembles frames from that.
type Transport interface {
	io.ReadWriteCloser

	// SetReadTimeout bounds how long a Read blocks waiting for bytes.
	// Zero or negative restores blocking reads where the link supports
	// them.
	SetReadTimeout(timeout time.Duration) error

	// IsConnected returns true if the transport is usable.
	IsConnected() bool

	// Type returns the transport type.
	Type() TransportType
}

// TransportType represents the type of transport.
type TransportType string

const (
	// TransportSerial represents a serial line to a hardware TNC.
	TransportSerial TransportType = "serial"
	// TransportTCP represents a network KISS connection.
	TransportTCP TransportType = "tcp"
	// TransportI2C represents an I2C bus transport.
	TransportI2C TransportType = "i2c"
	// TransportMock represents a mock transport for testing.
	TransportMock TransportType = "mock"
)

// TransportCapability represents specific capabilities or behaviors of
// a transport.
type TransportCapability string

const (
	// CapabilityExitKISSMode indicates the far end is a hardware TNC
	// that should be returned to command mode when the session closes.
	// Network KISS servers serve many clients and must stay in KISS
	// mode, so the TCP transport does not report it.
	CapabilityExitKISSMode TransportCapability = "exit_kiss_mode"
)

// TransportCapabilityChecker is implemented by transports that can
// answer capability queries. Transports without it are assumed to have
// no optional capabilities.
type TransportCapabilityChecker interface {
	// HasCapability returns true if the transport has the specified
	// capability.
	HasCapability(capability TransportCapability) bool
}

// TransportHasCapability queries t for a capability, answering false
// for transports that do not implement TransportCapabilityChecker.
func TransportHasCapability(t Transport, capability TransportCapability) bool {
	if checker, ok := t.(TransportCapabilityChecker); ok {
		return checker.HasCapability(capability)
	}
	return false
}

// TransportWithRetry wraps a Transport, retrying failed writes under a
// RetryConfig. Reads are positional in the byte stream and pass through
// unretried. A failed write may leave a partial frame on the wire; the
// retried frame follows it, and the receiver's framing drops the
// partial as noise while the complete frame survives.
type TransportWithRetry struct {
	transport Transport
	config    *RetryConfig
}

// NewTransportWithRetry creates a new transport wrapper with retry
// logic. A nil config selects DefaultRetryConfig.
func NewTransportWithRetry(transport Transport, config *RetryConfig) *TransportWithRetry {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &TransportWithRetry{
		transport: transport,
		config:    config,
	}
}

// Read passes through to the underlying transport.
func (t *TransportWithRetry) Read(p []byte) (int, error) {
	n, err := t.transport.Read(p)
	if err != nil {
		return n, fmt.Errorf("read: %w", err)
	}
	return n, nil
}

// Write sends p, retrying per the configured policy when the transport
// reports a retryable failure.
func (t *TransportWithRetry) Write(p []byte) (int, error) {
	return t.WriteContext(context.Background(), p)
}

// WriteContext is Write bounded by a context; cancellation stops the
// retry loop between attempts.
func (t *TransportWithRetry) WriteContext(ctx context.Context, p []byte) (int, error) {
	var n int
	err := RetryWithConfig(ctx, t.config, func() error {
		var writeErr error
		n, writeErr = t.transport.Write(p)
		if writeErr != nil {
			return &TransportError{
				Op:        "write",
				Err:       writeErr,
				Type:      GetErrorType(writeErr),
				Retryable: IsRetryable(writeErr),
			}
		}
		return nil
	})
	return n, err
}

// Close closes the transport connection.
func (t *TransportWithRetry) Close() error {
	if err := t.transport.Close(); err != nil {
		return fmt.Errorf("failed to close underlying transport: %w", err)
	}
	return nil
}

// SetReadTimeout sets the read timeout on the underlying transport.
func (t *TransportWithRetry) SetReadTimeout(timeout time.Duration) error {
	if err := t.transport.SetReadTimeout(timeout); err != nil {
		return fmt.Errorf("failed to set timeout on underlying transport: %w", err)
	}
	return nil
}

// IsConnected returns true if the underlying transport is connected.
func (t *TransportWithRetry) IsConnected() bool {
	return t.transport.IsConnected()
}

// Type returns the underlying transport type.
func (t *TransportWithRetry) Type() TransportType {
	return t.transport.Type()
}

// HasCapability forwards capability checking to the underlying
// transport.
func (t *TransportWithRetry) HasCapability(capability TransportCapability) bool {
	return TransportHasCapability(t.transport, capability)
}

// SetRetryConfig updates the retry configuration.
func (t *TransportWithRetry) SetRetryConfig(config *RetryConfig) {
	t.config = config
}
