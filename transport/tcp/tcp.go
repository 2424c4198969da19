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

// Package tcp provides the network KISS transport, for software TNCs
// and sound modems that serve KISS over a socket.
package tcp

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	kiss "github.com/tncware/go-kiss"
)

// DefaultPort is the conventional network KISS port, as served by
// direwolf and most sound modems.
const DefaultPort = 8001

// defaultDialTimeout bounds New when the far end is unreachable.
const defaultDialTimeout = 10 * time.Second

// Transport implements the kiss.Transport interface over a TCP
// connection. It deliberately does not report CapabilityExitKISSMode: a
// network KISS server multiplexes many clients and must stay in KISS
// mode when one of them disconnects.
type Transport struct {
	conn        net.Conn
	addr        string
	dialTimeout time.Duration
	readTimeout time.Duration
	noDelay     bool
	closed      bool
}

// Option configures a Transport before the connection is dialed.
type Option func(*Transport) error

// WithDialTimeout bounds the connection attempt.
func WithDialTimeout(timeout time.Duration) Option {
	return func(t *Transport) error {
		if timeout <= 0 {
			return fmt.Errorf("%w: dial timeout %v", kiss.ErrInvalidParameter, timeout)
		}
		t.dialTimeout = timeout
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

// WithNoDelay controls TCP_NODELAY. It defaults to on; KISS frames are
// small and latency-sensitive, so coalescing them rarely helps.
func WithNoDelay(on bool) Option {
	return func(t *Transport) error {
		t.noDelay = on
		return nil
	}
}

// New dials a network KISS server. The address accepts "host:port" or a
// bare host, which gets the conventional port appended.
func New(addr string, opts ...Option) (*Transport, error) {
	t := &Transport{
		addr:        withDefaultPort(addr),
		dialTimeout: defaultDialTimeout,
		noDelay:     true,
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}

	conn, err := net.DialTimeout("tcp", t.addr, t.dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", t.addr, err)
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(t.noDelay)
	}

	t.conn = conn
	return t, nil
}

// withDefaultPort appends the conventional KISS port to addresses that
// lack one.
func withDefaultPort(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(addr, strconv.Itoa(DefaultPort))
}

// Addr returns the address the transport dialed.
func (t *Transport) Addr() string {
	return t.addr
}

// Read reads available bytes from the connection. A deadline expiry is
// reported as a timeout error; a closed far end surfaces as io.EOF.
func (t *Transport) Read(p []byte) (int, error) {
	if t.closed {
		return 0, kiss.NewClosedError("read", t.addr)
	}
	if err := t.applyReadDeadline(); err != nil {
		return 0, err
	}
	n, err := t.conn.Read(p)
	if err == nil {
		return n, nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return n, kiss.NewTimeoutError("read", t.addr)
	}
	if errors.Is(err, io.EOF) {
		return n, io.EOF
	}
	return n, kiss.NewReadError(t.addr, err)
}

// Write sends p to the server.
func (t *Transport) Write(p []byte) (int, error) {
	if t.closed {
		return 0, kiss.NewClosedError("write", t.addr)
	}
	n, err := t.conn.Write(p)
	if err != nil {
		return n, kiss.NewWriteError(t.addr, err)
	}
	return n, nil
}

// SetReadTimeout bounds how long Read blocks. Zero or negative restores
// blocking reads.
func (t *Transport) SetReadTimeout(timeout time.Duration) error {
	if t.closed {
		return kiss.NewClosedError("set timeout", t.addr)
	}
	t.readTimeout = timeout
	return nil
}

// applyReadDeadline arms the per-read deadline from the configured
// timeout. The deadline is absolute, so it is re-armed on every read.
func (t *Transport) applyReadDeadline() error {
	var deadline time.Time
	if t.readTimeout > 0 {
		deadline = time.Now().Add(t.readTimeout)
	}
	if err := t.conn.SetReadDeadline(deadline); err != nil {
		return kiss.NewReadError(t.addr, err)
	}
	return nil
}

// Close closes the connection. Close is idempotent.
func (t *Transport) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	if t.conn == nil {
		return nil
	}
	if err := t.conn.Close(); err != nil {
		return fmt.Errorf("failed to close connection to %s: %w", t.addr, err)
	}
	return nil
}

// IsConnected returns true if the transport is usable.
func (t *Transport) IsConnected() bool {
	return t.conn != nil && !t.closed
}

// Type returns the transport type.
func (*Transport) Type() kiss.TransportType {
	return kiss.TransportTCP
}

// Ensure Transport implements kiss.Transport.
var _ kiss.Transport = (*Transport)(nil)
