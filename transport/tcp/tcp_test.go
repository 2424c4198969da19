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

package tcp

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kiss "github.com/tncware/go-kiss"
)

func TestWithDefaultPort(t *testing.T) {
	t.Parallel()

	tests := []struct {
		addr     string
		expected string
	}{
		{addr: "localhost", expected: "localhost:8001"},
		{addr: "localhost:3000", expected: "localhost:3000"},
		{addr: "192.168.1.10", expected: "192.168.1.10:8001"},
		{addr: "::1", expected: "[::1]:8001"},
		{addr: "[::1]:8001", expected: "[::1]:8001"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, withDefaultPort(tt.addr), "addr %q", tt.addr)
	}
}

// pipeTransport wires a Transport to one end of an in-memory
// connection.
func pipeTransport(t *testing.T) (*Transport, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})
	return &Transport{conn: client, addr: "pipe"}, server
}

func TestTransportWrite(t *testing.T) {
	t.Parallel()

	tr, server := pipeTransport(t)

	frame := []byte{kiss.FEND, 0x00, 'h', 'i', kiss.FEND}
	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 16)
		n, _ := server.Read(buf)
		done <- buf[:n]
	}()

	n, err := tr.Write(frame)
	require.NoError(t, err)
	assert.Equal(t, len(frame), n)
	assert.Equal(t, frame, <-done)
}

func TestTransportRead(t *testing.T) {
	t.Parallel()

	tr, server := pipeTransport(t)

	frame := []byte{kiss.FEND, 0x10, 'o', 'k', kiss.FEND}
	go func() {
		_, _ = server.Write(frame)
	}()

	buf := make([]byte, 16)
	n, err := tr.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, frame, buf[:n])
}

func TestTransportReadTimeout(t *testing.T) {
	t.Parallel()

	tr, _ := pipeTransport(t)
	require.NoError(t, tr.SetReadTimeout(10*time.Millisecond))

	_, err := tr.Read(make([]byte, 4))
	assert.ErrorIs(t, err, kiss.ErrTransportTimeout)
}

func TestTransportReadEOF(t *testing.T) {
	t.Parallel()

	tr, server := pipeTransport(t)
	require.NoError(t, server.Close())

	_, err := tr.Read(make([]byte, 4))
	assert.ErrorIs(t, err, io.EOF, "closed far end must surface as io.EOF for the listen loop")
}

func TestTransportClosedOperations(t *testing.T) {
	t.Parallel()

	tr, _ := pipeTransport(t)
	require.NoError(t, tr.Close())

	_, err := tr.Read(make([]byte, 4))
	assert.ErrorIs(t, err, kiss.ErrTransportClosed)
	_, err = tr.Write([]byte{0x01})
	assert.ErrorIs(t, err, kiss.ErrTransportClosed)
	assert.ErrorIs(t, tr.SetReadTimeout(time.Second), kiss.ErrTransportClosed)
	assert.False(t, tr.IsConnected())

	require.NoError(t, tr.Close(), "closing twice is fine")
}

func TestTransportProperties(t *testing.T) {
	t.Parallel()

	tr, _ := pipeTransport(t)
	assert.Equal(t, kiss.TransportTCP, tr.Type())
	assert.Equal(t, "pipe", tr.Addr())
	assert.True(t, tr.IsConnected())

	// Network KISS servers stay in KISS mode for their other clients.
	assert.False(t, kiss.TransportHasCapability(tr, kiss.CapabilityExitKISSMode))
}

func TestTransportOptionValidation(t *testing.T) {
	t.Parallel()

	tr := &Transport{}
	assert.ErrorIs(t, WithDialTimeout(0)(tr), kiss.ErrInvalidParameter)
	assert.ErrorIs(t, WithDialTimeout(-time.Second)(tr), kiss.ErrInvalidParameter)

	require.NoError(t, WithDialTimeout(time.Second)(tr))
	assert.Equal(t, time.Second, tr.dialTimeout)

	require.NoError(t, WithNoDelay(false)(tr))
	assert.False(t, tr.noDelay)

	require.NoError(t, WithReadTimeout(time.Minute)(tr))
	assert.Equal(t, time.Minute, tr.readTimeout)
}

func TestNewAgainstLoopbackServer(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	frame := []byte{kiss.FEND, 0x00, 'n', 'e', 't', kiss.FEND}
	go func() {
		conn, aerr := ln.Accept()
		if aerr != nil {
			return
		}
		_, _ = conn.Write(frame)
		_ = conn.Close()
	}()

	tr, err := New(ln.Addr().String(), WithDialTimeout(2*time.Second))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })

	assert.Equal(t, ln.Addr().String(), tr.Addr())
	assert.True(t, tr.IsConnected())

	buf := make([]byte, 32)
	n, err := tr.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, frame, buf[:n])

	require.NoError(t, tr.Close())
}

func TestNewDialFailure(t *testing.T) {
	t.Parallel()

	// Grab a port and close it so nothing listens there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = New(addr, WithDialTimeout(500*time.Millisecond))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect")
}
