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
	"bytes"
	"sync"
	"time"
)

var _ Transport = (*BlockingMockTransport)(nil)

// BlockingMockTransport is a mock transport whose reads block until
// released. This is used for testing cancellation and shutdown while a
// receive loop is parked in Read.
type BlockingMockTransport struct {
	blockChan chan struct{}
	pending   bytes.Buffer
	written   bytes.Buffer
	timeout   time.Duration
	mu        sync.Mutex
	closed    bool
}

// NewBlockingMockTransport creates a new blocking mock transport.
func NewBlockingMockTransport() *BlockingMockTransport {
	return &BlockingMockTransport{
		blockChan: make(chan struct{}),
		timeout:   5 * time.Second,
	}
}

// Read blocks until Unblock or Close is called or the read timeout
// expires, then delivers whatever QueueRead staged.
func (m *BlockingMockTransport) Read(p []byte) (int, error) {
	m.mu.Lock()
	blockChan := m.blockChan
	closed := m.closed
	timeout := m.timeout
	m.mu.Unlock()

	if closed {
		return 0, NewClosedError("read", "mock")
	}

	select {
	case <-blockChan:
	case <-time.After(timeout):
		return 0, NewTimeoutError("read", "mock")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, NewClosedError("read", "mock")
	}
	n, _ := m.pending.Read(p)
	return n, nil
}

// Write captures p without blocking.
func (m *BlockingMockTransport) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, NewClosedError("write", "mock")
	}
	m.written.Write(p)
	return len(p), nil
}

// QueueRead stages data for the next unblocked Read.
func (m *BlockingMockTransport) QueueRead(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending.Write(data)
}

// Written returns a copy of everything written so far.
func (m *BlockingMockTransport) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.written.Bytes()...)
}

// Unblock allows one blocked Read to proceed.
func (m *BlockingMockTransport) Unblock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		close(m.blockChan)
		m.blockChan = make(chan struct{})
	}
}

// Close unblocks all operations and marks the transport as closed.
func (m *BlockingMockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.blockChan)
	}
	return nil
}

// SetReadTimeout configures the timeout for blocking reads.
func (m *BlockingMockTransport) SetReadTimeout(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if timeout > 0 {
		m.timeout = timeout
	}
	return nil
}

// IsConnected reports whether Close has been called.
func (m *BlockingMockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

// Type returns TransportMock.
func (*BlockingMockTransport) Type() TransportType {
	return TransportMock
}
