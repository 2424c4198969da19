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
	"io"
	"sync"
	"time"
)

var (
	_ Transport                  = (*MockTransport)(nil)
	_ TransportCapabilityChecker = (*MockTransport)(nil)
)

// MockTransport is an in-memory Transport for tests. Reads replay
// scripted chunks in order while writes are captured for inspection;
// errors can be injected on either direction. When the read script is
// drained, Read returns DrainError (io.EOF unless changed), so a
// scripted session ends the way a closed link does.
type MockTransport struct {
	// DrainError is returned by Read once all queued chunks are
	// consumed.
	DrainError error

	readQueue    [][]byte
	written      bytes.Buffer
	writeErr     error
	failWrites   int
	capabilities map[TransportCapability]bool
	readTimeout  time.Duration
	mu           sync.Mutex
	closed       bool
}

// NewMockTransport creates a mock transport with an empty read script.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		DrainError:   io.EOF,
		capabilities: make(map[TransportCapability]bool),
	}
}

// QueueRead appends one chunk to the read script. Each Read call
// delivers at most one queued chunk, preserving the chunk boundaries
// the test scripted.
func (m *MockTransport) QueueRead(chunk []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readQueue = append(m.readQueue, append([]byte(nil), chunk...))
}

// Read delivers the next scripted chunk, or DrainError when the script
// is exhausted.
func (m *MockTransport) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, NewClosedError("read", "mock")
	}
	if len(m.readQueue) == 0 {
		if m.DrainError != nil {
			return 0, m.DrainError
		}
		return 0, NewTimeoutError("read", "mock")
	}
	chunk := m.readQueue[0]
	n := copy(p, chunk)
	if n < len(chunk) {
		m.readQueue[0] = chunk[n:]
	} else {
		m.readQueue = m.readQueue[1:]
	}
	return n, nil
}

// Write captures p, or fails with the injected write error.
func (m *MockTransport) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, NewClosedError("write", "mock")
	}
	if m.failWrites != 0 {
		if m.failWrites > 0 {
			m.failWrites--
		}
		err := m.writeErr
		if err == nil {
			err = NewWriteError("mock", io.ErrShortWrite)
		}
		return 0, err
	}
	m.written.Write(p)
	return len(p), nil
}

// FailWrites makes the next n writes fail with err; n < 0 fails every
// write. A nil err substitutes a retryable write error, which is what
// retry tests usually want.
func (m *MockTransport) FailWrites(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrites = n
	m.writeErr = err
}

// Written returns a copy of everything written so far.
func (m *MockTransport) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.written.Bytes()...)
}

// ResetWritten clears the write capture.
func (m *MockTransport) ResetWritten() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written.Reset()
}

// SetCapability grants or revokes a transport capability for the mock.
func (m *MockTransport) SetCapability(capability TransportCapability, on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capabilities[capability] = on
}

// HasCapability answers capability queries from the values set by
// SetCapability.
func (m *MockTransport) HasCapability(capability TransportCapability) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.capabilities[capability]
}

// Close marks the transport closed; further reads and writes fail.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// SetReadTimeout records the timeout; the mock never blocks, so it has
// no other effect.
func (m *MockTransport) SetReadTimeout(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readTimeout = timeout
	return nil
}

// IsConnected reports whether Close has been called.
func (m *MockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

// Type returns TransportMock.
func (*MockTransport) Type() TransportType {
	return TransportMock
}
