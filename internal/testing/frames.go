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

// Package testing provides KISS frame builders for tests. It imports
// nothing, so white-box tests of the root package can use it without an
// import cycle; the wire constants are therefore declared again here.
package testing

// Wire constants, mirroring the root package.
const (
	FEND  = 0xC0
	FESC  = 0xDB
	TFEND = 0xDC
	TFESC = 0xDD
)

// Command kind nibbles for building test command bytes.
const (
	KindData        = 0x0
	KindTXDelay     = 0x1
	KindPersistence = 0x2
	KindSlotTime    = 0x3
	KindTXTail      = 0x4
	KindFullDuplex  = 0x5
	KindSetHardware = 0x6
	KindReturn      = 0xF
)

// CommandByte packs a port and kind nibble.
func CommandByte(port, kind int) byte {
	return byte(port&0x0F)<<4 | byte(kind&0x0F)
}

// EscapeBytes applies KISS byte stuffing to data.
func EscapeBytes(data []byte) []byte {
	escaped := make([]byte, 0, len(data))
	for _, b := range data {
		switch b {
		case FEND:
			escaped = append(escaped, FESC, TFEND)
		case FESC:
			escaped = append(escaped, FESC, TFESC)
		default:
			escaped = append(escaped, b)
		}
	}
	return escaped
}

// BuildDataFrame wraps payload in a complete data frame for the given
// port, with escaping applied.
func BuildDataFrame(port int, payload []byte) []byte {
	frame := []byte{FEND, CommandByte(port, KindData)}
	frame = append(frame, EscapeBytes(payload)...)
	return append(frame, FEND)
}

// BuildParamFrame builds a parameter frame. The value is not escaped,
// matching what encoders put on the wire for configuration frames.
func BuildParamFrame(port, kind int, value ...byte) []byte {
	frame := []byte{FEND, CommandByte(port, kind)}
	frame = append(frame, value...)
	return append(frame, FEND)
}

// BuildExitFrame returns the exit-KISS frame.
func BuildExitFrame() []byte {
	return []byte{FEND, 0xFF, FEND}
}

// SplitChunks cuts data into size-byte chunks, the last one shorter if
// needed. Decoder tests use it to simulate transports with small read
// buffers.
func SplitChunks(data []byte, size int) [][]byte {
	if size <= 0 {
		return [][]byte{data}
	}
	var chunks [][]byte
	for len(data) > size {
		chunks = append(chunks, data[:size])
		data = data[size:]
	}
	if len(data) > 0 {
		chunks = append(chunks, data)
	}
	return chunks
}

// Common payloads for tests.
var (
	// TestPayloadHello is a plain payload with no reserved bytes.
	TestPayloadHello = []byte("hello")

	// TestPayloadReserved contains both reserved wire bytes.
	TestPayloadReserved = []byte{FEND, FESC}
)
