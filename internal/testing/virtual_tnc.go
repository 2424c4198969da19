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

package testing

// VirtualTNC simulates the far end of a KISS link. Tests script the
// byte stream the TNC would send toward the host and feed it to a
// decoder, and hand the TNC everything the host wrote so assertions can
// be made about complete frames rather than raw bytes.
type VirtualTNC struct {
	Port int

	outbound []byte
	frames   [][]byte
	partial  []byte
	sawExit  bool
}

// NewVirtualTNC creates a virtual TNC for the given port.
func NewVirtualTNC(port int) *VirtualTNC {
	return &VirtualTNC{Port: port}
}

// QueueData appends a complete data frame for the TNC's port to the
// outbound stream.
func (v *VirtualTNC) QueueData(payload []byte) {
	v.outbound = append(v.outbound, BuildDataFrame(v.Port, payload)...)
}

// QueueIdleFill appends n idle FEND bytes. Some TNC firmware pads the
// line with these between frames.
func (v *VirtualTNC) QueueIdleFill(n int) {
	for i := 0; i < n; i++ {
		v.outbound = append(v.outbound, FEND)
	}
}

// QueueRaw appends arbitrary bytes to the outbound stream, for
// scripting malformed input.
func (v *VirtualTNC) QueueRaw(data ...byte) {
	v.outbound = append(v.outbound, data...)
}

// Stream returns the scripted outbound byte stream.
func (v *VirtualTNC) Stream() []byte {
	return v.outbound
}

// Chunks returns the outbound stream cut into size-byte reads.
func (v *VirtualTNC) Chunks(size int) [][]byte {
	return SplitChunks(v.outbound, size)
}

// Ingest consumes bytes written by the host, accumulating them into
// frames. Chunk boundaries need not align with frame boundaries.
func (v *VirtualTNC) Ingest(data []byte) {
	for _, b := range data {
		if b != FEND {
			v.partial = append(v.partial, b)
			continue
		}
		if len(v.partial) == 0 {
			continue
		}
		frame := make([]byte, len(v.partial))
		copy(frame, v.partial)
		v.partial = v.partial[:0]
		if len(frame) == 1 && frame[0] == 0xFF {
			v.sawExit = true
			continue
		}
		v.frames = append(v.frames, frame)
	}
}

// Frames returns every complete frame ingested so far, command byte
// first, content still escaped.
func (v *VirtualTNC) Frames() [][]byte {
	return v.frames
}

// DataPayloads returns the unescaped payloads of ingested data frames
// addressed to the TNC's port.
func (v *VirtualTNC) DataPayloads() [][]byte {
	var payloads [][]byte
	for _, frame := range v.frames {
		if frame[0] != CommandByte(v.Port, KindData) {
			continue
		}
		payloads = append(payloads, unescapeBytes(frame[1:]))
	}
	return payloads
}

// SawExit reports whether an exit-KISS frame was ingested.
func (v *VirtualTNC) SawExit() bool {
	return v.sawExit
}

func unescapeBytes(data []byte) []byte {
	unescaped := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		b := data[i]
		if b != FESC {
			unescaped = append(unescaped, b)
			continue
		}
		i++
		if i >= len(data) {
			break
		}
		switch data[i] {
		case TFEND:
			unescaped = append(unescaped, FEND)
		case TFESC:
			unescaped = append(unescaped, FESC)
		}
	}
	return unescaped
}
