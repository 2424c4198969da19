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

// Frame delimiter and escape bytes as defined by the KISS protocol.
const (
	// FEND marks the start and end of every frame.
	FEND = 0xC0
	// FESC introduces a two-byte escape sequence for a reserved byte.
	FESC = 0xDB
	// TFEND follows FESC to represent a literal FEND in frame content.
	TFEND = 0xDC
	// TFESC follows FESC to represent a literal FESC in frame content.
	TFESC = 0xDD
)

// CommandKind is the low nibble of a command byte. It selects what the
// frame content means to the TNC.
type CommandKind byte

// Command kinds understood by KISS TNCs.
const (
	CmdData        CommandKind = 0x00 // frame content is an AX.25 packet
	CmdTXDelay     CommandKind = 0x01 // keyup delay, 10 ms units
	CmdPersistence CommandKind = 0x02 // CSMA persistence parameter p
	CmdSlotTime    CommandKind = 0x03 // CSMA slot interval, 10 ms units
	CmdTXTail      CommandKind = 0x04 // post-data keydown time, 10 ms units
	CmdFullDuplex  CommandKind = 0x05 // nonzero enables full duplex
	CmdSetHardware CommandKind = 0x06 // hardware-specific, raw bytes
	CmdReturn      CommandKind = 0x0F // exit KISS mode
)

// exitFrameCommand is the literal command byte of the exit-KISS frame.
// By convention it sets every port and kind bit (0xFF), addressing all
// ports at once rather than the session's own port.
const exitFrameCommand = 0xFF

// NumPorts is the number of TNC ports addressable by the command byte's
// four-bit port field.
const NumPorts = 16

// MakeCommand packs a port index and command kind into a command byte.
// The port occupies the high nibble and the kind the low nibble. Callers
// must validate the port range; out-of-range bits are masked.
func MakeCommand(port int, kind CommandKind) byte {
	return byte(port&0x0F)<<4 | byte(kind)&0x0F
}

// validPort reports whether port addresses one of the 16 TNC ports.
func validPort(port int) bool {
	return port >= 0 && port < NumPorts
}

// Frame is one decoded KISS message: the raw command byte and the
// unescaped content that followed it.
type Frame struct {
	// Data is the unescaped frame content after the command byte. For
	// CmdData frames this is the AX.25 packet; for parameter frames it
	// is the parameter value.
	Data []byte
	// Command is the raw command byte exactly as received.
	Command byte
}

// Port returns the TNC port index encoded in the command byte's high
// nibble.
func (f Frame) Port() int {
	return int(f.Command >> 4)
}

// Kind returns the command kind encoded in the command byte's low nibble.
func (f Frame) Kind() CommandKind {
	return CommandKind(f.Command & 0x0F)
}

// String describes the command kind for log output.
func (k CommandKind) String() string {
	switch k {
	case CmdData:
		return "data"
	case CmdTXDelay:
		return "txdelay"
	case CmdPersistence:
		return "persistence"
	case CmdSlotTime:
		return "slottime"
	case CmdTXTail:
		return "txtail"
	case CmdFullDuplex:
		return "fullduplex"
	case CmdSetHardware:
		return "sethardware"
	case CmdReturn:
		return "return"
	default:
		return "unknown"
	}
}
