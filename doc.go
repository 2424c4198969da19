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

/*
Package kiss implements the KISS framing protocol used to carry AX.25
packet data between a host and a terminal node controller (TNC) over any
byte-oriented link.

KISS wraps each packet in 0xC0 delimiters and byte-stuffs the two
reserved values, so the protocol survives serial lines, sockets and
other transports that deliver bytes in arbitrary chunks. The library
provides the bidirectional codec plus the plumbing a host application
needs around it.

Features:
  - Streaming Encoder and Decoder handling chunked, mid-frame input
  - TNC parameter frames: TX delay, persistence, slot time, TX tail,
    full duplex, hardware-specific
  - Multiple transport support: serial, TCP (network KISS), I2C
  - Passive detection of USB serial TNC adapters
  - Retry logic with configurable backoff
  - Comprehensive error handling

Basic Usage:

	import (
	    "github.com/tncware/go-kiss"
	    "github.com/tncware/go-kiss/transport/serial"
	)

	// Open the TNC's serial port
	port, err := serial.New("/dev/ttyUSB0", serial.WithBaudRate(57600))
	if err != nil {
	    log.Fatal(err)
	}

	// Create the TNC session on port 0 with a 300 ms keyup delay
	tnc, err := kiss.New(port, 0,
	    kiss.WithEncoderOptions(kiss.WithTXDelay(300*time.Millisecond)),
	)
	if err != nil {
	    log.Fatal(err)
	}
	defer tnc.Close()

	// Send an AX.25 packet
	if err := tnc.Send(packet); err != nil {
	    log.Fatal(err)
	}

	// Receive until the context ends
	err = tnc.Listen(ctx, func(f kiss.Frame) {
	    fmt.Printf("port %d: % X\n", f.Port(), f.Data)
	})

The codec is usable on its own, without the TNC session layer:

	enc, err := kiss.NewEncoder(conn, 0)
	dec := kiss.NewDecoder()
	dec.OnMessage = func(packet []byte) { handle(packet) }
	// feed dec.Write with whatever the link delivers

Transport Selection:

  - serial: hardware TNCs on real or USB serial ports
  - tcp: software TNCs serving network KISS (direwolf convention,
    port 8001)
  - i2c: header-attached TNC boards on embedded hosts

Error Handling:

All operations return meaningful errors that can be inspected:

	if errors.Is(err, kiss.ErrInvalidPort) {
	    // Handle bad configuration
	}

Thread Safety:

Encoder, Decoder and TNC instances are single-threaded. If you need
concurrent access, implement appropriate synchronization in your
application.
*/
package kiss
