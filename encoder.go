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
	"fmt"
	"io"
	"time"
)

// tickUnit is the wire resolution of the timed TNC parameters. Values
// are sent as a single byte counting 10 ms ticks.
const tickUnit = 10 * time.Millisecond

// maxTickDuration is the largest duration one tick byte can carry.
const maxTickDuration = 255 * tickUnit

// encoderConfig holds the optional TNC parameters supplied at
// construction. Time fields use the zero value as "not supplied";
// persistence and full duplex carry explicit flags because zero and
// false are meaningful wire values.
type encoderConfig struct {
	hardware       []byte
	txDelay        time.Duration
	slotTime       time.Duration
	txTail         time.Duration
	persistence    byte
	persistenceSet bool
	fullDuplex     bool
	fullDuplexSet  bool
}

// initRules is the fixed emission order for construction-time parameter
// frames: one rule per optional field, walked once by NewEncoder. A nil
// value means the field was not supplied and no frame is sent.
var initRules = []struct {
	value func(*encoderConfig) []byte
	kind  CommandKind
}{
	{kind: CmdTXDelay, value: func(c *encoderConfig) []byte { return tickValue(c.txDelay) }},
	{kind: CmdPersistence, value: func(c *encoderConfig) []byte {
		if !c.persistenceSet {
			return nil
		}
		return []byte{c.persistence}
	}},
	{kind: CmdSlotTime, value: func(c *encoderConfig) []byte { return tickValue(c.slotTime) }},
	{kind: CmdTXTail, value: func(c *encoderConfig) []byte { return tickValue(c.txTail) }},
	{kind: CmdFullDuplex, value: func(c *encoderConfig) []byte {
		if !c.fullDuplexSet {
			return nil
		}
		if c.fullDuplex {
			return []byte{0x01}
		}
		return []byte{0x00}
	}},
	{kind: CmdSetHardware, value: func(c *encoderConfig) []byte {
		if len(c.hardware) == 0 {
			return nil
		}
		return c.hardware
	}},
}

// tickValue converts a timed parameter to its one-byte wire value. Zero
// durations were not supplied and emit nothing. Durations shorter than
// one tick are sent as zero ticks, matching TNCs that accept 0 as
// "minimum".
func tickValue(d time.Duration) []byte {
	if d == 0 {
		return nil
	}
	return []byte{byte(d / tickUnit)}
}

// validateTickRange rejects durations one tick byte cannot represent.
func validateTickRange(name string, d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%w: negative %s %v", ErrInvalidParameter, name, d)
	}
	if d > maxTickDuration {
		return fmt.Errorf("%w: %s %v exceeds %v", ErrInvalidParameter, name, d, maxTickDuration)
	}
	return nil
}

// EncoderOption configures an Encoder at construction.
type EncoderOption func(*Encoder) error

// WithTXDelay supplies the transmitter keyup delay. Sent in 10 ms ticks;
// zero leaves the TNC default untouched.
func WithTXDelay(d time.Duration) EncoderOption {
	return func(e *Encoder) error {
		if err := validateTickRange("tx delay", d); err != nil {
			return err
		}
		e.config.txDelay = d
		return nil
	}
}

// WithPersistence supplies the CSMA persistence parameter. Supplying
// zero still sends the frame; p=0 is a valid, maximally polite setting.
func WithPersistence(p byte) EncoderOption {
	return func(e *Encoder) error {
		e.config.persistence = p
		e.config.persistenceSet = true
		return nil
	}
}

// WithSlotTime supplies the CSMA slot interval. Sent in 10 ms ticks;
// zero leaves the TNC default untouched.
func WithSlotTime(d time.Duration) EncoderOption {
	return func(e *Encoder) error {
		if err := validateTickRange("slot time", d); err != nil {
			return err
		}
		e.config.slotTime = d
		return nil
	}
}

// WithTXTail supplies the post-data keydown time. Sent in 10 ms ticks;
// zero leaves the TNC default untouched. Modern TNCs mostly ignore it.
func WithTXTail(d time.Duration) EncoderOption {
	return func(e *Encoder) error {
		if err := validateTickRange("tx tail", d); err != nil {
			return err
		}
		e.config.txTail = d
		return nil
	}
}

// WithFullDuplex supplies the duplex flag. Supplying false still sends
// the frame, forcing half duplex on a TNC left in another state.
func WithFullDuplex(on bool) EncoderOption {
	return func(e *Encoder) error {
		e.config.fullDuplex = on
		e.config.fullDuplexSet = true
		return nil
	}
}

// WithHardware supplies a hardware-specific parameter frame. The bytes
// are sent exactly as given, without escaping; their meaning is defined
// by the TNC firmware. An empty value sends nothing.
func WithHardware(value []byte) EncoderOption {
	return func(e *Encoder) error {
		e.config.hardware = value
		return nil
	}
}

// WithHardwareString is WithHardware for text parameters, the common
// case for firmware that speaks "KEY:VALUE" strings.
func WithHardwareString(value string) EncoderOption {
	return WithHardware([]byte(value))
}

// Encoder wraps payloads into KISS frames on an io.Writer. Construction
// emits one parameter frame per supplied option, each Write emits
// exactly one data frame, and Close emits the exit-KISS frame. An
// Encoder is single-threaded; guard it externally if writers race.
type Encoder struct {
	w       io.Writer
	config  encoderConfig
	port    int
	dataCmd byte
	closed  bool
}

// NewEncoder returns an Encoder addressing the given TNC port (0-15).
// Supplied options emit their parameter frames immediately, in a fixed
// order: TX delay, persistence, slot time, TX tail, full duplex,
// hardware. Construction fails if the port is out of range, an option
// value cannot be represented on the wire, or an init frame cannot be
// written.
func NewEncoder(w io.Writer, port int, opts ...EncoderOption) (*Encoder, error) {
	if !validPort(port) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}
	e := &Encoder{
		w:       w,
		port:    port,
		dataCmd: MakeCommand(port, CmdData),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	for _, rule := range initRules {
		value := rule.value(&e.config)
		if value == nil {
			continue
		}
		if err := e.writeFrame(MakeCommand(port, rule.kind), value, false); err != nil {
			return nil, fmt.Errorf("init frame %v: %w", rule.kind, err)
		}
		debugf("encoder port %d sent init %v value % X", port, rule.kind, value)
	}
	return e, nil
}

// Port returns the TNC port this encoder addresses.
func (e *Encoder) Port() int {
	return e.port
}

// Write sends p as exactly one KISS data frame. Payload bytes are
// escaped; the command byte is not, so on port 12 it goes out as a
// literal 0xC0 just as the protocol's reference implementations send
// it. Writes are never coalesced: n calls produce n frames. An empty p
// still produces a frame. Returns len(p) on success.
func (e *Encoder) Write(p []byte) (int, error) {
	if e.closed {
		return 0, ErrEncoderClosed
	}
	if err := e.writeFrame(e.dataCmd, p, true); err != nil {
		return 0, fmt.Errorf("data frame: %w", err)
	}
	return len(p), nil
}

// WriteCommand sends a runtime parameter frame of the given kind. Only
// the parameter kinds (TX delay through hardware) are accepted; data
// frames go through Write and the exit frame through Close. The value
// is sent unescaped, like construction-time parameter frames.
func (e *Encoder) WriteCommand(kind CommandKind, value []byte) error {
	if e.closed {
		return ErrEncoderClosed
	}
	if kind < CmdTXDelay || kind > CmdSetHardware {
		return fmt.Errorf("%w: command kind %v", ErrInvalidParameter, kind)
	}
	if err := e.writeFrame(MakeCommand(e.port, kind), value, false); err != nil {
		return fmt.Errorf("%v frame: %w", kind, err)
	}
	return nil
}

// Close emits the exit-KISS frame, returning the TNC to command mode,
// and shuts the encoder down. Further writes return ErrEncoderClosed.
// Close is idempotent; only the first call emits the frame. The
// destination writer is not closed.
func (e *Encoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	if _, err := e.w.Write([]byte{FEND, exitFrameCommand, FEND}); err != nil {
		return fmt.Errorf("exit frame: %w", err)
	}
	debugln("encoder sent exit frame")
	return nil
}

// writeFrame delimits and sends one frame in a single Write call so
// frames are never interleaved by downstream writers.
func (e *Encoder) writeFrame(cmd byte, content []byte, escapeContent bool) error {
	if escapeContent {
		content = Escape(content)
	}
	frame := make([]byte, 0, len(content)+3)
	frame = append(frame, FEND, cmd)
	frame = append(frame, content...)
	frame = append(frame, FEND)
	if _, err := e.w.Write(frame); err != nil {
		return err
	}
	return nil
}
