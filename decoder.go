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

// decoderState tracks whether frame content is buffered between Write
// calls.
type decoderState int

const (
	// stateIdle means no partial frame is pending.
	stateIdle decoderState = iota
	// stateAccumulating means bytes of an unterminated frame are
	// buffered, waiting for the closing delimiter.
	stateAccumulating
)

// DecoderOption configures a Decoder at construction.
type DecoderOption func(*Decoder)

// WithCommandByte keeps the command byte on delivered messages,
// prepended to the unescaped content. Without it OnMessage receives the
// content alone. OnFrame deliveries always carry the command byte and
// are unaffected.
func WithCommandByte() DecoderOption {
	return func(d *Decoder) {
		d.withCommand = true
	}
}

// WithMaxFrameLength drops any frame whose wire content between
// delimiters exceeds n bytes, protecting the partial buffer against a
// stream that never closes a frame. Oversized frames are discarded in
// their entirety. n <= 0 means no limit, the default.
func WithMaxFrameLength(n int) DecoderOption {
	return func(d *Decoder) {
		if n > 0 {
			d.maxFrameLen = n
		}
	}
}

// Decoder reconstructs KISS frames from a byte stream delivered in
// chunks of arbitrary size and alignment. Feed it with Write; complete
// frames are delivered synchronously, before Write returns, through
// whichever callback is set:
//
//   - OnFrame receives a structured Frame (command byte split out,
//     content unescaped) and takes precedence when both are set.
//   - OnMessage receives the unescaped content as a flat byte slice,
//     with the command byte stripped, or prepended under
//     WithCommandByte.
//
// Delivered slices are freshly allocated; the consumer owns them.
// Frames decoded while neither callback is set are discarded.
//
// Adjacent delimiters carry no frame and are ignored, so transports may
// idle-fill with FEND. A final unterminated frame is delivered by
// Close; Reset discards it instead. A Decoder is single-threaded; guard
// it externally if writers race.
type Decoder struct {
	// OnFrame, when set, receives every decoded frame as a structured
	// record.
	OnFrame func(Frame)
	// OnMessage, when set and OnFrame is not, receives every decoded
	// frame as a flat byte slice.
	OnMessage func([]byte)

	pending     []byte
	state       decoderState
	maxFrameLen int
	withCommand bool
	overflowed  bool
	closed      bool
}

// NewDecoder returns a Decoder in the idle state. Set OnFrame or
// OnMessage before the first Write.
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Write consumes one chunk of the stream. Every frame completed by this
// chunk is delivered before Write returns; trailing bytes after the
// last delimiter are buffered for the next call. Write never fails on
// content; the only error is ErrDecoderClosed after Close.
func (d *Decoder) Write(chunk []byte) (int, error) {
	if d.closed {
		return 0, ErrDecoderClosed
	}
	start := 0
	for i, b := range chunk {
		if b != FEND {
			continue
		}
		d.closeRun(chunk[start:i])
		start = i + 1
	}
	if start < len(chunk) {
		d.buffer(chunk[start:])
	}
	return len(chunk), nil
}

// Close delivers a final unterminated frame, if one is buffered, and
// shuts the decoder down. The stream does not need a trailing delimiter
// for its last frame to arrive; this is the only path that accepts a
// frame without one. An oversized frame in progress is discarded, not
// delivered. Close is idempotent; Write after Close returns
// ErrDecoderClosed.
func (d *Decoder) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if d.overflowed {
		debugf("decoder dropped oversized trailing frame")
		d.overflowed = false
	} else if len(d.pending) > 0 {
		d.deliver(d.pending)
	}
	d.pending = nil
	d.state = stateIdle
	return nil
}

// Reset discards any buffered partial frame and returns the decoder to
// the idle state, reopening it if it was closed. Use it to resynchronize
// after reconnecting a transport mid-frame.
func (d *Decoder) Reset() {
	d.pending = nil
	d.state = stateIdle
	d.overflowed = false
	d.closed = false
}

// Pending reports how many unterminated frame bytes are buffered.
func (d *Decoder) Pending() int {
	return len(d.pending)
}

// closeRun handles a delimiter: the bytes since the previous delimiter
// (or chunk start) join any buffered partial frame and the result is
// delivered. Empty runs between adjacent delimiters carry nothing and
// are dropped silently.
func (d *Decoder) closeRun(run []byte) {
	if d.overflowed {
		d.overflowed = false
		d.state = stateIdle
		return
	}
	if d.state == stateAccumulating {
		if d.maxFrameLen > 0 && len(d.pending)+len(run) > d.maxFrameLen {
			debugf("decoder dropped oversized frame (%d buffered + %d)", len(d.pending), len(run))
		} else {
			d.pending = append(d.pending, run...)
			d.deliver(d.pending)
		}
		d.pending = d.pending[:0]
		d.state = stateIdle
		return
	}
	if len(run) == 0 {
		return
	}
	if d.maxFrameLen > 0 && len(run) > d.maxFrameLen {
		debugf("decoder dropped oversized frame (%d bytes)", len(run))
		return
	}
	d.deliver(run)
}

// buffer extends the partial frame with trailing bytes that no
// delimiter has closed yet.
func (d *Decoder) buffer(tail []byte) {
	if d.overflowed {
		return
	}
	if d.maxFrameLen > 0 && len(d.pending)+len(tail) > d.maxFrameLen {
		debugf("decoder partial frame exceeded %d bytes, dropping frame", d.maxFrameLen)
		d.overflowed = true
		d.pending = d.pending[:0]
		d.state = stateAccumulating
		return
	}
	d.pending = append(d.pending, tail...)
	d.state = stateAccumulating
}

// deliver applies the message interpretation rule to one complete run:
// first byte is the command byte, the rest is content to unescape.
func (d *Decoder) deliver(raw []byte) {
	cmd := raw[0]
	content := Unescape(raw[1:])
	if d.OnFrame != nil {
		d.OnFrame(Frame{Command: cmd, Data: content})
		return
	}
	if d.OnMessage == nil {
		return
	}
	if d.withCommand {
		msg := make([]byte, 0, len(content)+1)
		msg = append(msg, cmd)
		msg = append(msg, content...)
		d.OnMessage(msg)
		return
	}
	d.OnMessage(content)
}
