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

package i2c

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"

	kiss "github.com/tncware/go-kiss"
)

// scriptBus fakes an I2C bus the way a TNC board behaves: every read
// transfer is filled completely, scripted data first, frame-delimiter
// idle fill for the rest.
type scriptBus struct {
	err    error
	reads  [][]byte
	writes [][]byte
}

func (*scriptBus) String() string { return "script" }

func (*scriptBus) SetSpeed(physic.Frequency) error { return nil }

func (b *scriptBus) Tx(_ uint16, w, r []byte) error {
	if b.err != nil {
		return b.err
	}
	if len(w) > 0 {
		b.writes = append(b.writes, append([]byte(nil), w...))
	}
	if len(r) > 0 {
		fill := bytes.Repeat([]byte{kiss.FEND}, len(r))
		if len(b.reads) > 0 {
			copy(fill, b.reads[0])
			b.reads = b.reads[1:]
		}
		copy(r, fill)
	}
	return nil
}

// newScriptTransport wires a Transport to a scripted bus without
// touching real hardware.
func newScriptTransport(bus *scriptBus) *Transport {
	return &Transport{
		dev:         &i2c.Dev{Addr: DefaultAddress, Bus: bus},
		busName:     "script",
		addr:        DefaultAddress,
		readTimeout: 50 * time.Millisecond,
	}
}

func TestTransportRead(t *testing.T) {
	t.Parallel()

	frame := []byte{kiss.FEND, 0x00, 'h', 'i', kiss.FEND}
	bus := &scriptBus{reads: [][]byte{frame}}
	tr := newScriptTransport(bus)

	buf := make([]byte, 64)
	n, err := tr.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, readChunkSize, n, "bus transfers are fixed-size")
	assert.Equal(t, frame, buf[:len(frame)])

	// The rest of the transfer is idle fill, which the frame layer
	// ignores.
	for _, b := range buf[len(frame):n] {
		assert.EqualValues(t, kiss.FEND, b)
	}
}

func TestTransportReadSkipsIdleTransfers(t *testing.T) {
	t.Parallel()

	frame := []byte{kiss.FEND, 0x00, 'x', kiss.FEND}
	// Two idle transfers before the board has data.
	bus := &scriptBus{reads: [][]byte{{}, {}, frame}}
	tr := newScriptTransport(bus)

	buf := make([]byte, readChunkSize)
	n, err := tr.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, frame, buf[:len(frame)])
	assert.Equal(t, readChunkSize, n)
}

func TestTransportReadTimeout(t *testing.T) {
	t.Parallel()

	bus := &scriptBus{}
	tr := newScriptTransport(bus)
	require.NoError(t, tr.SetReadTimeout(5*time.Millisecond))

	_, err := tr.Read(make([]byte, readChunkSize))
	assert.ErrorIs(t, err, kiss.ErrTransportTimeout)
}

func TestTransportReadBusError(t *testing.T) {
	t.Parallel()

	busErr := errors.New("bus stuck")
	tr := newScriptTransport(&scriptBus{err: busErr})

	_, err := tr.Read(make([]byte, 8))
	assert.ErrorIs(t, err, kiss.ErrTransportRead)
	assert.ErrorIs(t, err, busErr)
}

func TestTransportWriteChunks(t *testing.T) {
	t.Parallel()

	bus := &scriptBus{}
	tr := newScriptTransport(bus)

	payload := bytes.Repeat([]byte{0xAB}, writeChunkSize*2+16)
	n, err := tr.Write(payload)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)

	require.Len(t, bus.writes, 3)
	assert.Len(t, bus.writes[0], writeChunkSize)
	assert.Len(t, bus.writes[1], writeChunkSize)
	assert.Len(t, bus.writes[2], 16)
	assert.Equal(t, payload, bytes.Join(bus.writes, nil))
}

func TestTransportWriteBusError(t *testing.T) {
	t.Parallel()

	busErr := errors.New("nak")
	tr := newScriptTransport(&scriptBus{err: busErr})

	_, err := tr.Write([]byte{0x01})
	assert.ErrorIs(t, err, kiss.ErrTransportWrite)
}

func TestTransportClosed(t *testing.T) {
	t.Parallel()

	tr := newScriptTransport(&scriptBus{})
	tr.closed = true

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

	tr := newScriptTransport(&scriptBus{})
	assert.Equal(t, kiss.TransportI2C, tr.Type())
	assert.Equal(t, "script", tr.BusName())
	assert.True(t, tr.IsConnected())

	// I2C boards run KISS permanently, so no exit capability is
	// reported.
	assert.False(t, kiss.TransportHasCapability(tr, kiss.CapabilityExitKISSMode))
}

func TestWithAddressValidation(t *testing.T) {
	t.Parallel()

	tr := &Transport{}
	require.NoError(t, WithAddress(0x10)(tr))
	assert.EqualValues(t, 0x10, tr.addr)

	assert.ErrorIs(t, WithAddress(0x02)(tr), kiss.ErrInvalidParameter)
	assert.ErrorIs(t, WithAddress(0x78)(tr), kiss.ErrInvalidParameter)
}

func TestAllIdleFill(t *testing.T) {
	t.Parallel()

	assert.True(t, allIdleFill(nil))
	assert.True(t, allIdleFill([]byte{kiss.FEND, kiss.FEND}))
	assert.False(t, allIdleFill([]byte{kiss.FEND, 0x00}))
}
