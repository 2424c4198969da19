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
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kisstest "github.com/tncware/go-kiss/internal/testing"
)

func TestNewValidatesPort(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	_, err := New(mock, 16)
	assert.ErrorIs(t, err, ErrInvalidPort)

	tnc, err := New(mock, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, tnc.Port())
	assert.Same(t, mock, tnc.Transport())
}

func TestNewEmitsInitFrames(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	_, err := New(mock, 0, WithEncoderOptions(
		WithTXDelay(300*time.Millisecond),
		WithPersistence(63),
	))
	require.NoError(t, err)

	expected := kisstest.BuildParamFrame(0, kisstest.KindTXDelay, 0x1E)
	expected = append(expected, kisstest.BuildParamFrame(0, kisstest.KindPersistence, 0x3F)...)
	assert.Equal(t, expected, mock.Written())
}

func TestNewRejectsBadEncoderOption(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	_, err := New(mock, 0, WithEncoderOptions(WithTXDelay(-time.Second)))
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestNewRejectsBadSessionOption(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	_, err := New(mock, 0, WithPollInterval(-time.Second))
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestTNCSend(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	tnc, err := New(mock, 2)
	require.NoError(t, err)

	require.NoError(t, tnc.Send([]byte("APRS payload")))
	assert.Equal(t, kisstest.BuildDataFrame(2, []byte("APRS payload")), mock.Written())

	mock.ResetWritten()
	require.NoError(t, tnc.Send(kisstest.TestPayloadReserved))
	assert.Equal(t, kisstest.BuildDataFrame(2, kisstest.TestPayloadReserved), mock.Written())
}

func TestTNCSendContextCancelled(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	tnc, err := New(mock, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = tnc.SendContext(ctx, []byte("late"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, mock.Written())
}

func TestTNCRuntimeParameters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		call     func(*TNC) error
		expected []byte
	}{
		{
			name:     "tx delay",
			call:     func(tnc *TNC) error { return tnc.SetTXDelay(500 * time.Millisecond) },
			expected: kisstest.BuildParamFrame(1, kisstest.KindTXDelay, 0x32),
		},
		{
			name: "explicit zero tx delay is sent",
			call: func(tnc *TNC) error { return tnc.SetTXDelay(0) },
			// Runtime zero differs from the construction-time option,
			// where zero means "leave the TNC default".
			expected: kisstest.BuildParamFrame(1, kisstest.KindTXDelay, 0x00),
		},
		{
			name:     "persistence",
			call:     func(tnc *TNC) error { return tnc.SetPersistence(128) },
			expected: kisstest.BuildParamFrame(1, kisstest.KindPersistence, 0x80),
		},
		{
			name:     "slot time",
			call:     func(tnc *TNC) error { return tnc.SetSlotTime(100 * time.Millisecond) },
			expected: kisstest.BuildParamFrame(1, kisstest.KindSlotTime, 0x0A),
		},
		{
			name:     "tx tail",
			call:     func(tnc *TNC) error { return tnc.SetTXTail(30 * time.Millisecond) },
			expected: kisstest.BuildParamFrame(1, kisstest.KindTXTail, 0x03),
		},
		{
			name:     "full duplex on",
			call:     func(tnc *TNC) error { return tnc.SetFullDuplex(true) },
			expected: kisstest.BuildParamFrame(1, kisstest.KindFullDuplex, 0x01),
		},
		{
			name:     "full duplex off",
			call:     func(tnc *TNC) error { return tnc.SetFullDuplex(false) },
			expected: kisstest.BuildParamFrame(1, kisstest.KindFullDuplex, 0x00),
		},
		{
			name:     "hardware string",
			call:     func(tnc *TNC) error { return tnc.SetHardwareString("TXPOWER:HIGH") },
			expected: kisstest.BuildParamFrame(1, kisstest.KindSetHardware, []byte("TXPOWER:HIGH")...),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mock := NewMockTransport()
			tnc, err := New(mock, 1)
			require.NoError(t, err)

			require.NoError(t, tt.call(tnc))
			assert.Equal(t, tt.expected, mock.Written())
		})
	}
}

func TestTNCParameterValidation(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	tnc, err := New(mock, 0)
	require.NoError(t, err)

	assert.ErrorIs(t, tnc.SetTXDelay(-time.Second), ErrInvalidParameter)
	assert.ErrorIs(t, tnc.SetSlotTime(3*time.Second), ErrInvalidParameter)
	assert.ErrorIs(t, tnc.SetTXTail(time.Hour), ErrInvalidParameter)
	assert.Empty(t, mock.Written())
}

func TestTNCOperationsAfterClose(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	tnc, err := New(mock, 0)
	require.NoError(t, err)
	require.NoError(t, tnc.Close())

	assert.ErrorIs(t, tnc.Send([]byte("x")), ErrTransportClosed)
	assert.ErrorIs(t, tnc.SetTXDelay(time.Second), ErrTransportClosed)
	assert.ErrorIs(t, tnc.SetPersistence(1), ErrTransportClosed)
	assert.ErrorIs(t, tnc.SetHardwareString("X"), ErrTransportClosed)
	assert.ErrorIs(t, tnc.Listen(context.Background(), func(Frame) {}), ErrTransportClosed)
}

func TestTNCListenDeliversFrames(t *testing.T) {
	t.Parallel()

	peer := kisstest.NewVirtualTNC(0)
	peer.QueueIdleFill(2)
	peer.QueueData([]byte("first"))
	peer.QueueData([]byte("second"))

	mock := NewMockTransport()
	for _, chunk := range peer.Chunks(3) {
		mock.QueueRead(chunk)
	}

	tnc, err := New(mock, 0)
	require.NoError(t, err)

	var frames []Frame
	err = tnc.Listen(context.Background(), func(f Frame) {
		frames = append(frames, f)
	})
	require.NoError(t, err, "EOF is an orderly end of stream")

	require.Len(t, frames, 2)
	assert.Equal(t, []byte("first"), frames[0].Data)
	assert.Equal(t, []byte("second"), frames[1].Data)
	assert.Equal(t, CmdData, frames[0].Kind())
}

func TestTNCListenFlushesFinalPartialFrame(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	// Stream ends mid-frame; EOF must flush what accumulated.
	mock.QueueRead([]byte{FEND, 0x00, 'e', 'n', 'd'})

	tnc, err := New(mock, 0)
	require.NoError(t, err)

	var frames []Frame
	err = tnc.Listen(context.Background(), func(f Frame) {
		frames = append(frames, f)
	})
	require.NoError(t, err)

	require.Len(t, frames, 1)
	assert.Equal(t, []byte("end"), frames[0].Data)
}

func TestTNCListenNilHandler(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	tnc, err := New(mock, 0)
	require.NoError(t, err)

	assert.ErrorIs(t, tnc.Listen(context.Background(), nil), ErrInvalidParameter)
}

func TestTNCListenTimeoutsKeepPolling(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	// A quiet line: reads time out instead of ending the stream.
	mock.DrainError = nil
	mock.QueueRead(kisstest.BuildDataFrame(0, []byte("once")))

	tnc, err := New(mock, 0, WithPollInterval(time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var frames []Frame
	err = tnc.Listen(ctx, func(f Frame) {
		frames = append(frames, f)
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	require.Len(t, frames, 1, "frame delivered before the line went quiet")
}

func TestTNCListenCancellationWhileBlocked(t *testing.T) {
	t.Parallel()

	blocking := NewBlockingMockTransport()
	tnc, err := New(blocking, 0, WithPollInterval(5*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- tnc.Listen(ctx, func(Frame) {})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Listen did not observe cancellation")
	}
}

func TestTNCListenLinkFailure(t *testing.T) {
	t.Parallel()

	linkErr := errors.New("carrier lost")
	mock := NewMockTransport()
	mock.DrainError = linkErr

	tnc, err := New(mock, 0)
	require.NoError(t, err)

	err = tnc.Listen(context.Background(), func(Frame) {})
	assert.ErrorIs(t, err, linkErr)
}

func TestTNCCloseSendsExitFrameForHardwareTNC(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.SetCapability(CapabilityExitKISSMode, true)

	tnc, err := New(mock, 4)
	require.NoError(t, err)

	require.NoError(t, tnc.Close())
	assert.Equal(t, kisstest.BuildExitFrame(), mock.Written(),
		"exit frame addresses all ports, not just the session's")
	assert.False(t, mock.IsConnected())

	// Idempotent.
	require.NoError(t, tnc.Close())
	assert.Equal(t, kisstest.BuildExitFrame(), mock.Written())
}

func TestTNCCloseLeavesNetworkTNCInKISSMode(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()

	tnc, err := New(mock, 0)
	require.NoError(t, err)

	require.NoError(t, tnc.Close())
	assert.Empty(t, mock.Written())
	assert.False(t, mock.IsConnected())
}

func TestTNCExitKISSOverride(t *testing.T) {
	t.Parallel()

	t.Run("forced on", func(t *testing.T) {
		t.Parallel()
		mock := NewMockTransport()
		tnc, err := New(mock, 0, WithExitKISS(true))
		require.NoError(t, err)
		require.NoError(t, tnc.Close())
		assert.Equal(t, kisstest.BuildExitFrame(), mock.Written())
	})

	t.Run("forced off", func(t *testing.T) {
		t.Parallel()
		mock := NewMockTransport()
		mock.SetCapability(CapabilityExitKISSMode, true)
		tnc, err := New(mock, 0, WithExitKISS(false))
		require.NoError(t, err)
		require.NoError(t, tnc.Close())
		assert.Empty(t, mock.Written())
	})
}

func TestTNCSendThroughRetryTransport(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	mock.FailWrites(2, nil)

	rt := NewTransportWithRetry(mock, fastRetryConfig(5))
	tnc, err := New(rt, 0)
	require.NoError(t, err)

	require.NoError(t, tnc.Send([]byte("persistent")))
	assert.Equal(t, kisstest.BuildDataFrame(0, []byte("persistent")), mock.Written())
}

func TestTNCSetRetryConfigPropagates(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	rt := NewTransportWithRetry(mock, fastRetryConfig(5))
	tnc, err := New(rt, 0)
	require.NoError(t, err)

	tnc.SetRetryConfig(fastRetryConfig(1))

	mock.FailWrites(1, nil)
	assert.ErrorIs(t, tnc.Send([]byte("x")), ErrTransportWrite,
		"single-attempt policy fails on the first error")
}

func TestTNCOptionWiring(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	rt := NewTransportWithRetry(mock, nil)
	tnc, err := New(rt, 0,
		WithTimeout(2*time.Second),
		WithMaxRetries(1),
		WithRetryBackoff(time.Microsecond),
		WithPollInterval(50*time.Millisecond),
	)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, tnc.config.Timeout)
	assert.Equal(t, 1, tnc.config.RetryConfig.MaxAttempts)
	assert.Equal(t, time.Microsecond, tnc.config.RetryConfig.InitialBackoff)
	assert.Equal(t, 50*time.Millisecond, tnc.config.PollInterval)

	mock.FailWrites(1, nil)
	assert.ErrorIs(t, tnc.Send([]byte("x")), ErrTransportWrite)
}

func TestConnectWithFactory(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	var gotPath string
	factory := func(path string) (Transport, error) {
		gotPath = path
		return mock, nil
	}

	tnc, err := Connect("/dev/ttyUSB0",
		WithTransportFactory(factory),
		WithTNCPort(3),
	)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", gotPath)
	assert.Equal(t, 3, tnc.Port())
	assert.Same(t, mock, tnc.Transport())
}

func TestConnectWithoutFactory(t *testing.T) {
	t.Parallel()

	_, err := Connect("/dev/ttyUSB0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transport factory not provided")
}

func TestConnectFactoryFailure(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("port busy")
	_, err := Connect("/dev/ttyUSB0", WithTransportFactory(func(string) (Transport, error) {
		return nil, wantErr
	}))
	assert.ErrorIs(t, err, wantErr)
}

func TestConnectClosesTransportOnSetupFailure(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	_, err := Connect("/dev/ttyUSB0",
		WithTransportFactory(func(string) (Transport, error) { return mock, nil }),
		WithTNCOptions(WithPollInterval(-1)),
	)
	require.Error(t, err)
	assert.False(t, mock.IsConnected(), "failed setup must not leak the transport")
}

func TestConnectRejectsBadPort(t *testing.T) {
	t.Parallel()

	_, err := Connect("/dev/ttyUSB0", WithTNCPort(99))
	assert.ErrorIs(t, err, ErrInvalidPort)
}
