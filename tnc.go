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
	"fmt"
	"io"
	"time"

	"github.com/tncware/go-kiss/detection"
)

// readBufferSize is the chunk size Listen reads from the transport.
const readBufferSize = 4096

// TNCConfig contains configuration options for the TNC session.
type TNCConfig struct {
	// RetryConfig configures retry behavior for transport writes.
	RetryConfig *RetryConfig
	// Timeout is the default timeout for send operations.
	Timeout time.Duration
	// PollInterval bounds each Listen read so context cancellation is
	// noticed on an otherwise silent link.
	PollInterval time.Duration
}

// DefaultTNCConfig returns the default session configuration.
func DefaultTNCConfig() *TNCConfig {
	return &TNCConfig{
		RetryConfig:  DefaultRetryConfig(),
		Timeout:      time.Second,
		PollInterval: 200 * time.Millisecond,
	}
}

// TNC is one KISS session with a TNC over a Transport: an Encoder for
// the outbound direction, a Decoder for the inbound one, and the
// housekeeping around them. Creating the session emits the parameter
// frames supplied through WithEncoderOptions; closing it returns a
// hardware TNC to command mode.
//
// Thread Safety: TNC is NOT thread-safe. All methods must be called
// from a single goroutine or protected with external synchronization.
// The common split of one goroutine in Listen and another calling Send
// is safe only if the underlying transport serializes reads against
// writes, which serial ports and TCP sockets do.
type TNC struct {
	transport   Transport
	config      *TNCConfig
	enc         *Encoder
	dec         *Decoder
	encoderOpts []EncoderOption
	decoderOpts []DecoderOption
	port        int
	exitKISS    bool
	closed      bool
}

// New creates a TNC session on the given port (0-15). Parameter frames
// for options supplied via WithEncoderOptions are written to the
// transport before New returns. The exit-KISS-on-close behavior
// defaults to the transport's CapabilityExitKISSMode answer; override
// it with WithExitKISS.
func New(transport Transport, port int, opts ...Option) (*TNC, error) {
	if !validPort(port) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}
	t := &TNC{
		transport: transport,
		config:    DefaultTNCConfig(),
		port:      port,
		exitKISS:  TransportHasCapability(transport, CapabilityExitKISSMode),
	}

	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}

	enc, err := NewEncoder(t.transport, port, t.encoderOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}
	t.enc = enc
	t.dec = NewDecoder(t.decoderOpts...)

	return t, nil
}

// TransportFactory is a function type for creating transports from a
// device path.
type TransportFactory func(path string) (Transport, error)

// TransportFromDeviceFactory is a function type for creating transports
// from detected devices.
type TransportFromDeviceFactory func(device detection.DeviceInfo) (Transport, error)

// ConnectOption represents a functional option for Connect.
type ConnectOption func(*connectConfig) error

// connectConfig holds configuration options for session connection.
type connectConfig struct {
	transportFactory       TransportFactory
	transportDeviceFactory TransportFromDeviceFactory
	tncOptions             []Option
	timeout                time.Duration
	port                   int
	autoDetect             bool
}

// WithAutoDetection enables automatic device detection instead of using
// a specific path.
func WithAutoDetection() ConnectOption {
	return func(c *connectConfig) error {
		c.autoDetect = true
		return nil
	}
}

// WithTNCPort selects the TNC port for the session. Defaults to 0, the
// only port most TNCs have.
func WithTNCPort(port int) ConnectOption {
	return func(c *connectConfig) error {
		if !validPort(port) {
			return fmt.Errorf("%w: %d", ErrInvalidPort, port)
		}
		c.port = port
		return nil
	}
}

// WithTNCOptions adds session-level options.
func WithTNCOptions(opts ...Option) ConnectOption {
	return func(c *connectConfig) error {
		c.tncOptions = append(c.tncOptions, opts...)
		return nil
	}
}

// WithConnectTimeout sets the session connection timeout.
func WithConnectTimeout(timeout time.Duration) ConnectOption {
	return func(c *connectConfig) error {
		c.timeout = timeout
		return nil
	}
}

// WithTransportFactory sets the transport factory function.
func WithTransportFactory(factory TransportFactory) ConnectOption {
	return func(c *connectConfig) error {
		c.transportFactory = factory
		return nil
	}
}

// WithTransportFromDeviceFactory sets the transport factory used for
// auto-detected devices.
func WithTransportFromDeviceFactory(factory TransportFromDeviceFactory) ConnectOption {
	return func(c *connectConfig) error {
		c.transportDeviceFactory = factory
		return nil
	}
}

func applyConnectOptions(opts []ConnectOption) (*connectConfig, error) {
	config := &connectConfig{
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, fmt.Errorf("failed to apply connect option: %w", err)
		}
	}
	return config, nil
}

func createTransport(path string, config *connectConfig) (Transport, error) {
	if config.autoDetect || path == "" {
		return createAutoDetectedTransport(config.transportDeviceFactory)
	}
	return createManualTransport(path, config.transportFactory)
}

// createManualTransport handles creation of a transport for a specific
// path.
func createManualTransport(path string, factory TransportFactory) (Transport, error) {
	if factory == nil {
		return nil, errors.New("transport factory not provided")
	}
	transport, err := factory(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport for path %s: %w", path, err)
	}
	return transport, nil
}

// createAutoDetectedTransport builds a transport for the first detected
// TNC device.
func createAutoDetectedTransport(factory TransportFromDeviceFactory) (Transport, error) {
	opts := detection.DefaultOptions()
	devices, err := detection.DetectAll(&opts)
	if err != nil {
		return nil, fmt.Errorf("failed to detect devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("%w: no TNC candidates detected", ErrDeviceNotFound)
	}
	if factory == nil {
		return nil, errors.New("transport device factory not provided")
	}
	return factory(devices[0])
}

func setupTNC(transport Transport, config *connectConfig) (*TNC, error) {
	tnc, err := New(transport, config.port, config.tncOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	if config.timeout > 0 {
		if err := tnc.SetTimeout(config.timeout); err != nil {
			return nil, fmt.Errorf("failed to set timeout: %w", err)
		}
	}
	return tnc, nil
}

// Connect creates a TNC session from a device path or auto-detection.
// This is a high-level convenience that handles transport creation and
// session setup. The transport factories decide what a path means, so
// callers wire them in:
//
//	// Connect to a specific device
//	tnc, err := kiss.Connect("/dev/ttyUSB0",
//	    kiss.WithTransportFactory(openSerial))
//
//	// Auto-detect a TNC
//	tnc, err := kiss.Connect("",
//	    kiss.WithAutoDetection(),
//	    kiss.WithTransportFromDeviceFactory(openDetected))
func Connect(path string, opts ...ConnectOption) (*TNC, error) {
	config, err := applyConnectOptions(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to apply connect options: %w", err)
	}

	transport, err := createTransport(path, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	tnc, err := setupTNC(transport, config)
	if err != nil {
		_ = transport.Close()
		return nil, err
	}
	return tnc, nil
}

// Transport returns the underlying transport.
func (t *TNC) Transport() Transport {
	return t.transport
}

// Port returns the TNC port this session addresses.
func (t *TNC) Port() int {
	return t.port
}

// SetTimeout sets the default timeout for operations.
func (t *TNC) SetTimeout(timeout time.Duration) error {
	t.config.Timeout = timeout
	if err := t.transport.SetReadTimeout(timeout); err != nil {
		return fmt.Errorf("failed to set timeout on transport: %w", err)
	}
	return nil
}

// SetRetryConfig updates the retry configuration.
func (t *TNC) SetRetryConfig(config *RetryConfig) {
	t.config.RetryConfig = config
	if tr, ok := t.transport.(*TransportWithRetry); ok {
		tr.SetRetryConfig(config)
	}
}

// Send transmits one payload as one KISS data frame.
func (t *TNC) Send(payload []byte) error {
	return t.SendContext(context.Background(), payload)
}

// SendContext is Send bounded by a context. The context is checked
// before the write; the write itself is bounded by the transport's
// timeout and retry configuration.
func (t *TNC) SendContext(ctx context.Context, payload []byte) error {
	if t.closed {
		return NewClosedError("send", "")
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("send canceled: %w", err)
	}
	if _, err := t.enc.Write(payload); err != nil {
		return err
	}
	return nil
}

// SetTXDelay adjusts the transmitter keyup delay at runtime. Unlike the
// construction-time option, an explicit zero is sent to the TNC.
func (t *TNC) SetTXDelay(d time.Duration) error {
	if err := validateTickRange("tx delay", d); err != nil {
		return err
	}
	return t.writeParam(CmdTXDelay, []byte{byte(d / tickUnit)})
}

// SetPersistence adjusts the CSMA persistence parameter at runtime.
func (t *TNC) SetPersistence(p byte) error {
	return t.writeParam(CmdPersistence, []byte{p})
}

// SetSlotTime adjusts the CSMA slot interval at runtime.
func (t *TNC) SetSlotTime(d time.Duration) error {
	if err := validateTickRange("slot time", d); err != nil {
		return err
	}
	return t.writeParam(CmdSlotTime, []byte{byte(d / tickUnit)})
}

// SetTXTail adjusts the post-data keydown time at runtime.
func (t *TNC) SetTXTail(d time.Duration) error {
	if err := validateTickRange("tx tail", d); err != nil {
		return err
	}
	return t.writeParam(CmdTXTail, []byte{byte(d / tickUnit)})
}

// SetFullDuplex switches the TNC between full and half duplex at
// runtime.
func (t *TNC) SetFullDuplex(on bool) error {
	value := []byte{0x00}
	if on {
		value[0] = 0x01
	}
	return t.writeParam(CmdFullDuplex, value)
}

// SetHardware sends a hardware-specific parameter frame. The bytes go
// out as given; their meaning is defined by the TNC firmware.
func (t *TNC) SetHardware(value []byte) error {
	return t.writeParam(CmdSetHardware, value)
}

// SetHardwareString is SetHardware for firmware that speaks "KEY:VALUE"
// text parameters.
func (t *TNC) SetHardwareString(value string) error {
	return t.SetHardware([]byte(value))
}

func (t *TNC) writeParam(kind CommandKind, value []byte) error {
	if t.closed {
		return NewClosedError("set "+kind.String(), "")
	}
	return t.enc.WriteCommand(kind, value)
}

// Listen reads the transport and delivers every decoded frame to
// handler until the context ends or the link fails. Frames from all
// ports are delivered; check Frame.Port if the TNC multiplexes.
//
// An io.EOF from the transport is an orderly end of stream: a final
// unterminated frame is flushed to handler and Listen returns nil.
// Context cancellation returns the context's error without flushing.
// Read timeouts just wake the loop to observe cancellation.
func (t *TNC) Listen(ctx context.Context, handler func(Frame)) error {
	if handler == nil {
		return fmt.Errorf("%w: nil frame handler", ErrInvalidParameter)
	}
	if t.closed {
		return NewClosedError("listen", "")
	}

	if err := t.transport.SetReadTimeout(t.config.PollInterval); err != nil {
		debugf("listen: transport rejected poll timeout: %v", err)
	}

	prev := t.dec.OnFrame
	t.dec.OnFrame = handler
	defer func() { t.dec.OnFrame = prev }()

	buf := make([]byte, readBufferSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := t.transport.Read(buf)
		if n > 0 {
			if _, werr := t.dec.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			if cerr := t.dec.Close(); cerr != nil {
				return cerr
			}
			return nil
		}
		if GetErrorType(err) == ErrorTypeTimeout {
			continue
		}
		return fmt.Errorf("listen: %w", err)
	}
}

// Close ends the session: hardware TNCs get the exit-KISS frame so they
// return to command mode, then the transport is closed. Network KISS
// servers are left in KISS mode for their other clients. Close is
// idempotent.
func (t *TNC) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true

	var exitErr error
	if t.exitKISS {
		if err := t.enc.Close(); err != nil {
			exitErr = fmt.Errorf("failed to exit KISS mode: %w", err)
		}
	}
	if t.transport != nil {
		if err := t.transport.Close(); err != nil {
			return fmt.Errorf("failed to close transport: %w", err)
		}
	}
	return exitErr
}
