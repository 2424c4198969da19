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
	"errors"
	"fmt"
)

// Sentinel errors returned by the codec, device layer and transports.
// Wrap with fmt.Errorf("...: %w", err) to add context; match with
// errors.Is.
var (
	// ErrInvalidPort indicates a port index outside 0-15.
	ErrInvalidPort = errors.New("invalid port index")
	// ErrInvalidParameter indicates a TNC parameter value outside its
	// wire range.
	ErrInvalidParameter = errors.New("invalid parameter value")
	// ErrEncoderClosed is returned by encoder writes after Close.
	ErrEncoderClosed = errors.New("encoder closed")
	// ErrDecoderClosed is returned by decoder writes after Close.
	ErrDecoderClosed = errors.New("decoder closed")
	// ErrTransportRead indicates a failed transport read.
	ErrTransportRead = errors.New("transport read failed")
	// ErrTransportWrite indicates a failed transport write.
	ErrTransportWrite = errors.New("transport write failed")
	// ErrTransportTimeout indicates a transport operation deadline
	// expired.
	ErrTransportTimeout = errors.New("transport timeout")
	// ErrTransportClosed indicates an operation on a closed transport.
	ErrTransportClosed = errors.New("transport closed")
	// ErrDeviceNotFound indicates no TNC device could be located.
	ErrDeviceNotFound = errors.New("device not found")
)

// ErrorType classifies how a failure should be handled by callers and by
// the retry layer.
type ErrorType int

const (
	// ErrorTypeTransient marks failures worth retrying immediately,
	// such as a glitched read on a noisy serial line.
	ErrorTypeTransient ErrorType = iota
	// ErrorTypeTimeout marks deadline expiries; retryable, usually with
	// backoff.
	ErrorTypeTimeout
	// ErrorTypePermanent marks failures retrying cannot fix, such as a
	// missing device or an invalid parameter.
	ErrorTypePermanent
)

// String returns the classification name for log output.
func (t ErrorType) String() string {
	switch t {
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeTimeout:
		return "timeout"
	case ErrorTypePermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// TransportError wraps a transport failure with the operation, the port
// it happened on and a retry classification.
type TransportError struct {
	// Err is the underlying error.
	Err error
	// Op names the failed operation ("read", "write", "open", "close").
	Op string
	// Port identifies the device path or address, if known.
	Port string
	// Type classifies the failure.
	Type ErrorType
	// Retryable reports whether the retry layer may repeat the
	// operation.
	Retryable bool
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError builds a TransportError with the retryable flag
// derived from the error type.
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Err:       err,
		Op:        op,
		Port:      port,
		Type:      errType,
		Retryable: errType != ErrorTypePermanent,
	}
}

// NewTimeoutError builds a retryable TransportError around
// ErrTransportTimeout.
func NewTimeoutError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportTimeout, ErrorTypeTimeout)
}

// NewReadError builds a retryable TransportError around
// ErrTransportRead, keeping err in the unwrap chain.
func NewReadError(port string, err error) *TransportError {
	return NewTransportError("read", port, fmt.Errorf("%w: %w", ErrTransportRead, err), ErrorTypeTransient)
}

// NewWriteError builds a retryable TransportError around
// ErrTransportWrite, keeping err in the unwrap chain.
func NewWriteError(port string, err error) *TransportError {
	return NewTransportError("write", port, fmt.Errorf("%w: %w", ErrTransportWrite, err), ErrorTypeTransient)
}

// NewClosedError builds a permanent TransportError around
// ErrTransportClosed.
func NewClosedError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportClosed, ErrorTypePermanent)
}

// sentinelTypes maps sentinel errors to their classification for
// IsRetryable and GetErrorType.
var sentinelTypes = []struct {
	err     error
	errType ErrorType
}{
	{ErrTransportTimeout, ErrorTypeTimeout},
	{ErrTransportRead, ErrorTypeTransient},
	{ErrTransportWrite, ErrorTypeTransient},
	{ErrTransportClosed, ErrorTypePermanent},
	{ErrDeviceNotFound, ErrorTypePermanent},
	{ErrInvalidPort, ErrorTypePermanent},
	{ErrInvalidParameter, ErrorTypePermanent},
	{ErrEncoderClosed, ErrorTypePermanent},
	{ErrDecoderClosed, ErrorTypePermanent},
}

// IsRetryable reports whether the retry layer may repeat the operation
// that produced err. A TransportError answers with its own Retryable
// flag; sentinel errors answer by classification; unknown errors are
// not retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}
	return GetErrorType(err) != ErrorTypePermanent
}

// GetErrorType classifies err. A TransportError carries its own type;
// sentinel errors are classified by the table above; anything unknown
// is treated as permanent so callers fail fast on surprises.
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ErrorTypePermanent
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Type
	}
	for _, s := range sentinelTypes {
		if errors.Is(err, s.err) {
			return s.errType
		}
	}
	return ErrorTypePermanent
}
