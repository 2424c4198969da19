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
	"time"
)

// Option is a functional option for configuring a TNC session.
type Option func(*TNC) error

// WithRetryConfig sets the retry configuration for the session.
func WithRetryConfig(config *RetryConfig) Option {
	return func(t *TNC) error {
		t.SetRetryConfig(config)
		return nil
	}
}

// WithTimeout sets the default timeout for session operations.
func WithTimeout(timeout time.Duration) Option {
	return func(t *TNC) error {
		return t.SetTimeout(timeout)
	}
}

// WithMaxRetries sets the maximum number of write attempts.
func WithMaxRetries(maxAttempts int) Option {
	return func(t *TNC) error {
		if t.config.RetryConfig == nil {
			t.config.RetryConfig = DefaultRetryConfig()
		}
		t.config.RetryConfig.MaxAttempts = maxAttempts
		if tr, ok := t.transport.(*TransportWithRetry); ok {
			tr.SetRetryConfig(t.config.RetryConfig)
		}
		return nil
	}
}

// WithRetryBackoff sets the initial backoff duration for retries.
func WithRetryBackoff(initialBackoff time.Duration) Option {
	return func(t *TNC) error {
		if t.config.RetryConfig == nil {
			t.config.RetryConfig = DefaultRetryConfig()
		}
		t.config.RetryConfig.InitialBackoff = initialBackoff
		if tr, ok := t.transport.(*TransportWithRetry); ok {
			tr.SetRetryConfig(t.config.RetryConfig)
		}
		return nil
	}
}

// WithPollInterval sets how often Listen wakes from a silent link to
// observe context cancellation.
func WithPollInterval(interval time.Duration) Option {
	return func(t *TNC) error {
		if interval <= 0 {
			return ErrInvalidParameter
		}
		t.config.PollInterval = interval
		return nil
	}
}

// WithEncoderOptions forwards options to the session's Encoder; this is
// how construction-time TNC parameters (TX delay, persistence, ...) are
// supplied.
func WithEncoderOptions(opts ...EncoderOption) Option {
	return func(t *TNC) error {
		t.encoderOpts = append(t.encoderOpts, opts...)
		return nil
	}
}

// WithDecoderOptions forwards options to the session's Decoder, which
// Listen feeds.
func WithDecoderOptions(opts ...DecoderOption) Option {
	return func(t *TNC) error {
		t.decoderOpts = append(t.decoderOpts, opts...)
		return nil
	}
}

// WithExitKISS overrides whether Close sends the exit-KISS frame. The
// default follows the transport's CapabilityExitKISSMode answer.
func WithExitKISS(on bool) Option {
	return func(t *TNC) error {
		t.exitKISS = on
		return nil
	}
}
