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
	"math/rand"
	"time"
)

// RetryConfig controls how transport write failures are retried.
type RetryConfig struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int
	// InitialBackoff is the delay before the second attempt.
	InitialBackoff time.Duration
	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration
	// BackoffMultiplier scales the delay after each failed attempt.
	BackoffMultiplier float64
	// Jitter randomizes each delay by up to this fraction in either
	// direction, decorrelating competing writers on a shared bus.
	Jitter float64
	// RetryTimeout bounds the whole retry loop. Zero means no bound
	// beyond the caller's context.
	RetryTimeout time.Duration
}

// DefaultRetryConfig returns the retry policy used when none is
// supplied: three attempts over roughly half a second.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            0.1,
		RetryTimeout:      5 * time.Second,
	}
}

// RetryWithConfig runs fn until it succeeds, returns a non-retryable
// error, exhausts config.MaxAttempts, or the context ends. Between
// attempts it sleeps an exponentially growing, jittered backoff.
// Retryability is decided by IsRetryable, so fn should return sentinel
// or TransportError values.
func RetryWithConfig(ctx context.Context, config *RetryConfig, fn func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if config.RetryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.RetryTimeout)
		defer cancel()
	}

	maxAttempts := config.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	backoff := config.InitialBackoff
	var lastErr error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) || attempt >= maxAttempts {
			return lastErr
		}

		debugf("retrying after attempt %d: %v", attempt, lastErr)
		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(jitteredDelay(backoff, config.Jitter)):
		}
		backoff = nextBackoff(backoff, config)
	}
}

// jitteredDelay spreads d by up to ±jitter fraction.
func jitteredDelay(d time.Duration, jitter float64) time.Duration {
	if d <= 0 {
		return 0
	}
	if jitter <= 0 {
		return d
	}
	spread := (rand.Float64()*2 - 1) * jitter
	return time.Duration(float64(d) * (1 + spread))
}

// nextBackoff grows the delay for the following attempt, capped at
// MaxBackoff.
func nextBackoff(current time.Duration, config *RetryConfig) time.Duration {
	multiplier := config.BackoffMultiplier
	if multiplier < 1 {
		multiplier = 1
	}
	next := time.Duration(float64(current) * multiplier)
	if config.MaxBackoff > 0 && next > config.MaxBackoff {
		next = config.MaxBackoff
	}
	return next
}
