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
	"os"
	"sync/atomic"
)

// debugEnabled gates the package's diagnostic output. Off by default.
var debugEnabled atomic.Bool

// SetDebugEnabled switches diagnostic logging to stderr on or off for
// the whole package. Intended for troubleshooting tools; leave off in
// production paths.
func SetDebugEnabled(enabled bool) {
	debugEnabled.Store(enabled)
}

func debugf(format string, args ...any) {
	if !debugEnabled.Load() {
		return
	}
	fmt.Fprintf(os.Stderr, "kiss: "+format+"\n", args...)
}

func debugln(args ...any) {
	if !debugEnabled.Load() {
		return
	}
	fmt.Fprintln(os.Stderr, append([]any{"kiss:"}, args...)...)
}
