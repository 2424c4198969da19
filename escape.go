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

// Escape returns data with every reserved wire byte replaced by its
// two-byte escape sequence: FEND becomes FESC TFEND and FESC becomes
// FESC TFESC. All other bytes pass through unchanged. The input slice is
// never modified.
func Escape(data []byte) []byte {
	escaped := make([]byte, 0, len(data))
	for _, b := range data {
		switch b {
		case FEND:
			escaped = append(escaped, FESC, TFEND)
		case FESC:
			escaped = append(escaped, FESC, TFESC)
		default:
			escaped = append(escaped, b)
		}
	}
	return escaped
}

// Unescape reverses Escape: FESC TFEND decodes to FEND and FESC TFESC
// decodes to FESC. A FESC followed by any other byte is a malformed
// escape sequence; both bytes are dropped and decoding continues, so
// line noise degrades the payload instead of killing the stream. A lone
// FESC at the end of data is dropped the same way. Input without escape
// sequences passes through unchanged.
func Unescape(data []byte) []byte {
	unescaped := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		b := data[i]
		if b != FESC {
			unescaped = append(unescaped, b)
			continue
		}
		i++
		if i >= len(data) {
			break
		}
		switch data[i] {
		case TFEND:
			unescaped = append(unescaped, FEND)
		case TFESC:
			unescaped = append(unescaped, FESC)
		}
	}
	return unescaped
}
