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

package detection

import "testing"

func TestIsBlocked(t *testing.T) {
	t.Parallel()

	blocklist := []string{"0483:374B", " 1366:0105 "}

	tests := []struct {
		name     string
		vidpid   string
		expected bool
	}{
		{"exact match", "0483:374B", true},
		{"lowercase match", "0483:374b", true},
		{"whitespace around input", "  0483:374B  ", true},
		{"entry with whitespace", "1366:0105", true},
		{"not listed", "0403:6015", false},
		{"empty vidpid", "", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsBlocked(tt.vidpid, blocklist); got != tt.expected {
				t.Errorf("IsBlocked(%q) = %v, want %v", tt.vidpid, got, tt.expected)
			}
		})
	}
}

func TestParseVIDPID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		descriptor string
		expected   string
	}{
		{"bare pair", "0403:6015", "0403:6015"},
		{"bare pair lowercase", "1a86:7523", "1A86:7523"},
		{"colon markers", "VID:0403 PID:6015", "0403:6015"},
		{"windows hardware id", `USB\VID_0403&PID_6015&REV_0600`, "0403:6015"},
		{"udev style", "vendor=10c4 product=ea60", "10C4:EA60"},
		{"equals markers", "vid=2e8a pid=000a", "2E8A:000A"},
		{"marker with space", "VID: 0483 PID: 5740", "0483:5740"},
		{"vid without pid", "VID:0403", ""},
		{"not a descriptor", "USB Serial Port", ""},
		{"empty", "", ""},
		{"too many colons", "00:11:22", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ParseVIDPID(tt.descriptor); got != tt.expected {
				t.Errorf("ParseVIDPID(%q) = %q, want %q", tt.descriptor, got, tt.expected)
			}
		})
	}
}

// Every default blocklist entry must be in the canonical format
// IsBlocked compares against.
func TestDefaultBlocklistEntriesParse(t *testing.T) {
	t.Parallel()

	entries := DefaultBlocklist()
	if len(entries) == 0 {
		t.Fatal("default blocklist should not be empty")
	}
	for _, entry := range entries {
		if got := ParseVIDPID(entry); got != entry {
			t.Errorf("blocklist entry %q does not round-trip through ParseVIDPID (got %q)",
				entry, got)
		}
	}
}
